package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jo-hoe/mcpipeline/internal/common"
	"github.com/jo-hoe/mcpipeline/internal/datagen"
	"github.com/jo-hoe/mcpipeline/internal/intake"
	"github.com/jo-hoe/mcpipeline/internal/mcp"
	"github.com/jo-hoe/mcpipeline/internal/rules"
	"github.com/jo-hoe/mcpipeline/internal/stage"
	"github.com/jo-hoe/mcpipeline/internal/target"
)

const testRules = `{
  "SALES_LEADS_V1": {"required_columns": ["Name", "Email"]},
  "MARKETING_CONTACTS_V1": {"required_columns": ["FirstName", "LastName", "Email"]}
}`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixture struct {
	store     *stage.Store
	intake    *intake.Service
	validator *Processor
	loader    *Processor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	base := t.TempDir()
	logger := testLogger()
	store := stage.NewStore(logger, base)

	rulesPath := filepath.Join(base, "validation_rules.json")
	if err := os.WriteFile(rulesPath, []byte(testRules), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	ruleCheck, err := rules.Load(logger, rulesPath)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}

	reg := target.NewRegistry()
	reg.Add(common.TargetTypeSimulated, target.NewSimulated(logger, time.Millisecond, 2*time.Millisecond))

	return &fixture{
		store:     store,
		intake:    intake.New(logger, store, datagen.CSV{}),
		validator: NewValidator(logger, store, ruleCheck),
		loader:    NewLoader(logger, store, reg),
	}
}

func (f *fixture) mustDir(t *testing.T, status mcp.Status) string {
	t.Helper()
	dir, err := f.store.DirFor(status)
	if err != nil {
		t.Fatalf("dir for %q: %v", status, err)
	}
	return dir
}

func historyStatuses(r *mcp.Record) []mcp.Status {
	out := make([]mcp.Status, 0, len(r.StatusInfo.StatusHistory))
	for _, e := range r.StatusInfo.StatusHistory {
		out = append(out, e.Status)
	}
	return out
}

func TestPipeline_EndToEndSales(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.intake.SubmitNew("Sales", "leads")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	mcpName := filepath.Base(record.CurrentMCPFilepath)

	// Validator pass moves the job to the processing directory as Validated.
	sum, err := f.validator.Run(ctx)
	if err != nil {
		t.Fatalf("validator run: %v", err)
	}
	if sum.Processed != 1 || sum.Succeeded != 1 || sum.Failed != 0 || sum.Skipped != 0 {
		t.Fatalf("validator summary = %+v", sum)
	}

	processingDir := f.mustDir(t, mcp.StatusValidated)
	afterValidate, err := mcp.Load(filepath.Join(processingDir, mcpName))
	if err != nil {
		t.Fatalf("load after validate: %v", err)
	}
	if afterValidate.StatusInfo.CurrentStatus != mcp.StatusValidated {
		t.Fatalf("status after validate = %q", afterValidate.StatusInfo.CurrentStatus)
	}
	wantSoFar := []mcp.Status{mcp.StatusUploaded, mcp.StatusValidating, mcp.StatusValidated}
	if got := historyStatuses(afterValidate); len(got) != len(wantSoFar) {
		t.Fatalf("history after validate = %v, want %v", got, wantSoFar)
	}

	// Loader pass moves the job to the success archive as Loaded.
	sum, err = f.loader.Run(ctx)
	if err != nil {
		t.Fatalf("loader run: %v", err)
	}
	if sum.Processed != 1 || sum.Succeeded != 1 || sum.Failed != 0 || sum.Skipped != 0 {
		t.Fatalf("loader summary = %+v", sum)
	}

	successDir := f.mustDir(t, mcp.StatusLoaded)
	final, err := mcp.Load(filepath.Join(successDir, mcpName))
	if err != nil {
		t.Fatalf("load final: %v", err)
	}
	if final.StatusInfo.CurrentStatus != mcp.StatusLoaded {
		t.Fatalf("final status = %q", final.StatusInfo.CurrentStatus)
	}
	want := []mcp.Status{
		mcp.StatusUploaded, mcp.StatusValidating, mcp.StatusValidated,
		mcp.StatusLoading, mcp.StatusLoaded,
	}
	got := historyStatuses(final)
	if len(got) != len(want) {
		t.Fatalf("final history = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("final history = %v, want %v", got, want)
		}
	}
	// History timestamps never decrease.
	hist := final.StatusInfo.StatusHistory
	for i := 1; i < len(hist); i++ {
		if hist[i].TimestampUTC.Before(hist[i-1].TimestampUTC) {
			t.Fatalf("history timestamps not monotonic at entry %d", i)
		}
	}

	// Identity survived both stages.
	if final.JobID != record.JobID {
		t.Fatalf("job id changed across pipeline")
	}
	if final.SourceContext["department"] != "Sales" {
		t.Fatalf("source context changed across pipeline")
	}
	if final.ProcessingDirectives != record.ProcessingDirectives {
		t.Fatalf("directives changed across pipeline")
	}
	if final.StatusInfo.ErrorMessage != "" {
		t.Fatalf("error_message set on successful run: %q", final.StatusInfo.ErrorMessage)
	}

	// The pair moved together.
	if _, err := os.Stat(final.CurrentDataFilepath); err != nil {
		t.Fatalf("data file missing in success archive: %v", err)
	}
	if filepath.Dir(final.CurrentDataFilepath) != successDir {
		t.Fatalf("data file path %q not in success archive", final.CurrentDataFilepath)
	}
}

func TestPipeline_ValidationFailureArchivesJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.intake.SubmitNew("Sales", "leads")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// Rewrite the data file so the header no longer satisfies SALES_LEADS_V1.
	if err := os.WriteFile(record.CurrentDataFilepath, []byte("Name,LeadScore\nAlice,85\n"), 0o644); err != nil {
		t.Fatalf("rewrite data: %v", err)
	}

	sum, err := f.validator.Run(ctx)
	if err != nil {
		t.Fatalf("validator run: %v", err)
	}
	if sum.Failed != 1 || sum.Succeeded != 0 {
		t.Fatalf("validator summary = %+v", sum)
	}

	failedDir := f.mustDir(t, mcp.StatusValidationFailed)
	final, err := mcp.Load(filepath.Join(failedDir, filepath.Base(record.CurrentMCPFilepath)))
	if err != nil {
		t.Fatalf("load failed mcp: %v", err)
	}
	if final.StatusInfo.CurrentStatus != mcp.StatusValidationFailed {
		t.Fatalf("status = %q", final.StatusInfo.CurrentStatus)
	}
	if !strings.Contains(final.StatusInfo.ErrorMessage, "Email") {
		t.Fatalf("error_message %q does not list missing column", final.StatusInfo.ErrorMessage)
	}
}

func TestPipeline_DeletedDataFileEndsInLoadFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	record, err := f.intake.SubmitNew("Sales", "leads")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := f.validator.Run(ctx); err != nil {
		t.Fatalf("validator run: %v", err)
	}

	// Sabotage: the data file disappears between validation and loading.
	processingDir := f.mustDir(t, mcp.StatusValidated)
	dataPath := filepath.Join(processingDir, filepath.Base(record.CurrentDataFilepath))
	if err := os.Remove(dataPath); err != nil {
		t.Fatalf("remove data file: %v", err)
	}

	sum, err := f.loader.Run(ctx)
	if err != nil {
		t.Fatalf("loader run: %v", err)
	}
	if sum.Failed != 1 {
		t.Fatalf("loader summary = %+v", sum)
	}

	// The metadata lands in the failure archive even without its data file.
	failedDir := f.mustDir(t, mcp.StatusLoadFailed)
	final, err := mcp.Load(filepath.Join(failedDir, filepath.Base(record.CurrentMCPFilepath)))
	if err != nil {
		t.Fatalf("load final mcp: %v", err)
	}
	if final.StatusInfo.CurrentStatus != mcp.StatusLoadFailed {
		t.Fatalf("final status = %q, want %q", final.StatusInfo.CurrentStatus, mcp.StatusLoadFailed)
	}
	if !strings.Contains(final.StatusInfo.ErrorMessage, "not found") {
		t.Fatalf("error_message = %q, want a not-found message", final.StatusInfo.ErrorMessage)
	}
	last := final.StatusInfo.StatusHistory[len(final.StatusInfo.StatusHistory)-1]
	if last.Status != mcp.StatusLoadFailed || !strings.Contains(last.Details, "not found") {
		t.Fatalf("last history entry %+v does not carry the failure message", last)
	}
	// Nothing left behind in the processing directory.
	if _, err := os.Stat(filepath.Join(processingDir, filepath.Base(record.CurrentMCPFilepath))); err == nil {
		t.Fatalf("mcp file still in processing directory after failure")
	}
}

func TestProcessor_SkipsForeignStatusUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Plant a job that another loader already claimed: status Loading, living
	// in the processing directory the loader scans.
	processingDir := f.mustDir(t, mcp.StatusLoading)
	if err := os.MkdirAll(processingDir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	claimed := mcp.New("leads.csv", map[string]string{"department": "Sales"}, mcp.Directives{
		ValidationRulesetID:   "SALES_LEADS_V1",
		LoadTargetType:        common.TargetTypeSimulated,
		LoadTargetDestination: "sales_leads_table",
	})
	claimed.CurrentDataFilepath = filepath.Join(processingDir, "leads_claimed.csv")
	claimed.CurrentMCPFilepath = mcp.SidecarPath(claimed.CurrentDataFilepath)
	claimed.Transition(mcp.StatusUploaded, "test", "", "")
	claimed.Transition(mcp.StatusValidating, "test", "", "")
	claimed.Transition(mcp.StatusValidated, "test", "", "")
	claimed.Transition(mcp.StatusLoading, "test", "", "")
	if err := os.WriteFile(claimed.CurrentDataFilepath, []byte("Name,Email\nA,a@b.c\n"), 0o644); err != nil {
		t.Fatalf("write data: %v", err)
	}
	if err := claimed.Save(claimed.CurrentMCPFilepath); err != nil {
		t.Fatalf("save mcp: %v", err)
	}
	before, err := os.ReadFile(claimed.CurrentMCPFilepath)
	if err != nil {
		t.Fatalf("read mcp: %v", err)
	}

	sum, err := f.loader.Run(ctx)
	if err != nil {
		t.Fatalf("loader run: %v", err)
	}
	if sum.Processed != 0 || sum.Skipped != 1 {
		t.Fatalf("loader summary = %+v, want pure skip", sum)
	}

	after, err := os.ReadFile(claimed.CurrentMCPFilepath)
	if err != nil {
		t.Fatalf("skipped job was moved: %v", err)
	}
	if string(before) != string(after) {
		t.Fatalf("skipped job was mutated")
	}
	if _, err := os.Stat(claimed.CurrentDataFilepath); err != nil {
		t.Fatalf("skipped job's data file was moved: %v", err)
	}
}

func TestProcessor_SkipsMalformedDocument(t *testing.T) {
	f := newFixture(t)
	incoming := f.mustDir(t, mcp.StatusUploaded)
	if err := os.MkdirAll(incoming, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	badPath := filepath.Join(incoming, "broken.csv"+common.MCPSuffix)
	if err := os.WriteFile(badPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	sum, err := f.validator.Run(context.Background())
	if err != nil {
		t.Fatalf("validator run: %v", err)
	}
	if sum.Skipped != 1 || sum.Processed != 0 {
		t.Fatalf("summary = %+v, want one skip", sum)
	}

	// Untouched and still in place for the next pass.
	data, err := os.ReadFile(badPath)
	if err != nil {
		t.Fatalf("malformed file was moved or deleted: %v", err)
	}
	if string(data) != "{not json" {
		t.Fatalf("malformed file was mutated: %q", data)
	}
}

func TestProcessor_MissingSourceDirIsEmptyPass(t *testing.T) {
	f := newFixture(t)
	sum, err := f.loader.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum != (Summary{}) {
		t.Fatalf("summary = %+v, want zero", sum)
	}
}

func TestProcessor_IgnoresNonMCPFiles(t *testing.T) {
	f := newFixture(t)
	incoming := f.mustDir(t, mcp.StatusUploaded)
	if err := os.MkdirAll(incoming, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(incoming, "leads.csv"), []byte("Name,Email\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	sum, err := f.validator.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum != (Summary{}) {
		t.Fatalf("summary = %+v, want zero for plain data file", sum)
	}
}
