package intake

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/jo-hoe/mcpipeline/internal/common"
	"github.com/jo-hoe/mcpipeline/internal/datagen"
	"github.com/jo-hoe/mcpipeline/internal/mcp"
	"github.com/jo-hoe/mcpipeline/internal/stage"
)

// Service creates new jobs: it writes the data artifact into the intake
// directory, builds the MCP record next to it and records the initial
// Uploaded transition.
type Service struct {
	Log   *slog.Logger
	Store *stage.Store
	Gen   datagen.Generator
}

func New(logger *slog.Logger, store *stage.Store, gen datagen.Generator) *Service {
	return &Service{Log: logger, Store: store, Gen: gen}
}

// SubmitNew creates exactly one job for the given department and base file
// name. The data file is written first; if that fails nothing else is
// created. If the MCP write fails after the data file exists, the orphan data
// file is left in place and reported.
func (s *Service) SubmitNew(department, baseName string) (*mcp.Record, error) {
	directives, fileType := directivesFor(department)
	if directives.ValidationRulesetID == "DEFAULT_RULES_V1" {
		s.Log.Warn("unknown department, using default directives", "department", department)
	}

	record := mcp.New(baseName+".csv", map[string]string{
		"department": department,
		"file_type":  fileType,
	}, directives)

	incomingDir, err := s.Store.DirFor(mcp.StatusUploaded)
	if err != nil {
		return nil, err
	}
	// Job id prefix keeps repeated uploads of the same base name apart.
	dataName := fmt.Sprintf("%s_%s.csv", baseName, record.JobID[:8])
	record.CurrentDataFilepath = filepath.Join(incomingDir, dataName)
	record.CurrentMCPFilepath = mcp.SidecarPath(record.CurrentDataFilepath)

	if err := s.Gen.Generate(record.CurrentDataFilepath, department); err != nil {
		return nil, fmt.Errorf("create data file: %w", err)
	}

	record.Transition(mcp.StatusUploaded, common.ActorIntake,
		"Initial upload for "+department, "")

	if err := record.Save(record.CurrentMCPFilepath); err != nil {
		s.Log.Error("mcp write failed, orphan data file left in place",
			"job_id", record.JobID, "data_file", record.CurrentDataFilepath, "err", err)
		return nil, fmt.Errorf("write mcp file: %w", err)
	}

	s.Log.Info("job submitted",
		"job_id", record.JobID,
		"department", department,
		"data_file", record.CurrentDataFilepath,
		"mcp_file", record.CurrentMCPFilepath)
	return record, nil
}

// directivesFor maps a department to its stage configuration.
func directivesFor(department string) (mcp.Directives, string) {
	switch strings.ToLower(department) {
	case "sales":
		return mcp.Directives{
			ValidationRulesetID:   "SALES_LEADS_V1",
			LoadTargetType:        common.TargetTypeSimulated,
			LoadTargetDestination: "sales_leads_table",
		}, "leads"
	case "marketing":
		return mcp.Directives{
			ValidationRulesetID:   "MARKETING_CONTACTS_V1",
			LoadTargetType:        common.TargetTypeSimulated,
			LoadTargetDestination: "marketing_contacts_table",
		}, "contacts"
	default:
		return mcp.Directives{
			ValidationRulesetID:   "DEFAULT_RULES_V1",
			LoadTargetType:        common.TargetTypeSimulated,
			LoadTargetDestination: "generic_landing_table",
		}, "unknown"
	}
}
