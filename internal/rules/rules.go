// Package rules implements the validation contract: a named rule set of
// required CSV header columns, loaded from a JSON document.
package rules

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jo-hoe/mcpipeline/internal/mcp"
)

// rulesSchema constrains the rules document: an object of ruleset ids, each
// with a required_columns string array.
const rulesSchema = `{
  "type": "object",
  "minProperties": 1,
  "additionalProperties": {
    "type": "object",
    "required": ["required_columns"],
    "properties": {
      "required_columns": {
        "type": "array",
        "items": {"type": "string", "minLength": 1}
      }
    },
    "additionalProperties": false
  }
}`

// Ruleset is one named set of header constraints.
type Ruleset struct {
	RequiredColumns []string `json:"required_columns"`
}

// Validator checks data file headers against the rule sets it was constructed
// with. There is no ambient rule table; the document is loaded once and the
// Validator is passed to whoever needs it.
type Validator struct {
	log      *slog.Logger
	rulesets map[string]Ruleset
}

// Load reads, schema-checks and decodes the rules document at path. Any
// failure here is fatal to the validating processor; callers must not proceed
// without rules.
func Load(logger *slog.Logger, path string) (*Validator, error) {
	data, err := os.ReadFile(path) // #nosec G304 - configured rules path
	if err != nil {
		return nil, fmt.Errorf("read rules document: %w", err)
	}
	if err := validateSchema(data); err != nil {
		return nil, fmt.Errorf("rules document %s: %w", path, err)
	}
	var rulesets map[string]Ruleset
	if err := json.Unmarshal(data, &rulesets); err != nil {
		return nil, fmt.Errorf("decode rules document %s: %w", path, err)
	}
	logger.Info("validation rules loaded", "path", path, "rulesets", len(rulesets))
	return &Validator{log: logger, rulesets: rulesets}, nil
}

func validateSchema(data []byte) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("rules-schema.json", bytes.NewReader([]byte(rulesSchema))); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("rules-schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("document does not match schema: %w", err)
	}
	return nil
}

// Check reads the first line of the data file as a CSV header and reports
// ok=true iff every required column of the directive's ruleset is present.
// Extra columns are allowed. The failure message lists missing columns sorted.
func (v *Validator) Check(_ context.Context, dataPath string, d mcp.Directives) (bool, string) {
	if d.ValidationRulesetID == "" {
		return false, "missing validation_ruleset_id directive"
	}
	ruleset, ok := v.rulesets[d.ValidationRulesetID]
	if !ok {
		return false, fmt.Sprintf("no validation rules found for ruleset_id: %s", d.ValidationRulesetID)
	}
	if len(ruleset.RequiredColumns) == 0 {
		v.log.Warn("ruleset has no required columns, assuming valid", "ruleset_id", d.ValidationRulesetID)
		return true, ""
	}

	f, err := os.Open(dataPath) // #nosec G304 - path comes from the MCP record
	if err != nil {
		return false, fmt.Sprintf("data file not found at %s", dataPath)
	}
	defer func() { _ = f.Close() }()

	header, err := csv.NewReader(f).Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, "CSV file is empty or has no header row"
		}
		return false, fmt.Sprintf("error reading CSV header: %v", err)
	}

	actual := make(map[string]struct{}, len(header))
	for _, col := range header {
		actual[strings.TrimSpace(col)] = struct{}{}
	}

	var missing []string
	for _, col := range ruleset.RequiredColumns {
		if _, ok := actual[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return false, "missing required columns: " + strings.Join(missing, ", ")
	}
	return true, ""
}
