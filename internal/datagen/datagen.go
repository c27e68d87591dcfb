// Package datagen produces placeholder upload files. It stands in for a real
// upstream system dropping files; the intake service only depends on the
// Generator interface, so a real source can be plugged in without touching it.
package datagen

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jo-hoe/mcpipeline/internal/common"
)

// Generator writes a data file for the given department to path.
type Generator interface {
	Generate(path, department string) error
}

// CSV writes small department-shaped CSV samples.
type CSV struct{}

// Generate writes a dummy CSV whose header matches the department's expected
// shape, or a generic two-column file for unknown departments.
func (CSV) Generate(path, department string) error {
	var b strings.Builder
	switch strings.ToLower(department) {
	case "sales":
		b.WriteString("Name,Email,LeadScore\n")
		b.WriteString("Alice Test,alice@example.com,85\n")
		b.WriteString("Bob Sample,bob@sample.org,92\n")
	case "marketing":
		b.WriteString("FirstName,LastName,Email,CampaignSource\n")
		b.WriteString("Charlie,Testington,charlie@test.co,Website\n")
		b.WriteString("Diana,Sampler,diana@mail.net,Webinar\n")
	default:
		b.WriteString("Column1,Column2\n")
		b.WriteString("Data1,Data2\n")
	}

	if err := os.MkdirAll(filepath.Dir(path), common.DirPerm); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(b.String()), common.FilePerm); err != nil {
		return fmt.Errorf("write data file: %w", err)
	}
	return nil
}
