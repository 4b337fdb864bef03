package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/daryltucker/canopy-bench/internal/model"
)

// Export writes the report to path, choosing the format from the file
// extension: .json, .csv, or .md.
func Export(report model.BenchmarkReport, path string) error {
	var content string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		content, err = RenderJSON(report)
		if err != nil {
			return fmt.Errorf("rendering export: %w", err)
		}
	case ".csv":
		content = RenderCSV(report)
	case ".md":
		content = RenderMarkdown(report)
	default:
		return fmt.Errorf("export file must have a .json, .csv, or .md extension, got %q", path)
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing export file: %w", err)
	}
	return nil
}
