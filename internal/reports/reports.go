package reports

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stoewer/go-strcase"
	"gopkg.in/yaml.v3"
)

type Status string

const (
	StatusClean     Status = "clean"
	StatusConflicts Status = "conflicts"
	StatusFailed    Status = "failed"
)

const reportTitle = "Merge report"

type Versions struct {
	Base     string `yaml:"base,omitempty"`
	Left     string `yaml:"left,omitempty"`
	Right    string `yaml:"right,omitempty"`
	LeftBase string `yaml:"left_base,omitempty"`
}

// Change is one difference between the merged tree and RIGHT.
type Change struct {
	Path    string `yaml:"path"`
	Kind    string `yaml:"kind"`
	Added   int    `yaml:"added,omitempty"`
	Removed int    `yaml:"removed,omitempty"`
}

// MergeReport summarises the merge of one package for whoever turns the
// merged tree into an upload.
type MergeReport struct {
	Package     string    `yaml:"package,omitempty"`
	Status      Status    `yaml:"status"`
	QuiltOnly   bool      `yaml:"quilt_only"`
	Versions    Versions  `yaml:"versions"`
	Conflicts   []string  `yaml:"conflicts,omitempty"`
	Changes     []Change  `yaml:"changes,omitempty"`
	Notes       []string  `yaml:"notes,omitempty"`
	Error       string    `yaml:"error,omitempty"`
	GeneratedAt time.Time `yaml:"generated_at"`
}

// DefaultPath places the report next to the merged tree, outside it.
func DefaultPath(outDir string) string {
	return filepath.Clean(outDir) + "." + strcase.KebabCase(reportTitle) + ".yaml"
}

// Write stores r at path through a temporary sibling, so readers never see a
// partial report.
func Write(path string, r *MergeReport) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".report-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

func Read(path string) (*MergeReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var r MergeReport
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", path, err)
	}
	return &r, nil
}

func (r *MergeReport) Title() string {
	if r.Package == "" {
		return reportTitle
	}
	return fmt.Sprintf("%s for %s", reportTitle, r.Package)
}
