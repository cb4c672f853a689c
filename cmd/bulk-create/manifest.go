package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/stemsi/exstem-authoring/internal/bulk"
	"github.com/stemsi/exstem-authoring/internal/upload"
	"gopkg.in/yaml.v3"
)

// manifest lists the problems of one bulk run.
//
//	assignment_id: 12
//	problems:
//	  - title: A+B
//	    archive: a-plus-b.zip
//	    description: a-plus-b.md
type manifest struct {
	AssignmentID int64           `yaml:"assignment_id"`
	TimeLimit    string          `yaml:"time_limit"`
	MemoryLimit  string          `yaml:"memory_limit"`
	Problems     []manifestEntry `yaml:"problems"`
}

type manifestEntry struct {
	Title       string `yaml:"title"`
	Archive     string `yaml:"archive"`
	Description string `yaml:"description"`
}

func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(m.Problems) == 0 {
		return nil, fmt.Errorf("manifest %s lists no problems", path)
	}
	return &m, nil
}

// rows resolves file paths relative to dir. Missing files become rows
// without that file so validation reports them with the rest.
func (m *manifest) rows(dir string) []bulk.Row {
	rows := make([]bulk.Row, 0, len(m.Problems))
	for _, p := range m.Problems {
		row := bulk.Row{Title: p.Title}
		if f, ok := openRel(dir, p.Archive); ok {
			row.Archive = &f
		}
		if f, ok := openRel(dir, p.Description); ok {
			row.DescriptionFile = &f
		}
		rows = append(rows, row)
	}
	return rows
}

func openRel(dir, name string) (upload.File, bool) {
	if name == "" {
		return upload.File{}, false
	}
	if !filepath.IsAbs(name) {
		name = filepath.Join(dir, name)
	}
	f, err := upload.FromPath(name)
	if err != nil {
		return upload.File{}, false
	}
	return f, true
}
