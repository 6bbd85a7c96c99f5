package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	dbfs "github.com/garnizeh/preptrack/db"
	"github.com/garnizeh/preptrack/internal/catalog"
)

func TestParse_StepCount(t *testing.T) {
	doc := `
projects:
  - id: proj-a
    title: A
    steps: 3
  - id: proj-b
    steps: 5
`
	c, err := catalog.Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	n, err := c.StepCount(context.Background(), "proj-a")
	if err != nil || n != 3 {
		t.Fatalf("StepCount(proj-a) = %d, %v; want 3, nil", n, err)
	}

	_, err = c.StepCount(context.Background(), "missing")
	if !errors.Is(err, catalog.ErrUnknownProject) {
		t.Fatalf("expected ErrUnknownProject, got %v", err)
	}

	ps := c.Projects()
	if len(ps) != 2 || ps[0].ID != "proj-a" || ps[1].ID != "proj-b" {
		t.Fatalf("unexpected projects: %+v", ps)
	}
}

func TestParse_Rejects(t *testing.T) {
	cases := map[string]string{
		"zero steps":    "projects:\n  - id: a\n    steps: 0\n",
		"empty id":      "projects:\n  - steps: 2\n",
		"duplicate":     "projects:\n  - id: a\n    steps: 1\n  - id: a\n    steps: 2\n",
		"unknown field": "projects:\n  - id: a\n    steps: 1\n    color: red\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := catalog.Parse(strings.NewReader(doc)); err == nil {
				t.Fatalf("expected error for %s", name)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("projects:\n  - id: x\n    steps: 2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := catalog.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if n, _ := c.StepCount(context.Background(), "x"); n != 2 {
		t.Fatalf("expected 2 steps, got %d", n)
	}

	if _, err := catalog.LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestLoadFS_EmbeddedSeed(t *testing.T) {
	c, err := catalog.LoadFS(dbfs.SeedFiles, "seed/catalog.yaml")
	if err != nil {
		t.Fatalf("LoadFS: %v", err)
	}
	if len(c.Projects()) == 0 {
		t.Fatalf("expected seed catalog to list projects")
	}
}
