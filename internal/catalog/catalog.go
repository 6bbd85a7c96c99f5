// Package catalog exposes the bounds the tracker needs from the content catalog: which
// project templates exist and how many tutorial steps each has. The catalog is owned
// elsewhere; this package only reads it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// ErrUnknownProject is returned for a project template id the catalog does not list.
var ErrUnknownProject = errors.New("unknown project template")

// Catalog answers step-count lookups for project templates.
type Catalog interface {
	StepCount(ctx context.Context, projectID string) (int, error)
}

// Project is one template entry.
type Project struct {
	ID    string `yaml:"id" json:"id"`
	Title string `yaml:"title" json:"title"`
	Steps int    `yaml:"steps" json:"steps"`
}

type file struct {
	Projects []Project `yaml:"projects"`
}

// Static is an immutable in-memory catalog.
type Static struct {
	projects map[string]Project
}

var _ Catalog = (*Static)(nil)

// NewStatic builds a catalog from explicit entries. Duplicate ids and non-positive step
// counts are rejected.
func NewStatic(projects ...Project) (*Static, error) {
	s := &Static{projects: make(map[string]Project, len(projects))}
	for _, p := range projects {
		if p.ID == "" {
			return nil, fmt.Errorf("catalog: project with empty id")
		}
		if p.Steps <= 0 {
			return nil, fmt.Errorf("catalog: project %q has %d steps", p.ID, p.Steps)
		}
		if _, dup := s.projects[p.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate project %q", p.ID)
		}
		s.projects[p.ID] = p
	}
	return s, nil
}

// Parse reads a YAML catalog document.
func Parse(r io.Reader) (*Static, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return NewStatic(f.Projects...)
}

// LoadFile reads the catalog from path.
func LoadFile(path string) (*Static, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}

// LoadFS reads the catalog from name inside fsys (the embedded seed catalog).
func LoadFS(fsys fs.FS, name string) (*Static, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}

func (s *Static) StepCount(_ context.Context, projectID string) (int, error) {
	p, ok := s.projects[projectID]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownProject, projectID)
	}
	return p.Steps, nil
}

// Projects lists the templates ordered by id.
func (s *Static) Projects() []Project {
	out := make([]Project, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
