// Package prompt renders the prompts sent to the completion backend.
// Prompt atoms are YAML files under templates/ baked in with go:embed; each
// atom's content is a text/template.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
	"text/template"

	"gopkg.in/yaml.v3"

	"swarmcap/internal/logging"
)

//go:embed templates/*.yaml
var templateFS embed.FS

// Atom is one embedded prompt template.
type Atom struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Content     string `yaml:"content"`

	tmpl *template.Template
}

var (
	atomsOnce sync.Once
	atoms     map[string]*Atom
	atomsErr  error
)

// loadAtoms parses every embedded atom once.
func loadAtoms() (map[string]*Atom, error) {
	atomsOnce.Do(func() {
		atoms, atomsErr = parseAtoms(templateFS, "templates")
		if atomsErr == nil {
			logging.Get(logging.CategoryBoot).Debug("loaded %d prompt atoms", len(atoms))
		}
	})
	return atoms, atomsErr
}

func parseAtoms(fsys fs.FS, dir string) (map[string]*Atom, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read prompt templates: %w", err)
	}

	out := make(map[string]*Atom, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}

		var a Atom
		if err := yaml.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		if a.ID == "" {
			return nil, fmt.Errorf("%s: missing id", e.Name())
		}
		if _, dup := out[a.ID]; dup {
			return nil, fmt.Errorf("%s: duplicate atom id %q", e.Name(), a.ID)
		}

		a.tmpl, err = template.New(a.ID).Option("missingkey=error").Parse(a.Content)
		if err != nil {
			return nil, fmt.Errorf("template %s: %w", a.ID, err)
		}
		out[a.ID] = &a
	}
	return out, nil
}

// Render executes the atom called id with data.
func Render(id string, data any) (string, error) {
	all, err := loadAtoms()
	if err != nil {
		return "", err
	}
	a, ok := all[id]
	if !ok {
		return "", fmt.Errorf("unknown prompt atom %q", id)
	}
	var buf bytes.Buffer
	if err := a.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", id, err)
	}
	return strings.TrimRight(buf.String(), "\n") + "\n", nil
}

// Environment returns the environment description.
func Environment() string {
	all, err := loadAtoms()
	if err != nil {
		return ""
	}
	if a, ok := all["environment"]; ok {
		return strings.TrimRight(a.Content, "\n")
	}
	return ""
}
