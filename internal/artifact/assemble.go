// Package artifact assembles generated programs, writes them to the
// workspace and records every run in a SQLite ledger.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strings"

	"swarmcap/internal/synth"
)

// Assemble builds the program text for one run: the package clause, one
// merged import block, the entry code's declarations, then each helper's
// declaration exactly as the model returned it.
func Assemble(entry string, helpers []*synth.SynthesizedFunction) (string, error) {
	imports, body, err := splitEntry(entry)
	if err != nil {
		return "", err
	}
	for _, fn := range helpers {
		imports = append(imports, fn.Definition.Imports...)
	}

	var b strings.Builder
	b.WriteString("package main\n")
	if merged := synth.MergeImports(imports); len(merged) > 0 {
		b.WriteString("\nimport (\n")
		for _, spec := range merged {
			b.WriteString("\t" + spec + "\n")
		}
		b.WriteString(")\n")
	}
	if body != "" {
		b.WriteString("\n" + body + "\n")
	}
	for _, fn := range helpers {
		b.WriteString("\n" + strings.TrimSpace(fn.Definition.Decl) + "\n")
	}
	return b.String(), nil
}

// splitEntry separates the import specs of entry from its remaining declarations.
func splitEntry(entry string) ([]string, string, error) {
	src := entry
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "", src, parser.ParseComments)
	if err != nil {
		src = "package main\n\n" + entry
		fset = token.NewFileSet()
		f, err = parser.ParseFile(fset, "", src, parser.ParseComments)
		if err != nil {
			return nil, "", &synth.ParseError{Err: err}
		}
	}

	var imports []string
	for _, spec := range f.Imports {
		imports = append(imports, src[fset.Position(spec.Pos()).Offset:fset.Position(spec.End()).Offset])
	}

	start := -1
	for _, d := range f.Decls {
		if g, ok := d.(*ast.GenDecl); ok && g.Tok == token.IMPORT {
			continue
		}
		pos := d.Pos()
		if fd, ok := d.(*ast.FuncDecl); ok && fd.Doc != nil {
			pos = fd.Doc.Pos()
		}
		if g, ok := d.(*ast.GenDecl); ok && g.Doc != nil {
			pos = g.Doc.Pos()
		}
		start = fset.Position(pos).Offset
		break
	}
	if start < 0 {
		return imports, "", nil
	}
	return imports, strings.TrimSpace(src[start:]), nil
}

// Artifact is one persisted program.
type Artifact struct {
	RunID   string
	Task    string
	Path    string
	Content string
	Helpers []string
}

func (a *Artifact) String() string {
	return fmt.Sprintf("%s (%d helpers) -> %s", a.Task, len(a.Helpers), a.Path)
}

// StatusOf maps the error a run ended with to its ledger status.
func StatusOf(err error) string {
	switch {
	case err == nil:
		return StatusSuccess
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout
	default:
		return StatusError
	}
}
