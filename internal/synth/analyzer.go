package synth

import (
	"bytes"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"strings"

	"swarmcap/internal/logging"
)

// CallSite is one discovered call to a name the analyzed code does not declare.
type CallSite struct {
	Name      string
	Signature string // call text, or the whole assignment when Assigned
	Assigned  bool
}

// Analysis holds the call sites found in one block of source.
type Analysis struct {
	calls    map[string]string
	assigned map[string]string
	order    []string
}

// Signatures returns the bare call text per callee, last occurrence wins.
func (a *Analysis) Signatures() map[string]string {
	return copyMap(a.calls)
}

// AssignedSignatures returns the assignment text per callee for calls that are
// the sole right-hand side of an assignment or var declaration.
func (a *Analysis) AssignedSignatures() map[string]string {
	return copyMap(a.assigned)
}

// CallSites returns every callee in encounter order. The assignment form is
// used for names seen in both maps.
func (a *Analysis) CallSites() []CallSite {
	sites := make([]CallSite, 0, len(a.order))
	for _, name := range a.order {
		if sig, ok := a.assigned[name]; ok {
			sites = append(sites, CallSite{Name: name, Signature: sig, Assigned: true})
			continue
		}
		sites = append(sites, CallSite{Name: name, Signature: a.calls[name]})
	}
	return sites
}

// Names returns the callee names in encounter order.
func (a *Analysis) Names() []string {
	return append([]string(nil), a.order...)
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// parsedSource is code parsed under one of the accepted shapes. src is the
// exact text handed to the parser, so node offsets index into it.
type parsedSource struct {
	fset *token.FileSet
	file *ast.File
	src  string
}

func (p *parsedSource) text(n ast.Node) string {
	return p.src[p.fset.Position(n.Pos()).Offset:p.fset.Position(n.End()).Offset]
}

const (
	declPrefix = "package main\n\n"
	stmtPrefix = "package main\n\nfunc _() {\n"
	stmtSuffix = "\n}\n"
)

// parseSource accepts a full file, bare top-level declarations or a statement list.
func parseSource(code string) (*parsedSource, error) {
	fset := token.NewFileSet()
	if f, err := parser.ParseFile(fset, "", code, parser.ParseComments); err == nil {
		return &parsedSource{fset: fset, file: f, src: code}, nil
	} else if hasPackageClause(code) {
		return nil, &ParseError{Err: err}
	}

	src := declPrefix + code
	fset = token.NewFileSet()
	f, declErr := parser.ParseFile(fset, "", src, parser.ParseComments)
	if declErr == nil {
		return &parsedSource{fset: fset, file: f, src: src}, nil
	}

	src = stmtPrefix + code + stmtSuffix
	fset = token.NewFileSet()
	if f, err := parser.ParseFile(fset, "", src, parser.ParseComments); err == nil {
		return &parsedSource{fset: fset, file: f, src: src}, nil
	}
	return nil, &ParseError{Err: declErr}
}

func hasPackageClause(code string) bool {
	_, err := parser.ParseFile(token.NewFileSet(), "", code, parser.PackageClauseOnly)
	return err == nil
}

// Analyze parses code and collects every call whose callee is a bare
// identifier not declared in the code itself. Locally bound names (functions,
// parameters, variables) resolve through the parser's object resolution and
// are never reported. Arguments are visited before the enclosing call.
func Analyze(code string) (*Analysis, error) {
	ps, err := parseSource(code)
	if err != nil {
		return nil, err
	}

	a := &Analysis{
		calls:    make(map[string]string),
		assigned: make(map[string]string),
	}
	seen := make(map[string]bool)
	note := func(name string) {
		if !seen[name] {
			seen[name] = true
			a.order = append(a.order, name)
		}
	}

	var stack []ast.Node
	ast.Inspect(ps.file, func(n ast.Node) bool {
		if n != nil {
			stack = append(stack, n)
			return true
		}
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		switch x := node.(type) {
		case *ast.CallExpr:
			if name, ok := unresolvedCallee(x); ok {
				a.calls[name] = ps.render(x)
				note(name)
			}
		case *ast.AssignStmt:
			// compound forms like += keep the bare call text
			if len(x.Rhs) != 1 || (x.Tok != token.ASSIGN && x.Tok != token.DEFINE) {
				break
			}
			if call, ok := x.Rhs[0].(*ast.CallExpr); ok {
				if name, ok := unresolvedCallee(call); ok {
					a.assigned[name] = ps.render(x)
					note(name)
				}
			}
		case *ast.ValueSpec:
			if len(x.Values) != 1 {
				break
			}
			if call, ok := x.Values[0].(*ast.CallExpr); ok {
				if name, ok := unresolvedCallee(call); ok {
					a.assigned[name] = "var " + ps.render(x)
					note(name)
				}
			}
		}
		return true
	})

	logging.AnalyzerDebug("analyzed %d bytes: %d unresolved callees %v", len(code), len(a.order), a.order)
	return a, nil
}

func unresolvedCallee(call *ast.CallExpr) (string, bool) {
	id, ok := call.Fun.(*ast.Ident)
	if !ok || id.Name == "_" {
		return "", false
	}
	//nolint:staticcheck // file-local resolution is all that is needed
	if id.Obj != nil {
		return "", false
	}
	return id.Name, true
}

// render prints n in canonical form; multi-line nodes keep their layout.
func (p *parsedSource) render(n ast.Node) string {
	var buf bytes.Buffer
	if err := format.Node(&buf, p.fset, n); err != nil {
		return strings.TrimSpace(p.text(n))
	}
	return buf.String()
}

// DeclaredFuncs returns the top-level function names code declares, in order.
// Methods are not included.
func DeclaredFuncs(code string) ([]string, error) {
	ps, err := parseSource(code)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, d := range ps.file.Decls {
		if fd, ok := d.(*ast.FuncDecl); ok && fd.Recv == nil && fd.Name.Name != "_" {
			names = append(names, fd.Name.Name)
		}
	}
	return names, nil
}

// DeclaresFunc reports whether code declares a top-level function name.
func DeclaresFunc(code, name string) (bool, error) {
	names, err := DeclaredFuncs(code)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}
