package synth

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"reflect"
	"sort"
	"strings"
	"testing/fstest"
	"unicode"
	"unicode/utf8"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"swarmcap/internal/config"
	"swarmcap/internal/logging"
)

// Binder materializes synthesized definitions into callables.
type Binder interface {
	Bind(ns *Namespace, fns []*SynthesizedFunction) error
}

// DefaultHostImportPath is the package path host bindings are exported under.
const DefaultHostImportPath = "swarm/robot"

// hostAlias names the host package inside generated programs.
const hostAlias = "hostapi"

// Sandbox binds generated Go in a yaegi interpreter whose symbol table holds
// only allow-listed stdlib packages and the host bindings. os, os/exec, net,
// syscall, unsafe, reflect, plugin and the interpreter itself are never
// exported unless a caller puts them on the allow-list.
type Sandbox struct {
	api     *HostAPI
	allowed map[string]bool
	symbols interp.Exports
	host    interp.Exports
	output  io.Writer
}

// SandboxOption configures a Sandbox.
type SandboxOption func(*Sandbox)

// WithSandboxPackages replaces the stdlib allow-list.
func WithSandboxPackages(pkgs []string) SandboxOption {
	return func(s *Sandbox) { s.allowed = allowSet(pkgs) }
}

// WithOutput redirects stdout and stderr of generated code.
func WithOutput(w io.Writer) SandboxOption {
	return func(s *Sandbox) { s.output = w }
}

// NewSandbox creates a sandbox exposing api to generated code.
func NewSandbox(api *HostAPI, opts ...SandboxOption) *Sandbox {
	s := &Sandbox{
		api:     api,
		allowed: allowSet(config.DefaultAllowedPackages),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.output == nil {
		if f := logging.Get(logging.CategorySandbox).Writer(); f != nil {
			s.output = f
		} else {
			s.output = io.Discard
		}
	}

	s.symbols = make(interp.Exports)
	for key, syms := range stdlib.Symbols {
		// keys look like "math/rand/rand": import path plus package name
		if s.allowed[path.Dir(key)] {
			s.symbols[key] = syms
		}
	}
	s.host = hostExports(api)
	return s
}

// Allowed reports whether generated code may import pkg.
func (s *Sandbox) Allowed(pkg string) bool {
	return s.allowed[pkg]
}

func hostImportPath(api *HostAPI) string {
	if api == nil || api.ImportPath == "" {
		return DefaultHostImportPath
	}
	return api.ImportPath
}

func hostExports(api *HostAPI) interp.Exports {
	if api == nil || (len(api.Types) == 0 && len(api.Capabilities) == 0) {
		return nil
	}
	p := hostImportPath(api)
	syms := make(map[string]reflect.Value, len(api.Types)+len(api.Capabilities))
	for name, typ := range api.Types {
		syms[name] = reflect.ValueOf(typ)
	}
	for _, c := range api.Capabilities {
		syms[exportName(c.Name)] = reflect.ValueOf(c.Func)
	}
	return interp.Exports{p + "/" + path.Base(p): syms}
}

func exportName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

// Bind evaluates one program holding the host prelude, every synthesized
// function already in ns and fns, then sets Callable on each of fns. A
// function in fns replaces an earlier definition of the same name in ns.
func (s *Sandbox) Bind(ns *Namespace, fns []*SynthesizedFunction) error {
	if len(fns) == 0 {
		return nil
	}

	program, err := s.Program(ns, fns)
	if err != nil {
		return err
	}

	i := interp.New(interp.Options{
		Stdin:                bytes.NewReader(nil),
		Stdout:               s.output,
		Stderr:               s.output,
		Env:                  []string{},
		SourcecodeFilesystem: fstest.MapFS{},
		Unrestricted:         false,
	})
	if err := i.Use(s.symbols); err != nil {
		return fmt.Errorf("load sandbox stdlib: %w", err)
	}
	if s.host != nil {
		if err := i.Use(s.host); err != nil {
			return fmt.Errorf("load host bindings: %w", err)
		}
	}

	logging.Sandbox("binding %d functions (%d bytes)", len(fns), len(program))
	if _, err := i.Eval(program); err != nil {
		logging.SandboxError("program evaluation failed: %v", err)
		return &MalformedResponseError{Name: fns[len(fns)-1].Name, Reason: "generated code does not compile", Err: err}
	}

	for _, fn := range fns {
		v, err := i.Eval("main." + fn.Name)
		if err != nil || !v.IsValid() {
			return &UnresolvableNameError{Name: fn.Name, Reason: "sandbox does not expose the function"}
		}
		if v.Kind() != reflect.Func {
			return &UnresolvableNameError{Name: fn.Name, Reason: fmt.Sprintf("bound to %s, not a function", v.Kind())}
		}
		fn.Callable = v
	}
	return nil
}

// Program assembles the source Bind evaluates.
func (s *Sandbox) Program(ns *Namespace, fns []*SynthesizedFunction) (string, error) {
	replaced := make(map[string]bool, len(fns))
	for _, fn := range fns {
		replaced[fn.Name] = true
	}

	var all []*SynthesizedFunction
	if ns != nil {
		for _, fn := range ns.Synthesized() {
			if !replaced[fn.Name] {
				all = append(all, fn)
			}
		}
	}
	all = append(all, fns...)

	var imports []string
	for _, fn := range all {
		for _, spec := range fn.Definition.Imports {
			p := importPath(spec)
			if !s.allowed[p] {
				return "", &SandboxViolationError{Name: fn.Name, Import: p}
			}
			imports = append(imports, spec)
		}
	}

	var b strings.Builder
	b.WriteString("package main\n\n")
	hostDecls := s.prelude()
	if hostDecls != "" {
		fmt.Fprintf(&b, "import %s %q\n\n", hostAlias, hostImportPath(s.api))
	}
	if merged := MergeImports(imports); len(merged) > 0 {
		b.WriteString("import (\n")
		for _, spec := range merged {
			b.WriteString("\t" + spec + "\n")
		}
		b.WriteString(")\n\n")
	}
	b.WriteString(hostDecls)
	for _, fn := range all {
		if fn.Definition.Decl == "" {
			return "", &UnresolvableNameError{Name: fn.Name, Reason: "no declaration to bind"}
		}
		b.WriteString(fn.Definition.Decl)
		b.WriteString("\n\n")
	}
	return b.String(), nil
}

// prelude aliases host types and capabilities as bare package-level names.
func (s *Sandbox) prelude() string {
	if s.host == nil {
		return ""
	}
	var b strings.Builder
	for _, name := range s.api.TypeNames() {
		fmt.Fprintf(&b, "type %s = %s.%s\n", name, hostAlias, name)
	}
	for _, c := range s.api.Capabilities {
		fmt.Fprintf(&b, "var %s = %s.%s\n", c.Name, hostAlias, exportName(c.Name))
	}
	b.WriteString("\n")
	return b.String()
}

// MergeImports deduplicates import specs by local package name, keeping the
// first spec seen for each name, and sorts the result by path.
func MergeImports(specs []string) []string {
	byName := make(map[string]string)
	for _, spec := range specs {
		name := importName(spec)
		if _, ok := byName[name]; !ok {
			byName[name] = spec
		}
	}
	out := make([]string, 0, len(byName))
	for _, spec := range byName {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := importPath(out[i]), importPath(out[j])
		if pi != pj {
			return pi < pj
		}
		return out[i] < out[j]
	})
	return out
}

// importPath returns the unquoted path of a spec such as `r "math/rand"`.
func importPath(spec string) string {
	if i := strings.IndexByte(spec, '"'); i >= 0 {
		return strings.Trim(spec[i:], "\"` ")
	}
	return strings.TrimSpace(spec)
}

func importName(spec string) string {
	spec = strings.TrimSpace(spec)
	if !strings.HasPrefix(spec, "\"") {
		if fields := strings.Fields(spec); len(fields) == 2 {
			return fields[0]
		}
	}
	return path.Base(importPath(spec))
}
