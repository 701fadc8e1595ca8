package synth

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"path"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"swarmcap/internal/config"
	"swarmcap/internal/llm"
	"swarmcap/internal/logging"
)

// FunctionSynthesizer produces an unbound definition for one missing name.
type FunctionSynthesizer interface {
	Synthesize(ctx context.Context, name, signature string, ns *Namespace) (*SynthesizedFunction, error)
}

// PromptRenderer renders the function-generation prompt. helpers lists the
// headers of functions already synthesized in the namespace.
type PromptRenderer interface {
	FunctionPrompt(name, signature string, helpers []string) (string, error)
}

// Synthesizer asks the completion backend for one function at a time.
type Synthesizer struct {
	client      llm.Client
	prompts     PromptRenderer
	model       string
	temperature float64
	allowed     map[string]bool
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithModel sets the model name passed to the backend.
func WithModel(model string) Option {
	return func(s *Synthesizer) { s.model = model }
}

// WithTemperature sets the sampling temperature for function requests.
func WithTemperature(t float64) Option {
	return func(s *Synthesizer) { s.temperature = t }
}

// WithAllowedPackages replaces the import allow-list.
func WithAllowedPackages(pkgs []string) Option {
	return func(s *Synthesizer) { s.allowed = allowSet(pkgs) }
}

// NewSynthesizer creates a Synthesizer. The client should already carry the
// retry policy; Synthesize does not retry on its own.
func NewSynthesizer(client llm.Client, prompts PromptRenderer, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		client:  client,
		prompts: prompts,
		allowed: allowSet(config.DefaultAllowedPackages),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func allowSet(pkgs []string) map[string]bool {
	m := make(map[string]bool, len(pkgs))
	for _, p := range pkgs {
		m[p] = true
	}
	return m
}

// Synthesize implements FunctionSynthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, name, signature string, ns *Namespace) (*SynthesizedFunction, error) {
	ctx, span := tracer().Start(ctx, "synth.synthesize", trace.WithAttributes(
		attribute.String("synth.function", name),
	))
	defer span.End()

	fn, err := s.synthesize(ctx, name, signature, ns)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.SynthesisError("synthesis of %s failed: %v", name, err)
		return nil, err
	}
	return fn, nil
}

func (s *Synthesizer) synthesize(ctx context.Context, name, signature string, ns *Namespace) (*SynthesizedFunction, error) {
	logging.SynthesisDebug("synthesizing %s from %q", name, signature)

	prompt, err := s.prompts.FunctionPrompt(name, signature, HelperHeaders(ns))
	if err != nil {
		return nil, fmt.Errorf("render function prompt for %s: %w", name, err)
	}

	reply, err := s.client.Complete(ctx, llm.Request{
		Prompt:      prompt,
		Model:       s.model,
		Temperature: s.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("complete %s: %w", name, err)
	}

	block, err := ExtractCodeBlock(reply)
	if err != nil {
		var mre *MalformedResponseError
		if errors.As(err, &mre) {
			mre.Name = name
		}
		return nil, err
	}

	def, err := ParseDefinition(name, block, func(p string) bool { return s.allowed[p] })
	if err != nil {
		return nil, err
	}

	logging.Synthesis("synthesized %s (%d bytes, %d imports)", name, len(def.Decl), len(def.Imports))
	return &SynthesizedFunction{
		Name:       name,
		Signature:  signature,
		Definition: *def,
	}, nil
}

// ParseDefinition extracts the declaration of func name from a code block.
// Other declarations in the block are dropped. Imports outside allowed fail
// with a SandboxViolationError; only imports the declaration uses are kept.
func ParseDefinition(name, block string, allowed func(string) bool) (*Definition, error) {
	ps, err := parseSource(block)
	if err != nil {
		return nil, &MalformedResponseError{Name: name, Reason: "code block does not parse", Err: err}
	}

	var decl *ast.FuncDecl
	for _, d := range ps.file.Decls {
		switch x := d.(type) {
		case *ast.FuncDecl:
			if x.Recv == nil && x.Name.Name == name && decl == nil {
				decl = x
				continue
			}
			logging.SynthesisWarn("dropping extra declaration %s in reply for %s", x.Name.Name, name)
		case *ast.GenDecl:
			if len(x.Specs) > 0 {
				if _, isImport := x.Specs[0].(*ast.ImportSpec); isImport {
					continue
				}
			}
			logging.SynthesisWarn("dropping %s declaration in reply for %s", x.Tok, name)
		}
	}
	if decl == nil {
		return nil, &UnresolvableNameError{Name: name, Reason: "reply does not declare the function"}
	}

	used := selectorPackages(decl)
	var imports []string
	for _, spec := range ps.file.Imports {
		p, err := strconv.Unquote(spec.Path.Value)
		if err != nil {
			return nil, &MalformedResponseError{Name: name, Reason: "bad import path", Err: err}
		}
		if !allowed(p) {
			return nil, &SandboxViolationError{Name: name, Import: p}
		}
		// dot imports would make package members look like missing helpers
		if spec.Name != nil && spec.Name.Name == "." {
			return nil, &MalformedResponseError{Name: name, Reason: fmt.Sprintf("dot import of %q", p)}
		}
		local := path.Base(p)
		if spec.Name != nil {
			local = spec.Name.Name
		}
		if used[local] {
			imports = append(imports, ps.text(spec))
		}
	}

	start := decl.Pos()
	if decl.Doc != nil {
		start = decl.Doc.Pos()
	}
	declText := ps.src[ps.fset.Position(start).Offset:ps.fset.Position(decl.End()).Offset]

	header := *decl
	header.Doc = nil
	header.Body = nil

	return &Definition{
		Name:    name,
		Source:  block,
		Decl:    declText,
		Header:  ps.render(&header),
		Doc:     firstLine(decl.Doc),
		Imports: imports,
	}, nil
}

// selectorPackages collects unresolved identifiers used as selector operands,
// i.e. the package names a declaration refers to.
func selectorPackages(decl *ast.FuncDecl) map[string]bool {
	used := make(map[string]bool)
	ast.Inspect(decl, func(n ast.Node) bool {
		sel, ok := n.(*ast.SelectorExpr)
		if !ok {
			return true
		}
		//nolint:staticcheck // file-local resolution is all that is needed
		if id, ok := sel.X.(*ast.Ident); ok && id.Obj == nil {
			used[id.Name] = true
		}
		return true
	})
	return used
}

func firstLine(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}
	text := strings.TrimSpace(doc.Text())
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return text
}

// HelperHeaders lists the synthesized functions already in ns, one header per
// line with the first doc line appended as a comment.
func HelperHeaders(ns *Namespace) []string {
	if ns == nil {
		return nil
	}
	var out []string
	for _, fn := range ns.Synthesized() {
		h := fn.Definition.Header
		if fn.Definition.Doc != "" {
			h += " // " + fn.Definition.Doc
		}
		out = append(out, h)
	}
	return out
}
