package synth

import (
	"context"
	"fmt"
	"strings"
)

type testVector struct {
	X, Y float64
}

func testAPI() *HostAPI {
	return &HostAPI{
		ImportPath: "swarm/robot",
		Types:      map[string]any{"Vector": (*testVector)(nil)},
		Capabilities: []Capability{
			{Name: "getSelfPosition", Signature: "func() Vector", Doc: "current position", Func: func() testVector { return testVector{X: 1, Y: 2} }},
			{Name: "getSelfID", Signature: "func() int", Doc: "robot id", Func: func() int { return 7 }},
		},
	}
}

// fakeSynthesizer serves declarations from a table keyed by name.
type fakeSynthesizer struct {
	decls  map[string]string
	errs   map[string]error
	calls  []string
	seenNS []int
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, name, signature string, ns *Namespace) (*SynthesizedFunction, error) {
	f.calls = append(f.calls, name)
	f.seenNS = append(f.seenNS, len(ns.Synthesized()))
	if err := f.errs[name]; err != nil {
		return nil, err
	}
	decl, ok := f.decls[name]
	if !ok {
		return nil, fmt.Errorf("no canned declaration for %s", name)
	}
	block := "```go\n" + decl + "\n```"
	code, err := ExtractCodeBlock(block)
	if err != nil {
		return nil, err
	}
	def, err := ParseDefinition(name, code, func(string) bool { return true })
	if err != nil {
		return nil, err
	}
	return &SynthesizedFunction{Name: name, Signature: signature, Definition: *def}, nil
}

// recordingBinder records bind calls without evaluating anything.
type recordingBinder struct {
	bindFunc func(ns *Namespace, fns []*SynthesizedFunction) error
	calls    int
	names    [][]string
}

func (b *recordingBinder) Bind(ns *Namespace, fns []*SynthesizedFunction) error {
	b.calls++
	var names []string
	for _, fn := range fns {
		names = append(names, fn.Name)
	}
	b.names = append(b.names, names)
	if b.bindFunc != nil {
		return b.bindFunc(ns, fns)
	}
	return nil
}

// stubPrompts renders a minimal prompt so tests can assert on its content.
type stubPrompts struct{}

func (stubPrompts) FunctionPrompt(name, signature string, helpers []string) (string, error) {
	return fmt.Sprintf("write %s for %s\nhelpers:\n%s", name, signature, strings.Join(helpers, "\n")), nil
}

func fenced(code string) string {
	return "Here you go:\n```go\n" + code + "\n```\n"
}
