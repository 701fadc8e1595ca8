package synth

import (
	"fmt"
	"go/token"
	"go/types"
	"reflect"
	"sort"
)

// Kind classifies a namespace entry.
type Kind int

const (
	KindBuiltin     Kind = iota // predeclared Go identifiers, reserved names, host types
	KindCapability              // host-provided sensor/actuator binding
	KindSynthesized             // function produced by synthesis
)

func (k Kind) String() string {
	switch k {
	case KindBuiltin:
		return "builtin"
	case KindCapability:
		return "capability"
	case KindSynthesized:
		return "synthesized"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Capability is one host function exposed to generated code under Name.
type Capability struct {
	Name      string
	Signature string // Go signature shown in prompts, e.g. "func() Vector"
	Doc       string
	Func      any
}

// HostAPI is the fixed set of bindings a host threads through every sandbox.
// Types maps exported type names to typed nil pointers, e.g. (*Vector)(nil).
type HostAPI struct {
	ImportPath   string
	Types        map[string]any
	Capabilities []Capability
}

// TypeNames returns the host type names in sorted order.
func (h *HostAPI) TypeNames() []string {
	if h == nil {
		return nil
	}
	names := make([]string, 0, len(h.Types))
	for name := range h.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Entry is one named binding in a Namespace.
type Entry struct {
	Name       string
	Kind       Kind
	Capability *Capability
	Function   *SynthesizedFunction
}

// Fixed reports whether synthesis may never replace the entry.
func (e *Entry) Fixed() bool {
	return e.Kind != KindSynthesized
}

// reservedNames are entry points the generated program itself declares.
var reservedNames = []string{"main", "init"}

// Namespace is an ordered mapping from identifier to binding.
type Namespace struct {
	api     *HostAPI
	order   []string
	entries map[string]*Entry
}

// NewNamespace builds the base namespace for a session: the Go universe,
// the reserved entry points, host types and host capabilities.
func NewNamespace(api *HostAPI) *Namespace {
	ns := &Namespace{
		api:     api,
		entries: make(map[string]*Entry),
	}
	for _, name := range types.Universe.Names() {
		ns.add(&Entry{Name: name, Kind: KindBuiltin})
	}
	for _, name := range reservedNames {
		ns.add(&Entry{Name: name, Kind: KindBuiltin})
	}
	if api != nil {
		for _, name := range api.TypeNames() {
			ns.add(&Entry{Name: name, Kind: KindBuiltin})
		}
		for i := range api.Capabilities {
			ns.add(&Entry{Name: api.Capabilities[i].Name, Kind: KindCapability, Capability: &api.Capabilities[i]})
		}
	}
	return ns
}

func (ns *Namespace) add(e *Entry) {
	if _, ok := ns.entries[e.Name]; !ok {
		ns.order = append(ns.order, e.Name)
	}
	ns.entries[e.Name] = e
}

// API returns the host bindings the namespace was built from.
func (ns *Namespace) API() *HostAPI {
	return ns.api
}

// Contains reports whether name is bound.
func (ns *Namespace) Contains(name string) bool {
	if ns == nil {
		return false
	}
	_, ok := ns.entries[name]
	return ok
}

// Lookup returns the entry for name.
func (ns *Namespace) Lookup(name string) (*Entry, bool) {
	if ns == nil {
		return nil, false
	}
	e, ok := ns.entries[name]
	return e, ok
}

// Len returns the number of entries.
func (ns *Namespace) Len() int {
	return len(ns.order)
}

// Names returns every bound name in definition order.
func (ns *Namespace) Names() []string {
	return append([]string(nil), ns.order...)
}

// Define adds fn, replacing an earlier synthesized entry of the same name in
// place. Builtins and capabilities are never replaced.
func (ns *Namespace) Define(fn *SynthesizedFunction) error {
	if e, ok := ns.entries[fn.Name]; ok && e.Fixed() {
		return fmt.Errorf("%w: cannot redefine %s %q", ErrFixedEntry, e.Kind, fn.Name)
	}
	ns.add(&Entry{Name: fn.Name, Kind: KindSynthesized, Function: fn})
	return nil
}

// Clone returns an independent copy. Entries are shared by pointer and are
// never mutated through the namespace.
func (ns *Namespace) Clone() *Namespace {
	c := &Namespace{
		api:     ns.api,
		order:   append([]string(nil), ns.order...),
		entries: make(map[string]*Entry, len(ns.entries)),
	}
	for k, v := range ns.entries {
		c.entries[k] = v
	}
	return c
}

// With returns a copy extended by fns. The receiver is unchanged.
func (ns *Namespace) With(fns ...*SynthesizedFunction) (*Namespace, error) {
	c := ns.Clone()
	for _, fn := range fns {
		if err := c.Define(fn); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Synthesized lists synthesized functions in definition order.
func (ns *Namespace) Synthesized() []*SynthesizedFunction {
	var out []*SynthesizedFunction
	for _, name := range ns.order {
		if e := ns.entries[name]; e.Kind == KindSynthesized {
			out = append(out, e.Function)
		}
	}
	return out
}

// Callable returns the materialized function for name, if any.
func (ns *Namespace) Callable(name string) (reflect.Value, bool) {
	e, ok := ns.Lookup(name)
	if !ok || e.Kind != KindSynthesized || !e.Function.Callable.IsValid() {
		return reflect.Value{}, false
	}
	return e.Function.Callable, true
}

// Exists reports whether name is a valid identifier bound in ns. It never
// evaluates code; invalid or absent names are simply missing.
func Exists(name string, ns *Namespace) bool {
	if !token.IsIdentifier(name) {
		return false
	}
	return ns.Contains(name)
}
