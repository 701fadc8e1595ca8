package synth

import (
	"reflect"
)

// Definition is the source of one synthesized function.
type Definition struct {
	Name    string
	Source  string   // extracted code block, verbatim
	Decl    string   // the function's own declaration including its doc comment
	Header  string   // declaration without body, used to list helpers in prompts
	Doc     string   // first line of the doc comment
	Imports []string // import specs the declaration needs, e.g. `"math"` or `r "math/rand"`
}

// SynthesizedFunction is the result of one synthesis request. It starts
// unbound; Callable is filled in when a Binder materializes it.
type SynthesizedFunction struct {
	Name       string
	Signature  string // call or assignment text the model was prompted with
	Definition Definition
	Callable   reflect.Value
	Depth      int

	// Rebound is set when children were synthesized for this function, so
	// its callable was materialized after they existed.
	Rebound  bool
	Children []string
}

// Bound reports whether the function has a callable.
func (f *SynthesizedFunction) Bound() bool {
	return f.Callable.IsValid()
}

// Func returns the callable as an interface value for type assertion.
func (f *SynthesizedFunction) Func() any {
	if !f.Callable.IsValid() {
		return nil
	}
	return f.Callable.Interface()
}

// Resolution is the outcome of resolving one code block. Functions are
// ordered bottom-up: every function follows the children it depends on.
type Resolution struct {
	Functions []*SynthesizedFunction
}

// Callables maps each new name to its materialized function.
func (r *Resolution) Callables() map[string]reflect.Value {
	out := make(map[string]reflect.Value, len(r.Functions))
	for _, fn := range r.Functions {
		out[fn.Name] = fn.Callable
	}
	return out
}

// Sources maps each new name to its source as returned by the model.
func (r *Resolution) Sources() map[string]string {
	out := make(map[string]string, len(r.Functions))
	for _, fn := range r.Functions {
		out[fn.Name] = fn.Definition.Source
	}
	return out
}

// Names returns the new names in resolution order.
func (r *Resolution) Names() []string {
	names := make([]string, len(r.Functions))
	for i, fn := range r.Functions {
		names[i] = fn.Name
	}
	return names
}
