package synth

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"swarmcap/internal/logging"
)

// tracer is looked up per span so a provider installed after package init
// still receives synthesis spans.
func tracer() trace.Tracer {
	return otel.Tracer("swarmcap/internal/synth")
}

// Resolver finds the helpers a block of code calls but nobody defines,
// synthesizes each one depth-first, then binds the whole tree at once.
type Resolver struct {
	synth    FunctionSynthesizer
	binder   Binder
	maxDepth int
}

// NewResolver creates a resolver. maxDepth bounds the nesting of synthesized
// helpers; 0 means unlimited.
func NewResolver(s FunctionSynthesizer, b Binder, maxDepth int) *Resolver {
	return &Resolver{synth: s, binder: b, maxDepth: maxDepth}
}

// Resolve synthesizes every missing helper reachable from code. ns is not
// modified; the caller merges the returned functions. On error nothing is
// returned.
func (r *Resolver) Resolve(ctx context.Context, code string, ns *Namespace) (*Resolution, error) {
	ctx, span := tracer().Start(ctx, "synth.resolve")
	defer span.End()

	res := &Resolution{}
	work := ns.Clone()
	if _, err := r.resolve(ctx, code, work, 1, res); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if len(res.Functions) > 0 {
		if err := r.binder.Bind(ns, res.Functions); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("bind synthesized functions: %w", err)
		}
	}

	span.SetAttributes(attribute.Int("synth.functions", len(res.Functions)))
	logging.Synthesis("resolved %d new functions: %v", len(res.Functions), res.Names())
	return res, nil
}

// resolve handles one level. A function is defined in work before its own
// body is analyzed, so self and mutual references terminate. It returns the
// functions created directly at this level.
func (r *Resolver) resolve(ctx context.Context, code string, work *Namespace, depth int, res *Resolution) ([]*SynthesizedFunction, error) {
	analysis, err := Analyze(code)
	if err != nil {
		return nil, err
	}

	var level []*SynthesizedFunction
	for _, site := range analysis.CallSites() {
		if Exists(site.Name, work) {
			continue
		}
		if r.maxDepth > 0 && depth > r.maxDepth {
			return nil, fmt.Errorf("%w: %s at depth %d (max %d)", ErrDepthExceeded, site.Name, depth, r.maxDepth)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		logging.SynthesisDebug("depth %d: %s missing, signature %q", depth, site.Name, site.Signature)
		fn, err := r.synth.Synthesize(ctx, site.Name, site.Signature, work)
		if err != nil {
			return nil, err
		}
		fn.Depth = depth
		if err := work.Define(fn); err != nil {
			return nil, err
		}

		children, err := r.resolve(ctx, fn.Definition.Decl, work, depth+1, res)
		if err != nil {
			return nil, err
		}
		if len(children) > 0 {
			fn.Rebound = true
			for _, c := range children {
				fn.Children = append(fn.Children, c.Name)
			}
			logging.SynthesisDebug("%s rebinds after children %v", fn.Name, fn.Children)
		}

		res.Functions = append(res.Functions, fn)
		level = append(level, fn)
	}
	return level, nil
}
