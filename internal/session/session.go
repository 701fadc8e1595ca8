// Package session runs the top-level controller loop: one prompt to the
// model for a task's entry code, recursive synthesis of every helper it
// calls, then persistence of the assembled program.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"swarmcap/internal/artifact"
	"swarmcap/internal/config"
	"swarmcap/internal/llm"
	"swarmcap/internal/logging"
	"swarmcap/internal/prompt"
	"swarmcap/internal/robot"
	"swarmcap/internal/synth"
)

// entryPoint is the function every controller reply must declare.
const entryPoint = "main"

// Session owns the state of one task's conversation with the model. Sessions
// never share state; the client may be shared.
type Session struct {
	task   string
	client llm.Client
	state  *State

	prompts  *prompt.Builder
	resolver *synth.Resolver

	store  *artifact.Store
	ledger *artifact.Ledger

	model           string
	temperature     float64
	maintainSession bool
	includeContext  bool

	now func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithStore persists every assembled program.
func WithStore(store *artifact.Store) Option {
	return func(s *Session) { s.store = store }
}

// WithLedger records every run.
func WithLedger(l *artifact.Ledger) Option {
	return func(s *Session) { s.ledger = l }
}

// WithResolver overrides the resolver built from cfg.
func WithResolver(r *synth.Resolver) Option {
	return func(s *Session) { s.resolver = r }
}

// New creates a session for task whose capabilities are served by host.
func New(cfg *config.Config, task string, host robot.Host, client llm.Client, opts ...Option) (*Session, error) {
	api, err := robot.HostAPI(host, task)
	if err != nil {
		return nil, err
	}
	pkgs := cfg.Synthesis.AllowedPackages
	if len(pkgs) == 0 {
		pkgs = config.DefaultAllowedPackages
	}
	builder, err := prompt.NewBuilder(task, pkgs)
	if err != nil {
		return nil, err
	}

	s := &Session{
		task:            task,
		client:          client,
		state:           NewState(api),
		prompts:         builder,
		model:           cfg.LLM.Model,
		temperature:     cfg.LLM.Temperature,
		maintainSession: cfg.Synthesis.MaintainSession,
		includeContext:  cfg.Synthesis.IncludeContext,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		synthesizer := synth.NewSynthesizer(client, builder,
			synth.WithModel(cfg.LLM.Model),
			synth.WithTemperature(cfg.LLM.FunctionTemperature),
			synth.WithAllowedPackages(pkgs),
		)
		sandbox := synth.NewSandbox(api, synth.WithSandboxPackages(pkgs))
		s.resolver = synth.NewResolver(synthesizer, sandbox, cfg.Synthesis.MaxDepth)
	}

	logging.Session("session created for task %s (model=%s, maintain=%v)", task, s.model, s.maintainSession)
	return s, nil
}

// Task returns the task the session generates controllers for.
func (s *Session) Task() string {
	return s.task
}

// State exposes the session state.
func (s *Session) State() *State {
	return s.state
}

// Run asks the model for a controller satisfying instruction, synthesizes
// its helpers and persists the result. An empty instruction uses the task's
// catalog instruction. extraContext is appended to the prompt.
func (s *Session) Run(ctx context.Context, instruction, extraContext string) (*artifact.Artifact, error) {
	run := &artifact.Run{ID: artifact.NewRunID(), Task: s.task, StartedAt: s.now()}
	art, err := s.run(ctx, run.ID, instruction, extraContext)

	run.FinishedAt = s.now()
	run.Status = artifact.StatusOf(err)
	if err != nil {
		run.Error = err.Error()
		logging.SessionError("run %s failed: %v", run.ID, err)
	} else {
		run.ArtifactPath = art.Path
		run.Helpers = len(art.Helpers)
	}
	if s.ledger != nil {
		// ledger failures never fail the run
		if lerr := s.ledger.Record(context.WithoutCancel(ctx), run); lerr != nil {
			logging.SessionError("ledger: %v", lerr)
		}
	}
	return art, err
}

func (s *Session) run(ctx context.Context, runID, instruction, extraContext string) (*artifact.Artifact, error) {
	if instruction == "" {
		task, err := robot.LookupTask(s.task)
		if err != nil {
			return nil, err
		}
		instruction = task.Instruction
	}

	history := ""
	if s.maintainSession {
		history = s.state.History()
	}
	text, err := s.prompts.MainPrompt(instruction, history, extraContext)
	if err != nil {
		return nil, fmt.Errorf("render controller prompt: %w", err)
	}

	logging.SessionDebug("run %s: requesting controller (%d prompt bytes)", runID, len(text))
	reply, err := s.client.Complete(ctx, llm.Request{Prompt: text, Model: s.model, Temperature: s.temperature})
	if err != nil {
		return nil, err
	}

	code, err := synth.ExtractCodeBlock(reply)
	if err != nil {
		return nil, markEntry(err)
	}
	ok, err := synth.DeclaresFunc(code, entryPoint)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &synth.MalformedResponseError{Name: entryPoint, Reason: "controller does not declare func main"}
	}

	ns := s.state.Namespace()
	res, err := s.resolver.Resolve(ctx, code, ns)
	if err != nil {
		return nil, err
	}
	merged, err := ns.With(res.Functions...)
	if err != nil {
		return nil, err
	}

	helpers, err := reachableHelpers(code, merged)
	if err != nil {
		return nil, err
	}
	content, err := artifact.Assemble(code, helpers)
	if err != nil {
		return nil, err
	}

	art := &artifact.Artifact{RunID: runID, Task: s.task, Content: content}
	for _, fn := range helpers {
		art.Helpers = append(art.Helpers, fn.Name)
	}
	if s.store != nil {
		art.Path, err = s.store.Write(s.task, content)
		if err != nil {
			return nil, err
		}
	}

	s.state.setNamespace(merged)
	entry := code
	if s.includeContext && extraContext != "" {
		entry = extraContext + "\n" + code
	}
	s.state.appendHistory(entry)

	logging.Session("run %s: %d new helpers %v, %d total", runID, len(res.Functions), res.Names(), len(helpers))
	return art, nil
}

// reachableHelpers returns the synthesized functions in ns that code calls,
// directly or through other helpers, in namespace order. Names code declares
// itself are skipped, so the program never holds two declarations of one name.
func reachableHelpers(code string, ns *synth.Namespace) ([]*synth.SynthesizedFunction, error) {
	declared, err := synth.DeclaredFuncs(code)
	if err != nil {
		return nil, err
	}
	skip := make(map[string]bool, len(declared))
	for _, name := range declared {
		skip[name] = true
	}

	analysis, err := synth.Analyze(code)
	if err != nil {
		return nil, err
	}
	reached := make(map[string]bool)
	queue := analysis.Names()
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if skip[name] || reached[name] {
			continue
		}
		e, ok := ns.Lookup(name)
		if !ok || e.Kind != synth.KindSynthesized {
			continue
		}
		reached[name] = true
		calls, err := synth.Analyze(e.Function.Definition.Decl)
		if err != nil {
			return nil, err
		}
		queue = append(queue, calls.Names()...)
	}

	var out []*synth.SynthesizedFunction
	for _, fn := range ns.Synthesized() {
		if reached[fn.Name] {
			out = append(out, fn)
		}
	}
	return out, nil
}

// markEntry attributes an extraction failure to the controller.
func markEntry(err error) error {
	var me *synth.MalformedResponseError
	if errors.As(err, &me) && me.Name == "" {
		me.Name = entryPoint
	}
	return err
}
