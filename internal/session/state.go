package session

import (
	"strings"
	"sync"

	"swarmcap/internal/synth"
)

// State is what one session carries between runs: the text history fed back
// into later prompts and the namespace synthesized helpers accumulate in.
type State struct {
	mu      sync.Mutex
	history strings.Builder
	ns      *synth.Namespace
	base    *synth.Namespace
}

// NewState starts from a namespace holding only the host bindings.
func NewState(api *synth.HostAPI) *State {
	base := synth.NewNamespace(api)
	return &State{ns: base.Clone(), base: base}
}

// History returns the accumulated history text.
func (s *State) History() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.String()
}

// Namespace returns the current namespace. Callers must not Define into it.
func (s *State) Namespace() *synth.Namespace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ns
}

func (s *State) appendHistory(entry string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.WriteString("\n")
	s.history.WriteString(entry)
}

func (s *State) setNamespace(ns *synth.Namespace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ns = ns
}

// Reset clears the history and drops every synthesized function.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.Reset()
	s.ns = s.base.Clone()
}
