// Package subagent implements the Task/CreateSubagent tool pair (C9): a
// labor market of named sub-agent specs, and the nested step-loop each
// Task invocation spins up against a fresh context file and its own Wire.
package subagent

import "sync"

// Spec describes one callable sub-agent: its system prompt and step
// budget. Dynamic specs (registered at runtime via CreateSubagent) share
// the parent's labor market when their own Task nests further; fixed
// specs (loaded from an AgentSpec's subagents map) get a private one.
type Spec struct {
	Name         string
	Description  string
	SystemPrompt string
	MaxSteps     int
	Dynamic      bool
}

// LaborMarket is the lookup table of sub-agent specs available to one
// runtime.
type LaborMarket struct {
	mu    sync.RWMutex
	specs map[string]Spec
}

// NewLaborMarket constructs an empty market.
func NewLaborMarket() *LaborMarket {
	return &LaborMarket{specs: make(map[string]Spec)}
}

// Register adds or replaces spec under spec.Name.
func (m *LaborMarket) Register(spec Spec) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.specs[spec.Name] = spec
}

// Lookup returns the spec registered under name, if any.
func (m *LaborMarket) Lookup(name string) (Spec, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.specs[name]
	return s, ok
}

// Fork returns a private snapshot of the market: mutations to the fork
// (or the original, afterward) are independent. Used when a fixed
// sub-agent's own nested runtime needs "its own labor market" per spec.
func (m *LaborMarket) Fork() *LaborMarket {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fork := NewLaborMarket()
	for k, v := range m.specs {
		fork.specs[k] = v
	}
	return fork
}
