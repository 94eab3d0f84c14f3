package toolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Registry holds the tools available to one runtime, in the order they
// were registered — the model's tool list is order-sensitive for some
// providers, so insertion order is preserved rather than using plain map
// iteration.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]Tool
	order   []string
	schemas sync.Map // name -> *jsonschema.Schema
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Tool)}
}

// Register adds tool, replacing any existing tool under the same name in
// place (keeping its original position in Order).
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := t.Name()
	if _, exists := r.byName[name]; !exists {
		r.order = append(r.order, name)
	}
	r.byName[name] = t
	r.schemas.Delete(name)
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[name]; !ok {
		return
	}
	delete(r.byName, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.schemas.Delete(name)
}

// Get returns the tool registered under name, if any.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byName[name]
	return t, ok
}

// List returns every registered tool in insertion order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.byName[n])
	}
	return out
}

func (r *Registry) compiledSchema(t Tool) (*jsonschema.Schema, error) {
	if cached, ok := r.schemas.Load(t.Name()); ok {
		return cached.(*jsonschema.Schema), nil
	}
	compiled, err := jsonschema.CompileString(t.Name()+".schema.json", string(t.Schema()))
	if err != nil {
		return nil, err
	}
	r.schemas.Store(t.Name(), compiled)
	return compiled, nil
}

// Dispatch looks up name, validates args against its JSON schema, and
// executes it. A missing tool, an unparsable argument payload, or a
// schema violation is reported as the matching closed-set error Kind
// rather than a Go error — callers feed Result.Content straight back to
// the model as the tool-result message.
func (r *Registry) Dispatch(ctx context.Context, inv Invocation, name string, args json.RawMessage) Result {
	r.mu.RLock()
	t, ok := r.byName[name]
	r.mu.RUnlock()
	if !ok {
		return Err(KindNotFound, fmt.Sprintf("no such tool: %s", name))
	}

	var decoded any
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, &decoded); err != nil {
		return Err(KindParseError, fmt.Sprintf("invalid arguments for %s: %v", name, err))
	}

	schema, err := r.compiledSchema(t)
	if err != nil {
		return Err(KindValidateError, fmt.Sprintf("schema compile error for %s: %v", name, err))
	}
	if err := schema.Validate(decoded); err != nil {
		return Err(KindValidateError, fmt.Sprintf("arguments for %s failed validation: %v", name, err))
	}

	return t.Execute(ctx, inv, args)
}
