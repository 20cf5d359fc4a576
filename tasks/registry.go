/*
Package tasks holds the units of deferred work a worker can execute.

Each task is registered under a dotted name and receives its arguments as raw
JSON. Whatever it returns is stored verbatim as the job result.
*/
package tasks

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// Func executes one job
type Func func(ctx context.Context, args json.RawMessage) (any, error)

// Registry maps task names to their implementation
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]Func
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]Func)}
}

// Register adds or replaces a task
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks[name] = fn
}

// Lookup returns the task registered under name
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.tasks[name]
	return fn, ok
}

// Has reports whether name is registered
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Names lists registered task names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
