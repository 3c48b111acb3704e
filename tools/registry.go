// Package tools manages the shared tool registry and the per-run snapshot
// executors handed to concurrent agent runs.
package tools

import (
	"context"
	"sort"
	"sync"

	"github.com/GNHua/oneclaw-sub005/errors"
)

// Category groups tools so the host application can enable or disable
// whole capability groups at once.
type Category string

const (
	CategoryWeb        Category = "web"
	CategoryFiles      Category = "files"
	CategoryMessaging  Category = "messaging"
	CategoryScheduling Category = "scheduling"
)

// Handler executes one tool invocation.
type Handler func(ctx context.Context, args map[string]interface{}) (string, error)

// Tool is one named capability.
type Tool struct {
	Name        string
	Category    Category
	Description string
	Handler     Handler
}

// Registry is the shared, mutable tool set. The host application registers
// tools and toggles categories; runs never read it directly — they take a
// Snapshot, so concurrent registry changes cannot affect an in-flight run.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	disabled map[Category]bool
}

// NewRegistry creates an empty registry with all categories enabled.
func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		disabled: make(map[Category]bool),
	}
}

// Register adds a tool. Returns an error on name conflicts.
func (r *Registry) Register(tool Tool) error {
	if tool.Name == "" {
		return errors.NewValidation("tool requires a name")
	}
	if tool.Handler == nil {
		return errors.NewValidation("tool %s requires a handler", tool.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return errors.Newf("tool already registered: %s", tool.Name)
	}

	r.tools[tool.Name] = tool
	return nil
}

// SetCategoryEnabled toggles a whole capability group. Takes effect for
// future snapshots only; executors already handed out keep their view.
func (r *Registry) SetCategoryEnabled(category Category, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if enabled {
		delete(r.disabled, category)
	} else {
		r.disabled[category] = true
	}
}

// List returns the names of currently active tools in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name, tool := range r.tools {
		if r.disabled[tool.Category] {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot captures the currently active tools into a dedicated executor.
// The copy is taken under the read lock; afterwards the executor is fully
// independent of the registry.
func (r *Registry) Snapshot() *Executor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make(map[string]Tool, len(r.tools))
	for name, tool := range r.tools {
		if r.disabled[tool.Category] {
			continue
		}
		tools[name] = tool
	}

	return &Executor{tools: tools}
}
