package tools

import (
	"context"
	"sync"

	"github.com/GNHua/oneclaw-sub005/errors"
)

// Executor is a point-in-time view of the registry bound to a single run.
// It must be released when the run ends; a released executor refuses
// further invocations.
type Executor struct {
	mu       sync.Mutex
	tools    map[string]Tool
	released bool
}

// Invoke runs the named tool from the snapshot.
func (e *Executor) Invoke(ctx context.Context, name string, args map[string]interface{}) (string, error) {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return "", errors.Newf("tool executor already released")
	}
	tool, ok := e.tools[name]
	e.mu.Unlock()

	if !ok {
		return "", errors.NewNotFound("tool not available: %s", name)
	}

	return tool.Handler(ctx, args)
}

// Names returns the snapshot's tool names. Used to describe the run's
// capabilities in the instruction context.
func (e *Executor) Names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, 0, len(e.tools))
	for name := range e.tools {
		names = append(names, name)
	}
	return names
}

// Release frees the snapshot. Safe to call more than once; the cleanup
// path calls it both on the normal exit and from the panic recovery.
func (e *Executor) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.released {
		return
	}
	e.released = true
	e.tools = nil
}

// Released reports whether Release has been called.
func (e *Executor) Released() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.released
}
