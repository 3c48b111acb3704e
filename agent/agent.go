// Package agent defines the contract between the scheduler and the
// reasoning engine that executes job instructions. The engine itself lives
// behind the Executor interface; this package owns the request/response
// shapes and the run configuration resolution.
package agent

import (
	"context"

	"github.com/GNHua/oneclaw-sub005/tools"
)

// Request is one unit of work handed to the executor.
type Request struct {
	// Instruction is the assembled task context: base system prompt,
	// skill metadata, recent memory, then the job's instruction body.
	Instruction string

	// ConversationID is the isolated session the run writes into.
	ConversationID string

	// Tools is the run's private tool executor, bound to a snapshot of
	// the registry taken when the run started.
	Tools *tools.Executor

	// Scheduled marks runs that originate from the scheduler rather than
	// an interactive user, so the engine can adjust its behavior (no
	// clarifying questions, bounded autonomy).
	Scheduled bool

	// Config is the fully resolved run configuration.
	Config RunConfig
}

// Result is the typed outcome of a run. Executors return it alongside a
// nil error on success; failures are ordinary error returns.
type Result struct {
	// Summary is a short human-readable account of what the run did,
	// suitable for the execution log and completion notifications.
	Summary string

	// Output is the full final response, posted back to the origin
	// conversation when one exists.
	Output string

	// Iterations is how many reasoning turns the run consumed.
	Iterations int
}

// Executor runs one scheduled instruction to completion.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// ExecutorFunc adapts a plain function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req Request) (Result, error)

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
