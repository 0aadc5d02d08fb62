// Package exectest provides a fake command runner for tests.
package exectest

import (
	"context"
	"strings"
	"sync"

	"github.com/SacrilegeWasTaken/olovebar-tools/internal/exec"
)

// Call is a recorded command invocation.
type Call struct {
	Name string
	Args []string
}

// String renders the call the way it would be typed in a shell.
func (c Call) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// HandlerFunc simulates a command. It may create files the real tool would produce.
type HandlerFunc func(args []string) (string, error)

// Runner records every command and dispatches it to a per-command handler.
// Commands without a handler succeed with empty output.
type Runner struct {
	mu       sync.Mutex
	calls    []Call
	handlers map[string]HandlerFunc
}

var _ exec.CommandRunner = &Runner{}

func NewRunner() *Runner {
	return &Runner{handlers: map[string]HandlerFunc{}}
}

// Handle registers the handler for the named command.
func (r *Runner) Handle(name string, h HandlerFunc) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
	return r
}

func (r *Runner) RunCommand(ctx context.Context, path string, args ...string) (string, error) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Name: path, Args: append([]string(nil), args...)})
	h := r.handlers[path]
	r.mu.Unlock()

	if h == nil {
		return "", nil
	}
	return h(args)
}

// Calls returns a copy of the recorded calls.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsTo returns the recorded calls of the named command.
func (r *Runner) CallsTo(name string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}
