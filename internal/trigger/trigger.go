// Package trigger implements the pluggable lifecycle-hook runtime of
// spec.md §4.3: it resolves a hook name to a user-supplied Handler and
// runs it with a timeout, returning the handler's response to the caller,
// which applies any mutation it carries.
package trigger

import (
	"context"
	"time"
)

// Hook is one of the recognized lifecycle hook names from spec.md §4.3.
type Hook string

const (
	HookUserMigration       Hook = "UserMigration"
	HookPreSignUp           Hook = "PreSignUp"
	HookPostConfirmation    Hook = "PostConfirmation"
	HookPreAuthentication   Hook = "PreAuthentication"
	HookPostAuthentication  Hook = "PostAuthentication"
	HookPreTokenGeneration  Hook = "PreTokenGeneration"
	HookCustomMessage       Hook = "CustomMessage"
	HookCustomEmailSender   Hook = "CustomEmailSender"
	HookCustomSMSSender     Hook = "CustomSMSSender"
)

// defaultTimeout is the per-hook timeout from spec.md §4.3 ("default 5s").
const defaultTimeout = 5 * time.Second

// Event is the uniform envelope passed to every hook invocation.
type Event struct {
	UserPoolID    string                 `json:"userPoolId"`
	UserName      string                 `json:"userName"`
	CallerContext map[string]string      `json:"callerContext,omitempty"`
	Request       map[string]any         `json:"request"`
	Response      map[string]any         `json:"response,omitempty"`
}

// Handler is an opaque invocable lifecycle hook, per design note §9:
// "user-provided handlers can be loaded from a configuration document
// declaring script source or external process endpoints; the runtime
// treats them as opaque invocables with a timeout."
type Handler interface {
	Invoke(ctx context.Context, event Event) (map[string]any, error)
}

// FuncHandler adapts a plain Go function into a Handler, for in-process
// embedding and tests.
type FuncHandler func(ctx context.Context, event Event) (map[string]any, error)

func (f FuncHandler) Invoke(ctx context.Context, event Event) (map[string]any, error) {
	return f(ctx, event)
}

// Runtime binds Hook names to Handlers for one pool and runs them with
// a per-hook timeout.
type Runtime struct {
	handlers map[Hook]Handler
	timeout  time.Duration
}

// New creates a Runtime with the given hook bindings. A nil/zero
// timeout falls back to the spec's 5s default.
func New(bindings map[Hook]Handler, timeout time.Duration) *Runtime {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if bindings == nil {
		bindings = map[Hook]Handler{}
	}
	return &Runtime{handlers: bindings, timeout: timeout}
}

// Enabled reports whether the pool binds hook (spec.md §4.3: enabled(hook)).
func (r *Runtime) Enabled(hook Hook) bool {
	_, ok := r.handlers[hook]
	return ok
}

// Invoke runs the handler bound to hook, if any, within the runtime's
// timeout. Callers must check Enabled first if "unbound" and "bound but
// erroring" need to be told apart; Invoke on an unbound hook returns
// (nil, nil) so call sites can treat it as a no-op default path.
func (r *Runtime) Invoke(ctx context.Context, hook Hook, event Event) (map[string]any, error) {
	h, ok := r.handlers[hook]
	if !ok {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		resp map[string]any
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := h.Invoke(ctx, event)
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
