package aggregator

import (
	"context"
	"fmt"
	"sync"

	"stride/internal/config"
	"stride/pkg/logging"

	"golang.org/x/sync/errgroup"
)

// Orchestrator owns the full set of tool-server sessions. It starts one
// session per definition, isolating each server's failure from the others,
// aggregates every discovered tool into the registry, and guarantees
// deterministic teardown through Cleanup. Construct one explicitly and pass
// it to whatever component needs the tools; there is no package-level
// instance.
type Orchestrator struct {
	factory  SessionFactory
	parallel bool

	mu       sync.Mutex
	state    OrchestratorState
	sessions []ToolSession
	failures []ServerFailure
	cleaned  bool

	registry *Registry
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithSessionFactory overrides the production stdio session factory.
func WithSessionFactory(factory SessionFactory) OrchestratorOption {
	return func(o *Orchestrator) { o.factory = factory }
}

// WithParallelStartup starts servers concurrently instead of in definition
// order. Failure isolation is identical in both modes; consumers must not
// assume tools from one server become available before another's.
func WithParallelStartup(parallel bool) OrchestratorOption {
	return func(o *Orchestrator) { o.parallel = parallel }
}

// NewOrchestrator creates an orchestrator. Without options it spawns real
// stdio subprocess sessions and starts them sequentially.
func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		factory:  NewStdioSessionFactory(),
		state:    OrchestratorIdle,
		registry: NewRegistry(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the orchestrator's current lifecycle state.
func (o *Orchestrator) State() OrchestratorState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Registry returns the aggregate tool registry.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Failed returns the servers that failed during Start, in the order their
// failures were recorded.
func (o *Orchestrator) Failed() []ServerFailure {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]ServerFailure, len(o.failures))
	copy(out, o.failures)
	return out
}

// Start brings up every configured server and returns the aggregated tools.
// One server's failure never prevents attempting the next: failed servers
// are recorded, their sessions closed, and startup continues. Only when
// every server fails does Start return an AllServersFailedError. With some
// failures and a non-empty aggregate the caller proceeds with reduced
// capability and can inspect Failed().
func (o *Orchestrator) Start(ctx context.Context, defs []config.ServerDefinition) ([]*Tool, error) {
	o.mu.Lock()
	if o.state != OrchestratorIdle {
		state := o.state
		o.mu.Unlock()
		return nil, fmt.Errorf("orchestrator already started (state %s)", state)
	}
	o.state = OrchestratorStarting
	o.mu.Unlock()

	if o.parallel {
		g, gctx := errgroup.WithContext(ctx)
		for _, def := range defs {
			def := def
			g.Go(func() error {
				o.startServer(gctx, def)
				// Always nil: one server's failure must not cancel the rest.
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, def := range defs {
			if err := ctx.Err(); err != nil {
				// Cancellation is another failure mode: the remaining
				// definitions take the same recorded-failure path.
				o.recordFailure(def.Name, err)
				continue
			}
			o.startServer(ctx, def)
		}
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	tools := o.registry.List()
	switch {
	case len(tools) == 0 && len(o.failures) > 0:
		o.state = OrchestratorClosed
		return nil, &AllServersFailedError{Failures: o.failures}
	case len(o.failures) > 0:
		o.state = OrchestratorPartiallyReady
		for _, f := range o.failures {
			logging.Warn("Orchestrator", "Continuing without server %s: %v", f.Name, f.Err)
		}
		logging.Info("Orchestrator", "Started with reduced capability: %d tools, %d of %d servers failed",
			len(tools), len(o.failures), len(defs))
		return tools, nil
	default:
		o.state = OrchestratorReady
		logging.Info("Orchestrator", "Started %d servers exposing %d tools", len(defs), len(tools))
		return tools, nil
	}
}

// startServer runs the full startup flow for one definition: spawn and
// handshake, discover, adapt and register. Any failure closes the session
// and records the server in the failed list.
func (o *Orchestrator) startServer(ctx context.Context, def config.ServerDefinition) {
	session := o.factory(def)

	o.mu.Lock()
	o.sessions = append(o.sessions, session)
	o.mu.Unlock()

	if err := session.Initialize(ctx); err != nil {
		logging.Error("Orchestrator", err, "Server %s failed to start", def.Name)
		o.closeFailed(session)
		o.recordFailure(def.Name, err)
		return
	}

	tools, err := session.Discover(ctx)
	if err != nil {
		logging.Error("Orchestrator", err, "Server %s failed tool discovery", def.Name)
		o.closeFailed(session)
		o.recordFailure(def.Name, err)
		return
	}

	for _, tool := range tools {
		adapted := adaptTool(def.Name, tool, session)
		if err := o.registry.Register(adapted); err != nil {
			logging.Warn("Orchestrator", "Server %s reported duplicate tool %s, keeping the first", def.Name, tool.Name)
		}
	}
	logging.Info("Orchestrator", "Server %s ready with %d tools", def.Name, len(tools))
}

func (o *Orchestrator) closeFailed(session ToolSession) {
	if err := session.Close(); err != nil {
		logging.Warn("Orchestrator", "Closing failed server %s: %v", session.Name(), err)
	}
}

func (o *Orchestrator) recordFailure(name string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, ServerFailure{Name: name, Err: err})
}

// Cleanup closes every owned session regardless of its state. Individual
// close errors are collected in logs, never returned: teardown during
// shutdown is expected, so it always appears to succeed. Cleanup is
// idempotent and safe after a partial or failed Start.
func (o *Orchestrator) Cleanup() error {
	o.mu.Lock()
	if o.cleaned {
		o.mu.Unlock()
		return nil
	}
	o.cleaned = true
	o.state = OrchestratorClosing
	sessions := o.sessions
	o.mu.Unlock()

	// Reverse acquisition order, matching per-session resource release.
	for i := len(sessions) - 1; i >= 0; i-- {
		if err := sessions[i].Close(); err != nil {
			logging.Warn("Orchestrator", "Error closing server %s during cleanup: %v", sessions[i].Name(), err)
		}
	}

	o.mu.Lock()
	o.state = OrchestratorClosed
	o.mu.Unlock()

	logging.Debug("Orchestrator", "Cleanup complete, %d sessions closed", len(sessions))
	return nil
}
