package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"stride/internal/config"
	"stride/pkg/logging"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// DefaultHandshakeTimeout bounds subprocess startup plus the MCP handshake
// when the caller's context carries no deadline.
const DefaultHandshakeTimeout = 10 * time.Second

// DefaultInvokeTimeout bounds a single tool call when the caller's context
// carries no deadline.
const DefaultInvokeTimeout = 60 * time.Second

// State is the lifecycle state of a session.
type State int

const (
	StateUninitialized State = iota
	StateStarting
	StateReady
	StateClosing
	StateClosed
)

// String makes State satisfy the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateStarting:
		return "starting"
	case StateReady:
		return "ready"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// spawnFunc starts the server subprocess and returns a client speaking MCP
// over its stdio pipes. Tests substitute this to avoid spawning processes.
type spawnFunc func(def config.ServerDefinition) (client.MCPClient, error)

func stdioSpawn(def config.ServerDefinition) (client.MCPClient, error) {
	var envStrings []string
	for k, v := range def.Env {
		envStrings = append(envStrings, fmt.Sprintf("%s=%s", k, v))
	}
	return client.NewStdioMCPClient(def.Command, envStrings, def.Args...)
}

// Session owns one spawned tool server: the running subprocess, its stdio
// transport, the protocol handshake state, and the tool list obtained through
// that protocol. A session is owned exclusively by the orchestrator that
// created it; sessions share no mutable state with each other.
type Session struct {
	def              config.ServerDefinition
	id               string
	handshakeTimeout time.Duration
	invokeTimeout    time.Duration
	spawn            spawnFunc

	mu        sync.RWMutex
	state     State
	client    client.MCPClient
	resources *releaseStack
}

// Option configures a Session.
type Option func(*Session)

// WithHandshakeTimeout overrides the default handshake timeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *Session) { s.handshakeTimeout = d }
}

// WithInvokeTimeout overrides the default per-invocation timeout.
func WithInvokeTimeout(d time.Duration) Option {
	return func(s *Session) { s.invokeTimeout = d }
}

// NewSession creates a session for the given server definition. The
// subprocess is not spawned until Initialize is called.
func NewSession(def config.ServerDefinition, opts ...Option) *Session {
	s := &Session{
		def:              def,
		id:               uuid.NewString(),
		handshakeTimeout: DefaultHandshakeTimeout,
		invokeTimeout:    DefaultInvokeTimeout,
		spawn:            stdioSpawn,
		state:            StateUninitialized,
		resources:        newReleaseStack(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the server name from the definition.
func (s *Session) Name() string { return s.def.Name }

// ID returns the unique session identifier used for log correlation.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Initialize resolves the executable, spawns the subprocess, establishes the
// stdio transport and performs the MCP handshake. Any failure releases every
// partially-acquired resource in reverse order and leaves the session Closed;
// a failed session is never retried and never exposes tools.
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateReady:
		return nil
	case StateUninitialized:
		// proceed
	default:
		return fmt.Errorf("server %s: cannot initialize session in state %s", s.def.Name, s.state)
	}
	s.state = StateStarting

	if _, err := exec.LookPath(s.def.Command); err != nil {
		s.state = StateClosed
		return &CommandNotFoundError{Command: s.def.Command, Err: err}
	}

	logging.Debug("Session", "Spawning %s (session %s): %s %v", s.def.Name, s.id, s.def.Command, s.def.Args)

	mcpClient, err := s.spawn(s.def)
	if err != nil {
		s.state = StateClosed
		return &HandshakeFailedError{Server: s.def.Name, Err: fmt.Errorf("failed to create stdio client: %w", err)}
	}
	s.resources.Push(fmt.Sprintf("process %s", s.def.Command), mcpClient.Close)

	// Handshake with a default timeout when the context has no deadline.
	initCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		initCtx, cancel = context.WithTimeout(ctx, s.handshakeTimeout)
		defer cancel()
	}

	initResult, err := mcpClient.Initialize(initCtx, mcp.InitializeRequest{
		Params: struct {
			ProtocolVersion string                 `json:"protocolVersion"`
			Capabilities    mcp.ClientCapabilities `json:"capabilities"`
			ClientInfo      mcp.Implementation     `json:"clientInfo"`
		}{
			ProtocolVersion: "2024-11-05",
			ClientInfo: mcp.Implementation{
				Name:    "stride",
				Version: "1.0.0",
			},
			Capabilities: mcp.ClientCapabilities{},
		},
	})
	if err != nil {
		logging.Error("Session", err, "Handshake with %s failed", s.def.Name)
		if relErr := s.resources.Release(); relErr != nil {
			logging.Warn("Session", "Releasing resources for failed %s: %v", s.def.Name, relErr)
		}
		s.state = StateClosed
		return &HandshakeFailedError{Server: s.def.Name, Err: err}
	}

	s.client = mcpClient
	s.state = StateReady

	logging.Debug("Session", "Server %s ready (session %s, server reports %s %s)",
		s.def.Name, s.id, initResult.ServerInfo.Name, initResult.ServerInfo.Version)
	if initResult.Capabilities.Tools == nil {
		logging.Warn("Session", "Server %s does not advertise tool support", s.def.Name)
	}

	return nil
}

// Discover issues one tools/list request and returns the reported tools.
// It is called once after a successful Initialize; this design has no dynamic
// re-discovery.
func (s *Session) Discover(ctx context.Context) ([]mcp.Tool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != StateReady || s.client == nil {
		return nil, &DiscoveryFailedError{Server: s.def.Name, Err: ErrSessionNotReady}
	}

	result, err := s.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, &DiscoveryFailedError{Server: s.def.Name, Err: err}
	}

	logging.Debug("Session", "Server %s reports %d tools", s.def.Name, len(result.Tools))
	return result.Tools, nil
}

// Invoke forwards a tool call to the subprocess and returns the raw result.
// A session that is not Ready fails immediately instead of blocking.
func (s *Session) Invoke(ctx context.Context, toolName string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != StateReady || s.client == nil {
		return nil, fmt.Errorf("server %s: %w (state %s)", s.def.Name, ErrSessionNotReady, s.state)
	}

	callCtx := ctx
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.invokeTimeout)
		defer cancel()
	}

	result, err := s.client.CallTool(callCtx, mcp.CallToolRequest{
		Params: struct {
			Name      string    `json:"name"`
			Arguments any       `json:"arguments,omitempty"`
			Meta      *mcp.Meta `json:"_meta,omitempty"`
		}{
			Name:      toolName,
			Arguments: args,
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, &InvocationTimeoutError{Server: s.def.Name, Tool: toolName, Timeout: s.invokeTimeout, Err: err}
		}
		return nil, &InvocationError{Server: s.def.Name, Tool: toolName, Err: err}
	}

	return result, nil
}

// Close tears the session down: every acquired resource is released in
// reverse order. Close is idempotent and safe under concurrent calls; only
// the first caller performs the teardown, later calls observe Closed and
// return nil. Closing a session that never reached Ready is a no-op.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return nil
	case StateUninitialized:
		s.state = StateClosed
		return nil
	}
	s.state = StateClosing

	err := s.resources.Release()
	s.client = nil
	s.state = StateClosed

	if err != nil {
		logging.Warn("Session", "Closing %s reported errors: %v", s.def.Name, err)
	}
	logging.Debug("Session", "Server %s closed (session %s)", s.def.Name, s.id)
	return err
}
