package aggregator

import (
	"context"

	"stride/internal/config"
	"stride/internal/mcpserver"

	"github.com/mark3labs/mcp-go/mcp"
)

// ToolSession is the session surface the orchestrator drives. It is
// implemented by *mcpserver.Session; tests substitute fakes.
type ToolSession interface {
	// Name returns the server name the session was created for.
	Name() string

	// Initialize spawns the subprocess and performs the protocol handshake.
	Initialize(ctx context.Context) error

	// Discover returns the tools the server reports. Called once per session.
	Discover(ctx context.Context) ([]mcp.Tool, error)

	// Invoke forwards a tool call to the server.
	Invoke(ctx context.Context, toolName string, args map[string]interface{}) (*mcp.CallToolResult, error)

	// Close tears the session down. Idempotent.
	Close() error
}

// SessionFactory builds the session for one server definition. Injecting the
// factory keeps the orchestrator independent of the concrete transport.
type SessionFactory func(def config.ServerDefinition) ToolSession

// NewStdioSessionFactory returns the production factory: stdio subprocess
// sessions with the given options applied to each one.
func NewStdioSessionFactory(opts ...mcpserver.Option) SessionFactory {
	return func(def config.ServerDefinition) ToolSession {
		return mcpserver.NewSession(def, opts...)
	}
}

// ServerFailure records one server that failed during startup and why.
type ServerFailure struct {
	Name string
	Err  error
}

// OrchestratorState is the lifecycle state of the orchestrator as a whole.
type OrchestratorState int

const (
	OrchestratorIdle OrchestratorState = iota
	OrchestratorStarting
	// OrchestratorPartiallyReady means some, but not all, servers failed;
	// the aggregate is usable with reduced capability.
	OrchestratorPartiallyReady
	OrchestratorReady
	OrchestratorClosing
	OrchestratorClosed
)

// String makes OrchestratorState satisfy the fmt.Stringer interface.
func (s OrchestratorState) String() string {
	switch s {
	case OrchestratorIdle:
		return "idle"
	case OrchestratorStarting:
		return "starting"
	case OrchestratorPartiallyReady:
		return "partially-ready"
	case OrchestratorReady:
		return "ready"
	case OrchestratorClosing:
		return "closing"
	case OrchestratorClosed:
		return "closed"
	default:
		return "unknown"
	}
}
