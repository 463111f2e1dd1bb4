package aggregator

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"stride/internal/config"
	"stride/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server re-exposes the aggregated tool registry as a single MCP endpoint so
// the calling agent connects to one server instead of one per tool process.
type Server struct {
	cfg      config.AggregatorConfig
	registry *Registry

	mu                   sync.Mutex
	mcpServer            *server.MCPServer
	sseServer            *server.SSEServer
	streamableHTTPServer *server.StreamableHTTPServer
	stdioServer          *server.StdioServer
	cancelFunc           context.CancelFunc
}

// NewServer creates the serving layer over an already-populated registry.
func NewServer(cfg config.AggregatorConfig, registry *Registry) *Server {
	return &Server{
		cfg:      cfg,
		registry: registry,
	}
}

// Start registers every aggregated tool on an MCP server and serves it over
// the configured transport. The transport listener runs in the background;
// Start returns once it is launched.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mcpServer != nil {
		return fmt.Errorf("aggregator server already started")
	}

	var serveCtx context.Context
	serveCtx, s.cancelFunc = context.WithCancel(ctx)

	mcpServer := server.NewMCPServer(
		"stride-aggregator",
		"1.0.0",
		server.WithToolCapabilities(true),
	)
	mcpServer.AddTools(s.serverTools()...)
	s.mcpServer = mcpServer

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	switch s.cfg.Transport {
	case config.TransportSSE:
		logging.Info("Aggregator", "Serving %d tools with SSE transport on %s", s.registry.Len(), addr)
		s.sseServer = server.NewSSEServer(
			mcpServer,
			server.WithBaseURL(fmt.Sprintf("http://%s", addr)),
			server.WithSSEEndpoint("/sse"),
			server.WithMessageEndpoint("/message"),
		)
		sseServer := s.sseServer
		go func() {
			if err := sseServer.Start(addr); err != nil && err != http.ErrServerClosed {
				logging.Error("Aggregator", err, "SSE server error")
			}
		}()

	case config.TransportStdio:
		logging.Info("Aggregator", "Serving %d tools with stdio transport", s.registry.Len())
		s.stdioServer = server.NewStdioServer(mcpServer)
		stdioServer := s.stdioServer
		go func() {
			if err := stdioServer.Listen(serveCtx, os.Stdin, os.Stdout); err != nil {
				logging.Error("Aggregator", err, "Stdio server error")
			}
		}()

	case config.TransportStreamableHTTP:
		fallthrough
	default:
		logging.Info("Aggregator", "Serving %d tools with streamable-http transport on %s", s.registry.Len(), addr)
		s.streamableHTTPServer = server.NewStreamableHTTPServer(mcpServer)
		streamableServer := s.streamableHTTPServer
		go func() {
			if err := streamableServer.Start(addr); err != nil && err != http.ErrServerClosed {
				logging.Error("Aggregator", err, "Streamable HTTP server error")
			}
		}()
	}

	return nil
}

// serverTools builds one MCP server tool per registry entry. Handlers
// dispatch through the registry map; invocation failures become tool error
// results rather than protocol errors.
func (s *Server) serverTools() []server.ServerTool {
	tools := s.registry.List()
	serverTools := make([]server.ServerTool, 0, len(tools))

	for _, tool := range tools {
		serverTools = append(serverTools, server.ServerTool{
			Tool: mcp.Tool{
				Name:        tool.QualifiedName,
				Description: tool.Description,
				InputSchema: tool.InputSchema,
			},
			Handler: s.createToolHandler(tool.QualifiedName),
		})
	}
	return serverTools
}

func (s *Server) createToolHandler(qualifiedName string) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := make(map[string]interface{})
		if req.Params.Arguments != nil {
			if argsMap, ok := req.Params.Arguments.(map[string]interface{}); ok {
				args = argsMap
			}
		}

		result, err := s.registry.Call(ctx, qualifiedName, args)
		if err != nil {
			logging.Error("Aggregator", err, "Tool %s failed", qualifiedName)
			return mcp.NewToolResultError(fmt.Sprintf("tool execution failed: %v", err)), nil
		}
		return result, nil
	}
}

// Endpoint returns the URL the calling agent connects to.
func (s *Server) Endpoint() string {
	switch s.cfg.Transport {
	case config.TransportSSE:
		return fmt.Sprintf("http://%s:%d/sse", s.cfg.Host, s.cfg.Port)
	case config.TransportStdio:
		return "stdio"
	default:
		return fmt.Sprintf("http://%s:%d/mcp", s.cfg.Host, s.cfg.Port)
	}
}

// Stop shuts the transport down. Safe to call when Start failed or never ran.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancelFunc := s.cancelFunc
	sseServer := s.sseServer
	streamableServer := s.streamableHTTPServer
	s.mcpServer = nil
	s.sseServer = nil
	s.streamableHTTPServer = nil
	s.stdioServer = nil
	s.cancelFunc = nil
	s.mu.Unlock()

	if cancelFunc != nil {
		cancelFunc()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if sseServer != nil {
		if err := sseServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("Aggregator", err, "Error shutting down SSE server")
		}
	}
	if streamableServer != nil {
		if err := streamableServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("Aggregator", err, "Error shutting down streamable HTTP server")
		}
	}
	// The stdio server stops on context cancellation.

	return nil
}
