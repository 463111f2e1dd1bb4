package aggregator

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// Tool is one externally invocable operation, adapted from a server's
// reported tool into a namespaced callable bound to its owning session.
// A tool is valid only while its session is ready; invoking a tool whose
// session has closed fails immediately with mcpserver.ErrSessionNotReady.
type Tool struct {
	// QualifiedName is "{serverName}_{toolName}", globally unique by
	// construction: two servers exposing identically named tools never
	// collide in the aggregate.
	QualifiedName string
	ServerName    string
	// ToolName is the server-local name, used on the wire when invoking.
	ToolName    string
	Description string
	InputSchema mcp.ToolInputSchema

	// session is the stable handle to the owning session. It is a shared
	// reference, never a copy: a session invalidated later is observed by
	// every tool bound to it.
	session ToolSession
}

// Invoke forwards the call to the owning session using the server-local name.
func (t *Tool) Invoke(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	return t.session.Invoke(ctx, t.ToolName, args)
}

// adaptTool builds the namespaced tool record for one discovered capability.
// Description and input schema pass through verbatim.
func adaptTool(serverName string, tool mcp.Tool, session ToolSession) *Tool {
	return &Tool{
		QualifiedName: qualifyToolName(serverName, tool.Name),
		ServerName:    serverName,
		ToolName:      tool.Name,
		Description:   tool.Description,
		InputSchema:   tool.InputSchema,
		session:       session,
	}
}

func qualifyToolName(serverName, toolName string) string {
	return serverName + "_" + toolName
}
