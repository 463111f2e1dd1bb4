package aggregator

import (
	"context"
	"testing"

	"stride/internal/config"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populatedRegistry(t *testing.T) (*Registry, *fakeSession) {
	t.Helper()
	r := NewRegistry()
	session := &fakeSession{name: "fs", ready: true}
	require.NoError(t, r.Register(registryTool("fs", "read", session)))
	require.NoError(t, r.Register(registryTool("fs", "write", session)))
	return r, session
}

func TestServer_ServerToolsMirrorRegistry(t *testing.T) {
	r, _ := populatedRegistry(t)
	s := NewServer(config.DefaultAggregatorConfig(), r)

	tools := s.serverTools()
	require.Len(t, tools, 2)
	assert.Equal(t, "fs_read", tools[0].Tool.Name)
	assert.Equal(t, "fs_write", tools[1].Tool.Name)
	assert.NotNil(t, tools[0].Handler)
}

func TestServer_HandlerDispatchesThroughRegistry(t *testing.T) {
	r, session := populatedRegistry(t)
	s := NewServer(config.DefaultAggregatorConfig(), r)

	handler := s.createToolHandler("fs_read")
	req := mcp.CallToolRequest{}
	req.Params.Name = "fs_read"
	req.Params.Arguments = map[string]interface{}{"path": "/tmp"}

	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.False(t, result.IsError)
	assert.Equal(t, []string{"read"}, session.invoked)
}

func TestServer_HandlerConvertsFailureToToolError(t *testing.T) {
	r, session := populatedRegistry(t)
	require.NoError(t, session.Close())
	s := NewServer(config.DefaultAggregatorConfig(), r)

	handler := s.createToolHandler("fs_read")
	result, err := handler(context.Background(), mcp.CallToolRequest{})

	// Invocation failures surface as tool error results, not protocol errors.
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.IsError)
}

func TestServer_Endpoint(t *testing.T) {
	tests := []struct {
		transport string
		expected  string
	}{
		{config.TransportStreamableHTTP, "http://localhost:8090/mcp"},
		{config.TransportSSE, "http://localhost:8090/sse"},
		{config.TransportStdio, "stdio"},
	}

	for _, tt := range tests {
		t.Run(tt.transport, func(t *testing.T) {
			cfg := config.DefaultAggregatorConfig()
			cfg.Transport = tt.transport
			s := NewServer(cfg, NewRegistry())
			assert.Equal(t, tt.expected, s.Endpoint())
		})
	}
}

func TestServer_StopWithoutStart(t *testing.T) {
	s := NewServer(config.DefaultAggregatorConfig(), NewRegistry())
	assert.NoError(t, s.Stop(context.Background()))
}
