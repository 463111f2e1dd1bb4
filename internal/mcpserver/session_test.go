package mcpserver

import (
	"context"
	"errors"
	"sync"
	"testing"

	"stride/internal/config"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient implements the subset of client.MCPClient the session exercises.
// The embedded interface leaves the rest unimplemented; calling one of those
// methods in a test is a bug and panics.
type fakeClient struct {
	client.MCPClient

	initErr error
	tools   []mcp.Tool
	listErr error
	callErr error

	mu     sync.Mutex
	closed bool
	calls  []string
}

func (f *fakeClient) Initialize(ctx context.Context, req mcp.InitializeRequest) (*mcp.InitializeResult, error) {
	if f.initErr != nil {
		return nil, f.initErr
	}
	return &mcp.InitializeResult{
		ServerInfo: mcp.Implementation{Name: "fake-server", Version: "0.0.1"},
		Capabilities: mcp.ServerCapabilities{
			Tools: &struct {
				ListChanged bool `json:"listChanged,omitempty"`
			}{},
		},
	}, nil
}

func (f *fakeClient) ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &mcp.ListToolsResult{Tools: f.tools}, nil
}

func (f *fakeClient) CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req.Params.Name)
	f.mu.Unlock()
	if f.callErr != nil {
		return nil, f.callErr
	}
	return mcp.NewToolResultText("ok"), nil
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeClient) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// newFakeSession wires a session to a fake client. The command must resolve
// through PATH so Initialize gets past executable lookup; "sh" is always
// present on the platforms the tests run on.
func newFakeSession(t *testing.T, fake *fakeClient) *Session {
	t.Helper()
	s := NewSession(config.ServerDefinition{Name: "wearables", Command: "sh"})
	s.spawn = func(def config.ServerDefinition) (client.MCPClient, error) {
		return fake, nil
	}
	return s
}

func TestSession_InitializeCommandNotFound(t *testing.T) {
	s := NewSession(config.ServerDefinition{
		Name:    "ghost",
		Command: "definitely-not-a-real-command-for-stride-tests",
	})

	err := s.Initialize(context.Background())
	require.Error(t, err)

	var notFound *CommandNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "definitely-not-a-real-command-for-stride-tests", notFound.Command)
	assert.Equal(t, StateClosed, s.State())

	// A session that never reached Ready closes without error.
	assert.NoError(t, s.Close())
}

func TestSession_InitializeHandshakeFailure(t *testing.T) {
	fake := &fakeClient{initErr: errors.New("unexpected EOF")}
	s := newFakeSession(t, fake)

	err := s.Initialize(context.Background())
	require.Error(t, err)

	var handshake *HandshakeFailedError
	require.ErrorAs(t, err, &handshake)
	assert.Equal(t, "wearables", handshake.Server)

	// The failure path must release the spawned process, not leak it.
	assert.True(t, fake.isClosed())
	assert.Equal(t, StateClosed, s.State())
}

func TestSession_InitializeSucceeds(t *testing.T) {
	fake := &fakeClient{}
	s := newFakeSession(t, fake)

	require.NoError(t, s.Initialize(context.Background()))
	assert.Equal(t, StateReady, s.State())

	// Initialize on a Ready session is a no-op.
	assert.NoError(t, s.Initialize(context.Background()))
}

func TestSession_DiscoverBeforeInitialize(t *testing.T) {
	s := NewSession(config.ServerDefinition{Name: "wearables", Command: "sh"})

	_, err := s.Discover(context.Background())
	var discovery *DiscoveryFailedError
	require.ErrorAs(t, err, &discovery)
	assert.ErrorIs(t, err, ErrSessionNotReady)
}

func TestSession_DiscoverReturnsTools(t *testing.T) {
	fake := &fakeClient{tools: []mcp.Tool{
		{Name: "read", Description: "read a record"},
		{Name: "write", Description: "write a record"},
	}}
	s := newFakeSession(t, fake)
	require.NoError(t, s.Initialize(context.Background()))

	tools, err := s.Discover(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "read", tools[0].Name)
	assert.Equal(t, "write", tools[1].Name)
}

func TestSession_DiscoverFailure(t *testing.T) {
	fake := &fakeClient{listErr: errors.New("broken pipe")}
	s := newFakeSession(t, fake)
	require.NoError(t, s.Initialize(context.Background()))

	_, err := s.Discover(context.Background())
	var discovery *DiscoveryFailedError
	require.ErrorAs(t, err, &discovery)
	assert.Equal(t, "wearables", discovery.Server)
}

func TestSession_InvokeNotReady(t *testing.T) {
	s := NewSession(config.ServerDefinition{Name: "wearables", Command: "sh"})

	_, err := s.Invoke(context.Background(), "read", nil)
	assert.ErrorIs(t, err, ErrSessionNotReady)
}

func TestSession_InvokeForwardsCall(t *testing.T) {
	fake := &fakeClient{}
	s := newFakeSession(t, fake)
	require.NoError(t, s.Initialize(context.Background()))

	result, err := s.Invoke(context.Background(), "read", map[string]interface{}{"id": "42"})
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, []string{"read"}, fake.calls)
}

func TestSession_InvokeErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		callErr error
		check   func(t *testing.T, err error)
	}{
		{
			name:    "transport failure",
			callErr: errors.New("process exited"),
			check: func(t *testing.T, err error) {
				var invErr *InvocationError
				require.ErrorAs(t, err, &invErr)
				assert.Equal(t, "read", invErr.Tool)
			},
		},
		{
			name:    "deadline exceeded",
			callErr: context.DeadlineExceeded,
			check: func(t *testing.T, err error) {
				var timeoutErr *InvocationTimeoutError
				require.ErrorAs(t, err, &timeoutErr)
				assert.Equal(t, "read", timeoutErr.Tool)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeClient{callErr: tt.callErr}
			s := newFakeSession(t, fake)
			require.NoError(t, s.Initialize(context.Background()))

			_, err := s.Invoke(context.Background(), "read", nil)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestSession_InvokeAfterClose(t *testing.T) {
	fake := &fakeClient{}
	s := newFakeSession(t, fake)
	require.NoError(t, s.Initialize(context.Background()))
	require.NoError(t, s.Close())

	_, err := s.Invoke(context.Background(), "read", nil)
	assert.ErrorIs(t, err, ErrSessionNotReady)
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	fake := &fakeClient{}
	s := newFakeSession(t, fake)
	require.NoError(t, s.Initialize(context.Background()))

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
	assert.True(t, fake.isClosed())
	assert.Equal(t, StateClosed, s.State())
}

func TestSession_ConcurrentClose(t *testing.T) {
	fake := &fakeClient{}
	s := newFakeSession(t, fake)
	require.NoError(t, s.Initialize(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Close())
		}()
	}
	wg.Wait()

	assert.Equal(t, StateClosed, s.State())
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state    State
		expected string
	}{
		{StateUninitialized, "uninitialized"},
		{StateStarting, "starting"},
		{StateReady, "ready"},
		{StateClosing, "closing"},
		{StateClosed, "closed"},
		{State(99), "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.state.String())
	}
}
