package mcpserver

import (
	"errors"
	"fmt"
	"time"
)

// ErrSessionNotReady is returned when an operation requires a Ready session.
// Invocations against a closed or never-started session fail immediately with
// this error instead of blocking.
var ErrSessionNotReady = errors.New("session is not ready")

// CommandNotFoundError indicates the server executable could not be located.
type CommandNotFoundError struct {
	Command string
	Err     error
}

func (e *CommandNotFoundError) Error() string {
	return fmt.Sprintf("command %q not found", e.Command)
}

func (e *CommandNotFoundError) Unwrap() error { return e.Err }

// HandshakeFailedError indicates the subprocess started but the protocol
// handshake did not complete.
type HandshakeFailedError struct {
	Server string
	Err    error
}

func (e *HandshakeFailedError) Error() string {
	return fmt.Sprintf("server %s: handshake failed: %v", e.Server, e.Err)
}

func (e *HandshakeFailedError) Unwrap() error { return e.Err }

// DiscoveryFailedError indicates the capability discovery request failed.
type DiscoveryFailedError struct {
	Server string
	Err    error
}

func (e *DiscoveryFailedError) Error() string {
	return fmt.Sprintf("server %s: tool discovery failed: %v", e.Server, e.Err)
}

func (e *DiscoveryFailedError) Unwrap() error { return e.Err }

// InvocationError indicates a tool call failed in transit: the subprocess
// died, the response was malformed, or the transport broke.
type InvocationError struct {
	Server string
	Tool   string
	Err    error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("server %s: tool %s invocation failed: %v", e.Server, e.Tool, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// InvocationTimeoutError indicates a tool call exceeded its deadline.
type InvocationTimeoutError struct {
	Server  string
	Tool    string
	Timeout time.Duration
	Err     error
}

func (e *InvocationTimeoutError) Error() string {
	return fmt.Sprintf("server %s: tool %s timed out after %s", e.Server, e.Tool, e.Timeout)
}

func (e *InvocationTimeoutError) Unwrap() error { return e.Err }
