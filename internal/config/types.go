package config

import "time"

const (
	// TransportStreamableHTTP is the streamable HTTP transport.
	TransportStreamableHTTP = "streamable-http"
	// TransportSSE is the Server-Sent Events transport.
	TransportSSE = "sse"
	// TransportStdio is the standard I/O transport.
	TransportStdio = "stdio"
)

// ServerDefinition describes how to launch one external tool server process.
// Definitions are immutable once parsed; the orchestrator never mutates them.
type ServerDefinition struct {
	// Name is the unique key for this server within a configuration. It
	// becomes the namespace prefix for every tool the server exposes.
	Name string `yaml:"-"`
	// Command is the executable path or name to launch.
	Command string `yaml:"command"`
	// Args are the command line arguments, in order.
	Args []string `yaml:"args,omitempty"`
	// Env contains extra environment variables for the subprocess.
	Env map[string]string `yaml:"env,omitempty"`
}

// AggregatorConfig defines the configuration for the aggregated tool endpoint.
type AggregatorConfig struct {
	Port      int    `yaml:"port,omitempty"`      // Port for the aggregator endpoint (default: 8090)
	Host      string `yaml:"host,omitempty"`      // Host to bind to (default: localhost)
	Transport string `yaml:"transport,omitempty"` // Transport to use (default: streamable-http)
	// ParallelStartup starts the configured servers concurrently instead of
	// in document order. Per-server failure isolation is identical either way.
	ParallelStartup bool `yaml:"parallelStartup,omitempty"`
	// ToolCallTimeout bounds a single tool invocation when the caller's
	// context carries no deadline (default: 60s).
	ToolCallTimeout time.Duration `yaml:"toolCallTimeout,omitempty"`
}

// Config is the top-level configuration structure for stride.
type Config struct {
	Aggregator AggregatorConfig
	// Servers holds the parsed server definitions in document order. The
	// orchestrator starts them in exactly this order in sequential mode.
	Servers []ServerDefinition
}

// DefaultAggregatorConfig returns the aggregator defaults applied to any
// field left unset in the loaded configuration.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		Port:            8090,
		Host:            "localhost",
		Transport:       TransportStreamableHTTP,
		ToolCallTimeout: 60 * time.Second,
	}
}
