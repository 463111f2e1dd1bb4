package config

import "fmt"

// ConfigNotFoundError indicates the configuration source does not exist.
type ConfigNotFoundError struct {
	Path string
	Err  error
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("configuration not found at %s", e.Path)
}

func (e *ConfigNotFoundError) Unwrap() error { return e.Err }

// InvalidConfigError indicates the configuration document is malformed or
// fails validation.
type InvalidConfigError struct {
	Reason string
	Err    error
}

func (e *InvalidConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

func (e *InvalidConfigError) Unwrap() error { return e.Err }

// DuplicateServerNameError indicates two server entries share a name.
// Duplicates are rejected rather than silently overridden: a silent override
// makes tool ownership ambiguous once names are used as namespace prefixes.
type DuplicateServerNameError struct {
	Name string
}

func (e *DuplicateServerNameError) Error() string {
	return fmt.Sprintf("duplicate server name %q in configuration", e.Name)
}
