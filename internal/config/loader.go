package config

import (
	"errors"
	"fmt"
	"os"

	"stride/pkg/logging"

	"gopkg.in/yaml.v3"
)

// Load reads and parses the configuration file at the given path.
// YAML is a superset of JSON, so both forms of the document are accepted.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigNotFoundError{Path: path, Err: err}
		}
		return nil, &InvalidConfigError{Reason: fmt.Sprintf("reading %s", path), Err: err}
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	logging.Info("ConfigLoader", "Loaded %d server definitions from %s", len(cfg.Servers), path)
	return cfg, nil
}

// rawConfig keeps the servers section as a yaml.Node so the loader can walk
// the mapping itself: decoding straight into a Go map would both lose the
// document order and silently keep the last entry on a duplicate key.
type rawConfig struct {
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Servers    yaml.Node        `yaml:"servers"`
}

// Parse decodes a configuration document and validates the server entries.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &InvalidConfigError{Reason: "malformed document", Err: err}
	}

	if raw.Servers.IsZero() || raw.Servers.Tag == "!!null" {
		return nil, &InvalidConfigError{Reason: "missing top-level servers map"}
	}
	if raw.Servers.Kind != yaml.MappingNode {
		return nil, &InvalidConfigError{Reason: "servers must be a map of name to definition"}
	}

	defs, err := parseServerDefinitions(&raw.Servers)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Aggregator: applyAggregatorDefaults(raw.Aggregator),
		Servers:    defs,
	}
	return cfg, nil
}

func parseServerDefinitions(node *yaml.Node) ([]ServerDefinition, error) {
	seen := make(map[string]bool, len(node.Content)/2)
	defs := make([]ServerDefinition, 0, len(node.Content)/2)

	// Mapping node content alternates key, value.
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		name := keyNode.Value
		if name == "" {
			return nil, &InvalidConfigError{Reason: fmt.Sprintf("server name must not be empty (line %d)", keyNode.Line)}
		}
		if seen[name] {
			return nil, &DuplicateServerNameError{Name: name}
		}
		seen[name] = true

		var def ServerDefinition
		if err := valueNode.Decode(&def); err != nil {
			return nil, &InvalidConfigError{Reason: fmt.Sprintf("server %q", name), Err: err}
		}
		def.Name = name

		if def.Command == "" {
			return nil, &InvalidConfigError{Reason: fmt.Sprintf("server %q: command is required", name)}
		}
		if def.Env == nil {
			def.Env = map[string]string{}
		}

		defs = append(defs, def)
	}

	return defs, nil
}

func applyAggregatorDefaults(agg AggregatorConfig) AggregatorConfig {
	defaults := DefaultAggregatorConfig()
	if agg.Port == 0 {
		agg.Port = defaults.Port
	}
	if agg.Host == "" {
		agg.Host = defaults.Host
	}
	if agg.Transport == "" {
		agg.Transport = defaults.Transport
	}
	if agg.ToolCallTimeout == 0 {
		agg.ToolCallTimeout = defaults.ToolCallTimeout
	}
	return agg
}
