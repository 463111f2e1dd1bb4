package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"stride/internal/config"
	"stride/pkg/logging"

	"github.com/spf13/cobra"
)

const (
	userConfigDir  = ".config/stride"
	configFileName = "config.yaml"
)

// rootDebug enables verbose logging across the application.
var rootDebug bool

// rootConfigPath overrides the default configuration file location.
var rootConfigPath string

// rootCmd represents the base command for the stride application.
var rootCmd = &cobra.Command{
	Use:   "stride",
	Short: "Run the stride agent's tool servers behind one endpoint",
	Long: `stride spawns the external tool servers configured for the agent,
discovers the tools each one provides, and aggregates them into a single
namespace. Servers that fail to start are skipped; the agent continues with
reduced capability unless every server fails.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from main to
// inject the build-time version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "stride version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&rootDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&rootConfigPath, "config", "", "Path to the configuration file (default: ~/.config/stride/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(toolsCmd)
}

// initLogging configures the logging system for CLI use.
func initLogging(level logging.LogLevel) {
	if rootDebug {
		level = logging.LevelDebug
	}
	logging.Init(level, os.Stderr)
}

// configFilePath resolves the configuration file location, honoring --config.
func configFilePath() (string, error) {
	if rootConfigPath != "" {
		return rootConfigPath, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir, configFileName), nil
}

// loadConfig resolves and loads the configuration file.
func loadConfig() (*config.Config, string, error) {
	path, err := configFilePath()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}
