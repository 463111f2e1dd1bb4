package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"stride/internal/aggregator"
	"stride/internal/mcpserver"
	"stride/pkg/logging"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// serveCmd starts every configured tool server and exposes the aggregate
// through a single MCP endpoint until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the configured tool servers and serve the aggregated tools",
	Long: `Starts every tool server from the configuration, aggregates the tools they
expose, and serves the aggregate over the configured transport until the
process receives SIGINT or SIGTERM.

Servers that fail to spawn, handshake, or report their tools are logged and
skipped. The command only fails outright when no server could be started.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	initLogging(logging.LevelInfo)

	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := aggregator.NewOrchestrator(
		aggregator.WithSessionFactory(aggregator.NewStdioSessionFactory(
			mcpserver.WithInvokeTimeout(cfg.Aggregator.ToolCallTimeout),
		)),
		aggregator.WithParallelStartup(cfg.Aggregator.ParallelStartup),
	)
	defer func() {
		if err := orch.Cleanup(); err != nil {
			logging.Warn("Serve", "Cleanup reported: %v", err)
		}
	}()

	tools, err := orch.Start(ctx, cfg.Servers)
	if err != nil {
		return err
	}
	for _, failure := range orch.Failed() {
		fmt.Fprintf(os.Stderr, "warning: server %s unavailable: %v\n", failure.Name, failure.Err)
	}

	srv := aggregator.NewServer(cfg.Aggregator, orch.Registry())
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start aggregator endpoint: %w", err)
	}

	fmt.Printf("Serving %d tools from %d servers at %s\n", len(tools), len(cfg.Servers)-len(orch.Failed()), srv.Endpoint())

	watchConfig(ctx, cfgPath)

	<-ctx.Done()
	logging.Info("Serve", "Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logging.Warn("Serve", "Error stopping aggregator endpoint: %v", err)
	}
	return nil
}

// watchConfig warns when the configuration file changes while serving.
// Definitions are fixed at startup, so a change needs a restart to apply.
func watchConfig(ctx context.Context, path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.Warn("Serve", "Config watcher unavailable: %v", err)
		return
	}
	// Watch the directory: editors replace files on save, which drops a
	// watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		logging.Warn("Serve", "Cannot watch %s: %v", path, err)
		watcher.Close()
		return
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name == path && event.Op.Has(fsnotify.Write|fsnotify.Create) {
					logging.Warn("Serve", "Configuration %s changed; restart to apply", path)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn("Serve", "Config watcher error: %v", err)
			}
		}
	}()
}
