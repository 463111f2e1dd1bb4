package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"stride/internal/aggregator"
	"stride/internal/mcpserver"
	"stride/pkg/logging"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var toolsFormat string

// toolsCmd starts the configured servers once, prints the aggregated tool
// list, and tears everything down again.
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools the configured servers expose",
	Long: `Starts every configured tool server, prints the aggregated tool list, and
shuts the servers down again. Useful to verify a configuration before
running 'stride serve'.`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

func init() {
	toolsCmd.Flags().StringVar(&toolsFormat, "format", "table", "Output format (table or json)")
}

func runTools(cmd *cobra.Command, args []string) error {
	initLogging(logging.LevelWarn)

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	orch := aggregator.NewOrchestrator(
		aggregator.WithSessionFactory(aggregator.NewStdioSessionFactory(
			mcpserver.WithInvokeTimeout(cfg.Aggregator.ToolCallTimeout),
		)),
		aggregator.WithParallelStartup(cfg.Aggregator.ParallelStartup),
	)
	defer func() {
		_ = orch.Cleanup()
	}()

	var s *spinner.Spinner
	if toolsFormat != "json" {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = fmt.Sprintf(" Starting %d tool servers...", len(cfg.Servers))
		s.Start()
	}

	tools, err := orch.Start(cmd.Context(), cfg.Servers)
	if s != nil {
		s.Stop()
	}
	if err != nil {
		return err
	}

	if toolsFormat == "json" {
		return printToolsJSON(tools, orch.Failed())
	}
	printToolsTable(tools, orch.Failed())
	return nil
}

func printToolsTable(tools []*aggregator.Tool, failed []aggregator.ServerFailure) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Tool", "Server", "Description"})
	for _, tool := range tools {
		t.AppendRow(table.Row{tool.QualifiedName, tool.ServerName, tool.Description})
	}
	t.SetStyle(table.StyleLight)
	t.Render()

	for _, failure := range failed {
		fmt.Fprintln(os.Stderr, text.FgYellow.Sprintf("warning: server %s unavailable: %v", failure.Name, failure.Err))
	}
}

func printToolsJSON(tools []*aggregator.Tool, failed []aggregator.ServerFailure) error {
	type toolEntry struct {
		Name        string `json:"name"`
		Server      string `json:"server"`
		Description string `json:"description,omitempty"`
	}
	type output struct {
		Tools  []toolEntry `json:"tools"`
		Failed []string    `json:"failed,omitempty"`
	}

	out := output{Tools: make([]toolEntry, 0, len(tools))}
	for _, tool := range tools {
		out.Tools = append(out.Tools, toolEntry{
			Name:        tool.QualifiedName,
			Server:      tool.ServerName,
			Description: tool.Description,
		})
	}
	for _, failure := range failed {
		out.Failed = append(out.Failed, failure.Name)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
