package commands

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	foremanmcp "github.com/okvist/foreman/internal/mcp"
)

// NewMCPServeCommand returns the mcp-serve subcommand.
func NewMCPServeCommand() *cli.Command {
	return &cli.Command{
		Name:    "mcp-serve",
		Aliases: []string{"mcp"},
		Usage:   "Expose run orchestration as an MCP server (stdio)",
		Action:  runMCPServe,
	}
}

func runMCPServe(_ context.Context, cmd *cli.Command) error {
	// Log to stderr; stdout carries the MCP stdio transport.
	level := slog.LevelWarn
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := context.Background()

	st, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	server := foremanmcp.NewServer(st.supervisor)
	err = foremanmcp.Run(ctx, server)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if shutdownErr := st.supervisor.Shutdown(shutdownCtx); shutdownErr != nil && err == nil {
		err = shutdownErr
	}
	return err
}
