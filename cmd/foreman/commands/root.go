// Package commands holds the foreman CLI subcommands.
package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/okvist/foreman/internal/config"
)

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:  "foreman",
		Usage: "Delegating orchestration engine with human approval gates",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewGatewayCommand(),
			NewSubmitCommand(),
			NewRunsCommand(),
			NewReviewCommand(),
			NewDecideCommand(),
			NewAbortCommand(),
			NewRetryCommand(),
			NewStatusCommand(),
			NewMCPServeCommand(),
			NewSecretsCommand(),
		},
	}
}
