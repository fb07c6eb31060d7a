package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/okvist/foreman/internal/run"
)

// NewSubmitCommand returns the submit subcommand.
func NewSubmitCommand() *cli.Command {
	return &cli.Command{
		Name:      "submit",
		Usage:     "Submit a request for orchestration",
		ArgsUsage: "<request>",
		Flags: []cli.Flag{
			gatewayFlag(),
			&cli.StringFlag{
				Name:    "workflow",
				Aliases: []string{"w"},
				Usage:   "Workflow template name (default workflow when omitted)",
			},
		},
		Action: runSubmit,
	}
}

func runSubmit(_ context.Context, cmd *cli.Command) error {
	request := cmd.Args().First()
	if request == "" {
		return fmt.Errorf("usage: foreman submit <request>")
	}

	client := newAPIClient(cmd)

	var created run.Run
	err := client.post("/api/runs", map[string]string{
		"request":  request,
		"workflow": cmd.String("workflow"),
	}, &created)
	if err != nil {
		return err
	}

	fmt.Printf("run %s submitted (%s)\n", created.ID, created.State)
	fmt.Printf("follow it with: foreman runs show %s\n", created.ID)
	return nil
}
