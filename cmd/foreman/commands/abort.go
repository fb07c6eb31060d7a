package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

// NewAbortCommand returns the abort subcommand.
func NewAbortCommand() *cli.Command {
	return &cli.Command{
		Name:      "abort",
		Usage:     "Abort a run",
		ArgsUsage: "<run_id>",
		Flags:     []cli.Flag{gatewayFlag()},
		Action: func(_ context.Context, cmd *cli.Command) error {
			runID := cmd.Args().First()
			if runID == "" {
				return fmt.Errorf("usage: foreman abort <run_id>")
			}
			client := newAPIClient(cmd)
			if err := client.post("/api/runs/"+runID+"/abort", nil, nil); err != nil {
				return err
			}
			fmt.Printf("run %s aborted\n", runID)
			return nil
		},
	}
}

// NewRetryCommand returns the retry subcommand.
func NewRetryCommand() *cli.Command {
	return &cli.Command{
		Name:      "retry",
		Usage:     "Retry a blocked run",
		ArgsUsage: "<run_id>",
		Flags:     []cli.Flag{gatewayFlag()},
		Action: func(_ context.Context, cmd *cli.Command) error {
			runID := cmd.Args().First()
			if runID == "" {
				return fmt.Errorf("usage: foreman retry <run_id>")
			}
			client := newAPIClient(cmd)
			if err := client.post("/api/runs/"+runID+"/retry", nil, nil); err != nil {
				return err
			}
			fmt.Printf("run %s retrying\n", runID)
			return nil
		},
	}
}
