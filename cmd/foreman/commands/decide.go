package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/okvist/foreman/internal/orchestrator"
	"github.com/okvist/foreman/internal/run"
)

// NewDecideCommand returns the decide subcommand.
func NewDecideCommand() *cli.Command {
	return &cli.Command{
		Name:  "decide",
		Usage: "Resolve a pending gate by token",
		Flags: []cli.Flag{
			gatewayFlag(),
			&cli.StringFlag{
				Name:  "token",
				Usage: "The gate token",
			},
			&cli.StringFlag{
				Name:  "outcome",
				Usage: "approve, reject, or confirm",
			},
			&cli.StringFlag{
				Name:  "feedback",
				Usage: "Feedback for the worker (required when rejecting)",
			},
			&cli.BoolFlag{
				Name:  "list",
				Usage: "List pending gates instead of deciding",
			},
		},
		Action: runDecide,
	}
}

func runDecide(_ context.Context, cmd *cli.Command) error {
	client := newAPIClient(cmd)

	if cmd.Bool("list") {
		var gates []orchestrator.PendingGate
		if err := client.get("/api/gates", &gates); err != nil {
			return err
		}
		if len(gates) == 0 {
			fmt.Println("No pending gates.")
			return nil
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tGATE\tOPENED\tTOKEN")
		for _, g := range gates {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", g.RunID, g.Gate, g.OpenedAt.Format("15:04:05"), g.Token)
		}
		return w.Flush()
	}

	token := cmd.String("token")
	outcome := cmd.String("outcome")
	feedback := cmd.String("feedback")
	if token == "" || outcome == "" {
		return fmt.Errorf("usage: foreman decide --token <token> --outcome <approve|reject|confirm> [--feedback <text>]")
	}
	if outcome == run.OutcomeReject && feedback == "" {
		return fmt.Errorf("rejecting requires --feedback")
	}

	err := client.post("/api/decisions", map[string]string{
		"token":    token,
		"outcome":  outcome,
		"feedback": feedback,
	}, nil)
	if err != nil {
		return err
	}

	fmt.Printf("gate resolved: %s\n", outcome)
	return nil
}
