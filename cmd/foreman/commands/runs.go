package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/okvist/foreman/internal/run"
)

// NewRunsCommand returns the runs subcommand.
func NewRunsCommand() *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "Inspect orchestration runs",
		Flags: []cli.Flag{gatewayFlag()},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List all runs",
				Action: runRunsList,
			},
			{
				Name:      "show",
				Usage:     "Show a run and its tasks",
				ArgsUsage: "<run_id>",
				Action:    runRunsShow,
			},
		},
		DefaultCommand: "list",
	}
}

func runRunsList(_ context.Context, cmd *cli.Command) error {
	client := newAPIClient(cmd)

	var list []*run.Run
	if err := client.get("/api/runs", &list); err != nil {
		return err
	}

	if len(list) == 0 {
		fmt.Println("No runs found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tTASKS\tCREATED\tREQUEST")
	for _, r := range list {
		request := r.Request
		if len(request) > 60 {
			request = request[:57] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
			r.ID,
			r.State,
			len(r.Tasks),
			r.CreatedAt.Format("2006-01-02 15:04"),
			request,
		)
	}
	return w.Flush()
}

func runRunsShow(_ context.Context, cmd *cli.Command) error {
	runID := cmd.Args().First()
	if runID == "" {
		return fmt.Errorf("usage: foreman runs show <run_id>")
	}

	client := newAPIClient(cmd)

	var r run.Run
	if err := client.get("/api/runs/"+runID, &r); err != nil {
		return err
	}

	fmt.Printf("Run:      %s\n", r.ID)
	fmt.Printf("State:    %s\n", r.State)
	fmt.Printf("Request:  %s\n", r.Request)
	if r.Workflow != "" {
		fmt.Printf("Workflow: %s\n", r.Workflow)
	}
	if r.Error != "" {
		fmt.Printf("Error:    %s\n", r.Error)
	}
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TASK\tKIND\tSTATUS\tDESCRIPTION")
	for _, task := range r.Tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", task.ID, task.Kind, task.Status, task.Description)
	}
	return w.Flush()
}
