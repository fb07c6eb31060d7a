package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/okvist/foreman/clients/review"
)

// NewReviewCommand returns the review subcommand.
func NewReviewCommand() *cli.Command {
	return &cli.Command{
		Name:  "review",
		Usage: "Open the interactive gate review console",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "gateway",
				Usage: "Gateway WebSocket URL",
				Value: "ws://127.0.0.1:18730/api/ws",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return review.Run(ctx, cmd.String("gateway"))
		},
	}
}
