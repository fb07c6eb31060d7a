package commands

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/okvist/foreman/internal/config"
	"github.com/okvist/foreman/internal/gateway"
	"github.com/okvist/foreman/internal/heartbeat"
	"github.com/okvist/foreman/internal/scheduler"
)

// NewGatewayCommand returns the gateway subcommand.
func NewGatewayCommand() *cli.Command {
	return &cli.Command{
		Name:  "gateway",
		Usage: "Start the foreman gateway server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runGateway,
	}
}

func runGateway(_ context.Context, cmd *cli.Command) error {
	setupLogging(cmd)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// CLI flags override config
	if cmd.IsSet("host") {
		cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Gateway.Port = int(cmd.Int("port"))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st, err := buildStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	sched := scheduler.New(st.supervisor, st.bus, cfg.Schedules, slog.Default())
	sched.Start()
	defer sched.Stop()

	hb := heartbeat.NewWriter(filepath.Join(config.ForemanPath(), "heartbeat.json"), func() int {
		return activeRunCount(st)
	})
	hb.Start()
	defer hb.Stop()

	server := gateway.NewServer(st.bus, st.supervisor, cfg.Gateway.Host, cfg.Gateway.Port)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("gateway shutdown", "error", err)
		}
		return st.supervisor.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func activeRunCount(st *stack) int {
	list, err := st.supervisor.List()
	if err != nil {
		return 0
	}
	n := 0
	for _, r := range list {
		if !r.State.Terminal() {
			n++
		}
	}
	return n
}
