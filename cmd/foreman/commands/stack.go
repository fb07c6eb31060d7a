package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/urfave/cli/v3"

	"github.com/okvist/foreman/internal/artifacts"
	"github.com/okvist/foreman/internal/callbacks"
	"github.com/okvist/foreman/internal/config"
	"github.com/okvist/foreman/internal/events"
	"github.com/okvist/foreman/internal/models"
	"github.com/okvist/foreman/internal/orchestrator"
	"github.com/okvist/foreman/internal/run"
	"github.com/okvist/foreman/internal/subagent"
	"github.com/okvist/foreman/internal/tools"
	"github.com/okvist/foreman/internal/workflow"
)

// stack bundles the wired orchestration components behind a command.
type stack struct {
	cfg        *config.Config
	bus        *events.Bus
	store      *run.FileStore
	supervisor *orchestrator.Supervisor
}

func (s *stack) close() {
	s.bus.Close()
}

// setupLogging configures slog according to the debug flag.
func setupLogging(cmd *cli.Command) {
	level := slog.LevelInfo
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// loadConfig loads the config file named by the --config flag, falling
// back to defaults when it does not exist.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	path := cmd.String("config")
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// buildStack wires the full orchestration stack: event bus, subagent
// runner, workflow registry, artifact store, run store, and supervisor.
// Interrupted runs are recovered and gate-parked runs resumed.
func buildStack(ctx context.Context, cfg *config.Config) (*stack, error) {
	log := slog.Default()

	bus := events.NewBus(cfg.Events.BufferSize)

	runner, err := buildRunner(ctx, cfg, bus, log)
	if err != nil {
		bus.Close()
		return nil, err
	}

	workflows := workflow.NewRegistry()
	if err := workflows.LoadDir(cfg.Workflows.Dir); err != nil {
		bus.Close()
		return nil, fmt.Errorf("load workflows: %w", err)
	}

	store := run.NewFileStore(config.RunsPath())
	gates := orchestrator.NewGates()

	orch := orchestrator.New(orchestrator.Config{
		Store:            store,
		Bus:              bus,
		Gates:            gates,
		Runner:           runner,
		Workflows:        workflows,
		Artifacts:        artifacts.NewStore(cfg.Orchestrator.DocsDir),
		Dispatch:         cfg.Dispatch,
		MaxPlanRevisions: cfg.Orchestrator.MaxPlanRevisions,
		Log:              log,
	})

	supervisor := orchestrator.NewSupervisor(orch, store, gates, bus, log)

	recovered, err := run.Recover(store, bus, log)
	if err != nil {
		bus.Close()
		return nil, fmt.Errorf("recover runs: %w", err)
	}
	supervisor.Resume(recovered)

	return &stack{
		cfg:        cfg,
		bus:        bus,
		store:      store,
		supervisor: supervisor,
	}, nil
}

// buildRunner selects the subagent backend from config.
func buildRunner(ctx context.Context, cfg *config.Config, bus *events.Bus, log *slog.Logger) (subagent.Runner, error) {
	switch cfg.Orchestrator.Runner {
	case "process":
		return subagent.NewProcessRunner(cfg.Orchestrator.ProcessCommand, cfg.Orchestrator.TaskTimeout.Duration(), log)

	case "", "llm":
		registry := models.NewRegistry(cfg.Models)
		chatModel, err := registry.Default(ctx)
		if err != nil {
			return nil, fmt.Errorf("init default model: %w", models.HandleError(err))
		}

		workDir, err := os.Getwd()
		if err != nil {
			workDir = config.ForemanPath()
		}
		toolRegistry := tools.DefaultRegistry(workDir)

		einocb.AppendGlobalHandlers(callbacks.NewEventBusHandler(bus, events.SourceSubagent))

		return subagent.NewLLMRunner(chatModel, toolRegistry.All(), cfg.Orchestrator.MaxIterations, log), nil

	default:
		return nil, fmt.Errorf("unknown runner %q (want llm or process)", cfg.Orchestrator.Runner)
	}
}
