package run

import (
	"log/slog"
	"time"

	"github.com/okvist/foreman/internal/events"
)

// Recover reloads persisted runs after a restart. Runs caught mid-task
// cannot be resumed (the subagent is gone), so their in-flight task is
// marked failed and the run moves to blocked. Runs parked at a gate
// stay where they are; the gate is re-announced when they are next
// inspected.
func Recover(store Store, bus *events.Bus, log *slog.Logger) ([]*Run, error) {
	runs, err := store.List()
	if err != nil {
		return nil, err
	}

	var recovered []*Run
	for _, r := range runs {
		if r.State.Terminal() {
			continue
		}

		if r.State == StateRunning || r.State == StateDispatching {
			if t := r.InFlight(); t != nil && t.Status == TaskRunning {
				t.Status = TaskFailed
				t.Error = "interrupted by restart"
				now := time.Now()
				t.CompletedAt = &now
			}
			r.CurrentTask = ""
			r.Error = "interrupted by restart"
			r.State = StateBlocked
			r.UpdatedAt = time.Now()
			if err := store.Update(r); err != nil {
				log.Error("persist recovered run", "run", r.ID, "error", err)
				continue
			}
		}

		log.Info("recovered run", "run", r.ID, "state", r.State)
		bus.Publish(events.NewEvent(events.SourceOrchestrator, r.ID, events.RunRecoveredPayload{
			RunID: r.ID,
			State: string(r.State),
		}))
		recovered = append(recovered, r)
	}
	return recovered, nil
}
