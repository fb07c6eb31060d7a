// Package scheduler submits recurring orchestration requests on cron
// schedules defined in configuration.
package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/okvist/foreman/internal/config"
	"github.com/okvist/foreman/internal/events"
	"github.com/okvist/foreman/internal/run"
)

// DefaultCooldown is the minimum interval between two triggers of the
// same entry. It guards against double-firing around minute boundaries.
const DefaultCooldown = 90 * time.Second

// Submitter accepts new orchestration requests.
type Submitter interface {
	Submit(request, source, workflowName string) (*run.Run, error)
}

// entry is the runtime state for one configured schedule.
type entry struct {
	name     string
	cron     *CronExpr
	request  string
	workflow string
	lastRun  time.Time
}

// Scheduler fires configured schedules against a Submitter.
type Scheduler struct {
	submitter Submitter
	bus       *events.Bus
	log       *slog.Logger

	mu      sync.Mutex
	entries []*entry

	done chan struct{}
	once sync.Once
}

// New builds a Scheduler from the configured schedules. Entries with an
// invalid cron expression or an empty request are skipped with a warning.
func New(submitter Submitter, bus *events.Bus, schedules []config.ScheduleConfig, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		submitter: submitter,
		bus:       bus,
		log:       log,
		done:      make(chan struct{}),
	}
	for _, sc := range schedules {
		if sc.Request == "" {
			log.Warn("scheduler: entry has no request, skipping", "name", sc.Name)
			continue
		}
		expr, err := ParseCron(sc.Cron)
		if err != nil {
			log.Warn("scheduler: invalid cron, skipping", "name", sc.Name, "error", err)
			continue
		}
		s.entries = append(s.entries, &entry{
			name:     sc.Name,
			cron:     expr,
			request:  sc.Request,
			workflow: sc.Workflow,
		})
	}
	return s
}

// Start begins the cron ticker. It returns immediately; schedules fire on
// a background goroutine until Stop is called.
func (s *Scheduler) Start() {
	s.log.Info("scheduler started", "entries", len(s.entries))
	go s.loop()
}

// Stop halts the scheduler. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.once.Do(func() { close(s.done) })
}

// Names returns the names of the active schedule entries.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		names = append(names, e.name)
	}
	return names
}

func (s *Scheduler) loop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case now := <-ticker.C:
			s.check(now)
		}
	}
}

func (s *Scheduler) check(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if !e.cron.Matches(now) {
			continue
		}
		if now.Sub(e.lastRun) < DefaultCooldown {
			continue
		}
		s.trigger(e, now)
	}
}

// trigger submits the entry's request. Caller must hold s.mu.
func (s *Scheduler) trigger(e *entry, now time.Time) {
	e.lastRun = now

	r, err := s.submitter.Submit(e.request, string(events.SourceScheduler), e.workflow)
	if err != nil {
		s.log.Error("scheduler: submit request", "name", e.name, "error", err)
		return
	}

	s.bus.Publish(events.NewEvent(events.SourceScheduler, r.ID, events.ScheduleTriggerPayload{
		Name:    e.name,
		Request: e.request,
		RunID:   r.ID,
	}))

	s.log.Info("scheduler: triggered", "name", e.name, "run_id", r.ID)
}
