// Package dispatcher coalesces nudges into a single in-flight turn-worker
// run per project (spec.md §4.5, §5): "the turn worker holds a per-project
// lock... acquired at the start of a run and released at DONE. A nudge that
// cannot acquire the lock sets a re-check flag... which, at the end of each
// turn, loops again if the flag is set." Grounded on the teacher's
// pkg/queue.Worker poll loop, simplified from a pool of polling workers to
// an explicit per-project exclusion map since parley's trigger is a nudge,
// not a shared poll queue.
package dispatcher

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Runner is the turn-worker surface the dispatcher drives. Implemented by
// *turn.Runner; declared locally to avoid an import cycle (pkg/turn has no
// reason to know about pkg/dispatcher).
type Runner interface {
	Run(ctx context.Context, projectID uuid.UUID) error
}

// projectRun tracks the in-flight state for one project's exclusion slot.
type projectRun struct {
	running bool
	recheck bool
}

// Dispatcher implements services.Nudger for in-process worker mode: each
// Nudge either starts a new run or, if one is already in flight for that
// project, marks it for a re-check once the current run reaches DONE.
type Dispatcher struct {
	runner Runner
	log    *slog.Logger

	mu    sync.Mutex
	runs  map[uuid.UUID]*projectRun
	wg    sync.WaitGroup
	close chan struct{}
}

// New builds a Dispatcher driving runner.
func New(runner Runner, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		runner: runner,
		log:    log,
		runs:   make(map[uuid.UUID]*projectRun),
		close:  make(chan struct{}),
	}
}

// Nudge requests that projectID's pending queue be drained. It never
// blocks: if a run for projectID is already in flight, this nudge is folded
// into that run's re-check flag (spec.md §8 scenario S5: two nudges for the
// same project while one worker is mid-turn must not start a second
// worker).
func (d *Dispatcher) Nudge(projectID uuid.UUID) {
	d.mu.Lock()
	run, ok := d.runs[projectID]
	if !ok {
		run = &projectRun{}
		d.runs[projectID] = run
	}
	if run.running {
		run.recheck = true
		d.mu.Unlock()
		return
	}
	run.running = true
	d.mu.Unlock()

	d.wg.Add(1)
	go d.driveRun(projectID, run)
}

// driveRun calls the underlying Runner repeatedly until a pass completes
// with the re-check flag unset, matching the "loop again if the flag is
// set" rule.
func (d *Dispatcher) driveRun(projectID uuid.UUID, run *projectRun) {
	defer d.wg.Done()
	for {
		if err := d.runner.Run(context.Background(), projectID); err != nil {
			d.log.Error("dispatcher: run failed", "project_id", projectID, "error", err)
		}

		d.mu.Lock()
		if run.recheck {
			run.recheck = false
			d.mu.Unlock()
			continue
		}
		run.running = false
		d.mu.Unlock()
		return
	}
}

// Wait blocks until every in-flight run has finished. Intended for graceful
// shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
