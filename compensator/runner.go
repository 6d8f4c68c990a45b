package compensator

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/openvenue/seatlock/metrics"
)

// Runner schedules compensator passes at the configured interval. A failed
// pass is logged and swallowed; the next pass starts fresh from the
// beginning of the keyspace.
type Runner struct {
	comp *Compensator
	cron *cron.Cron
}

// NewRunner returns a Runner for the given compensator.
func NewRunner(c *Compensator) *Runner {
	return &Runner{comp: c, cron: cron.New()}
}

// Start schedules the periodic pass and starts the scheduler.
func (r *Runner) Start() error {
	spec := fmt.Sprintf("@every %s", r.comp.Interval())
	if _, err := r.cron.AddFunc(spec, r.pass); err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running pass to finish.
func (r *Runner) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Runner) pass() {
	ctx := context.Background()
	deleted, err := r.comp.Sweep(ctx)
	if err != nil {
		metrics.CompensatorErrorCounter.Inc()
		r.comp.logger.Warn("compensator pass aborted", "deleted", deleted, "error", err)
		return
	}
	if deleted > 0 {
		r.comp.logger.Info("compensator pass complete", "deleted", deleted)
	}
}
