package outbox

import (
	"context"
	"time"

	"shiftcheck/internal/shared/clock"

	"go.uber.org/zap"
)

const drainBatchSize = 20

// Drainer polls the outbox and pushes due submissions through the pipeline.
// It runs on a slow cadence while the outbox is empty and tightens up while
// work is in flight.
type Drainer struct {
	repo       Repository
	pipeline   *Pipeline
	clk        clock.Clock
	idlePoll   time.Duration
	activePoll time.Duration
	logger     *zap.Logger
}

func NewDrainer(repo Repository, pipeline *Pipeline, clk clock.Clock, idlePoll, activePoll time.Duration) *Drainer {
	if idlePoll <= 0 {
		idlePoll = 30 * time.Second
	}
	if activePoll <= 0 {
		activePoll = 5 * time.Second
	}
	return &Drainer{
		repo:       repo,
		pipeline:   pipeline,
		clk:        clk,
		idlePoll:   idlePoll,
		activePoll: activePoll,
		logger:     zap.L().Named("outbox.drainer"),
	}
}

// Run blocks until ctx is cancelled. One drain happens immediately on start
// so submissions left over from a previous run are picked up without waiting
// a full idle interval.
func (d *Drainer) Run(ctx context.Context) {
	d.logger.Info("drainer started",
		zap.Duration("idle_poll", d.idlePoll),
		zap.Duration("active_poll", d.activePoll),
	)
	for {
		d.drainOnce(ctx)

		interval := d.idlePoll
		if active, err := d.repo.CountActive(ctx); err == nil && active > 0 {
			interval = d.activePoll
		}

		select {
		case <-ctx.Done():
			d.logger.Info("drainer stopped")
			return
		case <-d.clk.After(interval):
		}
	}
}

// drainOnce processes due submissions sequentially. Sequential is deliberate:
// a single device produces a handful of submissions a day, and the shared
// xlsx client is simpler without concurrent appends.
func (d *Drainer) drainOnce(ctx context.Context) {
	due, err := d.repo.ListDue(ctx, d.clk.Now(), drainBatchSize)
	if err != nil {
		d.logger.Error("list due submissions failed", zap.Error(err))
		return
	}

	for i := range due {
		if ctx.Err() != nil {
			return
		}
		// Process records its own outcome on the submission row; errors here
		// only mean the attempt ended early and will retry on schedule.
		_ = d.pipeline.Process(ctx, &due[i])
	}
}
