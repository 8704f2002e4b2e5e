package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/custodia-labs/tidemark/internal/core/ports/driving"
	"github.com/custodia-labs/tidemark/internal/logger"
)

// sweepSchedule is how often pending batches are checked for output
// between submission cycles.
const sweepSchedule = "*/15 * * * *"

// Scheduler runs the pipeline on a timetable.
type Scheduler struct {
	pipeline driving.Pipeline
	schedule string
	base     driving.RunOptions
	sources  func() []string

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	cron    *cron.Cron
}

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// NewScheduler creates a scheduler that submits batches on the given
// cron schedule and sweeps pending outputs every fifteen minutes.
// The sources callback is consulted at the start of every cycle, so
// configuration changes take effect without a restart.
func NewScheduler(
	pipeline driving.Pipeline,
	schedule string,
	base driving.RunOptions,
	sources func() []string,
) *Scheduler {
	return &Scheduler{
		pipeline: pipeline,
		schedule: schedule,
		base:     base,
		sources:  sources,
	}
}

// Start begins the scheduler loop. This method blocks until Stop is
// called or the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil // Already running
	}

	// Overlapping cycles are skipped rather than queued: a slow batch
	// submission must not pile up duplicate runs behind it.
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(s.schedule, func() { s.runCycle(ctx) }); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("parse schedule %q: %w", s.schedule, err)
	}
	if _, err := c.AddFunc(sweepSchedule, func() { s.sweep(ctx) }); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("parse sweep schedule: %w", err)
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.cron = c
	s.mu.Unlock()

	logger.Info("Scheduler started (cycle %q, sweep %q)", s.schedule, sweepSchedule)

	// Collect anything left over from a previous process before the
	// first tick.
	s.sweep(ctx)

	c.Start()

	select {
	case <-ctx.Done():
		<-c.Stop().Done()
		return ctx.Err()
	case <-s.stopCh:
		<-c.Stop().Done()
		return nil
	}
}

// Stop gracefully shuts down the scheduler. Start returns once any
// in-flight cycle has completed.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	return nil
}

// runCycle submits one batch per enabled source, collecting finished
// batches first so their outputs land before new work is queued.
func (s *Scheduler) runCycle(ctx context.Context) {
	sources := s.sources()
	if len(sources) == 0 {
		logger.Info("No sources enabled: skipping scheduled cycle")
		return
	}

	if err := s.pipeline.CheckPending(ctx); err != nil {
		logger.Warn("Pending sweep failed: %v", err)
	}

	opts := s.base
	opts.Sources = sources
	opts.Wait = false
	if err := s.pipeline.Run(ctx, opts); err != nil {
		logger.Error("Scheduled cycle failed: %v", err)
	}
}

// sweep downloads outputs for batches submitted in earlier cycles.
func (s *Scheduler) sweep(ctx context.Context) {
	if err := s.pipeline.CheckPending(ctx); err != nil {
		logger.Warn("Pending sweep failed: %v", err)
	}
}
