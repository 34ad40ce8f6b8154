package services

import (
	"context"
	"sync"
	"time"

	"github.com/Renal37/orderbridge/internal/logger"
	"github.com/Renal37/orderbridge/internal/metrics"
	"github.com/Renal37/orderbridge/internal/models"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const DefaultPollingInterval = 30 * time.Second

// CycleFunc is the work the scheduler runs on every tick.
type CycleFunc func(ctx context.Context) (models.SyncSummary, error)

// Scheduler runs a cycle on a fixed interval, never two at a time. A tick or manual
// trigger that arrives while a cycle runs is dropped, not queued. Cycles are detached
// from cancellation and always run to completion.
type Scheduler struct {
	cycle    CycleFunc
	interval time.Duration
	log      *zap.Logger

	running atomic.Bool
	started atomic.Bool
	cycles  atomic.Int64
	skipped atomic.Int64

	mu      sync.Mutex
	baseCtx context.Context
	stopped bool
	stop    chan struct{}
	wg      sync.WaitGroup

	summaryMu sync.RWMutex
	last      models.SyncSummary
	hasLast   bool
}

func NewScheduler(cycle CycleFunc, interval time.Duration, log *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultPollingInterval
	}
	if log == nil {
		log = logger.Log
	}

	return &Scheduler{
		cycle:    cycle,
		interval: interval,
		log:      log,
		baseCtx:  context.Background(),
		stop:     make(chan struct{}),
	}
}

// Start fires one cycle right away and then one per interval until Stop is called or ctx
// is done. Calling Start again has no effect.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.baseCtx = ctx
	s.wg.Add(1)
	s.mu.Unlock()

	s.log.Info("polling scheduler started", zap.Duration("interval", s.interval))

	s.fire()

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.fire()
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Run starts the scheduler and blocks until ctx is done, then stops it.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start(ctx)
	<-ctx.Done()
	s.Stop()
	return nil
}

// Stop stops the ticker and waits for the in-flight cycle. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stop)
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("polling scheduler stopped",
		zap.Int64("cycles", s.cycles.Load()),
		zap.Int64("skipped_ticks", s.skipped.Load()),
	)
}

// TriggerNow runs a cycle out of schedule. It returns false when a cycle is already
// running or the scheduler is stopped.
func (s *Scheduler) TriggerNow() bool {
	return s.fire()
}

func (s *Scheduler) fire() bool {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Inc()
		s.log.Debug("polling tick skipped, previous cycle still running")
		return false
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.running.Store(false)
		return false
	}
	ctx := context.WithoutCancel(s.baseCtx)
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)

		s.runCycle(ctx)
	}()

	return true
}

func (s *Scheduler) runCycle(ctx context.Context) {
	started := time.Now()

	summary, err := s.cycle(ctx)

	metrics.PollCycleDuration.Observe(time.Since(started).Seconds())
	s.cycles.Inc()

	if err != nil {
		metrics.PollCyclesTotal.WithLabelValues("error").Inc()
		s.log.Warn("polling cycle failed", zap.Error(err))
	} else {
		metrics.PollCyclesTotal.WithLabelValues("ok").Inc()
	}

	s.summaryMu.Lock()
	s.last = summary
	s.hasLast = true
	s.summaryMu.Unlock()
}

// Cycles returns how many cycles have completed.
func (s *Scheduler) Cycles() int64 {
	return s.cycles.Load()
}

// SkippedTicks returns how many ticks and triggers were dropped because a cycle was running.
func (s *Scheduler) SkippedTicks() int64 {
	return s.skipped.Load()
}

// LastSummary returns the summary of the last completed cycle.
func (s *Scheduler) LastSummary() (models.SyncSummary, bool) {
	s.summaryMu.RLock()
	defer s.summaryMu.RUnlock()

	return s.last, s.hasLast
}

// IsRunning reports whether a cycle is in flight.
func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}
