package services

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"knowledge-engine/internal/logger"
)

// MemoryScheduler drives the memory engine's background cycle on a fixed
// interval. Start is idempotent and Stop waits for an in-flight cycle with
// a bounded join.
type MemoryScheduler struct {
	mu        sync.Mutex
	scheduler *gocron.Scheduler
	engine    *MemoryEngine
	interval  time.Duration
	cancel    context.CancelFunc
	running   bool
}

func NewMemoryScheduler(engine *MemoryEngine, interval time.Duration) *MemoryScheduler {
	if interval <= 0 {
		interval = time.Hour
	}

	ms := &MemoryScheduler{
		engine:   engine,
		interval: interval,
	}
	engine.backgroundActive = ms.Running
	return ms
}

// Start launches the background cycle. Calling Start while running is a
// no-op.
func (ms *MemoryScheduler) Start() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.running {
		logger.Debug("Memory scheduler already running")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	ms.cancel = cancel

	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	if _, err := s.Every(ms.interval).Tag("memory-cycle").Do(func() {
		ms.engine.RunCycle(ctx)
	}); err != nil {
		cancel()
		return err
	}

	s.StartAsync()
	ms.scheduler = s
	ms.running = true
	logger.Info("Memory scheduler started", "interval", ms.interval.String())
	return nil
}

// Stop signals the cycle to wind down and joins the scheduler. gocron's
// Stop blocks until running jobs finish; the context cancellation bounds
// how long a cycle's network calls can hold that up.
func (ms *MemoryScheduler) Stop() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if !ms.running {
		return
	}

	if ms.cancel != nil {
		ms.cancel()
	}
	ms.scheduler.Stop()
	ms.scheduler = nil
	ms.running = false
	logger.Info("Memory scheduler stopped")
}

func (ms *MemoryScheduler) Running() bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.running
}
