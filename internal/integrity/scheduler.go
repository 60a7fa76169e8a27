package integrity

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tradefin-io/tradefingo/internal/config"
	"github.com/tradefin-io/tradefingo/internal/models"
)

// Scheduler drives the checker on its two cadences (frequent incremental,
// rare full) and accepts on-demand triggers. Callers never block on a sweep:
// triggers are fire-and-forget and results land in integrity_runs.
type Scheduler struct {
	mu sync.Mutex

	checker *Checker
	cfg     config.IntegrityConfig

	isRunning bool
	cancel    context.CancelFunc
	stopChan  chan struct{}
	trigger   chan models.IntegrityRunMode
	done      chan struct{}
}

// NewScheduler creates a scheduler over the checker.
func NewScheduler(checker *Checker, cfg config.IntegrityConfig) *Scheduler {
	return &Scheduler{
		checker: checker,
		cfg:     cfg,
		trigger: make(chan models.IntegrityRunMode, 8),
	}
}

// Start launches the background loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("integrity scheduler already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	s.isRunning = true

	go s.loop(ctx)
	log.Printf("🔍 Integrity scheduler started (incremental every %s, full every %s)",
		s.cfg.IncrementalInterval, s.cfg.FullInterval)
	return nil
}

// Stop cancels any in-flight sweep and waits for the loop to exit. An
// interrupted sweep checkpoints its watermark; nothing is corrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.cancel()
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
	log.Println("🛑 Integrity scheduler stopped")
}

// TriggerIncremental queues an on-demand incremental sweep.
func (s *Scheduler) TriggerIncremental() {
	s.queue(models.RunIncremental)
}

// TriggerFull queues an on-demand full sweep.
func (s *Scheduler) TriggerFull() {
	s.queue(models.RunFull)
}

func (s *Scheduler) queue(mode models.IntegrityRunMode) {
	select {
	case s.trigger <- mode:
	default:
		// A sweep of this kind is already queued; the pending one covers it.
		log.Printf("⚠️ Integrity trigger queue full, dropping %s request", mode)
	}
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	incremental := time.NewTicker(s.cfg.IncrementalInterval)
	full := time.NewTicker(s.cfg.FullInterval)
	defer incremental.Stop()
	defer full.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-incremental.C:
			s.run(ctx, models.RunIncremental)
		case <-full.C:
			s.run(ctx, models.RunFull)
		case mode := <-s.trigger:
			s.run(ctx, mode)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, mode models.IntegrityRunMode) {
	var err error
	if mode == models.RunFull {
		_, err = s.checker.CheckFull(ctx)
	} else {
		_, err = s.checker.CheckIncremental(ctx)
	}
	if err != nil && ctx.Err() == nil {
		log.Printf("⚠️ Integrity sweep (%s) failed: %v", mode, err)
	}
}
