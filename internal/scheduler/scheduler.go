package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"hide-mail-go/internal/settings"
)

// Reconciler tops the pool up and reports whether setup is in progress.
type Reconciler interface {
	Reconcile(ctx context.Context) (int, error)
	SetupRunning() bool
}

// Scheduler runs pool reconciliation periodically
type Scheduler struct {
	cron            *cron.Cron
	entryID         cron.EntryID
	intervalMinutes int
	reconciler      Reconciler
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	isRunning       bool
	mu              sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(intervalMinutes int, reconciler Reconciler) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:            cron.New(cron.WithSeconds()),
		intervalMinutes: intervalMinutes,
		reconciler:      reconciler,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if s.intervalMinutes <= 0 {
		return fmt.Errorf("reconcile interval must be greater than 0")
	}

	schedule := fmt.Sprintf("@every %dm", s.intervalMinutes)

	entryID, err := s.cron.AddFunc(schedule, s.reconcile)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with interval: %d minutes", s.intervalMinutes)
	return nil
}

// Stop stops the scheduler and waits for a running pass to finish
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	ctx := s.cron.Stop()

	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, cancelling running pass")
		s.cancel()
	}

	s.cron.Remove(s.entryID)
	s.isRunning = false
	return nil
}

// Shutdown stops the scheduler and cancels any pass still in flight
func (s *Scheduler) Shutdown() error {
	err := s.Stop()
	s.cancel()
	return err
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Scheduler) reconcile() {
	if _, err := s.RunOnce(); err != nil {
		logrus.Errorf("Pool reconciliation failed: %v", err)
	}
}

// RunOnce runs one reconciliation pass and returns how many rules it
// created. It is a no-op while setup runs or before setup has completed.
func (s *Scheduler) RunOnce() (int, error) {
	s.wg.Add(1)
	defer s.wg.Done()

	if s.reconciler.SetupRunning() {
		logrus.Info("Setup in progress, skipping reconciliation")
		return 0, nil
	}

	start := time.Now()
	created, err := s.reconciler.Reconcile(s.ctx)
	if errors.Is(err, settings.ErrNotConfigured) {
		logrus.Debug("Settings not configured, skipping reconciliation")
		return 0, nil
	}
	if err != nil {
		return created, err
	}

	logrus.Infof("Reconciliation completed in %v, created %d rules", time.Since(start), created)
	return created, nil
}

// GetNextRun returns the time of the next scheduled run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// GetLastRun returns the time of the last scheduled run
func (s *Scheduler) GetLastRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Prev
}

// Wait waits for in-flight passes to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
