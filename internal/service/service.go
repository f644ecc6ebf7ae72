// Package service ties the stored settings to per-zone pool components.
package service

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"hide-mail-go/internal/config"
	"hide-mail-go/internal/lifecycle"
	"hide-mail-go/internal/metrics"
	"hide-mail-go/internal/model"
	"hide-mail-go/internal/pool"
	"hide-mail-go/internal/repository"
	"hide-mail-go/internal/settings"
	"hide-mail-go/internal/setup"
)

// ErrSetupRunning is returned when a setup run is already in progress.
var ErrSetupRunning = errors.New("setup is already running")

// Provider is every Cloudflare call the pool components make.
type Provider interface {
	repository.RuleLister
	pool.RuleCreator
	lifecycle.RuleWriter
	setup.Provider
}

// ProviderFunc returns a provider authenticated with apiKey.
type ProviderFunc func(apiKey string) Provider

// Service serves pool queries, lifecycle operations and setup runs against
// whatever settings are currently stored.
type Service struct {
	store       settings.Store
	providerFor ProviderFunc
	poolCfg     config.PoolConfig
	syncCfg     config.SyncConfig
	generator   pool.LocalPartGenerator
	metrics     *metrics.Metrics

	mu      sync.Mutex
	tracker *setup.Tracker
}

// New creates a service.
func New(store settings.Store, providerFor ProviderFunc, poolCfg config.PoolConfig, syncCfg config.SyncConfig, gen pool.LocalPartGenerator, m *metrics.Metrics) *Service {
	return &Service{
		store:       store,
		providerFor: providerFor,
		poolCfg:     poolCfg,
		syncCfg:     syncCfg,
		generator:   gen,
		metrics:     m,
	}
}

type zone struct {
	settings    model.Settings
	provider    Provider
	repo        *repository.Repository
	provisioner *pool.Provisioner
	manager     *lifecycle.Manager
}

func (s *Service) zoneFor(st model.Settings) *zone {
	p := s.providerFor(st.CloudflareAPIKey)
	repo := repository.New(p, st.ZoneID, s.poolCfg.PageSize)
	prov := pool.NewProvisioner(p, repo, st.ZoneID, s.generator, s.metrics)
	return &zone{
		settings:    st,
		provider:    p,
		repo:        repo,
		provisioner: prov,
		manager:     lifecycle.NewManager(p, repo, prov, st.ZoneID, s.metrics),
	}
}

// ready loads settings and fails with settings.ErrNotConfigured until setup
// has completed.
func (s *Service) ready(ctx context.Context) (*zone, error) {
	st, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := settings.RequireReady(st); err != nil {
		return nil, err
	}
	return s.zoneFor(st), nil
}

// Settings returns the stored settings.
func (s *Service) Settings(ctx context.Context) (model.Settings, error) {
	return s.store.Load(ctx)
}

// UpdateSettings validates and stores new credentials. Changing any
// credential clears the setup state so the pool is not used before the
// next setup run. It fails with ErrSetupRunning while a setup run holds the
// settings.
func (s *Service) UpdateSettings(ctx context.Context, next model.Settings) (model.Settings, error) {
	if s.SetupRunning() {
		return model.Settings{}, ErrSetupRunning
	}
	if err := settings.Validate(next); err != nil {
		return model.Settings{}, err
	}

	current, err := s.store.Load(ctx)
	if err != nil {
		return model.Settings{}, err
	}

	next.ID = current.ID
	if sameCredentials(current, next) {
		next.AccountDomain = current.AccountDomain
		next.Inited = current.Inited
	} else {
		next.AccountDomain = ""
		next.Inited = false
	}

	if err := s.store.Save(ctx, next); err != nil {
		return model.Settings{}, err
	}
	return next, nil
}

func sameCredentials(a, b model.Settings) bool {
	return a.CloudflareAPIKey == b.CloudflareAPIKey &&
		a.DestinationEmail == b.DestinationEmail &&
		a.ZoneID == b.ZoneID &&
		a.AccountID == b.AccountID
}

// StartSetup launches a setup run in the background and returns its id.
// The run is detached from ctx so it outlives the request that started it.
func (s *Service) StartSetup(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tracker != nil && s.tracker.Running() {
		return "", ErrSetupRunning
	}

	st, err := s.store.Load(ctx)
	if err != nil {
		return "", err
	}
	if err := settings.Validate(st); err != nil {
		return "", err
	}

	z := s.zoneFor(st)
	orch := setup.NewOrchestrator(z.provider, z.provisioner, s.store, setup.Options{
		TargetSize:   s.poolCfg.TargetSize,
		SyncInterval: s.syncCfg.Interval,
		SyncTimeout:  s.syncCfg.Timeout,
	}, s.metrics)

	runID := uuid.NewString()
	tracker := setup.NewTracker(runID)
	s.tracker = tracker

	go func() {
		logrus.WithField("run_id", runID).Info("Setup run started")
		_, err := orch.Run(context.Background(), st, tracker)
		tracker.Finish(err)
	}()

	return runID, nil
}

// SetupStatus returns the latest setup run, if any.
func (s *Service) SetupStatus() (setup.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tracker == nil {
		return setup.Snapshot{}, false
	}
	return s.tracker.Snapshot(), true
}

// SetupRunning reports whether a setup run is in progress.
func (s *Service) SetupRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker != nil && s.tracker.Running()
}

// WaitForSetup blocks until the current setup run finishes or ctx is done.
func (s *Service) WaitForSetup(ctx context.Context) error {
	s.mu.Lock()
	tracker := s.tracker
	s.mu.Unlock()
	if tracker == nil {
		return nil
	}

	select {
	case <-tracker.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListUsed returns the assigned rules.
func (s *Service) ListUsed(ctx context.Context) ([]model.PoolRule, error) {
	z, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	rules, err := z.repo.ListUsedRules(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.UsedRules.Set(float64(len(rules)))
	return rules, nil
}

// ListUnused returns the free rules, oldest first.
func (s *Service) ListUnused(ctx context.Context) ([]model.PoolRule, error) {
	z, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	rules, err := z.repo.ListUnusedRules(ctx)
	if err != nil {
		return nil, err
	}
	s.metrics.UnusedRules.Set(float64(len(rules)))
	return rules, nil
}

// Assign hands out the oldest unused rule under label, forwarding to the
// configured destination.
func (s *Service) Assign(ctx context.Context, label string) (model.PoolRule, error) {
	z, err := s.ready(ctx)
	if err != nil {
		return model.PoolRule{}, err
	}
	return z.manager.AssignNext(ctx, label, z.settings.DestinationEmail)
}

// Relabel changes the label of the used rule with the given id.
func (s *Service) Relabel(ctx context.Context, id, label string) (model.PoolRule, error) {
	z, err := s.ready(ctx)
	if err != nil {
		return model.PoolRule{}, err
	}
	rule, err := z.repo.FindManagedRule(ctx, id)
	if err != nil {
		return model.PoolRule{}, err
	}
	return z.manager.Relabel(ctx, rule, label, "")
}

// Release deletes the rule with the given id and replaces it with a fresh
// unused one.
func (s *Service) Release(ctx context.Context, id string) error {
	z, err := s.ready(ctx)
	if err != nil {
		return err
	}
	rule, err := z.repo.FindManagedRule(ctx, id)
	if err != nil {
		return err
	}
	return z.manager.Release(ctx, rule, z.settings.AccountDomain, z.settings.DestinationEmail)
}

// Reconcile tops the pool back up to the configured target.
func (s *Service) Reconcile(ctx context.Context) (int, error) {
	z, err := s.ready(ctx)
	if err != nil {
		return 0, err
	}
	return z.provisioner.Reconcile(ctx, z.settings, s.poolCfg.TargetSize)
}
