// Package setup validates a user's Cloudflare configuration and stocks the
// rule pool the first time.
package setup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"hide-mail-go/internal/cloudflare"
	"hide-mail-go/internal/metrics"
	"hide-mail-go/internal/model"
	"hide-mail-go/internal/pool"
)

// Provider is the part of the Cloudflare client setup talks to.
type Provider interface {
	GetRoutingSettings(ctx context.Context, zoneID string) (cloudflare.RoutingSettings, error)
	ListAddresses(ctx context.Context, accountID string) ([]cloudflare.DestinationAddress, error)
	CreateAddress(ctx context.Context, accountID, email string) (cloudflare.DestinationAddress, error)
}

// PoolFiller tops the pool up to a target size.
type PoolFiller interface {
	FillPoolTo(ctx context.Context, target int, domain, placeholder string, progress pool.ProgressFunc) (int, error)
}

// SettingsSaver persists settings as the flow advances.
type SettingsSaver interface {
	Save(ctx context.Context, s model.Settings) error
}

// Options tunes the flow.
type Options struct {
	TargetSize   int
	SyncInterval time.Duration
	SyncTimeout  time.Duration
}

// Orchestrator runs the setup flow for one set of credentials.
type Orchestrator struct {
	provider Provider
	filler   PoolFiller
	store    SettingsSaver
	opts     Options
	metrics  *metrics.Metrics

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator creates an orchestrator. provider must already carry the
// API key of the settings passed to Run.
func NewOrchestrator(provider Provider, filler PoolFiller, store SettingsSaver, opts Options, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		provider: provider,
		filler:   filler,
		store:    store,
		opts:     opts,
		metrics:  m,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Run executes the flow and returns the settings as last saved. Classified
// failures are returned as *Failure. The credentials are saved before any
// remote call so they survive a failed run.
func (o *Orchestrator) Run(ctx context.Context, s model.Settings, obs Observer) (model.Settings, error) {
	if obs == nil {
		obs = ProgressFunc(nil)
	}

	start := o.now()
	s, err := o.run(ctx, s, obs)
	o.metrics.SetupDuration.Observe(o.now().Sub(start).Seconds())
	o.metrics.SetupRuns.WithLabelValues(resultLabel(err)).Inc()

	if err != nil {
		logrus.WithField("zone_id", s.ZoneID).Warnf("Setup failed: %v", err)
		return s, err
	}

	logrus.WithFields(logrus.Fields{
		"zone_id": s.ZoneID,
		"domain":  s.AccountDomain,
	}).Info("Setup completed")
	return s, nil
}

func (o *Orchestrator) run(ctx context.Context, s model.Settings, obs Observer) (model.Settings, error) {
	if err := o.store.Save(ctx, s); err != nil {
		return s, fmt.Errorf("failed to save credentials: %w", err)
	}

	obs.SetState(StateCheckingCredentials)
	obs.Status("Checking settings...")

	routing, err := o.provider.GetRoutingSettings(ctx, s.ZoneID)
	if err != nil {
		return s, classifySettingsError(err)
	}

	if !routing.Enabled {
		return s, newFailure(KindNotEnabled)
	}
	if routing.Status != cloudflare.StatusReady {
		return s, newFailure(KindNotReady)
	}

	if !routing.Synced {
		obs.SetState(StateWaitingForSync)
		obs.Status("Waiting for settings to sync...")
		if err := o.WaitForSettingsToSync(ctx, s.ZoneID); err != nil {
			return s, err
		}
	}

	s.AccountDomain = routing.Name
	if err := o.store.Save(ctx, s); err != nil {
		return s, fmt.Errorf("failed to save account domain: %w", err)
	}

	obs.SetState(StateCheckingDestinationAddress)
	obs.Status("Checking addresses...")

	dest, err := o.ensureDestination(ctx, s, obs)
	if err != nil {
		return s, err
	}
	if !dest.IsVerified() {
		return s, newFailure(KindNotVerified)
	}

	obs.SetState(StateCreatingPoolRules)
	if _, err := o.filler.FillPoolTo(ctx, o.opts.TargetSize, s.AccountDomain, s.DestinationEmail, obs.Status); err != nil {
		return s, fmt.Errorf("failed to create pool rules: %w", err)
	}

	obs.SetState(StateWaitingForSync)
	obs.Status("Waiting for settings to sync...")
	if err := o.WaitForSettingsToSync(ctx, s.ZoneID); err != nil {
		return s, err
	}

	s.Inited = true
	if err := o.store.Save(ctx, s); err != nil {
		return s, fmt.Errorf("failed to save settings: %w", err)
	}
	obs.SetState(StateReady)
	return s, nil
}

func (o *Orchestrator) ensureDestination(ctx context.Context, s model.Settings, obs Observer) (cloudflare.DestinationAddress, error) {
	addresses, err := o.provider.ListAddresses(ctx, s.AccountID)
	if err != nil {
		return cloudflare.DestinationAddress{}, fmt.Errorf("failed to list destination addresses: %w", err)
	}

	for _, a := range addresses {
		if strings.EqualFold(a.Email, s.DestinationEmail) {
			return a, nil
		}
	}

	obs.Status("Adding destination address...")
	created, err := o.provider.CreateAddress(ctx, s.AccountID, s.DestinationEmail)
	if err != nil {
		return cloudflare.DestinationAddress{}, fmt.Errorf("failed to add destination address: %w", err)
	}
	return created, nil
}

// WaitForSettingsToSync polls routing settings until they report synced.
// It gives up with ErrSyncTimeout once more than the sync timeout has
// elapsed since the first poll.
func (o *Orchestrator) WaitForSettingsToSync(ctx context.Context, zoneID string) error {
	start := o.now()
	for {
		routing, err := o.provider.GetRoutingSettings(ctx, zoneID)
		if err != nil {
			return fmt.Errorf("failed to poll routing settings: %w", err)
		}
		if routing.Synced {
			return nil
		}

		if o.now().Sub(start) > o.opts.SyncTimeout {
			return ErrSyncTimeout
		}
		if err := o.sleep(ctx, o.opts.SyncInterval); err != nil {
			return err
		}
	}
}

// classifySettingsError maps the first recognised error code to a failure.
func classifySettingsError(err error) error {
	var apiErr *cloudflare.APIError
	if errors.As(err, &apiErr) {
		for _, e := range apiErr.Errors {
			switch e.Code {
			case cloudflare.CodeAuthError:
				return newFailure(KindAuthError)
			case cloudflare.CodeInvalidZoneID:
				return newFailure(KindWrongZoneID)
			}
		}
	}
	return fmt.Errorf("failed to read email routing settings: %w", err)
}

func resultLabel(err error) string {
	if err == nil {
		return string(StateReady)
	}
	if f, ok := AsFailure(err); ok {
		return string(f.Kind)
	}
	if errors.Is(err, ErrSyncTimeout) {
		return "sync_timeout"
	}
	return "error"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
