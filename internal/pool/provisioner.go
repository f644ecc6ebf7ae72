// Package pool keeps the zone stocked with unused forwarding rules so that
// handing out an address never waits on rule creation.
package pool

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"hide-mail-go/internal/cloudflare"
	"hide-mail-go/internal/metrics"
	"hide-mail-go/internal/model"
	"hide-mail-go/internal/rulename"
)

// maxLocalPartAttempts bounds regeneration of local-parts already in use.
const maxLocalPartAttempts = 10

// ProgressFunc receives human-readable status lines for the UI.
type ProgressFunc func(status string)

// RuleCreator is the part of the Cloudflare client the provisioner writes to.
type RuleCreator interface {
	CreateRule(ctx context.Context, zoneID string, req cloudflare.RuleRequest) (cloudflare.Rule, error)
}

// ManagedRuleLister lists the zone's managed rules.
type ManagedRuleLister interface {
	ListManagedRules(ctx context.Context) ([]model.PoolRule, error)
}

// Provisioner creates unused pool rules.
type Provisioner struct {
	client    RuleCreator
	repo      ManagedRuleLister
	zoneID    string
	generator LocalPartGenerator
	metrics   *metrics.Metrics
	now       func() time.Time
}

// NewProvisioner creates a provisioner for one zone.
func NewProvisioner(client RuleCreator, repo ManagedRuleLister, zoneID string, gen LocalPartGenerator, m *metrics.Metrics) *Provisioner {
	return &Provisioner{
		client:    client,
		repo:      repo,
		zoneID:    zoneID,
		generator: gen,
		metrics:   m,
		now:       time.Now,
	}
}

// CreatePoolRule creates one unused rule at domain forwarding to placeholder.
// Cloudflare requires a forward target even for rules nobody uses yet.
func (p *Provisioner) CreatePoolRule(ctx context.Context, placeholder, domain string) (model.PoolRule, error) {
	return p.createPoolRule(ctx, placeholder, domain, nil)
}

func (p *Provisioner) createPoolRule(ctx context.Context, placeholder, domain string, taken map[string]struct{}) (model.PoolRule, error) {
	address := p.freshAddress(domain, taken)
	name := rulename.Name{CreatedAt: p.now()}

	rule, err := p.client.CreateRule(ctx, p.zoneID, cloudflare.ForwardRule(rulename.Encode(name), address, placeholder))
	if err != nil {
		p.metrics.ProviderErrors.Inc()
		return model.PoolRule{}, err
	}
	p.metrics.RulesCreated.Inc()

	if taken != nil {
		taken[address] = struct{}{}
	}

	logrus.WithFields(logrus.Fields{
		"rule_id": rule.ID,
		"address": address,
	}).Debug("Created pool rule")

	return model.PoolRule{
		ID:             rule.ID,
		Name:           name,
		MailboxAddress: address,
		ForwardTarget:  placeholder,
	}, nil
}

func (p *Provisioner) freshAddress(domain string, taken map[string]struct{}) string {
	var address string
	for attempt := 0; attempt < maxLocalPartAttempts; attempt++ {
		address = Address(p.generator.LocalPart(), domain)
		if _, dup := taken[address]; !dup {
			return address
		}
	}
	logrus.Warnf("Local-part space crowded after %d attempts, adding random suffix", maxLocalPartAttempts)
	return Address(p.generator.LocalPart()+"-"+uuid.NewString()[:8], domain)
}

// FillPoolTo creates rules until the zone holds at least target managed
// rules and returns how many it created. Existing rules are never removed.
// The first failed create aborts the fill and is returned as is.
func (p *Provisioner) FillPoolTo(ctx context.Context, target int, domain, placeholder string, progress ProgressFunc) (int, error) {
	if progress == nil {
		progress = func(string) {}
	}

	managed, err := p.repo.ListManagedRules(ctx)
	if err != nil {
		return 0, err
	}

	missing := target - len(managed)
	if missing <= 0 {
		logrus.Debugf("Pool holds %d managed rules, target %d, nothing to create", len(managed), target)
		return 0, nil
	}

	taken := make(map[string]struct{}, target)
	for _, r := range managed {
		taken[r.MailboxAddress] = struct{}{}
	}

	logrus.Infof("Pool holds %d of %d managed rules, creating %d", len(managed), target, missing)
	progress(fmt.Sprintf("Creating app rules: 0/%d", missing))

	for i := 0; i < missing; i++ {
		progress(fmt.Sprintf("Creating app rules: %d/%d", i+1, missing))
		if _, err := p.createPoolRule(ctx, placeholder, domain, taken); err != nil {
			logrus.Errorf("Failed to create pool rule %d of %d: %v", i+1, missing, err)
			return i, err
		}
	}

	return missing, nil
}

// Reconcile tops the pool back up to target using the configured domain and
// destination. It closes the gap a Release leaves when its replacement
// create fails.
func (p *Provisioner) Reconcile(ctx context.Context, settings model.Settings, target int) (int, error) {
	if !settings.Ready() {
		return 0, fmt.Errorf("cannot reconcile pool: setup has not completed")
	}

	p.metrics.Reconciles.Inc()
	created, err := p.FillPoolTo(ctx, target, settings.AccountDomain, settings.DestinationEmail, nil)
	if created > 0 {
		logrus.Infof("Pool reconciliation created %d rules", created)
	}
	return created, err
}
