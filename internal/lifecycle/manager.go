// Package lifecycle moves pool rules between the unused and used states.
package lifecycle

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
	"hide-mail-go/internal/rulename"
)

var (
	// ErrPoolExhausted is returned when no unused rule is left to hand out.
	ErrPoolExhausted = errors.New("no unused rules left in the pool")
	// ErrRuleInUse is returned when assigning a rule that already has a label.
	ErrRuleInUse = errors.New("rule is already in use")
	// ErrRuleNotAssigned is returned when relabelling or releasing a rule still
	// in the pool.
	ErrRuleNotAssigned = errors.New("rule has not been assigned")
)

// RuleWriter is the part of the Cloudflare client the manager mutates rules with.
type RuleWriter interface {
	UpdateRule(ctx context.Context, zoneID, ruleID string, req cloudflare.RuleRequest) (cloudflare.Rule, error)
	DeleteRule(ctx context.Context, zoneID, ruleID string) error
}

// UnusedLister returns the pool's free rules, oldest first.
type UnusedLister interface {
	ListUnusedRules(ctx context.Context) ([]model.PoolRule, error)
}

// Replenisher creates one replacement pool rule.
type Replenisher interface {
	CreatePoolRule(ctx context.Context, placeholder, domain string) (model.PoolRule, error)
}

// Manager assigns, relabels and releases pool rules.
type Manager struct {
	client      RuleWriter
	repo        UnusedLister
	provisioner Replenisher
	zoneID      string
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewManager creates a manager for one zone.
func NewManager(client RuleWriter, repo UnusedLister, provisioner Replenisher, zoneID string, m *metrics.Metrics) *Manager {
	return &Manager{
		client:      client,
		repo:        repo,
		provisioner: provisioner,
		zoneID:      zoneID,
		metrics:     m,
		now:         time.Now,
	}
}

// Assign hands out an unused rule under label, forwarding to forwardTarget.
// The name's timestamp is reset to now.
func (m *Manager) Assign(ctx context.Context, rule model.PoolRule, label, forwardTarget string) (model.PoolRule, error) {
	if err := validLabel(label); err != nil {
		return model.PoolRule{}, err
	}
	if rule.Used() {
		return model.PoolRule{}, ErrRuleInUse
	}

	name := rulename.Name{CreatedAt: m.now(), Label: label, Description: rule.Name.Description}
	updated, err := m.update(ctx, rule, name, forwardTarget)
	if err != nil {
		return model.PoolRule{}, err
	}

	m.metrics.RulesAssigned.Inc()
	logrus.WithFields(logrus.Fields{
		"rule_id": rule.ID,
		"address": rule.MailboxAddress,
	}).Info("Assigned pool rule")
	return updated, nil
}

// AssignNext assigns the oldest unused rule.
func (m *Manager) AssignNext(ctx context.Context, label, forwardTarget string) (model.PoolRule, error) {
	if err := validLabel(label); err != nil {
		return model.PoolRule{}, err
	}

	unused, err := m.repo.ListUnusedRules(ctx)
	if err != nil {
		return model.PoolRule{}, err
	}
	if len(unused) == 0 {
		return model.PoolRule{}, ErrPoolExhausted
	}

	return m.Assign(ctx, unused[0], label, forwardTarget)
}

// Relabel changes the label of a used rule. An empty forwardTarget keeps the
// current one.
func (m *Manager) Relabel(ctx context.Context, rule model.PoolRule, newLabel, forwardTarget string) (model.PoolRule, error) {
	if err := validLabel(newLabel); err != nil {
		return model.PoolRule{}, err
	}
	if !rule.Used() {
		return model.PoolRule{}, ErrRuleNotAssigned
	}
	if forwardTarget == "" {
		forwardTarget = rule.ForwardTarget
	}

	name := rulename.Name{CreatedAt: m.now(), Label: newLabel, Description: rule.Name.Description}
	return m.update(ctx, rule, name, forwardTarget)
}

func (m *Manager) update(ctx context.Context, rule model.PoolRule, name rulename.Name, forwardTarget string) (model.PoolRule, error) {
	req := cloudflare.ForwardRule(rulename.Encode(name), rule.MailboxAddress, forwardTarget)
	if _, err := m.client.UpdateRule(ctx, m.zoneID, rule.ID, req); err != nil {
		m.metrics.ProviderErrors.Inc()
		return model.PoolRule{}, err
	}

	return model.PoolRule{
		ID:             rule.ID,
		Name:           name,
		MailboxAddress: rule.MailboxAddress,
		ForwardTarget:  forwardTarget,
	}, nil
}

// Release deletes rule and creates one unused replacement at domain. The two
// calls are not atomic: if the create fails the pool stays one rule short
// until the next reconciliation.
func (m *Manager) Release(ctx context.Context, rule model.PoolRule, domain, placeholder string) error {
	if !rule.Used() {
		return ErrRuleNotAssigned
	}
	if err := m.client.DeleteRule(ctx, m.zoneID, rule.ID); err != nil {
		m.metrics.ProviderErrors.Inc()
		return err
	}
	m.metrics.RulesDeleted.Inc()

	log := logrus.WithFields(logrus.Fields{
		"rule_id": rule.ID,
		"address": rule.MailboxAddress,
	})

	replacement, err := m.provisioner.CreatePoolRule(ctx, placeholder, domain)
	if err != nil {
		log.Warnf("Deleted rule but failed to create its replacement, pool is one rule short: %v", err)
		return err
	}

	log.WithField("replacement_id", replacement.ID).Info("Released pool rule")
	return nil
}

func validLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return fmt.Errorf("%w: must not be empty", rulename.ErrInvalidLabel)
	}
	return rulename.ValidateLabel(label)
}
