package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/sirupsen/logrus"

	"hide-mail-go/internal/cloudflare"
	"hide-mail-go/internal/model"
	"hide-mail-go/internal/rulename"
)

// ErrRuleNotFound is returned when an id does not resolve to a managed rule.
var ErrRuleNotFound = errors.New("rule not found")

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 50

// RuleLister is the part of the Cloudflare client the repository reads from.
type RuleLister interface {
	ListRules(ctx context.Context, zoneID string, page, perPage int) (cloudflare.RulePage, error)
}

// Repository reads the zone's routing rules and classifies the managed ones.
// It keeps no state between calls; every query goes to the provider.
type Repository struct {
	client   RuleLister
	zoneID   string
	pageSize int
}

// New creates a repository for one zone.
func New(client RuleLister, zoneID string, pageSize int) *Repository {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Repository{client: client, zoneID: zoneID, pageSize: pageSize}
}

// ListAllRules fetches every rule in the zone, managed or not.
// Paging stops once the reported total is reached, or after the first page
// when the provider reports no total at all.
func (r *Repository) ListAllRules(ctx context.Context) ([]cloudflare.Rule, error) {
	var rules []cloudflare.Rule

	for page := 1; ; page++ {
		p, err := r.client.ListRules(ctx, r.zoneID, page, r.pageSize)
		if err != nil {
			return nil, err
		}
		rules = append(rules, p.Rules...)

		if p.TotalCount == nil || *p.TotalCount == 0 || len(rules) >= *p.TotalCount {
			break
		}
		// an empty page before the total is reached means the total is stale
		if len(p.Rules) == 0 {
			logrus.Warnf("Rule listing returned an empty page %d before reaching total %d", page, *p.TotalCount)
			break
		}
	}

	return rules, nil
}

// ListManagedRules returns all managed rules in provider order.
func (r *Repository) ListManagedRules(ctx context.Context) ([]model.PoolRule, error) {
	rules, err := r.ListAllRules(ctx)
	if err != nil {
		return nil, err
	}

	managed := make([]model.PoolRule, 0, len(rules))
	for _, rule := range rules {
		if pr, ok := ToPoolRule(rule); ok {
			managed = append(managed, pr)
		}
	}
	return managed, nil
}

// ListUsedRules returns managed rules that carry a label.
func (r *Repository) ListUsedRules(ctx context.Context) ([]model.PoolRule, error) {
	managed, err := r.ListManagedRules(ctx)
	if err != nil {
		return nil, err
	}

	used := make([]model.PoolRule, 0, len(managed))
	for _, pr := range managed {
		if pr.Used() {
			used = append(used, pr)
		}
	}
	return used, nil
}

// ListUnusedRules returns the pool's free rules, oldest first.
func (r *Repository) ListUnusedRules(ctx context.Context) ([]model.PoolRule, error) {
	managed, err := r.ListManagedRules(ctx)
	if err != nil {
		return nil, err
	}

	unused := make([]model.PoolRule, 0, len(managed))
	for _, pr := range managed {
		if !pr.Used() {
			unused = append(unused, pr)
		}
	}

	sort.SliceStable(unused, func(i, j int) bool {
		return unused[i].Name.CreatedAt.Before(unused[j].Name.CreatedAt)
	})
	return unused, nil
}

// CountManagedRules returns the pool size, used and unused.
func (r *Repository) CountManagedRules(ctx context.Context) (int, error) {
	managed, err := r.ListManagedRules(ctx)
	if err != nil {
		return 0, err
	}
	return len(managed), nil
}

// FindManagedRule looks up a managed rule by id.
func (r *Repository) FindManagedRule(ctx context.Context, id string) (model.PoolRule, error) {
	managed, err := r.ListManagedRules(ctx)
	if err != nil {
		return model.PoolRule{}, err
	}
	for _, pr := range managed {
		if pr.ID == id {
			return pr, nil
		}
	}
	return model.PoolRule{}, ErrRuleNotFound
}

// ToPoolRule converts a provider rule. ok is false for foreign rules and for
// managed-looking rules without a literal "to" matcher.
func ToPoolRule(rule cloudflare.Rule) (model.PoolRule, bool) {
	name, ok := rulename.Decode(rule.Name)
	if !ok {
		return model.PoolRule{}, false
	}

	address, ok := rule.MatchedAddress()
	if !ok {
		logrus.WithField("rule_id", rule.ID).Debug("Ignoring managed rule without address matcher")
		return model.PoolRule{}, false
	}

	pr := model.PoolRule{
		ID:             rule.ID,
		Name:           name,
		MailboxAddress: address,
	}
	if target, ok := rule.ForwardTarget(); ok {
		pr.ForwardTarget = target
	}
	return pr, true
}
