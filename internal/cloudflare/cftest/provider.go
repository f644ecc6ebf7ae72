// Package cftest provides an in-memory stand-in for the Cloudflare client.
package cftest

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"hide-mail-go/internal/cloudflare"
	"hide-mail-go/internal/rulename"
)

// Provider implements the rule, routing and address calls of cloudflare.Client
// against in-memory state and counts every call.
type Provider struct {
	mu sync.Mutex

	Rules []cloudflare.Rule
	// OmitTotalCount makes ListRules report no total, as some API versions do.
	OmitTotalCount bool

	Settings cloudflare.RoutingSettings
	// SettingsErr is returned by every GetRoutingSettings call when set.
	SettingsErr error
	// SyncedSequence overrides Settings.Synced for the first len(SyncedSequence) calls.
	SyncedSequence []bool

	Addresses []cloudflare.DestinationAddress
	// VerifyOnCreate marks addresses created through CreateAddress as verified.
	VerifyOnCreate bool

	ListErr   error
	CreateErr error
	UpdateErr error
	DeleteErr error
	// FailCreateAfter makes CreateRule fail with CreateErr only after this many
	// successful creates. Zero fails immediately when CreateErr is set.
	FailCreateAfter int

	ListCalls          int
	CreateCalls        int
	UpdateCalls        int
	DeleteCalls        int
	SettingsCalls      int
	ListAddressCalls   int
	CreateAddressCalls int

	Created []cloudflare.RuleRequest
	Updated map[string]cloudflare.RuleRequest
	Deleted []string

	nextID int
}

// New returns an empty provider whose routing is enabled, ready and synced.
func New(domain string) *Provider {
	return &Provider{
		Settings: cloudflare.RoutingSettings{
			Name:    domain,
			Enabled: true,
			Status:  cloudflare.StatusReady,
			Synced:  true,
		},
		Updated: map[string]cloudflare.RuleRequest{},
	}
}

// ManagedRule builds a provider rule carrying an encoded name.
func ManagedRule(id string, name rulename.Name, address, target string) cloudflare.Rule {
	req := cloudflare.ForwardRule(rulename.Encode(name), address, target)
	return cloudflare.Rule{ID: id, Name: req.Name, Enabled: true, Matchers: req.Matchers, Actions: req.Actions}
}

// ForeignRule builds a rule this service does not manage.
func ForeignRule(id string) cloudflare.Rule {
	req := cloudflare.ForwardRule("Send "+id+" to the team", id+"@example.com", "team@example.com")
	return cloudflare.Rule{ID: id, Name: req.Name, Enabled: true, Matchers: req.Matchers, Actions: req.Actions}
}

// AddRules appends rules to the provider state.
func (p *Provider) AddRules(rules ...cloudflare.Rule) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Rules = append(p.Rules, rules...)
}

// RuleCount returns the number of rules currently stored.
func (p *Provider) RuleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Rules)
}

// Rule returns the stored rule with the given id.
func (p *Provider) Rule(id string) (cloudflare.Rule, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, r := range p.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return cloudflare.Rule{}, false
}

func (p *Provider) ListRules(_ context.Context, _ string, page, perPage int) (cloudflare.RulePage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ListCalls++

	if p.ListErr != nil {
		return cloudflare.RulePage{}, p.ListErr
	}

	start := (page - 1) * perPage
	if start > len(p.Rules) {
		start = len(p.Rules)
	}
	end := start + perPage
	if end > len(p.Rules) {
		end = len(p.Rules)
	}

	out := cloudflare.RulePage{Rules: append([]cloudflare.Rule(nil), p.Rules[start:end]...)}
	if !p.OmitTotalCount {
		total := len(p.Rules)
		out.TotalCount = &total
	}
	return out, nil
}

func (p *Provider) CreateRule(_ context.Context, _ string, req cloudflare.RuleRequest) (cloudflare.Rule, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CreateCalls++

	if p.CreateErr != nil && len(p.Created) >= p.FailCreateAfter {
		return cloudflare.Rule{}, p.CreateErr
	}

	p.nextID++
	rule := cloudflare.Rule{
		ID:       fmt.Sprintf("created-%d", p.nextID),
		Name:     req.Name,
		Enabled:  req.Enabled,
		Matchers: req.Matchers,
		Actions:  req.Actions,
	}
	p.Rules = append(p.Rules, rule)
	p.Created = append(p.Created, req)
	return rule, nil
}

func (p *Provider) UpdateRule(_ context.Context, _ string, ruleID string, req cloudflare.RuleRequest) (cloudflare.Rule, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.UpdateCalls++

	if p.UpdateErr != nil {
		return cloudflare.Rule{}, p.UpdateErr
	}

	for i, r := range p.Rules {
		if r.ID == ruleID {
			r.Name = req.Name
			r.Enabled = req.Enabled
			r.Matchers = req.Matchers
			r.Actions = req.Actions
			p.Rules[i] = r
			p.Updated[ruleID] = req
			return r, nil
		}
	}
	return cloudflare.Rule{}, notFound(http.MethodPut, ruleID)
}

func (p *Provider) DeleteRule(_ context.Context, _ string, ruleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DeleteCalls++

	if p.DeleteErr != nil {
		return p.DeleteErr
	}

	for i, r := range p.Rules {
		if r.ID == ruleID {
			p.Rules = append(p.Rules[:i], p.Rules[i+1:]...)
			p.Deleted = append(p.Deleted, ruleID)
			return nil
		}
	}
	return notFound(http.MethodDelete, ruleID)
}

func (p *Provider) GetRoutingSettings(_ context.Context, _ string) (cloudflare.RoutingSettings, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SettingsCalls++

	if p.SettingsErr != nil {
		return cloudflare.RoutingSettings{}, p.SettingsErr
	}

	s := p.Settings
	if len(p.SyncedSequence) > 0 {
		s.Synced = p.SyncedSequence[0]
		p.SyncedSequence = p.SyncedSequence[1:]
	}
	return s, nil
}

func (p *Provider) ListAddresses(_ context.Context, _ string) ([]cloudflare.DestinationAddress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ListAddressCalls++
	return append([]cloudflare.DestinationAddress(nil), p.Addresses...), nil
}

func (p *Provider) CreateAddress(_ context.Context, _ string, email string) (cloudflare.DestinationAddress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CreateAddressCalls++

	addr := cloudflare.DestinationAddress{ID: fmt.Sprintf("addr-%d", len(p.Addresses)+1), Email: email}
	if p.VerifyOnCreate {
		verified := "2024-01-01T00:00:00Z"
		addr.Verified = &verified
	}
	p.Addresses = append(p.Addresses, addr)
	return addr, nil
}

// VerifiedAddress builds a verified destination address.
func VerifiedAddress(email string) cloudflare.DestinationAddress {
	verified := "2024-01-01T00:00:00Z"
	return cloudflare.DestinationAddress{ID: "addr-" + email, Email: email, Verified: &verified}
}

func notFound(method, id string) error {
	return &cloudflare.APIError{
		StatusCode: http.StatusNotFound,
		Method:     method,
		Path:       "/rules/" + id,
		Errors:     []cloudflare.ResponseInfo{{Code: 1000, Message: "rule not found"}},
	}
}
