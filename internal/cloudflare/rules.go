package cloudflare

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
)

func rulesPath(zoneID string) string {
	return "/zones/" + url.PathEscape(zoneID) + "/email/routing/rules"
}

// ListRules returns one page of the zone's routing rules. Pages start at 1.
func (c *Client) ListRules(ctx context.Context, zoneID string, page, perPage int) (RulePage, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))
	query.Set("per_page", strconv.Itoa(perPage))

	env, err := do[[]Rule](ctx, c, http.MethodGet, rulesPath(zoneID), query, nil)
	if err != nil {
		return RulePage{}, err
	}

	p := RulePage{Rules: env.Result}
	if env.ResultInfo != nil {
		p.TotalCount = env.ResultInfo.TotalCount
	}
	return p, nil
}

// CreateRule creates a routing rule in the zone.
func (c *Client) CreateRule(ctx context.Context, zoneID string, req RuleRequest) (Rule, error) {
	env, err := do[Rule](ctx, c, http.MethodPost, rulesPath(zoneID), nil, req)
	if err != nil {
		return Rule{}, err
	}
	return env.Result, nil
}

// UpdateRule replaces the rule identified by ruleID.
func (c *Client) UpdateRule(ctx context.Context, zoneID, ruleID string, req RuleRequest) (Rule, error) {
	env, err := do[Rule](ctx, c, http.MethodPut, rulesPath(zoneID)+"/"+url.PathEscape(ruleID), nil, req)
	if err != nil {
		return Rule{}, err
	}
	return env.Result, nil
}

// DeleteRule deletes the rule identified by ruleID.
func (c *Client) DeleteRule(ctx context.Context, zoneID, ruleID string) error {
	_, err := do[json.RawMessage](ctx, c, http.MethodDelete, rulesPath(zoneID)+"/"+url.PathEscape(ruleID), nil, nil)
	return err
}
