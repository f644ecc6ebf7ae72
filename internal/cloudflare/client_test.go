package cloudflare

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hide-mail-go/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(&config.CloudflareConfig{
		APIBaseURL:     srv.URL + "/client/v4/",
		RequestTimeout: 5 * time.Second,
		MaxRetries:     2,
	}).WithToken("secret-token")
	c.initialBackoff = time.Millisecond
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := io.WriteString(w, body)
	require.NoError(t, err)
}

func TestListRules(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/client/v4/zones/zone-1/email/routing/rules", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "50", r.URL.Query().Get("per_page"))
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))

		writeJSON(t, w, http.StatusOK, `{
			"success": true, "errors": [], "messages": [],
			"result": [{
				"id": "r1", "name": "[hide_mail]|1|unused|unused", "enabled": true,
				"matchers": [{"type": "literal", "field": "to", "value": "red-cat-1@example.com"}],
				"actions": [{"type": "forward", "value": ["me@example.org"]}]
			}],
			"result_info": {"page": 2, "per_page": 50, "count": 1, "total_count": 51}
		}`)
	})

	page, err := c.ListRules(context.Background(), "zone-1", 2, 50)
	require.NoError(t, err)
	require.Len(t, page.Rules, 1)
	require.NotNil(t, page.TotalCount)
	assert.Equal(t, 51, *page.TotalCount)

	addr, ok := page.Rules[0].MatchedAddress()
	assert.True(t, ok)
	assert.Equal(t, "red-cat-1@example.com", addr)

	target, ok := page.Rules[0].ForwardTarget()
	assert.True(t, ok)
	assert.Equal(t, "me@example.org", target)
}

func TestListRulesWithoutTotalCount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, `{"success": true, "errors": [], "result": []}`)
	})

	page, err := c.ListRules(context.Background(), "zone-1", 1, 50)
	require.NoError(t, err)
	assert.Nil(t, page.TotalCount)
	assert.Empty(t, page.Rules)
}

func TestCreateRule(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req RuleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "[hide_mail]|1|unused|unused", req.Name)
		assert.True(t, req.Enabled)
		require.Len(t, req.Matchers, 1)
		assert.Equal(t, Matcher{Type: "literal", Field: "to", Value: "blue-dog-7@example.com"}, req.Matchers[0])
		require.Len(t, req.Actions, 1)
		assert.Equal(t, Action{Type: "forward", Value: []string{"me@example.org"}}, req.Actions[0])

		writeJSON(t, w, http.StatusOK, `{"success": true, "errors": [], "result": {"id": "new-id", "name": "[hide_mail]|1|unused|unused"}}`)
	})

	rule, err := c.CreateRule(context.Background(), "zone-1",
		ForwardRule("[hide_mail]|1|unused|unused", "blue-dog-7@example.com", "me@example.org"))
	require.NoError(t, err)
	assert.Equal(t, "new-id", rule.ID)
}

func TestUpdateAndDeleteRule(t *testing.T) {
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodPut:
			writeJSON(t, w, http.StatusOK, `{"success": true, "errors": [], "result": {"id": "r1", "name": "n"}}`)
		case http.MethodDelete:
			writeJSON(t, w, http.StatusOK, `{"success": true, "errors": [], "result": {"id": "r1"}}`)
		}
	})

	_, err := c.UpdateRule(context.Background(), "zone-1", "r1", ForwardRule("n", "a@example.com", "b@example.com"))
	require.NoError(t, err)
	require.NoError(t, c.DeleteRule(context.Background(), "zone-1", "r1"))

	assert.Equal(t, []string{
		"PUT /client/v4/zones/zone-1/email/routing/rules/r1",
		"DELETE /client/v4/zones/zone-1/email/routing/rules/r1",
	}, calls)
}

func TestAPIErrorClassification(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusBadRequest, `{
			"success": false,
			"errors": [{"code": 7003, "message": "Could not route to /zones/bad, perhaps your object identifier is invalid?"}],
			"result": null
		}`)
	})

	_, err := c.GetRoutingSettings(context.Background(), "bad")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.True(t, apiErr.HasCode(CodeInvalidZoneID))
	assert.False(t, apiErr.HasCode(CodeAuthError))
	assert.True(t, IsAPIError(err, CodeInvalidZoneID))
	assert.Contains(t, err.Error(), "7003")
}

func TestUnsuccessfulEnvelopeWith200(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, `{"success": false, "errors": [{"code": 10001, "message": "Unable to authenticate request"}]}`)
	})

	_, err := c.GetRoutingSettings(context.Background(), "zone-1")
	assert.True(t, IsAPIError(err, CodeAuthError))
}

func TestNonJSONErrorBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = io.WriteString(w, "<html>bad gateway</html>")
	})

	_, err := c.ListAddresses(context.Background(), "acct")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Empty(t, apiErr.Errors)
}

func TestRetriesRateLimit(t *testing.T) {
	var attempts int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			writeJSON(t, w, http.StatusTooManyRequests, `{"success": false, "errors": [{"code": 971, "message": "rate limited"}]}`)
			return
		}
		writeJSON(t, w, http.StatusOK, `{"success": true, "errors": [], "result": {"name": "example.com", "enabled": true, "status": "ready", "synced": true}}`)
	})

	settings, err := c.GetRoutingSettings(context.Background(), "zone-1")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&attempts))
	assert.Equal(t, "example.com", settings.Name)
	assert.True(t, settings.Synced)
}

func TestRateLimitExhaustsRetries(t *testing.T) {
	var attempts int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		writeJSON(t, w, http.StatusTooManyRequests, `{"success": false, "errors": []}`)
	})

	_, err := c.CreateRule(context.Background(), "zone-1", ForwardRule("n", "a@example.com", "b@example.com"))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestGetRoutingSettings(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/client/v4/zones/zone-1/email/routing", r.URL.Path)
		writeJSON(t, w, http.StatusOK, `{"success": true, "errors": [], "result": {
			"id": "s1", "name": "example.com", "enabled": true, "synced": false, "status": "ready"
		}}`)
	})

	rs, err := c.GetRoutingSettings(context.Background(), "zone-1")
	require.NoError(t, err)
	assert.Equal(t, "example.com", rs.Name)
	assert.True(t, rs.Enabled)
	assert.False(t, rs.Synced)
	assert.Equal(t, StatusReady, rs.Status)
}

func TestGetRoutingSettingsNullResult(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, `{"success": true, "errors": [], "result": null}`)
	})

	_, err := c.GetRoutingSettings(context.Background(), "zone-1")
	assert.ErrorIs(t, err, ErrEmptyRoutingSettings)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestAddresses(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/client/v4/accounts/acct/email/routing/addresses", r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "50", r.URL.Query().Get("per_page"))
			writeJSON(t, w, http.StatusOK, `{"success": true, "errors": [], "result": [
				{"id": "a1", "email": "me@example.org", "verified": "2024-01-01T00:00:00Z"},
				{"id": "a2", "email": "other@example.org", "verified": null}
			]}`)
		case http.MethodPost:
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "new@example.org", body["email"])
			writeJSON(t, w, http.StatusOK, `{"success": true, "errors": [], "result": {"id": "a3", "email": "new@example.org", "verified": null}}`)
		}
	})

	addrs, err := c.ListAddresses(context.Background(), "acct")
	require.NoError(t, err)
	require.Len(t, addrs, 2)
	assert.True(t, addrs[0].IsVerified())
	assert.False(t, addrs[1].IsVerified())

	created, err := c.CreateAddress(context.Background(), "acct", "new@example.org")
	require.NoError(t, err)
	assert.Equal(t, "a3", created.ID)
	assert.False(t, created.IsVerified())
}

func TestWithTokenDoesNotMutateOriginal(t *testing.T) {
	base := NewClient(&config.CloudflareConfig{APIBaseURL: "https://api.cloudflare.com/client/v4"})
	withToken := base.WithToken("abc")

	assert.Empty(t, base.token)
	assert.Equal(t, "abc", withToken.token)
	assert.Equal(t, base.baseURL, withToken.baseURL)
}
