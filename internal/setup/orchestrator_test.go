package setup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hide-mail-go/internal/cloudflare"
	"hide-mail-go/internal/cloudflare/cftest"
	"hide-mail-go/internal/metrics"
	"hide-mail-go/internal/model"
	"hide-mail-go/internal/pool"
	"hide-mail-go/internal/repository"
	"hide-mail-go/internal/settings"
)

type fakeClock struct {
	now    time.Time
	sleeps int
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.now = c.now.Add(d)
	c.sleeps++
	return nil
}

type harness struct {
	provider *cftest.Provider
	store    *settings.MemoryStore
	clock    *fakeClock
	metrics  *metrics.Metrics
	orch     *Orchestrator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	p := cftest.New("example.com")
	p.Addresses = []cloudflare.DestinationAddress{cftest.VerifiedAddress("me@example.org")}

	m := metrics.NewMetrics(prometheus.NewRegistry())
	repo := repository.New(p, "zone-1", 50)
	prov := pool.NewProvisioner(p, repo, "zone-1", pool.NewWordGenerator(1), m)
	store := settings.NewMemoryStore(model.Settings{})

	o := NewOrchestrator(p, prov, store, Options{
		TargetSize:   5,
		SyncInterval: time.Second,
		SyncTimeout:  180 * time.Second,
	}, m)

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	o.now = clock.Now
	o.sleep = clock.Sleep

	return &harness{provider: p, store: store, clock: clock, metrics: m, orch: o}
}

func credentials() model.Settings {
	return model.Settings{
		CloudflareAPIKey: "key",
		DestinationEmail: "me@example.org",
		ZoneID:           "zone-1",
		AccountID:        "acct-1",
	}
}

func (h *harness) saved(t *testing.T) model.Settings {
	t.Helper()
	s, err := h.store.Load(context.Background())
	require.NoError(t, err)
	return s
}

func TestRunCompletesSetup(t *testing.T) {
	h := newHarness(t)
	tracker := NewTracker("run-1")

	s, err := h.orch.Run(context.Background(), credentials(), tracker)
	require.NoError(t, err)

	assert.True(t, s.Inited)
	assert.Equal(t, "example.com", s.AccountDomain)
	assert.Equal(t, s, h.saved(t))
	assert.True(t, s.Ready())

	assert.Equal(t, 5, h.provider.CreateCalls)
	assert.Zero(t, h.provider.CreateAddressCalls)
	for _, req := range h.provider.Created {
		assert.Equal(t, []string{"me@example.org"}, req.Actions[0].Value)
	}

	snap := tracker.Snapshot()
	assert.Equal(t, StateReady, snap.State)
	assert.Equal(t, []string{
		"Checking settings...",
		"Checking addresses...",
		"Creating app rules: 0/5",
		"Creating app rules: 1/5",
		"Creating app rules: 2/5",
		"Creating app rules: 3/5",
		"Creating app rules: 4/5",
		"Creating app rules: 5/5",
		"Waiting for settings to sync...",
	}, snap.Messages)

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SetupRuns.WithLabelValues("ready")))
}

func TestRunIsIdempotentOnFullPool(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.Run(context.Background(), credentials(), nil)
	require.NoError(t, err)
	_, err = h.orch.Run(context.Background(), credentials(), nil)
	require.NoError(t, err)

	assert.Equal(t, 5, h.provider.CreateCalls)
}

func TestRunClassifiesSettingsErrors(t *testing.T) {
	tests := []struct {
		name  string
		codes []int
		want  FailureKind
		title string
	}{
		{"auth", []int{cloudflare.CodeAuthError}, KindAuthError, "Auth failed"},
		{"zone", []int{cloudflare.CodeInvalidZoneID}, KindWrongZoneID, "Wrong Zone ID"},
		{"first recognised code wins", []int{9999, cloudflare.CodeInvalidZoneID, cloudflare.CodeAuthError}, KindWrongZoneID, "Wrong Zone ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			apiErr := &cloudflare.APIError{StatusCode: 403}
			for _, c := range tt.codes {
				apiErr.Errors = append(apiErr.Errors, cloudflare.ResponseInfo{Code: c, Message: "nope"})
			}
			h.provider.SettingsErr = apiErr

			_, err := h.orch.Run(context.Background(), credentials(), nil)
			f, ok := AsFailure(err)
			require.True(t, ok)
			assert.Equal(t, tt.want, f.Kind)
			assert.Equal(t, tt.title, f.Title)
			assert.NotEmpty(t, f.Description)

			saved := h.saved(t)
			assert.Equal(t, "key", saved.CloudflareAPIKey)
			assert.False(t, saved.Inited)
			assert.Zero(t, h.provider.CreateCalls)
			assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SetupRuns.WithLabelValues(string(tt.want))))
		})
	}
}

func TestRunUnexpectedSettingsError(t *testing.T) {
	h := newHarness(t)
	apiErr := &cloudflare.APIError{StatusCode: 500, Errors: []cloudflare.ResponseInfo{{Code: 1000}}}
	h.provider.SettingsErr = apiErr

	_, err := h.orch.Run(context.Background(), credentials(), nil)
	require.Error(t, err)

	_, classified := AsFailure(err)
	assert.False(t, classified)
	var got *cloudflare.APIError
	require.True(t, errors.As(err, &got))
	assert.Same(t, apiErr, got)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SetupRuns.WithLabelValues("error")))
}

func TestRunEmptyRoutingSettingsIsUnexpected(t *testing.T) {
	h := newHarness(t)
	h.provider.SettingsErr = cloudflare.ErrEmptyRoutingSettings

	_, err := h.orch.Run(context.Background(), credentials(), nil)
	assert.ErrorIs(t, err, cloudflare.ErrEmptyRoutingSettings)
	_, classified := AsFailure(err)
	assert.False(t, classified)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.SetupRuns.WithLabelValues("error")))
}

func TestRunRoutingState(t *testing.T) {
	t.Run("not enabled", func(t *testing.T) {
		h := newHarness(t)
		h.provider.Settings.Enabled = false

		_, err := h.orch.Run(context.Background(), credentials(), nil)
		f, ok := AsFailure(err)
		require.True(t, ok)
		assert.Equal(t, KindNotEnabled, f.Kind)
		assert.Equal(t, "Email Routing not enabled", f.Title)
	})

	t.Run("not ready", func(t *testing.T) {
		h := newHarness(t)
		h.provider.Settings.Status = "unconfigured"

		_, err := h.orch.Run(context.Background(), credentials(), nil)
		f, ok := AsFailure(err)
		require.True(t, ok)
		assert.Equal(t, KindNotReady, f.Kind)
		assert.Equal(t, "Email Routing not ready", f.Title)
		assert.Empty(t, h.saved(t).AccountDomain)
	})
}

func TestRunUnverifiedDestination(t *testing.T) {
	h := newHarness(t)
	h.provider.Addresses = nil
	var messages []string

	s, err := h.orch.Run(context.Background(), credentials(), ProgressFunc(func(msg string) {
		messages = append(messages, msg)
	}))
	f, ok := AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, KindNotVerified, f.Kind)
	assert.Equal(t, "Destination email not verified", f.Title)
	assert.Equal(t, "You should get an email with verification link soon.", f.Description)

	assert.Equal(t, 1, h.provider.CreateAddressCalls)
	assert.Contains(t, messages, "Adding destination address...")
	assert.Zero(t, h.provider.CreateCalls)
	assert.Equal(t, "example.com", s.AccountDomain)
	assert.Equal(t, "example.com", h.saved(t).AccountDomain)
	assert.False(t, h.saved(t).Inited)
}

func TestRunCreatesVerifiedDestination(t *testing.T) {
	h := newHarness(t)
	h.provider.Addresses = nil
	h.provider.VerifyOnCreate = true

	s, err := h.orch.Run(context.Background(), credentials(), nil)
	require.NoError(t, err)
	assert.True(t, s.Inited)
	assert.Equal(t, 1, h.provider.CreateAddressCalls)
}

func TestRunWaitsForInitialSync(t *testing.T) {
	h := newHarness(t)
	h.provider.SyncedSequence = []bool{false, false, false}
	tracker := NewTracker("run-2")

	_, err := h.orch.Run(context.Background(), credentials(), tracker)
	require.NoError(t, err)

	assert.Equal(t, 2, h.clock.sleeps)
	assert.Equal(t, "Waiting for settings to sync...", tracker.Snapshot().Messages[1])
}

func TestRunFillFailure(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("rate limited")
	h.provider.CreateErr = boom
	h.provider.FailCreateAfter = 2

	_, err := h.orch.Run(context.Background(), credentials(), nil)
	assert.ErrorIs(t, err, boom)
	assert.False(t, h.saved(t).Inited)
	assert.Equal(t, 2, h.provider.RuleCount())
}

func TestWaitForSettingsToSyncTimesOutAfterBudget(t *testing.T) {
	h := newHarness(t)
	h.provider.Settings.Synced = false
	start := h.clock.now

	err := h.orch.WaitForSettingsToSync(context.Background(), "zone-1")
	assert.ErrorIs(t, err, ErrSyncTimeout)

	elapsed := h.clock.now.Sub(start)
	assert.Greater(t, elapsed, 180*time.Second)
	assert.Equal(t, 181, h.clock.sleeps)
	assert.Equal(t, 182, h.provider.SettingsCalls)
}

func TestWaitForSettingsToSyncSucceedsAtBudget(t *testing.T) {
	h := newHarness(t)
	h.provider.SyncedSequence = make([]bool, 181)
	start := h.clock.now

	err := h.orch.WaitForSettingsToSync(context.Background(), "zone-1")
	require.NoError(t, err)
	assert.Equal(t, 181*time.Second, h.clock.now.Sub(start))
}

func TestWaitForSettingsToSyncHonoursContext(t *testing.T) {
	h := newHarness(t)
	h.provider.Settings.Synced = false
	h.orch.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.orch.WaitForSettingsToSync(ctx, "zone-1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrackerFinish(t *testing.T) {
	tr := NewTracker("run-3")
	assert.True(t, tr.Running())

	tr.Status("Checking settings...")
	tr.Finish(newFailure(KindAuthError))

	<-tr.Done()
	assert.False(t, tr.Running())
	snap := tr.Snapshot()
	assert.Equal(t, StateFailed, snap.State)
	require.NotNil(t, snap.Failure)
	assert.Equal(t, KindAuthError, snap.Failure.Kind)
	assert.NotNil(t, snap.FinishedAt)

	other := NewTracker("run-4")
	other.Finish(errors.New("boom"))
	assert.Equal(t, "boom", other.Snapshot().Error)
	assert.Nil(t, other.Snapshot().Failure)
}
