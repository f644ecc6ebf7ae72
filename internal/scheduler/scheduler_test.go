package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hide-mail-go/internal/settings"
)

type fakeReconciler struct {
	running bool
	created int
	err     error
	calls   int
}

func (f *fakeReconciler) Reconcile(context.Context) (int, error) {
	f.calls++
	return f.created, f.err
}

func (f *fakeReconciler) SetupRunning() bool { return f.running }

func TestRunOnce(t *testing.T) {
	r := &fakeReconciler{created: 3}
	s := NewScheduler(30, r)

	created, err := s.RunOnce()
	require.NoError(t, err)
	assert.Equal(t, 3, created)
	assert.Equal(t, 1, r.calls)
}

func TestRunOnceSkipsDuringSetup(t *testing.T) {
	r := &fakeReconciler{running: true}
	s := NewScheduler(30, r)

	created, err := s.RunOnce()
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Zero(t, r.calls)
}

func TestRunOnceSkipsUnconfigured(t *testing.T) {
	r := &fakeReconciler{err: settings.ErrNotConfigured}
	s := NewScheduler(30, r)

	_, err := s.RunOnce()
	assert.NoError(t, err)
	assert.Equal(t, 1, r.calls)
}

func TestRunOnceReturnsErrors(t *testing.T) {
	boom := errors.New("provider down")
	s := NewScheduler(30, &fakeReconciler{err: boom})

	_, err := s.RunOnce()
	assert.ErrorIs(t, err, boom)
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(30, &fakeReconciler{})

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.False(t, s.GetNextRun().IsZero())
	assert.Error(t, s.Start())

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.True(t, s.GetNextRun().IsZero())

	require.NoError(t, s.Start())
	require.NoError(t, s.Shutdown())
	s.Wait()
}

func TestStartRejectsDisabledInterval(t *testing.T) {
	s := NewScheduler(0, &fakeReconciler{})
	assert.Error(t, s.Start())
	assert.False(t, s.IsRunning())
}

func TestStartSchedulesLongIntervals(t *testing.T) {
	s := NewScheduler(90, &fakeReconciler{})
	require.NoError(t, s.Start())
	defer s.Shutdown()

	assert.WithinDuration(t, time.Now().Add(90*time.Minute), s.GetNextRun(), time.Minute)
}
