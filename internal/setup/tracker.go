package setup

import (
	"sync"
	"time"
)

// State is a step of the setup flow.
type State string

const (
	StatePending                    State = "pending"
	StateCheckingCredentials        State = "checking_credentials"
	StateWaitingForSync             State = "waiting_for_sync"
	StateCheckingDestinationAddress State = "checking_destination_address"
	StateCreatingPoolRules          State = "creating_pool_rules"
	StateReady                      State = "ready"
	StateFailed                     State = "failed"
)

// Observer receives state changes and status lines as the flow runs.
type Observer interface {
	SetState(State)
	Status(msg string)
}

// ProgressFunc is an Observer that only receives status lines.
type ProgressFunc func(msg string)

func (f ProgressFunc) SetState(State) {}

func (f ProgressFunc) Status(msg string) {
	if f != nil {
		f(msg)
	}
}

// Snapshot is a point-in-time copy of a tracked run.
type Snapshot struct {
	RunID      string     `json:"run_id"`
	State      State      `json:"state"`
	Messages   []string   `json:"messages"`
	Failure    *Failure   `json:"failure,omitempty"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Tracker records one setup run for polling from another goroutine.
type Tracker struct {
	mu       sync.RWMutex
	snapshot Snapshot
	done     chan struct{}
}

// NewTracker starts tracking a run identified by runID.
func NewTracker(runID string) *Tracker {
	return &Tracker{
		snapshot: Snapshot{RunID: runID, State: StatePending, StartedAt: time.Now()},
		done:     make(chan struct{}),
	}
}

func (t *Tracker) SetState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.State = s
}

func (t *Tracker) Status(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshot.Messages = append(t.snapshot.Messages, msg)
}

// Finish records the outcome of the run. A nil err marks it ready.
func (t *Tracker) Finish(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.snapshot.FinishedAt = &now
	if err == nil {
		t.snapshot.State = StateReady
	} else {
		t.snapshot.State = StateFailed
		if f, ok := AsFailure(err); ok {
			t.snapshot.Failure = f
		} else {
			t.snapshot.Error = err.Error()
		}
	}
	close(t.done)
}

// Done is closed once Finish has been called.
func (t *Tracker) Done() <-chan struct{} {
	return t.done
}

// Running reports whether the run has not finished yet.
func (t *Tracker) Running() bool {
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s := t.snapshot
	s.Messages = append([]string(nil), t.snapshot.Messages...)
	return s
}
