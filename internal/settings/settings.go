// Package settings persists the user's Cloudflare credentials and setup state.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/emersion/go-message/mail"

	"hide-mail-go/internal/model"
)

var (
	// ErrNotConfigured is returned when an operation needs a completed setup.
	ErrNotConfigured = errors.New("settings are not configured, run setup first")
	// ErrInvalidSettings is returned by Validate.
	ErrInvalidSettings = errors.New("invalid settings")
)

// Store loads and saves the single settings record. Load returns zero
// settings and no error when nothing has been saved yet.
type Store interface {
	Load(ctx context.Context) (model.Settings, error)
	Save(ctx context.Context, s model.Settings) error
}

// Validate checks that every credential is present and that the destination
// is a bare email address.
func Validate(s model.Settings) error {
	required := []struct {
		field string
		value string
	}{
		{"cloudflare_api_key", s.CloudflareAPIKey},
		{"destination_email", s.DestinationEmail},
		{"zone_id", s.ZoneID},
		{"account_id", s.AccountID},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidSettings, r.field)
		}
	}

	addr, err := mail.ParseAddress(s.DestinationEmail)
	if err != nil {
		return fmt.Errorf("%w: destination_email: %v", ErrInvalidSettings, err)
	}
	if addr.Address != s.DestinationEmail {
		return fmt.Errorf("%w: destination_email must be a bare address", ErrInvalidSettings)
	}

	return nil
}

// RequireReady returns ErrNotConfigured unless setup has completed.
func RequireReady(s model.Settings) error {
	if !s.Ready() {
		return ErrNotConfigured
	}
	return nil
}

// MemoryStore keeps settings in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	settings model.Settings
}

// NewMemoryStore returns a store holding initial.
func NewMemoryStore(initial model.Settings) *MemoryStore {
	return &MemoryStore{settings: initial}
}

func (m *MemoryStore) Load(context.Context) (model.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings, nil
}

func (m *MemoryStore) Save(_ context.Context, s model.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = s
	return nil
}
