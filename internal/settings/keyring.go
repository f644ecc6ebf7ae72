package settings

import (
	"context"
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"hide-mail-go/internal/model"
)

const (
	keyringService = "hide-mail"
	apiKeyItem     = "cloudflare_api_key"
)

// OpenKeyring opens the system keyring, falling back to an encrypted file
// keyring under dir.
func OpenKeyring(dir string) (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  dir,
		FilePasswordFunc:         keyring.FixedStringPrompt("hide-mail-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// KeyringStore wraps another store and keeps the API key in a keyring
// instead of the wrapped store.
type KeyringStore struct {
	inner Store
	ring  keyring.Keyring
}

// NewKeyringStore returns inner with the API key moved to ring.
func NewKeyringStore(inner Store, ring keyring.Keyring) *KeyringStore {
	return &KeyringStore{inner: inner, ring: ring}
}

func (k *KeyringStore) Load(ctx context.Context) (model.Settings, error) {
	s, err := k.inner.Load(ctx)
	if err != nil {
		return model.Settings{}, err
	}

	item, err := k.ring.Get(apiKeyItem)
	switch {
	case errors.Is(err, keyring.ErrKeyNotFound):
		return s, nil
	case err != nil:
		return model.Settings{}, fmt.Errorf("getting credential %q: %w", apiKeyItem, err)
	}

	s.CloudflareAPIKey = string(item.Data)
	return s, nil
}

func (k *KeyringStore) Save(ctx context.Context, s model.Settings) error {
	if s.CloudflareAPIKey != "" {
		err := k.ring.Set(keyring.Item{
			Key:  apiKeyItem,
			Data: []byte(s.CloudflareAPIKey),
		})
		if err != nil {
			return fmt.Errorf("setting credential %q: %w", apiKeyItem, err)
		}
	}

	s.CloudflareAPIKey = ""
	return k.inner.Save(ctx, s)
}
