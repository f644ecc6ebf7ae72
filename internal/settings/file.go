package settings

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"hide-mail-go/internal/model"
)

// FileStore keeps settings in a YAML file.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the YAML file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the settings file. A missing file yields zero settings.
func (f *FileStore) Load(context.Context) (model.Settings, error) {
	v := viper.New()
	v.SetConfigFile(f.path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return model.Settings{}, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return model.Settings{}, nil
		}
		return model.Settings{}, fmt.Errorf("reading settings %s: %w", f.path, err)
	}

	var s model.Settings
	if err := v.Unmarshal(&s); err != nil {
		return model.Settings{}, fmt.Errorf("parsing settings %s: %w", f.path, err)
	}
	return s, nil
}

// Save writes s to the settings file, creating parent directories if needed.
func (f *FileStore) Save(_ context.Context, s model.Settings) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating settings directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(f.path)
	v.SetConfigType("yaml")

	v.Set("cloudflare_api_key", s.CloudflareAPIKey)
	v.Set("destination_email", s.DestinationEmail)
	v.Set("zone_id", s.ZoneID)
	v.Set("account_id", s.AccountID)
	v.Set("account_domain", s.AccountDomain)
	v.Set("inited", s.Inited)

	if err := v.WriteConfigAs(f.path); err != nil {
		return fmt.Errorf("writing settings to %s: %w", f.path, err)
	}
	return os.Chmod(f.path, 0o600)
}
