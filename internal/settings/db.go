package settings

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hide-mail-go/internal/model"
)

// settingsRowID is the primary key of the only settings row.
const settingsRowID = 1

// DBStore keeps settings in the settings table.
type DBStore struct {
	db *gorm.DB
}

// NewDBStore returns a store backed by db.
func NewDBStore(db *gorm.DB) *DBStore {
	return &DBStore{db: db}
}

func (d *DBStore) Load(ctx context.Context) (model.Settings, error) {
	var s model.Settings
	err := d.db.WithContext(ctx).First(&s, settingsRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Settings{}, nil
	}
	if err != nil {
		return model.Settings{}, fmt.Errorf("failed to load settings: %w", err)
	}
	return s, nil
}

func (d *DBStore) Save(ctx context.Context, s model.Settings) error {
	s.ID = settingsRowID
	err := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&s).Error
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
