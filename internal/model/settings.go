package model

import "time"

// Settings holds the user's Cloudflare credentials and setup state
type Settings struct {
	ID               uint      `json:"-" gorm:"primaryKey"`
	CloudflareAPIKey string    `json:"cloudflare_api_key" mapstructure:"cloudflare_api_key" gorm:"type:varchar(255)"`
	DestinationEmail string    `json:"destination_email" mapstructure:"destination_email" gorm:"type:varchar(255)"`
	ZoneID           string    `json:"zone_id" mapstructure:"zone_id" gorm:"type:varchar(64)"`
	AccountID        string    `json:"account_id" mapstructure:"account_id" gorm:"type:varchar(64)"`
	AccountDomain    string    `json:"account_domain" mapstructure:"account_domain" gorm:"type:varchar(255)"`
	Inited           bool      `json:"inited" mapstructure:"inited" gorm:"default:false"`
	UpdatedAt        time.Time `json:"-" mapstructure:"-"`
}

// TableName specifies the table name for Settings
func (Settings) TableName() string {
	return "settings"
}

// HasCredentials reports whether every field the setup flow needs is filled in.
func (s Settings) HasCredentials() bool {
	return s.CloudflareAPIKey != "" && s.DestinationEmail != "" && s.ZoneID != "" && s.AccountID != ""
}

// Ready reports whether setup has completed and the pool can be used.
func (s Settings) Ready() bool {
	return s.Inited && s.HasCredentials() && s.AccountDomain != ""
}
