package handler

import (
	"time"

	"hide-mail-go/internal/model"
)

// SettingsRequest represents the request structure for updating settings
type SettingsRequest struct {
	CloudflareAPIKey string `json:"cloudflare_api_key" binding:"required"`
	DestinationEmail string `json:"destination_email" binding:"required,email"`
	ZoneID           string `json:"zone_id" binding:"required"`
	AccountID        string `json:"account_id" binding:"required"`
}

// SettingsResponse represents stored settings with the API key redacted
type SettingsResponse struct {
	CloudflareAPIKey string `json:"cloudflare_api_key"`
	DestinationEmail string `json:"destination_email"`
	ZoneID           string `json:"zone_id"`
	AccountID        string `json:"account_id"`
	AccountDomain    string `json:"account_domain"`
	Inited           bool   `json:"inited"`
}

// LabelRequest carries the label for assigning or relabelling an address
type LabelRequest struct {
	Label string `json:"label" binding:"required"`
}

// AddressResponse represents one pool rule
type AddressResponse struct {
	ID            string    `json:"id"`
	Address       string    `json:"address"`
	Label         string    `json:"label,omitempty"`
	Description   string    `json:"description,omitempty"`
	ForwardTarget string    `json:"forward_target,omitempty"`
	Used          bool      `json:"used"`
	CreatedAt     time.Time `json:"created_at"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Settings  string            `json:"settings"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func toAddressResponse(r model.PoolRule) AddressResponse {
	return AddressResponse{
		ID:            r.ID,
		Address:       r.MailboxAddress,
		Label:         r.Name.Label,
		Description:   r.Name.Description,
		ForwardTarget: r.ForwardTarget,
		Used:          r.Used(),
		CreatedAt:     r.Name.CreatedAt,
	}
}

func toAddressResponses(rules []model.PoolRule) []AddressResponse {
	out := make([]AddressResponse, 0, len(rules))
	for _, r := range rules {
		out = append(out, toAddressResponse(r))
	}
	return out
}

func toSettingsResponse(s model.Settings) SettingsResponse {
	return SettingsResponse{
		CloudflareAPIKey: redact(s.CloudflareAPIKey),
		DestinationEmail: s.DestinationEmail,
		ZoneID:           s.ZoneID,
		AccountID:        s.AccountID,
		AccountDomain:    s.AccountDomain,
		Inited:           s.Inited,
	}
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
