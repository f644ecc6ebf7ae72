package cloudflare

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
)

// addressPageSize is the size of the single address page fetched during setup.
const addressPageSize = 50

// ErrEmptyRoutingSettings is returned when a successful response carries no settings.
var ErrEmptyRoutingSettings = errors.New("unexpected empty routing settings")

// GetRoutingSettings reads the zone's email routing settings.
func (c *Client) GetRoutingSettings(ctx context.Context, zoneID string) (RoutingSettings, error) {
	env, err := do[*RoutingSettings](ctx, c, http.MethodGet, "/zones/"+url.PathEscape(zoneID)+"/email/routing", nil, nil)
	if err != nil {
		return RoutingSettings{}, err
	}
	if env.Result == nil {
		return RoutingSettings{}, ErrEmptyRoutingSettings
	}
	return *env.Result, nil
}

func addressesPath(accountID string) string {
	return "/accounts/" + url.PathEscape(accountID) + "/email/routing/addresses"
}

// ListAddresses returns the first page of the account's destination addresses.
func (c *Client) ListAddresses(ctx context.Context, accountID string) ([]DestinationAddress, error) {
	query := url.Values{}
	query.Set("per_page", strconv.Itoa(addressPageSize))

	env, err := do[[]DestinationAddress](ctx, c, http.MethodGet, addressesPath(accountID), query, nil)
	if err != nil {
		return nil, err
	}
	return env.Result, nil
}

// CreateAddress registers a destination address. Cloudflare mails a
// verification link to it; the returned address is unverified until clicked.
func (c *Client) CreateAddress(ctx context.Context, accountID, email string) (DestinationAddress, error) {
	body := struct {
		Email string `json:"email"`
	}{Email: email}

	env, err := do[DestinationAddress](ctx, c, http.MethodPost, addressesPath(accountID), nil, body)
	if err != nil {
		return DestinationAddress{}, err
	}
	return env.Result, nil
}
