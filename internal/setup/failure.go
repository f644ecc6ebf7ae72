package setup

import (
	"errors"
	"fmt"
)

// ErrSyncTimeout is returned when routing settings do not report synced
// within the configured budget.
var ErrSyncTimeout = errors.New("timed out waiting for email routing settings to sync")

// FailureKind names a setup failure the user can fix.
type FailureKind string

const (
	KindAuthError   FailureKind = "auth_error"
	KindWrongZoneID FailureKind = "wrong_zone_id"
	KindNotVerified FailureKind = "not_verified"
	KindNotEnabled  FailureKind = "not_enabled"
	KindNotReady    FailureKind = "not_ready"
)

// Failure is a classified setup failure with text for the user.
type Failure struct {
	Kind        FailureKind `json:"kind"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Title)
}

var failureDetails = map[FailureKind]Failure{
	KindAuthError: {
		Title:       "Auth failed",
		Description: "Make sure API key is correct and has all required permissions",
	},
	KindWrongZoneID: {
		Title:       "Wrong Zone ID",
		Description: "Make sure your Zone ID is correct and matches API key",
	},
	KindNotVerified: {
		Title:       "Destination email not verified",
		Description: "You should get an email with verification link soon.",
	},
	KindNotEnabled: {
		Title:       "Email Routing not enabled",
		Description: "Please enable Email Routing in Cloudflare settings",
	},
	KindNotReady: {
		Title:       "Email Routing not ready",
		Description: "Please enable Email Routing in Cloudflare settings",
	},
}

func newFailure(kind FailureKind) *Failure {
	f := failureDetails[kind]
	f.Kind = kind
	return &f
}

// AsFailure returns the classified failure inside err, if any.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
