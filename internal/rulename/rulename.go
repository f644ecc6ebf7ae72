// Package rulename encodes and decodes the metadata this service stores in a
// Cloudflare routing rule's name field.
//
// The wire form is
//
//	[hide_mail]|<createdAtMillis>|<label or "unused">|<description or "unused">
//
// Any name that does not follow it belongs to a rule this service does not manage.
package rulename

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// Prefix marks a rule as managed by this service.
	Prefix = "[hide_mail]"
	// EmptyLabel is stored in place of an absent label or description.
	EmptyLabel = "unused"
	// Separator joins the name segments.
	Separator = "|"

	segments = 4
)

// ErrInvalidLabel is returned for labels that cannot be encoded without ambiguity.
var ErrInvalidLabel = errors.New("invalid label")

// Name is the decoded metadata of a managed rule. An empty Label means the
// rule is still in the pool.
type Name struct {
	CreatedAt   time.Time
	Label       string
	Description string
}

// Unused reports whether the rule carrying this name has not been assigned yet.
func (n Name) Unused() bool {
	return n.Label == ""
}

// Encode returns the rule name for n.
func Encode(n Name) string {
	return strings.Join([]string{
		Prefix,
		strconv.FormatInt(n.CreatedAt.UnixMilli(), 10),
		orEmpty(n.Label),
		orEmpty(n.Description),
	}, Separator)
}

// Decode parses a rule name. ok is false for names of rules not managed by
// this service, including malformed managed-looking names.
func Decode(raw string) (n Name, ok bool) {
	parts := strings.Split(raw, Separator)
	if len(parts) < segments || parts[0] != Prefix {
		return Name{}, false
	}

	millis, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Name{}, false
	}

	return Name{
		CreatedAt:   time.UnixMilli(millis),
		Label:       fromEmpty(parts[2]),
		Description: fromEmpty(parts[3]),
	}, true
}

// IsManaged reports whether raw decodes as a managed rule name.
func IsManaged(raw string) bool {
	_, ok := Decode(raw)
	return ok
}

// ValidateLabel rejects text that would not survive an Encode/Decode round trip.
func ValidateLabel(s string) error {
	if strings.Contains(s, Separator) {
		return fmt.Errorf("%w: must not contain %q", ErrInvalidLabel, Separator)
	}
	if s == EmptyLabel {
		return fmt.Errorf("%w: %q is reserved", ErrInvalidLabel, EmptyLabel)
	}
	return nil
}

func orEmpty(s string) string {
	if s == "" {
		return EmptyLabel
	}
	return s
}

func fromEmpty(s string) string {
	if s == EmptyLabel {
		return ""
	}
	return s
}
