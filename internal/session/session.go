// Package session holds the small amount of logic the tracker needs about the opaque
// session identifier issued elsewhere: shape checks, context plumbing and a log-safe
// fingerprint.
package session

import (
	"context"
	"encoding/hex"
	"errors"
	"unicode"

	"golang.org/x/crypto/blake2b"
)

// MaxLen bounds session ids and catalog ids alike.
const MaxLen = 128

var (
	ErrMissing = errors.New("missing session id")
	ErrInvalid = errors.New("invalid session id")
)

type ctxKey struct{}

// Validate checks that id is a plausible opaque identifier. It never consults a store:
// the tracker does not create or look up sessions.
func Validate(id string) error {
	if id == "" {
		return ErrMissing
	}
	if !ValidID(id) {
		return ErrInvalid
	}
	return nil
}

// ValidID reports whether s is 1..MaxLen printable, non-space runes.
func ValidID(s string) bool {
	if s == "" || len(s) > MaxLen {
		return false
	}
	for _, r := range s {
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// WithID returns a copy of ctx carrying the session id.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the session id stored by WithID.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Fingerprint is a short stable digest of id for logs, so raw session tokens never end
// up in log storage.
func Fingerprint(id string) string {
	sum := blake2b.Sum256([]byte(id))
	return hex.EncodeToString(sum[:6])
}
