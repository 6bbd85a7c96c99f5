package session_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/garnizeh/preptrack/internal/session"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		id   string
		want error
	}{
		{"", session.ErrMissing},
		{"abc-123", nil},
		{"has space", session.ErrInvalid},
		{"tab\tinside", session.ErrInvalid},
		{strings.Repeat("x", session.MaxLen), nil},
		{strings.Repeat("x", session.MaxLen+1), session.ErrInvalid},
	}
	for _, c := range cases {
		if got := session.Validate(c.id); !errors.Is(got, c.want) {
			t.Errorf("Validate(%q) = %v, want %v", c.id, got, c.want)
		}
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := session.WithID(context.Background(), "s-1")
	id, ok := session.FromContext(ctx)
	if !ok || id != "s-1" {
		t.Fatalf("FromContext = %q, %v", id, ok)
	}
	if _, ok := session.FromContext(context.Background()); ok {
		t.Fatalf("expected no session in empty context")
	}
}

func TestFingerprint(t *testing.T) {
	a := session.Fingerprint("session-a")
	if a != session.Fingerprint("session-a") {
		t.Fatalf("fingerprint not stable")
	}
	if a == session.Fingerprint("session-b") {
		t.Fatalf("different ids should not share a fingerprint")
	}
	if len(a) != 12 || strings.Contains(a, "session") {
		t.Fatalf("unexpected fingerprint %q", a)
	}
}
