package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/tapestry/internal/platform/errors"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestIssuer(t *testing.T, now *time.Time) *Issuer {
	t.Helper()
	issuer, err := NewIssuer(Config{
		Secret: testSecret,
		TTL:    time.Hour,
		Now:    func() time.Time { return *now },
	})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	return issuer
}

func TestIssueAndParse(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, &now)

	raw, issued, err := issuer.Issue("acct-1", "aria@example.com", []string{"player"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !issued.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected exp %v, got %v", now.Add(time.Hour), issued.ExpiresAt)
	}
	claims, err := issuer.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.AccountID != "acct-1" || claims.Email != "aria@example.com" || !claims.HasRole("player") {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.TokenID != issued.TokenID {
		t.Fatalf("expected token id %q, got %q", issued.TokenID, claims.TokenID)
	}
}

func TestParseExpired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, &now)
	raw, _, err := issuer.Issue("acct-1", "", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	now = now.Add(2 * time.Hour)
	if _, err := issuer.Parse(raw); apperrors.CodeOf(err) != apperrors.CodeTokenExpired {
		t.Fatalf("expected expired, got %v", err)
	}
}

func TestParseRejectsForeignSignature(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, &now)
	other, err := NewIssuer(Config{Secret: []byte("another-secret-value-000"), Now: func() time.Time { return now }})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	raw, _, err := other.Issue("acct-1", "", nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Parse(raw); apperrors.CodeOf(err) != apperrors.CodeTokenInvalid {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestParseRejectsUnexpectedAlgorithm(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(t, &now)
	claims := jwt.RegisteredClaims{
		Issuer:    "tapestry",
		Subject:   "acct-1",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := issuer.Parse(raw); apperrors.CodeOf(err) != apperrors.CodeTokenInvalid {
		t.Fatalf("expected invalid token, got %v", err)
	}
}

func TestParseEmpty(t *testing.T) {
	now := time.Now()
	issuer := newTestIssuer(t, &now)
	if _, err := issuer.Parse("  "); apperrors.CodeOf(err) != apperrors.CodeUnauthenticated {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestNewIssuerRejectsShortSecret(t *testing.T) {
	if _, err := NewIssuer(Config{Secret: []byte("short")}); err == nil {
		t.Fatal("expected error for short secret")
	}
}
