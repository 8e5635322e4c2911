// Package token issues and verifies HS256 session tokens for portal accounts.
package token

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/louisbranch/tapestry/internal/platform/errors"
	"github.com/louisbranch/tapestry/internal/platform/id"
)

// DefaultTTL is the session token lifetime when none is configured.
const DefaultTTL = 7 * 24 * time.Hour

const minSecretLength = 16

// Config defines how session tokens are signed.
type Config struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

// Claims captures validated session claims.
type Claims struct {
	AccountID string
	Email     string
	Roles     []string
	IssuedAt  time.Time
	ExpiresAt time.Time
	TokenID   string
}

// HasRole reports whether the session carries role.
func (c Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// Issuer signs and verifies session tokens.
type Issuer struct {
	cfg Config
}

// NewIssuer validates cfg and returns an Issuer.
func NewIssuer(cfg Config) (*Issuer, error) {
	if len(cfg.Secret) < minSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", minSecretLength)
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		cfg.Issuer = "tapestry"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Issuer{cfg: cfg}, nil
}

// Issue signs a token for the account.
func (i *Issuer) Issue(accountID, email string, roles []string) (string, Claims, error) {
	if strings.TrimSpace(accountID) == "" {
		return "", Claims{}, errors.New("account id is required")
	}
	tokenID, err := id.NewID()
	if err != nil {
		return "", Claims{}, fmt.Errorf("generate token id: %w", err)
	}
	now := i.cfg.Now().UTC().Truncate(time.Second)
	exp := now.Add(i.cfg.TTL)
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.Issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        tokenID,
		},
		Email: email,
		Roles: slices.Clone(roles),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.Secret)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, Claims{
		AccountID: accountID,
		Email:     email,
		Roles:     claims.Roles,
		IssuedAt:  now,
		ExpiresAt: exp,
		TokenID:   tokenID,
	}, nil
}

// Parse verifies raw and returns its claims.
func (i *Issuer) Parse(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, apperrors.New(apperrors.CodeUnauthenticated, "authentication required")
	}
	var parsed sessionClaims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(token *jwt.Token) (any, error) {
		return i.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, mapJWTError(err)
	}
	if parsed.Issuer != i.cfg.Issuer {
		return Claims{}, apperrors.WithMetadata(apperrors.CodeTokenInvalid, "token issuer mismatch", map[string]string{"Field": "issuer"})
	}
	if parsed.Subject == "" {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "token subject is required")
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, apperrors.New(apperrors.CodeTokenInvalid, "token exp is required")
	}
	exp := parsed.ExpiresAt.Time.UTC()
	if !exp.After(i.cfg.Now().UTC()) {
		return Claims{}, apperrors.New(apperrors.CodeTokenExpired, "token is expired")
	}
	claims := Claims{
		AccountID: parsed.Subject,
		Email:     parsed.Email,
		Roles:     parsed.Roles,
		ExpiresAt: exp,
		TokenID:   parsed.ID,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return apperrors.New(apperrors.CodeTokenInvalid, "token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeTokenInvalid, "token alg is invalid")
	}
	return apperrors.Wrap(apperrors.CodeTokenInvalid, "token is invalid", err)
}
