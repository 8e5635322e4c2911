package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"
)

// LoginResponse is returned by Login and Register.
type LoginResponse struct {
	Message         string             `json:"message"`
	Token           string             `json:"token"`
	ExpiresAt       time.Time          `json:"expiresAt"`
	IsEmailVerified bool               `json:"isEmailVerified"`
	ProfileRefs     map[string]*string `json:"profileRefs,omitempty"`
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FullName  string `json:"fullName,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Roles decodes either a single role string or a list of roles.
type Roles []string

// UnmarshalJSON implements json.Unmarshaler.
func (r *Roles) UnmarshalJSON(data []byte) error {
	roles, err := NormalizeRoles(data)
	if err != nil {
		return err
	}
	*r = roles
	return nil
}

// NormalizeRoles accepts a JSON string, list of strings, or null and returns
// the roles as a list.
func NormalizeRoles(raw json.RawMessage) ([]string, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return []string{}, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var roles []string
		if err := json.Unmarshal(raw, &roles); err != nil {
			return nil, fmt.Errorf("decode roles: %w", err)
		}
		return roles, nil
	}
	var role string
	if err := json.Unmarshal(raw, &role); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	return []string{role}, nil
}

// Profile is the caller's account as returned by /auth/me.
type Profile struct {
	ID                   string         `json:"_id"`
	Email                string         `json:"email"`
	FullName             string         `json:"fullName,omitempty"`
	Roles                Roles          `json:"roles"`
	IsEmailVerified      bool           `json:"isEmailVerified"`
	AcceptedPolicies     map[string]any `json:"acceptedPolicies,omitempty"`
	NotificationSettings map[string]any `json:"notificationSettings,omitempty"`
	CreatedAt            time.Time      `json:"createdAt"`
}

// HasRole reports whether the profile carries role.
func (p Profile) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// Login exchanges credentials for a session token. The token is not attached
// to the client; callers decide where to keep it.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	var resp LoginResponse
	msg, err := c.do(ctx, http.MethodPost, "/auth/login", nil, map[string]string{
		"email":    email,
		"password": password,
	}, &resp)
	if err != nil {
		return LoginResponse{}, err
	}
	resp.Message = msg
	return resp, nil
}

// Register creates an account and returns its first session token.
func (c *Client) Register(ctx context.Context, input RegisterInput) (LoginResponse, error) {
	var resp LoginResponse
	msg, err := c.do(ctx, http.MethodPost, "/auth/register", nil, input, &resp)
	if err != nil {
		return LoginResponse{}, err
	}
	resp.Message = msg
	return resp, nil
}

// Me returns the authenticated caller's profile.
func (c *Client) Me(ctx context.Context) (Profile, error) {
	var profile Profile
	if _, err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}
