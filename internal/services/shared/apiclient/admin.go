package apiclient

import (
	"context"
	"net/http"
	"net/url"
)

func accountPath(id string) string {
	return "/admin/accounts/" + url.PathEscape(id)
}

// ListAccounts returns every account. Admin only.
func (c *Client) ListAccounts(ctx context.Context) ([]Profile, error) {
	var profiles []Profile
	if _, err := c.do(ctx, http.MethodGet, "/admin/accounts", nil, nil, &profiles); err != nil {
		return nil, err
	}
	return profiles, nil
}

// SetAccountRoles replaces an account's roles. Admin only.
func (c *Client) SetAccountRoles(ctx context.Context, id string, roles []string) (Profile, error) {
	var profile Profile
	body := map[string][]string{"roles": roles}
	if _, err := c.do(ctx, http.MethodPut, accountPath(id)+"/roles", nil, body, &profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// DeleteAccount removes an account and its sheets. Admin only.
func (c *Client) DeleteAccount(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, accountPath(id), nil, nil, nil)
	return err
}
