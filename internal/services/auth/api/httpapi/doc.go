// Package httpapi serves the account endpoints of the REST API: registration,
// login, the caller's profile and admin account management. It also provides
// the bearer-token middleware the game endpoints run behind.
package httpapi
