// Package auth owns accounts and sessions for the REST API.
//
// Subpackages:
//   - account: account model, registration input and role rules
//   - token: JWT session issue and parse
//   - storage: persistence interface and the SQLite implementation
//   - api/httpapi: register, login, profile and admin account routes
package auth
