// Package admin is the admin dashboard session: an admin-only sign-in plus
// account and sheet management through the REST API.
package admin
