// Package httpapi serves the character sheet endpoints of the REST API.
//
// Players see and edit their own sheets; admins see and edit every sheet.
// Updates arrive as ordered dot-path patches and the stored, normalized sheet
// is returned so clients can replace their optimistic copy.
package httpapi
