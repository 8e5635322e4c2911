// Package character models player character sheets: the record layout shared
// by the API, the client cache and the tools, plus the rules that turn player
// actions (damage, spending threads, stepping aspects) into dot-path patches.
//
// Sheets travel as JSON documents so they can be patched generically with
// dotpath; ToDocument and FromDocument convert between the typed Sheet and
// that document form.
package character
