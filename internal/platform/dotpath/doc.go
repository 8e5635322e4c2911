// Package dotpath applies ordered "a.b.c" = value updates to nested JSON-like
// records without mutating them.
//
// A record is built from map[string]any, []any and scalar values, the shapes
// encoding/json produces when decoding into any. Apply copies only the
// containers on each patched path; every subtree off those paths is shared
// with the input, so callers can detect changes by comparing references.
//
// Updates in a Patch run left to right against the result of the previous
// ones. When one path is a prefix of another the later update wins for the
// overlapping part:
//
//	Set("sheet.hp", map[string]any{"current": 1}).Set("sheet.hp.max", 5)
//
// yields hp = {current: 1, max: 5}, while the reverse order replaces the
// whole hp object last.
package dotpath
