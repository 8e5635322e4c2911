package dotpath

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Separator joins path keys.
const Separator = "."

var (
	// ErrInvalidPath reports an empty path or an empty key inside a path.
	ErrInvalidPath = errors.New("invalid path")
	// ErrInvalidIndex reports a key that does not address a slice element.
	ErrInvalidIndex = errors.New("invalid sequence index")
)

// Update replaces the value at Path.
type Update struct {
	Path  string
	Value any
}

// Patch is an ordered list of updates.
type Patch []Update

// Set starts a patch with a single update.
func Set(path string, value any) Patch {
	return Patch{{Path: path, Value: value}}
}

// Set returns a copy of p with one more update appended.
func (p Patch) Set(path string, value any) Patch {
	out := make(Patch, len(p), len(p)+1)
	copy(out, p)
	return append(out, Update{Path: path, Value: value})
}

// FromMap converts an unordered update map into a Patch. Keys are sorted so a
// parent path is always applied before its children.
func FromMap(updates map[string]any) Patch {
	if len(updates) == 0 {
		return nil
	}
	keys := make([]string, 0, len(updates))
	for key := range updates {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	out := make(Patch, 0, len(keys))
	for _, key := range keys {
		out = append(out, Update{Path: key, Value: updates[key]})
	}
	return out
}

// Paths lists the patch paths in application order.
func (p Patch) Paths() []string {
	out := make([]string, 0, len(p))
	for _, u := range p {
		out = append(out, u.Path)
	}
	return out
}

// Overlap is a pair of paths where Parent equals or is an ancestor of Child.
type Overlap struct {
	Parent string
	Child  string
}

// Overlapping reports every pair of paths that touch the same subtree.
func (p Patch) Overlapping() []Overlap {
	var out []Overlap
	for i := range p {
		for j := range p {
			if i == j {
				continue
			}
			a, b := p[i].Path, p[j].Path
			if a == b && i > j {
				continue
			}
			if a == b || strings.HasPrefix(b, a+Separator) {
				out = append(out, Overlap{Parent: a, Child: b})
			}
		}
	}
	return out
}

// Validate checks that every path is well formed.
func (p Patch) Validate() error {
	for _, u := range p {
		if _, err := Split(u.Path); err != nil {
			return err
		}
	}
	return nil
}

// Split breaks a path into keys.
func Split(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	keys := strings.Split(path, Separator)
	if slices.Contains(keys, "") {
		return nil, fmt.Errorf("%w: empty key in %q", ErrInvalidPath, path)
	}
	return keys, nil
}

// MarshalJSON encodes the patch as a JSON object whose keys keep patch order.
func (p Patch) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, u := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(u.Path)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(u.Value)
		if err != nil {
			return nil, fmt.Errorf("encode %q: %w", u.Path, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into a patch, keeping document order.
func (p *Patch) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	tok, err := decoder.Token()
	if err != nil {
		return fmt.Errorf("decode patch: %w", err)
	}
	if tok == nil {
		*p = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("decode patch: expected object, got %v", tok)
	}
	out := Patch{}
	for decoder.More() {
		keyTok, err := decoder.Token()
		if err != nil {
			return fmt.Errorf("decode patch key: %w", err)
		}
		key, _ := keyTok.(string)
		var value any
		if err := decoder.Decode(&value); err != nil {
			return fmt.Errorf("decode patch value %q: %w", key, err)
		}
		out = append(out, Update{Path: key, Value: value})
	}
	if _, err := decoder.Token(); err != nil {
		return fmt.Errorf("decode patch: %w", err)
	}
	*p = out
	return nil
}
