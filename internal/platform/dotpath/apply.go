package dotpath

import (
	"fmt"
	"maps"
	"strconv"
)

// Apply returns record with every update in patch applied in order. The input
// is never modified. An empty patch returns record itself.
func Apply(record map[string]any, patch Patch) (map[string]any, error) {
	if len(patch) == 0 {
		return record, nil
	}
	var root any = record
	for _, u := range patch {
		keys, err := Split(u.Path)
		if err != nil {
			return nil, err
		}
		next, err := setIn(root, keys, u.Value)
		if err != nil {
			return nil, fmt.Errorf("apply %q: %w", u.Path, err)
		}
		root = next
	}
	out, _ := root.(map[string]any)
	return out, nil
}

// setIn returns a shallow copy of node with value stored under keys.
func setIn(node any, keys []string, value any) (any, error) {
	key := keys[0]
	switch current := node.(type) {
	case []any:
		idx, err := sliceIndex(key, len(current))
		if err != nil {
			return nil, err
		}
		copied := make([]any, len(current), max(len(current), idx+1))
		copy(copied, current)
		if idx == len(current) {
			copied = append(copied, nil)
		}
		if len(keys) == 1 {
			copied[idx] = value
			return copied, nil
		}
		child, err := setIn(copied[idx], keys[1:], value)
		if err != nil {
			return nil, err
		}
		copied[idx] = child
		return copied, nil
	default:
		var copied map[string]any
		if m, ok := current.(map[string]any); ok {
			copied = maps.Clone(m)
		}
		if copied == nil {
			copied = make(map[string]any, 1)
		}
		if len(keys) == 1 {
			copied[key] = value
			return copied, nil
		}
		child, err := setIn(copied[key], keys[1:], value)
		if err != nil {
			return nil, err
		}
		copied[key] = child
		return copied, nil
	}
}

func sliceIndex(key string, length int) (int, error) {
	idx, err := strconv.Atoi(key)
	if err != nil || idx < 0 || idx > length || strconv.Itoa(idx) != key {
		return 0, fmt.Errorf("%w: %q for length %d", ErrInvalidIndex, key, length)
	}
	return idx, nil
}

// Get reads the value stored at path. The boolean is false when any key on
// the path is missing.
func Get(record any, path string) (any, bool) {
	keys, err := Split(path)
	if err != nil {
		return nil, false
	}
	node := record
	for _, key := range keys {
		switch current := node.(type) {
		case map[string]any:
			next, ok := current[key]
			if !ok {
				return nil, false
			}
			node = next
		case []any:
			idx, err := sliceIndex(key, len(current))
			if err != nil || idx == len(current) {
				return nil, false
			}
			node = current[idx]
		default:
			return nil, false
		}
	}
	return node, true
}
