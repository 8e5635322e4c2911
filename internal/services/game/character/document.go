package character

import (
	"bytes"
	"encoding/json"

	apperrors "github.com/louisbranch/tapestry/internal/platform/errors"
)

// ToDocument renders s as a JSON-shaped map.
func ToDocument(s Sheet) (map[string]any, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnknown, "encode sheet", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeUnknown, "decode sheet document", err)
	}
	return doc, nil
}

// FromDocument decodes a document into a Sheet. Unknown fields and values of
// the wrong type are rejected as invalid patches.
func FromDocument(doc map[string]any) (Sheet, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return Sheet{}, apperrors.Wrap(apperrors.CodeCharacterInvalidPatch, "sheet document cannot be encoded", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	var s Sheet
	if err := decoder.Decode(&s); err != nil {
		return Sheet{}, apperrors.WithMetadata(apperrors.CodeCharacterInvalidPatch, "sheet document does not match the sheet layout", map[string]string{"reason": err.Error()})
	}
	return s, nil
}
