package session

import (
	"encoding/json"
	"fmt"
)

// MaxMetadataBytes caps the serialized size of session metadata.
const MaxMetadataBytes = 1 << 20

// CleanMetadata returns a copy of the metadata that is guaranteed to
// serialize: values that cannot be marshaled to JSON are replaced with
// nil, and if the serialized whole exceeds maxSize the metadata is
// redacted down to a single explanatory entry.
func CleanMetadata(metadata map[string]any, maxSize int) map[string]any {
	cleaned := make(map[string]any, len(metadata))
	for key, value := range metadata {
		if _, err := json.Marshal(value); err != nil {
			cleaned[key] = nil
			continue
		}
		cleaned[key] = value
	}

	serialized, err := json.Marshal(cleaned)
	if err != nil || len(serialized) > maxSize {
		return map[string]any{
			"message": fmt.Sprintf("Metadata size exceeds the limit of %d bytes. Redacted.", maxSize),
		}
	}
	return cleaned
}
