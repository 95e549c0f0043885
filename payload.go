// Copyright (C) 2020-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package crdt

import (
	"bytes"
	"encoding/json"
)

var null = []byte("null")

// DecodeFields splits the snapshot object [payload] into its top level fields.
// Every field of [required] must be present and not null. [kind] names the set
// type in the returned error.
func DecodeFields(kind string, payload []byte, required ...string) (map[string]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, InvalidPayload("%s: %v", kind, err)
	}
	for _, name := range required {
		field, ok := fields[name]
		if !ok || bytes.Equal(bytes.TrimSpace(field), null) {
			return nil, InvalidPayload("%s: missing field %q", kind, name)
		}
	}
	return fields, nil
}
