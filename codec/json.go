package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// Payloads must be JSON-representable: typical structs, maps, slices and
// scalars. Use Gob for payloads with unexported-free Go types that JSON
// cannot round-trip exactly.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the codec used for new snapshots.
//
// Existing snapshots are self-describing and are opened with the codec named
// in their header.
var Default Codec = GoJSON{}
