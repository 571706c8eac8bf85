package config

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeSettings converts an opaque settings map (as carried on
// model.SourceConfig/EmbedConfig/SinkConfig) into a typed struct for a
// specific connector family, rejecting unknown keys. This replaces the
// untyped "settings: map<string,any>" from the source system with a
// tagged variant selected by the connector's type/model name, per the
// module's typed-settings design decision.
func DecodeSettings(raw map[string]interface{}, out interface{}) error {
	if raw == nil {
		raw = map[string]interface{}{}
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode settings: %w", err)
	}
	return nil
}
