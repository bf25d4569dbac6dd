package onboarding

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseSeed reads a YAML document mapping step ids to configs and returns each
// config as validated JSON
func ParseSeed(data []byte) (map[string]json.RawMessage, error) {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	out := make(map[string]json.RawMessage, len(doc))
	for stepID, node := range doc {
		cfg, err := New(stepID)
		if err != nil {
			return nil, err
		}
		raw, err := yaml.Marshal(&node)
		if err != nil {
			return nil, fmt.Errorf("parse seed: %s: %w", stepID, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, stepID, err)
		}
		if err := Validate(stepID, cfg); err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", stepID, err)
		}
		out[stepID] = encoded
	}
	return out, nil
}
