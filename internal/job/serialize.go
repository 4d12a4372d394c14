package job

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Marshal serializes r the same way on every call: yaml.v3 walks struct
// fields in declaration order, so repeated calls on an unchanged Record
// produce byte-identical output (spec §8 round-trip property).
func Marshal(r Record) ([]byte, error) {
	out, err := yaml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("job: marshal record: %w", err)
	}
	return out, nil
}

// Unmarshal parses a serialized Record.
func Unmarshal(data []byte) (Record, error) {
	var r Record
	if err := yaml.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("job: unmarshal record: %w", err)
	}
	if err := r.Validate(); err != nil {
		return Record{}, err
	}
	return r, nil
}
