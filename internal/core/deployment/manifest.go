package deployment

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadSpec reads and validates a deployment manifest from a YAML file.
func LoadSpec(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return ParseSpec(data)
}

// ParseSpec parses and validates a deployment manifest.
func ParseSpec(data []byte) (Spec, error) {
	var spec Spec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return Spec{}, fmt.Errorf("parse manifest: %w", err)
	}
	if spec.Platform == "" {
		spec.Platform = DefaultPlatform
	}
	if err := spec.Validate(); err != nil {
		return Spec{}, fmt.Errorf("invalid manifest: %w", err)
	}
	return spec, nil
}
