package policy

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a static allowlist definition from a YAML file and
// compiles it. Used when the allowlist is hand-maintained instead of
// derived from the live schema.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read allowlist file: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parse allowlist file %s: %w", path, err)
	}

	return New(def), nil
}
