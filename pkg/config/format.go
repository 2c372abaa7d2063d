package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Mode selects how inbound credentials are resolved
type Mode string

// Supported modes
const (
	// ModeExternal resolves Harness API keys
	ModeExternal Mode = "external"
	// ModeInternal resolves bearer tokens signed with a shared secret
	ModeInternal Mode = "internal"
)

// String returns the string representation of the mode
func (m Mode) String() string {
	return string(m)
}

// Validate checks that the mode is supported
func (m Mode) Validate() error {
	switch m {
	case ModeExternal, ModeInternal:
		return nil
	default:
		return fmt.Errorf("unsupported mode %q: must be %q or %q", string(m), ModeExternal, ModeInternal)
	}
}

// UnmarshalYAML validates the mode while decoding. An empty value means
// ModeExternal.
func (m *Mode) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode || value.ShortTag() != "!!str" {
		return fmt.Errorf("mode must be a string, got %q", value.Value)
	}
	if value.Value == "" {
		*m = ModeExternal
		return nil
	}

	mode := Mode(value.Value)
	if err := mode.Validate(); err != nil {
		return err
	}
	*m = mode
	return nil
}
