package extension

import "time"

// Config holds the billing extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.billing" or "billing" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// MirrorBuffer is the depth of the external-ledger dispatch queue
	// (default: 1024).
	MirrorBuffer int `json:"mirror_buffer" mapstructure:"mirror_buffer" yaml:"mirror_buffer"`

	// MirrorTimeout bounds each external-ledger replication attempt
	// (default: 5s).
	MirrorTimeout time.Duration `json:"mirror_timeout" mapstructure:"mirror_timeout" yaml:"mirror_timeout"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MirrorBuffer:  1024,
		MirrorTimeout: 5 * time.Second,
	}
}
