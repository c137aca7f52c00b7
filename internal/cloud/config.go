package cloud

import "time"

// Config holds cloud account settings.
type Config struct {
	Token    string        `mapstructure:"token"` //nolint:gosec // G101: config field name, not a credential
	Username string        `mapstructure:"username"`
	APIBase  string        `mapstructure:"api_base"`
	Region   string        `mapstructure:"region"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// DefaultConfig returns sensible defaults for the cloud client.
func DefaultConfig() Config {
	return Config{
		Region:  "global",
		Timeout: 10 * time.Second,
	}
}
