package mqtt

import "time"

// Connection modes.
const (
	ModeLocal = "local"
	ModeCloud = "cloud"
)

// localUsername is the fixed broker user on printers in LAN mode.
const localUsername = "bblp"

// Config holds connection settings for one printer.
type Config struct {
	Serial      string `mapstructure:"-"`
	Host        string `mapstructure:"-"`
	AccessCode  string `mapstructure:"-"` //nolint:gosec // G101: config field name, not a credential
	Mode        string `mapstructure:"-"`
	Region      string `mapstructure:"-"`
	Username    string `mapstructure:"-"`
	Token       string `mapstructure:"-"` //nolint:gosec // G101: config field name, not a credential
	InsecureTLS bool   `mapstructure:"-"`
	CAFile      string `mapstructure:"-"`

	Port             int           `mapstructure:"port"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	KeepAlive        time.Duration `mapstructure:"keepalive"`
	ReconnectBackoff time.Duration `mapstructure:"reconnect_backoff"`
	PublishTimeout   time.Duration `mapstructure:"publish_timeout"`
	WatchdogTimeout  time.Duration `mapstructure:"watchdog_timeout"`
	RefreshInterval  time.Duration `mapstructure:"refresh_interval"`
}

// DefaultConfig returns sensible defaults for a printer connection.
func DefaultConfig() Config {
	return Config{
		Mode:             ModeLocal,
		Port:             8883,
		ConnectTimeout:   10 * time.Second,
		KeepAlive:        5 * time.Second,
		ReconnectBackoff: 2 * time.Second,
		PublishTimeout:   5 * time.Second,
		WatchdogTimeout:  60 * time.Second,
		RefreshInterval:  5 * time.Second,
	}
}

// withDefaults fills zero durations and ports from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if c.Port == 0 {
		c.Port = def.Port
	}
	fill := func(v *time.Duration, d time.Duration) {
		if *v <= 0 {
			*v = d
		}
	}
	fill(&c.ConnectTimeout, def.ConnectTimeout)
	fill(&c.KeepAlive, def.KeepAlive)
	fill(&c.ReconnectBackoff, def.ReconnectBackoff)
	fill(&c.PublishTimeout, def.PublishTimeout)
	fill(&c.RefreshInterval, def.RefreshInterval)
	return c
}

func (c Config) reportTopic() string  { return "device/" + c.Serial + "/report" }
func (c Config) requestTopic() string { return "device/" + c.Serial + "/request" }
