// Package config loads daemon settings with Viper and builds the logger.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/HerbHall/bambulink/internal/cloud"
	"github.com/HerbHall/bambulink/internal/mqtt"
	"github.com/HerbHall/bambulink/internal/webhook"
	"github.com/spf13/viper"
)

// Config is the typed view of the loaded settings.
type Config struct {
	Printer PrinterConfig  `mapstructure:"printer"`
	Cloud   cloud.Config   `mapstructure:"cloud"`
	MQTT    mqtt.Config    `mapstructure:"mqtt"`
	Server  ServerConfig   `mapstructure:"server"`
	Logging LoggingConfig  `mapstructure:"logging"`
	HMS     HMSConfig      `mapstructure:"hms"`
	Webhook webhook.Config `mapstructure:"webhook"`
}

// PrinterConfig identifies the printer and how to reach it.
type PrinterConfig struct {
	Serial      string  `mapstructure:"serial"`
	Host        string  `mapstructure:"host"`
	AccessCode  string  `mapstructure:"access_code"` //nolint:gosec // G101: config field name, not a credential
	Mode        string  `mapstructure:"mode"`
	Region      string  `mapstructure:"region"`
	DeviceType  string  `mapstructure:"device_type"`
	InsecureTLS bool    `mapstructure:"insecure_tls"`
	CAFile      string  `mapstructure:"ca_file"`
	Language    string  `mapstructure:"language"`
	UsageHours  float64 `mapstructure:"usage_hours"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	WSToken string `mapstructure:"ws_token"` //nolint:gosec // G101: config field name, not a credential
}

// Addr returns the listen address as host:port.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LoggingConfig selects the log level and encoding.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// HMSConfig points at an optional directory of translated catalogs.
type HMSConfig struct {
	CatalogDir string `mapstructure:"catalog_dir"`
}

func setDefaults(v *viper.Viper) {
	mq := mqtt.DefaultConfig()
	cl := cloud.DefaultConfig()

	v.SetDefault("printer.serial", "")
	v.SetDefault("printer.host", "")
	v.SetDefault("printer.access_code", "")
	v.SetDefault("printer.mode", mqtt.ModeLocal)
	v.SetDefault("printer.region", cl.Region)
	v.SetDefault("printer.device_type", "")
	v.SetDefault("printer.insecure_tls", true)
	v.SetDefault("printer.ca_file", "")
	v.SetDefault("printer.language", "en")
	v.SetDefault("printer.usage_hours", 0.0)

	v.SetDefault("cloud.token", "")
	v.SetDefault("cloud.username", "")
	v.SetDefault("cloud.api_base", "")
	v.SetDefault("cloud.timeout", cl.Timeout.String())

	v.SetDefault("mqtt.port", mq.Port)
	v.SetDefault("mqtt.connect_timeout", mq.ConnectTimeout.String())
	v.SetDefault("mqtt.keepalive", mq.KeepAlive.String())
	v.SetDefault("mqtt.reconnect_backoff", mq.ReconnectBackoff.String())
	v.SetDefault("mqtt.publish_timeout", mq.PublishTimeout.String())
	v.SetDefault("mqtt.watchdog_timeout", mq.WatchdogTimeout.String())
	v.SetDefault("mqtt.refresh_interval", mq.RefreshInterval.String())

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 9360)
	v.SetDefault("server.ws_token", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("hms.catalog_dir", "")

	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.timeout", webhook.DefaultConfig().Timeout.String())
	v.SetDefault("webhook.events", []string{})
}

// Load reads configuration from file and environment variables. A missing
// config file is not an error.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("bambulink")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/bambulink")
	}

	// Environment variable support: BAMBULINK_PRINTER_HOST=192.168.1.20
	v.SetEnvPrefix("BAMBULINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	return v, nil
}

// Decode unmarshals v into a Config and validates it.
func Decode(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the settings a connection cannot do without.
func (c Config) Validate() error {
	var errs []error
	if c.Printer.Serial == "" {
		errs = append(errs, errors.New("printer.serial is required"))
	}
	switch c.Printer.Mode {
	case mqtt.ModeLocal:
		if c.Printer.Host == "" {
			errs = append(errs, errors.New("printer.host is required in local mode"))
		}
		if c.Printer.AccessCode == "" {
			errs = append(errs, errors.New("printer.access_code is required in local mode"))
		}
	case mqtt.ModeCloud:
		if c.Cloud.Token == "" {
			errs = append(errs, errors.New("cloud.token is required in cloud mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("printer.mode %q: must be %q or %q", c.Printer.Mode, mqtt.ModeLocal, mqtt.ModeCloud))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Logging.Format {
	case "", "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q: must be \"json\" or \"console\"", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// MQTTConfig combines the printer, cloud and mqtt sections into a
// connection config.
func (c Config) MQTTConfig() mqtt.Config {
	m := c.MQTT
	m.Serial = c.Printer.Serial
	m.Host = c.Printer.Host
	m.AccessCode = c.Printer.AccessCode
	m.Mode = c.Printer.Mode
	m.Region = c.Printer.Region
	m.Username = c.Cloud.Username
	m.Token = c.Cloud.Token
	m.InsecureTLS = c.Printer.InsecureTLS
	m.CAFile = c.Printer.CAFile
	return m
}

// CloudConfig returns the cloud section with the printer's region applied.
func (c Config) CloudConfig() cloud.Config {
	cc := c.Cloud
	cc.Region = c.Printer.Region
	if cc.Timeout <= 0 {
		cc.Timeout = cloud.DefaultConfig().Timeout
	}
	return cc
}
