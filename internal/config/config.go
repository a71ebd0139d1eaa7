package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/mailtrust/")
	v.AddConfigPath("$HOME/.mailtrust")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return &Config{v: v}, nil
}

// NewFromFile creates a configuration instance from an explicit file
func NewFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func bindEnv(v *viper.Viper) {
	v.AutomaticEnv()
	v.SetEnvPrefix("MAILTRUST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.listen_address", ":8080")

	// DNS defaults
	v.SetDefault("dns.nameservers", []string{})
	v.SetDefault("dns.timeout", "2s")
	v.SetDefault("dns.retries", 1)

	// Reputation defaults
	v.SetDefault("reputation.dbl_zone", "dbl.spamhaus.org")
	v.SetDefault("reputation.mx_timeout", "5s")
	v.SetDefault("reputation.a_timeout", "4s")
	v.SetDefault("reputation.dbl_timeout", "3s")
	v.SetDefault("reputation.rdap_timeout", "6s")
	v.SetDefault("reputation.whois_timeout", "6s")

	v.SetDefault("rdap.base_url", "https://rdap.org/domain/")
	v.SetDefault("whois.max_referrals", 2)

	// Mailbox provider defaults
	v.SetDefault("mailbox.provider", "")
	v.SetDefault("mailbox.api_key", "")
	v.SetDefault("mailbox.base_url", "https://api.kickbox.com")
	v.SetDefault("mailbox.timeout", "8s")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "15m")
	v.SetDefault("cache.sqlite_path", "/data/mailtrust_cache.db")
	v.SetDefault("cache.mysql_dsn", "user:password@tcp(localhost:3306)/mailtrust")

	// Brand defaults
	v.SetDefault("brand.lookalike_distance", 2)

	// Inspection defaults
	v.SetDefault("inspect.max_upload_bytes", 10485760)
	v.SetDefault("inspect.link_dns_timeout", "3s")
	v.SetDefault("inspect.max_link_domains", 25)

	// SMTP content filter defaults
	v.SetDefault("smtp.enabled", false)
	v.SetDefault("smtp.listen_address", "127.0.0.1:10025")
	v.SetDefault("smtp.relay_address", "")
	v.SetDefault("smtp.reject_phishing", false)
	v.SetDefault("smtp.inspect_timeout", "30s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetInt64 gets an int64 value from the configuration
func (c *Config) GetInt64(key string) int64 {
	return c.v.GetInt64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetDuration gets a duration value from the configuration
func (c *Config) GetDuration(key string) (time.Duration, error) {
	return time.ParseDuration(c.GetString(key))
}

// durationOr parses a duration key, keeping fallback when it is malformed
func (c *Config) durationOr(key string, fallback time.Duration) time.Duration {
	d, err := c.GetDuration(key)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
