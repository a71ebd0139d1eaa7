package config

import (
	"time"
)

// ServerConfig represents the configuration for the HTTP front end
type ServerConfig struct {
	ListenAddress string
}

// DNSConfig represents the configuration for the DNS client
type DNSConfig struct {
	Nameservers []string
	Timeout     time.Duration
	Retries     int
}

// ReputationConfig represents the per-step budgets of the domain reputation resolver
type ReputationConfig struct {
	DBLZone      string
	MXTimeout    time.Duration
	ATimeout     time.Duration
	DBLTimeout   time.Duration
	RDAPTimeout  time.Duration
	WhoisTimeout time.Duration
}

// RDAPConfig represents the configuration for the RDAP client
type RDAPConfig struct {
	BaseURL string
}

// WhoisConfig represents the configuration for the WHOIS client
type WhoisConfig struct {
	MaxReferrals int
}

// MailboxConfig represents the configuration for the mailbox-classification provider
type MailboxConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Timeout  time.Duration
}

// CacheConfig represents the configuration for the verification result cache
type CacheConfig struct {
	Type       string
	Enabled    bool
	TTL        time.Duration
	SQLitePath string
	MySQLDSN   string
}

// BrandConfig represents the configuration for brand alignment
type BrandConfig struct {
	LookalikeDistance int
	// Allowlist maps a brand root label to extra domains it owns
	Allowlist map[string][]string
}

// InspectConfig represents the configuration for message inspection
type InspectConfig struct {
	MaxUploadBytes int64
	LinkDNSTimeout time.Duration
	MaxLinkDomains int
}

// SMTPConfig represents the configuration for the SMTP content filter
type SMTPConfig struct {
	Enabled        bool
	ListenAddress  string
	RelayAddress   string
	RejectPhishing bool
	InspectTimeout time.Duration
}

// LoggingConfig represents the logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// GetServer returns the HTTP server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		ListenAddress: c.GetString("server.listen_address"),
	}
}

// GetDNS returns the DNS configuration
func (c *Config) GetDNS() DNSConfig {
	return DNSConfig{
		Nameservers: c.GetStringSlice("dns.nameservers"),
		Timeout:     c.durationOr("dns.timeout", 2*time.Second),
		Retries:     c.GetInt("dns.retries"),
	}
}

// GetReputation returns the reputation resolver configuration
func (c *Config) GetReputation() ReputationConfig {
	return ReputationConfig{
		DBLZone:      c.GetString("reputation.dbl_zone"),
		MXTimeout:    c.durationOr("reputation.mx_timeout", 5*time.Second),
		ATimeout:     c.durationOr("reputation.a_timeout", 4*time.Second),
		DBLTimeout:   c.durationOr("reputation.dbl_timeout", 3*time.Second),
		RDAPTimeout:  c.durationOr("reputation.rdap_timeout", 6*time.Second),
		WhoisTimeout: c.durationOr("reputation.whois_timeout", 6*time.Second),
	}
}

// GetRDAP returns the RDAP configuration
func (c *Config) GetRDAP() RDAPConfig {
	return RDAPConfig{
		BaseURL: c.GetString("rdap.base_url"),
	}
}

// GetWhois returns the WHOIS configuration
func (c *Config) GetWhois() WhoisConfig {
	return WhoisConfig{
		MaxReferrals: c.GetInt("whois.max_referrals"),
	}
}

// GetMailbox returns the mailbox provider configuration
func (c *Config) GetMailbox() MailboxConfig {
	return MailboxConfig{
		Provider: c.GetString("mailbox.provider"),
		APIKey:   c.GetString("mailbox.api_key"),
		BaseURL:  c.GetString("mailbox.base_url"),
		Timeout:  c.durationOr("mailbox.timeout", 8*time.Second),
	}
}

// GetCache returns the cache configuration
func (c *Config) GetCache() CacheConfig {
	return CacheConfig{
		Type:       c.GetString("cache.type"),
		Enabled:    c.GetBool("cache.enabled"),
		TTL:        c.durationOr("cache.ttl", 15*time.Minute),
		SQLitePath: c.GetString("cache.sqlite_path"),
		MySQLDSN:   c.GetString("cache.mysql_dsn"),
	}
}

// GetBrand returns the brand alignment configuration
func (c *Config) GetBrand() BrandConfig {
	return BrandConfig{
		LookalikeDistance: c.GetInt("brand.lookalike_distance"),
		Allowlist:         c.v.GetStringMapStringSlice("brand.allowlist"),
	}
}

// GetInspect returns the inspection configuration
func (c *Config) GetInspect() InspectConfig {
	return InspectConfig{
		MaxUploadBytes: c.GetInt64("inspect.max_upload_bytes"),
		LinkDNSTimeout: c.durationOr("inspect.link_dns_timeout", 3*time.Second),
		MaxLinkDomains: c.GetInt("inspect.max_link_domains"),
	}
}

// GetSMTP returns the SMTP content filter configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		Enabled:        c.GetBool("smtp.enabled"),
		ListenAddress:  c.GetString("smtp.listen_address"),
		RelayAddress:   c.GetString("smtp.relay_address"),
		RejectPhishing: c.GetBool("smtp.reject_phishing"),
		InspectTimeout: c.durationOr("smtp.inspect_timeout", 30*time.Second),
	}
}

// GetLogging returns the logging configuration
func (c *Config) GetLogging() LoggingConfig {
	return LoggingConfig{
		Level:  c.GetString("logging.level"),
		Format: c.GetString("logging.format"),
	}
}
