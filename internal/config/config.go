// Package config loads the service and CLI configuration from a YAML file,
// EMAILVERIFY_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/optimode/emailverify"
	"github.com/optimode/emailverify/cache"
)

// EnvPrefix prefixes every environment override, e.g. EMAILVERIFY_SMTP_TIMEOUT.
const EnvPrefix = "EMAILVERIFY"

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a configuration instance. When path is empty the usual
// locations are searched for config.yaml; a missing file is not an error.
func New(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/emailverify/")
		v.AddConfigPath("$HOME/.emailverify")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return &Config{v: v}, nil
}

// NewFromViper wraps an existing Viper instance.
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a Viper instance holding only the defaults.
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	def := emailverify.DefaultConfig()

	v.SetDefault("mail_from", def.MailFrom)
	v.SetDefault("max_concurrent", def.MaxConcurrent)

	// DNS
	v.SetDefault("dns.servers", def.DNS.Servers)
	v.SetDefault("dns.timeout", def.DNS.Timeout)

	// SMTP; helo_domain falls back to the mail_from domain
	v.SetDefault("smtp.helo_domain", "")
	v.SetDefault("smtp.port", def.SMTP.Port)
	v.SetDefault("smtp.timeout", def.SMTP.Timeout)
	v.SetDefault("smtp.max_exchangers", def.SMTP.MaxExchangers)
	v.SetDefault("smtp.attempt_delay", def.SMTP.AttemptDelay)
	v.SetDefault("smtp.proxy.address", "")
	v.SetDefault("smtp.proxy.user", "")
	v.SetDefault("smtp.proxy.password", "")

	// Cache
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.result_ttl", def.Cache.ResultTTL)
	v.SetDefault("cache.cleanup_interval", 10*time.Minute)
	v.SetDefault("cache.redis.address", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.sqlite.path", "data/emailverify.db")

	// Rate limiting
	v.SetDefault("ratelimit.max_calls", def.RateLimit.MaxCalls)
	v.SetDefault("ratelimit.window", def.RateLimit.Window)
	v.SetDefault("ratelimit.max_wait", def.RateLimit.MaxWait)
	v.SetDefault("ratelimit.idle_ttl", def.RateLimit.IdleTTL)
	v.SetDefault("ratelimit.domain_limits", map[string]any{})

	// Domain checks
	v.SetDefault("domain.extra_disposable", []string{})
	v.SetDefault("domain.typo_threshold", def.Domain.TypoThreshold)

	// HTTP server
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.max_bulk", 1000)
	v.SetDefault("server.request_timeout", 5*time.Minute)

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString returns a string configuration value
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt returns an integer configuration value
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetBool returns a boolean configuration value
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetDuration returns a duration configuration value
func (c *Config) GetDuration(key string) time.Duration {
	return c.v.GetDuration(key)
}

// GetStringSlice returns a string slice configuration value
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// Set overrides a value, typically from a command-line flag.
func (c *Config) Set(key string, value any) {
	c.v.Set(key, value)
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}

// Verifier builds the verifier configuration. Defaults for anything left
// unset are applied again by emailverify.New.
func (c *Config) Verifier() emailverify.Config {
	limits := map[string]int{}
	for domain, n := range c.v.GetStringMap("ratelimit.domain_limits") {
		limits[strings.ToLower(domain)] = cast.ToInt(n)
	}

	return emailverify.Config{
		MailFrom:      c.v.GetString("mail_from"),
		MaxConcurrent: c.v.GetInt("max_concurrent"),
		DNS: emailverify.DNSOptions{
			Servers: c.v.GetStringSlice("dns.servers"),
			Timeout: c.v.GetDuration("dns.timeout"),
		},
		SMTP: emailverify.SMTPOptions{
			HeloDomain:    c.v.GetString("smtp.helo_domain"),
			Port:          c.v.GetString("smtp.port"),
			Timeout:       c.v.GetDuration("smtp.timeout"),
			MaxExchangers: c.v.GetInt("smtp.max_exchangers"),
			AttemptDelay:  c.v.GetDuration("smtp.attempt_delay"),
			ProxyAddr:     c.v.GetString("smtp.proxy.address"),
			ProxyUser:     c.v.GetString("smtp.proxy.user"),
			ProxyPassword: c.v.GetString("smtp.proxy.password"),
		},
		Cache: emailverify.CacheOptions{
			ResultTTL: c.v.GetDuration("cache.result_ttl"),
		},
		RateLimit: emailverify.RateLimitOptions{
			MaxCalls:     c.v.GetInt("ratelimit.max_calls"),
			Window:       c.v.GetDuration("ratelimit.window"),
			MaxWait:      c.v.GetDuration("ratelimit.max_wait"),
			IdleTTL:      c.v.GetDuration("ratelimit.idle_ttl"),
			DomainLimits: limits,
		},
		Domain: emailverify.DomainOptions{
			ExtraDisposable: c.v.GetStringSlice("domain.extra_disposable"),
			TypoThreshold:   c.v.GetInt("domain.typo_threshold"),
		},
	}
}

// Cache builds the store configuration.
func (c *Config) Cache() cache.Config {
	return cache.Config{
		Type:            c.v.GetString("cache.type"),
		CleanupInterval: c.v.GetDuration("cache.cleanup_interval"),
		RedisAddr:       c.v.GetString("cache.redis.address"),
		RedisPassword:   c.v.GetString("cache.redis.password"),
		RedisDB:         c.v.GetInt("cache.redis.db"),
		SQLitePath:      c.v.GetString("cache.sqlite.path"),
	}
}
