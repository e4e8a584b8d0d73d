package emailverify

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/optimode/emailverify/internal/dnsclient"
)

// Config is the complete verifier configuration. It is copied by New and
// never modified afterwards; zero values take the documented defaults.
type Config struct {
	// MailFrom is the address sent in the MAIL FROM command. Default: verify@example.com
	MailFrom string
	// MaxConcurrent caps verifications running at once. Default: 50
	MaxConcurrent int

	DNS       DNSOptions
	SMTP      SMTPOptions
	Cache     CacheOptions
	RateLimit RateLimitOptions
	Domain    DomainOptions
}

// DNSOptions configures MX and address lookups.
type DNSOptions struct {
	// Servers are queried in order. Default: 8.8.8.8, 1.1.1.1, 8.8.4.4
	Servers []string
	// Timeout is the per-server query timeout. Default: 5s
	Timeout time.Duration
}

// SMTPOptions configures the recipient probe.
type SMTPOptions struct {
	// HeloDomain is the domain sent in EHLO/HELO. Default: the MailFrom domain
	HeloDomain string
	// Port is the SMTP port. Default: 25
	Port string
	// Timeout bounds the connect and each command. Default: 10s
	Timeout time.Duration
	// MaxExchangers is how many MX hosts to try sequentially. Default: 2
	MaxExchangers int
	// AttemptDelay separates attempts against successive MX hosts. Default: 1s
	AttemptDelay time.Duration
	// ProxyAddr routes probes through a SOCKS5 proxy (host:port) when set.
	ProxyAddr     string
	ProxyUser     string
	ProxyPassword string
}

// CacheOptions configures result caching.
type CacheOptions struct {
	// ResultTTL is how long a final verdict is reused. Default: 24h
	ResultTTL time.Duration
}

// RateLimitOptions configures the per-domain sliding window.
type RateLimitOptions struct {
	// MaxCalls per Window and domain. Default: 60
	MaxCalls int
	// Window is the sliding window length. Default: 60s
	Window time.Duration
	// MaxWait bounds the time spent waiting for a slot; a probe that would
	// wait longer is reported as unknown. Default: 2m. Negative waits without bound.
	MaxWait time.Duration
	// IdleTTL is how long an unused domain window is kept. Default: 10m
	IdleTTL time.Duration
	// DomainLimits overrides MaxCalls for specific domains.
	DomainLimits map[string]int
}

// DomainOptions configures the offline domain checks.
type DomainOptions struct {
	// ExtraDisposable extends the built-in disposable domain list.
	ExtraDisposable []string
	// TypoThreshold is the Levenshtein distance for typo suggestions.
	// Default: 2. Negative disables suggestions.
	TypoThreshold int
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	return Config{
		MailFrom:      "verify@example.com",
		MaxConcurrent: 50,
		DNS: DNSOptions{
			Servers: append([]string(nil), dnsclient.DefaultServers...),
			Timeout: 5 * time.Second,
		},
		SMTP: SMTPOptions{
			HeloDomain:    "example.com",
			Port:          "25",
			Timeout:       10 * time.Second,
			MaxExchangers: 2,
			AttemptDelay:  time.Second,
		},
		Cache: CacheOptions{ResultTTL: 24 * time.Hour},
		RateLimit: RateLimitOptions{
			MaxCalls: 60,
			Window:   60 * time.Second,
			MaxWait:  2 * time.Minute,
			IdleTTL:  10 * time.Minute,
		},
		Domain: DomainOptions{TypoThreshold: 2},
	}
}

// withDefaults returns a private copy of cfg with zero values replaced.
func withDefaults(cfg Config) (Config, error) {
	def := DefaultConfig()

	if cfg.MailFrom == "" {
		cfg.MailFrom = def.MailFrom
	}
	at := strings.LastIndex(cfg.MailFrom, "@")
	if at < 1 || at == len(cfg.MailFrom)-1 {
		return cfg, fmt.Errorf("%w: MailFrom %q is not an address", ErrInvalidConfig, cfg.MailFrom)
	}
	if cfg.MaxConcurrent < 0 {
		return cfg, fmt.Errorf("%w: MaxConcurrent must not be negative", ErrInvalidConfig)
	}
	if cfg.MaxConcurrent == 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}

	if len(cfg.DNS.Servers) == 0 {
		cfg.DNS.Servers = def.DNS.Servers
	} else {
		cfg.DNS.Servers = append([]string(nil), cfg.DNS.Servers...)
	}
	if cfg.DNS.Timeout <= 0 {
		cfg.DNS.Timeout = def.DNS.Timeout
	}

	if cfg.SMTP.HeloDomain == "" {
		cfg.SMTP.HeloDomain = cfg.MailFrom[at+1:]
	}
	if cfg.SMTP.Port == "" {
		cfg.SMTP.Port = def.SMTP.Port
	}
	if cfg.SMTP.Timeout <= 0 {
		cfg.SMTP.Timeout = def.SMTP.Timeout
	}
	if cfg.SMTP.MaxExchangers <= 0 {
		cfg.SMTP.MaxExchangers = def.SMTP.MaxExchangers
	}
	if cfg.SMTP.AttemptDelay < 0 {
		return cfg, fmt.Errorf("%w: AttemptDelay must not be negative", ErrInvalidConfig)
	}
	if cfg.SMTP.AttemptDelay == 0 {
		cfg.SMTP.AttemptDelay = def.SMTP.AttemptDelay
	}

	if cfg.Cache.ResultTTL <= 0 {
		cfg.Cache.ResultTTL = def.Cache.ResultTTL
	}

	if cfg.RateLimit.MaxCalls <= 0 {
		cfg.RateLimit.MaxCalls = def.RateLimit.MaxCalls
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = def.RateLimit.Window
	}
	if cfg.RateLimit.MaxWait == 0 {
		cfg.RateLimit.MaxWait = def.RateLimit.MaxWait
	}
	if cfg.RateLimit.IdleTTL <= 0 {
		cfg.RateLimit.IdleTTL = def.RateLimit.IdleTTL
	}
	cfg.RateLimit.DomainLimits = maps.Clone(cfg.RateLimit.DomainLimits)

	cfg.Domain.ExtraDisposable = append([]string(nil), cfg.Domain.ExtraDisposable...)
	if cfg.Domain.TypoThreshold == 0 {
		cfg.Domain.TypoThreshold = def.Domain.TypoThreshold
	}
	return cfg, nil
}
