package check

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/optimode/emailverify/internal/metrics"
	"github.com/optimode/emailverify/types"
)

const (
	// MXKeyPrefix prefixes the cache key of a domain's exchanger list.
	MXKeyPrefix = "mx:"
	// MXCacheTTL is how long a resolved exchanger list is reused.
	MXCacheTTL = 24 * time.Hour
)

// MXResult describes where mail for a domain is delivered.
type MXResult struct {
	// Hosts are the exchangers in preference order. Empty when the domain
	// only exists through address records.
	Hosts []string
	// Exists is true when MX or A/AAAA records were found.
	Exists bool
	// Cached is true when Hosts came from the cache.
	Cached bool
	// Transient is true when the domain could not be confirmed because a
	// lookup timed out or a server failed. Err holds the last such error.
	Transient bool
	Err       error
}

type mxEntry struct {
	MX []string `json:"mx"`
}

// MXResolver finds the mail exchangers of a domain, consulting the cache
// before DNS and falling back to A/AAAA records when no MX is published.
type MXResolver struct {
	resolver types.Resolver
	cache    types.Cache
	logger   *zap.Logger
}

// NewMXResolver creates an MXResolver. A nil logger disables logging.
func NewMXResolver(resolver types.Resolver, cache types.Cache, logger *zap.Logger) *MXResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MXResolver{resolver: resolver, cache: cache, logger: logger}
}

// Resolve looks up the exchangers for domain.
func (r *MXResolver) Resolve(ctx context.Context, domain string) MXResult {
	if hosts := r.cached(ctx, domain); len(hosts) > 0 {
		return MXResult{Hosts: hosts, Exists: true, Cached: true}
	}

	var transient error
	records, err := r.resolver.Resolve(ctx, domain, types.RecordMX)
	if err != nil {
		transient = keepTransient(transient, err)
	}

	hosts := make([]string, 0, len(records))
	for _, rec := range records {
		// "." is a null MX (RFC 7505).
		host := strings.TrimSuffix(rec.Value, ".")
		if host != "" {
			hosts = append(hosts, host)
		}
	}
	if len(hosts) > 0 {
		r.store(ctx, domain, hosts)
		return MXResult{Hosts: hosts, Exists: true}
	}

	for _, rt := range []types.RecordType{types.RecordA, types.RecordAAAA} {
		addrs, err := r.resolver.Resolve(ctx, domain, rt)
		if err == nil && len(addrs) > 0 {
			return MXResult{Exists: true}
		}
		if err != nil {
			transient = keepTransient(transient, err)
		}
	}

	if transient != nil {
		r.logger.Debug("domain lookup inconclusive", zap.String("domain", domain), zap.Error(transient))
		return MXResult{Transient: true, Err: transient}
	}
	return MXResult{}
}

// keepTransient returns err when it is a timeout or server failure,
// otherwise the previously kept error.
func keepTransient(kept, err error) error {
	if errors.Is(err, types.ErrTimeout) || errors.Is(err, types.ErrServerFailure) {
		return err
	}
	return kept
}

func (r *MXResolver) cached(ctx context.Context, domain string) []string {
	raw, err := r.cache.Get(ctx, MXKeyPrefix+domain)
	if err != nil {
		if errors.Is(err, types.ErrCacheMiss) {
			metrics.RecordCacheLookup("mx", "miss")
		} else {
			metrics.RecordCacheLookup("mx", "error")
			r.logger.Debug("mx cache read failed", zap.String("domain", domain), zap.Error(err))
		}
		return nil
	}

	var entry mxEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		metrics.RecordCacheLookup("mx", "error")
		r.logger.Debug("mx cache entry corrupt", zap.String("domain", domain), zap.Error(err))
		return nil
	}
	if len(entry.MX) == 0 {
		metrics.RecordCacheLookup("mx", "miss")
		return nil
	}
	metrics.RecordCacheLookup("mx", "hit")
	return entry.MX
}

func (r *MXResolver) store(ctx context.Context, domain string, hosts []string) {
	raw, err := json.Marshal(mxEntry{MX: hosts})
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, MXKeyPrefix+domain, raw, MXCacheTTL); err != nil {
		r.logger.Debug("mx cache write failed", zap.String("domain", domain), zap.Error(err))
	}
}
