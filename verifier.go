package emailverify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/optimode/emailverify/cache"
	"github.com/optimode/emailverify/check"
	"github.com/optimode/emailverify/internal/dnsclient"
	"github.com/optimode/emailverify/internal/metrics"
	"github.com/optimode/emailverify/internal/parse"
	"github.com/optimode/emailverify/internal/ratelimit"
	"github.com/optimode/emailverify/internal/smtpclient"
	"github.com/optimode/emailverify/types"
)

// Verifier is the main fluent builder struct.
// Instantiate with New, then optionally swap capabilities with the With
// methods before the first verification. Call Close when done.
type Verifier struct {
	cfg Config
	err error // configuration error, returned on every call

	logger    *zap.Logger
	cache     types.Cache
	resolver  types.Resolver
	transport types.Transport
	ownCache  cache.Store // default cache, closed by Close

	sem     *semaphore.Weighted
	limiter *ratelimit.Limiter

	syntax *check.SyntaxChecker
	domain *check.DomainChecker
	mx     *check.MXResolver
	prober *check.Prober
}

// New creates a Verifier from cfg. By default it resolves DNS against
// cfg.DNS.Servers, probes over plain TCP (or the configured SOCKS5 proxy)
// and caches in memory.
func New(cfg Config) *Verifier {
	v := &Verifier{logger: zap.NewNop()}

	full, err := withDefaults(cfg)
	if err != nil {
		v.err = err
		return v
	}
	v.cfg = full

	transport, err := smtpclient.New(smtpclient.Config{
		HeloDomain:    full.SMTP.HeloDomain,
		ProxyAddr:     full.SMTP.ProxyAddr,
		ProxyUser:     full.SMTP.ProxyUser,
		ProxyPassword: full.SMTP.ProxyPassword,
	})
	if err != nil {
		v.err = fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		return v
	}
	v.transport = transport
	v.resolver = dnsclient.New(dnsclient.Config{Servers: full.DNS.Servers, Timeout: full.DNS.Timeout})
	v.ownCache = cache.NewMemory(v.logger, 10*time.Minute)
	v.cache = v.ownCache

	v.sem = semaphore.NewWeighted(int64(full.MaxConcurrent))
	v.limiter = ratelimit.New(ratelimit.Config{
		MaxCalls:     full.RateLimit.MaxCalls,
		Window:       full.RateLimit.Window,
		MaxWait:      full.RateLimit.MaxWait,
		IdleTTL:      full.RateLimit.IdleTTL,
		DomainLimits: full.RateLimit.DomainLimits,
	})
	v.syntax = check.NewSyntaxChecker()
	v.domain = check.NewDomainChecker(check.DomainConfig{
		ExtraDisposable: full.Domain.ExtraDisposable,
		TypoThreshold:   full.Domain.TypoThreshold,
	})
	v.build()
	return v
}

// WithLogger sets the logger. Default: no logging.
func (v *Verifier) WithLogger(logger *zap.Logger) *Verifier {
	if logger != nil && v.err == nil {
		v.logger = logger
		v.build()
	}
	return v
}

// WithCache replaces the default in-memory cache. The caller keeps
// ownership of c.
func (v *Verifier) WithCache(c types.Cache) *Verifier {
	if c != nil && v.err == nil {
		if v.ownCache != nil {
			_ = v.ownCache.Close()
			v.ownCache = nil
		}
		v.cache = c
		v.build()
	}
	return v
}

// WithResolver replaces the DNS client.
func (v *Verifier) WithResolver(r types.Resolver) *Verifier {
	if r != nil && v.err == nil {
		v.resolver = r
		v.build()
	}
	return v
}

// WithTransport replaces the SMTP transport.
func (v *Verifier) WithTransport(t types.Transport) *Verifier {
	if t != nil && v.err == nil {
		v.transport = t
		v.build()
	}
	return v
}

// build wires the stages that depend on swappable capabilities.
func (v *Verifier) build() {
	v.mx = check.NewMXResolver(v.resolver, v.cache, v.logger)
	v.prober = check.NewProber(check.ProbeConfig{
		MailFrom:      v.cfg.MailFrom,
		Port:          v.cfg.SMTP.Port,
		Timeout:       v.cfg.SMTP.Timeout,
		MaxExchangers: v.cfg.SMTP.MaxExchangers,
		AttemptDelay:  v.cfg.SMTP.AttemptDelay,
	}, v.transport, v.logger)
}

// Config returns the effective configuration with defaults applied.
func (v *Verifier) Config() Config {
	return v.cfg
}

// Err returns the configuration error recorded by New, if any.
func (v *Verifier) Err() error {
	return v.err
}

// Close stops background work and releases the default cache.
// Safe to call multiple times.
func (v *Verifier) Close() error {
	if v.limiter != nil {
		v.limiter.Close()
	}
	if v.ownCache != nil {
		return v.ownCache.Close()
	}
	return nil
}

// VerifySingle verifies one address. The returned error is reserved for
// configuration problems, an ended context while waiting for a slot, and
// unexpected failures; every other outcome is expressed in the Result.
//
// A panic inside the pipeline is recovered and returned as an error
// wrapping ErrUnexpected with a zero Result. VerifySingle does not build
// a placeholder itself; callers that need one per address, like
// VerifyBulk, turn the error into an unknown Result.
func (v *Verifier) VerifySingle(ctx context.Context, address string) (types.Result, error) {
	if v.err != nil {
		return types.Result{}, v.err
	}

	var (
		res types.Result
		err error
	)
	if r := panics.Try(func() { res, err = v.verify(ctx, address) }); r != nil {
		v.logger.Error("verification panicked", zap.String("email", address), zap.String("panic", r.String()))
		return types.Result{}, fmt.Errorf("%w: %v", ErrUnexpected, r.Value)
	}
	return res, err
}

func (v *Verifier) verify(ctx context.Context, address string) (types.Result, error) {
	start := time.Now()
	email := parse.Normalize(address)

	if res, ok := v.cachedResult(ctx, email); ok {
		v.logger.Debug("result cache hit", zap.String("email", email), zap.String("status", string(res.Status)))
		return res, nil
	}

	if err := v.sem.Acquire(ctx, 1); err != nil {
		return types.Result{}, fmt.Errorf("emailverify: waiting for a verification slot: %w", err)
	}
	defer v.sem.Release(1)
	metrics.InFlightInc()
	defer metrics.InFlightDec()

	res, cacheable := v.pipeline(ctx, email)
	metrics.RecordVerification(string(res.Status), time.Since(start))
	v.logger.Debug("verified",
		zap.String("email", email),
		zap.String("status", string(res.Status)),
		zap.Int("quality", res.QualityScore),
		zap.Duration("elapsed", time.Since(start)),
	)

	if cacheable && ctx.Err() == nil {
		v.storeResult(ctx, res)
	}
	return res, nil
}

// pipeline runs the stages in order and reports whether the verdict may
// be cached.
func (v *Verifier) pipeline(ctx context.Context, email string) (types.Result, bool) {
	parsed := parse.NewEmail(email)
	var d types.Details

	if err := v.syntax.Check(parsed); err != nil {
		d.Reason = err.Error()
		return types.NewResult(email, types.StatusInvalid, QualityMalformed, d), true
	}
	d.SyntaxValid = true

	report := v.domain.Check(parsed)
	if report.Disposable {
		d.IsDisposable = true
		return types.NewResult(email, types.StatusDisposable, QualityDisposable, d), true
	}
	d.IsRoleAccount = report.RoleAccount
	d.Suggestion = report.Suggestion

	mx := v.mx.Resolve(ctx, parsed.Domain)
	switch {
	case mx.Transient:
		d.Reason = mx.Err.Error()
		return types.NewResult(email, types.StatusRisky, QualityAddressOnly, d), false
	case !mx.Exists:
		d.Reason = "domain has no MX, A or AAAA records"
		return types.NewResult(email, types.StatusInvalid, QualityNoSuchDomain, d), true
	}
	d.DomainVerified = true

	if len(mx.Hosts) == 0 {
		d.Reason = "domain has no mail exchangers"
		return types.NewResult(email, types.StatusRisky, QualityAddressOnly, d), true
	}

	probe := v.probe(ctx, parsed.Domain, mx.Hosts, parsed.Address())
	d.MXHost = probe.Host
	d.SMTPCode = probe.Code
	d.Reason = probe.Reason

	catchAll := false
	if probe.Outcome == types.OutcomeValid {
		d.SMTPVerified = true
		catchAll = v.prober.DetectCatchAll(ctx, parsed.Domain, mx.Hosts[0])
		d.IsCatchAll = catchAll
	}

	status, quality := Classify(probe.Outcome, catchAll)
	return types.NewResult(email, status, quality, d), probe.Outcome != types.OutcomeThrottled
}

// probe waits for the domain's rate limit, then asks the exchangers.
func (v *Verifier) probe(ctx context.Context, domain string, hosts []string, recipient string) types.ProbeResult {
	waitStart := time.Now()
	err := v.limiter.Acquire(ctx, domain)
	metrics.ObserveRateLimitWait(time.Since(waitStart))
	if err != nil {
		outcome := types.OutcomeError
		if errors.Is(err, ratelimit.ErrWaitExceeded) {
			outcome = types.OutcomeThrottled
		}
		v.logger.Debug("rate limit not acquired", zap.String("domain", domain), zap.Error(err))
		return types.ProbeResult{Outcome: outcome, Reason: err.Error()}
	}
	return v.prober.Probe(ctx, hosts, recipient)
}
