package check

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"

	"github.com/optimode/emailverify/internal/metrics"
	"github.com/optimode/emailverify/types"
)

// ProbeConfig is the SMTP prober configuration.
type ProbeConfig struct {
	MailFrom      string
	Port          string
	Timeout       time.Duration
	MaxExchangers int
	AttemptDelay  time.Duration
}

// Prober asks mail exchangers whether they accept a recipient, stopping
// before any message is sent.
type Prober struct {
	cfg       ProbeConfig
	transport types.Transport
	logger    *zap.Logger
}

// NewProber creates a Prober. A nil logger disables logging.
func NewProber(cfg ProbeConfig, transport types.Transport, logger *zap.Logger) *Prober {
	if cfg.Port == "" {
		cfg.Port = "25"
	}
	if cfg.MaxExchangers <= 0 {
		cfg.MaxExchangers = 2
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{cfg: cfg, transport: transport, logger: logger}
}

// Probe tries the first exchangers in order until one gives a definite
// answer for recipient.
func (p *Prober) Probe(ctx context.Context, exchangers []string, recipient string) types.ProbeResult {
	res := p.probe(ctx, exchangers, recipient)
	metrics.RecordProbe(string(res.Outcome))
	return res
}

func (p *Prober) probe(ctx context.Context, exchangers []string, recipient string) types.ProbeResult {
	if len(exchangers) == 0 {
		return types.ProbeResult{Outcome: types.OutcomeNoMX, Reason: "no mail exchangers"}
	}
	if len(exchangers) > p.cfg.MaxExchangers {
		exchangers = exchangers[:p.cfg.MaxExchangers]
	}

	failures := make([]string, 0, len(exchangers))
	for i, host := range exchangers {
		if i > 0 && p.cfg.AttemptDelay > 0 {
			timer := time.NewTimer(p.cfg.AttemptDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				failures = append(failures, ctx.Err().Error())
				return allFailed(failures)
			case <-timer.C:
			}
		}

		res := p.converse(ctx, host, recipient)
		p.logger.Debug("smtp probe",
			zap.String("host", host),
			zap.String("recipient", recipient),
			zap.String("outcome", string(res.Outcome)),
			zap.Int("code", res.Code),
		)
		if res.Outcome == types.OutcomeValid || res.Outcome == types.OutcomeInvalid {
			return res
		}
		failures = append(failures, fmt.Sprintf("%s: %s", host, res.Reason))
	}
	return allFailed(failures)
}

func allFailed(failures []string) types.ProbeResult {
	return types.ProbeResult{
		Outcome: types.OutcomeUnknown,
		Reason:  "all exchangers failed: " + strings.Join(failures, "; "),
	}
}

// DetectCatchAll reports whether exchanger accepts a random recipient at
// domain. Failures count as not catch-all.
func (p *Prober) DetectCatchAll(ctx context.Context, domain, exchanger string) bool {
	res := p.converse(ctx, exchanger, randomLocal()+"@"+domain)
	return res.Outcome == types.OutcomeValid
}

const localAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomLocal() string {
	b := make([]byte, 15)
	for i := range b {
		b[i] = localAlphabet[rand.IntN(len(localAlphabet))]
	}
	return string(b)
}

// converse runs one conversation, turning a panic into an error outcome.
func (p *Prober) converse(ctx context.Context, host, recipient string) types.ProbeResult {
	var res types.ProbeResult
	if r := panics.Try(func() { res = p.conversation(ctx, host, recipient) }); r != nil {
		p.logger.Error("smtp conversation panicked", zap.String("host", host), zap.String("panic", r.String()))
		return types.ProbeResult{
			Outcome: types.OutcomeError,
			Host:    host,
			Reason:  fmt.Sprintf("panic: %v", r.Value),
		}
	}
	return res
}

func (p *Prober) conversation(ctx context.Context, host, recipient string) types.ProbeResult {
	fail := func(err error) types.ProbeResult {
		return types.ProbeResult{Outcome: types.OutcomeError, Host: host, Reason: err.Error()}
	}

	sess, err := p.transport.Open(ctx, host, p.cfg.Port, p.cfg.Timeout)
	if err != nil {
		return fail(err)
	}
	defer func() { _ = sess.Close() }()

	if err := sess.Handshake(); err != nil {
		return fail(err)
	}

	reply, err := sess.DeclareSender(p.cfg.MailFrom)
	if err != nil {
		return fail(err)
	}
	if reply.Code != 250 {
		return types.ProbeResult{
			Outcome: types.OutcomeError,
			Host:    host,
			Code:    reply.Code,
			Message: reply.Text,
			Reason:  fmt.Sprintf("sender rejected: %d %s", reply.Code, reply.Text),
		}
	}

	reply, err = sess.DeclareRecipient(recipient)
	if err != nil {
		return fail(err)
	}

	res := types.ProbeResult{Host: host, Code: reply.Code, Message: reply.Text}
	switch reply.Code {
	case 250:
		res.Outcome = types.OutcomeValid
	case 550:
		res.Outcome = types.OutcomeInvalid
	default:
		res.Outcome = types.OutcomeUnknown
		res.Reason = fmt.Sprintf("recipient reply %d %s", reply.Code, reply.Text)
	}
	return res
}
