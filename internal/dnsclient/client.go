// Package dnsclient resolves MX, A and AAAA records against an explicit
// list of DNS servers. Concurrent identical queries share one exchange.
package dnsclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/miekg/dns"
	"golang.org/x/sync/singleflight"

	"github.com/optimode/emailverify/types"
)

// DefaultServers are used when no servers are configured and the system
// resolver configuration cannot be read.
var DefaultServers = []string{"8.8.8.8", "1.1.1.1", "8.8.4.4"}

// Config configures a Client.
type Config struct {
	// Servers are tried in order, as host or host:port. Default: /etc/resolv.conf, then DefaultServers
	Servers []string
	// Timeout is the per-server exchange timeout. Default: 5s
	Timeout time.Duration
}

// Client implements types.Resolver.
type Client struct {
	servers []string
	udp     *dns.Client
	tcp     *dns.Client
	group   singleflight.Group
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	servers := cfg.Servers
	if len(servers) == 0 {
		servers = systemServers()
	}
	addrs := make([]string, 0, len(servers))
	for _, s := range servers {
		addrs = append(addrs, withPort(s))
	}
	return &Client{
		servers: addrs,
		udp:     &dns.Client{Net: "udp", Timeout: cfg.Timeout},
		tcp:     &dns.Client{Net: "tcp", Timeout: cfg.Timeout},
	}
}

// Servers returns the server addresses in query order.
func (c *Client) Servers() []string {
	return append([]string(nil), c.servers...)
}

// Resolve returns the records of type rt for name. MX records come back
// sorted by preference with the trailing dot removed.
func (c *Client) Resolve(ctx context.Context, name string, rt types.RecordType) ([]types.Record, error) {
	qtype, ok := qtypes[rt]
	if !ok {
		return nil, fmt.Errorf("dnsclient: unsupported record type %q", rt)
	}
	name = strings.ToLower(strings.TrimSuffix(name, "."))

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", types.ErrTimeout, name, err)
	}

	// The shared exchange outlives any single caller and is bounded by the
	// per-server timeouts. Each caller stops waiting when its own ctx ends.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(string(rt)+" "+name, func() (any, error) {
		return c.exchange(shared, name, qtype)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", types.ErrTimeout, name, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// Callers get their own copy, the shared slice may be handed to others.
		return append([]types.Record(nil), res.Val.([]types.Record)...), nil
	}
}

var qtypes = map[types.RecordType]uint16{
	types.RecordMX:   dns.TypeMX,
	types.RecordA:    dns.TypeA,
	types.RecordAAAA: dns.TypeAAAA,
}

func (c *Client) exchange(ctx context.Context, name string, qtype uint16) ([]types.Record, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), qtype)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range c.servers {
		resp, _, err := c.udp.ExchangeContext(ctx, msg, server)
		if err == nil && resp.Truncated {
			resp, _, err = c.tcp.ExchangeContext(ctx, msg, server)
		}
		if err != nil {
			lastErr = classify(err, name, server)
			continue
		}

		switch resp.Rcode {
		case dns.RcodeSuccess:
			records := collect(resp, qtype)
			if len(records) == 0 {
				return nil, fmt.Errorf("%w: no %s records for %s", types.ErrNotFound, dns.TypeToString[qtype], name)
			}
			return records, nil
		case dns.RcodeNameError:
			return nil, fmt.Errorf("%w: %s does not exist", types.ErrNotFound, name)
		default:
			lastErr = fmt.Errorf("%w: %s answered %s for %s", types.ErrServerFailure,
				server, dns.RcodeToString[resp.Rcode], name)
		}
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no dns servers configured", types.ErrServerFailure)
	}
	return nil, lastErr
}

func classify(err error, name, server string) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s via %s", types.ErrTimeout, name, server)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s via %s: %v", types.ErrTimeout, name, server, err)
	}
	return fmt.Errorf("%w: %s via %s: %v", types.ErrServerFailure, name, server, err)
}

func collect(resp *dns.Msg, qtype uint16) []types.Record {
	var out []types.Record
	for _, rr := range resp.Answer {
		switch v := rr.(type) {
		case *dns.MX:
			if qtype == dns.TypeMX {
				out = append(out, types.Record{
					Type:       types.RecordMX,
					Value:      strings.TrimSuffix(v.Mx, "."),
					Preference: v.Preference,
				})
			}
		case *dns.A:
			if qtype == dns.TypeA {
				out = append(out, types.Record{Type: types.RecordA, Value: v.A.String()})
			}
		case *dns.AAAA:
			if qtype == dns.TypeAAAA {
				out = append(out, types.Record{Type: types.RecordAAAA, Value: v.AAAA.String()})
			}
		}
	}
	if qtype == dns.TypeMX {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Preference < out[j].Preference
		})
	}
	return out
}

func systemServers() []string {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return DefaultServers
	}
	out := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		out = append(out, net.JoinHostPort(s, conf.Port))
	}
	return out
}

func withPort(server string) string {
	if _, _, err := net.SplitHostPort(server); err == nil {
		return server
	}
	return net.JoinHostPort(strings.Trim(server, "[]"), "53")
}
