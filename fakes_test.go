package emailverify_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/optimode/emailverify/types"
)

// stubResolver answers from a fixed table keyed by "TYPE name".
type stubResolver struct {
	mu      sync.Mutex
	records map[string][]types.Record
	errs    map[string]error
	panics  map[string]bool
	calls   int
}

func newStubResolver() *stubResolver {
	return &stubResolver{
		records: map[string][]types.Record{},
		errs:    map[string]error{},
		panics:  map[string]bool{},
	}
}

func (r *stubResolver) withMX(domain string, hosts ...string) *stubResolver {
	for i, h := range hosts {
		r.records["MX "+domain] = append(r.records["MX "+domain],
			types.Record{Type: types.RecordMX, Value: h, Preference: uint16(10 * (i + 1))})
	}
	return r
}

func (r *stubResolver) withA(domain, ip string) *stubResolver {
	r.records["A "+domain] = append(r.records["A "+domain], types.Record{Type: types.RecordA, Value: ip})
	return r
}

func (r *stubResolver) Resolve(_ context.Context, name string, rt types.RecordType) ([]types.Record, error) {
	key := string(rt) + " " + name
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()

	if r.panics[name] {
		panic("resolver exploded for " + name)
	}
	if err, ok := r.errs[key]; ok {
		return nil, err
	}
	if recs, ok := r.records[key]; ok {
		return append([]types.Record(nil), recs...), nil
	}
	return nil, fmt.Errorf("%w: %s", types.ErrNotFound, key)
}

func (r *stubResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// stubTransport plays a mail server that accepts the recipients rcpt
// approves. It counts conversations and tracks their peak concurrency.
type stubTransport struct {
	rcpt    func(addr string) int
	hold    time.Duration
	opens   atomic.Int64
	active  atomic.Int64
	peak    atomic.Int64
	mu      sync.Mutex
	rcptLog []string
}

func (t *stubTransport) Open(_ context.Context, _, _ string, _ time.Duration) (types.Session, error) {
	t.opens.Add(1)
	n := t.active.Add(1)
	for {
		p := t.peak.Load()
		if n <= p || t.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return &stubSession{t: t}, nil
}

func (t *stubTransport) recipients() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.rcptLog...)
}

type stubSession struct {
	t      *stubTransport
	closed bool
}

func (s *stubSession) Handshake() error {
	if s.t.hold > 0 {
		time.Sleep(s.t.hold)
	}
	return nil
}

func (s *stubSession) DeclareSender(string) (types.Reply, error) {
	return types.Reply{Code: 250, Text: "OK"}, nil
}

func (s *stubSession) DeclareRecipient(addr string) (types.Reply, error) {
	s.t.mu.Lock()
	s.t.rcptLog = append(s.t.rcptLog, addr)
	s.t.mu.Unlock()

	code := 250
	if s.t.rcpt != nil {
		code = s.t.rcpt(addr)
	}
	return types.Reply{Code: code, Text: "reply"}, nil
}

func (s *stubSession) Close() error {
	if !s.closed {
		s.closed = true
		s.t.active.Add(-1)
	}
	return nil
}

// mailboxes accepts only the listed local parts.
func mailboxes(locals ...string) func(string) int {
	return func(addr string) int {
		local := addr[:strings.LastIndex(addr, "@")]
		for _, l := range locals {
			if l == local {
				return 250
			}
		}
		return 550
	}
}

// memCache is a minimal types.Cache.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, types.ErrCacheMiss
	}
	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}
