package check_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/optimode/emailverify/types"
)

// fakeResolver answers from a fixed table keyed by "TYPE name".
type fakeResolver struct {
	mu      sync.Mutex
	records map[string][]types.Record
	errs    map[string]error
	calls   []string
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{records: map[string][]types.Record{}, errs: map[string]error{}}
}

func (r *fakeResolver) mx(domain string, hosts ...string) *fakeResolver {
	for i, h := range hosts {
		r.records["MX "+domain] = append(r.records["MX "+domain],
			types.Record{Type: types.RecordMX, Value: h, Preference: uint16(10 * (i + 1))})
	}
	return r
}

func (r *fakeResolver) addr(rt types.RecordType, domain, ip string) *fakeResolver {
	key := string(rt) + " " + domain
	r.records[key] = append(r.records[key], types.Record{Type: rt, Value: ip})
	return r
}

func (r *fakeResolver) fail(rt types.RecordType, domain string, err error) *fakeResolver {
	r.errs[string(rt)+" "+domain] = err
	return r
}

func (r *fakeResolver) Resolve(_ context.Context, name string, rt types.RecordType) ([]types.Record, error) {
	key := string(rt) + " " + name
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, key)

	if err, ok := r.errs[key]; ok {
		return nil, err
	}
	if recs, ok := r.records[key]; ok {
		return append([]types.Record(nil), recs...), nil
	}
	return nil, fmt.Errorf("%w: %s", types.ErrNotFound, key)
}

func (r *fakeResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

// fakeHost scripts one exchanger.
type fakeHost struct {
	openErr      error
	handshakeErr error
	senderCode   int // default 250
	rcptCode     func(addr string) int
	rcptErr      error
	panicOnRcpt  bool
}

// fakeTransport hands out scripted sessions and records what was opened.
type fakeTransport struct {
	mu     sync.Mutex
	hosts  map[string]fakeHost
	opened []string
	closed int
	rcpts  []string
}

func newFakeTransport(hosts map[string]fakeHost) *fakeTransport {
	return &fakeTransport{hosts: hosts}
}

func (t *fakeTransport) Open(_ context.Context, host, port string, _ time.Duration) (types.Session, error) {
	t.mu.Lock()
	t.opened = append(t.opened, net.JoinHostPort(host, port))
	t.mu.Unlock()

	h, ok := t.hosts[host]
	if !ok {
		return nil, fmt.Errorf("%w: %s: no route", types.ErrConnect, host)
	}
	if h.openErr != nil {
		return nil, h.openErr
	}
	return &fakeSession{t: t, h: h}, nil
}

func (t *fakeTransport) openedHosts() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.opened...)
}

type fakeSession struct {
	t *fakeTransport
	h fakeHost
}

func (s *fakeSession) Handshake() error { return s.h.handshakeErr }

func (s *fakeSession) DeclareSender(string) (types.Reply, error) {
	code := s.h.senderCode
	if code == 0 {
		code = 250
	}
	return types.Reply{Code: code, Text: "sender"}, nil
}

func (s *fakeSession) DeclareRecipient(addr string) (types.Reply, error) {
	s.t.mu.Lock()
	s.t.rcpts = append(s.t.rcpts, addr)
	s.t.mu.Unlock()

	if s.h.panicOnRcpt {
		panic("recipient handler exploded")
	}
	if s.h.rcptErr != nil {
		return types.Reply{}, s.h.rcptErr
	}
	code := 250
	if s.h.rcptCode != nil {
		code = s.h.rcptCode(addr)
	}
	return types.Reply{Code: code, Text: "rcpt"}, nil
}

func (s *fakeSession) Close() error {
	s.t.mu.Lock()
	s.t.closed++
	s.t.mu.Unlock()
	return nil
}

// acceptOnly accepts only the listed local parts.
func acceptOnly(locals ...string) func(string) int {
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

// mapCache is a minimal types.Cache.
type mapCache struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	v, ok := c.data[key]
	if !ok {
		return nil, types.ErrCacheMiss
	}
	return v, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *mapCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

var errBroken = errors.New("broken")
