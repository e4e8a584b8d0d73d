package types

import (
	"context"
	"errors"
	"time"
)

// Errors returned by capability implementations. Implementations wrap them
// with context so callers can match with errors.Is.
var (
	// ErrNotFound means the name does not exist or has no records of the
	// requested type.
	ErrNotFound = errors.New("emailverify: dns records not found")
	// ErrTimeout means no DNS server answered in time.
	ErrTimeout = errors.New("emailverify: dns query timed out")
	// ErrServerFailure means the DNS servers answered with a failure.
	ErrServerFailure = errors.New("emailverify: dns server failure")
	// ErrConnect means an SMTP conversation could not be opened.
	ErrConnect = errors.New("emailverify: smtp connect failed")
	// ErrCacheMiss means the key is absent or expired.
	ErrCacheMiss = errors.New("emailverify: cache miss")
)

// Resolver resolves DNS records for a name.
type Resolver interface {
	Resolve(ctx context.Context, name string, rt RecordType) ([]Record, error)
}

// Transport opens SMTP conversations with mail hosts.
type Transport interface {
	Open(ctx context.Context, host, port string, timeout time.Duration) (Session, error)
}

// Session is one SMTP conversation. Close must always be called and
// terminates the conversation cleanly when possible.
type Session interface {
	Handshake() error
	DeclareSender(address string) (Reply, error)
	DeclareRecipient(address string) (Reply, error)
	Close() error
}

// Cache stores JSON payloads with a TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
