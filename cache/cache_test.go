package cache_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/optimode/emailverify/cache"
	"github.com/optimode/emailverify/types"
)

// exerciseStore runs the behaviour every Store must share. expire makes
// entries written with a 50ms TTL visibly expired.
func exerciseStore(t *testing.T, s types.Cache, expire func()) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrCacheMiss)

	require.NoError(t, s.Set(ctx, "email_verify:a@example.com", []byte(`{"status":"valid"}`), time.Hour))
	got, err := s.Get(ctx, "email_verify:a@example.com")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"valid"}`, string(got))

	require.NoError(t, s.Set(ctx, "email_verify:a@example.com", []byte(`{"status":"invalid"}`), time.Hour))
	got, err = s.Get(ctx, "email_verify:a@example.com")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"invalid"}`, string(got), "set overwrites")

	require.NoError(t, s.Delete(ctx, "email_verify:a@example.com"))
	_, err = s.Get(ctx, "email_verify:a@example.com")
	assert.ErrorIs(t, err, types.ErrCacheMiss)
	assert.NoError(t, s.Delete(ctx, "never-set"))

	require.NoError(t, s.Set(ctx, "mx:example.com", []byte(`{"mx":["mx1.example.com"]}`), 50*time.Millisecond))
	_, err = s.Get(ctx, "mx:example.com")
	require.NoError(t, err)
	expire()
	_, err = s.Get(ctx, "mx:example.com")
	assert.ErrorIs(t, err, types.ErrCacheMiss)
}

func sleepPastTTL() { time.Sleep(80 * time.Millisecond) }

func TestMemory(t *testing.T) {
	m := cache.NewMemory(zap.NewNop(), time.Hour)
	t.Cleanup(func() { _ = m.Close() })
	exerciseStore(t, m, sleepPastTTL)
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	m := cache.NewMemory(zap.NewNop(), 0)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("abc"), time.Hour))
	b, err := m.Get(ctx, "k")
	require.NoError(t, err)
	b[0] = 'x'

	b, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(b))
}

func TestMemory_Cleanup(t *testing.T) {
	m := cache.NewMemory(zap.NewNop(), 0)
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "short", []byte("1"), 10*time.Millisecond))
	require.NoError(t, m.Set(ctx, "long", []byte("2"), time.Hour))
	time.Sleep(30 * time.Millisecond)

	assert.Equal(t, 1, m.Cleanup())
	assert.Equal(t, 1, m.Len())
	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	r, err := cache.NewRedis(cache.RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	exerciseStore(t, r, func() { mr.FastForward(time.Second) })
}

func TestRedis_StoresTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	r, err := cache.NewRedis(cache.RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	require.NoError(t, r.Set(context.Background(), "mx:example.com", []byte("{}"), 24*time.Hour))
	assert.Equal(t, 24*time.Hour, mr.TTL("mx:example.com"))
}

func TestRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := cache.NewRedis(cache.RedisOptions{Addr: addr})
	assert.Error(t, err)
}

func TestSQLite(t *testing.T) {
	s, err := cache.NewSQLite(filepath.Join(t.TempDir(), "cache.db"), zap.NewNop(), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	exerciseStore(t, s, sleepPastTTL)
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	s, err := cache.NewSQLite(path, zap.NewNop(), 0)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Hour))
	require.NoError(t, s.Set(ctx, "old", []byte("v"), time.Millisecond))
	require.NoError(t, s.Close())

	s, err = cache.NewSQLite(path, zap.NewNop(), 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))

	time.Sleep(5 * time.Millisecond)
	n, err := s.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestNoop(t *testing.T) {
	ctx := context.Background()
	var n cache.Noop
	require.NoError(t, n.Set(ctx, "k", []byte("v"), time.Hour))
	_, err := n.Get(ctx, "k")
	assert.ErrorIs(t, err, types.ErrCacheMiss)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     cache.Config
		wantErr bool
	}{
		{"default is memory", cache.Config{}, false},
		{"memory", cache.Config{Type: "memory"}, false},
		{"none", cache.Config{Type: "none"}, false},
		{"sqlite", cache.Config{Type: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "sub", "c.db")}, false},
		{"sqlite without path", cache.Config{Type: "sqlite"}, true},
		{"unknown", cache.Config{Type: "memcached"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := cache.New(tt.cfg, zap.NewNop())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NoError(t, s.Close())
		})
	}

	mr := miniredis.RunT(t)
	s, err := cache.New(cache.Config{Type: "redis", RedisAddr: mr.Addr()}, nil)
	require.NoError(t, err)
	assert.NoError(t, s.Close())
}
