package tokenstore

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/harvesthub/internal/common"
)

// backend pairs a Store with a way to let time pass for it.
type backend struct {
	name    string
	store   Store
	advance func(time.Duration)
}

func newBackends(t *testing.T) []backend {
	t.Helper()

	mr := miniredis.RunT(t)
	rs, err := NewRedisStore(context.Background(), RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rs.Close() })

	bs, err := NewBuntStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = bs.Close() })

	return []backend{
		{name: "redis", store: rs, advance: mr.FastForward},
		{name: "buntdb", store: bs, advance: time.Sleep},
	}
}

const (
	shortTTL = 200 * time.Millisecond
	pastTTL  = 400 * time.Millisecond
)

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()

	for _, b := range newBackends(t) {
		t.Run(b.name, func(t *testing.T) {
			require.NoError(t, b.store.Put(ctx, CSRFKey("10.0.0.1"), "tok-1", time.Minute))

			v, err := b.store.Get(ctx, CSRFKey("10.0.0.1"))
			require.NoError(t, err)
			assert.Equal(t, "tok-1", v)

			require.NoError(t, b.store.Put(ctx, CSRFKey("10.0.0.1"), "tok-2", time.Minute))
			v, err = b.store.Get(ctx, CSRFKey("10.0.0.1"))
			require.NoError(t, err)
			assert.Equal(t, "tok-2", v, "put replaces the previous value")

			_, err = b.store.Get(ctx, CSRFKey("10.0.0.2"))
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_ExpiredKeyIsAbsent(t *testing.T) {
	ctx := context.Background()

	for _, b := range newBackends(t) {
		t.Run(b.name, func(t *testing.T) {
			require.NoError(t, b.store.Put(ctx, "k", "v", shortTTL))
			b.advance(pastTTL)

			_, err := b.store.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_RejectsNonPositiveTTL(t *testing.T) {
	ctx := context.Background()

	for _, b := range newBackends(t) {
		t.Run(b.name, func(t *testing.T) {
			assert.ErrorIs(t, b.store.Put(ctx, "k", "v", 0), ErrInvalidTTL)
			_, err := b.store.IncrementWithExpiry(ctx, "c", -time.Second)
			assert.ErrorIs(t, err, ErrInvalidTTL)
		})
	}
}

func TestStore_IncrementWindowIsFixedFromFirstHit(t *testing.T) {
	ctx := context.Background()

	for _, b := range newBackends(t) {
		t.Run(b.name, func(t *testing.T) {
			key := RateLimitKey("10.0.0.1")

			for want := int64(1); want <= 3; want++ {
				n, err := b.store.IncrementWithExpiry(ctx, key, shortTTL)
				require.NoError(t, err)
				assert.Equal(t, want, n)
			}

			b.advance(shortTTL / 2)
			n, err := b.store.IncrementWithExpiry(ctx, key, shortTTL)
			require.NoError(t, err)
			assert.Equal(t, int64(4), n)

			// later hits must not extend the window
			b.advance(shortTTL/2 + 100*time.Millisecond)
			n, err = b.store.IncrementWithExpiry(ctx, key, shortTTL)
			require.NoError(t, err)
			assert.Equal(t, int64(1), n, "a new window starts after expiry")
		})
	}
}

func TestStore_ConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	const workers = 20

	for _, b := range newBackends(t) {
		t.Run(b.name, func(t *testing.T) {
			var (
				wg   sync.WaitGroup
				mu   sync.Mutex
				seen []int64
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					n, err := b.store.IncrementWithExpiry(ctx, "counter", time.Minute)
					assert.NoError(t, err)
					mu.Lock()
					seen = append(seen, n)
					mu.Unlock()
				}()
			}
			wg.Wait()

			sort.Slice(seen, func(i, j int) bool { return seen[i] < seen[j] })
			want := make([]int64, workers)
			for i := range want {
				want[i] = int64(i + 1)
			}
			assert.Equal(t, want, seen)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()

	for _, b := range newBackends(t) {
		t.Run(b.name, func(t *testing.T) {
			require.NoError(t, b.store.Put(ctx, TwoFactorKey("acc-1"), "SECRET", time.Hour))
			require.NoError(t, b.store.Delete(ctx, TwoFactorKey("acc-1")))

			_, err := b.store.Get(ctx, TwoFactorKey("acc-1"))
			assert.ErrorIs(t, err, ErrNotFound)

			assert.NoError(t, b.store.Delete(ctx, "never-written"))
		})
	}
}

func TestRedisStore_UnavailableIsInfrastructure(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	s, err := NewRedisStore(ctx, RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	defer s.Close()

	mr.SetError("ERR store unavailable")

	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, common.ErrInfrastructure)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = s.IncrementWithExpiry(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, common.ErrInfrastructure)

	assert.ErrorIs(t, s.Put(ctx, "k", "v", time.Minute), common.ErrInfrastructure)
	assert.ErrorIs(t, s.Ping(ctx), common.ErrInfrastructure)
}

func TestNewRedisStore_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisStore(ctx, RedisOptions{Addr: addr})
	assert.ErrorIs(t, err, common.ErrInfrastructure)
}

func TestBuntStore_ClosedIsInfrastructure(t *testing.T) {
	ctx := context.Background()

	s, err := NewBuntStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Ping(ctx), common.ErrInfrastructure)
	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, common.ErrInfrastructure)
	_, err = s.IncrementWithExpiry(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, common.ErrInfrastructure)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "csrf:1.2.3.4", CSRFKey("1.2.3.4"))
	assert.Equal(t, "rate-limit:1.2.3.4", RateLimitKey("1.2.3.4"))
	assert.Equal(t, "failed-attempts:1.2.3.4:a@b.com", FailedAttemptsKey("1.2.3.4", "a@b.com"))
	assert.Equal(t, "2fa:acc-1", TwoFactorKey("acc-1"))
}

func TestBuntStore_FileBacked(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "tokens.db")

	s, err := NewBuntStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, CSRFKey("10.0.0.1"), "tok", time.Minute))
	require.NoError(t, s.Close())

	s, err = NewBuntStore(path)
	require.NoError(t, err)
	defer s.Close()

	v, err := s.Get(ctx, CSRFKey("10.0.0.1"))
	require.NoError(t, err)
	assert.Equal(t, "tok", v)
}
