package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sitesage/webscan/internal/scan"
	memstore "github.com/sitesage/webscan/internal/storage/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestAdmitFiveThenRejectSixth(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1700000000, 0).UTC()}
	l := New(memstore.NewRateLimitStore(), clock, Config{MaxScans: 5, Window: time.Hour})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Admit(ctx, "example.com"), "admission %d should succeed", i+1)
		clock.advance(time.Minute)
	}

	err := l.Admit(ctx, "example.com")
	require.Error(t, err)
	require.ErrorIs(t, err, scan.ErrRateLimitExceeded)
}

func TestAdmitResetsAfterWindowElapses(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1700000000, 0).UTC()}
	store := memstore.NewRateLimitStore()
	l := New(store, clock, Config{MaxScans: 5, Window: time.Hour})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, l.Admit(ctx, "example.com"))
	}
	require.ErrorIs(t, l.Admit(ctx, "example.com"), scan.ErrRateLimitExceeded)

	clock.advance(61 * time.Minute)
	require.NoError(t, l.Admit(ctx, "example.com"))

	w, err := store.GetOrCreateWindow(ctx, "example.com", clock.Now())
	require.NoError(t, err)
	require.Equal(t, 1, w.Count)
	require.Equal(t, clock.Now(), w.WindowStart)
}

func TestAdmitIsPerDomain(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1700000000, 0).UTC()}
	l := New(memstore.NewRateLimitStore(), clock, Config{MaxScans: 1, Window: time.Hour})
	ctx := context.Background()

	require.NoError(t, l.Admit(ctx, "a.com"))
	require.NoError(t, l.Admit(ctx, "b.com"))
	require.ErrorIs(t, l.Admit(ctx, "a.com"), scan.ErrRateLimitExceeded)
}

func TestConcurrentAdmissionsNeverOverAdmit(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1700000000, 0).UTC()}
	l := New(memstore.NewRateLimitStore(), clock, Config{MaxScans: 5, Window: time.Hour})

	const attempts = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Admit(context.Background(), "example.com"); err == nil {
				mu.Lock()
				admitted++
				mu.Unlock()
			} else if !errors.Is(err, scan.ErrRateLimitExceeded) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 5, admitted)
}

func TestDomainOf(t *testing.T) {
	t.Parallel()

	domain, err := DomainOf("https://Example.COM/path?q=1")
	require.NoError(t, err)
	require.Equal(t, "example.com", domain)

	_, err = DomainOf("not a url ://")
	require.Error(t, err)

	_, err = DomainOf("/relative/only")
	require.Error(t, err)
}
