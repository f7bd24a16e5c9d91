package oauth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func staticRefresh(calls *int32, token string, expiresIn int64) RefreshFunc {
	return func(ctx context.Context) (*TokenResponse, error) {
		atomic.AddInt32(calls, 1)
		return &TokenResponse{AccessToken: token, ExpiresIn: expiresIn}, nil
	}
}

func TestTokenCache_Hit(t *testing.T) {
	cache := NewTokenCache()
	var calls int32

	for i := 0; i < 3; i++ {
		token, err := cache.GetOrRefresh(context.Background(), "key1", staticRefresh(&calls, "tok", 3600))
		if err != nil {
			t.Fatalf("GetOrRefresh() failed: %v", err)
		}
		if token != "tok" {
			t.Errorf("Expected token 'tok', got '%s'", token)
		}
	}

	if calls != 1 {
		t.Errorf("Expected exactly one refresh, got %d", calls)
	}
}

func TestTokenCache_HugeLifetimeIsReused(t *testing.T) {
	cache := NewTokenCache()
	var calls int32

	for i := 0; i < 3; i++ {
		if _, err := cache.GetOrRefresh(context.Background(), "key1", staticRefresh(&calls, "tok", 10000000000)); err != nil {
			t.Fatalf("GetOrRefresh() failed: %v", err)
		}
	}

	if calls != 1 {
		t.Errorf("Expected exactly one refresh, got %d", calls)
	}
}

func TestTokenCache_ServedEntryCarriesExpiry(t *testing.T) {
	clock := newFakeClock()
	cache := NewTokenCache(WithClock(clock.Now))
	var calls int32

	first, err := cache.getOrRefresh(context.Background(), "key1", staticRefresh(&calls, "tok-1", 3600))
	if err != nil {
		t.Fatalf("getOrRefresh() failed: %v", err)
	}
	if want := clock.Now().Add(3300 * time.Second); first.value != "tok-1" || !first.expiresAt.Equal(want) {
		t.Errorf("Expected tok-1 expiring at %v, got %s at %v", want, first.value, first.expiresAt)
	}

	// Past the first expiry: the next refresh replaces the entry, and the
	// returned expiry belongs to the returned token.
	clock.Set(first.expiresAt)
	second, err := cache.getOrRefresh(context.Background(), "key1", staticRefresh(&calls, "tok-2", 600))
	if err != nil {
		t.Fatalf("getOrRefresh() failed: %v", err)
	}
	if want := first.expiresAt.Add(300 * time.Second); second.value != "tok-2" || !second.expiresAt.Equal(want) {
		t.Errorf("Expected tok-2 expiring at %v, got %s at %v", want, second.value, second.expiresAt)
	}
	if first.value != "tok-1" {
		t.Errorf("Expected the first entry to be left unchanged, got %+v", first)
	}
}

func TestTokenCache_RefreshIDReachesRefreshFunc(t *testing.T) {
	var buf bytes.Buffer
	cache := NewTokenCache(WithLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))))

	var seen string
	_, err := cache.GetOrRefresh(context.Background(), "key1", func(ctx context.Context) (*TokenResponse, error) {
		id, ok := RefreshIDFromContext(ctx)
		if !ok {
			t.Error("Expected a refresh id in the refresh context")
		}
		seen = id
		return &TokenResponse{AccessToken: "tok", ExpiresIn: 3600}, nil
	})
	if err != nil {
		t.Fatalf("GetOrRefresh() failed: %v", err)
	}

	if seen == "" || !strings.Contains(buf.String(), "refresh_id="+seen) {
		t.Errorf("Expected cache log to carry refresh_id %q, got %q", seen, buf.String())
	}
}

func TestTokenCache_BufferArithmetic(t *testing.T) {
	clock := newFakeClock()
	fetchedAt := clock.Now()
	cache := NewTokenCache(WithClock(clock.Now))
	var calls int32

	if _, err := cache.GetOrRefresh(context.Background(), "key1", staticRefresh(&calls, "first", 3600)); err != nil {
		t.Fatalf("GetOrRefresh() failed: %v", err)
	}

	// Valid up to, but excluding, T+3300.
	clock.Set(fetchedAt.Add(3300*time.Second - time.Nanosecond))
	token, err := cache.GetOrRefresh(context.Background(), "key1", staticRefresh(&calls, "second", 3600))
	if err != nil {
		t.Fatalf("GetOrRefresh() failed: %v", err)
	}
	if token != "first" || calls != 1 {
		t.Errorf("Expected cached token just before T+3300, got '%s' after %d refreshes", token, calls)
	}

	clock.Set(fetchedAt.Add(3300 * time.Second))
	token, err = cache.GetOrRefresh(context.Background(), "key1", staticRefresh(&calls, "second", 3600))
	if err != nil {
		t.Fatalf("GetOrRefresh() failed: %v", err)
	}
	if token != "second" || calls != 2 {
		t.Errorf("Expected refresh at exactly T+3300, got '%s' after %d refreshes", token, calls)
	}
}

func TestTokenCache_LifetimeWithinBufferNotReused(t *testing.T) {
	tests := []struct {
		name      string
		expiresIn int64
	}{
		{name: "one second", expiresIn: 1},
		{name: "equal to buffer", expiresIn: 300},
		{name: "zero", expiresIn: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := NewTokenCache()
			var calls int32

			for i := 0; i < 2; i++ {
				token, err := cache.GetOrRefresh(context.Background(), "key1", staticRefresh(&calls, "short", tt.expiresIn))
				if err != nil {
					t.Fatalf("GetOrRefresh() failed: %v", err)
				}
				// The fetching call still receives its token.
				if token != "short" {
					t.Errorf("Expected token 'short', got '%s'", token)
				}
			}

			if calls != 2 {
				t.Errorf("Expected a refresh on every call, got %d", calls)
			}
		})
	}
}

func TestTokenCache_ExpiresAt(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		lifetime time.Duration
		want     time.Time
	}{
		{lifetime: time.Hour, want: base.Add(55 * time.Minute)},
		{lifetime: 301 * time.Second, want: base.Add(time.Second)},
		{lifetime: 300 * time.Second, want: base},
		{lifetime: time.Second, want: base},
		{lifetime: 0, want: base},
	}

	for _, tt := range tests {
		if got := expiresAt(base, tt.lifetime, DefaultExpiryBuffer); !got.Equal(tt.want) {
			t.Errorf("expiresAt(%v) = %v, want %v", tt.lifetime, got, tt.want)
		}
	}
}

func TestTokenCache_CustomBuffer(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	cache := NewTokenCache(WithClock(clock.Now), WithExpiryBuffer(10*time.Second))
	var calls int32

	cache.GetOrRefresh(context.Background(), "key1", staticRefresh(&calls, "tok", 60))

	clock.Set(start.Add(49 * time.Second))
	cache.GetOrRefresh(context.Background(), "key1", staticRefresh(&calls, "tok", 60))
	if calls != 1 {
		t.Errorf("Expected cached token within custom buffer, got %d refreshes", calls)
	}

	clock.Set(start.Add(50 * time.Second))
	cache.GetOrRefresh(context.Background(), "key1", staticRefresh(&calls, "tok", 60))
	if calls != 2 {
		t.Errorf("Expected refresh at lifetime minus buffer, got %d refreshes", calls)
	}
}

func TestTokenCache_RefreshCollapsing(t *testing.T) {
	const callers = 20

	cache := NewTokenCache()
	release := make(chan struct{})
	var calls int32
	var started sync.WaitGroup
	started.Add(callers)

	refresh := func(ctx context.Context) (*TokenResponse, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &TokenResponse{AccessToken: "shared", ExpiresIn: 3600}, nil
	}

	results := make([]string, callers)
	errs := make([]error, callers)
	var done sync.WaitGroup
	for i := 0; i < callers; i++ {
		done.Add(1)
		go func(i int) {
			defer done.Done()
			started.Done()
			results[i], errs[i] = cache.GetOrRefresh(context.Background(), "key1", refresh)
		}(i)
	}

	started.Wait()
	// Give every goroutine time to join the in-flight refresh.
	time.Sleep(50 * time.Millisecond)
	close(release)
	done.Wait()

	if calls != 1 {
		t.Errorf("Expected exactly one refresh, got %d", calls)
	}

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Errorf("Caller %d failed: %v", i, errs[i])
		}
		if results[i] != "shared" {
			t.Errorf("Caller %d got '%s', want 'shared'", i, results[i])
		}
	}
}

func TestTokenCache_FailurePropagatesToWaiters(t *testing.T) {
	const callers = 10

	cache := NewTokenCache()
	release := make(chan struct{})
	refreshErr := errors.New("upstream unavailable")
	var calls int32
	var started sync.WaitGroup
	started.Add(callers)

	refresh := func(ctx context.Context) (*TokenResponse, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return nil, refreshErr
	}

	errs := make([]error, callers)
	var done sync.WaitGroup
	for i := 0; i < callers; i++ {
		done.Add(1)
		go func(i int) {
			defer done.Done()
			started.Done()
			_, errs[i] = cache.GetOrRefresh(context.Background(), "key1", refresh)
		}(i)
	}

	started.Wait()
	time.Sleep(50 * time.Millisecond)
	close(release)
	done.Wait()

	if calls != 1 {
		t.Errorf("Expected exactly one refresh, got %d", calls)
	}

	for i, err := range errs {
		if !errors.Is(err, refreshErr) {
			t.Errorf("Caller %d: expected refresh error, got %v", i, err)
		}
	}

	if cache.Len() != 0 {
		t.Errorf("Expected failed refresh to leave cache empty, got %d entries", cache.Len())
	}
}

func TestTokenCache_NoNegativeCaching(t *testing.T) {
	cache := NewTokenCache()
	var calls int32

	failing := func(ctx context.Context) (*TokenResponse, error) {
		atomic.AddInt32(&calls, 1)
		return nil, &TokenRequestError{StatusCode: 401}
	}

	for i := 0; i < 2; i++ {
		if _, err := cache.GetOrRefresh(context.Background(), "key1", failing); !errors.Is(err, ErrTokenRequestFailed) {
			t.Fatalf("Expected ErrTokenRequestFailed, got %v", err)
		}
	}

	if calls != 2 {
		t.Errorf("Expected a new attempt after failure, got %d refreshes", calls)
	}

	token, err := cache.GetOrRefresh(context.Background(), "key1", staticRefresh(&calls, "recovered", 3600))
	if err != nil || token != "recovered" {
		t.Errorf("Expected recovery after failure, got '%s', %v", token, err)
	}
}

func TestTokenCache_FailureKeepsPreviousEntry(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	cache := NewTokenCache(WithClock(clock.Now))
	var calls int32

	cache.GetOrRefresh(context.Background(), "key1", staticRefresh(&calls, "old", 3600))

	clock.Set(start.Add(time.Hour))
	_, err := cache.GetOrRefresh(context.Background(), "key1", func(ctx context.Context) (*TokenResponse, error) {
		return nil, ErrMalformedResponse
	})
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("Expected ErrMalformedResponse, got %v", err)
	}

	// The expired entry must not resurface after the failed refresh.
	token, err := cache.GetOrRefresh(context.Background(), "key1", staticRefresh(&calls, "new", 3600))
	if err != nil || token != "new" {
		t.Errorf("Expected 'new', got '%s', %v", token, err)
	}
}

func TestTokenCache_IndependentKeys(t *testing.T) {
	cache := NewTokenCache()
	releaseA := make(chan struct{})
	enteredA := make(chan struct{})

	go func() {
		cache.GetOrRefresh(context.Background(), "keyA", func(ctx context.Context) (*TokenResponse, error) {
			close(enteredA)
			<-releaseA
			return &TokenResponse{AccessToken: "a", ExpiresIn: 3600}, nil
		})
	}()
	<-enteredA
	defer close(releaseA)

	done := make(chan string, 1)
	go func() {
		var calls int32
		token, _ := cache.GetOrRefresh(context.Background(), "keyB", staticRefresh(&calls, "b", 3600))
		done <- token
	}()

	select {
	case token := <-done:
		if token != "b" {
			t.Errorf("Expected token 'b', got '%s'", token)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Refresh for keyB blocked behind keyA")
	}
}

func TestTokenCache_CallerCancellation(t *testing.T) {
	cache := NewTokenCache()
	release := make(chan struct{})
	entered := make(chan struct{})
	var refreshCtxErr atomic.Value

	refresh := func(ctx context.Context) (*TokenResponse, error) {
		close(entered)
		<-release
		if err := ctx.Err(); err != nil {
			refreshCtxErr.Store(err)
		}
		return &TokenResponse{AccessToken: "tok", ExpiresIn: 3600}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.GetOrRefresh(ctx, "key1", refresh)
		firstErr <- err
	}()
	<-entered

	second := make(chan string, 1)
	go func() {
		token, _ := cache.GetOrRefresh(context.Background(), "key1", refresh)
		second <- token
	}()

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled for the cancelled caller, got %v", err)
	}

	close(release)
	if token := <-second; token != "tok" {
		t.Errorf("Expected other caller to receive 'tok', got '%s'", token)
	}

	if v := refreshCtxErr.Load(); v != nil {
		t.Errorf("Expected refresh context to survive caller cancellation, got %v", v)
	}
}

func TestTokenCache_Observer(t *testing.T) {
	obs := &recordingObserver{}
	cache := NewTokenCache(WithObserver(obs))
	var calls int32

	cache.GetOrRefresh(context.Background(), "key1", staticRefresh(&calls, "tok", 3600))
	cache.GetOrRefresh(context.Background(), "key1", staticRefresh(&calls, "tok", 3600))

	if obs.hits != 1 || obs.misses != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d hits and %d misses", obs.hits, obs.misses)
	}
}

func TestTokenCache_Clear(t *testing.T) {
	cache := NewTokenCache()
	var calls int32

	cache.GetOrRefresh(context.Background(), "key1", staticRefresh(&calls, "tok", 3600))
	cache.GetOrRefresh(context.Background(), "key2", staticRefresh(&calls, "tok", 3600))

	if cache.Len() != 2 {
		t.Fatalf("Expected 2 entries, got %d", cache.Len())
	}

	cache.Clear()

	if cache.Len() != 0 {
		t.Errorf("Expected empty cache after Clear, got %d", cache.Len())
	}
}

func TestDefaultTokenCache_Shared(t *testing.T) {
	if DefaultTokenCache() != DefaultTokenCache() {
		t.Error("Expected DefaultTokenCache to return the same instance")
	}
}
