package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hustbill/nodejs-api-server-sub001/internal/config"
	"github.com/hustbill/nodejs-api-server-sub001/internal/models"
)

func TestLoaderLoadsOnceUnderConcurrency(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	loader := NewLoader("currencies", func(ctx context.Context) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []string{"USD", "EUR"}, nil
	})

	var wg sync.WaitGroup
	results := make([][]string, 8)
	for i := range results {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			value, err := loader.Get(context.Background())
			if err != nil {
				t.Errorf("get failed: %v", err)
				return
			}
			results[idx] = value
		}(i)
	}
	// 等待至少一个调用进入加载
	deadline := time.Now().Add(time.Second)
	for loader.State() != LoaderLoading && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected single fetch, got %d", got)
	}
	for _, value := range results {
		if len(value) != 2 || value[0] != "USD" {
			t.Fatalf("unexpected value: %v", value)
		}
	}
	if loader.State() != LoaderReady {
		t.Fatalf("expected ready, got %s", loader.State())
	}
}

func TestLoaderRetriesAfterFailure(t *testing.T) {
	var calls int32
	loader := NewLoader("calculators", func(ctx context.Context) (int, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return 0, errors.New("db down")
		}
		return 42, nil
	})

	if _, err := loader.Get(context.Background()); err == nil {
		t.Fatalf("expected first load to fail")
	}
	if loader.State() != LoaderEmpty {
		t.Fatalf("expected empty after failure, got %s", loader.State())
	}
	value, err := loader.Get(context.Background())
	if err != nil || value != 42 {
		t.Fatalf("expected retry success, got %v %v", value, err)
	}
	loader.Reset()
	if loader.State() != LoaderEmpty {
		t.Fatalf("expected empty after reset")
	}
}

func TestLoaderHonorsCallerCancel(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	loader := NewLoader("slow", func(ctx context.Context) (int, error) {
		<-release
		return 1, nil
	})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := loader.Get(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestDisabledRedisIsNoop(t *testing.T) {
	ctx := context.Background()
	if Enabled() {
		t.Skip("redis client initialised by another test")
	}
	var dest map[string]string
	hit, err := GetJSON(ctx, "any", &dest)
	if err != nil || hit {
		t.Fatalf("expected miss without redis, got %v %v", hit, err)
	}
	if err := SetUserAuthState(ctx, BuildUserAuthState(&models.User{ID: 7, Status: "active"})); err != nil {
		t.Fatalf("set auth state: %v", err)
	}
	if err := DelUserAuthState(ctx, 7); err != nil {
		t.Fatalf("del auth state: %v", err)
	}
	n, err := InvalidateUserCatalogs(ctx, 7)
	if err != nil || n != 0 {
		t.Fatalf("expected noop invalidation, got %d %v", n, err)
	}
	if got := Status(ctx); got != StatusDisabled {
		t.Fatalf("expected disabled status, got %s", got)
	}
	if err := Close(); err != nil {
		t.Fatalf("close without redis: %v", err)
	}
}

func TestBuildRedisOptions(t *testing.T) {
	if opts, _ := buildRedisOptions(nil); opts != nil {
		t.Fatalf("nil config should disable redis")
	}
	if opts, _ := buildRedisOptions(&config.RedisConfig{Enabled: false, Host: "redis"}); opts != nil {
		t.Fatalf("disabled config should not build options")
	}
	opts, prefix := buildRedisOptions(&config.RedisConfig{Enabled: true, DB: 2})
	if opts.Addr != "127.0.0.1:6379" || opts.DB != 2 || prefix != "oc" {
		t.Fatalf("unexpected defaults: addr=%s db=%d prefix=%s", opts.Addr, opts.DB, prefix)
	}
	opts, prefix = buildRedisOptions(&config.RedisConfig{Enabled: true, Host: " cache ", Port: 6380, Prefix: " shop "})
	if opts.Addr != "cache:6380" || prefix != "shop" {
		t.Fatalf("unexpected options: addr=%s prefix=%s", opts.Addr, prefix)
	}
}

func TestBuildUserAuthState(t *testing.T) {
	invalidBefore := time.Unix(1700000000, 0)
	state := BuildUserAuthState(&models.User{ID: 3, Status: "active", TokenVersion: 4, TokenInvalidBefore: &invalidBefore})
	if state.UserID != 3 || state.TokenVersion != 4 || state.TokenInvalidBefore != 1700000000 {
		t.Fatalf("unexpected state: %+v", state)
	}
	if BuildUserAuthState(nil) != nil {
		t.Fatalf("expected nil for nil user")
	}
	if userCatalogKey(5, " wholesale ") != "catalog:user:5:WHOLESALE" {
		t.Fatalf("unexpected catalog key: %s", userCatalogKey(5, " wholesale "))
	}
}

func TestUserAuthStateVerify(t *testing.T) {
	issued := time.Unix(1700000100, 0)
	cases := []struct {
		name    string
		state   *UserAuthState
		version uint64
		issued  time.Time
		want    error
	}{
		{name: "active", state: &UserAuthState{Status: " Active ", TokenVersion: 2}, version: 2, issued: issued},
		{name: "unregistered", state: &UserAuthState{Status: "unregistered"}, version: 0, issued: issued},
		{name: "inactive", state: &UserAuthState{Status: "inactive"}, version: 0, issued: issued, want: ErrAuthUserDisabled},
		{name: "nil state", state: nil, version: 0, issued: issued, want: ErrAuthUserDisabled},
		{name: "version bumped", state: &UserAuthState{Status: "active", TokenVersion: 3}, version: 2, issued: issued, want: ErrAuthTokenRevoked},
		{name: "issued before cutoff", state: &UserAuthState{Status: "active", TokenInvalidBefore: 1700000200}, version: 0, issued: issued, want: ErrAuthTokenRevoked},
		{name: "missing iat with cutoff", state: &UserAuthState{Status: "active", TokenInvalidBefore: 1}, version: 0, want: ErrAuthTokenRevoked},
		{name: "issued after cutoff", state: &UserAuthState{Status: "active", TokenInvalidBefore: 1700000000}, version: 0, issued: issued},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.state.Verify(tc.version, tc.issued); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}
