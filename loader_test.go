package ready

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewLoader_OptionValidation(t *testing.T) {
	if _, err := NewLoader(nil, WithLoaderLogger(nil)); err == nil {
		t.Error("NewLoader() should reject a nil logger")
	}
	if _, err := NewLoader(nil, WithLoaderClient(nil)); err == nil {
		t.Error("NewLoader() should reject a nil client")
	}
}

func TestLoader_DeduplicatesConcurrentLoads(t *testing.T) {
	var fetches atomic.Int32
	release := make(chan struct{})

	ld, err := NewLoader(func(ctx context.Context, url string) error {
		fetches.Add(1)
		<-release
		return nil
	}, WithLoaderLogger(testLogger()))
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	ctx := context.Background()
	first := ld.Load(ctx, "https://cdn.example.com/widget.js")
	second := ld.Load(ctx, "https://cdn.example.com/widget.js")

	// both callers hold the referentially identical handle
	if first != second {
		t.Fatal("Load() returned distinct handles for the same URL")
	}
	if first.URL() != "https://cdn.example.com/widget.js" {
		t.Errorf("URL() = %q", first.URL())
	}

	// unsettled: Err is nil and Done is open
	if err := first.Err(); err != nil {
		t.Errorf("Err() = %v before settling, want nil", err)
	}
	select {
	case <-first.Done():
		t.Fatal("Done() closed before the fetch finished")
	default:
	}

	close(release)
	if err := first.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	if got := fetches.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
	if got := ld.Cached(); got != 1 {
		t.Errorf("Cached() = %d, want 1", got)
	}
}

func TestLoader_FailureIsMemoized(t *testing.T) {
	var fetches atomic.Int32
	sentinel := errors.New("network down")

	ld, err := NewLoader(func(ctx context.Context, url string) error {
		fetches.Add(1)
		return sentinel
	}, WithLoaderLogger(testLogger()))
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	ctx := context.Background()
	first := ld.Load(ctx, "https://cdn.example.com/widget.js")
	if err := first.Wait(ctx); !errors.Is(err, sentinel) {
		t.Fatalf("Wait() error = %v, want %v", err, sentinel)
	}

	// the failed entry replays without re-fetching
	again := ld.Load(ctx, "https://cdn.example.com/widget.js")
	if again != first {
		t.Error("Load() after failure returned a fresh handle")
	}
	if err := again.Err(); !errors.Is(err, sentinel) {
		t.Errorf("Err() = %v, want %v", err, sentinel)
	}
	if got := fetches.Load(); got != 1 {
		t.Errorf("fetches = %d, want 1", got)
	}
}

func TestLoader_DistinctURLs(t *testing.T) {
	ld, err := NewLoader(func(ctx context.Context, url string) error {
		return nil
	}, WithLoaderLogger(testLogger()))
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	ctx := context.Background()
	a := ld.Load(ctx, "https://cdn.example.com/a.js")
	b := ld.Load(ctx, "https://cdn.example.com/b.js")

	if a == b {
		t.Error("Load() returned the same handle for distinct URLs")
	}
	if got := ld.Cached(); got != 2 {
		t.Errorf("Cached() = %d, want 2", got)
	}
}

func TestLoader_EmptyURL(t *testing.T) {
	var fetches atomic.Int32
	ld, err := NewLoader(func(ctx context.Context, url string) error {
		fetches.Add(1)
		return nil
	}, WithLoaderLogger(testLogger()))
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	l := ld.Load(context.Background(), "")

	select {
	case <-l.Done():
	default:
		t.Fatal("empty-URL load should settle immediately")
	}
	if l.Err() == nil {
		t.Error("Err() = nil for an empty URL")
	}
	if got := ld.Cached(); got != 0 {
		t.Errorf("Cached() = %d, want 0 (empty URL must not be cached)", got)
	}
	if got := fetches.Load(); got != 0 {
		t.Errorf("fetches = %d, want 0", got)
	}
}

func TestLoader_DetachedFromFirstCallerCancellation(t *testing.T) {
	ld, err := NewLoader(func(ctx context.Context, url string) error {
		// a fetch that fails if its context is already cancelled
		return ctx.Err()
	}, WithLoaderLogger(testLogger()))
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// the first caller is already gone; the shared load must still settle
	// with its own outcome, not the bystander's cancellation
	l := ld.Load(ctx, "https://cdn.example.com/widget.js")
	if err := l.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v, want nil", err)
	}
}

func TestLoader_WaitHonorsContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)

	ld, err := NewLoader(func(ctx context.Context, url string) error {
		<-release
		return nil
	}, WithLoaderLogger(testLogger()))
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	l := ld.Load(context.Background(), "https://cdn.example.com/slow.js")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := l.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want deadline exceeded", err)
	}
}

func TestLoader_DefaultHTTPFetcher(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/missing.js" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("window.ready = true;"))
	}))
	defer srv.Close()

	ld, err := NewLoader(nil,
		WithLoaderLogger(testLogger()),
		WithLoaderClient(srv.Client()),
	)
	if err != nil {
		t.Fatalf("NewLoader() error = %v", err)
	}

	ctx := context.Background()

	if err := ld.Load(ctx, srv.URL+"/widget.js").Wait(ctx); err != nil {
		t.Errorf("Wait() error = %v for a 200 response", err)
	}

	if err := ld.Load(ctx, srv.URL+"/missing.js").Wait(ctx); err == nil {
		t.Error("Wait() = nil for a 404 response, want error")
	}

	// both outcomes are cached
	_ = ld.Load(ctx, srv.URL+"/widget.js")
	_ = ld.Load(ctx, srv.URL+"/missing.js")
	if got := hits.Load(); got != 2 {
		t.Errorf("server hits = %d, want 2", got)
	}
}
