package ready

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// connection pooling limits for the default fetcher, sized for loading a
// handful of resources rather than sustained polling
const (
	loaderMaxIdleConns    = 10
	loaderIdleConnTimeout = 60 * time.Second
)

// LoadFunc performs the underlying load of one resource.
//
// A nil error marks the resource loaded; any error marks it permanently
// failed for the loader's lifetime.
type LoadFunc func(ctx context.Context, url string) error

// Load is the shared handle for one resource's load.
//
// All callers that request the same URL from the same [Loader] receive the
// referentially identical *Load, whether or not the load has settled.
type Load struct {
	url  string
	done chan struct{}
	err  error // written once, before done is closed
}

// Done returns a channel closed once the load has settled.
func (l *Load) Done() <-chan struct{} {
	return l.done
}

// Err returns the load's outcome: nil on success, the load error on failure.
// Err is only meaningful after [Load.Done] is closed; before that it returns
// nil.
func (l *Load) Err() error {
	select {
	case <-l.done:
		return l.err
	default:
		return nil
	}
}

// URL returns the resource key this load belongs to.
func (l *Load) URL() string {
	return l.url
}

// Wait blocks until the load settles or ctx is done, returning the load's
// outcome or the context error.
//
// Waiting is independent of loading: a cancelled Wait does not cancel the
// underlying load, which other callers may still be waiting on.
func (l *Load) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Loader deduplicates asynchronous resource loads by URL.
//
// The first [Loader.Load] for a URL starts the underlying load; every later
// call for the same URL returns the same [Load] handle, so at most one
// underlying operation ever runs per key. Settled entries, including
// failures, are never evicted: a failed URL replays the same rejection for
// the loader's lifetime. Retrying after a transient failure requires a new
// Loader, preserving the load-once-forever contract of the original layer.
//
// All methods are safe for concurrent use.
type Loader struct {
	fetch  LoadFunc
	logger *slog.Logger

	mu    sync.Mutex
	cache map[string]*Load
}

// loaderConfig holds mutable state during loader construction.
type loaderConfig struct {
	logger *slog.Logger
	client *http.Client
}

// LoaderOption configures a [Loader] during construction.
type LoaderOption func(*loaderConfig) error

// WithLoaderLogger sets a custom [slog.Logger] for the loader.
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLoaderLogger(logger *slog.Logger) LoaderOption {
	return func(cfg *loaderConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithLoaderClient sets the HTTP client used by the default fetcher. Ignored
// when a custom [LoadFunc] is supplied.
//
// Returns an error if the client is nil.
func WithLoaderClient(client *http.Client) LoaderOption {
	return func(cfg *loaderConfig) error {
		if client == nil {
			return errors.New("client cannot be nil")
		}
		cfg.client = client
		return nil
	}
}

// NewLoader creates a [Loader].
//
// With a nil fetch the loader uses the default HTTP fetcher: a GET request
// that succeeds on any 2xx response and discards the body, the script-load
// analog for remote resources.
func NewLoader(fetch LoadFunc, opts ...LoaderOption) (*Loader, error) {
	cfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if fetch == nil {
		client := cfg.client
		if client == nil {
			client = &http.Client{
				Transport: &http.Transport{
					MaxIdleConns:    loaderMaxIdleConns,
					IdleConnTimeout: loaderIdleConnTimeout,
				},
			}
		}
		fetch = httpFetch(client)
	}
	return &Loader{
		fetch:  fetch,
		logger: cfg.logger,
		cache:  make(map[string]*Load),
	}, nil
}

// Load returns the shared handle for url, starting the underlying load if
// this is the first request for the key.
//
// The first caller's context supplies request-scoped values to the underlying
// load, but its cancellation is not propagated: the load belongs to every
// caller of the key, so the memoized outcome is the load's own, never a
// bystander's cancellation. Callers' contexts only affect their own
// [Load.Wait] calls.
//
// An empty url returns an immediately-failed handle that is not cached.
func (ld *Loader) Load(ctx context.Context, url string) *Load {
	if url == "" {
		l := &Load{url: url, done: make(chan struct{}), err: errors.New("url is empty")}
		close(l.done)
		return l
	}

	ld.mu.Lock()
	if l, ok := ld.cache[url]; ok {
		ld.mu.Unlock()
		return l
	}
	l := &Load{url: url, done: make(chan struct{})}
	ld.cache[url] = l
	ld.mu.Unlock()

	go func() {
		err := ld.fetch(context.WithoutCancel(ctx), url)
		l.err = err
		close(l.done)

		if err != nil {
			ld.logger.Warn("resource load failed", "url", url, "error", err)
		} else {
			ld.logger.Debug("resource loaded", "url", url)
		}
	}()
	return l
}

// Cached returns how many URLs the loader has entries for, settled or not.
func (ld *Loader) Cached() int {
	ld.mu.Lock()
	defer ld.mu.Unlock()
	return len(ld.cache)
}

// httpFetch builds the default [LoadFunc] over an HTTP client.
func httpFetch(client *http.Client) LoadFunc {
	return func(ctx context.Context, url string) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		// drain so the connection can be reused
		if _, err := io.Copy(io.Discard, resp.Body); err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return nil
	}
}
