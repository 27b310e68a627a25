package config

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func parseConfig(t *testing.T, yaml string) *Config {
	t.Helper()
	cfg, err := Parse([]byte(yaml))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return cfg
}

func TestBuildConditions_Names(t *testing.T) {
	cfg := parseConfig(t, `
conditions:
  - name: flag-file
    type: file
    path: /tmp/ready
  - name: db
    type: tcp
    address: localhost:5432
  - name: api
    type: http
    url: http://localhost:8080/healthz
`)

	conditions, err := BuildConditions(cfg)
	if err != nil {
		t.Fatalf("BuildConditions() error = %v", err)
	}
	if len(conditions) != 3 {
		t.Fatalf("len(conditions) = %d, want 3", len(conditions))
	}

	wantNames := []string{"flag-file", "db", "api"}
	for i, want := range wantNames {
		if got := conditions[i].Name(); got != want {
			t.Errorf("conditions[%d].Name() = %q, want %q", i, got, want)
		}
	}
}

func TestFileProbe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.ready")

	probe := fileProbe(path)
	ctx := context.Background()

	ok, err := probe(ctx)
	if err != nil {
		t.Fatalf("probe() error = %v", err)
	}
	if ok {
		t.Fatal("probe() = true before the file exists")
	}

	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	ok, err = probe(ctx)
	if err != nil {
		t.Fatalf("probe() error = %v", err)
	}
	if !ok {
		t.Fatal("probe() = false after the file was created")
	}
}

func TestTCPProbe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	defer func() { _ = ln.Close() }()

	cc := ConditionConfig{
		Address:      ln.Addr().String(),
		ProbeTimeout: Duration(2 * time.Second),
	}

	ok, err := tcpProbe(cc)(context.Background())
	if err != nil {
		t.Fatalf("probe() error = %v", err)
	}
	if !ok {
		t.Fatal("probe() = false against a listening address")
	}

	// a closed port is "not yet ready", not an error
	addr := ln.Addr().String()
	_ = ln.Close()
	ok, err = tcpProbe(ConditionConfig{
		Address:      addr,
		ProbeTimeout: Duration(200 * time.Millisecond),
	})(context.Background())
	if err != nil {
		t.Fatalf("probe() error = %v", err)
	}
	if ok {
		t.Fatal("probe() = true against a closed address")
	}
}

func TestHTTPProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	cc := ConditionConfig{
		URL:          srv.URL,
		Method:       "HEAD",
		Headers:      map[string]string{"Authorization": "Bearer token"},
		ProbeTimeout: Duration(2 * time.Second),
	}

	ok, err := httpProbe(cc, srv.Client())(context.Background())
	if err != nil {
		t.Fatalf("probe() error = %v", err)
	}
	if !ok {
		t.Fatal("probe() = false for a 204 response")
	}

	// non-2xx means not ready
	cc.Headers = nil
	ok, err = httpProbe(cc, srv.Client())(context.Background())
	if err != nil {
		t.Fatalf("probe() error = %v", err)
	}
	if ok {
		t.Fatal("probe() = true for a 401 response")
	}

	// a refused connection is "not yet ready", not an error
	srv.Close()
	ok, err = httpProbe(cc, &http.Client{})(context.Background())
	if err != nil {
		t.Fatalf("probe() error = %v", err)
	}
	if ok {
		t.Fatal("probe() = true against a closed server")
	}
}

func TestHTTPProbe_DefaultsToGET(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
	}))
	defer srv.Close()

	cc := ConditionConfig{
		URL:          srv.URL,
		ProbeTimeout: Duration(2 * time.Second),
	}

	ok, err := httpProbe(cc, srv.Client())(context.Background())
	if err != nil {
		t.Fatalf("probe() error = %v", err)
	}
	if !ok {
		t.Fatal("probe() = false for a 200 response")
	}
	if gotMethod != http.MethodGet {
		t.Errorf("method = %q, want GET", gotMethod)
	}
}
