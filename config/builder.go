package config

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/readykit/ready"
)

// BuildConditions converts parsed configuration into SDK Condition values.
//
// Each configuration entry becomes a named [ready.Predicate] wrapping a
// probe closure. Probes report "not yet ready" as (false, nil) rather than
// an error: an unreachable service is the normal state while waiting, not a
// failure.
func BuildConditions(cfg *Config) ([]ready.Condition, error) {
	client := &http.Client{}

	conditions := make([]ready.Condition, 0, len(cfg.Conditions))
	for _, cc := range cfg.Conditions {
		cond, err := buildCondition(cc, client)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
	}
	return conditions, nil
}

// buildCondition converts a single ConditionConfig to an SDK Condition.
func buildCondition(cc ConditionConfig, client *http.Client) (ready.Condition, error) {
	switch cc.Type {
	case TypeFile:
		return ready.Predicate(fileProbe(cc.Path)).Named(cc.Name), nil
	case TypeTCP:
		return ready.Predicate(tcpProbe(cc)).Named(cc.Name), nil
	case TypeHTTP:
		return ready.Predicate(httpProbe(cc, client)).Named(cc.Name), nil
	default:
		// unreachable after validation
		return ready.Condition{}, fmt.Errorf("unknown condition type %q", cc.Type)
	}
}

// fileProbe reports whether the path exists.
func fileProbe(path string) func(ctx context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		_, err := os.Stat(path)
		return err == nil, nil
	}
}

// tcpProbe reports whether the address accepts a connection.
func tcpProbe(cc ConditionConfig) func(ctx context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		dialer := net.Dialer{Timeout: cc.ProbeTimeout.Duration()}
		conn, err := dialer.DialContext(ctx, "tcp", cc.Address)
		if err != nil {
			return false, nil
		}
		_ = conn.Close()
		return true, nil
	}
}

// httpProbe reports whether the URL answers 2xx.
func httpProbe(cc ConditionConfig, client *http.Client) func(ctx context.Context) (bool, error) {
	method := cc.Method
	if method == "" {
		method = http.MethodGet
	}

	return func(ctx context.Context) (bool, error) {
		ctx, cancel := context.WithTimeout(ctx, cc.ProbeTimeout.Duration())
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, method, cc.URL, nil)
		if err != nil {
			return false, err
		}
		for key, value := range cc.Headers {
			req.Header.Set(key, value)
		}

		resp, err := client.Do(req)
		if err != nil {
			return false, nil
		}
		defer func() { _ = resp.Body.Close() }()

		return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
	}
}
