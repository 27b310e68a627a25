// Package config provides YAML configuration parsing for the ready CLI.
//
// This package enables running the readiness poller as a standalone binary
// with a configuration file, as an alternative to the programmatic SDK
// approach.
//
// Example configuration:
//
//	title: boot checks
//	wait: 250ms
//	multiplier: 1.5
//	timeout: 30s
//
//	defaults:
//	  probe_timeout: 2s
//	  headers:
//	    User-Agent: ready/1.0
//
//	conditions:
//	  - name: postgres
//	    type: tcp
//	    address: localhost:5432
//	  - name: api
//	    type: http
//	    url: https://localhost:8443/healthz
//	    headers:
//	      Authorization: Bearer ${API_TOKEN}
//	  - name: migrations
//	    type: file
//	    path: /var/run/app/migrated
//
// The defaults mapping is deep-merged under every condition entry, so
// per-condition values win and nested mappings (such as headers) are merged
// key-by-key.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/readykit/ready/internal/merge"
)

// minWait is the minimum allowed initial wait. This prevents accidental
// busy-polling of probed services.
const minWait = 10 * time.Millisecond

// Condition type names accepted in configuration files.
const (
	TypeFile = "file"
	TypeTCP  = "tcp"
	TypeHTTP = "http"
)

// Config is the root configuration structure for the ready CLI.
//
// It maps directly to the YAML configuration file structure. Use [Load] or
// [Parse] to create a Config from YAML.
type Config struct {
	// Title names the run in log output.
	Title string `yaml:"title"`

	// Wait is the initial delay before each condition's first check and the
	// base of the backoff sequence. Defaults to 250ms.
	Wait Duration `yaml:"wait"`

	// Multiplier is the backoff growth factor. Defaults to 1.5.
	Multiplier float64 `yaml:"multiplier"`

	// Timeout bounds how long each condition is polled. Zero means wait
	// forever. Defaults to 30s.
	Timeout Duration `yaml:"timeout"`

	// Defaults is deep-merged under every condition entry.
	Defaults map[string]any `yaml:"defaults"`

	// Conditions defines the readiness conditions to wait for.
	Conditions []ConditionConfig `yaml:"-"`

	// rawConditions keeps the original YAML nodes so defaults can be merged
	// before decoding.
	rawConditions []yaml.Node
}

// ConditionConfig defines a single readiness condition.
type ConditionConfig struct {
	// Name is the display name used in logs and timeout reports.
	Name string `yaml:"name"`

	// Type is the condition type: "file", "tcp", or "http".
	Type string `yaml:"type"`

	// Path is the filesystem path that must exist (for type: file).
	Path string `yaml:"path"`

	// Address is the host:port that must accept connections (for type: tcp).
	Address string `yaml:"address"`

	// URL is the endpoint that must answer 2xx (for type: http).
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url"`

	// Method is the HTTP method (GET, HEAD). Defaults to GET.
	Method string `yaml:"method"`

	// Headers are custom HTTP headers sent with each probe.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// ProbeTimeout bounds one probe attempt (tcp dial, http request).
	// Defaults to 2s.
	ProbeTimeout Duration `yaml:"probe_timeout"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before use. Returns an
// error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// The defaults mapping is deep-merged under every condition entry, defaults
// are applied for Wait (250ms), Multiplier (1.5), Timeout (30s), and
// per-condition ProbeTimeout (2s), and the result is validated.
func Parse(data []byte) (*Config, error) {
	var raw struct {
		Title      string         `yaml:"title"`
		Wait       Duration       `yaml:"wait"`
		Multiplier float64        `yaml:"multiplier"`
		Timeout    *Duration      `yaml:"timeout"`
		Defaults   map[string]any `yaml:"defaults"`
		Conditions []yaml.Node    `yaml:"conditions"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg := &Config{
		Title:         raw.Title,
		Wait:          raw.Wait,
		Multiplier:    raw.Multiplier,
		Defaults:      raw.Defaults,
		rawConditions: raw.Conditions,
	}

	if cfg.Wait == 0 {
		cfg.Wait = Duration(250 * time.Millisecond)
	}
	if cfg.Multiplier == 0 {
		cfg.Multiplier = 1.5
	}
	if raw.Timeout == nil {
		cfg.Timeout = Duration(30 * time.Second)
	} else {
		// explicit zero means wait forever
		cfg.Timeout = *raw.Timeout
	}

	if err := cfg.decodeConditions(); err != nil {
		return nil, err
	}
	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// decodeConditions merges the defaults mapping under each raw condition node
// and decodes the result.
func (c *Config) decodeConditions() error {
	c.Conditions = make([]ConditionConfig, 0, len(c.rawConditions))

	for i, node := range c.rawConditions {
		var entry map[string]any
		if err := node.Decode(&entry); err != nil {
			return fmt.Errorf("conditions[%d]: %w", i, err)
		}

		merged := merge.Maps(c.Defaults, entry)
		data, err := yaml.Marshal(merged)
		if err != nil {
			return fmt.Errorf("conditions[%d]: %w", i, err)
		}

		var cc ConditionConfig
		if err := yaml.Unmarshal(data, &cc); err != nil {
			return fmt.Errorf("conditions[%d]: %w", i, err)
		}
		if cc.ProbeTimeout == 0 {
			cc.ProbeTimeout = Duration(2 * time.Second)
		}
		c.Conditions = append(c.Conditions, cc)
	}
	return nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Wait.Duration() < minWait {
		return fmt.Errorf("wait must be at least %s, got %s", minWait, c.Wait.Duration())
	}
	if c.Multiplier < 1 {
		return fmt.Errorf("multiplier must be at least 1, got %v", c.Multiplier)
	}
	if c.Timeout.Duration() < 0 {
		return fmt.Errorf("timeout cannot be negative, got %s", c.Timeout.Duration())
	}

	if len(c.Conditions) == 0 {
		return errors.New("at least one condition must be defined")
	}

	seen := make(map[string]bool, len(c.Conditions))
	for i := range c.Conditions {
		cc := &c.Conditions[i]

		if cc.Name == "" {
			return fmt.Errorf("conditions[%d]: name is required", i)
		}
		if seen[cc.Name] {
			return fmt.Errorf("duplicate condition name: %q", cc.Name)
		}
		seen[cc.Name] = true

		if cc.ProbeTimeout.Duration() <= 0 {
			return fmt.Errorf("conditions[%d] (%s): probe_timeout must be positive", i, cc.Name)
		}

		switch cc.Type {
		case TypeFile:
			if cc.Path == "" {
				return fmt.Errorf("conditions[%d] (%s): path is required for type file", i, cc.Name)
			}
			expanded, err := expandEnvVars(cc.Path)
			if err != nil {
				return fmt.Errorf("conditions[%d] (%s): path: %w", i, cc.Name, err)
			}
			cc.Path = expanded

		case TypeTCP:
			if cc.Address == "" {
				return fmt.Errorf("conditions[%d] (%s): address is required for type tcp", i, cc.Name)
			}
			expanded, err := expandEnvVars(cc.Address)
			if err != nil {
				return fmt.Errorf("conditions[%d] (%s): address: %w", i, cc.Name, err)
			}
			cc.Address = expanded

		case TypeHTTP:
			if cc.URL == "" {
				return fmt.Errorf("conditions[%d] (%s): url is required for type http", i, cc.Name)
			}
			expanded, err := expandEnvVars(cc.URL)
			if err != nil {
				return fmt.Errorf("conditions[%d] (%s): url: %w", i, cc.Name, err)
			}
			cc.URL = expanded

			parsedURL, err := url.Parse(cc.URL)
			if err != nil {
				return fmt.Errorf("conditions[%d] (%s): invalid url: %w", i, cc.Name, err)
			}
			if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
				return fmt.Errorf("conditions[%d] (%s): url scheme must be http or https, got %q", i, cc.Name, parsedURL.Scheme)
			}

			for k, v := range cc.Headers {
				expanded, err := expandEnvVars(v)
				if err != nil {
					return fmt.Errorf("conditions[%d] (%s): headers[%s]: %w", i, cc.Name, k, err)
				}
				cc.Headers[k] = expanded
			}

			if cc.Method != "" && cc.Method != "GET" && cc.Method != "HEAD" {
				return fmt.Errorf("conditions[%d] (%s): method must be GET or HEAD", i, cc.Name)
			}

		case "":
			return fmt.Errorf("conditions[%d] (%s): type is required", i, cc.Name)
		default:
			return fmt.Errorf("conditions[%d] (%s): unknown type %q (expected file, tcp, or http)", i, cc.Name, cc.Type)
		}
	}

	return nil
}
