package upstream

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds a single upstream call
	DefaultTimeout = 30 * time.Second
	// DefaultMaxResponseBytes limits the response body size to prevent memory exhaustion
	DefaultMaxResponseBytes int64 = 32 * 1024 * 1024
)

// Errors for upstream configuration
var (
	ErrConfigMissingBaseURL = errors.New("upstream: base URL is required")
	ErrConfigInvalidTimeout = errors.New("upstream: timeout must not be negative")
)

// Config holds the dashboard API connection settings
type Config struct {
	// BaseURL is the API root, e.g. https://api.example.com/v1
	BaseURL string
	// Token is the default bearer token. A token on the request context wins.
	Token string
	// Timeout is the HTTP request timeout
	Timeout time.Duration
	// MaxResponseBytes caps how much of a response body is read
	MaxResponseBytes int64
}

// Validate checks required fields and fills defaults
func (c *Config) Validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	if c.Timeout < 0 {
		return ErrConfigInvalidTimeout
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = DefaultMaxResponseBytes
	}
	return nil
}
