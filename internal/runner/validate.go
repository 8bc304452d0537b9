package runner

import (
	"net/url"
	"strings"
)

// Validate checks the fields that do not need compiling. Stages, checks and
// the payload are validated when the runner compiles them.
func (c Config) Validate() error {
	if strings.TrimSpace(c.URL) == "" {
		return configErr("url", "target URL is required")
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return &ConfigError{Field: "url", Reason: "malformed URL", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return configErr("url", "scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return configErr("url", "missing host in %q", c.URL)
	}

	for k := range c.Headers {
		if strings.TrimSpace(k) == "" {
			return configErr("headers", "empty header name")
		}
	}

	if c.Sleep < 0 {
		return configErr("sleep", "must not be negative, got %s", c.Sleep)
	}
	if c.RequestTimeout < 0 {
		return configErr("request_timeout", "must not be negative, got %s", c.RequestTimeout)
	}
	if c.GracefulStop < 0 {
		return configErr("graceful_stop", "must not be negative, got %s", c.GracefulStop)
	}
	if c.TickInterval < 0 {
		return configErr("tick", "must not be negative, got %s", c.TickInterval)
	}
	return nil
}
