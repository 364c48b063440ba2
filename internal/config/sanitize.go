// Package config provides the rewind configuration.
package config

import "net/url"

// Sanitize returns a copy of the config that is safe to print. Credentials
// embedded in the tracing endpoint URL are masked.
func Sanitize(cfg *Config) *Config {
	sanitized := *cfg
	sanitized.Tracing.Endpoint = maskURLCredentials(cfg.Tracing.Endpoint)
	return &sanitized
}

func maskURLCredentials(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), "****")
	} else {
		u.User = url.User("****")
	}
	return u.String()
}
