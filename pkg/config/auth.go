package config

import (
	"fmt"

	"github.com/glorpus-work/appcat/pkg/auth"
)

// AuthConfig holds the credentials used to fetch a repository. At most one method may be set.
type AuthConfig struct {
	BasicAuth  *BasicAuth  `yaml:"basic,omitempty" toml:"basic,omitempty"`
	HeaderAuth *HeaderAuth `yaml:"header,omitempty" toml:"header,omitempty"`
	BearerAuth *BearerAuth `yaml:"bearer,omitempty" toml:"bearer,omitempty"`
}

// BasicAuth holds configuration for HTTP Basic Authentication.
type BasicAuth struct {
	Username string `yaml:"username" toml:"username"`
	Password string `yaml:"password" toml:"password"`
}

// HeaderAuth holds configuration for custom header-based authentication.
type HeaderAuth struct {
	Headers map[string]string `yaml:"headers" toml:"headers"`
}

// BearerAuth holds configuration for Bearer token authentication.
type BearerAuth struct {
	Token string `yaml:"token" toml:"token"`
}

// Validate rejects configurations naming more than one method.
func (a *AuthConfig) Validate() error {
	set := 0
	for _, present := range []bool{a.BasicAuth != nil, a.HeaderAuth != nil, a.BearerAuth != nil} {
		if present {
			set++
		}
	}
	if set > 1 {
		return fmt.Errorf("only one auth method may be configured, got %d", set)
	}
	return nil
}

// Authenticator returns the configured method, or nil.
func (a *AuthConfig) Authenticator() auth.Authenticator {
	if a == nil {
		return nil
	}
	switch {
	case a.BasicAuth != nil:
		return &auth.BasicAuth{Username: a.BasicAuth.Username, Password: a.BasicAuth.Password}
	case a.HeaderAuth != nil:
		return &auth.HeaderAuth{Headers: a.HeaderAuth.Headers}
	case a.BearerAuth != nil:
		return &auth.BearerAuth{Token: a.BearerAuth.Token}
	default:
		return nil
	}
}

// AuthMap maps repository addresses to their authenticators. Repositories without auth are absent.
func (c *Config) AuthMap() map[string]auth.Authenticator {
	results := make(map[string]auth.Authenticator)
	for _, repo := range c.Repositories {
		if a := repo.Auth.Authenticator(); a != nil {
			results[repo.Model().Address] = a
		}
	}
	return results
}
