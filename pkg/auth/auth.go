// Package auth applies per-repository credentials to outgoing index and icon requests.
//
//go:generate mockgen -destination=./mocks/auth.go . Authenticator
package auth

import (
	"fmt"
	"net/http"
)

// Authenticator decorates a request with credentials.
type Authenticator interface {
	Apply(req *http.Request) error
	Type() Type
}

// Type represents the type of authentication.
type Type string

// Authentication types.
const (
	BasicAuthType  Type = "basic"
	HeaderAuthType Type = "header"
	BearerAuthType Type = "bearer"
)

// ErrEmptyCredentials is returned when an authenticator has nothing to send.
var ErrEmptyCredentials = fmt.Errorf("authentication credentials are empty")

// BasicAuth represents HTTP Basic Authentication credentials.
type BasicAuth struct {
	Username string
	Password string
}

// Apply sets the Authorization header.
func (b *BasicAuth) Apply(req *http.Request) error {
	if b.Username == "" {
		return fmt.Errorf("basic auth: %w", ErrEmptyCredentials)
	}
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}

// Type returns BasicAuthType.
func (b *BasicAuth) Type() Type { return BasicAuthType }

// HeaderAuth sends fixed headers, e.g. an API key.
type HeaderAuth struct {
	Headers map[string]string
}

// Apply copies the headers onto the request.
func (h *HeaderAuth) Apply(req *http.Request) error {
	if len(h.Headers) == 0 {
		return fmt.Errorf("header auth: %w", ErrEmptyCredentials)
	}
	for k, v := range h.Headers {
		req.Header.Set(k, v)
	}
	return nil
}

// Type returns HeaderAuthType.
func (h *HeaderAuth) Type() Type { return HeaderAuthType }

// BearerAuth represents Bearer token authentication.
type BearerAuth struct {
	Token string
}

// Apply sets a bearer Authorization header.
func (b *BearerAuth) Apply(req *http.Request) error {
	if b.Token == "" {
		return fmt.Errorf("bearer auth: %w", ErrEmptyCredentials)
	}
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// Type returns BearerAuthType.
func (b *BearerAuth) Type() Type { return BearerAuthType }

// ApplyTo applies a to req when a is set; a nil authenticator leaves the request untouched.
func ApplyTo(a Authenticator, req *http.Request) error {
	if a == nil {
		return nil
	}
	if err := a.Apply(req); err != nil {
		return fmt.Errorf("failed to apply %s auth: %w", a.Type(), err)
	}
	return nil
}
