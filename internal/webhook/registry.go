// Package webhook holds the webhook registration and delivers inbound
// message events to the registered URL.
package webhook

import (
	"fmt"
	"net/url"
	"sync"
)

// Registry is the in-memory webhook registration. It is lost on restart.
type Registry struct {
	mu  sync.RWMutex
	url string
}

// NewRegistry returns a registry preloaded with initial (may be empty).
func NewRegistry(initial string) *Registry {
	return &Registry{url: initial}
}

// URL returns the registered URL and whether one is set.
func (r *Registry) URL() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.url, r.url != ""
}

// Set registers u. An empty u clears the registration.
func (r *Registry) Set(u string) error {
	if u != "" {
		if err := ValidateURL(u); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.url = u
	r.mu.Unlock()
	return nil
}

// Clear removes the registration.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.url = ""
	r.mu.Unlock()
}

// ValidateURL accepts absolute http and https URLs.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid webhook url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid webhook url: scheme must be http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("invalid webhook url: missing host")
	}
	return nil
}
