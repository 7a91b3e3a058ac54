package browser

import (
	"fmt"
	"strings"

	"github.com/mattn/go-shellwords"
)

// Flag is one Chrome command-line switch without its leading dashes.
type Flag struct {
	Name   string
	Values []string
}

// DefaultFlags are the switches Chrome needs to run WhatsApp Web unattended
// in containers and on desktops alike.
func DefaultFlags(userDataDir string) []Flag {
	fs := []Flag{
		{Name: "no-sandbox"},
		{Name: "disable-setuid-sandbox"},
		{Name: "disable-dev-shm-usage"},
		{Name: "disable-accelerated-2d-canvas"},
		{Name: "no-first-run"},
		{Name: "no-zygote"},
		{Name: "disable-gpu"},
		{Name: "password-store", Values: []string{"basic"}},
		{Name: "use-mock-keychain"},
	}
	if userDataDir != "" {
		fs = append(fs,
			Flag{Name: "user-data-dir", Values: []string{userDataDir}},
			Flag{Name: "profile-directory", Values: []string{"Default"}},
		)
	}
	return fs
}

// ParseFlags splits a shell-quoted flag string such as
// `--lang=en --proxy-server="http://p:8080"`.
func ParseFlags(s string) ([]Flag, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	words, err := shellwords.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("parse browser args: %w", err)
	}

	out := make([]Flag, 0, len(words))
	for _, w := range words {
		name := strings.TrimLeft(w, "-")
		if name == "" {
			continue
		}
		f := Flag{Name: name}
		if k, v, ok := strings.Cut(name, "="); ok {
			f.Name = k
			f.Values = []string{v}
		}
		out = append(out, f)
	}
	return out, nil
}
