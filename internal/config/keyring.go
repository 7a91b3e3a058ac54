package config

import (
	"errors"
	"log/slog"

	"github.com/zalando/go-keyring"
)

const keyringService = "wagate"

// keyringUser is the account name under which the master key is stored.
func keyringUser(clientID string) string {
	return "master-key:" + NormalizeClientID(clientID)
}

// StoreMasterKey saves the master key in the OS keyring.
func StoreMasterKey(clientID, key string) error {
	return keyring.Set(keyringService, keyringUser(clientID), key)
}

// DeleteMasterKey removes a stored master key. Missing entries are not an error.
func DeleteMasterKey(clientID string) error {
	err := keyring.Delete(keyringService, keyringUser(clientID))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// ResolveMasterKey returns the effective master key and where it came from
// ("config", "keyring" or "default").
func (c *Config) ResolveMasterKey() (string, string) {
	if c.Auth.MasterKey != "" {
		return c.Auth.MasterKey, "config"
	}
	if c.Auth.UseKeyring {
		key, err := keyring.Get(keyringService, keyringUser(c.WhatsApp.ClientID))
		switch {
		case err == nil && key != "":
			return key, "keyring"
		case errors.Is(err, keyring.ErrNotFound):
		case err != nil:
			slog.Warn("keyring lookup failed", "error", err)
		}
	}
	return DefaultMasterKey, "default"
}
