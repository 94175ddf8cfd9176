package sidecar

import (
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	// keyringService and keyringAccount locate the desktop gateway token in
	// the OS keyring (Secret Service / Keychain / Credential Manager).
	keyringService = "nightjar.gateway"
	keyringAccount = "nightjar.gateway.token"
)

// SaveGatewayToken persists the paired bearer token in the OS keyring.
func SaveGatewayToken(token string) error {
	return keyring.Set(keyringService, keyringAccount, strings.TrimSpace(token))
}

// LoadGatewayToken returns the persisted bearer token, or "" when absent or
// the keyring is unavailable.
func LoadGatewayToken() string {
	token, err := keyring.Get(keyringService, keyringAccount)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(token)
}

// DeleteGatewayToken removes the persisted token. A missing entry is not an
// error.
func DeleteGatewayToken() error {
	err := keyring.Delete(keyringService, keyringAccount)
	if err == keyring.ErrNotFound {
		return nil
	}
	return err
}
