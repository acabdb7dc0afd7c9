// Package auth manages the persisted access token and profile helpers
// for the tianji CLI. The token lives as a single file in the user's
// config directory, the terminal analog of the web client's storage key.
package auth

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/suyan/tianji-cli/internal/config"
)

const tokenFile = "token"

// fileMu guards concurrent access to the token file.
var fileMu sync.Mutex

func tokenPath() string {
	return filepath.Join(config.Dir(), tokenFile)
}

// SaveToken persists the bearer token for subsequent commands.
func SaveToken(token string) error {
	fileMu.Lock()
	defer fileMu.Unlock()

	if err := os.MkdirAll(config.Dir(), 0o700); err != nil {
		return err
	}
	return os.WriteFile(tokenPath(), []byte(token), 0o600)
}

// LoadToken returns the stored token, or "" when not logged in.
func LoadToken() string {
	fileMu.Lock()
	defer fileMu.Unlock()

	data, err := os.ReadFile(tokenPath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// ClearToken removes the stored token. Missing file is not an error.
func ClearToken() error {
	fileMu.Lock()
	defer fileMu.Unlock()

	err := os.Remove(tokenPath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
