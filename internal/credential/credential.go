// Package credential stores and resolves the OpenAI API key.
package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvVar overrides the stored key when set.
const EnvVar = "OPENAI_API_KEY"

// ErrMissing reports that no API key is available from env or the store.
var ErrMissing = errors.New("no API key configured; set OPENAI_API_KEY or run `parley key set`")

// Resolve returns the API key, preferring the environment over the stored
// file. An empty result is ErrMissing.
func Resolve() (string, error) {
	if key := strings.TrimSpace(os.Getenv(EnvVar)); key != "" {
		return key, nil
	}
	key, err := Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrMissing
		}
		return "", err
	}
	if key == "" {
		return "", ErrMissing
	}
	return key, nil
}

// Load reads the stored key file. Returns os.ErrNotExist when absent.
func Load() (string, error) {
	path, err := storePath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Save writes the key with owner-only permissions.
func Save(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("API key cannot be empty")
	}

	path, err := storePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(key+"\n"), 0o600); err != nil {
		return fmt.Errorf("write credential file: %w", err)
	}
	return nil
}

// Clear removes the stored key. Missing file is not an error.
func Clear() error {
	path, err := storePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove credential file: %w", err)
	}
	return nil
}

// Redact renders a key for display without exposing it.
func Redact(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", 4) + key[len(key)-4:]
}

// storePath resolves $XDG_STATE_HOME/parley/credential.
func storePath() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "parley", "credential"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory for credential store: %w", err)
	}
	return filepath.Join(home, ".local", "state", "parley", "credential"), nil
}
