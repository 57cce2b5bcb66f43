package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const credentialService = "playground"

// SessionCredential is the key under which the backend session is stored.
const SessionCredential = "session"

var ErrCredentialNotFound = errors.New("credential not found")

var (
	sessionFileMu sync.Mutex
	keyringGet    = keyring.Get
	keyringSet    = keyring.Set
	keyringDelete = keyring.Delete
	userHomeDir   = os.UserHomeDir
)

// ValidateSessionValue checks that value can be sent verbatim as a cookie
// value (RFC 6265 cookie-octet).
func ValidateSessionValue(value string) error {
	if value == "" {
		return errors.New("session token is empty")
	}
	for _, r := range value {
		switch {
		case r == ';':
			return errors.New("session token must not contain ';': it would split the Cookie header")
		case r == '\r' || r == '\n':
			return errors.New("session token must be a single line")
		case r <= ' ' || r == 0x7f:
			return errors.New("session token must not contain spaces or control characters")
		case r == '"' || r == ',' || r == '\\':
			return fmt.Errorf("session token must not contain %q", r)
		case r > 0x7e:
			return errors.New("session token must be ASCII")
		}
	}
	return nil
}

// StoreCredential saves value in the OS keyring, or in a 0600 file under
// ~/.config/playground when no keyring is reachable.
func StoreCredential(name, value string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("credential name is empty")
	}
	value = strings.TrimSpace(value)
	if err := ValidateSessionValue(value); err != nil {
		return err
	}

	if err := keyringSet(credentialService, name, value); err == nil {
		return nil
	}
	return updateSessionFile(func(entries map[string]string) bool {
		entries[name] = value
		return true
	})
}

// LoadCredential prefers the keyring and falls back to the file.
func LoadCredential(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("credential name is empty")
	}
	if value, err := keyringGet(credentialService, name); err == nil && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value), nil
	}

	sessionFileMu.Lock()
	defer sessionFileMu.Unlock()
	entries, err := readSessionFile()
	if err != nil {
		return "", err
	}
	if value := entries[name]; value != "" {
		return value, nil
	}
	return "", ErrCredentialNotFound
}

// DeleteCredential removes name from the file and the keyring. An absent
// credential is not an error; any other keyring failure is returned.
func DeleteCredential(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("credential name is empty")
	}
	if err := updateSessionFile(func(entries map[string]string) bool {
		if _, ok := entries[name]; !ok {
			return false
		}
		delete(entries, name)
		return true
	}); err != nil {
		return err
	}
	if err := keyringDelete(credentialService, name); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("remove %s from keyring: %w", name, err)
	}
	return nil
}

func sessionFilePath() (string, error) {
	home, err := userHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	if strings.TrimSpace(home) == "" {
		return "", errors.New("home directory is empty")
	}
	return filepath.Join(home, ".config", "playground", "credentials.json"), nil
}

// updateSessionFile applies fn under the file lock and writes the result
// back when fn reports a change.
func updateSessionFile(fn func(map[string]string) bool) error {
	sessionFileMu.Lock()
	defer sessionFileMu.Unlock()

	entries, err := readSessionFile()
	if err != nil {
		return err
	}
	if !fn(entries) {
		return nil
	}
	return writeSessionFile(entries)
}

func readSessionFile() (map[string]string, error) {
	path, err := sessionFilePath()
	if err != nil {
		return nil, err
	}
	entries := make(map[string]string)
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return entries, nil
	case err != nil:
		return nil, fmt.Errorf("read session file: %w", err)
	case len(strings.TrimSpace(string(raw))) == 0:
		return entries, nil
	}

	var stored map[string]string
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("session file %s is corrupt: %w", path, err)
	}
	for k, v := range stored {
		if k, v = strings.TrimSpace(k), strings.TrimSpace(v); k != "" && v != "" {
			entries[k] = v
		}
	}
	return entries, nil
}

// writeSessionFile replaces the file atomically with mode 0600.
func writeSessionFile(entries map[string]string) error {
	path, err := sessionFilePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	payload, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "credentials-*.json")
	if err != nil {
		return fmt.Errorf("create session temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("restrict session temp file: %w", err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return fmt.Errorf("write session temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write session temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}
