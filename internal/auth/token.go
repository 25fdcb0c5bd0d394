// Package auth resolves and stores the access token used against the
// hosting service.
package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// envToken is checked before the token file so CI environments can inject
// credentials without touching disk.
const envToken = "HUBSYNC_TOKEN"

// ResolveToken returns the access token: the HUBSYNC_TOKEN environment
// variable if set, otherwise the contents of the token file at path.
// An empty string with no error means anonymous access.
func ResolveToken(path string) (string, error) {
	if tok := strings.TrimSpace(os.Getenv(envToken)); tok != "" {
		return tok, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("reading token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// SaveToken stores the token at path with owner-only permissions.
func SaveToken(path, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("empty token")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating token directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(token+"\n"), 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}
