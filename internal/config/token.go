package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const credFileName = "credentials.json"

// TokenInfo is the API token stored in ~/.itemwatch/credentials.json.
type TokenInfo struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}

func credFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("home: %w", err)
	}
	return filepath.Join(home, Dir, credFileName), nil
}

// ReadToken returns the stored API token, or nil when there is none.
func ReadToken() (*TokenInfo, error) {
	p, err := credFilePath()
	if err != nil {
		return nil, nil // no home, no stored token
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	var ti TokenInfo
	if err := json.Unmarshal(b, &ti); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	ti.Token = stripBearer(strings.TrimSpace(ti.Token))
	if ti.Token == "" {
		return nil, nil
	}
	return &ti, nil
}

func stripBearer(s string) string {
	if strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return strings.TrimSpace(s[7:])
	}
	return s
}
