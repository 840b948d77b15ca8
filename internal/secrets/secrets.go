// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads provider API keys. Keys come from explicit
// configuration, the process environment (optionally seeded from a .env
// file), or a directory of plain-text files where each filename is the key
// name and the trimmed contents are the value.
//
// Supported key files: groq-api-key, google-ai-api-key.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Key files and the environment variables that take precedence over them.
const (
	GroqKeyFile   = "groq-api-key"
	GoogleKeyFile = "google-ai-api-key"

	GroqKeyEnv   = "GROQ_API_KEY"
	GoogleKeyEnv = "GOOGLE_AI_API_KEY"
)

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, logger *slog.Logger) (map[string]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", "name", name, "error", err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// LoadEnvFile sets variables from a .env file without overriding ones
// already in the environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Resolve picks a key value: explicit wins, then the environment variable
// env, then the secrets file named file.
func Resolve(explicit, env, file string, loaded map[string]string) string {
	if v := strings.TrimSpace(explicit); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v
	}
	return loaded[file]
}
