// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T) string
		want   map[string]string
		errMsg string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, GroqKeyFile, "  gsk_abc123  \n")
				writeFile(t, dir, GoogleKeyFile, "AIza_xyz789\n")
				return dir
			},
			want: map[string]string{
				GroqKeyFile:   "gsk_abc123",
				GoogleKeyFile: "AIza_xyz789",
			},
		},
		{
			name: "returns empty map for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: map[string]string{},
		},
		{
			name: "skips empty files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, GroqKeyFile, "valid-key")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				return dir
			},
			want: map[string]string{
				GroqKeyFile: "valid-key",
			},
		},
		{
			name: "skips dotfiles",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				writeFile(t, dir, GoogleKeyFile, "AIza_real")
				return dir
			},
			want: map[string]string{
				GoogleKeyFile: "AIza_real",
			},
		},
		{
			name: "skips subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, GroqKeyFile, "gsk_123")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: map[string]string{
				GroqKeyFile: "gsk_123",
			},
		},
		{
			name: "returns empty map for empty directory",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.setup(t)
			got, err := Load(dir, nil)
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	dir := t.TempDir()
	writeFile(t, dir, "good-key", "value123")

	badPath := filepath.Join(dir, "bad-key")
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o644) })

	got, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "value123", got["good-key"])
	_, hasBad := got["bad-key"]
	assert.False(t, hasBad, "unreadable file should not appear in result")
}

func TestResolvePrecedence(t *testing.T) {
	loaded := map[string]string{GroqKeyFile: "from-file"}

	tests := []struct {
		name     string
		explicit string
		env      string
		want     string
	}{
		{"explicit wins", "from-config", "from-env", "from-config"},
		{"environment beats file", "", "from-env", "from-env"},
		{"file as last resort", "", "", "from-file"},
		{"blank explicit ignored", "   ", "", "from-file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(GroqKeyEnv, tt.env)
			assert.Equal(t, tt.want, Resolve(tt.explicit, GroqKeyEnv, GroqKeyFile, loaded))
		})
	}
}

func TestResolveMissing(t *testing.T) {
	t.Setenv(GoogleKeyEnv, "")
	assert.Empty(t, Resolve("", GoogleKeyEnv, GoogleKeyFile, map[string]string{}))
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	writeFile(t, dir, ".env", "ABM_TEST_DOTENV_A=from-dotenv\nABM_TEST_DOTENV_B=from-dotenv\n")

	t.Setenv("ABM_TEST_DOTENV_A", "")
	os.Unsetenv("ABM_TEST_DOTENV_A")
	t.Setenv("ABM_TEST_DOTENV_B", "already-set")
	t.Cleanup(func() { os.Unsetenv("ABM_TEST_DOTENV_A") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, "from-dotenv", os.Getenv("ABM_TEST_DOTENV_A"))
	assert.Equal(t, "already-set", os.Getenv("ABM_TEST_DOTENV_B"))

	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
