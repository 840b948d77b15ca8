// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/anything-but-metric/internal/secrets"
)

const malformedEnv = "GROQ_API_KEY='unterminated\n"

func TestLoadCredentials(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, dir string)
		want  map[string]string
	}{
		{
			name:  "nothing present",
			setup: func(t *testing.T, dir string) {},
			want:  map[string]string{},
		},
		{
			name: "malformed env file is ignored",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(malformedEnv), 0o644))
				require.NoError(t, os.MkdirAll(filepath.Join(dir, ".secrets"), 0o755))
				require.NoError(t, os.WriteFile(filepath.Join(dir, ".secrets", secrets.GroqKeyFile), []byte("gsk-file\n"), 0o600))
			},
			want: map[string]string{secrets.GroqKeyFile: "gsk-file"},
		},
		{
			name: "secrets path that is not a directory",
			setup: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, ".secrets"), []byte("oops"), 0o644))
			},
			want: map[string]string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearKeyEnv(t)
			dir := t.TempDir()
			tt.setup(t, dir)

			got := loadCredentials(filepath.Join(dir, ".env"), filepath.Join(dir, ".secrets"))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScrapeWithMalformedEnvReportsZero(t *testing.T) {
	clearKeyEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(malformedEnv), 0o644))
	t.Chdir(dir)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"scrape", "--data-dir", filepath.Join(dir, "data")})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "NEW_EDGES=0\n", out.String())
}
