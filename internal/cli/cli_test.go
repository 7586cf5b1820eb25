package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("entries only", func(t *testing.T) {
		var out bytes.Buffer
		cfg, exit, err := Parse([]string{"src/index.js", "src/admin.js"}, &out)
		require.NoError(t, err)
		assert.False(t, exit)
		require.NotNil(t, cfg)
		assert.Equal(t, []string{"src/index.js", "src/admin.js"}, cfg.Entries)
		assert.Equal(t, "development", cfg.Mode)
		assert.Equal(t, "text", cfg.LogFormat)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, 8, cfg.WorkerCount)
	})

	t.Run("config flag", func(t *testing.T) {
		var out bytes.Buffer
		cfg, exit, err := Parse([]string{"-config", "build.hcl"}, &out)
		require.NoError(t, err)
		assert.False(t, exit)
		assert.Equal(t, "build.hcl", cfg.ConfigPath)
	})

	t.Run("shorthand config flag", func(t *testing.T) {
		var out bytes.Buffer
		cfg, _, err := Parse([]string{"-c", "build.hcl"}, &out)
		require.NoError(t, err)
		assert.Equal(t, "build.hcl", cfg.ConfigPath)
	})

	t.Run("all flags", func(t *testing.T) {
		var out bytes.Buffer
		cfg, _, err := Parse([]string{
			"-root", "/proj",
			"-mode", "production",
			"-log-format", "json",
			"-log-level", "debug",
			"-workers", "4",
			"-graph-dot", "graph.dot",
			"src/index.js",
		}, &out)
		require.NoError(t, err)
		assert.Equal(t, "/proj", cfg.ProjectRoot)
		assert.Equal(t, "production", cfg.Mode)
		assert.Equal(t, "json", cfg.LogFormat)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 4, cfg.WorkerCount)
		assert.Equal(t, "graph.dot", cfg.GraphDot)
	})

	t.Run("no arguments prints usage and exits cleanly", func(t *testing.T) {
		var out bytes.Buffer
		cfg, exit, err := Parse(nil, &out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
	})

	t.Run("help exits cleanly", func(t *testing.T) {
		var out bytes.Buffer
		cfg, exit, err := Parse([]string{"-h"}, &out)
		require.NoError(t, err)
		assert.True(t, exit)
		assert.Nil(t, cfg)
	})
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"unknown flag", []string{"-bogus"}, "flag provided but not defined"},
		{"invalid mode", []string{"-mode", "staging", "a.js"}, "invalid mode"},
		{"invalid log format", []string{"-log-format", "xml", "a.js"}, "invalid log-format"},
		{"invalid log level", []string{"-log-level", "verbose", "a.js"}, "invalid log-level"},
		{"non-positive workers", []string{"-workers", "0", "a.js"}, "WorkerCount"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			_, _, err := Parse(tc.args, &out)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.want)
		})
	}
}
