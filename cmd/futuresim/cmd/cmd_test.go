package cmd

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestConfigInitThenValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backtest.yaml")

	out, err := execute(t, "config", "init", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Created default configuration: "+path)

	out, err = execute(t, "config", "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Configuration valid")
	assert.Contains(t, out, "Strategy: ema-cross, sizing: fixed-risk")
	assert.Contains(t, out, "Markets: 1")
}

func TestConfigValidateMissingFile(t *testing.T) {
	_, err := execute(t, "config", "validate", "-f", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestDateRange(t *testing.T) {
	t.Parallel()

	start, end, err := dateRange("2021-01-04", "2021-02-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC), end)

	_, _, err = dateRange("2021-13-01", "2021-02-01")
	assert.ErrorContains(t, err, "--from")
}
