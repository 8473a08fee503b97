package credentials

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestEnsureRconPasswordGenerates creates a restricted file with a password
// of the expected shape on first run.
func TestEnsureRconPasswordGenerates(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rconpw")

	password, err := EnsureRconPassword(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, password, passwordLength)

	for _, r := range password {
		require.Contains(t, passwordCharset, string(r))
	}

	info, err := os.Stat(path)
	require.NoError(t, err)

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}
}

// TestEnsureRconPasswordStable returns the same password across invocations.
func TestEnsureRconPasswordStable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rconpw")

	first, err := EnsureRconPassword(context.Background(), path)
	require.NoError(t, err)

	second, err := EnsureRconPassword(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

// TestEnsureRconPasswordPreProvisioned never replaces an operator-supplied
// password, including one with surrounding whitespace.
func TestEnsureRconPasswordPreProvisioned(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rconpw")
	require.NoError(t, os.WriteFile(path, []byte("my-own-password\n"), 0o600))

	password, err := EnsureRconPassword(context.Background(), path)
	require.NoError(t, err)
	require.Equal(t, "my-own-password", password)
}

// TestEnsureRconPasswordEmptyFile treats an empty file as unprovisioned.
func TestEnsureRconPasswordEmptyFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rconpw")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	password, err := EnsureRconPassword(context.Background(), path)
	require.NoError(t, err)
	require.NotEmpty(t, password)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, password, strings.TrimSpace(string(contents)))
}
