package mods

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func manifestPath(t *testing.T) string {
	t.Helper()

	return filepath.Join(t.TempDir(), "mod-list.json")
}

// TestApplyEmptyManifest builds a manifest from nothing: base plus the
// governed bundle at the toggle state.
func TestApplyEmptyManifest(t *testing.T) {
	t.Parallel()

	path := manifestPath(t)
	require.NoError(t, Apply(context.Background(), path, true))

	manifest, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []Entry{
		{Name: "base", Enabled: true},
		{Name: "space-age", Enabled: true},
		{Name: "elevated-rails", Enabled: true},
		{Name: "quality", Enabled: true},
	}, manifest.Mods)
}

// TestApplyPreservesUserMods keeps user entries verbatim, in position, while
// upserting the governed set.
func TestApplyPreservesUserMods(t *testing.T) {
	t.Parallel()

	path := manifestPath(t)
	seed := `{
  "mods": [
    {"name": "base", "enabled": true},
    {"name": "my-train-mod", "enabled": false},
    {"name": "space-age", "enabled": true}
  ]
}
`
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o644))

	require.NoError(t, Apply(context.Background(), path, false))

	manifest, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, []Entry{
		{Name: "base", Enabled: true},
		{Name: "my-train-mod", Enabled: false},
		{Name: "space-age", Enabled: false},
		{Name: "elevated-rails", Enabled: false},
		{Name: "quality", Enabled: false},
	}, manifest.Mods)
}

// TestApplyIdempotent verifies byte-identical output for a repeated toggle.
func TestApplyIdempotent(t *testing.T) {
	t.Parallel()

	path := manifestPath(t)
	require.NoError(t, Apply(context.Background(), path, true))

	first, err := os.ReadFile(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, Apply(context.Background(), path, true))

	second, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, first, second)

	// The unchanged manifest is not rewritten at all.
	after, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, info.ModTime(), after.ModTime())
}

// TestApplyTogglesOff flips an enabled bundle off without dropping entries.
func TestApplyTogglesOff(t *testing.T) {
	t.Parallel()

	path := manifestPath(t)
	require.NoError(t, Apply(context.Background(), path, true))
	require.NoError(t, Apply(context.Background(), path, false))

	manifest, err := Load(path)
	require.NoError(t, err)

	for _, entry := range manifest.Mods {
		if entry.Name == "base" {
			require.True(t, entry.Enabled)
			continue
		}

		require.False(t, entry.Enabled, entry.Name)
	}

	require.Len(t, manifest.Mods, 1+len(GovernedMods()))
}

// TestLoadMissingManifest yields an empty manifest, not an error.
func TestLoadMissingManifest(t *testing.T) {
	t.Parallel()

	manifest, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	require.Empty(t, manifest.Mods)
}
