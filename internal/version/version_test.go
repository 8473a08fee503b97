package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestVersionStrings checks the CLI version line carries the semantic
// version and the build provenance placeholders.
func TestVersionStrings(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, Short())

	full := Full()
	require.Contains(t, full, "factorio-manager")
	require.Contains(t, full, Short())
	require.Contains(t, full, Commit)
}
