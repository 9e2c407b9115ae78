package version

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func withBuild(t *testing.T, version, commit, date string) {
	t.Helper()
	originalVersion, originalCommit, originalDate := Version, Commit, Date
	t.Cleanup(func() {
		Version, Commit, Date = originalVersion, originalCommit, originalDate
	})
	Version, Commit, Date = version, commit, date
}

func TestStringIncludesBuildMetadata(t *testing.T) {
	withBuild(t, "1.2.3", "abc123", "2026-02-18")

	got := String()
	require.Contains(t, got, "hark 1.2.3")
	require.Contains(t, got, "commit=abc123")
	require.Contains(t, got, "date=2026-02-18")
	require.Contains(t, got, "go=")
}

func TestUserAgent(t *testing.T) {
	withBuild(t, "0.4.0", "x", "y")
	require.Equal(t, "hark/0.4.0", UserAgent())
}
