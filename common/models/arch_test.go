package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeArchs(t *testing.T) {
	t.Run("dedup and sort", func(t *testing.T) {
		archs, err := SanitizeArchs([]string{"arm64", "amd64", "arm64"}, DefaultMainlineArchs)
		require.NoError(t, err)
		require.Equal(t, []string{"amd64", "arm64"}, archs)
	})

	t.Run("mainline expands to the whole group", func(t *testing.T) {
		archs, err := SanitizeArchs([]string{"mainline"}, DefaultMainlineArchs)
		require.NoError(t, err)
		require.Equal(t, DefaultMainlineArchs, archs)
	})

	t.Run("mainline merges with explicit archs", func(t *testing.T) {
		archs, err := SanitizeArchs([]string{"amd64", "mainline"}, DefaultMainlineArchs)
		require.NoError(t, err)
		require.Equal(t, DefaultMainlineArchs, archs)
	})

	t.Run("noarch is exclusive", func(t *testing.T) {
		_, err := SanitizeArchs([]string{"noarch", "amd64"}, DefaultMainlineArchs)
		require.Error(t, err)

		archs, err := SanitizeArchs([]string{"noarch"}, DefaultMainlineArchs)
		require.NoError(t, err)
		require.Equal(t, []string{"noarch"}, archs)
	})

	t.Run("unsupported arch is rejected", func(t *testing.T) {
		_, err := SanitizeArchs([]string{"sparc64"}, DefaultMainlineArchs)
		require.Error(t, err)
	})

	t.Run("empty list is rejected", func(t *testing.T) {
		_, err := SanitizeArchs(nil, DefaultMainlineArchs)
		require.Error(t, err)
	})
}

func TestDisplayArch(t *testing.T) {
	require.Equal(t, "amd64", DisplayArch("noarch"))
	require.Equal(t, "amd64", DisplayArch("optenv32"))
	require.Equal(t, "amd64", DisplayArch("amd64"))
	require.Equal(t, "riscv64", DisplayArch("riscv64"))
}
