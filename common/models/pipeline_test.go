package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidatePackageName(t *testing.T) {
	accepted := []string{
		"llvm",
		"gcc-12",
		"python-3.11",
		"libstdc++6",
		"groups/stable",
		"extra-multimedia:mpv",
		"a,b",
	}
	for _, name := range accepted {
		t.Run("accepts "+name, func(t *testing.T) {
			require.NoError(t, ValidatePackageName(name))
		})
	}

	rejected := []string{
		"",
		"foo; rm -rf /",
		"foo bar",
		"foo$(id)",
		"foo`id`",
		"foo|bar",
		"foo\nbar",
		"日本語",
	}
	for _, name := range rejected {
		t.Run("rejects "+name, func(t *testing.T) {
			require.Error(t, ValidatePackageName(name))
		})
	}
}

func TestValidateGitBranch(t *testing.T) {
	require.NoError(t, ValidateGitBranch("stable"))
	require.NoError(t, ValidateGitBranch("topic/llvm-16"))
	require.Error(t, ValidateGitBranch("stable; touch /tmp/pwned"))
	require.Error(t, ValidateGitBranch("name with spaces"))
}
