package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTruncateStringToMaxLength(t *testing.T) {
	require.Equal(t, "short", TruncateStringToMaxLength("short", 10))
	require.Equal(t, "exact", TruncateStringToMaxLength("exact", 5))
	require.Equal(t, "abcd...", TruncateStringToMaxLength("abcdefghij", 7))
	require.Equal(t, "abc", TruncateStringToMaxLength("abcdefghij", 3))
	require.Equal(t, "héllo w...", TruncateStringToMaxLength("héllo wörld", 10))
}
