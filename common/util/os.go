package util

import (
	"strings"
)

// FilterOSArgs masks the values of command-line flags that are not on the
// whitelist, so a full command line can be logged without leaking secrets
// passed as flag values. Flag names themselves are always kept.
func FilterOSArgs(args []string, whitelist []string) []string {
	safe := make(map[string]bool, len(whitelist))
	for _, name := range whitelist {
		safe[name] = true
	}
	filtered := make([]string, len(args))
	maskNext := false
	for i, arg := range args {
		if strings.HasPrefix(arg, "--") {
			maskNext = !safe[strings.TrimPrefix(strings.ToLower(arg), "--")]
			filtered[i] = arg
			continue
		}
		if maskNext {
			filtered[i] = strings.Repeat("*", len(arg))
			maskNext = false
		} else {
			filtered[i] = arg
		}
	}
	return filtered
}
