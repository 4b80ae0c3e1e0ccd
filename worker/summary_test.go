package worker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const failedBuildOutput = `ciel: updating instance...
[acbs] build started
========================================
ACBS Build Summary
========================================
Package(s) built:
bash (amd64 @ 5.2.15-0)
coreutils (amd64 @ 9.3-1)

Failed package:
llvm (amd64 @ 16.0.6-0)

Package(s) not built due to previous build failure:
rustc (amd64 @ 1.71.0-0)
firefox (amd64 @ 115.0-0)
========================================
`

const cleanBuildOutput = `========================================
ACBS Build Summary
========================================
Package(s) built:
bash (amd64 @ 5.2.15-0)
========================================
`

func TestParseBuildSummaryFailedBuild(t *testing.T) {
	summary := ParseBuildSummary(failedBuildOutput)
	require.Equal(t, []string{"bash", "coreutils"}, summary.SuccessfulPackages)
	require.NotNil(t, summary.FailedPackage)
	require.Equal(t, "llvm", *summary.FailedPackage)
	require.Equal(t, []string{"rustc", "firefox"}, summary.SkippedPackages)
}

func TestParseBuildSummaryCleanBuild(t *testing.T) {
	summary := ParseBuildSummary(cleanBuildOutput)
	require.Equal(t, []string{"bash"}, summary.SuccessfulPackages)
	require.Nil(t, summary.FailedPackage)
	require.Empty(t, summary.SkippedPackages)
}

func TestParseBuildSummaryNoSummaryBlock(t *testing.T) {
	summary := ParseBuildSummary("make: *** [all] Error 2\n")
	require.Empty(t, summary.SuccessfulPackages)
	require.Nil(t, summary.FailedPackage)
	require.Empty(t, summary.SkippedPackages)
}

// Section headers reset on a blank line, so trailing chatter after the
// summary block must not leak into the package lists.
func TestParseBuildSummarySectionReset(t *testing.T) {
	output := `========================================
ACBS Build Summary
========================================
Package(s) built:
bash (amd64 @ 5.2.15-0)

ciel: exited (see /var/log/ciel.log)
`
	summary := ParseBuildSummary(output)
	require.Equal(t, []string{"bash"}, summary.SuccessfulPackages)
	require.Nil(t, summary.FailedPackage)
	require.Empty(t, summary.SkippedPackages)
}
