package worker

import "strings"

// BuildSummary is the per-package outcome parsed out of the acbs summary
// block that ciel prints at the end of a build.
type BuildSummary struct {
	// SuccessfulPackages lists the packages that built cleanly, in build order.
	SuccessfulPackages []string
	// FailedPackage is the package the build stopped at, if any.
	FailedPackage *string
	// SkippedPackages lists the packages not attempted because of the failure.
	SkippedPackages []string
}

// Section headers inside the acbs summary block. Package lines under each
// header look like "bash (amd64 @ 5.2.15-0)".
const (
	summaryBanner            = "========================================"
	summaryTitle             = "ACBS Build"
	summaryFailedHeader      = "Failed package:"
	summaryBuiltHeader       = "Package(s) built:"
	summaryNotBuiltHeader    = "Package(s) not built due to previous build failure:"
	summaryPackageNameMarker = "("
)

// ParseBuildSummary scans the builder's stdout for the acbs summary block
// and collects the built, failed and skipped package lists. Output with no
// summary block yields an empty summary; callers fall back on the build's
// exit status alone.
func ParseBuildSummary(output string) *BuildSummary {
	summary := &BuildSummary{}
	var (
		foundBanner bool
		foundTitle  bool
		inFailed    bool
		inBuilt     bool
		inNotBuilt  bool
	)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.Contains(line, summaryBanner):
			foundBanner = true
		case strings.Contains(line, summaryTitle):
			foundTitle = true
		case foundBanner && foundTitle:
			switch {
			case strings.HasPrefix(line, summaryFailedHeader):
				inFailed, inBuilt, inNotBuilt = true, false, false
			case strings.HasPrefix(line, summaryBuiltHeader):
				inFailed, inBuilt, inNotBuilt = false, true, false
			case strings.HasPrefix(line, summaryNotBuiltHeader):
				inFailed, inBuilt, inNotBuilt = false, false, true
			case strings.Contains(line, summaryPackageNameMarker):
				name := strings.SplitN(strings.TrimSpace(line), " ", 2)[0]
				if name == "" {
					continue
				}
				switch {
				case inBuilt:
					summary.SuccessfulPackages = append(summary.SuccessfulPackages, name)
				case inFailed:
					nameCopy := name
					summary.FailedPackage = &nameCopy
				case inNotBuilt:
					summary.SkippedPackages = append(summary.SkippedPackages, name)
				}
			case line == "":
				inFailed, inBuilt, inNotBuilt = false, false, false
			}
		}
	}
	return summary
}
