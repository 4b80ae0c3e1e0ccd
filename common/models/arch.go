package models

import (
	"sort"

	"github.com/pkg/errors"
)

const (
	// ArchMainline is a pseudo-architecture that expands to every mainline arch.
	ArchMainline = "mainline"
	// ArchNoarch is for architecture-independent packages. It must not be
	// mixed with other architectures in the same pipeline.
	ArchNoarch = "noarch"
)

// DefaultMainlineArchs is the standard mainline architecture group.
// Deployments may override the set through configuration.
var DefaultMainlineArchs = []string{
	"amd64",
	"arm64",
	"loongarch64",
	"loongson3",
	"mips64r6el",
	"ppc64el",
	"riscv64",
}

// SanitizeArchs normalises a submitted architecture list: deduplicates,
// expands the mainline group, enforces noarch exclusivity and rejects
// architectures outside the supported set. The result is sorted.
func SanitizeArchs(requested []string, mainline []string) ([]string, error) {
	archs := dedupSorted(requested)
	if len(archs) == 0 {
		return nil, errors.New("error no architecture specified")
	}
	if contains(archs, ArchNoarch) && len(archs) > 1 {
		return nil, errors.Errorf("error architecture %s must not be mixed with others", ArchNoarch)
	}
	if contains(archs, ArchMainline) {
		expanded := make([]string, 0, len(archs)+len(mainline))
		for _, arch := range archs {
			if arch != ArchMainline {
				expanded = append(expanded, arch)
			}
		}
		expanded = append(expanded, mainline...)
		archs = dedupSorted(expanded)
	}
	for _, arch := range archs {
		if arch != ArchNoarch && !contains(mainline, arch) {
			return nil, errors.Errorf("error architecture %s is not supported", arch)
		}
	}
	return archs, nil
}

// DisplayArch maps an architecture onto the worker pool that serves it.
// Architecture-independent and 32-bit optional environment jobs are built by
// the amd64 pool, so dashboards count them there.
func DisplayArch(arch string) string {
	if arch == ArchNoarch || arch == "optenv32" {
		return "amd64"
	}
	return arch
}

// ArchsServedBy returns the job architectures a worker of the given
// architecture can build. The amd64 pool also serves architecture-independent
// and 32-bit optional environment jobs.
func ArchsServedBy(workerArch string) []string {
	if workerArch == "amd64" {
		return []string{"amd64", ArchNoarch, "optenv32"}
	}
	return []string{workerArch}
}

func dedupSorted(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
