package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func int64Ptr(v int64) *int64 {
	return &v
}

func TestJobRequirementsMatchedBy(t *testing.T) {
	caps := WorkerCapabilities{
		LogicalCores:       8,
		MemoryBytes:        32 * 1024 * 1024 * 1024,
		DiskFreeSpaceBytes: 100 * 1024 * 1024 * 1024,
	}

	t.Run("empty requirements match anything", func(t *testing.T) {
		require.True(t, JobRequirements{}.MatchedBy(caps))
		require.True(t, JobRequirements{}.MatchedBy(WorkerCapabilities{}))
	})

	t.Run("min cores boundary", func(t *testing.T) {
		req := JobRequirements{MinCores: int64Ptr(8)}
		require.False(t, req.MatchedBy(WorkerCapabilities{LogicalCores: 7}))
		require.True(t, req.MatchedBy(WorkerCapabilities{LogicalCores: 8}))
		require.True(t, req.MatchedBy(WorkerCapabilities{LogicalCores: 9}))
	})

	t.Run("min total memory", func(t *testing.T) {
		req := JobRequirements{MinTotalMemoryBytes: int64Ptr(128 * 1024 * 1024 * 1024)}
		small := WorkerCapabilities{LogicalCores: 8, MemoryBytes: 64 * 1024 * 1024 * 1024}
		large := WorkerCapabilities{LogicalCores: 8, MemoryBytes: 256 * 1024 * 1024 * 1024}
		require.False(t, req.MatchedBy(small))
		require.True(t, req.MatchedBy(large))
	})

	t.Run("min memory per core", func(t *testing.T) {
		req := JobRequirements{MinMemoryPerCoreBytes: int64Ptr(4 * 1024 * 1024 * 1024)}
		require.True(t, req.MatchedBy(caps)) // 32GiB / 8 cores = 4GiB per core
		require.False(t, req.MatchedBy(WorkerCapabilities{
			LogicalCores: 16,
			MemoryBytes:  32 * 1024 * 1024 * 1024,
		}))
		// A worker that advertises zero cores can never satisfy a per-core requirement.
		require.False(t, req.MatchedBy(WorkerCapabilities{MemoryBytes: 32 * 1024 * 1024 * 1024}))
	})

	t.Run("min free disk", func(t *testing.T) {
		req := JobRequirements{MinFreeDiskBytes: int64Ptr(200 * 1024 * 1024 * 1024)}
		require.False(t, req.MatchedBy(caps))
		require.True(t, req.MatchedBy(WorkerCapabilities{DiskFreeSpaceBytes: 200 * 1024 * 1024 * 1024}))
	})

	t.Run("all dimensions must pass", func(t *testing.T) {
		req := JobRequirements{
			MinCores:            int64Ptr(4),
			MinTotalMemoryBytes: int64Ptr(16 * 1024 * 1024 * 1024),
			MinFreeDiskBytes:    int64Ptr(500 * 1024 * 1024 * 1024),
		}
		require.False(t, req.MatchedBy(caps))
		require.False(t, req.IsEmpty())
	})
}
