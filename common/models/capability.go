package models

// JobRequirements are the optional capability constraints attached to a job.
// A nil field places no constraint on that dimension.
type JobRequirements struct {
	// MinCores is the minimum number of logical CPU cores the worker must have.
	MinCores *int64 `json:"min_cores,omitempty" db:"job_require_min_cores"`
	// MinTotalMemoryBytes is the minimum total memory the worker must have.
	MinTotalMemoryBytes *int64 `json:"min_total_memory_bytes,omitempty" db:"job_require_min_total_memory_bytes"`
	// MinMemoryPerCoreBytes is the minimum memory per logical core the worker must have.
	MinMemoryPerCoreBytes *int64 `json:"min_memory_per_core_bytes,omitempty" db:"job_require_min_memory_per_core_bytes"`
	// MinFreeDiskBytes is the minimum free disk space the worker must have.
	MinFreeDiskBytes *int64 `json:"min_free_disk_bytes,omitempty" db:"job_require_min_free_disk_bytes"`
}

// IsEmpty returns true if no dimension is constrained.
func (r JobRequirements) IsEmpty() bool {
	return r.MinCores == nil && r.MinTotalMemoryBytes == nil && r.MinMemoryPerCoreBytes == nil && r.MinFreeDiskBytes == nil
}

// MatchedBy returns true if the worker's advertised capabilities satisfy
// every non-nil requirement. Architecture is matched separately by the
// caller before capabilities are consulted.
func (r JobRequirements) MatchedBy(caps WorkerCapabilities) bool {
	if r.MinCores != nil && caps.LogicalCores < *r.MinCores {
		return false
	}
	if r.MinTotalMemoryBytes != nil && caps.MemoryBytes < *r.MinTotalMemoryBytes {
		return false
	}
	if r.MinMemoryPerCoreBytes != nil {
		if caps.LogicalCores <= 0 {
			return false
		}
		if caps.MemoryBytes/caps.LogicalCores < *r.MinMemoryPerCoreBytes {
			return false
		}
	}
	if r.MinFreeDiskBytes != nil && caps.DiskFreeSpaceBytes < *r.MinFreeDiskBytes {
		return false
	}
	return true
}

// WorkerCapabilities is the hardware a worker advertises on every heartbeat.
type WorkerCapabilities struct {
	// LogicalCores is the number of logical CPU cores on the machine.
	LogicalCores int64 `json:"logical_cores" db:"worker_logical_cores"`
	// MemoryBytes is the total physical memory of the machine.
	MemoryBytes int64 `json:"memory_bytes" db:"worker_memory_bytes"`
	// DiskFreeSpaceBytes is the free disk space in the build area.
	DiskFreeSpaceBytes int64 `json:"disk_free_space_bytes" db:"worker_disk_free_space_bytes"`
}
