// Package diag collects a process and host snapshot for the startup log.
package diag

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"overlayctl/internal/logging"
)

// Snapshot describes the running process and its host.
type Snapshot struct {
	PID        int
	RSS        uint64
	Threads    int32
	Goroutines int
	Elevated   bool

	OS              string
	Platform        string
	PlatformVersion string
	KernelVersion   string
	Hostname        string
	TotalMemory     uint64
}

// Collect gathers a snapshot. Fields gopsutil cannot read on this platform
// are left zero; the error reports the first failure.
func Collect(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		PID:        os.Getpid(),
		OS:         runtime.GOOS,
		Goroutines: runtime.NumGoroutine(),
		Elevated:   Elevated(),
	}

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	proc, err := process.NewProcessWithContext(ctx, int32(snap.PID))
	if err != nil {
		keep(fmt.Errorf("failed to open process: %w", err))
	} else {
		if mi, err := proc.MemoryInfoWithContext(ctx); err != nil {
			keep(fmt.Errorf("failed to read memory info: %w", err))
		} else {
			snap.RSS = mi.RSS
		}
		if n, err := proc.NumThreadsWithContext(ctx); err != nil {
			keep(fmt.Errorf("failed to read thread count: %w", err))
		} else {
			snap.Threads = n
		}
	}

	if info, err := host.InfoWithContext(ctx); err != nil {
		keep(fmt.Errorf("failed to read host info: %w", err))
	} else {
		snap.Platform = info.Platform
		snap.PlatformVersion = info.PlatformVersion
		snap.KernelVersion = info.KernelVersion
		snap.Hostname = info.Hostname
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		keep(fmt.Errorf("failed to read memory totals: %w", err))
	} else {
		snap.TotalMemory = vm.Total
	}

	return snap, firstErr
}

// Log collects a snapshot and writes it at DEBUG.
func Log(ctx context.Context, log *logging.Logger) {
	snap, err := Collect(ctx)
	if err != nil {
		log.Debug("diagnostics incomplete", "error", err)
	}
	log.Debug("diagnostics",
		"pid", snap.PID,
		"rss_bytes", snap.RSS,
		"threads", snap.Threads,
		"goroutines", snap.Goroutines,
		"elevated", snap.Elevated,
		"os", snap.OS,
		"platform", snap.Platform,
		"platform_version", snap.PlatformVersion,
		"kernel", snap.KernelVersion,
		"host", snap.Hostname,
		"total_memory_bytes", snap.TotalMemory,
	)
}
