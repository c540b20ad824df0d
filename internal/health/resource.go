// Package health reports process resource usage alongside pipeline runs, the
// same CPU/RAM snapshot the donor's system-status endpoint exposes over HTTP,
// adapted here into a log-only sample taken around each scheduled job since
// this core ships no HTTP surface of its own (§6 process lifecycle).
package health

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Snapshot is a point-in-time process/host resource reading.
type Snapshot struct {
	CPUPercent float64
	RAMPercent float64
}

// Sample takes a short (100ms) CPU sample and an instantaneous memory
// reading, logging a warning and returning the zero value for whichever
// reading fails rather than aborting the caller's job.
func Sample(log zerolog.Logger) Snapshot {
	var snap Snapshot

	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		log.Warn().Err(err).Msg("cpu sample failed")
	} else if len(cpuPercent) > 0 {
		snap.CPUPercent = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		log.Warn().Err(err).Msg("memory sample failed")
	} else {
		snap.RAMPercent = memStat.UsedPercent
	}

	return snap
}

// LogSample samples and logs resource usage tagged with the given job name,
// used as a lightweight wrapper around nightly pipeline and intraday monitor
// runs to surface load trends in the structured log stream.
func LogSample(log zerolog.Logger, job string) {
	snap := Sample(log)
	log.Info().Str("job", job).Float64("cpu_percent", snap.CPUPercent).
		Float64("ram_percent", snap.RAMPercent).Msg("resource sample")
}
