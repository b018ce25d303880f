package server

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/process"
)

// HostInfo describes the machine and process serving the fleet.
type HostInfo struct {
	Hostname      string `json:"hostname"`
	OS            string `json:"os"`
	UptimeSeconds uint64 `json:"uptime_seconds"`
	ProcessRSSMB  uint64 `json:"process_rss_mb"`
	Goroutines    int    `json:"goroutines"`
}

// collectHostInfo is best effort: fields gopsutil cannot read stay zero.
func collectHostInfo() HostInfo {
	info := HostInfo{OS: runtime.GOOS, Goroutines: runtime.NumGoroutine()}

	if h, err := os.Hostname(); err == nil {
		info.Hostname = h
	}
	if hi, err := host.Info(); err == nil {
		if hi.Platform != "" {
			info.OS = hi.Platform
			if hi.PlatformVersion != "" {
				info.OS += " " + hi.PlatformVersion
			}
		}
		info.UptimeSeconds = hi.Uptime
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfo(); err == nil {
			info.ProcessRSSMB = mi.RSS / (1024 * 1024)
		}
	}
	return info
}
