package services

import (
	"context"
	"os"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	psnet "github.com/shirou/gopsutil/v4/net"
)

// HostMemory is system-wide memory in bytes.
type HostMemory struct {
	Total       uint64  `json:"total"`
	Available   uint64  `json:"available"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"used_percent"`
}

type DiskUsage struct {
	Device      string  `json:"device"`
	Mountpoint  string  `json:"mountpoint"`
	Fstype      string  `json:"fstype"`
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"used_percent"`
}

type NetAddress struct {
	Address string `json:"address"`
	MAC     string `json:"mac"`
}

// HostSummary is the short host report shown on the dashboard header.
type HostSummary struct {
	Hostname  string      `json:"hostname"`
	UptimeSec uint64      `json:"uptime_sec"`
	Load      []float64   `json:"load"`
	Memory    *HostMemory `json:"host_mem"`
}

// HostOverview is the full read-only host report.
type HostOverview struct {
	HostSummary
	Now      string                  `json:"now"`
	OS       string                  `json:"os"`
	Platform string                  `json:"platform"`
	Kernel   string                  `json:"kernel"`
	CPUCount int                     `json:"cpu_count"`
	Disks    []DiskUsage             `json:"disks"`
	Net      map[string][]NetAddress `json:"net"`
}

// SystemInfo collects host metrics. Each collector is best effort: a failure
// leaves its field empty and is logged.
type SystemInfo struct {
	now func() time.Time
}

func NewSystemInfo() *SystemInfo {
	return &SystemInfo{now: time.Now}
}

func (s *SystemInfo) Summary(ctx context.Context) HostSummary {
	sum := HostSummary{Load: []float64{}}
	sum.Hostname, _ = os.Hostname()
	if up, err := host.UptimeWithContext(ctx); err == nil {
		sum.UptimeSec = up
	} else {
		log.Debug().Err(err).Msg("Host uptime unavailable")
	}
	if avg, err := load.AvgWithContext(ctx); err == nil {
		sum.Load = []float64{avg.Load1, avg.Load5, avg.Load15}
	} else {
		log.Debug().Err(err).Msg("Load average unavailable")
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		sum.Memory = &HostMemory{Total: vm.Total, Available: vm.Available, Used: vm.Used, UsedPercent: vm.UsedPercent}
	} else {
		log.Debug().Err(err).Msg("Host memory unavailable")
	}
	return sum
}

func (s *SystemInfo) Overview(ctx context.Context) HostOverview {
	ov := HostOverview{
		HostSummary: s.Summary(ctx),
		Now:         s.now().UTC().Format(time.RFC3339),
		Disks:       []DiskUsage{},
		Net:         map[string][]NetAddress{},
	}
	if info, err := host.InfoWithContext(ctx); err == nil {
		ov.OS, ov.Platform, ov.Kernel = info.OS, info.Platform+" "+info.PlatformVersion, info.KernelVersion
	} else {
		log.Debug().Err(err).Msg("Host info unavailable")
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		ov.CPUCount = n
	} else {
		log.Debug().Err(err).Msg("CPU count unavailable")
	}
	ov.Disks = s.disks(ctx)
	ov.Net = s.interfaces(ctx)
	return ov
}

func (s *SystemInfo) disks(ctx context.Context) []DiskUsage {
	out := []DiskUsage{}
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		log.Debug().Err(err).Msg("Disk partitions unavailable")
		return out
	}
	for _, p := range parts {
		u, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil || u.Total == 0 {
			continue
		}
		out = append(out, DiskUsage{
			Device:      p.Device,
			Mountpoint:  p.Mountpoint,
			Fstype:      p.Fstype,
			Total:       u.Total,
			Used:        u.Used,
			UsedPercent: u.UsedPercent,
		})
	}
	return out
}

// interfaces lists non-loopback interfaces with their addresses.
func (s *SystemInfo) interfaces(ctx context.Context) map[string][]NetAddress {
	out := map[string][]NetAddress{}
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Network interfaces unavailable")
		return out
	}
	for _, iface := range ifaces {
		if slices.Contains(iface.Flags, "loopback") {
			continue
		}
		addrs := make([]NetAddress, 0, len(iface.Addrs))
		for _, a := range iface.Addrs {
			addrs = append(addrs, NetAddress{Address: a.Addr, MAC: iface.HardwareAddr})
		}
		out[iface.Name] = addrs
	}
	return out
}
