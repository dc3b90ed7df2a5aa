package monitoring

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const gib = 1024 * 1024 * 1024

// SystemMetrics são leituras pontuais do host; não acumulam.
type SystemMetrics struct {
	CPUPercent        float64 `json:"cpu_percent"`
	MemoryPercent     float64 `json:"memory_percent"`
	DiskUsagePercent  float64 `json:"disk_usage_percent"`
	ProcessMemoryMB   float64 `json:"process_memory_mb"`
	ProcessCPUPercent float64 `json:"process_cpu_percent"`
	OpenFiles         int     `json:"open_files"`
}

type DiskUsage struct {
	UsedPercent float64 `json:"used_percent"`
	FreeGB      float64 `json:"free_gb"`
	TotalGB     float64 `json:"total_gb"`
}

type MemoryUsage struct {
	UsedPercent float64 `json:"used_percent"`
	AvailableGB float64 `json:"available_gb"`
	TotalGB     float64 `json:"total_gb"`
}

// SystemProbe lê o estado do host. Em testes use um fake.
type SystemProbe interface {
	System(ctx context.Context) (SystemMetrics, error)
	Disk(ctx context.Context) (DiskUsage, error)
	Memory(ctx context.Context) (MemoryUsage, error)
}

// HostProbe implementa SystemProbe com gopsutil.
type HostProbe struct {
	diskPath string
	pid      int32
}

// NewHostProbe mede o disco montado em diskPath ("/" se vazio).
func NewHostProbe(diskPath string) *HostProbe {
	if diskPath == "" {
		diskPath = "/"
	}
	return &HostProbe{diskPath: diskPath, pid: int32(os.Getpid())}
}

// System preenche o que conseguir; leituras que falham ficam zeradas e o erro
// volta agregado.
func (h *HostProbe) System(ctx context.Context) (SystemMetrics, error) {
	var (
		out  SystemMetrics
		errs []error
	)

	// intervalo 0: compara com a leitura anterior, sem bloquear a requisição
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		errs = append(errs, fmt.Errorf("cpu: %w", err))
	} else if len(pct) > 0 {
		out.CPUPercent = round2(pct[0])
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("memory: %w", err))
	} else {
		out.MemoryPercent = round2(vm.UsedPercent)
	}

	if du, err := disk.UsageWithContext(ctx, h.diskPath); err != nil {
		errs = append(errs, fmt.Errorf("disk %s: %w", h.diskPath, err))
	} else {
		out.DiskUsagePercent = round2(du.UsedPercent)
	}

	p, err := process.NewProcessWithContext(ctx, h.pid)
	if err != nil {
		errs = append(errs, fmt.Errorf("process: %w", err))
		return out, errors.Join(errs...)
	}
	if mi, err := p.MemoryInfoWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("process memory: %w", err))
	} else {
		out.ProcessMemoryMB = round2(float64(mi.RSS) / 1024 / 1024)
	}
	if pct, err := p.CPUPercentWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("process cpu: %w", err))
	} else {
		out.ProcessCPUPercent = round2(pct)
	}
	if files, err := p.OpenFilesWithContext(ctx); err != nil {
		errs = append(errs, fmt.Errorf("open files: %w", err))
	} else {
		out.OpenFiles = len(files)
	}

	return out, errors.Join(errs...)
}

func (h *HostProbe) Disk(ctx context.Context) (DiskUsage, error) {
	du, err := disk.UsageWithContext(ctx, h.diskPath)
	if err != nil {
		return DiskUsage{}, fmt.Errorf("disk %s: %w", h.diskPath, err)
	}
	used := 0.0
	if du.Total > 0 {
		used = float64(du.Used) / float64(du.Total) * 100
	}
	return DiskUsage{
		UsedPercent: round2(used),
		FreeGB:      round2(float64(du.Free) / gib),
		TotalGB:     round2(float64(du.Total) / gib),
	}, nil
}

func (h *HostProbe) Memory(ctx context.Context) (MemoryUsage, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemoryUsage{}, fmt.Errorf("memory: %w", err)
	}
	return MemoryUsage{
		UsedPercent: round2(vm.UsedPercent),
		AvailableGB: round2(float64(vm.Available) / gib),
		TotalGB:     round2(float64(vm.Total) / gib),
	}, nil
}
