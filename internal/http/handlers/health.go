package handlers

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/shtefko55/toolsy/internal/ffmpeg"
	"github.com/shtefko55/toolsy/internal/models"
	"github.com/shtefko55/toolsy/internal/registry"
)

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	version   string
	startTime time.Time
	store     registry.Store
	detector  *ffmpeg.BinaryDetector
	dataPath  string
}

// NewHealthHandler creates a new health handler. dataPath is the
// storage base directory whose disk headroom is reported; empty skips
// the disk section.
func NewHealthHandler(version string, store registry.Store, detector *ffmpeg.BinaryDetector, dataPath string) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
		store:     store,
		detector:  detector,
		dataPath:  dataPath,
	}
}

// CPUInfo holds CPU load information.
type CPUInfo struct {
	Cores              int     `json:"cores"`
	Load1Min           float64 `json:"load_1min"`
	Load5Min           float64 `json:"load_5min"`
	Load15Min          float64 `json:"load_15min"`
	LoadPercentage1Min float64 `json:"load_percentage_1min"`
}

// MemoryInfo holds system and process memory information.
type MemoryInfo struct {
	TotalMemoryMB     float64 `json:"total_memory_mb"`
	UsedMemoryMB      float64 `json:"used_memory_mb"`
	AvailableMemoryMB float64 `json:"available_memory_mb"`
	ProcessMemoryMB   float64 `json:"process_memory_mb"`
	// ChildProcessesMB covers running ffmpeg children.
	ChildProcessesMB  float64 `json:"child_processes_mb"`
	ChildProcessCount int     `json:"child_process_count"`
}

// DiskInfo reports headroom of the storage volume.
type DiskInfo struct {
	Path        string  `json:"path,omitempty"`
	TotalGB     float64 `json:"total_gb"`
	FreeGB      float64 `json:"free_gb"`
	UsedPercent float64 `json:"used_percent"`
}

// JobCounts is the per-status job tally.
type JobCounts struct {
	Total      int `json:"total"`
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// FFmpegHealth reports the detected ffmpeg build.
type FFmpegHealth struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the health check response body.
type HealthResponse struct {
	Status        string       `json:"status"`
	Timestamp     string       `json:"timestamp"`
	Version       string       `json:"version"`
	Uptime        string       `json:"uptime"`
	UptimeSeconds float64      `json:"uptime_seconds"`
	CPUInfo       CPUInfo      `json:"cpu"`
	Memory        MemoryInfo   `json:"memory"`
	Disk          DiskInfo     `json:"disk"`
	Jobs          JobCounts    `json:"jobs"`
	FFmpeg        FFmpegHealth `json:"ffmpeg"`
}

// HealthOutput is the health check response.
type HealthOutput struct {
	Body HealthResponse
}

// Register registers the health route with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns service health including system metrics and job counts",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// GetHealth returns the health status of the service.
func (h *HealthHandler) GetHealth(ctx context.Context, input *struct{}) (*HealthOutput, error) {
	now := time.Now()
	uptime := now.Sub(h.startTime)

	ffmpegHealth := h.getFFmpegHealth(ctx)

	status := "healthy"
	if ffmpegHealth.Status != "ok" {
		status = "degraded"
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:        status,
			Timestamp:     now.UTC().Format(time.RFC3339),
			Version:       h.version,
			Uptime:        uptime.Round(time.Second).String(),
			UptimeSeconds: uptime.Seconds(),
			CPUInfo:       h.getCPUInfo(),
			Memory:        h.getMemoryInfo(),
			Disk:          h.getDiskInfo(),
			Jobs:          h.getJobCounts(),
			FFmpeg:        ffmpegHealth,
		},
	}, nil
}

func (h *HealthHandler) getCPUInfo() CPUInfo {
	cores := runtime.NumCPU()
	info := CPUInfo{Cores: cores}

	loadAvg, err := load.Avg()
	if err == nil && loadAvg != nil {
		info.Load1Min = loadAvg.Load1
		info.Load5Min = loadAvg.Load5
		info.Load15Min = loadAvg.Load15
		if cores > 0 {
			info.LoadPercentage1Min = (loadAvg.Load1 / float64(cores)) * 100
		}
	}

	return info
}

func (h *HealthHandler) getMemoryInfo() MemoryInfo {
	info := MemoryInfo{}

	vmStat, err := mem.VirtualMemory()
	if err == nil && vmStat != nil {
		info.TotalMemoryMB = float64(vmStat.Total) / 1024 / 1024
		info.UsedMemoryMB = float64(vmStat.Used) / 1024 / 1024
		info.AvailableMemoryMB = float64(vmStat.Available) / 1024 / 1024
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return info
	}

	if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
		info.ProcessMemoryMB = float64(memInfo.RSS) / 1024 / 1024
	}

	if children, err := proc.Children(); err == nil {
		info.ChildProcessCount = len(children)
		for _, child := range children {
			if childMem, err := child.MemoryInfo(); err == nil && childMem != nil {
				info.ChildProcessesMB += float64(childMem.RSS) / 1024 / 1024
			}
		}
	}

	return info
}

func (h *HealthHandler) getDiskInfo() DiskInfo {
	if h.dataPath == "" {
		return DiskInfo{}
	}

	usage, err := disk.Usage(h.dataPath)
	if err != nil || usage == nil {
		return DiskInfo{Path: h.dataPath}
	}

	return DiskInfo{
		Path:        h.dataPath,
		TotalGB:     float64(usage.Total) / 1024 / 1024 / 1024,
		FreeGB:      float64(usage.Free) / 1024 / 1024 / 1024,
		UsedPercent: usage.UsedPercent,
	}
}

func (h *HealthHandler) getJobCounts() JobCounts {
	counts := JobCounts{}
	if h.store == nil {
		return counts
	}

	for _, job := range h.store.List() {
		counts.Total++
		switch job.Status {
		case models.JobStatusQueued:
			counts.Queued++
		case models.JobStatusProcessing:
			counts.Processing++
		case models.JobStatusCompleted:
			counts.Completed++
		case models.JobStatusFailed:
			counts.Failed++
		}
	}
	return counts
}

func (h *HealthHandler) getFFmpegHealth(ctx context.Context) FFmpegHealth {
	if h.detector == nil {
		return FFmpegHealth{Status: "unknown"}
	}

	info, err := h.detector.Detect(ctx)
	if err != nil {
		return FFmpegHealth{Status: "unavailable", Error: err.Error()}
	}

	return FFmpegHealth{
		Status:  "ok",
		Version: info.Version,
		Path:    info.FFmpegPath,
	}
}
