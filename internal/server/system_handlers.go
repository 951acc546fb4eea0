package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/marketpulse/internal/cache"
	"github.com/aristath/marketpulse/internal/scheduler"
)

// cpuSampleInterval keeps /api/system/stats responsive while still giving a usable reading
const cpuSampleInterval = 100 * time.Millisecond

// JobRunner is implemented by scheduler.Scheduler
type JobRunner interface {
	RunNow(job scheduler.Job) error
}

// CacheStats is implemented by cache.Store
type CacheStats interface {
	Stats() cache.Stats
}

// SystemStatsResponse is returned by GET /api/system/stats
type SystemStatsResponse struct {
	Version       string      `json:"version"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	Goroutines    int         `json:"goroutines"`
	CPUPercent    float64     `json:"cpu_percent"`
	RAMPercent    float64     `json:"ram_percent"`
	DiskPercent   float64     `json:"disk_percent"`
	DiskFreeMB    float64     `json:"disk_free_mb"`
	StreamClients int         `json:"stream_clients"`
	Cache         cache.Stats `json:"cache"`
}

// SystemHandlers serves process statistics and manual job triggers
type SystemHandlers struct {
	version   string
	dataDir   string
	startedAt time.Time
	cache     CacheStats
	stream    *EventsStreamHandler
	runner    JobRunner
	jobs      map[string]scheduler.Job
	log       zerolog.Logger
}

// NewSystemHandlers creates new system handlers
func NewSystemHandlers(
	version string,
	dataDir string,
	cacheStats CacheStats,
	stream *EventsStreamHandler,
	runner JobRunner,
	jobs map[string]scheduler.Job,
	log zerolog.Logger,
) *SystemHandlers {
	return &SystemHandlers{
		version:   version,
		dataDir:   dataDir,
		startedAt: time.Now(),
		cache:     cacheStats,
		stream:    stream,
		runner:    runner,
		jobs:      jobs,
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// HandleSystemStats handles GET /api/system/stats
func (h *SystemHandlers) HandleSystemStats(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.getSystemStats()
	diskPercent, diskFreeMB := h.getDiskStats()

	response := SystemStatsResponse{
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		RAMPercent:    ramPercent,
		DiskPercent:   diskPercent,
		DiskFreeMB:    diskFreeMB,
	}
	if h.stream != nil {
		response.StreamClients = h.stream.Clients()
	}
	if h.cache != nil {
		response.Cache = h.cache.Stats()
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": response,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleListJobs handles GET /api/system/jobs
func (h *SystemHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.jobs))
	for name := range h.jobs {
		names = append(names, name)
	}
	sort.Strings(names)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"jobs": names,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleTriggerJob handles POST /api/system/jobs/{name}/run
// Runs the job synchronously and reports its outcome
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	job, ok := h.jobs[name]
	if !ok {
		h.writeError(w, http.StatusNotFound, errors.New("unknown job: "+name))
		return
	}

	start := time.Now()
	if err := h.runner.RunNow(job); err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manually triggered job failed")
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"job":         name,
			"status":      "completed",
			"duration_ms": time.Since(start).Milliseconds(),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// getSystemStats returns CPU and RAM usage percentages
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(cpuSampleInterval, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return cpuAvg, 0
	}

	return cpuAvg, memStat.UsedPercent
}

// getDiskStats returns usage of the filesystem holding the data directory
func (h *SystemHandlers) getDiskStats() (float64, float64) {
	if h.dataDir == "" {
		return 0, 0
	}
	usage, err := disk.Usage(h.dataDir)
	if err != nil {
		h.log.Warn().Err(err).Str("path", h.dataDir).Msg("Failed to get disk usage")
		return 0, 0
	}
	return usage.UsedPercent, float64(usage.Free) / 1024 / 1024
}

func (h *SystemHandlers) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
	})
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
