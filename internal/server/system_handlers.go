package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/forexbot/internal/database"
)

// SystemHandlers reports host and database health.
type SystemHandlers struct {
	inference   InferenceService
	historyDB   *database.DB
	startupTime time.Time
	log         zerolog.Logger
}

// NewSystemHandlers creates system handlers. historyDB may be nil.
func NewSystemHandlers(inference InferenceService, historyDB *database.DB, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		inference:   inference,
		historyDB:   historyDB,
		startupTime: time.Now(),
		log:         log.With().Str("component", "system_handlers").Logger(),
	}
}

// SystemStatusResponse is the body of GET /api/system/status.
type SystemStatusResponse struct {
	Status         string  `json:"status"`
	UptimeHours    float64 `json:"uptime_hours"`
	CPUPercent     float64 `json:"cpu_percent"`
	RAMPercent     float64 `json:"ram_percent"`
	InferenceState string  `json:"inference_state"`
	LastCheck      string  `json:"last_check"`
}

// HandleSystemStatus returns host load and whether an inference job is running.
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, ramPercent := h.getSystemStats()

	writeJSON(h.log, w, http.StatusOK, SystemStatusResponse{
		Status:         "healthy",
		UptimeHours:    time.Since(h.startupTime).Hours(),
		CPUPercent:     cpuPercent,
		RAMPercent:     ramPercent,
		InferenceState: h.inference.Status().State.String(),
		LastCheck:      time.Now().Format(time.RFC3339),
	})
}

// HandleDatabaseStats returns size and page statistics of the history database.
// GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	if h.historyDB == nil {
		writeError(h.log, w, http.StatusServiceUnavailable, "job history is not enabled")
		return
	}

	stats, err := h.historyDB.GetStats()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get database stats")
		writeError(h.log, w, http.StatusInternalServerError, "failed to get database stats")
		return
	}

	writeJSON(h.log, w, http.StatusOK, map[string]interface{}{
		h.historyDB.Name(): stats,
	})
}

// getSystemStats samples CPU over 100ms; memory is instant.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}
