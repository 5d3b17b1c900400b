package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-homey/internal/bridges/homey"
	"github.com/nerrad567/gray-logic-homey/internal/entity"
)

// SystemMetrics is the JSON summary served on /api/v1/metrics. Prometheus
// series are on /metrics.
type SystemMetrics struct {
	Timestamp     string                `json:"timestamp"`
	Version       string                `json:"version"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	Runtime       RuntimeMetrics        `json:"runtime"`
	WebSocket     WSMetrics             `json:"websocket"`
	Adapters      []homey.AdapterHealth `json:"adapters"`
	Entities      entity.Stats          `json:"entities"`
	Notifications int                   `json:"notifications"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains event stream statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	DroppedEvents    uint64 `json:"dropped_events"`
}

// handleMetrics returns a system metrics summary.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	writeJSON(w, http.StatusOK, SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket:     WSMetrics{ConnectedClients: s.events.ClientCount(), DroppedEvents: s.events.Dropped()},
		Adapters:      s.bridge.AdapterHealth(),
		Entities:      s.registry.GetStats(),
		Notifications: len(s.notifications.List()),
	})
}
