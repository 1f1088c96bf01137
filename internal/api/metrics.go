package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	Inbound       InboundMetrics `json:"inbound"`
	Entities      EntityMetrics  `json:"entities"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// InboundMetrics counts inbound messages by outcome.
type InboundMetrics struct {
	Consumed  uint64 `json:"consumed"`
	Held      uint64 `json:"held"`
	Unmatched uint64 `json:"unmatched"`
}

// EntityMetrics contains entity table statistics.
type EntityMetrics struct {
	Total       int            `json:"total"`
	Initialized int            `json:"initialized"`
	ByBehavior  map[string]int `json:"by_behavior"`
}

// handleMetrics returns runtime and traffic metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	snap := s.node.Snapshot()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		Inbound: InboundMetrics{
			Consumed:  snap.Sequence.Consumed,
			Held:      snap.Sequence.Held,
			Unmatched: snap.Sequence.Unmatched,
		},
		Entities: EntityMetrics{
			Total:      len(snap.Entities),
			ByBehavior: make(map[string]int),
		},
	}
	for _, e := range snap.Entities {
		metrics.Entities.ByBehavior[e.Behavior]++
		if e.Initialized {
			metrics.Entities.Initialized++
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
