package api

import (
	"net/http"
	"time"

	"github.com/Vulkestra/AUS-Arch-User-Store/internal/sse"
)

// handleSystemStream streams host usage via SSE
func (s *Server) handleSystemStream(w http.ResponseWriter, r *http.Request) {
	sw, err := sse.NewWriter(w)
	if err != nil {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	s.logger.Debug("SSE client connected for system stats")

	if err := sw.Retry(3 * time.Second); err != nil {
		return
	}
	if err := sw.SendEvent("stats", s.stats.Stats()); err != nil {
		return
	}

	ticker := time.NewTicker(s.streamEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("SSE client disconnected")
			return
		case <-ticker.C:
			if err := sw.SendEvent("stats", s.stats.Stats()); err != nil {
				s.logger.Debug("SSE write failed", "error", err)
				return
			}
		}
	}
}
