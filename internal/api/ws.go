package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gobwas/ws"

	"github.com/Vulkestra/AUS-Arch-User-Store/internal/channel"
)

// handleWebSocket upgrades the request and serves one client channel until
// the client goes away.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		// UpgradeHTTP has already answered the request
		s.logger.Warn("websocket upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}
	// Clear any deadline left over from reading the request headers
	conn.SetDeadline(time.Time{})

	ch := channel.New(s.registry.NextID(), channel.NewWSConn(conn), s.dispatcher, s.logger)
	if err := s.registry.Register(ch); err != nil {
		s.logger.Info("rejecting websocket client during shutdown", "client", ch.ID())
		ch.Close()
		return
	}
	defer func() {
		s.registry.Unregister(ch)
		ch.Close()
	}()

	if err := ch.Serve(r.Context()); err != nil {
		s.logger.Warn("websocket channel ended with error", "client", ch.ID(), "error", err)
	}
}

func isWebSocketUpgrade(r *http.Request) bool {
	if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return false
	}
	for _, v := range strings.Split(r.Header.Get("Connection"), ",") {
		if strings.EqualFold(strings.TrimSpace(v), "upgrade") {
			return true
		}
	}
	return false
}
