package server

import (
	"fmt"
	"net/http"
)

// WebSocketHandler upgrades the request and registers the connection with
// the gateway loop, which starts the pumps.
func (g *Gateway) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn().Err(err).Str("addr", r.RemoteAddr).Msg("upgrade failed")
		return
	}

	select {
	case g.register <- newClient(conn, g, r.RemoteAddr):
	case <-g.ctx.Done():
		_ = conn.Close()
	}
}

// HealthHandler reports process liveness.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "ok")
}
