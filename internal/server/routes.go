package server

import "net/http"

// Routes returns the mux served on the chat listener: the WebSocket
// endpoint plus a liveness probe.
func (g *Gateway) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.WebSocketHandler)
	mux.HandleFunc("/healthz", HealthHandler)
	return mux
}

// AssetRoutes returns the mux for the plain HTTP listener that serves the
// client UI. With no asset directory configured it only answers the
// liveness probe.
func AssetRoutes(dir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", HealthHandler)
	if dir != "" {
		mux.Handle("/", http.FileServer(http.Dir(dir)))
	}
	return mux
}
