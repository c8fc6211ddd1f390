package server

import (
	"context"
	"net/http"
	"time"
)

// NewChatServer builds the HTTP server hosting the WebSocket endpoint.
// Connections are long-lived, so only the handshake is deadlined here; the
// pumps manage per-message deadlines themselves.
func NewChatServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
	}
}

// NewAssetServer builds the plain request/response server for static UI
// assets, with ordinary production timeouts.
func NewAssetServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Start listens and serves, over TLS when both certFile and keyFile are
// set. It blocks until the server stops.
func Start(server *http.Server, certFile, keyFile string) error {
	if certFile != "" && keyFile != "" {
		return server.ListenAndServeTLS(certFile, keyFile)
	}
	return server.ListenAndServe()
}

// ShutdownServer gracefully stops an HTTP server, waiting for in-flight
// requests up to timeout.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return server.Shutdown(ctx)
}
