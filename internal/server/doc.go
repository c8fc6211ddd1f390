// Package server is the connection gateway: it accepts WebSocket
// connections, frames inbound requests, and funnels them through a single
// run-loop into the relay router, so that every directory mutation is
// serialized without locking. It also serves the static UI assets over a
// separate plain HTTP listener.
package server
