package server

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/selwynn/chatrelay/internal/relay"
)

// Options are the transport-level knobs for the gateway.
type Options struct {
	AllowedOrigins    []string
	MaxMessageSize    int64
	RateLimitBurst    int
	RateLimitInterval time.Duration
}

// inboundFrame is one framed request waiting for the run-loop.
type inboundFrame struct {
	client  *Client
	payload []byte
}

// Gateway accepts WebSocket connections and drives the relay. All router
// and directory calls happen on the Run goroutine: a request runs to
// completion, broadcast fan-out included, before the next event is
// serviced, which makes requests atomic with respect to each other.
type Gateway struct {
	router  *relay.Router
	log     zerolog.Logger
	opts    Options
	origins originPolicy

	upgrader websocket.Upgrader

	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundFrame

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewGateway creates a gateway over router. Call Run in its own goroutine
// before serving the WebSocket endpoint.
func NewGateway(router *relay.Router, opts Options, logger zerolog.Logger) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())

	g := &Gateway{
		router:     router,
		log:        logger.With().Str("component", "gateway").Logger(),
		opts:       opts,
		origins:    newOriginPolicy(opts.AllowedOrigins, logger),
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundFrame),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}

	return g
}

// Run is the gateway's event loop. Client registration, disconnects, and
// every inbound request are serviced here one at a time.
func (g *Gateway) Run() {
	defer close(g.done)

	for {
		select {
		case <-g.ctx.Done():
			g.closeAll()
			return

		case client := <-g.register:
			g.clients[client] = struct{}{}
			g.log.Info().Str("addr", client.addr).Int("clients", len(g.clients)).Msg("connection opened")

			g.wg.Add(2)
			go func() {
				defer g.wg.Done()
				client.writePump()
			}()
			go func() {
				defer g.wg.Done()
				client.readPump()
			}()

		case client := <-g.unregister:
			if _, ok := g.clients[client]; !ok {
				continue
			}
			delete(g.clients, client)
			client.closed = true
			close(client.send)
			g.log.Info().Str("addr", client.addr).Int("clients", len(g.clients)).Msg("connection closed")

			// A vanished connection with a live session is an implicit
			// logout, presence broadcast included.
			g.router.HandleDisconnect(client)

		case frame := <-g.inbound:
			g.router.HandleRequest(frame.client, frame.payload)
		}
	}
}

func (g *Gateway) closeAll() {
	g.log.Info().Int("clients", len(g.clients)).Msg("closing all connections")
	for client := range g.clients {
		client.Close()
	}
}

// Shutdown stops the loop, closes every connection, and waits for the pump
// goroutines to drain or the timeout to pass.
func (g *Gateway) Shutdown(timeout time.Duration) error {
	g.cancel()
	<-g.done

	drained := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		g.log.Info().Msg("gateway shut down")
		return nil
	case <-time.After(timeout):
		g.log.Warn().Msg("gateway shutdown timed out")
		return context.DeadlineExceeded
	}
}
