// Package relay translates inbound client requests into directory and
// authenticator operations and produces the outbound events: direct
// messages, login/authentication results, and presence broadcasts.
package relay

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/selwynn/chatrelay/internal/directory"
	"github.com/selwynn/chatrelay/internal/protocol"
)

// Error strings surfaced to clients. Login failures deliberately use one
// message for unknown names and wrong passwords.
const (
	errNameTaken = "Username already exists."
	errBadLogin  = "User or password is invalid."
)

// Router dispatches decoded requests against the directory. It runs on the
// gateway's single event loop, so each request completes, broadcasts
// included, before the next one starts.
type Router struct {
	dir   *directory.Directory
	authn *directory.Authenticator
	log   zerolog.Logger
}

// NewRouter creates a router over the given directory and authenticator.
func NewRouter(dir *directory.Directory, authn *directory.Authenticator, logger zerolog.Logger) *Router {
	return &Router{
		dir:   dir,
		authn: authn,
		log:   logger.With().Str("component", "router").Logger(),
	}
}

// HandleRequest processes one framed payload received on conn, writing any
// responses to the originating connection, a message target, or the full
// active set.
func (r *Router) HandleRequest(conn directory.Conn, payload []byte) {
	req, err := protocol.DecodeRequest(payload)
	if err != nil {
		r.log.Debug().Err(err).Msg("undecodable request")
		conn.Send(protocol.Invalid().Encode())
		return
	}

	if !req.Action.Known() {
		conn.Send(protocol.Invalid().Encode())
		return
	}

	switch req.Action {
	case protocol.ActionRegister:
		r.handleRegister(conn, req)
	case protocol.ActionLogin:
		r.handleLogin(conn, req)
	case protocol.ActionLogout:
		r.handleLogout(req)
	case protocol.ActionAuthorize:
		r.handleAuthorize(conn, req)
	case protocol.ActionMessage:
		r.handleMessage(conn, req)
	}
}

// HandleDisconnect runs the logout path for a connection the transport
// reported gone. No-op when the connection had no authorized session.
func (r *Router) HandleDisconnect(conn directory.Conn) {
	acct := r.dir.FindByConn(conn)
	if acct == nil {
		return
	}

	r.log.Info().Str("id", acct.ID).Str("name", acct.Name).Msg("connection lost, revoking session")
	r.authn.Deauthorize(acct)
	r.BroadcastPresence()
}

func (r *Router) handleRegister(conn directory.Conn, req protocol.Request) {
	if req.Name == "" || req.Password == "" {
		conn.Send(protocol.Invalid().Encode())
		return
	}

	acct, err := r.dir.Register(req.Name, req.Password)
	if err != nil {
		if errors.Is(err, directory.ErrNameTaken) {
			conn.Send(protocol.Response{Event: protocol.EventLogin, Error: errNameTaken}.Encode())
			return
		}
		r.log.Error().Err(err).Str("name", req.Name).Msg("registration failed")
		conn.Send(protocol.Invalid().Encode())
		return
	}

	acct.PublicKey = req.PubKey
	r.authn.Authorize(acct, conn)

	conn.Send(protocol.Response{
		Valid:    true,
		Event:    protocol.EventLogin,
		Token:    acct.Token(),
		Username: acct.Name,
	}.Encode())

	r.BroadcastPresence()
}

func (r *Router) handleLogin(conn directory.Conn, req protocol.Request) {
	if req.Name == "" || req.Password == "" {
		conn.Send(protocol.Invalid().Encode())
		return
	}

	acct := r.authn.Authenticate(req.Name, req.Password)
	if acct == nil {
		conn.Send(protocol.Response{Event: protocol.EventLogin, Error: errBadLogin}.Encode())
		return
	}

	// A fresh login supersedes any live session: the old connection is
	// closed and its token revoked before the new one is issued.
	if acct.Authorized() {
		r.authn.Deauthorize(acct)
	}
	if req.PubKey != "" {
		acct.PublicKey = req.PubKey
	}
	r.authn.Authorize(acct, conn)

	conn.Send(protocol.Response{
		Valid:    true,
		Event:    protocol.EventLogin,
		Token:    acct.Token(),
		Username: acct.Name,
	}.Encode())

	r.BroadcastPresence()
}

func (r *Router) handleLogout(req protocol.Request) {
	acct := r.dir.FindByToken(req.Token)
	if acct == nil {
		return
	}

	r.authn.Deauthorize(acct)
	r.BroadcastPresence()
}

func (r *Router) handleAuthorize(conn directory.Conn, req protocol.Request) {
	acct := r.dir.FindByToken(req.Token)
	if acct == nil {
		conn.Send(protocol.Response{Event: protocol.EventAuthentication}.Encode())
		conn.Send(protocol.Response{Valid: true, Event: protocol.EventUserInvalid}.Encode())
		return
	}

	// Re-validation reattaches the current connection and keeps the
	// already-issued token.
	r.authn.Authorize(acct, conn)

	conn.Send(protocol.Response{
		Valid:    true,
		Event:    protocol.EventAuthentication,
		Username: acct.Name,
	}.Encode())

	r.BroadcastPresence()
}

func (r *Router) handleMessage(conn directory.Conn, req protocol.Request) {
	sender := r.dir.FindByToken(req.Token)
	if sender == nil {
		conn.Send(protocol.Response{Valid: true, Event: protocol.EventUserInvalid}.Encode())
		return
	}

	// Every authenticated request keeps the session alive.
	r.authn.Authorize(sender, nil)

	target := r.dir.FindActiveByID(req.Target)
	if target == nil {
		target = r.dir.FindActiveByName(req.Target)
	}
	if target == nil || target.Conn() == nil {
		// Best-effort delivery: an offline target drops the message
		// silently, the sender is not told.
		return
	}

	target.Conn().Send(protocol.Response{
		Valid:    true,
		Event:    protocol.EventMessage,
		Sender:   sender.ID,
		Username: sender.Name,
		Message:  req.Message,
	}.Encode())
}

// BroadcastPresence recomputes the active view (sweeping expired sessions
// as a side effect) and delivers the full user list to every active
// connection.
func (r *Router) BroadcastPresence() {
	view := r.dir.ActiveView()

	users := lo.Map(view, func(a *directory.Account, _ int) protocol.UserInfo {
		return protocol.UserInfo{ID: a.ID, Name: a.Name, PublicKey: a.PublicKey}
	})

	payload := protocol.Response{
		Valid: true,
		Event: protocol.EventUserlistChange,
		Users: users,
	}.Encode()

	for _, a := range view {
		a.Conn().Send(payload)
	}
}
