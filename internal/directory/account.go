// Package directory owns the registered-account table and the ephemeral
// session state attached to it: bearer tokens, activity timestamps, and the
// live connection handles. All other components go through the Directory and
// Authenticator; nothing else holds references into the table.
package directory

import "time"

// Conn is the non-owning handle a session keeps to its live transport
// connection. The transport layer owns the connection lifetime; the session
// only needs to push payloads at it and ask it to close.
type Conn interface {
	// Send queues payload for delivery, best effort. It must not block;
	// it reports false when the payload could not be queued.
	Send(payload []byte) bool

	// Close tears down the underlying transport connection.
	Close()
}

// Account is a registered identity plus its session state. Identity fields
// are persisted; the session (token, activity, connection) is rebuilt from
// scratch every process lifetime.
type Account struct {
	ID             string
	Name           string
	CredentialHash string
	PublicKey      string

	token      string
	lastActive time.Time
	conn       Conn
}

// Token returns the session's bearer token, empty when unauthorized.
func (a *Account) Token() string {
	return a.token
}

// Authorized reports whether the account holds a live token.
func (a *Account) Authorized() bool {
	return a.token != ""
}

// Conn returns the attached live connection, nil when offline.
func (a *Account) Conn() Conn {
	return a.conn
}

// LastActive returns the timestamp of the session's most recent activity.
func (a *Account) LastActive() time.Time {
	return a.lastActive
}
