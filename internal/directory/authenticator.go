package directory

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/selwynn/chatrelay/internal/auth"
)

// newToken mints an opaque bearer token for a freshly authorized session.
func newToken() string {
	return uuid.NewString()
}

// Authenticator verifies credentials and drives session authorization state.
// Like the Directory it operates on, it must only be called from the gateway
// run-loop.
type Authenticator struct {
	dir *Directory
	log zerolog.Logger
}

// NewAuthenticator wraps dir with credential and session handling.
func NewAuthenticator(dir *Directory, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		dir: dir,
		log: logger.With().Str("component", "authenticator").Logger(),
	}
}

// Authenticate verifies a name/password pair and returns the matching
// account. It returns nil on any mismatch without distinguishing unknown
// names from wrong passwords, so callers cannot enumerate accounts.
func (s *Authenticator) Authenticate(name, password string) *Account {
	acct := s.dir.FindByName(name)
	if acct == nil {
		return nil
	}

	ok, err := auth.VerifyPassword(password, acct.CredentialHash)
	if err != nil {
		s.log.Warn().Err(err).Str("id", acct.ID).Msg("stored credential hash unusable")
		return nil
	}
	if !ok {
		return nil
	}
	return acct
}

// Authorize attaches conn to the account's session, closing any previously
// attached connection, mints a token if the session has none, and refreshes
// the activity stamp. Calling it with a nil conn is the heartbeat used on
// every authenticated request; it only refreshes the stamp once a token
// exists.
func (s *Authenticator) Authorize(acct *Account, conn Conn) {
	s.dir.authorize(acct, conn)
}

// Deauthorize revokes the account's token and detaches and closes its
// connection. It is the shared teardown for logout, inactivity expiry, and
// duplicate-login eviction.
func (s *Authenticator) Deauthorize(acct *Account) {
	s.log.Debug().Str("id", acct.ID).Str("name", acct.Name).Msg("session revoked")
	s.dir.deauthorize(acct)
}
