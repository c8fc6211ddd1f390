package directory

import (
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/selwynn/chatrelay/internal/auth"
	"github.com/selwynn/chatrelay/internal/store"
)

// SessionTTL is the inactivity window after which a session expires. Expiry
// is evaluated lazily: there is no background timer, the sweep runs whenever
// sessions are enumerated or looked up by token.
const SessionTTL = 600 * time.Second

// ErrNameTaken is returned by Register when the requested name is already
// in use, compared case-insensitively.
var ErrNameTaken = errors.New("directory: name already taken")

// Directory is the account/session table. It is not safe for concurrent
// use: the gateway run-loop serializes every call, which is what keeps the
// session state machine free of locking.
type Directory struct {
	store    store.AccountStore
	log      zerolog.Logger
	accounts []*Account

	// Now is the clock used for activity stamps and expiry. Tests
	// substitute it to age sessions.
	Now func() time.Time
}

// NewDirectory creates an empty directory backed by st. Call LoadAll to
// populate it with persisted accounts.
func NewDirectory(st store.AccountStore, logger zerolog.Logger) *Directory {
	return &Directory{
		store: st,
		log:   logger.With().Str("component", "directory").Logger(),
		Now:   time.Now,
	}
}

// LoadAll bulk-loads persisted accounts, replacing any in-memory state.
// Every loaded account starts token-less and disconnected.
func (d *Directory) LoadAll() error {
	records, err := d.store.LoadAll()
	if err != nil {
		return err
	}

	d.accounts = lo.Map(records, func(rec store.Record, _ int) *Account {
		return &Account{
			ID:             rec.ID,
			Name:           rec.Name,
			CredentialHash: rec.CredentialHash,
		}
	})

	d.log.Info().Int("accounts", len(d.accounts)).Msg("loaded account table")
	return nil
}

// Register creates and persists a new account. The name must be unused
// under case-insensitive comparison; the password is hashed before anything
// touches storage. The account only becomes visible once persisted.
func (d *Directory) Register(name, password string) (*Account, error) {
	if d.FindByName(name) != nil {
		return nil, ErrNameTaken
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	id, err := d.uniqueID()
	if err != nil {
		return nil, err
	}

	rec := store.Record{ID: id, Name: name, CredentialHash: hash}
	if err := d.store.Insert(rec); err != nil {
		if errors.Is(err, store.ErrNameTaken) {
			return nil, ErrNameTaken
		}
		return nil, err
	}

	acct := &Account{ID: id, Name: name, CredentialHash: hash}
	d.accounts = append(d.accounts, acct)

	d.log.Info().Str("id", id).Str("name", name).Msg("account registered")
	return acct, nil
}

// FindByName returns the account with the given name under case-insensitive
// comparison, or nil.
func (d *Directory) FindByName(name string) *Account {
	acct, _ := lo.Find(d.accounts, func(a *Account) bool {
		return strings.EqualFold(a.Name, name)
	})
	return acct
}

// FindByToken sweeps expired sessions, then returns the account whose
// current token equals token, or nil. An empty token never matches.
func (d *Directory) FindByToken(token string) *Account {
	d.sweepExpired()

	if token == "" {
		return nil
	}
	acct, _ := lo.Find(d.accounts, func(a *Account) bool {
		return a.token == token
	})
	return acct
}

// FindByConn returns the account whose session is attached to conn, or nil.
// Used by the gateway to map a transport disconnect back to its session.
func (d *Directory) FindByConn(conn Conn) *Account {
	if conn == nil {
		return nil
	}
	acct, _ := lo.Find(d.accounts, func(a *Account) bool {
		return a.conn == conn
	})
	return acct
}

// FindActiveByID looks id up within the active view only.
func (d *Directory) FindActiveByID(id string) *Account {
	acct, _ := lo.Find(d.ActiveView(), func(a *Account) bool {
		return a.ID == id
	})
	return acct
}

// FindActiveByName looks name up within the active view only.
func (d *Directory) FindActiveByName(name string) *Account {
	acct, _ := lo.Find(d.ActiveView(), func(a *Account) bool {
		return strings.EqualFold(a.Name, name)
	})
	return acct
}

// ActiveView sweeps expired sessions and returns the accounts that are both
// authorized and attached to a live connection. The view is recomputed on
// every call, never cached.
func (d *Directory) ActiveView() []*Account {
	d.sweepExpired()

	return lo.Filter(d.accounts, func(a *Account, _ int) bool {
		return a.token != "" && a.conn != nil
	})
}

// sweepExpired deauthorizes every session idle for longer than SessionTTL.
func (d *Directory) sweepExpired() {
	now := d.Now()
	for _, a := range d.accounts {
		if a.token != "" && now.Sub(a.lastActive) > SessionTTL {
			d.log.Info().Str("id", a.ID).Str("name", a.Name).Msg("session expired")
			d.deauthorize(a)
		}
	}
}

// authorize attaches conn (evicting any previous connection first), mints a
// token if the session has none, and refreshes the activity stamp. A nil
// conn is the touch path: it keeps an already-issued session alive without
// reattaching anything.
func (d *Directory) authorize(a *Account, conn Conn) {
	if conn != nil {
		d.releaseConn(conn, a)
		if a.conn != nil && a.conn != conn {
			a.conn.Close()
		}
		a.conn = conn
	}

	if a.token == "" {
		a.token = newToken()
		d.log.Debug().Str("id", a.ID).Msg("token issued")
	}

	a.lastActive = d.Now()
}

// releaseConn revokes any other session still bound to conn. A connection
// carries at most one session: rebinding it to a new account supersedes
// whatever it was authenticated as before. The socket itself stays open,
// it is about to belong to the new session.
func (d *Directory) releaseConn(conn Conn, keep *Account) {
	for _, a := range d.accounts {
		if a != keep && a.conn == conn {
			d.log.Info().Str("id", a.ID).Str("name", a.Name).Msg("session superseded on rebound connection")
			a.token = ""
			a.conn = nil
		}
	}
}

// deauthorize clears the token and detaches and closes the connection.
func (d *Directory) deauthorize(a *Account) {
	a.token = ""
	if a.conn != nil {
		a.conn.Close()
		a.conn = nil
	}
}

func (d *Directory) uniqueID() (string, error) {
	for {
		id, err := newAccountID()
		if err != nil {
			return "", err
		}
		taken := lo.ContainsBy(d.accounts, func(a *Account) bool {
			return a.ID == id
		})
		if !taken {
			return id, nil
		}
	}
}
