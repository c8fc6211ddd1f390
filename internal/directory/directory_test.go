package directory

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/selwynn/chatrelay/internal/store"
)

// fakeConn records what the directory does to a session's connection.
type fakeConn struct {
	sent   [][]byte
	closed bool
}

func (c *fakeConn) Send(payload []byte) bool {
	c.sent = append(c.sent, payload)
	return true
}

func (c *fakeConn) Close() { c.closed = true }

func newTestDirectory(t *testing.T) (*Directory, *Authenticator) {
	t.Helper()

	st, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	dir := NewDirectory(st, zerolog.Nop())
	return dir, NewAuthenticator(dir, zerolog.Nop())
}

func TestRegisterThenAuthenticate(t *testing.T) {
	req := require.New(t)
	dir, authn := newTestDirectory(t)

	acct, err := dir.Register("Alice", "pw1")
	req.NoError(err)
	req.Len(acct.ID, 6)
	req.Empty(acct.Token(), "registration alone must not authorize")

	req.Same(acct, authn.Authenticate("Alice", "pw1"))
	req.Same(acct, authn.Authenticate("alice", "pw1"), "name match is case-insensitive")
	req.Nil(authn.Authenticate("Alice", "wrong"))
	req.Nil(authn.Authenticate("nobody", "pw1"))
}

func TestRegisterNameTakenCaseInsensitive(t *testing.T) {
	req := require.New(t)
	dir, _ := newTestDirectory(t)

	_, err := dir.Register("Alice", "pw1")
	req.NoError(err)

	_, err = dir.Register("alice", "pw2")
	req.ErrorIs(err, ErrNameTaken)
	_, err = dir.Register("ALICE", "pw2")
	req.ErrorIs(err, ErrNameTaken)
}

func TestAuthorizeMintsTokenOnceAndTouches(t *testing.T) {
	req := require.New(t)
	dir, authn := newTestDirectory(t)

	acct, err := dir.Register("Alice", "pw1")
	req.NoError(err)

	conn := &fakeConn{}
	authn.Authorize(acct, conn)
	token := acct.Token()
	req.NotEmpty(token)
	firstStamp := acct.LastActive()

	// The connection-less call is the heartbeat path: same token, fresher
	// activity stamp.
	dir.Now = func() time.Time { return firstStamp.Add(5 * time.Second) }
	authn.Authorize(acct, nil)
	authn.Authorize(acct, nil)

	req.Equal(token, acct.Token())
	req.Same(conn, acct.Conn().(*fakeConn))
	req.Equal(firstStamp.Add(5*time.Second), acct.LastActive())
}

func TestDuplicateAuthorizationEvictsPreviousConnection(t *testing.T) {
	req := require.New(t)
	dir, authn := newTestDirectory(t)

	acct, err := dir.Register("Alice", "pw1")
	req.NoError(err)

	c1 := &fakeConn{}
	c2 := &fakeConn{}
	authn.Authorize(acct, c1)
	authn.Authorize(acct, c2)

	req.True(c1.closed, "previous connection must be closed")
	req.False(c2.closed)
	req.Same(c2, acct.Conn().(*fakeConn))
	req.Len(dir.ActiveView(), 1)
}

func TestRebindingConnectionReleasesPreviousSession(t *testing.T) {
	req := require.New(t)
	dir, authn := newTestDirectory(t)

	alice, err := dir.Register("Alice", "pw1")
	req.NoError(err)
	bob, err := dir.Register("Bob", "pw2")
	req.NoError(err)

	conn := &fakeConn{}
	authn.Authorize(alice, conn)

	// The same socket authenticates as Bob: Alice's session is superseded,
	// but the socket must stay open since Bob now owns it.
	authn.Authorize(bob, conn)

	req.Empty(alice.Token())
	req.Nil(alice.Conn())
	req.False(conn.closed)
	req.Same(conn, bob.Conn().(*fakeConn))

	view := dir.ActiveView()
	req.Len(view, 1)
	req.Same(bob, view[0])
	req.Same(bob, dir.FindByConn(conn))
}

func TestExpirySweep(t *testing.T) {
	req := require.New(t)
	dir, authn := newTestDirectory(t)

	acct, err := dir.Register("Alice", "pw1")
	req.NoError(err)

	conn := &fakeConn{}
	authn.Authorize(acct, conn)
	authorizedAt := acct.LastActive()

	// Just inside the window the session survives the sweep.
	dir.Now = func() time.Time { return authorizedAt.Add(599 * time.Second) }
	req.Len(dir.ActiveView(), 1)
	req.NotEmpty(acct.Token())

	// Just past it the sweep revokes the token and closes the connection.
	dir.Now = func() time.Time { return authorizedAt.Add(601 * time.Second) }
	req.Empty(dir.ActiveView())
	req.Empty(acct.Token())
	req.Nil(acct.Conn())
	req.True(conn.closed)
}

func TestFindByToken(t *testing.T) {
	req := require.New(t)
	dir, authn := newTestDirectory(t)

	acct, err := dir.Register("Alice", "pw1")
	req.NoError(err)
	authn.Authorize(acct, &fakeConn{})

	req.Same(acct, dir.FindByToken(acct.Token()))
	req.Nil(dir.FindByToken("no-such-token"))
	req.Nil(dir.FindByToken(""), "empty token never matches an unauthorized session")

	// An expired session is swept before the lookup resolves.
	authorizedAt := acct.LastActive()
	token := acct.Token()
	dir.Now = func() time.Time { return authorizedAt.Add(SessionTTL + time.Second) }
	req.Nil(dir.FindByToken(token))
}

func TestFindActiveLookups(t *testing.T) {
	req := require.New(t)
	dir, authn := newTestDirectory(t)

	online, err := dir.Register("Alice", "pw1")
	req.NoError(err)
	offline, err := dir.Register("Bob", "pw2")
	req.NoError(err)
	authn.Authorize(online, &fakeConn{})

	req.Same(online, dir.FindActiveByID(online.ID))
	req.Same(online, dir.FindActiveByName("alice"))
	req.Nil(dir.FindActiveByID(offline.ID))
	req.Nil(dir.FindActiveByName("Bob"))
}

func TestDeauthorize(t *testing.T) {
	req := require.New(t)
	dir, authn := newTestDirectory(t)

	acct, err := dir.Register("Alice", "pw1")
	req.NoError(err)
	conn := &fakeConn{}
	authn.Authorize(acct, conn)

	authn.Deauthorize(acct)

	req.Empty(acct.Token())
	req.Nil(acct.Conn())
	req.True(conn.closed)
	req.Empty(dir.ActiveView())
}

func TestLoadAllReplacesState(t *testing.T) {
	req := require.New(t)

	st, err := store.Open("")
	req.NoError(err)
	t.Cleanup(func() { _ = st.Close() })

	req.NoError(st.Insert(store.Record{ID: "a1b2c3", Name: "Alice", CredentialHash: "h"}))

	dir := NewDirectory(st, zerolog.Nop())
	req.NoError(dir.LoadAll())

	acct := dir.FindByName("Alice")
	req.NotNil(acct)
	req.Equal("a1b2c3", acct.ID)
	req.Empty(acct.Token(), "loaded accounts start token-less")
	req.Empty(dir.ActiveView())

	// A second load replaces whatever was in memory.
	req.NoError(dir.LoadAll())
	req.Len(dir.ActiveView(), 0)
	req.NotNil(dir.FindByName("alice"))
}
