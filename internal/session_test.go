package internal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jhalter/xmpp-shell/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLibrary records every call the controller makes into the protocol layer.
type fakeLibrary struct {
	mu         sync.Mutex
	conns      []*fakeConn
	live       int
	maxLive    int
	connectErr error
	stopped    bool

	stop     chan struct{}
	stopOnce sync.Once
}

func newFakeLibrary() *fakeLibrary {
	return &fakeLibrary{stop: make(chan struct{})}
}

func (l *fakeLibrary) NewConnection() protocol.Conn {
	l.mu.Lock()
	defer l.mu.Unlock()

	c := &fakeConn{lib: l}
	l.conns = append(l.conns, c)
	l.live++
	if l.live > l.maxLive {
		l.maxLive = l.live
	}
	return c
}

func (l *fakeLibrary) Run(ctx context.Context) error {
	select {
	case <-ctx.Done():
	case <-l.stop:
	}
	return nil
}

func (l *fakeLibrary) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *fakeLibrary) conn(i int) *fakeConn {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.conns[i]
}

func (l *fakeLibrary) connCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.conns)
}

func (l *fakeLibrary) liveCount() (live, maxLive int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.live, l.maxLive
}

type fakeConn struct {
	lib *fakeLibrary

	jid         string
	password    string
	host        string
	port        int
	observer    protocol.Observer
	handlers    []protocol.MessageHandler
	sent        []string
	disconnects int
	releases    int
}

func (c *fakeConn) SetJID(jid string) {
	c.lib.mu.Lock()
	defer c.lib.mu.Unlock()
	c.jid = jid
}

func (c *fakeConn) SetPassword(password string) {
	c.lib.mu.Lock()
	defer c.lib.mu.Unlock()
	c.password = password
}

func (c *fakeConn) Connect(host string, port int, obs protocol.Observer) error {
	c.lib.mu.Lock()
	defer c.lib.mu.Unlock()
	if c.lib.connectErr != nil {
		return c.lib.connectErr
	}
	c.host, c.port, c.observer = host, port, obs
	return nil
}

func (c *fakeConn) AddMessageHandler(h protocol.MessageHandler) {
	c.lib.mu.Lock()
	defer c.lib.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

func (c *fakeConn) SendRaw(_ context.Context, text string) error {
	c.lib.mu.Lock()
	defer c.lib.mu.Unlock()
	c.sent = append(c.sent, text)
	return nil
}

func (c *fakeConn) Disconnect() {
	c.lib.mu.Lock()
	defer c.lib.mu.Unlock()
	c.disconnects++
}

func (c *fakeConn) Release() {
	c.lib.mu.Lock()
	defer c.lib.mu.Unlock()
	c.releases++
	c.lib.live--
}

func (c *fakeConn) obs() protocol.Observer {
	c.lib.mu.Lock()
	defer c.lib.mu.Unlock()
	return c.observer
}

func (c *fakeConn) handler(t *testing.T) protocol.MessageHandler {
	c.lib.mu.Lock()
	defer c.lib.mu.Unlock()
	require.Len(t, c.handlers, 1)
	return c.handlers[0]
}

func (c *fakeConn) snapshot() fakeConn {
	c.lib.mu.Lock()
	defer c.lib.mu.Unlock()
	return fakeConn{
		jid:         c.jid,
		password:    c.password,
		host:        c.host,
		port:        c.port,
		handlers:    append([]protocol.MessageHandler(nil), c.handlers...),
		sent:        append([]string(nil), c.sent...),
		disconnects: c.disconnects,
		releases:    c.releases,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestController(t *testing.T, lib *fakeLibrary) *Controller {
	t.Helper()
	c := NewController(lib, ServerAddress{Host: "xmpp.example.com", Port: 5222}, discardLogger())
	c.Start()
	t.Cleanup(c.Shutdown)
	return c
}

// waitFor reads updates until one of type T arrives.
func waitFor[T Update](t *testing.T, c *Controller) T {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case u, ok := <-c.Updates():
			require.True(t, ok, "updates channel closed")
			if v, ok := u.(T); ok {
				return v
			}
		case <-timeout:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

var testCreds = Credentials{JID: "u@h", Password: "p"}

func connectedController(t *testing.T, lib *fakeLibrary) (*Controller, *fakeConn) {
	t.Helper()
	c := newTestController(t, lib)
	c.Reconnect(testCreds)
	require.Equal(t, StateConnecting, c.State())

	conn := lib.conn(lib.connCount() - 1)
	conn.obs().OnConnected()
	require.False(t, waitFor[ControlsEnabled](t, c).Enabled)
	status := waitFor[StatusChanged](t, c)
	require.Equal(t, StateConnecting, status.State)
	require.True(t, waitFor[ControlsEnabled](t, c).Enabled)
	require.Equal(t, StateConnected, c.State())
	return c, conn
}

func TestConnectIgnoredWithoutCredentials(t *testing.T) {
	lib := newFakeLibrary()
	c := newTestController(t, lib)

	c.Connect(Credentials{JID: " ", Password: "x"})
	c.Connect(Credentials{JID: "a", Password: ""})

	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, 0, lib.connCount())
}

func TestConnectLifecycle(t *testing.T) {
	lib := newFakeLibrary()
	c := newTestController(t, lib)

	c.Connect(testCreds)

	assert.False(t, waitFor[ControlsEnabled](t, c).Enabled)
	status := waitFor[StatusChanged](t, c)
	assert.Equal(t, StateConnecting, status.State)
	assert.Equal(t, "u@h", status.JID)
	assert.NoError(t, status.Err)

	require.Equal(t, 1, lib.connCount())
	conn := lib.conn(0)
	snap := conn.snapshot()
	assert.Equal(t, "u@h", snap.jid)
	assert.Equal(t, "p", snap.password)
	assert.Equal(t, "xmpp.example.com", snap.host)
	assert.Equal(t, 5222, snap.port)
	assert.Empty(t, snap.handlers)

	conn.obs().OnConnected()

	assert.True(t, waitFor[ControlsEnabled](t, c).Enabled)
	assert.Equal(t, StateConnected, waitFor[StatusChanged](t, c).State)
	assert.Equal(t, StateConnected, c.State())
	assert.Len(t, conn.snapshot().handlers, 1)
}

func TestConnectIgnoredWhileConnecting(t *testing.T) {
	lib := newFakeLibrary()
	c := newTestController(t, lib)

	c.Connect(testCreds)
	c.Connect(testCreds)

	assert.Equal(t, StateConnecting, c.State())
	assert.Equal(t, 1, lib.connCount())
}

func TestReconnectKeepsSingleHandle(t *testing.T) {
	lib := newFakeLibrary()
	c, first := connectedController(t, lib)

	c.Reconnect(testCreds)
	c.Reconnect(testCreds)
	assert.Equal(t, StateConnecting, c.State())

	live, maxLive := lib.liveCount()
	assert.Equal(t, 1, live)
	assert.Equal(t, 1, maxLive)
	assert.Equal(t, 3, lib.connCount())

	assert.Equal(t, 1, first.snapshot().releases)
	assert.Equal(t, 1, first.snapshot().disconnects)
	assert.Equal(t, 1, lib.conn(1).snapshot().releases)
	assert.Equal(t, 0, lib.conn(2).snapshot().releases)
}

func TestReconnectWhileConnectingRestarts(t *testing.T) {
	lib := newFakeLibrary()
	c := newTestController(t, lib)

	c.Reconnect(testCreds)
	c.Reconnect(testCreds)
	require.Equal(t, StateConnecting, c.State())
	require.Equal(t, 2, lib.connCount())

	// The first attempt is gone, so its success must not enable anything.
	lib.conn(0).obs().OnConnected()
	assert.Equal(t, StateConnecting, c.State())
	assert.Empty(t, lib.conn(0).snapshot().handlers)

	lib.conn(1).obs().OnConnected()
	assert.Equal(t, StateConnected, c.State())
}

func TestSendEmptySelectionIsNoop(t *testing.T) {
	lib := newFakeLibrary()
	c, conn := connectedController(t, lib)

	c.Send("")
	require.Equal(t, StateConnected, c.State())
	assert.Empty(t, conn.snapshot().sent)

	c.Send(" <presence/>\n")
	require.Equal(t, StateConnected, c.State())
	assert.Equal(t, []string{" <presence/>\n"}, conn.snapshot().sent)
}

func TestSendIgnoredUntilConnected(t *testing.T) {
	lib := newFakeLibrary()
	c := newTestController(t, lib)

	c.Connect(testCreds)
	c.Send("<presence/>")
	require.Equal(t, StateConnecting, c.State())

	assert.Empty(t, lib.conn(0).snapshot().sent)
}

func TestReceiveTextInOrder(t *testing.T) {
	lib := newFakeLibrary()
	c, conn := connectedController(t, lib)
	waitFor[StatusChanged](t, c)

	h := conn.handler(t)
	h.OnMessage("<msg/>")
	h.OnMessage("<msg2/>")

	assert.Equal(t, "<msg/>", waitFor[ReceiveText](t, c).Text)
	assert.Equal(t, "<msg2/>", waitFor[ReceiveText](t, c).Text)
}

func TestStaleMessagesIgnored(t *testing.T) {
	lib := newFakeLibrary()
	c, conn := connectedController(t, lib)
	old := conn.handler(t)

	c.Reconnect(testCreds)
	require.Equal(t, StateConnecting, c.State())
	lib.conn(1).obs().OnConnected()
	require.Equal(t, StateConnected, c.State())

	old.OnMessage("<stale/>")
	lib.conn(1).handler(t).OnMessage("<fresh/>")

	assert.Equal(t, "<fresh/>", waitFor[ReceiveText](t, c).Text)
}

func TestConnectFailureReportsError(t *testing.T) {
	lib := newFakeLibrary()
	c := newTestController(t, lib)

	c.Connect(testCreds)
	require.Equal(t, StateConnecting, c.State())
	waitFor[StatusChanged](t, c)

	lib.conn(0).obs().OnDisconnected(errors.New("not-authorized"))

	status := waitFor[StatusChanged](t, c)
	assert.Equal(t, StateDisconnected, status.State)
	assert.EqualError(t, status.Err, "not-authorized")
	assert.Equal(t, 1, lib.conn(0).snapshot().releases)

	live, _ := lib.liveCount()
	assert.Equal(t, 0, live)

	// A fresh attempt is allowed after a failure.
	c.Connect(testCreds)
	assert.Equal(t, StateConnecting, c.State())
	assert.Equal(t, 2, lib.connCount())
}

func TestConnectionLostDisablesControls(t *testing.T) {
	lib := newFakeLibrary()
	c, conn := connectedController(t, lib)
	waitFor[StatusChanged](t, c)

	conn.obs().OnDisconnected(errors.New("stream closed"))

	assert.False(t, waitFor[ControlsEnabled](t, c).Enabled)
	status := waitFor[StatusChanged](t, c)
	assert.Equal(t, StateDisconnected, status.State)
	assert.Error(t, status.Err)
	assert.Equal(t, 1, conn.snapshot().releases)
}

func TestConnectSyncErrorReleasesHandle(t *testing.T) {
	lib := newFakeLibrary()
	lib.connectErr = errors.New("invalid JID")
	c := newTestController(t, lib)

	c.Connect(testCreds)

	waitFor[StatusChanged](t, c)
	status := waitFor[StatusChanged](t, c)
	assert.Equal(t, StateDisconnected, status.State)
	assert.EqualError(t, status.Err, "invalid JID")

	live, _ := lib.liveCount()
	assert.Equal(t, 0, live)
	assert.Equal(t, 1, lib.conn(0).snapshot().releases)
}

func TestDisconnect(t *testing.T) {
	lib := newFakeLibrary()
	c, conn := connectedController(t, lib)
	waitFor[StatusChanged](t, c)

	c.Disconnect()

	assert.False(t, waitFor[ControlsEnabled](t, c).Enabled)
	assert.Equal(t, StateDisconnected, waitFor[StatusChanged](t, c).State)
	assert.Equal(t, StateDisconnected, c.State())
	assert.Equal(t, 1, conn.snapshot().releases)
}

func TestShutdownReleasesHandleOnce(t *testing.T) {
	lib := newFakeLibrary()
	c, conn := connectedController(t, lib)

	c.Shutdown()
	c.Shutdown()

	snap := conn.snapshot()
	assert.Equal(t, 1, snap.releases)
	assert.Equal(t, 1, snap.disconnects)

	lib.mu.Lock()
	assert.True(t, lib.stopped)
	lib.mu.Unlock()

	// Drain and confirm the channel is closed.
	for range c.Updates() {
	}
	assert.Equal(t, StateDisconnected, c.State())
}

func TestCallbacksAfterShutdownDoNotBlock(t *testing.T) {
	lib := newFakeLibrary()
	c, conn := connectedController(t, lib)
	h := conn.handler(t)
	c.Shutdown()

	done := make(chan struct{})
	go func() {
		conn.obs().OnDisconnected(errors.New("closed"))
		h.OnMessage("<late/>")
		c.Send("<presence/>")
		c.Reconnect(testCreds)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callbacks blocked after shutdown")
	}
	assert.Equal(t, 1, lib.connCount())
}

func TestShutdownWithoutStart(t *testing.T) {
	lib := newFakeLibrary()
	c := NewController(lib, ServerAddress{}, discardLogger())
	c.Shutdown()

	_, ok := <-c.Updates()
	assert.False(t, ok)
}
