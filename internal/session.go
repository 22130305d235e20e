package internal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jhalter/xmpp-shell/internal/protocol"
)

// SessionState is the connection state owned by the Controller.
type SessionState int

const (
	StateDisconnected SessionState = iota
	StateConnecting
	StateConnected
)

func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	default:
		return "Disconnected"
	}
}

// Update is a change the Controller asks the UI to apply. Updates are
// delivered in order on the channel returned by Controller.Updates.
type Update interface {
	isUpdate()
}

// ControlsEnabled toggles the editor and toolbar.
type ControlsEnabled struct {
	Enabled bool
}

// ReceiveText replaces the receive pane with Text.
type ReceiveText struct {
	Text string
}

// StatusChanged reports a session state transition or a failure.
type StatusChanged struct {
	State SessionState
	JID   string
	Err   error
}

func (ControlsEnabled) isUpdate() {}
func (ReceiveText) isUpdate()     {}
func (StatusChanged) isUpdate()   {}

// ServerAddress overrides the host and port derived from the JID. An empty
// Host means SRV lookup on the JID's domain.
type ServerAddress struct {
	Host string
	Port int
}

const sendTimeout = 10 * time.Second

// Controller owns the connection handle and serialises every session
// operation on a single goroutine. Protocol callbacks are enqueued onto that
// goroutine rather than touching state directly.
type Controller struct {
	lib    protocol.Library
	addr   ServerAddress
	logger *slog.Logger

	cmds    chan func()
	updates chan Update

	closing  chan struct{} // closed by the actor when shutdown begins
	abandon  chan struct{} // closed when the UI stops draining updates
	done     chan struct{} // closed when the actor exits
	loopDone chan struct{} // closed when the protocol event loop returns

	loopCancel   context.CancelFunc
	started      atomic.Bool
	startOnce    sync.Once
	shutdownOnce sync.Once

	// Owned by the actor goroutine.
	state   SessionState
	creds   Credentials
	conn    protocol.Conn
	attempt uint64
}

// NewController creates a controller for lib. Start must be called before
// any other method.
func NewController(lib protocol.Library, addr ServerAddress, logger *slog.Logger) *Controller {
	return &Controller{
		lib:      lib,
		addr:     addr,
		logger:   logger,
		cmds:     make(chan func(), 64),
		updates:  make(chan Update, 256),
		closing:  make(chan struct{}),
		abandon:  make(chan struct{}),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
}

// Start launches the protocol event loop and the controller goroutine.
func (c *Controller) Start() {
	c.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		c.loopCancel = cancel
		c.started.Store(true)

		go func() {
			defer close(c.loopDone)
			if err := c.lib.Run(ctx); err != nil {
				c.logger.Error("Protocol event loop failed", "err", err)
			}
		}()
		go c.run()
	})
}

// Updates returns the channel of UI updates. It is closed by Shutdown.
func (c *Controller) Updates() <-chan Update {
	return c.updates
}

// Connect opens a new session. It is ignored unless the controller is
// disconnected and creds are ready.
func (c *Controller) Connect(creds Credentials) {
	c.enqueue(func() { c.connect(creds) })
}

// Reconnect tears down any existing handle and connects again.
func (c *Controller) Reconnect(creds Credentials) {
	c.enqueue(func() {
		prev := c.state
		c.emit(ControlsEnabled{Enabled: false})
		c.teardown()
		c.state = StateDisconnected
		if prev != StateDisconnected && !creds.IsReadyToConnect() {
			c.emit(StatusChanged{State: StateDisconnected, JID: c.creds.JID})
		}
		c.connect(creds)
	})
}

// Send transmits text as a raw stanza. Empty text is ignored.
func (c *Controller) Send(text string) {
	c.enqueue(func() { c.send(text) })
}

// Disconnect closes the current session, if any.
func (c *Controller) Disconnect() {
	c.enqueue(func() {
		if c.conn == nil && c.state == StateDisconnected {
			return
		}
		c.teardown()
		c.state = StateDisconnected
		c.emit(ControlsEnabled{Enabled: false})
		c.emit(StatusChanged{State: StateDisconnected, JID: c.creds.JID})
	})
}

// SetServerAddress changes the address used by the next connection attempt.
func (c *Controller) SetServerAddress(addr ServerAddress) {
	c.enqueue(func() { c.addr = addr })
}

// State returns the current session state.
func (c *Controller) State() SessionState {
	res := make(chan SessionState, 1)
	if !c.enqueue(func() { res <- c.state }) {
		return StateDisconnected
	}
	select {
	case s := <-res:
		return s
	case <-c.done:
		return StateDisconnected
	}
}

// Shutdown releases the connection, stops the protocol event loop and waits
// for it to exit. It is safe to call more than once.
func (c *Controller) Shutdown() {
	c.shutdownOnce.Do(func() {
		close(c.abandon)

		if !c.started.Load() {
			c.shutdown()
			close(c.done)
			return
		}

		finished := make(chan struct{})
		if c.enqueue(func() {
			c.shutdown()
			close(finished)
		}) {
			<-finished
		}
		<-c.done
	})
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case <-c.closing:
			return
		case f := <-c.cmds:
			select {
			case <-c.closing:
				return
			default:
			}
			f()
		}
	}
}

func (c *Controller) enqueue(f func()) bool {
	select {
	case <-c.closing:
		return false
	default:
	}
	select {
	case c.cmds <- f:
		return true
	case <-c.closing:
		return false
	}
}

func (c *Controller) emit(u Update) {
	select {
	case c.updates <- u:
	case <-c.abandon:
	}
}

func (c *Controller) connect(creds Credentials) {
	if c.state != StateDisconnected {
		c.logger.Debug("Connect ignored", "state", c.state)
		return
	}
	if !creds.IsReadyToConnect() {
		return
	}

	c.creds = creds
	c.attempt++
	c.state = StateConnecting
	c.emit(ControlsEnabled{Enabled: false})
	c.emit(StatusChanged{State: StateConnecting, JID: creds.JID})

	conn := c.lib.NewConnection()
	conn.SetJID(creds.JID)
	conn.SetPassword(creds.Password)
	c.conn = conn

	c.logger.Info("Connecting", "jid", creds.JID, "host", c.addr.Host, "port", c.addr.Port)
	if err := conn.Connect(c.addr.Host, c.addr.Port, attemptObserver{c: c, attempt: c.attempt}); err != nil {
		c.logger.Error("Unable to start connection", "err", err)
		c.teardown()
		c.state = StateDisconnected
		c.emit(StatusChanged{State: StateDisconnected, JID: creds.JID, Err: err})
	}
}

// teardown disconnects and releases the current handle and invalidates
// callbacks from it.
func (c *Controller) teardown() {
	c.attempt++
	if c.conn == nil {
		return
	}
	c.conn.Disconnect()
	c.conn.Release()
	c.conn = nil
}

func (c *Controller) send(text string) {
	if c.state != StateConnected {
		c.logger.Debug("Send ignored", "state", c.state)
		return
	}
	if text == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := c.conn.SendRaw(ctx, text); err != nil {
		c.logger.Error("Send failed", "err", err)
		c.emit(StatusChanged{State: c.state, JID: c.creds.JID, Err: fmt.Errorf("send: %w", err)})
	}
}

func (c *Controller) onConnected(attempt uint64) {
	if attempt != c.attempt || c.state != StateConnecting {
		c.logger.Debug("Ignoring stale connect event", "attempt", attempt)
		return
	}

	c.state = StateConnected
	c.conn.AddMessageHandler(attemptObserver{c: c, attempt: attempt})
	c.logger.Info("Session established", "jid", c.creds.JID)

	c.emit(ControlsEnabled{Enabled: true})
	c.emit(StatusChanged{State: StateConnected, JID: c.creds.JID})
}

func (c *Controller) onMessage(attempt uint64, raw string) {
	if attempt != c.attempt || c.state != StateConnected {
		return
	}
	c.emit(ReceiveText{Text: raw})
}

func (c *Controller) onDisconnected(attempt uint64, err error) {
	if attempt != c.attempt {
		return
	}

	prev := c.state
	c.teardown()
	c.state = StateDisconnected

	if prev == StateConnected {
		c.emit(ControlsEnabled{Enabled: false})
	}
	c.emit(StatusChanged{State: StateDisconnected, JID: c.creds.JID, Err: err})
}

func (c *Controller) shutdown() {
	close(c.closing)

	if c.conn != nil {
		c.conn.Disconnect()
	}

	c.lib.Stop()
	if c.loopCancel != nil {
		c.loopCancel()
	}
	if c.started.Load() {
		<-c.loopDone
	}

	if c.conn != nil {
		c.conn.Release()
		c.conn = nil
	}
	c.attempt++
	c.creds.Clear()
	c.state = StateDisconnected
	close(c.updates)

	c.logger.Debug("Session controller stopped")
}

// attemptObserver routes protocol callbacks for one connection attempt back
// onto the controller goroutine.
type attemptObserver struct {
	c       *Controller
	attempt uint64
}

func (o attemptObserver) OnConnected() {
	o.c.enqueue(func() { o.c.onConnected(o.attempt) })
}

func (o attemptObserver) OnDisconnected(err error) {
	o.c.enqueue(func() { o.c.onDisconnected(o.attempt, err) })
}

func (o attemptObserver) OnMessage(raw string) {
	o.c.enqueue(func() { o.c.onMessage(o.attempt, raw) })
}
