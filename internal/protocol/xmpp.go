package protocol

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"mellium.im/sasl"
	"mellium.im/xmlstream"
	"mellium.im/xmpp"
	"mellium.im/xmpp/dial"
	"mellium.im/xmpp/jid"
)

// Options configures how XMPP connections are negotiated.
type Options struct {
	// InsecureSkipVerify disables certificate verification during STARTTLS.
	InsecureSkipVerify bool

	// Timeout bounds dialing and stream negotiation.
	Timeout time.Duration

	// Resource is requested during resource binding when the JID has none.
	Resource string
}

// XMPP is a Library backed by mellium.im/xmpp.
type XMPP struct {
	opts   Options
	logger *slog.Logger

	jobs     chan func(context.Context)
	quit     chan struct{}
	stopOnce sync.Once
}

// NewXMPP creates a protocol context. Run must be called for any connection
// created from it to make progress.
func NewXMPP(opts Options, logger *slog.Logger) *XMPP {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &XMPP{
		opts:   opts,
		logger: logger,
		jobs:   make(chan func(context.Context), 16),
		quit:   make(chan struct{}),
	}
}

// NewConnection implements Library.
func (x *XMPP) NewConnection() Conn {
	return &xmppConn{lib: x}
}

// Run implements Library. Every connection attempt runs as a worker of the
// loop; Run returns only after all workers have finished.
func (x *XMPP) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case <-x.quit:
			cancel()
			return g.Wait()
		case job := <-x.jobs:
			g.Go(func() error {
				job(ctx)
				return nil
			})
		}
	}
}

// Stop implements Library.
func (x *XMPP) Stop() {
	x.stopOnce.Do(func() { close(x.quit) })
}

func (x *XMPP) schedule(job func(context.Context)) bool {
	select {
	case <-x.quit:
		return false
	default:
	}
	select {
	case x.jobs <- job:
		return true
	case <-x.quit:
		return false
	}
}

func (x *XMPP) dial(ctx context.Context, origin jid.JID, password, host string, port int) (*xmpp.Session, net.Conn, error) {
	var (
		conn net.Conn
		err  error
	)
	if host == "" {
		conn, err = dial.Client(ctx, "tcp", origin)
	} else {
		if port == 0 {
			port = DefaultPort
		}
		var d net.Dialer
		conn, err = d.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", origin.Domain(), err)
	}

	tlsConfig := &tls.Config{
		ServerName:         origin.Domain().String(),
		InsecureSkipVerify: x.opts.InsecureSkipVerify,
		MinVersion:         tls.VersionTLS12,
	}

	session, err := xmpp.NewClientSession(ctx, origin, conn,
		xmpp.StartTLS(tlsConfig),
		xmpp.SASL("", password,
			sasl.ScramSha256Plus, sasl.ScramSha1Plus,
			sasl.ScramSha256, sasl.ScramSha1,
			sasl.Plain,
		),
		xmpp.BindResource(),
	)
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("negotiate stream: %w", err)
	}
	return session, conn, nil
}

type xmppConn struct {
	lib *XMPP

	mu       sync.Mutex
	jid      string
	password string
	session  *xmpp.Session
	netConn  net.Conn
	handlers []MessageHandler
	cancel   context.CancelFunc
	closing  bool
	released bool
}

func (c *xmppConn) SetJID(jid string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jid = jid
}

func (c *xmppConn) SetPassword(password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.password = password
}

func (c *xmppConn) Connect(host string, port int, obs Observer) error {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return ErrReleased
	}
	rawJID, password := c.jid, c.password
	c.mu.Unlock()

	origin, err := jid.Parse(strings.TrimSpace(rawJID))
	if err != nil {
		return fmt.Errorf("invalid JID %q: %w", rawJID, err)
	}
	if origin.Resourcepart() == "" && c.lib.opts.Resource != "" {
		if withRes, err := origin.WithResource(c.lib.opts.Resource); err == nil {
			origin = withRes
		}
	}

	if !c.lib.schedule(func(loopCtx context.Context) { c.run(loopCtx, origin, password, host, port, obs) }) {
		return fmt.Errorf("event loop stopped")
	}
	return nil
}

func (c *xmppConn) run(loopCtx context.Context, origin jid.JID, password, host string, port int, obs Observer) {
	logger := c.lib.logger.With("jid", origin.String())

	ctx, cancel := context.WithCancel(loopCtx)
	defer cancel()

	c.mu.Lock()
	if c.released || c.closing {
		c.mu.Unlock()
		return
	}
	c.cancel = cancel
	c.mu.Unlock()

	logger.Info("Connecting", "host", host, "port", port)

	dialCtx, dialCancel := context.WithTimeout(ctx, c.lib.opts.Timeout)
	session, netConn, err := c.lib.dial(dialCtx, origin, password, host, port)
	dialCancel()
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("Connection attempt failed", "err", err)
			obs.OnDisconnected(err)
		}
		return
	}

	c.mu.Lock()
	if c.released || c.closing || ctx.Err() != nil {
		c.mu.Unlock()
		_ = session.Close()
		_ = netConn.Close()
		return
	}
	c.session = session
	c.netConn = netConn
	c.mu.Unlock()

	// Unblock Serve when the loop is stopped.
	stopWatch := context.AfterFunc(ctx, func() { _ = netConn.Close() })
	defer stopWatch()

	logger.Info("Connected", "bound", session.LocalAddr().String())
	obs.OnConnected()

	err = session.Serve(xmpp.HandlerFunc(func(t xmlstream.TokenReadEncoder, start *xml.StartElement) error {
		raw, err := encodeStanza(start, t)
		if err != nil {
			logger.Warn("Unable to encode inbound stanza", "err", err)
			return nil
		}
		logger.Debug("RECV", "stanza", raw)
		c.dispatch(raw)
		return nil
	}))

	c.mu.Lock()
	closing := c.closing
	c.session = nil
	c.netConn = nil
	c.mu.Unlock()

	_ = session.Close()
	_ = netConn.Close()

	if !closing && ctx.Err() == nil {
		if err == nil {
			err = fmt.Errorf("stream closed by server")
		}
		logger.Error("Connection lost", "err", err)
		obs.OnDisconnected(err)
	}
}

func (c *xmppConn) dispatch(raw string) {
	c.mu.Lock()
	handlers := append([]MessageHandler(nil), c.handlers...)
	c.mu.Unlock()

	for _, h := range handlers {
		h.OnMessage(raw)
	}
}

func (c *xmppConn) AddMessageHandler(h MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

func (c *xmppConn) SendRaw(ctx context.Context, text string) error {
	c.mu.Lock()
	session := c.session
	released := c.released
	c.mu.Unlock()

	if released {
		return ErrReleased
	}
	if session == nil {
		return ErrNotConnected
	}

	c.lib.logger.Debug("SEND", "stanza", text)
	if err := writeRaw(ctx, session, text); err != nil {
		return fmt.Errorf("send raw: %w", err)
	}
	return nil
}

// rawStream is the part of *xmpp.Session needed to put bytes on the wire
// without re-encoding them.
type rawStream interface {
	TokenWriter() xmlstream.TokenWriteFlushCloser
	Conn() net.Conn
}

// writeRaw writes text to the stream byte for byte. The session's token
// writer is held for the duration so no stanza is interleaved with it.
func writeRaw(ctx context.Context, s rawStream, text string) error {
	w := s.TokenWriter()
	defer w.Close()

	if err := w.Flush(); err != nil {
		return err
	}

	conn := s.Conn()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetWriteDeadline(deadline); err != nil {
			return err
		}
		defer func() { _ = conn.SetWriteDeadline(time.Time{}) }()
	}

	_, err := io.WriteString(conn, text)
	return err
}

func (c *xmppConn) Disconnect() {
	c.mu.Lock()
	c.closing = true
	session, netConn, cancel := c.session, c.netConn, c.cancel
	c.mu.Unlock()

	if session != nil {
		if err := session.Close(); err != nil {
			c.lib.logger.Debug("Error closing stream", "err", err)
		}
	}
	if netConn != nil {
		_ = netConn.Close()
	}
	if cancel != nil {
		cancel()
	}
}

func (c *xmppConn) Release() {
	c.mu.Lock()
	c.released = true
	c.handlers = nil
	c.password = ""
	c.mu.Unlock()
}

// encodeStanza re-encodes the element starting at start, reading its children
// and end element from r.
func encodeStanza(start *xml.StartElement, r xml.TokenReader) (string, error) {
	var buf strings.Builder
	e := xml.NewEncoder(&buf)
	if _, err := xmlstream.Copy(e, xmlstream.Wrap(xmlstream.Inner(r), *start)); err != nil {
		return "", err
	}
	if err := e.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
