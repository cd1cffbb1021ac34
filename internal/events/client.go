// Package events maintains the live Socket.IO connection that delivers
// task-assignment notifications for the current session.
package events

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nhle/taskflow/internal/api"
	"github.com/nhle/taskflow/internal/model"
)

// EventTaskAssigned is the only event the client consumes.
const EventTaskAssigned = "task:assigned"

const handshakeTimeout = 10 * time.Second

var (
	errServerClosed     = errors.New("server closed the connection")
	errServerDisconnect = errors.New("server disconnected the socket")
)

// State is the connection lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config configures a Client.
type Config struct {
	// BaseURL is the backend origin; http(s) is mapped to ws(s).
	BaseURL *url.URL

	// Path is the Socket.IO endpoint, "/socket.io/" by default.
	Path string

	// Jar supplies the session cookies sent with the upgrade request.
	Jar http.CookieJar

	Reconnect      bool
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// MaxAttempts caps consecutive redials; 0 retries until Disconnect.
	MaxAttempts int

	Inbox   *Inbox
	Alerter Alerter
}

// ConfigFrom builds a Config from application settings.
func ConfigFrom(base *url.URL, jar http.CookieJar, ec model.EventsConfig, nc model.NotificationsConfig) Config {
	return Config{
		BaseURL:        base,
		Path:           ec.Path,
		Jar:            jar,
		Reconnect:      ec.Reconnect,
		InitialBackoff: ec.InitialBackoff(),
		MaxBackoff:     ec.MaxBackoff(),
		MaxAttempts:    ec.MaxAttempts,
		Inbox:          NewInbox(nc.Capacity),
	}
}

// Client owns at most one live connection. It is created once per
// session and shared by whoever needs notifications.
type Client struct {
	cfg     Config
	inbox   *Inbox
	alerter Alerter
	dialer  *websocket.Dialer

	mu       sync.Mutex
	state    State
	stateSeq uint64
	identity string
	link     *link

	// emitMu serializes state delivery; emitted is the last seq delivered.
	emitMu  sync.Mutex
	emitted uint64

	subMu      sync.Mutex
	nextSub    int
	onAssigned map[int]func(model.NotificationEvent)
	onState    map[int]func(State)
}

// link is one Connect generation: the dial, the live connection, and any
// reconnects that follow until Disconnect or give-up.
type link struct {
	cancel context.CancelFunc
	done   chan struct{}

	writeMu sync.Mutex
	conn    *websocket.Conn
}

func (l *link) write(data []byte) error {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	if l.conn == nil {
		return errors.New("not connected")
	}
	return l.conn.WriteMessage(websocket.TextMessage, data)
}

func (l *link) setConn(conn *websocket.Conn) {
	l.writeMu.Lock()
	l.conn = conn
	l.writeMu.Unlock()
}

// NewClient creates a disconnected client.
func NewClient(cfg Config) *Client {
	if cfg.Path == "" {
		cfg.Path = "/socket.io/"
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	inbox := cfg.Inbox
	if inbox == nil {
		inbox = NewInbox(DefaultInboxCapacity)
	}
	var alerter Alerter = NopAlerter{}
	if cfg.Alerter != nil {
		alerter = cfg.Alerter
	}

	return &Client{
		cfg:     cfg,
		inbox:   inbox,
		alerter: alerter,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
			Jar:              cfg.Jar,
		},
		onAssigned: make(map[int]func(model.NotificationEvent)),
		onState:    make(map[int]func(State)),
	}
}

// Inbox returns the notification inbox fed by this client.
func (c *Client) Inbox() *Inbox {
	return c.inbox
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Identity returns the session id of the current or last connection.
func (c *Client) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// OnAssigned registers fn for every accepted task:assigned event. The
// returned function removes it.
func (c *Client) OnAssigned(fn func(model.NotificationEvent)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.onAssigned[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.onAssigned, id)
		c.subMu.Unlock()
	}
}

// OnStateChange registers fn for every state transition. Transitions are
// delivered in order and a transition superseded before delivery is
// skipped, so the last value seen is the current state. fn must not call
// back into the Client.
func (c *Client) OnStateChange(fn func(State)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.onState[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.onState, id)
		c.subMu.Unlock()
	}
}

// Connect opens the connection for identity. It is a no-op returning nil
// while a connection exists or is being established.
func (c *Client) Connect(ctx context.Context, identity string) error {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return &api.ValidationError{Field: "identity", Message: "a session id is required to connect"}
	}

	c.mu.Lock()
	if c.link != nil {
		c.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(context.Background())
	l := &link{cancel: cancel, done: make(chan struct{})}
	c.link = l
	c.identity = identity
	seq := c.setState(Connecting)
	c.mu.Unlock()
	c.emitState(seq, Connecting)

	dialCtx, stop := context.WithCancel(ctx)
	defer stop()
	unlink := context.AfterFunc(runCtx, stop)
	defer unlink()

	conn, open, err := c.dial(dialCtx, identity)
	if err != nil {
		close(l.done)
		c.release(l)
		return &api.NetworkError{Op: "connect event stream", Err: err}
	}

	c.mu.Lock()
	if c.link != l {
		// Disconnected while dialing.
		c.mu.Unlock()
		conn.Close()
		close(l.done)
		return &api.NetworkError{Op: "connect event stream", Err: context.Canceled}
	}
	l.setConn(conn)
	seq = c.setState(Connected)
	c.mu.Unlock()
	c.emitState(seq, Connected)

	go c.run(runCtx, l, conn, open, identity)
	return nil
}

// Disconnect tears down the connection and stops any reconnect loop.
// It is safe to call when not connected.
func (c *Client) Disconnect() {
	c.mu.Lock()
	l := c.link
	if l == nil {
		c.mu.Unlock()
		return
	}
	c.link = nil
	seq := c.setState(Disconnected)
	c.mu.Unlock()

	l.cancel()
	l.writeMu.Lock()
	if l.conn != nil {
		_ = l.conn.WriteMessage(websocket.TextMessage, disconnectFrame)
		l.conn.Close()
	}
	l.writeMu.Unlock()

	c.emitState(seq, Disconnected)
}

// release clears l if it is still current and reports Disconnected.
func (c *Client) release(l *link) {
	c.mu.Lock()
	if c.link != l {
		c.mu.Unlock()
		return
	}
	c.link = nil
	seq := c.setState(Disconnected)
	c.mu.Unlock()

	l.cancel()
	c.emitState(seq, Disconnected)
}

// transition moves to s if l is still the current link.
func (c *Client) transition(l *link, s State) bool {
	c.mu.Lock()
	if c.link != l {
		c.mu.Unlock()
		return false
	}
	seq := c.setState(s)
	c.mu.Unlock()

	c.emitState(seq, s)
	return true
}

// run reads from conn until it drops, then redials while allowed.
func (c *Client) run(ctx context.Context, l *link, conn *websocket.Conn, open openPacket, identity string) {
	defer close(l.done)

	for {
		err := c.readLoop(ctx, l, conn, open)
		conn.Close()
		if ctx.Err() != nil {
			return
		}
		log.Printf("events: connection lost: %v", err)

		if !c.cfg.Reconnect || !c.transition(l, Reconnecting) {
			c.release(l)
			return
		}

		conn, open, err = c.redial(ctx, identity)
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("events: giving up reconnecting: %v", err)
			}
			c.release(l)
			return
		}

		l.setConn(conn)
		if !c.transition(l, Connected) {
			conn.Close()
			return
		}
		log.Printf("events: reconnected as %s", identity)
	}
}

// redial retries with exponential backoff until it succeeds, attempts run
// out, or ctx is cancelled.
func (c *Client) redial(ctx context.Context, identity string) (*websocket.Conn, openPacket, error) {
	var lastErr error
	for attempt := 1; c.cfg.MaxAttempts <= 0 || attempt <= c.cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, openPacket{}, ctx.Err()
		case <-time.After(c.backoff(attempt)):
		}

		conn, open, err := c.dial(ctx, identity)
		if err == nil {
			return conn, open, nil
		}
		lastErr = err
		log.Printf("events: reconnect attempt %d failed: %v", attempt, err)
	}
	return nil, openPacket{}, fmt.Errorf("after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}

// backoff returns the delay before the given 1-based attempt:
// initial, 2x, 4x, ... capped at MaxBackoff.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.cfg.InitialBackoff
	for i := 1; i < attempt && d < c.cfg.MaxBackoff; i++ {
		d *= 2
	}
	if d > c.cfg.MaxBackoff {
		d = c.cfg.MaxBackoff
	}
	return d
}

// endpoint builds the websocket URL for identity.
func (c *Client) endpoint(identity string) (string, error) {
	if c.cfg.BaseURL == nil {
		return "", errors.New("no backend url configured")
	}

	u := *c.cfg.BaseURL
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(c.cfg.Path, "/")
	q := url.Values{}
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	q.Set("userId", identity)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// dial opens the websocket and completes the Engine.IO and Socket.IO
// handshakes, then registers identity with the server.
func (c *Client) dial(ctx context.Context, identity string) (*websocket.Conn, openPacket, error) {
	endpoint, err := c.endpoint(identity)
	if err != nil {
		return nil, openPacket{}, err
	}

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, openPacket{}, &api.AuthError{Message: "event stream rejected the session"}
		}
		return nil, openPacket{}, fmt.Errorf("dialing %s: %w", c.cfg.BaseURL.Host, err)
	}

	open, err := c.handshake(ctx, conn, identity)
	if err != nil {
		conn.Close()
		return nil, openPacket{}, err
	}
	return conn, open, nil
}

func (c *Client) handshake(ctx context.Context, conn *websocket.Conn, identity string) (openPacket, error) {
	deadline := time.Now().Add(handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	p, err := readPacket(conn)
	if err != nil {
		return openPacket{}, fmt.Errorf("reading open packet: %w", err)
	}
	open, err := decodeOpen(p)
	if err != nil {
		return openPacket{}, err
	}

	if err := conn.WriteMessage(websocket.TextMessage, connectFrame); err != nil {
		return openPacket{}, fmt.Errorf("sending connect: %w", err)
	}

	for acked := false; !acked; {
		p, err := readPacket(conn)
		if err != nil {
			return openPacket{}, fmt.Errorf("awaiting connect ack: %w", err)
		}

		switch {
		case p.Engine == enginePing:
			if err := conn.WriteMessage(websocket.TextMessage, pongFrame); err != nil {
				return openPacket{}, fmt.Errorf("sending pong: %w", err)
			}
		case p.Engine == engineMessage && p.Socket == socketConnect:
			acked = true
		case p.Engine == engineMessage && p.Socket == socketConnectError:
			return openPacket{}, connectError(p.Data)
		case p.Engine == engineClose:
			return openPacket{}, errServerClosed
		}
	}

	frame, err := encodeEvent("register", identity)
	if err != nil {
		return openPacket{}, err
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return openPacket{}, fmt.Errorf("registering: %w", err)
	}

	return open, nil
}

// readLoop processes frames until the connection fails or the server
// closes it.
func (c *Client) readLoop(ctx context.Context, l *link, conn *websocket.Conn, open openPacket) error {
	timeout := open.readTimeout()
	for {
		_ = conn.SetReadDeadline(time.Now().Add(timeout))

		p, err := readPacket(conn)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch p.Engine {
		case enginePing:
			if err := l.write(pongFrame); err != nil {
				return fmt.Errorf("sending pong: %w", err)
			}
		case engineClose:
			return errServerClosed
		case engineNoop, enginePong:
		case engineMessage:
			switch p.Socket {
			case socketEvent:
				c.handleEvent(p.Data)
			case socketDisconnect:
				return errServerDisconnect
			case socketConnectError:
				return connectError(p.Data)
			}
		}
	}
}

func (c *Client) handleEvent(data []byte) {
	name, args, err := decodeEvent(data)
	if err != nil {
		log.Printf("events: discarding frame: %v", err)
		return
	}
	if name != EventTaskAssigned {
		return
	}

	var payload []byte
	if len(args) > 0 {
		payload = args[0]
	}

	ev, err := decodeAssigned(payload, time.Now())
	if err != nil {
		log.Printf("events: discarding %s event: %v", name, err)
		return
	}
	ev.ID = uuid.NewString()

	c.inbox.Push(ev)

	if err := c.alerter.Alert(); err != nil {
		log.Printf("events: alert failed: %v", err)
	}

	c.subMu.Lock()
	fns := make([]func(model.NotificationEvent), 0, len(c.onAssigned))
	for _, fn := range c.onAssigned {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// setState records s and returns its sequence number. c.mu must be held.
func (c *Client) setState(s State) uint64 {
	c.state = s
	c.stateSeq++
	return c.stateSeq
}

// emitState delivers s unless a later transition was already delivered.
func (c *Client) emitState(seq uint64, s State) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if seq <= c.emitted {
		return
	}
	c.emitted = seq

	c.subMu.Lock()
	fns := make([]func(State), 0, len(c.onState))
	for _, fn := range c.onState {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

func readPacket(conn *websocket.Conn) (packet, error) {
	for {
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			return packet{}, err
		}
		if kind != websocket.TextMessage {
			continue
		}
		return decodePacket(msg)
	}
}
