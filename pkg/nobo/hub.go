package nobo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// State is the lifecycle stage of a Hub's session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateHandshaking
	StateSyncing
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateSyncing:
		return "syncing"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	// tcpKeepAlive is the TCP keep-alive period of the hub connection.
	tcpKeepAlive = 20 * time.Second

	// writeTimeout bounds a Send whose context has no deadline.
	writeTimeout = 10 * time.Second
)

// Hub is a session with a Nobø hub. It keeps the Store in sync with the
// hub's pushed updates and sends commands. Command effects are observed
// through later updates; Send never waits for a reply.
type Hub struct {
	serial   string
	cfg      *hubConfig
	logger   *slog.Logger
	store    *Store
	notifier *notifier

	mu    sync.Mutex
	conn  net.Conn
	state State
	done  chan struct{}
	err   error

	writeMu sync.Mutex
}

// session is the per-connection state shared by the pump and heartbeat.
type session struct {
	conn      net.Conn
	frames    *FrameReader
	done      chan struct{}
	ready     chan struct{}
	readyOnce sync.Once
}

func (s *session) markReady() {
	s.readyOnce.Do(func() { close(s.ready) })
}

// NewHub creates a Hub for the given serial. The serial may be the full
// 12 digits, the last 3 digits (combined with the discovered prefix), or
// empty to accept the first hub discovered. No connection is made until
// Connect.
func NewHub(serial string, opts ...HubOption) (*Hub, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("invalid option: %w", err)
		}
	}
	if !cfg.discovery && serial == "" {
		return nil, errors.New("serial required when discovery is disabled")
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	done := make(chan struct{})
	close(done)

	return &Hub{
		serial:   serial,
		cfg:      cfg,
		logger:   logger,
		store:    NewStore(),
		notifier: newNotifier(logger),
		done:     done,
	}, nil
}

// Store returns the hub's model. It is updated in place by the session.
func (h *Hub) Store() *Store {
	return h.store
}

// State returns the current session state.
func (h *Hub) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done is closed when the current session ends. Before the first Connect
// it is already closed.
func (h *Hub) Done() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

// Err returns the reason the last session ended, or nil if it is still
// running or was closed cleanly.
func (h *Hub) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Subscribe returns a channel receiving notifications and a function that
// cancels the subscription. Notifications are dropped for a subscriber
// whose buffer is full.
func (h *Hub) Subscribe(buffer int) (<-chan Notification, func()) {
	return h.notifier.subscribe(buffer)
}

func (h *Hub) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// Connect finds a hub, performs the handshake and blocks until the first
// full refresh has been received. Candidates that fail are skipped; if none
// succeeds the error wraps ErrNoHubReachable. A closed Hub can be connected
// again. Only one Connect may be in progress or live at a time.
func (h *Hub) Connect(ctx context.Context) error {
	h.mu.Lock()
	if h.conn != nil || h.busy() {
		h.mu.Unlock()
		return ErrAlreadyConnected
	}
	h.state = StateConnecting
	h.mu.Unlock()

	candidates, err := h.candidates(ctx)
	if err != nil {
		h.setState(StateClosed)
		return fmt.Errorf("%w: %w", ErrNoHubReachable, err)
	}

	var lastErr error
	for _, c := range candidates {
		err := h.connectCandidate(ctx, c)
		if err == nil {
			return nil
		}
		lastErr = err
		h.logger.Warn("hub candidate failed", "ip", c.IP, "serial", c.Serial, "error", err)
		if ctx.Err() != nil {
			break
		}
	}

	h.setState(StateClosed)
	if lastErr == nil {
		return fmt.Errorf("%w: no candidates", ErrNoHubReachable)
	}
	return fmt.Errorf("%w: %w", ErrNoHubReachable, lastErr)
}

// busy reports whether a session is being set up or running. h.mu must be
// held.
func (h *Hub) busy() bool {
	return h.state >= StateConnecting && h.state <= StateReady
}

// candidates returns the (address, serial) pairs to try, in order.
func (h *Hub) candidates(ctx context.Context) ([]DiscoveryResult, error) {
	if !h.cfg.discovery {
		return []DiscoveryResult{{IP: h.cfg.address, Serial: h.serial}}, nil
	}

	dctx, cancel := context.WithTimeout(ctx, h.cfg.discoveryTimeout)
	defer cancel()
	found, err := h.cfg.discover(dctx)
	if err != nil {
		return nil, err
	}

	out := make([]DiscoveryResult, 0, len(found))
	for _, r := range found {
		serial, ok := resolveSerial(r.Serial, h.serial)
		if !ok {
			h.logger.Debug("ignoring hub with other serial", "ip", r.IP, "serial", r.Serial)
			continue
		}
		out = append(out, DiscoveryResult{IP: r.IP, Serial: serial})
	}
	return out, nil
}

// resolveSerial combines a beacon serial with the configured one. Beacons
// carry the first 9 digits of the serial.
func resolveSerial(beacon, configured string) (string, bool) {
	switch {
	case configured == "":
		return beacon, true
	case len(configured) == 3 && len(beacon) < 12:
		return beacon + configured, true
	case len(configured) == 12:
		return configured, strings.HasPrefix(configured, beacon)
	default:
		return beacon, true
	}
}

func (h *Hub) connectCandidate(ctx context.Context, c DiscoveryResult) error {
	h.setState(StateConnecting)

	addr := net.JoinHostPort(c.IP, strconv.Itoa(h.cfg.port))
	dialCtx, cancel := context.WithTimeout(ctx, h.cfg.connectTimeout)
	d := net.Dialer{KeepAlive: tcpKeepAlive}
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	cancel()
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	h.logger.Debug("connected to hub", "addr", addr)

	h.setState(StateHandshaking)
	frames := NewFrameReader(conn)
	if err := h.handshake(ctx, conn, frames, c.Serial); err != nil {
		conn.Close()
		return err
	}

	s := &session{
		conn:   conn,
		frames: frames,
		done:   make(chan struct{}),
		ready:  make(chan struct{}),
	}
	h.mu.Lock()
	h.conn = conn
	h.done = s.done
	h.err = nil
	h.state = StateSyncing
	h.mu.Unlock()

	go h.pump(s)
	go h.heartbeat(s)

	if err := h.Send(ctx, CmdGetAllInfo); err != nil {
		h.Close()
		return fmt.Errorf("request full refresh: %w", err)
	}

	select {
	case <-s.ready:
		h.logger.Info("hub ready", "addr", addr, "serial", c.Serial)
		return nil
	case <-s.done:
		if err := h.Err(); err != nil {
			return fmt.Errorf("session ended before ready: %w", err)
		}
		return fmt.Errorf("session ended before ready: %w", io.EOF)
	case <-ctx.Done():
		h.Close()
		return fmt.Errorf("waiting for hub info: %w", ctx.Err())
	}
}

// handshake runs HELLO and HANDSHAKE on a fresh connection.
func (h *Hub) handshake(ctx context.Context, conn net.Conn, frames *FrameReader, serial string) error {
	deadline := time.Now().Add(h.cfg.handshakeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return err
	}
	defer conn.SetDeadline(time.Time{})

	if err := h.writeCommand(conn, deadline, CmdHello, ProtocolVersion, serial, FormatTimestamp(h.cfg.now())); err != nil {
		return fmt.Errorf("send %s: %w", CmdHello, err)
	}
	reply, ok := frames.Next()
	if !ok {
		return fmt.Errorf("%w: no reply to %s: %v", ErrHandshakeFailed, CmdHello, frames.Err())
	}
	if reply[0] != string(CmdHello) {
		return fmt.Errorf("%w: hub answered %s with %q", ErrHandshakeFailed, CmdHello, strings.Join(reply, " "))
	}
	if h.cfg.strictHandshake && (len(reply) < 2 || reply[1] != ProtocolVersion) {
		return fmt.Errorf("%w: hub speaks %q, want %s", ErrHandshakeFailed, strings.Join(reply[1:], " "), ProtocolVersion)
	}

	if err := h.writeCommand(conn, deadline, CmdHandshake); err != nil {
		return fmt.Errorf("send %s: %w", CmdHandshake, err)
	}
	reply, ok = frames.Next()
	if !ok {
		return fmt.Errorf("%w: no reply to %s: %v", ErrHandshakeFailed, CmdHandshake, frames.Err())
	}
	if reply[0] != string(RespHandshake) {
		return fmt.Errorf("%w: hub answered %s with %q", ErrHandshakeFailed, CmdHandshake, strings.Join(reply, " "))
	}

	h.logger.Debug("handshake complete", "serial", serial)
	return nil
}

// pump reads, decodes and applies frames until the stream ends. It is the
// only writer of the Store.
func (h *Hub) pump(s *session) {
	var cause error
	defer func() {
		s.conn.Close()
		h.mu.Lock()
		if h.conn == s.conn {
			h.conn = nil
			h.state = StateClosed
			h.err = cause
		}
		h.mu.Unlock()
		close(s.done)
		h.notifier.publish(Notification{Kind: NotifyClosed, Err: cause})
		h.logger.Debug("session ended", "error", cause)
	}()

	for tokens := range s.frames.All() {
		msg, err := Decode(tokens)
		if err != nil {
			h.logger.Error("undecodable frame, closing session", "frame", strings.Join(tokens, " "), "error", err)
			cause = err
			return
		}
		h.dispatch(s, msg)
	}
	if err := s.frames.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		cause = err
	}
}

// dispatch applies msg to the Store and publishes the resulting
// notifications. Invalid entities are dropped.
func (h *Hub) dispatch(s *session, msg Message) {
	h.logger.Debug("message received", "code", msg.Code())

	if err := h.store.Apply(msg); err != nil {
		h.logger.Warn("dropping invalid message", "code", msg.Code(), "error", err)
		h.notifier.publish(Notification{Kind: NotifyError, Message: msg, Err: err})
		return
	}

	switch m := msg.(type) {
	case HubInfoMessage:
		if m.RespCode == RespHubInfo {
			h.mu.Lock()
			if h.conn == s.conn && h.state == StateSyncing {
				h.state = StateReady
			}
			h.mu.Unlock()
			s.markReady()
			h.notifier.publish(Notification{Kind: NotifyReady, Message: msg})
		}
	case InternetAccessMessage:
		h.notifier.publish(Notification{Kind: NotifyInternetAccess, Message: msg, InternetAccess: m.Access})
	case HubErrorMessage:
		hubErr := m.Err
		h.logger.Warn("hub reported error", "code", hubErr.Code, "message", hubErr.Message)
		h.notifier.publish(Notification{Kind: NotifyError, Message: msg, Err: &hubErr})
	}

	h.notifier.publish(Notification{Kind: NotifyUpdate, Message: msg})
}

// heartbeat keeps the session alive until it ends. Failed sends are only
// logged; a dead connection surfaces through the pump.
func (h *Hub) heartbeat(s *session) {
	t := time.NewTicker(h.cfg.heartbeatInterval)
	defer t.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-t.C:
			deadline := time.Now().Add(h.cfg.heartbeatInterval)
			if err := h.writeCommand(s.conn, deadline, CmdHandshake); err != nil {
				h.logger.Debug("heartbeat failed", "error", err)
			}
		}
	}
}

// Send writes a command to the hub. It returns once the frame is written and
// does not wait for any reply. The write is bounded by the context deadline,
// or by writeTimeout when the context has none.
func (h *Hub) Send(ctx context.Context, cmd Command, args ...string) error {
	if _, err := EncodeCommand(cmd, args...); err != nil {
		return err
	}

	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeTimeout)
	}
	if err := h.writeCommand(conn, deadline, cmd, args...); err != nil {
		h.logger.Error("failed to send command", "cmd", cmd, "error", err)
		return fmt.Errorf("send %s: %w", cmd, err)
	}
	h.logger.Debug("command sent", "cmd", cmd, "args", len(args))
	return nil
}

// writeCommand encodes and writes one frame. The write fails once deadline
// passes, so a stalled connection never holds writeMu for long.
func (h *Hub) writeCommand(conn net.Conn, deadline time.Time, cmd Command, args ...string) error {
	data, err := EncodeCommand(cmd, args...)
	if err != nil {
		return err
	}
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	defer conn.SetWriteDeadline(time.Time{})
	_, err = conn.Write(data)
	return err
}

// Close ends the current session and waits for the pump to stop.
func (h *Hub) Close() error {
	h.mu.Lock()
	conn := h.conn
	done := h.done
	h.mu.Unlock()
	if conn == nil {
		return nil
	}

	err := conn.Close()
	<-done
	h.logger.Debug("connection closed")
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
