// Package conn owns the lifecycle of the realtime transport connection:
// exactly one live websocket per authenticated identity, authenticated on
// connect, with bounded reconnection and an event-bus fan-out of every
// inbound frame.
package conn

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatlink/internal/bus"
	"chatlink/internal/metrics"
	"chatlink/internal/status"
	"chatlink/internal/wire"
)

// ErrNotReady is returned by Send when no authenticated connection exists.
// Outbound events are dropped in that case, not queued.
var ErrNotReady = errors.New("connection not ready")

// ErrNoCredentials is returned by Connect when the credential is empty.
var ErrNoCredentials = errors.New("no credentials")

var (
	errSuperseded   = errors.New("connection attempt superseded")
	errAuthRejected = errors.New("authentication rejected")
)

// Credentials identifies one authenticated session. Two credentials with the
// same fingerprint may share a connection; any difference forces a teardown.
type Credentials struct {
	Token  string
	UserID string
}

// Empty reports whether the credential is unusable.
func (c Credentials) Empty() bool {
	return c.Token == "" || c.UserID == ""
}

func (c Credentials) fingerprint() string {
	return c.UserID + "\x00" + c.Token
}

// Options configures the manager.
type Options struct {
	// URL is the backend base URL (http or https); the websocket endpoint
	// is derived from it.
	URL string
	// ReconnectDelay is the fixed interval between reconnection attempts.
	ReconnectDelay time.Duration
	// MaxAttempts bounds consecutive failed connection attempts before a
	// single fatal connectivity error is surfaced.
	MaxAttempts int
}

// Manager maintains the transport connection and republishes every inbound
// transport event on the bus without blocking the read loop on subscribers.
type Manager struct {
	opts    Options
	machine *status.Machine
	bus     *bus.Bus
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu     sync.Mutex
	ws     *websocket.Conn
	creds  Credentials
	gen    int
	cancel context.CancelFunc

	writeMu sync.Mutex
}

// NewManager creates a connection manager. The machine must start in Idle.
// A non-positive MaxAttempts is clamped to a single attempt so the retry
// bound can never underflow into an unbounded schedule.
func NewManager(opts Options, machine *status.Machine, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *Manager {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Manager{
		opts:    opts,
		machine: machine,
		bus:     b,
		metrics: m,
		logger:  logger,
	}
}

// Connect establishes a connection for the given credentials. Idempotent: a
// live connection with a matching fingerprint makes this a no-op; a
// credential change tears the old connection down first. The dial and
// handshake run in the background; progress is observable through
// session.status_changed and conn.* bus events.
func (m *Manager) Connect(creds Credentials) error {
	if creds.Empty() {
		return ErrNoCredentials
	}

	m.mu.Lock()
	if m.ws != nil && m.creds.fingerprint() == creds.fingerprint() {
		m.mu.Unlock()
		return nil
	}
	m.teardownLocked()
	m.creds = creds
	m.gen++
	gen := m.gen
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.mu.Unlock()

	if m.machine.Current() != status.Idle {
		_ = m.machine.Transition(status.Idle)
	}
	_ = m.machine.Transition(status.Connecting)
	go m.run(ctx, gen, creds)
	return nil
}

// Disconnect closes the connection and clears the credential fingerprint and
// reconnect state. Always safe to call.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.creds = Credentials{}
	m.gen++
	m.teardownLocked()
	m.mu.Unlock()

	if m.machine.Current() != status.Idle {
		_ = m.machine.Transition(status.Idle)
	}
}

// Credentials returns the credentials of the current session, if any.
func (m *Manager) Credentials() Credentials {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creds
}

// Send writes an outbound event. Returns ErrNotReady (after a logged
// warning) unless the connection is authenticated; there is no queueing.
func (m *Manager) Send(event string, payload any) error {
	if m.machine.Current() != status.Ready {
		m.logger.Warn("dropping outbound event: connection not ready",
			zap.String("event", event),
			zap.String("state", string(m.machine.Current())))
		if m.metrics != nil {
			m.metrics.DroppedSends.Inc()
		}
		return ErrNotReady
	}

	m.mu.Lock()
	ws := m.ws
	m.mu.Unlock()
	if ws == nil {
		return ErrNotReady
	}
	return m.write(ws, event, payload)
}

func (m *Manager) write(ws *websocket.Conn, event string, payload any) error {
	env, err := wire.Encode(event, payload)
	if err != nil {
		return err
	}
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := ws.WriteJSON(env); err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

// teardownLocked closes the current transport handle. Callers hold m.mu.
func (m *Manager) teardownLocked() {
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	if m.ws != nil {
		_ = m.ws.Close()
		m.ws = nil
	}
}

func (m *Manager) stale(gen int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen != m.gen
}

// run dials, authenticates, and reads until the connection is superseded,
// authentication is rejected, or the reconnect budget is exhausted.
func (m *Manager) run(ctx context.Context, gen int, creds Credentials) {
	bo := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(m.opts.ReconnectDelay),
		uint64(m.opts.MaxAttempts-1),
	)

	op := func() error {
		if m.stale(gen) || ctx.Err() != nil {
			return backoff.Permanent(errSuperseded)
		}
		err := m.connectOnce(ctx, gen, creds, bo)
		if m.stale(gen) || ctx.Err() != nil {
			return backoff.Permanent(errSuperseded)
		}
		if errors.Is(err, errAuthRejected) {
			return backoff.Permanent(err)
		}

		// Transport failed; fall into the retry schedule.
		m.logger.Warn("transport connection lost", zap.Error(err))
		if m.metrics != nil {
			m.metrics.ReconnectAttempts.Inc()
		}
		if m.machine.Current() != status.Reconnecting {
			_ = m.machine.Transition(status.Reconnecting)
		}
		m.publish(bus.KindConnClosed, err.Error())
		return err
	}

	err := backoff.Retry(op, backoff.WithContext(bo, ctx))
	switch {
	case err == nil, errors.Is(err, errSuperseded), errors.Is(err, context.Canceled):
		return
	case errors.Is(err, errAuthRejected):
		// Already surfaced as conn.auth_error by the read loop; the caller
		// must re-supply credentials.
		m.mu.Lock()
		m.creds = Credentials{}
		m.teardownLocked()
		m.mu.Unlock()
		if m.machine.Current() != status.Idle {
			_ = m.machine.Transition(status.Idle)
		}
	default:
		// Retry budget exhausted: exactly one fatal connectivity error.
		m.logger.Error("reconnect attempts exhausted",
			zap.Int("max_attempts", m.opts.MaxAttempts), zap.Error(err))
		m.publish(bus.KindConnFatal, err.Error())
		if m.machine.Current() != status.Idle {
			_ = m.machine.Transition(status.Idle)
		}
	}
}

// connectOnce performs one dial + authenticate + read-until-error cycle.
func (m *Manager) connectOnce(ctx context.Context, gen int, creds Credentials, bo backoff.BackOff) error {
	if cur := m.machine.Current(); cur == status.Reconnecting {
		_ = m.machine.Transition(status.Connecting)
	}
	if m.metrics != nil {
		m.metrics.ConnectAttempts.Inc()
	}

	endpoint, err := wsEndpoint(m.opts.URL)
	if err != nil {
		return backoff.Permanent(err)
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		_ = ws.Close()
		return errSuperseded
	}
	m.ws = ws
	m.mu.Unlock()

	_ = m.machine.Transition(status.AwaitingAuth)
	if err := m.write(ws, wire.EventAuthenticate, wire.AuthPayload{Token: creds.Token}); err != nil {
		m.dropHandle(ws)
		return err
	}

	err = m.readLoop(ws, bo)
	m.dropHandle(ws)
	return err
}

// dropHandle closes ws and clears it from the manager if still current.
func (m *Manager) dropHandle(ws *websocket.Conn) {
	m.mu.Lock()
	if m.ws == ws {
		m.ws = nil
	}
	m.mu.Unlock()
	_ = ws.Close()
}

// wsEndpoint derives the websocket URL from the configured base URL.
func wsEndpoint(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	return u.String(), nil
}
