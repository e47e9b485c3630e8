package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Pix4D/pod-arsdkengine/pkg/log"
	"github.com/Pix4D/pod-arsdkengine/pkg/transport"
	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// Connection errors.
var (
	ErrConnectionClosed = errors.New("connection manager closed")
	ErrAlreadyConnected = errors.New("already connected")
)

// DefaultDialTimeout bounds one dial attempt of the reconnect loop.
const DefaultDialTimeout = 30 * time.Second

// State represents the connection state.
type State uint8

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota

	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting

	// StateConnected indicates an active session.
	StateConnected

	// StateReconnecting indicates automatic reconnection is in progress.
	StateReconnecting

	// StateClosed indicates the connection manager has been closed.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Session is one live link to a device.
// Implemented by transport.Link and mqtt.Backend.
type Session interface {
	transport.Backend

	// Start begins event delivery and the transmit tick.
	Start()

	// Done is closed when the session ends.
	Done() <-chan struct{}

	// Err returns why the session ended, nil after Close.
	Err() error

	// Close ends the session.
	Close() error
}

// Dialer opens a session delivering events to handler. The session must not
// deliver events before Start.
type Dialer func(ctx context.Context, handler transport.EventHandler) (Session, error)

// Device receives the lifecycle of the connection.
// Implemented by device.Controller.
type Device interface {
	transport.EventHandler

	// WillConnect is called with the new session before any event.
	WillConnect(backend transport.Backend)

	// DidDisconnect is called once the session is gone.
	DidDisconnect()
}

// Config configures a Manager.
type Config struct {
	Backoff BackoffConfig

	// MaxAttempts caps consecutive reconnect attempts. Zero retries forever.
	MaxAttempts int

	// DialTimeout bounds each reconnect dial (default DefaultDialTimeout).
	DialTimeout time.Duration

	// Recorder captures state changes. Optional.
	Recorder *log.Recorder

	// Logger is the operational logger (default: slog.Default()).
	Logger *slog.Logger
}

// Manager manages the connection lifecycle with automatic reconnection.
type Manager struct {
	mu sync.RWMutex

	state   State
	session Session

	backoff *Backoff
	dial    Dialer
	device  Device
	rec     *log.Recorder
	logger  *slog.Logger

	autoReconnect bool
	maxAttempts   int
	dialTimeout   time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Serializes session setup and teardown against the device.
	lifecycleMu sync.Mutex

	reconnectCh chan struct{}

	onStateChange  func(oldState, newState State)
	onReconnecting func(attempt int, delay time.Duration)
}

// NewManager creates a connection manager and starts its reconnect loop.
func NewManager(dial Dialer, device Device, config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = DefaultDialTimeout
	}

	m := &Manager{
		state:         StateDisconnected,
		backoff:       NewBackoffWithConfig(config.Backoff),
		dial:          dial,
		device:        device,
		rec:           config.Recorder,
		logger:        config.Logger.With("component", "connection"),
		autoReconnect: true,
		maxAttempts:   config.MaxAttempts,
		dialTimeout:   config.DialTimeout,
		ctx:           ctx,
		cancel:        cancel,
		reconnectCh:   make(chan struct{}, 1),
	}

	m.wg.Add(1)
	go m.reconnectLoop()
	return m
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected returns true while a session is up.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// SetAutoReconnect enables or disables automatic reconnection.
func (m *Manager) SetAutoReconnect(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoReconnect = enabled
}

// OnStateChange sets a callback for state changes. It runs outside the lock.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnReconnecting sets a callback for reconnection attempts.
func (m *Manager) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnecting = fn
}

// BackoffAttempts returns the current number of reconnection attempts.
func (m *Manager) BackoffAttempts() int {
	return m.backoff.Attempts()
}

// Connect dials the device once.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case StateConnected:
		m.mu.Unlock()
		return ErrAlreadyConnected
	case StateClosed:
		m.mu.Unlock()
		return ErrConnectionClosed
	}
	m.mu.Unlock()

	m.setState(StateConnecting, "connect")
	if err := m.open(ctx); err != nil {
		m.setState(StateDisconnected, err.Error())
		return err
	}
	return nil
}

// open dials and sets up a session. On success the state is Connected.
func (m *Manager) open(ctx context.Context) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	sess, err := m.dial(ctx, m.device)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		sess.Close()
		return ErrConnectionClosed
	}
	m.session = sess
	m.mu.Unlock()

	m.device.WillConnect(sess)
	sess.Start()
	if err := sess.Send(&wire.GetAllStates{}); err != nil {
		m.logger.Warn("state request not sent", "error", err)
	}

	m.backoff.Reset()
	m.setState(StateConnected, "session up")

	m.wg.Add(1)
	go m.watch(sess)
	return nil
}

// watch waits for the end of a session.
func (m *Manager) watch(sess Session) {
	defer m.wg.Done()

	select {
	case <-sess.Done():
	case <-m.ctx.Done():
		return
	}

	m.mu.RLock()
	current := m.session == sess
	m.mu.RUnlock()
	if !current {
		// Closed on purpose.
		return
	}
	m.logger.Info("connection lost", "error", sess.Err())
	m.teardown(sess, "link lost")

	m.mu.RLock()
	auto := m.autoReconnect && m.state != StateClosed
	m.mu.RUnlock()

	if auto {
		m.setState(StateReconnecting, "link lost")
		m.triggerReconnect()
	} else {
		m.setState(StateDisconnected, "link lost")
	}
}

// teardown detaches sess and tells the device. Returns false if sess was
// not the current session.
func (m *Manager) teardown(sess Session, reason string) bool {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.mu.Lock()
	if m.session != sess || sess == nil {
		m.mu.Unlock()
		return false
	}
	m.session = nil
	m.mu.Unlock()

	sess.Close()
	m.device.DidDisconnect()
	m.logger.Debug("session closed", "reason", reason)
	return true
}

// Disconnect closes the current session without reconnecting.
func (m *Manager) Disconnect() {
	m.mu.RLock()
	sess := m.session
	state := m.state
	m.mu.RUnlock()

	if state == StateClosed {
		return
	}
	m.teardown(sess, "disconnect")
	m.setState(StateDisconnected, "disconnect")
}

// Close shuts down the manager and its session.
func (m *Manager) Close() {
	m.mu.RLock()
	sess := m.session
	state := m.state
	m.mu.RUnlock()
	if state == StateClosed {
		return
	}

	m.teardown(sess, "close")
	m.setState(StateClosed, "close")
	m.cancel()
	m.wg.Wait()
}

func (m *Manager) setState(newState State, reason string) {
	m.mu.Lock()
	oldState := m.state
	if oldState == newState || oldState == StateClosed {
		m.mu.Unlock()
		return
	}
	m.state = newState
	cb := m.onStateChange
	m.mu.Unlock()

	m.rec.State(log.StateEntityDevice, "connection", oldState.String(), newState.String(), reason)
	if cb != nil {
		cb(oldState, newState)
	}
}

// triggerReconnect wakes the reconnect loop. Extra wakeups coalesce.
func (m *Manager) triggerReconnect() {
	select {
	case m.reconnectCh <- struct{}{}:
	default:
	}
}

// reconnectLoop owns the retry timer. It sleeps while no reconnection is
// wanted and redials each time the timer fires while the state is still
// Reconnecting.
func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	armed := false
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.reconnectCh:
			if !armed {
				armed = m.schedule(timer)
			}
		case <-timer.C:
			armed = false
			if m.State() != StateReconnecting {
				continue
			}
			if err := m.redial(); err != nil {
				m.logger.Debug("reconnect failed", "attempt", m.backoff.Attempts(), "error", err)
				armed = m.schedule(timer)
			}
		}
	}
}

// schedule arms timer for the next attempt. It gives up, leaving the manager
// Disconnected, once maxAttempts is reached.
func (m *Manager) schedule(timer *time.Timer) bool {
	if m.State() != StateReconnecting {
		return false
	}
	if m.maxAttempts > 0 && m.backoff.Attempts() >= m.maxAttempts {
		m.logger.Warn("giving up reconnection", "attempts", m.backoff.Attempts())
		m.backoff.Reset()
		m.setState(StateDisconnected, "retries exhausted")
		return false
	}

	delay := m.backoff.Next()
	m.mu.RLock()
	cb := m.onReconnecting
	m.mu.RUnlock()
	if cb != nil {
		cb(m.backoff.Attempts(), delay)
	}
	timer.Reset(delay)
	return true
}

func (m *Manager) redial() error {
	ctx, cancel := context.WithTimeout(m.ctx, m.dialTimeout)
	defer cancel()
	return m.open(ctx)
}
