package connection

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Pix4D/pod-arsdkengine/pkg/transport"
	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

func TestBackoff(t *testing.T) {
	t.Run("DefaultSequence", func(t *testing.T) {
		b := NewBackoff()

		expected := []time.Duration{
			500 * time.Millisecond,
			1 * time.Second,
			2 * time.Second,
			4 * time.Second,
			8 * time.Second,
			15 * time.Second,
			15 * time.Second,
		}
		for i, exp := range expected {
			if got := b.Current(); got != exp {
				t.Errorf("Attempt %d: base = %v, want %v", i, got, exp)
			}
			b.Next()
		}
	})

	t.Run("Jitter", func(t *testing.T) {
		b := NewBackoff()
		hi := time.Duration(float64(InitialBackoff) * (1 + JitterFactor))

		distinct := map[time.Duration]bool{}
		for i := 0; i < 20; i++ {
			s := b.Peek()
			if s < InitialBackoff || s > hi {
				t.Errorf("Sample %d: %v out of range [%v, %v]", i, s, InitialBackoff, hi)
			}
			distinct[s] = true
		}
		if len(distinct) < 2 {
			t.Error("jitter does not vary")
		}
		if b.Attempts() != 0 {
			t.Error("Peek must not count attempts")
		}
	})

	t.Run("Reset", func(t *testing.T) {
		b := NewBackoff()
		for i := 0; i < 5; i++ {
			b.Next()
		}
		if b.Current() <= InitialBackoff {
			t.Error("Backoff should have increased")
		}

		b.Reset()
		if b.Current() != InitialBackoff {
			t.Errorf("Current() = %v after reset, want %v", b.Current(), InitialBackoff)
		}
		if b.Attempts() != 0 {
			t.Errorf("Attempts() = %d after reset, want 0", b.Attempts())
		}
	})

	t.Run("CustomConfig", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{
			Initial: 100 * time.Millisecond,
			Max:     500 * time.Millisecond,
		})

		expected := []time.Duration{
			100 * time.Millisecond,
			200 * time.Millisecond,
			400 * time.Millisecond,
			500 * time.Millisecond,
			500 * time.Millisecond,
		}
		for i, exp := range expected {
			if got := b.Next(); got != exp {
				t.Errorf("Attempt %d: got %v, want %v", i, got, exp)
			}
			if b.Attempts() != i+1 {
				t.Errorf("Attempts() = %d, want %d", b.Attempts(), i+1)
			}
		}
	})

	t.Run("InvalidConfig", func(t *testing.T) {
		b := NewBackoffWithConfig(BackoffConfig{Initial: 20 * time.Second, Multiplier: 0.5})
		if got := b.Next(); got != 20*time.Second {
			t.Errorf("first delay = %v, want 20s", got)
		}
		if got := b.Next(); got != 20*time.Second {
			t.Errorf("max below initial: got %v, want 20s", got)
		}
	})
}

// fakeSession is an in-memory Session.
type fakeSession struct {
	mu      sync.Mutex
	sent    []wire.Command
	started bool
	done    chan struct{}
	once    sync.Once
	err     error
}

func newFakeSession() *fakeSession {
	return &fakeSession{done: make(chan struct{})}
}

func (s *fakeSession) Send(cmd wire.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, cmd)
	return nil
}

func (s *fakeSession) RegisterNoAckEncoder(enc transport.NoAckEncoder) (*transport.Registration, error) {
	return nil, transport.ErrClosed
}

func (s *fakeSession) Start() {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()
}

func (s *fakeSession) Done() <-chan struct{} { return s.done }
func (s *fakeSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeSession) Close() error {
	s.lose(nil)
	return nil
}

// lose ends the session as if the link dropped.
func (s *fakeSession) lose(err error) {
	s.once.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *fakeSession) sentCommands() []wire.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]wire.Command(nil), s.sent...)
}

// fakeDevice counts lifecycle calls.
type fakeDevice struct {
	mu           sync.Mutex
	willConnect  int
	disconnected int
	backend      transport.Backend
}

func (d *fakeDevice) HandleEvent(wire.Event) {}

func (d *fakeDevice) WillConnect(b transport.Backend) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.willConnect++
	d.backend = b
}

func (d *fakeDevice) DidDisconnect() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disconnected++
}

func (d *fakeDevice) counts() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.willConnect, d.disconnected
}

// sessionDialer returns a dialer handing out fresh fake sessions.
func sessionDialer(sessions chan<- *fakeSession) Dialer {
	return func(ctx context.Context, handler transport.EventHandler) (Session, error) {
		s := newFakeSession()
		if sessions != nil {
			sessions <- s
		}
		return s, nil
	}
}

func fastBackoff() Config {
	return Config{Backoff: BackoffConfig{
		Initial:    10 * time.Millisecond,
		Max:        50 * time.Millisecond,
		Multiplier: 2.0,
	}}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestManager(t *testing.T) {
	t.Run("InitialState", func(t *testing.T) {
		m := NewManager(sessionDialer(nil), &fakeDevice{}, Config{})
		defer m.Close()

		if m.State() != StateDisconnected {
			t.Errorf("Initial state = %v, want DISCONNECTED", m.State())
		}
		if m.IsConnected() {
			t.Error("IsConnected() should be false initially")
		}
	})

	t.Run("SuccessfulConnect", func(t *testing.T) {
		sessions := make(chan *fakeSession, 1)
		dev := &fakeDevice{}
		m := NewManager(sessionDialer(sessions), dev, Config{})
		defer m.Close()

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		sess := <-sessions

		if m.State() != StateConnected {
			t.Errorf("State = %v, want CONNECTED", m.State())
		}
		if will, _ := dev.counts(); will != 1 {
			t.Errorf("WillConnect called %d times, want 1", will)
		}
		if !sess.started {
			t.Error("session not started")
		}
		sent := sess.sentCommands()
		if len(sent) != 1 {
			t.Fatalf("sent %d commands, want 1", len(sent))
		}
		if _, ok := sent[0].(*wire.GetAllStates); !ok {
			t.Errorf("first command = %T, want *wire.GetAllStates", sent[0])
		}
	})

	t.Run("FailedConnect", func(t *testing.T) {
		dialErr := errors.New("refused")
		dial := func(context.Context, transport.EventHandler) (Session, error) { return nil, dialErr }
		m := NewManager(dial, &fakeDevice{}, Config{})
		defer m.Close()

		err := m.Connect(context.Background())
		if !errors.Is(err, dialErr) {
			t.Errorf("Connect() error = %v, want %v", err, dialErr)
		}
		if m.State() != StateDisconnected {
			t.Errorf("State = %v, want DISCONNECTED", m.State())
		}
	})

	t.Run("AlreadyConnected", func(t *testing.T) {
		m := NewManager(sessionDialer(nil), &fakeDevice{}, Config{})
		defer m.Close()

		_ = m.Connect(context.Background())
		if err := m.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
			t.Errorf("Second Connect() error = %v, want ErrAlreadyConnected", err)
		}
	})

	t.Run("Disconnect", func(t *testing.T) {
		sessions := make(chan *fakeSession, 1)
		dev := &fakeDevice{}
		m := NewManager(sessionDialer(sessions), dev, fastBackoff())
		defer m.Close()

		_ = m.Connect(context.Background())
		sess := <-sessions
		m.Disconnect()

		if m.State() != StateDisconnected {
			t.Errorf("State = %v, want DISCONNECTED", m.State())
		}
		select {
		case <-sess.Done():
		default:
			t.Error("session not closed")
		}
		if _, gone := dev.counts(); gone != 1 {
			t.Errorf("DidDisconnect called %d times, want 1", gone)
		}

		// No reconnection after a deliberate disconnect.
		time.Sleep(50 * time.Millisecond)
		if m.State() != StateDisconnected {
			t.Errorf("State = %v after wait, want DISCONNECTED", m.State())
		}
	})

	t.Run("ClosedManager", func(t *testing.T) {
		m := NewManager(sessionDialer(nil), &fakeDevice{}, Config{})
		m.Close()

		if err := m.Connect(context.Background()); !errors.Is(err, ErrConnectionClosed) {
			t.Errorf("Connect() after Close error = %v, want ErrConnectionClosed", err)
		}
		if m.State() != StateClosed {
			t.Errorf("State = %v, want CLOSED", m.State())
		}
	})

	t.Run("StateChangeCallback", func(t *testing.T) {
		m := NewManager(sessionDialer(nil), &fakeDevice{}, Config{})
		defer m.Close()

		var mu sync.Mutex
		var transitions []State
		m.OnStateChange(func(oldState, newState State) {
			mu.Lock()
			transitions = append(transitions, newState)
			mu.Unlock()
		})

		_ = m.Connect(context.Background())
		m.Disconnect()

		mu.Lock()
		defer mu.Unlock()
		want := []State{StateConnecting, StateConnected, StateDisconnected}
		if len(transitions) != len(want) {
			t.Fatalf("transitions = %v, want %v", transitions, want)
		}
		for i := range want {
			if transitions[i] != want[i] {
				t.Errorf("transition %d = %v, want %v", i, transitions[i], want[i])
			}
		}
	})
}

func TestManagerReconnect(t *testing.T) {
	t.Run("AutoReconnectOnLinkLoss", func(t *testing.T) {
		sessions := make(chan *fakeSession, 4)
		dev := &fakeDevice{}
		m := NewManager(sessionDialer(sessions), dev, fastBackoff())
		defer m.Close()

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		first := <-sessions
		first.lose(transport.ErrClosed)

		var second *fakeSession
		select {
		case second = <-sessions:
		case <-time.After(2 * time.Second):
			t.Fatal("no reconnection")
		}
		waitFor(t, "connected", m.IsConnected)

		will, gone := dev.counts()
		if will != 2 || gone != 1 {
			t.Errorf("WillConnect/DidDisconnect = %d/%d, want 2/1", will, gone)
		}
		if len(second.sentCommands()) != 1 {
			t.Error("state request not sent on reconnection")
		}
		if m.BackoffAttempts() != 0 {
			t.Errorf("BackoffAttempts = %d after success, want 0", m.BackoffAttempts())
		}
	})

	t.Run("BackoffOnFailure", func(t *testing.T) {
		var calls atomic.Int32
		dial := func(ctx context.Context, h transport.EventHandler) (Session, error) {
			n := calls.Add(1)
			if n == 1 || n >= 4 {
				return newFakeSession(), nil
			}
			return nil, errors.New("unreachable")
		}
		dev := &fakeDevice{}
		m := NewManager(dial, dev, fastBackoff())
		defer m.Close()

		var attempts []int
		var mu sync.Mutex
		m.OnReconnecting(func(attempt int, delay time.Duration) {
			mu.Lock()
			attempts = append(attempts, attempt)
			mu.Unlock()
		})

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		dev.mu.Lock()
		sess := dev.backend.(*fakeSession)
		dev.mu.Unlock()
		sess.lose(errors.New("link down"))

		waitFor(t, "reconnection", func() bool { return calls.Load() >= 4 && m.IsConnected() })

		mu.Lock()
		defer mu.Unlock()
		if len(attempts) != 3 {
			t.Errorf("reconnect attempts = %v, want 3", attempts)
		}
	})

	t.Run("DisabledAutoReconnect", func(t *testing.T) {
		sessions := make(chan *fakeSession, 2)
		m := NewManager(sessionDialer(sessions), &fakeDevice{}, fastBackoff())
		defer m.Close()
		m.SetAutoReconnect(false)

		_ = m.Connect(context.Background())
		(<-sessions).lose(nil)

		waitFor(t, "disconnected", func() bool { return m.State() == StateDisconnected })
		select {
		case <-sessions:
			t.Error("reconnected with auto-reconnect disabled")
		case <-time.After(50 * time.Millisecond):
		}
	})

	t.Run("GivesUpAfterMaxAttempts", func(t *testing.T) {
		var calls atomic.Int32
		dial := func(ctx context.Context, h transport.EventHandler) (Session, error) {
			if calls.Add(1) == 1 {
				return newFakeSession(), nil
			}
			return nil, errors.New("unreachable")
		}
		cfg := fastBackoff()
		cfg.MaxAttempts = 2
		dev := &fakeDevice{}
		m := NewManager(dial, dev, cfg)
		defer m.Close()

		if err := m.Connect(context.Background()); err != nil {
			t.Fatalf("Connect() error = %v", err)
		}
		var states []State
		var mu sync.Mutex
		m.OnStateChange(func(_, newState State) {
			mu.Lock()
			states = append(states, newState)
			mu.Unlock()
		})
		dev.mu.Lock()
		sess := dev.backend.(*fakeSession)
		dev.mu.Unlock()
		sess.lose(errors.New("link down"))

		waitFor(t, "give up", func() bool { return m.State() == StateDisconnected })
		time.Sleep(100 * time.Millisecond)
		if got := calls.Load(); got != 3 {
			t.Errorf("dial calls = %d, want 3", got)
		}
		mu.Lock()
		defer mu.Unlock()
		if want := []State{StateReconnecting, StateDisconnected}; len(states) != 2 || states[0] != want[0] || states[1] != want[1] {
			t.Errorf("states = %v, want %v", states, want)
		}
	})
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "DISCONNECTED"},
		{StateConnecting, "CONNECTING"},
		{StateConnected, "CONNECTED"},
		{StateReconnecting, "RECONNECTING"},
		{StateClosed, "CLOSED"},
		{State(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
			}
		})
	}
}
