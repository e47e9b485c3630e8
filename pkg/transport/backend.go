package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// Backend errors.
var (
	ErrClosed     = errors.New("transport closed")
	ErrQueueFull  = errors.New("send queue full")
	ErrNilEncoder = errors.New("nil encoder")
)

// DefaultTick is the default transmit cadence of non-acknowledged encoders.
const DefaultTick = 25 * time.Millisecond

// NoAckEncoder produces the command to transmit on each tick, or nil.
// Implemented by noack.Encoder.
type NoAckEncoder interface {
	Encode() wire.Command
}

// EventHandler receives decoded device events.
type EventHandler interface {
	HandleEvent(ev wire.Event)
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ev wire.Event)

// HandleEvent calls f(ev).
func (f EventHandlerFunc) HandleEvent(ev wire.Event) { f(ev) }

// Backend is the command path to one connected device.
// Implemented by Link and mqtt.Backend.
type Backend interface {
	// Send enqueues a command. A nil error only means the command was
	// accepted locally.
	Send(cmd wire.Command) error

	// RegisterNoAckEncoder adds an encoder to the transmit tick.
	RegisterNoAckEncoder(enc NoAckEncoder) (*Registration, error)
}

// Encoders is the set of registered non-acknowledged encoders of a backend.
type Encoders struct {
	mu     sync.Mutex
	regs   []*Registration
	closed bool
}

// Registration ties one encoder to a backend until Unregister.
type Registration struct {
	set  *Encoders
	enc  NoAckEncoder
	once sync.Once
}

// Encoder returns the registered encoder.
func (r *Registration) Encoder() NoAckEncoder {
	return r.enc
}

// Unregister removes the encoder from the tick. Safe to call more than once.
func (r *Registration) Unregister() {
	r.once.Do(func() {
		r.set.remove(r)
	})
}

// Register adds an encoder.
func (e *Encoders) Register(enc NoAckEncoder) (*Registration, error) {
	if enc == nil {
		return nil, ErrNilEncoder
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, ErrClosed
	}
	r := &Registration{set: e, enc: enc}
	e.regs = append(e.regs, r)
	return r, nil
}

func (e *Encoders) remove(r *Registration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, reg := range e.regs {
		if reg == r {
			e.regs = append(e.regs[:i], e.regs[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered encoders.
func (e *Encoders) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.regs)
}

// Poll calls every encoder once, in registration order, and returns the
// commands to transmit. Encoders are called outside the lock.
func (e *Encoders) Poll() []wire.Command {
	e.mu.Lock()
	regs := append([]*Registration(nil), e.regs...)
	e.mu.Unlock()

	var cmds []wire.Command
	for _, r := range regs {
		if cmd := r.enc.Encode(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return cmds
}

// Run polls the encoders every tick and passes each command to emit, until
// done is closed.
func (e *Encoders) Run(done <-chan struct{}, tick time.Duration, emit func(wire.Command)) {
	if tick <= 0 {
		tick = DefaultTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for _, cmd := range e.Poll() {
				emit(cmd)
			}
		}
	}
}

// Close drops every registration and refuses new ones.
func (e *Encoders) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.regs = nil
}
