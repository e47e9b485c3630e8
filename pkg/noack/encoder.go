package noack

import (
	"sync"

	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// DefaultBudget is the number of transmissions of an unchanged, unsustained
// state.
const DefaultBudget = 10

// Option configures an Encoder.
type Option func(*options)

type options struct {
	budget int
}

// WithBudget sets the repeat budget. Values below 1 keep the default.
func WithBudget(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.budget = n
		}
	}
}

// Encoder turns a desired state S into a stream of commands.
//
// The zero value is not usable; create encoders with New.
type Encoder[S comparable] struct {
	build   func(S) wire.Command
	sustain func(S) bool
	budget  int

	// Guarded by mu; written by producers.
	mu         sync.Mutex
	armed      bool
	desired    S
	hasDesired bool
	cancelled  bool

	// Owned by the transmit schedule.
	last      S
	hasLast   bool
	remaining int
}

// New creates a disarmed encoder. build turns a state into its command;
// sustain returns true for states that must be repeated without limit. A nil
// sustain never sustains.
func New[S comparable](build func(S) wire.Command, sustain func(S) bool, opts ...Option) *Encoder[S] {
	o := options{budget: DefaultBudget}
	for _, opt := range opts {
		opt(&o)
	}
	if sustain == nil {
		sustain = func(S) bool { return false }
	}
	return &Encoder[S]{
		build:   build,
		sustain: sustain,
		budget:  o.budget,
	}
}

// Budget returns the repeat budget.
func (e *Encoder[S]) Budget() int {
	return e.budget
}

// Arm enables transmission.
func (e *Encoder[S]) Arm() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.armed = true
}

// Armed returns true between Arm and Reset.
func (e *Encoder[S]) Armed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.armed
}

// Set replaces the desired state.
func (e *Encoder[S]) Set(s S) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.desired, e.hasDesired = s, true
	e.cancelled = false
}

// Update modifies the desired state in place. The state starts from the zero
// value if none is desired.
func (e *Encoder[S]) Update(fn func(*S)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hasDesired {
		var zero S
		e.desired = zero
	}
	fn(&e.desired)
	e.hasDesired = true
	e.cancelled = false
}

// Desired returns the desired state.
func (e *Encoder[S]) Desired() (S, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.desired, e.hasDesired
}

// Cancel drops the desired state. The next poll emits nothing; no stop
// command is synthesized.
func (e *Encoder[S]) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	var zero S
	e.desired, e.hasDesired = zero, false
	e.cancelled = true
}

// Reset cancels and disarms the encoder.
func (e *Encoder[S]) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	var zero S
	e.desired, e.hasDesired = zero, false
	e.cancelled = true
	e.armed = false
}

// Encode returns the command to transmit on this poll, or nil.
// It must only be called from the transmit schedule.
func (e *Encoder[S]) Encode() wire.Command {
	e.mu.Lock()
	armed := e.armed
	desired, hasDesired := e.desired, e.hasDesired
	cancelled := e.cancelled
	e.cancelled = false
	e.mu.Unlock()

	if cancelled {
		var zero S
		e.last, e.hasLast = zero, false
		e.remaining = 0
	}
	if !armed || !hasDesired {
		return nil
	}

	if !e.hasLast || desired != e.last {
		e.last, e.hasLast = desired, true
		e.remaining = e.budget
	}
	if e.remaining <= 0 {
		return nil
	}
	if !e.sustain(desired) {
		e.remaining--
	}
	return e.build(desired)
}
