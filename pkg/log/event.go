package log

import (
	"time"
)

// Event is one capture record. Exactly one of Frame, Message, StateChange
// and Error is set. Keys are integers and must never be renumbered: old
// captures stay readable.
type Event struct {
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID is the uuid of one connection; empty outside a session.
	SessionID string    `cbor:"2,keyasint"`
	Direction Direction `cbor:"3,keyasint"`
	Layer     Layer     `cbor:"4,keyasint"`
	Category  Category  `cbor:"5,keyasint"`
	DeviceID  string    `cbor:"6,keyasint,omitempty"`

	// Key 7 held the peer address in early captures.

	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"`
	Message     *MessageEvent     `cbor:"11,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"14,keyasint,omitempty"`
}

func enumName(names []string, i uint8) string {
	if int(i) < len(names) {
		return names[i]
	}
	return "UNKNOWN"
}

// Direction is relative to the host: In comes from the drone.
type Direction uint8

const (
	DirectionIn Direction = iota
	DirectionOut
)

var directionNames = []string{"IN", "OUT"}

func (d Direction) String() string { return enumName(directionNames, uint8(d)) }

// Layer tells where in the stack an event was recorded.
type Layer uint8

const (
	// LayerTransport records raw frames.
	LayerTransport Layer = iota
	// LayerWire records decoded commands and events.
	LayerWire
	// LayerComponent records controller and component transitions.
	LayerComponent
)

var layerNames = []string{"TRANSPORT", "WIRE", "COMPONENT"}

func (l Layer) String() string { return enumName(layerNames, uint8(l)) }

// Category is what kind of traffic or transition an event is.
type Category uint8

const (
	CategoryCommand Category = iota
	CategoryEvent
	// CategoryNoAck is a continuous command sent by the transmit ticker.
	CategoryNoAck
	CategoryState
	CategoryError
)

var categoryNames = []string{"COMMAND", "EVENT", "NOACK", "STATE", "ERROR"}

func (c Category) String() string { return enumName(categoryNames, uint8(c)) }

// FrameEvent is a frame payload as read or written, without its length
// prefix. Data keeps at most MaxFrameData bytes.
type FrameEvent struct {
	Size      int    `cbor:"1,keyasint"`
	Data      []byte `cbor:"2,keyasint,omitempty"`
	Truncated bool   `cbor:"3,keyasint,omitempty"`
}

// MessageEvent is a decoded wire message. Payload is its CBOR data model
// form; after a round trip through a file, maps decode as map[any]any.
type MessageEvent struct {
	Feature uint8  `cbor:"1,keyasint"`
	Message uint8  `cbor:"2,keyasint"`
	Name    string `cbor:"3,keyasint"`
	Payload any    `cbor:"4,keyasint,omitempty"`
}

// StateChangeEvent records a transition of the connection, a component's
// publication, a setting or an activation machine.
type StateChangeEvent struct {
	Entity StateEntity `cbor:"1,keyasint"`

	// Name is the component or setting; empty for the device itself.
	Name     string `cbor:"2,keyasint,omitempty"`
	OldState string `cbor:"3,keyasint,omitempty"`
	NewState string `cbor:"4,keyasint"`
	Reason   string `cbor:"5,keyasint,omitempty"`
}

// StateEntity is what a StateChangeEvent is about.
type StateEntity uint8

const (
	StateEntityDevice StateEntity = iota
	StateEntityComponent
	StateEntitySetting
	StateEntityActivation
)

var stateEntityNames = []string{"DEVICE", "COMPONENT", "SETTING", "ACTIVATION"}

func (s StateEntity) String() string { return enumName(stateEntityNames, uint8(s)) }

// ErrorEventData is a failure that was handled locally, such as a frame
// that did not decode. Context names the operation.
type ErrorEventData struct {
	Layer   Layer  `cbor:"1,keyasint"`
	Message string `cbor:"2,keyasint"`
	Context string `cbor:"3,keyasint,omitempty"`
}
