package log

import (
	"time"

	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// MaxFrameData is the number of frame bytes kept in a FrameEvent.
const MaxFrameData = 256

// NewFrameEvent captures a raw frame, truncated to MaxFrameData bytes.
func NewFrameEvent(frame []byte) *FrameEvent {
	fe := &FrameEvent{Size: len(frame)}
	if len(frame) > MaxFrameData {
		fe.Data = append([]byte(nil), frame[:MaxFrameData]...)
		fe.Truncated = true
	} else {
		fe.Data = append([]byte(nil), frame...)
	}
	return fe
}

// NewMessageEvent captures a decoded command or event.
func NewMessageEvent(m wire.Message) *MessageEvent {
	return &MessageEvent{
		Feature: uint8(m.Feature()),
		Message: uint8(m.Message()),
		Name:    m.Name(),
		Payload: m,
	}
}

// Recorder stamps events with the identity of one device session and
// forwards them to a Logger. A nil Logger disables capture.
type Recorder struct {
	Logger    Logger
	SessionID string
	DeviceID  string
}

func (r *Recorder) emit(ev Event) {
	if r == nil || r.Logger == nil {
		return
	}
	ev.Timestamp = time.Now()
	ev.SessionID = r.SessionID
	ev.DeviceID = r.DeviceID
	r.Logger.Log(ev)
}

// Frame records a transport frame.
func (r *Recorder) Frame(dir Direction, frame []byte) {
	r.emit(Event{
		Direction: dir,
		Layer:     LayerTransport,
		Category:  frameCategory(dir),
		Frame:     NewFrameEvent(frame),
	})
}

// Command records an outgoing acknowledged command.
func (r *Recorder) Command(cmd wire.Command) {
	r.emit(Event{
		Direction: DirectionOut,
		Layer:     LayerWire,
		Category:  CategoryCommand,
		Message:   NewMessageEvent(cmd),
	})
}

// NoAck records an outgoing continuous command.
func (r *Recorder) NoAck(cmd wire.Command) {
	r.emit(Event{
		Direction: DirectionOut,
		Layer:     LayerWire,
		Category:  CategoryNoAck,
		Message:   NewMessageEvent(cmd),
	})
}

// DeviceEvent records an incoming event.
func (r *Recorder) DeviceEvent(ev wire.Event) {
	r.emit(Event{
		Direction: DirectionIn,
		Layer:     LayerWire,
		Category:  CategoryEvent,
		Message:   NewMessageEvent(ev),
	})
}

// State records a state transition at the component layer.
func (r *Recorder) State(entity StateEntity, name, oldState, newState, reason string) {
	r.emit(Event{
		Layer:    LayerComponent,
		Category: CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   entity,
			Name:     name,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

// Error records an error at the given layer.
func (r *Recorder) Error(layer Layer, err error, context string) {
	r.emit(Event{
		Layer:    layer,
		Category: CategoryError,
		Error: &ErrorEventData{
			Layer:   layer,
			Message: err.Error(),
			Context: context,
		},
	})
}

func frameCategory(dir Direction) Category {
	if dir == DirectionIn {
		return CategoryEvent
	}
	return CategoryCommand
}
