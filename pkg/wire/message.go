package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// FeatureID identifies a protocol feature (message family).
type FeatureID uint8

const (
	// FeatureCommon carries session-wide messages (state burst markers).
	FeatureCommon FeatureID = 0x00

	// FeatureNetwork controls the network links of the device.
	FeatureNetwork FeatureID = 0x10

	// FeatureGimbal controls camera gimbals.
	FeatureGimbal FeatureID = 0x11

	// FeatureRecorder controls the flight camera recorder pipelines.
	FeatureRecorder FeatureID = 0x12

	// FeatureStereo controls the stereo vision sensor.
	FeatureStereo FeatureID = 0x13

	// FeatureFollowMe controls the follow-me piloting mode.
	FeatureFollowMe FeatureID = 0x14

	// FeaturePiloting carries manual piloting inputs.
	FeaturePiloting FeatureID = 0x15
)

// String returns the feature name.
func (f FeatureID) String() string {
	switch f {
	case FeatureCommon:
		return "Common"
	case FeatureNetwork:
		return "Network"
	case FeatureGimbal:
		return "Gimbal"
	case FeatureRecorder:
		return "Recorder"
	case FeatureStereo:
		return "Stereo"
	case FeatureFollowMe:
		return "FollowMe"
	case FeaturePiloting:
		return "Piloting"
	default:
		return fmt.Sprintf("Feature(0x%02x)", uint8(f))
	}
}

// MessageID identifies a message within a feature.
type MessageID uint8

// EventBase is the first message id used by events.
const EventBase MessageID = 0x80

// IsEvent returns true if the id is in the event range.
func (m MessageID) IsEvent() bool {
	return m >= EventBase
}

// Envelope is the outer structure of every frame.
//
// CBOR encoding:
//
//	{
//	  1: featureId,   // uint8
//	  2: messageId,   // uint8
//	  3: payload      // message-specific map (may be absent)
//	}
type Envelope struct {
	Feature FeatureID       `cbor:"1,keyasint"`
	Message MessageID       `cbor:"2,keyasint"`
	Payload cbor.RawMessage `cbor:"3,keyasint,omitempty"`
}

// Message is implemented by every typed command and event.
type Message interface {
	Feature() FeatureID
	Message() MessageID
	Name() string
}

// Command is a message sent by the host to the device.
type Command interface {
	Message
	isCommand()
}

// Event is a message sent by the device to the host.
type Event interface {
	Message
	isEvent()
}

// UnknownEvent is an event whose feature or message id this host does not know.
// Devices of newer generations may send them; they are never an error.
type UnknownEvent struct {
	FeatureID FeatureID
	MessageID MessageID
	Payload   []byte
}

// Feature returns the feature id carried by the frame.
func (e *UnknownEvent) Feature() FeatureID { return e.FeatureID }

// Message returns the message id carried by the frame.
func (e *UnknownEvent) Message() MessageID { return e.MessageID }

// Name returns a descriptive name.
func (e *UnknownEvent) Name() string {
	return fmt.Sprintf("Unknown(%s/0x%02x)", e.FeatureID, uint8(e.MessageID))
}

func (*UnknownEvent) isEvent()         {}
func (*UnknownEvent) isNetworkEvent()  {}
func (*UnknownEvent) isGimbalEvent()   {}
func (*UnknownEvent) isRecorderEvent() {}
func (*UnknownEvent) isStereoEvent()   {}
func (*UnknownEvent) isFollowMeEvent() {}

// UnknownCommand is a command frame the device side could not map.
type UnknownCommand struct {
	FeatureID FeatureID
	MessageID MessageID
	Payload   []byte
}

// Feature returns the feature id carried by the frame.
func (c *UnknownCommand) Feature() FeatureID { return c.FeatureID }

// Message returns the message id carried by the frame.
func (c *UnknownCommand) Message() MessageID { return c.MessageID }

// Name returns a descriptive name.
func (c *UnknownCommand) Name() string {
	return fmt.Sprintf("Unknown(%s/0x%02x)", c.FeatureID, uint8(c.MessageID))
}

func (*UnknownCommand) isCommand() {}

// ListFlags mark the position of an item in a list sent as a sequence of events.
type ListFlags uint8

const (
	// ListFlagFirst marks the first item; receivers reset the list.
	ListFlagFirst ListFlags = 1 << 0

	// ListFlagLast marks the last item; receivers publish the list.
	ListFlagLast ListFlags = 1 << 1

	// ListFlagEmpty marks an empty list; the item carries no data.
	ListFlagEmpty ListFlags = 1 << 2

	// ListFlagRemove asks the receiver to remove the item.
	ListFlagRemove ListFlags = 1 << 3
)

// Has returns true if all flags in f are set.
func (l ListFlags) Has(f ListFlags) bool {
	return l&f == f
}
