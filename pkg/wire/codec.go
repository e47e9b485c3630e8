package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Codec errors.
var (
	// ErrInvalidFrame indicates the envelope could not be decoded.
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrInvalidPayload indicates the payload does not match the message type.
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrNotCommand indicates an event was passed where a command is expected.
	ErrNotCommand = errors.New("message is not a command")

	// ErrNotEvent indicates a command was passed where an event is expected.
	ErrNotEvent = errors.New("message is not an event")
)

// encMode is the CBOR encoder mode for frames and stored values.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for frames and stored values.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical, // Deterministic key ordering
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Lenient decoding: newer devices may add payload keys
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// NewEncoder creates a new CBOR encoder that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder creates a new CBOR decoder that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}

// EncodeCommand encodes a command into a frame payload.
func EncodeCommand(cmd Command) ([]byte, error) {
	if cmd.Message().IsEvent() {
		return nil, fmt.Errorf("%w: %s", ErrNotCommand, cmd.Name())
	}
	return encodeMessage(cmd)
}

// EncodeEvent encodes an event into a frame payload.
func EncodeEvent(ev Event) ([]byte, error) {
	if !ev.Message().IsEvent() {
		return nil, fmt.Errorf("%w: %s", ErrNotEvent, ev.Name())
	}
	return encodeMessage(ev)
}

func encodeMessage(m Message) ([]byte, error) {
	var payload []byte
	switch u := m.(type) {
	case *UnknownEvent:
		payload = u.Payload
	case *UnknownCommand:
		payload = u.Payload
	default:
		var err error
		payload, err = Marshal(m)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", m.Name(), err)
		}
	}
	return Marshal(Envelope{
		Feature: m.Feature(),
		Message: m.Message(),
		Payload: payload,
	})
}

// DecodeEvent decodes a frame payload into a typed event.
// Frames with an unknown feature or message id decode to *UnknownEvent.
func DecodeEvent(data []byte) (Event, error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	if !env.Message.IsEvent() {
		return nil, fmt.Errorf("%w: message 0x%02x", ErrNotEvent, uint8(env.Message))
	}

	ev := newEvent(env.Feature, env.Message)
	if ev == nil {
		return &UnknownEvent{FeatureID: env.Feature, MessageID: env.Message, Payload: env.Payload}, nil
	}
	if err := decodePayload(env.Payload, ev); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, ev.Name(), err)
	}
	return ev, nil
}

// DecodeCommand decodes a frame payload into a typed command.
// Frames with an unknown feature or message id decode to *UnknownCommand.
func DecodeCommand(data []byte) (Command, error) {
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	if env.Message.IsEvent() {
		return nil, fmt.Errorf("%w: message 0x%02x", ErrNotCommand, uint8(env.Message))
	}

	cmd := newCommand(env.Feature, env.Message)
	if cmd == nil {
		return &UnknownCommand{FeatureID: env.Feature, MessageID: env.Message, Payload: env.Payload}, nil
	}
	if err := decodePayload(env.Payload, cmd); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, cmd.Name(), err)
	}
	return cmd, nil
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrInvalidFrame, err)
	}
	return env, nil
}

func decodePayload(payload []byte, v any) error {
	if len(payload) == 0 {
		return nil
	}
	return Unmarshal(payload, v)
}

// newEvent returns a pointer to a zero event of the given type, or nil.
func newEvent(f FeatureID, m MessageID) Event {
	switch f {
	case FeatureCommon:
		switch m {
		case MsgAllStatesChanged:
			return &AllStatesChanged{}
		}
	case FeatureNetwork:
		switch m {
		case MsgNetworkState:
			return &NetworkState{}
		}
	case FeatureGimbal:
		switch m {
		case MsgGimbalCapabilities:
			return &GimbalCapabilities{}
		case MsgGimbalRelativeAttitudeBounds:
			return &GimbalRelativeAttitudeBounds{}
		case MsgGimbalAbsoluteAttitudeBounds:
			return &GimbalAbsoluteAttitudeBounds{}
		case MsgGimbalMaxSpeed:
			return &GimbalMaxSpeed{}
		case MsgGimbalAttitude:
			return &GimbalAttitude{}
		case MsgGimbalAxisLockState:
			return &GimbalAxisLockState{}
		case MsgGimbalOffsets:
			return &GimbalOffsets{}
		case MsgGimbalAlert:
			return &GimbalAlert{}
		}
	case FeatureRecorder:
		switch m {
		case MsgRecorderCapabilities:
			return &RecorderCapabilities{}
		case MsgRecorderState:
			return &RecorderState{}
		}
	case FeatureStereo:
		switch m {
		case MsgStereoCapabilities:
			return &StereoCapabilities{}
		case MsgStereoCalibrationInfo:
			return &StereoCalibrationInfo{}
		case MsgStereoCalibrationState:
			return &StereoCalibrationState{}
		case MsgStereoCalibrationStep:
			return &StereoCalibrationStep{}
		case MsgStereoCalibrationIndication:
			return &StereoCalibrationIndication{}
		case MsgStereoCalibrationResult:
			return &StereoCalibrationResult{}
		}
	case FeatureFollowMe:
		switch m {
		case MsgFollowMeState:
			return &FollowMeState{}
		case MsgFollowMeInfo:
			return &FollowMeInfo{}
		}
	}
	return nil
}

// newCommand returns a pointer to a zero command of the given type, or nil.
func newCommand(f FeatureID, m MessageID) Command {
	switch f {
	case FeatureCommon:
		switch m {
		case MsgGetAllStates:
			return &GetAllStates{}
		}
	case FeatureNetwork:
		switch m {
		case MsgNetworkGetState:
			return &NetworkGetState{}
		case MsgNetworkSetRoutingPolicy:
			return &NetworkSetRoutingPolicy{}
		case MsgNetworkSetCellularMaxBitrate:
			return &NetworkSetCellularMaxBitrate{}
		}
	case FeatureGimbal:
		switch m {
		case MsgGimbalSetTarget:
			return &GimbalSetTarget{}
		case MsgGimbalSetMaxSpeed:
			return &GimbalSetMaxSpeed{}
		case MsgGimbalResetOrientation:
			return &GimbalResetOrientation{}
		case MsgGimbalStartOffsetsUpdate:
			return &GimbalStartOffsetsUpdate{}
		case MsgGimbalStopOffsetsUpdate:
			return &GimbalStopOffsetsUpdate{}
		case MsgGimbalSetOffsets:
			return &GimbalSetOffsets{}
		}
	case FeatureRecorder:
		switch m {
		case MsgRecorderConfigurePipelines:
			return &RecorderConfigurePipelines{}
		}
	case FeatureStereo:
		switch m {
		case MsgStereoStartCalibration:
			return &StereoStartCalibration{}
		case MsgStereoCancelCalibration:
			return &StereoCancelCalibration{}
		}
	case FeatureFollowMe:
		switch m {
		case MsgFollowMeStart:
			return &FollowMeStart{}
		case MsgFollowMeStop:
			return &FollowMeStop{}
		}
	case FeaturePiloting:
		switch m {
		case MsgPilotingCommand:
			return &PilotingCommand{}
		}
	}
	return nil
}

// Equal compares two values by their CBOR encoding.
func Equal(a, b any) bool {
	dataA, errA := Marshal(a)
	dataB, errB := Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(dataA, dataB)
}
