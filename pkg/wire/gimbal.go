package wire

// Gimbal message ids.
const (
	MsgGimbalSetTarget          MessageID = 0x01
	MsgGimbalSetMaxSpeed        MessageID = 0x02
	MsgGimbalResetOrientation   MessageID = 0x03
	MsgGimbalStartOffsetsUpdate MessageID = 0x04
	MsgGimbalStopOffsetsUpdate  MessageID = 0x05
	MsgGimbalSetOffsets         MessageID = 0x06

	MsgGimbalCapabilities           MessageID = 0x80
	MsgGimbalRelativeAttitudeBounds MessageID = 0x81
	MsgGimbalAbsoluteAttitudeBounds MessageID = 0x82
	MsgGimbalMaxSpeed               MessageID = 0x83
	MsgGimbalAttitude               MessageID = 0x84
	MsgGimbalAxisLockState          MessageID = 0x85
	MsgGimbalOffsets                MessageID = 0x86
	MsgGimbalAlert                  MessageID = 0x87
)

// Gimbal control modes.
const (
	GimbalControlPosition uint8 = 0
	GimbalControlVelocity uint8 = 1
)

// Gimbal frames of reference.
const (
	GimbalFrameNone     uint8 = 0
	GimbalFrameRelative uint8 = 1
	GimbalFrameAbsolute uint8 = 2
)

// GimbalEvent is implemented by every event of the gimbal family.
type GimbalEvent interface {
	Event
	isGimbalEvent()
}

// GimbalSetTarget is the continuous gimbal control command. It is not
// acknowledged by the device.
type GimbalSetTarget struct {
	GimbalID    uint8   `cbor:"1,keyasint"`
	ControlMode uint8   `cbor:"2,keyasint"`
	YawFrame    uint8   `cbor:"3,keyasint"`
	Yaw         float32 `cbor:"4,keyasint"`
	PitchFrame  uint8   `cbor:"5,keyasint"`
	Pitch       float32 `cbor:"6,keyasint"`
	RollFrame   uint8   `cbor:"7,keyasint"`
	Roll        float32 `cbor:"8,keyasint"`
}

func (*GimbalSetTarget) Feature() FeatureID { return FeatureGimbal }
func (*GimbalSetTarget) Message() MessageID { return MsgGimbalSetTarget }
func (*GimbalSetTarget) Name() string       { return "GimbalSetTarget" }
func (*GimbalSetTarget) isCommand()         {}

// GimbalSetMaxSpeed sets the max speed of every axis in deg/s.
type GimbalSetMaxSpeed struct {
	GimbalID uint8   `cbor:"1,keyasint"`
	Yaw      float32 `cbor:"2,keyasint"`
	Pitch    float32 `cbor:"3,keyasint"`
	Roll     float32 `cbor:"4,keyasint"`
}

func (*GimbalSetMaxSpeed) Feature() FeatureID { return FeatureGimbal }
func (*GimbalSetMaxSpeed) Message() MessageID { return MsgGimbalSetMaxSpeed }
func (*GimbalSetMaxSpeed) Name() string       { return "GimbalSetMaxSpeed" }
func (*GimbalSetMaxSpeed) isCommand()         {}

// GimbalResetOrientation moves the gimbal back to its default attitude.
type GimbalResetOrientation struct {
	GimbalID uint8 `cbor:"1,keyasint"`
}

func (*GimbalResetOrientation) Feature() FeatureID { return FeatureGimbal }
func (*GimbalResetOrientation) Message() MessageID { return MsgGimbalResetOrientation }
func (*GimbalResetOrientation) Name() string       { return "GimbalResetOrientation" }
func (*GimbalResetOrientation) isCommand()         {}

// GimbalStartOffsetsUpdate starts the offsets correction process.
type GimbalStartOffsetsUpdate struct {
	GimbalID uint8 `cbor:"1,keyasint"`
}

func (*GimbalStartOffsetsUpdate) Feature() FeatureID { return FeatureGimbal }
func (*GimbalStartOffsetsUpdate) Message() MessageID { return MsgGimbalStartOffsetsUpdate }
func (*GimbalStartOffsetsUpdate) Name() string       { return "GimbalStartOffsetsUpdate" }
func (*GimbalStartOffsetsUpdate) isCommand()         {}

// GimbalStopOffsetsUpdate stops the offsets correction process.
type GimbalStopOffsetsUpdate struct {
	GimbalID uint8 `cbor:"1,keyasint"`
}

func (*GimbalStopOffsetsUpdate) Feature() FeatureID { return FeatureGimbal }
func (*GimbalStopOffsetsUpdate) Message() MessageID { return MsgGimbalStopOffsetsUpdate }
func (*GimbalStopOffsetsUpdate) Name() string       { return "GimbalStopOffsetsUpdate" }
func (*GimbalStopOffsetsUpdate) isCommand()         {}

// GimbalSetOffsets sets the offset correction of every axis in degrees.
type GimbalSetOffsets struct {
	GimbalID uint8   `cbor:"1,keyasint"`
	Yaw      float32 `cbor:"2,keyasint"`
	Pitch    float32 `cbor:"3,keyasint"`
	Roll     float32 `cbor:"4,keyasint"`
}

func (*GimbalSetOffsets) Feature() FeatureID { return FeatureGimbal }
func (*GimbalSetOffsets) Message() MessageID { return MsgGimbalSetOffsets }
func (*GimbalSetOffsets) Name() string       { return "GimbalSetOffsets" }
func (*GimbalSetOffsets) isCommand()         {}

// GimbalCapabilities reports the gimbal model and its axes bitfield
// (bit 0 yaw, bit 1 pitch, bit 2 roll).
type GimbalCapabilities struct {
	GimbalID uint8 `cbor:"1,keyasint"`
	Model    uint8 `cbor:"2,keyasint"`
	Axes     uint8 `cbor:"3,keyasint"`
}

func (*GimbalCapabilities) Feature() FeatureID { return FeatureGimbal }
func (*GimbalCapabilities) Message() MessageID { return MsgGimbalCapabilities }
func (*GimbalCapabilities) Name() string       { return "GimbalCapabilities" }
func (*GimbalCapabilities) isEvent()           {}
func (*GimbalCapabilities) isGimbalEvent()     {}

// GimbalRelativeAttitudeBounds reports the attitude bounds in the relative frame.
type GimbalRelativeAttitudeBounds struct {
	GimbalID uint8   `cbor:"1,keyasint"`
	MinYaw   float32 `cbor:"2,keyasint"`
	MaxYaw   float32 `cbor:"3,keyasint"`
	MinPitch float32 `cbor:"4,keyasint"`
	MaxPitch float32 `cbor:"5,keyasint"`
	MinRoll  float32 `cbor:"6,keyasint"`
	MaxRoll  float32 `cbor:"7,keyasint"`
}

func (*GimbalRelativeAttitudeBounds) Feature() FeatureID { return FeatureGimbal }
func (*GimbalRelativeAttitudeBounds) Message() MessageID { return MsgGimbalRelativeAttitudeBounds }
func (*GimbalRelativeAttitudeBounds) Name() string       { return "GimbalRelativeAttitudeBounds" }
func (*GimbalRelativeAttitudeBounds) isEvent()           {}
func (*GimbalRelativeAttitudeBounds) isGimbalEvent()     {}

// GimbalAbsoluteAttitudeBounds reports the attitude bounds in the absolute frame.
type GimbalAbsoluteAttitudeBounds struct {
	GimbalID uint8   `cbor:"1,keyasint"`
	MinYaw   float32 `cbor:"2,keyasint"`
	MaxYaw   float32 `cbor:"3,keyasint"`
	MinPitch float32 `cbor:"4,keyasint"`
	MaxPitch float32 `cbor:"5,keyasint"`
	MinRoll  float32 `cbor:"6,keyasint"`
	MaxRoll  float32 `cbor:"7,keyasint"`
}

func (*GimbalAbsoluteAttitudeBounds) Feature() FeatureID { return FeatureGimbal }
func (*GimbalAbsoluteAttitudeBounds) Message() MessageID { return MsgGimbalAbsoluteAttitudeBounds }
func (*GimbalAbsoluteAttitudeBounds) Name() string       { return "GimbalAbsoluteAttitudeBounds" }
func (*GimbalAbsoluteAttitudeBounds) isEvent()           {}
func (*GimbalAbsoluteAttitudeBounds) isGimbalEvent()     {}

// GimbalMaxSpeed reports the max speed setting of every axis with its bounds.
type GimbalMaxSpeed struct {
	GimbalID     uint8   `cbor:"1,keyasint"`
	MinYaw       float32 `cbor:"2,keyasint"`
	MaxYaw       float32 `cbor:"3,keyasint"`
	CurrentYaw   float32 `cbor:"4,keyasint"`
	MinPitch     float32 `cbor:"5,keyasint"`
	MaxPitch     float32 `cbor:"6,keyasint"`
	CurrentPitch float32 `cbor:"7,keyasint"`
	MinRoll      float32 `cbor:"8,keyasint"`
	MaxRoll      float32 `cbor:"9,keyasint"`
	CurrentRoll  float32 `cbor:"10,keyasint"`
}

func (*GimbalMaxSpeed) Feature() FeatureID { return FeatureGimbal }
func (*GimbalMaxSpeed) Message() MessageID { return MsgGimbalMaxSpeed }
func (*GimbalMaxSpeed) Name() string       { return "GimbalMaxSpeed" }
func (*GimbalMaxSpeed) isEvent()           {}
func (*GimbalMaxSpeed) isGimbalEvent()     {}

// GimbalAttitude reports the attitude in both frames of reference. The frame
// of each axis tells whether it is stabilized (absolute) or not (relative).
// Sent continuously without acknowledgement.
type GimbalAttitude struct {
	GimbalID      uint8   `cbor:"1,keyasint"`
	YawFrame      uint8   `cbor:"2,keyasint"`
	PitchFrame    uint8   `cbor:"3,keyasint"`
	RollFrame     uint8   `cbor:"4,keyasint"`
	YawRelative   float32 `cbor:"5,keyasint"`
	PitchRelative float32 `cbor:"6,keyasint"`
	RollRelative  float32 `cbor:"7,keyasint"`
	YawAbsolute   float32 `cbor:"8,keyasint"`
	PitchAbsolute float32 `cbor:"9,keyasint"`
	RollAbsolute  float32 `cbor:"10,keyasint"`
}

func (*GimbalAttitude) Feature() FeatureID { return FeatureGimbal }
func (*GimbalAttitude) Message() MessageID { return MsgGimbalAttitude }
func (*GimbalAttitude) Name() string       { return "GimbalAttitude" }
func (*GimbalAttitude) isEvent()           {}
func (*GimbalAttitude) isGimbalEvent()     {}

// GimbalAxisLockState reports the locked axes bitfield.
type GimbalAxisLockState struct {
	GimbalID uint8 `cbor:"1,keyasint"`
	Locked   uint8 `cbor:"2,keyasint"`
}

func (*GimbalAxisLockState) Feature() FeatureID { return FeatureGimbal }
func (*GimbalAxisLockState) Message() MessageID { return MsgGimbalAxisLockState }
func (*GimbalAxisLockState) Name() string       { return "GimbalAxisLockState" }
func (*GimbalAxisLockState) isEvent()           {}
func (*GimbalAxisLockState) isGimbalEvent()     {}

// Offsets update states.
const (
	GimbalOffsetsInactive uint8 = 0
	GimbalOffsetsActive   uint8 = 1
)

// GimbalOffsets reports the offsets correction process and its values.
type GimbalOffsets struct {
	GimbalID     uint8   `cbor:"1,keyasint"`
	UpdateState  uint8   `cbor:"2,keyasint"`
	MinYaw       float32 `cbor:"3,keyasint"`
	MaxYaw       float32 `cbor:"4,keyasint"`
	CurrentYaw   float32 `cbor:"5,keyasint"`
	MinPitch     float32 `cbor:"6,keyasint"`
	MaxPitch     float32 `cbor:"7,keyasint"`
	CurrentPitch float32 `cbor:"8,keyasint"`
	MinRoll      float32 `cbor:"9,keyasint"`
	MaxRoll      float32 `cbor:"10,keyasint"`
	CurrentRoll  float32 `cbor:"11,keyasint"`
}

func (*GimbalOffsets) Feature() FeatureID { return FeatureGimbal }
func (*GimbalOffsets) Message() MessageID { return MsgGimbalOffsets }
func (*GimbalOffsets) Name() string       { return "GimbalOffsets" }
func (*GimbalOffsets) isEvent()           {}
func (*GimbalOffsets) isGimbalEvent()     {}

// GimbalAlert reports the current errors bitfield
// (bit 0 calibration, bit 1 overload, bit 2 communication, bit 3 critical).
type GimbalAlert struct {
	GimbalID uint8 `cbor:"1,keyasint"`
	Errors   uint8 `cbor:"2,keyasint"`
}

func (*GimbalAlert) Feature() FeatureID { return FeatureGimbal }
func (*GimbalAlert) Message() MessageID { return MsgGimbalAlert }
func (*GimbalAlert) Name() string       { return "GimbalAlert" }
func (*GimbalAlert) isEvent()           {}
func (*GimbalAlert) isGimbalEvent()     {}
