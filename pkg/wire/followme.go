package wire

// Follow-me message ids.
const (
	MsgFollowMeStart MessageID = 0x01
	MsgFollowMeStop  MessageID = 0x02

	MsgFollowMeState MessageID = 0x80
	MsgFollowMeInfo  MessageID = 0x81
)

// Follow-me modes on the wire. FollowModeNone means not running.
const (
	FollowModeNone       uint8 = 0
	FollowModeGeographic uint8 = 1
	FollowModeRelative   uint8 = 2
	FollowModeLeash      uint8 = 3
)

// Follow-me behaviors on the wire.
const (
	FollowBehaviorIdle   uint8 = 0
	FollowBehaviorFollow uint8 = 1
	FollowBehaviorLookAt uint8 = 2
)

// FollowMeEvent is implemented by every event of the follow-me family.
type FollowMeEvent interface {
	Event
	isFollowMeEvent()
}

// FollowMeStart starts following in the given mode. UseDefault is a bitfield
// of the parameters left to the device defaults.
type FollowMeStart struct {
	Mode       uint8 `cbor:"1,keyasint"`
	UseDefault uint8 `cbor:"2,keyasint"`
}

func (*FollowMeStart) Feature() FeatureID { return FeatureFollowMe }
func (*FollowMeStart) Message() MessageID { return MsgFollowMeStart }
func (*FollowMeStart) Name() string       { return "FollowMeStart" }
func (*FollowMeStart) isCommand()         {}

// FollowMeStop stops following.
type FollowMeStop struct{}

func (*FollowMeStop) Feature() FeatureID { return FeatureFollowMe }
func (*FollowMeStop) Message() MessageID { return MsgFollowMeStop }
func (*FollowMeStop) Name() string       { return "FollowMeStop" }
func (*FollowMeStop) isCommand()         {}

// FollowMeState reports the running mode and behavior.
type FollowMeState struct {
	Mode     uint8 `cbor:"1,keyasint"`
	Behavior uint8 `cbor:"2,keyasint"`
}

func (*FollowMeState) Feature() FeatureID { return FeatureFollowMe }
func (*FollowMeState) Message() MessageID { return MsgFollowMeState }
func (*FollowMeState) Name() string       { return "FollowMeState" }
func (*FollowMeState) isEvent()           {}
func (*FollowMeState) isFollowMeEvent()   {}

// FollowMeInfo is one item of the supported modes list. MissingInputs and
// Improvements are indicator bitfields.
type FollowMeInfo struct {
	Mode          uint8     `cbor:"1,keyasint"`
	MissingInputs uint32    `cbor:"2,keyasint"`
	Improvements  uint32    `cbor:"3,keyasint"`
	ListFlags     ListFlags `cbor:"4,keyasint"`
}

func (*FollowMeInfo) Feature() FeatureID { return FeatureFollowMe }
func (*FollowMeInfo) Message() MessageID { return MsgFollowMeInfo }
func (*FollowMeInfo) Name() string       { return "FollowMeInfo" }
func (*FollowMeInfo) isEvent()           {}
func (*FollowMeInfo) isFollowMeEvent()   {}
