package wire

// Piloting message ids.
const (
	MsgPilotingCommand MessageID = 0x01
)

// PilotingCommand carries manual piloting inputs in percent of the max
// values. It is not acknowledged by the device.
type PilotingCommand struct {
	Flag  uint8 `cbor:"1,keyasint"`
	Roll  int8  `cbor:"2,keyasint"`
	Pitch int8  `cbor:"3,keyasint"`
	Yaw   int8  `cbor:"4,keyasint"`
	Gaz   int8  `cbor:"5,keyasint"`
}

func (*PilotingCommand) Feature() FeatureID { return FeaturePiloting }
func (*PilotingCommand) Message() MessageID { return MsgPilotingCommand }
func (*PilotingCommand) Name() string       { return "PilotingCommand" }
func (*PilotingCommand) isCommand()         {}
