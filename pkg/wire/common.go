package wire

// Common message ids.
const (
	MsgGetAllStates     MessageID = 0x01
	MsgAllStatesChanged MessageID = 0x80
)

// GetAllStates asks the device to send its full state followed by
// AllStatesChanged.
type GetAllStates struct{}

func (*GetAllStates) Feature() FeatureID { return FeatureCommon }
func (*GetAllStates) Message() MessageID { return MsgGetAllStates }
func (*GetAllStates) Name() string       { return "GetAllStates" }
func (*GetAllStates) isCommand()         {}

// AllStatesChanged marks the end of the initial state burst.
type AllStatesChanged struct{}

func (*AllStatesChanged) Feature() FeatureID { return FeatureCommon }
func (*AllStatesChanged) Message() MessageID { return MsgAllStatesChanged }
func (*AllStatesChanged) Name() string       { return "AllStatesChanged" }
func (*AllStatesChanged) isEvent()           {}
