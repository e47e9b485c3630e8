package wire

// Recorder message ids.
const (
	MsgRecorderConfigurePipelines MessageID = 0x01

	MsgRecorderCapabilities MessageID = 0x80
	MsgRecorderState        MessageID = 0x81
)

// RecorderEvent is implemented by every event of the recorder family.
type RecorderEvent interface {
	Event
	isRecorderEvent()
}

// RecorderConfigurePipelines selects the active recording pipelines bitfield.
type RecorderConfigurePipelines struct {
	Pipelines uint64 `cbor:"1,keyasint"`
}

func (*RecorderConfigurePipelines) Feature() FeatureID { return FeatureRecorder }
func (*RecorderConfigurePipelines) Message() MessageID { return MsgRecorderConfigurePipelines }
func (*RecorderConfigurePipelines) Name() string       { return "RecorderConfigurePipelines" }
func (*RecorderConfigurePipelines) isCommand()         {}

// RecorderCapabilities reports the supported pipelines bitfield.
type RecorderCapabilities struct {
	SupportedPipelines uint64 `cbor:"1,keyasint"`
}

func (*RecorderCapabilities) Feature() FeatureID { return FeatureRecorder }
func (*RecorderCapabilities) Message() MessageID { return MsgRecorderCapabilities }
func (*RecorderCapabilities) Name() string       { return "RecorderCapabilities" }
func (*RecorderCapabilities) isEvent()           {}
func (*RecorderCapabilities) isRecorderEvent()   {}

// RecorderState reports the active pipelines bitfield.
type RecorderState struct {
	ActivePipelines uint64 `cbor:"1,keyasint"`
}

func (*RecorderState) Feature() FeatureID { return FeatureRecorder }
func (*RecorderState) Message() MessageID { return MsgRecorderState }
func (*RecorderState) Name() string       { return "RecorderState" }
func (*RecorderState) isEvent()           {}
func (*RecorderState) isRecorderEvent()   {}
