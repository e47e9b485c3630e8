package wire

// Stereo vision message ids.
const (
	MsgStereoStartCalibration  MessageID = 0x01
	MsgStereoCancelCalibration MessageID = 0x02

	MsgStereoCapabilities          MessageID = 0x80
	MsgStereoCalibrationInfo       MessageID = 0x81
	MsgStereoCalibrationState      MessageID = 0x82
	MsgStereoCalibrationStep       MessageID = 0x83
	MsgStereoCalibrationIndication MessageID = 0x84
	MsgStereoCalibrationResult     MessageID = 0x85
)

// StereoFeatureCalibration is the supported-features bit for calibration.
const StereoFeatureCalibration uint8 = 1 << 0

// StereoEvent is implemented by every event of the stereo vision family.
type StereoEvent interface {
	Event
	isStereoEvent()
}

// StereoStartCalibration starts the calibration of a sensor.
type StereoStartCalibration struct {
	SensorID uint8 `cbor:"1,keyasint"`
}

func (*StereoStartCalibration) Feature() FeatureID { return FeatureStereo }
func (*StereoStartCalibration) Message() MessageID { return MsgStereoStartCalibration }
func (*StereoStartCalibration) Name() string       { return "StereoStartCalibration" }
func (*StereoStartCalibration) isCommand()         {}

// StereoCancelCalibration cancels an ongoing calibration.
type StereoCancelCalibration struct {
	SensorID uint8 `cbor:"1,keyasint"`
}

func (*StereoCancelCalibration) Feature() FeatureID { return FeatureStereo }
func (*StereoCancelCalibration) Message() MessageID { return MsgStereoCancelCalibration }
func (*StereoCancelCalibration) Name() string       { return "StereoCancelCalibration" }
func (*StereoCancelCalibration) isCommand()         {}

// StereoCapabilities reports the sensor model and supported features.
type StereoCapabilities struct {
	SensorID          uint8 `cbor:"1,keyasint"`
	Model             uint8 `cbor:"2,keyasint"`
	SupportedFeatures uint8 `cbor:"3,keyasint"`
}

func (*StereoCapabilities) Feature() FeatureID { return FeatureStereo }
func (*StereoCapabilities) Message() MessageID { return MsgStereoCapabilities }
func (*StereoCapabilities) Name() string       { return "StereoCapabilities" }
func (*StereoCapabilities) isEvent()           {}
func (*StereoCapabilities) isStereoEvent()     {}

// StereoCalibrationInfo reports the number of calibration steps and the
// calibration board aspect ratio.
type StereoCalibrationInfo struct {
	SensorID    uint8   `cbor:"1,keyasint"`
	StepCount   uint8   `cbor:"2,keyasint"`
	AspectRatio float32 `cbor:"3,keyasint"`
}

func (*StereoCalibrationInfo) Feature() FeatureID { return FeatureStereo }
func (*StereoCalibrationInfo) Message() MessageID { return MsgStereoCalibrationInfo }
func (*StereoCalibrationInfo) Name() string       { return "StereoCalibrationInfo" }
func (*StereoCalibrationInfo) isEvent()           {}
func (*StereoCalibrationInfo) isStereoEvent()     {}

// Calibration states.
const (
	StereoCalibrationRequired    uint8 = 0
	StereoCalibrationCapture     uint8 = 1
	StereoCalibrationComputation uint8 = 2
	StereoCalibrationOK          uint8 = 3
)

// StereoCalibrationState reports the calibration state.
type StereoCalibrationState struct {
	SensorID uint8 `cbor:"1,keyasint"`
	State    uint8 `cbor:"2,keyasint"`
}

func (*StereoCalibrationState) Feature() FeatureID { return FeatureStereo }
func (*StereoCalibrationState) Message() MessageID { return MsgStereoCalibrationState }
func (*StereoCalibrationState) Name() string       { return "StereoCalibrationState" }
func (*StereoCalibrationState) isEvent()           {}
func (*StereoCalibrationState) isStereoEvent()     {}

// StereoCalibrationStep reports the current step with the required board
// position (four vertices, x then y, normalized) and rotation.
type StereoCalibrationStep struct {
	SensorID uint8      `cbor:"1,keyasint"`
	Step     uint8      `cbor:"2,keyasint"`
	Vertices [8]float32 `cbor:"3,keyasint"`
	AngleX   float32    `cbor:"4,keyasint"`
	AngleY   float32    `cbor:"5,keyasint"`
}

func (*StereoCalibrationStep) Feature() FeatureID { return FeatureStereo }
func (*StereoCalibrationStep) Message() MessageID { return MsgStereoCalibrationStep }
func (*StereoCalibrationStep) Name() string       { return "StereoCalibrationStep" }
func (*StereoCalibrationStep) isEvent()           {}
func (*StereoCalibrationStep) isStereoEvent()     {}

// StereoCalibrationIndication reports what the user should do next, with the
// current board position and rotation.
type StereoCalibrationIndication struct {
	SensorID   uint8      `cbor:"1,keyasint"`
	Indication uint8      `cbor:"2,keyasint"`
	Vertices   [8]float32 `cbor:"3,keyasint"`
	AngleX     float32    `cbor:"4,keyasint"`
	AngleY     float32    `cbor:"5,keyasint"`
}

func (*StereoCalibrationIndication) Feature() FeatureID { return FeatureStereo }
func (*StereoCalibrationIndication) Message() MessageID { return MsgStereoCalibrationIndication }
func (*StereoCalibrationIndication) Name() string       { return "StereoCalibrationIndication" }
func (*StereoCalibrationIndication) isEvent()           {}
func (*StereoCalibrationIndication) isStereoEvent()     {}

// Calibration results.
const (
	StereoResultSuccess  uint8 = 0
	StereoResultFailure  uint8 = 1
	StereoResultCanceled uint8 = 2
)

// StereoCalibrationResult reports the end of a calibration.
type StereoCalibrationResult struct {
	SensorID uint8 `cbor:"1,keyasint"`
	Result   uint8 `cbor:"2,keyasint"`
}

func (*StereoCalibrationResult) Feature() FeatureID { return FeatureStereo }
func (*StereoCalibrationResult) Message() MessageID { return MsgStereoCalibrationResult }
func (*StereoCalibrationResult) Name() string       { return "StereoCalibrationResult" }
func (*StereoCalibrationResult) isEvent()           {}
func (*StereoCalibrationResult) isStereoEvent()     {}
