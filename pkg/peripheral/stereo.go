package peripheral

import (
	"math"

	"github.com/Pix4D/pod-arsdkengine/pkg/device"
	"github.com/Pix4D/pod-arsdkengine/pkg/model"
	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// StereoSensorID is the id of the stereo vision sensor.
const StereoSensorID uint8 = 0

// CalibrationState is the calibration state of the stereo vision sensor.
type CalibrationState uint8

const (
	CalibrationRequired CalibrationState = iota
	CalibrationCapture
	CalibrationComputing
	CalibrationOK
)

// String returns the state name.
func (s CalibrationState) String() string {
	switch s {
	case CalibrationRequired:
		return "REQUIRED"
	case CalibrationCapture:
		return "CAPTURE"
	case CalibrationComputing:
		return "COMPUTING"
	case CalibrationOK:
		return "OK"
	default:
		return "UNKNOWN"
	}
}

// CalibrationResult is the outcome of a calibration.
type CalibrationResult uint8

const (
	CalibrationSucceeded CalibrationResult = iota + 1
	CalibrationFailed
	CalibrationCanceled
)

// String returns the result name.
func (r CalibrationResult) String() string {
	switch r {
	case CalibrationSucceeded:
		return "SUCCESS"
	case CalibrationFailed:
		return "FAILURE"
	case CalibrationCanceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}

// Indication tells the user how to move the calibration board.
type Indication uint8

const (
	IndicationNone Indication = iota
	IndicationPlaceWithinSight
	IndicationCheckBoardAndCameras
	IndicationMoveAway
	IndicationMoveCloser
	IndicationMoveLeft
	IndicationMoveRight
	IndicationMoveUpward
	IndicationMoveDownward
	IndicationTurnClockwise
	IndicationTurnCounterClockwise
	IndicationTiltLeft
	IndicationTiltRight
	IndicationTiltForward
	IndicationTiltBackward
	IndicationStop

	indicationCount = iota
)

var indicationNames = [indicationCount]string{
	"NONE", "PLACE_WITHIN_SIGHT", "CHECK_BOARD_AND_CAMERAS",
	"MOVE_AWAY", "MOVE_CLOSER", "MOVE_LEFT", "MOVE_RIGHT", "MOVE_UPWARD", "MOVE_DOWNWARD",
	"TURN_CLOCKWISE", "TURN_COUNTER_CLOCKWISE",
	"TILT_LEFT", "TILT_RIGHT", "TILT_FORWARD", "TILT_BACKWARD",
	"STOP",
}

// String returns the indication name.
func (i Indication) String() string {
	if int(i) < len(indicationNames) {
		return indicationNames[i]
	}
	return "UNKNOWN"
}

// Point is a normalized position in the camera image.
type Point struct {
	X, Y float64
}

// Quad is the position of the calibration board in the image.
type Quad struct {
	LeftTop, RightTop, LeftBottom, RightBottom Point
}

// Rotation is the board rotation around the image axes, in degrees.
type Rotation struct {
	X, Y float64
}

// CalibrationStep is the board placement required by a calibration step.
type CalibrationStep struct {
	Index    int
	Board    Quad
	Rotation Rotation
}

// CalibrationIndication is the current board placement with the next move.
type CalibrationIndication struct {
	Indication Indication
	Board      Quad
	Rotation   Rotation
}

// Stereo vision model fields.
const (
	FieldCalibrationState       = "calibration.state"
	FieldCalibrationStepCount   = "calibration.step_count"
	FieldCalibrationAspectRatio = "calibration.aspect_ratio"
	FieldCalibrationStep        = "calibration.step"
	FieldCalibrationIndication  = "calibration.indication"
	FieldCalibrationResult      = "calibration.result"
)

var calibrationFields = []model.Field{
	FieldCalibrationState, FieldCalibrationStepCount, FieldCalibrationAspectRatio,
	FieldCalibrationStep, FieldCalibrationIndication, FieldCalibrationResult,
}

// StereoVision reports and drives the calibration of the stereo vision
// sensor. It exists only while a connected device supports calibration.
type StereoVision struct {
	device.Base

	supported bool
	state     CalibrationState
	hasState  bool
}

// NewStereoVision creates the stereo vision component of ctrl.
func NewStereoVision(ctrl *device.Controller) *StereoVision {
	return &StereoVision{Base: device.NewBase(ctrl, KindStereo)}
}

// Features returns the stereo vision feature.
func (s *StereoVision) Features() []wire.FeatureID {
	return []wire.FeatureID{wire.FeatureStereo}
}

// WillConnect forgets the support of the previous session.
func (s *StereoVision) WillConnect() {
	s.supported = false
}

// DidConnect publishes if the sensor supports calibration.
func (s *StereoVision) DidConnect() {
	if !s.supported {
		return
	}
	tx := s.Begin()
	defer tx.Commit()
	tx.Publish()
}

// DidDisconnect clears everything and unpublishes.
func (s *StereoVision) DidDisconnect() {
	tx := s.Begin()
	defer tx.Commit()

	s.supported = false
	s.hasState = false
	for _, f := range calibrationFields {
		tx.Clear(f)
	}
	tx.Unpublish()
}

// HandleEvent processes stereo vision events.
func (s *StereoVision) HandleEvent(ev wire.Event) {
	se, ok := ev.(wire.StereoEvent)
	if !ok {
		s.DropEvent(ev, "not a stereo vision event")
		return
	}
	if id, ok := sensorIDOf(se); ok && id != StereoSensorID {
		s.Logger().Warn("dropping event of unknown sensor", "event", ev.Name(), "sensor", id)
		return
	}

	switch e := se.(type) {
	case *wire.StereoCapabilities:
		s.supported = e.SupportedFeatures&wire.StereoFeatureCalibration != 0
	case *wire.StereoCalibrationInfo:
		if hasNaN(e.AspectRatio) {
			s.DropEvent(e, "NaN aspect ratio")
			return
		}
		tx := s.Begin()
		defer tx.Commit()
		tx.Set(FieldCalibrationStepCount, int(e.StepCount))
		tx.Set(FieldCalibrationAspectRatio, round3(float64(e.AspectRatio)))
	case *wire.StereoCalibrationState:
		if e.State > wire.StereoCalibrationOK {
			s.DropEvent(e, "unknown calibration state")
			return
		}
		tx := s.Begin()
		defer tx.Commit()
		s.state, s.hasState = CalibrationState(e.State), true
		tx.Set(FieldCalibrationState, s.state)
	case *wire.StereoCalibrationStep:
		if hasNaN(append(e.Vertices[:], e.AngleX, e.AngleY)...) {
			s.DropEvent(e, "NaN step geometry")
			return
		}
		tx := s.Begin()
		defer tx.Commit()
		tx.Set(FieldCalibrationStep, CalibrationStep{
			Index:    int(e.Step),
			Board:    quadFromWire(e.Vertices),
			Rotation: Rotation{X: round3(float64(e.AngleX)), Y: round3(float64(e.AngleY))},
		})
	case *wire.StereoCalibrationIndication:
		if int(e.Indication) >= indicationCount {
			s.DropEvent(e, "unknown indication")
			return
		}
		if hasNaN(append(e.Vertices[:], e.AngleX, e.AngleY)...) {
			s.DropEvent(e, "NaN indication geometry")
			return
		}
		tx := s.Begin()
		defer tx.Commit()
		tx.Set(FieldCalibrationIndication, CalibrationIndication{
			Indication: Indication(e.Indication),
			Board:      quadFromWire(e.Vertices),
			Rotation:   Rotation{X: round3(float64(e.AngleX)), Y: round3(float64(e.AngleY))},
		})
	case *wire.StereoCalibrationResult:
		s.onResult(e)
	case *wire.UnknownEvent:
		s.DropEvent(e, "unknown message")
	}
}

// onResult notifies the result once, then the end of the calibration.
func (s *StereoVision) onResult(e *wire.StereoCalibrationResult) {
	var r CalibrationResult
	switch e.Result {
	case wire.StereoResultSuccess:
		r = CalibrationSucceeded
	case wire.StereoResultFailure:
		r = CalibrationFailed
	case wire.StereoResultCanceled:
		r = CalibrationCanceled
	default:
		s.DropEvent(e, "unknown calibration result")
		return
	}

	tx := s.Begin()
	tx.Set(FieldCalibrationResult, r)
	tx.Commit()

	tx = s.Begin()
	defer tx.Commit()
	tx.Clear(FieldCalibrationResult)
	tx.Clear(FieldCalibrationStep)
	tx.Clear(FieldCalibrationIndication)
}

func sensorIDOf(ev wire.StereoEvent) (uint8, bool) {
	switch e := ev.(type) {
	case *wire.StereoCapabilities:
		return e.SensorID, true
	case *wire.StereoCalibrationInfo:
		return e.SensorID, true
	case *wire.StereoCalibrationState:
		return e.SensorID, true
	case *wire.StereoCalibrationStep:
		return e.SensorID, true
	case *wire.StereoCalibrationIndication:
		return e.SensorID, true
	case *wire.StereoCalibrationResult:
		return e.SensorID, true
	default:
		return 0, false
	}
}

func hasNaN(vs ...float32) bool {
	for _, v := range vs {
		if math.IsNaN(float64(v)) {
			return true
		}
	}
	return false
}

func quadFromWire(v [8]float32) Quad {
	p := func(i int) Point {
		return Point{X: round3(float64(v[i])), Y: round3(float64(v[i+1]))}
	}
	return Quad{LeftTop: p(0), RightTop: p(2), LeftBottom: p(4), RightBottom: p(6)}
}

// StartCalibration starts a calibration. Returns false if the sensor is not
// available or already capturing.
func (s *StereoVision) StartCalibration() bool {
	var ok bool
	s.Do(func() {
		if !s.Connected() || !s.supported || (s.hasState && s.state == CalibrationCapture) {
			return
		}
		ok = s.Send(&wire.StereoStartCalibration{SensorID: StereoSensorID})
	})
	return ok
}

// CancelCalibration cancels the ongoing calibration.
func (s *StereoVision) CancelCalibration() bool {
	var ok bool
	s.Do(func() {
		if !s.Connected() || !s.supported || !s.hasState {
			return
		}
		if s.state != CalibrationCapture && s.state != CalibrationComputing {
			return
		}
		ok = s.Send(&wire.StereoCancelCalibration{SensorID: StereoSensorID})
	})
	return ok
}

// CalibrationState returns the calibration state.
func (s *StereoVision) CalibrationState() (CalibrationState, bool) {
	return model.Value[CalibrationState](s.Model(), FieldCalibrationState)
}

// StepCount returns the number of calibration steps.
func (s *StereoVision) StepCount() (int, bool) {
	return model.Value[int](s.Model(), FieldCalibrationStepCount)
}

// AspectRatio returns the aspect ratio of the calibration board.
func (s *StereoVision) AspectRatio() (float64, bool) {
	return model.Value[float64](s.Model(), FieldCalibrationAspectRatio)
}

// Step returns the current calibration step.
func (s *StereoVision) Step() (CalibrationStep, bool) {
	return model.Value[CalibrationStep](s.Model(), FieldCalibrationStep)
}

// Indication returns the current calibration indication.
func (s *StereoVision) Indication() (CalibrationIndication, bool) {
	return model.Value[CalibrationIndication](s.Model(), FieldCalibrationIndication)
}

var _ device.Component = (*StereoVision)(nil)
