package pilotingitf

import (
	"math/bits"
	"strings"

	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// Mode is a follow-me mode.
type Mode uint8

const (
	// ModeGeographic keeps a fixed geographic offset to the target.
	ModeGeographic Mode = Mode(wire.FollowModeGeographic)
	// ModeRelative keeps an offset relative to the target heading.
	ModeRelative Mode = Mode(wire.FollowModeRelative)
	// ModeLeash follows the target like on a leash.
	ModeLeash Mode = Mode(wire.FollowModeLeash)
)

// Modes lists every mode.
var Modes = []Mode{ModeGeographic, ModeRelative, ModeLeash}

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeGeographic:
		return "GEOGRAPHIC"
	case ModeRelative:
		return "RELATIVE"
	case ModeLeash:
		return "LEASH"
	default:
		return "UNKNOWN"
	}
}

// ParseMode returns the mode of the given name.
func ParseMode(s string) (Mode, bool) {
	for _, m := range Modes {
		if m.String() == s {
			return m, true
		}
	}
	return 0, false
}

// Valid returns true for a known mode.
func (m Mode) Valid() bool {
	return m >= ModeGeographic && m <= ModeLeash
}

// Behavior is what the drone does while follow-me runs.
type Behavior uint8

const (
	// BehaviorNone means follow-me is not running.
	BehaviorNone Behavior = iota
	// BehaviorStationary means the drone only looks at the target.
	BehaviorStationary
	// BehaviorFollowing means the drone moves with the target.
	BehaviorFollowing
)

// String returns the behavior name.
func (b Behavior) String() string {
	switch b {
	case BehaviorNone:
		return "NONE"
	case BehaviorStationary:
		return "STATIONARY"
	case BehaviorFollowing:
		return "FOLLOWING"
	default:
		return "UNKNOWN"
	}
}

// Issue is a tracking issue. Its value is the bit index on the wire.
type Issue uint8

const (
	IssueDroneGPSInaccurate Issue = iota
	IssueDroneNotCalibrated
	IssueDroneOutOfGeofence
	IssueDroneTooCloseToGround
	IssueDroneAboveMaxAltitude
	IssueDroneNotFlying
	IssueTargetGPSInaccurate
	IssueTargetDetectionMissing
	IssueDroneTooCloseToTarget
	IssueDroneTooFarFromTarget
	IssueTargetHorizontalSpeed
	IssueTargetVerticalSpeed
	IssueTargetAltitudeAccuracy

	issueCount
)

var issueNames = [issueCount]string{
	"DRONE_GPS_INACCURATE",
	"DRONE_NOT_CALIBRATED",
	"DRONE_OUT_OF_GEOFENCE",
	"DRONE_TOO_CLOSE_TO_GROUND",
	"DRONE_ABOVE_MAX_ALTITUDE",
	"DRONE_NOT_FLYING",
	"TARGET_GPS_INACCURATE",
	"TARGET_DETECTION_MISSING",
	"DRONE_TOO_CLOSE_TO_TARGET",
	"DRONE_TOO_FAR_FROM_TARGET",
	"TARGET_HORIZONTAL_SPEED",
	"TARGET_VERTICAL_SPEED",
	"TARGET_ALTITUDE_ACCURACY",
}

// String returns the issue name.
func (i Issue) String() string {
	if i < issueCount {
		return issueNames[i]
	}
	return "UNKNOWN"
}

// IssueSet is a set of tracking issues.
type IssueSet uint32

const knownIssues = IssueSet(1)<<issueCount - 1

// NewIssueSet builds a set.
func NewIssueSet(issues ...Issue) IssueSet {
	var s IssueSet
	for _, i := range issues {
		if i < issueCount {
			s |= 1 << i
		}
	}
	return s
}

func issuesFromWire(v uint32) IssueSet {
	return IssueSet(v) & knownIssues
}

// Has returns true if i is in the set.
func (s IssueSet) Has(i Issue) bool {
	return i < issueCount && s&(1<<i) != 0
}

// Len returns the number of issues.
func (s IssueSet) Len() int {
	return bits.OnesCount32(uint32(s))
}

// String returns the issue names joined with '|'.
func (s IssueSet) String() string {
	var names []string
	for i := Issue(0); i < issueCount; i++ {
		if s.Has(i) {
			names = append(names, i.String())
		}
	}
	return strings.Join(names, "|")
}

// Inputs are the manual piloting inputs applied while follow-me runs, in
// percent of the max values.
type Inputs struct {
	Pitch         int8
	Roll          int8
	VerticalSpeed int8
}

func (in Inputs) command() wire.Command {
	cmd := &wire.PilotingCommand{Pitch: in.Pitch, Roll: in.Roll, Gaz: in.VerticalSpeed}
	if in.Pitch != 0 || in.Roll != 0 {
		cmd.Flag = 1
	}
	return cmd
}

// moving is true while any input is nonzero.
func (in Inputs) moving() bool {
	return in != Inputs{}
}

func percent(v int) int8 {
	return int8(min(max(v, -100), 100))
}
