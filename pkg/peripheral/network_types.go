package peripheral

import "github.com/Pix4D/pod-arsdkengine/pkg/setting"

// RoutingPolicy selects which links carry the traffic.
type RoutingPolicy uint8

const (
	RoutingAll RoutingPolicy = iota
	RoutingCellular
	RoutingWLAN
	RoutingAutomatic
)

// RoutingPolicies lists every known policy.
var RoutingPolicies = []RoutingPolicy{RoutingAll, RoutingCellular, RoutingWLAN, RoutingAutomatic}

// String returns the policy name.
func (p RoutingPolicy) String() string {
	switch p {
	case RoutingAll:
		return "ALL"
	case RoutingCellular:
		return "CELLULAR"
	case RoutingWLAN:
		return "WLAN"
	case RoutingAutomatic:
		return "AUTOMATIC"
	default:
		return "UNKNOWN"
	}
}

// ParseRoutingPolicy returns the policy of the given name.
func ParseRoutingPolicy(s string) (RoutingPolicy, bool) {
	for _, p := range RoutingPolicies {
		if p.String() == s {
			return p, true
		}
	}
	return 0, false
}

func routingPolicyFromWire(v uint8) (RoutingPolicy, bool) {
	p := RoutingPolicy(v)
	return p, p <= RoutingAutomatic
}

// LinkType is the kind of a network link.
type LinkType uint8

const (
	LinkCellular LinkType = iota
	LinkWLAN
)

// String returns the link type name.
func (t LinkType) String() string {
	switch t {
	case LinkCellular:
		return "CELLULAR"
	case LinkWLAN:
		return "WLAN"
	default:
		return "UNKNOWN"
	}
}

// Wire link types start at 1; 0 means no link.
func linkTypeFromWire(v uint8) (LinkType, bool) {
	switch v {
	case 1:
		return LinkCellular, true
	case 2:
		return LinkWLAN, true
	default:
		return 0, false
	}
}

// LinkStatus is the state of a network link.
type LinkStatus uint8

const (
	LinkDown LinkStatus = iota
	LinkUp
	LinkRunning
	LinkReady
	LinkConnecting
	LinkError
)

// String returns the link status name.
func (s LinkStatus) String() string {
	switch s {
	case LinkDown:
		return "DOWN"
	case LinkUp:
		return "UP"
	case LinkRunning:
		return "RUNNING"
	case LinkReady:
		return "READY"
	case LinkConnecting:
		return "CONNECTING"
	case LinkError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func linkStatusFromWire(v uint8) (LinkStatus, bool) {
	s := LinkStatus(v)
	return s, s <= LinkError
}

// LinkErrorKind tells why a link is in error. LinkErrorNone when not.
type LinkErrorKind uint8

const (
	LinkErrorNone LinkErrorKind = iota
	LinkErrorAuthentication
	LinkErrorCommunicationLink
	LinkErrorConnect
	LinkErrorDNS
	LinkErrorPublish
	LinkErrorTimeout
	LinkErrorInvite
)

// String returns the error name.
func (e LinkErrorKind) String() string {
	switch e {
	case LinkErrorNone:
		return "NONE"
	case LinkErrorAuthentication:
		return "AUTHENTICATION"
	case LinkErrorCommunicationLink:
		return "COMMUNICATION_LINK"
	case LinkErrorConnect:
		return "CONNECT"
	case LinkErrorDNS:
		return "DNS"
	case LinkErrorPublish:
		return "PUBLISH"
	case LinkErrorTimeout:
		return "TIMEOUT"
	case LinkErrorInvite:
		return "INVITE"
	default:
		return "UNKNOWN"
	}
}

// LinkInfo describes one network link. Quality is -1 when unknown, else
// 0 to 4.
type LinkInfo struct {
	Type    LinkType
	Status  LinkStatus
	Quality int
	Error   LinkErrorKind
}

// Model fields of the network component.
const (
	FieldRoutingPolicy      = "routing_policy"
	FieldCellularMaxBitrate = "cellular_max_bitrate"
	FieldCurrentLink        = "current_link"
	FieldLinks              = "links"
	FieldLinkQuality        = "link_quality"
)

type (
	routingSetting = setting.Setting[RoutingPolicy, setting.EnumSet[RoutingPolicy]]
	bitrateSetting = setting.Setting[int, setting.Range[int]]
)
