package wire

// Network message ids.
const (
	MsgNetworkGetState              MessageID = 0x01
	MsgNetworkSetRoutingPolicy      MessageID = 0x02
	MsgNetworkSetCellularMaxBitrate MessageID = 0x03

	MsgNetworkState MessageID = 0x80
)

// NetworkEvent is implemented by every event of the network family.
type NetworkEvent interface {
	Event
	isNetworkEvent()
}

// NetworkGetState asks the device for a NetworkState event.
type NetworkGetState struct {
	IncludeDefaultCapabilities bool `cbor:"1,keyasint,omitempty"`
}

func (*NetworkGetState) Feature() FeatureID { return FeatureNetwork }
func (*NetworkGetState) Message() MessageID { return MsgNetworkGetState }
func (*NetworkGetState) Name() string       { return "NetworkGetState" }
func (*NetworkGetState) isCommand()         {}

// NetworkSetRoutingPolicy selects the link routing policy.
type NetworkSetRoutingPolicy struct {
	Policy uint8 `cbor:"1,keyasint"`
}

func (*NetworkSetRoutingPolicy) Feature() FeatureID { return FeatureNetwork }
func (*NetworkSetRoutingPolicy) Message() MessageID { return MsgNetworkSetRoutingPolicy }
func (*NetworkSetRoutingPolicy) Name() string       { return "NetworkSetRoutingPolicy" }
func (*NetworkSetRoutingPolicy) isCommand()         {}

// NetworkSetCellularMaxBitrate sets the cellular upload bitrate cap in kbit/s.
// Zero means the device maximum.
type NetworkSetCellularMaxBitrate struct {
	MaxBitrate int32 `cbor:"1,keyasint"`
}

func (*NetworkSetCellularMaxBitrate) Feature() FeatureID { return FeatureNetwork }
func (*NetworkSetCellularMaxBitrate) Message() MessageID { return MsgNetworkSetCellularMaxBitrate }
func (*NetworkSetCellularMaxBitrate) Name() string       { return "NetworkSetCellularMaxBitrate" }
func (*NetworkSetCellularMaxBitrate) isCommand()         {}

// NetworkState reports network state. Every part is optional.
type NetworkState struct {
	DefaultCapabilities *NetworkCapabilities `cbor:"1,keyasint,omitempty"`
	RoutingInfo         *RoutingInfo         `cbor:"2,keyasint,omitempty"`
	LinksStatus         *LinksStatus         `cbor:"3,keyasint,omitempty"`
	GlobalLinkQuality   *GlobalLinkQuality   `cbor:"4,keyasint,omitempty"`
	CellularMaxBitrate  *CellularMaxBitrate  `cbor:"5,keyasint,omitempty"`
}

func (*NetworkState) Feature() FeatureID { return FeatureNetwork }
func (*NetworkState) Message() MessageID { return MsgNetworkState }
func (*NetworkState) Name() string       { return "NetworkState" }
func (*NetworkState) isEvent()           {}
func (*NetworkState) isNetworkEvent()    {}

// NetworkCapabilities carries the cellular bitrate bounds in kbit/s.
type NetworkCapabilities struct {
	CellularMinBitrate int32 `cbor:"1,keyasint"`
	CellularMaxBitrate int32 `cbor:"2,keyasint"`
}

// RoutingInfo carries the routing policy and the link currently in use.
type RoutingInfo struct {
	Policy  uint8 `cbor:"1,keyasint"`
	Current uint8 `cbor:"2,keyasint"`
}

// LinksStatus lists every network link.
type LinksStatus struct {
	Links []LinkInfo `cbor:"1,keyasint"`
}

// LinkInfo describes one network link.
type LinkInfo struct {
	Type    uint8 `cbor:"1,keyasint"`
	Status  uint8 `cbor:"2,keyasint"`
	Quality int32 `cbor:"3,keyasint"`
	Error   uint8 `cbor:"4,keyasint,omitempty"`
}

// GlobalLinkQuality is 0 when unknown, 1 to 5 otherwise.
type GlobalLinkQuality struct {
	Quality int32 `cbor:"1,keyasint"`
}

// CellularMaxBitrate is the configured cap in kbit/s, 0 meaning maximum.
type CellularMaxBitrate struct {
	MaxBitrate int32 `cbor:"1,keyasint"`
}
