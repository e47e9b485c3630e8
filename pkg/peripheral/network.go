package peripheral

import (
	"github.com/Pix4D/pod-arsdkengine/pkg/device"
	"github.com/Pix4D/pod-arsdkengine/pkg/model"
	"github.com/Pix4D/pod-arsdkengine/pkg/setting"
	"github.com/Pix4D/pod-arsdkengine/pkg/wire"
)

// Network controls the routing policy and the cellular bitrate cap, and
// reports the link status.
//
// The network state is not part of the connection burst: the component
// requests it in WillConnect and applies presets on the first state of the
// session once connected.
type Network struct {
	device.Base

	policy  *routingSetting
	bitrate *bitrateSetting

	// stateReceived is true once a NetworkState arrived this session.
	stateReceived bool
	// applied is true once presets were applied this session.
	applied bool
}

// NewNetwork creates the network component of ctrl.
func NewNetwork(ctrl *device.Controller) *Network {
	n := &Network{Base: device.NewBase(ctrl, KindNetwork)}
	n.policy = setting.New[RoutingPolicy, setting.EnumSet[RoutingPolicy]](FieldRoutingPolicy, &n.Base,
		func(p RoutingPolicy) bool {
			return n.Send(&wire.NetworkSetRoutingPolicy{Policy: uint8(p)})
		}, n.Logger())
	n.bitrate = setting.New[int, setting.Range[int]](FieldCellularMaxBitrate, &n.Base,
		func(kbps int) bool {
			return n.Send(&wire.NetworkSetCellularMaxBitrate{MaxBitrate: int32(kbps)})
		}, n.Logger())
	return n
}

// Features returns the network feature.
func (n *Network) Features() []wire.FeatureID {
	return []wire.FeatureID{wire.FeatureNetwork}
}

// Load restores the stored capabilities and presets.
func (n *Network) Load() {
	tx := n.Begin()
	defer tx.Commit()

	n.policy.Load(tx)
	n.bitrate.Load(tx)
	if ds := n.DeviceStore(); ds != nil && !ds.IsNew() {
		tx.Publish()
	}
}

// WillConnect clears the device-reported values and requests the state.
func (n *Network) WillConnect() {
	tx := n.Begin()
	defer tx.Commit()

	n.stateReceived = false
	n.applied = false
	n.policy.WillConnect(tx)
	n.bitrate.WillConnect(tx)
	n.Send(&wire.NetworkGetState{IncludeDefaultCapabilities: true})
}

// DidConnect applies presets if the state already arrived.
func (n *Network) DidConnect() {
	if !n.stateReceived {
		return
	}
	tx := n.Begin()
	defer tx.Commit()
	n.applyPresets(tx)
}

func (n *Network) applyPresets(tx *model.Tx) {
	n.policy.ApplyPreset(tx)
	n.bitrate.ApplyPreset(tx)
	n.applied = true
	tx.Publish()
}

// DidDisconnect clears the live values.
func (n *Network) DidDisconnect() {
	tx := n.Begin()
	defer tx.Commit()

	n.policy.Disconnect(tx)
	n.bitrate.Disconnect(tx)
	tx.Clear(FieldCurrentLink)
	tx.Clear(FieldLinks)
	tx.Clear(FieldLinkQuality)
	if !n.Persistent() {
		tx.Unpublish()
	}
}

// WillForget drops the capabilities and unpublishes.
func (n *Network) WillForget() {
	tx := n.Begin()
	defer tx.Commit()

	n.policy.Forget(tx)
	n.bitrate.Forget(tx)
	tx.Unpublish()
}

// PresetDidChange reloads and applies the presets.
func (n *Network) PresetDidChange() {
	tx := n.Begin()
	defer tx.Commit()

	n.policy.PresetDidChange(tx)
	n.bitrate.PresetDidChange(tx)
}

// HandleEvent processes network events.
func (n *Network) HandleEvent(ev wire.Event) {
	ne, ok := ev.(wire.NetworkEvent)
	if !ok {
		n.DropEvent(ev, "not a network event")
		return
	}
	switch e := ne.(type) {
	case *wire.NetworkState:
		n.onState(e)
	case *wire.UnknownEvent:
		n.DropEvent(e, "unknown message")
	}
}

func (n *Network) onState(e *wire.NetworkState) {
	var bitrates *setting.Range[int]
	if caps := e.DefaultCapabilities; caps != nil {
		r := setting.Range[int]{Min: int(caps.CellularMinBitrate), Max: int(caps.CellularMaxBitrate)}
		if !r.Valid() {
			n.DropEvent(e, "inverted bitrate range")
			return
		}
		bitrates = &r
	}

	tx := n.Begin()
	defer tx.Commit()

	if bitrates != nil {
		n.bitrate.OnDeviceCapabilityChanged(tx, *bitrates)
	}

	if ri := e.RoutingInfo; ri != nil {
		n.onRoutingInfo(tx, ri)
	}
	if ls := e.LinksStatus; ls != nil {
		tx.Set(FieldLinks, n.links(ls))
	}
	if q := e.GlobalLinkQuality; q != nil {
		if q.Quality <= 0 {
			tx.Clear(FieldLinkQuality)
		} else {
			tx.Set(FieldLinkQuality, int(q.Quality)-1)
		}
	}
	if mb := e.CellularMaxBitrate; mb != nil {
		n.onCellularMaxBitrate(tx, int(mb.MaxBitrate))
	}

	if !n.stateReceived {
		n.stateReceived = true
		if n.Connected() && !n.applied {
			n.applyPresets(tx)
		}
	}
}

func (n *Network) onRoutingInfo(tx *model.Tx, ri *wire.RoutingInfo) {
	if link, ok := linkTypeFromWire(ri.Current); ok {
		tx.Set(FieldCurrentLink, link)
	} else {
		tx.Clear(FieldCurrentLink)
	}

	if !n.stateReceived {
		// The device does not report supported policies.
		n.policy.OnDeviceCapabilityChanged(tx, setting.NewEnumSet(RoutingPolicies...))
	}

	p, ok := routingPolicyFromWire(ri.Policy)
	if !ok {
		n.Logger().Warn("ignoring unknown routing policy", "policy", ri.Policy)
		return
	}
	n.policy.OnDeviceSettingChanged(tx, p)
}

func (n *Network) onCellularMaxBitrate(tx *model.Tx, kbps int) {
	if kbps == 0 {
		// Zero means the upper bound of the range.
		r, ok := n.bitrate.Capability()
		if !ok {
			n.Logger().Debug("ignoring maximum bitrate without range")
			return
		}
		kbps = r.Max
	}
	n.bitrate.OnDeviceSettingChanged(tx, kbps)
}

func (n *Network) links(ls *wire.LinksStatus) []LinkInfo {
	links := make([]LinkInfo, 0, len(ls.Links))
	for _, l := range ls.Links {
		typ, ok := linkTypeFromWire(l.Type)
		if !ok {
			n.Logger().Warn("dropping link of unknown type", "type", l.Type)
			continue
		}
		status, ok := linkStatusFromWire(l.Status)
		if !ok {
			n.Logger().Warn("dropping link of unknown status", "status", l.Status)
			continue
		}
		info := LinkInfo{Type: typ, Status: status, Quality: -1}
		if l.Quality > 0 {
			info.Quality = int(l.Quality) - 1
		}
		if errKind := LinkErrorKind(l.Error); errKind <= LinkErrorInvite {
			info.Error = errKind
		}
		links = append(links, info)
	}
	return links
}

// SetRoutingPolicy requests a routing policy.
func (n *Network) SetRoutingPolicy(p RoutingPolicy) setting.SetResult {
	var res setting.SetResult
	n.Do(func() {
		tx := n.Begin()
		defer tx.Commit()
		res = n.policy.UserSet(tx, p)
	})
	return res
}

// SetCellularMaxBitrate requests a cellular bitrate cap in kbit/s.
func (n *Network) SetCellularMaxBitrate(kbps int) setting.SetResult {
	var res setting.SetResult
	n.Do(func() {
		tx := n.Begin()
		defer tx.Commit()
		res = n.bitrate.UserSet(tx, kbps)
	})
	return res
}

// RoutingPolicy returns the current routing policy.
func (n *Network) RoutingPolicy() (RoutingPolicy, bool) {
	return model.Value[RoutingPolicy](n.Model(), FieldRoutingPolicy)
}

// CellularMaxBitrate returns the current bitrate cap in kbit/s.
func (n *Network) CellularMaxBitrate() (int, bool) {
	return model.Value[int](n.Model(), FieldCellularMaxBitrate)
}

// CellularBitrateRange returns the supported bitrate range.
func (n *Network) CellularBitrateRange() (setting.Range[int], bool) {
	return model.Value[setting.Range[int]](n.Model(), FieldCellularMaxBitrate+setting.SuffixCapability)
}

// CurrentLink returns the link in use.
func (n *Network) CurrentLink() (LinkType, bool) {
	return model.Value[LinkType](n.Model(), FieldCurrentLink)
}

// Links returns the status of every link.
func (n *Network) Links() []LinkInfo {
	links, _ := model.Value[[]LinkInfo](n.Model(), FieldLinks)
	return links
}

// LinkQuality returns the global link quality, 0 to 4.
func (n *Network) LinkQuality() (int, bool) {
	return model.Value[int](n.Model(), FieldLinkQuality)
}

var _ device.Component = (*Network)(nil)
