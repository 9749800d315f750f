package domain

import "encoding/json"

// SignalKind is a negotiation payload category relayed between peers.
type SignalKind string

const (
	SignalOffer        SignalKind = "session-offer"
	SignalAnswer       SignalKind = "session-answer"
	SignalICECandidate SignalKind = "ice-candidate"
)

func (k SignalKind) Valid() bool {
	switch k {
	case SignalOffer, SignalAnswer, SignalICECandidate:
		return true
	}
	return false
}

// Control command names used by the viewer side. The broker does not
// validate them.
const (
	ControlSwitchCamera = "switch"
	ControlFlash        = "flash"
	ControlFocus        = "focus"
	ControlZoom         = "zoom"
	ControlQuality      = "quality"
)

// EndpointNotifier delivers broker events to a connected endpoint. Sends are
// fire-and-forget; an error only means the event was not queued.
type EndpointNotifier interface {
	SendDevicesList(to string, devices []Endpoint) error
	SendDeviceAvailable(to string, device Endpoint) error
	SendDeviceRemoved(to string, device Endpoint) error
	SendConnectionRequest(to string, fromID string, fromName string) error
	SendConnectionEstablished(to string, peerID string) error
	SendConnectionRejected(to string) error
	SendConnectionUnavailable(to string, targetID string, reason string) error
	SendPeerDisconnected(to string) error
	SendSignal(to string, kind SignalKind, fromID string, payload json.RawMessage) error
	SendControlCommand(to string, fromID string, command string, params json.RawMessage) error
}
