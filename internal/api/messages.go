package api

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

type EndpointMessageEvent string

const (
	EndpointMessageEventInitPeer = EndpointMessageEvent("init_peer")
	EndpointMessageEventPing     = EndpointMessageEvent("ping")
	EndpointMessageEventPong     = EndpointMessageEvent("pong")

	EndpointMessageEventRegister        = EndpointMessageEvent("register")
	EndpointMessageEventDiscoverDevices = EndpointMessageEvent("discover-devices")
	EndpointMessageEventDevicesList     = EndpointMessageEvent("devices-list")
	EndpointMessageEventDeviceAvailable = EndpointMessageEvent("device-available")
	EndpointMessageEventDeviceRemoved   = EndpointMessageEvent("device-removed")

	EndpointMessageEventRequestConnection     = EndpointMessageEvent("request-connection")
	EndpointMessageEventConnectionRequest     = EndpointMessageEvent("connection-request")
	EndpointMessageEventAcceptConnection      = EndpointMessageEvent("accept-connection")
	EndpointMessageEventRejectConnection      = EndpointMessageEvent("reject-connection")
	EndpointMessageEventConnectionEstablished = EndpointMessageEvent("connection-established")
	EndpointMessageEventConnectionRejected    = EndpointMessageEvent("connection-rejected")
	EndpointMessageEventConnectionUnavailable = EndpointMessageEvent("connection-unavailable")

	EndpointMessageEventSessionOffer   = EndpointMessageEvent("session-offer")
	EndpointMessageEventSessionAnswer  = EndpointMessageEvent("session-answer")
	EndpointMessageEventIceCandidate   = EndpointMessageEvent("ice-candidate")
	EndpointMessageEventControlCommand = EndpointMessageEvent("control-command")

	EndpointMessageEventStopStreaming    = EndpointMessageEvent("stop-streaming")
	EndpointMessageEventPeerDisconnected = EndpointMessageEvent("peer-disconnected")
)

var inboundEvents = map[EndpointMessageEvent]struct{}{
	EndpointMessageEventPing:              {},
	EndpointMessageEventPong:              {},
	EndpointMessageEventRegister:          {},
	EndpointMessageEventDiscoverDevices:   {},
	EndpointMessageEventRequestConnection: {},
	EndpointMessageEventAcceptConnection:  {},
	EndpointMessageEventRejectConnection:  {},
	EndpointMessageEventSessionOffer:      {},
	EndpointMessageEventSessionAnswer:     {},
	EndpointMessageEventIceCandidate:      {},
	EndpointMessageEventControlCommand:    {},
	EndpointMessageEventStopStreaming:     {},
}

// IsInbound reports whether endpoints may send e to the broker.
func (e EndpointMessageEvent) IsInbound() bool {
	_, ok := inboundEvents[e]
	return ok
}

// EndpointMessage is the single envelope used in both directions on
// /ws/endpoint. Only the fields relevant to Event are set.
type EndpointMessage struct {
	Event EndpointMessageEvent `json:"event"`

	InitPeer *InitPeerMessage `json:"initPeer,omitempty"`
	Ping     *PingMessage     `json:"ping,omitempty"`
	Register *RegisterMessage `json:"register,omitempty"`

	// Devices is omitted only when nil; an empty devices-list carries [].
	Devices []Device `json:"devices,omitzero"`
	Device  *Device  `json:"device,omitempty"`

	TargetID string `json:"targetId,omitempty"`
	FromID   string `json:"fromId,omitempty"`
	FromName string `json:"fromName,omitempty"`
	PeerID   string `json:"peerId,omitempty"`
	Reason   string `json:"reason,omitempty"`

	// Negotiation relay. Inbound carries Target, outbound carries From.
	Target  string          `json:"target,omitempty"`
	From    string          `json:"from,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`

	Command string          `json:"command,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type PingMessage struct {
	Timestamp int64 `json:"timestamp"`
}

type RegisterMessage struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

type InitPeerMessage struct {
	ID           string               `json:"id"`
	PcConfig     PeerConnectionConfig `json:"pcConfig"`
	PingInterval int                  `json:"pingInterval"`
}

type Device struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// PeerConnectionConfig is handed to endpoints so both sides of a pair build
// their peer connections with the same ICE servers.
type PeerConnectionConfig struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

func DefaultPeerConnectionConfig() PeerConnectionConfig {
	return PeerConnectionConfig{
		ICEServers: []webrtc.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		},
	}
}

// WebRTCConfiguration converts the config into what pion expects.
func (c PeerConnectionConfig) WebRTCConfiguration() webrtc.Configuration {
	return webrtc.Configuration{ICEServers: c.ICEServers}
}

type EndpointStatus struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Kind         string `json:"kind"`
	Status       string `json:"status"`
	PeerID       string `json:"peerId,omitempty"`
	RegisteredAt int64  `json:"registeredAt"`
}

type AdminMessageEvent string

const (
	AdminMessageEventAuth        = AdminMessageEvent("auth")
	AdminMessageEventAuthRequest = AdminMessageEvent("auth:request")
	AdminMessageEventAuthFailed  = AdminMessageEvent("auth:failed")
	AdminMessageEventStatus      = AdminMessageEvent("status")
)

type AdminMessage struct {
	Event         AdminMessageEvent `json:"event"`
	Credential    *string           `json:"credential,omitempty"`
	AccessMessage *string           `json:"accessMessage,omitempty"`
	Endpoints     []EndpointStatus  `json:"endpoints,omitempty"`
	Pairs         int               `json:"pairs"`
}
