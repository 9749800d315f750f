package service

import (
	"encoding/json"
	"sync"

	"github.com/irdkwmnsb/remotecam/internal/domain"
)

type sentEvent struct {
	To      string
	Event   string
	PeerID  string
	FromID  string
	Name    string
	Kind    domain.SignalKind
	Command string
	Payload json.RawMessage
	Devices []domain.Endpoint
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) add(e sentEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

func (n *recordingNotifier) all() []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentEvent, len(n.events))
	copy(out, n.events)
	return out
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}

func (n *recordingNotifier) to(id, event string) []sentEvent {
	var out []sentEvent
	for _, e := range n.all() {
		if e.To == id && e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

func (n *recordingNotifier) SendDevicesList(to string, devices []domain.Endpoint) error {
	return n.add(sentEvent{To: to, Event: "devices-list", Devices: devices})
}

func (n *recordingNotifier) SendDeviceAvailable(to string, device domain.Endpoint) error {
	return n.add(sentEvent{To: to, Event: "device-available", PeerID: device.ID, Name: device.Name})
}

func (n *recordingNotifier) SendDeviceRemoved(to string, device domain.Endpoint) error {
	return n.add(sentEvent{To: to, Event: "device-removed", PeerID: device.ID})
}

func (n *recordingNotifier) SendConnectionRequest(to, fromID, fromName string) error {
	return n.add(sentEvent{To: to, Event: "connection-request", FromID: fromID, Name: fromName})
}

func (n *recordingNotifier) SendConnectionEstablished(to, peerID string) error {
	return n.add(sentEvent{To: to, Event: "connection-established", PeerID: peerID})
}

func (n *recordingNotifier) SendConnectionRejected(to string) error {
	return n.add(sentEvent{To: to, Event: "connection-rejected"})
}

func (n *recordingNotifier) SendConnectionUnavailable(to, targetID, reason string) error {
	return n.add(sentEvent{To: to, Event: "connection-unavailable", PeerID: targetID, Name: reason})
}

func (n *recordingNotifier) SendPeerDisconnected(to string) error {
	return n.add(sentEvent{To: to, Event: "peer-disconnected"})
}

func (n *recordingNotifier) SendSignal(to string, kind domain.SignalKind, fromID string, payload json.RawMessage) error {
	return n.add(sentEvent{To: to, Event: string(kind), Kind: kind, FromID: fromID, Payload: payload})
}

func (n *recordingNotifier) SendControlCommand(to, fromID, command string, params json.RawMessage) error {
	return n.add(sentEvent{To: to, Event: "control-command", FromID: fromID, Command: command, Payload: params})
}

// hookNotifier records like recordingNotifier and runs a callback when
// peer-disconnected or connection-established is sent, while the broker is
// still inside the transition.
type hookNotifier struct {
	*recordingNotifier
	onPeerDisconnected func(to string)
	onEstablished      func(to, peerID string)
}

func (n *hookNotifier) SendPeerDisconnected(to string) error {
	if n.onPeerDisconnected != nil {
		n.onPeerDisconnected(to)
	}
	return n.recordingNotifier.SendPeerDisconnected(to)
}

func (n *hookNotifier) SendConnectionEstablished(to, peerID string) error {
	if n.onEstablished != nil {
		n.onEstablished(to, peerID)
	}
	return n.recordingNotifier.SendConnectionEstablished(to, peerID)
}
