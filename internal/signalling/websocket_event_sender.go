package signalling

import (
	"encoding/json"
	"errors"

	"github.com/irdkwmnsb/remotecam/internal/api"
	"github.com/irdkwmnsb/remotecam/internal/domain"
	"github.com/irdkwmnsb/remotecam/internal/metrics"
)

var (
	ErrEndpointOffline = errors.New("endpoint has no open connection")
	ErrOutboxFull      = errors.New("endpoint outbox is full")
)

// WebSocketEventSender implements domain.EndpointNotifier by queueing events
// into the connection loop of the target endpoint.
type WebSocketEventSender struct {
	outboxes *Outboxes
}

func NewWebSocketEventSender(outboxes *Outboxes) *WebSocketEventSender {
	return &WebSocketEventSender{
		outboxes: outboxes,
	}
}

func (w *WebSocketEventSender) send(to string, msg api.EndpointMessage) error {
	loop, ok := w.outboxes.Lookup(to)
	if !ok {
		return ErrEndpointOffline
	}
	if !loop.SendMessage(msg) {
		return ErrOutboxFull
	}
	metrics.SignallingMessagesTotal.WithLabelValues(string(msg.Event), "out").Inc()
	return nil
}

func (w *WebSocketEventSender) SendDevicesList(to string, devices []domain.Endpoint) error {
	return w.send(to, api.EndpointMessage{
		Event:   api.EndpointMessageEventDevicesList,
		Devices: api.ToApiDevices(devices),
	})
}

func (w *WebSocketEventSender) SendDeviceAvailable(to string, device domain.Endpoint) error {
	d := api.ToApiDevice(device)
	return w.send(to, api.EndpointMessage{
		Event:  api.EndpointMessageEventDeviceAvailable,
		Device: &d,
	})
}

func (w *WebSocketEventSender) SendDeviceRemoved(to string, device domain.Endpoint) error {
	d := api.ToApiDevice(device)
	return w.send(to, api.EndpointMessage{
		Event:  api.EndpointMessageEventDeviceRemoved,
		Device: &d,
	})
}

func (w *WebSocketEventSender) SendConnectionRequest(to, fromID, fromName string) error {
	return w.send(to, api.EndpointMessage{
		Event:    api.EndpointMessageEventConnectionRequest,
		FromID:   fromID,
		FromName: fromName,
	})
}

func (w *WebSocketEventSender) SendConnectionEstablished(to, peerID string) error {
	return w.send(to, api.EndpointMessage{
		Event:  api.EndpointMessageEventConnectionEstablished,
		PeerID: peerID,
	})
}

func (w *WebSocketEventSender) SendConnectionRejected(to string) error {
	return w.send(to, api.EndpointMessage{Event: api.EndpointMessageEventConnectionRejected})
}

func (w *WebSocketEventSender) SendConnectionUnavailable(to, targetID, reason string) error {
	return w.send(to, api.EndpointMessage{
		Event:    api.EndpointMessageEventConnectionUnavailable,
		TargetID: targetID,
		Reason:   reason,
	})
}

func (w *WebSocketEventSender) SendPeerDisconnected(to string) error {
	return w.send(to, api.EndpointMessage{Event: api.EndpointMessageEventPeerDisconnected})
}

func (w *WebSocketEventSender) SendSignal(to string, kind domain.SignalKind, fromID string, payload json.RawMessage) error {
	return w.send(to, api.EndpointMessage{
		Event:   api.EndpointMessageEvent(kind),
		From:    fromID,
		Payload: payload,
	})
}

func (w *WebSocketEventSender) SendControlCommand(to, fromID, command string, params json.RawMessage) error {
	return w.send(to, api.EndpointMessage{
		Event:   api.EndpointMessageEventControlCommand,
		From:    fromID,
		Command: command,
		Params:  params,
	})
}
