package endpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fasthttp/websocket"
	"github.com/irdkwmnsb/remotecam/internal/api"
	"github.com/irdkwmnsb/remotecam/internal/domain"
	"github.com/pion/webrtc/v4"
)

var (
	ErrNoInitPeer = errors.New("endpoint: no init_peer message")
	ErrClosed     = errors.New("endpoint: client closed")
)

type Config struct {
	// SignallingURL is the broker base address, http(s):// or ws(s)://.
	SignallingURL string
	EventBuffer   int
	Dialer        *websocket.Dialer
}

// Client is a signalling channel to the broker. Events other than ping are
// delivered on Events in arrival order; pings are answered automatically.
type Client struct {
	conn     *websocket.Conn
	writeMu  sync.Mutex
	id       string
	pcConfig api.PeerConnectionConfig

	events    chan api.EndpointMessage
	done      chan struct{}
	closeOnce sync.Once
}

func Dial(ctx context.Context, cfg Config) (*Client, error) {
	dialer := cfg.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	url := WebSocketURL(cfg.SignallingURL)

	slog.Debug("connecting to broker", "url", url)
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	var initPeer api.EndpointMessage
	if err := conn.ReadJSON(&initPeer); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("read init_peer: %w", err)
	}
	if initPeer.Event != api.EndpointMessageEventInitPeer || initPeer.InitPeer == nil {
		_ = conn.Close()
		return nil, ErrNoInitPeer
	}

	buffer := cfg.EventBuffer
	if buffer <= 0 {
		buffer = 64
	}
	c := &Client{
		conn:     conn,
		id:       initPeer.InitPeer.ID,
		pcConfig: initPeer.InitPeer.PcConfig,
		events:   make(chan api.EndpointMessage, buffer),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// WebSocketURL turns a broker base address into the endpoint channel URL.
func WebSocketURL(base string) string {
	base = strings.TrimSuffix(base, "/")
	if strings.HasPrefix(base, "http") {
		base = "ws" + base[4:]
	}
	if !strings.HasPrefix(base, "ws") {
		base = "ws://" + base
	}
	return base + "/ws/endpoint"
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) PeerConnectionConfig() api.PeerConnectionConfig {
	return c.pcConfig
}

// NewPeerConnection builds a pion peer connection with the ICE servers the
// broker handed out.
func (c *Client) NewPeerConnection() (*webrtc.PeerConnection, error) {
	return webrtc.NewPeerConnection(c.pcConfig.WebRTCConfiguration())
}

// Events is closed when the connection ends.
func (c *Client) Events() <-chan api.EndpointMessage {
	return c.events
}

func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

func (c *Client) readLoop() {
	defer close(c.events)

	for {
		var msg api.EndpointMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.done:
			default:
				slog.Debug("broker connection closed", "id", c.id, "error", err)
			}
			return
		}

		if msg.Event == api.EndpointMessageEventPing {
			_ = c.send(api.EndpointMessage{Event: api.EndpointMessageEventPong, Ping: msg.Ping})
			continue
		}

		select {
		case c.events <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *Client) send(msg api.EndpointMessage) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// WaitFor returns the next event named event, discarding others.
func (c *Client) WaitFor(ctx context.Context, event api.EndpointMessageEvent) (api.EndpointMessage, error) {
	for {
		select {
		case msg, ok := <-c.events:
			if !ok {
				return api.EndpointMessage{}, ErrClosed
			}
			if msg.Event == event {
				return msg, nil
			}
		case <-ctx.Done():
			return api.EndpointMessage{}, ctx.Err()
		}
	}
}

func (c *Client) Register(kind domain.Kind, name string) error {
	return c.send(api.EndpointMessage{
		Event:    api.EndpointMessageEventRegister,
		Register: &api.RegisterMessage{Kind: string(kind), Name: name},
	})
}

func (c *Client) DiscoverDevices() error {
	return c.send(api.EndpointMessage{Event: api.EndpointMessageEventDiscoverDevices})
}

func (c *Client) RequestConnection(targetID string) error {
	return c.send(api.EndpointMessage{Event: api.EndpointMessageEventRequestConnection, TargetID: targetID})
}

func (c *Client) Accept(peerID string) error {
	return c.send(api.EndpointMessage{Event: api.EndpointMessageEventAcceptConnection, PeerID: peerID})
}

func (c *Client) Reject(peerID string) error {
	return c.send(api.EndpointMessage{Event: api.EndpointMessageEventRejectConnection, PeerID: peerID})
}

func (c *Client) StopStreaming() error {
	return c.send(api.EndpointMessage{Event: api.EndpointMessageEventStopStreaming})
}

// SendSignal relays an already encoded negotiation payload to target.
func (c *Client) SendSignal(kind domain.SignalKind, target string, payload json.RawMessage) error {
	return c.send(api.EndpointMessage{
		Event:   api.EndpointMessageEvent(kind),
		Target:  target,
		Payload: payload,
	})
}

func (c *Client) SendOffer(target string, offer webrtc.SessionDescription) error {
	return c.sendEncoded(domain.SignalOffer, target, offer)
}

func (c *Client) SendAnswer(target string, answer webrtc.SessionDescription) error {
	return c.sendEncoded(domain.SignalAnswer, target, answer)
}

func (c *Client) SendICECandidate(target string, candidate webrtc.ICECandidateInit) error {
	return c.sendEncoded(domain.SignalICECandidate, target, candidate)
}

func (c *Client) sendEncoded(kind domain.SignalKind, target string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	return c.SendSignal(kind, target, payload)
}

// SendControl asks the current peer to apply a device control such as
// domain.ControlZoom. params may be nil.
func (c *Client) SendControl(command string, params any) error {
	msg := api.EndpointMessage{Event: api.EndpointMessageEventControlCommand, Command: command}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("encode control params: %w", err)
		}
		msg.Params = raw
	}
	return c.send(msg)
}

func DecodeSessionDescription(msg api.EndpointMessage) (webrtc.SessionDescription, error) {
	var sd webrtc.SessionDescription
	if err := json.Unmarshal(msg.Payload, &sd); err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("decode session description: %w", err)
	}
	return sd, nil
}

func DecodeICECandidate(msg api.EndpointMessage) (webrtc.ICECandidateInit, error) {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal(msg.Payload, &candidate); err != nil {
		return webrtc.ICECandidateInit{}, fmt.Errorf("decode ice candidate: %w", err)
	}
	return candidate, nil
}
