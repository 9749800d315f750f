package signalling

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/irdkwmnsb/remotecam/internal/api"
	"github.com/irdkwmnsb/remotecam/internal/config"
	"github.com/irdkwmnsb/remotecam/internal/domain"
	"github.com/irdkwmnsb/remotecam/internal/endpoint"
	"github.com/pion/webrtc/v4"
)

type testBroker struct {
	server *Server
	app    *fiber.App
	url    string
}

func startBroker(t *testing.T, mutate func(*config.AppConfig)) *testBroker {
	t.Helper()
	cfg := config.DefaultAppConfig()
	secret := "secret"
	cfg.Security.AdminCredential = &secret
	if mutate != nil {
		mutate(&cfg)
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	server, err := NewServer(&cfg, app)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	server.SetupWebSocketsAndApi()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = app.Listener(ln) }()

	t.Cleanup(func() {
		server.Close()
		_ = app.Shutdown()
	})
	return &testBroker{server: server, app: app, url: "http://" + ln.Addr().String()}
}

func (b *testBroker) dial(t *testing.T) *endpoint.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := endpoint.Dial(ctx, endpoint.Config{SignallingURL: b.url})
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitEvent(t *testing.T, c *endpoint.Client, event api.EndpointMessageEvent) api.EndpointMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	msg, err := c.WaitFor(ctx, event)
	if err != nil {
		t.Fatalf("waiting for %s on %s: %v", event, c.ID(), err)
	}
	return msg
}

// expectNoEvent fails if event reaches c within d.
func expectNoEvent(t *testing.T, c *endpoint.Client, event api.EndpointMessageEvent, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	if msg, err := c.WaitFor(ctx, event); err == nil {
		t.Fatalf("unexpected %s on %s: %+v", event, c.ID(), msg)
	}
}

func register(t *testing.T, c *endpoint.Client, kind domain.Kind, name string) api.EndpointMessage {
	t.Helper()
	if err := c.Register(kind, name); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return waitEvent(t, c, api.EndpointMessageEventDevicesList)
}

func TestEndpointSessionEndToEnd(t *testing.T) {
	b := startBroker(t, nil)
	source := b.dial(t)
	sink := b.dial(t)

	if source.ID() == "" || source.ID() == sink.ID() {
		t.Fatalf("ids = %q, %q", source.ID(), sink.ID())
	}
	if len(source.PeerConnectionConfig().ICEServers) == 0 {
		t.Error("init_peer carried no ICE servers")
	}

	register(t, source, domain.KindSource, "Phone")
	list := register(t, sink, domain.KindSink, "PC")
	if len(list.Devices) != 1 || list.Devices[0].ID != source.ID() || list.Devices[0].Name != "Phone" {
		t.Fatalf("devices-list = %+v", list.Devices)
	}
	avail := waitEvent(t, source, api.EndpointMessageEventDeviceAvailable)
	if avail.Device == nil || avail.Device.ID != sink.ID() {
		t.Errorf("device-available = %+v", avail)
	}

	if err := sink.RequestConnection(source.ID()); err != nil {
		t.Fatal(err)
	}
	req := waitEvent(t, source, api.EndpointMessageEventConnectionRequest)
	if req.FromID != sink.ID() || req.FromName != "PC" {
		t.Fatalf("connection-request = %+v", req)
	}

	if err := source.Accept(req.FromID); err != nil {
		t.Fatal(err)
	}
	if got := waitEvent(t, source, api.EndpointMessageEventConnectionEstablished); got.PeerID != sink.ID() {
		t.Errorf("source established with %q", got.PeerID)
	}
	if got := waitEvent(t, sink, api.EndpointMessageEventConnectionEstablished); got.PeerID != source.ID() {
		t.Errorf("sink established with %q", got.PeerID)
	}

	pc, err := sink.NewPeerConnection()
	if err != nil {
		t.Fatalf("NewPeerConnection() error = %v", err)
	}
	defer pc.Close()
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}); err != nil {
		t.Fatal(err)
	}
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := sink.SendOffer(source.ID(), offer); err != nil {
		t.Fatal(err)
	}
	gotOffer := waitEvent(t, source, api.EndpointMessageEventSessionOffer)
	if gotOffer.From != sink.ID() {
		t.Errorf("offer from %q", gotOffer.From)
	}
	sd, err := endpoint.DecodeSessionDescription(gotOffer)
	if err != nil || sd.Type != webrtc.SDPTypeOffer || sd.SDP != offer.SDP {
		t.Fatalf("relayed offer differs: %v", err)
	}

	sourcePC, err := source.NewPeerConnection()
	if err != nil {
		t.Fatalf("NewPeerConnection() error = %v", err)
	}
	defer sourcePC.Close()
	if err := sourcePC.SetRemoteDescription(sd); err != nil {
		t.Fatal(err)
	}
	answer, err := sourcePC.CreateAnswer(nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := source.SendAnswer(sink.ID(), answer); err != nil {
		t.Fatal(err)
	}
	gotAnswer := waitEvent(t, sink, api.EndpointMessageEventSessionAnswer)
	if gotAnswer.From != source.ID() {
		t.Errorf("answer from %q", gotAnswer.From)
	}
	answerSD, err := endpoint.DecodeSessionDescription(gotAnswer)
	if err != nil || answerSD.Type != webrtc.SDPTypeAnswer || answerSD.SDP != answer.SDP {
		t.Fatalf("relayed answer differs: %v", err)
	}

	candidate := webrtc.ICECandidateInit{Candidate: "candidate:1 1 udp 2122260223 192.168.1.5 50000 typ host"}
	if err := source.SendICECandidate(sink.ID(), candidate); err != nil {
		t.Fatal(err)
	}
	gotCandidate, err := endpoint.DecodeICECandidate(waitEvent(t, sink, api.EndpointMessageEventIceCandidate))
	if err != nil || gotCandidate.Candidate != candidate.Candidate {
		t.Errorf("candidate = %+v, %v", gotCandidate, err)
	}

	if err := sink.SendControl(domain.ControlZoom, map[string]float64{"level": 2}); err != nil {
		t.Fatal(err)
	}
	control := waitEvent(t, source, api.EndpointMessageEventControlCommand)
	if control.Command != domain.ControlZoom || control.From != sink.ID() || !strings.Contains(string(control.Params), "level") {
		t.Errorf("control-command = %+v", control)
	}

	if err := sink.StopStreaming(); err != nil {
		t.Fatal(err)
	}
	waitEvent(t, source, api.EndpointMessageEventPeerDisconnected)
	if err := sink.StopStreaming(); err != nil {
		t.Fatal(err)
	}
	expectNoEvent(t, source, api.EndpointMessageEventPeerDisconnected, 300*time.Millisecond)

	if err := sink.DiscoverDevices(); err != nil {
		t.Fatal(err)
	}
	again := waitEvent(t, sink, api.EndpointMessageEventDevicesList)
	if len(again.Devices) != 1 || again.Devices[0].ID != source.ID() {
		t.Errorf("source not free again: %+v", again.Devices)
	}
}

func TestDisconnectNotifiesPeer(t *testing.T) {
	b := startBroker(t, nil)
	source := b.dial(t)
	sink := b.dial(t)

	register(t, source, domain.KindSource, "Phone")
	register(t, sink, domain.KindSink, "PC")
	_ = sink.RequestConnection(source.ID())
	req := waitEvent(t, source, api.EndpointMessageEventConnectionRequest)
	_ = source.Accept(req.FromID)
	waitEvent(t, sink, api.EndpointMessageEventConnectionEstablished)

	_ = source.Close()

	waitEvent(t, sink, api.EndpointMessageEventPeerDisconnected)
	removed := waitEvent(t, sink, api.EndpointMessageEventDeviceRemoved)
	if removed.Device == nil || removed.Device.ID != source.ID() {
		t.Errorf("device-removed = %+v", removed)
	}
}

func TestRejectAndUnavailableTarget(t *testing.T) {
	b := startBroker(t, func(cfg *config.AppConfig) {
		cfg.Signalling.NotifyUnavailableTarget = true
	})
	source := b.dial(t)
	sink := b.dial(t)
	register(t, source, domain.KindSource, "Phone")
	register(t, sink, domain.KindSink, "PC")

	_ = sink.RequestConnection(source.ID())
	req := waitEvent(t, source, api.EndpointMessageEventConnectionRequest)
	_ = source.Reject(req.FromID)
	waitEvent(t, sink, api.EndpointMessageEventConnectionRejected)

	_ = sink.RequestConnection("missing")
	unavailable := waitEvent(t, sink, api.EndpointMessageEventConnectionUnavailable)
	if unavailable.TargetID != "missing" || unavailable.Reason == "" {
		t.Errorf("connection-unavailable = %+v", unavailable)
	}
}

func TestMalformedAndEarlyMessagesAreDropped(t *testing.T) {
	b := startBroker(t, nil)
	source := b.dial(t)
	register(t, source, domain.KindSource, "Phone")

	conn, _, err := websocket.DefaultDialer.Dial(endpoint.WebSocketURL(b.url), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var initPeer api.EndpointMessage
	if err := conn.ReadJSON(&initPeer); err != nil || initPeer.Event != api.EndpointMessageEventInitPeer {
		t.Fatalf("init_peer = %+v, %v", initPeer, err)
	}

	_ = conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
	_ = conn.WriteJSON(api.EndpointMessage{Event: api.EndpointMessageEventRequestConnection, TargetID: source.ID()})
	_ = conn.WriteJSON(api.EndpointMessage{
		Event:    api.EndpointMessageEventRegister,
		Register: &api.RegisterMessage{Kind: "sink", Name: "raw"},
	})

	var msg api.EndpointMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("connection closed after malformed message: %v", err)
	}
	if msg.Event != api.EndpointMessageEventDevicesList {
		t.Fatalf("first event = %s, want devices-list", msg.Event)
	}

	// The pre-registration request must not have reached the source.
	req, err := b.server.PairingService().Endpoint(source.ID())
	if err != nil || req.Status != domain.StatusFree {
		t.Errorf("source = %+v, %v", req, err)
	}
	if _, ok := b.server.PairingService().Pending(source.ID()); ok {
		t.Error("request from unregistered endpoint was recorded")
	}
}

func TestAdminApi(t *testing.T) {
	b := startBroker(t, nil)
	source := b.dial(t)
	sink := b.dial(t)
	register(t, source, domain.KindSource, "Phone")
	register(t, sink, domain.KindSink, "PC")
	_ = sink.RequestConnection(source.ID())
	req := waitEvent(t, source, api.EndpointMessageEventConnectionRequest)
	_ = source.Accept(req.FromID)
	waitEvent(t, sink, api.EndpointMessageEventConnectionEstablished)

	auth := "Basic " + base64.StdEncoding.EncodeToString([]byte("admin:secret"))

	unauthorized := httptest.NewRequest("GET", "/api/admin/endpoints", nil)
	resp, err := b.app.Test(unauthorized)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Errorf("status without auth = %d", resp.StatusCode)
	}

	listReq := httptest.NewRequest("GET", "/api/admin/endpoints", nil)
	listReq.Header.Set("Authorization", auth)
	resp, err = b.app.Test(listReq)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	var statuses []api.EndpointStatus
	if err := json.Unmarshal(body, &statuses); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	if len(statuses) != 2 || statuses[0].Status != "paired" {
		t.Errorf("endpoints = %+v", statuses)
	}

	stopReq := httptest.NewRequest("POST", "/api/admin/endpoints/"+source.ID()+"/stop", nil)
	stopReq.Header.Set("Authorization", auth)
	resp, err = b.app.Test(stopReq)
	if err != nil || resp.StatusCode != fiber.StatusOK {
		t.Fatalf("stop = %v, %v", resp, err)
	}
	waitEvent(t, source, api.EndpointMessageEventPeerDisconnected)
	waitEvent(t, sink, api.EndpointMessageEventPeerDisconnected)

	missingReq := httptest.NewRequest("POST", "/api/admin/endpoints/nobody/stop", nil)
	missingReq.Header.Set("Authorization", auth)
	resp, err = b.app.Test(missingReq)
	if err != nil || resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("stop unknown = %v, %v", resp, err)
	}

	health, err := b.app.Test(httptest.NewRequest("GET", "/healthz", nil))
	if err != nil || health.StatusCode != fiber.StatusOK {
		t.Errorf("healthz = %v, %v", health, err)
	}
}

func TestAdminSocketRequiresCredential(t *testing.T) {
	b := startBroker(t, nil)
	url := strings.Replace(b.url, "http", "ws", 1) + "/ws/admin"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg api.AdminMessage
	if err := conn.ReadJSON(&msg); err != nil || msg.Event != api.AdminMessageEventAuthRequest {
		t.Fatalf("first admin message = %+v, %v", msg, err)
	}
	credential := "secret"
	_ = conn.WriteJSON(api.AdminMessage{Event: api.AdminMessageEventAuth, Credential: &credential})

	msg = api.AdminMessage{}
	if err := conn.ReadJSON(&msg); err != nil || msg.Event != api.AdminMessageEventStatus {
		t.Fatalf("status message = %+v, %v", msg, err)
	}
}
