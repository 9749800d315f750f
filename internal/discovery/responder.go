package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/irdkwmnsb/remotecam/internal/domain"
	"github.com/irdkwmnsb/remotecam/internal/metrics"
)

var (
	ErrClosed         = errors.New("discovery: closed")
	ErrAlreadyStarted = errors.New("discovery: already started")
)

// ResponderConfig configures a Responder.
type ResponderConfig struct {
	// Conn is an optional pre-bound PacketConn. If nil, ListenAddr is bound.
	Conn net.PacketConn
	// ListenAddr defaults to ":8888".
	ListenAddr string

	Kind           domain.Kind
	Name           string
	SignallingPort int
	Capabilities   []string
}

// Responder answers discovery requests from endpoints of the opposite kind.
// Every valid request gets exactly one reply; anything else is dropped.
type Responder struct {
	conn     net.PacketConn
	response []byte
	kind     domain.Kind
	closeCh  chan struct{}
	wg       sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

func NewResponder(config ResponderConfig) (*Responder, error) {
	if !config.Kind.Valid() {
		return nil, domain.ErrInvalidKind
	}
	port := config.SignallingPort
	if port <= 0 {
		port = DefaultSignallingPort
	}

	response, err := json.Marshal(Response{
		Type:         MessageTypeResponse,
		DeviceType:   string(config.Kind),
		DeviceName:   config.Name,
		Port:         port,
		Capabilities: EncodeCapabilities(config.Capabilities),
	})
	if err != nil {
		return nil, err
	}

	r := &Responder{
		conn:     config.Conn,
		response: response,
		kind:     config.Kind,
		closeCh:  make(chan struct{}),
	}

	if r.conn == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":" + strconv.Itoa(DefaultPort)
		}
		conn, err := net.ListenPacket("udp4", addr)
		if err != nil {
			return nil, fmt.Errorf("bind discovery port %s: %w", addr, err)
		}
		r.conn = conn
	}

	return r, nil
}

func (r *Responder) Start() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	r.mu.Unlock()

	slog.Info("discovery responder listening", "addr", r.conn.LocalAddr(), "kind", r.kind)

	r.wg.Add(1)
	go r.readLoop()
	return nil
}

// Stop closes the socket and waits for the read loop to exit.
func (r *Responder) Stop() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.closed = true
	r.mu.Unlock()

	close(r.closeCh)
	_ = r.conn.SetReadDeadline(time.Now())
	err := r.conn.Close()
	r.wg.Wait()
	return err
}

func (r *Responder) LocalAddr() net.Addr {
	return r.conn.LocalAddr()
}

func (r *Responder) readLoop() {
	defer r.wg.Done()

	buf := make([]byte, MaxMessageSize)
	for {
		select {
		case <-r.closeCh:
			return
		default:
		}

		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-r.closeCh:
				return
			default:
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			slog.Warn("discovery read error", "error", err)
			continue
		}

		r.handle(buf[:n], addr)
	}
}

func (r *Responder) handle(data []byte, addr net.Addr) {
	req, err := ParseRequest(data)
	if err != nil {
		metrics.MalformedMessagesTotal.WithLabelValues("discovery").Inc()
		slog.Debug("dropping discovery datagram", "from", addr, "error", err)
		return
	}
	if domain.Kind(req.DeviceType) != r.kind.Opposite() {
		slog.Debug("ignoring discovery request from same kind", "from", addr, "kind", req.DeviceType)
		return
	}

	if _, err := r.conn.WriteTo(r.response, addr); err != nil {
		slog.Debug("discovery reply failed", "to", addr, "error", err)
		return
	}
	metrics.DiscoveryRepliesTotal.Inc()
	slog.Debug("answered discovery request", "from", addr, "name", req.DeviceName)
}
