package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/irdkwmnsb/remotecam/internal/domain"
	"github.com/irdkwmnsb/remotecam/internal/metrics"
)

const (
	DefaultWindow         = 10 * time.Second
	DefaultReadTimeout    = 2 * time.Second
	DefaultFallbackPrefix = "192.168.1"
	DefaultAppVersion     = "1.0.0"
)

var (
	ErrNoLocalAddress  = errors.New("discovery: could not determine local address")
	ErrRoundSuperseded = errors.New("discovery: round superseded by a newer one")
)

type localAddrFunc func() (netip.Addr, error)

// InitiatorConfig configures discovery rounds.
type InitiatorConfig struct {
	// Kind is the initiator's own kind; only responders of the opposite kind
	// are collected.
	Kind         domain.Kind
	Name         string
	AppVersion   string
	Capabilities []string

	Port           int
	Window         time.Duration
	ReadTimeout    time.Duration
	FallbackPrefix string

	// Targets replaces the subnet sweep with explicit hosts, "ip" or
	// "ip:port".
	Targets []string
	// ListenAddr is the local bind address, ":0" by default.
	ListenAddr string

	localAddrFn localAddrFunc
}

func (c InitiatorConfig) withDefaults() InitiatorConfig {
	out := c
	if out.Kind == "" {
		out.Kind = domain.KindSink
	}
	if out.AppVersion == "" {
		out.AppVersion = DefaultAppVersion
	}
	if out.Port <= 0 {
		out.Port = DefaultPort
	}
	if out.Window <= 0 {
		out.Window = DefaultWindow
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = DefaultReadTimeout
	}
	if out.FallbackPrefix == "" {
		out.FallbackPrefix = DefaultFallbackPrefix
	}
	if out.ListenAddr == "" {
		out.ListenAddr = ":0"
	}
	if out.localAddrFn == nil {
		out.localAddrFn = localIPv4
	}
	return out
}

// DiscoveredDevice is one responder found during a round.
type DiscoveredDevice struct {
	Name         string
	Addr         netip.Addr
	Port         int
	Kind         domain.Kind
	Capabilities []string
}

// SignallingAddr is the host:port of the responder's signalling endpoint.
func (d DiscoveredDevice) SignallingAddr() string {
	return netip.AddrPortFrom(d.Addr, uint16(d.Port)).String()
}

// Initiator runs discovery rounds. At most one round is in flight; starting
// a new one cancels the previous.
type Initiator struct {
	config InitiatorConfig

	mu     sync.Mutex
	cancel context.CancelCauseFunc
	closed bool
	wg     sync.WaitGroup
}

func NewInitiator(config InitiatorConfig) (*Initiator, error) {
	cfg := config.withDefaults()
	if !cfg.Kind.Valid() {
		return nil, domain.ErrInvalidKind
	}
	return &Initiator{config: cfg}, nil
}

// Discover runs one round and returns responders in arrival order. An empty
// result with a nil error means nothing answered within the window; callers
// should fall back to manual address entry. A superseded or closed round
// returns what it collected so far together with ErrRoundSuperseded or
// ErrClosed.
func (i *Initiator) Discover(ctx context.Context) ([]DiscoveredDevice, error) {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return nil, ErrClosed
	}
	if i.cancel != nil {
		i.cancel(ErrRoundSuperseded)
	}
	base, cancel := context.WithCancelCause(ctx)
	i.cancel = cancel
	i.wg.Add(1)
	i.mu.Unlock()

	defer i.wg.Done()
	defer cancel(nil)

	devices, err := i.runRound(base)

	outcome := "found"
	switch {
	case err != nil:
		outcome = "error"
	case context.Cause(base) != nil:
		outcome = "cancelled"
	case len(devices) == 0:
		outcome = "empty"
	}
	metrics.DiscoveryRoundsTotal.WithLabelValues(outcome).Inc()

	if err != nil {
		return nil, err
	}
	if cause := context.Cause(base); cause != nil {
		return devices, cause
	}
	return devices, nil
}

// Close cancels any in-flight round and waits for its socket to be released.
func (i *Initiator) Close() error {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		return ErrClosed
	}
	i.closed = true
	if i.cancel != nil {
		i.cancel(ErrClosed)
	}
	i.mu.Unlock()

	i.wg.Wait()
	return nil
}

func (i *Initiator) runRound(ctx context.Context) ([]DiscoveredDevice, error) {
	targets, err := i.targets()
	if err != nil {
		return nil, err
	}

	request, err := json.Marshal(Request{
		Type:         MessageTypeRequest,
		DeviceType:   string(i.config.Kind),
		DeviceName:   i.config.Name,
		AppVersion:   i.config.AppVersion,
		Timestamp:    time.Now().UnixMilli(),
		Capabilities: EncodeCapabilities(i.config.Capabilities),
	})
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenPacket("udp4", i.config.ListenAddr)
	if err != nil {
		return nil, fmt.Errorf("open discovery socket: %w", err)
	}
	defer conn.Close()

	roundCtx, stop := context.WithTimeout(ctx, i.config.Window)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-roundCtx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()
	go func() {
		defer wg.Done()
		i.sendAll(roundCtx, conn, request, targets)
	}()

	devices := i.collect(roundCtx, conn)

	stop()
	wg.Wait()
	return devices, nil
}

func (i *Initiator) sendAll(ctx context.Context, conn net.PacketConn, request []byte, targets []*net.UDPAddr) {
	failed := 0
	for _, addr := range targets {
		if ctx.Err() != nil {
			return
		}
		if _, err := conn.WriteTo(request, addr); err != nil {
			failed++
		}
	}
	slog.Debug("discovery requests sent", "targets", len(targets), "failed", failed)
}

func (i *Initiator) collect(ctx context.Context, conn net.PacketConn) []DiscoveredDevice {
	devices := make([]DiscoveredDevice, 0)
	seen := make(map[netip.Addr]struct{})
	buf := make([]byte, MaxMessageSize)
	deadline, _ := ctx.Deadline()

	for ctx.Err() == nil {
		readDeadline := time.Now().Add(i.config.ReadTimeout)
		if readDeadline.After(deadline) {
			readDeadline = deadline
		}
		_ = conn.SetReadDeadline(readDeadline)
		// The watcher may have cut the deadline to now just before this
		// overwrote it.
		if ctx.Err() != nil {
			break
		}

		n, from, err := conn.ReadFrom(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				break
			}
			slog.Debug("discovery read error", "error", err)
			continue
		}

		udpAddr, ok := from.(*net.UDPAddr)
		if !ok {
			continue
		}
		addr := udpAddr.AddrPort().Addr().Unmap()

		resp, err := ParseResponse(buf[:n])
		if err != nil {
			metrics.MalformedMessagesTotal.WithLabelValues("discovery").Inc()
			slog.Debug("skipping discovery response", "from", addr, "error", err)
			continue
		}
		if domain.Kind(resp.DeviceType) != i.config.Kind.Opposite() {
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}

		name := resp.DeviceName
		if name == "" {
			name = addr.String()
		}
		devices = append(devices, DiscoveredDevice{
			Name:         name,
			Addr:         addr,
			Port:         resp.Port,
			Kind:         domain.Kind(resp.DeviceType),
			Capabilities: DecodeCapabilities(resp.Capabilities),
		})
		slog.Debug("discovered device", "name", name, "addr", addr)
	}
	return devices
}

// targets lists the datagram destinations of a round: either the explicit
// Targets, or every host of the local /24 plus its broadcast address and
// the limited broadcast address.
func (i *Initiator) targets() ([]*net.UDPAddr, error) {
	if len(i.config.Targets) > 0 {
		return explicitTargets(i.config.Targets, i.config.Port)
	}

	prefix, err := i.subnetPrefix()
	if err != nil {
		return nil, err
	}

	out := make([]*net.UDPAddr, 0, 256)
	for host := 1; host <= 255; host++ {
		ip := net.ParseIP(prefix + "." + strconv.Itoa(host))
		if ip == nil {
			return nil, fmt.Errorf("invalid subnet prefix %q", prefix)
		}
		out = append(out, &net.UDPAddr{IP: ip, Port: i.config.Port})
	}
	out = append(out, &net.UDPAddr{IP: net.IPv4bcast, Port: i.config.Port})
	return out, nil
}

func (i *Initiator) subnetPrefix() (string, error) {
	local, err := i.config.localAddrFn()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoLocalAddress, err)
	}
	if !local.Is4() {
		slog.Debug("no usable IPv4 address, using fallback prefix", "prefix", i.config.FallbackPrefix)
		return i.config.FallbackPrefix, nil
	}
	b := local.As4()
	return fmt.Sprintf("%d.%d.%d", b[0], b[1], b[2]), nil
}

func explicitTargets(hosts []string, defaultPort int) ([]*net.UDPAddr, error) {
	out := make([]*net.UDPAddr, 0, len(hosts))
	for _, h := range hosts {
		h = strings.TrimSpace(h)
		if ap, err := netip.ParseAddrPort(h); err == nil {
			out = append(out, net.UDPAddrFromAddrPort(ap))
			continue
		}
		addr, err := netip.ParseAddr(h)
		if err != nil {
			return nil, fmt.Errorf("invalid discovery target %q: %w", h, err)
		}
		out = append(out, net.UDPAddrFromAddrPort(netip.AddrPortFrom(addr, uint16(defaultPort))))
	}
	return out, nil
}

// localIPv4 returns the first IPv4 address of an up, non-loopback
// interface. A zero Addr means none was found.
func localIPv4() (netip.Addr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return netip.Addr{}, err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			if addr, ok := netip.AddrFromSlice(ipNet.IP); ok && addr.Unmap().Is4() {
				return addr.Unmap(), nil
			}
		}
	}
	return netip.Addr{}, nil
}
