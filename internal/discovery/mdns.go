package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/irdkwmnsb/remotecam/internal/domain"
)

const (
	// DefaultMDNSService is the mDNS service name without domain suffix.
	DefaultMDNSService = "_remotecam._tcp"
	// DefaultMDNSDomain is the mDNS domain.
	DefaultMDNSDomain = "local."
	// DefaultBrowseTimeout bounds one mDNS browse.
	DefaultBrowseTimeout = 3 * time.Second
)

type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error)
type browseFunc func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error

// MDNSConfig controls the mDNS advertiser and browser. It complements the
// UDP sweep on networks where multicast works but /24 probing does not.
type MDNSConfig struct {
	Service       string
	Domain        string
	BrowseTimeout time.Duration

	Kind           domain.Kind
	Name           string
	SignallingPort int
	AppVersion     string
	Capabilities   []string

	registerFn registerFunc
	browseFn   browseFunc
}

func (c MDNSConfig) withDefaults() MDNSConfig {
	out := c
	if out.Service == "" {
		out.Service = DefaultMDNSService
	}
	if out.Domain == "" {
		out.Domain = DefaultMDNSDomain
	}
	if out.BrowseTimeout <= 0 {
		out.BrowseTimeout = DefaultBrowseTimeout
	}
	if out.AppVersion == "" {
		out.AppVersion = DefaultAppVersion
	}
	if out.SignallingPort <= 0 {
		out.SignallingPort = DefaultSignallingPort
	}
	if out.registerFn == nil {
		out.registerFn = zeroconf.Register
	}
	if out.browseFn == nil {
		out.browseFn = func(ctx context.Context, service, domain string, entries chan<- *zeroconf.ServiceEntry) error {
			resolver, err := zeroconf.NewResolver(nil)
			if err != nil {
				return err
			}
			return resolver.Browse(ctx, service, domain, entries)
		}
	}
	return out
}

// Advertiser publishes this endpoint over mDNS.
type Advertiser struct {
	server *zeroconf.Server
}

func StartAdvertiser(config MDNSConfig) (*Advertiser, error) {
	cfg := config.withDefaults()
	if !cfg.Kind.Valid() {
		return nil, domain.ErrInvalidKind
	}
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, errors.New("device name is required")
	}

	txt := []string{
		"kind=" + string(cfg.Kind),
		"version=" + cfg.AppVersion,
		"caps=" + strings.Join(cfg.Capabilities, ","),
	}

	server, err := cfg.registerFn(cfg.Name, cfg.Service, cfg.Domain, cfg.SignallingPort, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("register mDNS service: %w", err)
	}
	return &Advertiser{server: server}, nil
}

func (a *Advertiser) Stop() {
	if a == nil || a.server == nil {
		return
	}
	a.server.Shutdown()
}

// Browse collects advertised endpoints of the kind opposite to config.Kind
// until BrowseTimeout or ctx ends. Results are deduplicated by address.
func Browse(ctx context.Context, config MDNSConfig) ([]DiscoveredDevice, error) {
	cfg := config.withDefaults()
	if !cfg.Kind.Valid() {
		return nil, domain.ErrInvalidKind
	}

	browseCtx, cancel := context.WithTimeout(ctx, cfg.BrowseTimeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry, 32)
	errCh := make(chan error, 1)
	go func() {
		errCh <- cfg.browseFn(browseCtx, cfg.Service, cfg.Domain, entries)
	}()

	devices := make([]DiscoveredDevice, 0)
	seen := make(map[netip.Addr]struct{})

	for {
		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
				return nil, fmt.Errorf("browse mDNS: %w", err)
			}
			errCh = nil
		case entry, ok := <-entries:
			if !ok {
				return devices, nil
			}
			device, ok := parseEntry(entry, cfg.Kind.Opposite())
			if !ok {
				continue
			}
			if _, dup := seen[device.Addr]; dup {
				continue
			}
			seen[device.Addr] = struct{}{}
			devices = append(devices, device)
		case <-browseCtx.Done():
			return devices, nil
		}
	}
}

func parseEntry(entry *zeroconf.ServiceEntry, want domain.Kind) (DiscoveredDevice, bool) {
	if entry == nil {
		return DiscoveredDevice{}, false
	}
	txt := txtToMap(entry.Text)
	if domain.Kind(txt["kind"]) != want {
		return DiscoveredDevice{}, false
	}
	if !compatibleVersion(txt["version"]) {
		return DiscoveredDevice{}, false
	}

	var addr netip.Addr
	for _, ip := range entry.AddrIPv4 {
		if a, ok := netip.AddrFromSlice(ip); ok {
			addr = a.Unmap()
			break
		}
	}
	if !addr.IsValid() {
		return DiscoveredDevice{}, false
	}

	name := strings.TrimSpace(entry.Instance)
	if name == "" {
		name = addr.String()
	}
	return DiscoveredDevice{
		Name:         name,
		Addr:         addr,
		Port:         entry.Port,
		Kind:         want,
		Capabilities: DecodeCapabilities(txt["caps"]),
	}, true
}

func txtToMap(records []string) map[string]string {
	out := make(map[string]string, len(records))
	for _, r := range records {
		key, value, _ := strings.Cut(r, "=")
		out[strings.ToLower(key)] = value
	}
	return out
}
