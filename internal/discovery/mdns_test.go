package discovery

import (
	"context"
	"errors"
	"net"
	"reflect"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/irdkwmnsb/remotecam/internal/domain"
)

func testServiceEntry(instance, ip string, port int, text ...string) *zeroconf.ServiceEntry {
	return &zeroconf.ServiceEntry{
		ServiceRecord: zeroconf.ServiceRecord{Instance: instance, Service: DefaultMDNSService, Domain: DefaultMDNSDomain},
		HostName:      instance + ".local",
		Port:          port,
		Text:          text,
		AddrIPv4:      []net.IP{net.ParseIP(ip)},
	}
}

func fakeBrowse(entries ...*zeroconf.ServiceEntry) browseFunc {
	return func(ctx context.Context, service, domain string, out chan<- *zeroconf.ServiceEntry) error {
		defer close(out)
		for _, e := range entries {
			select {
			case out <- e:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}
}

func TestStartAdvertiserPublishesTXT(t *testing.T) {
	var gotInstance, gotService string
	var gotPort int
	var gotText []string
	cfg := MDNSConfig{
		Kind:           domain.KindSource,
		Name:           "Phone",
		SignallingPort: 5001,
		Capabilities:   []string{"video", "audio"},
		registerFn: func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (*zeroconf.Server, error) {
			gotInstance, gotService, gotPort, gotText = instance, service, port, text
			return nil, nil
		},
	}

	adv, err := StartAdvertiser(cfg)
	if err != nil {
		t.Fatalf("StartAdvertiser() error = %v", err)
	}
	adv.Stop()

	if gotInstance != "Phone" || gotService != DefaultMDNSService || gotPort != 5001 {
		t.Errorf("registered %q %q %d", gotInstance, gotService, gotPort)
	}
	want := []string{"kind=source", "version=1.0.0", "caps=video,audio"}
	if !reflect.DeepEqual(gotText, want) {
		t.Errorf("text = %v, want %v", gotText, want)
	}
}

func TestStartAdvertiserErrors(t *testing.T) {
	failing := func(string, string, string, int, []string, []net.Interface) (*zeroconf.Server, error) {
		return nil, errors.New("multicast unavailable")
	}
	tests := []struct {
		name string
		cfg  MDNSConfig
	}{
		{"invalid kind", MDNSConfig{Kind: "camera", Name: "x", registerFn: failing}},
		{"empty name", MDNSConfig{Kind: domain.KindSource, Name: "  ", registerFn: failing}},
		{"register fails", MDNSConfig{Kind: domain.KindSource, Name: "x", registerFn: failing}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := StartAdvertiser(tt.cfg); err == nil {
				t.Error("StartAdvertiser() error = nil")
			}
		})
	}
}

func TestBrowseFiltersAndDeduplicates(t *testing.T) {
	cfg := MDNSConfig{
		Kind: domain.KindSink,
		browseFn: fakeBrowse(
			testServiceEntry("Phone", "192.168.1.20", 5000, "kind=source", "version=1.0.0", "caps=video,audio"),
			testServiceEntry("Phone again", "192.168.1.20", 5000, "kind=source", "version=1.0.0"),
			testServiceEntry("Other PC", "192.168.1.30", 5000, "kind=sink", "version=1.0.0"),
			testServiceEntry("Future", "192.168.1.40", 5000, "kind=source", "version=2.0.0"),
			testServiceEntry("Tablet", "192.168.1.50", 5002, "KIND=source", "version=1.1"),
			nil,
		),
	}

	devices, err := Browse(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Browse() error = %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("devices = %+v, want 2", devices)
	}
	if d := devices[0]; d.Name != "Phone" || d.Addr.String() != "192.168.1.20" || d.Kind != domain.KindSource {
		t.Errorf("devices[0] = %+v", d)
	}
	if !reflect.DeepEqual(devices[0].Capabilities, []string{"video", "audio"}) {
		t.Errorf("capabilities = %v", devices[0].Capabilities)
	}
	if d := devices[1]; d.Name != "Tablet" || d.Port != 5002 {
		t.Errorf("devices[1] = %+v", d)
	}
}

func TestBrowseTimesOutAndReportsErrors(t *testing.T) {
	blocking := MDNSConfig{
		Kind:          domain.KindSink,
		BrowseTimeout: 50 * time.Millisecond,
		browseFn: func(ctx context.Context, _, _ string, _ chan<- *zeroconf.ServiceEntry) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	devices, err := Browse(context.Background(), blocking)
	if err != nil || len(devices) != 0 {
		t.Errorf("Browse(timeout) = %+v, %v", devices, err)
	}

	broken := MDNSConfig{
		Kind: domain.KindSink,
		browseFn: func(context.Context, string, string, chan<- *zeroconf.ServiceEntry) error {
			return errors.New("no multicast interface")
		},
	}
	if _, err := Browse(context.Background(), broken); err == nil {
		t.Error("Browse(broken) error = nil")
	}
}
