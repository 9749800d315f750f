package config

import (
	"net/netip"
	"time"

	"github.com/irdkwmnsb/remotecam/internal/api"
)

type AppConfig struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Security   SecurityConfig   `json:"security" yaml:"security"`
	Signalling SignallingConfig `json:"signalling" yaml:"signalling"`
	WebRTC     WebRTCConfig     `json:"webrtc" yaml:"webrtc"`
	Discovery  DiscoveryConfig  `json:"discovery" yaml:"discovery"`
}

type ServerConfig struct {
	Port         int    `json:"port" yaml:"port"`
	PingInterval int    `json:"pingInterval" yaml:"pingInterval"`
	LogLevel     string `json:"logLevel" yaml:"logLevel"`
}

type SecurityConfig struct {
	AdminCredential   *string        `json:"adminCredential" yaml:"adminCredential"`
	TLSCrtFile        *string        `json:"tlsCrtFile" yaml:"tlsCrtFile"`
	TLSKeyFile        *string        `json:"tlsKeyFile" yaml:"tlsKeyFile"`
	AdminsRawNetworks []netip.Prefix `json:"adminsNetworks" yaml:"adminsNetworks"`
}

type SignallingConfig struct {
	OutboxSize              int  `json:"outboxSize" yaml:"outboxSize"`
	NotifyUnavailableTarget bool `json:"notifyUnavailableTarget" yaml:"notifyUnavailableTarget"`
	StatusPushInterval      int  `json:"statusPushInterval" yaml:"statusPushInterval"`
}

type WebRTCConfig struct {
	PeerConnectionConfig api.PeerConnectionConfig `json:"peerConnectionConfig" yaml:"peerConnectionConfig"`
}

// DiscoveryConfig holds the LAN discovery parameters shared by the
// responder and the initiator. Durations are in milliseconds.
type DiscoveryConfig struct {
	Port           int      `json:"port" yaml:"port"`
	Window         int      `json:"window" yaml:"window"`
	ReadTimeout    int      `json:"readTimeout" yaml:"readTimeout"`
	FallbackPrefix string   `json:"fallbackPrefix" yaml:"fallbackPrefix"`
	SignallingPort int      `json:"signallingPort" yaml:"signallingPort"`
	Capabilities   []string `json:"capabilities" yaml:"capabilities"`
	AppVersion     string   `json:"appVersion" yaml:"appVersion"`
	DeviceName     string   `json:"deviceName" yaml:"deviceName"`
	MDNS           bool     `json:"mdns" yaml:"mdns"`
}

func (c ServerConfig) PingEvery() time.Duration {
	return time.Duration(c.PingInterval) * time.Millisecond
}

func (c SignallingConfig) StatusPushEvery() time.Duration {
	return time.Duration(c.StatusPushInterval) * time.Millisecond
}

func (c DiscoveryConfig) WindowDuration() time.Duration {
	return time.Duration(c.Window) * time.Millisecond
}

func (c DiscoveryConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Millisecond
}

func DefaultAppConfig() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Port:         5000,
			PingInterval: 30000,
			LogLevel:     "info",
		},
		Security: SecurityConfig{
			AdminCredential: nil,
			AdminsRawNetworks: []netip.Prefix{
				netip.MustParsePrefix("0.0.0.0/0"),
			},
			TLSCrtFile: nil,
			TLSKeyFile: nil,
		},
		Signalling: SignallingConfig{
			OutboxSize:              64,
			NotifyUnavailableTarget: false,
			StatusPushInterval:      5000,
		},
		WebRTC: WebRTCConfig{
			PeerConnectionConfig: api.DefaultPeerConnectionConfig(),
		},
		Discovery: DiscoveryConfig{
			Port:           8888,
			Window:         10000,
			ReadTimeout:    2000,
			FallbackPrefix: "192.168.1",
			SignallingPort: 5000,
			Capabilities:   []string{"video", "audio", "camera_control"},
			AppVersion:     "1.0.0",
			DeviceName:     "",
			MDNS:           false,
		},
	}
}
