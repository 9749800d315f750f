package config

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/irdkwmnsb/remotecam/internal/api"
)

type RawServerConfig struct {
	Port         *int    `yaml:"port" json:"port"`
	PingInterval *int    `yaml:"pingInterval" json:"pingInterval"`
	LogLevel     *string `yaml:"logLevel" json:"logLevel"`
}

func (r RawServerConfig) ToDomain() ServerConfig {
	var cfg ServerConfig
	if r.Port != nil {
		cfg.Port = *r.Port
	}
	if r.PingInterval != nil {
		cfg.PingInterval = *r.PingInterval
	}
	if r.LogLevel != nil {
		cfg.LogLevel = strings.ToLower(*r.LogLevel)
	}
	return cfg
}

type RawSecurityConfig struct {
	AdminCredential   *string   `yaml:"adminCredential" json:"adminCredential"`
	TLSCrtFile        *string   `yaml:"tlsCrtFile" json:"tlsCrtFile"`
	TLSKeyFile        *string   `yaml:"tlsKeyFile" json:"tlsKeyFile"`
	AdminsRawNetworks *[]string `yaml:"adminsNetworks" json:"adminsNetworks"`
}

func (r RawSecurityConfig) ToDomain() (SecurityConfig, error) {
	var cfg SecurityConfig
	cfg.AdminCredential = r.AdminCredential
	cfg.TLSCrtFile = r.TLSCrtFile
	cfg.TLSKeyFile = r.TLSKeyFile

	if r.AdminsRawNetworks != nil {
		nets := make([]netip.Prefix, 0, len(*r.AdminsRawNetworks))
		for _, s := range *r.AdminsRawNetworks {
			p, err := netip.ParsePrefix(s)
			if err != nil {
				return SecurityConfig{}, fmt.Errorf("adminsNetworks: %w", err)
			}
			nets = append(nets, p)
		}
		cfg.AdminsRawNetworks = nets
	}

	return cfg, nil
}

type RawSignallingConfig struct {
	OutboxSize              *int  `yaml:"outboxSize" json:"outboxSize"`
	NotifyUnavailableTarget *bool `yaml:"notifyUnavailableTarget" json:"notifyUnavailableTarget"`
	StatusPushInterval      *int  `yaml:"statusPushInterval" json:"statusPushInterval"`
}

func (r RawSignallingConfig) ToDomain() (SignallingConfig, error) {
	var cfg SignallingConfig
	if r.OutboxSize != nil {
		if *r.OutboxSize <= 0 {
			return SignallingConfig{}, fmt.Errorf("outboxSize must be positive, got %d", *r.OutboxSize)
		}
		cfg.OutboxSize = *r.OutboxSize
	}
	if r.NotifyUnavailableTarget != nil {
		cfg.NotifyUnavailableTarget = *r.NotifyUnavailableTarget
	}
	if r.StatusPushInterval != nil {
		cfg.StatusPushInterval = *r.StatusPushInterval
	}
	return cfg, nil
}

type RawWebRTCConfig struct {
	PeerConnectionConfig *api.PeerConnectionConfig `yaml:"peerConnectionConfig" json:"peerConnectionConfig"`
}

func (r RawWebRTCConfig) ToDomain() WebRTCConfig {
	var cfg WebRTCConfig
	if r.PeerConnectionConfig != nil {
		cfg.PeerConnectionConfig = *r.PeerConnectionConfig
	}
	return cfg
}

type RawDiscoveryConfig struct {
	Port           *int      `yaml:"port" json:"port"`
	Window         *int      `yaml:"window" json:"window"`
	ReadTimeout    *int      `yaml:"readTimeout" json:"readTimeout"`
	FallbackPrefix *string   `yaml:"fallbackPrefix" json:"fallbackPrefix"`
	SignallingPort *int      `yaml:"signallingPort" json:"signallingPort"`
	Capabilities   *[]string `yaml:"capabilities" json:"capabilities"`
	AppVersion     *string   `yaml:"appVersion" json:"appVersion"`
	DeviceName     *string   `yaml:"deviceName" json:"deviceName"`
	MDNS           *bool     `yaml:"mdns" json:"mdns"`
}

func (r RawDiscoveryConfig) ToDomain() (DiscoveryConfig, error) {
	var cfg DiscoveryConfig
	if r.Port != nil {
		if *r.Port <= 0 || *r.Port > 65535 {
			return DiscoveryConfig{}, fmt.Errorf("discovery port out of range: %d", *r.Port)
		}
		cfg.Port = *r.Port
	}
	if r.Window != nil {
		cfg.Window = *r.Window
	}
	if r.ReadTimeout != nil {
		cfg.ReadTimeout = *r.ReadTimeout
	}
	if r.FallbackPrefix != nil {
		prefix := strings.TrimSuffix(*r.FallbackPrefix, ".")
		if _, err := netip.ParseAddr(prefix + ".1"); err != nil {
			return DiscoveryConfig{}, fmt.Errorf("fallbackPrefix %q: %w", *r.FallbackPrefix, err)
		}
		cfg.FallbackPrefix = prefix
	}
	if r.SignallingPort != nil {
		cfg.SignallingPort = *r.SignallingPort
	}
	if r.Capabilities != nil {
		cfg.Capabilities = *r.Capabilities
	}
	if r.AppVersion != nil {
		cfg.AppVersion = *r.AppVersion
	}
	if r.DeviceName != nil {
		cfg.DeviceName = *r.DeviceName
	}
	if r.MDNS != nil {
		cfg.MDNS = *r.MDNS
	}
	return cfg, nil
}
