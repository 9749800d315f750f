package discovery

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/irdkwmnsb/remotecam/internal/domain"
)

const (
	// DefaultPort is the well-known UDP port responders listen on.
	DefaultPort = 8888
	// DefaultSignallingPort is advertised when a responder does not say.
	DefaultSignallingPort = 5000
	// MaxMessageSize bounds a discovery datagram.
	MaxMessageSize = 1024
	// SchemaMajor is the app_version major a responder accepts.
	SchemaMajor = "1"

	MessageTypeRequest  = "discovery_request"
	MessageTypeResponse = "discovery_response"
)

var ErrMalformed = errors.New("discovery: malformed message")

// Request is broadcast by an initiator.
type Request struct {
	Type         string `json:"type"`
	DeviceType   string `json:"device_type"`
	DeviceName   string `json:"device_name"`
	AppVersion   string `json:"app_version"`
	Timestamp    int64  `json:"timestamp"`
	Capabilities string `json:"capabilities"`
}

// Response is sent by a responder straight back to the requester.
type Response struct {
	Type         string `json:"type"`
	DeviceType   string `json:"device_type"`
	DeviceName   string `json:"device_name"`
	Port         int    `json:"port"`
	Capabilities string `json:"capabilities"`
}

// EncodeCapabilities renders the capability set as a JSON array inside a
// string, the form carried by the capabilities field.
func EncodeCapabilities(caps []string) string {
	if caps == nil {
		caps = []string{}
	}
	raw, _ := json.Marshal(caps)
	return string(raw)
}

// DecodeCapabilities accepts a JSON array string or a comma separated list.
func DecodeCapabilities(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var caps []string
	if strings.HasPrefix(s, "[") {
		if err := json.Unmarshal([]byte(s), &caps); err == nil {
			return caps
		}
		return nil
	}
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			caps = append(caps, c)
		}
	}
	return caps
}

// ParseRequest decodes and validates a discovery request.
func ParseRequest(data []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if req.Type != MessageTypeRequest {
		return Request{}, fmt.Errorf("%w: unexpected type %q", ErrMalformed, req.Type)
	}
	if !domain.Kind(req.DeviceType).Valid() {
		return Request{}, fmt.Errorf("%w: unknown device_type %q", ErrMalformed, req.DeviceType)
	}
	if !compatibleVersion(req.AppVersion) {
		return Request{}, fmt.Errorf("%w: unsupported app_version %q", ErrMalformed, req.AppVersion)
	}
	return req, nil
}

// ParseResponse decodes a discovery response. A missing port means the
// default signalling port.
func ParseResponse(data []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if resp.Type != MessageTypeResponse {
		return Response{}, fmt.Errorf("%w: unexpected type %q", ErrMalformed, resp.Type)
	}
	if resp.Port <= 0 || resp.Port > 65535 {
		resp.Port = DefaultSignallingPort
	}
	return resp, nil
}

func compatibleVersion(v string) bool {
	major, _, _ := strings.Cut(strings.TrimPrefix(strings.TrimSpace(v), "v"), ".")
	return major == SchemaMajor
}
