package api

import (
	"github.com/irdkwmnsb/remotecam/internal/domain"
)

func ToApiDevice(e domain.Endpoint) Device {
	return Device{
		ID:   e.ID,
		Name: e.Name,
		Kind: string(e.Kind),
	}
}

// ToApiDevices never returns nil.
func ToApiDevices(endpoints []domain.Endpoint) []Device {
	devices := make([]Device, len(endpoints))
	for i, e := range endpoints {
		devices[i] = ToApiDevice(e)
	}
	return devices
}

func ToApiEndpointStatus(e domain.Endpoint) EndpointStatus {
	return EndpointStatus{
		ID:           e.ID,
		Name:         e.Name,
		Kind:         string(e.Kind),
		Status:       string(e.Status),
		PeerID:       e.PeerID,
		RegisteredAt: e.RegisteredAt.UnixMilli(),
	}
}

func ToApiEndpointStatuses(endpoints []domain.Endpoint) []EndpointStatus {
	statuses := make([]EndpointStatus, len(endpoints))
	for i, e := range endpoints {
		statuses[i] = ToApiEndpointStatus(e)
	}
	return statuses
}

// CountPairs returns the number of paired couples among endpoints.
func CountPairs(endpoints []domain.Endpoint) int {
	paired := 0
	for _, e := range endpoints {
		if e.Status == domain.StatusPaired {
			paired++
		}
	}
	return paired / 2
}
