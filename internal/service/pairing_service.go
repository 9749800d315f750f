package service

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/irdkwmnsb/remotecam/internal/domain"
	"github.com/irdkwmnsb/remotecam/internal/metrics"
)

var ErrRequesterBusy = errors.New("requesting endpoint is not free")

// PairingService owns the connection registry and the pending pairing
// requests. Every method runs under one mutex, so a check such as "is the
// target free" and the write that follows it are a single step.
type PairingService struct {
	mu       sync.Mutex
	repo     domain.EndpointRepository
	notifier domain.EndpointNotifier
	pending  map[string]domain.PendingPairingRequest // keyed by target id

	notifyUnavailable bool
	now               func() time.Time
}

func NewPairingService(repo domain.EndpointRepository, notifier domain.EndpointNotifier) *PairingService {
	return &PairingService{
		repo:     repo,
		notifier: notifier,
		pending:  make(map[string]domain.PendingPairingRequest),
		now:      time.Now,
	}
}

// SetNotifyUnavailableTarget toggles the connection-unavailable event for
// requests that target an unknown, busy or same-kind endpoint. When off such
// requests are dropped silently.
func (s *PairingService) SetNotifyUnavailableTarget(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifyUnavailable = enabled
}

// Register inserts id as a free endpoint. Registering an id again overwrites
// the previous record after tearing down any pairing it held.
func (s *PairingService) Register(id string, kind domain.Kind, name string) (domain.Endpoint, error) {
	if !kind.Valid() {
		return domain.Endpoint{}, domain.ErrInvalidKind
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.repo.GetByID(id); err == nil {
		if s.unpairLocked(id) {
			metrics.PairingsTornDownTotal.WithLabelValues("reregister").Inc()
		}
		s.dropPendingLocked(id)
	}

	endpoint, err := s.repo.Save(domain.Endpoint{
		ID:           id,
		Kind:         kind,
		Name:         name,
		Status:       domain.StatusFree,
		RegisteredAt: s.now(),
	})
	if err != nil {
		return domain.Endpoint{}, fmt.Errorf("save endpoint: %w", err)
	}
	s.updateGaugesLocked()

	free, _ := s.repo.ListFree(kind.Opposite())
	_ = s.notifier.SendDevicesList(id, free)

	others, _ := s.repo.ListByKind(kind.Opposite())
	for _, other := range others {
		_ = s.notifier.SendDeviceAvailable(other.ID, endpoint)
	}

	slog.Info("endpoint registered", "endpointID", id, "kind", kind, "name", name)
	return endpoint, nil
}

// Disconnect removes id from the registry, releasing its peer and any
// pending requests it was part of. Unknown ids are a no-op.
func (s *PairingService) Disconnect(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	endpoint, err := s.repo.GetByID(id)
	if err != nil {
		return
	}

	if s.unpairLocked(id) {
		metrics.PairingsTornDownTotal.WithLabelValues("disconnect").Inc()
	}
	s.dropPendingLocked(id)
	_ = s.repo.Delete(id)
	s.updateGaugesLocked()

	others, _ := s.repo.ListByKind(endpoint.Kind.Opposite())
	for _, other := range others {
		_ = s.notifier.SendDeviceRemoved(other.ID, endpoint)
	}

	slog.Info("endpoint removed", "endpointID", id, "kind", endpoint.Kind)
}

// RequestConnection records a pending request from fromID to targetID and
// forwards it to the target. A later request to the same target replaces an
// unresolved earlier one.
func (s *PairingService) RequestConnection(fromID, targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, err := s.repo.GetByID(fromID)
	if err != nil {
		metrics.PairingRequestsTotal.WithLabelValues("dropped").Inc()
		return err
	}
	if !from.IsFree() {
		metrics.PairingRequestsTotal.WithLabelValues("dropped").Inc()
		return ErrRequesterBusy
	}

	target, err := s.repo.GetByID(targetID)
	if err != nil {
		return s.dropRequestLocked(fromID, targetID, "not_found", err)
	}
	if target.Kind != from.Kind.Opposite() {
		return s.dropRequestLocked(fromID, targetID, "kind_mismatch", domain.ErrKindMismatch)
	}
	if !target.IsFree() {
		return s.dropRequestLocked(fromID, targetID, "busy", domain.ErrTargetUnavailable)
	}

	if previous, ok := s.pending[targetID]; ok && previous.RequesterID != fromID {
		slog.Debug("pending request replaced", "targetID", targetID, "previous", previous.RequesterID, "requester", fromID)
	}
	s.pending[targetID] = domain.PendingPairingRequest{
		RequesterID:   fromID,
		RequesterName: from.Name,
		TargetID:      targetID,
		CreatedAt:     s.now(),
	}
	metrics.PairingRequestsTotal.WithLabelValues("forwarded").Inc()

	_ = s.notifier.SendConnectionRequest(targetID, fromID, from.Name)
	return nil
}

func (s *PairingService) dropRequestLocked(fromID, targetID, reason string, err error) error {
	metrics.PairingRequestsTotal.WithLabelValues("dropped").Inc()
	if s.notifyUnavailable {
		_ = s.notifier.SendConnectionUnavailable(fromID, targetID, reason)
	}
	return err
}

// Accept resolves the pending request on targetID from requesterID and pairs
// both endpoints.
func (s *PairingService) Accept(targetID, requesterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.pending[targetID]
	if !ok || req.RequesterID != requesterID {
		return domain.ErrNoPendingRequest
	}
	delete(s.pending, targetID)

	target, err := s.repo.GetByID(targetID)
	if err != nil {
		return err
	}
	requester, err := s.repo.GetByID(requesterID)
	if err != nil {
		return err
	}
	if !target.IsFree() || !requester.IsFree() {
		return domain.ErrTargetUnavailable
	}

	target.Status, target.PeerID = domain.StatusPaired, requesterID
	requester.Status, requester.PeerID = domain.StatusPaired, targetID
	if err := s.repo.SavePair(target, requester); err != nil {
		return fmt.Errorf("save pair: %w", err)
	}

	s.dropPendingLocked(targetID)
	s.dropPendingLocked(requesterID)
	s.updateGaugesLocked()
	metrics.PairingRequestsTotal.WithLabelValues("accepted").Inc()

	_ = s.notifier.SendConnectionEstablished(targetID, requesterID)
	_ = s.notifier.SendConnectionEstablished(requesterID, targetID)

	slog.Info("endpoints paired", "targetID", targetID, "requesterID", requesterID)
	return nil
}

// Reject clears the pending request and tells only the requester.
func (s *PairingService) Reject(targetID, requesterID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.pending[targetID]
	if !ok || req.RequesterID != requesterID {
		return domain.ErrNoPendingRequest
	}
	delete(s.pending, targetID)
	metrics.PairingRequestsTotal.WithLabelValues("rejected").Inc()

	_ = s.notifier.SendConnectionRejected(requesterID)
	return nil
}

// StopStreaming ends the pairing id is part of. Calling it on a free or
// unknown endpoint does nothing.
func (s *PairingService) StopStreaming(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unpairLocked(id) {
		metrics.PairingsTornDownTotal.WithLabelValues("stop").Inc()
		s.updateGaugesLocked()
	}
}

// ForceStop ends the pairing of id on behalf of an operator. Both sides are
// told peer-disconnected. It reports whether a pairing existed.
func (s *PairingService) ForceStop(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.repo.GetByID(id); err != nil {
		return false, err
	}
	if !s.unpairLocked(id) {
		return false, nil
	}
	metrics.PairingsTornDownTotal.WithLabelValues("admin").Inc()
	s.updateGaugesLocked()
	_ = s.notifier.SendPeerDisconnected(id)
	return true, nil
}

// DiscoverDevices answers a devices-list query from a registered endpoint
// with the free endpoints of the opposite kind.
func (s *PairingService) DiscoverDevices(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	endpoint, err := s.repo.GetByID(id)
	if err != nil {
		return err
	}
	free, err := s.repo.ListFree(endpoint.Kind.Opposite())
	if err != nil {
		return err
	}
	return s.notifier.SendDevicesList(id, free)
}

func (s *PairingService) ListFree(kind domain.Kind) ([]domain.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.ListFree(kind)
}

func (s *PairingService) Endpoint(id string) (domain.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.GetByID(id)
}

func (s *PairingService) Endpoints() ([]domain.Endpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.repo.GetAll()
}

// Pending returns the unresolved request targeting targetID, if any.
func (s *PairingService) Pending(targetID string) (domain.PendingPairingRequest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.pending[targetID]
	return req, ok
}

// unpairLocked resets id and its counterpart to free in one registry write,
// then notifies the counterpart. It reports whether anything changed.
func (s *PairingService) unpairLocked(id string) bool {
	self, selfErr := s.repo.GetByID(id)
	selfPaired := selfErr == nil && self.Status == domain.StatusPaired
	counterpart, counterpartErr := s.repo.FindPairedWith(id)
	hasCounterpart := counterpartErr == nil

	self.Status, self.PeerID = domain.StatusFree, ""
	counterpart.Status, counterpart.PeerID = domain.StatusFree, ""

	switch {
	case selfPaired && hasCounterpart:
		_ = s.repo.SavePair(self, counterpart)
	case selfPaired:
		_, _ = s.repo.Save(self)
	case hasCounterpart:
		_, _ = s.repo.Save(counterpart)
	default:
		return false
	}

	if hasCounterpart {
		_ = s.notifier.SendPeerDisconnected(counterpart.ID)
	}
	slog.Info("pairing torn down", "endpointID", id)
	return true
}

func (s *PairingService) dropPendingLocked(id string) {
	for targetID, req := range s.pending {
		if targetID == id || req.RequesterID == id {
			delete(s.pending, targetID)
		}
	}
}

func (s *PairingService) updateGaugesLocked() {
	all, err := s.repo.GetAll()
	if err != nil {
		return
	}
	counts := map[domain.Kind]int{domain.KindSource: 0, domain.KindSink: 0}
	paired := 0
	for _, e := range all {
		counts[e.Kind]++
		if e.Status == domain.StatusPaired {
			paired++
		}
	}
	for kind, n := range counts {
		metrics.RegisteredEndpoints.WithLabelValues(string(kind)).Set(float64(n))
	}
	metrics.ActivePairs.Set(float64(paired / 2))
}
