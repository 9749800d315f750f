package service

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/irdkwmnsb/remotecam/internal/domain"
	"github.com/irdkwmnsb/remotecam/internal/metrics"
)

var ErrInvalidSignal = errors.New("unknown signal kind")

// RelayService forwards negotiation payloads and control commands between
// endpoints. It only reads the registry and never inspects payloads.
type RelayService struct {
	repo     domain.EndpointRepository
	notifier domain.EndpointNotifier
}

func NewRelayService(repo domain.EndpointRepository, notifier domain.EndpointNotifier) *RelayService {
	return &RelayService{
		repo:     repo,
		notifier: notifier,
	}
}

// Relay delivers payload to toID tagged with fromID. A target that is not
// registered drops the message.
func (s *RelayService) Relay(fromID, toID string, kind domain.SignalKind, payload json.RawMessage) error {
	if !kind.Valid() {
		metrics.RelayDropsTotal.WithLabelValues("invalid_kind").Inc()
		return ErrInvalidSignal
	}

	if _, err := s.repo.GetByID(toID); err != nil {
		metrics.RelayDropsTotal.WithLabelValues("unknown_target").Inc()
		slog.Debug("relay target not registered", "from", fromID, "to", toID, "kind", kind)
		return err
	}

	return s.notifier.SendSignal(toID, kind, fromID, payload)
}

// ControlCommand forwards a device-control command to the sender's current
// peer. Either side of a pair may send one.
func (s *RelayService) ControlCommand(fromID, command string, params json.RawMessage) error {
	from, err := s.repo.GetByID(fromID)
	if err != nil {
		metrics.RelayDropsTotal.WithLabelValues("unknown_sender").Inc()
		return err
	}
	if from.Status != domain.StatusPaired || from.PeerID == "" {
		metrics.RelayDropsTotal.WithLabelValues("not_paired").Inc()
		return domain.ErrNotPaired
	}
	if _, err := s.repo.GetByID(from.PeerID); err != nil {
		metrics.RelayDropsTotal.WithLabelValues("unknown_target").Inc()
		return err
	}

	slog.Debug("relaying control command", "from", fromID, "senderKind", from.Kind, "to", from.PeerID, "command", command)
	return s.notifier.SendControlCommand(from.PeerID, fromID, command, params)
}
