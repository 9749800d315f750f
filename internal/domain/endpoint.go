package domain

import (
	"errors"
	"time"
)

var (
	ErrEndpointNotFound  = errors.New("endpoint not found")
	ErrTargetUnavailable = errors.New("target endpoint is not available")
	ErrKindMismatch      = errors.New("endpoints have the same kind")
	ErrNotPaired         = errors.New("endpoint is not paired")
	ErrNoPendingRequest  = errors.New("no matching pending pairing request")
	ErrInvalidKind       = errors.New("invalid endpoint kind")
)

// Kind tells whether an endpoint exposes a media stream or consumes one.
type Kind string

const (
	KindSource Kind = "source"
	KindSink   Kind = "sink"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindSource, KindSink:
		return Kind(s), nil
	}
	return "", ErrInvalidKind
}

func (k Kind) Valid() bool {
	return k == KindSource || k == KindSink
}

// Opposite returns the kind an endpoint of kind k pairs with.
func (k Kind) Opposite() Kind {
	if k == KindSource {
		return KindSink
	}
	return KindSource
}

type Status string

const (
	StatusFree   Status = "free"
	StatusPaired Status = "paired"
)

// Endpoint is one registered network connection. PeerID is set only while
// Status is StatusPaired.
type Endpoint struct {
	ID           string
	Kind         Kind
	Name         string
	Status       Status
	PeerID       string
	RegisteredAt time.Time
	Seq          uint64
}

func (e *Endpoint) IsFree() bool {
	return e.Status == StatusFree
}

func (e *Endpoint) IsPairedWith(id string) bool {
	return e.Status == StatusPaired && e.PeerID == id
}

// PendingPairingRequest is an unresolved request from RequesterID to TargetID.
type PendingPairingRequest struct {
	RequesterID   string
	RequesterName string
	TargetID      string
	CreatedAt     time.Time
}

// EndpointRepository is the connection registry. Implementations must not
// be mutated concurrently by more than one logical owner.
type EndpointRepository interface {
	Save(endpoint Endpoint) (Endpoint, error)
	// SavePair writes both records in one step, so readers never see a
	// pairing half set up or half torn down.
	SavePair(a, b Endpoint) error
	GetByID(id string) (Endpoint, error)
	ListFree(kind Kind) ([]Endpoint, error)
	ListByKind(kind Kind) ([]Endpoint, error)
	GetAll() ([]Endpoint, error)
	FindPairedWith(id string) (Endpoint, error)
	Delete(id string) error
}
