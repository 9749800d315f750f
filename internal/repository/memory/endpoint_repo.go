package memory

import (
	"sort"
	"sync"

	"github.com/irdkwmnsb/remotecam/internal/domain"
)

type EndpointRepository struct {
	endpoints map[string]domain.Endpoint
	nextSeq   uint64
	mu        sync.RWMutex
}

func NewEndpointRepository() *EndpointRepository {
	return &EndpointRepository{
		endpoints: make(map[string]domain.Endpoint),
	}
}

// Save inserts or overwrites the endpoint. A zero Seq is replaced by the next
// registration sequence number, which defines listing order.
func (r *EndpointRepository) Save(e domain.Endpoint) (domain.Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.storeLocked(e), nil
}

func (r *EndpointRepository) SavePair(a, b domain.Endpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.storeLocked(a)
	r.storeLocked(b)
	return nil
}

func (r *EndpointRepository) storeLocked(e domain.Endpoint) domain.Endpoint {
	if e.Seq == 0 {
		r.nextSeq++
		e.Seq = r.nextSeq
	}
	r.endpoints[e.ID] = e
	return e
}

func (r *EndpointRepository) GetByID(id string) (domain.Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.endpoints[id]
	if !ok {
		return domain.Endpoint{}, domain.ErrEndpointNotFound
	}
	return e, nil
}

func (r *EndpointRepository) ListFree(kind domain.Kind) ([]domain.Endpoint, error) {
	return r.filter(func(e domain.Endpoint) bool {
		return e.Kind == kind && e.IsFree()
	}), nil
}

func (r *EndpointRepository) ListByKind(kind domain.Kind) ([]domain.Endpoint, error) {
	return r.filter(func(e domain.Endpoint) bool {
		return e.Kind == kind
	}), nil
}

func (r *EndpointRepository) GetAll() ([]domain.Endpoint, error) {
	return r.filter(func(domain.Endpoint) bool { return true }), nil
}

// FindPairedWith scans for the endpoint currently paired with id. The
// registry holds a handful of endpoints, so a linear scan is fine.
func (r *EndpointRepository) FindPairedWith(id string) (domain.Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for otherID, e := range r.endpoints {
		if otherID != id && e.IsPairedWith(id) {
			return e, nil
		}
	}
	return domain.Endpoint{}, domain.ErrEndpointNotFound
}

func (r *EndpointRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.endpoints[id]; !ok {
		return domain.ErrEndpointNotFound
	}

	delete(r.endpoints, id)
	return nil
}

func (r *EndpointRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.endpoints)
}

func (r *EndpointRepository) filter(keep func(domain.Endpoint) bool) []domain.Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Endpoint, 0, len(r.endpoints))
	for _, e := range r.endpoints {
		if keep(e) {
			result = append(result, e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Seq < result[j].Seq
	})
	return result
}
