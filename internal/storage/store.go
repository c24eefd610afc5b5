package storage

import (
	"sync"

	"github.com/example/ride-dispatch/internal/models"
)

// EntityStore holds drivers, riders and ride requests keyed by id. Listings come back in
// insertion order so callers that scan them behave deterministically.
type EntityStore interface {
	AddDriver(d *models.Driver)
	Driver(id string) (*models.Driver, bool)
	Drivers() []*models.Driver
	AvailableDrivers() []*models.Driver
	RemoveDriver(id string) bool

	AddRider(r *models.Rider)
	Rider(id string) (*models.Rider, bool)
	Riders() []*models.Rider
	RemoveRider(id string) bool

	AddRideRequest(r *models.RideRequest)
	RideRequest(id string) (*models.RideRequest, bool)
	RideRequests() []*models.RideRequest

	AdvanceTick() int
	CurrentTick() int
}

type MemoryStore struct {
	mu       sync.RWMutex
	drivers  ordered[models.Driver]
	riders   ordered[models.Rider]
	requests ordered[models.RideRequest]
	tick     int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		drivers:  newOrdered[models.Driver](),
		riders:   newOrdered[models.Rider](),
		requests: newOrdered[models.RideRequest](),
	}
}

func (m *MemoryStore) AddDriver(d *models.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers.put(d.ID, d)
}

func (m *MemoryStore) Driver(id string) (*models.Driver, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drivers.get(id)
}

func (m *MemoryStore) Drivers() []*models.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drivers.list()
}

func (m *MemoryStore) AvailableDrivers() []*models.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*models.Driver
	for _, d := range m.drivers.list() {
		if d.Status == models.DriverAvailable {
			out = append(out, d)
		}
	}
	return out
}

func (m *MemoryStore) RemoveDriver(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drivers.remove(id)
}

func (m *MemoryStore) AddRider(r *models.Rider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.riders.put(r.ID, r)
}

func (m *MemoryStore) Rider(id string) (*models.Rider, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.riders.get(id)
}

func (m *MemoryStore) Riders() []*models.Rider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.riders.list()
}

func (m *MemoryStore) RemoveRider(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.riders.remove(id)
}

func (m *MemoryStore) AddRideRequest(r *models.RideRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests.put(r.ID, r)
}

func (m *MemoryStore) RideRequest(id string) (*models.RideRequest, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests.get(id)
}

func (m *MemoryStore) RideRequests() []*models.RideRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requests.list()
}

func (m *MemoryStore) AdvanceTick() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tick++
	return m.tick
}

func (m *MemoryStore) CurrentTick() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tick
}

// ordered is a map that remembers insertion order.
type ordered[T any] struct {
	items map[string]*T
	keys  []string
}

func newOrdered[T any]() ordered[T] {
	return ordered[T]{items: make(map[string]*T)}
}

func (o *ordered[T]) put(id string, v *T) {
	if _, ok := o.items[id]; !ok {
		o.keys = append(o.keys, id)
	}
	o.items[id] = v
}

func (o *ordered[T]) get(id string) (*T, bool) {
	v, ok := o.items[id]
	return v, ok
}

func (o *ordered[T]) list() []*T {
	out := make([]*T, 0, len(o.keys))
	for _, k := range o.keys {
		out = append(out, o.items[k])
	}
	return out
}

func (o *ordered[T]) remove(id string) bool {
	if _, ok := o.items[id]; !ok {
		return false
	}
	delete(o.items, id)
	for i, k := range o.keys {
		if k == id {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
	return true
}
