package entity

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Logger is the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the cached, thread-safe entity store shared by all adapters.
//
// Every read returns a deep copy so callers cannot mutate the cache.
type Registry struct {
	repo    Repository
	cache   map[string]*Entity
	cacheMu sync.RWMutex

	listeners   []StateListener
	listenersMu sync.RWMutex

	logger Logger
	now    func() time.Time
}

// NewRegistry creates a registry over repo. Call RefreshCache at startup.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*Entity),
		logger: noopLogger{},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// AddListener registers fn for attribute changes.
func (r *Registry) AddListener(fn StateListener) {
	r.listenersMu.Lock()
	r.listeners = append(r.listeners, fn)
	r.listenersMu.Unlock()
}

// RefreshCache reloads every entity from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	entities, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading entities: %w", err)
	}

	r.cacheMu.Lock()
	r.cache = make(map[string]*Entity, len(entities))
	for i := range entities {
		r.cache[entities[i].ID] = entities[i].DeepCopy()
	}
	r.cacheMu.Unlock()

	r.logger.Info("entity cache refreshed", "count", len(entities))
	return nil
}

// LookupByID returns ErrEntityNotFound when the id is not registered.
func (r *Registry) LookupByID(_ context.Context, id string) (*Entity, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	e, ok := r.cache[id]
	if !ok {
		return nil, ErrEntityNotFound
	}
	return e.DeepCopy(), nil
}

// List returns every entity sorted by id.
func (r *Registry) List(_ context.Context) []Entity {
	return r.filter(func(*Entity) bool { return true })
}

// ListByAdapter returns the entities registered by adapterID, sorted by id.
func (r *Registry) ListByAdapter(_ context.Context, adapterID string) ([]Entity, error) {
	return r.filter(func(e *Entity) bool { return e.AdapterID == adapterID }), nil
}

// Count returns the number of registered entities.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

func (r *Registry) filter(keep func(*Entity) bool) []Entity {
	r.cacheMu.RLock()
	entities := make([]Entity, 0, len(r.cache))
	for _, e := range r.cache {
		if keep(e) {
			entities = append(entities, *e.DeepCopy())
		}
	}
	r.cacheMu.RUnlock()

	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
	return entities
}

// RegisterAvailable records a hub-announced entity.
//
// A new id is inserted with empty attributes. A known id from the same
// adapter has its name, domain and capabilities refreshed and keeps its
// attributes. An id registered by a different adapter is rejected with
// ErrEntityOwned.
func (r *Registry) RegisterAvailable(ctx context.Context, reg Registration) error {
	if err := ValidateRegistration(reg); err != nil {
		return err
	}
	if reg.Name == "" {
		reg.Name = reg.ID
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	now := r.now()
	e := &Entity{
		ID:           reg.ID,
		AdapterID:    reg.AdapterID,
		Name:         reg.Name,
		Domain:       reg.Domain,
		Capabilities: append([]Capability{}, reg.Capabilities...),
		Attributes:   Attributes{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	existing, ok := r.cache[reg.ID]
	if ok {
		if existing.AdapterID != reg.AdapterID {
			return fmt.Errorf("%w: %s is registered by %s", ErrEntityOwned, reg.ID, existing.AdapterID)
		}
		e.Attributes = deepCopyMap(existing.Attributes)
		e.CreatedAt = existing.CreatedAt
	}

	if err := r.repo.Upsert(ctx, e); err != nil {
		return err
	}
	r.cache[e.ID] = e

	if ok {
		r.logger.Debug("entity refreshed", "id", e.ID, "adapter_id", e.AdapterID)
	} else {
		r.logger.Info("entity registered", "id", e.ID, "adapter_id", e.AdapterID, "domain", e.Domain)
	}
	return nil
}

// UpdateAttributes merges changes into the entity's attributes, persists
// them and notifies listeners. An empty change set is a no-op.
func (r *Registry) UpdateAttributes(ctx context.Context, id string, changes Attributes) error {
	if len(changes) == 0 {
		return nil
	}

	r.cacheMu.Lock()
	cached, ok := r.cache[id]
	if !ok {
		r.cacheMu.Unlock()
		return ErrEntityNotFound
	}

	now := r.now()
	if err := r.repo.UpdateAttributes(ctx, id, changes, now); err != nil {
		r.cacheMu.Unlock()
		return err
	}

	updated := cached.DeepCopy()
	if updated.Attributes == nil {
		updated.Attributes = Attributes{}
	}
	for k, v := range changes {
		updated.Attributes[k] = deepCopyValue(v)
	}
	updated.UpdatedAt = now
	r.cache[id] = updated

	change := StateChange{
		EntityID:  id,
		AdapterID: updated.AdapterID,
		Domain:    updated.Domain,
		Changes:   deepCopyMap(changes),
		State:     deepCopyMap(updated.Attributes),
		Timestamp: now,
	}
	r.cacheMu.Unlock()

	r.logger.Debug("entity attributes updated", "id", id, "keys", len(changes))
	r.notify(change)
	return nil
}

func (r *Registry) notify(change StateChange) {
	r.listenersMu.RLock()
	listeners := append([]StateListener(nil), r.listeners...)
	r.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(change)
	}
}

// Stats summarizes the registry for health reporting.
type Stats struct {
	Total     int            `json:"total"`
	ByDomain  map[Domain]int `json:"by_domain"`
	ByAdapter map[string]int `json:"by_adapter"`
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		Total:     len(r.cache),
		ByDomain:  make(map[Domain]int),
		ByAdapter: make(map[string]int),
	}
	for _, e := range r.cache {
		stats.ByDomain[e.Domain]++
		stats.ByAdapter[e.AdapterID]++
	}
	return stats
}
