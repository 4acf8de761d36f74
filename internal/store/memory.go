package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/energysys/dashboard/internal/model"
)

// Series names the national time series kept by MemoryStore.
type Series string

const (
	SeriesConsumption    Series = "consumption"
	SeriesDemandForecast Series = "demand_forecast"
	SeriesClearingPrice  Series = "price_ptf"
	SeriesMarginalPrice  Series = "price_smf"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu         sync.RWMutex
	series     map[Series][]model.SeriesPoint
	generation []model.GenerationRecord
	orgs       map[int64]*model.Organization
	plants     map[int64]*model.PowerPlant
	users      map[int64]*model.User
	events     map[int64]*model.PlantEvent
	nextID     int64
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		series: make(map[Series][]model.SeriesPoint),
		orgs:   make(map[int64]*model.Organization),
		plants: make(map[int64]*model.PowerPlant),
		users:  make(map[int64]*model.User),
		events: make(map[int64]*model.PlantEvent),
	}
}

func (s *MemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

// PutSeries appends samples to a series, keeping it ordered by timestamp.
func (s *MemoryStore) PutSeries(name Series, points ...model.SeriesPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := append(s.series[name], points...)
	sort.SliceStable(all, func(i, j int) bool { return all[i].Timestamp.Before(all[j].Timestamp) })
	s.series[name] = all
}

// PutGeneration appends generation samples. Plant name, EIC, fuel type and
// organization are filled from the plant when it exists.
func (s *MemoryStore) PutGeneration(records ...model.GenerationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if p, ok := s.plants[r.PlantID]; ok {
			r.PlantName = p.Name
			r.EIC = p.EIC
			r.FuelType = p.FuelType
			r.OrganizationID = p.OrganizationID
		}
		s.generation = append(s.generation, r)
	}
	sort.SliceStable(s.generation, func(i, j int) bool {
		return s.generation[i].Timestamp.Before(s.generation[j].Timestamp)
	})
}

func (s *MemoryStore) listSeries(name Series, r model.TimeRange) []model.SeriesPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []model.SeriesPoint{}
	if r.Empty() {
		return result
	}
	for _, p := range s.series[name] {
		if p.Timestamp.Before(r.Start) || p.Timestamp.After(r.End) {
			continue
		}
		result = append(result, p)
	}
	return result
}

func (s *MemoryStore) ListConsumption(_ context.Context, r model.TimeRange) ([]model.SeriesPoint, error) {
	return s.listSeries(SeriesConsumption, r), nil
}

func (s *MemoryStore) ListDemandForecast(_ context.Context, r model.TimeRange) ([]model.SeriesPoint, error) {
	return s.listSeries(SeriesDemandForecast, r), nil
}

func (s *MemoryStore) ListClearingPrices(_ context.Context, r model.TimeRange) ([]model.SeriesPoint, error) {
	return s.listSeries(SeriesClearingPrice, r), nil
}

func (s *MemoryStore) ListMarginalPrices(_ context.Context, r model.TimeRange) ([]model.SeriesPoint, error) {
	return s.listSeries(SeriesMarginalPrice, r), nil
}

func (s *MemoryStore) ListGeneration(_ context.Context, f model.GenerationFilter) ([]model.GenerationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []model.GenerationRecord{}
	if f.Range.Empty() {
		return result, nil
	}
	for _, g := range s.generation {
		if g.Timestamp.Before(f.Range.Start) || g.Timestamp.After(f.Range.End) {
			continue
		}
		if f.PlantID != nil && g.PlantID != *f.PlantID {
			continue
		}
		if f.OrganizationID != nil && g.OrganizationID != *f.OrganizationID {
			continue
		}
		result = append(result, g)
	}
	return result, nil
}

// --- Organizations ---

func (s *MemoryStore) CreateOrganization(_ context.Context, org *model.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.orgs {
		if existing.EIC == org.EIC || existing.Name == org.Name {
			return fmt.Errorf("%w: organization %s", ErrConflict, org.EIC)
		}
	}
	org.ID = s.id()
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now().UTC()
	}
	// Store a copy to avoid external mutation.
	copy := *org
	s.orgs[org.ID] = &copy
	return nil
}

func (s *MemoryStore) ListOrganizations(_ context.Context) ([]model.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orgs := make([]model.Organization, 0, len(s.orgs))
	for _, o := range s.orgs {
		orgs = append(orgs, *o)
	}
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].ID < orgs[j].ID })
	return orgs, nil
}

func (s *MemoryStore) GetOrganization(_ context.Context, id int64) (*model.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orgs[id]
	if !ok {
		return nil, fmt.Errorf("%w: organization %d", ErrNotFound, id)
	}
	copy := *o
	return &copy, nil
}

func (s *MemoryStore) GetOrganizationByName(_ context.Context, name string) (*model.Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.orgs {
		if o.Name == name {
			copy := *o
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("%w: organization %q", ErrNotFound, name)
}

// --- Power plants ---

func (s *MemoryStore) CreatePlant(_ context.Context, plant *model.PowerPlant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.plants {
		if existing.EIC == plant.EIC {
			return fmt.Errorf("%w: plant %s", ErrConflict, plant.EIC)
		}
	}
	plant.ID = s.id()
	if plant.CurrentStatus == "" {
		plant.CurrentStatus = model.StatusActive
	}
	copy := *plant
	s.plants[plant.ID] = &copy
	return nil
}

func (s *MemoryStore) GetPlant(_ context.Context, id int64) (*model.PowerPlant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.plants[id]
	if !ok {
		return nil, fmt.Errorf("%w: plant %d", ErrNotFound, id)
	}
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) ListPlants(_ context.Context, organizationID *int64) ([]model.PowerPlant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plants := make([]model.PowerPlant, 0, len(s.plants))
	for _, p := range s.plants {
		if organizationID != nil && p.OrganizationID != *organizationID {
			continue
		}
		plants = append(plants, *p)
	}
	sort.Slice(plants, func(i, j int) bool { return plants[i].ID < plants[j].ID })
	return plants, nil
}

// --- Users ---

func (s *MemoryStore) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Username == user.Username {
			return fmt.Errorf("%w: user %s", ErrConflict, user.Username)
		}
	}
	user.ID = s.id()
	copy := *user
	s.users[user.ID] = &copy
	return nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (s *MemoryStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			copy := *u
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("%w: user %q", ErrNotFound, username)
}

// --- Plant events ---

func (s *MemoryStore) StartPlantEvent(_ context.Context, event *model.PlantEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	plant, ok := s.plants[event.PowerPlantID]
	if !ok {
		return fmt.Errorf("%w: plant %d", ErrNotFound, event.PowerPlantID)
	}
	event.ID = s.id()
	event.PlantName = plant.Name
	event.OrganizationID = plant.OrganizationID
	copy := *event
	s.events[event.ID] = &copy
	plant.CurrentStatus = event.EventType
	return nil
}

func (s *MemoryStore) FinishPlantEvent(_ context.Context, id int64, end time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return fmt.Errorf("%w: event %d", ErrNotFound, id)
	}
	e.EndTime = &end
	if plant, ok := s.plants[e.PowerPlantID]; ok {
		plant.CurrentStatus = model.StatusActive
	}
	return nil
}

func (s *MemoryStore) GetPlantEvent(_ context.Context, id int64) (*model.PlantEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return nil, fmt.Errorf("%w: event %d", ErrNotFound, id)
	}
	copy := *e
	return &copy, nil
}

func (s *MemoryStore) ActivePlantEvent(_ context.Context, plantID int64) (*model.PlantEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.events {
		if e.PowerPlantID == plantID && e.Ongoing() {
			copy := *e
			return &copy, nil
		}
	}
	return nil, fmt.Errorf("%w: active event for plant %d", ErrNotFound, plantID)
}

func (s *MemoryStore) ListPlantEvents(_ context.Context, f model.EventFilter) ([]model.PlantEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := []model.PlantEvent{}
	for _, e := range s.events {
		if f.PlantID != nil && e.PowerPlantID != *f.PlantID {
			continue
		}
		if f.OrganizationID != nil && e.OrganizationID != *f.OrganizationID {
			continue
		}
		events = append(events, *e)
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].StartTime.Equal(events[j].StartTime) {
			return events[i].ID > events[j].ID
		}
		return events[i].StartTime.After(events[j].StartTime)
	})
	return events, nil
}
