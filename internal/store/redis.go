package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/energysys/dashboard/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. National series and plants are cached; writes go to the primary
// store and invalidate the affected keys.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Read-through (check cache first) ---

func (s *CachedStore) ListConsumption(ctx context.Context, r model.TimeRange) ([]model.SeriesPoint, error) {
	return s.series(ctx, SeriesConsumption, r, s.primary.ListConsumption)
}

func (s *CachedStore) ListDemandForecast(ctx context.Context, r model.TimeRange) ([]model.SeriesPoint, error) {
	return s.series(ctx, SeriesDemandForecast, r, s.primary.ListDemandForecast)
}

func (s *CachedStore) ListClearingPrices(ctx context.Context, r model.TimeRange) ([]model.SeriesPoint, error) {
	return s.series(ctx, SeriesClearingPrice, r, s.primary.ListClearingPrices)
}

func (s *CachedStore) ListMarginalPrices(ctx context.Context, r model.TimeRange) ([]model.SeriesPoint, error) {
	return s.series(ctx, SeriesMarginalPrice, r, s.primary.ListMarginalPrices)
}

func (s *CachedStore) series(ctx context.Context, name Series, r model.TimeRange,
	load func(context.Context, model.TimeRange) ([]model.SeriesPoint, error)) ([]model.SeriesPoint, error) {
	key := seriesKey(name, r)

	// Try cache.
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var points []model.SeriesPoint
		if json.Unmarshal(data, &points) == nil {
			return points, nil
		}
	}

	// Cache miss: read from primary.
	points, err := load(ctx, r)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(points); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
	return points, nil
}

func (s *CachedStore) GetPlant(ctx context.Context, id int64) (*model.PowerPlant, error) {
	data, err := s.rdb.Get(ctx, plantKey(id)).Bytes()
	if err == nil {
		var p model.PowerPlant
		if json.Unmarshal(data, &p) == nil {
			return &p, nil
		}
	}

	p, err := s.primary.GetPlant(ctx, id)
	if err != nil {
		return nil, err
	}
	s.cachePlant(ctx, p)
	return p, nil
}

func (s *CachedStore) ListPlants(ctx context.Context, organizationID *int64) ([]model.PowerPlant, error) {
	key := plantsKey(organizationID)
	data, err := s.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var plants []model.PowerPlant
		if json.Unmarshal(data, &plants) == nil {
			return plants, nil
		}
	}

	plants, err := s.primary.ListPlants(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(plants); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
	return plants, nil
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) CreatePlant(ctx context.Context, p *model.PowerPlant) error {
	if err := s.primary.CreatePlant(ctx, p); err != nil {
		return err
	}
	s.cachePlant(ctx, p)
	s.invalidatePlantLists(ctx, p.OrganizationID)
	return nil
}

func (s *CachedStore) StartPlantEvent(ctx context.Context, e *model.PlantEvent) error {
	if err := s.primary.StartPlantEvent(ctx, e); err != nil {
		return err
	}
	// Plant status changed; next read will re-populate.
	s.rdb.Del(ctx, plantKey(e.PowerPlantID))
	s.invalidatePlantLists(ctx, e.OrganizationID)
	return nil
}

func (s *CachedStore) FinishPlantEvent(ctx context.Context, id int64, end time.Time) error {
	if err := s.primary.FinishPlantEvent(ctx, id, end); err != nil {
		return err
	}
	if e, err := s.primary.GetPlantEvent(ctx, id); err == nil {
		s.rdb.Del(ctx, plantKey(e.PowerPlantID))
		s.invalidatePlantLists(ctx, e.OrganizationID)
	}
	return nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListGeneration(ctx context.Context, f model.GenerationFilter) ([]model.GenerationRecord, error) {
	return s.primary.ListGeneration(ctx, f)
}

func (s *CachedStore) CreateOrganization(ctx context.Context, org *model.Organization) error {
	return s.primary.CreateOrganization(ctx, org)
}

func (s *CachedStore) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	return s.primary.ListOrganizations(ctx)
}

func (s *CachedStore) GetOrganization(ctx context.Context, id int64) (*model.Organization, error) {
	return s.primary.GetOrganization(ctx, id)
}

func (s *CachedStore) GetOrganizationByName(ctx context.Context, name string) (*model.Organization, error) {
	return s.primary.GetOrganizationByName(ctx, name)
}

func (s *CachedStore) CreateUser(ctx context.Context, u *model.User) error {
	return s.primary.CreateUser(ctx, u)
}

func (s *CachedStore) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.primary.ListUsers(ctx)
}

func (s *CachedStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.primary.GetUserByUsername(ctx, username)
}

func (s *CachedStore) GetPlantEvent(ctx context.Context, id int64) (*model.PlantEvent, error) {
	return s.primary.GetPlantEvent(ctx, id)
}

func (s *CachedStore) ActivePlantEvent(ctx context.Context, plantID int64) (*model.PlantEvent, error) {
	return s.primary.ActivePlantEvent(ctx, plantID)
}

func (s *CachedStore) ListPlantEvents(ctx context.Context, f model.EventFilter) ([]model.PlantEvent, error) {
	return s.primary.ListPlantEvents(ctx, f)
}

// --- Cache helpers ---

func (s *CachedStore) cachePlant(ctx context.Context, p *model.PowerPlant) {
	if data, err := json.Marshal(p); err == nil {
		s.rdb.Set(ctx, plantKey(p.ID), data, s.ttl)
	}
}

func (s *CachedStore) invalidatePlantLists(ctx context.Context, organizationID int64) {
	s.rdb.Del(ctx, plantsKey(nil), plantsKey(&organizationID))
}

func seriesKey(name Series, r model.TimeRange) string {
	return fmt.Sprintf("series:%s:%d:%d", name, r.Start.Unix(), r.End.Unix())
}

func plantKey(id int64) string { return fmt.Sprintf("plant:%d", id) }

func plantsKey(organizationID *int64) string {
	if organizationID == nil {
		return "plants:all"
	}
	return fmt.Sprintf("plants:org:%d", *organizationID)
}
