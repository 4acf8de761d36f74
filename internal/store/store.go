// Package store defines the persistence interface for the dashboard service.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/energysys/dashboard/internal/model"
)

var (
	// ErrNotFound is returned when the requested entity does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrConflict is returned when a unique key (EIC code, username) is
	// already taken.
	ErrConflict = errors.New("store: already exists")
)

// Store is the persistence interface. PostgreSQL is the source of truth;
// Redis provides a read-through cache layer.
type Store interface {
	// --- National time series (ordered by timestamp, inclusive range) ---

	// ListConsumption returns realized national consumption.
	ListConsumption(ctx context.Context, r model.TimeRange) ([]model.SeriesPoint, error)

	// ListDemandForecast returns the national demand forecast.
	ListDemandForecast(ctx context.Context, r model.TimeRange) ([]model.SeriesPoint, error)

	// ListClearingPrices returns the day-ahead market clearing price (PTF).
	ListClearingPrices(ctx context.Context, r model.TimeRange) ([]model.SeriesPoint, error)

	// ListMarginalPrices returns the system marginal price (SMF).
	ListMarginalPrices(ctx context.Context, r model.TimeRange) ([]model.SeriesPoint, error)

	// ListGeneration returns plant generation samples.
	ListGeneration(ctx context.Context, f model.GenerationFilter) ([]model.GenerationRecord, error)

	// --- Organizations ---

	CreateOrganization(ctx context.Context, org *model.Organization) error
	ListOrganizations(ctx context.Context) ([]model.Organization, error)
	GetOrganization(ctx context.Context, id int64) (*model.Organization, error)
	GetOrganizationByName(ctx context.Context, name string) (*model.Organization, error)

	// --- Power plants ---

	CreatePlant(ctx context.Context, plant *model.PowerPlant) error
	GetPlant(ctx context.Context, id int64) (*model.PowerPlant, error)

	// ListPlants returns all plants, or those of one organization.
	ListPlants(ctx context.Context, organizationID *int64) ([]model.PowerPlant, error)

	// --- Users ---

	CreateUser(ctx context.Context, user *model.User) error
	ListUsers(ctx context.Context) ([]model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)

	// --- Plant events ---

	// StartPlantEvent inserts an ongoing event and sets the plant status to
	// the event type.
	StartPlantEvent(ctx context.Context, event *model.PlantEvent) error

	// FinishPlantEvent closes an event and sets the plant back to Active.
	FinishPlantEvent(ctx context.Context, id int64, end time.Time) error

	GetPlantEvent(ctx context.Context, id int64) (*model.PlantEvent, error)

	// ActivePlantEvent returns the ongoing event of a plant, or ErrNotFound.
	ActivePlantEvent(ctx context.Context, plantID int64) (*model.PlantEvent, error)

	// ListPlantEvents returns events, newest start first.
	ListPlantEvents(ctx context.Context, f model.EventFilter) ([]model.PlantEvent, error)
}
