// Package model defines the domain types shared across the dashboard service.
// Measures (MWh, MW, TRY/MWh) use shopspring/decimal; a measure the source
// did not provide, or provided in a form that could not be parsed, is an
// invalid decimal.NullDecimal.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Plant statuses and event types. A plant's status is "Active" or the type
// of its ongoing event.
const (
	StatusActive      = "Active"
	EventMaintenance  = "Maintenance"
	EventFailure      = "Failure"
	EventStateOngoing = "continue"
	EventStateDone    = "completed"
)

// Organization is a market participant owning plants and users.
type Organization struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	EIC       string    `json:"eic"`
	CreatedAt time.Time `json:"created_at"`
}

// User is an account of one organization.
type User struct {
	ID             int64  `json:"id"`
	Username       string `json:"username"`
	PasswordHash   string `json:"-"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	OrganizationID int64  `json:"organization_id"`
}

// PowerPlant is a generation unit registered by EIC code.
type PowerPlant struct {
	ID                int64           `json:"id"`
	Name              string          `json:"name"`
	EIC               string          `json:"eic"`
	InstalledCapacity decimal.Decimal `json:"installed_capacity"` // MW
	FuelType          string          `json:"fuel_type"`
	IsYekdem          bool            `json:"is_yekdem"` // renewable support mechanism member
	IsRES             bool            `json:"is_res"`
	CurrentStatus     string          `json:"current_status"`
	OrganizationID    int64           `json:"organization_id"`
}

// GenerationRecord is one hourly generation sample of a plant.
type GenerationRecord struct {
	Timestamp      time.Time           `json:"timestamp"`
	PlantID        int64               `json:"power_plant_id"`
	PlantName      string              `json:"plant_name"`
	EIC            string              `json:"eic"`
	FuelType       string              `json:"fuel_type"`
	OrganizationID int64               `json:"organization_id"`
	Actual         decimal.NullDecimal `json:"actual_generation"`
	Planned        decimal.NullDecimal `json:"planned_generation"`
	Settlement     decimal.NullDecimal `json:"settlement_generation"`
}

// PlantEvent is a maintenance or failure period of a plant. EndTime is nil
// while the event is ongoing.
type PlantEvent struct {
	ID               int64           `json:"id"`
	PowerPlantID     int64           `json:"power_plant_id"`
	PlantName        string          `json:"plant_name"`
	OrganizationID   int64           `json:"organization_id"`
	EventType        string          `json:"event_type"`
	Reason           string          `json:"reason"`
	Description      string          `json:"description,omitempty"`
	AffectedCapacity decimal.Decimal `json:"affected_capacity"`
	StartTime        time.Time       `json:"start_time"`
	EndTime          *time.Time      `json:"end_time"`
}

// Ongoing reports whether the event has not been finished.
func (e PlantEvent) Ongoing() bool { return e.EndTime == nil }

// State is "continue" for ongoing events and "completed" otherwise.
func (e PlantEvent) State() string {
	if e.Ongoing() {
		return EventStateOngoing
	}
	return EventStateDone
}

// SeriesPoint is one sample of a national time series: consumption,
// demand forecast or a market price.
type SeriesPoint struct {
	Timestamp time.Time           `json:"timestamp"`
	Value     decimal.NullDecimal `json:"value"`
}

// TimeRange is an inclusive query interval.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Empty reports whether the range contains no instant.
func (r TimeRange) Empty() bool { return r.End.Before(r.Start) }

// ClipEnd caps the end of the range at limit.
func (r TimeRange) ClipEnd(limit time.Time) TimeRange {
	if r.End.After(limit) {
		r.End = limit
	}
	return r
}

// GenerationFilter narrows a generation query. Nil fields do not filter.
type GenerationFilter struct {
	Range          TimeRange
	PlantID        *int64
	OrganizationID *int64
}

// EventFilter narrows a plant event query. Nil fields do not filter.
type EventFilter struct {
	PlantID        *int64
	OrganizationID *int64
}
