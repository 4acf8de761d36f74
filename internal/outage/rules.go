// Package outage implements the rules for starting and finishing plant
// maintenance and failure events.
//
// A plant has at most one ongoing event. While it runs, the plant status is
// the event type; finishing the event returns the plant to Active.
package outage

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/energysys/dashboard/internal/model"
)

var (
	// ErrInvalidEventType is returned for event types other than
	// Maintenance and Failure.
	ErrInvalidEventType = errors.New("outage: invalid event type")

	// ErrEventOngoing is returned when the plant already has an ongoing
	// event.
	ErrEventOngoing = errors.New("outage: plant has an ongoing event")

	// ErrCapacityExceeded is returned when the affected capacity is larger
	// than the installed capacity of the plant.
	ErrCapacityExceeded = errors.New("outage: affected capacity exceeds installed capacity")

	// ErrInvalidCapacity is returned for a non-positive affected capacity.
	ErrInvalidCapacity = errors.New("outage: affected capacity must be positive")

	// ErrReasonRequired is returned when no reason is given.
	ErrReasonRequired = errors.New("outage: reason is required")

	// ErrEventFinished is returned when finishing an event that already
	// has an end time.
	ErrEventFinished = errors.New("outage: event already finished")

	// ErrEndBeforeStart is returned when the end time precedes the start.
	ErrEndBeforeStart = errors.New("outage: end time before start time")

	// ErrStartInFuture is returned for events that would begin later than
	// now.
	ErrStartInFuture = errors.New("outage: start time in the future")
)

var messages = map[error]string{
	ErrInvalidEventType: "Invalid event type. It must be 'Maintenance' or 'Failure'.",
	ErrEventOngoing:     "The event is ongoing. First, put an end to it.",
	ErrCapacityExceeded: "Affected capacity cannot exceed the installed capacity of the plant.",
	ErrInvalidCapacity:  "Affected capacity must be greater than zero.",
	ErrReasonRequired:   "A reason for the event is required.",
	ErrEventFinished:    "This event has already been completed.",
	ErrEndBeforeStart:   "The end time cannot be before the start time.",
	ErrStartInFuture:    "The start time cannot be in the future.",
}

var eventTypes = map[string]string{
	strings.ToLower(model.EventMaintenance): model.EventMaintenance,
	strings.ToLower(model.EventFailure):     model.EventFailure,
}

// NormalizeType returns the canonical spelling of an event type, matching
// case-insensitively.
func NormalizeType(t string) (string, error) {
	canonical, ok := eventTypes[strings.ToLower(strings.TrimSpace(t))]
	if !ok {
		return "", ErrInvalidEventType
	}
	return canonical, nil
}

// StartRequest is a proposed new event. StartTime is checked against Now
// when both are set.
type StartRequest struct {
	EventType        string
	Reason           string
	AffectedCapacity decimal.Decimal
	StartTime        time.Time
	Now              time.Time
}

// ValidateStart checks a new event against the plant and its ongoing event,
// if any. It returns the canonical event type.
func ValidateStart(plant model.PowerPlant, ongoing *model.PlantEvent, req StartRequest) (string, error) {
	typ, err := NormalizeType(req.EventType)
	if err != nil {
		return "", err
	}
	if ongoing != nil && ongoing.Ongoing() {
		return "", ErrEventOngoing
	}
	if strings.TrimSpace(req.Reason) == "" {
		return "", ErrReasonRequired
	}
	if !req.AffectedCapacity.IsPositive() {
		return "", ErrInvalidCapacity
	}
	if req.AffectedCapacity.GreaterThan(plant.InstalledCapacity) {
		return "", ErrCapacityExceeded
	}
	if !req.Now.IsZero() && req.StartTime.After(req.Now) {
		return "", ErrStartInFuture
	}
	return typ, nil
}

// ValidateFinish checks that event can be closed at end.
func ValidateFinish(event model.PlantEvent, end time.Time) error {
	if !event.Ongoing() {
		return ErrEventFinished
	}
	if end.Before(event.StartTime) {
		return ErrEndBeforeStart
	}
	return nil
}

// Message returns the detail shown to users for a rule violation, or "" if
// err is not one.
func Message(err error) string {
	for sentinel, msg := range messages {
		if errors.Is(err, sentinel) {
			return msg
		}
	}
	return ""
}

// Unavailable sums the affected capacity of ongoing events.
func Unavailable(events []model.PlantEvent) decimal.Decimal {
	total := decimal.Zero
	for _, e := range events {
		if e.Ongoing() {
			total = total.Add(e.AffectedCapacity)
		}
	}
	return total
}
