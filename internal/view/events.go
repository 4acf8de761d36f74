package view

import (
	"context"
	"net/http"

	"github.com/energysys/dashboard/internal/access"
	"github.com/energysys/dashboard/internal/model"
	"github.com/energysys/dashboard/internal/outage"
	"github.com/energysys/dashboard/internal/paging"
)

// EventRow is a plant event with its derived state.
type EventRow struct {
	model.PlantEvent
	State string `json:"state"`
}

// EventsSummary describes the plant events view.
type EventsSummary struct {
	Mode      access.ViewMode   `json:"mode"`
	Views     []access.ViewMode `json:"views"`
	CanCreate bool              `json:"can_create"`
	CanFinish bool              `json:"can_finish"`
	Plants    PlantStats        `json:"plants"`
}

// PlantEvents handles GET /api/v1/views/plant-events?mode&power_plant_id
//
// mode is create, active or list and defaults by role. A mode the role may
// not use falls back to the role default, so analysts always get the list.
// In create mode the records are the plants that can take a new event.
func (s *Service) PlantEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	mode := access.DecideDefaultView(sess.Role)
	if raw := q.Get("mode"); raw != "" {
		switch m := access.ViewMode(raw); m {
		case access.ViewCreate, access.ViewActive, access.ViewList:
			if access.ViewAllowed(sess.Role, m) {
				mode = m
			}
		default:
			writeError(w, "mode must be create, active or list", http.StatusBadRequest)
			return
		}
	}
	plantID, err := parseID(q, "power_plant_id")
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	scope := orgScope(sess)

	s.serve(w, r, sess, ViewPlantEvents, func(ctx context.Context) (*Result, error) {
		var (
			events []model.PlantEvent
			plants []model.PowerPlant
		)
		err := fanOut(ctx, ViewPlantEvents,
			func(ctx context.Context) error {
				var err error
				events, err = s.store.ListPlantEvents(ctx, model.EventFilter{PlantID: plantID, OrganizationID: scope})
				return err
			},
			func(ctx context.Context) error {
				var err error
				plants, err = s.store.ListPlants(ctx, scope)
				return err
			},
		)
		if err != nil {
			return nil, err
		}

		ongoing := make([]model.PlantEvent, 0, len(events))
		busy := make(map[int64]bool)
		for _, e := range events {
			if e.Ongoing() {
				ongoing = append(ongoing, e)
				busy[e.PowerPlantID] = true
			}
		}

		stats := plantStats(plants)
		unavailable := outage.Unavailable(ongoing)
		stats.UnavailableCapacity = &unavailable

		var rows []interface{}
		switch mode {
		case access.ViewCreate:
			available := make([]model.PowerPlant, 0, len(plants))
			for _, p := range plants {
				if !busy[p.ID] {
					available = append(available, p)
				}
			}
			rows = records(available)
		case access.ViewActive:
			rows = records(eventRows(ongoing))
		default:
			rows = records(eventRows(events))
		}

		return &Result{
			Summary: EventsSummary{
				Mode:      mode,
				Views:     access.AllowedViews(sess.Role),
				CanCreate: access.Can(sess.Role, access.ActionCreateEvent),
				CanFinish: access.Can(sess.Role, access.ActionFinishEvent),
				Plants:    stats,
			},
			Records: rows,
			PerPage: 10,
			Radius:  paging.RadiusWide,
		}, nil
	})
}

func eventRows(events []model.PlantEvent) []EventRow {
	rows := make([]EventRow, len(events))
	for i, e := range events {
		rows[i] = EventRow{PlantEvent: e, State: e.State()}
	}
	return rows
}
