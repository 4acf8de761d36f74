package view

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/energysys/dashboard/internal/model"
	"github.com/energysys/dashboard/internal/paging"
	"github.com/energysys/dashboard/internal/ranking"
	"github.com/energysys/dashboard/internal/timeseries"
)

// GenerationSummary describes a generation query.
type GenerationSummary struct {
	Range       model.TimeRange     `json:"range"`
	Until       string              `json:"available_until"`
	Warning     string              `json:"warning,omitempty"`
	TotalActual decimal.Decimal     `json:"total_actual"`
	Plants      []ranking.Aggregate `json:"plants"`
	Order       string              `json:"order"`
}

// Generation handles GET /api/v1/views/generation?start&end&power_plant_id&organization_id
//
// Generation is settled daily, so data is only read up to the end of
// yesterday. Callers outside super_admin only see their own organization.
func (s *Service) Generation(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	now := s.now()
	today := startOfDay(now)
	q := r.URL.Query()

	rng, err := parseRange(q, dayRange(today.Add(-24*time.Hour)))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	plantID, err := parseID(q, "power_plant_id")
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	orgID, err := parseID(q, "organization_id")
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if scope := orgScope(sess); scope != nil {
		orgID = scope
	}

	s.serve(w, r, sess, ViewGeneration, func(ctx context.Context) (*Result, error) {
		limit := today.Add(-time.Nanosecond)
		sum := GenerationSummary{Range: rng, Until: timeseries.Normalize(limit), TotalActual: decimal.Zero}
		if !rng.End.Before(today) {
			sum.Warning = fmt.Sprintf("Generation data is available up to %s. Later hours are not shown.",
				limit.Format("2006-01-02"))
		}

		var rows []model.GenerationRecord
		err := fanOut(ctx, ViewGeneration, func(ctx context.Context) error {
			var err error
			rows, err = s.store.ListGeneration(ctx, model.GenerationFilter{
				Range:          rng.ClipEnd(limit),
				PlantID:        plantID,
				OrganizationID: orgID,
			})
			return err
		})
		if err != nil {
			return nil, err
		}

		dir := s.policy.Direction(sess.Role)
		groups := ranking.Group(rows, plantName, actual)
		sum.Plants = ranking.Rank(groups, dir, len(groups))
		sum.Order = dir.String()
		for _, g := range groups {
			sum.TotalActual = sum.TotalActual.Add(g.Total)
		}
		return &Result{
			Summary: sum,
			Records: records(rows),
			PerPage: 10,
			Radius:  paging.RadiusWide,
		}, nil
	})
}

func plantName(g model.GenerationRecord) string { return g.PlantName }

func actual(g model.GenerationRecord) decimal.NullDecimal { return g.Actual }
