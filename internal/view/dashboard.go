package view

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/energysys/dashboard/internal/model"
	"github.com/energysys/dashboard/internal/ranking"
	"github.com/energysys/dashboard/internal/timeseries"
)

// Dashboard sizes.
const (
	ChartPoints = 10
	TopPlants   = 3
)

// Card is the latest value of a series.
type Card struct {
	Timestamp string              `json:"timestamp,omitempty"`
	Value     decimal.NullDecimal `json:"value"`
}

// PriceRow is one point of the price chart.
type PriceRow struct {
	Timestamp string              `json:"timestamp"`
	SMF       decimal.NullDecimal `json:"smf"`
	PTF       decimal.NullDecimal `json:"ptf"`
	Spread    decimal.NullDecimal `json:"spread"`
}

// PriceExtremes are the daily lows and highs of both prices.
type PriceExtremes struct {
	SMFMin decimal.NullDecimal `json:"smf_min"`
	SMFMax decimal.NullDecimal `json:"smf_max"`
	PTFMin decimal.NullDecimal `json:"ptf_min"`
	PTFMax decimal.NullDecimal `json:"ptf_max"`
}

// PlantStats counts plants by status.
type PlantStats struct {
	Total               int              `json:"total"`
	Active              int              `json:"active"`
	Maintenance         int              `json:"maintenance"`
	Failure             int              `json:"failure"`
	InstalledCapacity   decimal.Decimal  `json:"installed_capacity"`
	UnavailableCapacity *decimal.Decimal `json:"unavailable_capacity,omitempty"`
}

// DashboardSummary is the body of the dashboard view.
type DashboardSummary struct {
	Plants      PlantStats          `json:"plants"`
	Consumption Card                `json:"consumption"`
	Forecast    Card                `json:"demand_forecast"`
	PriceChart  []PriceRow          `json:"price_chart"`
	Yesterday   PriceExtremes       `json:"yesterday_prices"`
	TopPlants   []ranking.Aggregate `json:"top_plants"`
	Ranking     string              `json:"ranking"`
}

func plantStats(plants []model.PowerPlant) PlantStats {
	st := PlantStats{InstalledCapacity: decimal.Zero}
	for _, p := range plants {
		st.Total++
		st.InstalledCapacity = st.InstalledCapacity.Add(p.InstalledCapacity)
		switch p.CurrentStatus {
		case model.EventMaintenance:
			st.Maintenance++
		case model.EventFailure:
			st.Failure++
		default:
			st.Active++
		}
	}
	return st
}

func card(points []timeseries.Point) Card {
	p, ok := timeseries.Latest(points)
	if !ok {
		return Card{}
	}
	return Card{Timestamp: p.Timestamp, Value: p.Value}
}

func spread(smf, ptf decimal.Decimal) decimal.Decimal { return smf.Sub(ptf) }

// Dashboard handles GET /api/v1/views/dashboard
//
// Eight sources are fetched in one fan-out: plants, the last 24 hours of
// consumption, forecast, SMF and PTF, yesterday's SMF and PTF, and
// yesterday's generation.
func (s *Service) Dashboard(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	now := s.now()
	last24 := model.TimeRange{Start: now.Add(-24 * time.Hour), End: now}
	yesterday := dayRange(startOfDay(now).Add(-24 * time.Hour))
	scope := orgScope(sess)

	s.serve(w, r, sess, ViewDashboard, func(ctx context.Context) (*Result, error) {
		var (
			plants                     []model.PowerPlant
			generation                 []model.GenerationRecord
			consumption, forecast      []timeseries.Point
			smf, ptf, smfYest, ptfYest []timeseries.Point
		)
		err := fanOut(ctx, ViewDashboard,
			func(ctx context.Context) error {
				var err error
				plants, err = s.store.ListPlants(ctx, scope)
				return err
			},
			series(&consumption, "consumption", last24, s.store.ListConsumption),
			series(&forecast, "demand_forecast", last24, s.store.ListDemandForecast),
			series(&smf, "price_smf", last24, s.store.ListMarginalPrices),
			series(&ptf, "price_ptf", last24, s.store.ListClearingPrices),
			series(&smfYest, "price_smf", yesterday, s.store.ListMarginalPrices),
			series(&ptfYest, "price_ptf", yesterday, s.store.ListClearingPrices),
			func(ctx context.Context) error {
				var err error
				generation, err = s.store.ListGeneration(ctx, model.GenerationFilter{
					Range:          yesterday,
					OrganizationID: scope,
				})
				return err
			},
		)
		if err != nil {
			return nil, err
		}

		chart := timeseries.Tail(timeseries.Join(smf, ptf, spread), ChartPoints)
		rows := make([]PriceRow, len(chart))
		for i, m := range chart {
			rows[i] = PriceRow{Timestamp: m.Timestamp, SMF: m.Primary, PTF: m.Secondary, Spread: m.Delta}
		}

		sum := DashboardSummary{
			Plants:      plantStats(plants),
			Consumption: card(consumption),
			Forecast:    card(forecast),
			PriceChart:  rows,
			TopPlants: ranking.AggregateAndRank(generation, plantName, actual,
				s.policy.Direction(sess.Role), TopPlants),
			Ranking: s.policy.Label(sess.Role),
		}
		sum.Yesterday.SMFMin, sum.Yesterday.SMFMax = timeseries.Extremes(smfYest)
		sum.Yesterday.PTFMin, sum.Yesterday.PTFMax = timeseries.Extremes(ptfYest)

		return &Result{Summary: sum}, nil
	})
}
