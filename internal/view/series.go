package view

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/energysys/dashboard/internal/model"
	"github.com/energysys/dashboard/internal/paging"
	"github.com/energysys/dashboard/internal/timeseries"
)

// Trend labels of a consumption row.
const (
	TrendHigh    = "high"
	TrendLow     = "low"
	TrendEqual   = "equal"
	TrendPending = "pending"
)

// ConsumptionRow compares the demand forecast with realized consumption.
type ConsumptionRow struct {
	Timestamp  string              `json:"timestamp"`
	Forecast   decimal.NullDecimal `json:"demand_forecast"`
	Actual     decimal.NullDecimal `json:"actual_consumption"`
	Difference decimal.NullDecimal `json:"difference"`
	Trend      string              `json:"trend"`
}

// SeriesSummary describes a joined series.
type SeriesSummary struct {
	Range        model.TimeRange     `json:"range"`
	SecondaryEnd string              `json:"secondary_until"`
	PrimaryMin   decimal.NullDecimal `json:"primary_min"`
	PrimaryMax   decimal.NullDecimal `json:"primary_max"`
	SecondaryMin decimal.NullDecimal `json:"secondary_min"`
	SecondaryMax decimal.NullDecimal `json:"secondary_max"`
	Matched      int                 `json:"matched"`
}

func trend(delta decimal.NullDecimal) string {
	switch {
	case !delta.Valid:
		return TrendPending
	case delta.Decimal.IsPositive():
		return TrendHigh
	case delta.Decimal.IsNegative():
		return TrendLow
	default:
		return TrendEqual
	}
}

func summarize(r, secondaryRange model.TimeRange, primary, secondary []timeseries.Point, merged []timeseries.Merged) SeriesSummary {
	sum := SeriesSummary{Range: r, SecondaryEnd: timeseries.Normalize(secondaryRange.End)}
	sum.PrimaryMin, sum.PrimaryMax = timeseries.Extremes(primary)
	sum.SecondaryMin, sum.SecondaryMax = timeseries.Extremes(secondary)
	for _, m := range merged {
		if m.Delta.Valid {
			sum.Matched++
		}
	}
	return sum
}

// Consumption handles GET /api/v1/views/consumption?start&end
//
// The forecast is the reference grid; realized consumption is published
// with a lag and is only read up to now minus ConsumptionLag.
func (s *Service) Consumption(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	now := s.now()
	rng, err := parseRange(r.URL.Query(), dayRange(now))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.serve(w, r, sess, ViewConsumption, func(ctx context.Context) (*Result, error) {
		actualRange := rng.ClipEnd(now.Add(-ConsumptionLag))
		var forecast, actual []timeseries.Point
		err := fanOut(ctx, ViewConsumption,
			series(&forecast, "demand_forecast", rng, s.store.ListDemandForecast),
			series(&actual, "consumption", actualRange, s.store.ListConsumption),
		)
		if err != nil {
			return nil, err
		}

		merged := timeseries.Join(forecast, actual, nil)
		rows := make([]ConsumptionRow, len(merged))
		for i, m := range merged {
			rows[i] = ConsumptionRow{
				Timestamp:  m.Timestamp,
				Forecast:   m.Primary,
				Actual:     m.Secondary,
				Difference: m.Delta,
				Trend:      trend(m.Delta),
			}
		}
		return &Result{
			Summary: summarize(rng, actualRange, forecast, actual, merged),
			Records: records(rows),
			PerPage: 24,
			Radius:  paging.RadiusNarrow,
		}, nil
	})
}

// MarketRow pairs the market clearing price with the system marginal price.
type MarketRow struct {
	Timestamp string              `json:"timestamp"`
	PTF       decimal.NullDecimal `json:"ptf"`
	SMF       decimal.NullDecimal `json:"smf"`
	Spread    decimal.NullDecimal `json:"spread"`
}

// Market handles GET /api/v1/views/market?start&end
func (s *Service) Market(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	now := s.now()
	rng, err := parseRange(r.URL.Query(), dayRange(now))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.serve(w, r, sess, ViewMarket, func(ctx context.Context) (*Result, error) {
		smfRange := rng.ClipEnd(now.Add(-MarginalLag))
		var ptf, smf []timeseries.Point
		err := fanOut(ctx, ViewMarket,
			series(&ptf, "price_ptf", rng, s.store.ListClearingPrices),
			series(&smf, "price_smf", smfRange, s.store.ListMarginalPrices),
		)
		if err != nil {
			return nil, err
		}

		merged := timeseries.Join(ptf, smf, nil)
		rows := make([]MarketRow, len(merged))
		for i, m := range merged {
			rows[i] = MarketRow{Timestamp: m.Timestamp, PTF: m.Primary, SMF: m.Secondary, Spread: m.Delta}
		}
		return &Result{
			Summary: summarize(rng, smfRange, ptf, smf, merged),
			Records: records(rows),
			PerPage: 24,
			Radius:  paging.RadiusNarrow,
		}, nil
	})
}
