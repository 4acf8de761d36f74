package view

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/energysys/dashboard/internal/access"
	"github.com/energysys/dashboard/internal/auth"
	"github.com/energysys/dashboard/internal/model"
	"github.com/energysys/dashboard/internal/store"
)

var now = time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func nd(f float64) decimal.NullDecimal {
	return decimal.NewNullDecimal(d(f))
}

func hour(day, h int) time.Time {
	return time.Date(2024, 5, day, h, 0, 0, 0, time.UTC)
}

type fixture struct {
	store  *store.MemoryStore
	orgA   int64
	orgB   int64
	plants map[string]int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemoryStore()
	f := &fixture{store: st, plants: map[string]int64{}}

	a := &model.Organization{Name: "Anadolu", EIC: "40X000000000123D"}
	b := &model.Organization{Name: "Trakya", EIC: "10X1001A1001A248"}
	for _, o := range []*model.Organization{a, b} {
		if err := st.CreateOrganization(ctx, o); err != nil {
			t.Fatal(err)
		}
	}
	f.orgA, f.orgB = a.ID, b.ID

	for _, p := range []struct {
		name string
		org  int64
	}{{"Alpha", a.ID}, {"Bravo", a.ID}, {"Charlie", a.ID}, {"Delta", a.ID}, {"Echo", b.ID}} {
		plant := &model.PowerPlant{Name: p.name, EIC: "EIC-" + p.name, InstalledCapacity: d(100), OrganizationID: p.org}
		if err := st.CreatePlant(ctx, plant); err != nil {
			t.Fatal(err)
		}
		f.plants[p.name] = plant.ID
	}

	for h := 0; h < 24; h++ {
		st.PutSeries(store.SeriesDemandForecast, model.SeriesPoint{Timestamp: hour(2, h), Value: nd(1000)})
		st.PutSeries(store.SeriesClearingPrice, model.SeriesPoint{Timestamp: hour(2, h), Value: nd(2000)})
		st.PutSeries(store.SeriesMarginalPrice, model.SeriesPoint{Timestamp: hour(2, h), Value: nd(2100)})
		// Realized consumption alternates above and below the forecast.
		actual := 1000.0
		switch h % 3 {
		case 1:
			actual = 1010
		case 2:
			actual = 990
		}
		st.PutSeries(store.SeriesConsumption, model.SeriesPoint{Timestamp: hour(2, h), Value: nd(actual)})

		st.PutSeries(store.SeriesClearingPrice, model.SeriesPoint{Timestamp: hour(1, h), Value: nd(float64(1500 + h))})
		st.PutSeries(store.SeriesMarginalPrice, model.SeriesPoint{Timestamp: hour(1, h), Value: nd(float64(1600 + 2*h))})
	}

	// Yesterday's output per plant: Alpha 30, Bravo 10, Charlie 50, Delta 20, Echo 99.
	for name, mwh := range map[string]float64{"Alpha": 15, "Bravo": 5, "Charlie": 25, "Delta": 10, "Echo": 49.5} {
		for _, h := range []int{3, 4} {
			st.PutGeneration(model.GenerationRecord{Timestamp: hour(1, h), PlantID: f.plants[name], Actual: nd(mwh)})
		}
	}
	// Today's output is not settled yet and must never be shown.
	st.PutGeneration(model.GenerationRecord{Timestamp: hour(2, 1), PlantID: f.plants["Alpha"], Actual: nd(500)})
	return f
}

func sessionFor(role access.Role, org int64) *auth.Session {
	return &auth.Session{ID: fmt.Sprintf("%s-%d", role, org), Username: string(role), Role: role, OrganizationID: org}
}

func newTestService(st store.Store) *Service {
	svc := NewService(st, NewTracker())
	svc.Clock = func() time.Time { return now }
	return svc
}

func do(t *testing.T, svc *Service, sess *auth.Session, target string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	if sess != nil {
		req = req.WithContext(auth.WithSession(req.Context(), sess))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type rawResponse struct {
	QueryID    string            `json:"query_id"`
	View       string            `json:"view"`
	Summary    json.RawMessage   `json:"summary"`
	Records    []json.RawMessage `json:"records"`
	Pagination struct {
		Pages       []interface{} `json:"page_numbers"`
		CurrentPage int           `json:"current_page"`
		TotalPages  int           `json:"total_pages"`
	} `json:"pagination"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestConsumption_LeftJoinWithLag(t *testing.T) {
	f := newFixture(t)
	svc := newTestService(f.store)

	w := do(t, svc, sessionFor(access.RoleAnalyst, f.orgA), "/api/v1/views/consumption?start=2024-05-02&end=2024-05-02")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp rawResponse
	decode(t, w, &resp)

	if resp.View != ViewConsumption || resp.QueryID == "" {
		t.Errorf("unexpected envelope: view=%s query=%s", resp.View, resp.QueryID)
	}
	if len(resp.Records) != 24 {
		t.Fatalf("expected one row per forecast hour (24), got %d", len(resp.Records))
	}
	if resp.Pagination.TotalPages != 1 {
		t.Errorf("expected 1 page of 24, got %d", resp.Pagination.TotalPages)
	}

	rows := make([]ConsumptionRow, len(resp.Records))
	for i, raw := range resp.Records {
		if err := json.Unmarshal(raw, &rows[i]); err != nil {
			t.Fatal(err)
		}
	}
	wantTrend := []string{TrendEqual, TrendHigh, TrendLow}
	for h, row := range rows {
		if h <= 8 {
			if !row.Actual.Valid || row.Trend != wantTrend[h%3] {
				t.Errorf("hour %d: expected actual with trend %s, got %+v", h, wantTrend[h%3], row)
			}
			continue
		}
		// Consumption is read up to two hours before now.
		if row.Actual.Valid || row.Difference.Valid || row.Trend != TrendPending {
			t.Errorf("hour %d: expected pending row, got %+v", h, row)
		}
	}
	if !rows[1].Difference.Decimal.Equal(d(10)) || !rows[2].Difference.Decimal.Equal(d(-10)) {
		t.Errorf("difference must be actual - forecast, got %s and %s", rows[1].Difference.Decimal, rows[2].Difference.Decimal)
	}
}

func TestMarket_SpreadAndLag(t *testing.T) {
	f := newFixture(t)
	svc := newTestService(f.store)

	w := do(t, svc, sessionFor(access.RoleAdmin, f.orgA), "/api/v1/views/market")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp rawResponse
	decode(t, w, &resp)

	if len(resp.Records) != 24 {
		t.Fatalf("expected 24 rows for the default day, got %d", len(resp.Records))
	}
	var sum SeriesSummary
	if err := json.Unmarshal(resp.Summary, &sum); err != nil {
		t.Fatal(err)
	}
	// SMF is read up to 06:00, four hours before now.
	if sum.Matched != 7 {
		t.Errorf("expected 7 matched hours, got %d", sum.Matched)
	}
	var first, last MarketRow
	json.Unmarshal(resp.Records[0], &first)
	json.Unmarshal(resp.Records[23], &last)
	if !first.Spread.Valid || !first.Spread.Decimal.Equal(d(100)) {
		t.Errorf("expected spread smf - ptf = 100, got %+v", first.Spread)
	}
	if last.SMF.Valid || last.Spread.Valid || !last.PTF.Valid {
		t.Errorf("expected PTF-only row after the lag, got %+v", last)
	}
}

func TestSeriesViews_BadRange(t *testing.T) {
	f := newFixture(t)
	svc := newTestService(f.store)
	sess := sessionFor(access.RoleAdmin, f.orgA)

	for _, target := range []string{
		"/api/v1/views/market?start=yesterday",
		"/api/v1/views/consumption?start=2024-05-03&end=2024-05-02",
	} {
		if w := do(t, svc, sess, target); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, w.Code)
		}
	}
}

func TestGeneration_ScopedAndClipped(t *testing.T) {
	f := newFixture(t)
	svc := newTestService(f.store)

	w := do(t, svc, sessionFor(access.RoleAdmin, f.orgA),
		fmt.Sprintf("/api/v1/views/generation?start=2024-05-01&end=2024-05-02&organization_id=%d", f.orgB))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp rawResponse
	decode(t, w, &resp)

	// Four plants of organization A, two hours each; today's row is clipped.
	if len(resp.Records) != 8 {
		t.Errorf("expected 8 records, got %d", len(resp.Records))
	}
	for _, raw := range resp.Records {
		var g model.GenerationRecord
		json.Unmarshal(raw, &g)
		if g.OrganizationID != f.orgA {
			t.Errorf("admin saw another organization's plant %s", g.PlantName)
		}
	}

	var sum GenerationSummary
	if err := json.Unmarshal(resp.Summary, &sum); err != nil {
		t.Fatal(err)
	}
	if sum.Warning == "" {
		t.Error("expected a warning for a range reaching today")
	}
	if !sum.TotalActual.Equal(d(110)) {
		t.Errorf("expected total 110, got %s", sum.TotalActual)
	}
	if len(sum.Plants) != 4 || sum.Plants[0].Key != "Charlie" || sum.Order != "desc" {
		t.Errorf("expected admin plants ranked highest first, got %+v (%s)", sum.Plants, sum.Order)
	}
}

func TestGeneration_SuperAdminFilters(t *testing.T) {
	f := newFixture(t)
	svc := newTestService(f.store)

	w := do(t, svc, sessionFor(access.RoleSuperAdmin, f.orgA),
		fmt.Sprintf("/api/v1/views/generation?start=2024-05-01&end=2024-05-01&organization_id=%d", f.orgB))
	var resp rawResponse
	decode(t, w, &resp)
	if len(resp.Records) != 2 {
		t.Errorf("expected Echo's 2 records, got %d", len(resp.Records))
	}

	w = do(t, svc, sessionFor(access.RoleSuperAdmin, f.orgA), "/api/v1/views/generation?power_plant_id=abc")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad plant id, got %d", w.Code)
	}
}

func TestDashboard_RankingFollowsRole(t *testing.T) {
	f := newFixture(t)
	svc := newTestService(f.store)

	tests := []struct {
		role    access.Role
		want    []string
		label   string
		plants  int
	}{
		{access.RoleSuperAdmin, []string{"Bravo", "Delta", "Alpha"}, "lowest", 5},
		{access.RoleAdmin, []string{"Charlie", "Alpha", "Delta"}, "highest", 4},
		{access.RoleAnalyst, []string{"Charlie", "Alpha", "Delta"}, "highest", 4},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			w := do(t, svc, sessionFor(tt.role, f.orgA), "/api/v1/views/dashboard")
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
			}
			var resp rawResponse
			decode(t, w, &resp)
			var sum DashboardSummary
			if err := json.Unmarshal(resp.Summary, &sum); err != nil {
				t.Fatal(err)
			}

			if len(sum.TopPlants) != TopPlants {
				t.Fatalf("expected %d top plants, got %d", TopPlants, len(sum.TopPlants))
			}
			for i, name := range tt.want {
				if sum.TopPlants[i].Key != name {
					t.Errorf("rank %d: expected %s, got %s", i+1, name, sum.TopPlants[i].Key)
				}
			}
			if sum.Ranking != tt.label {
				t.Errorf("expected ranking label %s, got %s", tt.label, sum.Ranking)
			}
			if sum.Plants.Total != tt.plants {
				t.Errorf("expected %d plants, got %d", tt.plants, sum.Plants.Total)
			}
		})
	}
}

func TestDashboard_CardsChartAndExtremes(t *testing.T) {
	f := newFixture(t)
	svc := newTestService(f.store)

	w := do(t, svc, sessionFor(access.RoleSuperAdmin, f.orgA), "/api/v1/views/dashboard")
	var resp rawResponse
	decode(t, w, &resp)
	var sum DashboardSummary
	if err := json.Unmarshal(resp.Summary, &sum); err != nil {
		t.Fatal(err)
	}

	if len(sum.PriceChart) != ChartPoints {
		t.Fatalf("expected %d chart points, got %d", ChartPoints, len(sum.PriceChart))
	}
	lastPoint := sum.PriceChart[ChartPoints-1]
	if lastPoint.Timestamp != "2024-05-02T10:00:00Z" {
		t.Errorf("expected the chart to end at now, got %s", lastPoint.Timestamp)
	}
	if !lastPoint.Spread.Decimal.Equal(d(100)) {
		t.Errorf("expected spread 100, got %s", lastPoint.Spread.Decimal)
	}
	if sum.Consumption.Timestamp != "2024-05-02T10:00:00Z" || !sum.Forecast.Value.Valid {
		t.Errorf("unexpected cards: %+v %+v", sum.Consumption, sum.Forecast)
	}
	if !sum.Yesterday.PTFMin.Decimal.Equal(d(1500)) || !sum.Yesterday.PTFMax.Decimal.Equal(d(1523)) {
		t.Errorf("unexpected PTF extremes: %+v", sum.Yesterday)
	}
	if !sum.Yesterday.SMFMax.Decimal.Equal(d(1646)) {
		t.Errorf("unexpected SMF max: %s", sum.Yesterday.SMFMax.Decimal)
	}
}

func TestPlantEvents_ModeByRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ev := &model.PlantEvent{PowerPlantID: f.plants["Alpha"], EventType: model.EventFailure, Reason: "trip",
		AffectedCapacity: d(40), StartTime: hour(2, 6)}
	if err := f.store.StartPlantEvent(ctx, ev); err != nil {
		t.Fatal(err)
	}
	done := &model.PlantEvent{PowerPlantID: f.plants["Bravo"], EventType: model.EventMaintenance, Reason: "overhaul",
		AffectedCapacity: d(10), StartTime: hour(1, 6)}
	f.store.StartPlantEvent(ctx, done)
	f.store.FinishPlantEvent(ctx, done.ID, hour(1, 9))

	svc := newTestService(f.store)

	tests := []struct {
		role    access.Role
		query   string
		mode    access.ViewMode
		records int
	}{
		{access.RoleAnalyst, "", access.ViewList, 2},
		{access.RoleAnalyst, "?mode=active", access.ViewList, 2},
		{access.RoleAdmin, "", access.ViewActive, 1},
		{access.RoleAdmin, "?mode=list", access.ViewList, 2},
		{access.RoleSuperAdmin, "", access.ViewCreate, 4},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+tt.query, func(t *testing.T) {
			w := do(t, svc, sessionFor(tt.role, f.orgA), "/api/v1/views/plant-events"+tt.query)
			if w.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
			}
			var resp rawResponse
			decode(t, w, &resp)
			var sum EventsSummary
			json.Unmarshal(resp.Summary, &sum)
			if sum.Mode != tt.mode {
				t.Errorf("expected mode %s, got %s", tt.mode, sum.Mode)
			}
			if len(resp.Records) != tt.records {
				t.Errorf("expected %d records, got %d", tt.records, len(resp.Records))
			}
			if sum.Plants.Failure != 1 || sum.Plants.UnavailableCapacity == nil || !sum.Plants.UnavailableCapacity.Equal(d(40)) {
				t.Errorf("unexpected plant stats: %+v", sum.Plants)
			}
		})
	}

	if w := do(t, svc, sessionFor(access.RoleAdmin, f.orgA), "/api/v1/views/plant-events?mode=edit"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an unknown mode, got %d", w.Code)
	}
}

func TestPlantEvents_OtherOrganizationHidden(t *testing.T) {
	f := newFixture(t)
	ev := &model.PlantEvent{PowerPlantID: f.plants["Echo"], EventType: model.EventFailure, Reason: "trip",
		AffectedCapacity: d(5), StartTime: hour(2, 6)}
	if err := f.store.StartPlantEvent(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	svc := newTestService(f.store)

	w := do(t, svc, sessionFor(access.RoleAdmin, f.orgA), "/api/v1/views/plant-events?mode=list")
	var resp rawResponse
	decode(t, w, &resp)
	if len(resp.Records) != 0 {
		t.Errorf("expected no events from another organization, got %d", len(resp.Records))
	}
}

func TestPage_ReslicesRetainedResult(t *testing.T) {
	f := newFixture(t)
	st := f.store
	for h := 0; h < 24; h++ {
		for day := 3; day <= 4; day++ {
			st.PutSeries(store.SeriesDemandForecast, model.SeriesPoint{Timestamp: time.Date(2024, 4, day, h, 0, 0, 0, time.UTC), Value: nd(1)})
		}
	}
	svc := newTestService(st)
	sess := sessionFor(access.RoleAdmin, f.orgA)

	if w := do(t, svc, sess, "/api/v1/views/consumption/page?n=2"); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 before any query, got %d", w.Code)
	}

	w := do(t, svc, sess, "/api/v1/views/consumption?start=2024-04-03&end=2024-04-04")
	var first rawResponse
	decode(t, w, &first)
	if first.Pagination.TotalPages != 2 || first.Pagination.CurrentPage != 1 {
		t.Fatalf("expected page 1 of 2, got %+v", first.Pagination)
	}

	w = do(t, svc, sess, "/api/v1/views/consumption/page?n=2")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var second rawResponse
	decode(t, w, &second)
	if second.QueryID != first.QueryID {
		t.Error("paging must not refetch")
	}
	if second.Pagination.CurrentPage != 2 || len(second.Records) != 24 {
		t.Errorf("unexpected second page: %+v with %d records", second.Pagination, len(second.Records))
	}
	var row ConsumptionRow
	json.Unmarshal(second.Records[0], &row)
	if row.Timestamp != "2024-04-04T00:00:00Z" {
		t.Errorf("expected page 2 to start at the second day, got %s", row.Timestamp)
	}

	if w := do(t, svc, sess, "/api/v1/views/consumption/page?n=x"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad page, got %d", w.Code)
	}
}

var errDriver = errors.New(`FATAL: password authentication failed for user "energy_admin" (SQLSTATE 28P01)`)

// failingStore fails the demand forecast read, optionally running a hook
// first.
type failingStore struct {
	*store.MemoryStore
	hook func()
	fail bool
}

func (s *failingStore) ListDemandForecast(ctx context.Context, r model.TimeRange) ([]model.SeriesPoint, error) {
	if s.hook != nil {
		s.hook()
	}
	if s.fail {
		return nil, errDriver
	}
	return s.MemoryStore.ListDemandForecast(ctx, r)
}

func TestFetchFailure_KeepsPreviousResult(t *testing.T) {
	f := newFixture(t)
	fs := &failingStore{MemoryStore: f.store}
	svc := newTestService(fs)
	sess := sessionFor(access.RoleAnalyst, f.orgA)

	w := do(t, svc, sess, "/api/v1/views/consumption")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var ok rawResponse
	decode(t, w, &ok)

	fs.fail = true
	w = do(t, svc, sess, "/api/v1/views/consumption")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	raw := w.Body.String()
	var body struct {
		Error    string      `json:"error"`
		Previous rawResponse `json:"previous"`
	}
	decode(t, w, &body)
	if body.Error != MsgLoadFailed || body.Previous.QueryID != ok.QueryID {
		t.Errorf("expected the previous result alongside the error, got %+v", body)
	}
	for _, leak := range []string{"energy_admin", "SQLSTATE", "demand_forecast", ErrFetchFailed.Error()} {
		if strings.Contains(raw, leak) {
			t.Errorf("error body exposes %q: %s", leak, raw)
		}
	}

	// The failed query did not replace the retained result.
	if w := do(t, svc, sess, "/api/v1/views/consumption/page?n=1"); w.Code != http.StatusOK {
		t.Errorf("expected retained result, got %d", w.Code)
	}
}

func TestFetchFailure_NoPrevious(t *testing.T) {
	f := newFixture(t)
	svc := newTestService(&failingStore{MemoryStore: f.store, fail: true})

	w := do(t, svc, sessionFor(access.RoleAdmin, f.orgA), "/api/v1/views/dashboard")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	var body map[string]interface{}
	decode(t, w, &body)
	if _, ok := body["previous"]; ok {
		t.Error("expected no previous result")
	}
}

func TestStaleQuery_Discarded(t *testing.T) {
	f := newFixture(t)
	fs := &failingStore{MemoryStore: f.store}
	svc := newTestService(fs)
	sess := sessionFor(access.RoleAdmin, f.orgA)

	// A newer query starts while this one is still fetching.
	fs.hook = func() { svc.tracker.Begin(sess.ID, ViewConsumption) }

	w := do(t, svc, sess, "/api/v1/views/consumption")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if _, _, ok := svc.tracker.Current(sess.ID, ViewConsumption); ok {
		t.Error("stale result must not be retained")
	}
}

func TestStaleFailure_NoPrevious(t *testing.T) {
	f := newFixture(t)
	fs := &failingStore{MemoryStore: f.store}
	svc := newTestService(fs)
	sess := sessionFor(access.RoleAnalyst, f.orgA)

	w := do(t, svc, sess, "/api/v1/views/consumption")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var first rawResponse
	decode(t, w, &first)

	// This query fails, but only after a newer one has begun.
	fs.fail = true
	fs.hook = func() { svc.tracker.Begin(sess.ID, ViewConsumption) }

	w = do(t, svc, sess, "/api/v1/views/consumption")
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]interface{}
	decode(t, w, &body)
	if _, ok := body["previous"]; ok {
		t.Error("a superseded failure must not return the previous result")
	}

	res, _, ok := svc.tracker.Current(sess.ID, ViewConsumption)
	if !ok || res.QueryID != first.QueryID {
		t.Error("the earlier result must still be retained")
	}
}

func TestNavigation(t *testing.T) {
	svc := newTestService(store.NewMemoryStore())

	w := do(t, svc, sessionFor(access.RoleAnalyst, 1), "/api/v1/navigation")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var nav NavigationResponse
	decode(t, w, &nav)
	if nav.DefaultEventView != access.ViewList || nav.Ranking != "highest" {
		t.Errorf("unexpected navigation: %+v", nav)
	}
	for _, section := range nav.Menu {
		for _, item := range section.Children {
			if item.Path == access.PathUsers && item.Allowed {
				t.Error("analyst must not see the users page")
			}
		}
	}

	if w := do(t, svc, nil, "/api/v1/navigation"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without a session, got %d", w.Code)
	}
}
