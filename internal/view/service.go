// Package view serves the dashboard pages. Each page fetches its sources
// concurrently, reconciles them into one record set and retains the result
// per session so page navigation does not refetch.
package view

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/energysys/dashboard/internal/access"
	"github.com/energysys/dashboard/internal/auth"
	"github.com/energysys/dashboard/internal/model"
	"github.com/energysys/dashboard/internal/ranking"
	"github.com/energysys/dashboard/internal/store"
)

// View names. They key retained results and label metrics.
const (
	ViewConsumption = "consumption"
	ViewMarket      = "market"
	ViewGeneration  = "generation"
	ViewDashboard   = "dashboard"
	ViewPlantEvents = "plant-events"
)

// MsgLoadFailed is shown when any source of a view could not be fetched.
const MsgLoadFailed = "Could not load data. Please try again."

// Publication lag of each live source.
const (
	ConsumptionLag = 2 * time.Hour
	MarginalLag    = 4 * time.Hour
)

// Service handles the dashboard views.
type Service struct {
	store   store.Store
	tracker *Tracker
	policy  ranking.Policy

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// NewService creates a view service backed by st.
func NewService(st store.Store, tracker *Tracker) *Service {
	return &Service{
		store:   st,
		tracker: tracker,
		policy:  ranking.DefaultPolicy,
		Clock:   time.Now,
	}
}

// Routes registers the view endpoints on r.
func (s *Service) Routes(r chi.Router) {
	r.Get("/navigation", s.Navigation)
	r.Route("/views", func(r chi.Router) {
		r.Get("/consumption", s.Consumption)
		r.Get("/market", s.Market)
		r.Get("/generation", s.Generation)
		r.Get("/dashboard", s.Dashboard)
		r.Get("/plant-events", s.PlantEvents)
		r.Get("/{view}/page", s.Page)
	})
}

func (s *Service) now() time.Time { return s.Clock().UTC() }

// build produces the result of one query.
type build func(ctx context.Context) (*Result, error)

// serve runs a query under a new generation. A failed query keeps the
// previous result and returns it with the error; a superseded one is
// answered with 409 and not retained.
func (s *Service) serve(w http.ResponseWriter, r *http.Request, sess *auth.Session, view string, fn build) {
	gen := s.tracker.Begin(sess.ID, view)

	res, err := fn(r.Context())
	if err != nil {
		prev, ferr := s.tracker.Fail(sess.ID, view, gen)
		if errors.Is(ferr, ErrStale) {
			writeError(w, ErrStale.Error(), http.StatusConflict)
			return
		}
		slog.Error("view query failed", "view", view, "session", sess.ID, "err", err)
		body := map[string]interface{}{"error": MsgLoadFailed}
		if prev != nil {
			_, page, _ := s.tracker.Current(sess.ID, view)
			body["previous"] = prev.Render(page)
		}
		writeJSON(w, http.StatusBadGateway, body)
		return
	}

	res.QueryID = uuid.NewString()
	res.View = view
	res.CreatedAt = s.now()
	if err := s.tracker.Commit(sess.ID, view, gen, res); err != nil {
		slog.Info("discarding stale view result", "view", view, "session", sess.ID, "query", res.QueryID)
		writeError(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusOK, res.Render(1))
}

// Page handles GET /api/v1/views/{view}/page?n=
func (s *Service) Page(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	n := 1
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, "n must be an integer", http.StatusBadRequest)
			return
		}
		n = v
	}

	resp, err := s.tracker.Page(sess.ID, chi.URLParam(r, "view"), n)
	if err != nil {
		writeError(w, "no results to page; run the query first", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// NavigationResponse describes what the caller's role may see.
type NavigationResponse struct {
	Role             access.Role       `json:"role"`
	Menu             []access.MenuItem `json:"menu"`
	DefaultEventView access.ViewMode   `json:"default_event_view"`
	EventViews       []access.ViewMode `json:"event_views"`
	Ranking          string            `json:"ranking"`
}

// Navigation handles GET /api/v1/navigation
func (s *Service) Navigation(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, NavigationResponse{
		Role:             sess.Role,
		Menu:             access.Menu(sess.Role),
		DefaultEventView: access.DecideDefaultView(sess.Role),
		EventViews:       access.AllowedViews(sess.Role),
		Ranking:          s.policy.Label(sess.Role),
	})
}

// --- Helpers ---

func session(w http.ResponseWriter, r *http.Request) (*auth.Session, bool) {
	sess, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, "not authenticated", http.StatusUnauthorized)
		return nil, false
	}
	return sess, true
}

// orgScope limits queries to the caller's organization unless the caller
// sees every organization.
func orgScope(sess *auth.Session) *int64 {
	if sess.SuperAdmin() {
		return nil
	}
	id := sess.OrganizationID
	return &id
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// dayRange covers the whole calendar day of t.
func dayRange(t time.Time) model.TimeRange {
	start := startOfDay(t)
	return model.TimeRange{Start: start, End: start.Add(24*time.Hour - time.Nanosecond)}
}

// parseRange reads start and end query parameters. Each accepts RFC 3339 or
// a date; a date end covers its whole day. Missing values come from def.
func parseRange(q url.Values, def model.TimeRange) (model.TimeRange, error) {
	r := def
	if raw := q.Get("start"); raw != "" {
		t, _, err := parseTime(raw)
		if err != nil {
			return r, fmt.Errorf("invalid start: %s", raw)
		}
		r.Start = t
	}
	if raw := q.Get("end"); raw != "" {
		t, dateOnly, err := parseTime(raw)
		if err != nil {
			return r, fmt.Errorf("invalid end: %s", raw)
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		r.End = t
	}
	if r.Empty() {
		return r, errors.New("start must not be after end")
	}
	return r, nil
}

func parseTime(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	return t, true, err
}

func parseID(q url.Values, name string) (*int64, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be an integer", name)
	}
	return &id, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

func records[T any](rows []T) []interface{} {
	out := make([]interface{}, len(rows))
	for i, r := range rows {
		out[i] = r
	}
	return out
}
