// Package asset provides the HTTP handlers for managing organizations,
// power plants, users and plant outage events.
//
// Capacities use shopspring/decimal, never float64.
package asset

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/energysys/dashboard/internal/access"
	"github.com/energysys/dashboard/internal/auth"
	"github.com/energysys/dashboard/internal/eic"
	"github.com/energysys/dashboard/internal/metrics"
	"github.com/energysys/dashboard/internal/model"
	"github.com/energysys/dashboard/internal/outage"
	"github.com/energysys/dashboard/internal/store"
)

const (
	msgForbidden = "no transaction authorization"
	msgNotFound  = "Not found"
)

// Service handles asset management. Event writes are serialized so the
// ongoing-event check and the insert cannot interleave (single-instance).
type Service struct {
	store store.Store
	mu    sync.Mutex
	wsHub *WSHub // optional WebSocket hub for event notifications

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// NewService creates a new asset service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(st store.Store, hub *WSHub) *Service {
	return &Service{store: st, wsHub: hub, Clock: time.Now}
}

// Routes registers the asset endpoints on r. The caller is expected to
// mount r behind the authentication middleware.
func (s *Service) Routes(r chi.Router) {
	r.Post("/organizations", s.CreateOrganization)
	r.Get("/organizations", s.ListOrganizations)
	r.Post("/plants", s.CreatePlant)
	r.Get("/plants", s.ListPlants)
	r.Post("/users", s.CreateUser)
	r.Get("/users", s.ListUsers)
	r.Post("/plant-events", s.StartEvent)
	r.Put("/plant-events/finish", s.FinishEvent)
	r.Get("/plant-events", s.ListEvents)
}

// --- Request types ---

// CreateOrganizationRequest is the JSON body for POST /organizations.
type CreateOrganizationRequest struct {
	Name string `json:"name"`
	EIC  string `json:"eic"`
}

// CreatePlantRequest is the JSON body for POST /plants.
type CreatePlantRequest struct {
	Name              string          `json:"name"`
	EIC               string          `json:"eic"`
	InstalledCapacity decimal.Decimal `json:"installed_capacity"` // MW
	FuelType          string          `json:"fuel_type"`
	OrganizationName  string          `json:"organization_name"`
	IsYekdem          bool            `json:"is_yekdem"`
	IsRES             bool            `json:"is_res"`
}

// CreateUserRequest is the JSON body for POST /users.
type CreateUserRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	OrganizationID int64  `json:"organization_id"`
}

// StartEventRequest is the JSON body for POST /plant-events.
type StartEventRequest struct {
	PowerPlantID     int64           `json:"power_plant_id"`
	EventType        string          `json:"event_type"` // "Maintenance" or "Failure"
	Reason           string          `json:"reason"`
	Description      string          `json:"description"`
	AffectedCapacity decimal.Decimal `json:"affected_capacity"` // MW
	StartTime        *time.Time      `json:"start_time"`        // nil → now; never later than now
}

// FinishEventRequest is the JSON body for PUT /plant-events/finish.
type FinishEventRequest struct {
	EventID int64 `json:"event_id"`
}

// --- Organizations ---

// CreateOrganization handles POST /api/v1/organizations
func (s *Service) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, access.ActionManageOrganizations); !ok {
		return
	}
	var req CreateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, "name is required", http.StatusBadRequest)
		return
	}
	code, err := eic.Parse(req.EIC)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	org := &model.Organization{Name: req.Name, EIC: code.Value, CreatedAt: s.Clock().UTC()}
	if err := s.store.CreateOrganization(r.Context(), org); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, "An organization with this name or EIC code already exists.", http.StatusBadRequest)
			return
		}
		internalError(w, "create organization", err)
		return
	}

	slog.Info("organization created", "id", org.ID, "name", org.Name, "eic", org.EIC)
	writeJSON(w, http.StatusCreated, org)
}

// ListOrganizations handles GET /api/v1/organizations
func (s *Service) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, access.ActionManageOrganizations); !ok {
		return
	}
	orgs, err := s.store.ListOrganizations(r.Context())
	if err != nil {
		internalError(w, "list organizations", err)
		return
	}
	writeJSON(w, http.StatusOK, orgs)
}

// --- Power plants ---

// CreatePlant handles POST /api/v1/plants
func (s *Service) CreatePlant(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, access.ActionManagePlants); !ok {
		return
	}
	var req CreatePlantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// --- Input validation ---
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, "name is required", http.StatusBadRequest)
		return
	}
	code, err := eic.Parse(req.EIC)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !req.InstalledCapacity.IsPositive() {
		writeError(w, "installed_capacity must be positive", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	org, err := s.store.GetOrganizationByName(ctx, req.OrganizationName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "Organization not found: "+req.OrganizationName, http.StatusNotFound)
			return
		}
		internalError(w, "lookup organization", err)
		return
	}

	plant := &model.PowerPlant{
		Name:              strings.TrimSpace(req.Name),
		EIC:               code.Value,
		InstalledCapacity: req.InstalledCapacity,
		FuelType:          req.FuelType,
		IsYekdem:          req.IsYekdem,
		IsRES:             req.IsRES,
		CurrentStatus:     model.StatusActive,
		OrganizationID:    org.ID,
	}
	if err := s.store.CreatePlant(ctx, plant); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, "A power plant with this EIC code already exists.", http.StatusBadRequest)
			return
		}
		internalError(w, "create plant", err)
		return
	}

	slog.Info("power plant created",
		"id", plant.ID,
		"eic", plant.EIC,
		"organization", org.Name,
		"capacity", plant.InstalledCapacity.String(),
	)
	writeJSON(w, http.StatusCreated, plant)
}

// ListPlants handles GET /api/v1/plants
// Super admins may filter by ?organization_id=; everyone else sees their
// own organization.
func (s *Service) ListPlants(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	var orgID *int64
	if sess.SuperAdmin() {
		if raw := r.URL.Query().Get("organization_id"); raw != "" {
			id, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				writeError(w, "organization_id must be an integer", http.StatusBadRequest)
				return
			}
			orgID = &id
		}
	} else {
		orgID = &sess.OrganizationID
	}

	plants, err := s.store.ListPlants(r.Context(), orgID)
	if err != nil {
		internalError(w, "list plants", err)
		return
	}
	writeJSON(w, http.StatusOK, plants)
}

// --- Users ---

// CreateUser handles POST /api/v1/users
func (s *Service) CreateUser(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, access.ActionManageUsers); !ok {
		return
	}
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, "username and password are required", http.StatusBadRequest)
		return
	}
	role := access.Role(req.Role)
	if access.Resolve(role) != role {
		writeError(w, "role must be super_admin, admin or analyst", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if _, err := s.store.GetOrganization(ctx, req.OrganizationID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "Organization not found: "+strconv.FormatInt(req.OrganizationID, 10), http.StatusNotFound)
			return
		}
		internalError(w, "lookup organization", err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		internalError(w, "hash password", err)
		return
	}
	user := &model.User{
		Username:       req.Username,
		PasswordHash:   hash,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Email:          req.Email,
		Role:           string(role),
		OrganizationID: req.OrganizationID,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, "This user already exists.", http.StatusBadRequest)
			return
		}
		internalError(w, "create user", err)
		return
	}

	slog.Info("user created", "id", user.ID, "username", user.Username, "role", user.Role)
	writeJSON(w, http.StatusCreated, user)
}

// ListUsers handles GET /api/v1/users
func (s *Service) ListUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := authorize(w, r, access.ActionManageUsers); !ok {
		return
	}
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		internalError(w, "list users", err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// --- Plant events ---

// StartEvent handles POST /api/v1/plant-events
// Puts a plant into maintenance or failure.
func (s *Service) StartEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := authorize(w, r, access.ActionCreateEvent)
	if !ok {
		return
	}
	var req StartEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	// Serialize event writes.
	s.mu.Lock()
	defer s.mu.Unlock()

	plant, err := s.store.GetPlant(ctx, req.PowerPlantID)
	if err != nil || !visible(sess, plant.OrganizationID) {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			internalError(w, "get plant", err)
			return
		}
		writeError(w, msgNotFound, http.StatusNotFound)
		return
	}

	ongoing, err := s.store.ActivePlantEvent(ctx, plant.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		internalError(w, "active event", err)
		return
	}

	now := s.Clock().UTC()
	start := now
	if req.StartTime != nil {
		start = req.StartTime.UTC()
	}
	typ, err := outage.ValidateStart(*plant, ongoing, outage.StartRequest{
		EventType:        req.EventType,
		Reason:           req.Reason,
		AffectedCapacity: req.AffectedCapacity,
		StartTime:        start,
		Now:              now,
	})
	if err != nil {
		writeError(w, outage.Message(err), http.StatusBadRequest)
		return
	}
	event := &model.PlantEvent{
		PowerPlantID:     plant.ID,
		EventType:        typ,
		Reason:           strings.TrimSpace(req.Reason),
		Description:      req.Description,
		AffectedCapacity: req.AffectedCapacity,
		StartTime:        start,
	}
	if err := s.store.StartPlantEvent(ctx, event); err != nil {
		internalError(w, "start event", err)
		return
	}
	metrics.PlantEvents.WithLabelValues("start", typ).Inc()

	slog.Info("plant event started",
		"event_id", event.ID,
		"plant", plant.Name,
		"type", typ,
		"affected_capacity", event.AffectedCapacity.String(),
		"user", sess.Username,
	)

	s.notify(MsgEventStarted, event, typ)
	writeJSON(w, http.StatusCreated, event)
}

// FinishEvent handles PUT /api/v1/plant-events/finish
// Ends an ongoing event and returns the plant to Active.
func (s *Service) FinishEvent(w http.ResponseWriter, r *http.Request) {
	sess, ok := authorize(w, r, access.ActionFinishEvent)
	if !ok {
		return
	}
	var req FinishEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	s.mu.Lock()
	defer s.mu.Unlock()

	event, err := s.store.GetPlantEvent(ctx, req.EventID)
	if err != nil || !visible(sess, event.OrganizationID) {
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			internalError(w, "get event", err)
			return
		}
		writeError(w, msgNotFound, http.StatusNotFound)
		return
	}

	end := s.Clock().UTC()
	if err := outage.ValidateFinish(*event, end); err != nil {
		writeError(w, outage.Message(err), http.StatusBadRequest)
		return
	}
	if err := s.store.FinishPlantEvent(ctx, event.ID, end); err != nil {
		internalError(w, "finish event", err)
		return
	}
	event.EndTime = &end
	metrics.PlantEvents.WithLabelValues("finish", event.EventType).Inc()

	slog.Info("plant event finished",
		"event_id", event.ID,
		"plant", event.PlantName,
		"duration", end.Sub(event.StartTime).String(),
		"user", sess.Username,
	)

	s.notify(MsgEventFinished, event, model.StatusActive)
	writeJSON(w, http.StatusOK, event)
}

// ListEvents handles GET /api/v1/plant-events?power_plant_id=
// Events are newest first and limited to the caller's organization unless
// the caller is a super admin.
func (s *Service) ListEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := session(w, r)
	if !ok {
		return
	}
	var f model.EventFilter
	if !sess.SuperAdmin() {
		f.OrganizationID = &sess.OrganizationID
	}
	if raw := r.URL.Query().Get("power_plant_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, "power_plant_id must be an integer", http.StatusBadRequest)
			return
		}
		f.PlantID = &id
	}

	events, err := s.store.ListPlantEvents(r.Context(), f)
	if err != nil {
		internalError(w, "list events", err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Service) notify(typ string, e *model.PlantEvent, status string) {
	if s.wsHub == nil {
		return
	}
	at := e.StartTime
	if e.EndTime != nil {
		at = *e.EndTime
	}
	s.wsHub.Broadcast(WSMessage{
		Type:             typ,
		EventID:          e.ID,
		PowerPlantID:     e.PowerPlantID,
		PlantName:        e.PlantName,
		OrganizationID:   e.OrganizationID,
		EventType:        e.EventType,
		PlantStatus:      status,
		AffectedCapacity: e.AffectedCapacity.String(),
		At:               at.Format(time.RFC3339),
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

// authorize checks the caller's role against the action table.
func authorize(w http.ResponseWriter, r *http.Request, action access.Action) (*auth.Session, bool) {
	sess, ok := session(w, r)
	if !ok {
		return nil, false
	}
	if !access.Can(sess.Role, action) {
		writeError(w, msgForbidden, http.StatusForbidden)
		return nil, false
	}
	return sess, true
}

// visible hides other organizations' plants from everyone but super admins.
func visible(sess *auth.Session, organizationID int64) bool {
	return sess.SuperAdmin() || sess.OrganizationID == organizationID
}

func internalError(w http.ResponseWriter, op string, err error) {
	slog.Error(op+" failed", "err", err)
	writeError(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
