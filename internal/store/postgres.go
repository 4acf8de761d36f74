package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/energysys/dashboard/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// Measures are stored as NUMERIC and read back as text for exact decimals.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// --- National time series ---

func (s *PostgresStore) listSeries(ctx context.Context, query string, r model.TimeRange) ([]model.SeriesPoint, error) {
	result := []model.SeriesPoint{}
	if r.Empty() {
		return result, nil
	}
	rows, err := s.pool.Query(ctx, query, r.Start, r.End)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p model.SeriesPoint
		var v *string
		if err := rows.Scan(&p.Timestamp, &v); err != nil {
			return nil, err
		}
		p.Timestamp = p.Timestamp.UTC()
		p.Value = parseNull(v)
		result = append(result, p)
	}
	return result, rows.Err()
}

func (s *PostgresStore) ListConsumption(ctx context.Context, r model.TimeRange) ([]model.SeriesPoint, error) {
	return s.listSeries(ctx,
		`SELECT timestamp, actual_consumption::TEXT
		 FROM national_consumption
		 WHERE timestamp BETWEEN $1 AND $2 AND actual_consumption IS NOT NULL
		 ORDER BY timestamp`, r)
}

func (s *PostgresStore) ListDemandForecast(ctx context.Context, r model.TimeRange) ([]model.SeriesPoint, error) {
	return s.listSeries(ctx,
		`SELECT timestamp, demand_forecast::TEXT
		 FROM national_consumption
		 WHERE timestamp BETWEEN $1 AND $2
		 ORDER BY timestamp`, r)
}

func (s *PostgresStore) ListClearingPrices(ctx context.Context, r model.TimeRange) ([]model.SeriesPoint, error) {
	return s.listSeries(ctx,
		`SELECT timestamp, price_ptf::TEXT
		 FROM market_prices
		 WHERE timestamp BETWEEN $1 AND $2
		 ORDER BY timestamp`, r)
}

func (s *PostgresStore) ListMarginalPrices(ctx context.Context, r model.TimeRange) ([]model.SeriesPoint, error) {
	return s.listSeries(ctx,
		`SELECT timestamp, price_smf::TEXT
		 FROM market_prices
		 WHERE timestamp BETWEEN $1 AND $2 AND price_smf IS NOT NULL
		 ORDER BY timestamp`, r)
}

func (s *PostgresStore) ListGeneration(ctx context.Context, f model.GenerationFilter) ([]model.GenerationRecord, error) {
	result := []model.GenerationRecord{}
	if f.Range.Empty() {
		return result, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT g.timestamp, g.power_plant_id, p.name, p.eic, p.fuel_type, p.organization_id,
		        g.actual_generation::TEXT, g.planned_generation::TEXT, g.settlement_generation::TEXT
		 FROM generation_data g
		 JOIN power_plants p ON p.id = g.power_plant_id
		 WHERE g.timestamp BETWEEN $1 AND $2
		   AND ($3::BIGINT IS NULL OR g.power_plant_id = $3)
		   AND ($4::BIGINT IS NULL OR p.organization_id = $4)
		 ORDER BY g.timestamp, g.power_plant_id`,
		f.Range.Start, f.Range.End, f.PlantID, f.OrganizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var g model.GenerationRecord
		var actual, planned, settlement *string
		if err := rows.Scan(&g.Timestamp, &g.PlantID, &g.PlantName, &g.EIC, &g.FuelType, &g.OrganizationID,
			&actual, &planned, &settlement); err != nil {
			return nil, err
		}
		g.Timestamp = g.Timestamp.UTC()
		g.Actual = parseNull(actual)
		g.Planned = parseNull(planned)
		g.Settlement = parseNull(settlement)
		result = append(result, g)
	}
	return result, rows.Err()
}

// --- Organizations ---

func (s *PostgresStore) CreateOrganization(ctx context.Context, org *model.Organization) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO organizations (name, eic, created_at)
		 VALUES ($1, $2, COALESCE($3, NOW()))
		 RETURNING id, created_at`,
		org.Name, org.EIC, nullTime(org.CreatedAt),
	).Scan(&org.ID, &org.CreatedAt)
	return mapErr(err, "create organization "+org.EIC)
}

func (s *PostgresStore) ListOrganizations(ctx context.Context) ([]model.Organization, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, eic, created_at FROM organizations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orgs := []model.Organization{}
	for rows.Next() {
		var o model.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.EIC, &o.CreatedAt); err != nil {
			return nil, err
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

func (s *PostgresStore) GetOrganization(ctx context.Context, id int64) (*model.Organization, error) {
	var o model.Organization
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, eic, created_at FROM organizations WHERE id = $1`, id).
		Scan(&o.ID, &o.Name, &o.EIC, &o.CreatedAt)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("get organization %d", id))
	}
	return &o, nil
}

func (s *PostgresStore) GetOrganizationByName(ctx context.Context, name string) (*model.Organization, error) {
	var o model.Organization
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, eic, created_at FROM organizations WHERE name = $1`, name).
		Scan(&o.ID, &o.Name, &o.EIC, &o.CreatedAt)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("get organization %q", name))
	}
	return &o, nil
}

// --- Power plants ---

const plantColumns = `id, name, eic, installed_capacity::TEXT, fuel_type,
	is_yekdem, is_res, current_status, organization_id`

func (s *PostgresStore) CreatePlant(ctx context.Context, p *model.PowerPlant) error {
	if p.CurrentStatus == "" {
		p.CurrentStatus = model.StatusActive
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO power_plants (name, eic, installed_capacity, fuel_type, is_yekdem, is_res, current_status, organization_id)
		 VALUES ($1, $2, $3::NUMERIC, $4, $5, $6, $7, $8)
		 RETURNING id`,
		p.Name, p.EIC, p.InstalledCapacity.String(), p.FuelType,
		p.IsYekdem, p.IsRES, p.CurrentStatus, p.OrganizationID,
	).Scan(&p.ID)
	return mapErr(err, "create plant "+p.EIC)
}

func (s *PostgresStore) GetPlant(ctx context.Context, id int64) (*model.PowerPlant, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+plantColumns+` FROM power_plants WHERE id = $1`, id)
	p, err := scanPlant(row)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("get plant %d", id))
	}
	return p, nil
}

func (s *PostgresStore) ListPlants(ctx context.Context, organizationID *int64) ([]model.PowerPlant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+plantColumns+` FROM power_plants
		 WHERE ($1::BIGINT IS NULL OR organization_id = $1)
		 ORDER BY id`, organizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	plants := []model.PowerPlant{}
	for rows.Next() {
		p, err := scanPlant(rows)
		if err != nil {
			return nil, err
		}
		plants = append(plants, *p)
	}
	return plants, rows.Err()
}

// --- Users ---

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (username, hashed_password, first_name, last_name, email, role, organization_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		u.Username, u.PasswordHash, u.FirstName, u.LastName, u.Email, u.Role, u.OrganizationID,
	).Scan(&u.ID)
	return mapErr(err, "create user "+u.Username)
}

const userColumns = `id, username, hashed_password, first_name, last_name, email, role, organization_id`

func (s *PostgresStore) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName,
			&u.Email, &u.Role, &u.OrganizationID); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName,
			&u.Email, &u.Role, &u.OrganizationID)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("get user %q", username))
	}
	return &u, nil
}

// --- Plant events ---

// StartPlantEvent inserts the event and updates the plant status in one
// transaction, then asks the database to regenerate simulated hourly data.
func (s *PostgresStore) StartPlantEvent(ctx context.Context, e *model.PlantEvent) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`UPDATE power_plants SET current_status = $2 WHERE id = $1
		 RETURNING name, organization_id`,
		e.PowerPlantID, e.EventType,
	).Scan(&e.PlantName, &e.OrganizationID)
	if err != nil {
		return mapErr(err, fmt.Sprintf("start event on plant %d", e.PowerPlantID))
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO plant_events (power_plant_id, event_type, reason, description, affected_capacity, start_time)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6)
		 RETURNING id`,
		e.PowerPlantID, e.EventType, e.Reason, e.Description, e.AffectedCapacity.String(), e.StartTime,
	).Scan(&e.ID)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.simulate(ctx)
	return nil
}

func (s *PostgresStore) FinishPlantEvent(ctx context.Context, id int64, end time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var plantID int64
	err = tx.QueryRow(ctx,
		`UPDATE plant_events SET end_time = $2 WHERE id = $1 RETURNING power_plant_id`,
		id, end,
	).Scan(&plantID)
	if err != nil {
		return mapErr(err, fmt.Sprintf("finish event %d", id))
	}

	if _, err := tx.Exec(ctx,
		`UPDATE power_plants SET current_status = $2 WHERE id = $1`,
		plantID, model.StatusActive); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.simulate(ctx)
	return nil
}

// simulate refreshes simulated generation after an event change. Failure
// leaves the event committed and is only logged.
func (s *PostgresStore) simulate(ctx context.Context) {
	if _, err := s.pool.Exec(ctx, `SELECT simulate_hourly_energy_data()`); err != nil {
		slog.Warn("simulate hourly energy data failed", "error", err)
	}
}

const eventSelect = `SELECT e.id, e.power_plant_id, p.name, p.organization_id, e.event_type, e.reason,
	COALESCE(e.description, ''), e.affected_capacity::TEXT, e.start_time, e.end_time
	FROM plant_events e JOIN power_plants p ON p.id = e.power_plant_id`

func (s *PostgresStore) GetPlantEvent(ctx context.Context, id int64) (*model.PlantEvent, error) {
	e, err := scanEvent(s.pool.QueryRow(ctx, eventSelect+` WHERE e.id = $1`, id))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("get event %d", id))
	}
	return e, nil
}

func (s *PostgresStore) ActivePlantEvent(ctx context.Context, plantID int64) (*model.PlantEvent, error) {
	e, err := scanEvent(s.pool.QueryRow(ctx,
		eventSelect+` WHERE e.power_plant_id = $1 AND e.end_time IS NULL
		ORDER BY e.start_time DESC LIMIT 1`, plantID))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("active event for plant %d", plantID))
	}
	return e, nil
}

func (s *PostgresStore) ListPlantEvents(ctx context.Context, f model.EventFilter) ([]model.PlantEvent, error) {
	rows, err := s.pool.Query(ctx,
		eventSelect+`
		WHERE ($1::BIGINT IS NULL OR e.power_plant_id = $1)
		  AND ($2::BIGINT IS NULL OR p.organization_id = $2)
		ORDER BY e.start_time DESC, e.id DESC`,
		f.PlantID, f.OrganizationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []model.PlantEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// --- Scan helpers ---

func scanPlant(row pgx.Row) (*model.PowerPlant, error) {
	var p model.PowerPlant
	var capacity string
	if err := row.Scan(&p.ID, &p.Name, &p.EIC, &capacity, &p.FuelType,
		&p.IsYekdem, &p.IsRES, &p.CurrentStatus, &p.OrganizationID); err != nil {
		return nil, err
	}
	p.InstalledCapacity, _ = decimal.NewFromString(capacity)
	return &p, nil
}

func scanEvent(row pgx.Row) (*model.PlantEvent, error) {
	var e model.PlantEvent
	var capacity string
	if err := row.Scan(&e.ID, &e.PowerPlantID, &e.PlantName, &e.OrganizationID, &e.EventType,
		&e.Reason, &e.Description, &capacity, &e.StartTime, &e.EndTime); err != nil {
		return nil, err
	}
	e.AffectedCapacity, _ = decimal.NewFromString(capacity)
	return &e, nil
}

// parseNull turns a nullable NUMERIC rendered as text into a NullDecimal.
// Values that do not parse are treated as missing.
func parseNull(s *string) decimal.NullDecimal {
	if s == nil {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// mapErr translates driver errors into the store sentinels.
func mapErr(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
