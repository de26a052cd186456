package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kilianp07/smartcharge/core/model"
)

// PostgresHistory records decisions, charging sessions and the price log in
// Postgres via pgx.
type PostgresHistory struct {
	pool *pgxpool.Pool
}

const historySchema = `
CREATE TABLE IF NOT EXISTS decisions (
	id          UUID PRIMARY KEY,
	vehicle_id  TEXT NOT NULL,
	action      TEXT NOT NULL,
	target_soc  INT NOT NULL,
	reasoning   TEXT NOT NULL,
	computed_at TIMESTAMPTZ NOT NULL,
	degraded    BOOLEAN NOT NULL DEFAULT FALSE,
	overridden  BOOLEAN NOT NULL DEFAULT FALSE,
	urgency     DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS decisions_vehicle_time ON decisions (vehicle_id, computed_at DESC);

CREATE TABLE IF NOT EXISTS charging_sessions (
	id            UUID PRIMARY KEY,
	vehicle_id    TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	ended_at      TIMESTAMPTZ,
	start_soc     INT NOT NULL,
	end_soc       INT NOT NULL,
	energy_kwh    DOUBLE PRECISION NOT NULL,
	spot_cost_sek DOUBLE PRECISION NOT NULL,
	grid_cost_sek DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS charging_sessions_started ON charging_sessions (started_at DESC);

CREATE TABLE IF NOT EXISTS price_log (
	ts         TIMESTAMPTZ PRIMARY KEY,
	price_sek  DOUBLE PRECISION NOT NULL,
	forecasted BOOLEAN NOT NULL
);
`

// NewPostgresHistory connects the pool and bootstraps the schema.
func NewPostgresHistory(ctx context.Context, dsn string) (*PostgresHistory, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := pool.Exec(ctx, historySchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return &PostgresHistory{pool: pool}, nil
}

// AppendDecision inserts the decision. The deterministic decision id makes
// re-running a cycle a no-op instead of a duplicate row.
func (h *PostgresHistory) AppendDecision(ctx context.Context, d model.Decision) error {
	_, err := h.pool.Exec(ctx, `
		INSERT INTO decisions (id, vehicle_id, action, target_soc, reasoning, computed_at, degraded, overridden, urgency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`, d.ID, d.VehicleID, string(d.Action), d.TargetSoC, d.Reasoning, d.ComputedAt, d.Degraded, d.Overridden, d.Urgency)
	return err
}

func (h *PostgresHistory) Decisions(ctx context.Context, vehicleID string, from, to time.Time, limit int) ([]model.Decision, error) {
	if limit <= 0 {
		limit = 500
	}
	if to.IsZero() {
		to = time.Now().Add(24 * time.Hour)
	}
	rows, err := h.pool.Query(ctx, `
		SELECT id, vehicle_id, action, target_soc, reasoning, computed_at, degraded, overridden, urgency
		FROM decisions
		WHERE ($1 = '' OR vehicle_id = $1) AND computed_at >= $2 AND computed_at <= $3
		ORDER BY computed_at DESC
		LIMIT $4
	`, vehicleID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.Decision
	for rows.Next() {
		var d model.Decision
		var action string
		if err := rows.Scan(&d.ID, &d.VehicleID, &action, &d.TargetSoC, &d.Reasoning, &d.ComputedAt, &d.Degraded, &d.Overridden, &d.Urgency); err != nil {
			return nil, err
		}
		d.Action = model.Action(action)
		res = append(res, d)
	}
	return res, rows.Err()
}

func (h *PostgresHistory) AppendSession(ctx context.Context, s model.ChargingSession) error {
	_, err := h.pool.Exec(ctx, `
		INSERT INTO charging_sessions (id, vehicle_id, started_at, ended_at, start_soc, end_soc, energy_kwh, spot_cost_sek, grid_cost_sek)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			ended_at = EXCLUDED.ended_at,
			end_soc = EXCLUDED.end_soc,
			energy_kwh = EXCLUDED.energy_kwh,
			spot_cost_sek = EXCLUDED.spot_cost_sek,
			grid_cost_sek = EXCLUDED.grid_cost_sek
	`, s.ID, s.VehicleID, s.StartedAt, nullableTime(s.EndedAt), s.StartSoC, s.EndSoC, s.EnergyKWh, s.SpotCostSEK, s.GridCostSEK)
	return err
}

func (h *PostgresHistory) Sessions(ctx context.Context, from, to time.Time) ([]model.ChargingSession, error) {
	if to.IsZero() {
		to = time.Now().Add(24 * time.Hour)
	}
	rows, err := h.pool.Query(ctx, `
		SELECT id, vehicle_id, started_at, ended_at, start_soc, end_soc, energy_kwh, spot_cost_sek, grid_cost_sek
		FROM charging_sessions
		WHERE started_at >= $1 AND started_at <= $2
		ORDER BY started_at
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []model.ChargingSession
	for rows.Next() {
		var s model.ChargingSession
		var ended *time.Time
		if err := rows.Scan(&s.ID, &s.VehicleID, &s.StartedAt, &ended, &s.StartSoC, &s.EndSoC, &s.EnergyKWh, &s.SpotCostSEK, &s.GridCostSEK); err != nil {
			return nil, err
		}
		if ended != nil {
			s.EndedAt = *ended
		} else {
			s.Active = true
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// AppendPrices upserts the hourly points. A confirmed price replaces a
// forecasted one but is itself never overwritten.
func (h *PostgresHistory) AppendPrices(ctx context.Context, points model.PriceSeries) error {
	for _, p := range points {
		if _, err := h.pool.Exec(ctx, `
			INSERT INTO price_log (ts, price_sek, forecasted)
			VALUES ($1, $2, $3)
			ON CONFLICT (ts) DO UPDATE SET
				price_sek = EXCLUDED.price_sek,
				forecasted = EXCLUDED.forecasted
			WHERE price_log.forecasted
		`, p.Timestamp, p.Price, p.IsForecasted); err != nil {
			return err
		}
	}
	return nil
}

func (h *PostgresHistory) Prices(ctx context.Context, from, to time.Time) (model.PriceSeries, error) {
	rows, err := h.pool.Query(ctx, `
		SELECT ts, price_sek, forecasted FROM price_log
		WHERE ts >= $1 AND ts < $2
		ORDER BY ts
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res model.PriceSeries
	for rows.Next() {
		var p model.PricePoint
		if err := rows.Scan(&p.Timestamp, &p.Price, &p.IsForecasted); err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (h *PostgresHistory) Prune(ctx context.Context, olderThan time.Time) error {
	for _, q := range []string{
		`DELETE FROM decisions WHERE computed_at < $1`,
		`DELETE FROM charging_sessions WHERE started_at < $1`,
		`DELETE FROM price_log WHERE ts < $1`,
	} {
		if _, err := h.pool.Exec(ctx, q, olderThan); err != nil {
			return err
		}
	}
	return nil
}

func (h *PostgresHistory) Close() { h.pool.Close() }

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
