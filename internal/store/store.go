// Package store persists and retrieves PXI domain rows. All multi-row
// writes are batched inside a single transaction; every query is
// parameterized.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/pxi/internal/database"
	"github.com/aristath/pxi/internal/domain"
)

// Store is the PXI persistence layer, backed by the embedded database.DB.
type Store struct {
	db  *database.DB
	log zerolog.Logger
}

// New builds a Store over an already-migrated database.DB.
func New(db *database.DB, log zerolog.Logger) *Store {
	return &Store{db: db, log: log.With().Str("component", "store").Logger()}
}

// Ping verifies the underlying connection is reachable, used by the health
// endpoint to distinguish a degraded pipeline from a dead database.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Conn().PingContext(ctx)
}

// UpsertSamples writes a batch of samples, newer IngestedAt winning on
// (indicatorId, sourceTimestamp) collision.
func (s *Store) UpsertSamples(ctx context.Context, samples []domain.Sample) error {
	if len(samples) == 0 {
		return nil
	}
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO samples (indicator_id, value, unit, source_timestamp, ingested_at, metadata)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (indicator_id, source_timestamp) DO UPDATE SET
				value = excluded.value,
				unit = excluded.unit,
				ingested_at = excluded.ingested_at,
				metadata = excluded.metadata
			WHERE excluded.ingested_at >= samples.ingested_at
		`)
		if err != nil {
			return fmt.Errorf("prepare upsert samples: %w", err)
		}
		defer stmt.Close()

		for _, sample := range samples {
			meta, err := json.Marshal(sample.Metadata)
			if err != nil {
				return fmt.Errorf("marshal metadata for %s: %w", sample.IndicatorID, err)
			}
			if _, err := stmt.ExecContext(ctx,
				sample.IndicatorID, sample.Value, sample.Unit,
				sample.SourceTimestamp.UTC().Unix(), sample.IngestedAt.UTC().Unix(), string(meta),
			); err != nil {
				return fmt.Errorf("upsert sample for %s: %w", sample.IndicatorID, err)
			}
		}
		return nil
	})
}

// FetchLatestSamplePerIndicator returns the most recent sample for each
// indicator that has at least one stored sample.
func (s *Store) FetchLatestSamplePerIndicator(ctx context.Context) (map[string]domain.Sample, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT s.indicator_id, s.value, s.unit, s.source_timestamp, s.ingested_at, s.metadata
		FROM samples s
		INNER JOIN (
			SELECT indicator_id, MAX(source_timestamp) AS max_ts
			FROM samples GROUP BY indicator_id
		) latest ON latest.indicator_id = s.indicator_id AND latest.max_ts = s.source_timestamp
	`)
	if err != nil {
		return nil, fmt.Errorf("fetch latest samples: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Sample)
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		out[sample.IndicatorID] = sample
	}
	return out, rows.Err()
}

// FetchHistorical returns raw samples for one indicator since the given
// time, ordered oldest-first.
func (s *Store) FetchHistorical(ctx context.Context, indicatorID string, since time.Time) ([]domain.Sample, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT indicator_id, value, unit, source_timestamp, ingested_at, metadata
		FROM samples
		WHERE indicator_id = ? AND source_timestamp >= ?
		ORDER BY source_timestamp ASC
	`, indicatorID, since.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("fetch historical for %s: %w", indicatorID, err)
	}
	defer rows.Close()

	var out []domain.Sample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sample)
	}
	return out, rows.Err()
}

// FetchHistoricalDaily returns the last `days` daily-resampled rows for an
// indicator, oldest-first.
func (s *Store) FetchHistoricalDaily(ctx context.Context, indicatorID string, days int) ([]domain.HistoryDaily, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT indicator_id, date, value, source FROM history_daily
		WHERE indicator_id = ?
		ORDER BY date DESC LIMIT ?
	`, indicatorID, days)
	if err != nil {
		return nil, fmt.Errorf("fetch historical daily for %s: %w", indicatorID, err)
	}
	defer rows.Close()

	var out []domain.HistoryDaily
	for rows.Next() {
		var h domain.HistoryDaily
		if err := rows.Scan(&h.IndicatorID, &h.Date, &h.Value, &h.Source); err != nil {
			return nil, fmt.Errorf("scan history_daily row: %w", err)
		}
		out = append(out, h)
	}
	reverse(out)
	return out, rows.Err()
}

// UpsertHistoricalDaily writes daily-resampled rows, replacing any existing
// row for the same (indicatorId, date).
func (s *Store) UpsertHistoricalDaily(ctx context.Context, rows []domain.HistoryDaily) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO history_daily (indicator_id, date, value, source)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (indicator_id, date) DO UPDATE SET value = excluded.value, source = excluded.source
		`)
		if err != nil {
			return fmt.Errorf("prepare upsert history_daily: %w", err)
		}
		defer stmt.Close()
		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx, r.IndicatorID, r.Date, r.Value, r.Source); err != nil {
				return fmt.Errorf("upsert history_daily for %s/%s: %w", r.IndicatorID, r.Date, err)
			}
		}
		return nil
	})
}

// FetchLatestStats returns the most recent StatsSnapshot per indicator.
func (s *Store) FetchLatestStats(ctx context.Context) (map[string]domain.StatsSnapshot, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT indicator_id, window_days, mean, stddev, n, min_value, max_value, as_of
		FROM stats_snapshots
	`)
	if err != nil {
		return nil, fmt.Errorf("fetch latest stats: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.StatsSnapshot)
	for rows.Next() {
		var snap domain.StatsSnapshot
		var stddev sql.NullFloat64
		var asOf int64
		if err := rows.Scan(&snap.IndicatorID, &snap.WindowDays, &snap.Mean, &stddev, &snap.N, &snap.Min, &snap.Max, &asOf); err != nil {
			return nil, fmt.Errorf("scan stats_snapshot row: %w", err)
		}
		if stddev.Valid {
			v := stddev.Float64
			snap.Stddev = &v
		}
		snap.AsOf = time.Unix(asOf, 0).UTC()
		out[snap.IndicatorID] = snap
	}
	return out, rows.Err()
}

// UpsertStatsSnapshot writes one indicator's latest snapshot for a window.
func (s *Store) UpsertStatsSnapshot(ctx context.Context, snap domain.StatsSnapshot) error {
	var stddev sql.NullFloat64
	if snap.Stddev != nil {
		stddev = sql.NullFloat64{Float64: *snap.Stddev, Valid: true}
	}
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO stats_snapshots (indicator_id, window_days, mean, stddev, n, min_value, max_value, as_of)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (indicator_id, window_days) DO UPDATE SET
			mean = excluded.mean, stddev = excluded.stddev, n = excluded.n,
			min_value = excluded.min_value, max_value = excluded.max_value, as_of = excluded.as_of
	`, snap.IndicatorID, snap.WindowDays, snap.Mean, stddev, snap.N, snap.Min, snap.Max, snap.AsOf.UTC().Unix())
	if err != nil {
		return fmt.Errorf("upsert stats_snapshot for %s: %w", snap.IndicatorID, err)
	}
	return nil
}

// InsertZScores batch-writes z-score rows, upserting on (indicatorId, timestamp).
func (s *Store) InsertZScores(ctx context.Context, zs []domain.ZScore) error {
	if len(zs) == 0 {
		return nil
	}
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO zscores (indicator_id, timestamp, raw_value, mean, stddev, z)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (indicator_id, timestamp) DO UPDATE SET
				raw_value = excluded.raw_value, mean = excluded.mean, stddev = excluded.stddev, z = excluded.z
		`)
		if err != nil {
			return fmt.Errorf("prepare insert zscores: %w", err)
		}
		defer stmt.Close()
		for _, z := range zs {
			var stddev, zVal sql.NullFloat64
			if z.Stddev != nil {
				stddev = sql.NullFloat64{Float64: *z.Stddev, Valid: true}
			}
			if z.Z != nil {
				zVal = sql.NullFloat64{Float64: *z.Z, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, z.IndicatorID, z.Timestamp.UTC().Unix(), z.RawValue, z.Mean, stddev, zVal); err != nil {
				return fmt.Errorf("insert zscore for %s: %w", z.IndicatorID, err)
			}
		}
		return nil
	})
}

// InsertContributions batch-writes one composite calculation's per-indicator
// contributions.
func (s *Store) InsertContributions(ctx context.Context, calculatedAt time.Time, contribs []domain.MetricContribution) error {
	if len(contribs) == 0 {
		return nil
	}
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO contributions (calculated_at, indicator_id, value, z, normalized_weight, contribution)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (calculated_at, indicator_id) DO UPDATE SET
				value = excluded.value, z = excluded.z, normalized_weight = excluded.normalized_weight, contribution = excluded.contribution
		`)
		if err != nil {
			return fmt.Errorf("prepare insert contributions: %w", err)
		}
		defer stmt.Close()
		for _, c := range contribs {
			var zVal sql.NullFloat64
			if c.Z != nil {
				zVal = sql.NullFloat64{Float64: *c.Z, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx, calculatedAt.UTC().Unix(), c.IndicatorID, c.Value, zVal, c.NormalizedWeight, c.Contribution); err != nil {
				return fmt.Errorf("insert contribution for %s: %w", c.IndicatorID, err)
			}
		}
		return nil
	})
}

// InsertComposite upserts one composite row, keyed by CalculatedAt.
func (s *Store) InsertComposite(ctx context.Context, c domain.Composite) error {
	_, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO composites (calculated_at, raw_pxi, pxi, regime, total_weight, pamp_count, stress_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (calculated_at) DO UPDATE SET
			raw_pxi = excluded.raw_pxi, pxi = excluded.pxi, regime = excluded.regime,
			total_weight = excluded.total_weight, pamp_count = excluded.pamp_count, stress_count = excluded.stress_count
	`, c.CalculatedAt.UTC().Unix(), c.RawPxi, c.Pxi, string(c.Regime), c.TotalWeight, c.PampCount, c.StressCount)
	if err != nil {
		return fmt.Errorf("insert composite: %w", err)
	}
	return s.InsertContributions(ctx, c.CalculatedAt, c.Metrics)
}

// FetchLatestComposite returns the most recent composite row along with its
// per-indicator contributions, or sql.ErrNoRows if no tick has run yet.
func (s *Store) FetchLatestComposite(ctx context.Context) (domain.Composite, error) {
	row := s.db.Conn().QueryRowContext(ctx, `
		SELECT calculated_at, raw_pxi, pxi, regime, total_weight, pamp_count, stress_count
		FROM composites ORDER BY calculated_at DESC LIMIT 1
	`)
	var c domain.Composite
	var calculatedAt int64
	var regime string
	if err := row.Scan(&calculatedAt, &c.RawPxi, &c.Pxi, &regime, &c.TotalWeight, &c.PampCount, &c.StressCount); err != nil {
		return domain.Composite{}, fmt.Errorf("fetch latest composite: %w", err)
	}
	c.CalculatedAt = time.Unix(calculatedAt, 0).UTC()
	c.Regime = domain.Regime(regime)

	metrics, err := s.fetchContributions(ctx, c.CalculatedAt)
	if err != nil {
		return domain.Composite{}, err
	}
	c.Metrics = metrics
	return c, nil
}

func (s *Store) fetchContributions(ctx context.Context, calculatedAt time.Time) ([]domain.MetricContribution, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT indicator_id, value, z, normalized_weight, contribution
		FROM contributions WHERE calculated_at = ?
	`, calculatedAt.UTC().Unix())
	if err != nil {
		return nil, fmt.Errorf("fetch contributions: %w", err)
	}
	defer rows.Close()

	var out []domain.MetricContribution
	for rows.Next() {
		var m domain.MetricContribution
		var z sql.NullFloat64
		if err := rows.Scan(&m.IndicatorID, &m.Value, &z, &m.NormalizedWeight, &m.Contribution); err != nil {
			return nil, fmt.Errorf("scan contribution row: %w", err)
		}
		if z.Valid {
			v := z.Float64
			m.Z = &v
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// FetchPxiHistory returns the last `days` days of composite rows,
// oldest-first.
func (s *Store) FetchPxiHistory(ctx context.Context, days int) ([]domain.Composite, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Unix()
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT calculated_at, raw_pxi, pxi, regime, total_weight, pamp_count, stress_count
		FROM composites WHERE calculated_at >= ? ORDER BY calculated_at ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("fetch pxi history: %w", err)
	}
	defer rows.Close()

	var out []domain.Composite
	for rows.Next() {
		var c domain.Composite
		var calculatedAt int64
		var regime string
		if err := rows.Scan(&calculatedAt, &c.RawPxi, &c.Pxi, &regime, &c.TotalWeight, &c.PampCount, &c.StressCount); err != nil {
			return nil, fmt.Errorf("scan composite row: %w", err)
		}
		c.CalculatedAt = time.Unix(calculatedAt, 0).UTC()
		c.Regime = domain.Regime(regime)
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertAlerts batch-inserts new alert rows. Alerts are append-only; this
// never updates an existing row.
func (s *Store) InsertAlerts(ctx context.Context, alerts []domain.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	return s.db.WithTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO alerts (id, alert_type, indicator_id, timestamp, raw_value, z, threshold, message, severity, acknowledged)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
		`)
		if err != nil {
			return fmt.Errorf("prepare insert alerts: %w", err)
		}
		defer stmt.Close()
		for _, a := range alerts {
			if a.ID == "" {
				a.ID = uuid.NewString()
			}
			if _, err := stmt.ExecContext(ctx, a.ID, string(a.AlertType), a.IndicatorID,
				a.Timestamp.UTC().Unix(), a.RawValue, a.Z, a.Threshold, a.Message, string(a.Severity)); err != nil {
				return fmt.Errorf("insert alert %s: %w", a.ID, err)
			}
		}
		return nil
	})
}

// FetchRecentAlerts returns alerts, acknowledged or not, of the given type (empty
// for any type) and indicator (nil for any indicator) from the last `days`
// days, newest-first. Used both by the Read API and the bound-suggestion
// alert's 30-day lookback.
func (s *Store) FetchRecentAlerts(ctx context.Context, alertType domain.AlertType, indicatorID *string, days int) ([]domain.Alert, error) {
	since := time.Now().UTC().AddDate(0, 0, -days).Unix()
	query := `SELECT id, alert_type, indicator_id, timestamp, raw_value, z, threshold, message, severity, acknowledged
		FROM alerts WHERE timestamp >= ?`
	args := []interface{}{since}
	if alertType != "" {
		query += " AND alert_type = ?"
		args = append(args, string(alertType))
	}
	if indicatorID != nil {
		query += " AND indicator_id = ?"
		args = append(args, *indicatorID)
	}
	query += " ORDER BY timestamp DESC"

	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch recent alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var ts int64
		var acknowledged int
		var kind, severity string
		if err := rows.Scan(&a.ID, &kind, &a.IndicatorID, &ts, &a.RawValue, &a.Z, &a.Threshold, &a.Message, &severity, &acknowledged); err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}
		a.AlertType = domain.AlertType(kind)
		a.Severity = domain.Severity(severity)
		a.Timestamp = time.Unix(ts, 0).UTC()
		a.Acknowledged = acknowledged != 0
		out = append(out, a)
	}
	return out, rows.Err()
}

// AcknowledgeAlert sets Acknowledged = true, the only permitted mutation on
// an alert row.
func (s *Store) AcknowledgeAlert(ctx context.Context, id string) error {
	res, err := s.db.Conn().ExecContext(ctx, `UPDATE alerts SET acknowledged = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("acknowledge alert %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("acknowledge alert %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("acknowledge alert %s: not found", id)
	}
	return nil
}

// InsertRegime upserts one day's regime row, keyed by Date.
func (s *Store) InsertRegime(ctx context.Context, r domain.RegimeRow) error {
	features, err := json.Marshal(r.Features)
	if err != nil {
		return fmt.Errorf("marshal regime features: %w", err)
	}
	centroid, err := json.Marshal(r.Centroid)
	if err != nil {
		return fmt.Errorf("marshal regime centroid: %w", err)
	}
	probs, err := json.Marshal(r.Probabilities)
	if err != nil {
		return fmt.Errorf("marshal regime probabilities: %w", err)
	}
	_, err = s.db.Conn().ExecContext(ctx, `
		INSERT INTO regimes (date, regime, cluster_id, features, centroid, probabilities)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (date) DO UPDATE SET
			regime = excluded.regime, cluster_id = excluded.cluster_id,
			features = excluded.features, centroid = excluded.centroid, probabilities = excluded.probabilities
	`, r.Date, string(r.Regime), r.ClusterID, string(features), string(centroid), string(probs))
	if err != nil {
		return fmt.Errorf("insert regime for %s: %w", r.Date, err)
	}
	return nil
}

// FetchLatestRegime returns the most recent regime row, or sql.ErrNoRows if
// none exist yet.
func (s *Store) FetchLatestRegime(ctx context.Context) (domain.RegimeRow, error) {
	row := s.db.Conn().QueryRowContext(ctx, `
		SELECT date, regime, cluster_id, features, centroid, probabilities
		FROM regimes ORDER BY date DESC LIMIT 1
	`)
	return scanRegime(row)
}

// FetchRegimeHistory returns the last `days` regime rows, oldest-first.
func (s *Store) FetchRegimeHistory(ctx context.Context, days int) ([]domain.RegimeRow, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT date, regime, cluster_id, features, centroid, probabilities
		FROM regimes ORDER BY date DESC LIMIT ?
	`, days)
	if err != nil {
		return nil, fmt.Errorf("fetch regime history: %w", err)
	}
	defer rows.Close()

	var out []domain.RegimeRow
	for rows.Next() {
		r, err := scanRegimeRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	reverse(out)
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRegime(row scanner) (domain.RegimeRow, error) {
	return scanRegimeRows(row)
}

func scanRegimeRows(row scanner) (domain.RegimeRow, error) {
	var r domain.RegimeRow
	var regime, features, centroid, probs string
	if err := row.Scan(&r.Date, &regime, &r.ClusterID, &features, &centroid, &probs); err != nil {
		return domain.RegimeRow{}, fmt.Errorf("scan regime row: %w", err)
	}
	r.Regime = domain.DiscoveredRegimeLabel(regime)
	if err := json.Unmarshal([]byte(features), &r.Features); err != nil {
		return domain.RegimeRow{}, fmt.Errorf("unmarshal regime features: %w", err)
	}
	if err := json.Unmarshal([]byte(centroid), &r.Centroid); err != nil {
		return domain.RegimeRow{}, fmt.Errorf("unmarshal regime centroid: %w", err)
	}
	if err := json.Unmarshal([]byte(probs), &r.Probabilities); err != nil {
		return domain.RegimeRow{}, fmt.Errorf("unmarshal regime probabilities: %w", err)
	}
	return r, nil
}

func scanSample(row scanner) (domain.Sample, error) {
	var sample domain.Sample
	var sourceTS, ingestedTS int64
	var metadata string
	if err := row.Scan(&sample.IndicatorID, &sample.Value, &sample.Unit, &sourceTS, &ingestedTS, &metadata); err != nil {
		return domain.Sample{}, fmt.Errorf("scan sample row: %w", err)
	}
	sample.SourceTimestamp = time.Unix(sourceTS, 0).UTC()
	sample.IngestedAt = time.Unix(ingestedTS, 0).UTC()
	overrides, err := domain.DecodeSignalOverrides([]byte(metadata))
	if err != nil {
		return domain.Sample{}, fmt.Errorf("decode sample metadata: %w", err)
	}
	sample.Metadata = overrides
	return sample, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
