package regime

import (
	"context"
	"fmt"

	"github.com/aristath/pxi/internal/domain"
)

// RowStore is the subset of internal/store.Store the regime detector needs,
// kept narrow so this package never imports database/sql directly.
type RowStore interface {
	InsertRegime(ctx context.Context, r domain.RegimeRow) error
	FetchLatestRegime(ctx context.Context) (domain.RegimeRow, error)
	FetchRegimeHistory(ctx context.Context, days int) ([]domain.RegimeRow, error)
}

// Persistence wraps a RowStore with the regime-specific read used by the
// scheduler's transition side effect: the previous label, read from the
// store.
type Persistence struct {
	store RowStore
}

// NewPersistence builds a Persistence over a store.
func NewPersistence(store RowStore) *Persistence {
	return &Persistence{store: store}
}

// RecordRegimeRows persists a batch of freshly computed regime rows.
func (p *Persistence) RecordRegimeRows(ctx context.Context, rows []domain.RegimeRow) error {
	for _, r := range rows {
		if err := p.store.InsertRegime(ctx, r); err != nil {
			return fmt.Errorf("record regime row for %s: %w", r.Date, err)
		}
	}
	return nil
}

// PreviousLabel returns the most recently persisted regime label. The
// regime job reads it on every run, before recording the new rows, so the
// first comparison after a restart is against real history rather than a
// zero value.
func (p *Persistence) PreviousLabel(ctx context.Context) (domain.DiscoveredRegimeLabel, error) {
	row, err := p.store.FetchLatestRegime(ctx)
	if err != nil {
		return "", fmt.Errorf("load previous regime label: %w", err)
	}
	return row.Regime, nil
}

// History returns the last `days` regime rows, oldest-first.
func (p *Persistence) History(ctx context.Context, days int) ([]domain.RegimeRow, error) {
	rows, err := p.store.FetchRegimeHistory(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("load regime history: %w", err)
	}
	return rows, nil
}
