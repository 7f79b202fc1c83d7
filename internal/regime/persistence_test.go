package regime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/pxi/internal/domain"
)

type fakeRowStore struct {
	rows   map[string]domain.RegimeRow
	order  []string
}

func newFakeRowStore() *fakeRowStore {
	return &fakeRowStore{rows: make(map[string]domain.RegimeRow)}
}

func (f *fakeRowStore) InsertRegime(ctx context.Context, r domain.RegimeRow) error {
	if _, exists := f.rows[r.Date]; !exists {
		f.order = append(f.order, r.Date)
	}
	f.rows[r.Date] = r
	return nil
}

func (f *fakeRowStore) FetchLatestRegime(ctx context.Context) (domain.RegimeRow, error) {
	if len(f.order) == 0 {
		return domain.RegimeRow{}, nil
	}
	return f.rows[f.order[len(f.order)-1]], nil
}

func (f *fakeRowStore) FetchRegimeHistory(ctx context.Context, days int) ([]domain.RegimeRow, error) {
	var out []domain.RegimeRow
	for _, d := range f.order {
		out = append(out, f.rows[d])
	}
	return out, nil
}

func TestPersistence_RecordAndFetchLatest(t *testing.T) {
	store := newFakeRowStore()
	p := NewPersistence(store)
	ctx := context.Background()

	require.NoError(t, p.RecordRegimeRows(ctx, []domain.RegimeRow{
		{Date: "2026-01-01", Regime: domain.DiscoveredCalm},
		{Date: "2026-01-02", Regime: domain.DiscoveredStress},
	}))

	label, err := p.PreviousLabel(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DiscoveredStress, label)

	hist, err := p.History(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}
