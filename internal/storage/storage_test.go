package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/wealthstack/internal/models"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordsRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	records := []models.Record{
		{Year: 2010, Category: models.CategoryTechnology, Metric: 53, Name: "Bill Gates"},
		{Year: 2010, Category: models.CategoryOther, Metric: 47, Name: "Warren Buffett"},
	}
	require.NoError(t, s.PutRecords(ctx, "billionaires", records))

	got, err := s.Records(ctx, "billionaires")
	require.NoError(t, err)
	assert.Equal(t, records, got)
}

func TestPutRecordsReplaces(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutRecords(ctx, "billionaires", []models.Record{
		{Year: 2010, Category: models.CategoryOther, Metric: 1},
		{Year: 2011, Category: models.CategoryOther, Metric: 2},
	}))
	require.NoError(t, s.PutRecords(ctx, "billionaires", []models.Record{
		{Year: 2012, Category: models.CategoryTechnology, Metric: 3},
	}))

	got, err := s.Records(ctx, "billionaires")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2012, got[0].Year)
}

func TestPutRecordsRejectsInvalid(t *testing.T) {
	s := newStore(t)
	err := s.PutRecords(context.Background(), "billionaires", []models.Record{{Year: 10, Category: models.CategoryOther}})
	assert.Error(t, err)

	_, err = s.Records(context.Background(), "billionaires")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTickerRowsRoundTrip(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	change := 12.5
	require.NoError(t, s.PutTickerRows(ctx, "AAPL", []models.TickerRow{
		{Year: 2011, MarketCap: 380, Change: &change},
		{Year: 2010, MarketCap: 300},
	}))

	got, err := s.TickerRows(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2010, got[0].Year)
	assert.Nil(t, got[0].Change)
	require.NotNil(t, got[1].Change)
	assert.Equal(t, 12.5, *got[1].Change)
}

func TestEmptyDatasetIsNotMissing(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.PutTickerRows(ctx, "OTHER", nil))

	got, err := s.TickerRows(ctx, "OTHER")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestNotFoundAndKindMismatch(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.TickerRows(ctx, "MSFT")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.PutTickerRows(ctx, "TECH", []models.TickerRow{{Year: 2010, MarketCap: 1}}))
	_, err = s.Records(ctx, "TECH")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestDatasets(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutTickerRows(ctx, "TECH", []models.TickerRow{{Year: 2010, MarketCap: 1}}))
	require.NoError(t, s.PutRecords(ctx, "billionaires", []models.Record{
		{Year: 2010, Category: models.CategoryOther, Metric: 1},
		{Year: 2011, Category: models.CategoryOther, Metric: 1},
	}))

	sets, err := s.Datasets(ctx)
	require.NoError(t, err)
	require.Len(t, sets, 2)
	assert.Equal(t, "TECH", sets[0].Name)
	assert.Equal(t, KindTicker, sets[0].Kind)
	assert.Equal(t, "billionaires", sets[1].Name)
	assert.Equal(t, 2, sets[1].Rows)
	assert.False(t, sets[1].LoadedAt.IsZero())
}

func TestFileDatabasePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "wealthstack.db")
	ctx := context.Background()

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.PutTickerRows(ctx, "TECH", []models.TickerRow{{Year: 2015, MarketCap: 9}}))
	require.NoError(t, s.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.TickerRows(ctx, "TECH")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 9.0, got[0].MarketCap)
}

func TestDelete(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutTickerRows(ctx, "TECH", []models.TickerRow{{Year: 2010, MarketCap: 1}}))
	require.NoError(t, s.PutRecords(ctx, "billionaires", []models.Record{
		{Year: 2010, Category: models.CategoryOther, Metric: 1},
	}))

	require.NoError(t, s.Delete(ctx, "TECH"))
	_, err := s.TickerRows(ctx, "TECH")
	assert.ErrorIs(t, err, ErrNotFound)

	// other datasets are untouched
	got, err := s.Records(ctx, "billionaires")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	sets, err := s.Datasets(ctx)
	require.NoError(t, err)
	require.Len(t, sets, 1)
	assert.Equal(t, "billionaires", sets[0].Name)

	// missing is a no-op
	assert.NoError(t, s.Delete(ctx, "MSFT"))
}

func TestRecordsRejectsUnknownCategory(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutRecords(ctx, "billionaires", []models.Record{
		{Year: 2010, Category: models.CategoryOther, Metric: 1},
	}))
	_, err := s.db.ExecContext(ctx, `UPDATE records SET category = 'Retail' WHERE dataset = ?`, "billionaires")
	require.NoError(t, err)

	_, err = s.Records(ctx, "billionaires")
	assert.ErrorContains(t, err, `unknown category "Retail"`)
}
