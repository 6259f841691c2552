package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hetulpatel/crossarb/internal/equilibrium"
	"github.com/hetulpatel/crossarb/internal/models"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.CreateTables(context.Background()))
	return store
}

func rec(symbol string, profit float64, at int64) models.Record {
	return models.Record{
		Symbol:      symbol,
		Source:      "mexc",
		Destination: "gate",
		Equilibrium: equilibrium.Result{
			MatchedQuantity:  3,
			ProfitAbsolute:   profit,
			ProfitRate:       profit / 301,
			TotalCost:        301,
			AverageCost:      100.33,
			EquilibriumPrice: 101,
		},
		CapturedAt: at,
	}
}

func TestInsertAndReadOpportunities(t *testing.T) {
	store := openTemp(t)
	ctx := context.Background()

	fee := 0.25
	withFee := rec("AAA", 8, 100)
	withFee.Fee = &fee
	withFee.Network = "TRC20"

	require.NoError(t, store.InsertOpportunities(ctx, "b1", []models.Record{withFee, rec("BBB", 2, 100)}))
	require.NoError(t, store.InsertOpportunities(ctx, "b2", []models.Record{rec("AAA", 9, 105)}))
	require.NoError(t, store.InsertOpportunities(ctx, "b3", nil))

	all, err := store.RecentOpportunities(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "b2", all[0].BatchID)

	aaa, err := store.RecentOpportunities(ctx, "AAA", 10)
	require.NoError(t, err)
	require.Len(t, aaa, 2)
	require.Equal(t, 9.0, aaa[0].Record.Equilibrium.ProfitAbsolute)
	require.Nil(t, aaa[0].Record.Fee)

	got := aaa[1].Record
	require.NotNil(t, got.Fee)
	require.Equal(t, 0.25, *got.Fee)
	require.Equal(t, "TRC20", got.Network)
	require.True(t, got.SameContent(withFee))
	require.NotEqual(t, aaa[0].Hash, aaa[1].Hash)
}

func TestRecordHashIgnoresCaptureTime(t *testing.T) {
	require.Equal(t, recordHash(rec("AAA", 1, 1)), recordHash(rec("AAA", 1, 2)))
	require.NotEqual(t, recordHash(rec("AAA", 1, 1)), recordHash(rec("AAA", 2, 1)))
}

func TestClearAndDropTables(t *testing.T) {
	store := openTemp(t)
	ctx := context.Background()
	require.NoError(t, store.InsertOpportunities(ctx, "b1", []models.Record{rec("AAA", 1, 1)}))

	require.NoError(t, store.ClearTables(ctx))
	rows, err := store.RecentOpportunities(ctx, "", 0)
	require.NoError(t, err)
	require.Empty(t, rows)

	require.NoError(t, store.DropTables(ctx))
	_, err = store.RecentOpportunities(ctx, "", 0)
	require.Error(t, err)
}
