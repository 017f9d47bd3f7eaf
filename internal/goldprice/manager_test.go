package goldprice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokomas/goldpos/internal/db"
	"github.com/tokomas/goldpos/internal/models"
	"github.com/tokomas/goldpos/internal/sync"
)

func newTestManager(t *testing.T) (*Manager, *sync.Tracker) {
	t.Helper()
	conn, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Seed(conn))
	tracker := sync.NewTracker(conn, nil)
	return NewManager(conn, tracker, nil), tracker
}

func TestSetPriceReplacesSameDayRow(t *testing.T) {
	mgr, tracker := newTestManager(t)

	// Seed already holds today's LM 999 row; setting again must update it.
	before, err := mgr.TodayPrices()
	require.NoError(t, err)

	gp, err := mgr.SetPrice("LM", 999, 1200000, 1300000, "Manual")
	require.NoError(t, err)
	assert.Equal(t, 1300000, gp.SellPrice)

	after, err := mgr.TodayPrices()
	require.NoError(t, err)
	assert.Len(t, after, len(before))

	changes, err := tracker.PendingChanges("gold_prices")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "update", changes[0].Action)
}

func TestSetPriceInsertsNewKey(t *testing.T) {
	mgr, tracker := newTestManager(t)

	gp, err := mgr.SetPrice("Antam", 916, 900000, 1000000, "Manual")
	require.NoError(t, err)
	assert.Equal(t, time.Now().Format("2006-01-02"), gp.Date)

	changes, err := tracker.PendingChanges("gold_prices")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "insert", changes[0].Action)
	assert.Equal(t, gp.ID, changes[0].RecordID)
}

func TestLatestPriceAndHistory(t *testing.T) {
	mgr, _ := newTestManager(t)

	latest, err := mgr.LatestPrice("LM", 999)
	require.NoError(t, err)
	assert.Equal(t, 1250000, latest.SellPrice)

	history, err := mgr.History("LM", 999, 10)
	require.NoError(t, err)
	assert.NotEmpty(t, history)

	_, err = mgr.LatestPrice("LM", 916)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSellingPrice(t *testing.T) {
	mgr, _ := newTestManager(t)

	price, err := mgr.SellingPrice(&models.Product{
		GoldType:   "LM",
		GoldPurity: 999,
		WeightGram: 2.0,
		LaborCost:  100000,
	})
	require.NoError(t, err)
	// 2g × 1,250,000 + 100,000 labor
	assert.Equal(t, 2600000, price)
}
