package inventory

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokomas/goldpos/internal/db"
	"github.com/tokomas/goldpos/internal/models"
	"github.com/tokomas/goldpos/internal/sync"
)

func newTestManager(t *testing.T) (*Manager, *sql.DB, *sync.Tracker) {
	t.Helper()
	conn, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Seed(conn))
	tracker := sync.NewTracker(conn, nil)
	return NewManager(conn, tracker, nil), conn, tracker
}

func strptr(s string) *string { return &s }

func TestGenerateBarcodeLuhn(t *testing.T) {
	barcode := GenerateBarcode("CN", 1)
	assert.Regexp(t, `^EM-CN-000001-\d$`, barcode)
	assert.True(t, ValidateBarcode(barcode))

	// Flipping a digit invalidates the check digit.
	tampered := []byte(barcode)
	if tampered[6] == '9' {
		tampered[6] = '8'
	} else {
		tampered[6]++
	}
	assert.False(t, ValidateBarcode(string(tampered)))

	assert.False(t, ValidateBarcode("EM-CN-12345-1"))
	assert.False(t, ValidateBarcode("XX-CN-123456-1"))
}

func TestCategoryCode(t *testing.T) {
	assert.Equal(t, "CI", CategoryCode("Cincin"))
	assert.Equal(t, "KA", CategoryCode("kalung"))
	assert.Equal(t, "XX", CategoryCode(""))
}

func TestCreateProductJournalsChange(t *testing.T) {
	mgr, _, tracker := newTestManager(t)

	p, err := mgr.CreateProduct(&models.Product{
		CategoryID: "cat-1",
		SKU:        strptr("RING-2G"),
		Name:       "Cincin Polos 2g",
		GoldType:   "LM",
		GoldPurity: 999,
		WeightGram: 2.0,
		LaborCost:  100000,
	})
	require.NoError(t, err)
	assert.True(t, p.IsActive)

	changes, err := tracker.PendingChanges("products")
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, p.ID, changes[0].RecordID)
	assert.Equal(t, "insert", changes[0].Action)
}

func TestAddItemGeneratesSequentialBarcodes(t *testing.T) {
	mgr, _, tracker := newTestManager(t)

	p, err := mgr.CreateProduct(&models.Product{
		CategoryID: "cat-1",
		Name:       "Cincin",
		GoldType:   "LM",
		GoldPurity: 999,
		WeightGram: 2.0,
	})
	require.NoError(t, err)

	first, err := mgr.AddItem(&models.Inventory{ProductID: p.ID, PurchasePrice: 2300000})
	require.NoError(t, err)
	second, err := mgr.AddItem(&models.Inventory{ProductID: p.ID, PurchasePrice: 2300000})
	require.NoError(t, err)

	assert.Regexp(t, `^EM-CI-000001-\d$`, first.Barcode)
	assert.Regexp(t, `^EM-CI-000002-\d$`, second.Barcode)
	assert.Equal(t, "available", first.Status)
	assert.Equal(t, "default", first.BranchID)
	require.NotNil(t, first.Product)
	assert.Equal(t, p.ID, first.Product.ID)

	changes, err := tracker.PendingChanges("inventory")
	require.NoError(t, err)
	assert.Len(t, changes, 2)
}

func TestAddItemRejectsBadBarcode(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	p, err := mgr.CreateProduct(&models.Product{
		CategoryID: "cat-1",
		Name:       "Cincin",
		GoldType:   "LM",
		GoldPurity: 999,
		WeightGram: 2.0,
	})
	require.NoError(t, err)

	// Correct check digit for EM-CN-000001 is 9.
	_, err = mgr.AddItem(&models.Inventory{
		ProductID:     p.ID,
		Barcode:       "EM-CN-000001-5",
		PurchasePrice: 2300000,
	})
	assert.ErrorIs(t, err, ErrInvalidBarcode)

	_, err = mgr.AddItem(&models.Inventory{
		ProductID:     p.ID,
		Barcode:       "EM-CN-000001-9",
		PurchasePrice: 2300000,
	})
	require.NoError(t, err)
}

func TestScanBarcode(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	p, err := mgr.CreateProduct(&models.Product{
		CategoryID: "cat-2",
		Name:       "Kalung",
		GoldType:   "UBS",
		GoldPurity: 750,
		WeightGram: 5.0,
	})
	require.NoError(t, err)

	item, err := mgr.AddItem(&models.Inventory{ProductID: p.ID, PurchasePrice: 4000000})
	require.NoError(t, err)

	found, err := mgr.ScanBarcode(item.Barcode)
	require.NoError(t, err)
	assert.Equal(t, item.ID, found.ID)
	assert.Equal(t, "Kalung", found.Product.Name)

	_, err = mgr.ScanBarcode("EM-XX-999999-9")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetStats(t *testing.T) {
	mgr, conn, _ := newTestManager(t)

	p, err := mgr.CreateProduct(&models.Product{
		CategoryID: "cat-1",
		Name:       "Cincin",
		GoldType:   "LM",
		GoldPurity: 999,
		WeightGram: 2.0,
	})
	require.NoError(t, err)

	a, err := mgr.AddItem(&models.Inventory{ProductID: p.ID, PurchasePrice: 2000000})
	require.NoError(t, err)
	_, err = mgr.AddItem(&models.Inventory{ProductID: p.ID, PurchasePrice: 2500000})
	require.NoError(t, err)
	_, err = conn.Exec("UPDATE inventory SET status = 'sold' WHERE id = ?", a.ID)
	require.NoError(t, err)

	stats, err := mgr.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalItems)
	assert.Equal(t, 1, stats.AvailableItems)
	assert.Equal(t, 1, stats.SoldItems)
	assert.InDelta(t, 2.0, stats.TotalWeight, 0.001)
	assert.Equal(t, 2500000, stats.TotalValue)
}

func TestLabelPNG(t *testing.T) {
	mgr, _, _ := newTestManager(t)

	p, err := mgr.CreateProduct(&models.Product{
		CategoryID: "cat-1",
		Name:       "Cincin",
		GoldType:   "LM",
		GoldPurity: 999,
		WeightGram: 2.0,
	})
	require.NoError(t, err)
	item, err := mgr.AddItem(&models.Inventory{ProductID: p.ID, PurchasePrice: 2000000})
	require.NoError(t, err)

	png, err := mgr.LabelPNG(item.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}
