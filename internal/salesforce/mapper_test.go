package salesforce

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokomas/goldpos/internal/models"
)

func strptr(s string) *string { return &s }

func TestInventoryToRemoteResolvesLookups(t *testing.T) {
	lookups := NewLookups()
	lookups.Products["prod-1"] = "a02SF001"
	lookups.Branches["default"] = "a00SF001"

	inv := &models.Inventory{
		ID:            "inv-1",
		ProductID:     "prod-1",
		BranchID:      "default",
		Barcode:       "EM-CN-000001-7",
		Status:        "available",
		PurchasePrice: 5000000,
		Supplier:      strptr("PT Emas Jaya"),
	}

	fields := InventoryToRemote(inv, lookups)
	assert.Equal(t, "a02SF001", fields["Product__c"])
	assert.Equal(t, "a00SF001", fields["Branch__c"])
	assert.Equal(t, "EM-CN-000001-7", fields["Barcode__c"])
	assert.Equal(t, "PT Emas Jaya", fields["Supplier__c"])
	_, hasNotes := fields["Notes__c"]
	assert.False(t, hasNotes)
}

func TestInventoryToRemoteOmitsUnresolvedReferences(t *testing.T) {
	inv := &models.Inventory{
		ID:        "inv-1",
		ProductID: "prod-unknown",
		BranchID:  "branch-unknown",
		Barcode:   "EM-CN-000001-7",
		Status:    "available",
	}

	fields := InventoryToRemote(inv, NewLookups())
	_, hasProduct := fields["Product__c"]
	_, hasBranch := fields["Branch__c"]
	assert.False(t, hasProduct)
	assert.False(t, hasBranch)
}

func TestInventoryFromRemoteLeavesPlaceholders(t *testing.T) {
	r := &RemoteInventory{
		ID:            "a03SF001",
		Barcode:       strptr("EM-KL-000002-4"),
		ProductID:     strptr("a02SF001"),
		BranchID:      strptr("a00SF001"),
		Status:        strptr("sold"),
		PurchasePrice: 7500000,
		SoldAt:        strptr("2026-08-20T10:00:00Z"),
	}

	inv := InventoryFromRemote(r)
	assert.Empty(t, inv.ProductID)
	assert.Empty(t, inv.BranchID)
	assert.Equal(t, "EM-KL-000002-4", inv.Barcode)
	assert.Equal(t, "sold", inv.Status)
	assert.Equal(t, 7500000, inv.PurchasePrice)
	require.NotNil(t, inv.SalesforceID)
	assert.Equal(t, "a03SF001", *inv.SalesforceID)
	assert.NotEmpty(t, inv.ID)
	assert.NotEmpty(t, inv.CreatedAt)
}

func TestBranchMappingUsesCodeAsLocalID(t *testing.T) {
	b := &models.Branch{ID: "default", Name: "Toko Emas Sejahtera", IsActive: true}
	fields := BranchToRemote(b)
	assert.Equal(t, "default", fields["Code__c"])
	assert.Equal(t, "Toko Emas Sejahtera", fields["Name"])

	r := &RemoteBranch{ID: "a00SF001", Name: "Cabang Bandung", Code: strptr("bdg-1"), IsActive: true}
	local := BranchFromRemote(r)
	assert.Equal(t, "bdg-1", local.ID)
	require.NotNil(t, local.SalesforceID)
	assert.Equal(t, "a00SF001", *local.SalesforceID)
}

func TestProductFromRemotePrefersSKUAsID(t *testing.T) {
	r := &RemoteProduct{
		ID:         "a02SF009",
		Name:       "Cincin Polos 2g",
		SKU:        strptr("RING-2G"),
		GoldType:   strptr("LM"),
		GoldPurity: 999,
		WeightGram: 2.0,
	}
	p := ProductFromRemote(r)
	assert.Equal(t, "RING-2G", p.ID)
	assert.Equal(t, "cat-1", p.CategoryID)
	assert.Equal(t, 999, p.GoldPurity)

	// Without a SKU a fresh local id is generated.
	r.SKU = nil
	p = ProductFromRemote(r)
	assert.NotEmpty(t, p.ID)
	assert.NotEqual(t, "RING-2G", p.ID)
}

func TestGoldPriceToRemoteBuildsCompositeName(t *testing.T) {
	gp := &models.GoldPrice{
		Date:      "2026-08-26",
		GoldType:  "LM",
		Purity:    999,
		BuyPrice:  1150000,
		SellPrice: 1250000,
	}
	fields := GoldPriceToRemote(gp)
	assert.Equal(t, "2026-08-26_LM_999", fields["Name"])
	assert.Equal(t, 1150000, fields["Buy_Price__c"])
}

func TestTransactionToRemoteResolvesCustomer(t *testing.T) {
	lookups := NewLookups()
	lookups.Branches["default"] = "a00SF001"
	lookups.Customers["cust-1"] = "a04SF001"

	tx := &models.Transaction{
		ID:          "tx-1",
		BranchID:    "default",
		UserID:      "admin",
		CustomerID:  strptr("cust-1"),
		InvoiceNo:   "INV-20260826-001",
		Type:        "sale",
		Subtotal:    2500000,
		TotalAmount: 2500000,
		Status:      "completed",
		CreatedAt:   "2026-08-26T09:00:00Z",
	}
	fields := TransactionToRemote(tx, lookups)
	assert.Equal(t, "INV-20260826-001", fields["Invoice_Number__c"])
	assert.Equal(t, "a00SF001", fields["Branch__c"])
	assert.Equal(t, "a04SF001", fields["Customer__c"])

	// Unresolved customer is omitted rather than sent as a dangling ref.
	tx.CustomerID = strptr("cust-unknown")
	fields = TransactionToRemote(tx, lookups)
	_, has := fields["Customer__c"]
	assert.False(t, has)
}
