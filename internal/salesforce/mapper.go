package salesforce

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tokomas/goldpos/internal/models"
)

// Lookups resolves local row ids to remote record ids. Rebuilt at the start
// of every push or pull run from rows that already carry a remote id.
type Lookups struct {
	Branches     map[string]string
	Products     map[string]string
	Inventory    map[string]string
	Customers    map[string]string
	Transactions map[string]string
}

// NewLookups returns an empty lookup bundle.
func NewLookups() *Lookups {
	return &Lookups{
		Branches:     make(map[string]string),
		Products:     make(map[string]string),
		Inventory:    make(map[string]string),
		Customers:    make(map[string]string),
		Transactions: make(map[string]string),
	}
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// setOpt adds a nullable string field, omitting nils so the remote value is
// left untouched.
func setOpt(fields map[string]interface{}, key string, val *string) {
	if val != nil {
		fields[key] = *val
	}
}

// BranchToRemote maps a branch for upsert by Code__c. The local branch id
// doubles as the remote-side code.
func BranchToRemote(b *models.Branch) map[string]interface{} {
	fields := map[string]interface{}{
		"Name":         b.Name,
		"Code__c":      b.ID,
		"Is_Active__c": b.IsActive,
	}
	setOpt(fields, "Address__c", b.Address)
	setOpt(fields, "Phone__c", b.Phone)
	return fields
}

// BranchFromRemote materializes a local branch; the remote code becomes the
// local id.
func BranchFromRemote(r *RemoteBranch) *models.Branch {
	id := r.ID
	if r.Code != nil && *r.Code != "" {
		id = *r.Code
	}
	now := nowRFC3339()
	return &models.Branch{
		ID:           id,
		Name:         r.Name,
		Address:      r.Address,
		Phone:        r.Phone,
		IsActive:     r.IsActive,
		SalesforceID: &r.ID,
		CreatedAt:    now,
		UpdatedAt:    &now,
	}
}

// ProductToRemote maps a product for upsert by SKU__c.
func ProductToRemote(p *models.Product) map[string]interface{} {
	fields := map[string]interface{}{
		"Name":           p.Name,
		"Gold_Type__c":   p.GoldType,
		"Gold_Purity__c": p.GoldPurity,
		"Weight_Gram__c": p.WeightGram,
		"Labor_Cost__c":  p.LaborCost,
		"Is_Active__c":   p.IsActive,
	}
	setOpt(fields, "SKU__c", p.SKU)
	setOpt(fields, "Description__c", p.Description)
	return fields
}

// ProductFromRemote materializes a local product. Category placement is not
// modeled remotely; new rows land in the default category.
func ProductFromRemote(r *RemoteProduct) *models.Product {
	id := uuid.New().String()
	if r.SKU != nil && *r.SKU != "" {
		id = *r.SKU
	}
	goldType := ""
	if r.GoldType != nil {
		goldType = *r.GoldType
	}
	return &models.Product{
		ID:           id,
		CategoryID:   "cat-1",
		SKU:          r.SKU,
		Name:         r.Name,
		Description:  r.Description,
		GoldType:     goldType,
		GoldPurity:   int(r.GoldPurity),
		WeightGram:   r.WeightGram,
		LaborCost:    int(r.LaborCost),
		IsActive:     r.IsActive,
		SalesforceID: &r.ID,
		CreatedAt:    nowRFC3339(),
	}
}

// InventoryToRemote maps an inventory item for upsert by Barcode__c.
// Unresolved product or branch references are omitted.
func InventoryToRemote(inv *models.Inventory, lookups *Lookups) map[string]interface{} {
	fields := map[string]interface{}{
		"Name":              inv.Barcode,
		"Barcode__c":        inv.Barcode,
		"Status__c":         inv.Status,
		"Purchase_Price__c": inv.PurchasePrice,
	}
	if sfID, ok := lookups.Products[inv.ProductID]; ok {
		fields["Product__c"] = sfID
	}
	if sfID, ok := lookups.Branches[inv.BranchID]; ok {
		fields["Branch__c"] = sfID
	}
	setOpt(fields, "Location__c", inv.Location)
	setOpt(fields, "Purchase_Date__c", inv.PurchaseDate)
	setOpt(fields, "Supplier__c", inv.Supplier)
	setOpt(fields, "Notes__c", inv.Notes)
	setOpt(fields, "Sold_At__c", inv.SoldAt)
	return fields
}

// InventoryFromRemote materializes a local inventory row. Product and branch
// ids are placeholders resolved by the pull coordinator.
func InventoryFromRemote(r *RemoteInventory) *models.Inventory {
	barcode := ""
	if r.Barcode != nil {
		barcode = *r.Barcode
	}
	status := "available"
	if r.Status != nil && *r.Status != "" {
		status = *r.Status
	}
	return &models.Inventory{
		ID:            uuid.New().String(),
		ProductID:     "",
		BranchID:      "",
		Barcode:       barcode,
		Status:        status,
		Location:      r.Location,
		PurchasePrice: int(r.PurchasePrice),
		PurchaseDate:  r.PurchaseDate,
		Supplier:      r.Supplier,
		Notes:         r.Notes,
		SoldAt:        r.SoldAt,
		SalesforceID:  &r.ID,
		CreatedAt:     nowRFC3339(),
	}
}

// GoldPriceToRemote maps a gold price for creation.
func GoldPriceToRemote(gp *models.GoldPrice) map[string]interface{} {
	fields := map[string]interface{}{
		"Name":          fmt.Sprintf("%s_%s_%d", gp.Date, gp.GoldType, gp.Purity),
		"Date__c":       gp.Date,
		"Gold_Type__c":  gp.GoldType,
		"Purity__c":     gp.Purity,
		"Buy_Price__c":  gp.BuyPrice,
		"Sell_Price__c": gp.SellPrice,
	}
	setOpt(fields, "Source__c", gp.Source)
	return fields
}

// GoldPriceFromRemote materializes a local gold price row.
func GoldPriceFromRemote(r *RemoteGoldPrice) *models.GoldPrice {
	date := ""
	if r.Date != nil {
		date = *r.Date
	}
	goldType := ""
	if r.GoldType != nil {
		goldType = *r.GoldType
	}
	return &models.GoldPrice{
		ID:           uuid.New().String(),
		Date:         date,
		GoldType:     goldType,
		Purity:       int(r.Purity),
		BuyPrice:     int(r.BuyPrice),
		SellPrice:    int(r.SellPrice),
		Source:       r.Source,
		SalesforceID: &r.ID,
		CreatedAt:    nowRFC3339(),
	}
}

// CustomerToRemote maps a customer for upsert by Phone__c.
func CustomerToRemote(c *models.Customer) map[string]interface{} {
	fields := map[string]interface{}{
		"Name":                  c.Name,
		"Total_Transactions__c": c.TotalTransactions,
	}
	setOpt(fields, "Phone__c", c.Phone)
	setOpt(fields, "NIK__c", c.NIK)
	setOpt(fields, "Address__c", c.Address)
	setOpt(fields, "Notes__c", c.Notes)
	return fields
}

// CustomerFromRemote materializes a local customer row.
func CustomerFromRemote(r *RemoteCustomer) *models.Customer {
	return &models.Customer{
		ID:                uuid.New().String(),
		Name:              r.Name,
		Phone:             r.Phone,
		NIK:               r.NIK,
		Address:           r.Address,
		Notes:             r.Notes,
		TotalTransactions: int(r.TotalTransactions),
		SalesforceID:      &r.ID,
		CreatedAt:         nowRFC3339(),
	}
}

// TransactionToRemote maps a transaction for upsert by Invoice_Number__c.
// Unresolved branch or customer references are omitted.
func TransactionToRemote(t *models.Transaction, lookups *Lookups) map[string]interface{} {
	fields := map[string]interface{}{
		"Name":              t.InvoiceNo,
		"Invoice_Number__c": t.InvoiceNo,
		"Type__c":           t.Type,
		"Subtotal__c":       t.Subtotal,
		"Discount__c":       t.Discount,
		"Total_Amount__c":   t.TotalAmount,
		"Status__c":         t.Status,
		"Created_At__c":     t.CreatedAt,
	}
	if sfID, ok := lookups.Branches[t.BranchID]; ok {
		fields["Branch__c"] = sfID
	}
	if t.CustomerID != nil {
		if sfID, ok := lookups.Customers[*t.CustomerID]; ok {
			fields["Customer__c"] = sfID
		}
	}
	setOpt(fields, "Notes__c", t.Notes)
	return fields
}

// TransactionFromRemote materializes a local transaction. Branch, user and
// customer references are placeholders resolved by the caller.
func TransactionFromRemote(r *RemoteTransaction) *models.Transaction {
	invoiceNo := ""
	if r.InvoiceNo != nil {
		invoiceNo = *r.InvoiceNo
	}
	txType := ""
	if r.Type != nil {
		txType = *r.Type
	}
	status := "pending"
	if r.Status != nil && *r.Status != "" {
		status = *r.Status
	}
	createdAt := nowRFC3339()
	if r.CreatedAt != nil && *r.CreatedAt != "" {
		createdAt = *r.CreatedAt
	}
	return &models.Transaction{
		ID:           uuid.New().String(),
		BranchID:     "",
		UserID:       "",
		InvoiceNo:    invoiceNo,
		Type:         txType,
		Subtotal:     int(r.Subtotal),
		Discount:     int(r.Discount),
		TotalAmount:  int(r.TotalAmount),
		Notes:        r.Notes,
		Status:       status,
		SalesforceID: &r.ID,
		CreatedAt:    createdAt,
	}
}

// TransactionItemToRemote maps a transaction line for creation. Parent and
// inventory references resolve through the lookup bundle.
func TransactionItemToRemote(item *models.TransactionItem, lookups *Lookups) map[string]interface{} {
	fields := map[string]interface{}{
		"Quantity__c":   item.Quantity,
		"Unit_Price__c": item.UnitPrice,
		"Subtotal__c":   item.Subtotal,
	}
	if sfID, ok := lookups.Transactions[item.TransactionID]; ok {
		fields["Transaction__c"] = sfID
	}
	if sfID, ok := lookups.Inventory[item.InventoryID]; ok {
		fields["Inventory__c"] = sfID
	}
	return fields
}

// TransactionItemFromRemote materializes a local transaction line with
// placeholder references.
func TransactionItemFromRemote(r *RemoteTransactionItem) *models.TransactionItem {
	return &models.TransactionItem{
		ID:            uuid.New().String(),
		TransactionID: "",
		InventoryID:   "",
		Quantity:      int(r.Quantity),
		UnitPrice:     int(r.UnitPrice),
		Subtotal:      int(r.Subtotal),
		SalesforceID:  &r.ID,
	}
}
