package salesforce

import (
	"context"
	"fmt"
	"strings"
)

// Custom object API names in the Salesforce org.
const (
	ObjBranch          = "Branch__c"
	ObjProduct         = "Product__c"
	ObjInventory       = "Inventory__c"
	ObjCustomer        = "Customer__c"
	ObjGoldPrice       = "Gold_Price__c"
	ObjTransaction     = "Transaction__c"
	ObjTransactionItem = "Transaction_Item__c"
)

// Remote record shapes. Numeric custom fields arrive as JSON numbers,
// nullable text fields as null.

type RemoteBranch struct {
	ID       string  `json:"Id"`
	Name     string  `json:"Name"`
	Code     *string `json:"Code__c"`
	Address  *string `json:"Address__c"`
	Phone    *string `json:"Phone__c"`
	IsActive bool    `json:"Is_Active__c"`
}

type RemoteProduct struct {
	ID          string  `json:"Id"`
	Name        string  `json:"Name"`
	SKU         *string `json:"SKU__c"`
	Description *string `json:"Description__c"`
	GoldType    *string `json:"Gold_Type__c"`
	GoldPurity  float64 `json:"Gold_Purity__c"`
	WeightGram  float64 `json:"Weight_Gram__c"`
	LaborCost   float64 `json:"Labor_Cost__c"`
	IsActive    bool    `json:"Is_Active__c"`
}

type RemoteInventory struct {
	ID            string  `json:"Id"`
	Barcode       *string `json:"Barcode__c"`
	ProductID     *string `json:"Product__c"`
	BranchID      *string `json:"Branch__c"`
	Status        *string `json:"Status__c"`
	Location      *string `json:"Location__c"`
	PurchasePrice float64 `json:"Purchase_Price__c"`
	PurchaseDate  *string `json:"Purchase_Date__c"`
	Supplier      *string `json:"Supplier__c"`
	Notes         *string `json:"Notes__c"`
	SoldAt        *string `json:"Sold_At__c"`
}

type RemoteGoldPrice struct {
	ID        string  `json:"Id"`
	Date      *string `json:"Date__c"`
	GoldType  *string `json:"Gold_Type__c"`
	Purity    float64 `json:"Purity__c"`
	BuyPrice  float64 `json:"Buy_Price__c"`
	SellPrice float64 `json:"Sell_Price__c"`
	Source    *string `json:"Source__c"`
}

type RemoteCustomer struct {
	ID                string  `json:"Id"`
	Name              string  `json:"Name"`
	Phone             *string `json:"Phone__c"`
	NIK               *string `json:"NIK__c"`
	Address           *string `json:"Address__c"`
	Notes             *string `json:"Notes__c"`
	TotalTransactions float64 `json:"Total_Transactions__c"`
}

type RemoteTransaction struct {
	ID          string  `json:"Id"`
	InvoiceNo   *string `json:"Invoice_Number__c"`
	Type        *string `json:"Type__c"`
	BranchID    *string `json:"Branch__c"`
	CustomerID  *string `json:"Customer__c"`
	Subtotal    float64 `json:"Subtotal__c"`
	Discount    float64 `json:"Discount__c"`
	TotalAmount float64 `json:"Total_Amount__c"`
	Status      *string `json:"Status__c"`
	Notes       *string `json:"Notes__c"`
	CreatedAt   *string `json:"Created_At__c"`
}

type RemoteTransactionItem struct {
	ID            string  `json:"Id"`
	TransactionID *string `json:"Transaction__c"`
	InventoryID   *string `json:"Inventory__c"`
	Quantity      float64 `json:"Quantity__c"`
	UnitPrice     float64 `json:"Unit_Price__c"`
	Subtotal      float64 `json:"Subtotal__c"`
}

// API provides typed access to the goldpos custom objects.
type API struct {
	client *Client
}

// NewAPI wraps a REST client with typed object operations.
func NewAPI(client *Client) *API {
	return &API{client: client}
}

// Client returns the underlying REST client.
func (a *API) Client() *Client { return a.client }

// soqlString escapes a value for inclusion in a SOQL string literal.
func soqlString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func (a *API) GetBranches(ctx context.Context) ([]RemoteBranch, error) {
	soql := "SELECT Id, Name, Code__c, Address__c, Phone__c, Is_Active__c FROM Branch__c WHERE Is_Active__c = true"
	return QueryAll[RemoteBranch](ctx, a.client, soql)
}

// GetProducts fetches active products, optionally restricted to those
// modified after since (RFC3339).
func (a *API) GetProducts(ctx context.Context, since string) ([]RemoteProduct, error) {
	soql := "SELECT Id, Name, SKU__c, Description__c, Gold_Type__c, Gold_Purity__c, Weight_Gram__c, " +
		"Labor_Cost__c, Is_Active__c FROM Product__c WHERE Is_Active__c = true"
	if since != "" {
		soql += fmt.Sprintf(" AND LastModifiedDate > %s", since)
	}
	return QueryAll[RemoteProduct](ctx, a.client, soql)
}

// GetInventory fetches inventory records, optionally restricted to those
// modified after since (RFC3339) and to a single branch.
func (a *API) GetInventory(ctx context.Context, since, branchID string) ([]RemoteInventory, error) {
	soql := "SELECT Id, Barcode__c, Product__c, Branch__c, Status__c, Location__c, Purchase_Price__c, " +
		"Purchase_Date__c, Supplier__c, Notes__c, Sold_At__c FROM Inventory__c"
	var conds []string
	if since != "" {
		conds = append(conds, fmt.Sprintf("LastModifiedDate > %s", since))
	}
	if branchID != "" {
		conds = append(conds, fmt.Sprintf("Branch__c = '%s'", soqlString(branchID)))
	}
	if len(conds) > 0 {
		soql += " WHERE " + strings.Join(conds, " AND ")
	}
	return QueryAll[RemoteInventory](ctx, a.client, soql)
}

// GetGoldPrices fetches gold prices for a single date (YYYY-MM-DD).
func (a *API) GetGoldPrices(ctx context.Context, date string) ([]RemoteGoldPrice, error) {
	soql := fmt.Sprintf("SELECT Id, Date__c, Gold_Type__c, Purity__c, Buy_Price__c, Sell_Price__c, "+
		"Source__c FROM Gold_Price__c WHERE Date__c = %s", date)
	return QueryAll[RemoteGoldPrice](ctx, a.client, soql)
}

func (a *API) GetCustomers(ctx context.Context) ([]RemoteCustomer, error) {
	soql := "SELECT Id, Name, Phone__c, NIK__c, Address__c, Notes__c, Total_Transactions__c FROM Customer__c"
	return QueryAll[RemoteCustomer](ctx, a.client, soql)
}

func (a *API) GetTransactions(ctx context.Context, since, branchID string) ([]RemoteTransaction, error) {
	soql := "SELECT Id, Invoice_Number__c, Type__c, Branch__c, Customer__c, Subtotal__c, Discount__c, " +
		"Total_Amount__c, Status__c, Notes__c, Created_At__c FROM Transaction__c"
	var conds []string
	if since != "" {
		conds = append(conds, fmt.Sprintf("LastModifiedDate > %s", since))
	}
	if branchID != "" {
		conds = append(conds, fmt.Sprintf("Branch__c = '%s'", soqlString(branchID)))
	}
	if len(conds) > 0 {
		soql += " WHERE " + strings.Join(conds, " AND ")
	}
	return QueryAll[RemoteTransaction](ctx, a.client, soql)
}

func (a *API) GetTransactionItems(ctx context.Context, transactionID string) ([]RemoteTransactionItem, error) {
	soql := fmt.Sprintf("SELECT Id, Transaction__c, Inventory__c, Quantity__c, Unit_Price__c, Subtotal__c "+
		"FROM Transaction_Item__c WHERE Transaction__c = '%s'", soqlString(transactionID))
	return QueryAll[RemoteTransactionItem](ctx, a.client, soql)
}

// UpsertBranch upserts a branch by its external code.
func (a *API) UpsertBranch(ctx context.Context, code string, fields map[string]interface{}) (string, error) {
	return a.client.Upsert(ctx, ObjBranch, "Code__c", code, fields)
}

// UpsertProduct upserts a product by SKU. Products without a SKU cannot be
// matched to an existing record and are created instead.
func (a *API) UpsertProduct(ctx context.Context, sku string, fields map[string]interface{}) (string, error) {
	if sku == "" {
		return a.client.Create(ctx, ObjProduct, fields)
	}
	return a.client.Upsert(ctx, ObjProduct, "SKU__c", sku, fields)
}

// UpsertInventory upserts an inventory item by barcode.
func (a *API) UpsertInventory(ctx context.Context, barcode string, fields map[string]interface{}) (string, error) {
	return a.client.Upsert(ctx, ObjInventory, "Barcode__c", barcode, fields)
}

// BatchUpsertInventory upserts many inventory items by barcode in composite
// windows.
func (a *API) BatchUpsertInventory(ctx context.Context, records []BatchRecord) ([]BatchResult, error) {
	return a.client.BatchUpsert(ctx, ObjInventory, "Barcode__c", records)
}

// UpsertCustomer upserts a customer by phone number. Customers without a
// phone number are created.
func (a *API) UpsertCustomer(ctx context.Context, phone string, fields map[string]interface{}) (string, error) {
	if phone == "" {
		return a.client.Create(ctx, ObjCustomer, fields)
	}
	return a.client.Upsert(ctx, ObjCustomer, "Phone__c", phone, fields)
}

// UpsertTransaction upserts a transaction by invoice number.
func (a *API) UpsertTransaction(ctx context.Context, invoiceNo string, fields map[string]interface{}) (string, error) {
	return a.client.Upsert(ctx, ObjTransaction, "Invoice_Number__c", invoiceNo, fields)
}

// CreateGoldPrice always creates a new gold price record; price history is
// append-only on the remote side.
func (a *API) CreateGoldPrice(ctx context.Context, fields map[string]interface{}) (string, error) {
	return a.client.Create(ctx, ObjGoldPrice, fields)
}

// CreateTransactionItem creates a transaction line item.
func (a *API) CreateTransactionItem(ctx context.Context, fields map[string]interface{}) (string, error) {
	return a.client.Create(ctx, ObjTransactionItem, fields)
}
