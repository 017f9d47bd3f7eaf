package models

// Branch represents a store branch
type Branch struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Address      *string `json:"address,omitempty"`
	Phone        *string `json:"phone,omitempty"`
	IsActive     bool    `json:"is_active"`
	SalesforceID *string `json:"salesforce_id,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    *string `json:"updated_at,omitempty"`
}

// User represents an application user (shop staff)
type User struct {
	ID           string  `json:"id"`
	BranchID     string  `json:"branch_id"`
	Username     string  `json:"username"`
	PasswordHash string  `json:"-"`
	FullName     string  `json:"full_name"`
	Role         string  `json:"role"` // "owner" or "kasir"
	IsActive     bool    `json:"is_active"`
	LastLogin    *string `json:"last_login,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// Customer represents a customer record
type Customer struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Phone             *string `json:"phone,omitempty"`
	NIK               *string `json:"nik,omitempty"`
	Address           *string `json:"address,omitempty"`
	Notes             *string `json:"notes,omitempty"`
	TotalTransactions int     `json:"total_transactions"`
	SalesforceID      *string `json:"salesforce_id,omitempty"`
	CreatedAt         string  `json:"created_at"`
}

// Category groups products by jewelry type
type Category struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

// Product represents a product definition
type Product struct {
	ID           string  `json:"id"`
	CategoryID   string  `json:"category_id"`
	SKU          *string `json:"sku,omitempty"`
	Name         string  `json:"name"`
	Description  *string `json:"description,omitempty"`
	GoldType     string  `json:"gold_type"`   // "LM", "UBS" or "Lokal"
	GoldPurity   int     `json:"gold_purity"` // 375-999
	WeightGram   float64 `json:"weight_gram"`
	LaborCost    int     `json:"labor_cost"`
	Images       *string `json:"images,omitempty"`
	IsActive     bool    `json:"is_active"`
	SalesforceID *string `json:"salesforce_id,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// Inventory represents a physical stock item identified by barcode
type Inventory struct {
	ID            string  `json:"id"`
	ProductID     string  `json:"product_id"`
	BranchID      string  `json:"branch_id"`
	Barcode       string  `json:"barcode"`
	Status        string  `json:"status"` // "available", "sold" or "reserved"
	Location      *string `json:"location,omitempty"`
	PurchasePrice int     `json:"purchase_price"`
	PurchaseDate  *string `json:"purchase_date,omitempty"`
	Supplier      *string `json:"supplier,omitempty"`
	Notes         *string `json:"notes,omitempty"`
	SoldAt        *string `json:"sold_at,omitempty"`
	SalesforceID  *string `json:"salesforce_id,omitempty"`
	CreatedAt     string  `json:"created_at"`

	// Joined fields
	Product *Product `json:"product,omitempty"`
}

// GoldPrice represents the daily buy/sell price for a gold type and purity
type GoldPrice struct {
	ID           string  `json:"id"`
	Date         string  `json:"date"`
	GoldType     string  `json:"gold_type"`
	Purity       int     `json:"purity"`
	BuyPrice     int     `json:"buy_price"`
	SellPrice    int     `json:"sell_price"`
	Source       *string `json:"source,omitempty"`
	SalesforceID *string `json:"salesforce_id,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// Transaction represents a sale, buyback or exchange
type Transaction struct {
	ID           string  `json:"id"`
	BranchID     string  `json:"branch_id"`
	UserID       string  `json:"user_id"`
	CustomerID   *string `json:"customer_id,omitempty"`
	InvoiceNo    string  `json:"invoice_no"`
	Type         string  `json:"type"` // "sale", "buyback" or "exchange"
	Subtotal     int     `json:"subtotal"`
	Discount     int     `json:"discount"`
	TotalAmount  int     `json:"total_amount"`
	Notes        *string `json:"notes,omitempty"`
	Status       string  `json:"status"` // "pending", "completed" or "void"
	SalesforceID *string `json:"salesforce_id,omitempty"`
	CreatedAt    string  `json:"created_at"`

	// Joined fields
	Customer *Customer         `json:"customer,omitempty"`
	Items    []TransactionItem `json:"items,omitempty"`
	Payments []Payment         `json:"payments,omitempty"`
}

// TransactionItem is a single inventory line within a transaction
type TransactionItem struct {
	ID            string  `json:"id"`
	TransactionID string  `json:"transaction_id"`
	InventoryID   string  `json:"inventory_id"`
	Quantity      int     `json:"quantity"`
	UnitPrice     int     `json:"unit_price"`
	Subtotal      int     `json:"subtotal"`
	GoldPriceRef  *int    `json:"gold_price_ref,omitempty"`
	SalesforceID  *string `json:"salesforce_id,omitempty"`

	// Joined fields
	Inventory *Inventory `json:"inventory,omitempty"`
}

// Payment records a payment against a transaction
type Payment struct {
	ID            string  `json:"id"`
	TransactionID string  `json:"transaction_id"`
	Method        string  `json:"method"` // "cash", "qris" or "bank_transfer"
	Amount        int     `json:"amount"`
	ReferenceNo   *string `json:"reference_no,omitempty"`
	BankName      *string `json:"bank_name,omitempty"`
	Status        string  `json:"status"` // "pending", "success" or "failed"
	PaidAt        *string `json:"paid_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// SyncConfig is the persisted singleton Salesforce sync configuration
type SyncConfig struct {
	ID                  string  `json:"id"`
	SfClientID          *string `json:"sf_client_id,omitempty"`
	SfClientSecret      *string `json:"sf_client_secret,omitempty"`
	SfUsername          *string `json:"sf_username,omitempty"`
	SfPassword          *string `json:"-"`
	SfSecurityToken     *string `json:"-"`
	SfInstanceURL       *string `json:"sf_instance_url,omitempty"`
	IsSandbox           bool    `json:"is_sandbox"`
	SyncEnabled         bool    `json:"sync_enabled"`
	SyncIntervalMinutes int     `json:"sync_interval_minutes"`
	CreatedAt           string  `json:"created_at"`
	UpdatedAt           *string `json:"updated_at,omitempty"`
}

// SyncStatus is the external status snapshot of the sync engine
type SyncStatus struct {
	IsConnected    bool    `json:"is_connected"`
	SyncEnabled    bool    `json:"sync_enabled"`
	LastSyncAt     *string `json:"last_sync_at,omitempty"`
	PendingChanges int     `json:"pending_changes"`
	ErrorMessage   *string `json:"error_message,omitempty"`
}

// SyncResult summarizes a completed sync run
type SyncResult struct {
	Success       bool     `json:"success"`
	RecordsPushed int      `json:"records_pushed"`
	RecordsPulled int      `json:"records_pulled"`
	Errors        []string `json:"errors"`
	CompletedAt   string   `json:"completed_at"`
}
