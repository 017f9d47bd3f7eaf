package sync

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tokomas/goldpos/internal/models"
	"github.com/tokomas/goldpos/internal/salesforce"
)

// pushOrder is the dependency order for replaying journal entries: products
// and customers are referenced by inventory and transactions; branches are
// pre-provisioned by operator setup.
var pushOrder = []string{"products", "inventory", "customers", "gold_prices", "transactions"}

var tableToSObject = map[string]string{
	"branches":          salesforce.ObjBranch,
	"products":          salesforce.ObjProduct,
	"inventory":         salesforce.ObjInventory,
	"customers":         salesforce.ObjCustomer,
	"gold_prices":       salesforce.ObjGoldPrice,
	"transactions":      salesforce.ObjTransaction,
	"transaction_items": salesforce.ObjTransactionItem,
}

// PushResult aggregates the outcome of a push run.
type PushResult struct {
	RecordsPushed int
	Errors        []string
}

func (r *PushResult) merge(other PushResult) {
	r.RecordsPushed += other.RecordsPushed
	r.Errors = append(r.Errors, other.Errors...)
}

// Pusher replays the change journal into Salesforce in dependency order and
// materializes returned record ids back into local rows.
type Pusher struct {
	db      *sql.DB
	api     *salesforce.API
	tracker *Tracker
	logger  *logrus.Logger
}

// NewPusher creates a push coordinator.
func NewPusher(db *sql.DB, api *salesforce.API, tracker *Tracker, logger *logrus.Logger) *Pusher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pusher{db: db, api: api, tracker: tracker, logger: logger}
}

// PushAll replays all pending changes. Failures are recorded per entry and
// never abort the run.
func (p *Pusher) PushAll(ctx context.Context) (PushResult, error) {
	var result PushResult

	lookups, err := p.buildLookups()
	if err != nil {
		return result, fmt.Errorf("failed to build lookups: %w", err)
	}

	for _, table := range pushOrder {
		sub, err := p.pushTable(ctx, table, lookups)
		if err != nil {
			return result, err
		}
		result.merge(sub)
	}

	if result.RecordsPushed > 0 {
		if err := p.updatePushMetadata(result.RecordsPushed); err != nil {
			p.logger.WithError(err).Warn("Failed to update push metadata")
		}
	}

	return result, nil
}

func (p *Pusher) pushTable(ctx context.Context, tableName string, lookups *salesforce.Lookups) (PushResult, error) {
	var result PushResult

	changes, err := p.tracker.PendingChanges(tableName)
	if err != nil {
		return result, err
	}

	for _, change := range changes {
		sfID, err := p.pushChange(ctx, &change, lookups)
		if err != nil {
			if markErr := p.tracker.MarkFailed(change.ID, err.Error()); markErr != nil {
				return result, markErr
			}
			result.Errors = append(result.Errors, fmt.Sprintf("%s/%s: %v", tableName, change.RecordID, err))
			continue
		}

		if sfID != "" {
			if err := p.updateSalesforceID(tableName, change.RecordID, sfID); err != nil {
				return result, err
			}
			// New remote ids become visible to later tables in this run.
			p.recordLookup(lookups, tableName, change.RecordID, sfID)
		}
		if err := p.tracker.MarkSynced(change.ID); err != nil {
			return result, err
		}
		result.RecordsPushed++
	}

	if len(changes) > 0 {
		p.logger.WithFields(logrus.Fields{
			"table":  tableName,
			"pushed": result.RecordsPushed,
			"errors": len(result.Errors),
		}).Info("Pushed pending changes")
	}

	return result, nil
}

func (p *Pusher) pushChange(ctx context.Context, change *PendingChange, lookups *salesforce.Lookups) (string, error) {
	switch change.Action {
	case "delete":
		return "", p.handleDelete(change.TableName, change.RecordID)
	case "insert", "update":
		return p.handleUpsert(ctx, change.TableName, change.RecordID, lookups)
	default:
		return "", fmt.Errorf("unknown action: %s", change.Action)
	}
}

// handleDelete logs the delete intent without propagating it. Remote records
// keep the downstream audit trail intact.
func (p *Pusher) handleDelete(tableName, recordID string) error {
	sfID, err := p.getSalesforceID(tableName, recordID)
	if err != nil {
		return err
	}
	if sfID != "" {
		p.logger.WithFields(logrus.Fields{
			"sobject":   tableToSObject[tableName],
			"record_id": recordID,
			"sf_id":     sfID,
		}).Info("Delete logged but not propagated")
	}
	return nil
}

func (p *Pusher) handleUpsert(ctx context.Context, tableName, recordID string, lookups *salesforce.Lookups) (string, error) {
	switch tableName {
	case "products":
		product, err := p.loadProduct(recordID)
		if err != nil {
			return "", err
		}
		sku := ""
		if product.SKU != nil {
			sku = *product.SKU
		}
		return p.api.UpsertProduct(ctx, sku, salesforce.ProductToRemote(product))

	case "inventory":
		inv, err := p.loadInventory(recordID)
		if err != nil {
			return "", err
		}
		return p.api.UpsertInventory(ctx, inv.Barcode, salesforce.InventoryToRemote(inv, lookups))

	case "customers":
		customer, err := p.loadCustomer(recordID)
		if err != nil {
			return "", err
		}
		phone := ""
		if customer.Phone != nil {
			phone = *customer.Phone
		}
		return p.api.UpsertCustomer(ctx, phone, salesforce.CustomerToRemote(customer))

	case "gold_prices":
		price, err := p.loadGoldPrice(recordID)
		if err != nil {
			return "", err
		}
		return p.api.CreateGoldPrice(ctx, salesforce.GoldPriceToRemote(price))

	case "transactions":
		tx, err := p.loadTransaction(recordID)
		if err != nil {
			return "", err
		}
		return p.api.UpsertTransaction(ctx, tx.InvoiceNo, salesforce.TransactionToRemote(tx, lookups))

	default:
		return "", fmt.Errorf("unknown table: %s", tableName)
	}
}

// buildLookups scans each synced table for rows that already carry a remote
// id. The bundle's lifetime is bounded by one push run.
func (p *Pusher) buildLookups() (*salesforce.Lookups, error) {
	lookups := salesforce.NewLookups()
	targets := map[string]map[string]string{
		"branches":     lookups.Branches,
		"products":     lookups.Products,
		"inventory":    lookups.Inventory,
		"customers":    lookups.Customers,
		"transactions": lookups.Transactions,
	}
	for table, dest := range targets {
		rows, err := p.db.Query(fmt.Sprintf(
			"SELECT id, salesforce_id FROM %s WHERE salesforce_id IS NOT NULL", table))
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var localID, sfID string
			if err := rows.Scan(&localID, &sfID); err != nil {
				rows.Close()
				return nil, err
			}
			dest[localID] = sfID
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}
	return lookups, nil
}

func (p *Pusher) recordLookup(lookups *salesforce.Lookups, tableName, localID, sfID string) {
	switch tableName {
	case "branches":
		lookups.Branches[localID] = sfID
	case "products":
		lookups.Products[localID] = sfID
	case "inventory":
		lookups.Inventory[localID] = sfID
	case "customers":
		lookups.Customers[localID] = sfID
	case "transactions":
		lookups.Transactions[localID] = sfID
	}
}

func (p *Pusher) getSalesforceID(tableName, recordID string) (string, error) {
	var sfID *string
	err := p.db.QueryRow(fmt.Sprintf(
		"SELECT salesforce_id FROM %s WHERE id = ?", tableName), recordID).Scan(&sfID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if sfID == nil {
		return "", nil
	}
	return *sfID, nil
}

func (p *Pusher) updateSalesforceID(tableName, recordID, sfID string) error {
	_, err := p.db.Exec(fmt.Sprintf(
		"UPDATE %s SET salesforce_id = ? WHERE id = ?", tableName), sfID, recordID)
	return err
}

func (p *Pusher) updatePushMetadata(pushed int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := p.db.Exec(`
		INSERT INTO sync_metadata (table_name, last_push_at, records_pushed)
		VALUES ('push', ?, ?)
		ON CONFLICT(table_name) DO UPDATE SET
			last_push_at = excluded.last_push_at,
			records_pushed = records_pushed + excluded.records_pushed
	`, now, pushed)
	return err
}

func (p *Pusher) loadProduct(id string) (*models.Product, error) {
	var prod models.Product
	err := p.db.QueryRow(`
		SELECT id, category_id, sku, name, description, gold_type, gold_purity,
		       weight_gram, labor_cost, images, is_active, created_at
		FROM products WHERE id = ?
	`, id).Scan(&prod.ID, &prod.CategoryID, &prod.SKU, &prod.Name, &prod.Description,
		&prod.GoldType, &prod.GoldPurity, &prod.WeightGram, &prod.LaborCost,
		&prod.Images, &prod.IsActive, &prod.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("product %s not found: %w", id, err)
	}
	return &prod, nil
}

func (p *Pusher) loadInventory(id string) (*models.Inventory, error) {
	var inv models.Inventory
	err := p.db.QueryRow(`
		SELECT id, product_id, branch_id, barcode, status, location, purchase_price,
		       purchase_date, supplier, notes, sold_at, created_at
		FROM inventory WHERE id = ?
	`, id).Scan(&inv.ID, &inv.ProductID, &inv.BranchID, &inv.Barcode, &inv.Status,
		&inv.Location, &inv.PurchasePrice, &inv.PurchaseDate, &inv.Supplier,
		&inv.Notes, &inv.SoldAt, &inv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inventory %s not found: %w", id, err)
	}
	return &inv, nil
}

func (p *Pusher) loadCustomer(id string) (*models.Customer, error) {
	var c models.Customer
	err := p.db.QueryRow(`
		SELECT id, name, phone, nik, address, notes, total_transactions, created_at
		FROM customers WHERE id = ?
	`, id).Scan(&c.ID, &c.Name, &c.Phone, &c.NIK, &c.Address, &c.Notes,
		&c.TotalTransactions, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("customer %s not found: %w", id, err)
	}
	return &c, nil
}

func (p *Pusher) loadGoldPrice(id string) (*models.GoldPrice, error) {
	var gp models.GoldPrice
	err := p.db.QueryRow(`
		SELECT id, date, gold_type, purity, buy_price, sell_price, source, created_at
		FROM gold_prices WHERE id = ?
	`, id).Scan(&gp.ID, &gp.Date, &gp.GoldType, &gp.Purity, &gp.BuyPrice,
		&gp.SellPrice, &gp.Source, &gp.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("gold price %s not found: %w", id, err)
	}
	return &gp, nil
}

func (p *Pusher) loadTransaction(id string) (*models.Transaction, error) {
	var tx models.Transaction
	err := p.db.QueryRow(`
		SELECT id, branch_id, user_id, customer_id, invoice_no, type, subtotal,
		       discount, total_amount, notes, status, created_at
		FROM transactions WHERE id = ?
	`, id).Scan(&tx.ID, &tx.BranchID, &tx.UserID, &tx.CustomerID, &tx.InvoiceNo,
		&tx.Type, &tx.Subtotal, &tx.Discount, &tx.TotalAmount, &tx.Notes,
		&tx.Status, &tx.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("transaction %s not found: %w", id, err)
	}
	return &tx, nil
}
