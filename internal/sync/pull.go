package sync

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tokomas/goldpos/internal/salesforce"
)

// PullResult aggregates the outcome of a pull run.
type PullResult struct {
	RecordsPulled int
	Errors        []string
}

func (r *PullResult) merge(other PullResult) {
	r.RecordsPulled += other.RecordsPulled
	r.Errors = append(r.Errors, other.Errors...)
}

// Puller fetches remote records into the local store, upserting by natural
// key and advancing per-table watermarks.
type Puller struct {
	db     *sql.DB
	api    *salesforce.API
	logger *logrus.Logger
}

// NewPuller creates a pull coordinator.
func NewPuller(db *sql.DB, api *salesforce.API, logger *logrus.Logger) *Puller {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Puller{db: db, api: api, logger: logger}
}

// PullAll pulls master data first, then inventory.
func (p *Puller) PullAll(ctx context.Context) (PullResult, error) {
	var result PullResult

	sub, err := p.PullGoldPrices(ctx)
	if err != nil {
		return result, err
	}
	result.merge(sub)

	sub, err = p.PullProducts(ctx)
	if err != nil {
		return result, err
	}
	result.merge(sub)

	sub, err = p.PullInventory(ctx, "")
	if err != nil {
		return result, err
	}
	result.merge(sub)

	if err := p.updatePullMetadata("full", result.RecordsPulled); err != nil {
		p.logger.WithError(err).Warn("Failed to update sync metadata")
	}
	return result, nil
}

// PullGoldPrices fetches today's prices and upserts them by
// (date, gold_type, purity). Remote prices win over local ones.
func (p *Puller) PullGoldPrices(ctx context.Context) (PullResult, error) {
	var result PullResult

	today := time.Now().Format("2006-01-02")
	remote, err := p.api.GetGoldPrices(ctx, today)
	if err != nil {
		return result, err
	}

	for i := range remote {
		price := salesforce.GoldPriceFromRemote(&remote[i])

		var existingID string
		err := p.db.QueryRow(
			"SELECT id FROM gold_prices WHERE date = ? AND gold_type = ? AND purity = ?",
			price.Date, price.GoldType, price.Purity,
		).Scan(&existingID)

		switch {
		case err == sql.ErrNoRows:
			_, err = p.db.Exec(`
				INSERT INTO gold_prices (id, date, gold_type, purity, buy_price, sell_price, source, salesforce_id)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`, price.ID, price.Date, price.GoldType, price.Purity,
				price.BuyPrice, price.SellPrice, price.Source, remote[i].ID)
		case err == nil:
			_, err = p.db.Exec(`
				UPDATE gold_prices
				SET buy_price = ?, sell_price = ?, source = ?, salesforce_id = ?
				WHERE id = ?
			`, price.BuyPrice, price.SellPrice, price.Source, remote[i].ID, existingID)
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("gold_prices/%s: %v", remote[i].ID, err))
			continue
		}
		result.RecordsPulled++
	}

	if err := p.updatePullMetadata("gold_prices", result.RecordsPulled); err != nil {
		p.logger.WithError(err).Warn("Failed to update sync metadata")
	}
	return result, nil
}

// PullProducts fetches products modified since the last pull and upserts
// them by SKU or remote id.
func (p *Puller) PullProducts(ctx context.Context) (PullResult, error) {
	var result PullResult

	since, err := p.lastPullAt("products")
	if err != nil {
		return result, err
	}
	remote, err := p.api.GetProducts(ctx, since)
	if err != nil {
		return result, err
	}

	for i := range remote {
		product := salesforce.ProductFromRemote(&remote[i])

		var existingID string
		var lookupErr error
		if remote[i].SKU != nil && *remote[i].SKU != "" {
			lookupErr = p.db.QueryRow(
				"SELECT id FROM products WHERE sku = ? OR salesforce_id = ?",
				*remote[i].SKU, remote[i].ID,
			).Scan(&existingID)
		} else {
			lookupErr = p.db.QueryRow(
				"SELECT id FROM products WHERE salesforce_id = ?", remote[i].ID,
			).Scan(&existingID)
		}

		switch {
		case lookupErr == sql.ErrNoRows:
			_, err = p.db.Exec(`
				INSERT INTO products (id, category_id, sku, name, description, gold_type,
				                      gold_purity, weight_gram, labor_cost, is_active, salesforce_id)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, uuid.New().String(), product.CategoryID, product.SKU, product.Name,
				product.Description, product.GoldType, product.GoldPurity,
				product.WeightGram, product.LaborCost, product.IsActive, remote[i].ID)
		case lookupErr == nil:
			_, err = p.db.Exec(`
				UPDATE products
				SET name = ?, description = ?, gold_type = ?, gold_purity = ?,
				    weight_gram = ?, labor_cost = ?, is_active = ?, salesforce_id = ?
				WHERE id = ?
			`, product.Name, product.Description, product.GoldType, product.GoldPurity,
				product.WeightGram, product.LaborCost, product.IsActive, remote[i].ID, existingID)
		default:
			err = lookupErr
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("products/%s: %v", remote[i].ID, err))
			continue
		}
		result.RecordsPulled++
	}

	if err := p.updatePullMetadata("products", result.RecordsPulled); err != nil {
		p.logger.WithError(err).Warn("Failed to update sync metadata")
	}
	return result, nil
}

// PullInventory fetches inventory modified since the last pull, optionally
// filtered to one remote branch. Items referencing a product unknown locally
// are skipped with a recorded error; an unknown branch falls back to the
// default branch. Remote values win for mutable fields.
func (p *Puller) PullInventory(ctx context.Context, branchSfID string) (PullResult, error) {
	var result PullResult

	since, err := p.lastPullAt("inventory")
	if err != nil {
		return result, err
	}
	remote, err := p.api.GetInventory(ctx, since, branchSfID)
	if err != nil {
		return result, err
	}

	productLookup, err := p.reverseLookup("products")
	if err != nil {
		return result, err
	}
	branchLookup, err := p.reverseLookup("branches")
	if err != nil {
		return result, err
	}

	for i := range remote {
		item := salesforce.InventoryFromRemote(&remote[i])

		if remote[i].ProductID != nil {
			localProductID, ok := productLookup[*remote[i].ProductID]
			if !ok {
				result.Errors = append(result.Errors,
					fmt.Sprintf("Product %s not found for inventory %s", *remote[i].ProductID, item.Barcode))
				continue
			}
			item.ProductID = localProductID
		}

		item.BranchID = "default"
		if remote[i].BranchID != nil {
			if localBranchID, ok := branchLookup[*remote[i].BranchID]; ok {
				item.BranchID = localBranchID
			}
		}

		var existingID string
		lookupErr := p.db.QueryRow(
			"SELECT id FROM inventory WHERE barcode = ? OR salesforce_id = ?",
			item.Barcode, remote[i].ID,
		).Scan(&existingID)

		switch {
		case lookupErr == sql.ErrNoRows:
			_, err = p.db.Exec(`
				INSERT INTO inventory (id, product_id, branch_id, barcode, status, location,
				                       purchase_price, purchase_date, supplier, notes, sold_at, salesforce_id)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, uuid.New().String(), item.ProductID, item.BranchID, item.Barcode,
				item.Status, item.Location, item.PurchasePrice, item.PurchaseDate,
				item.Supplier, item.Notes, item.SoldAt, remote[i].ID)
		case lookupErr == nil:
			_, err = p.db.Exec(`
				UPDATE inventory
				SET status = ?, location = ?, purchase_price = ?, supplier = ?,
				    notes = ?, sold_at = ?, salesforce_id = ?
				WHERE id = ?
			`, item.Status, item.Location, item.PurchasePrice, item.Supplier,
				item.Notes, item.SoldAt, remote[i].ID, existingID)
		default:
			err = lookupErr
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("inventory/%s: %v", remote[i].ID, err))
			continue
		}
		result.RecordsPulled++
	}

	if err := p.updatePullMetadata("inventory", result.RecordsPulled); err != nil {
		p.logger.WithError(err).Warn("Failed to update sync metadata")
	}
	return result, nil
}

func (p *Puller) lastPullAt(tableName string) (string, error) {
	var last *string
	err := p.db.QueryRow(
		"SELECT last_pull_at FROM sync_metadata WHERE table_name = ?", tableName,
	).Scan(&last)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if last == nil {
		return "", nil
	}
	return *last, nil
}

func (p *Puller) updatePullMetadata(tableName string, pulled int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := p.db.Exec(`
		INSERT INTO sync_metadata (table_name, last_pull_at, records_pulled)
		VALUES (?, ?, ?)
		ON CONFLICT(table_name) DO UPDATE SET
			last_pull_at = excluded.last_pull_at,
			records_pulled = records_pulled + excluded.records_pulled
	`, tableName, now, pulled)
	return err
}

// reverseLookup maps remote ids back to local ids for rows that have been
// pushed before.
func (p *Puller) reverseLookup(tableName string) (map[string]string, error) {
	rows, err := p.db.Query(fmt.Sprintf(
		"SELECT id, salesforce_id FROM %s WHERE salesforce_id IS NOT NULL", tableName))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lookup := make(map[string]string)
	for rows.Next() {
		var localID, sfID string
		if err := rows.Scan(&localID, &sfID); err != nil {
			return nil, err
		}
		lookup[sfID] = localID
	}
	return lookup, rows.Err()
}
