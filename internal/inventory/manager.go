package inventory

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tokomas/goldpos/internal/models"
	"github.com/tokomas/goldpos/internal/sync"
)

var (
	ErrNotFound       = errors.New("record not found")
	ErrInvalidBarcode = errors.New("invalid barcode")
)

// Stats summarizes stock for the dashboard.
type Stats struct {
	TotalItems     int     `json:"total_items"`
	AvailableItems int     `json:"available_items"`
	ReservedItems  int     `json:"reserved_items"`
	SoldItems      int     `json:"sold_items"`
	TotalWeight    float64 `json:"total_weight_gram"`
	TotalValue     int     `json:"total_value"`
}

// Manager handles products and physical stock. Every mutation is journaled
// for the next sync push.
type Manager struct {
	db      *sql.DB
	tracker *sync.Tracker
	logger  *logrus.Logger
}

// NewManager creates an inventory manager.
func NewManager(db *sql.DB, tracker *sync.Tracker, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{db: db, tracker: tracker, logger: logger}
}

// CreateProduct adds a product definition.
func (m *Manager) CreateProduct(p *models.Product) (*models.Product, error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	_, err := m.db.Exec(`
		INSERT INTO products (id, category_id, sku, name, description, gold_type,
		                      gold_purity, weight_gram, labor_cost, images, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
	`, p.ID, p.CategoryID, p.SKU, p.Name, p.Description, p.GoldType,
		p.GoldPurity, p.WeightGram, p.LaborCost, p.Images)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	if err := m.tracker.LogChange("products", p.ID, "insert", nil); err != nil {
		return nil, err
	}
	return m.GetProduct(p.ID)
}

// UpdateProduct modifies a product definition.
func (m *Manager) UpdateProduct(p *models.Product) (*models.Product, error) {
	res, err := m.db.Exec(`
		UPDATE products
		SET category_id = ?, sku = ?, name = ?, description = ?, gold_type = ?,
		    gold_purity = ?, weight_gram = ?, labor_cost = ?, images = ?, is_active = ?
		WHERE id = ?
	`, p.CategoryID, p.SKU, p.Name, p.Description, p.GoldType,
		p.GoldPurity, p.WeightGram, p.LaborCost, p.Images, p.IsActive, p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	if err := m.tracker.LogChange("products", p.ID, "update", nil); err != nil {
		return nil, err
	}
	return m.GetProduct(p.ID)
}

// DeleteProduct soft-deletes a product by marking it inactive.
func (m *Manager) DeleteProduct(id string) error {
	res, err := m.db.Exec("UPDATE products SET is_active = 0 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return m.tracker.LogChange("products", id, "delete", nil)
}

// GetProduct loads a product by id.
func (m *Manager) GetProduct(id string) (*models.Product, error) {
	var p models.Product
	err := m.db.QueryRow(`
		SELECT id, category_id, sku, name, description, gold_type, gold_purity,
		       weight_gram, labor_cost, images, is_active, created_at
		FROM products WHERE id = ?
	`, id).Scan(&p.ID, &p.CategoryID, &p.SKU, &p.Name, &p.Description, &p.GoldType,
		&p.GoldPurity, &p.WeightGram, &p.LaborCost, &p.Images, &p.IsActive, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProducts returns active products, optionally filtered by category.
func (m *Manager) ListProducts(categoryID string) ([]models.Product, error) {
	query := `
		SELECT id, category_id, sku, name, description, gold_type, gold_purity,
		       weight_gram, labor_cost, images, is_active, created_at
		FROM products WHERE is_active = 1`
	args := []interface{}{}
	if categoryID != "" {
		query += " AND category_id = ?"
		args = append(args, categoryID)
	}
	query += " ORDER BY name ASC"

	rows, err := m.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.CategoryID, &p.SKU, &p.Name, &p.Description,
			&p.GoldType, &p.GoldPurity, &p.WeightGram, &p.LaborCost, &p.Images,
			&p.IsActive, &p.CreatedAt); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ListCategories returns all jewelry categories.
func (m *Manager) ListCategories() ([]models.Category, error) {
	rows, err := m.db.Query("SELECT id, name, description, created_at FROM categories ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// NextBarcode generates a fresh barcode for a category code, sequencing past
// the highest existing item with that prefix.
func (m *Manager) NextBarcode(categoryCode string) (string, error) {
	prefix := fmt.Sprintf("EM-%s-", categoryCode)
	var count int
	err := m.db.QueryRow(
		"SELECT COUNT(*) FROM inventory WHERE barcode LIKE ?", prefix+"%",
	).Scan(&count)
	if err != nil {
		return "", err
	}
	return GenerateBarcode(categoryCode, count+1), nil
}

// AddItem registers a physical stock item. A missing barcode is generated
// from the product's category.
func (m *Manager) AddItem(item *models.Inventory) (*models.Inventory, error) {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.BranchID == "" {
		item.BranchID = "default"
	}
	if item.Barcode == "" {
		product, err := m.GetProduct(item.ProductID)
		if err != nil {
			return nil, err
		}
		var categoryName string
		if err := m.db.QueryRow(
			"SELECT name FROM categories WHERE id = ?", product.CategoryID,
		).Scan(&categoryName); err != nil {
			return nil, fmt.Errorf("category not found: %w", err)
		}
		barcode, err := m.NextBarcode(CategoryCode(categoryName))
		if err != nil {
			return nil, err
		}
		item.Barcode = barcode
	}
	if !ValidateBarcode(item.Barcode) {
		return nil, ErrInvalidBarcode
	}

	_, err := m.db.Exec(`
		INSERT INTO inventory (id, product_id, branch_id, barcode, status, location,
		                       purchase_price, purchase_date, supplier, notes)
		VALUES (?, ?, ?, ?, 'available', ?, ?, ?, ?, ?)
	`, item.ID, item.ProductID, item.BranchID, item.Barcode, item.Location,
		item.PurchasePrice, item.PurchaseDate, item.Supplier, item.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to add inventory: %w", err)
	}
	if err := m.tracker.LogChange("inventory", item.ID, "insert", nil); err != nil {
		return nil, err
	}

	m.logger.WithFields(logrus.Fields{
		"barcode":    item.Barcode,
		"product_id": item.ProductID,
	}).Info("Inventory item added")

	return m.GetItem(item.ID)
}

// GetItem loads an inventory item with its product joined.
func (m *Manager) GetItem(id string) (*models.Inventory, error) {
	return m.scanItemWhere("i.id = ?", id)
}

// ScanBarcode looks up an item by barcode, as used at the register.
func (m *Manager) ScanBarcode(barcode string) (*models.Inventory, error) {
	return m.scanItemWhere("i.barcode = ?", barcode)
}

func (m *Manager) scanItemWhere(cond string, arg interface{}) (*models.Inventory, error) {
	var inv models.Inventory
	var p models.Product
	err := m.db.QueryRow(`
		SELECT i.id, i.product_id, i.branch_id, i.barcode, i.status, i.location,
		       i.purchase_price, i.purchase_date, i.supplier, i.notes, i.sold_at, i.created_at,
		       p.id, p.category_id, p.sku, p.name, p.gold_type, p.gold_purity,
		       p.weight_gram, p.labor_cost
		FROM inventory i
		JOIN products p ON p.id = i.product_id
		WHERE `+cond, arg).Scan(
		&inv.ID, &inv.ProductID, &inv.BranchID, &inv.Barcode, &inv.Status, &inv.Location,
		&inv.PurchasePrice, &inv.PurchaseDate, &inv.Supplier, &inv.Notes, &inv.SoldAt, &inv.CreatedAt,
		&p.ID, &p.CategoryID, &p.SKU, &p.Name, &p.GoldType, &p.GoldPurity,
		&p.WeightGram, &p.LaborCost)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	inv.Product = &p
	return &inv, nil
}

// ListItems returns stock, optionally filtered by status.
func (m *Manager) ListItems(status string) ([]models.Inventory, error) {
	query := `
		SELECT id, product_id, branch_id, barcode, status, location,
		       purchase_price, purchase_date, supplier, notes, sold_at, created_at
		FROM inventory`
	args := []interface{}{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"

	rows, err := m.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.Inventory
	for rows.Next() {
		var inv models.Inventory
		if err := rows.Scan(&inv.ID, &inv.ProductID, &inv.BranchID, &inv.Barcode,
			&inv.Status, &inv.Location, &inv.PurchasePrice, &inv.PurchaseDate,
			&inv.Supplier, &inv.Notes, &inv.SoldAt, &inv.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, inv)
	}
	return items, rows.Err()
}

// UpdateLocation moves an item within the shop.
func (m *Manager) UpdateLocation(id, location string) error {
	res, err := m.db.Exec("UPDATE inventory SET location = ? WHERE id = ?", location, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return m.tracker.LogChange("inventory", id, "update", nil)
}

// GetStats aggregates stock counts, weight and value of unsold items.
func (m *Manager) GetStats() (*Stats, error) {
	var s Stats
	err := m.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN i.status = 'available' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN i.status = 'reserved' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN i.status = 'sold' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN i.status != 'sold' THEN p.weight_gram ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN i.status != 'sold' THEN i.purchase_price ELSE 0 END), 0)
		FROM inventory i
		JOIN products p ON p.id = i.product_id
	`).Scan(&s.TotalItems, &s.AvailableItems, &s.ReservedItems, &s.SoldItems,
		&s.TotalWeight, &s.TotalValue)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
