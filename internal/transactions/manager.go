package transactions

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tokomas/goldpos/internal/metrics"
	"github.com/tokomas/goldpos/internal/models"
	"github.com/tokomas/goldpos/internal/sync"
)

var (
	ErrNotFound         = errors.New("transaction not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrItemUnavailable  = errors.New("inventory item is not available")
	ErrAlreadyVoided    = errors.New("transaction already voided")
	ErrNoItems          = errors.New("transaction needs at least one item")
)

// ItemInput is one line of a new transaction.
type ItemInput struct {
	InventoryID string `json:"inventory_id"`
	UnitPrice   int    `json:"unit_price"`
}

// CreateInput describes a new transaction.
type CreateInput struct {
	BranchID   string      `json:"branch_id"`
	UserID     string      `json:"user_id"`
	CustomerID *string     `json:"customer_id,omitempty"`
	Type       string      `json:"type"`
	Discount   int         `json:"discount"`
	Notes      *string     `json:"notes,omitempty"`
	Items      []ItemInput `json:"items"`
}

// PaymentInput describes a payment against a transaction.
type PaymentInput struct {
	TransactionID string  `json:"transaction_id"`
	Method        string  `json:"method"`
	Amount        int     `json:"amount"`
	ReferenceNo   *string `json:"reference_no,omitempty"`
	BankName      *string `json:"bank_name,omitempty"`
}

// Manager handles customers, transactions and payments. Mutations that sync
// upstream are journaled.
type Manager struct {
	db      *sql.DB
	tracker *sync.Tracker
	logger  *logrus.Logger
}

// NewManager creates a transaction manager.
func NewManager(db *sql.DB, tracker *sync.Tracker, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{db: db, tracker: tracker, logger: logger}
}

// invoicePrefix maps a transaction type to its invoice series.
func invoicePrefix(txType string) string {
	switch txType {
	case "sale":
		return "INV"
	case "buyback":
		return "BUY"
	case "exchange":
		return "EXC"
	default:
		return "TRX"
	}
}

// NextInvoiceNo issues the next invoice number in the per-day series,
// e.g. INV-20260826-003.
func (m *Manager) NextInvoiceNo(txType string) (string, error) {
	prefix := invoicePrefix(txType)
	today := time.Now().Format("20060102")
	pattern := fmt.Sprintf("%s-%s-%%", prefix, today)

	var count int
	if err := m.db.QueryRow(
		"SELECT COUNT(*) FROM transactions WHERE invoice_no LIKE ?", pattern,
	).Scan(&count); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%s-%03d", prefix, today, count+1), nil
}

// Create opens a pending transaction. Sale items must be available and are
// reserved until payment completes.
func (m *Manager) Create(input *CreateInput) (*models.Transaction, error) {
	if len(input.Items) == 0 {
		return nil, ErrNoItems
	}
	if input.BranchID == "" {
		input.BranchID = "default"
	}

	if input.Type == "sale" {
		for _, item := range input.Items {
			var status string
			err := m.db.QueryRow(
				"SELECT status FROM inventory WHERE id = ?", item.InventoryID,
			).Scan(&status)
			if err != nil {
				return nil, fmt.Errorf("inventory %s: %w", item.InventoryID, err)
			}
			if status != "available" {
				return nil, fmt.Errorf("%w: %s is %s", ErrItemUnavailable, item.InventoryID, status)
			}
		}
	}

	invoiceNo, err := m.NextInvoiceNo(input.Type)
	if err != nil {
		return nil, err
	}

	subtotal := 0
	for _, item := range input.Items {
		subtotal += item.UnitPrice
	}
	totalAmount := subtotal - input.Discount

	id := uuid.New().String()
	_, err = m.db.Exec(`
		INSERT INTO transactions (id, branch_id, user_id, customer_id, invoice_no, type,
		                          subtotal, discount, total_amount, notes, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'pending')
	`, id, input.BranchID, input.UserID, input.CustomerID, invoiceNo, input.Type,
		subtotal, input.Discount, totalAmount, input.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	for _, item := range input.Items {
		_, err = m.db.Exec(`
			INSERT INTO transaction_items (id, transaction_id, inventory_id, quantity, unit_price, subtotal)
			VALUES (?, ?, ?, 1, ?, ?)
		`, uuid.New().String(), id, item.InventoryID, item.UnitPrice, item.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("failed to add transaction item: %w", err)
		}

		if input.Type == "sale" {
			if _, err := m.db.Exec(
				"UPDATE inventory SET status = 'reserved' WHERE id = ?", item.InventoryID,
			); err != nil {
				return nil, err
			}
			if err := m.tracker.LogChange("inventory", item.InventoryID, "update", nil); err != nil {
				return nil, err
			}
		}
	}

	if err := m.tracker.LogChange("transactions", id, "insert", nil); err != nil {
		return nil, err
	}

	metrics.TransactionsCreated.WithLabelValues(input.Type).Inc()
	m.logger.WithFields(logrus.Fields{
		"invoice_no": invoiceNo,
		"type":       input.Type,
		"total":      totalAmount,
	}).Info("Transaction created")

	return m.Get(id)
}

// ProcessPayment records a payment. When the success payments cover the
// total, the transaction completes: sale items become sold and the
// customer's counter advances.
func (m *Manager) ProcessPayment(input *PaymentInput) (*models.Payment, error) {
	tx, err := m.Get(input.TransactionID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	paymentID := uuid.New().String()
	_, err = m.db.Exec(`
		INSERT INTO payments (id, transaction_id, method, amount, reference_no, bank_name, status, paid_at)
		VALUES (?, ?, ?, ?, ?, ?, 'success', ?)
	`, paymentID, input.TransactionID, input.Method, input.Amount,
		input.ReferenceNo, input.BankName, now)
	if err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	var totalPaid int
	if err := m.db.QueryRow(
		"SELECT COALESCE(SUM(amount), 0) FROM payments WHERE transaction_id = ? AND status = 'success'",
		input.TransactionID,
	).Scan(&totalPaid); err != nil {
		return nil, err
	}

	if totalPaid >= tx.TotalAmount {
		if err := m.complete(tx, now); err != nil {
			return nil, err
		}
	}

	metrics.PaymentsProcessed.WithLabelValues(input.Method, "success").Inc()
	return m.getPayment(paymentID)
}

func (m *Manager) complete(tx *models.Transaction, now string) error {
	if _, err := m.db.Exec(
		"UPDATE transactions SET status = 'completed' WHERE id = ?", tx.ID,
	); err != nil {
		return err
	}

	if tx.Type == "sale" {
		if _, err := m.db.Exec(`
			UPDATE inventory SET status = 'sold', sold_at = ?
			WHERE id IN (SELECT inventory_id FROM transaction_items WHERE transaction_id = ?)
		`, now, tx.ID); err != nil {
			return err
		}
		for _, item := range tx.Items {
			if err := m.tracker.LogChange("inventory", item.InventoryID, "update", nil); err != nil {
				return err
			}
		}
	}

	if tx.CustomerID != nil {
		if _, err := m.db.Exec(
			"UPDATE customers SET total_transactions = total_transactions + 1 WHERE id = ?",
			*tx.CustomerID,
		); err != nil {
			return err
		}
		if err := m.tracker.LogChange("customers", *tx.CustomerID, "update", nil); err != nil {
			return err
		}
	}

	if err := m.tracker.LogChange("transactions", tx.ID, "update", nil); err != nil {
		return err
	}

	m.logger.WithField("invoice_no", tx.InvoiceNo).Info("Transaction completed")
	return nil
}

// Void cancels a transaction and releases reserved or sold sale items.
func (m *Manager) Void(transactionID, reason string) error {
	tx, err := m.Get(transactionID)
	if err != nil {
		return err
	}
	if tx.Status == "void" {
		return ErrAlreadyVoided
	}

	notes := fmt.Sprintf("VOID: %s", reason)
	if _, err := m.db.Exec(
		"UPDATE transactions SET status = 'void', notes = ? WHERE id = ?", notes, transactionID,
	); err != nil {
		return err
	}

	if tx.Type == "sale" {
		if _, err := m.db.Exec(`
			UPDATE inventory SET status = 'available', sold_at = NULL
			WHERE id IN (SELECT inventory_id FROM transaction_items WHERE transaction_id = ?)
		`, transactionID); err != nil {
			return err
		}
		for _, item := range tx.Items {
			if err := m.tracker.LogChange("inventory", item.InventoryID, "update", nil); err != nil {
				return err
			}
		}
	}

	if err := m.tracker.LogChange("transactions", transactionID, "update", nil); err != nil {
		return err
	}

	m.logger.WithFields(logrus.Fields{
		"invoice_no": tx.InvoiceNo,
		"reason":     reason,
	}).Info("Transaction voided")
	return nil
}

// Get loads a transaction with items and payments.
func (m *Manager) Get(id string) (*models.Transaction, error) {
	var tx models.Transaction
	err := m.db.QueryRow(`
		SELECT id, branch_id, user_id, customer_id, invoice_no, type, subtotal,
		       discount, total_amount, notes, status, created_at
		FROM transactions WHERE id = ?
	`, id).Scan(&tx.ID, &tx.BranchID, &tx.UserID, &tx.CustomerID, &tx.InvoiceNo,
		&tx.Type, &tx.Subtotal, &tx.Discount, &tx.TotalAmount, &tx.Notes,
		&tx.Status, &tx.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := m.db.Query(`
		SELECT id, transaction_id, inventory_id, quantity, unit_price, subtotal
		FROM transaction_items WHERE transaction_id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item models.TransactionItem
		if err := rows.Scan(&item.ID, &item.TransactionID, &item.InventoryID,
			&item.Quantity, &item.UnitPrice, &item.Subtotal); err != nil {
			return nil, err
		}
		tx.Items = append(tx.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	payRows, err := m.db.Query(`
		SELECT id, transaction_id, method, amount, reference_no, bank_name, status, paid_at, created_at
		FROM payments WHERE transaction_id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	defer payRows.Close()
	for payRows.Next() {
		var p models.Payment
		if err := payRows.Scan(&p.ID, &p.TransactionID, &p.Method, &p.Amount,
			&p.ReferenceNo, &p.BankName, &p.Status, &p.PaidAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		tx.Payments = append(tx.Payments, p)
	}
	if err := payRows.Err(); err != nil {
		return nil, err
	}

	if tx.CustomerID != nil {
		customer, err := m.GetCustomer(*tx.CustomerID)
		if err != nil && err != ErrCustomerNotFound {
			return nil, err
		}
		tx.Customer = customer
	}
	return &tx, nil
}

// List returns transactions filtered by date range and type, newest first.
func (m *Manager) List(dateFrom, dateTo, txType string) ([]models.Transaction, error) {
	query := `
		SELECT id, branch_id, user_id, customer_id, invoice_no, type, subtotal,
		       discount, total_amount, notes, status, created_at
		FROM transactions WHERE 1=1`
	args := []interface{}{}
	if dateFrom != "" {
		query += " AND date(created_at) >= ?"
		args = append(args, dateFrom)
	}
	if dateTo != "" {
		query += " AND date(created_at) <= ?"
		args = append(args, dateTo)
	}
	if txType != "" {
		query += " AND type = ?"
		args = append(args, txType)
	}
	query += " ORDER BY created_at DESC"

	rows, err := m.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(&tx.ID, &tx.BranchID, &tx.UserID, &tx.CustomerID,
			&tx.InvoiceNo, &tx.Type, &tx.Subtotal, &tx.Discount, &tx.TotalAmount,
			&tx.Notes, &tx.Status, &tx.CreatedAt); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (m *Manager) getPayment(id string) (*models.Payment, error) {
	var p models.Payment
	err := m.db.QueryRow(`
		SELECT id, transaction_id, method, amount, reference_no, bank_name, status, paid_at, created_at
		FROM payments WHERE id = ?
	`, id).Scan(&p.ID, &p.TransactionID, &p.Method, &p.Amount, &p.ReferenceNo,
		&p.BankName, &p.Status, &p.PaidAt, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
