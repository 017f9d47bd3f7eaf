package transactions

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/tokomas/goldpos/internal/models"
)

const customerColumns = "id, name, phone, nik, address, notes, total_transactions, salesforce_id, created_at"

// CreateCustomer registers a new customer and journals the insert.
func (m *Manager) CreateCustomer(c *models.Customer) (*models.Customer, error) {
	c.ID = uuid.New().String()
	_, err := m.db.Exec(`
		INSERT INTO customers (id, name, phone, nik, address, notes)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.Phone, c.NIK, c.Address, c.Notes)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	if err := m.tracker.LogChange("customers", c.ID, "insert", nil); err != nil {
		return nil, err
	}
	return m.GetCustomer(c.ID)
}

// UpdateCustomer updates a customer's contact details and journals the change.
func (m *Manager) UpdateCustomer(c *models.Customer) (*models.Customer, error) {
	res, err := m.db.Exec(`
		UPDATE customers SET name = ?, phone = ?, nik = ?, address = ?, notes = ?
		WHERE id = ?
	`, c.Name, c.Phone, c.NIK, c.Address, c.Notes, c.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to update customer: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrCustomerNotFound
	}
	if err := m.tracker.LogChange("customers", c.ID, "update", nil); err != nil {
		return nil, err
	}
	return m.GetCustomer(c.ID)
}

// GetCustomer loads a customer by id.
func (m *Manager) GetCustomer(id string) (*models.Customer, error) {
	row := m.db.QueryRow("SELECT "+customerColumns+" FROM customers WHERE id = ?", id)
	return scanCustomer(row)
}

// SearchCustomers matches name or phone by substring, newest first. An empty
// query lists everyone.
func (m *Manager) SearchCustomers(query string) ([]models.Customer, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if query == "" {
		rows, err = m.db.Query("SELECT " + customerColumns + " FROM customers ORDER BY created_at DESC")
	} else {
		like := "%" + query + "%"
		rows, err = m.db.Query(
			"SELECT "+customerColumns+" FROM customers WHERE name LIKE ? OR phone LIKE ? ORDER BY created_at DESC",
			like, like)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var customers []models.Customer
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Phone, &c.NIK, &c.Address, &c.Notes,
			&c.TotalTransactions, &c.SalesforceID, &c.CreatedAt); err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func scanCustomer(row *sql.Row) (*models.Customer, error) {
	var c models.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.NIK, &c.Address, &c.Notes,
		&c.TotalTransactions, &c.SalesforceID, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
