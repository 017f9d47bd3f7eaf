package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Seed inserts the default branch, admin user, categories and today's gold
// prices on a fresh database. It is a no-op when branches already exist.
func Seed(db *sql.DB) error {
	var branchCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM branches").Scan(&branchCount); err != nil {
		return err
	}
	if branchCount > 0 {
		return nil
	}

	_, err := db.Exec(`
		INSERT INTO branches (id, name, address, phone, is_active)
		VALUES ('default', 'Toko Emas Sejahtera', 'Jl. Raya No. 123, Jakarta', '021-1234567', 1)
	`)
	if err != nil {
		return fmt.Errorf("failed to insert default branch: %w", err)
	}

	// Default admin login (password: admin). Expected to be changed on
	// first use.
	hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash default password: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO users (id, branch_id, username, password_hash, full_name, role, is_active)
		VALUES ('admin', 'default', 'admin', ?, 'Administrator', 'owner', 1)
	`, string(hash))
	if err != nil {
		return fmt.Errorf("failed to insert default user: %w", err)
	}

	categories := []struct {
		id, name, description string
	}{
		{"cat-1", "Cincin", "Berbagai jenis cincin emas"},
		{"cat-2", "Kalung", "Kalung dan liontin emas"},
		{"cat-3", "Gelang", "Gelang emas berbagai model"},
		{"cat-4", "Anting", "Anting dan subang emas"},
		{"cat-5", "Liontin", "Liontin emas"},
		{"cat-6", "Batangan", "Emas batangan/lantakan"},
		{"cat-7", "Koin", "Koin emas"},
	}
	for _, c := range categories {
		if _, err := db.Exec("INSERT INTO categories (id, name, description) VALUES (?, ?, ?)",
			c.id, c.name, c.description); err != nil {
			return fmt.Errorf("failed to insert category %s: %w", c.name, err)
		}
	}

	today := time.Now().Format("2006-01-02")
	prices := []struct {
		goldType          string
		purity, buy, sell int
	}{
		{"LM", 999, 1150000, 1250000},
		{"LM", 750, 950000, 1050000},
		{"LM", 375, 475000, 525000},
		{"UBS", 999, 1145000, 1245000},
		{"UBS", 750, 945000, 1045000},
		{"Lokal", 750, 880000, 980000},
		{"Lokal", 375, 440000, 490000},
	}
	for _, p := range prices {
		_, err := db.Exec(`
			INSERT INTO gold_prices (id, date, gold_type, purity, buy_price, sell_price, source)
			VALUES (?, ?, ?, ?, ?, ?, 'Manual')
		`, uuid.New().String(), today, p.goldType, p.purity, p.buy, p.sell)
		if err != nil {
			return fmt.Errorf("failed to insert seed gold price: %w", err)
		}
	}

	return nil
}
