package goldprice

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tokomas/goldpos/internal/models"
	"github.com/tokomas/goldpos/internal/sync"
)

var ErrNotFound = errors.New("gold price not found")

// Manager maintains the daily gold price table. Prices are keyed by
// (date, gold_type, purity); manual updates are journaled for push.
type Manager struct {
	db      *sql.DB
	tracker *sync.Tracker
	logger  *logrus.Logger
}

// NewManager creates a gold price manager.
func NewManager(db *sql.DB, tracker *sync.Tracker, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Manager{db: db, tracker: tracker, logger: logger}
}

// SetPrice records today's buy/sell price for a gold type and purity,
// replacing an existing row for the same key.
func (m *Manager) SetPrice(goldType string, purity, buyPrice, sellPrice int, source string) (*models.GoldPrice, error) {
	date := time.Now().Format("2006-01-02")

	var id string
	err := m.db.QueryRow(
		"SELECT id FROM gold_prices WHERE date = ? AND gold_type = ? AND purity = ?",
		date, goldType, purity,
	).Scan(&id)

	action := "update"
	switch {
	case err == sql.ErrNoRows:
		id = uuid.New().String()
		action = "insert"
		_, err = m.db.Exec(`
			INSERT INTO gold_prices (id, date, gold_type, purity, buy_price, sell_price, source)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, date, goldType, purity, buyPrice, sellPrice, source)
	case err == nil:
		_, err = m.db.Exec(
			"UPDATE gold_prices SET buy_price = ?, sell_price = ?, source = ? WHERE id = ?",
			buyPrice, sellPrice, source, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set gold price: %w", err)
	}

	if err := m.tracker.LogChange("gold_prices", id, action, nil); err != nil {
		return nil, err
	}

	m.logger.WithFields(logrus.Fields{
		"gold_type": goldType,
		"purity":    purity,
		"sell":      sellPrice,
	}).Info("Gold price set")

	return m.getByID(id)
}

// TodayPrices returns all of today's prices.
func (m *Manager) TodayPrices() ([]models.GoldPrice, error) {
	return m.queryPrices(
		"WHERE date = ? ORDER BY gold_type, purity DESC",
		time.Now().Format("2006-01-02"))
}

// LatestPrice returns the most recent price row for a gold type and purity.
func (m *Manager) LatestPrice(goldType string, purity int) (*models.GoldPrice, error) {
	prices, err := m.queryPrices(
		"WHERE gold_type = ? AND purity = ? ORDER BY date DESC LIMIT 1", goldType, purity)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, ErrNotFound
	}
	return &prices[0], nil
}

// History returns the price rows for a gold type and purity, newest first.
func (m *Manager) History(goldType string, purity, limit int) ([]models.GoldPrice, error) {
	if limit <= 0 {
		limit = 30
	}
	return m.queryPrices(
		"WHERE gold_type = ? AND purity = ? ORDER BY date DESC LIMIT ?", goldType, purity, limit)
}

// SellingPrice computes the price of a product at the latest rate:
// weight × price-per-gram + labor cost.
func (m *Manager) SellingPrice(p *models.Product) (int, error) {
	price, err := m.LatestPrice(p.GoldType, p.GoldPurity)
	if err != nil {
		return 0, err
	}
	return int(p.WeightGram*float64(price.SellPrice)) + p.LaborCost, nil
}

func (m *Manager) getByID(id string) (*models.GoldPrice, error) {
	prices, err := m.queryPrices("WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, ErrNotFound
	}
	return &prices[0], nil
}

func (m *Manager) queryPrices(clause string, args ...interface{}) ([]models.GoldPrice, error) {
	rows, err := m.db.Query(`
		SELECT id, date, gold_type, purity, buy_price, sell_price, source, salesforce_id, created_at
		FROM gold_prices `+clause, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []models.GoldPrice
	for rows.Next() {
		var gp models.GoldPrice
		if err := rows.Scan(&gp.ID, &gp.Date, &gp.GoldType, &gp.Purity, &gp.BuyPrice,
			&gp.SellPrice, &gp.Source, &gp.SalesforceID, &gp.CreatedAt); err != nil {
			return nil, err
		}
		prices = append(prices, gp)
	}
	return prices, rows.Err()
}
