package seed

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/tillerstead/tillerpro/internal/auth"
	"github.com/tillerstead/tillerpro/internal/pricing"
)

// Config contains the values required by startup seed.
type Config struct {
	AdminEmail    string
	AdminPassword string
	Catalog       *pricing.Catalog
	// RefreshPrices overwrites stored product prices with catalog prices.
	RefreshPrices bool
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Run executes the startup seed in an idempotent way.
func Run(db *sql.DB, cfg Config) (Stats, error) {
	if cfg.Catalog == nil {
		c, err := pricing.DefaultCatalog()
		if err != nil {
			return Stats{}, fmt.Errorf("load default catalog: %w", err)
		}
		cfg.Catalog = c
	}

	tx, err := db.Begin()
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	if err := seedAdmin(tx, cfg.AdminEmail, cfg.AdminPassword, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	if err := ensureRateConfig(tx, cfg.Catalog.Rates, &stats); err != nil {
		_ = tx.Rollback()
		return Stats{}, err
	}
	for _, p := range cfg.Catalog.Products {
		if err := ensureProduct(tx, p, cfg.RefreshPrices, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func seedAdmin(tx *sql.Tx, email, password string, stats *Stats) error {
	if email == "" || password == "" {
		return nil
	}

	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM users WHERE email = ? LIMIT 1)`, email).Scan(&exists); err != nil {
		return fmt.Errorf("check admin user existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`INSERT INTO users (email, password_hash) VALUES (?, ?)`, email, auth.HashPassword(password)); err != nil {
		return fmt.Errorf("insert admin user: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureRateConfig(tx *sql.Tx, r pricing.Rates, stats *Stats) error {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS(SELECT 1 FROM rate_config WHERE id = 1)`).Scan(&exists); err != nil {
		return fmt.Errorf("check rate config existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.Exec(`
		INSERT INTO rate_config (
			id,
			labor_hourly,
			overhead_fixed,
			overhead_percent,
			contingency_percent,
			margin_percent,
			tax_enabled,
			tax_percent,
			delivery_fee,
			currency
		)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.LaborHourly, r.OverheadFixed, r.OverheadPercent, r.ContingencyPercent, r.MarginPercent,
		r.TaxEnabled, r.TaxPercent, r.DeliveryFee, r.Currency); err != nil {
		return fmt.Errorf("insert rate config singleton: %w", err)
	}
	stats.Inserts++
	return nil
}

func ensureProduct(tx *sql.Tx, p pricing.Product, refresh bool, stats *Stats) error {
	var price float64
	err := tx.QueryRow(`SELECT price FROM products WHERE key = ?`, p.Key).Scan(&price)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.Exec(`
			INSERT INTO products (key, name, unit, price, active)
			VALUES (?, ?, ?, ?, ?)
		`, p.Key, p.Name, p.Unit, p.Price, true); err != nil {
			return fmt.Errorf("insert product %s: %w", p.Key, err)
		}
		stats.Inserts++
		return nil
	case err != nil:
		return fmt.Errorf("check product %s: %w", p.Key, err)
	}

	if !refresh || price == p.Price {
		return nil
	}
	if _, err := tx.Exec(`UPDATE products SET price = ? WHERE key = ?`, p.Price, p.Key); err != nil {
		return fmt.Errorf("update product %s: %w", p.Key, err)
	}
	stats.Updates++
	return nil
}
