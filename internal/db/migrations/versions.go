package migrations

import "database/sql"

// baseSchema defines all goldpos tables. Synced business tables carry a
// nullable salesforce_id column holding the remote identifier once known.
const baseSchema = `
CREATE TABLE IF NOT EXISTS branches (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    address TEXT,
    phone TEXT,
    is_active INTEGER DEFAULT 1,
    salesforce_id TEXT,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT
);

CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    branch_id TEXT REFERENCES branches(id),
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL,
    full_name TEXT NOT NULL,
    role TEXT NOT NULL CHECK (role IN ('owner', 'kasir')),
    is_active INTEGER DEFAULT 1,
    last_login TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS customers (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    phone TEXT,
    nik TEXT,
    address TEXT,
    notes TEXT,
    total_transactions INTEGER DEFAULT 0,
    salesforce_id TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS categories (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS products (
    id TEXT PRIMARY KEY,
    category_id TEXT REFERENCES categories(id),
    sku TEXT UNIQUE,
    name TEXT NOT NULL,
    description TEXT,
    gold_type TEXT NOT NULL CHECK (gold_type IN ('LM', 'UBS', 'Lokal')),
    gold_purity INTEGER NOT NULL CHECK (gold_purity BETWEEN 375 AND 999),
    weight_gram REAL NOT NULL,
    labor_cost INTEGER DEFAULT 0,
    images TEXT,
    is_active INTEGER DEFAULT 1,
    salesforce_id TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS inventory (
    id TEXT PRIMARY KEY,
    product_id TEXT NOT NULL REFERENCES products(id),
    branch_id TEXT NOT NULL REFERENCES branches(id),
    barcode TEXT UNIQUE NOT NULL,
    status TEXT NOT NULL DEFAULT 'available' CHECK (status IN ('available', 'sold', 'reserved')),
    location TEXT,
    purchase_price INTEGER NOT NULL,
    purchase_date TEXT,
    supplier TEXT,
    notes TEXT,
    sold_at TEXT,
    salesforce_id TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS gold_prices (
    id TEXT PRIMARY KEY,
    date TEXT NOT NULL,
    gold_type TEXT NOT NULL,
    purity INTEGER NOT NULL,
    buy_price INTEGER NOT NULL,
    sell_price INTEGER NOT NULL,
    source TEXT,
    salesforce_id TEXT,
    created_at TEXT DEFAULT (datetime('now')),
    UNIQUE(date, gold_type, purity)
);

CREATE TABLE IF NOT EXISTS transactions (
    id TEXT PRIMARY KEY,
    branch_id TEXT NOT NULL REFERENCES branches(id),
    user_id TEXT NOT NULL REFERENCES users(id),
    customer_id TEXT REFERENCES customers(id),
    invoice_no TEXT UNIQUE NOT NULL,
    type TEXT NOT NULL CHECK (type IN ('sale', 'buyback', 'exchange')),
    subtotal INTEGER NOT NULL,
    discount INTEGER DEFAULT 0,
    total_amount INTEGER NOT NULL,
    notes TEXT,
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed', 'void')),
    salesforce_id TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS transaction_items (
    id TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL REFERENCES transactions(id),
    inventory_id TEXT NOT NULL REFERENCES inventory(id),
    quantity INTEGER DEFAULT 1,
    unit_price INTEGER NOT NULL,
    subtotal INTEGER NOT NULL,
    gold_price_ref INTEGER,
    salesforce_id TEXT
);

CREATE TABLE IF NOT EXISTS payments (
    id TEXT PRIMARY KEY,
    transaction_id TEXT NOT NULL REFERENCES transactions(id),
    method TEXT NOT NULL CHECK (method IN ('cash', 'qris', 'bank_transfer')),
    amount INTEGER NOT NULL,
    reference_no TEXT,
    bank_name TEXT,
    status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'success', 'failed')),
    paid_at TEXT,
    created_at TEXT DEFAULT (datetime('now'))
);

-- Change journal. At most one unsynced entry per (table_name, record_id);
-- re-logging a pair coalesces into the existing row.
CREATE TABLE IF NOT EXISTS sync_log (
    id TEXT PRIMARY KEY,
    table_name TEXT NOT NULL,
    record_id TEXT NOT NULL,
    action TEXT NOT NULL CHECK (action IN ('insert', 'update', 'delete')),
    payload TEXT,
    synced INTEGER DEFAULT 0,
    synced_at TEXT,
    error_message TEXT,
    retry_count INTEGER DEFAULT 0,
    created_at TEXT DEFAULT (datetime('now')),
    UNIQUE(table_name, record_id)
);

-- Per-table pull/push watermarks.
CREATE TABLE IF NOT EXISTS sync_metadata (
    table_name TEXT PRIMARY KEY,
    last_pull_at TEXT,
    last_push_at TEXT,
    last_full_sync_at TEXT,
    records_pulled INTEGER DEFAULT 0,
    records_pushed INTEGER DEFAULT 0
);

-- Singleton Salesforce configuration (id = 'default').
CREATE TABLE IF NOT EXISTS sync_config (
    id TEXT PRIMARY KEY,
    sf_client_id TEXT,
    sf_client_secret TEXT,
    sf_username TEXT,
    sf_password TEXT,
    sf_security_token TEXT,
    sf_instance_url TEXT,
    is_sandbox INTEGER DEFAULT 0,
    sync_enabled INTEGER DEFAULT 0,
    sync_interval_minutes INTEGER DEFAULT 30,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT
);
`

// all returns the built-in migration set in no particular order; the manager
// sorts by version before applying.
func all() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "base schema",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(baseSchema)
				return err
			},
		},
		{
			Version:     2,
			Description: "lookup and journal scan indexes",
			Up: func(tx *sql.Tx) error {
				_, err := tx.Exec(`
					CREATE INDEX IF NOT EXISTS idx_inventory_barcode ON inventory(barcode);
					CREATE INDEX IF NOT EXISTS idx_inventory_status ON inventory(status);
					CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(created_at);
					CREATE INDEX IF NOT EXISTS idx_transactions_invoice ON transactions(invoice_no);
					CREATE INDEX IF NOT EXISTS idx_gold_prices_date ON gold_prices(date);
					CREATE INDEX IF NOT EXISTS idx_sync_log_synced ON sync_log(synced, retry_count);
				`)
				return err
			},
		},
	}
}
