// Package storage provides the SQLite-backed transactional row store the
// engine runs on. Each block is processed inside one transaction: commit
// on success, rollback when the block fails or the chain reorganises.
package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection holding the full game state.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates the state database at the given path. Use
// ":memory:" for tests.
func Open(path string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// The engine is strictly single-threaded per block; a second
	// connection would only risk SQLITE_BUSY surprises.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS accounts (
		name TEXT PRIMARY KEY,
		faction INTEGER NOT NULL,
		balance INTEGER NOT NULL,
		burnsale_balance INTEGER NOT NULL,
		kills INTEGER NOT NULL,
		fame INTEGER NOT NULL,
		proto TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS characters (
		id INTEGER PRIMARY KEY,
		owner TEXT NOT NULL,
		faction INTEGER NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		region INTEGER NOT NULL,
		inbuilding INTEGER NOT NULL,
		enterbuilding INTEGER NOT NULL,
		busy INTEGER NOT NULL,
		ismoving INTEGER NOT NULL,
		ismining INTEGER NOT NULL,
		hastarget INTEGER NOT NULL,
		canregen INTEGER NOT NULL,
		attackrange INTEGER NOT NULL,
		fx INTEGER NOT NULL,
		ongoing INTEGER NOT NULL,
		proto TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_characters_owner ON characters(owner);
	CREATE INDEX IF NOT EXISTS idx_characters_pos ON characters(x, y);
	CREATE INDEX IF NOT EXISTS idx_characters_region
		ON characters(region) WHERE ismining = 1;
	CREATE INDEX IF NOT EXISTS idx_characters_moving
		ON characters(id) WHERE ismoving = 1;
	CREATE INDEX IF NOT EXISTS idx_characters_target
		ON characters(id) WHERE hastarget = 1;
	CREATE INDEX IF NOT EXISTS idx_characters_regen
		ON characters(id) WHERE canregen = 1;
	CREATE INDEX IF NOT EXISTS idx_characters_attacks
		ON characters(id) WHERE attackrange > 0;

	CREATE TABLE IF NOT EXISTS buildings (
		id INTEGER PRIMARY KEY,
		type TEXT NOT NULL,
		owner TEXT NOT NULL,
		faction INTEGER NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		rotation INTEGER NOT NULL,
		foundation INTEGER NOT NULL,
		hastarget INTEGER NOT NULL,
		canregen INTEGER NOT NULL,
		attackrange INTEGER NOT NULL,
		fx INTEGER NOT NULL,
		ongoing INTEGER NOT NULL,
		proto TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_buildings_owner ON buildings(owner);
	CREATE INDEX IF NOT EXISTS idx_buildings_pos ON buildings(x, y);

	CREATE TABLE IF NOT EXISTS regions (
		id INTEGER PRIMARY KEY,
		modifiedheight INTEGER NOT NULL,
		resourceleft INTEGER NOT NULL,
		proto TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ongoings (
		id INTEGER PRIMARY KEY,
		endheight INTEGER NOT NULL,
		character INTEGER NOT NULL,
		building INTEGER NOT NULL,
		proto TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ongoings_endheight ON ongoings(endheight);

	CREATE TABLE IF NOT EXISTS ground_loot (
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		inventory TEXT NOT NULL,
		PRIMARY KEY (x, y)
	);

	CREATE TABLE IF NOT EXISTS building_inventories (
		building INTEGER NOT NULL,
		account TEXT NOT NULL,
		inventory TEXT NOT NULL,
		PRIMARY KEY (building, account)
	);

	CREATE TABLE IF NOT EXISTS dex_orders (
		id INTEGER PRIMARY KEY,
		building INTEGER NOT NULL,
		account TEXT NOT NULL,
		type INTEGER NOT NULL,
		item TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_dex_orders_book
		ON dex_orders(building, item, type, price, id);

	CREATE TABLE IF NOT EXISTS dex_trades (
		id INTEGER PRIMARY KEY,
		height INTEGER NOT NULL,
		time INTEGER NOT NULL,
		building INTEGER NOT NULL,
		item TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		price INTEGER NOT NULL,
		seller TEXT NOT NULL,
		buyer TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_dex_trades_item
		ON dex_trades(building, item, id);

	CREATE TABLE IF NOT EXISTS damage_lists (
		victim INTEGER NOT NULL,
		attacker INTEGER NOT NULL,
		height INTEGER NOT NULL,
		PRIMARY KEY (victim, attacker)
	);
	CREATE INDEX IF NOT EXISTS idx_damage_lists_height ON damage_lists(height);

	CREATE TABLE IF NOT EXISTS money (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		burnsale_sold INTEGER NOT NULL,
		gifted INTEGER NOT NULL,
		burnt INTEGER NOT NULL,
		prizes TEXT NOT NULL
	);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}

	_, err := db.conn.Exec(
		"INSERT OR IGNORE INTO meta (key, value) VALUES ('next_id', '1')")
	return err
}

// BeginBlock opens the transaction a block is processed in.
func (db *DB) BeginBlock() (*Tx, error) {
	tx, err := db.conn.Beginx()
	if err != nil {
		return nil, fmt.Errorf("begin block tx: %w", err)
	}

	var nextStr string
	if err := tx.Get(&nextStr,
		"SELECT value FROM meta WHERE key = 'next_id'"); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("load id allocator: %w", err)
	}
	next, err := strconv.ParseUint(nextStr, 10, 64)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("corrupt id allocator %q: %w", nextStr, err)
	}

	return &Tx{
		tx:      tx,
		nextID:  next,
		handles: make(map[string]struct{}),
	}, nil
}

// Meta reads a metadata value outside any block transaction. Returns ""
// when the key is absent.
func (db *DB) Meta(key string) string {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	if err != nil {
		if err != sql.ErrNoRows {
			slog.Error("meta read failed", "key", key, "error", err)
		}
		return ""
	}
	return value
}

// Tx is the per-block transaction. All table access goes through it.
type Tx struct {
	tx     *sqlx.Tx
	nextID uint64

	// Live row handles, for catching the two-handles-per-row bug.
	handles map[string]struct{}
}

// NextID hands out the next entity id. Ids are process-wide monotonic
// and persisted with the block.
func (t *Tx) NextID() uint64 {
	id := t.nextID
	t.nextID++
	return id
}

// Commit persists the id allocator and commits the block.
func (t *Tx) Commit() error {
	if len(t.handles) != 0 {
		panic(fmt.Sprintf("storage: %d row handles still live at commit",
			len(t.handles)))
	}
	if _, err := t.tx.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES ('next_id', ?)",
		strconv.FormatUint(t.nextID, 10)); err != nil {
		return fmt.Errorf("store id allocator: %w", err)
	}
	return t.tx.Commit()
}

// Rollback discards the block.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// SetMeta stores a metadata value inside the block transaction.
func (t *Tx) SetMeta(key, value string) {
	t.MustExec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", key, value)
}

// TrackHandle registers a live row handle. Two live handles to the same
// row within one block would make the write-back order decide which
// mutation survives, which is a bug.
func (t *Tx) TrackHandle(key string) {
	if _, live := t.handles[key]; live {
		panic(fmt.Sprintf("storage: second live handle for row %s", key))
	}
	t.handles[key] = struct{}{}
}

// UntrackHandle releases a row handle registration.
func (t *Tx) UntrackHandle(key string) {
	if _, live := t.handles[key]; !live {
		panic(fmt.Sprintf("storage: releasing untracked handle %s", key))
	}
	delete(t.handles, key)
}

// MustExec runs a statement, treating failure as a consistency error.
func (t *Tx) MustExec(query string, args ...any) sql.Result {
	res, err := t.tx.Exec(query, args...)
	if err != nil {
		panic(fmt.Sprintf("storage: exec failed: %v (query %q)", err, query))
	}
	return res
}

// Get runs a single-row query into dest. Returns false (without error)
// when no row matches.
func (t *Tx) Get(dest any, query string, args ...any) bool {
	err := t.tx.Get(dest, query, args...)
	if err == sql.ErrNoRows {
		return false
	}
	if err != nil {
		panic(fmt.Sprintf("storage: get failed: %v (query %q)", err, query))
	}
	return true
}

// Select runs a multi-row query into dest.
func (t *Tx) Select(dest any, query string, args ...any) {
	if err := t.tx.Select(dest, query, args...); err != nil {
		panic(fmt.Sprintf("storage: select failed: %v (query %q)", err, query))
	}
}
