// Package database keeps the SQL connections scripts open through
// ADODB.Connection.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"fortio.org/log"
	"github.com/pkg/errors"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite" // pure Go SQLite, the default
)

// drivers maps the names accepted in connection strings to registered
// database/sql drivers.
var drivers = map[string]string{
	"sqlite":     "sqlite",
	"sqlite3":    "sqlite3",
	"postgres":   "postgres",
	"postgresql": "postgres",
	"mysql":      "mysql",
	"sqlserver":  "sqlserver",
	"mssql":      "sqlserver",
}

// DriverName resolves a driver alias.
func DriverName(kind string) (string, error) {
	name, ok := drivers[strings.ToLower(kind)]
	if !ok {
		return "", fmt.Errorf("unsupported database type: %s", kind)
	}
	return name, nil
}

// Manager owns open connections. It is safe for concurrent use.
type Manager struct {
	connections map[string]*Conn
	mu          sync.RWMutex
	seq         int
}

// Conn is one open connection.
type Conn struct {
	ID       string
	Driver   string
	DSN      string
	DB       *sql.DB
	Created  time.Time
	LastUsed time.Time

	tx *sql.Tx
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// q returns the open transaction, or the pool when there is none.
func (c *Conn) q() querier {
	if c.tx != nil {
		return c.tx
	}
	return c.DB
}

// Rows is a fully read result set. Column order is preserved.
type Rows struct {
	Columns []string
	Values  [][]interface{}
}

func NewManager() *Manager {
	return &Manager{connections: make(map[string]*Conn)}
}

// Open connects with the given driver alias and DSN and returns the new
// connection's ID.
func (m *Manager) Open(ctx context.Context, kind, dsn string) (string, error) {
	driver, err := DriverName(kind)
	if err != nil {
		return "", err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return "", errors.Wrap(err, "failed to connect")
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return "", errors.Wrap(err, "failed to ping database")
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if driver == "sqlite" || driver == "sqlite3" {
		// every pooled connection to :memory: would see its own database
		db.SetMaxOpenConns(1)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	id := fmt.Sprintf("conn%d", m.seq)
	m.connections[id] = &Conn{
		ID:       id,
		Driver:   driver,
		DSN:      dsn,
		DB:       db,
		Created:  time.Now(),
		LastUsed: time.Now(),
	}
	log.LogVf("database: opened %s (%s)", id, driver)
	return id, nil
}

// Exec runs a statement that returns no rows and reports the rows affected.
func (m *Manager) Exec(ctx context.Context, id, query string, args ...interface{}) (int64, error) {
	conn, err := m.get(id)
	if err != nil {
		return 0, err
	}
	result, err := conn.q().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Wrap(err, "execution failed")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

// Query runs a query and reads every row.
func (m *Manager) Query(ctx context.Context, id, query string, args ...interface{}) (*Rows, error) {
	conn, err := m.get(id)
	if err != nil {
		return nil, err
	}
	rows, err := conn.q().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query failed")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := &Rows{Columns: columns}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "scan failed")
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out.Values = append(out.Values, values)
	}
	return out, rows.Err()
}

// Transaction runs fn inside a transaction, rolling back when it fails.
func (m *Manager) Transaction(ctx context.Context, id string, fn func(*sql.Tx) error) error {
	conn, err := m.get(id)
	if err != nil {
		return err
	}
	tx, err := conn.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(rbErr, "transaction failed: %v, rollback failed", err)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}

// Begin starts a transaction that later Exec and Query calls on the
// connection join until Commit or Rollback.
func (m *Manager) Begin(ctx context.Context, id string) error {
	conn, err := m.get(id)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn.tx != nil {
		return fmt.Errorf("connection '%s' already has a transaction", id)
	}
	tx, err := conn.DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	conn.tx = tx
	return nil
}

// Commit commits the transaction started by Begin.
func (m *Manager) Commit(id string) error {
	tx, err := m.takeTx(id)
	if err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}

// Rollback abandons the transaction started by Begin.
func (m *Manager) Rollback(id string) error {
	tx, err := m.takeTx(id)
	if err != nil {
		return err
	}
	return errors.Wrap(tx.Rollback(), "failed to roll back transaction")
}

func (m *Manager) takeTx(id string) (*sql.Tx, error) {
	conn, err := m.get(id)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn.tx == nil {
		return nil, fmt.Errorf("connection '%s' has no transaction", id)
	}
	tx := conn.tx
	conn.tx = nil
	return tx, nil
}

// Close closes one connection.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.connections[id]
	if !ok {
		return fmt.Errorf("connection '%s' not found", id)
	}
	delete(m.connections, id)
	if conn.tx != nil {
		conn.tx.Rollback()
	}
	return conn.DB.Close()
}

// CloseAll closes every connection; the first failure is returned.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var first error
	for id, conn := range m.connections {
		if conn.tx != nil {
			conn.tx.Rollback()
		}
		if err := conn.DB.Close(); err != nil {
			log.Warnf("database: closing %s: %v", id, err)
			if first == nil {
				first = err
			}
		}
	}
	m.connections = make(map[string]*Conn)
	return first
}

// List returns the IDs of open connections in order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.connections))
	for id := range m.connections {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) get(id string) (*Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conn, ok := m.connections[id]
	if !ok {
		return nil, fmt.Errorf("connection '%s' not found", id)
	}
	conn.LastUsed = time.Now()
	return conn, nil
}
