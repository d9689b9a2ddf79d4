package database

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"testing"

	"github.com/go-sql-driver/mysql"
)

func TestManagerRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	defer m.CloseAll()

	id, err := m.Open(ctx, "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := m.Exec(ctx, id, "CREATE TABLE people (name TEXT, age INTEGER)"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	n, err := m.Exec(ctx, id, "INSERT INTO people VALUES (?, ?), (?, ?)", "ada", 36, "alan", 41)
	if err != nil || n != 2 {
		t.Fatalf("insert: n=%d err=%v", n, err)
	}

	rows, err := m.Query(ctx, id, "SELECT name, age FROM people ORDER BY age")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if !reflect.DeepEqual(rows.Columns, []string{"name", "age"}) {
		t.Errorf("columns = %v", rows.Columns)
	}
	if len(rows.Values) != 2 || fmt.Sprint(rows.Values[0][0]) != "ada" || fmt.Sprint(rows.Values[1][1]) != "41" {
		t.Errorf("values = %v", rows.Values)
	}

	if got := m.List(); !reflect.DeepEqual(got, []string{id}) {
		t.Errorf("List() = %v", got)
	}
	if err := m.Close(id); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if _, err := m.Query(ctx, id, "SELECT 1"); err == nil {
		t.Errorf("query on closed connection should fail")
	}
}

func TestTransactionRollsBack(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	defer m.CloseAll()
	id, err := m.Open(ctx, "sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Exec(ctx, id, "CREATE TABLE t (v INTEGER)"); err != nil {
		t.Fatal(err)
	}
	err = m.Transaction(ctx, id, func(tx *sql.Tx) error {
		if _, err := tx.Exec("INSERT INTO t VALUES (1)"); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	if err == nil || err.Error() != "abort" {
		t.Fatalf("Transaction error = %v", err)
	}
	rows, err := m.Query(ctx, id, "SELECT COUNT(*) FROM t")
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(rows.Values[0][0]) != "0" {
		t.Errorf("rollback left %v rows", rows.Values[0][0])
	}
}

func TestUnsupportedDriver(t *testing.T) {
	if _, err := NewManager().Open(context.Background(), "oracle", "x"); err == nil {
		t.Error("expected an error for an unknown driver")
	}
}

func TestParseConnectionString(t *testing.T) {
	tests := []struct {
		in       string
		wantKind string
		wantDSN  string
	}{
		{"Provider=SQLite;Data Source=:memory:", "sqlite", ":memory:"},
		{"Driver={SQLite3 ODBC Driver};Database=app.db", "sqlite3", "app.db"},
		{"Provider=PostgreSQL;Server=db;Port=5433;Database=shop;User Id=bob;Password=pw",
			"postgres", "host=db port=5433 dbname=shop user=bob password=pw sslmode=disable"},
		{"Driver={MySQL ODBC 8.0 Driver};Server=db;Database=shop;Uid=bob;Pwd=pw",
			"mysql", ""},
		{"Provider=SQLOLEDB;Data Source=sql1,1433;Initial Catalog=shop;User Id=sa;Password=pw",
			"sqlserver", ""},
		{"Provider=SQLOLEDB;Server=sql1;Initial Catalog=shop;User Id=sa;Password=pw",
			"sqlserver", "sqlserver://sa:pw@sql1:1433?database=shop"},
		{"Driver=postgres;DSN=postgres://u@h/db", "postgres", "postgres://u@h/db"},
	}
	for _, tt := range tests {
		kind, dsn, err := ParseConnectionString(tt.in)
		if err != nil {
			t.Errorf("%q: %v", tt.in, err)
			continue
		}
		if kind != tt.wantKind {
			t.Errorf("%q: kind = %q, want %q", tt.in, kind, tt.wantKind)
		}
		if tt.wantDSN != "" && dsn != tt.wantDSN {
			t.Errorf("%q: dsn = %q, want %q", tt.in, dsn, tt.wantDSN)
		}
	}

	_, dsn, err := ParseConnectionString("Driver={MySQL ODBC 8.0 Driver};Server=db;Database=shop;Uid=bob;Pwd=pw")
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("mysql DSN %q does not parse: %v", dsn, err)
	}
	if cfg.User != "bob" || cfg.Passwd != "pw" || cfg.Addr != "db:3306" || cfg.DBName != "shop" {
		t.Errorf("mysql config = %+v", cfg)
	}

	for _, bad := range []string{"Data Source=x", "Provider=Oracle;Data Source=x", "Provider=SQLite;junk"} {
		if _, _, err := ParseConnectionString(bad); err == nil {
			t.Errorf("%q: expected an error", bad)
		}
	}
}

func TestBeginCommitRollback(t *testing.T) {
	ctx := context.Background()
	m := NewManager()
	defer m.CloseAll()
	id, err := m.Open(ctx, "sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Exec(ctx, id, "CREATE TABLE t (v INTEGER)"); err != nil {
		t.Fatal(err)
	}
	count := func() string {
		rows, err := m.Query(ctx, id, "SELECT COUNT(*) FROM t")
		if err != nil {
			t.Fatal(err)
		}
		return fmt.Sprint(rows.Values[0][0])
	}

	if err := m.Begin(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := m.Begin(ctx, id); err == nil {
		t.Error("nested Begin should fail")
	}
	if _, err := m.Exec(ctx, id, "INSERT INTO t VALUES (1)"); err != nil {
		t.Fatal(err)
	}
	if err := m.Rollback(id); err != nil {
		t.Fatal(err)
	}
	if got := count(); got != "0" {
		t.Errorf("after rollback count = %s", got)
	}

	if err := m.Begin(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Exec(ctx, id, "INSERT INTO t VALUES (2)"); err != nil {
		t.Fatal(err)
	}
	if err := m.Commit(id); err != nil {
		t.Fatal(err)
	}
	if got := count(); got != "1" {
		t.Errorf("after commit count = %s", got)
	}
	if err := m.Commit(id); err == nil {
		t.Error("Commit without a transaction should fail")
	}
}
