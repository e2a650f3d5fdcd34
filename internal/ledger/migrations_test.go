package ledger

import (
	"context"
	"database/sql"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"chronicle/internal/models"
)

func testRawDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	u := url.URL{Scheme: "file", Path: path}
	db, err := sql.Open("sqlite", u.String())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunMigrationsFreshDB(t *testing.T) {
	db := testRawDB(t)
	ctx := context.Background()

	if err := runMigrations(ctx, db, sqliteDialect); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	version, err := currentVersion(ctx, db)
	if err != nil {
		t.Fatalf("current version: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected version 2, got %d", version)
	}

	for _, kind := range models.Kinds() {
		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", kind.Table).Scan(&count); err != nil {
			t.Fatalf("check %s: %v", kind.Table, err)
		}
		if count != 1 {
			t.Fatalf("table %s not created", kind.Table)
		}
	}
}

func TestRunMigrationsIdempotent(t *testing.T) {
	db := testRawDB(t)
	ctx := context.Background()

	if err := runMigrations(ctx, db, sqliteDialect); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := runMigrations(ctx, db, sqliteDialect); err != nil {
		t.Fatalf("second run: %v", err)
	}

	status, err := MigrationPlan(ctx, db, DriverSQLite)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if status.CurrentVersion != 2 || status.AvailableVersion != 2 || len(status.Pending) != 0 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestMigrationPlanPending(t *testing.T) {
	db := testRawDB(t)

	status, err := MigrationPlan(context.Background(), db, DriverSQLite)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if status.CurrentVersion != 0 || len(status.Pending) != 2 {
		t.Fatalf("expected two pending migrations, got %+v", status)
	}
}

func TestMigrationsKeepLegacyRows(t *testing.T) {
	db := testRawDB(t)
	ctx := context.Background()

	// An archive written before schema versioning existed.
	if _, err := db.Exec(`CREATE TABLE website_news (id INTEGER PRIMARY KEY, news_id INTEGER, date INTEGER NOT NULL, json TEXT, url TEXT);
INSERT INTO website_news (news_id, date, json, url) VALUES (5, 10, 'old', 'u');`); err != nil {
		t.Fatalf("seed legacy table: %v", err)
	}
	if err := runMigrations(ctx, db, sqliteDialect); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	var payload string
	if err := db.QueryRow("SELECT json FROM website_news WHERE news_id = 5").Scan(&payload); err != nil {
		t.Fatalf("read legacy row: %v", err)
	}
	if payload != "old" {
		t.Fatalf("expected legacy row preserved, got %q", payload)
	}
}

func TestPostgresDialectSQL(t *testing.T) {
	d, err := dialectFor("postgresql")
	if err != nil {
		t.Fatalf("dialect: %v", err)
	}
	if got := d.rebind("SELECT a FROM t WHERE b = ? AND c = ? LIMIT ?"); got != "SELECT a FROM t WHERE b = $1 AND c = $2 LIMIT $3" {
		t.Fatalf("unexpected rebind %q", got)
	}

	news, err := models.LookupKind("news")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	ddl := kindTableSQL(d, news)
	for _, want := range []string{"id BIGSERIAL PRIMARY KEY", "news_id BIGINT", "date BIGINT NOT NULL", "json TEXT", "url TEXT", "idx_website_news_news_id"} {
		if !strings.Contains(ddl, want) {
			t.Fatalf("expected %q in ddl:\n%s", want, ddl)
		}
	}

	triggers := appendOnlySQL(d, []models.Kind{news})
	if !strings.Contains(triggers, "chronicle_append_only()") || !strings.Contains(triggers, "BEFORE UPDATE OR DELETE ON website_news") {
		t.Fatalf("unexpected trigger sql:\n%s", triggers)
	}

	if _, err := dialectFor("oracle"); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if got := sqliteDialect.rebind("? ?"); got != "? ?" {
		t.Fatalf("sqlite rebind must be identity, got %q", got)
	}
}

func TestOpenRawDBRequiresDSN(t *testing.T) {
	if _, _, err := OpenRawDB(Options{Driver: DriverPostgres}); err == nil {
		t.Fatal("expected error for postgres without dsn")
	}
	if _, _, err := OpenRawDB(Options{}); err == nil {
		t.Fatal("expected error for sqlite without path")
	}
}
