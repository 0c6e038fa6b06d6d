package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func openRawDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "schema.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// getColumns returns the column names of table.
func getColumns(t *testing.T, db *sql.DB, table string) map[string]bool {
	t.Helper()
	rows, err := db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		t.Fatalf("table_info %s: %v", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan column: %v", err)
		}
		cols[name] = true
	}
	return cols
}

func TestInitSchema_FreshDB(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}

	want := map[string][]string{
		"runs":     {"run_id", "strategy", "strategy_label", "seed", "rounds", "arm_count", "started_at", "finished_at", "played", "regret", "duration_ms"},
		"run_arms": {"run_id", "arm", "prob_real", "plays", "wins", "prob_est"},
		"rounds":   {"run_id", "round", "selected", "won", "regret", "estimates"},
	}
	for table, columns := range want {
		cols := getColumns(t, db, table)
		for _, c := range columns {
			if !cols[c] {
				t.Errorf("table %s missing column %s", table, c)
			}
		}
	}

	version, err := getSchemaVersion(ctx, db)
	if err != nil {
		t.Fatalf("get schema version: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("schema version = %d, want %d", version, SchemaVersion)
	}
}

func TestInitSchema_Idempotent(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("first InitSchema: %v", err)
	}
	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("second InitSchema: %v", err)
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_version`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("schema_version rows = %d, want 1", n)
	}
}

func TestInitSchema_RejectsNewerVersion(t *testing.T) {
	db := openRawDB(t)
	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`, SchemaVersion+1); err != nil {
		t.Fatal(err)
	}

	err := InitSchema(ctx, db)
	if err == nil || !strings.Contains(err.Error(), "newer than supported") {
		t.Errorf("expected newer version error, got %v", err)
	}
}

func TestInitSchema_DetectsOrphanRows(t *testing.T) {
	// foreign_keys is off on a raw connection, so an orphan row can be written.
	db := openRawDB(t)
	ctx := context.Background()

	if err := InitSchema(ctx, db); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO run_arms (run_id, arm, prob_real, plays, wins) VALUES ('ghost', 0, 0.5, 0, 0)`); err != nil {
		t.Fatalf("insert orphan: %v", err)
	}

	if err := ValidateIntegrity(ctx, db); err == nil {
		t.Error("ValidateIntegrity should report the orphan arm row")
	}
	if err := InitSchema(ctx, db); err == nil {
		t.Error("InitSchema should fail on a database with integrity problems")
	}
}
