package postgres

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMigrationsArePaired(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(files) == 0 {
		t.Fatalf("expected migrations to exist")
	}

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, f := range files {
		base := filepath.Base(f)
		switch {
		case strings.HasSuffix(base, ".up.sql"):
			ups[strings.TrimSuffix(base, ".up.sql")] = true
		case strings.HasSuffix(base, ".down.sql"):
			downs[strings.TrimSuffix(base, ".down.sql")] = true
		default:
			t.Fatalf("unexpected migration file %s", base)
		}
	}

	for name := range ups {
		if !downs[name] {
			t.Fatalf("migration %s has no down step", name)
		}
	}
}

func TestLedgerBooksMigrationCreatesTable(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("migrations", "000001_create_ledger_books.up.sql"))
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}

	sql := string(data)
	for _, column := range []string{"storage_key", "name", "checksum", "document", "modified_at"} {
		if !strings.Contains(sql, column) {
			t.Fatalf("expected migration to define column %s", column)
		}
	}
}

func TestRunMigrationsInvalidSource(t *testing.T) {
	if err := RunMigrations("postgres://invalid:5432/db", filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing migrations directory")
	}
}
