package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mentorbridge/mentorbridge"
	"github.com/mentorbridge/mentorbridge/store"
)

func testEnv(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)
	dsn := filepath.Join(dir, "seed.db")
	t.Setenv("MB_DATABASE_DSN", dsn)
	t.Setenv("MB_AUTH_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("MB_AUTH_ARGON2_MEMORY_KB", "8192")
	t.Setenv("MB_AUTH_ARGON2_ITERATIONS", "1")
	t.Setenv("MB_AUTH_ARGON2_PARALLELISM", "1")
	t.Setenv("MB_LOG_OUTPUT", "discard")
	return dsn
}

func run(t *testing.T, args ...string) error {
	t.Helper()

	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}

func TestSeedIsIdempotent(t *testing.T) {
	dsn := testEnv(t)

	args := []string{"seed", "--admin-email", "root@example.com", "--admin-password", "admin-password-123", "--samples", "--sample-password", "sample-password-123"}
	if err := run(t, args...); err != nil {
		t.Fatalf("first seed failed: %v", err)
	}
	if err := run(t, args...); err != nil {
		t.Fatalf("second seed failed: %v", err)
	}

	db, err := store.Open(store.Config{Driver: store.DriverSQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("open store failed: %v", err)
	}
	defer db.Close()

	counts, err := db.CountUsersByRole(context.Background())
	if err != nil {
		t.Fatalf("CountUsersByRole failed: %v", err)
	}
	if counts[mentorbridge.RoleAdmin] != 1 || counts[mentorbridge.RoleMentor] != 2 || counts[mentorbridge.RoleStudent] != 2 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestSeedRequiresAdminFlags(t *testing.T) {
	testEnv(t)

	if err := run(t, "seed"); !errors.Is(err, errMissingFlag) {
		t.Fatalf("expected errMissingFlag, got %v", err)
	}
	if err := run(t, "seed", "--admin-email", "root@example.com", "--admin-password", "x-password-123", "--samples"); !errors.Is(err, errMissingFlag) {
		t.Fatalf("expected errMissingFlag for samples without password, got %v", err)
	}
}

func TestMigrateCreatesSchema(t *testing.T) {
	dsn := testEnv(t)

	if err := run(t, "migrate"); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	db, err := store.Open(store.Config{Driver: store.DriverSQLite, DSN: dsn})
	if err != nil {
		t.Fatalf("open store failed: %v", err)
	}
	defer db.Close()

	if !db.DB().Migrator().HasTable("users") {
		t.Fatal("expected users table")
	}
}
