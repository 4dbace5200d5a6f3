//go:build integration

package store_test

import (
	"context"
	"testing"

	"presence/internal/store/storetest"
)

func TestMigrate_Idempotent(t *testing.T) {
	db := storetest.New(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}

	var n int
	if err := db.Client.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 applied migration, got %d", n)
	}
	if !db.Healthy(ctx) {
		t.Error("expected healthy database")
	}
}
