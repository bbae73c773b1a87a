//go:build integration

package merchant

import (
	"context"
	"testing"
	"time"

	"github.com/dbeloglazov/fraudgate/internal/testutil"
)

func TestPostgresMerchant_CreateAndGet(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	ctx := context.Background()

	store := NewPostgresStore(db)
	now := time.Now()

	m := &Merchant{
		ID:        "mer_db001",
		Name:      "Acme Store",
		Email:     "acme@example.com",
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := store.CreateMerchant(ctx, m); err != nil {
		t.Fatalf("CreateMerchant failed: %v", err)
	}

	got, err := store.GetMerchant(ctx, "mer_db001")
	if err != nil {
		t.Fatalf("GetMerchant failed: %v", err)
	}
	if got.Name != "Acme Store" || got.Status != StatusActive {
		t.Errorf("merchant did not round-trip: %+v", got)
	}

	byEmail, err := store.GetMerchantByEmail(ctx, "acme@example.com")
	if err != nil {
		t.Fatalf("GetMerchantByEmail failed: %v", err)
	}
	if byEmail.ID != "mer_db001" {
		t.Errorf("GetMerchantByEmail: got %s, want mer_db001", byEmail.ID)
	}

	if _, err := store.GetMerchant(ctx, "mer_missing"); err != ErrMerchantNotFound {
		t.Errorf("Expected ErrMerchantNotFound, got %v", err)
	}
}

func TestPostgresMerchant_DuplicateEmailRejected(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	ctx := context.Background()

	store := NewPostgresStore(db)
	now := time.Now()

	first := &Merchant{
		ID: "mer_db010", Name: "First", Email: "dup@example.com",
		Status: StatusActive, CreatedAt: now, UpdatedAt: now,
	}
	if err := store.CreateMerchant(ctx, first); err != nil {
		t.Fatalf("CreateMerchant failed: %v", err)
	}

	dup := &Merchant{
		ID: "mer_db011", Name: "Second", Email: "dup@example.com",
		Status: StatusActive, CreatedAt: now, UpdatedAt: now,
	}
	if err := store.CreateMerchant(ctx, dup); err == nil {
		t.Error("Expected duplicate email to be rejected")
	}
}

func TestPostgresMerchant_KeyLifecycle(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	ctx := context.Background()

	store := NewPostgresStore(db)
	mgr := NewManager(store)

	merch, rawKey, err := mgr.Register(ctx, "Acme", "keys@example.com")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	key, err := mgr.ValidateKey(ctx, rawKey)
	if err != nil {
		t.Fatalf("ValidateKey failed: %v", err)
	}
	if key.MerchantID != merch.ID {
		t.Errorf("key resolves to %s, want %s", key.MerchantID, merch.ID)
	}

	// Revoke and re-validate.
	key.Revoked = true
	if err := store.UpdateKey(ctx, key); err != nil {
		t.Fatalf("UpdateKey failed: %v", err)
	}
	if _, err := mgr.ValidateKey(ctx, rawKey); err != ErrInvalidAPIKey {
		t.Errorf("revoked key should be rejected, got %v", err)
	}

	if _, err := store.GetKeyByHash(ctx, "deadbeef"); err != ErrInvalidAPIKey {
		t.Errorf("Expected ErrInvalidAPIKey for unknown hash, got %v", err)
	}
}
