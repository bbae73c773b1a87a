//go:build integration

package postauth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dbeloglazov/fraudgate/internal/testutil"
)

func seedMerchant(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), `
		INSERT INTO merchants (id, name, email, status, created_at, updated_at)
		VALUES ($1, 'Test Shop', $1 || '@example.com', 'active', NOW(), NOW())
		ON CONFLICT (id) DO NOTHING
	`, id)
	if err != nil {
		t.Fatalf("seed merchant: %v", err)
	}
}

func storedMonitor(id, merchantID, preAuthID string, createdAt time.Time) *PostAuthOrder {
	return &PostAuthOrder{
		ID:               id,
		MerchantID:       merchantID,
		PreAuthOrderID:   preAuthID,
		ScanID:           "scan_" + id,
		ChargebackRisk:   35,
		Signals:          []string{"new_device", "amount_spike"},
		Recommendation:   "monitor closely",
		Evidence:         []EvidenceItem{},
		Notes:            []Note{},
		Status:           StatusUnderMonitoring,
		MonitoringEndsAt: createdAt.Add(MonitoringWindow),
		CreatedAt:        createdAt,
		UpdatedAt:        createdAt,
	}
}

func TestPostgresPostAuth_CreateAndGet(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	ctx := context.Background()

	seedMerchant(t, db, "mer_pa1")
	store := NewPostgresStore(db)

	o := storedMonitor("post_pg001", "mer_pa1", "pre_pg001", time.Now())
	if err := store.Create(ctx, o); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := store.Get(ctx, "post_pg001")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.MerchantID != "mer_pa1" || got.PreAuthOrderID != "pre_pg001" {
		t.Errorf("linkage fields wrong: %+v", got)
	}
	if got.ChargebackRisk != 35 {
		t.Errorf("ChargebackRisk: got %d, want 35", got.ChargebackRisk)
	}
	if len(got.Signals) != 2 || got.Signals[0] != "new_device" {
		t.Errorf("Signals did not round-trip: %+v", got.Signals)
	}
	if got.Status != StatusUnderMonitoring {
		t.Errorf("Status: got %s, want UNDER_MONITORING", got.Status)
	}

	byPre, err := store.GetByPreAuth(ctx, "pre_pg001")
	if err != nil {
		t.Fatalf("GetByPreAuth failed: %v", err)
	}
	if byPre.ID != "post_pg001" {
		t.Errorf("GetByPreAuth: got %s, want post_pg001", byPre.ID)
	}
}

func TestPostgresPostAuth_NotFound(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	ctx := context.Background()

	store := NewPostgresStore(db)

	if _, err := store.Get(ctx, "post_missing"); err != ErrOrderNotFound {
		t.Errorf("Expected ErrOrderNotFound, got %v", err)
	}
	if _, err := store.GetByPreAuth(ctx, "pre_missing"); err != ErrOrderNotFound {
		t.Errorf("Expected ErrOrderNotFound for GetByPreAuth, got %v", err)
	}

	fake := storedMonitor("post_missing", "mer_pa1", "pre_x", time.Now())
	if err := store.Update(ctx, fake); err != ErrOrderNotFound {
		t.Errorf("Expected ErrOrderNotFound on update, got %v", err)
	}
}

func TestPostgresPostAuth_UpdateAppendsEvidence(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	ctx := context.Background()

	seedMerchant(t, db, "mer_pa2")
	store := NewPostgresStore(db)

	o := storedMonitor("post_pg010", "mer_pa2", "pre_pg010", time.Now())
	if err := store.Create(ctx, o); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	now := time.Now()
	o.Evidence = append(o.Evidence, EvidenceItem{Description: "delivery receipt", AddedBy: "ops", AddedAt: now})
	o.Notes = append(o.Notes, Note{Text: "looks fine", Author: "analyst", AddedAt: now})
	o.Status = StatusCleared
	o.UpdatedAt = now

	if err := store.Update(ctx, o); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, err := store.Get(ctx, "post_pg010")
	if err != nil {
		t.Fatalf("Get after update failed: %v", err)
	}
	if len(got.Evidence) != 1 || got.Evidence[0].Description != "delivery receipt" {
		t.Errorf("Evidence did not round-trip: %+v", got.Evidence)
	}
	if len(got.Notes) != 1 || got.Notes[0].Author != "analyst" {
		t.Errorf("Notes did not round-trip: %+v", got.Notes)
	}
	if got.Status != StatusCleared {
		t.Errorf("Status: got %s, want CLEARED", got.Status)
	}
}

func TestPostgresPostAuth_ListByMerchant(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	ctx := context.Background()

	seedMerchant(t, db, "mer_pa3")
	seedMerchant(t, db, "mer_pa4")
	store := NewPostgresStore(db)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		o := storedMonitor("post_list"+string(rune('0'+i)), "mer_pa3", "pre_list"+string(rune('0'+i)), base.Add(time.Duration(i)*time.Minute))
		if err := store.Create(ctx, o); err != nil {
			t.Fatalf("Create #%d failed: %v", i, err)
		}
	}
	other := storedMonitor("post_other", "mer_pa4", "pre_other", base)
	if err := store.Create(ctx, other); err != nil {
		t.Fatalf("Create other failed: %v", err)
	}

	got, err := store.ListByMerchant(ctx, "mer_pa3", 10)
	if err != nil {
		t.Fatalf("ListByMerchant failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(got))
	}
	if got[0].ID != "post_list2" {
		t.Errorf("Expected newest first, got %s", got[0].ID)
	}
}

func TestPostgresPostAuth_ListMonitoringEnded(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	ctx := context.Background()

	seedMerchant(t, db, "mer_pa5")
	store := NewPostgresStore(db)

	now := time.Now()

	ended := storedMonitor("post_end1", "mer_pa5", "pre_end1", now.Add(-121*24*time.Hour))
	ended.MonitoringEndsAt = now.Add(-24 * time.Hour)
	open := storedMonitor("post_end2", "mer_pa5", "pre_end2", now)
	closed := storedMonitor("post_end3", "mer_pa5", "pre_end3", now.Add(-121*24*time.Hour))
	closed.MonitoringEndsAt = now.Add(-24 * time.Hour)
	closed.Status = StatusCleared

	for _, o := range []*PostAuthOrder{ended, open, closed} {
		if err := store.Create(ctx, o); err != nil {
			t.Fatalf("Create %s failed: %v", o.ID, err)
		}
	}

	got, err := store.ListMonitoringEnded(ctx, now, 10)
	if err != nil {
		t.Fatalf("ListMonitoringEnded failed: %v", err)
	}
	if len(got) != 1 || got[0].ID != "post_end1" {
		t.Errorf("Expected only post_end1, got %d records", len(got))
	}
}

func TestPostgresPostAuth_UniquePreAuthLink(t *testing.T) {
	db, cleanup := testutil.PGTest(t)
	defer cleanup()
	ctx := context.Background()

	seedMerchant(t, db, "mer_pa6")
	store := NewPostgresStore(db)

	first := storedMonitor("post_uniq1", "mer_pa6", "pre_uniq", time.Now())
	if err := store.Create(ctx, first); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// A second record for the same pre-auth order violates the unique link.
	dup := storedMonitor("post_uniq2", "mer_pa6", "pre_uniq", time.Now())
	if err := store.Create(ctx, dup); err == nil {
		t.Error("Expected duplicate pre-auth link to be rejected")
	}
}
