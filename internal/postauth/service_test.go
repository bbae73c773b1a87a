package postauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dbeloglazov/fraudgate/internal/deepscan"
)

func testScan(risk int) *deepscan.Result {
	return &deepscan.Result{
		ScanID:         "scan_test1",
		RiskScore:      risk,
		Signals:        []string{"new_device", "amount_spike"},
		Recommendation: "monitor closely",
	}
}

func createRecord(t *testing.T, svc *Service, merchantID string, risk int) string {
	t.Helper()
	id, err := svc.CreateFromScan(context.Background(), merchantID, "pre_1", testScan(risk))
	if err != nil {
		t.Fatalf("CreateFromScan failed: %v", err)
	}
	return id
}

func TestCreateFromScan(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()
	id := createRecord(t, svc, "mer_1", 42)

	order, err := svc.Get(ctx, "mer_1", id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if order.ChargebackRisk != 42 {
		t.Errorf("expected risk 42, got %d", order.ChargebackRisk)
	}
	if order.Status != StatusUnderMonitoring {
		t.Errorf("expected UNDER_MONITORING, got %s", order.Status)
	}
	if order.ScanID != "scan_test1" || order.PreAuthOrderID != "pre_1" {
		t.Errorf("linkage fields wrong: %+v", order)
	}
	wantEnd := time.Now().Add(MonitoringWindow)
	if order.MonitoringEndsAt.Before(wantEnd.Add(-time.Minute)) || order.MonitoringEndsAt.After(wantEnd.Add(time.Minute)) {
		t.Errorf("monitoring window should be ~120 days out, got %v", order.MonitoringEndsAt)
	}
}

func TestCreateFromScanClampsRisk(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	id, err := svc.CreateFromScan(ctx, "mer_1", "pre_low", testScan(-10))
	if err != nil {
		t.Fatalf("CreateFromScan failed: %v", err)
	}
	order, _ := svc.Get(ctx, "mer_1", id)
	if order.ChargebackRisk != 0 {
		t.Errorf("expected risk clamped to 0, got %d", order.ChargebackRisk)
	}

	id, err = svc.CreateFromScan(ctx, "mer_1", "pre_high", testScan(250))
	if err != nil {
		t.Fatalf("CreateFromScan failed: %v", err)
	}
	order, _ = svc.Get(ctx, "mer_1", id)
	if order.ChargebackRisk != 100 {
		t.Errorf("expected risk clamped to 100, got %d", order.ChargebackRisk)
	}
}

func TestFindByPreAuth(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	// No record yet: empty IDs, nil error.
	id, scanID, err := svc.FindByPreAuth(ctx, "mer_1", "pre_1")
	if err != nil || id != "" || scanID != "" {
		t.Fatalf("expected empty linkage, got %q %q %v", id, scanID, err)
	}

	created := createRecord(t, svc, "mer_1", 30)

	id, scanID, err = svc.FindByPreAuth(ctx, "mer_1", "pre_1")
	if err != nil {
		t.Fatalf("FindByPreAuth failed: %v", err)
	}
	if id != created || scanID != "scan_test1" {
		t.Errorf("expected %s/scan_test1, got %s/%s", created, id, scanID)
	}

	// Another merchant cannot discover the linkage.
	if _, _, err := svc.FindByPreAuth(ctx, "mer_2", "pre_1"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
}

func TestEvidenceAndNotesAppendOnly(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()
	id := createRecord(t, svc, "mer_1", 30)

	order, err := svc.AddEvidence(ctx, "mer_1", id, "signed delivery receipt", "ops@merchant.com")
	if err != nil {
		t.Fatalf("AddEvidence failed: %v", err)
	}
	order, err = svc.AddEvidence(ctx, "mer_1", id, "customer call recording", "ops@merchant.com")
	if err != nil {
		t.Fatalf("AddEvidence failed: %v", err)
	}
	if len(order.Evidence) != 2 {
		t.Errorf("expected 2 evidence items, got %d", len(order.Evidence))
	}
	if order.Evidence[0].Description != "signed delivery receipt" {
		t.Errorf("evidence order not preserved: %+v", order.Evidence)
	}

	order, err = svc.AddNote(ctx, "mer_1", id, "customer responded to verification email", "analyst")
	if err != nil {
		t.Fatalf("AddNote failed: %v", err)
	}
	if len(order.Notes) != 1 || order.Notes[0].Author != "analyst" {
		t.Errorf("note not recorded: %+v", order.Notes)
	}
}

func TestCloseTransitions(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()
	id := createRecord(t, svc, "mer_1", 30)

	order, err := svc.MarkCleared(ctx, "mer_1", id)
	if err != nil {
		t.Fatalf("MarkCleared failed: %v", err)
	}
	if order.Status != StatusCleared {
		t.Errorf("expected CLEARED, got %s", order.Status)
	}

	// Closed is terminal: neither close operation can run again.
	if _, err := svc.MarkCleared(ctx, "mer_1", id); !errors.Is(err, ErrMonitoringClosed) {
		t.Errorf("expected ErrMonitoringClosed, got %v", err)
	}
	if _, err := svc.FileChargeback(ctx, "mer_1", id); !errors.Is(err, ErrMonitoringClosed) {
		t.Errorf("expected ErrMonitoringClosed, got %v", err)
	}
}

func TestFileChargeback(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()
	id := createRecord(t, svc, "mer_1", 80)

	order, err := svc.FileChargeback(ctx, "mer_1", id)
	if err != nil {
		t.Fatalf("FileChargeback failed: %v", err)
	}
	if order.Status != StatusChargebacksFiled {
		t.Errorf("expected CHARGEBACKS_FILED, got %s", order.Status)
	}
}

func TestEvidenceAllowedAfterClose(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()
	id := createRecord(t, svc, "mer_1", 80)

	if _, err := svc.FileChargeback(ctx, "mer_1", id); err != nil {
		t.Fatalf("FileChargeback failed: %v", err)
	}

	// Dispute evidence is gathered after the chargeback lands.
	order, err := svc.AddEvidence(ctx, "mer_1", id, "proof of delivery for dispute", "ops")
	if err != nil {
		t.Fatalf("AddEvidence after close failed: %v", err)
	}
	if len(order.Evidence) != 1 {
		t.Errorf("expected evidence recorded after close, got %d items", len(order.Evidence))
	}
}

func TestOwnershipChecks(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()
	id := createRecord(t, svc, "mer_1", 30)

	if _, err := svc.Get(ctx, "mer_2", id); !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	if _, err := svc.MarkCleared(ctx, "mer_2", id); !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	if _, err := svc.Get(ctx, "mer_1", "post_missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestSweepEnded(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store)
	ctx := context.Background()
	id := createRecord(t, svc, "mer_1", 30)

	ended, err := svc.SweepEnded(ctx, time.Now(), 100)
	if err != nil {
		t.Fatalf("SweepEnded failed: %v", err)
	}
	if len(ended) != 0 {
		t.Errorf("window not elapsed, expected 0 ended, got %d", len(ended))
	}

	ended, err = svc.SweepEnded(ctx, time.Now().Add(MonitoringWindow+time.Hour), 100)
	if err != nil {
		t.Fatalf("SweepEnded failed: %v", err)
	}
	if len(ended) != 1 || ended[0].ID != id {
		t.Fatalf("expected the record surfaced, got %+v", ended)
	}

	// Sweep never closes records.
	order, _ := svc.Get(ctx, "mer_1", id)
	if order.Status != StatusUnderMonitoring {
		t.Errorf("sweep must not change status, got %s", order.Status)
	}
}
