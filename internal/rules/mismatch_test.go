package rules

import (
	"testing"

	"github.com/replaystack/incident-replay/internal/domain"
)

func statusSnapshot(delivery, billing string) *domain.ERPSnapshot {
	return &domain.ERPSnapshot{
		Status:  domain.SnapshotSuccess,
		Invoice: &domain.Invoice{ID: "ACC-SINV-0001"},
		SalesOrder: &domain.SalesOrder{
			ID:             "SAL-ORD-0001",
			DeliveryStatus: delivery,
			BillingStatus:  billing,
		},
	}
}

func TestDeliveryBillingMismatch(t *testing.T) {
	a := &DeliveryBillingAnalyzer{}

	result, err := a.Analyze(statusSnapshot("Fully Delivered", "Not Billed"))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if result.Decision != domain.DecisionRejected {
		t.Errorf("Decision = %v, want REJECTED", result.Decision)
	}
	if result.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want 0.85", result.Confidence)
	}
}

func TestDeliveryBillingAligned(t *testing.T) {
	a := &DeliveryBillingAnalyzer{}

	result, err := a.Analyze(statusSnapshot("Fully Delivered", "Fully Delivered"))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if result.Decision != domain.DecisionApprovedWithRisk {
		t.Errorf("Decision = %v, want APPROVED_WITH_RISK", result.Decision)
	}
	if result.Confidence != 0.85 {
		t.Errorf("Confidence = %v, want 0.85", result.Confidence)
	}
}

func TestDeliveryBillingNoOrder(t *testing.T) {
	a := &DeliveryBillingAnalyzer{}
	snap := statusSnapshot("Fully Delivered", "Not Billed")
	snap.SalesOrder = nil

	result, err := a.Analyze(snap)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if result.Decision != domain.DecisionUndetermined {
		t.Errorf("Decision = %v, want UNDETERMINED", result.Decision)
	}
	if result.Confidence != 0.3 {
		t.Errorf("Confidence = %v, want 0.3", result.Confidence)
	}
}
