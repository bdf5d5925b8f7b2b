package rules

import (
	"testing"

	"github.com/replaystack/incident-replay/internal/domain"
)

func TestRegistryKnownTypes(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		incidentType domain.IncidentType
		want         any
	}{
		{domain.IncidentTypePricing, &PricingAnalyzer{}},
		{domain.IncidentTypeDeliveryMismatch, &DeliveryBillingAnalyzer{}},
		{domain.IncidentTypeDuplicate, &DuplicateAnalyzer{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.incidentType), func(t *testing.T) {
			a := r.For(tt.incidentType)
			if a == nil {
				t.Fatal("For() = nil")
			}
			switch tt.incidentType {
			case domain.IncidentTypePricing:
				if _, ok := a.(*PricingAnalyzer); !ok {
					t.Errorf("For() = %T, want *PricingAnalyzer", a)
				}
			case domain.IncidentTypeDeliveryMismatch:
				if _, ok := a.(*DeliveryBillingAnalyzer); !ok {
					t.Errorf("For() = %T, want *DeliveryBillingAnalyzer", a)
				}
			case domain.IncidentTypeDuplicate:
				if _, ok := a.(*DuplicateAnalyzer); !ok {
					t.Errorf("For() = %T, want *DuplicateAnalyzer", a)
				}
			}
		})
	}
}

func TestRegistryUnknownTypeNeverNil(t *testing.T) {
	r := NewRegistry()

	a := r.For(domain.IncidentType("Mystery"))
	if a == nil {
		t.Fatal("For() = nil for unknown type")
	}

	result, err := a.Analyze(&domain.ERPSnapshot{Status: domain.SnapshotSuccess})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.Decision != domain.DecisionUndetermined {
		t.Errorf("Decision = %v, want UNDETERMINED", result.Decision)
	}
	if result.Confidence != 0.0 {
		t.Errorf("Confidence = %v, want 0.0", result.Confidence)
	}
}
