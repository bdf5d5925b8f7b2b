package rules

import (
	"fmt"

	"github.com/replaystack/incident-replay/internal/domain"
)

// DeliveryBillingAnalyzer flags sales orders whose delivery status and
// billing status disagree.
type DeliveryBillingAnalyzer struct{}

func (a *DeliveryBillingAnalyzer) Analyze(snap *domain.ERPSnapshot) (*domain.AnalysisResult, error) {
	if snap.Invoice == nil {
		return undetermined("Invoice data not found",
			"The snapshot carries no invoice record.",
			"Manual review required, invoice data unavailable.", 0.0), nil
	}
	if snap.SalesOrder == nil {
		return undetermined("No linked sales order found",
			fmt.Sprintf("Invoice %s has no linked sales order.", snap.Invoice.ID),
			"Cannot assess delivery/billing mismatch without a sales order.", 0.3), nil
	}

	delivery := snap.SalesOrder.DeliveryStatus
	billing := snap.SalesOrder.BillingStatus
	mismatch := delivery != billing

	decision := domain.DecisionApprovedWithRisk
	verdict := "Statuses are aligned."
	if mismatch {
		decision = domain.DecisionRejected
		verdict = "These statuses do not match, indicating a mismatch."
	}

	details := fmt.Sprintf(
		"Sales Order: %s\nInvoice: %s\nDelivery Status: %s\nBilling Status: %s\nMismatch Detected: %t",
		snap.SalesOrder.ID, snap.Invoice.ID, delivery, billing, mismatch,
	)
	conclusion := fmt.Sprintf(
		"Decision: %s. The sales order shows delivery status %q and billing status %q. %s Manual verification recommended.",
		decision, delivery, billing, verdict,
	)

	return &domain.AnalysisResult{
		Decision:   decision,
		Summary:    fmt.Sprintf("Delivery status (%s) vs billing status (%s)", delivery, billing),
		Details:    details,
		Conclusion: conclusion,
		Confidence: 0.85,
		Source:     domain.SourceRule,
	}, nil
}
