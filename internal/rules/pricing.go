package rules

import (
	"fmt"

	"github.com/replaystack/incident-replay/internal/domain"
)

// DefaultVarianceThreshold is the acceptable absolute variance, in
// percent, between invoice and order grand totals.
const DefaultVarianceThreshold = 20.0

// PricingAnalyzer compares the invoice grand total against the linked
// order grand total. The rule is exact, so a determinate outcome carries
// a fixed high confidence.
type PricingAnalyzer struct {
	Threshold float64
}

func (a *PricingAnalyzer) Analyze(snap *domain.ERPSnapshot) (*domain.AnalysisResult, error) {
	if snap.Invoice == nil {
		return undetermined("Invoice data not found",
			"The snapshot carries no invoice record.",
			"Manual review required, invoice data unavailable.", 0.0), nil
	}
	if snap.SalesOrder == nil {
		return undetermined("No linked sales order found",
			fmt.Sprintf("Invoice %s has no linked sales order.", snap.Invoice.ID),
			"Cannot determine pricing variance without a sales order.", 0.0), nil
	}

	invTotal := snap.Invoice.GrandTotal
	orderTotal := snap.SalesOrder.GrandTotal
	if invTotal == nil || orderTotal == nil {
		return undetermined("Grand totals unavailable",
			fmt.Sprintf("Invoice %s or order %s is missing a grand total.", snap.Invoice.ID, snap.SalesOrder.ID),
			"Pricing variance cannot be computed from partial totals.", 0.3), nil
	}

	difference := *invTotal - *orderTotal
	variancePct := 0.0
	if *orderTotal != 0 {
		variancePct = difference / *orderTotal * 100
	}

	decision := domain.DecisionApprovedWithRisk
	if abs(variancePct) > a.Threshold {
		decision = domain.DecisionRejected
	}

	currency := snap.Invoice.Currency
	details := fmt.Sprintf(
		"Invoice: %s\nSales Order: %s\nOrder total: %s %.2f\nInvoice total: %s %.2f\nDifference: %s %+.2f\nVariance: %+.1f%%\nThreshold: ±%.0f%%",
		snap.Invoice.ID, snap.SalesOrder.ID,
		currency, *orderTotal, currency, *invTotal, currency, difference,
		variancePct, a.Threshold,
	)

	within := "within"
	if abs(variancePct) > a.Threshold {
		within = "outside"
	}
	conclusion := fmt.Sprintf(
		"Decision: %s. Invoice shows a %.1f%% variance against the order total, %s the acceptable threshold of ±%.0f%%.",
		decision, abs(variancePct), within, a.Threshold,
	)

	return &domain.AnalysisResult{
		Decision:   decision,
		Summary:    fmt.Sprintf("Invoice variance: %+.1f%% vs. order total", variancePct),
		Details:    details,
		Conclusion: conclusion,
		Confidence: 0.95,
		Source:     domain.SourceRule,
	}, nil
}

func undetermined(summary, details, conclusion string, confidence float64) *domain.AnalysisResult {
	return &domain.AnalysisResult{
		Decision:   domain.DecisionUndetermined,
		Summary:    summary,
		Details:    details,
		Conclusion: conclusion,
		Confidence: confidence,
		Source:     domain.SourceRule,
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
