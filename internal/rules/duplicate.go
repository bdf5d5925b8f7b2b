package rules

import (
	"fmt"
	"strings"

	"github.com/replaystack/incident-replay/internal/domain"
)

// DuplicateAnalyzer handles suspected duplicate invoices. Deterministic
// duplicate detection is intentionally out of rule scope: it always
// reports UNDETERMINED, signaling that the type needs the AI path.
//
// TODO: implement amount/counterparty/date key matching once the record
// system exposes a duplicate search endpoint.
type DuplicateAnalyzer struct{}

func (a *DuplicateAnalyzer) Analyze(snap *domain.ERPSnapshot) (*domain.AnalysisResult, error) {
	if snap.Invoice == nil {
		return undetermined("Invoice data not found",
			"The snapshot carries no invoice record.",
			"Manual review required, invoice data unavailable.", 0.0), nil
	}

	total := "unknown"
	if snap.Invoice.GrandTotal != nil {
		total = fmt.Sprintf("%.2f", *snap.Invoice.GrandTotal)
	}
	details := strings.Join([]string{
		"Invoice: " + snap.Invoice.ID,
		"Amount: " + total,
		"Customer: " + snap.Invoice.Customer,
		"Date: " + snap.Invoice.PostingDate,
	}, "\n")

	return &domain.AnalysisResult{
		Decision:   domain.DecisionUndetermined,
		Summary:    "Duplicate detection requires AI analysis",
		Details:    details,
		Conclusion: "Insufficient rule data for duplicate detection. AI analysis recommended.",
		Confidence: 0.5,
		Source:     domain.SourceRule,
	}, nil
}
