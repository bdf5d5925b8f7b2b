// Package rules implements the deterministic analysis path: a closed
// registry mapping incident types to analyzers that operate on an
// extracted snapshot.
package rules

import (
	"fmt"

	"github.com/replaystack/incident-replay/internal/domain"
)

// Analyzer is the shared capability of every deterministic analyzer.
type Analyzer interface {
	Analyze(snap *domain.ERPSnapshot) (*domain.AnalysisResult, error)
}

// Registry maps incident types to analyzers. Lookups never return nil:
// unrecognized types get an analyzer that reports UNDETERMINED.
type Registry struct {
	analyzers map[domain.IncidentType]Analyzer
}

// NewRegistry creates a registry with the built-in analyzers.
func NewRegistry() *Registry {
	return &Registry{
		analyzers: map[domain.IncidentType]Analyzer{
			domain.IncidentTypePricing:          &PricingAnalyzer{Threshold: DefaultVarianceThreshold},
			domain.IncidentTypeDeliveryMismatch: &DeliveryBillingAnalyzer{},
			domain.IncidentTypeDuplicate:        &DuplicateAnalyzer{},
		},
	}
}

// For returns the analyzer for an incident type. Unknown types map to an
// explicit undetermined analyzer rather than a nil lookup.
func (r *Registry) For(t domain.IncidentType) Analyzer {
	if a, ok := r.analyzers[t]; ok {
		return a
	}
	return unknownAnalyzer{incidentType: t}
}

// unknownAnalyzer handles incident types with no deterministic rule.
type unknownAnalyzer struct {
	incidentType domain.IncidentType
}

func (a unknownAnalyzer) Analyze(_ *domain.ERPSnapshot) (*domain.AnalysisResult, error) {
	return &domain.AnalysisResult{
		Decision:   domain.DecisionUndetermined,
		Summary:    fmt.Sprintf("No deterministic analyzer for incident type %q", a.incidentType),
		Details:    "The incident type has no rule-based analysis; only AI analysis can assess it.",
		Conclusion: "Manual review or AI analysis recommended.",
		Confidence: 0.0,
		Source:     domain.SourceRule,
	}, nil
}
