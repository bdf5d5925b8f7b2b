// Package domain holds the canonical types shared by the resolution engine:
// incidents, ERP snapshots, analysis results, and the error taxonomy.
package domain

import "time"

// Status is the lifecycle state of an incident.
type Status string

const (
	// StatusOpen is the initial state of every incident.
	StatusOpen Status = "OPEN"

	// StatusResolved means an analysis path completed successfully.
	StatusResolved Status = "RESOLVED"

	// StatusUnderReview means the attempt finished but needs a human:
	// a failed path, or incomplete backend data.
	StatusUnderReview Status = "UNDER_REVIEW"

	// StatusError is reserved for unrecoverable storage-level failures.
	// No resolution path assigns it today: failed analysis attempts park
	// UNDER_REVIEW so the incident stays actionable, and persistence
	// failures surface as errors without touching the stored record.
	StatusError Status = "ERROR"
)

// AnalysisSource records which path produced the current status and
// whether it succeeded.
type AnalysisSource string

const (
	SourceRule           AnalysisSource = "RULE"
	SourceAI             AnalysisSource = "AI"
	SourceRuleFailed     AnalysisSource = "RULE_FAILED"
	SourceAIFailed       AnalysisSource = "AI_FAILED"
	SourceDataIncomplete AnalysisSource = "BACKEND_DATA_INCOMPLETE"
)

// ResolutionMode selects which pipeline handles an entire resolution
// attempt. It is passed explicitly into the controller at call time so
// concurrent resolutions can run under different modes.
type ResolutionMode string

const (
	ModeRule ResolutionMode = "rule"
	ModeAI   ResolutionMode = "ai"
)

// ParseResolutionMode maps a user-supplied string to a ResolutionMode,
// falling back to the provided default for empty input.
func ParseResolutionMode(s string, fallback ResolutionMode) (ResolutionMode, bool) {
	switch s {
	case "":
		return fallback, true
	case string(ModeRule):
		return ModeRule, true
	case string(ModeAI):
		return ModeAI, true
	}
	return "", false
}

// IncidentType categorizes a reported discrepancy. The set is closed;
// anything unrecognized maps to IncidentTypeUnknown.
type IncidentType string

const (
	IncidentTypePricing          IncidentType = "Pricing_Issue"
	IncidentTypeDeliveryMismatch IncidentType = "Delivery_or_Billing_Mismatch"
	IncidentTypeDuplicate        IncidentType = "Duplicate_Invoice"
	IncidentTypeUnknown          IncidentType = "Unknown"
)

// ParseIncidentType maps a category string onto the closed enum.
func ParseIncidentType(s string) IncidentType {
	switch IncidentType(s) {
	case IncidentTypePricing, IncidentTypeDeliveryMismatch, IncidentTypeDuplicate:
		return IncidentType(s)
	}
	return IncidentTypeUnknown
}

// Incident is the unit of work: a tracked discrepancy between a
// financial document and its source order.
//
// Invariant: Status == RESOLVED implies AnalysisSource is RULE or AI and
// all three replay narrative fields are non-empty.
type Incident struct {
	ID           string `json:"id"`
	ERPReference string `json:"erp_reference"`
	IncidentType string `json:"incident_type"`
	Description  string `json:"description"`

	Status         Status         `json:"status"`
	AnalysisSource AnalysisSource `json:"analysis_source,omitempty"`

	// ConfidenceScore is clamped to [0,1] and never unset once analyzed.
	ConfidenceScore float64 `json:"confidence_score"`

	ReplaySummary    string `json:"replay_summary,omitempty"`
	ReplayDetails    string `json:"replay_details,omitempty"`
	ReplayConclusion string `json:"replay_conclusion,omitempty"`

	ReplayedAt *time.Time `json:"replayed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
