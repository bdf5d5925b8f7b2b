package domain

// Decision is the outcome of a deterministic rule analysis.
type Decision string

const (
	DecisionApprovedWithRisk Decision = "APPROVED_WITH_RISK"
	DecisionRejected         Decision = "REJECTED"
	DecisionPendingReview    Decision = "PENDING_REVIEW"
	DecisionUndetermined     Decision = "UNDETERMINED"
)

// AnalysisResult is the uniform output of either analysis path before it
// is written onto an Incident. The AI path leaves Decision empty;
// success or failure there is carried by the error channel instead.
type AnalysisResult struct {
	Decision   Decision       `json:"decision,omitempty"`
	Summary    string         `json:"summary"`
	Details    string         `json:"details"`
	Conclusion string         `json:"conclusion"`
	Confidence float64        `json:"confidence"`
	Source     AnalysisSource `json:"source"`
}

// ClampConfidence forces a confidence value into [0,1].
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
