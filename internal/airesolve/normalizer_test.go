package airesolve

import (
	"strings"
	"testing"

	"github.com/replaystack/incident-replay/internal/domain"
)

const wellFormed = `{
	"root_cause": "Rate raised from 500 to 575 on item WIDGET",
	"difference_breakdown": "order subtotal: 5000 + rate delta: 750 = invoice total 5750",
	"recommended_resolution": "Issue a credit note for the 750 difference",
	"confidence_score": 0.92
}`

func TestNormalizeDirectJSON(t *testing.T) {
	result, err := Normalize(wellFormed)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if !strings.Contains(result.Summary, "Rate raised") {
		t.Errorf("Summary = %q", result.Summary)
	}
	if !strings.Contains(result.Details, "rate delta: 750") {
		t.Errorf("Details = %q", result.Details)
	}
	if !strings.Contains(result.Conclusion, "credit note") {
		t.Errorf("Conclusion = %q", result.Conclusion)
	}
	if result.Confidence != 0.92 {
		t.Errorf("Confidence = %v, want 0.92", result.Confidence)
	}
	if result.Source != domain.SourceAI {
		t.Errorf("Source = %v, want AI", result.Source)
	}
}

func TestNormalizeFencedJSON(t *testing.T) {
	fenced := "```json\n" + wellFormed + "\n```"

	result, err := Normalize(fenced)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if !strings.Contains(result.Summary, "Rate raised") {
		t.Errorf("Summary = %q", result.Summary)
	}
}

func TestNormalizeWrappedInCommentary(t *testing.T) {
	wrapped := "Here is my analysis:\n" + wellFormed + "\nHope this helps!"

	result, err := Normalize(wrapped)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if result.Confidence != 0.92 {
		t.Errorf("Confidence = %v, want 0.92", result.Confidence)
	}
}

func TestNormalizeBracesInsideStrings(t *testing.T) {
	raw := `noise {"replay_summary": "cause: {unbalanced", "replay_details": "d", "replay_conclusion": "c"} trailing`

	result, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if result.Summary != "cause: {unbalanced" {
		t.Errorf("Summary = %q", result.Summary)
	}
}

func TestNormalizeMalformed(t *testing.T) {
	_, err := Normalize("I could not produce JSON, sorry.")
	if err == nil {
		t.Fatal("Normalize() error = nil, want malformed_json")
	}
	if domain.ErrorKindOf(err) != domain.ErrorKindMalformedJSON {
		t.Errorf("kind = %v, want malformed_json", domain.ErrorKindOf(err))
	}
	if domain.ErrorStageOf(err) != domain.StageNormalize {
		t.Errorf("stage = %v, want normalize", domain.ErrorStageOf(err))
	}
}

func TestNormalizeFieldSchemes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"replay scheme", `{"replay_summary":"s","replay_details":"d","replay_conclusion":"c"}`},
		{"short scheme", `{"summary":"s","details":"d","conclusion":"c"}`},
		{"contract scheme", `{"root_cause":"s","difference_breakdown":"d","recommended_resolution":"c"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Normalize(tt.raw, RequireComplete())
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if result.Summary != "s" || result.Details != "d" || result.Conclusion != "c" {
				t.Errorf("got %q/%q/%q, want s/d/c", result.Summary, result.Details, result.Conclusion)
			}
		})
	}
}

func TestNormalizeConfidence(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
	}{
		{"missing defaults to 0.5", `{"summary":"s"}`, 0.5},
		{"string coerced", `{"summary":"s","confidence":"0.7"}`, 0.7},
		{"alternate key", `{"summary":"s","confidence_score":0.9}`, 0.9},
		{"clamped high", `{"summary":"s","confidence_score":4.2}`, 1.0},
		{"clamped low", `{"summary":"s","confidence_score":-1}`, 0.0},
		{"unparsable defaults", `{"summary":"s","confidence":"high"}`, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Normalize(tt.raw)
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if result.Confidence != tt.want {
				t.Errorf("Confidence = %v, want %v", result.Confidence, tt.want)
			}
		})
	}
}

func TestNormalizeNestedAnalysis(t *testing.T) {
	raw := `{"analysis": {"summary": "nested cause"}, "confidence": 0.6}`

	result, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if result.Summary != "nested cause" {
		t.Errorf("Summary = %q, want nested cause", result.Summary)
	}
}

func TestNormalizeStatusAnalysisPair(t *testing.T) {
	raw := `{"status": "INCONCLUSIVE", "analysis": "data too sparse"}`

	result, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if result.Summary != "INCONCLUSIVE: data too sparse" {
		t.Errorf("Summary = %q", result.Summary)
	}
}

func TestNormalizeTruncationLastResort(t *testing.T) {
	raw := `{"unexpected_key": "` + strings.Repeat("x", 600) + `"}`

	result, err := Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if !strings.HasPrefix(result.Summary, "Unstructured analysis payload: ") {
		t.Errorf("Summary = %q, want truncation marker prefix", result.Summary)
	}
	if !strings.HasSuffix(result.Summary, "...") {
		t.Errorf("Summary = %q, want truncated suffix", result.Summary)
	}
}

func TestNormalizeRequireComplete(t *testing.T) {
	raw := `{"summary": "s only"}`

	if _, err := Normalize(raw); err != nil {
		t.Fatalf("Normalize() without RequireComplete error = %v", err)
	}

	_, err := Normalize(raw, RequireComplete())
	if err == nil {
		t.Fatal("Normalize(RequireComplete) error = nil, want missing_field")
	}
	if domain.ErrorKindOf(err) != domain.ErrorKindMissingField {
		t.Errorf("kind = %v, want missing_field", domain.ErrorKindOf(err))
	}
}

func TestNormalizeRequireCompleteRecoveredSummary(t *testing.T) {
	raw := `{"analysis": {"summary": "nested cause"}, "details": "d", "conclusion": "c"}`

	result, err := Normalize(raw, RequireComplete())
	if err != nil {
		t.Fatalf("Normalize(RequireComplete) error = %v", err)
	}
	if result.Summary != "nested cause" {
		t.Errorf("Summary = %q, want nested cause", result.Summary)
	}
	if result.Details != "d" || result.Conclusion != "c" {
		t.Errorf("got %q/%q, want d/c", result.Details, result.Conclusion)
	}
}

func TestMapFieldsStrict(t *testing.T) {
	_, err := MapFields(map[string]any{
		"replay_details":    "d",
		"replay_conclusion": "c",
	})
	if err == nil {
		t.Fatal("MapFields() error = nil, want missing summary")
	}
	if !domain.IsValidationError(err) {
		t.Errorf("IsValidationError = false for %v", err)
	}
	// A mapping failure must stay distinguishable from a transport one.
	if domain.ErrorStageOf(err) != domain.StageNormalize {
		t.Errorf("stage = %v, want normalize", domain.ErrorStageOf(err))
	}

	result, err := MapFields(map[string]any{
		"replay_summary":    "s",
		"replay_details":    "d",
		"replay_conclusion": "c",
		"confidence_score":  0.8,
	})
	if err != nil {
		t.Fatalf("MapFields() error = %v", err)
	}
	if result.Summary != "s" || result.Confidence != 0.8 {
		t.Errorf("got %+v", result)
	}
}
