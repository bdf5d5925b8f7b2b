package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/replaystack/incident-replay/internal/domain"
)

type fakeExtractor struct {
	snap  *domain.ERPSnapshot
	calls int
}

func (f *fakeExtractor) Extract(_ context.Context, _ string) *domain.ERPSnapshot {
	f.calls++
	return f.snap
}

type fakeAnalyzer struct {
	result *domain.AnalysisResult
	err    error
}

func (f *fakeAnalyzer) Analyze(_ *domain.ERPSnapshot) (*domain.AnalysisResult, error) {
	return f.result, f.err
}

type fakeRegistry struct {
	analyzer Analyzer
}

func (f *fakeRegistry) For(_ domain.IncidentType) Analyzer {
	return f.analyzer
}

type fakeAI struct {
	reply string
	err   error
	calls int
}

func (f *fakeAI) Analyze(_ context.Context, _ string) (string, error) {
	f.calls++
	return f.reply, f.err
}

type fakeStore struct {
	saved *domain.Incident
	err   error
}

func (f *fakeStore) UpdateResolution(_ context.Context, inc *domain.Incident) error {
	if f.err != nil {
		return f.err
	}
	clone := *inc
	f.saved = &clone
	return nil
}

func successSnapshot() *domain.ERPSnapshot {
	total := 5750.0
	orderTotal := 5000.0
	return &domain.ERPSnapshot{
		Status:     domain.SnapshotSuccess,
		Invoice:    &domain.Invoice{ID: "ACC-SINV-0001", GrandTotal: &total},
		SalesOrder: &domain.SalesOrder{ID: "SAL-ORD-0001", GrandTotal: &orderTotal},
	}
}

func openIncident() *domain.Incident {
	return &domain.Incident{
		ID:           "inc-1",
		ERPReference: "ACC-SINV-0001",
		IncidentType: string(domain.IncidentTypePricing),
		Description:  "Invoice total exceeds order",
		Status:       domain.StatusOpen,
	}
}

func newTestController(extractor SnapshotExtractor, registry RuleRegistry, ai AIAnalyzer, store IncidentWriter) *Controller {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fixed := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	return NewController(extractor, registry, ai, store, logger,
		WithNow(func() time.Time { return fixed }))
}

func TestResolveRuleSuccess(t *testing.T) {
	analyzer := &fakeAnalyzer{result: &domain.AnalysisResult{
		Decision:   domain.DecisionApprovedWithRisk,
		Summary:    "within threshold",
		Details:    "variance 15%",
		Conclusion: "approve",
		Confidence: 0.95,
		Source:     domain.SourceRule,
	}}
	ai := &fakeAI{}
	store := &fakeStore{}
	c := newTestController(&fakeExtractor{snap: successSnapshot()}, &fakeRegistry{analyzer: analyzer}, ai, store)

	inc, err := c.Resolve(context.Background(), openIncident(), domain.ModeRule)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if inc.Status != domain.StatusResolved {
		t.Errorf("Status = %v, want RESOLVED", inc.Status)
	}
	if inc.AnalysisSource != domain.SourceRule {
		t.Errorf("AnalysisSource = %v, want RULE", inc.AnalysisSource)
	}
	if inc.ConfidenceScore != 0.95 {
		t.Errorf("ConfidenceScore = %v, want 0.95", inc.ConfidenceScore)
	}
	if inc.ReplayedAt == nil {
		t.Error("ReplayedAt not stamped")
	}
	if ai.calls != 0 {
		t.Errorf("AI called %d times on rule path, want 0", ai.calls)
	}
	if store.saved == nil || store.saved.Status != domain.StatusResolved {
		t.Errorf("persisted incident = %+v", store.saved)
	}
}

func TestResolveRuleUndeterminedStillResolves(t *testing.T) {
	analyzer := &fakeAnalyzer{result: &domain.AnalysisResult{
		Decision:   domain.DecisionUndetermined,
		Summary:    "cannot tell",
		Details:    "no order",
		Conclusion: "review manually",
		Confidence: 0.0,
		Source:     domain.SourceRule,
	}}
	store := &fakeStore{}
	c := newTestController(&fakeExtractor{snap: successSnapshot()}, &fakeRegistry{analyzer: analyzer}, &fakeAI{}, store)

	inc, err := c.Resolve(context.Background(), openIncident(), domain.ModeRule)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if inc.Status != domain.StatusResolved {
		t.Errorf("Status = %v, want RESOLVED for an UNDETERMINED rule outcome", inc.Status)
	}
	if inc.ConfidenceScore != 0.0 {
		t.Errorf("ConfidenceScore = %v, want 0.0", inc.ConfidenceScore)
	}
}

func TestResolveRuleSnapshotError(t *testing.T) {
	extractor := &fakeExtractor{snap: &domain.ERPSnapshot{
		Status: domain.SnapshotError,
		Error:  "invoice fetch failed",
	}}
	store := &fakeStore{}
	c := newTestController(extractor, &fakeRegistry{analyzer: &fakeAnalyzer{}}, &fakeAI{}, store)

	inc, err := c.Resolve(context.Background(), openIncident(), domain.ModeRule)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if inc.Status != domain.StatusUnderReview {
		t.Errorf("Status = %v, want UNDER_REVIEW", inc.Status)
	}
	if inc.AnalysisSource != domain.SourceRuleFailed {
		t.Errorf("AnalysisSource = %v, want RULE_FAILED", inc.AnalysisSource)
	}
	if inc.ConfidenceScore != 0 {
		t.Errorf("ConfidenceScore = %v, want 0", inc.ConfidenceScore)
	}
}

func TestResolveRuleAnalyzerError(t *testing.T) {
	analyzer := &fakeAnalyzer{err: errors.New("analyzer blew up")}
	store := &fakeStore{}
	c := newTestController(&fakeExtractor{snap: successSnapshot()}, &fakeRegistry{analyzer: analyzer}, &fakeAI{}, store)

	inc, err := c.Resolve(context.Background(), openIncident(), domain.ModeRule)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if inc.Status != domain.StatusUnderReview || inc.AnalysisSource != domain.SourceRuleFailed {
		t.Errorf("got %v/%v, want UNDER_REVIEW/RULE_FAILED", inc.Status, inc.AnalysisSource)
	}
}

func TestResolveAISuccess(t *testing.T) {
	ai := &fakeAI{reply: `{
		"root_cause": "rate change",
		"difference_breakdown": "5000 + 750 = 5750",
		"recommended_resolution": "credit note",
		"confidence_score": 0.9
	}`}
	store := &fakeStore{}
	c := newTestController(&fakeExtractor{snap: successSnapshot()}, &fakeRegistry{analyzer: &fakeAnalyzer{}}, ai, store)

	inc, err := c.Resolve(context.Background(), openIncident(), domain.ModeAI)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if inc.Status != domain.StatusResolved {
		t.Errorf("Status = %v, want RESOLVED", inc.Status)
	}
	if inc.AnalysisSource != domain.SourceAI {
		t.Errorf("AnalysisSource = %v, want AI", inc.AnalysisSource)
	}
	if inc.ReplaySummary == "" || inc.ReplayDetails == "" || inc.ReplayConclusion == "" {
		t.Errorf("narrative fields incomplete: %q/%q/%q",
			inc.ReplaySummary, inc.ReplayDetails, inc.ReplayConclusion)
	}
	if inc.ConfidenceScore != 0.9 {
		t.Errorf("ConfidenceScore = %v, want 0.9", inc.ConfidenceScore)
	}
}

func TestResolveAICallFailureNeverResolves(t *testing.T) {
	ai := &fakeAI{err: domain.NewResolutionError(domain.StageAICall, domain.ErrorKindTimeout, "provider timeout")}
	store := &fakeStore{}
	c := newTestController(&fakeExtractor{snap: successSnapshot()}, &fakeRegistry{analyzer: &fakeAnalyzer{}}, ai, store)

	inc, err := c.Resolve(context.Background(), openIncident(), domain.ModeAI)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if inc.Status == domain.StatusResolved {
		t.Fatal("Status = RESOLVED after AI failure")
	}
	if inc.AnalysisSource != domain.SourceAIFailed {
		t.Errorf("AnalysisSource = %v, want AI_FAILED", inc.AnalysisSource)
	}
	if inc.ConfidenceScore != 0 {
		t.Errorf("ConfidenceScore = %v, want 0", inc.ConfidenceScore)
	}
}

func TestResolveAIMalformedReply(t *testing.T) {
	ai := &fakeAI{reply: "sorry, no JSON today"}
	store := &fakeStore{}
	c := newTestController(&fakeExtractor{snap: successSnapshot()}, &fakeRegistry{analyzer: &fakeAnalyzer{}}, ai, store)

	inc, err := c.Resolve(context.Background(), openIncident(), domain.ModeAI)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if inc.Status != domain.StatusUnderReview || inc.AnalysisSource != domain.SourceAIFailed {
		t.Errorf("got %v/%v, want UNDER_REVIEW/AI_FAILED", inc.Status, inc.AnalysisSource)
	}
}

func TestResolveAIIncompleteSnapshot(t *testing.T) {
	extractor := &fakeExtractor{snap: &domain.ERPSnapshot{
		Status:        domain.SnapshotIncomplete,
		Invoice:       &domain.Invoice{ID: "ACC-SINV-0001"},
		MissingFields: []string{"invoice.grand_total", domain.MissingOrderLink},
	}}
	ai := &fakeAI{}
	store := &fakeStore{}
	c := newTestController(extractor, &fakeRegistry{analyzer: &fakeAnalyzer{}}, ai, store)

	inc, err := c.Resolve(context.Background(), openIncident(), domain.ModeAI)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if inc.Status != domain.StatusUnderReview {
		t.Errorf("Status = %v, want UNDER_REVIEW", inc.Status)
	}
	if inc.AnalysisSource != domain.SourceDataIncomplete {
		t.Errorf("AnalysisSource = %v, want BACKEND_DATA_INCOMPLETE", inc.AnalysisSource)
	}
	if ai.calls != 0 {
		t.Errorf("AI called %d times on incomplete data, want 0", ai.calls)
	}
}

func TestResolveRuleToleratesIncompleteSnapshot(t *testing.T) {
	extractor := &fakeExtractor{snap: &domain.ERPSnapshot{
		Status:        domain.SnapshotIncomplete,
		Invoice:       &domain.Invoice{ID: "ACC-SINV-0001"},
		MissingFields: []string{domain.MissingOrderLink},
	}}
	analyzer := &fakeAnalyzer{result: &domain.AnalysisResult{
		Decision:   domain.DecisionUndetermined,
		Summary:    "no order",
		Details:    "d",
		Conclusion: "c",
		Confidence: 0.0,
		Source:     domain.SourceRule,
	}}
	store := &fakeStore{}
	c := newTestController(extractor, &fakeRegistry{analyzer: analyzer}, &fakeAI{}, store)

	inc, err := c.Resolve(context.Background(), openIncident(), domain.ModeRule)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if inc.Status != domain.StatusResolved {
		t.Errorf("Status = %v, want RESOLVED: rule analyzers degrade instead of failing", inc.Status)
	}
}

func TestResolveConfidenceClamped(t *testing.T) {
	analyzer := &fakeAnalyzer{result: &domain.AnalysisResult{
		Summary: "s", Details: "d", Conclusion: "c",
		Confidence: 3.5,
		Source:     domain.SourceRule,
	}}
	store := &fakeStore{}
	c := newTestController(&fakeExtractor{snap: successSnapshot()}, &fakeRegistry{analyzer: analyzer}, &fakeAI{}, store)

	inc, err := c.Resolve(context.Background(), openIncident(), domain.ModeRule)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	if inc.ConfidenceScore != 1.0 {
		t.Errorf("ConfidenceScore = %v, want clamped to 1.0", inc.ConfidenceScore)
	}
}

func TestResolveStorageFailureSurfaces(t *testing.T) {
	analyzer := &fakeAnalyzer{result: &domain.AnalysisResult{
		Summary: "s", Details: "d", Conclusion: "c", Confidence: 0.9, Source: domain.SourceRule,
	}}
	store := &fakeStore{err: errors.New("disk full")}
	c := newTestController(&fakeExtractor{snap: successSnapshot()}, &fakeRegistry{analyzer: analyzer}, &fakeAI{}, store)

	_, err := c.Resolve(context.Background(), openIncident(), domain.ModeRule)
	if err == nil {
		t.Fatal("Resolve() error = nil, want storage error")
	}
	if domain.ErrorStageOf(err) != domain.StageStorage {
		t.Errorf("stage = %v, want storage", domain.ErrorStageOf(err))
	}
}

func TestResolveBuildsFreshSnapshotPerAttempt(t *testing.T) {
	extractor := &fakeExtractor{snap: successSnapshot()}
	analyzer := &fakeAnalyzer{result: &domain.AnalysisResult{
		Summary: "s", Details: "d", Conclusion: "c", Confidence: 0.9, Source: domain.SourceRule,
	}}
	store := &fakeStore{}
	c := newTestController(extractor, &fakeRegistry{analyzer: analyzer}, &fakeAI{}, store)

	if _, err := c.Resolve(context.Background(), openIncident(), domain.ModeRule); err != nil {
		t.Fatalf("first Resolve() error = %v", err)
	}
	if _, err := c.Resolve(context.Background(), openIncident(), domain.ModeRule); err != nil {
		t.Fatalf("second Resolve() error = %v", err)
	}

	if extractor.calls != 2 {
		t.Errorf("extractor called %d times, want 2", extractor.calls)
	}
}
