// Package engine hosts the resolution controller: the state machine that
// runs exactly one analysis path per attempt and maps its outcome onto
// the incident's terminal state.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/replaystack/incident-replay/internal/airesolve"
	"github.com/replaystack/incident-replay/internal/domain"
	"github.com/replaystack/incident-replay/internal/metrics"
	"github.com/replaystack/incident-replay/internal/prompt"
)

// SnapshotExtractor produces a fresh point-in-time read of the ERP
// records behind an incident. Extraction never returns an error: fetch
// failures surface as an ERROR snapshot.
type SnapshotExtractor interface {
	Extract(ctx context.Context, erpReference string) *domain.ERPSnapshot
}

// Analyzer is one deterministic rule evaluation.
type Analyzer interface {
	Analyze(snap *domain.ERPSnapshot) (*domain.AnalysisResult, error)
}

// RuleRegistry resolves the analyzer for an incident type. For must
// never return nil; unknown types get a fallback analyzer.
type RuleRegistry interface {
	For(t domain.IncidentType) Analyzer
}

// AIAnalyzer sends a rendered prompt to the provider and returns its raw
// text reply.
type AIAnalyzer interface {
	Analyze(ctx context.Context, promptText string) (string, error)
}

// IncidentWriter persists the outcome of a resolution attempt.
type IncidentWriter interface {
	UpdateResolution(ctx context.Context, inc *domain.Incident) error
}

// Controller coordinates a single resolution attempt. The path is chosen
// per call, so concurrent attempts can run under different modes; each
// attempt builds its own snapshot and shares no mutable state.
type Controller struct {
	extractor SnapshotExtractor
	registry  RuleRegistry
	ai        AIAnalyzer
	store     IncidentWriter
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController wires the resolution state machine.
func NewController(extractor SnapshotExtractor, registry RuleRegistry, ai AIAnalyzer, store IncidentWriter, logger *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		extractor: extractor,
		registry:  registry,
		ai:        ai,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve runs one analysis attempt on the incident and persists the
// outcome. Analysis failures never surface as errors: they are encoded
// in the incident's status and analysis source, so one bad attempt can
// never corrupt the incident beyond its own fields. The returned error
// is a persistence failure only.
func (c *Controller) Resolve(ctx context.Context, inc *domain.Incident, mode domain.ResolutionMode) (*domain.Incident, error) {
	start := c.now()
	log := c.logger.With(
		slog.String("incident_id", inc.ID),
		slog.String("erp_reference", inc.ERPReference),
		slog.String("mode", string(mode)),
	)
	log.Info("resolution attempt started", slog.String("incident_type", inc.IncidentType))

	switch mode {
	case domain.ModeAI:
		c.resolveAI(ctx, inc, log)
	default:
		c.resolveRule(ctx, inc, log)
	}

	now := c.now()
	inc.ReplayedAt = &now
	inc.ConfidenceScore = domain.ClampConfidence(inc.ConfidenceScore)

	outcome := metrics.OutcomeUnderReview
	if inc.Status == domain.StatusResolved {
		outcome = metrics.OutcomeResolved
	}

	if err := c.store.UpdateResolution(ctx, inc); err != nil {
		metrics.ObserveResolution(string(mode), c.now().Sub(start), metrics.OutcomeError)
		log.Error("failed to persist resolution outcome", slog.String("error", err.Error()))
		return nil, domain.NewResolutionError(domain.StageStorage, domain.ErrorKindValidation,
			"persisting resolution outcome").WithCause(err)
	}

	metrics.ObserveResolution(string(mode), c.now().Sub(start), outcome)
	log.Info("resolution attempt finished",
		slog.String("status", string(inc.Status)),
		slog.String("source", string(inc.AnalysisSource)),
		slog.Float64("confidence", inc.ConfidenceScore))
	return inc, nil
}

// resolveRule runs the deterministic path. Rule analyzers tolerate
// incomplete snapshots and degrade their confidence instead of failing,
// so only an ERROR snapshot or an analyzer error parks the incident.
func (c *Controller) resolveRule(ctx context.Context, inc *domain.Incident, log *slog.Logger) {
	snap := c.extractor.Extract(ctx, inc.ERPReference)
	if snap.Status == domain.SnapshotError {
		c.markFailed(inc, domain.SourceRuleFailed,
			"ERP data extraction failed", snap.Error)
		return
	}

	analyzer := c.registry.For(domain.ParseIncidentType(inc.IncidentType))
	result, err := analyzer.Analyze(snap)
	if err != nil {
		log.Warn("rule analyzer failed", slog.String("error", err.Error()))
		c.markFailed(inc, domain.SourceRuleFailed,
			"Rule analysis failed", err.Error())
		return
	}

	// UNDETERMINED is still a completed rule evaluation: the incident
	// resolves with the analyzer's low confidence on record.
	inc.Status = domain.StatusResolved
	inc.AnalysisSource = domain.SourceRule
	c.applyResult(inc, result)
}

// resolveAI runs the provider path. An incomplete snapshot is a distinct
// terminal outcome: the provider is never asked to reason over data the
// backend could not supply.
func (c *Controller) resolveAI(ctx context.Context, inc *domain.Incident, log *slog.Logger) {
	snap := c.extractor.Extract(ctx, inc.ERPReference)
	switch snap.Status {
	case domain.SnapshotError:
		c.markFailed(inc, domain.SourceAIFailed,
			"ERP data extraction failed", snap.Error)
		return
	case domain.SnapshotIncomplete:
		inc.Status = domain.StatusUnderReview
		inc.AnalysisSource = domain.SourceDataIncomplete
		inc.ConfidenceScore = 0
		inc.ReplaySummary = "Backend data incomplete"
		inc.ReplayDetails = fmt.Sprintf("Missing fields: %v", snap.MissingFields)
		inc.ReplayConclusion = "Manual review required: ERP records are missing critical fields."
		return
	}

	promptText := prompt.Build(snap.Invoice, snap.SalesOrder, inc.Description)

	raw, err := c.ai.Analyze(ctx, promptText)
	if err != nil {
		log.Warn("AI call failed",
			slog.String("error", err.Error()),
			slog.String("kind", string(domain.ErrorKindOf(err))))
		c.markFailed(inc, domain.SourceAIFailed, "AI analysis failed", err.Error())
		return
	}

	result, err := airesolve.Normalize(raw, airesolve.RequireComplete())
	if err != nil {
		log.Warn("AI response unusable", slog.String("error", err.Error()))
		c.markFailed(inc, domain.SourceAIFailed, "AI response unusable", err.Error())
		return
	}

	inc.Status = domain.StatusResolved
	inc.AnalysisSource = domain.SourceAI
	c.applyResult(inc, result)
}

func (c *Controller) applyResult(inc *domain.Incident, result *domain.AnalysisResult) {
	inc.ReplaySummary = result.Summary
	inc.ReplayDetails = result.Details
	inc.ReplayConclusion = result.Conclusion
	inc.ConfidenceScore = domain.ClampConfidence(result.Confidence)
}

// markFailed parks the incident for human review with the failure
// recorded in the replay fields. Confidence drops to zero: a failed
// attempt asserts nothing.
func (c *Controller) markFailed(inc *domain.Incident, source domain.AnalysisSource, summary, detail string) {
	inc.Status = domain.StatusUnderReview
	inc.AnalysisSource = source
	inc.ConfidenceScore = 0
	inc.ReplaySummary = summary
	inc.ReplayDetails = detail
	inc.ReplayConclusion = "Manual review required."
}
