package airesolve

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/replaystack/incident-replay/internal/domain"
)

// The provider is told to answer with a single JSON object, but three
// historical naming schemes exist for the same narrative concepts.
// Coalescing order is first-non-empty across the schemes.
var (
	summaryKeys    = []string{"replay_summary", "summary", "root_cause"}
	detailsKeys    = []string{"replay_details", "details", "difference_breakdown"}
	conclusionKeys = []string{"replay_conclusion", "conclusion", "recommended_resolution"}
	confidenceKeys = []string{"confidence_score", "confidence"}
)

const rawFallbackLimit = 500

// NormalizeOption configures normalization.
type NormalizeOption func(*normalizeOptions)

type normalizeOptions struct {
	requireComplete bool
}

// RequireComplete makes empty details or conclusion a mapping failure.
// Callers that write the result onto a resolved incident need all three
// narrative fields populated.
func RequireComplete() NormalizeOption {
	return func(o *normalizeOptions) {
		o.requireComplete = true
	}
}

// Normalize validates and coerces raw provider output into the
// canonical result shape. The text is parsed as JSON directly; failing
// that, the first balanced {...} span is parsed instead. A missing
// summary is recovered from a nested "analysis" sub-object and, as a
// last resort, by truncating the raw payload into the summary field,
// clearly marked as such.
func Normalize(raw string, opts ...NormalizeOption) (*domain.AnalysisResult, error) {
	var o normalizeOptions
	for _, opt := range opts {
		opt(&o)
	}

	obj, err := ParseResponse(raw)
	if err != nil {
		return nil, err
	}

	if coalesce(obj, summaryKeys) == "" {
		if s := summaryFromNested(obj); s != "" {
			obj["summary"] = s
		} else {
			// Last resort: surface the payload itself rather than invent
			// narrative text.
			encoded, _ := json.Marshal(obj)
			obj["summary"] = "Unstructured analysis payload: " + truncate(string(encoded), rawFallbackLimit)
		}
	}

	if o.requireComplete {
		return MapFields(obj)
	}

	return &domain.AnalysisResult{
		Summary:    coalesce(obj, summaryKeys),
		Details:    coalesce(obj, detailsKeys),
		Conclusion: coalesce(obj, conclusionKeys),
		Confidence: coerceConfidence(obj),
		Source:     domain.SourceAI,
	}, nil
}

// MapFields is the strict mapping layer behind RequireComplete: it maps
// only what the provider actually said and fails on any missing
// narrative field rather than inventing default text.
func MapFields(obj map[string]any) (*domain.AnalysisResult, error) {
	summary := coalesce(obj, summaryKeys)
	details := coalesce(obj, detailsKeys)
	conclusion := coalesce(obj, conclusionKeys)

	if summary == "" {
		return nil, domain.NewResolutionError(domain.StageNormalize, domain.ErrorKindMissingField,
			"provider response missing summary")
	}
	if details == "" {
		return nil, domain.NewResolutionError(domain.StageNormalize, domain.ErrorKindMissingField,
			"provider response missing details")
	}
	if conclusion == "" {
		return nil, domain.NewResolutionError(domain.StageNormalize, domain.ErrorKindMissingField,
			"provider response missing conclusion")
	}

	return &domain.AnalysisResult{
		Summary:    summary,
		Details:    details,
		Conclusion: conclusion,
		Confidence: coerceConfidence(obj),
		Source:     domain.SourceAI,
	}, nil
}

// ParseResponse extracts the JSON object from provider text. It
// tolerates markdown fences and wrapping commentary the provider was
// told not to produce.
func ParseResponse(raw string) (map[string]any, error) {
	cleaned := stripFences(strings.TrimSpace(raw))

	var obj map[string]any
	if err := json.Unmarshal([]byte(cleaned), &obj); err == nil {
		return obj, nil
	}

	if span, ok := balancedSpan(cleaned); ok {
		if err := json.Unmarshal([]byte(span), &obj); err == nil {
			return obj, nil
		}
	}

	return nil, domain.NewResolutionError(domain.StageNormalize, domain.ErrorKindMalformedJSON,
		fmt.Sprintf("could not extract valid JSON from provider response: %s", truncate(raw, 200)))
}

// stripFences removes a wrapping markdown code fence. Models often wrap
// JSON in ```json ... ``` blocks despite the output contract.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	b := []byte(s)
	if idx := bytes.IndexByte(b, '\n'); idx >= 0 {
		b = b[idx+1:]
	}
	b = bytes.TrimSuffix(bytes.TrimSpace(b), []byte("```"))
	return string(bytes.TrimSpace(b))
}

// balancedSpan returns the first balanced {...} span in the text,
// honoring JSON string and escape rules.
func balancedSpan(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// summaryFromNested digs into an "analysis" sub-object, then a
// status/analysis pair, for something usable as a summary.
func summaryFromNested(obj map[string]any) string {
	switch analysis := obj["analysis"].(type) {
	case map[string]any:
		if s := coalesce(analysis, summaryKeys); s != "" {
			return s
		}
	case string:
		status, _ := obj["status"].(string)
		if status != "" && analysis != "" {
			return status + ": " + analysis
		}
		if analysis != "" {
			return analysis
		}
		if status != "" {
			return status
		}
	}
	if status, _ := obj["status"].(string); status != "" {
		return status
	}
	return ""
}

func coalesce(obj map[string]any, keys []string) string {
	for _, key := range keys {
		if s := safeString(obj[key]); s != "" {
			return s
		}
	}
	return ""
}

// safeString renders a JSON value as text. Objects and arrays are
// re-encoded rather than dropped.
func safeString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case map[string]any, []any:
		encoded, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(encoded)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprintf("%v", v)
}

// coerceConfidence pulls a confidence out of the response and clamps it
// to [0,1]. Missing or unparsable values default to 0.5 rather than
// failing the whole response.
func coerceConfidence(obj map[string]any) float64 {
	for _, key := range confidenceKeys {
		switch v := obj[key].(type) {
		case float64:
			return domain.ClampConfidence(v)
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return domain.ClampConfidence(f)
			}
		case json.Number:
			if f, err := v.Float64(); err == nil {
				return domain.ClampConfidence(f)
			}
		}
	}
	return 0.5
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
