package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/fixamincity/backend/internal/models"
)

// Stage-1 heuristic thresholds.
const (
	minTimeSpentMS    = 15000
	minDescriptionLen = 15
	minTitleLen       = 8

	// Minimum classifier confidence for a submission to count as valid.
	minValidConfidence = 70
)

// Classifier is the external text-classification collaborator. It returns the
// raw response text; the validator owns all parsing and never trusts the shape.
type Classifier interface {
	Classify(ctx context.Context, title, description, category string) (string, error)
}

// ValidationInput describes a freshly submitted report.
type ValidationInput struct {
	Title       string
	Description string
	Category    string
	TimeSpentMS int64 // elapsed authoring time, first keystroke to submit
	PhotoURL    string
}

// ValidationResult is the verdict that drives the issue's persisted status
// and whether the points engine is invoked.
type ValidationResult struct {
	IsValid           bool
	Confidence        int
	Reason            string
	SuggestedCategory string
	Method            string
}

// verdictSchema rejects classifier responses missing required fields or
// carrying wrong field types; either counts as a parse failure.
const verdictSchemaJSON = `{
	"type": "object",
	"required": ["isValid", "confidence", "reason"],
	"properties": {
		"isValid": {"type": "boolean"},
		"confidence": {"type": "number"},
		"reason": {"type": "string"},
		"suggestedCategory": {"type": "string"}
	}
}`

var verdictSchema = jsonschema.MustCompileString("https://fixamincity.dev/schemas/classifier-verdict", verdictSchemaJSON)

// Validator runs the two-stage gate: a cheap local heuristic, then the
// external classifier. It never returns an error; classifier failure always
// degrades to the heuristic verdict.
type Validator struct {
	Classifier Classifier // nil disables stage 2
	Logger     *slog.Logger
}

func NewValidator(classifier Classifier, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{Classifier: classifier, Logger: logger}
}

// Validate decides whether a report is legitimate enough to earn points.
func (v *Validator) Validate(ctx context.Context, in ValidationInput) ValidationResult {
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)

	if reason, ok := v.basicGate(title, description, in.TimeSpentMS); !ok {
		// A stage-1 rejection is final: stage 2 is never consulted.
		return ValidationResult{
			IsValid:           false,
			Confidence:        0,
			Reason:            reason,
			SuggestedCategory: in.Category,
			Method:            models.ValidationBasicRejected,
		}
	}

	basicPass := ValidationResult{
		IsValid:           true,
		Confidence:        75,
		Reason:            "basic validation passed",
		SuggestedCategory: in.Category,
		Method:            models.ValidationBasic,
	}
	if v.Classifier == nil {
		return basicPass
	}

	raw, err := v.Classifier.Classify(ctx, title, description, in.Category)
	if err != nil {
		v.Logger.Warn("classifier unavailable, falling back to basic validation", "error", err)
		return basicPass
	}

	verdict, ok := parseVerdict(raw)
	if !ok {
		if scanNegative(raw) {
			return ValidationResult{
				IsValid:           false,
				Confidence:        25,
				Reason:            "classifier flagged submission (response was unparseable)",
				SuggestedCategory: in.Category,
				Method:            models.ValidationAIRejected,
			}
		}
		v.Logger.Warn("classifier response unparseable, falling back to basic validation")
		return basicPass
	}

	confidence := clamp(int(verdict.Confidence), 0, 100)
	reason := verdict.Reason
	if reason == "" {
		reason = "no reason provided"
	}
	category := verdict.SuggestedCategory
	if !models.KnownCategories[category] {
		category = in.Category
	}

	result := ValidationResult{
		IsValid:           verdict.IsValid && confidence >= minValidConfidence,
		Confidence:        confidence,
		Reason:            reason,
		SuggestedCategory: category,
	}
	if result.IsValid {
		result.Method = models.ValidationAI
	} else {
		result.Method = models.ValidationAIRejected
	}
	return result
}

// basicGate is the stage-1 heuristic. It runs unconditionally and is also the
// fallback verdict when stage 2 is unavailable.
func (v *Validator) basicGate(title, description string, timeSpentMS int64) (reason string, ok bool) {
	switch {
	case timeSpentMS < minTimeSpentMS:
		return "form was submitted too quickly", false
	case len(description) < minDescriptionLen:
		return "description is too short", false
	case len(title) < minTitleLen:
		return "title is too short", false
	}
	return "", true
}

type classifierVerdict struct {
	IsValid           bool    `json:"isValid"`
	Confidence        float64 `json:"confidence"`
	Reason            string  `json:"reason"`
	SuggestedCategory string  `json:"suggestedCategory"`
}

// parseVerdict defensively extracts a structured verdict from free-form
// classifier output: strip markdown fences, clip to the outermost {...} span,
// decode, then check the document against the verdict schema.
func parseVerdict(raw string) (*classifierVerdict, bool) {
	clean := strings.ReplaceAll(raw, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)

	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start == -1 || end == -1 || end < start {
		return nil, false
	}
	clean = clean[start : end+1]

	var doc any
	if err := json.Unmarshal([]byte(clean), &doc); err != nil {
		return nil, false
	}
	if err := verdictSchema.Validate(doc); err != nil {
		return nil, false
	}

	var verdict classifierVerdict
	if err := json.Unmarshal([]byte(clean), &verdict); err != nil {
		return nil, false
	}
	return &verdict, true
}

// scanNegative is the last-ditch keyword scan over an unparseable response.
func scanNegative(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.Contains(lower, "invalid") ||
		strings.Contains(lower, "test") ||
		strings.Contains(lower, "spam")
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
