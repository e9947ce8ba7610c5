package scoring

import (
	"fmt"

	"github.com/Knetic/govaluate"
)

// Verdicts produced by a PromotionRule.
const (
	VerdictPromoted    = "Promoted"
	VerdictNeedsReview = "Needs Review"
)

// DefaultPromotionRule promotes at forty percent.
const DefaultPromotionRule = "percentage >= 40"

// PromotionRule is a boolean expression over the variable percentage.
type PromotionRule struct {
	source string
	expr   *govaluate.EvaluableExpression
}

// NewPromotionRule compiles source; an empty source uses DefaultPromotionRule.
func NewPromotionRule(source string) (*PromotionRule, error) {
	if source == "" {
		source = DefaultPromotionRule
	}
	expr, err := govaluate.NewEvaluableExpression(source)
	if err != nil {
		return nil, fmt.Errorf("compile promotion rule %q: %w", source, err)
	}
	return &PromotionRule{source: source, expr: expr}, nil
}

func (r *PromotionRule) String() string { return r.source }

// Verdict evaluates the rule for a percentage.
func (r *PromotionRule) Verdict(percentage float64) (string, error) {
	result, err := r.expr.Evaluate(map[string]interface{}{"percentage": percentage})
	if err != nil {
		return "", fmt.Errorf("evaluate promotion rule: %w", err)
	}
	promoted, ok := result.(bool)
	if !ok {
		return "", fmt.Errorf("promotion rule %q returned %T, want bool", r.source, result)
	}
	if promoted {
		return VerdictPromoted, nil
	}
	return VerdictNeedsReview, nil
}
