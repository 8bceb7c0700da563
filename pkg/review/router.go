// Package review turns classifier confidence and rule violations into an
// approve or flag-for-review recommendation per citation.
package review

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/coolbeans/citecheck/pkg/citation"
	"github.com/coolbeans/citecheck/pkg/rules"
)

// Recommendation is the router's verdict for one citation.
type Recommendation string

const (
	Approve       Recommendation = "approve"
	FlagForReview Recommendation = "flag_for_review"
)

// RoutingConfig carries the routing policy. It is an explicit value passed
// through the call chain so runs with different policies can execute
// concurrently without interference.
type RoutingConfig struct {
	// AutoApproveThreshold is the minimum adjusted confidence for an
	// approve recommendation.
	AutoApproveThreshold float64 `yaml:"auto_approve_threshold" json:"auto_approve_threshold"`

	// SeverityWeights is the confidence penalty charged per violation of
	// each severity.
	SeverityWeights map[rules.Severity]float64 `yaml:"severity_weights" json:"severity_weights"`
}

// DefaultRoutingConfig returns the stock policy.
func DefaultRoutingConfig() RoutingConfig {
	return RoutingConfig{
		AutoApproveThreshold: 0.9,
		SeverityWeights: map[rules.Severity]float64{
			rules.SeverityCritical: 0.5,
			rules.SeverityHigh:     0.25,
			rules.SeverityMedium:   0.1,
			rules.SeverityLow:      0.05,
		},
	}
}

// Validate checks the config for out-of-range values.
func (c RoutingConfig) Validate() error {
	if c.AutoApproveThreshold < 0 || c.AutoApproveThreshold > 1 {
		return fmt.Errorf("auto_approve_threshold %v outside [0, 1]", c.AutoApproveThreshold)
	}
	for severity, weight := range c.SeverityWeights {
		if !severity.Valid() {
			return fmt.Errorf("severity_weights: unknown severity %q", severity)
		}
		if weight < 0 {
			return fmt.Errorf("severity_weights[%s] = %v, must be non-negative", severity, weight)
		}
	}
	return nil
}

// ReviewDecision is the routing outcome for one citation. Violations keep
// the engine's ordering, severity first then rule id.
type ReviewDecision struct {
	CitationID     uuid.UUID         `json:"citation_id"`
	Recommendation Recommendation    `json:"recommendation"`
	Confidence     float64           `json:"confidence"`
	Violations     []rules.Violation `json:"violations,omitempty"`
}

// String renders a one-line summary.
func (d ReviewDecision) String() string {
	return fmt.Sprintf("%s (confidence %.2f, %d violations)",
		d.Recommendation, d.Confidence, len(d.Violations))
}

// Router applies a RoutingConfig to citations.
type Router struct {
	cfg RoutingConfig
}

// NewRouter builds a router over the config.
func NewRouter(cfg RoutingConfig) *Router {
	return &Router{cfg: cfg}
}

// Route computes the recommendation for one citation. The adjusted
// confidence starts from the classifier's score and subtracts the
// severity weight of every violation; approve requires the adjusted
// confidence to reach the threshold AND the violation set to be empty.
// An unknown citation is never approved.
func (r *Router) Route(cit *citation.Citation, violations []rules.Violation) ReviewDecision {
	adjusted := cit.Confidence
	for _, v := range violations {
		adjusted -= r.cfg.SeverityWeights[v.Severity]
	}
	if adjusted < 0 {
		adjusted = 0
	}

	recommendation := FlagForReview
	if cit.Type != citation.TypeUnknown &&
		len(violations) == 0 &&
		adjusted >= r.cfg.AutoApproveThreshold {
		recommendation = Approve
	}

	return ReviewDecision{
		CitationID:     cit.ID,
		Recommendation: recommendation,
		Confidence:     adjusted,
		Violations:     violations,
	}
}
