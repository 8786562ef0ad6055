package gate

import (
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/models"
)

// Reason explains a gate decision.
type Reason string

const (
	ReasonOK                 Reason = "ok"
	ReasonBelowPassThreshold Reason = "below_pass_threshold"
)

// Decision is the outcome of evaluating a score against a model's
// passing policy.
type Decision struct {
	Accepted bool   `json:"accepted"`
	Reason   Reason `json:"reason"`
}

// Evaluate applies the minimum-passing-score policy. A rejected score is
// still recordable as an attempt; only pass-gated actions (the feedback
// form) are blocked by it.
func Evaluate(scoreValue int, model models.ExerciseModel) Decision {
	if scoreValue < model.MinScoreToPass {
		return Decision{Accepted: false, Reason: ReasonBelowPassThreshold}
	}
	return Decision{Accepted: true, Reason: ReasonOK}
}

// Complete reports whether the cumulative recorded attempts satisfy the
// model's minimum-attempts policy. attempts comes from the backend
// aggregator; it is never reconstructed from local state. Attempts below
// the pass threshold still count.
func Complete(attempts int, model models.ExerciseModel) bool {
	required := model.MinAttemptsRequired
	if required < 1 {
		required = 1
	}
	return attempts >= required
}
