package gate

import (
	"testing"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/models"
)

func TestEvaluate(t *testing.T) {
	model := models.ExerciseModel{MinScoreToPass: 70}

	tests := []struct {
		score      int
		accepted   bool
		wantReason Reason
	}{
		{92, true, ReasonOK},
		{70, true, ReasonOK},
		{69, false, ReasonBelowPassThreshold},
		{65, false, ReasonBelowPassThreshold},
		{0, false, ReasonBelowPassThreshold},
	}

	for _, tt := range tests {
		d := Evaluate(tt.score, model)
		if d.Accepted != tt.accepted || d.Reason != tt.wantReason {
			t.Errorf("Evaluate(%d) = %+v; want accepted=%v reason=%s", tt.score, d, tt.accepted, tt.wantReason)
		}
	}
}

func TestComplete(t *testing.T) {
	model := models.ExerciseModel{MinScoreToPass: 70, MinAttemptsRequired: 3}

	if Complete(2, model) {
		t.Error("Complete(2) with min_attempts_required=3 should be incomplete")
	}
	if !Complete(3, model) {
		t.Error("Complete(3) with min_attempts_required=3 should be complete")
	}
	if !Complete(5, model) {
		t.Error("Complete(5) with min_attempts_required=3 should be complete")
	}

	// A zero-valued policy still requires at least one attempt.
	loose := models.ExerciseModel{}
	if Complete(0, loose) {
		t.Error("Complete(0) should be incomplete even without an explicit policy")
	}
	if !Complete(1, loose) {
		t.Error("Complete(1) should satisfy the implicit single-attempt policy")
	}
}
