package detect

import (
	"context"
	"regexp"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/models"
)

// Confidence says how much a candidate can be trusted. Low-confidence
// candidates (OCR bare-percentage fallback) must be confirmed by the
// user before submission.
type Confidence int

const (
	ConfidenceHigh Confidence = iota
	ConfidenceLow
)

// Candidate is an unvalidated raw score string produced by a strategy.
type Candidate struct {
	Raw        string
	Source     models.DetectionSource
	Confidence Confidence
}

// EmitFunc delivers a candidate to the owning session. Strategies call
// it zero or more times; the session decides whether the candidate
// still matters.
type EmitFunc func(Candidate)

// Strategy is one independent way of extracting a score from the
// embedded exercise. Run blocks until ctx is cancelled, either polling
// on its own ticker or waiting on its event channel. All internal
// failures degrade to "no candidate"; Run never returns an error and
// never panics out to the session.
type Strategy interface {
	Source() models.DetectionSource
	Run(ctx context.Context, emit EmitFunc)
}

var percentPattern = regexp.MustCompile(`(\d{1,3})\s*%`)

// FindPercent returns the first percentage-looking token in s, in the
// canonical "NN%" form.
func FindPercent(s string) (string, bool) {
	m := percentPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	return m[1] + "%", true
}
