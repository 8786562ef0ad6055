package detect

import (
	"context"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/models"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/score"
)

// ManualStrategy accepts free-text entries typed by the user. It is the
// only strategy guaranteed to produce a result, and its candidates are
// allowed to fast-forward the session from any non-terminal state.
type ManualStrategy struct {
	entries <-chan string
}

func NewManual(entries <-chan string) *ManualStrategy {
	return &ManualStrategy{entries: entries}
}

func (s *ManualStrategy) Source() models.DetectionSource {
	return models.SourceManual
}

func (s *ManualStrategy) Run(ctx context.Context, emit EmitFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-s.entries:
			if !ok {
				return
			}
			canonical, _, err := score.NormalizeManual(entry)
			if err != nil {
				// Invalid entries are rejected at the handler with an
				// inline validation message; nothing to emit here.
				continue
			}
			emit(Candidate{Raw: canonical, Source: models.SourceManual, Confidence: ConfidenceHigh})
		}
	}
}
