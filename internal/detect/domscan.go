package detect

import (
	"context"
	"strings"
	"time"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/models"
)

const defaultPollInterval = 2500 * time.Millisecond

// scoreClassFragments is the prioritized list of class-name fragments
// searched before falling back to any text-bearing element.
var scoreClassFragments = []string{"score", "result", "summary"}

// DOMScanStrategy polls the frame snapshot for a percentage. Cross-origin
// denial is the common case for third-party exercises, so every poll
// swallows access errors and waits for the next tick.
type DOMScanStrategy struct {
	frame    Accessor
	interval time.Duration
}

func NewDOMScan(frame Accessor, interval time.Duration) *DOMScanStrategy {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &DOMScanStrategy{frame: frame, interval: interval}
}

func (s *DOMScanStrategy) Source() models.DetectionSource {
	return models.SourceDOMScan
}

func (s *DOMScanStrategy) Run(ctx context.Context, emit EmitFunc) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if raw, ok := s.scan(); ok {
				emit(Candidate{Raw: raw, Source: models.SourceDOMScan, Confidence: ConfidenceHigh})
			}
		}
	}
}

func (s *DOMScanStrategy) scan() (string, bool) {
	snap, err := s.frame.Document()
	if err != nil {
		// AccessDenied / no report yet: skip this poll, keep ticking.
		return "", false
	}

	// First pass: elements whose classes look score-related.
	for _, frag := range scoreClassFragments {
		for _, el := range snap.Elements {
			if !strings.Contains(strings.ToLower(el.Classes), frag) {
				continue
			}
			if raw, ok := FindPercent(el.Text); ok {
				return raw, true
			}
		}
	}

	// Second pass: any text-bearing element.
	for _, el := range snap.Elements {
		if raw, ok := FindPercent(el.Text); ok {
			return raw, true
		}
	}
	return "", false
}
