package detect

import (
	"context"
	"net/url"
	"time"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/models"
)

// urlScoreParams are the query parameters checked on the frame's
// navigable location, in precedence order.
var urlScoreParams = []string{"score", "result", "percentage"}

// URLScanStrategy polls the frame's reported location for a score-bearing
// query parameter. Same cross-origin caveats as the DOM scan: denial is
// swallowed per poll.
type URLScanStrategy struct {
	frame    Accessor
	interval time.Duration
}

func NewURLScan(frame Accessor, interval time.Duration) *URLScanStrategy {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &URLScanStrategy{frame: frame, interval: interval}
}

func (s *URLScanStrategy) Source() models.DetectionSource {
	return models.SourceURLScan
}

func (s *URLScanStrategy) Run(ctx context.Context, emit EmitFunc) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if raw, ok := s.scan(); ok {
				emit(Candidate{Raw: raw, Source: models.SourceURLScan, Confidence: ConfidenceHigh})
			}
		}
	}
}

func (s *URLScanStrategy) scan() (string, bool) {
	loc, err := s.frame.Location()
	if err != nil {
		return "", false
	}
	u, err := url.Parse(loc)
	if err != nil {
		return "", false
	}
	query := u.Query()
	for _, param := range urlScoreParams {
		if v := query.Get(param); v != "" {
			return v, true
		}
	}
	return "", false
}
