package detect

import (
	"context"
	"regexp"
	"strings"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/models"
)

// EngineState is the OCR engine's readiness. Idle means the engine has
// not been asked for anything yet and will load on first use; an engine
// whose initialization failed stays Unavailable for the rest of the
// process. The other strategies and manual entry remain usable either
// way.
type EngineState int

const (
	EngineUnavailable EngineState = iota
	EngineIdle
	EngineLoading
	EngineReady
)

func (s EngineState) String() string {
	switch s {
	case EngineIdle:
		return "idle"
	case EngineLoading:
		return "loading"
	case EngineReady:
		return "ready"
	default:
		return "unavailable"
	}
}

// ProgressFunc observes the multi-stage OCR pipeline so the session is
// never silently frozen while recognition runs.
type ProgressFunc func(stage string, percent int)

// Engine is an injected text-recognition capability.
type Engine interface {
	State() EngineState
	Recognize(ctx context.Context, image []byte, progress ProgressFunc) (string, error)
}

// OCRRequest is one user-triggered screenshot to recognize.
type OCRRequest struct {
	Image    []byte
	Progress ProgressFunc
}

// OCRStrategy runs recognition over user-submitted screenshots of the
// iframe region. It is never automatic: recognition costs seconds, so
// it only fires when the user asks for it.
type OCRStrategy struct {
	engine   Engine
	requests <-chan OCRRequest
}

func NewOCR(engine Engine, requests <-chan OCRRequest) *OCRStrategy {
	return &OCRStrategy{engine: engine, requests: requests}
}

func (s *OCRStrategy) Source() models.DetectionSource {
	return models.SourceOCR
}

func (s *OCRStrategy) Run(ctx context.Context, emit EmitFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case req, ok := <-s.requests:
			if !ok {
				return
			}
			text, err := s.engine.Recognize(ctx, req.Image, req.Progress)
			if err != nil {
				// Engine load failure or empty read: no candidate this
				// attempt, never fatal.
				continue
			}
			if raw, conf, found := ParseScoreText(text); found {
				emit(Candidate{Raw: raw, Source: models.SourceOCR, Confidence: conf})
			}
		}
	}
}

// confidentScorePattern matches explicit phrasing such as
// "Your score was 92%" or "Score: 92%".
var confidentScorePattern = regexp.MustCompile(`(?i)score\s*(?:was|is)?\s*[:\-]?\s*(\d{1,3})\s*%`)

// ParseScoreText searches OCR output for a score. Explicit "score was
// NN%" phrasing is a confident match; a bare percentage near the word
// "score" is low confidence and must be confirmed by the user before it
// can submit.
func ParseScoreText(text string) (string, Confidence, bool) {
	if m := confidentScorePattern.FindStringSubmatch(text); m != nil {
		return m[1] + "%", ConfidenceHigh, true
	}

	// Case folding can change byte lengths, so the window search slices
	// the folded text too; digits and '%' are unaffected by folding.
	lower := strings.ToLower(text)
	idx := strings.Index(lower, "score")
	for idx >= 0 {
		start := idx - 40
		if start < 0 {
			start = 0
		}
		end := idx + 45
		if end > len(lower) {
			end = len(lower)
		}
		if raw, ok := FindPercent(lower[start:end]); ok {
			return raw, ConfidenceLow, true
		}
		next := strings.Index(lower[idx+5:], "score")
		if next < 0 {
			break
		}
		idx += 5 + next
	}
	return "", ConfidenceHigh, false
}
