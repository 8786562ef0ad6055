package detect

import (
	"context"
	"strconv"
	"strings"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/models"
)

// scoreKeys is the fixed precedence list of recognized score-bearing
// keys in inbound messages. Earlier keys win.
var scoreKeys = []string{"score", "result", "percentage", "finalScore", "userScore"}

// scoreEnvelopeType is the explicit envelope the exercise may post when
// it cooperates: {type: "ROLEPLAY_SCORE", score: "85%"}.
const scoreEnvelopeType = "ROLEPLAY_SCORE"

// MessageStrategy consumes cross-document messages relayed from the
// viewer page. It is the only strategy with no permission risk, but it
// depends entirely on the embedded content cooperating: if no matching
// message ever arrives it simply produces nothing.
type MessageStrategy struct {
	inbox <-chan any
}

func NewMessage(inbox <-chan any) *MessageStrategy {
	return &MessageStrategy{inbox: inbox}
}

func (s *MessageStrategy) Source() models.DetectionSource {
	return models.SourceMessage
}

func (s *MessageStrategy) Run(ctx context.Context, emit EmitFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.inbox:
			if !ok {
				return
			}
			if raw, found := ExtractScore(msg); found {
				emit(Candidate{Raw: raw, Source: models.SourceMessage, Confidence: ConfidenceHigh})
			}
		}
	}
}

// ExtractScore inspects a decoded message payload for a score. It tries
// the explicit envelope first, then the structural key scan, then a
// plain-text percentage. The second return value is an explicit
// no-match signal; callers never see a nil sentinel.
func ExtractScore(payload any) (string, bool) {
	switch v := payload.(type) {
	case map[string]any:
		if t, _ := v["type"].(string); t == scoreEnvelopeType {
			if raw, ok := scoreValue(v["score"]); ok {
				return raw, true
			}
		}
		for _, key := range scoreKeys {
			if val, found := findKey(v, key); found {
				if raw, ok := scoreValue(val); ok {
					return raw, true
				}
			}
		}
		return "", false
	case string:
		return FindPercent(v)
	default:
		return "", false
	}
}

// findKey searches m and any nested maps/slices for key, breadth-first,
// so a shallow match beats a deep one.
func findKey(m map[string]any, key string) (any, bool) {
	queue := []map[string]any{m}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if val, ok := cur[key]; ok {
			return val, true
		}
		for _, v := range cur {
			queue = appendNested(queue, v)
		}
	}
	return nil, false
}

func appendNested(queue []map[string]any, v any) []map[string]any {
	switch nested := v.(type) {
	case map[string]any:
		queue = append(queue, nested)
	case []any:
		for _, item := range nested {
			queue = appendNested(queue, item)
		}
	}
	return queue
}

// scoreValue converts a candidate value into a raw score string.
// Strings pass through trimmed; JSON numbers are formatted back to
// digits. Anything else is a no-match.
func scoreValue(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return "", false
		}
		return trimmed, true
	case float64:
		if val != float64(int64(val)) {
			return "", false
		}
		return strconv.FormatInt(int64(val), 10), true
	case int:
		return strconv.Itoa(val), true
	default:
		return "", false
	}
}
