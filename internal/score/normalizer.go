package score

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrInvalidFormat means the candidate contained no parseable digits.
	ErrInvalidFormat = errors.New("invalid score format")
	// ErrOutOfRange means the parsed value fell outside 0-100. Out-of-range
	// values are rejected, never clamped, so a corrupted OCR read like
	// "850%" cannot submit a bogus score.
	ErrOutOfRange = errors.New("score out of range")
)

// Normalize converts a raw candidate ("85", "85%", " 92% ") into a
// canonical integer score in [0, 100].
func Normalize(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSuffix(s, "%")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidFormat
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrInvalidFormat
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, ErrInvalidFormat
	}
	if n < 0 || n > 100 {
		return 0, ErrOutOfRange
	}
	return n, nil
}

// NormalizeManual validates free text typed by the user and returns the
// canonical raw form alongside the numeric score. A bare number gets a
// trailing "%" appended, so "85" is recorded as "85%".
func NormalizeManual(raw string) (string, int, error) {
	s := strings.TrimSpace(raw)
	n, err := Normalize(s)
	if err != nil {
		return "", 0, err
	}
	if !strings.HasSuffix(s, "%") {
		s += "%"
	}
	return s, n, nil
}
