package session

import (
	"time"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/models"
)

// JournalEntry is the session's state carried to the attempt journal.
type JournalEntry struct {
	SessionID string
	Email     string
	ModelID   int
	State     State
	RawScore  string
	Score     *int
	Source    models.DetectionSource
	Submitted bool
	StartedAt time.Time
	Tried     []string
}

// Journal receives session lifecycle records for local persistence.
// Implementations must tolerate being called concurrently and absorb
// their own storage errors; journaling never blocks or fails a session.
type Journal interface {
	StateChanged(entry JournalEntry)
	CandidateSeen(sessionID string, source models.DetectionSource, raw string, accepted bool, reason string)
}
