package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// AttemptJournal is the local record of one viewer session. The backend
// remains authoritative for scores; this table exists so operators can
// reconstruct what the detection pipeline did for a given attempt.
type AttemptJournal struct {
	ID              int    `gorm:"primaryKey"`
	SessionID       string `gorm:"uniqueIndex;size:36"`
	Email           string
	ModelID         int
	State           string
	RawScore        string
	Score           *int
	Source          string
	StrategiesTried pq.StringArray `gorm:"type:text[]"`
	Submitted       bool
	StartedAt       time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DetectionEvent is one candidate (or rejection) observed during a
// session, in arrival order.
type DetectionEvent struct {
	gorm.Model
	JournalID uint
	Journal   AttemptJournal `gorm:"foreignKey:JournalID"`
	Source    string
	Raw       string
	Accepted  bool
	Reason    string
}
