package repository

import (
	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/database"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/models"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/session"
)

// GormJournal persists session transitions and detection events to the
// local attempt journal. All failures are logged and swallowed: the
// journal is an operator aid, never a reason to fail an attempt.
type GormJournal struct {
	log *zap.Logger
}

func NewJournal(log *zap.Logger) *GormJournal {
	return &GormJournal{log: log}
}

// StateChanged upserts the session's journal row.
func (j *GormJournal) StateChanged(e session.JournalEntry) {
	if database.DB == nil {
		return
	}

	row := models.AttemptJournal{
		SessionID:       e.SessionID,
		Email:           e.Email,
		ModelID:         e.ModelID,
		State:           string(e.State),
		RawScore:        e.RawScore,
		Score:           e.Score,
		Source:          string(e.Source),
		StrategiesTried: e.Tried,
		Submitted:       e.Submitted,
		StartedAt:       e.StartedAt,
	}

	err := database.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"state", "raw_score", "score", "source", "strategies_tried", "submitted", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		j.log.Warn("Failed to journal session state",
			zap.String("session", e.SessionID),
			zap.String("state", string(e.State)),
			zap.Error(err),
		)
	}
}

// CandidateSeen appends one detection event to the session's journal.
func (j *GormJournal) CandidateSeen(sessionID string, source models.DetectionSource, raw string, accepted bool, reason string) {
	if database.DB == nil {
		return
	}

	var journal models.AttemptJournal
	if err := database.DB.First(&journal, "session_id = ?", sessionID).Error; err != nil {
		j.log.Debug("No journal row for detection event", zap.String("session", sessionID), zap.Error(err))
		return
	}

	event := models.DetectionEvent{
		JournalID: uint(journal.ID),
		Source:    string(source),
		Raw:       raw,
		Accepted:  accepted,
		Reason:    reason,
	}
	if err := database.DB.Create(&event).Error; err != nil {
		j.log.Warn("Failed to journal detection event",
			zap.String("session", sessionID),
			zap.Error(err),
		)
	}
}

// SessionHistory returns the journal row and its detection events for
// one session, newest events last.
func SessionHistory(sessionID string) (*models.AttemptJournal, []models.DetectionEvent, error) {
	var journal models.AttemptJournal
	if err := database.DB.First(&journal, "session_id = ?", sessionID).Error; err != nil {
		return nil, nil, err
	}

	var events []models.DetectionEvent
	if err := database.DB.Where("journal_id = ?", journal.ID).Order("created_at ASC").Find(&events).Error; err != nil {
		return nil, nil, err
	}
	return &journal, events, nil
}
