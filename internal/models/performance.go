package models

import "time"

// Performance rollups are computed by the backend aggregator. This
// service only decodes and displays them; nothing here is recalculated
// locally except the Complete flag, which is annotated from the model's
// attempt policy.

type OverallStats struct {
	AverageScore   float64 `json:"average_score"`
	HighestScore   int     `json:"highest_score"`
	LowestScore    int     `json:"lowest_score"`
	TotalScores    int     `json:"total_scores"`
	TotalFeedbacks int     `json:"total_feedbacks"`
}

type AttemptRecord struct {
	Score        int       `json:"score"`
	RawScore     string    `json:"raw_score"`
	Strengths    string    `json:"strengths,omitempty"`
	Improvements string    `json:"improvements,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

type ModelStats struct {
	ModelID             int             `json:"model_id"`
	ModelName           string          `json:"model_name"`
	AttemptsCount       int             `json:"attempts_count"`
	LatestScore         int             `json:"latest_score"`
	HighestScore        int             `json:"highest_score"`
	MinScoreToPass      int             `json:"min_score_to_pass"`
	MinAttemptsRequired int             `json:"min_attempts_required"`
	LastAttempt         *time.Time      `json:"last_attempt,omitempty"`
	History             []AttemptRecord `json:"history,omitempty"`

	// Complete is annotated locally from AttemptsCount vs the model's
	// minimum attempts policy. Everything else is server-authoritative.
	Complete bool `json:"complete"`
}

type CategoryStats struct {
	CategoryID      int          `json:"category_id"`
	CategoryName    string       `json:"category_name"`
	AttemptsCount   int          `json:"attempts_count"`
	ModelsCount     int          `json:"models_count"`
	ModelsAttempted int          `json:"models_attempted"`
	AverageScore    float64      `json:"average_score"`
	HighestScore    int          `json:"highest_score"`
	LowestScore     int          `json:"lowest_score"`
	LastAttempt     *time.Time   `json:"last_attempt,omitempty"`
	Models          []ModelStats `json:"models"`
}

type RecentRoleplay struct {
	ModelName    string    `json:"model_name"`
	CategoryName string    `json:"category_name"`
	Score        int       `json:"score"`
	RawScore     string    `json:"raw_score,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// UserPerformance is the full per-user dashboard payload.
type UserPerformance struct {
	User           PortalUser      `json:"user"`
	OverallStats   OverallStats    `json:"overall_stats"`
	CategoryStats  []CategoryStats `json:"category_stats"`
	RecentRoleplay *RecentRoleplay `json:"recent_roleplay,omitempty"`
}

// LocationPerformance is the admin rollup for one location.
type LocationPerformance struct {
	LocationID int               `json:"location_id"`
	Users      []UserPerformance `json:"users"`
}
