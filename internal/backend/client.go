package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/models"
)

// Client is the typed HTTP client for the roleplay score backend. The
// backend is authoritative for all persisted records; this service only
// produces candidates and reads rollups.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// ErrModelNotFound means the requested model id is not in the
// backend's model list.
var ErrModelNotFound = errors.New("model not found")

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Body)
}

func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// ScoreSubmission is the primary submission body.
type ScoreSubmission struct {
	Email           string `json:"email"`
	ModelID         int    `json:"model_id"`
	Score           int    `json:"score"`
	RawScore        string `json:"raw_score"`
	DetectionMethod string `json:"detection_method"`
}

// FeedbackSubmission doubles as the structured-feedback body and the
// fallback submission path when submit_score fails.
type FeedbackSubmission struct {
	Email        string `json:"email"`
	Score        int    `json:"score"`
	Strengths    string `json:"strengths"`
	Improvements string `json:"improvements"`
	Model        int    `json:"model"`
}

// SubmitScore persists a score record. Primary submission path.
func (c *Client) SubmitScore(ctx context.Context, sub ScoreSubmission) error {
	return c.send(ctx, http.MethodPost, "/roleplay/scores/submit_score/", sub, nil)
}

// SubmitFeedback posts to the feedback endpoint.
func (c *Client) SubmitFeedback(ctx context.Context, sub FeedbackSubmission) error {
	return c.send(ctx, http.MethodPost, "/roleplay/feedback/", sub, nil)
}

// ListModels fetches every exercise model.
func (c *Client) ListModels(ctx context.Context) ([]models.ExerciseModel, error) {
	var out []models.ExerciseModel
	if err := c.send(ctx, http.MethodGet, "/roleplay/models/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetModel resolves one model by id. The backend exposes no detail
// endpoint, so this filters the list, the same way the viewer does.
func (c *Client) GetModel(ctx context.Context, id int) (*models.ExerciseModel, error) {
	list, err := c.ListModels(ctx)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].ID == id {
			return &list[i], nil
		}
	}
	return nil, fmt.Errorf("model %d: %w", id, ErrModelNotFound)
}

// ListCategories fetches every category.
func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var out []models.Category
	if err := c.send(ctx, http.MethodGet, "/roleplay/categories/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetUserCategories resolves a user by email to their assigned
// categories and models.
func (c *Client) GetUserCategories(ctx context.Context, email string) (*models.UserAccess, error) {
	path := "/roleplay/user-access/get_user_categories/?email=" + url.QueryEscape(email)
	var out models.UserAccess
	if err := c.send(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UserPerformance reads the per-user dashboard rollup.
func (c *Client) UserPerformance(ctx context.Context, email string) (*models.UserPerformance, error) {
	path := "/roleplay/admin-reports/user_performance/?email=" + url.QueryEscape(email)
	var out models.UserPerformance
	if err := c.send(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AllUsersPerformance reads the admin rollup for one location.
func (c *Client) AllUsersPerformance(ctx context.Context, locationID int) (*models.LocationPerformance, error) {
	path := fmt.Sprintf("/roleplay/admin-reports/all_users_performance/?location_id=%d", locationID)
	var out models.LocationPerformance
	if err := c.send(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug("Backend call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
