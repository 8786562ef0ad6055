package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/models"
)

// Admin CRUD passthroughs for the management dashboard. Shapes mirror
// the backend's category/model resources.

// CategoryInput is the create/update body for a category.
type CategoryInput struct {
	Name      string `json:"name"`
	IsDefault bool   `json:"is_default"`
	UserEmail string `json:"user_email,omitempty"`
}

// ModelInput is the create/update body for an exercise model.
type ModelInput struct {
	Name                string `json:"name"`
	EmbedMarkup         string `json:"iframe_code"`
	CategoryID          int    `json:"category"`
	MinScoreToPass      int    `json:"min_score_to_pass"`
	MinAttemptsRequired int    `json:"min_attempts_required"`
}

func (c *Client) CreateCategory(ctx context.Context, in CategoryInput) (*models.Category, error) {
	var out models.Category
	if err := c.send(ctx, http.MethodPost, "/roleplay/categories/", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCategory(ctx context.Context, id int, in CategoryInput) (*models.Category, error) {
	var out models.Category
	path := fmt.Sprintf("/roleplay/categories/%d/", id)
	if err := c.send(ctx, http.MethodPatch, path, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCategory(ctx context.Context, id int) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("/roleplay/categories/%d/", id), nil, nil)
}

func (c *Client) CreateModel(ctx context.Context, in ModelInput) (*models.ExerciseModel, error) {
	var out models.ExerciseModel
	if err := c.send(ctx, http.MethodPost, "/roleplay/models/", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateModel(ctx context.Context, id int, in ModelInput) (*models.ExerciseModel, error) {
	var out models.ExerciseModel
	path := fmt.Sprintf("/roleplay/models/%d/", id)
	if err := c.send(ctx, http.MethodPatch, path, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteModel(ctx context.Context, id int) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("/roleplay/models/%d/", id), nil, nil)
}
