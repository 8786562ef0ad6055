package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/backend"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/gate"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/models"
)

// PortalHandler serves the user-facing portal reads (library,
// performance) and the pass-gated feedback submission.
type PortalHandler struct {
	log    *zap.Logger
	client *backend.Client
}

func NewPortalHandler(log *zap.Logger, client *backend.Client) *PortalHandler {
	return &PortalHandler{log: log, client: client}
}

// Library returns the categories and models assigned to a user.
func (h *PortalHandler) Library(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email query parameter is required"})
		return
	}

	access, err := h.client.GetUserCategories(c.Request.Context(), email)
	if err != nil {
		h.relayError(c, err, "Failed to load user library")
		return
	}
	c.JSON(http.StatusOK, access)
}

// Performance returns the user's dashboard rollup with per-model
// completion annotated from each model's attempt policy. The rollup
// itself is server-authoritative and passed through unchanged.
func (h *PortalHandler) Performance(c *gin.Context) {
	email := c.Query("email")
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email query parameter is required"})
		return
	}

	perf, err := h.client.UserPerformance(c.Request.Context(), email)
	if err != nil {
		h.relayError(c, err, "Failed to load user performance")
		return
	}

	annotateCompletion(perf)
	c.JSON(http.StatusOK, perf)
}

func annotateCompletion(perf *models.UserPerformance) {
	for ci := range perf.CategoryStats {
		for mi := range perf.CategoryStats[ci].Models {
			ms := &perf.CategoryStats[ci].Models[mi]
			policy := models.ExerciseModel{MinAttemptsRequired: ms.MinAttemptsRequired}
			ms.Complete = gate.Complete(ms.AttemptsCount, policy)
		}
	}
}

type feedbackRequest struct {
	Email        string `json:"email" binding:"required,email"`
	ModelID      int    `json:"model_id" binding:"required"`
	Score        int    `json:"score"`
	Strengths    string `json:"strengths"`
	Improvements string `json:"improvements"`
}

// Feedback forwards structured feedback to the backend, but only when
// the reported score clears the model's passing threshold. Rejections
// carry the gate decision so the form can explain itself.
func (h *PortalHandler) Feedback(c *gin.Context) {
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email, model_id and score are required"})
		return
	}

	model, err := h.client.GetModel(c.Request.Context(), req.ModelID)
	if err != nil {
		h.relayError(c, err, "Failed to resolve model for feedback")
		return
	}

	decision := gate.Evaluate(req.Score, *model)
	if !decision.Accepted {
		c.JSON(http.StatusForbidden, gin.H{
			"error":    "score is below the passing threshold for this model",
			"decision": decision,
		})
		return
	}

	err = h.client.SubmitFeedback(c.Request.Context(), backend.FeedbackSubmission{
		Email:        req.Email,
		Score:        req.Score,
		Strengths:    req.Strengths,
		Improvements: req.Improvements,
		Model:        req.ModelID,
	})
	if err != nil {
		h.relayError(c, err, "Failed to submit feedback")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"decision": decision})
}

// relayError maps backend failures onto the response: backend status
// codes pass through, transport failures become 502.
func (h *PortalHandler) relayError(c *gin.Context, err error, msg string) {
	h.log.Error(msg, zap.String("path", c.Request.URL.Path), zap.Error(err))

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.StatusCode, gin.H{"error": apiErr.Body})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": "score backend unavailable"})
}
