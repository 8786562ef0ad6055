package handlers

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/backend"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/database"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/detect"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/repository"
	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/session"
)

const maxScreenshotBytes = 8 << 20

// ViewerHandler serves the exercise viewer: session lifecycle plus the
// event feeds (messages, frame reports, screenshots, manual entry) that
// drive score detection.
type ViewerHandler struct {
	log     *zap.Logger
	manager *session.Manager
	frames  *detect.Store
}

func NewViewerHandler(log *zap.Logger, manager *session.Manager, frames *detect.Store) *ViewerHandler {
	return &ViewerHandler{log: log, manager: manager, frames: frames}
}

type startSessionRequest struct {
	Email   string `json:"email" binding:"required,email"`
	ModelID int    `json:"model_id" binding:"required"`
}

// Start opens a monitoring session for one model and returns the embed
// markup the viewer should render. The markup is third-party HTML and
// is passed through untouched.
func (h *ViewerHandler) Start(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and model_id are required"})
		return
	}

	s, err := h.manager.Start(c.Request.Context(), req.Email, req.ModelID)
	if err != nil {
		if errors.Is(err, backend.ErrModelNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "model not found"})
			return
		}
		h.log.Error("Failed to start session",
			zap.String("email", req.Email),
			zap.Int("model", req.ModelID),
			zap.Error(err),
		)
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not resolve model"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session":     s.Snapshot(),
		"iframe_code": s.Model.EmbedMarkup,
	})
}

// Get returns the session's current snapshot. The viewer polls this to
// render state, pending confirmations and OCR progress.
func (h *ViewerHandler) Get(c *gin.Context) {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}

// Message relays one cross-document message from the embedded exercise.
// Always 202: delivery is best-effort and the payload shape is owned by
// the third party.
func (h *ViewerHandler) Message(c *gin.Context) {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	var payload any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message body"})
		return
	}

	s.PostMessage(payload)
	c.Status(http.StatusAccepted)
}

type frameReport struct {
	Accessible bool             `json:"accessible"`
	URL        string           `json:"url"`
	Elements   []detect.Element `json:"elements"`
}

// Frame stores the viewer's latest read of the iframe document. An
// inaccessible report is normal for cross-origin exercises and simply
// parks the scanning strategies.
func (h *ViewerHandler) Frame(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.manager.Get(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	var report frameReport
	if err := c.ShouldBindJSON(&report); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid frame report"})
		return
	}

	if !report.Accessible {
		h.frames.ReportDenied(id)
	} else {
		h.frames.Report(id, &detect.Snapshot{URL: report.URL, Elements: report.Elements})
	}
	c.Status(http.StatusAccepted)
}

type screenshotRequest struct {
	Image string `json:"image" binding:"required"`
}

// Screenshot queues a captured image for OCR. Accepts either a
// multipart "image" file or a JSON body with a base64 payload.
func (h *ViewerHandler) Screenshot(c *gin.Context) {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	image, err := readScreenshot(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid screenshot payload"})
		return
	}

	switch err := s.Screenshot(image); {
	case errors.Is(err, session.ErrOCRUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "screenshot recognition is not available"})
	case errors.Is(err, session.ErrSessionRecorded):
		c.JSON(http.StatusConflict, gin.H{"error": "score already recorded"})
	case errors.Is(err, session.ErrSessionBusy):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "recognition already in progress, retry shortly"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "screenshot could not be queued"})
	default:
		c.Status(http.StatusAccepted)
	}
}

func readScreenshot(c *gin.Context) ([]byte, error) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, _, err := c.Request.FormFile("image")
		if err != nil {
			return nil, err
		}
		defer file.Close()
		return io.ReadAll(io.LimitReader(file, maxScreenshotBytes))
	}

	var req screenshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, err
	}
	// Data-URL prefixes from canvas.toDataURL are tolerated.
	payload := req.Image
	if i := strings.IndexByte(payload, ','); i >= 0 && strings.HasPrefix(payload, "data:") {
		payload = payload[i+1:]
	}
	return base64.StdEncoding.DecodeString(payload)
}

// Confirm promotes a pending low-confidence candidate to a submission.
func (h *ViewerHandler) Confirm(c *gin.Context) {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	switch err := s.Confirm(); {
	case errors.Is(err, session.ErrSessionRecorded):
		c.JSON(http.StatusConflict, gin.H{"error": "score already recorded"})
	case errors.Is(err, session.ErrNothingToConfirm):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no candidate awaiting confirmation"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "confirmation failed"})
	default:
		c.JSON(http.StatusOK, s.Snapshot())
	}
}

type manualEntryRequest struct {
	Score string `json:"score" binding:"required"`
}

// Manual accepts a typed-in score. Validation errors return inline so
// the form can re-prompt without losing state.
func (h *ViewerHandler) Manual(c *gin.Context) {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	var req manualEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "score is required"})
		return
	}

	switch err := s.ManualEntry(req.Score); {
	case errors.Is(err, session.ErrSessionRecorded):
		c.JSON(http.StatusConflict, gin.H{"error": "score already recorded"})
	case errors.Is(err, session.ErrSessionBusy):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "session busy, retry shortly"})
	case err != nil:
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.Status(http.StatusAccepted)
	}
}

// Close cancels the session on viewer unmount.
func (h *ViewerHandler) Close(c *gin.Context) {
	if err := h.manager.Close(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

// Journal returns the locally persisted attempt journal for a session.
// Ops/debug surface; survives the in-memory session itself.
func (h *ViewerHandler) Journal(c *gin.Context) {
	if database.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attempt journal is not configured"})
		return
	}

	journal, events, err := repository.SessionHistory(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no journal for session"})
			return
		}
		h.log.Error("Failed to read attempt journal", zap.String("session", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "journal unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"journal": journal, "events": events})
}
