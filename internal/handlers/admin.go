package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ronygeorgen/adam-wheeler-roleplay-portal/internal/backend"
)

// AdminHandler proxies the management dashboard: location-wide reports
// and category/model CRUD. The backend stays authoritative; nothing is
// cached or rewritten here.
type AdminHandler struct {
	*PortalHandler
}

func NewAdminHandler(log *zap.Logger, client *backend.Client) *AdminHandler {
	return &AdminHandler{PortalHandler: NewPortalHandler(log, client)}
}

// Reports returns the per-user rollups for one location.
func (h *AdminHandler) Reports(c *gin.Context) {
	locationID, err := strconv.Atoi(c.Query("location_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "location_id query parameter is required"})
		return
	}

	perf, err := h.client.AllUsersPerformance(c.Request.Context(), locationID)
	if err != nil {
		h.relayError(c, err, "Failed to load location reports")
		return
	}
	c.JSON(http.StatusOK, perf)
}

func (h *AdminHandler) ListCategories(c *gin.Context) {
	cats, err := h.client.ListCategories(c.Request.Context())
	if err != nil {
		h.relayError(c, err, "Failed to list categories")
		return
	}
	c.JSON(http.StatusOK, cats)
}

func (h *AdminHandler) CreateCategory(c *gin.Context) {
	var in backend.CategoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category body"})
		return
	}
	out, err := h.client.CreateCategory(c.Request.Context(), in)
	if err != nil {
		h.relayError(c, err, "Failed to create category")
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *AdminHandler) UpdateCategory(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category id"})
		return
	}
	var in backend.CategoryInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category body"})
		return
	}
	out, err := h.client.UpdateCategory(c.Request.Context(), id, in)
	if err != nil {
		h.relayError(c, err, "Failed to update category")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) DeleteCategory(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid category id"})
		return
	}
	if err := h.client.DeleteCategory(c.Request.Context(), id); err != nil {
		h.relayError(c, err, "Failed to delete category")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *AdminHandler) ListModels(c *gin.Context) {
	list, err := h.client.ListModels(c.Request.Context())
	if err != nil {
		h.relayError(c, err, "Failed to list models")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *AdminHandler) CreateModel(c *gin.Context) {
	var in backend.ModelInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid model body"})
		return
	}
	out, err := h.client.CreateModel(c.Request.Context(), in)
	if err != nil {
		h.relayError(c, err, "Failed to create model")
		return
	}
	c.JSON(http.StatusCreated, out)
}

func (h *AdminHandler) UpdateModel(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid model id"})
		return
	}
	var in backend.ModelInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid model body"})
		return
	}
	out, err := h.client.UpdateModel(c.Request.Context(), id, in)
	if err != nil {
		h.relayError(c, err, "Failed to update model")
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *AdminHandler) DeleteModel(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid model id"})
		return
	}
	if err := h.client.DeleteModel(c.Request.Context(), id); err != nil {
		h.relayError(c, err, "Failed to delete model")
		return
	}
	c.Status(http.StatusNoContent)
}
