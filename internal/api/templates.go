package api

import (
	"net/http"
	"strings"

	"whatsapp-messenger/internal/broadcast"
	dbmodels "whatsapp-messenger/internal/models"
	"whatsapp-messenger/internal/repositories"
	"whatsapp-messenger/pkg/models"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
)

const maxTemplatesListed = 100

type TemplateHandler struct {
	Templates *repositories.TemplateRepository
}

func NewTemplateHandler(templates *repositories.TemplateRepository) *TemplateHandler {
	return &TemplateHandler{Templates: templates}
}

func (h *TemplateHandler) SaveTemplate(c *gin.Context) {
	var req models.SaveTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		respondError(c, http.StatusBadRequest, "Template content is required", nil)
		return
	}

	placeholders := req.Placeholders
	if placeholders == nil {
		placeholders = broadcast.Placeholders(req.Content)
	}
	tmpl := &dbmodels.MessageTemplate{
		Content:      req.Content,
		Placeholders: datatypes.JSONSlice[string](placeholders),
	}
	if err := h.Templates.Create(c.Request.Context(), tmpl); err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to save template", err)
		return
	}

	c.JSON(http.StatusOK, models.SaveTemplateResponse{
		Success:    true,
		Message:    "Template saved",
		TemplateID: tmpl.ID,
	})
}

func (h *TemplateHandler) GetTemplates(c *gin.Context) {
	templates, err := h.Templates.List(c.Request.Context(), maxTemplatesListed)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load templates", err)
		return
	}
	c.JSON(http.StatusOK, templates)
}
