package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"whatsapp-messenger/internal/broadcast"
	"whatsapp-messenger/internal/repositories"
	"whatsapp-messenger/pkg/models"

	"github.com/gin-gonic/gin"
)

const maxLogsListed = 500

type MessageHandler struct {
	Sender    *broadcast.Sender
	Templates *repositories.TemplateRepository
	Logs      *repositories.MessageLogRepository
}

func NewMessageHandler(sender *broadcast.Sender, templates *repositories.TemplateRepository, logs *repositories.MessageLogRepository) *MessageHandler {
	return &MessageHandler{Sender: sender, Templates: templates, Logs: logs}
}

// SendBulk runs a bulk send and answers once the batch is finished.
func (h *MessageHandler) SendBulk(c *gin.Context) {
	var req models.BulkSendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	text := req.Template
	if text == "" && req.TemplateID != "" {
		tmpl, err := h.Templates.Get(c.Request.Context(), req.TemplateID)
		if errors.Is(err, repositories.ErrTemplateNotFound) {
			respondError(c, http.StatusBadRequest, "Template not found", err)
			return
		}
		if err != nil {
			respondError(c, http.StatusInternalServerError, "Failed to load template", err)
			return
		}
		text = tmpl.Content
	}
	if text == "" {
		respondError(c, http.StatusBadRequest, "Template is required", nil)
		return
	}

	// The batch outlives a dropped client connection; use the cancel route
	// to stop it.
	ctx := context.WithoutCancel(c.Request.Context())
	res, err := h.Sender.SendBulk(ctx, text, req.ContactIDs)
	if errors.Is(err, broadcast.ErrBatchInProgress) {
		respondError(c, http.StatusConflict, "A bulk send is already running", err)
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, fmt.Sprintf("Error sending bulk messages: %v", err), err)
		return
	}

	c.JSON(http.StatusOK, models.BulkSendResponse{
		Success:       true,
		BatchID:       res.BatchID,
		TotalContacts: res.TotalContacts,
		SentCount:     res.SentCount,
		FailedCount:   res.FailedCount,
		DemoMode:      res.DemoMode,
		Cancelled:     res.Cancelled,
		Message:       res.Message,
	})
}

func (h *MessageHandler) CancelBulk(c *gin.Context) {
	if !h.Sender.Cancel() {
		c.JSON(http.StatusOK, models.APIResponse{Success: false, Message: "No bulk send is running"})
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{Success: true, Message: "Bulk send will stop before the next contact"})
}

// GetLogs returns the newest log entries, or one batch in send order when
// batch_id is given.
func (h *MessageHandler) GetLogs(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		logs any
		err  error
	)
	if batchID := c.Query("batch_id"); batchID != "" {
		logs, err = h.Logs.ListByBatch(ctx, batchID)
	} else {
		logs, err = h.Logs.List(ctx, maxLogsListed)
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load message logs", err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h *MessageHandler) DeleteLogs(c *gin.Context) {
	deleted, err := h.Logs.DeleteAll(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to delete message logs", err)
		return
	}
	c.JSON(http.StatusOK, models.DeleteResponse{
		Success:      true,
		Message:      fmt.Sprintf("Deleted %d log entries", deleted),
		DeletedCount: deleted,
	})
}
