package api

import (
	"context"
	"errors"
	"net/http"

	"whatsapp-messenger/internal/whatsapp"
	"whatsapp-messenger/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Session is the part of the browser client the status routes use.
type Session interface {
	Open(ctx context.Context) error
	Status(ctx context.Context) whatsapp.Status
	QRImage(ctx context.Context) ([]byte, error)
}

type WhatsAppHandler struct {
	Session Session
}

func NewWhatsAppHandler(session Session) *WhatsAppHandler {
	return &WhatsAppHandler{Session: session}
}

// GetStatus reports the login state, starting the browser on first use.
func (h *WhatsAppHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.Session.Status(c.Request.Context()))
}

func (h *WhatsAppHandler) Init(c *gin.Context) {
	if err := h.Session.Open(c.Request.Context()); err != nil {
		logrus.WithError(err).Error("Failed to initialize WhatsApp session")
		c.JSON(http.StatusOK, models.APIResponse{Success: false, Message: "Failed to initialize", Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{Success: true, Message: "WhatsApp driver initialized"})
}

// GetQRCode serves the pending login QR code as a PNG.
func (h *WhatsAppHandler) GetQRCode(c *gin.Context) {
	png, err := h.Session.QRImage(c.Request.Context())
	if errors.Is(err, whatsapp.ErrNoQRCode) {
		respondError(c, http.StatusNotFound, "No QR code available", err)
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to read QR code", err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}
