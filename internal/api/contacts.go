package api

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"whatsapp-messenger/internal/config"
	"whatsapp-messenger/internal/importer"
	"whatsapp-messenger/internal/repositories"
	"whatsapp-messenger/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxContactsListed = 1000

type ContactHandler struct {
	Contacts *repositories.ContactRepository
	Config   *config.Config
}

func NewContactHandler(contacts *repositories.ContactRepository, cfg *config.Config) *ContactHandler {
	return &ContactHandler{Contacts: contacts, Config: cfg}
}

// UploadContacts imports a CSV file sent as the multipart field "file".
func (h *ContactHandler) UploadContacts(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "File is required", err)
		return
	}
	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		respondError(c, http.StatusBadRequest, "Only CSV files are supported", nil)
		return
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to read file", err)
		return
	}
	defer file.Close()

	contacts, err := importer.ParseContacts(file, h.Config.DefaultCountryCode)
	if importer.IsValidation(err) {
		respondError(c, http.StatusBadRequest, err.Error(), err)
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Error processing CSV", err)
		return
	}

	// One upload shares a timestamp; Position keeps the row order.
	uploadedAt := time.Now().UTC()
	for i := range contacts {
		contacts[i].CreatedAt = uploadedAt
	}
	if err := h.Contacts.InsertMany(c.Request.Context(), contacts); err != nil {
		respondError(c, http.StatusInternalServerError, "Error storing contacts", err)
		return
	}

	logrus.WithFields(logrus.Fields{"file": header.Filename, "count": len(contacts)}).Info("Contacts uploaded")
	c.JSON(http.StatusOK, models.UploadContactsResponse{
		Success: true,
		Message: fmt.Sprintf("Uploaded %d contacts successfully", len(contacts)),
		Count:   len(contacts),
	})
}

func (h *ContactHandler) GetContacts(c *gin.Context) {
	contacts, err := h.Contacts.List(c.Request.Context(), maxContactsListed)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to load contacts", err)
		return
	}
	c.JSON(http.StatusOK, contacts)
}

func (h *ContactHandler) DeleteContacts(c *gin.Context) {
	deleted, err := h.Contacts.DeleteAll(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Failed to delete contacts", err)
		return
	}
	c.JSON(http.StatusOK, models.DeleteResponse{
		Success:      true,
		Message:      fmt.Sprintf("Deleted %d contacts", deleted),
		DeletedCount: deleted,
	})
}
