package api

import (
	"whatsapp-messenger/pkg/models"

	"github.com/gin-gonic/gin"
)

func respondError(c *gin.Context, status int, message string, err error) {
	body := models.APIResponse{Success: false, Message: message}
	if err != nil {
		body.Error = err.Error()
	}
	c.JSON(status, body)
}
