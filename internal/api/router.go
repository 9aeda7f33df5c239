package api

import (
	"net/http"
	"slices"

	"whatsapp-messenger/internal/config"
	"whatsapp-messenger/internal/ws"
	"whatsapp-messenger/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handlers struct {
	Contacts  *ContactHandler
	Templates *TemplateHandler
	Messages  *MessageHandler
	WhatsApp  *WhatsAppHandler
	Hub       *ws.Hub
}

// NewRouter builds the gin engine with logging, recovery, CORS and every
// route under /api.
func NewRouter(cfg *config.Config, h Handlers) *gin.Engine {
	r := gin.New()
	r.Use(gin.LoggerWithWriter(logrus.StandardLogger().Writer()), gin.Recovery())
	r.Use(corsMiddleware(cfg.CORSOrigins))

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/", func(c *gin.Context) {
			c.JSON(http.StatusOK, models.APIResponse{Success: true, Message: "WhatsApp CSV Messenger API"})
		})

		apiGroup.POST("/contacts/upload", h.Contacts.UploadContacts)
		apiGroup.GET("/contacts", h.Contacts.GetContacts)
		apiGroup.DELETE("/contacts", h.Contacts.DeleteContacts)

		apiGroup.POST("/messages/template", h.Templates.SaveTemplate)
		apiGroup.GET("/messages/templates", h.Templates.GetTemplates)

		apiGroup.POST("/messages/send-bulk", h.Messages.SendBulk)
		apiGroup.POST("/messages/send-bulk/cancel", h.Messages.CancelBulk)
		apiGroup.GET("/messages/logs", h.Messages.GetLogs)
		apiGroup.DELETE("/messages/logs", h.Messages.DeleteLogs)

		whatsappGroup := apiGroup.Group("/whatsapp")
		{
			whatsappGroup.GET("/status", h.WhatsApp.GetStatus)
			whatsappGroup.POST("/init", h.WhatsApp.Init)
			whatsappGroup.GET("/qr", h.WhatsApp.GetQRCode)
		}

		if h.Hub != nil {
			apiGroup.GET("/ws", func(c *gin.Context) {
				h.Hub.ServeWs(c.Writer, c.Request)
			})
		}
	}

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowAll := len(origins) == 0 || slices.Contains(origins, "*")
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case allowAll:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(origins, origin):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
