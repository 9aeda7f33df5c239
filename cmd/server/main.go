package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"whatsapp-messenger/internal/api"
	"whatsapp-messenger/internal/broadcast"
	"whatsapp-messenger/internal/config"
	"whatsapp-messenger/internal/database"
	"whatsapp-messenger/internal/logging"
	"whatsapp-messenger/internal/repositories"
	"whatsapp-messenger/internal/whatsapp"
	"whatsapp-messenger/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.LoadConfig()
	logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if !logrus.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.ReleaseMode)
	}

	db := database.InitGorm(cfg)

	selectors, err := whatsapp.LoadSelectors(cfg.SelectorsFile)
	if err != nil {
		logrus.WithError(err).Warn("Using default WhatsApp Web selectors")
	}
	whatsappClient := whatsapp.NewClient(cfg, selectors)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	hub := ws.NewHub()
	go hub.Run(ctx)

	contactRepo := repositories.NewContactRepository(db)
	templateRepo := repositories.NewTemplateRepository(db)
	logRepo := repositories.NewMessageLogRepository(db)

	sender := broadcast.NewSender(contactRepo, logRepo, whatsappClient, cfg.SendDelay)
	sender.Notifier = hub

	router := api.NewRouter(cfg, api.Handlers{
		Contacts:  api.NewContactHandler(contactRepo, cfg),
		Templates: api.NewTemplateHandler(templateRepo),
		Messages:  api.NewMessageHandler(sender, templateRepo, logRepo),
		WhatsApp:  api.NewWhatsAppHandler(whatsappClient),
		Hub:       hub,
	})

	if cfg.WhatsAppEnabled {
		go func() {
			if err := whatsappClient.Open(ctx); err != nil {
				logrus.WithError(err).Error("Failed to open WhatsApp Web; bulk sends will run in demo mode")
				return
			}
			if _, err := whatsappClient.QRCode(ctx); err != nil {
				logrus.WithError(err).Debug("QR code probe failed")
			}
		}()
	} else {
		logrus.Warn("WhatsApp automation disabled; bulk sends will run in demo mode")
	}

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logrus.Infof("Server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("Failed to run server: %v", err)
		}
	}()

	<-quit
	logrus.Info("Shutting down gracefully...")
	sender.Cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Error shutting down server")
	}

	stop()
	whatsappClient.Close()
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	logrus.Info("Server stopped")
}
