package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notification_dispatcher/internal/app"
	"notification_dispatcher/internal/domain/notification"
	"notification_dispatcher/internal/infra/audit"
	"notification_dispatcher/internal/infra/config"
	idb "notification_dispatcher/internal/infra/database"
	"notification_dispatcher/internal/infra/email"
	"notification_dispatcher/internal/infra/httpapi"
	"notification_dispatcher/internal/infra/logger"
	"notification_dispatcher/internal/infra/scheduler"
	"notification_dispatcher/internal/infra/whatsapp"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: could not load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg)
	log := logger.Get()
	log.WithField("environment", cfg.Environment).Info("notification dispatcher starting")

	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("could not connect to database")
	}
	defer db.Close()
	log.Info("database connection established")

	eventRepo := idb.NewPostgresEventRepository(db)
	deliveryRepo := idb.NewPostgresDeliveryRepository(db)
	templateRepo := idb.NewPostgresTemplateRepository(db)
	userRepo := idb.NewPostgresUserRepository(db)

	auditLog := audit.New(log)

	transports := map[notification.Channel]notification.Transport{
		notification.ChannelEmail: email.NewSender(email.Config{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, auditLog, log),
		notification.ChannelWhatsApp: whatsapp.NewSender(whatsapp.Config{
			AccountSID: cfg.WhatsAppAccountSID,
			AuthToken:  cfg.WhatsAppAuthToken,
			From:       cfg.WhatsAppFrom,
			APIBase:    cfg.WhatsAppAPIBase,
			Bypass:     cfg.WhatsAppBypass,
		}, auditLog, log),
	}

	contextService := app.NewContextService(userRepo, auditLog)
	enqueueService := app.NewEnqueueService(eventRepo, auditLog, log)
	dispatchService := app.NewDispatchService(
		eventRepo, deliveryRepo, templateRepo, contextService, transports,
		auditLog, log, cfg.BaseURL, cfg.EventBatchSize, cfg.DeliveryBatchSize,
	)

	dispatchScheduler := scheduler.NewDispatchScheduler(dispatchService, log, cfg.CronSpecDispatch)
	if err := dispatchScheduler.Start(); err != nil {
		log.WithError(err).Fatal("could not start dispatch scheduler")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	httpapi.NewNotificationHandler(enqueueService, dispatchService, contextService, log).Register(e)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("http server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	dispatchScheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.WithError(err).Error("http server shutdown error")
	}
	log.Info("shut down gracefully")
}
