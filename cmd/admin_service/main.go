package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"

	deliveryApp "github.com/raspisms/golang_services/internal/delivery_retrieval_service/app"
	inboundApp "github.com/raspisms/golang_services/internal/inbound_processor_service/app"
	receivedRepo "github.com/raspisms/golang_services/internal/inbound_processor_service/repository/postgres"
	mediaApp "github.com/raspisms/golang_services/internal/media_service/app"
	mediaRepo "github.com/raspisms/golang_services/internal/media_service/repository/postgres"
	"github.com/raspisms/golang_services/internal/platform/config"
	"github.com/raspisms/golang_services/internal/platform/database"
	"github.com/raspisms/golang_services/internal/platform/logger"
	"github.com/raspisms/golang_services/internal/platform/mailer"
	"github.com/raspisms/golang_services/internal/platform/messagebroker"
	"github.com/raspisms/golang_services/internal/platform/session"
	httptransport "github.com/raspisms/golang_services/internal/public_api_service/transport/http"
	schedulerApp "github.com/raspisms/golang_services/internal/scheduler_service/app"
	scheduledRepo "github.com/raspisms/golang_services/internal/scheduler_service/repository/postgres"
	"github.com/raspisms/golang_services/internal/sms_sending_service/adapters/smsprovider"
	smsApp "github.com/raspisms/golang_services/internal/sms_sending_service/app"
	smsRepo "github.com/raspisms/golang_services/internal/sms_sending_service/repository/postgres"
	userApp "github.com/raspisms/golang_services/internal/user_service/app"
	userRepo "github.com/raspisms/golang_services/internal/user_service/repository/postgres"
)

const serviceName = "admin_service"

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "service", serviceName, "error", err)
		os.Exit(1)
	}

	appLogger := logger.New(cfg.LogLevel).With("service", serviceName)
	appLogger.Info("Admin service starting...", "port", cfg.HTTPPort)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := database.NewDBPool(ctx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Connected to PostgreSQL database")

	var publisher messagebroker.Publisher = messagebroker.NoopPublisher{}
	if cfg.NATSUrl != "" {
		natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, appLogger)
		if err != nil {
			appLogger.Error("Failed to connect to NATS, events are disabled", "error", err)
		} else {
			defer natsClient.Close()
			publisher = natsClient
			appLogger.Info("Connected to NATS", "url", cfg.NATSUrl)

			_, err := natsClient.Subscribe(ctx, "sms.>", serviceName+"_event_log", func(msg *nats.Msg) {
				appLogger.Debug("SMS event", "subject", msg.Subject, "data", string(msg.Data))
			})
			if err != nil {
				appLogger.Error("Failed to subscribe to SMS events", "error", err)
			}
		}
	} else {
		appLogger.Info("NATS_URL is empty, events are disabled")
	}

	testAdapterRoot := ""
	if cfg.TestAdapterRoot != "" {
		root, err := filepath.Abs(cfg.TestAdapterRoot)
		if err == nil {
			err = os.MkdirAll(root, 0o750)
		}
		if err != nil {
			appLogger.Error("Failed to prepare the test adapter root", "path", cfg.TestAdapterRoot, "error", err)
			os.Exit(1)
		}
		testAdapterRoot = root
		appLogger.Info("Test adapter enabled", "root", root)
	}

	registry := smsprovider.DefaultRegistry(smsprovider.Deps{
		Logger:   appLogger,
		Doer:     smsprovider.NewHTTPClient(time.Duration(cfg.AdapterHTTPTimeoutSeconds) * time.Second),
		FileRoot: testAdapterRoot,
	})

	// Repositories
	users := userRepo.NewPgUserRepository(dbPool)
	phones := smsRepo.NewPgPhoneRepository(dbPool, appLogger)
	sended := smsRepo.NewPgSendedRepository(dbPool)
	received := receivedRepo.NewPgReceivedRepository(dbPool, appLogger)
	scheduled := scheduledRepo.NewPgScheduledRepository(dbPool, appLogger)
	medias := mediaRepo.NewPgMediaRepository(dbPool, appLogger)

	// Services
	smtp := mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	}, appLogger)
	authService := userApp.NewAuthService(users, smtp, publisher, userApp.AuthConfig{AppURL: cfg.AppURL}, appLogger)
	if cfg.AdminEmail != "" {
		admin, created, err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			appLogger.Error("Failed to ensure the administrator account", "email", cfg.AdminEmail, "error", err)
			os.Exit(1)
		}
		appLogger.Info("Administrator account ready", "userID", admin.ID, "created", created)
	}
	messagingService := smsApp.NewMessagingService(phones, sended, registry, publisher, appLogger)
	statusProcessor := deliveryApp.NewStatusProcessor(phones, sended, registry, publisher, appLogger)
	receptionProcessor := inboundApp.NewReceptionProcessor(phones, received, registry, publisher, appLogger)
	readPoller := inboundApp.NewReadPoller(phones, receptionProcessor, time.Duration(cfg.ReadPollIntervalSeconds)*time.Second, appLogger)
	scheduledService := schedulerApp.NewScheduledService(scheduled, appLogger)
	mediaService := mediaApp.NewMediaService(medias, cfg.DataDir, appLogger)

	sessions := session.NewManager(cfg.SessionSecret, time.Duration(cfg.SessionTTLHours)*time.Hour, cfg.SecureCookies)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Sessions: sessions,
		Users:    authService,
		Logger:   appLogger,
	}, httptransport.Handlers{
		Auth:      httptransport.NewAuthHandler(authService, sessions, appLogger),
		Users:     httptransport.NewUserHandler(authService, sessions, appLogger),
		Media:     httptransport.NewMediaHandler(mediaService, sessions, appLogger),
		Phones:    httptransport.NewPhoneHandler(messagingService, appLogger),
		Messages:  httptransport.NewMessageHandler(receptionProcessor, appLogger),
		Scheduled: httptransport.NewScheduledHandler(scheduledService, appLogger),
		Callbacks: httptransport.NewCallbackHandler(statusProcessor, receptionProcessor, appLogger),
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLogger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return readPoller.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutdown signal received, shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Admin service stopped with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Admin service shut down gracefully.")
}
