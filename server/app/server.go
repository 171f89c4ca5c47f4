package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tenantdesk/server/ai"
	"tenantdesk/server/api"
	"tenantdesk/server/archive"
	"tenantdesk/server/common/infra/cache"
	"tenantdesk/server/common/log"
	"tenantdesk/server/mail"
	"tenantdesk/server/notify"
	"tenantdesk/server/realtime"
	"tenantdesk/server/repository"
	"tenantdesk/server/service"
	"tenantdesk/server/sms"
)

type Server struct {
	HTTPServer *http.Server

	store  service.Store
	alerts *notify.AlertPublisher
}

func NewServer(cfg Config) (*Server, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	store, ping, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	aiClient := ai.NewClient(cfg.OpenAIKey, cfg.OpenAIModel)
	if !aiClient.Enabled() {
		log.Infof("no AI credentials found, classification running on keyword fallback")
	}
	classifier := ai.NewClassifier(aiClient, cfg.AITimeout, cfg.EmergencyKeywords)
	responder := ai.NewResponder(aiClient, cfg.AITimeout)
	transcriber := ai.NewTranscriber(aiClient, cfg.AITimeout)

	smsClient := sms.NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber, cfg.DefaultCountryCode)
	mailClient := mail.NewSendGrid(cfg.SendGridAPIKey, cfg.SendGridFromEmail)

	hub := realtime.NewHub()
	directory := service.NewTenantDirectory(store)

	intake := service.NewIntakeService(store, directory, classifier, responder, smsClient, mailClient).
		WithEvents(hub)
	messages := service.NewMessageService(store, smsClient).
		WithEvents(hub)

	if cfg.RedisAddr != "" {
		redisClient := cache.NewClient(cfg.RedisAddr)
		if err := cache.Ping(ctx, redisClient); err != nil {
			log.Warnf("redis unreachable at %s, running without cache: %v", cfg.RedisAddr, err)
		} else {
			dashboard := cache.NewDashboardCache(redisClient, cfg.StatsCacheTTL)
			intake.WithCache(dashboard)
			messages.WithCache(dashboard)
		}
	}

	var alerts *notify.AlertPublisher
	if cfg.AlertsEnabled {
		alerts, err = notify.NewAlertPublisher(cfg.LavinMQURL)
		if err != nil {
			log.Warnf("alert publisher unavailable, emergencies will not be paged: %v", err)
		} else {
			intake.WithAlerts(alerts)
		}
	}

	webhooks := api.NewWebhookHandler(intake, transcriber, cfg.TwilioAuthToken, cfg.DefaultCountryCode)
	if cfg.ValidateWebhooks && cfg.PublicBaseURL != "" {
		webhooks.WithSignatureValidation(cfg.PublicBaseURL)
	}
	if cfg.MinIOEndpoint != "" {
		recordings, err := archive.NewRecordingArchive(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOBucket, cfg.MinIOUseSSL)
		if err != nil {
			log.Warnf("recording archive unavailable: %v", err)
		} else if err := recordings.EnsureBucket(ctx); err != nil {
			log.Warnf("recording bucket unavailable: %v", err)
		} else {
			webhooks.WithArchive(recordings)
		}
	}

	handler := api.NewHandler(messages, intake, webhooks).WithHub(hub)
	if ping != nil {
		handler.WithReadiness(func(c *gin.Context) error {
			return ping(c.Request.Context())
		})
	}

	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	handler.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  20 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{HTTPServer: httpServer, store: store, alerts: alerts}, nil
}

func buildStore(ctx context.Context, cfg Config) (service.Store, func(context.Context) error, error) {
	switch cfg.StoreBackend {
	case "postgres":
		store, err := repository.NewPostgresStore(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return store, store.Ping, nil
	case "memory":
		store := repository.NewMemoryStore()
		if cfg.SeedDemoData {
			if err := repository.SeedDemoData(ctx, store); err != nil {
				return nil, nil, fmt.Errorf("seed demo data: %w", err)
			}
			log.Infof("seeded demo data into memory store")
		}
		return store, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.HTTPServer.Shutdown(ctx)
	if s.alerts != nil {
		s.alerts.Close()
	}
	if cerr := s.store.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
