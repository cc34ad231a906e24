package main

import (
	"github.com/makerplan/backend/internal/config"
	"github.com/makerplan/backend/internal/handlers"
	"github.com/makerplan/backend/internal/models"
	"github.com/makerplan/backend/internal/services"
	"github.com/makerplan/backend/internal/utils"
	"github.com/makerplan/backend/pkg/logger"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	cfg             *config.Config
	events          *services.EventPublisher
	eventQueue      services.EventQueue
	worker          *services.Worker
	scheduler       *services.SchedulerService
	estimateService *services.EstimateService
	authHandler     *handlers.AuthHandler
}

// bootstrap initializes all application dependencies: database, services, schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	// Initialize database
	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto migrate database
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}

	// Seed default data
	if err := models.SeedDefaultData(); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	// Initialize activity logger
	services.InitActivityLogger(models.GetDB())

	// Initialize event queue (uses Redis if enabled, otherwise sync mode)
	notificationService := services.NewNotificationService(models.GetDB())
	eventQueue := services.InitEventQueue(cfg)
	if syncQueue, ok := eventQueue.(*services.SyncEventQueue); ok {
		syncQueue.SetProcessor(notificationService.Dispatch)
	}

	// Start async worker if Redis is enabled
	var worker *services.Worker
	if cfg.Redis.Enabled {
		worker = services.InitWorker(&cfg.Redis)
		if worker != nil {
			worker.SetProcessor(notificationService.Dispatch)
			worker.Start()
		}
	}

	events := services.NewEventPublisher(eventQueue)

	// Start the invitation sweep, log cleanup, and digest scheduler
	scheduler := services.NewSchedulerService(models.GetDB(), events)
	scheduler.Start()

	// Create default admin user
	authHandler := handlers.NewAuthHandler(models.GetDB(), cfg)
	if err := authHandler.CreateAdminIfNotExists(); err != nil {
		logger.Warn().Err(err).Msg("Failed to create admin user")
	}

	return &appServices{
		cfg:             cfg,
		events:          events,
		eventQueue:      eventQueue,
		worker:          worker,
		scheduler:       scheduler,
		estimateService: services.NewEstimateService(models.GetDB(), &cfg.Estimator),
		authHandler:     authHandler,
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.scheduler.Stop()
	logger.Info().Msg("Scheduler stopped")

	if s.worker != nil {
		s.worker.Stop()
	}
	if s.eventQueue != nil {
		s.eventQueue.Close()
	}
}
