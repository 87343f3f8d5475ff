package main

import (
	"context"
	"time"

	"github.com/taskmate/backend/internal/config"
	"github.com/taskmate/backend/internal/models"
	"github.com/taskmate/backend/internal/services"
	"github.com/taskmate/backend/internal/store"
	"github.com/taskmate/backend/internal/utils"
	"github.com/taskmate/backend/pkg/logger"
	"gorm.io/gorm"
)

// appServices holds all initialized services needed by the application.
type appServices struct {
	cfg         *config.Config
	db          *gorm.DB
	hub         *services.ChatHub
	relay       *services.RedisRelay
	relayCancel context.CancelFunc
	taskQueue   services.TaskQueue
	worker      *services.Worker
	projector   *services.PreviewProjector
	scheduler   *services.Scheduler

	users      *services.UserService
	projects   *services.ProjectService
	membership *services.MembershipService
	chat       *services.ChatService
	systemLogs *services.SystemLogService
	configs    *services.SystemConfigService
}

// bootstrap initializes all application dependencies: database, chat
// delivery, background queue and schedulers.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetJWTSecret(cfg.JWT.Secret)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	db := models.GetDB()
	if err := models.SeedDefaultData(db); err != nil {
		logger.Warn().Err(err).Msg("Failed to seed default data")
	}

	services.InitSystemLogger(db)
	gw := store.New(db)

	svc := &appServices{
		cfg:        cfg,
		db:         db,
		hub:        services.NewChatHub(cfg.Chat.SubscriberBuffer),
		users:      services.NewUserService(gw),
		membership: services.NewMembershipService(gw),
		systemLogs: services.NewSystemLogService(db),
		configs:    services.NewSystemConfigService(db),
	}

	// Cross-instance fan-out is optional; without it each instance only
	// reaches its own subscribers.
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		relay, err := services.NewRedisRelay(ctx, &cfg.Redis, svc.hub)
		cancel()
		if err != nil {
			logger.Warn().Err(err).Msg("Chat relay disabled")
		} else {
			runCtx, runCancel := context.WithCancel(context.Background())
			svc.relay, svc.relayCancel = relay, runCancel
			go relay.Run(runCtx)
		}
	}

	svc.projector = services.NewPreviewProjector(gw, time.Duration(cfg.Chat.PreviewTTLMinutes)*time.Minute)
	svc.projects = services.NewProjectService(gw, svc.projector)
	// Appends reach every instance through the hub (and relay); the queue
	// task only reaches one.
	svc.hub.Observe(svc.projector.HandleEvent)

	// Task queue (uses Redis if enabled, otherwise sync mode)
	svc.taskQueue = services.InitTaskQueue(cfg)
	if syncQueue, ok := svc.taskQueue.(*services.SyncQueue); ok {
		syncQueue.SetProcessor(svc.projector.HandleMessageAppended)
	}
	if svc.taskQueue.IsAsync() {
		svc.worker = services.NewWorker(&cfg.Redis, svc.projector.HandleMessageAppended)
		if svc.worker != nil {
			if err := svc.worker.Start(); err != nil {
				logger.Fatalf("Failed to start worker: %v", err)
			}
		}
	}

	ids, err := services.NewMessageIDGenerator(cfg.Chat.MachineID)
	if err != nil {
		logger.Fatalf("Failed to create message id generator: %v", err)
	}
	svc.chat = services.NewChatService(gw, svc.hub, svc.taskQueue, ids, cfg.Chat.MaxMessageLength)

	svc.scheduler = services.NewScheduler(gw, svc.projector, svc.systemLogs)
	if err := svc.scheduler.Start(cfg.Chat.PreviewRebuildSpec); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}
	go svc.scheduler.RebuildPreviews(context.Background())

	return svc
}

// shutdown gracefully stops all background work.
func (s *appServices) shutdown() {
	s.scheduler.Stop()
	logger.Info().Msg("Scheduler stopped")

	if s.relay != nil {
		s.relayCancel()
		s.relay.Close()
	}
	if s.worker != nil {
		s.worker.Stop()
	}
	if s.taskQueue != nil {
		s.taskQueue.Close()
	}
	if sqlDB, err := s.db.DB(); err == nil {
		sqlDB.Close()
	}
}
