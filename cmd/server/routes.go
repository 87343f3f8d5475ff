package main

import (
	"github.com/gin-gonic/gin"
	"github.com/taskmate/backend/internal/handlers"
	"github.com/taskmate/backend/internal/middleware"
	"github.com/taskmate/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	apiLimiter := middleware.NewRateLimiter(20, 40)
	postLimiter := middleware.NewKeyedRateLimiter(svc.cfg.Chat.PostRPS, svc.cfg.Chat.PostBurst, middleware.ByUser)

	healthHandler := handlers.NewHealthHandler(svc.db, svc.hub, svc.taskQueue)
	r.GET("/health", healthHandler.CheckHealth)

	userHandler := handlers.NewUserHandler(svc.users, svc.projects, svc.projector)
	projectHandler := handlers.NewProjectHandler(svc.projects)
	membershipHandler := handlers.NewMembershipHandler(svc.membership)
	chatHandler := handlers.NewChatHandler(svc.chat, postLimiter)

	api := r.Group("/api", apiLimiter.Middleware())
	{
		// Streaming channels accept ?token= since browsers cannot set headers
		stream := api.Group("", middleware.StreamAuthRequired())
		{
			stream.GET("/projects/:id/events", chatHandler.StreamEvents)
			stream.GET("/projects/:id/ws", chatHandler.WebSocket)
		}

		protected := api.Group("", middleware.AuthRequired(), middleware.AuditLog())
		{
			// Me
			protected.GET("/me", userHandler.GetMe)
			protected.PUT("/me", userHandler.UpdateMe)
			protected.GET("/me/projects", userHandler.MyProjects)
			protected.GET("/me/chats", userHandler.MyChats)
			protected.GET("/me/requests/sent", membershipHandler.Sent)
			protected.GET("/me/requests/incoming", membershipHandler.Incoming)
			protected.GET("/users/:id", userHandler.GetByID)

			// Projects
			protected.GET("/projects", projectHandler.List)
			protected.GET("/projects/:id", projectHandler.GetByID)
			protected.POST("/projects", projectHandler.Create)
			protected.PUT("/projects/:id", projectHandler.Update)
			protected.DELETE("/projects/:id", projectHandler.Delete)

			// Join requests
			protected.POST("/projects/:id/requests", membershipHandler.Submit)
			protected.GET("/projects/:id/requests", membershipHandler.ListForProject)
			protected.PATCH("/requests/:id", membershipHandler.Decide)
			protected.DELETE("/requests/:id", membershipHandler.Withdraw)

			// Chat
			protected.GET("/projects/:id/messages", chatHandler.History)
			protected.POST("/projects/:id/messages", postLimiter.Middleware(), chatHandler.Post)
		}

		admin := protected.Group("/admin", middleware.AdminRequired())
		{
			systemLogHandler := handlers.NewSystemLogHandler(svc.systemLogs)
			admin.GET("/system-logs", systemLogHandler.List)
			admin.GET("/system-logs/modules", systemLogHandler.GetModules)
			admin.GET("/system-logs/retention", systemLogHandler.GetRetention)
			admin.PUT("/system-logs/retention", systemLogHandler.SetRetention)

			systemConfigHandler := handlers.NewSystemConfigHandler(svc.configs)
			admin.GET("/system-configs", systemConfigHandler.List)
			admin.PUT("/system-configs/:key", systemConfigHandler.Update)
		}
	}
}
