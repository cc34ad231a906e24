package main

import (
	"github.com/gin-gonic/gin"
	"github.com/makerplan/backend/internal/handlers"
	"github.com/makerplan/backend/internal/middleware"
	"github.com/makerplan/backend/internal/models"
	"github.com/makerplan/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS())

	// Rate limiter for credential endpoints
	authLimiter := middleware.NewRateLimiter(5, 10)

	// Health checks
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "makerplan"})
	})
	healthHandler := handlers.NewHealthHandler()
	r.GET("/health/detail", healthHandler.CheckHealth)

	// API routes
	api := r.Group("/api")
	{
		// Auth routes (public, rate limited)
		auth := api.Group("/auth", authLimiter.Middleware())
		{
			auth.POST("/login", svc.authHandler.Login)
			auth.POST("/refresh", svc.authHandler.Refresh)
			auth.GET("/config", svc.authHandler.GetAuthConfig)
		}

		// Protected routes
		protected := api.Group("")
		protected.Use(middleware.AuthRequired(), middleware.AuditLog())
		{
			// Auth
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)
			protected.POST("/auth/change-password", svc.authHandler.ChangePassword)

			// Projects
			projectHandler := handlers.NewProjectHandler(models.GetDB(), svc.events)
			protected.GET("/projects", projectHandler.List)
			protected.GET("/projects/:id", projectHandler.GetByID)
			protected.POST("/projects", projectHandler.Create)
			protected.PUT("/projects/:id", projectHandler.Update)
			protected.DELETE("/projects/:id", projectHandler.Delete)

			// Project members and invitations
			memberHandler := handlers.NewMemberHandler(models.GetDB(), svc.events)
			protected.GET("/projects/:id/members", memberHandler.List)
			protected.POST("/projects/:id/members", memberHandler.Invite)
			protected.PUT("/projects/:id/members/:memberId", memberHandler.UpdateRole)
			protected.DELETE("/projects/:id/members/:memberId", memberHandler.Remove)
			protected.GET("/invitations", memberHandler.MyInvitations)
			protected.POST("/invitations/:token/accept", memberHandler.Accept)
			protected.POST("/invitations/:token/decline", memberHandler.Decline)

			// Tasks
			taskHandler := handlers.NewTaskHandler(models.GetDB(), svc.events)
			protected.GET("/tasks", taskHandler.List)
			protected.GET("/tasks/:id", taskHandler.GetByID)
			protected.POST("/tasks", taskHandler.Create)
			protected.PUT("/tasks/:id", taskHandler.Update)
			protected.POST("/tasks/:id/complete", taskHandler.Complete)
			protected.POST("/tasks/:id/approve", taskHandler.Approve)
			protected.DELETE("/tasks/:id", taskHandler.Delete)

			// Inventory items
			itemHandler := handlers.NewItemHandler(models.GetDB(), svc.estimateService)
			protected.GET("/items", itemHandler.List)
			protected.GET("/items/:id", itemHandler.GetByID)
			protected.POST("/items", itemHandler.Create)
			protected.PUT("/items/:id", itemHandler.Update)
			protected.POST("/items/:id/estimate", itemHandler.EstimatePrice)
			protected.DELETE("/items/:id", itemHandler.Delete)

			// Badges and quests (read for all users)
			badgeHandler := handlers.NewBadgeHandler(models.GetDB(), svc.events)
			protected.GET("/badges", badgeHandler.List)
			protected.GET("/badges/mine", badgeHandler.MyBadges)
			protected.GET("/badges/:id", badgeHandler.GetByID)
			protected.GET("/quests", badgeHandler.ListQuests)

			// Profiles
			profileHandler := handlers.NewProfileHandler(models.GetDB())
			protected.GET("/profile", profileHandler.Me)
			protected.PUT("/profile", profileHandler.Update)
			protected.GET("/profiles/:userId", profileHandler.GetPublic)

			// Dashboard
			dashboardHandler := handlers.NewDashboardHandler(models.GetDB())
			protected.GET("/dashboard/stats", dashboardHandler.Stats)

			// Calendar
			calendarHandler := handlers.NewCalendarHandler(models.GetDB())
			protected.GET("/calendar/deadlines", calendarHandler.UpcomingDeadlines)
			protected.GET("/calendar/workday", calendarHandler.IsWorkday)
			protected.GET("/calendar/countries", calendarHandler.Countries)
		}

		// Admin only routes
		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(), middleware.AuditLog())
		{
			// Users
			userHandler := handlers.NewUserHandler(models.GetDB())
			admin.GET("/users", userHandler.List)
			admin.PUT("/users/:id", userHandler.Update)
			admin.DELETE("/users/:id", userHandler.Delete)

			// Badges and quests (write operations)
			badgeHandler := handlers.NewBadgeHandler(models.GetDB(), svc.events)
			admin.POST("/badges", badgeHandler.Create)
			admin.PUT("/badges/:id", badgeHandler.Update)
			admin.DELETE("/badges/:id", badgeHandler.Delete)
			admin.POST("/badges/award", badgeHandler.Award)
			admin.POST("/quests", badgeHandler.CreateQuest)
			admin.DELETE("/quests/:id", badgeHandler.DeleteQuest)

			// Notifier bots
			notifierBotHandler := handlers.NewNotifierBotHandler(models.GetDB())
			admin.GET("/notifier-bots", notifierBotHandler.List)
			admin.POST("/notifier-bots", notifierBotHandler.Create)
			admin.PUT("/notifier-bots/:id", notifierBotHandler.Update)
			admin.DELETE("/notifier-bots/:id", notifierBotHandler.Delete)
			admin.POST("/notifier-bots/:id/test", notifierBotHandler.Test)

			// Estimator configs
			estimatorConfigHandler := handlers.NewEstimatorConfigHandler(models.GetDB())
			admin.GET("/estimator-configs", estimatorConfigHandler.List)
			admin.GET("/estimator-configs/:id", estimatorConfigHandler.GetByID)
			admin.POST("/estimator-configs", estimatorConfigHandler.Create)
			admin.PUT("/estimator-configs/:id", estimatorConfigHandler.Update)
			admin.DELETE("/estimator-configs/:id", estimatorConfigHandler.Delete)

			// Activity logs
			activityLogHandler := handlers.NewActivityLogHandler(models.GetDB())
			admin.GET("/activity-logs", activityLogHandler.List)
			admin.GET("/activity-logs/modules", activityLogHandler.Modules)

			// System config
			systemConfigHandler := handlers.NewSystemConfigHandler(models.GetDB())
			admin.GET("/system-config/ldap", systemConfigHandler.GetLDAPConfig)
			admin.PUT("/system-config/ldap", systemConfigHandler.UpdateLDAPConfig)
			admin.GET("/system-config/groups/:group", systemConfigHandler.GetGroup)
			admin.PUT("/system-config", systemConfigHandler.UpdateValues)
		}
	}
}
