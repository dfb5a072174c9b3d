package handlers

import (
	"tripdesk/internal/app"
	"tripdesk/internal/http/middleware"

	"github.com/labstack/echo/v4"
)

// SetupRoutes sets up all API routes
func SetupRoutes(api *echo.Group, services *app.Services) {
	// WebSocket handler (shared with the discussion handler for fan-out)
	wsHandler := NewWebSocketHandler(services.AuthService)

	// Auth routes (no authentication required)
	authHandler := NewAuthHandler(services.AuthService)
	auth := api.Group("/auth")
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.RefreshToken)

	// WebSocket endpoint (handles authentication manually via query parameter)
	api.GET("/ws", wsHandler.HandleWebSocket)

	// Protected routes (require authentication)
	protected := api.Group("")
	protected.Use(middleware.JWTAuth(services.AuthService))

	profileAuth := protected.Group("/auth")
	profileAuth.PUT("/change-password", authHandler.ChangePassword)

	// User management
	userHandler := NewUserHandler(services.UserRepo, services.AuthService)
	users := protected.Group("/users")
	users.GET("", userHandler.List)
	users.GET("/me", userHandler.Me)
	users.POST("", userHandler.Create, middleware.TenantAdminOrAbove())
	users.GET("/:id", userHandler.GetByID)

	// Discussions
	discussionHandler := NewDiscussionHandler(services.DiscussionService, wsHandler)
	disc := protected.Group("/discussions", middleware.RequireTenant())
	disc.GET("", discussionHandler.List)
	disc.POST("", discussionHandler.Create)
	disc.GET("/unread-count", discussionHandler.UnreadCount)
	disc.POST("/cleanup-duplicates", discussionHandler.CleanupDuplicates)
	disc.GET("/:id", discussionHandler.Get)
	disc.DELETE("/:id", discussionHandler.Leave)
	disc.PATCH("/:id/pin", discussionHandler.Pin)
	disc.PATCH("/:id/mute", discussionHandler.Mute)
	disc.PATCH("/:id/read", discussionHandler.MarkRead)
	disc.GET("/:id/messages", discussionHandler.ListMessages)
	disc.POST("/:id/messages", discussionHandler.SendMessage)
	disc.DELETE("/:id/messages/:messageId", discussionHandler.DeleteMessage)
	disc.POST("/:id/messages/:messageId/reactions", discussionHandler.ToggleReaction)

	// Tenant administration (system admin only)
	admin := protected.Group("/admin", middleware.SystemAdminOnly())
	tenantHandler := NewTenantHandler(services.TenantRepo)
	admin.GET("/tenants", tenantHandler.List)
	admin.POST("/tenants", tenantHandler.Create)
	admin.GET("/tenants/:id", tenantHandler.GetByID)
	admin.PUT("/tenants/:id", tenantHandler.Update)

	// Programs
	programHandler := NewProgramHandler(services.ProgramRepo)
	programs := protected.Group("/programs", middleware.RequireTenant())
	programs.GET("", programHandler.List)
	programs.POST("", programHandler.Create, middleware.TenantAdminOrAbove())
	programs.GET("/:id", programHandler.GetByID)
	programs.PUT("/:id", programHandler.Update, middleware.TenantAdminOrAbove())

	// Health check
	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}
