package routes

import (
	"casedesk/internal/api/handlers"
	"casedesk/internal/api/middleware"
	"casedesk/internal/config"
	"casedesk/internal/models"
	"casedesk/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func SetupRoutes(r *gin.Engine, cfg *config.Config, logger zerolog.Logger) {
	// Initialize services
	authService := services.NewAuthService(cfg)
	recorder := services.NewAuditRecorder(models.DB, logger)
	services.RegisterSnapshotFetchers(recorder, models.DB)
	sessionManager := services.NewSessionManager(models.DB, recorder, cfg.SessionTTL(), logger)
	auditQuery := services.NewAuditQueryService(models.DB, logger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, sessionManager, cfg)
	caseHandler := handlers.NewCaseHandler()
	knowledgeHandler := handlers.NewKnowledgeHandler(recorder)
	userHandler := handlers.NewUserHandler(cfg)
	auditHandler := handlers.NewAuditHandler(auditQuery, recorder)

	// Middleware
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.ErrorHandler())

	// Public routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"message": "CaseDesk API is running",
			})
		})

		// Auth routes (public)
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
		}
	}

	// Protected routes
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(sessionManager))
	protected.Use(middleware.AuditContextMiddleware())
	{
		// Auth routes (protected)
		protected.POST("/auth/logout", authHandler.Logout)
		protected.POST("/auth/logout-all/:id", middleware.RequireRole("admin"), authHandler.LogoutAll)
		protected.GET("/auth/me", authHandler.GetMe)
		protected.GET("/auth/sessions", authHandler.GetSessions)

		// Case routes
		cases := protected.Group("/cases")
		{
			cases.GET("", caseHandler.GetCases)
			cases.GET("/:id", caseHandler.GetCase)
			cases.POST("", middleware.RecordCreate(recorder, "case"), caseHandler.CreateCase)
			cases.PUT("/:id", middleware.RecordUpdate(recorder, "case"), caseHandler.UpdateCase)
			cases.DELETE("/:id", middleware.RecordDelete(recorder, "case"), caseHandler.DeleteCase)
		}

		// Todo routes
		todos := protected.Group("/todos")
		{
			todos.GET("", caseHandler.GetTodos)
			todos.POST("", middleware.RecordCreate(recorder, "todo"), caseHandler.CreateTodo)
			todos.PUT("/:id", middleware.RecordUpdate(recorder, "todo"), caseHandler.UpdateTodo)
			todos.DELETE("/:id", middleware.RecordDelete(recorder, "todo"), caseHandler.DeleteTodo)
		}

		// Note routes
		notes := protected.Group("/notes")
		{
			notes.GET("", knowledgeHandler.GetNotes)
			notes.POST("", middleware.RecordCreate(recorder, "note"), knowledgeHandler.CreateNote)
			notes.PUT("/:id", middleware.RecordUpdate(recorder, "note"), knowledgeHandler.UpdateNote)
			notes.DELETE("/:id", middleware.RecordDelete(recorder, "note"), knowledgeHandler.DeleteNote)
		}

		// Knowledge base routes
		knowledge := protected.Group("/knowledge")
		{
			knowledge.GET("", knowledgeHandler.GetDocs)
			knowledge.GET("/:id", knowledgeHandler.GetDoc)
			knowledge.GET("/:id/download", knowledgeHandler.DownloadDoc)
			knowledge.POST("", middleware.RecordCreate(recorder, "knowledge_doc"), knowledgeHandler.CreateDoc)
			knowledge.PUT("/:id", middleware.RecordUpdate(recorder, "knowledge_doc"), knowledgeHandler.UpdateDoc)
			knowledge.DELETE("/:id", middleware.RecordDelete(recorder, "knowledge_doc"), knowledgeHandler.DeleteDoc)
		}

		// User management routes
		users := protected.Group("/users")
		{
			users.GET("", userHandler.GetUsers)
			users.GET("/:id", userHandler.GetUser)
			users.POST("", middleware.RequireRole("admin"), middleware.RecordCreate(recorder, "user"), userHandler.CreateUser)
			users.PUT("/:id", middleware.RequireRole("admin"), middleware.RecordUpdate(recorder, "user"), userHandler.UpdateUser)
			users.DELETE("/:id", middleware.RequireRole("admin"), middleware.RecordDelete(recorder, "user"), userHandler.DeleteUser)
			users.POST("/:id/password", userHandler.UpdatePassword)
		}

		// Audit trail routes (read-only plus bounded retention cleanup)
		audit := protected.Group("/audit")
		{
			audit.GET("", auditHandler.GetEntries)
			audit.GET("/stats", auditHandler.GetStats)
			audit.GET("/entity/:type/:id", auditHandler.GetEntityHistory)
			audit.GET("/export", auditHandler.Export)
			audit.DELETE("/cleanup", middleware.RequireRole("admin"), auditHandler.Cleanup)
		}
	}
}
