package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	appsvc "botdesk/internal/app"
	"botdesk/internal/bootstrap"
	"botdesk/internal/model"
	"botdesk/internal/repository"
	"botdesk/internal/transport/http/handler"
	"botdesk/internal/transport/http/middleware"
)

// multipart bodies above this spill to temp files
const maxMultipartMemory = 16 << 20

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.MaxMultipartMemory = maxMultipartMemory
	router.Use(gin.Recovery(), middleware.AccessLog(app.Log), cors.New(corsConfig(app.Config.App.CORSOrigins)))

	if err := handler.RegisterValidators(); err != nil {
		app.Log.Error("router", "register validators failed", map[string]interface{}{"error": err.Error()})
	}

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	chatbotRepo := repository.NewChatbotRepository(app.MySQL)
	documentRepo := repository.NewDocumentRepository(app.MySQL)
	conversationRepo := repository.NewConversationRepository(app.MySQL)
	sessionRepo := repository.NewSessionRepository(app.MySQL)
	scanRepo := repository.NewQRScanRepository(app.MySQL)
	settingRepo := repository.NewPlatformSettingRepository(app.MySQL)

	ledger := appsvc.NewConversationLedger(conversationRepo, chatbotRepo, userRepo, app.Transcripts, app.Log)
	tracker := appsvc.NewSessionTracker(sessionRepo)
	reporting := appsvc.NewReportingService(ledger, tracker, conversationRepo, sessionRepo, scanRepo, chatbotRepo, userRepo)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	gateway := appsvc.NewChatGateway(
		chatbotRepo, userRepo, scanRepo, tracker, ledger, app.AI,
		time.Duration(app.Config.AI.AskTimeoutSeconds)*time.Second,
		app.Log,
	)
	chatbotService := appsvc.NewChatbotService(app.MySQL, chatbotRepo, documentRepo, app.Store, app.Jobs, app.Config.Public.BaseURL, app.Log)
	documentService := appsvc.NewDocumentService(chatbotRepo, documentRepo, app.Store, app.Jobs, app.Log)
	conversationService := appsvc.NewConversationService(ledger, reporting, app.Log)
	userService := appsvc.NewUserService(userRepo)
	platformService := appsvc.NewPlatformService(settingRepo, app.Store, app.Log)

	authHandler := handler.NewAuthHandler(authService, app.Log)
	publicHandler := handler.NewPublicHandler(gateway, app.Log)
	chatbotHandler := handler.NewChatbotHandler(chatbotService, reporting, app.Log)
	documentHandler := handler.NewDocumentHandler(documentService, app.Log)
	conversationHandler := handler.NewConversationHandler(conversationService, app.Log)
	userHandler := handler.NewUserHandler(userService, app.Log)
	platformHandler := handler.NewPlatformHandler(platformService, app.Log)

	secret := app.Config.Auth.JWTSecret
	requireAuth := middleware.AuthJWT(secret)
	optionalAuth := middleware.OptionalAuth(secret)

	api := router.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", requireAuth, authHandler.Me)

	chatbots := api.Group("/chatbots")
	// widget routes, reachable without a token
	chatbots.GET("/:id", optionalAuth, publicHandler.Open)
	chatbots.POST("/:id/messages", optionalAuth, publicHandler.SendMessage)
	chatbots.GET("/:id/conversations", publicHandler.Transcript)
	chatbots.POST("/:id/end-session", publicHandler.EndSession)

	chatbots.POST("", requireAuth, chatbotHandler.Create)
	chatbots.GET("", requireAuth, chatbotHandler.List)
	chatbots.GET("/my", requireAuth, chatbotHandler.ListMine)
	chatbots.GET("/qr-codes", requireAuth, chatbotHandler.ListQRCodes)
	chatbots.GET("/user-stats", requireAuth, chatbotHandler.UserStats)
	chatbots.PUT("/:id", requireAuth, chatbotHandler.Update)
	chatbots.GET("/:id/edit", requireAuth, chatbotHandler.Edit)
	chatbots.GET("/:id/stats", requireAuth, chatbotHandler.Stats)
	chatbots.POST("/:id/documents", requireAuth, chatbotHandler.UploadDocuments)
	chatbots.POST("/:id/regenerate-qr", requireAuth, chatbotHandler.RegenerateQRCode)

	documents := api.Group("/documents", requireAuth)
	documents.GET("", documentHandler.List)
	documents.POST("", documentHandler.Upload)
	documents.PUT("/:id", documentHandler.Replace)
	documents.DELETE("/:id", documentHandler.Delete)
	documents.GET("/:id/download", documentHandler.Download)

	conversations := api.Group("/conversations", requireAuth)
	conversations.GET("", conversationHandler.List)
	conversations.DELETE("/:userId/:chatbotId", conversationHandler.Delete)

	users := api.Group("/users", requireAuth)
	users.POST("/change-password", userHandler.ChangePassword)
	admin := users.Group("", middleware.RequireRole(model.RoleAdmin))
	admin.GET("", userHandler.List)
	admin.GET("/:id", userHandler.Get)
	admin.PUT("/:id", userHandler.Update)
	admin.DELETE("/:id", userHandler.Delete)

	platform := api.Group("/platform")
	platform.GET("/logo", platformHandler.GetLogo)
	platform.POST("/logo", requireAuth, middleware.RequireRole(model.RoleAdmin), platformHandler.UploadLogo)
	platform.DELETE("/logo", requireAuth, middleware.RequireRole(model.RoleAdmin), platformHandler.DeleteLogo)

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
