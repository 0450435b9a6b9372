package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	appsvc "github.com/iRayau/AI-chat/internal/app"
	"github.com/iRayau/AI-chat/internal/bootstrap"
	"github.com/iRayau/AI-chat/internal/cache"
	rabbitmqClient "github.com/iRayau/AI-chat/internal/platform/rabbitmq"
	"github.com/iRayau/AI-chat/internal/repository"
	"github.com/iRayau/AI-chat/internal/transport/http/handler"
	"github.com/iRayau/AI-chat/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	corsCfg := cors.DefaultConfig()
	if len(app.Config.App.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = app.Config.App.CORSOrigins
	} else {
		corsCfg.AllowAllOrigins = true
	}
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	router.Use(cors.New(corsCfg))

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	// Typed nils must not leak into the interfaces: absent providers stay
	// untyped nil so the services see them as unconfigured.
	var (
		userStore    appsvc.UserStore
		chatStore    appsvc.ChatStore
		messageStore appsvc.MessageStore
		titleJobs    appsvc.TitleJobPublisher
		historyCache appsvc.HistoryCache
	)
	if app.DB != nil {
		userStore = repository.NewUserRepository(app.DB)
		chatStore = repository.NewChatRepository(app.DB)
		messageStore = repository.NewMessageRepository(app.DB)
	}
	if app.MQConn != nil {
		titleJobs = rabbitmqClient.NewTitlePublisher(app.MQConn, app.Config.RabbitMQ.TitleQueue)
	}
	if app.Redis != nil {
		historyCache = cache.NewHistoryCache(
			app.Redis,
			time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
			time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
		)
	}

	authService := appsvc.NewAuthService(
		userStore,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	chatService := appsvc.NewChatService(chatStore, messageStore, titleJobs, historyCache)
	completionService := appsvc.NewCompletionService(app.LLM)
	titleService := appsvc.NewTitleService(app.LLM)

	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(chatService)
	completionHandler := handler.NewCompletionHandler(completionService)
	searchHandler := handler.NewSearchHandler(app.Search)
	titleHandler := handler.NewTitleHandler(titleService)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	protected := v1.Group("")
	protected.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))
	protected.POST("/chat-completion", completionHandler.Stream)
	protected.POST("/search", searchHandler.Search)
	protected.POST("/title", titleHandler.Generate)
	protected.GET("/chats", chatHandler.ListChats)
	protected.POST("/chats", chatHandler.CreateChat)
	protected.GET("/chats/:id", chatHandler.GetChat)
	protected.PATCH("/chats/:id", chatHandler.RenameChat)
	protected.DELETE("/chats/:id", chatHandler.DeleteChat)
	protected.GET("/chats/:id/messages", chatHandler.ListMessages)
	protected.POST("/chats/:id/messages", chatHandler.AppendMessage)

	return router
}
