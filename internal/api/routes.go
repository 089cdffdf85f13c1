package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pictionary/internal/api/handlers"
	"pictionary/internal/middleware"
	"pictionary/internal/service"
)

// Options 路由設定
type Options struct {
	AllowedOrigins []string
	JWTSecret      []byte
	TokenTTL       time.Duration
}

func SetupRoutes(r *gin.Engine, services *service.Services, opts Options, logger *zap.Logger) {
	r.Use(middleware.ZapLogger(logger.Named("http")), gin.Recovery())
	r.Use(cors.New(corsConfig(opts.AllowedOrigins)))

	// 初始化 handlers
	roomHandler := handlers.NewRoomHandler(services.RoomService)
	wsHandler := handlers.NewWebSocketHandler(services.WebSocketManager, services.GameService, opts.AllowedOrigins, logger.Named("websocket"))

	// 處理 404 錯誤
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	// WebSocket 連接點
	r.GET("/ws", wsHandler.HandleWebSocket)

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		api.GET("/rooms/:id", roomHandler.GetRoom)
	}

	// 未設定管理員憑證時不開放管理端點
	if !services.Admin.Enabled() || len(opts.JWTSecret) == 0 {
		return
	}

	adminHandler := handlers.NewAdminHandler(services.Admin, services.RoomService, services.GameService, opts.JWTSecret, opts.TokenTTL)
	admin := api.Group("/admin")
	admin.POST("/token", adminHandler.Token)

	authorized := admin.Group("")
	authorized.Use(middleware.AuthMiddleware(opts.JWTSecret))
	{
		authorized.GET("/rooms", adminHandler.ListRooms)
		authorized.DELETE("/rooms/:id", adminHandler.CloseRoom)
		authorized.POST("/reset", adminHandler.Reset)
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
