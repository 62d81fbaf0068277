package web

import (
	"homewatt/auth"
	"homewatt/internal/automation"
	"homewatt/internal/db"
	"homewatt/internal/realtime"
	"homewatt/internal/web/api"
	"homewatt/internal/web/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type WebServer struct {
	router *gin.Engine
}

func NewWebServer(database *db.DB, redisClient *redis.Client, JWTSecret string, engine api.Engine, hub *realtime.Hub, broadcaster automation.Broadcaster, commander automation.Commander) *WebServer {
	router := gin.Default()

	authModule := auth.NewAuthModule(database.Pool(), redisClient, JWTSecret)
	middlewareManager := middleware.NewMiddlewareManager(database.Pool(), redisClient, authModule)

	api.RegisterAuthRoutes(router, authModule)
	api.RegisterHomeRoutes(router, middlewareManager, database, hub)
	api.RegisterDeviceRoutes(router, middlewareManager, database, broadcaster, commander)
	api.RegisterAutomationRoutes(router, middlewareManager, database, engine)

	return &WebServer{router: router}
}

func (ws *WebServer) Start(addr string) {
	ws.router.Run(addr)
}
