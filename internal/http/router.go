package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tagrag/internal/logging"
	"tagrag/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas de la API de chat.
// Con jwtSvc nil las rutas de conversacion quedan abiertas.
func NewRouter(
	logger *zap.Logger,
	chatH *ChatHandler,
	healthH *HealthHandler,
	jwtSvc *service.JWTService,
) *gin.Engine {
	logger = logging.OrNop(logger)
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/health", healthH.Health)

	conversation := r.Group("")
	if jwtSvc != nil {
		conversation.Use(JWTAuthMiddleware(jwtSvc))
	}
	conversation.POST("/chat", chatH.PostChat)
	conversation.GET("/history", chatH.GetHistory)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
