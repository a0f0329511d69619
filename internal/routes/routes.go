package routes

import (
	"net/http"

	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"

	"campus_nav/internal/logger"
)

// SetupRouter builds the engine with every route group mounted. The caller
// owns starting the server.
func SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ginlog.SetLogger(
		ginlog.WithWriter(logger.Writer()),
		ginlog.WithSkipPath([]string{"/healthz"}),
	))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	AuthRoutes(r)
	PublicRoutes(r)
	AdminRoutes(r)
	WebSocketRoutes(r)

	return r
}
