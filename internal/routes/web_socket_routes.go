package routes

import (
	"github.com/gin-gonic/gin"

	"campus_nav/internal/controllers"
)

func WebSocketRoutes(r *gin.Engine) {
	wsRoutes := r.Group("/ws")
	{
		wsRoutes.GET("/navigate", controllers.HandleNavigateWebSocket)
		// The token travels in the query string, so auth happens in the handler.
		wsRoutes.GET("/admin/maps/:id/visitors", controllers.HandleVisitorFeed)
	}
}
