package routes

import (
	"github.com/gin-gonic/gin"

	"campus_nav/internal/controllers"
)

// PublicRoutes are what the visitor page and the mobile shell call. No auth.
func PublicRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("/maps", controllers.ListMaps)
		api.GET("/maps/:id", controllers.GetMap)
		api.GET("/maps/:id/geojson", controllers.GetMapGeoJSON)
		api.GET("/routes/:id", controllers.GetRoute)
		api.GET("/navigate", controllers.Navigate)

		api.POST("/intent", controllers.ExtractIntent)
		api.POST("/assistant/sessions", controllers.StartAssistantSession)
		api.POST("/assistant/sessions/:id/events", controllers.AssistantEvent)
	}
}
