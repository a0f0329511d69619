package routes

import (
	"github.com/gin-gonic/gin"

	"campus_nav/internal/controllers"
	"campus_nav/internal/middleware"
	"campus_nav/internal/models"
)

func AdminRoutes(r *gin.Engine) {
	admin := r.Group("/api/admin")
	admin.Use(middleware.RequireRole(models.RoleSuperAdmin, models.RoleEditor))
	{
		admin.POST("/maps", controllers.CreateMap)
		admin.PATCH("/maps/:id", controllers.UpdateMap)
		admin.DELETE("/maps/:id", controllers.DeleteMap)

		admin.POST("/pins", controllers.CreatePin)
		admin.PATCH("/pins/:id", controllers.UpdatePin)
		admin.DELETE("/pins/:id", controllers.DeletePin)

		admin.POST("/routes", controllers.CreateRoute)
		admin.PATCH("/routes/:id", controllers.UpdateRoute)
		admin.DELETE("/routes/:id", controllers.DeleteRoute)
	}
}
