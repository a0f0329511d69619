package routes

import (
	"github.com/gin-gonic/gin"

	"campus_nav/internal/controllers"
	"campus_nav/internal/middleware"
)

func AuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/login", controllers.Login)
		auth.GET("/me", middleware.RequireAuth(), controllers.Me)
	}
}
