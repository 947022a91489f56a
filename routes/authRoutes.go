package routes

import (
	"civicfix-be/controllers"
	"civicfix-be/middlewares"

	"github.com/gin-gonic/gin"
)

// AuthRoutes sets up the registration and authentication routes
func AuthRoutes(r *gin.Engine) {
	auth := r.Group("/api/auth")
	{
		auth.POST("/otp/request", controllers.RequestOTP)
		auth.POST("/otp/verify", controllers.VerifyOTP)
		auth.POST("/register", controllers.RegisterUser)
		auth.POST("/login", controllers.LoginUser)
		auth.POST("/logout", controllers.LogoutUser)
		auth.GET("/me", middlewares.AuthMiddleware(), controllers.GetMe)
		auth.PUT("/me", middlewares.AuthMiddleware(), controllers.UpdateProfile)
	}
}
