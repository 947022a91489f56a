package routes

import (
	"civicfix-be/controllers"
	"civicfix-be/middlewares"

	"github.com/gin-gonic/gin"
)

// AdminRoutes sets up the admin review routes. The handlers check the
// admin role themselves; the middleware only authenticates.
func AdminRoutes(r *gin.Engine) {
	admin := r.Group("/api/admin", middlewares.AuthMiddleware())
	{
		admin.GET("/dashboard", controllers.GetAdminDashboard)
		admin.POST("/issue/:id/approve", controllers.ApproveIssue)
		admin.POST("/issue/:id/reject", controllers.RejectIssue)
		admin.POST("/issue/:id/resolve", controllers.ResolveIssue)
	}
}
