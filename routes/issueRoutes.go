package routes

import (
	"civicfix-be/controllers"
	"civicfix-be/middlewares"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes
func IssueRoutes(r *gin.Engine) {
	issue := r.Group("/api/issue")
	{
		issue.POST("/create", middlewares.AuthMiddleware(), middlewares.IssueRateLimiter(5), controllers.CreateIssue)
		issue.GET("", controllers.GetAllIssues)
		issue.GET("/mine", middlewares.AuthMiddleware(), controllers.GetIssuesByUser)
		issue.GET("/analytics", controllers.GetIssueAnalytics)
		issue.GET("/recent", controllers.RecentIssues)
		issue.GET("/:id", middlewares.AuthMiddleware(), controllers.GetIssue)
		issue.PUT("/:id", middlewares.AuthMiddleware(), controllers.UpdateIssue)
		issue.DELETE("/:id", middlewares.AuthMiddleware(), controllers.DeleteIssue)
		issue.POST("/:id/vote", middlewares.AuthMiddleware(), controllers.HandleVoteOnIssue)
	}
}
