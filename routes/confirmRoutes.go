package routes

import (
	"civicfix-be/controllers"

	"github.com/gin-gonic/gin"
)

// ConfirmRoutes sets up the public confirmation routes the resolution
// emails link to. GET because they are opened straight from a mail client;
// the token in the path is the only authorization.
func ConfirmRoutes(r *gin.Engine) {
	issue := r.Group("/issue")
	{
		issue.GET("/:publicId/confirm", controllers.ConfirmResolutionPrompt)
		issue.GET("/:publicId/accept/:token", controllers.AcceptResolution)
		issue.GET("/:publicId/decline/:token", controllers.DeclineResolution)
		issue.POST("/:publicId/uploadFeedback", controllers.UploadFeedback)
	}
}
