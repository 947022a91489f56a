package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"civicfix-be/services"

	"github.com/gin-gonic/gin"
)

// invalidLinkMessage is returned for any failed confirmation link, whether
// the issue is unknown, the token is wrong, or the link was already used.
// One message for every failure mode keeps the links unguessable.
const invalidLinkMessage = "Invalid or expired link"

// ConfirmResolutionPrompt handles the pre-confirmation page the email links
// land on. It only reports which action the citizen is about to take; no
// token is checked here.
func ConfirmResolutionPrompt(c *gin.Context) {
	publicID := c.Param("publicId")
	response := c.Query("response")

	if response != "yes" && response != "no" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Response must be yes or no"})
		return
	}

	if response == "yes" {
		c.JSON(http.StatusOK, gin.H{
			"issueId": publicID,
			"action":  "accept",
			"message": "Confirming will close this issue permanently",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"issueId": publicID,
		"action":  "decline",
		"message": "Declining will reopen this issue for review",
	})
}

func confirmResolution(c *gin.Context, response string) {
	publicID := c.Param("publicId")
	token := c.Param("token")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := lifecycle.ConfirmResolution(ctx, publicID, token, response)
	if errors.Is(err, services.ErrNotFound) || errors.Is(err, services.ErrInvalidToken) {
		c.JSON(http.StatusBadRequest, gin.H{"error": invalidLinkMessage})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	if result.NotifyErr != nil {
		log.Println("Decline notice to admin failed:", result.NotifyErr)
	}

	if response == services.ResponseAccept {
		c.JSON(http.StatusOK, gin.H{
			"message": "Thank you for confirming. The issue is now closed.",
			"status":  result.Issue.Status,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "The issue has been reopened for further review. You can attach feedback about what is still wrong.",
		"status":  result.Issue.Status,
	})
}

// AcceptResolution consumes the emailed accept link and closes the issue
func AcceptResolution(c *gin.Context) {
	confirmResolution(c, services.ResponseAccept)
}

// DeclineResolution consumes the emailed decline link and reopens the issue
func DeclineResolution(c *gin.Context) {
	confirmResolution(c, services.ResponseDecline)
}

// UploadFeedback attaches a note and an optional photo from the citizen
// after a declined resolution
func UploadFeedback(c *gin.Context) {
	publicID := c.Param("publicId")

	note := c.PostForm("note")
	if note == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Feedback note is required"})
		return
	}

	imageURL, err := uploadFormImage(c, "image", "feedback")
	if err != nil {
		log.Println("Error uploading feedback photo:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload photo"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issue, err := lifecycle.SubmitFeedback(ctx, publicID, note, imageURL)
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save feedback"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Feedback submitted successfully",
		"issue":   issue,
	})
}
