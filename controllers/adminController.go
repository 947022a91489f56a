package controllers

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"civicfix-be/models"
	"civicfix-be/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GetAdminDashboard returns per-status issue counts for the admin overview
func GetAdminDashboard(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	if !caller.IsAdmin() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	statuses := []models.IssueStatus{
		models.StatusPending,
		models.StatusApproved,
		models.StatusRejected,
		models.StatusResolvedPendingConfirmation,
		models.StatusClosed,
	}

	counts := gin.H{}
	for _, status := range statuses {
		count, err := issueCollection.CountDocuments(ctx, bson.M{"status": status})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
			return
		}
		counts[string(status)] = count
	}

	total, err := issueCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load dashboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"totalIssues": total,
		"byStatus":    counts,
	})
}

func transitionResponse(c *gin.Context, message string, result *services.TransitionResult) {
	response := gin.H{
		"message": message,
		"issue":   result.Issue,
	}
	if result.NotifyErr != nil {
		// The transition is committed; only the email failed.
		response["warning"] = "Status updated but notification could not be sent"
	}
	c.JSON(http.StatusOK, response)
}

// ApproveIssue moves a pending issue to approved and notifies the reporter
func ApproveIssue(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := lifecycle.Approve(ctx, issueID, caller)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": messageForError(err, "approved")})
		return
	}

	transitionResponse(c, "Issue approved", result)
}

// RejectIssue moves a pending issue to rejected and notifies the reporter
func RejectIssue(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := lifecycle.Reject(ctx, issueID, caller)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": messageForError(err, "rejected")})
		return
	}

	transitionResponse(c, "Issue rejected", result)
}

// ResolveIssue marks an approved issue as fixed and mails the reporter
// single-use accept/decline links. Accepts an optional multipart photo of
// the completed work as evidence.
func ResolveIssue(c *gin.Context) {
	caller, ok := callerFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	issueID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	var evidenceURL *string
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		evidenceURL, err = uploadFormImage(c, "image", "resolutions")
		if err != nil {
			log.Println("Error uploading resolution photo:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload photo"})
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	result, err := lifecycle.Resolve(ctx, issueID, caller, evidenceURL)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": messageForError(err, "resolved")})
		return
	}

	transitionResponse(c, "Issue marked as resolved, awaiting user confirmation", result)
}

func messageForError(err error, action string) string {
	switch {
	case err == services.ErrNotFound:
		return "Issue not found"
	case err == services.ErrNotAuthorized:
		return "Admin access required"
	case err == services.ErrInvalidRequest:
		return "Issue cannot be " + action + " in its current status"
	default:
		return "Something went wrong"
	}
}
