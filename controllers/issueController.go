package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"civicfix-be/models"
	"civicfix-be/repository"
	"civicfix-be/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var validCategories = map[string]bool{
	"Road": true, "Water": true, "Sanitation": true,
	"Electricity": true, "Other": true,
}

type issueInput struct {
	Title       string   `json:"title" binding:"required,max=200"`
	Description string   `json:"description" binding:"required,max=1000"`
	Category    string   `json:"category" binding:"required"`
	Location    string   `json:"location" binding:"required,max=200"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// bindIssueInput reads either a JSON body or a multipart form (the form
// variant may carry a photo, uploaded to S3 separately).
func bindIssueInput(c *gin.Context) (*issueInput, error) {
	if !strings.HasPrefix(c.ContentType(), "multipart/") {
		var input issueInput
		if err := c.ShouldBindJSON(&input); err != nil {
			return nil, err
		}
		return &input, nil
	}

	input := issueInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Category:    c.PostForm("category"),
		Location:    c.PostForm("location"),
	}
	if v := c.PostForm("latitude"); v != "" {
		lat, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, errors.New("invalid latitude")
		}
		input.Latitude = &lat
	}
	if v := c.PostForm("longitude"); v != "" {
		lng, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, errors.New("invalid longitude")
		}
		input.Longitude = &lng
	}
	return &input, nil
}

// uploadFormImage pushes the named multipart file to S3 and returns its
// URL, or nil when no file was attached or storage is disabled.
func uploadFormImage(c *gin.Context, field, prefix string) (*string, error) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		return nil, nil
	}
	if media == nil {
		log.Println("Photo upload skipped: S3 storage not configured")
		return nil, nil
	}

	file, err := fileHeader.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()

	url, err := media.Upload(c.Request.Context(), prefix, file,
		fileHeader.Header.Get("Content-Type"), fileHeader.Filename)
	if err != nil {
		return nil, err
	}
	return &url, nil
}

// CreateIssue handles the creation of a new issue
func CreateIssue(c *gin.Context) {
	// Extract user ID from context (set by auth middleware)
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	createdByID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	input, err := bindIssueInput(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !validCategories[input.Category] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
		return
	}

	imageURL, err := uploadFormImage(c, "image", "issues")
	if err != nil {
		log.Println("Error uploading photo:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload photo"})
		return
	}

	aiCategory, aiPriority := services.AnalyzeIssue(input.Title, input.Description)

	issue := models.Issue{
		Title:       input.Title,
		Description: input.Description,
		Category:    models.IssueCategory(input.Category),
		Location:    input.Location,
		ImageURL:    imageURL,
		Status:      models.StatusPending,
		AICategory:  aiCategory,
		AIPriority:  aiPriority,
		CreatedBy:   createdByID,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	created, err := issueRepo.Create(ctx, &issue)
	if errors.Is(err, repository.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title, description and location are required"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create issue"})
		return
	}

	c.JSON(http.StatusCreated, created)
}

// GetAllIssues handles retrieving all issues with filtering, pagination, and vote counts
func GetAllIssues(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Parse query parameters
	filter := repository.IssueFilter{
		Category: c.Query("category"),
		Status:   c.Query("status"),
		Search:   c.Query("search"),
	}
	sortBy := c.DefaultQuery("sort", "newest")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	list, err := issueRepo.ListAll(ctx, filter, sortBy, page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues"})
		return
	}

	// Get current user ID for vote checking (if authenticated)
	var currentUserID *primitive.ObjectID
	if userIDStr, exists := c.Get("user_id"); exists {
		if objID, err := primitive.ObjectIDFromHex(userIDStr.(string)); err == nil {
			currentUserID = &objID
		}
	}

	issuesWithVotes := withVoteInfo(ctx, list.Issues, currentUserID)

	totalPages := int((list.Total + int64(limit) - 1) / int64(limit))

	c.JSON(http.StatusOK, gin.H{
		"issues":      issuesWithVotes,
		"totalIssues": list.Total,
		"totalPages":  totalPages,
		"currentPage": page,
	})
}

// IssueWithVotes decorates an issue with vote counts and creator info.
type IssueWithVotes struct {
	models.Issue
	Votes        int64                  `json:"votes"`
	UserHasVoted bool                   `json:"userHasVoted"`
	CreatedBy    map[string]interface{} `json:"createdBy"`
}

func withVoteInfo(ctx context.Context, issues []models.Issue, currentUserID *primitive.ObjectID) []IssueWithVotes {
	result := make([]IssueWithVotes, 0, len(issues))

	for _, issue := range issues {
		voteCount := models.CountVotes(ctx, voteCollection, issue.ID)

		userHasVoted := false
		if currentUserID != nil {
			userHasVoted = models.HasVoted(ctx, voteCollection, issue.ID, *currentUserID)
		}

		createdByMap := map[string]interface{}{
			"id": issue.CreatedBy,
		}
		if creator, err := userRepo.FindByID(ctx, issue.CreatedBy); err == nil {
			createdByMap["name"] = creator.Name
			createdByMap["email"] = creator.Email
		}

		result = append(result, IssueWithVotes{
			Issue:        issue,
			Votes:        voteCount,
			UserHasVoted: userHasVoted,
			CreatedBy:    createdByMap,
		})
	}

	return result
}

// GetIssue retrieves an issue by its ID with vote information
func GetIssue(c *gin.Context) {
	idParam := c.Param("id")
	issueID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issue, err := issueRepo.FindByID(ctx, issueID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issue"})
		return
	}

	voteCount := models.CountVotes(ctx, voteCollection, issueID)

	// Check if current user has voted (if authenticated)
	userHasVoted := false
	if userIDStr, exists := c.Get("user_id"); exists {
		if currentUserID, err := primitive.ObjectIDFromHex(userIDStr.(string)); err == nil {
			userHasVoted = models.HasVoted(ctx, voteCollection, issueID, currentUserID)
		}
	}

	createdByMap := map[string]interface{}{
		"id": issue.CreatedBy,
	}
	if creator, err := userRepo.FindByID(ctx, issue.CreatedBy); err == nil {
		createdByMap["name"] = creator.Name
		createdByMap["email"] = creator.Email
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           issue.ID,
		"publicId":     issue.PublicID,
		"title":        issue.Title,
		"description":  issue.Description,
		"category":     issue.Category,
		"location":     issue.Location,
		"imageUrl":     issue.ImageURL,
		"status":       issue.Status,
		"aiCategory":   issue.AICategory,
		"aiPriority":   issue.AIPriority,
		"createdBy":    createdByMap,
		"latitude":     issue.Latitude,
		"longitude":    issue.Longitude,
		"createdAt":    issue.CreatedAt,
		"updatedAt":    issue.UpdatedAt,
		"votes":        voteCount,
		"userHasVoted": userHasVoted,
	})
}

// GetIssuesByUser retrieves all issues created by the authenticated user
func GetIssuesByUser(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	userObjID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issues, err := issueRepo.ListByOwner(ctx, userObjID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues"})
		return
	}

	c.JSON(http.StatusOK, withVoteInfo(ctx, issues, &userObjID))
}

// UpdateIssue allows the creator of an issue to update its details.
// Status is not editable here; it only moves through the review workflow.
func UpdateIssue(c *gin.Context) {
	idParam := c.Param("id")
	issueID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	userObjID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var input struct {
		Title       *string  `json:"title,omitempty"`
		Description *string  `json:"description,omitempty"`
		Category    *string  `json:"category,omitempty"`
		Location    *string  `json:"location,omitempty"`
		Latitude    *float64 `json:"latitude,omitempty"`
		Longitude   *float64 `json:"longitude,omitempty"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Check if the issue exists and is created by the requesting user
	issue, err := issueRepo.FindByID(ctx, issueID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issue"})
		return
	}

	if issue.CreatedBy != userObjID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not authorized to update this issue"})
		return
	}

	upd := repository.IssueUpdate{
		Title:       input.Title,
		Description: input.Description,
		Location:    input.Location,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
	}
	if input.Category != nil {
		if !validCategories[*input.Category] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
			return
		}
		category := models.IssueCategory(*input.Category)
		upd.Category = &category
	}

	if _, err := issueRepo.Update(ctx, issueID, upd); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update issue"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Issue updated successfully"})
}

// DeleteIssue allows the creator of an issue to delete it
func DeleteIssue(c *gin.Context) {
	idParam := c.Param("id")
	issueID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	userObjID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	issue, err := issueRepo.FindByID(ctx, issueID)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issue"})
		return
	}

	if issue.CreatedBy != userObjID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not authorized to delete this issue"})
		return
	}

	if err := issueRepo.Delete(ctx, issueID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete issue"})
		return
	}

	// Delete associated votes
	_, _ = voteCollection.DeleteMany(ctx, bson.M{"issue": issueID})

	c.JSON(http.StatusOK, gin.H{"message": "Issue deleted successfully"})
}

// HandleVoteOnIssue toggles the user's vote on an issue (vote if not voted, unvote if already voted)
func HandleVoteOnIssue(c *gin.Context) {
	idParam := c.Param("id")
	issueID, err := primitive.ObjectIDFromHex(idParam)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid issue ID"})
		return
	}

	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	userObjID, err := primitive.ObjectIDFromHex(userID.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Check if the issue exists
	if _, err := issueRepo.FindByID(ctx, issueID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Issue not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issue"})
		}
		return
	}

	if models.HasVoted(ctx, voteCollection, issueID, userObjID) {
		// User has already voted, remove the vote
		_, err = voteCollection.DeleteOne(ctx, bson.M{
			"issue": issueID,
			"user":  userObjID,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove vote"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":      "Vote removed successfully",
			"voted":        false,
			"votes":        models.CountVotes(ctx, voteCollection, issueID),
			"userHasVoted": false,
		})
	} else {
		// User hasn't voted, create a new vote
		vote := models.Vote{
			ID:        primitive.NewObjectID(),
			Issue:     issueID,
			User:      userObjID,
			CreatedAt: time.Now(),
		}

		_, err = voteCollection.InsertOne(ctx, vote)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cast vote"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message":      "Vote cast successfully",
			"voted":        true,
			"votes":        models.CountVotes(ctx, voteCollection, issueID),
			"userHasVoted": true,
		})
	}
}

// GetIssueAnalytics returns analytical data about issues
func GetIssueAnalytics(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Get issues by category using aggregation
	categoryPipeline := []bson.M{
		{
			"$group": bson.M{
				"_id":   "$category",
				"count": bson.M{"$sum": 1},
			},
		},
		{
			"$project": bson.M{
				"name":  "$_id",
				"value": "$count",
				"_id":   0,
			},
		},
	}

	categoryCursor, err := issueCollection.Aggregate(ctx, categoryPipeline)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get category analytics"})
		return
	}
	defer categoryCursor.Close(ctx)

	var issuesByCategory []bson.M
	if err := categoryCursor.All(ctx, &issuesByCategory); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode category analytics"})
		return
	}

	// Get last 7 days data
	var last7Days []gin.H
	for i := 6; i >= 0; i-- {
		date := time.Now().AddDate(0, 0, -i)
		date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())

		nextDate := date.AddDate(0, 0, 1)

		count, err := issueCollection.CountDocuments(ctx, bson.M{
			"createdAt": bson.M{
				"$gte": date,
				"$lt":  nextDate,
			},
		})
		if err != nil {
			count = 0
		}

		last7Days = append(last7Days, gin.H{
			"date":  date.Format("2006-01-02"),
			"count": count,
		})
	}

	// Get top voted issues among the most recent 50
	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(50)

	cursor, err := issueCollection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues for vote analysis"})
		return
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode issues"})
		return
	}

	type IssueWithVoteCount struct {
		ID       primitive.ObjectID `json:"id"`
		Title    string             `json:"title"`
		Category string             `json:"category"`
		Votes    int64              `json:"votes"`
	}

	var issuesWithVotes []IssueWithVoteCount
	for _, issue := range issues {
		issuesWithVotes = append(issuesWithVotes, IssueWithVoteCount{
			ID:       issue.ID,
			Title:    issue.Title,
			Category: string(issue.Category),
			Votes:    models.CountVotes(ctx, voteCollection, issue.ID),
		})
	}

	sort.Slice(issuesWithVotes, func(i, j int) bool {
		return issuesWithVotes[i].Votes > issuesWithVotes[j].Votes
	})

	topVotedIssues := issuesWithVotes
	if len(issuesWithVotes) > 5 {
		topVotedIssues = issuesWithVotes[:5]
	}

	totalIssues, err := issueCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		totalIssues = 0
	}

	totalVotes, err := voteCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		totalVotes = 0
	}

	openIssues, err := issueCollection.CountDocuments(ctx, bson.M{
		"status": bson.M{"$in": []models.IssueStatus{
			models.StatusPending,
			models.StatusApproved,
			models.StatusResolvedPendingConfirmation,
		}},
	})
	if err != nil {
		openIssues = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"issuesByCategory": issuesByCategory,
		"last7Days":        last7Days,
		"topVotedIssues":   topVotedIssues,
		"totalIssues":      totalIssues,
		"totalVotes":       totalVotes,
		"openIssues":       openIssues,
	})
}

// RecentIssues returns the most recent issues that have latitude and longitude
func RecentIssues(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	limit := 19

	// Filter for issues that have both latitude and longitude
	filter := bson.M{
		"latitude":  bson.M{"$exists": true, "$ne": nil},
		"longitude": bson.M{"$exists": true, "$ne": nil},
	}

	projection := bson.M{
		"_id":       1,
		"publicId":  1,
		"title":     1,
		"latitude":  1,
		"longitude": 1,
		"location":  1,
		"category":  1,
		"createdAt": 1,
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetLimit(int64(limit)).
		SetProjection(projection)

	cursor, err := issueCollection.Find(ctx, filter, findOptions)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve recent issues"})
		return
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decode recent issues"})
		return
	}

	type IssueResponse struct {
		ID        string    `json:"id"`
		PublicID  string    `json:"publicId"`
		Title     string    `json:"title"`
		Latitude  float64   `json:"latitude"`
		Longitude float64   `json:"longitude"`
		Location  string    `json:"location"`
		Category  string    `json:"category,omitempty"`
		CreatedAt time.Time `json:"createdAt,omitempty"`
	}

	var response []IssueResponse
	for _, issue := range issues {
		if issue.Latitude != nil && issue.Longitude != nil {
			response = append(response, IssueResponse{
				ID:        issue.ID.Hex(),
				PublicID:  issue.PublicID,
				Title:     issue.Title,
				Latitude:  *issue.Latitude,
				Longitude: *issue.Longitude,
				Location:  issue.Location,
				Category:  string(issue.Category),
				CreatedAt: issue.CreatedAt,
			})
		}
	}

	c.JSON(http.StatusOK, response)
}
