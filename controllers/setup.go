package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"

	"civicfix-be/config"
	"civicfix-be/models"
	"civicfix-be/repository"
	"civicfix-be/services"
	"civicfix-be/storage"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	issueRepo repository.IssueRepository
	userRepo  repository.UserRepository
	lifecycle *services.Lifecycle
	otpGate   *services.OTP
	media     *storage.S3Storage

	issueCollection *mongo.Collection
	voteCollection  *mongo.Collection
)

// Setup wires repositories and services onto the shared Mongo and Redis
// connections. Called once from main after the connections are up.
func Setup() {
	issueCollection = config.GetCollection("issues")
	userCollection := config.GetCollection("users")
	voteCollection = config.GetCollection("votes")

	if err := repository.EnsurePublicIDIndex(issueCollection); err != nil {
		log.Println("Failed to ensure issue publicId index:", err)
	}
	if err := repository.EnsureEmailIndex(userCollection); err != nil {
		log.Println("Failed to ensure user email index:", err)
	}
	if err := models.EnsureVoteIndex(voteCollection); err != nil {
		log.Println("Failed to ensure vote index:", err)
	}

	issueRepo = repository.NewMongoIssueRepository(issueCollection)
	userRepo = repository.NewMongoUserRepository(userCollection)
	notifier := services.SMTPNotifier{}

	lifecycle = &services.Lifecycle{
		Issues:     issueRepo,
		Users:      userRepo,
		Notifier:   notifier,
		BaseURL:    strings.TrimRight(os.Getenv("APP_BASE_URL"), "/"),
		AdminEmail: os.Getenv("ADMIN_EMAIL"),
	}

	var kv services.KVStore
	if config.RedisClient != nil {
		kv = config.RedisKV{Client: config.RedisClient}
	} else {
		log.Println("Redis not connected; OTP codes held in process memory")
		kv = services.NewMemoryKV()
	}
	otpGate = services.NewOTP(kv, notifier)

	m, err := storage.NewS3StorageFromEnv(context.Background())
	if err != nil {
		log.Println("S3 storage unavailable:", err)
	}
	media = m
	if media == nil {
		log.Println("S3 storage not configured; photo uploads disabled")
	}
}

// callerFrom rebuilds the workflow caller from the values the auth
// middleware stored in the request context.
func callerFrom(c *gin.Context) (services.Caller, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		return services.Caller{}, false
	}
	userID, ok := userIDVal.(string)
	if !ok {
		return services.Caller{}, false
	}
	objID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return services.Caller{}, false
	}

	roleVal, _ := c.Get("role")
	role, _ := roleVal.(string)

	return services.Caller{ID: objID, Role: models.UserRole(role)}, true
}

// statusForError maps workflow errors to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNotAuthorized):
		return http.StatusForbidden
	case errors.Is(err, services.ErrInvalidRequest), errors.Is(err, services.ErrInvalidToken):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
