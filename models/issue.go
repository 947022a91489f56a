package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueCategory enum
type IssueCategory string

const (
	Road        IssueCategory = "Road"
	Water       IssueCategory = "Water"
	Sanitation  IssueCategory = "Sanitation"
	Electricity IssueCategory = "Electricity"
	Other       IssueCategory = "Other"
)

// IssueStatus enum. One canonical vocabulary for the whole app; handlers
// and the lifecycle workflow never compare against raw strings.
type IssueStatus string

const (
	StatusPending  IssueStatus = "pending"
	StatusApproved IssueStatus = "approved"
	StatusRejected IssueStatus = "rejected"
	// StatusResolvedPendingConfirmation means an admin marked the issue
	// fixed and the reporter has been mailed accept/decline links.
	StatusResolvedPendingConfirmation IssueStatus = "resolved_pending_confirmation"
	StatusClosed                      IssueStatus = "closed"
)

// ValidStatus reports whether s is one of the canonical status values.
func ValidStatus(s IssueStatus) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusResolvedPendingConfirmation, StatusClosed:
		return true
	}
	return false
}

// UserConfirmation annotation values set by the citizen confirmation flow.
const (
	ConfirmationAccepted = "accepted"
	ConfirmationRejected = "rejected"
)

// Issue represents a civic issue reported by a user.
//
// ConfirmationToken is non-nil exactly while Status is
// resolved_pending_confirmation; consuming the token clears it in the same
// atomic update that changes the status.
type Issue struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PublicID           string             `bson:"publicId" json:"publicId"`
	Title              string             `bson:"title" json:"title"`
	Description        string             `bson:"description" json:"description"`
	Category           IssueCategory      `bson:"category" json:"category"`
	Location           string             `bson:"location" json:"location"`
	ImageURL           *string            `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
	Status             IssueStatus        `bson:"status" json:"status"`
	ConfirmationToken  *string            `bson:"confirmationToken,omitempty" json:"-"`
	UserConfirmation   string             `bson:"userConfirmation,omitempty" json:"userConfirmation,omitempty"`
	FeedbackNote       string             `bson:"feedbackNote,omitempty" json:"feedbackNote,omitempty"`
	FeedbackImageURL   *string            `bson:"feedbackImageUrl,omitempty" json:"feedbackImageUrl,omitempty"`
	ResolutionImageURL *string            `bson:"resolutionImageUrl,omitempty" json:"resolutionImageUrl,omitempty"`
	AICategory         string             `bson:"aiCategory,omitempty" json:"aiCategory,omitempty"`
	AIPriority         string             `bson:"aiPriority,omitempty" json:"aiPriority,omitempty"`
	CreatedBy          primitive.ObjectID `bson:"createdBy" json:"createdBy"`
	Longitude          *float64           `bson:"longitude,omitempty" json:"longitude,omitempty"`
	Latitude           *float64           `bson:"latitude,omitempty" json:"latitude,omitempty"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt" json:"updatedAt"`
}
