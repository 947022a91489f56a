package repository

import (
	"context"
	"errors"

	"civicfix-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when no record matches the given id or public id.
	ErrNotFound = errors.New("record not found")
	// ErrValidation is returned when required issue fields are missing.
	ErrValidation = errors.New("missing required fields")
	// ErrConflict is returned when a conditional status update finds the
	// record in a different state than expected.
	ErrConflict = errors.New("status precondition failed")
	// ErrTokenMismatch is returned when a confirmation token does not match
	// the stored one, or the issue is no longer awaiting confirmation.
	ErrTokenMismatch = errors.New("confirmation token mismatch")
	// ErrDuplicateEmail is returned when registering an already-known email.
	ErrDuplicateEmail = errors.New("email already registered")
)

// IssueFilter narrows ListAll results. Empty or "all" fields are ignored.
type IssueFilter struct {
	Category string
	Status   string
	Search   string
}

// IssueList is one page of issues plus the unpaginated total.
type IssueList struct {
	Issues []models.Issue
	Total  int64
}

// IssueUpdate carries optional field edits for an owner-initiated update.
type IssueUpdate struct {
	Title       *string
	Description *string
	Category    *models.IssueCategory
	Location    *string
	ImageURL    *string
	Latitude    *float64
	Longitude   *float64
}

// StatusExtra carries fields written together with a status change, in the
// same atomic update.
type StatusExtra struct {
	ConfirmationToken  *string
	ResolutionImageURL *string
}

// IssueRepository is the persistence contract the lifecycle workflow and the
// issue handlers run against. Every method is individually atomic; the two
// conditional updates (UpdateStatus, ConsumeConfirmationToken) are the
// linearization points for concurrent transitions on the same issue.
type IssueRepository interface {
	// Create assigns ID, PublicID and timestamps. Fails with ErrValidation
	// when title, description or location is empty.
	Create(ctx context.Context, issue *models.Issue) (*models.Issue, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	FindByPublicID(ctx context.Context, publicID string) (*models.Issue, error)
	// UpdateStatus moves the issue to the target status only if its current
	// status is one of from, in a single conditional update. Non-nil extra
	// fields are written in the same update. Returns ErrConflict when the
	// precondition fails.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, from []models.IssueStatus, to models.IssueStatus, extra *StatusExtra) (*models.Issue, error)
	// ConsumeConfirmationToken atomically matches (publicID, token,
	// status=resolved_pending_confirmation), sets the target status and
	// clears the token. Exactly one of two concurrent calls with the same
	// valid token succeeds; the loser gets ErrTokenMismatch.
	ConsumeConfirmationToken(ctx context.Context, publicID, token string, to models.IssueStatus) (*models.Issue, error)
	// AttachFeedback stores citizen-supplied evidence and marks the
	// user confirmation as rejected. Status is untouched.
	AttachFeedback(ctx context.Context, publicID, note string, imageURL *string) (*models.Issue, error)
	Update(ctx context.Context, id primitive.ObjectID, upd IssueUpdate) (*models.Issue, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Issue, error)
	ListAll(ctx context.Context, filter IssueFilter, sort string, page, limit int) (*IssueList, error)
}

// ProfileUpdate carries optional profile field edits.
type ProfileUpdate struct {
	Name       *string
	Phone      *string
	Address    *string
	ProfilePic *string
}

// UserRepository is the persistence contract for identities.
type UserRepository interface {
	// Create assigns ID, PublicID and timestamps. Fails with
	// ErrDuplicateEmail when the email is taken.
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByPublicID(ctx context.Context, publicID string) (*models.User, error)
	UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) (*models.User, error)
}
