package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"civicfix-be/models"
	"civicfix-be/repository"
	"civicfix-be/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Caller is the identity performing a workflow operation, as established by
// the auth middleware. The workflow only consumes it as a capability check.
type Caller struct {
	ID   primitive.ObjectID
	Role models.UserRole
}

// IsAdmin reports whether the caller holds the admin review capability.
func (c Caller) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// Confirmation responses accepted by ConfirmResolution.
const (
	ResponseAccept  = "accept"
	ResponseDecline = "decline"
)

// Lifecycle orchestrates issue status transitions:
//
//	pending  --approve--> approved
//	pending  --reject-->  rejected
//	approved --resolve--> resolved_pending_confirmation   (mints token)
//	resolved_pending_confirmation --accept(token)-->  closed
//	resolved_pending_confirmation --decline(token)--> pending
//
// closed and rejected are terminal. Every transition is a single atomic
// conditional update on the issue store; notification sends come after the
// commit and are best-effort.
type Lifecycle struct {
	Issues   repository.IssueRepository
	Users    repository.UserRepository
	Notifier Notifier
	// BaseURL is the public origin embedded in confirmation links.
	BaseURL string
	// AdminEmail, when set, receives a notice after a declined resolution.
	AdminEmail string
}

// TransitionResult is a committed transition plus the outcome of its
// best-effort notification.
type TransitionResult struct {
	Issue     *models.Issue
	NotifyErr error
}

// Approve moves a pending issue to approved and mails the reporter.
// Approving an already-approved issue is a no-op returning current state.
func (l *Lifecycle) Approve(ctx context.Context, id primitive.ObjectID, caller Caller) (*TransitionResult, error) {
	return l.review(ctx, id, caller, models.StatusApproved)
}

// Reject moves a pending issue to rejected and mails the reporter.
// Rejecting an already-rejected issue is a no-op returning current state.
func (l *Lifecycle) Reject(ctx context.Context, id primitive.ObjectID, caller Caller) (*TransitionResult, error) {
	return l.review(ctx, id, caller, models.StatusRejected)
}

func (l *Lifecycle) review(ctx context.Context, id primitive.ObjectID, caller Caller, to models.IssueStatus) (*TransitionResult, error) {
	if !caller.IsAdmin() {
		return nil, ErrNotAuthorized
	}

	issue, err := l.Issues.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if issue.Status == to {
		// Idempotent re-review: no error, no second notification.
		return &TransitionResult{Issue: issue}, nil
	}

	updated, err := l.Issues.UpdateStatus(ctx, id, []models.IssueStatus{models.StatusPending}, to, nil)
	if errors.Is(err, repository.ErrConflict) {
		// Either a concurrent admin won the same transition, or the issue is
		// in a state the review actions do not apply to.
		current, ferr := l.Issues.FindByID(ctx, id)
		if ferr == nil && current.Status == to {
			return &TransitionResult{Issue: current}, nil
		}
		return nil, ErrInvalidRequest
	}
	if err != nil {
		return nil, err
	}

	subject, body := statusMessage(updated)
	return &TransitionResult{Issue: updated, NotifyErr: l.notifyOwner(ctx, updated, subject, body)}, nil
}

// Resolve moves an approved issue to resolved_pending_confirmation, minting
// a fresh single-use confirmation token, and mails the reporter accept and
// decline links. Resolving again while a confirmation is already pending
// replaces the token and re-sends the mail; earlier links die with it.
func (l *Lifecycle) Resolve(ctx context.Context, id primitive.ObjectID, caller Caller, evidenceURL *string) (*TransitionResult, error) {
	if !caller.IsAdmin() {
		return nil, ErrNotAuthorized
	}

	if _, err := l.Issues.FindByID(ctx, id); err != nil {
		return nil, err
	}

	token, err := utils.NewConfirmationToken()
	if err != nil {
		return nil, err
	}

	from := []models.IssueStatus{models.StatusApproved, models.StatusResolvedPendingConfirmation}
	extra := &repository.StatusExtra{ConfirmationToken: &token, ResolutionImageURL: evidenceURL}
	updated, err := l.Issues.UpdateStatus(ctx, id, from, models.StatusResolvedPendingConfirmation, extra)
	if errors.Is(err, repository.ErrConflict) {
		return nil, ErrInvalidRequest
	}
	if err != nil {
		return nil, err
	}

	acceptURL := fmt.Sprintf("%s/issue/%s/accept/%s", l.BaseURL, updated.PublicID, token)
	declineURL := fmt.Sprintf("%s/issue/%s/decline/%s", l.BaseURL, updated.PublicID, token)
	subject, body := resolutionMessage(updated, acceptURL, declineURL)
	return &TransitionResult{Issue: updated, NotifyErr: l.notifyOwner(ctx, updated, subject, body)}, nil
}

// ConfirmResolution processes the citizen's emailed accept/decline link.
// The token is the only proof of authorization and is consumed atomically
// with the status change, so a second invocation with the same token fails
// with ErrInvalidToken instead of silently repeating the transition.
func (l *Lifecycle) ConfirmResolution(ctx context.Context, publicID, token, response string) (*TransitionResult, error) {
	var to models.IssueStatus
	switch response {
	case ResponseAccept:
		to = models.StatusClosed
	case ResponseDecline:
		to = models.StatusPending
	default:
		return nil, ErrInvalidRequest
	}

	updated, err := l.Issues.ConsumeConfirmationToken(ctx, publicID, token, to)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if errors.Is(err, repository.ErrTokenMismatch) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	var notifyErr error
	if response == ResponseDecline && l.AdminEmail != "" {
		subject, body := declineNoticeMessage(updated)
		notifyErr = l.send(l.AdminEmail, subject, body)
	}
	return &TransitionResult{Issue: updated, NotifyErr: notifyErr}, nil
}

// SubmitFeedback attaches citizen-supplied evidence after a declined
// resolution and marks the confirmation as rejected. The status is not
// touched; the decline link already moved the issue back to pending.
func (l *Lifecycle) SubmitFeedback(ctx context.Context, publicID, note string, imageURL *string) (*models.Issue, error) {
	issue, err := l.Issues.AttachFeedback(ctx, publicID, note, imageURL)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return issue, nil
}

func (l *Lifecycle) notifyOwner(ctx context.Context, issue *models.Issue, subject, body string) error {
	owner, err := l.Users.FindByID(ctx, issue.CreatedBy)
	if err != nil {
		log.Printf("Owner lookup for notification failed (issue %s): %v", issue.PublicID, err)
		return fmt.Errorf("%w: %v", ErrNotification, err)
	}
	return l.send(owner.Email, subject, body)
}

func (l *Lifecycle) send(to, subject, body string) error {
	if l.Notifier == nil {
		return nil
	}
	if err := l.Notifier.Send(to, subject, body); err != nil {
		log.Printf("Notification to %s failed: %v", to, err)
		return fmt.Errorf("%w: %v", ErrNotification, err)
	}
	return nil
}
