package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"civicfix-be/models"
	"civicfix-be/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryIssueRepository is a mutex-guarded in-memory IssueRepository with
// the same atomicity guarantees as the Mongo implementation. Services tests
// run against it.
type MemoryIssueRepository struct {
	mu     sync.Mutex
	issues map[primitive.ObjectID]*models.Issue
}

func NewMemoryIssueRepository() *MemoryIssueRepository {
	return &MemoryIssueRepository{issues: make(map[primitive.ObjectID]*models.Issue)}
}

func cloneIssue(issue *models.Issue) *models.Issue {
	copied := *issue
	if issue.ConfirmationToken != nil {
		token := *issue.ConfirmationToken
		copied.ConfirmationToken = &token
	}
	return &copied
}

func (r *MemoryIssueRepository) Create(ctx context.Context, issue *models.Issue) (*models.Issue, error) {
	if issue.Title == "" || issue.Description == "" || issue.Location == "" {
		return nil, ErrValidation
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if issue.ID.IsZero() {
		issue.ID = primitive.NewObjectID()
	}
	if issue.PublicID == "" {
		publicID, err := utils.NewIssuePublicID()
		if err != nil {
			return nil, err
		}
		issue.PublicID = publicID
	}
	if issue.Status == "" {
		issue.Status = models.StatusPending
	}
	issue.ConfirmationToken = nil
	now := time.Now()
	issue.CreatedAt = now
	issue.UpdatedAt = now

	r.issues[issue.ID] = cloneIssue(issue)
	return cloneIssue(issue), nil
}

func (r *MemoryIssueRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	issue, ok := r.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneIssue(issue), nil
}

func (r *MemoryIssueRepository) FindByPublicID(ctx context.Context, publicID string) (*models.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	issue := r.findByPublicIDLocked(publicID)
	if issue == nil {
		return nil, ErrNotFound
	}
	return cloneIssue(issue), nil
}

func (r *MemoryIssueRepository) findByPublicIDLocked(publicID string) *models.Issue {
	for _, issue := range r.issues {
		if issue.PublicID == publicID {
			return issue
		}
	}
	return nil
}

func (r *MemoryIssueRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, from []models.IssueStatus, to models.IssueStatus, extra *StatusExtra) (*models.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	issue, ok := r.issues[id]
	if !ok {
		return nil, ErrNotFound
	}

	if len(from) > 0 {
		matched := false
		for _, s := range from {
			if issue.Status == s {
				matched = true
				break
			}
		}
		if !matched {
			return nil, ErrConflict
		}
	}

	issue.Status = to
	if extra != nil {
		if extra.ConfirmationToken != nil {
			t := *extra.ConfirmationToken
			issue.ConfirmationToken = &t
		}
		if extra.ResolutionImageURL != nil {
			u := *extra.ResolutionImageURL
			issue.ResolutionImageURL = &u
		}
	}
	issue.UpdatedAt = time.Now()
	return cloneIssue(issue), nil
}

func (r *MemoryIssueRepository) ConsumeConfirmationToken(ctx context.Context, publicID, token string, to models.IssueStatus) (*models.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	issue := r.findByPublicIDLocked(publicID)
	if issue == nil {
		return nil, ErrNotFound
	}
	if issue.Status != models.StatusResolvedPendingConfirmation ||
		issue.ConfirmationToken == nil || *issue.ConfirmationToken != token {
		return nil, ErrTokenMismatch
	}

	issue.Status = to
	issue.ConfirmationToken = nil
	issue.UpdatedAt = time.Now()
	return cloneIssue(issue), nil
}

func (r *MemoryIssueRepository) AttachFeedback(ctx context.Context, publicID, note string, imageURL *string) (*models.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	issue := r.findByPublicIDLocked(publicID)
	if issue == nil {
		return nil, ErrNotFound
	}

	issue.UserConfirmation = models.ConfirmationRejected
	if note != "" {
		issue.FeedbackNote = note
	}
	if imageURL != nil {
		issue.FeedbackImageURL = imageURL
	}
	issue.UpdatedAt = time.Now()
	return cloneIssue(issue), nil
}

func (r *MemoryIssueRepository) Update(ctx context.Context, id primitive.ObjectID, upd IssueUpdate) (*models.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	issue, ok := r.issues[id]
	if !ok {
		return nil, ErrNotFound
	}

	if upd.Title != nil {
		issue.Title = *upd.Title
	}
	if upd.Description != nil {
		issue.Description = *upd.Description
	}
	if upd.Category != nil {
		issue.Category = *upd.Category
	}
	if upd.Location != nil {
		issue.Location = *upd.Location
	}
	if upd.ImageURL != nil {
		issue.ImageURL = upd.ImageURL
	}
	if upd.Latitude != nil {
		issue.Latitude = upd.Latitude
	}
	if upd.Longitude != nil {
		issue.Longitude = upd.Longitude
	}
	issue.UpdatedAt = time.Now()
	return cloneIssue(issue), nil
}

func (r *MemoryIssueRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.issues[id]; !ok {
		return ErrNotFound
	}
	delete(r.issues, id)
	return nil
}

func (r *MemoryIssueRepository) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var issues []models.Issue
	for _, issue := range r.issues {
		if issue.CreatedBy == ownerID {
			issues = append(issues, *cloneIssue(issue))
		}
	}
	return issues, nil
}

func (r *MemoryIssueRepository) ListAll(ctx context.Context, filter IssueFilter, sortBy string, page, limit int) (*IssueList, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []models.Issue
	for _, issue := range r.issues {
		if filter.Category != "" && filter.Category != "all" && string(issue.Category) != filter.Category {
			continue
		}
		if filter.Status != "" && filter.Status != "all" && string(issue.Status) != filter.Status {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(issue.Title), needle) &&
				!strings.Contains(strings.ToLower(issue.Description), needle) {
				continue
			}
		}
		matched = append(matched, *cloneIssue(issue))
	}

	sort.Slice(matched, func(i, j int) bool {
		if sortBy == "oldest" {
			return matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	return &IssueList{Issues: matched[start:end], Total: total}, nil
}

// MemoryUserRepository is a mutex-guarded in-memory UserRepository.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[primitive.ObjectID]*models.User)}
}

func (r *MemoryUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == user.Email {
			return nil, ErrDuplicateEmail
		}
	}

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.PublicID == "" {
		publicID, err := utils.NewUserPublicID()
		if err != nil {
			return nil, err
		}
		user.PublicID = publicID
	}
	if user.Role == "" {
		user.Role = models.RoleCitizen
	}
	if user.ProfilePic == "" {
		user.ProfilePic = models.DefaultProfilePic
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	copied := *user
	r.users[user.ID] = &copied
	result := copied
	return &result, nil
}

func (r *MemoryUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryUserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *MemoryUserRepository) FindByPublicID(ctx context.Context, publicID string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, user := range r.users {
		if user.PublicID == publicID {
			copied := *user
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryUserRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, upd ProfileUpdate) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}

	if upd.Name != nil {
		user.Name = *upd.Name
	}
	if upd.Phone != nil {
		user.Phone = *upd.Phone
	}
	if upd.Address != nil {
		user.Address = *upd.Address
	}
	if upd.ProfilePic != nil {
		user.ProfilePic = *upd.ProfilePic
	}
	user.UpdatedAt = time.Now()

	copied := *user
	return &copied, nil
}
