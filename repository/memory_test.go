package repository

import (
	"context"
	"sync"
	"testing"

	"civicfix-be/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func seedIssue(t *testing.T, r *MemoryIssueRepository, title string) *models.Issue {
	t.Helper()
	issue, err := r.Create(context.Background(), &models.Issue{
		Title:       title,
		Description: "description of " + title,
		Category:    models.Road,
		Location:    "Ward 4",
		CreatedBy:   primitive.NewObjectID(),
	})
	require.NoError(t, err)
	return issue
}

func TestCreateAssignsDefaults(t *testing.T) {
	r := NewMemoryIssueRepository()

	issue := seedIssue(t, r, "Blocked drain")
	assert.False(t, issue.ID.IsZero())
	assert.Regexp(t, `^CIV`, issue.PublicID)
	assert.Equal(t, models.StatusPending, issue.Status)
	assert.False(t, issue.CreatedAt.IsZero())
}

func TestCreateValidation(t *testing.T) {
	r := NewMemoryIssueRepository()

	_, err := r.Create(context.Background(), &models.Issue{Title: "no description"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateStatusPrecondition(t *testing.T) {
	r := NewMemoryIssueRepository()
	ctx := context.Background()
	issue := seedIssue(t, r, "Blocked drain")

	updated, err := r.UpdateStatus(ctx, issue.ID, []models.IssueStatus{models.StatusPending}, models.StatusApproved, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, updated.Status)

	// Precondition no longer holds.
	_, err = r.UpdateStatus(ctx, issue.ID, []models.IssueStatus{models.StatusPending}, models.StatusRejected, nil)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = r.UpdateStatus(ctx, primitive.NewObjectID(), []models.IssueStatus{models.StatusPending}, models.StatusApproved, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatusWritesExtraAtomically(t *testing.T) {
	r := NewMemoryIssueRepository()
	ctx := context.Background()
	issue := seedIssue(t, r, "Blocked drain")

	token := "deadbeefdeadbeefdeadbeefdeadbeef"
	evidence := "https://cdn.example.com/r/1.jpg"
	updated, err := r.UpdateStatus(ctx, issue.ID, nil, models.StatusResolvedPendingConfirmation,
		&StatusExtra{ConfirmationToken: &token, ResolutionImageURL: &evidence})
	require.NoError(t, err)

	require.NotNil(t, updated.ConfirmationToken)
	assert.Equal(t, token, *updated.ConfirmationToken)
	require.NotNil(t, updated.ResolutionImageURL)
	assert.Equal(t, evidence, *updated.ResolutionImageURL)
}

func TestConsumeConfirmationTokenSingleUse(t *testing.T) {
	r := NewMemoryIssueRepository()
	ctx := context.Background()
	issue := seedIssue(t, r, "Blocked drain")

	token := "deadbeefdeadbeefdeadbeefdeadbeef"
	_, err := r.UpdateStatus(ctx, issue.ID, nil, models.StatusResolvedPendingConfirmation,
		&StatusExtra{ConfirmationToken: &token})
	require.NoError(t, err)

	updated, err := r.ConsumeConfirmationToken(ctx, issue.PublicID, token, models.StatusClosed)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, updated.Status)
	assert.Nil(t, updated.ConfirmationToken)

	_, err = r.ConsumeConfirmationToken(ctx, issue.PublicID, token, models.StatusClosed)
	assert.ErrorIs(t, err, ErrTokenMismatch)
}

func TestConsumeConfirmationTokenMismatch(t *testing.T) {
	r := NewMemoryIssueRepository()
	ctx := context.Background()
	issue := seedIssue(t, r, "Blocked drain")

	token := "deadbeefdeadbeefdeadbeefdeadbeef"
	_, err := r.UpdateStatus(ctx, issue.ID, nil, models.StatusResolvedPendingConfirmation,
		&StatusExtra{ConfirmationToken: &token})
	require.NoError(t, err)

	_, err = r.ConsumeConfirmationToken(ctx, issue.PublicID, "00000000000000000000000000000000", models.StatusClosed)
	assert.ErrorIs(t, err, ErrTokenMismatch)

	_, err = r.ConsumeConfirmationToken(ctx, "CIVunknown00", token, models.StatusClosed)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConsumeConfirmationTokenConcurrent(t *testing.T) {
	r := NewMemoryIssueRepository()
	ctx := context.Background()
	issue := seedIssue(t, r, "Blocked drain")

	token := "deadbeefdeadbeefdeadbeefdeadbeef"
	_, err := r.UpdateStatus(ctx, issue.ID, nil, models.StatusResolvedPendingConfirmation,
		&StatusExtra{ConfirmationToken: &token})
	require.NoError(t, err)

	const attempts = 16
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = r.ConsumeConfirmationToken(ctx, issue.PublicID, token, models.StatusClosed)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestListAllFilterAndPagination(t *testing.T) {
	r := NewMemoryIssueRepository()
	ctx := context.Background()

	seedIssue(t, r, "Pothole on main road")
	seedIssue(t, r, "Streetlight flickering")
	water := seedIssue(t, r, "Water pipe burst")
	_, err := r.UpdateStatus(ctx, water.ID, nil, models.StatusApproved, nil)
	require.NoError(t, err)

	list, err := r.ListAll(ctx, IssueFilter{}, "newest", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), list.Total)
	assert.Len(t, list.Issues, 2)

	list, err = r.ListAll(ctx, IssueFilter{Status: string(models.StatusApproved)}, "newest", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), list.Total)

	list, err = r.ListAll(ctx, IssueFilter{Search: "pothole"}, "newest", 1, 10)
	require.NoError(t, err)
	require.Len(t, list.Issues, 1)
	assert.Equal(t, "Pothole on main road", list.Issues[0].Title)
}

func TestFindReturnsACopy(t *testing.T) {
	r := NewMemoryIssueRepository()
	ctx := context.Background()
	issue := seedIssue(t, r, "Blocked drain")

	got, err := r.FindByID(ctx, issue.ID)
	require.NoError(t, err)
	got.Title = "mutated by caller"

	again, err := r.FindByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blocked drain", again.Title)
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	r := NewMemoryUserRepository()
	ctx := context.Background()

	_, err := r.Create(ctx, &models.User{Name: "Asha", Email: "asha@example.com", Password: "x"})
	require.NoError(t, err)

	_, err = r.Create(ctx, &models.User{Name: "Imposter", Email: "asha@example.com", Password: "y"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestUserCreateAssignsDefaults(t *testing.T) {
	r := NewMemoryUserRepository()

	user, err := r.Create(context.Background(), &models.User{Name: "Asha", Email: "asha@example.com", Password: "x"})
	require.NoError(t, err)

	assert.Regexp(t, `^CFU`, user.PublicID)
	assert.Equal(t, models.RoleCitizen, user.Role)
	assert.Equal(t, models.DefaultProfilePic, user.ProfilePic)
}
