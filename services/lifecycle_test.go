package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"

	"civicfix-be/models"
	"civicfix-be/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type sentMail struct {
	To      string
	Subject string
	Body    string
}

// fakeNotifier records sends; set fail to simulate a mail outage.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	fail bool
}

func (f *fakeNotifier) Send(to, subject, htmlBody string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("smtp connection refused")
	}
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeNotifier) last() sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1]
}

type lifecycleFixture struct {
	lc       *Lifecycle
	issues   *repository.MemoryIssueRepository
	users    *repository.MemoryUserRepository
	notifier *fakeNotifier
	admin    Caller
	citizen  Caller
	reporter *models.User
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	issues := repository.NewMemoryIssueRepository()
	users := repository.NewMemoryUserRepository()
	notifier := &fakeNotifier{}

	reporter, err := users.Create(context.Background(), &models.User{
		Name:     "Asha Rao",
		Email:    "asha@example.com",
		Password: "hashed",
	})
	require.NoError(t, err)

	return &lifecycleFixture{
		lc: &Lifecycle{
			Issues:     issues,
			Users:      users,
			Notifier:   notifier,
			BaseURL:    "https://civicfix.example.com",
			AdminEmail: "admin@civicfix.example.com",
		},
		issues:   issues,
		users:    users,
		notifier: notifier,
		admin:    Caller{ID: primitive.NewObjectID(), Role: models.RoleAdmin},
		citizen:  Caller{ID: reporter.ID, Role: models.RoleCitizen},
		reporter: reporter,
	}
}

func (f *lifecycleFixture) seedIssue(t *testing.T, status models.IssueStatus) *models.Issue {
	t.Helper()

	issue, err := f.issues.Create(context.Background(), &models.Issue{
		Title:       "Broken streetlight on Elm Road",
		Description: "The light at the corner has been out for a week",
		Category:    models.Electricity,
		Location:    "Elm Road, Ward 12",
		CreatedBy:   f.reporter.ID,
	})
	require.NoError(t, err)

	if status != models.StatusPending {
		issue, err = f.issues.UpdateStatus(context.Background(), issue.ID, nil, status, nil)
		require.NoError(t, err)
	}
	return issue
}

// resolve is a helper that walks a pending issue through approval and
// resolution, returning the minted token from the sent mail.
func (f *lifecycleFixture) resolveIssue(t *testing.T, issue *models.Issue) string {
	t.Helper()
	ctx := context.Background()

	_, err := f.lc.Approve(ctx, issue.ID, f.admin)
	require.NoError(t, err)
	result, err := f.lc.Resolve(ctx, issue.ID, f.admin, nil)
	require.NoError(t, err)
	require.NotNil(t, result.Issue.ConfirmationToken)
	return *result.Issue.ConfirmationToken
}

func TestApproveRequiresAdmin(t *testing.T) {
	f := newLifecycleFixture(t)
	issue := f.seedIssue(t, models.StatusPending)

	_, err := f.lc.Approve(context.Background(), issue.ID, f.citizen)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	// The failed call must not have touched the issue.
	current, err := f.issues.FindByID(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, current.Status)
	assert.Zero(t, f.notifier.count())
}

func TestApproveUnknownIssue(t *testing.T) {
	f := newLifecycleFixture(t)

	_, err := f.lc.Approve(context.Background(), primitive.NewObjectID(), f.admin)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApproveNotifiesReporterOnce(t *testing.T) {
	f := newLifecycleFixture(t)
	issue := f.seedIssue(t, models.StatusPending)
	ctx := context.Background()

	result, err := f.lc.Approve(ctx, issue.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, result.Issue.Status)
	assert.NoError(t, result.NotifyErr)

	require.Equal(t, 1, f.notifier.count())
	mail := f.notifier.last()
	assert.Equal(t, f.reporter.Email, mail.To)
	assert.Contains(t, mail.Subject, issue.PublicID)
	assert.Contains(t, mail.Subject, "approved")

	// Re-approving is a no-op: same state back, no second mail.
	again, err := f.lc.Approve(ctx, issue.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, again.Issue.Status)
	assert.Equal(t, 1, f.notifier.count())
}

func TestRejectFromPending(t *testing.T) {
	f := newLifecycleFixture(t)
	issue := f.seedIssue(t, models.StatusPending)

	result, err := f.lc.Reject(context.Background(), issue.ID, f.admin)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, result.Issue.Status)

	require.Equal(t, 1, f.notifier.count())
	assert.Contains(t, f.notifier.last().Subject, "rejected")
}

func TestReviewFromWrongStatus(t *testing.T) {
	f := newLifecycleFixture(t)
	issue := f.seedIssue(t, models.StatusClosed)

	_, err := f.lc.Approve(context.Background(), issue.ID, f.admin)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = f.lc.Reject(context.Background(), issue.ID, f.admin)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestResolveMintsTokenAndMailsBothLinks(t *testing.T) {
	f := newLifecycleFixture(t)
	issue := f.seedIssue(t, models.StatusApproved)

	result, err := f.lc.Resolve(context.Background(), issue.ID, f.admin, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolvedPendingConfirmation, result.Issue.Status)

	require.NotNil(t, result.Issue.ConfirmationToken)
	token := *result.Issue.ConfirmationToken
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{32}$`), token)

	require.Equal(t, 1, f.notifier.count())
	mail := f.notifier.last()
	assert.Equal(t, f.reporter.Email, mail.To)
	assert.Contains(t, mail.Body, "https://civicfix.example.com/issue/"+issue.PublicID+"/accept/"+token)
	assert.Contains(t, mail.Body, "https://civicfix.example.com/issue/"+issue.PublicID+"/decline/"+token)
}

func TestResolveRequiresApproved(t *testing.T) {
	f := newLifecycleFixture(t)
	issue := f.seedIssue(t, models.StatusPending)

	_, err := f.lc.Resolve(context.Background(), issue.ID, f.admin, nil)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	current, ferr := f.issues.FindByID(context.Background(), issue.ID)
	require.NoError(t, ferr)
	assert.Equal(t, models.StatusPending, current.Status)
	assert.Nil(t, current.ConfirmationToken)
}

func TestResolveRequiresAdmin(t *testing.T) {
	f := newLifecycleFixture(t)
	issue := f.seedIssue(t, models.StatusApproved)

	_, err := f.lc.Resolve(context.Background(), issue.ID, f.citizen, nil)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestReResolveReplacesToken(t *testing.T) {
	f := newLifecycleFixture(t)
	issue := f.seedIssue(t, models.StatusApproved)
	ctx := context.Background()

	first, err := f.lc.Resolve(ctx, issue.ID, f.admin, nil)
	require.NoError(t, err)
	second, err := f.lc.Resolve(ctx, issue.ID, f.admin, nil)
	require.NoError(t, err)

	oldToken := *first.Issue.ConfirmationToken
	newToken := *second.Issue.ConfirmationToken
	assert.NotEqual(t, oldToken, newToken)

	// The superseded link is dead.
	_, err = f.lc.ConfirmResolution(ctx, issue.PublicID, oldToken, ResponseAccept)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// The fresh one still works.
	result, err := f.lc.ConfirmResolution(ctx, issue.PublicID, newToken, ResponseAccept)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, result.Issue.Status)
}

func TestResolveStoresEvidenceURL(t *testing.T) {
	f := newLifecycleFixture(t)
	issue := f.seedIssue(t, models.StatusApproved)
	evidence := "https://cdn.example.com/resolutions/abc.jpg"

	result, err := f.lc.Resolve(context.Background(), issue.ID, f.admin, &evidence)
	require.NoError(t, err)
	require.NotNil(t, result.Issue.ResolutionImageURL)
	assert.Equal(t, evidence, *result.Issue.ResolutionImageURL)
}

func TestAcceptClosesIssueAndConsumesToken(t *testing.T) {
	f := newLifecycleFixture(t)
	issue := f.seedIssue(t, models.StatusPending)
	token := f.resolveIssue(t, issue)
	ctx := context.Background()

	result, err := f.lc.ConfirmResolution(ctx, issue.PublicID, token, ResponseAccept)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, result.Issue.Status)
	assert.Nil(t, result.Issue.ConfirmationToken)

	// Replaying the consumed link must fail, not silently close again.
	_, err = f.lc.ConfirmResolution(ctx, issue.PublicID, token, ResponseAccept)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDeclineReopensAndNotifiesAdmin(t *testing.T) {
	f := newLifecycleFixture(t)
	issue := f.seedIssue(t, models.StatusPending)
	token := f.resolveIssue(t, issue)
	ctx := context.Background()

	before := f.notifier.count()
	result, err := f.lc.ConfirmResolution(ctx, issue.PublicID, token, ResponseDecline)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, result.Issue.Status)
	assert.Nil(t, result.Issue.ConfirmationToken)
	assert.NoError(t, result.NotifyErr)

	require.Equal(t, before+1, f.notifier.count())
	mail := f.notifier.last()
	assert.Equal(t, "admin@civicfix.example.com", mail.To)
	assert.Contains(t, mail.Subject, issue.PublicID)
}

func TestDeclinedIssueCanBeResolvedAgainWithFreshToken(t *testing.T) {
	f := newLifecycleFixture(t)
	issue := f.seedIssue(t, models.StatusPending)
	firstToken := f.resolveIssue(t, issue)
	ctx := context.Background()

	_, err := f.lc.ConfirmResolution(ctx, issue.PublicID, firstToken, ResponseDecline)
	require.NoError(t, err)

	// Full second round: approve again, resolve again.
	secondToken := f.resolveIssue(t, issue)
	assert.NotEqual(t, firstToken, secondToken)

	// The old token died with the decline.
	_, err = f.lc.ConfirmResolution(ctx, issue.PublicID, firstToken, ResponseAccept)
	assert.ErrorIs(t, err, ErrInvalidToken)

	result, err := f.lc.ConfirmResolution(ctx, issue.PublicID, secondToken, ResponseAccept)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, result.Issue.Status)
}

func TestConfirmResolutionUnknownIssue(t *testing.T) {
	f := newLifecycleFixture(t)

	_, err := f.lc.ConfirmResolution(context.Background(), "CIV000000000", "deadbeefdeadbeefdeadbeefdeadbeef", ResponseAccept)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmResolutionWrongToken(t *testing.T) {
	f := newLifecycleFixture(t)
	issue := f.seedIssue(t, models.StatusPending)
	token := f.resolveIssue(t, issue)

	wrong := strings.Repeat("0", len(token))
	_, err := f.lc.ConfirmResolution(context.Background(), issue.PublicID, wrong, ResponseAccept)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// The real token is still live after a failed guess.
	result, err := f.lc.ConfirmResolution(context.Background(), issue.PublicID, token, ResponseAccept)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, result.Issue.Status)
}

func TestConfirmResolutionBadResponse(t *testing.T) {
	f := newLifecycleFixture(t)
	issue := f.seedIssue(t, models.StatusPending)
	token := f.resolveIssue(t, issue)

	_, err := f.lc.ConfirmResolution(context.Background(), issue.PublicID, token, "maybe")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	// A bad response must not have consumed the token.
	current, ferr := f.issues.FindByPublicID(context.Background(), issue.PublicID)
	require.NoError(t, ferr)
	assert.Equal(t, models.StatusResolvedPendingConfirmation, current.Status)
}

func TestConcurrentConfirmExactlyOneWins(t *testing.T) {
	f := newLifecycleFixture(t)
	issue := f.seedIssue(t, models.StatusPending)
	token := f.resolveIssue(t, issue)

	const attempts = 8
	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.lc.ConfirmResolution(context.Background(), issue.PublicID, token, ResponseAccept)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrInvalidToken)
		}
	}
	assert.Equal(t, 1, succeeded)

	current, err := f.issues.FindByPublicID(context.Background(), issue.PublicID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, current.Status)
}

func TestNotificationFailureDoesNotRevertTransition(t *testing.T) {
	f := newLifecycleFixture(t)
	issue := f.seedIssue(t, models.StatusPending)
	f.notifier.fail = true

	result, err := f.lc.Approve(context.Background(), issue.ID, f.admin)
	require.NoError(t, err)
	assert.ErrorIs(t, result.NotifyErr, ErrNotification)

	current, err := f.issues.FindByID(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, current.Status)
}

func TestSubmitFeedback(t *testing.T) {
	f := newLifecycleFixture(t)
	issue := f.seedIssue(t, models.StatusPending)
	token := f.resolveIssue(t, issue)
	ctx := context.Background()

	_, err := f.lc.ConfirmResolution(ctx, issue.PublicID, token, ResponseDecline)
	require.NoError(t, err)

	imageURL := "https://cdn.example.com/feedback/xyz.jpg"
	updated, err := f.lc.SubmitFeedback(ctx, issue.PublicID, "Light is still flickering at night", &imageURL)
	require.NoError(t, err)
	assert.Equal(t, models.ConfirmationRejected, updated.UserConfirmation)
	assert.Equal(t, "Light is still flickering at night", updated.FeedbackNote)
	require.NotNil(t, updated.FeedbackImageURL)
	assert.Equal(t, imageURL, *updated.FeedbackImageURL)

	// Feedback never touches the workflow status.
	assert.Equal(t, models.StatusPending, updated.Status)
}

func TestSubmitFeedbackUnknownIssue(t *testing.T) {
	f := newLifecycleFixture(t)

	_, err := f.lc.SubmitFeedback(context.Background(), "CIV999999999", "note", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}
