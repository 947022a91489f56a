package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"civicfix-be/models"
	"civicfix-be/repository"
	"civicfix-be/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConfirmRouter(t *testing.T) (*gin.Engine, *repository.MemoryIssueRepository, *repository.MemoryUserRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	issues := repository.NewMemoryIssueRepository()
	users := repository.NewMemoryUserRepository()

	issueRepo = issues
	userRepo = users
	lifecycle = &services.Lifecycle{
		Issues:  issues,
		Users:   users,
		BaseURL: "http://localhost:8080",
	}

	r := gin.New()
	r.GET("/issue/:publicId/confirm", ConfirmResolutionPrompt)
	r.GET("/issue/:publicId/accept/:token", AcceptResolution)
	r.GET("/issue/:publicId/decline/:token", DeclineResolution)
	return r, issues, users
}

func seedResolvedIssue(t *testing.T, issues *repository.MemoryIssueRepository, users *repository.MemoryUserRepository, token string) *models.Issue {
	t.Helper()
	ctx := context.Background()

	reporter, err := users.Create(ctx, &models.User{
		Name:     "Asha Rao",
		Email:    "asha@example.com",
		Password: "hashed",
	})
	require.NoError(t, err)

	issue, err := issues.Create(ctx, &models.Issue{
		Title:       "Burst water pipe",
		Description: "Flooding the footpath",
		Category:    models.Water,
		Location:    "Ward 7",
		CreatedBy:   reporter.ID,
	})
	require.NoError(t, err)

	issue, err = issues.UpdateStatus(ctx, issue.ID, nil, models.StatusResolvedPendingConfirmation,
		&repository.StatusExtra{ConfirmationToken: &token})
	require.NoError(t, err)
	return issue
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body["error"]
}

func TestAcceptLinkClosesIssue(t *testing.T) {
	r, issues, users := newConfirmRouter(t)
	token := "deadbeefdeadbeefdeadbeefdeadbeef"
	issue := seedResolvedIssue(t, issues, users, token)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/issue/"+issue.PublicID+"/accept/"+token, nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	current, err := issues.FindByPublicID(context.Background(), issue.PublicID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, current.Status)
}

func TestDeclineLinkReopensIssue(t *testing.T) {
	r, issues, users := newConfirmRouter(t)
	token := "deadbeefdeadbeefdeadbeefdeadbeef"
	issue := seedResolvedIssue(t, issues, users, token)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/issue/"+issue.PublicID+"/decline/"+token, nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	current, err := issues.FindByPublicID(context.Background(), issue.PublicID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, current.Status)
}

// A wrong token, a replayed token and an unknown issue must all produce the
// exact same response, so the URL space leaks nothing about which issues or
// tokens exist.
func TestConfirmLinkFailuresAreIndistinguishable(t *testing.T) {
	r, issues, users := newConfirmRouter(t)
	token := "deadbeefdeadbeefdeadbeefdeadbeef"
	issue := seedResolvedIssue(t, issues, users, token)

	// Use the token once so the replay case exists.
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/issue/"+issue.PublicID+"/accept/"+token, nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	paths := []string{
		"/issue/" + issue.PublicID + "/accept/" + token,                            // replay
		"/issue/" + issue.PublicID + "/accept/00000000000000000000000000000000",    // wrong token
		"/issue/CIVunknown00/accept/" + token,                                      // unknown issue
	}

	for _, path := range paths {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code, path)
		assert.Equal(t, invalidLinkMessage, errorBody(t, w), path)
	}
}

func TestConfirmPromptValidatesResponse(t *testing.T) {
	r, _, _ := newConfirmRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/issue/CIVabc123xyz/confirm?response=maybe", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/issue/CIVabc123xyz/confirm?response=yes", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
