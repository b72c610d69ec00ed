package backendtest

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naveenspark/issuetrack/pkg/client"
	"github.com/naveenspark/issuetrack/pkg/domain"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type tokenFunc func() string

func (f tokenFunc) AccessToken() string { return f() }

func TestSignupConfirmationFlow(t *testing.T) {
	srv := New(t, WithConfirmation())
	c := srv.Client()
	ctx := context.Background()

	require.NoError(t, c.SignUp(ctx, "new@example.com", "hunter22"))

	err := c.SignUp(ctx, "new@example.com", "hunter22")
	require.Error(t, err)
	assert.Equal(t, "User already registered", domain.ServiceMessage(err))

	_, err = c.SignInWithPassword(ctx, "new@example.com", "hunter22")
	require.Error(t, err)
	assert.Equal(t, "Email not confirmed", domain.ServiceMessage(err))

	srv.Confirm("new@example.com")
	s, err := c.SignInWithPassword(ctx, "new@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", s.User.Email)
	assert.NotEmpty(t, s.RefreshToken)
}

func TestSignupWeakPassword(t *testing.T) {
	srv := New(t)
	err := srv.Client().SignUp(context.Background(), "a@b.co", "123")
	require.Error(t, err)
	assert.True(t, client.IsStatus(err, http.StatusUnprocessableEntity))
	assert.Contains(t, domain.ServiceMessage(err), "at least 6 characters")
}

func TestRefreshRotatesToken(t *testing.T) {
	srv := New(t)
	srv.AddUser("a@b.co", "secret1")
	c := srv.Client()
	ctx := context.Background()

	s, err := c.SignInWithPassword(ctx, "a@b.co", "secret1")
	require.NoError(t, err)

	next, err := c.RefreshSession(ctx, s.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, s.RefreshToken, next.RefreshToken)

	_, err = c.RefreshSession(ctx, s.RefreshToken)
	require.Error(t, err, "refresh tokens are single use")
	assert.True(t, client.IsStatus(err, http.StatusBadRequest))
}

func TestLogoutInvalidatesSession(t *testing.T) {
	srv := New(t)
	srv.AddUser("a@b.co", "secret1")
	c := srv.Client()
	ctx := context.Background()

	s, err := c.SignInWithPassword(ctx, "a@b.co", "secret1")
	require.NoError(t, err)
	_, err = c.GetUser(ctx, s.AccessToken)
	require.NoError(t, err)

	require.NoError(t, c.SignOut(ctx, s.AccessToken))

	_, err = c.GetUser(ctx, s.AccessToken)
	assert.True(t, client.IsStatus(err, http.StatusForbidden))
	_, err = c.RefreshSession(ctx, s.RefreshToken)
	assert.Error(t, err)
	assert.Equal(t, 1, srv.Calls(RouteLogout))
}

func TestExpiredAccessToken(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := &fakeClock{t: now}
	srv := New(t, WithClock(clock.Now), WithAccessTTL(time.Minute))
	uid := srv.AddUser("a@b.co", "secret1")
	c := srv.Client()
	ctx := context.Background()

	s, err := c.SignInWithPassword(ctx, "a@b.co", "secret1")
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(time.Minute), s.ExpiresAt, 0)

	clock.Set(now.Add(2 * time.Minute))

	_, err = c.WithTokenSource(tokenFunc(func() string { return s.AccessToken })).ListIssues(ctx, uid)
	require.Error(t, err)
	assert.True(t, client.IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, "JWT expired", domain.ServiceMessage(err))
}

func TestIssuesRowPolicyAndOrder(t *testing.T) {
	srv := New(t)
	alice := srv.AddUser("alice@example.com", "secret1")
	bob := srv.AddUser("bob@example.com", "secret1")
	srv.AddIssue(domain.Issue{UserID: bob, Title: "bob's"})
	ctx := context.Background()

	s, err := srv.Client().SignInWithPassword(ctx, "alice@example.com", "secret1")
	require.NoError(t, err)
	c := srv.Client().WithTokenSource(tokenFunc(func() string { return s.AccessToken }))

	require.NoError(t, c.InsertIssue(ctx, domain.NewIssue{UserID: alice, Title: "first", Status: domain.StatusOpen}))
	require.NoError(t, c.InsertIssue(ctx, domain.NewIssue{UserID: alice, Title: "second", Status: domain.StatusClosed}))

	err = c.InsertIssue(ctx, domain.NewIssue{UserID: bob, Title: "sneaky", Status: domain.StatusOpen})
	require.Error(t, err)
	assert.True(t, client.IsStatus(err, http.StatusForbidden))

	err = c.InsertIssue(ctx, domain.NewIssue{UserID: alice, Title: "bad", Status: "Later"})
	assert.True(t, client.IsStatus(err, http.StatusBadRequest))

	// Asking for bob's rows yields nothing under alice's token.
	rows, err := c.ListIssues(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, rows)

	rows, err = c.ListIssues(ctx, alice)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "second", rows[0].Title)
	assert.Equal(t, "first", rows[1].Title)

	bobs := srv.Issues(bob)
	require.Len(t, bobs, 1)
	require.NoError(t, c.DeleteIssue(ctx, bobs[0].ID))
	assert.Len(t, srv.Issues(bob), 1, "policy hides other users' rows from delete")

	require.NoError(t, c.UpdateIssueStatus(ctx, rows[1].ID, domain.StatusInProgress))
	require.NoError(t, c.DeleteIssue(ctx, rows[0].ID))
	left := srv.Issues(alice)
	require.Len(t, left, 1)
	assert.Equal(t, domain.StatusInProgress, left[0].Status)
}

func TestFailNext(t *testing.T) {
	srv := New(t)
	uid := srv.AddUser("a@b.co", "secret1")
	ctx := context.Background()
	s, err := srv.Client().SignInWithPassword(ctx, "a@b.co", "secret1")
	require.NoError(t, err)
	c := srv.Client().WithTokenSource(tokenFunc(func() string { return s.AccessToken }))

	srv.FailNext(RouteList, http.StatusServiceUnavailable, "upstream down")
	_, err = c.ListIssues(ctx, uid)
	require.Error(t, err)
	assert.Equal(t, "upstream down", domain.ServiceMessage(err))

	_, err = c.ListIssues(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, 2, srv.Calls(RouteList))
}

func TestRequiresAPIKey(t *testing.T) {
	srv := New(t)
	err := client.New(srv.URL, "wrong").SignUp(context.Background(), "a@b.co", "secret1")
	assert.True(t, client.IsStatus(err, http.StatusUnauthorized))
	assert.Equal(t, "Invalid API key", domain.ServiceMessage(err))
}

func TestRevokeSessions(t *testing.T) {
	srv := New(t)
	uid := srv.AddUser("a@b.co", "secret1")
	c := srv.Client()
	ctx := context.Background()
	s, err := c.SignInWithPassword(ctx, "a@b.co", "secret1")
	require.NoError(t, err)

	srv.RevokeSessions(uid)

	_, err = c.RefreshSession(ctx, s.RefreshToken)
	assert.Error(t, err)
	_, err = c.GetUser(ctx, s.AccessToken)
	assert.True(t, client.IsStatus(err, http.StatusForbidden))
	assert.NotEqual(t, uuid.Nil, uid)
}
