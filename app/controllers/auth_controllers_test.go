package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/dukaan/app/models"
	"github.com/shashiranjanraj/dukaan/app/repositories"
	"github.com/shashiranjanraj/dukaan/app/services"
	"github.com/shashiranjanraj/dukaan/pkg/event"
)

type fakeUsers struct {
	byID    map[primitive.ObjectID]*models.User
	byEmail map[string]*models.User
	deletes int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		byID:    map[primitive.ObjectID]*models.User{},
		byEmail: map[string]*models.User{},
	}
}

func (s *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	u, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *fakeUsers) Create(_ context.Context, user *models.User) error {
	if _, taken := s.byEmail[user.Email]; taken {
		return repositories.ErrDuplicateEmail
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.Role == "" {
		user.Role = models.RoleSubscriber
	}
	cp := *user
	s.byID[user.ID] = &cp
	s.byEmail[user.Email] = &cp
	return nil
}

func (s *fakeUsers) Save(_ context.Context, user *models.User) error {
	if _, ok := s.byID[user.ID]; !ok {
		return repositories.ErrNotFound
	}
	cp := *user
	s.byID[user.ID] = &cp
	s.byEmail[user.Email] = &cp
	return nil
}

func (s *fakeUsers) SetResetLink(_ context.Context, id primitive.ObjectID, token string) error {
	u, ok := s.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.ResetLink = token
	return nil
}

func (s *fakeUsers) Delete(_ context.Context, id primitive.ObjectID) error {
	u, ok := s.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	s.deletes++
	delete(s.byEmail, u.Email)
	delete(s.byID, id)
	return nil
}

func postJSON(t *testing.T, handler http.HandlerFunc, payload string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

// ─── register ────────────────────────────────────────────────────────────────

func TestRegisterCreatesSubscriber(t *testing.T) {
	users := newFakeUsers()
	c := NewAuthController(users)

	rec := postJSON(t, c.Register, `{"name":"Asha","email":"Asha@Example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	stored, err := users.FindByEmail(context.Background(), "asha@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.RoleSubscriber, stored.Role)
	assert.True(t, stored.Authenticate("secret1"))

	// digest and salt never leave the server
	assert.NotContains(t, rec.Body.String(), "hashed_password")
	assert.NotContains(t, rec.Body.String(), "salt")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	users := newFakeUsers()
	c := NewAuthController(users)

	rec := postJSON(t, c.Register, `{"name":"Asha","email":"asha@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, c.Register, `{"name":"Other","email":"asha@example.com","password":"secret2"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email is taken", errBody(t, rec))
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	users := newFakeUsers()
	c := NewAuthController(users)

	rec := postJSON(t, c.Register, `{"name":"Asha","email":"asha@example.com","password":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, users.byID)
}

// ─── login ───────────────────────────────────────────────────────────────────

func TestLoginRoundTrip(t *testing.T) {
	users := newFakeUsers()
	c := NewAuthController(users)

	rec := postJSON(t, c.Register, `{"name":"Asha","email":"asha@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, c.Login, `{"email":"asha@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.NotEmpty(t, got.Token)
	assert.Equal(t, "asha@example.com", got.User.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	users := newFakeUsers()
	c := NewAuthController(users)

	rec := postJSON(t, c.Register, `{"name":"Asha","email":"asha@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, c.Login, `{"email":"asha@example.com","password":"wrong-one"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginUnknownEmail(t *testing.T) {
	c := NewAuthController(newFakeUsers())
	rec := postJSON(t, c.Login, `{"email":"ghost@example.com","password":"whatever"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// ─── profile ─────────────────────────────────────────────────────────────────

func seedUser(t *testing.T, users *fakeUsers, email, password string) *models.User {
	t.Helper()
	u := &models.User{Name: "Seed", Email: email}
	u.SetPassword(password)
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func TestProfileRequiresIdentity(t *testing.T) {
	c := NewAuthController(newFakeUsers())
	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	rec := httptest.NewRecorder()
	c.Profile(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateProfileKeepsPasswordWhenAbsent(t *testing.T) {
	users := newFakeUsers()
	c := NewAuthController(users)
	u := seedUser(t, users, "asha@example.com", "secret1")

	req := httptest.NewRequest(http.MethodPut, "/api/profile", strings.NewReader(`{"name":"Asha R"}`))
	req.Header.Set("Content-Type", "application/json")
	req = withIdentity(req, u.ID, models.RoleSubscriber)
	rec := httptest.NewRecorder()
	c.UpdateProfile(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stored := users.byID[u.ID]
	assert.Equal(t, "Asha R", stored.Name)
	assert.True(t, stored.Authenticate("secret1"), "password stays valid when not submitted")
}

// ─── account delete ──────────────────────────────────────────────────────────

func TestDeleteFiresUserDeletedEvent(t *testing.T) {
	users := newFakeUsers()
	c := NewAuthController(users)
	u := seedUser(t, users, "asha@example.com", "secret1")

	var fired []string
	event.Listen(services.EventUserDeleted, func(payload interface{}) {
		if id, ok := payload.(string); ok {
			fired = append(fired, id)
		}
	})

	req := httptest.NewRequest(http.MethodDelete, "/api/profile", nil)
	req = withIdentity(req, u.ID, models.RoleSubscriber)
	rec := httptest.NewRecorder()
	c.Delete(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, users.deletes)
	assert.Equal(t, []string{u.ID.Hex()}, fired)
}

// ─── password reset ──────────────────────────────────────────────────────────

func TestForgotPasswordUnknownEmailStaysQuiet(t *testing.T) {
	c := NewAuthController(newFakeUsers())
	rec := postJSON(t, c.ForgotPassword, `{"email":"ghost@example.com"}`)

	// same success answer whether or not the account exists
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "resetPasswordLink")
}

func TestPasswordResetRoundTrip(t *testing.T) {
	users := newFakeUsers()
	c := NewAuthController(users)
	u := seedUser(t, users, "asha@example.com", "secret1")

	rec := postJSON(t, c.ForgotPassword, `{"email":"asha@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var forgot struct {
		Token string `json:"resetPasswordLink"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &forgot))
	require.NotEmpty(t, forgot.Token)
	assert.Equal(t, forgot.Token, users.byID[u.ID].ResetLink)

	payload, err := json.Marshal(map[string]string{
		"resetPasswordLink": forgot.Token,
		"newPassword":       "freshsecret",
	})
	require.NoError(t, err)
	rec = postJSON(t, c.ResetPassword, string(payload))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored := users.byID[u.ID]
	assert.True(t, stored.Authenticate("freshsecret"))
	assert.False(t, stored.Authenticate("secret1"))
	assert.Empty(t, stored.ResetLink, "token is single-use")
}

func TestResetPasswordRejectsGarbageToken(t *testing.T) {
	c := NewAuthController(newFakeUsers())
	rec := postJSON(t, c.ResetPassword, `{"resetPasswordLink":"not-a-token","newPassword":"freshsecret"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid or expired reset link", errBody(t, rec))
}
