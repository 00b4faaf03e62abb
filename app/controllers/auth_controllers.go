package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/dukaan/app/models"
	"github.com/shashiranjanraj/dukaan/app/services"
	"github.com/shashiranjanraj/dukaan/pkg/auth"
	"github.com/shashiranjanraj/dukaan/pkg/bind"
	"github.com/shashiranjanraj/dukaan/pkg/crypt"
	"github.com/shashiranjanraj/dukaan/pkg/event"
	"github.com/shashiranjanraj/dukaan/pkg/logger"
	"github.com/shashiranjanraj/dukaan/pkg/middleware"
	"github.com/shashiranjanraj/dukaan/pkg/response"
)

// UserStore is the slice of the user repository the handlers use.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Save(ctx context.Context, user *models.User) error
	SetResetLink(ctx context.Context, id primitive.ObjectID, token string) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// AuthController serves registration, login and account endpoints.
type AuthController struct {
	users UserStore
}

func NewAuthController(users UserStore) *AuthController {
	return &AuthController{users: users}
}

type registerInput struct {
	Name     string `json:"name"     validate:"required,max=32"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Register creates an account with the default subscriber role.
func (c *AuthController) Register(w http.ResponseWriter, r *http.Request) {
	var input registerInput
	errs, err := bind.JSON(r, &input)
	if err != nil {
		response.Validation(w, err.Error())
		return
	}
	if len(errs) > 0 {
		response.Validation(w, firstError(errs))
		return
	}

	user := &models.User{
		Name:  strings.TrimSpace(input.Name),
		Email: strings.ToLower(strings.TrimSpace(input.Email)),
	}
	user.SetPassword(input.Password)

	if err := c.users.Create(r.Context(), user); err != nil {
		response.Validation(w, "Email is taken")
		return
	}
	response.Created(w, user)
}

type loginInput struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login verifies the credentials and issues a 24h JWT carrying id and role.
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var input loginInput
	errs, err := bind.JSON(r, &input)
	if err != nil {
		response.Validation(w, err.Error())
		return
	}
	if len(errs) > 0 {
		response.Validation(w, firstError(errs))
		return
	}

	user, err := c.users.FindByEmail(r.Context(), input.Email)
	if err != nil || !user.Authenticate(input.Password) {
		response.Unauthorized(w)
		return
	}

	token, err := auth.GenerateToken(user.ID.Hex(), user.Role)
	if err != nil {
		response.Upstream(w, err)
		return
	}
	response.Success(w, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

// Profile returns the authenticated user's account.
func (c *AuthController) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := c.current(w, r)
	if !ok {
		return
	}
	response.Success(w, user)
}

type profileInput struct {
	Name     string `json:"name"     validate:"nullable,max=32"`
	About    string `json:"about"    validate:"nullable,max=500"`
	Password string `json:"password" validate:"nullable,min=6"`
}

// UpdateProfile changes name, about and optionally the password.
func (c *AuthController) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := c.current(w, r)
	if !ok {
		return
	}

	var input profileInput
	errs, err := bind.JSON(r, &input)
	if err != nil {
		response.Validation(w, err.Error())
		return
	}
	if len(errs) > 0 {
		response.Validation(w, firstError(errs))
		return
	}

	if input.Name != "" {
		user.Name = strings.TrimSpace(input.Name)
	}
	if input.About != "" {
		user.About = strings.TrimSpace(input.About)
	}
	if input.Password != "" {
		user.SetPassword(input.Password)
	}

	if err := c.users.Save(r.Context(), user); err != nil {
		response.Upstream(w, err)
		return
	}
	response.Success(w, user)
}

// Delete removes the account and fires the user.deleted event; the cascade
// that removes the seller's products runs on the queue.
func (c *AuthController) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := c.current(w, r)
	if !ok {
		return
	}

	if err := c.users.Delete(r.Context(), user.ID); err != nil {
		response.Upstream(w, err)
		return
	}

	event.Fire(services.EventUserDeleted, user.ID.Hex())
	logger.WithCtx(r.Context()).Info("account deleted", "user", user.ID.Hex())

	response.Success(w, map[string]string{"message": "Account deleted"})
}

type forgotInput struct {
	Email string `json:"email" validate:"required,email"`
}

type resetClaims struct {
	UserID string `json:"user_id"`
	Exp    int64  `json:"exp"`
}

// ForgotPassword issues an encrypted reset token and stores it on the
// account. The response always succeeds so the endpoint cannot be used to
// probe which emails exist.
func (c *AuthController) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var input forgotInput
	errs, err := bind.JSON(r, &input)
	if err != nil {
		response.Validation(w, err.Error())
		return
	}
	if len(errs) > 0 {
		response.Validation(w, firstError(errs))
		return
	}

	ok := map[string]string{"message": "If the account exists, a reset link has been issued"}

	user, err := c.users.FindByEmail(r.Context(), input.Email)
	if err != nil {
		response.Success(w, ok)
		return
	}

	token, err := crypt.EncryptJSON(resetClaims{
		UserID: user.ID.Hex(),
		Exp:    time.Now().Add(time.Hour).Unix(),
	})
	if err != nil {
		response.Upstream(w, err)
		return
	}
	if err := c.users.SetResetLink(r.Context(), user.ID, token); err != nil {
		response.Upstream(w, err)
		return
	}

	// Mail delivery is out of scope; the token is returned for the caller
	// to forward.
	response.Success(w, map[string]string{
		"message":           ok["message"],
		"resetPasswordLink": token,
	})
}

type resetInput struct {
	Token    string `json:"resetPasswordLink" validate:"required"`
	Password string `json:"newPassword"       validate:"required,min=6"`
}

// ResetPassword redeems a reset token and sets the new password.
func (c *AuthController) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var input resetInput
	errs, err := bind.JSON(r, &input)
	if err != nil {
		response.Validation(w, err.Error())
		return
	}
	if len(errs) > 0 {
		response.Validation(w, firstError(errs))
		return
	}

	var claims resetClaims
	if err := crypt.DecryptJSON(input.Token, &claims); err != nil {
		response.Validation(w, "Invalid or expired reset link")
		return
	}
	if time.Now().Unix() > claims.Exp {
		response.Validation(w, "Invalid or expired reset link")
		return
	}

	id, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		response.Validation(w, "Invalid or expired reset link")
		return
	}
	user, err := c.users.FindByID(r.Context(), id)
	if err != nil || user.ResetLink != input.Token {
		response.Validation(w, "Invalid or expired reset link")
		return
	}

	user.SetPassword(input.Password)
	user.ResetLink = ""
	if err := c.users.Save(r.Context(), user); err != nil {
		response.Upstream(w, err)
		return
	}
	response.Success(w, map[string]string{"message": "Password updated"})
}

// current resolves the authenticated user. On failure it has already
// answered the request.
func (c *AuthController) current(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	raw, ok := middleware.UserIDFromCtx(r)
	if !ok {
		response.Unauthorized(w)
		return nil, false
	}
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		response.Unauthorized(w)
		return nil, false
	}
	user, err := c.users.FindByID(r.Context(), id)
	if err != nil {
		response.NotFound(w, "User not found")
		return nil, false
	}
	return user, true
}

func firstError(errs map[string]string) string {
	for _, msg := range errs {
		return msg
	}
	return "validation failed"
}
