package models

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InlinePhoto is a binary image stored directly on the document. Kept for
// accounts and products created before object storage existed.
type InlinePhoto struct {
	Data        []byte `bson:"data,omitempty"        json:"-"`
	ContentType string `bson:"contentType,omitempty" json:"contentType,omitempty"`
}

// User is the account document. Passwords are stored as a hex HMAC-SHA1
// digest keyed by a per-user salt; neither the digest nor the salt is ever
// serialised to JSON.
type User struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty"     json:"_id"`
	Name           string               `bson:"name"              json:"name"`
	Email          string               `bson:"email"             json:"email"`
	HashedPassword string               `bson:"hashed_password"   json:"-"`
	Salt           string               `bson:"salt"              json:"-"`
	Photo          *InlinePhoto         `bson:"photo,omitempty"   json:"photo,omitempty"`
	About          string               `bson:"about,omitempty"   json:"about,omitempty"`
	Following      []primitive.ObjectID `bson:"following"         json:"following"`
	Followers      []primitive.ObjectID `bson:"followers"         json:"followers"`
	ResetLink      string               `bson:"resetPasswordLink" json:"-"`
	Role           string               `bson:"role"              json:"role"`
	History        []primitive.M        `bson:"history"           json:"history"`
	CreatedAt      time.Time            `bson:"createdAt"         json:"createdAt"`
	UpdatedAt      time.Time            `bson:"updatedAt"         json:"updatedAt"`

	// plaintext password, alive only for the request that set it
	password string
}

// RoleSubscriber is the default role assigned at registration.
const RoleSubscriber = "subscriber"

// RoleAdmin may mutate any product regardless of ownership.
const RoleAdmin = "admin"

// SetPassword generates a fresh salt and stores the HMAC digest of plain.
func (u *User) SetPassword(plain string) {
	u.password = plain
	u.Salt = uuid.NewString()
	u.HashedPassword = u.encrypt(plain)
}

// Password returns the plaintext set earlier in this request, if any.
func (u *User) Password() string { return u.password }

// Authenticate reports whether candidate hashes to the stored digest.
// An account with no salt or an empty stored digest never authenticates.
func (u *User) Authenticate(candidate string) bool {
	if u.HashedPassword == "" {
		return false
	}
	digest := u.encrypt(candidate)
	return digest != "" && hmac.Equal([]byte(digest), []byte(u.HashedPassword))
}

// encrypt returns hex(HMAC-SHA1(salt, password)), or "" when either the
// password or the salt is empty.
func (u *User) encrypt(password string) string {
	if password == "" || u.Salt == "" {
		return ""
	}
	mac := hmac.New(sha1.New, []byte(u.Salt))
	mac.Write([]byte(password))
	return hex.EncodeToString(mac.Sum(nil))
}

// Summary is the seller projection attached to populated product listings.
type Summary struct {
	ID    primitive.ObjectID `bson:"_id"   json:"_id"`
	Name  string             `bson:"name"  json:"name"`
	Role  string             `bson:"role"  json:"role"`
	Email string             `bson:"email" json:"email"`
}

// Summary returns the public projection of the user.
func (u *User) Summary() Summary {
	return Summary{ID: u.ID, Name: u.Name, Role: u.Role, Email: u.Email}
}
