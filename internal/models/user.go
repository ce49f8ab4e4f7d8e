package models

import (
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/desertthunder/serije/internal/shared"
)

// User is a registered account. The password hash never leaves the server.
type User struct {
	base
	username     string
	email        string
	passwordHash string
	firstName    string
	lastName     string
	updatedAt    time.Time
}

// NewUser creates a user with the given identity fields and an already hashed password.
func NewUser(sequence int, username, email, passwordHash string) *User {
	b := newBase(sequence)
	return &User{
		base:         b,
		username:     strings.TrimSpace(username),
		email:        strings.TrimSpace(email),
		passwordHash: passwordHash,
		updatedAt:    b.createdAt,
	}
}

func (u *User) Username() string { return u.username }
func (u *User) Email() string { return u.email }
func (u *User) SetEmail(email string) { u.email = strings.TrimSpace(email) }
func (u *User) PasswordHash() string { return u.passwordHash }
func (u *User) SetPasswordHash(h string) { u.passwordHash = h }
func (u *User) FirstName() string { return u.firstName }
func (u *User) LastName() string { return u.lastName }
func (u *User) UpdatedAt() time.Time { return u.updatedAt }
func (u *User) SetUpdatedAt(t time.Time) { u.updatedAt = t }

// SetProfile replaces the profile fields.
func (u *User) SetProfile(firstName, lastName string) {
	u.firstName = strings.TrimSpace(firstName)
	u.lastName = strings.TrimSpace(lastName)
}

// Validate checks that identity fields are present and well formed.
func (u *User) Validate() error {
	if u.username == "" {
		return fmt.Errorf("%w: username is required", shared.ErrInvalidInput)
	}
	if u.email == "" {
		return fmt.Errorf("%w: email is required", shared.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(u.email); err != nil {
		return fmt.Errorf("%w: email %q is malformed", shared.ErrInvalidInput, u.email)
	}
	if u.passwordHash == "" {
		return fmt.Errorf("%w: password hash is required", shared.ErrInvalidInput)
	}
	return nil
}

type userJSON struct {
	ID        string    `json:"id"`
	Username  string    `json:"korime"`
	Email     string    `json:"email"`
	FirstName string    `json:"ime"`
	LastName  string    `json:"prezime"`
	CreatedAt time.Time `json:"kreiran"`
	UpdatedAt time.Time `json:"azuriran"`
}

// MarshalJSON implements [json.Marshaler].
func (u *User) MarshalJSON() ([]byte, error) {
	return json.Marshal(userJSON{
		ID:        u.id,
		Username:  u.username,
		Email:     u.email,
		FirstName: u.firstName,
		LastName:  u.lastName,
		CreatedAt: u.createdAt,
		UpdatedAt: u.updatedAt,
	})
}
