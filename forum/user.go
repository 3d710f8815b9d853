package forum

import (
	"encoding/gob"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func init() {
	// scs gob-encodes session values.
	gob.Register(SessionUser{})
}

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Created      time.Time `json:"created"`
}

// SessionUser is the part of a user kept in the session.
type SessionUser struct {
	ID       int64
	Username string
	Role     string
}

func NewUser(username, email string) *User {
	return &User{
		Username: username,
		Email:    email,
		Role:     DefaultRole,
	}
}

func (u *User) SetPassword(password string, cost int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

func (u *User) PasswordMatches(input string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(input))
	if err != nil {
		switch {
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			//invalid password
			return false, nil
		default:
			//unknown error
			return false, err
		}
	}

	return true, nil
}

func (u *User) Sanitize() {
	u.PasswordHash = ""
}

func (u *User) SessionUser() SessionUser {
	return SessionUser{ID: u.ID, Username: u.Username, Role: u.Role}
}
