package forum

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// Accounts registers and authenticates users.
type Accounts struct {
	users UserStore
	cost  int
}

func NewAccounts(users UserStore, cost int) *Accounts {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Accounts{users: users, cost: cost}
}

// Register validates the form, rejects a taken username or email and stores
// the new member. Errors meant for the user are *FormError values.
func (a *Accounts) Register(ctx context.Context, form RegisterForm) (*User, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}

	exists, err := a.users.UserExists(ctx, form.Username, form.Email)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to check existing user: %w", err)
	}
	if exists {
		return nil, &FormError{Field: "Username", Message: msgDuplicateUser}
	}

	user := NewUser(form.Username, form.Email)
	if err := user.SetPassword(form.Password, a.cost); err != nil {
		return nil, fmt.Errorf("auth: failed to hash password: %w", err)
	}
	if err := a.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, ErrDuplicateUser) {
			return nil, &FormError{Field: "Username", Message: msgDuplicateUser}
		}
		return nil, fmt.Errorf("auth: failed to insert user: %w", err)
	}
	user.Sanitize()
	return user, nil
}

// Login looks the user up by email. An unknown email and a wrong password
// both return ErrInvalidCredentials.
func (a *Accounts) Login(ctx context.Context, form LoginForm) (*User, error) {
	user, err := a.users.GetUserByEmail(ctx, form.Email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth: failed to query user: %w", err)
	}

	ok, err := user.PasswordMatches(form.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to compare password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	out := *user
	out.Sanitize()
	return &out, nil
}
