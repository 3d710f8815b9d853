package forum

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) UserExists(ctx context.Context, username, email string) (bool, error) {
	args := m.Called(ctx, username, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockUserStore) CreateUser(ctx context.Context, user *User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *mockUserStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*User)
	return user, args.Error(1)
}

func TestAccountsRegister(t *testing.T) {
	ctx := context.Background()
	store := new(mockUserStore)
	accounts := NewAccounts(store, bcrypt.MinCost)

	store.On("UserExists", ctx, "newbie", "newbie@example.com").Return(false, nil).Once()
	var storedHash string
	store.On("CreateUser", ctx, mock.MatchedBy(func(u *User) bool {
		return u.Username == "newbie" && u.Role == DefaultRole
	})).Run(func(args mock.Arguments) {
		u := args.Get(1).(*User)
		storedHash = u.PasswordHash
		u.ID = 5
	}).Return(nil).Once()

	user, err := accounts.Register(ctx, RegisterForm{Username: "newbie", Email: "newbie@example.com", Password: "StrongPass123"})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(storedHash), []byte("StrongPass123")))
	assert.Equal(t, int64(5), user.ID)
	assert.Empty(t, user.PasswordHash)
	assert.Equal(t, SessionUser{ID: 5, Username: "newbie", Role: DefaultRole}, user.SessionUser())
	store.AssertExpectations(t)
}

func TestAccountsRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	store := new(mockUserStore)
	accounts := NewAccounts(store, bcrypt.MinCost)
	form := RegisterForm{Username: "taken", Email: "taken@example.com", Password: "StrongPass123"}

	store.On("UserExists", ctx, "taken", "taken@example.com").Return(true, nil).Once()
	_, err := accounts.Register(ctx, form)
	assert.EqualError(t, err, msgDuplicateUser)
	store.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)

	// a concurrent insert that wins the unique constraint
	store.On("UserExists", ctx, "taken", "taken@example.com").Return(false, nil).Once()
	store.On("CreateUser", ctx, mock.Anything).Return(ErrDuplicateUser).Once()
	_, err = accounts.Register(ctx, form)
	assert.EqualError(t, err, msgDuplicateUser)
	store.AssertExpectations(t)
}

func TestAccountsRegisterValidatesFirst(t *testing.T) {
	store := new(mockUserStore)
	accounts := NewAccounts(store, bcrypt.MinCost)
	_, err := accounts.Register(context.Background(), RegisterForm{Username: "ok", Email: "x@y", Password: "longenough"})
	var formErr *FormError
	require.ErrorAs(t, err, &formErr)
	assert.Equal(t, msgUsernameShort, formErr.Message)
	store.AssertNotCalled(t, "UserExists", mock.Anything, mock.Anything, mock.Anything)
}

func TestAccountsLogin(t *testing.T) {
	ctx := context.Background()
	store := new(mockUserStore)
	accounts := NewAccounts(store, bcrypt.MinCost)

	member := NewUser("member", "member@example.com")
	member.ID = 7
	require.NoError(t, member.SetPassword("correct horse", bcrypt.MinCost))

	store.On("GetUserByEmail", ctx, "member@example.com").Return(member, nil)
	store.On("GetUserByEmail", ctx, "ghost@example.com").Return(nil, ErrNotFound)

	user, err := accounts.Login(ctx, LoginForm{Email: "member@example.com", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)

	_, wrongPassword := accounts.Login(ctx, LoginForm{Email: "member@example.com", Password: "battery staple"})
	_, unknownEmail := accounts.Login(ctx, LoginForm{Email: "ghost@example.com", Password: "correct horse"})
	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestAccountsLoginStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := new(mockUserStore)
	accounts := NewAccounts(store, bcrypt.MinCost)
	boom := errors.New("connection reset")
	store.On("GetUserByEmail", ctx, "a@b.c").Return(nil, boom)

	_, err := accounts.Login(ctx, LoginForm{Email: "a@b.c", Password: "whatever1"})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestPasswordHashing(t *testing.T) {
	u := NewUser("hasher", "hasher@example.com")
	require.NoError(t, u.SetPassword("super-secret", bcrypt.MinCost))
	ok, err := u.PasswordMatches("super-secret")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = u.PasswordMatches("wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}
