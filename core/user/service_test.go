package user

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tadris/core"
)

type mapRepo struct {
	mu    sync.Mutex
	users map[string]User
}

func newMapRepo() *mapRepo { return &mapRepo{users: make(map[string]User)} }

func (r *mapRepo) CreateUser(_ context.Context, usr User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == usr.Email {
			return User{}, ErrEmailExists
		}
	}
	r.users[usr.ID] = usr
	return usr, nil
}

func (r *mapRepo) QueryAllUsers(context.Context) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	users := make([]User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	return users, nil
}

func (r *mapRepo) GetUserByID(_ context.Context, id string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return User{}, ErrNotFound
}

func (r *mapRepo) GetUserByEmail(_ context.Context, email string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *mapRepo) UpdateUser(_ context.Context, usr User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[usr.ID] = usr
	return usr, nil
}

func (r *mapRepo) DeleteUsersByID(_ context.Context, ids ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		delete(r.users, id)
	}
	return nil
}

type outbox struct {
	messages []*core.EmailMessage
}

func (o *outbox) SendMessages(messages ...*core.EmailMessage) {
	o.messages = append(o.messages, messages...)
}

func newTestService(t *testing.T) (*Service, *outbox) {
	t.Helper()
	box := &outbox{}
	return NewServiceMock(newMapRepo(), box, core.NewTestConfig()), box
}

func fieldErrors(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr), "want *core.ValidationError, got %v", err)
	return verr.Map()
}

func TestService_CreateAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	usr, err := svc.Create(ctx, NewUser{Name: " سارة ", Email: "Sara@Test.Test ", Password: "Qwerty!234", Roles: []string{RoleTeacher}})
	require.NoError(t, err)
	assert.NotEmpty(t, usr.ID)
	assert.Equal(t, "سارة", usr.Name)
	assert.Equal(t, "sara@test.test", usr.Email)
	assert.True(t, usr.IsActive)
	assert.True(t, usr.IsTeacher())
	assert.True(t, usr.LastLogin.IsZero())

	_, err = svc.Create(ctx, NewUser{Email: "x@test.test", Password: "x", Roles: []string{"janitor"}})
	assert.Error(t, err)

	logged, err := svc.Authenticate(ctx, "SARA@test.test", "Qwerty!234")
	require.NoError(t, err)
	assert.False(t, logged.LastLogin.IsZero())

	for _, tc := range []struct{ email, pwd string }{
		{"sara@test.test", "wrong"},
		{"nobody@test.test", "Qwerty!234"},
	} {
		_, err = svc.Authenticate(ctx, tc.email, tc.pwd)
		assert.Equal(t, map[string][]string{"email": {invalidCredentialsText}}, fieldErrors(t, err))
	}
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Register(ctx, NewUser{Email: "a@test.test", Password: "Qwerty!234", Roles: []string{RoleAdmin}})
	assert.Error(t, err)

	usr, err := svc.Register(ctx, NewUser{Email: "p@test.test", Password: "Qwerty!234", Roles: []string{RoleParent}})
	require.NoError(t, err)
	assert.True(t, usr.IsParent())
}

func TestService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	usr, err := svc.Create(ctx, NewUser{Name: "Ali", Email: "ali@test.test", Phone: "+212600000000", Password: "Qwerty!234", Roles: []string{RoleStudent}})
	require.NoError(t, err)

	pu := ProfileUpdateFromInput(map[string]interface{}{"name": " علي ", "email": "ALI2@test.test"})
	updated, err := svc.UpdateProfile(ctx, usr.ID, pu)
	require.NoError(t, err)
	assert.Equal(t, "علي", updated.Name)
	assert.Equal(t, "ali2@test.test", updated.Email)
	assert.Equal(t, "+212600000000", updated.Phone, "absent fields are kept")

	_, err = svc.UpdateProfile(ctx, "missing", pu)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestService_ChangePassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	usr, err := svc.Create(ctx, NewUser{Email: "ali@test.test", Password: "Qwerty!234", Roles: []string{RoleStudent}})
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, usr.ID, "nope", "N3w-Passw0rd!")
	assert.Equal(t, map[string][]string{"current_password": {wrongPasswordText}}, fieldErrors(t, err))

	require.NoError(t, svc.ChangePassword(ctx, usr.ID, "Qwerty!234", "N3w-Passw0rd!"))
	_, err = svc.Authenticate(ctx, "ali@test.test", "N3w-Passw0rd!")
	assert.NoError(t, err)
}

func TestService_SetPassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.Create(ctx, NewUser{Name: "Omar", Email: "omar@test.test", Password: "Qwerty!234", Roles: []string{RoleAdmin}})
	require.NoError(t, err)

	err = svc.SetPassword(ctx, "omar@test.test", "short")
	assert.Equal(t, map[string][]string{"password": {pwdMinLenText}}, fieldErrors(t, err))

	require.NoError(t, svc.SetPassword(ctx, "omar@test.test", "Tadris#2024x"))
	_, err = svc.Authenticate(ctx, "omar@test.test", "Tadris#2024x")
	assert.NoError(t, err)

	assert.True(t, errors.Is(svc.SetPassword(ctx, "ghost@test.test", "Tadris#2024x"), ErrNotFound))
}

func TestService_PasswordReset(t *testing.T) {
	ctx := context.Background()
	svc, box := newTestService(t)
	usr, err := svc.Create(ctx, NewUser{Name: "Huda", Email: "huda@test.test", Password: "Qwerty!234", Roles: []string{RoleParent}})
	require.NoError(t, err)

	require.NoError(t, svc.RequestPasswordReset(ctx, "huda@test.test"))
	require.Len(t, box.messages, 1)
	msg := box.messages[0]
	assert.Equal(t, "huda@test.test", msg.To[0].Address)
	assert.Equal(t, "password_reset", msg.TemplateName)

	uid := EncodeUID(usr)
	token := svc.MakeResetToken(usr)

	invalid := map[string][]string{"token": {invalidResetLinkText}}
	assert.Equal(t, invalid, fieldErrors(t, svc.ResetPassword(ctx, "%%", token, "N3w-Passw0rd!")))
	assert.Equal(t, invalid, fieldErrors(t, svc.ResetPassword(ctx, EncodeUID(User{ID: "ghost"}), token, "N3w-Passw0rd!")))
	assert.Equal(t, invalid, fieldErrors(t, svc.ResetPassword(ctx, uid, "bad-token", "N3w-Passw0rd!")))

	require.NoError(t, svc.ResetPassword(ctx, uid, token, "N3w-Passw0rd!"))
	// the token dies with the old password
	assert.Equal(t, invalid, fieldErrors(t, svc.ResetPassword(ctx, uid, token, "An0ther-Pass!")))

	assert.True(t, errors.Is(svc.RequestPasswordReset(ctx, "ghost@test.test"), ErrNotFound))
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	usr, err := svc.Create(ctx, NewUser{Email: "d@test.test", Password: "Qwerty!234", Roles: []string{RoleStudent}})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, usr.ID))
	users, err := svc.QueryAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}
