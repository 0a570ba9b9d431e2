package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/tadris/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	invalidCredentialsText = "بيانات الدخول غير صحيحة."
	wrongPasswordText      = "كلمة المرور الحالية غير صحيحة."
	invalidResetLinkText   = "رابط إعادة تعيين كلمة المرور غير صالح أو منتهي الصلاحية."
	passwordResetSubject   = "إعادة تعيين كلمة المرور"
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	Service struct {
		repo     Repository
		mailSvc  core.EmailService
		tokens   tokenGenerator
		syncMail bool
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:    repo,
		mailSvc: mailSvc,
		tokens: tokenGenerator{
			secretKey: []byte(conf.SecretKey),
			timeout:   conf.Server.PasswordResetTimeoutDelta,
		},
	}
}

// InvalidCredentialsError is reported on the login form, without telling which field was wrong.
func InvalidCredentialsError() error {
	return core.NewValidationError(ErrInvalidCredentials, core.FieldError{Field: "email", Error: invalidCredentialsText})
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	for _, role := range nu.Roles {
		if !IsRole(role) {
			return User{}, errors.Errorf("unknown role %q", role)
		}
	}
	now := nowFunc().UTC()
	usr := User{
		ID:        uuid.NewString(),
		Name:      core.CleanString(nu.Name),
		Email:     core.CleanString(nu.Email, true /* lower */),
		Phone:     core.CleanString(nu.Phone),
		IsActive:  true,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Register creates a student or parent account.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	if len(nu.Roles) != 1 || !(nu.Roles[0] == RoleStudent || nu.Roles[0] == RoleParent) {
		return User{}, errors.Errorf("cannot self-register with roles %v", nu.Roles)
	}
	return svc.Create(ctx, nu)
}

// Authenticate checks the credentials and records the login.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, InvalidCredentialsError()
		}
		return User{}, err
	}
	if !usr.IsActive || usr.CheckPassword(pwd) != nil {
		return User{}, InvalidCredentialsError()
	}

	usr.LastLogin = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) UpdateProfile(ctx context.Context, id string, pu ProfileUpdate) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	pu.apply(&usr)
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) ChangePassword(ctx context.Context, id, current, pwd string) error {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return err
	}
	if usr.CheckPassword(current) != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "current_password", Error: wrongPasswordText})
	}
	return svc.savePassword(ctx, usr, pwd)
}

// SetPassword replaces the password of the user with email, after applying the password policy.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if msg := PasswordPolicy(pwd, usr.Name, usr.Email); msg != "" {
		return core.NewValidationError(nil, core.FieldError{Field: "password", Error: msg})
	}
	return svc.savePassword(ctx, usr, pwd)
}

func (svc *Service) savePassword(ctx context.Context, usr User, pwd string) error {
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = nowFunc().UTC()
	_, err := svc.repo.UpdateUser(ctx, usr)
	return err
}

// RequestPasswordReset mails a reset link to the user with email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	msg := svc.passwordResetMail(usr)
	if svc.syncMail {
		svc.mailSvc.SendMessages(msg)
		return nil
	}
	go svc.mailSvc.SendMessages(msg)
	return nil
}

func (svc *Service) passwordResetMail(usr User) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      passwordResetSubject,
		TemplateName: "password_reset",
		TemplateData: struct {
			Email string
			UID   string
			Token string
		}{usr.Email, EncodeUID(usr), svc.tokens.makeToken(usr)},
	}
}

// ResetPassword sets pwd when token is a valid reset token of the user encoded in uid.
func (svc *Service) ResetPassword(ctx context.Context, uid, token, pwd string) error {
	invalid := core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: invalidResetLinkText})

	id, err := decodeUID(uid)
	if err != nil {
		return invalid
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return invalid
		}
		return err
	}
	if err := svc.tokens.verifyToken(usr, token); err != nil {
		return invalid
	}
	return svc.savePassword(ctx, usr, pwd)
}

func (svc *Service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

// Since reports how long ago t was, on the service clock.
func Since(t time.Time) time.Duration {
	return nowFunc().Sub(t)
}
