package boiledrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"github.com/volatiletech/sqlboiler/v4/queries"

	"github.com/trezcool/tadris/core"
	"github.com/trezcool/tadris/core/user"
)

const (
	userColumns = "id, name, email, phone, avatar, is_active, roles, password_hash, created_at, updated_at, last_login"

	uniqueViolation = "23505"
)

var defaultUserOrdering = []core.DBOrdering{{Field: "created_at", Ascending: false}}

// userRow is the users table row.
type userRow struct {
	ID           string         `boil:"id"`
	Name         string         `boil:"name"`
	Email        string         `boil:"email"`
	Phone        null.String    `boil:"phone"`
	Avatar       null.String    `boil:"avatar"`
	IsActive     bool           `boil:"is_active"`
	Roles        pq.StringArray `boil:"roles"`
	PasswordHash []byte         `boil:"password_hash"`
	CreatedAt    time.Time      `boil:"created_at"`
	UpdatedAt    time.Time      `boil:"updated_at"`
	LastLogin    null.Time      `boil:"last_login"`
}

type userRepository struct {
	exec core.DBExecutor
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{exec: exec}
}

func boil(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		Phone:        null.NewString(usr.Phone, usr.Phone != ""),
		Avatar:       null.NewString(usr.Avatar, usr.Avatar != ""),
		IsActive:     usr.IsActive,
		Roles:        pq.StringArray(usr.Roles),
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func unboil(row userRow) user.User {
	usr := user.User{
		ID:           row.ID,
		Name:         row.Name,
		Email:        row.Email,
		Phone:        row.Phone.String,
		Avatar:       row.Avatar.String,
		IsActive:     row.IsActive,
		Roles:        []string(row.Roles),
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time.UTC()
	}
	return usr
}

// trapErr maps "no rows" to user.ErrNotFound and email conflicts to user.ErrEmailExists.
func trapErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return user.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && strings.Contains(pqErr.Constraint, "email") {
		return user.ErrEmailExists
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) one(ctx context.Context, msg, query string, args ...interface{}) (user.User, error) {
	var row userRow
	if err := queries.Raw(query, args...).Bind(ctx, repo.exec, &row); err != nil {
		return user.User{}, trapErr(err, msg)
	}
	return unboil(row), nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	r := boil(usr)
	return repo.one(ctx, "inserting user",
		"INSERT INTO users ("+userColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING "+userColumns,
		r.ID, r.Name, r.Email, r.Phone, r.Avatar, r.IsActive, r.Roles, r.PasswordHash, r.CreatedAt, r.UpdatedAt, r.LastLogin)
}

func (repo userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	orderList := make([]string, 0, len(defaultUserOrdering))
	for _, ord := range defaultUserOrdering {
		orderList = append(orderList, ord.String())
	}

	var rows []*userRow
	q := "SELECT " + userColumns + " FROM users ORDER BY " + strings.Join(orderList, ", ")
	if err := queries.Raw(q).Bind(ctx, repo.exec, &rows); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, unboil(*r))
	}
	return users, nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}
	return repo.one(ctx, "finding user by ID", "SELECT "+userColumns+" FROM users WHERE id = $1", id)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.one(ctx, "finding user by email", "SELECT "+userColumns+" FROM users WHERE LOWER(email) = LOWER($1)", email)
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	r := boil(usr)
	return repo.one(ctx, "updating user",
		"UPDATE users SET name = $2, email = $3, phone = $4, avatar = $5, is_active = $6, roles = $7, "+
			"password_hash = $8, updated_at = $9, last_login = $10 WHERE id = $1 RETURNING "+userColumns,
		r.ID, r.Name, r.Email, r.Phone, r.Avatar, r.IsActive, r.Roles, r.PasswordHash, r.UpdatedAt, r.LastLogin)
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := queries.Raw("DELETE FROM users WHERE id = ANY($1)", pq.Array(ids)).ExecContext(ctx, repo.exec); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
