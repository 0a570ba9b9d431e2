package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/tadris/core"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
	RoleParent  = "parent"
)

var (
	AllRoles = []string{RoleAdmin, RoleTeacher, RoleStudent, RoleParent}

	// RegisterRoles may be picked on self-registration.
	RegisterRoles = []string{RoleStudent, RoleParent}

	rolePriorities = map[string]int{
		RoleAdmin:   30,
		RoleTeacher: 20,
		RoleParent:  10,
		RoleStudent: 1,
	}

	Roles = []Role{
		{Name: "طالب", Value: RoleStudent},
		{Name: "ولي أمر", Value: RoleParent},
		{Name: "معلم", Value: RoleTeacher},
		{Name: "مدير", Value: RoleAdmin},
	}
)

func IsRole(role string) bool {
	_, ok := rolePriorities[role]
	return ok
}

func RolePriority(role string) int {
	return rolePriorities[role]
}

func MaxRolePriority(roles []string) int {
	var max int
	for _, role := range roles {
		if RolePriority(role) > max {
			max = RolePriority(role)
		}
	}
	return max
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Avatar       string    `json:"avatar"`
	IsActive     bool      `json:"is_active"`
	Roles        []string  `json:"roles"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (u User) IsAdmin() bool   { return u.HasRole(RoleAdmin) }
func (u User) IsTeacher() bool { return u.HasRole(RoleTeacher) }
func (u User) IsStudent() bool { return u.HasRole(RoleStudent) }
func (u User) IsParent() bool  { return u.HasRole(RoleParent) }

// LogPerson identifies u in error reports.
func (u User) LogPerson() core.LogPerson {
	return core.LogPerson{ID: u.ID, Username: u.Name, Email: u.Email}
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name     string
	Email    string
	Phone    string
	Password string
	Roles    []string
}

// NewUserFromInput reads a validated registration payload.
func NewUserFromInput(in map[string]interface{}) NewUser {
	nu := NewUser{
		Name:     str(in["name"]),
		Email:    core.CleanString(str(in["email"]), true /* lower */),
		Phone:    str(in["phone"]),
		Password: str(in["password"]),
	}
	if role := str(in["role"]); role != "" {
		nu.Roles = []string{role}
	}
	return nu
}

// ProfileUpdate holds the fields present in a profile update; nil fields are left unchanged.
type ProfileUpdate struct {
	Name   *string
	Email  *string
	Phone  *string
	Avatar *string
}

func ProfileUpdateFromInput(in map[string]interface{}) ProfileUpdate {
	var pu ProfileUpdate
	get := func(key string, lower bool) *string {
		v, ok := in[key]
		if !ok {
			return nil
		}
		s := core.CleanString(str(v), lower)
		return &s
	}
	pu.Name = get("name", false)
	pu.Email = get("email", true)
	pu.Phone = get("phone", false)
	pu.Avatar = get("avatar", false)
	return pu
}

func (pu ProfileUpdate) apply(usr *User) {
	if pu.Name != nil {
		usr.Name = *pu.Name
	}
	if pu.Email != nil {
		usr.Email = *pu.Email
	}
	if pu.Phone != nil {
		usr.Phone = *pu.Phone
	}
	if pu.Avatar != nil {
		usr.Avatar = *pu.Avatar
	}
}

func str(v interface{}) string {
	s, _ := v.(string)
	return s
}
