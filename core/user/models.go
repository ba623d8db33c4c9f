package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/Beccio00/homeworks-web-app/core"
)

// Roles
const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

var Roles = []string{RoleTeacher, RoleStudent}

type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Name         string    `json:"name"`
	Surname      string    `json:"surname"`
	Role         string    `json:"role"`
	Avatar       string    `json:"avatar"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
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

func (u User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u User) IsStudent() bool { return u.Role == RoleStudent }

func (u User) FullName() string {
	if u.Surname == "" {
		return u.Name
	}
	return u.Name + " " + u.Surname
}

func (u User) Profile() Profile {
	return Profile{
		ID:       u.ID,
		Username: u.Username,
		Name:     u.Name,
		Surname:  u.Surname,
		Avatar:   u.Avatar,
	}
}

// Profile holds the public display fields of a User.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	Surname  string `json:"surname,omitempty"`
	Avatar   string `json:"avatar,omitempty"`
}

func (p Profile) FullName() string {
	if p.Surname == "" {
		return p.Name
	}
	return p.Name + " " + p.Surname
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	Username        string `json:"username" validate:"required,min=3,alphanum_"`
	Name            string `json:"name" validate:"required,notblank"`
	Surname         string `json:"surname" validate:"required,notblank"`
	Role            string `json:"role" validate:"required,role"`
	Avatar          string `json:"avatar"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Name = core.CleanString(nu.Name)
	nu.Surname = core.CleanString(nu.Surname)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	nu.Avatar = core.CleanString(nu.Avatar)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, nu.Username)
}

// ResetUserPassword is used by the admin CLI to set a new password.
type ResetUserPassword struct {
	Username        string `json:"username" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error {
	rp.Username = core.CleanString(rp.Username, true /* lower */)
	return validate.Struct(rp)
}
