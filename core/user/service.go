package user

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/Beccio00/homeworks-web-app/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound           = errors.New("user not found")
	ErrUsernameExists     = errors.New("a user with this username already exists")
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrAccountDeactivated = errors.New("account deactivated")
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByUsername(ctx context.Context, username string) (User, error)
		// QueryStudents returns active and inactive students ordered by surname then name.
		// When ids are given, only the students among them are returned; unknown ids are ignored.
		QueryStudents(ctx context.Context, ids ...string) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkUniqueness(ctx context.Context, uname string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, exclUsers...); err != nil {
		if errors.Is(err, ErrUsernameExists) {
			return core.NewValidationError(err, core.FieldError{Field: "username", Error: err.Error()})
		}
		return errors.Wrap(err, "checking username uniqueness")
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	usr := User{
		Username:  nu.Username,
		Name:      nu.Name,
		Surname:   nu.Surname,
		Role:      nu.Role,
		Avatar:    nu.Avatar,
		IsActive:  true,
		CreatedAt: NowFunc().UTC(),
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Authenticate checks the given credentials and records the login time.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (svc *Service) Authenticate(ctx context.Context, uname, pwd string) (User, error) {
	usr, err := svc.GetByUsername(ctx, uname)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by username")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}

	usr.LastLogin = NowFunc().UTC()
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsername(ctx, core.CleanString(uname, true /* lower */))
}

// QueryStudents lists every student's public profile.
func (svc *Service) QueryStudents(ctx context.Context) ([]Profile, error) {
	students, err := svc.repo.QueryStudents(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	profiles := make([]Profile, 0, len(students))
	for _, s := range students {
		profiles = append(profiles, s.Profile())
	}
	return profiles, nil
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) (User, error) {
	usr, err := svc.GetByUsername(ctx, rp.Username)
	if err != nil {
		return User{}, err
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.UpdateUser(ctx, usr)
}
