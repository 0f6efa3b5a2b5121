package user

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/student"
)

const (
	otpMin = 100000
	otpMax = 999999
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrInvalidOTP     = errors.New("invalid or expired code")
	ErrNoParent       = core.NewNotFoundError("no student is registered with this parent email")
	ErrInvalidReset   = errors.New("invalid password reset link")
)

type (
	Repository interface {
		// CheckUsernameUniqueness returns ErrUsernameExists or ErrEmailExists when another user
		// (not in excludedIDs) already uses username or email.
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedIDs ...string) error
		Create(ctx context.Context, usr User) error
		QueryAll(ctx context.Context) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, username string) (User, error)
		Update(ctx context.Context, usr User) error
	}

	OTPRepository interface {
		Insert(ctx context.Context, otp OTP) error
		// InvalidateAll marks every pending code of email as used.
		InvalidateAll(ctx context.Context, email string) error
		// Consume atomically marks the matching valid code as used. ErrInvalidOTP if there is none.
		Consume(ctx context.Context, email string, codeHash []byte, now time.Time) error
	}

	Service struct {
		repo       Repository
		otps       OTPRepository
		students   student.Repository
		mailSvc    core.EmailService
		tokens     tokenGenerator
		otpTimeout time.Duration
	}
)

func NewService(
	conf *core.Config,
	repo Repository,
	otps OTPRepository,
	students student.Repository,
	mailSvc core.EmailService,
) *Service {
	return &Service{
		repo:     repo,
		otps:     otps,
		students: students,
		mailSvc:  mailSvc,
		tokens: tokenGenerator{
			secret:  []byte(conf.SecretKey),
			timeout: conf.PasswordResetTimeoutDelta,
		},
		otpTimeout: conf.OTPTimeoutDelta,
	}
}

func (svc *Service) CheckUniqueness(ctx context.Context, uname, email string, excludedIDs ...string) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, excludedIDs...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Create adds a new active User. NewUser must have been cleaned and validated.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.CheckUniqueness(ctx, nu.Username, nu.Email); err != nil {
		return User{}, err
	}

	now := nowFunc().UTC()
	usr := User{
		ID:        uuid.NewString(),
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if usr.Roles == nil {
		usr.Roles = []string{}
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	if err := svc.repo.Create(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (svc *Service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAll(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	usr.LastLogin = nowFunc().UTC()
	if err := svc.repo.Update(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}

// SetPassword replaces the password of the User, without policy checks on the caller's side.
func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) (User, error) {
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = nowFunc().UTC()
	if err := svc.repo.Update(ctx, usr); err != nil {
		return User{}, errors.Wrap(err, "updating user")
	}
	return usr, nil
}

// RequestPasswordReset emails a password reset link to the active User owning email.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}

	token, err := svc.tokens.makeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
	return nil
}

// ResetPassword sets a new password from a password reset link. ResetUserPassword must have been validated.
func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	invalid := core.NewValidationError(ErrInvalidReset)

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalid
	}
	usr, err := svc.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalid
		}
		return errors.Wrap(err, "finding user")
	}
	if err := svc.tokens.verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(ErrInvalidReset, core.FieldError{Field: "token", Error: err.Error()})
	}

	_, err = svc.SetPassword(ctx, usr, data.Password)
	return err
}

// RequestParentOTP emails a 6-digit login code to a parent. Older pending codes stop working.
func (svc *Service) RequestParentOTP(ctx context.Context, email string) error {
	email = core.CleanString(email, true /* lower */)
	children, err := svc.students.FindByParentEmail(ctx, email)
	if err != nil {
		return errors.Wrap(err, "finding students by parent email")
	}
	if len(children) == 0 {
		return ErrNoParent
	}

	code, err := generateOTP()
	if err != nil {
		return errors.Wrap(err, "generating code")
	}
	hash, err := svc.hashOTP(email, code)
	if err != nil {
		return err
	}

	now := nowFunc().UTC()
	if err := svc.otps.InvalidateAll(ctx, email); err != nil {
		return errors.Wrap(err, "invalidating codes")
	}
	if err := svc.otps.Insert(ctx, OTP{
		ID:        uuid.NewString(),
		Email:     email,
		CodeHash:  hash,
		ExpiresAt: now.Add(svc.otpTimeout),
		CreatedAt: now,
	}); err != nil {
		return errors.Wrap(err, "inserting code")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: email}},
		Subject:      "Your login code",
		TemplateName: "login_otp",
		TemplateData: map[string]interface{}{
			"Code":         code,
			"ValidMinutes": int(svc.otpTimeout / time.Minute),
		},
	})
	return nil
}

// ParentLogin consumes a login code and returns the parent with the roll numbers of their children.
func (svc *Service) ParentLogin(ctx context.Context, email, code string) (Parent, error) {
	email = core.CleanString(email, true /* lower */)
	hash, err := svc.hashOTP(email, core.CleanString(code))
	if err != nil {
		return Parent{}, err
	}
	if err := svc.otps.Consume(ctx, email, hash, nowFunc().UTC()); err != nil {
		if errors.Cause(err) == ErrInvalidOTP {
			return Parent{}, core.NewFieldError("code", ErrInvalidOTP)
		}
		return Parent{}, errors.Wrap(err, "consuming code")
	}
	return svc.GetParent(ctx, email)
}

func (svc *Service) GetParent(ctx context.Context, email string) (Parent, error) {
	children, err := svc.students.FindByParentEmail(ctx, email)
	if err != nil {
		return Parent{}, errors.Wrap(err, "finding students by parent email")
	}
	if len(children) == 0 {
		return Parent{}, ErrNoParent
	}
	p := Parent{Email: email, RollNos: make([]int, 0, len(children))}
	for _, s := range children {
		p.RollNos = append(p.RollNos, s.RollNo)
	}
	return p, nil
}

func (svc *Service) hashOTP(email, code string) ([]byte, error) {
	sig, err := svc.tokens.sign([]byte(email + ":" + code))
	if err != nil {
		return nil, errors.Wrap(err, "hashing code")
	}
	return []byte(sig), nil
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+otpMin), nil
}
