package user

import (
	"context"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/tuitionbook/core"
)

var (
	// errors
	ErrNotFound             = core.NewNotFoundError("user")
	ErrEmailExists          = errors.New("a user with this email already exists")
	ErrAuthenticationFailed = core.NewAuthenticationError("invalid email or password")
	ErrEmailNotVerified     = core.NewAuthorizationError("email address not verified")
)

type (
	// Repository is the identity store accessor.
	Repository interface {
		// CreateUser returns ErrEmailExists if the email is already taken.
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		// GetUserByEmail is an exact match on the stored email.
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// UpdateUser saves Name, EmailVerified, PasswordHash, UpdatedAt and LastLogin.
		UpdateUser(ctx context.Context, usr User) (User, error)
		// AddLinkedTuition is idempotent.
		AddLinkedTuition(ctx context.Context, uid, tuitionID string) error
		// RemoveLinkedTuition is a no-op if tuitionID is not linked.
		RemoveLinkedTuition(ctx context.Context, uid, tuitionID string) error
	}

	// Throttler limits how often an action keyed by key may happen.
	Throttler interface {
		Allow(ctx context.Context, key string) (bool, error)
	}

	Service struct {
		repo         Repository
		mailSvc      core.EmailService
		throttler    Throttler
		logger       core.Logger
		verifyTokens *tokenGenerator
		resetTokens  *tokenGenerator
	}
)

// NewService returns the user Service. throttler may be nil.
func NewService(repo Repository, mailSvc core.EmailService, throttler Throttler, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:         repo,
		mailSvc:      mailSvc,
		throttler:    throttler,
		logger:       logger,
		verifyTokens: newEmailVerificationTokenGenerator(conf.SecretKey, conf.EmailVerificationTimeoutDelta),
		resetTokens:  newPasswordResetTokenGenerator(conf.SecretKey, conf.PasswordResetTimeoutDelta),
	}
}

// Register creates an unverified User and emails them a verification link.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	usr, err := svc.create(ctx, nu.Name, nu.Email, nu.Role, nu.Password, false)
	if err != nil {
		return User{}, err
	}
	svc.sendVerificationMail(usr)
	return usr, nil
}

// CreateVerified creates a User whose email is considered verified (admin CLI).
func (svc *Service) CreateVerified(ctx context.Context, name, email, role, pwd string) (User, error) {
	return svc.create(ctx, name, email, role, pwd, true)
}

func (svc *Service) create(ctx context.Context, name, email, role, pwd string, verified bool) (User, error) {
	now := core.NowFunc().UTC()
	usr := User{
		Name:           core.CleanString(name),
		Email:          core.CleanEmail(email),
		Role:           role,
		EmailVerified:  verified,
		LinkedTuitions: []string{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return User{}, core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
		}
		return User{}, errors.Wrap(err, "creating user")
	}
	return usr, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

// GetByEmail looks a User up by their normalized email.
func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanEmail(email))
}

func (svc *Service) AddLinkedTuition(ctx context.Context, uid, tuitionID string) error {
	return svc.repo.AddLinkedTuition(ctx, uid, tuitionID)
}

func (svc *Service) RemoveLinkedTuition(ctx context.Context, uid, tuitionID string) error {
	return svc.repo.RemoveLinkedTuition(ctx, uid, tuitionID)
}

// Authenticate checks the credentials and records the login.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if err == ErrNotFound {
			return User{}, ErrAuthenticationFailed
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrAuthenticationFailed
	}
	if !usr.EmailVerified {
		return User{}, ErrEmailNotVerified
	}
	usr.LastLogin = core.NowFunc().UTC()
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "setting lastLogin")
}

// VerifyEmail marks the User's email as verified. Verifying twice is a no-op.
func (svc *Service) VerifyEmail(ctx context.Context, data VerifyEmail) error {
	usr, err := svc.getByUIDAndToken(ctx, data.UID, data.Token, svc.verifyTokens, true)
	if err != nil {
		return err
	}
	if usr.EmailVerified {
		return nil
	}
	usr.EmailVerified = true
	usr.UpdatedAt = core.NowFunc().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "verifying email")
}

// ResendVerification emails a new verification link, unless the User is unknown, already verified or throttled.
func (svc *Service) ResendVerification(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if usr.EmailVerified {
		return nil
	}
	if svc.throttler != nil {
		ok, err := svc.throttler.Allow(ctx, "resend-verification:"+usr.ID)
		if err != nil {
			return errors.Wrap(err, "throttling verification email")
		}
		if !ok {
			svc.logger.Debug("verification email throttled", map[string]interface{}{"uid": usr.ID})
			return nil
		}
	}
	svc.sendVerificationMail(usr)
	return nil
}

func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	usr, err := svc.getByUIDAndToken(ctx, data.UID, data.Token, svc.resetTokens, false)
	if err != nil {
		return err
	}
	return svc.SetPassword(ctx, usr, data.Password)
}

// SetPassword replaces the User's password.
func (svc *Service) SetPassword(ctx context.Context, usr User, pwd string) error {
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = core.NowFunc().UTC()
	_, err := svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "setting password")
}

func (svc *Service) getByUIDAndToken(ctx context.Context, uid, token string, gen *tokenGenerator, skipIfVerified bool) (User, error) {
	invalidErr := core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: errInvalidToken.Error()})

	id, err := decodeUID(uid)
	if err != nil {
		return User{}, invalidErr
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return User{}, invalidErr
		}
		return User{}, errors.Wrap(err, "finding user by ID")
	}
	if skipIfVerified && usr.EmailVerified {
		return usr, nil
	}
	if err = gen.verifyToken(usr, token); err != nil {
		return User{}, core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}
	return usr, nil
}

type tokenMailData struct {
	Name  string
	UID   string
	Token string
}

func (svc *Service) sendVerificationMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Verify your email address",
		TemplateName: "verify_email",
		TemplateData: tokenMailData{Name: usr.Name, UID: EncodeUID(usr), Token: svc.verifyTokens.makeToken(usr)},
	})
}

func (svc *Service) sendPasswordResetMail(usr User) {
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: tokenMailData{Name: usr.Name, UID: EncodeUID(usr), Token: svc.resetTokens.makeToken(usr)},
	})
}
