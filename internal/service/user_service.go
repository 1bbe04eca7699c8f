package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"snapfeed/internal/auth"
	"snapfeed/internal/domain"
	"snapfeed/internal/repository"
)

const minPasswordLength = 3

// Token is the login response handed to clients.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresIn   int64
}

// ProfileUpdate lists the fields a user may change on their own record.
// Nil means "leave as is". IsSuperuser and IsVerified are only honored for
// superusers.
type ProfileUpdate struct {
	Email       *string
	Password    *string
	IsActive    *bool
	IsSuperuser *bool
	IsVerified  *bool
}

// UserService describes the account lifecycle. Every call runs inside the
// caller's unit of work.
type UserService interface {
	Register(ctx context.Context, uow repository.Session, email, password string) (*domain.User, error)
	Login(ctx context.Context, uow repository.Session, email, password string) (*Token, error)
	Authenticate(ctx context.Context, uow repository.Session, token string) (*domain.User, error)
	ForgotPassword(ctx context.Context, uow repository.Session, email string) error
	ResetPassword(ctx context.Context, uow repository.Session, token, password string) error
	RequestVerification(ctx context.Context, uow repository.Session, email string) error
	Verify(ctx context.Context, uow repository.Session, token string) (*domain.User, error)
	UpdateProfile(ctx context.Context, uow repository.Session, current *domain.User, upd ProfileUpdate) (*domain.User, error)
}

type userService struct {
	tokens   *auth.Manager
	notifier Notifier
	logger   logrus.FieldLogger
	validate *validator.Validate
	hashCost int
}

func NewUserService(tokens *auth.Manager, notifier Notifier, logger logrus.FieldLogger) UserService {
	return &userService{
		tokens:   tokens,
		notifier: notifier,
		logger:   logger,
		validate: validator.New(),
		hashCost: bcrypt.DefaultCost,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *userService) validateEmail(email string) error {
	if email == "" {
		return NewError(ErrValidation, "email is required")
	}
	if err := s.validate.Var(email, "required,email"); err != nil {
		return wrapError(ErrValidation, "email is invalid", err)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return NewError(ErrValidation, fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	return nil
}

func (s *userService) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *userService) Register(ctx context.Context, uow repository.Session, email, password string) (*domain.User, error) {
	email = normalizeEmail(email)
	if err := s.validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := uow.Users().Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, NewError(ErrConflict, "REGISTER_USER_ALREADY_EXISTS")
		}
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	s.logger.WithField("user_id", user.ID).Info("user registered")
	return sanitizeUser(user), nil
}

func (s *userService) Login(ctx context.Context, uow repository.Session, email, password string) (*Token, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, NewError(ErrAuthentication, "LOGIN_BAD_CREDENTIALS")
	}

	user, err := uow.Users().GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewError(ErrAuthentication, "LOGIN_BAD_CREDENTIALS")
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, NewError(ErrAuthentication, "LOGIN_BAD_CREDENTIALS")
	}
	if !user.IsActive {
		return nil, NewError(ErrAuthentication, "LOGIN_BAD_CREDENTIALS")
	}

	token, _, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return nil, err
	}
	return &Token{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.tokens.TokenLifetime().Seconds()),
	}, nil
}

func (s *userService) Authenticate(ctx context.Context, uow repository.Session, token string) (*domain.User, error) {
	claims, err := s.tokens.Parse(token, auth.AudienceAuth)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, wrapError(ErrAuthentication, "Token has expired", err)
		}
		return nil, wrapError(ErrAuthentication, "Invalid token", err)
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, wrapError(ErrAuthentication, "Invalid token", err)
	}

	user, err := uow.Users().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewError(ErrAuthentication, "Unauthorized")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, NewError(ErrAuthentication, "Unauthorized")
	}
	return sanitizeUser(user), nil
}

// ForgotPassword never reveals whether the address is registered.
func (s *userService) ForgotPassword(ctx context.Context, uow repository.Session, email string) error {
	user, err := uow.Users().GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if !user.IsActive {
		return nil
	}

	token, err := s.tokens.IssueReset(user.ID, user.PasswordHash)
	if err != nil {
		return err
	}
	if err := s.notifier.Notify(ctx, NotificationResetPassword, *sanitizeUser(user), token); err != nil {
		return fmt.Errorf("notify reset password: %w", err)
	}
	return nil
}

func (s *userService) ResetPassword(ctx context.Context, uow repository.Session, token, password string) error {
	badToken := func(cause error) error {
		return wrapError(ErrValidation, "RESET_PASSWORD_BAD_TOKEN", cause)
	}

	claims, err := s.tokens.Parse(token, auth.AudienceReset)
	if err != nil {
		return badToken(err)
	}
	id, err := claims.UserID()
	if err != nil {
		return badToken(err)
	}

	user, err := uow.Users().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return badToken(err)
		}
		return err
	}
	if !user.IsActive {
		return badToken(errors.New("inactive user"))
	}
	current := auth.PasswordFingerprint(user.PasswordHash)
	if subtle.ConstantTimeCompare([]byte(current), []byte(claims.PasswordFingerprint)) != 1 {
		return badToken(errors.New("password changed since token was issued"))
	}

	if err := validatePassword(password); err != nil {
		return err
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := uow.Users().Update(ctx, user); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	s.logger.WithField("user_id", user.ID).Info("password reset")
	return nil
}

func (s *userService) RequestVerification(ctx context.Context, uow repository.Session, email string) error {
	user, err := uow.Users().GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	if !user.IsActive || user.IsVerified {
		return nil
	}

	token, err := s.tokens.IssueVerify(user.ID, user.Email)
	if err != nil {
		return err
	}
	if err := s.notifier.Notify(ctx, NotificationVerifyEmail, *sanitizeUser(user), token); err != nil {
		return fmt.Errorf("notify verify email: %w", err)
	}
	return nil
}

func (s *userService) Verify(ctx context.Context, uow repository.Session, token string) (*domain.User, error) {
	badToken := func(cause error) error {
		return wrapError(ErrValidation, "VERIFY_USER_BAD_TOKEN", cause)
	}

	claims, err := s.tokens.Parse(token, auth.AudienceVerify)
	if err != nil {
		return nil, badToken(err)
	}
	id, err := claims.UserID()
	if err != nil {
		return nil, badToken(err)
	}

	user, err := uow.Users().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, badToken(err)
		}
		return nil, err
	}
	if user.Email != claims.Email {
		return nil, badToken(errors.New("email changed since token was issued"))
	}
	if user.IsVerified {
		return nil, NewError(ErrValidation, "VERIFY_USER_ALREADY_VERIFIED")
	}

	user.IsVerified = true
	if err := uow.Users().Update(ctx, user); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func (s *userService) UpdateProfile(ctx context.Context, uow repository.Session, current *domain.User, upd ProfileUpdate) (*domain.User, error) {
	user, err := uow.Users().GetByID(ctx, current.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NewError(ErrAuthentication, "Unauthorized")
		}
		return nil, err
	}

	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		if err := s.validateEmail(email); err != nil {
			return nil, err
		}
		if email != user.Email {
			user.Email = email
			user.IsVerified = false
		}
	}
	if upd.Password != nil {
		if err := validatePassword(*upd.Password); err != nil {
			return nil, err
		}
		hash, err := s.hashPassword(*upd.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}
	if upd.IsActive != nil {
		user.IsActive = *upd.IsActive
	}
	if current.IsSuperuser {
		if upd.IsSuperuser != nil {
			user.IsSuperuser = *upd.IsSuperuser
		}
		if upd.IsVerified != nil {
			user.IsVerified = *upd.IsVerified
		}
	}

	if err := uow.Users().Update(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, NewError(ErrConflict, "UPDATE_USER_EMAIL_ALREADY_EXISTS")
		}
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}
	return sanitizeUser(user), nil
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	clean := *user
	clean.PasswordHash = ""
	return &clean
}
