package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/orbisplace/orbis-api/config"
	"github.com/orbisplace/orbis-api/models"
	"github.com/orbisplace/orbis-api/repositories"
	"github.com/orbisplace/orbis-api/utils"
	"github.com/orbisplace/orbis-api/validator"
)

const (
	resetTokenTTL    = time.Hour
	tokenBytes       = 32
	minPasswordChars = 8
	maxPasswordChars = 72
)

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	VerifyEmail(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
}

type RegisterInput struct {
	Email    string
	Username string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

type authService struct {
	userRepo repositories.UserRepository
	mailer   Mailer
	secret   []byte
	tokenTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

func NewAuthService(userRepo repositories.UserRepository, mailer Mailer, cfg config.AuthConfig, logger *slog.Logger) AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &authService{
		userRepo: userRepo,
		mailer:   mailer,
		secret:   []byte(cfg.JWTSecretKey),
		tokenTTL: cfg.AccessTokenTTL,
		logger:   logger,
		now:      time.Now,
	}
}

func validatePassword(v *validator.Validator, password string) {
	v.Check(validator.MinChars(password, minPasswordChars), "password", fmt.Sprintf("must be at least %d characters", minPasswordChars))
	v.Check(len(password) <= maxPasswordChars, "password", fmt.Sprintf("must not be more than %d bytes", maxPasswordChars))
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Username = strings.TrimSpace(input.Username)

	v := validator.New()
	v.Check(validator.NotBlank(input.Email), "email", "must be provided")
	v.Check(validator.IsEmail(input.Email), "email", "must be a valid email address")
	v.Check(validator.Matches(input.Username, validator.UsernameRX), "username", "must be 3-32 letters, digits, '_' or '-'")
	validatePassword(v, input.Password)
	if !v.Valid() {
		return nil, newValidationError(v.Errors)
	}

	hash, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	verificationToken, err := utils.GenerateRandomToken(tokenBytes)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:                     uuid.NewString(),
		Username:               input.Username,
		Email:                  input.Email,
		PasswordHash:           hash,
		Role:                   models.RoleUser,
		EmailVerificationToken: &verificationToken,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		switch {
		case errors.Is(err, repositories.ErrUserEmailConflict):
			return nil, ErrUserEmailConflict
		case errors.Is(err, repositories.ErrUserUsernameConflict):
			return nil, ErrUserUsernameConflict
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.InfoContext(ctx, "user registered", slog.String("user_id", user.ID))
	if err := s.mailer.SendVerificationEmail(ctx, user.Email, user.Username, verificationToken); err != nil {
		s.logger.ErrorContext(ctx, "failed to send verification email",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}
	return user, nil
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if !utils.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	token, err := utils.GenerateJWT(s.secret, user.ID, string(user.Role), s.tokenTTL, now)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: now.Add(s.tokenTTL).UTC(), User: user}, nil
}

func (s *authService) VerifyEmail(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	user, err := s.userRepo.GetByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to find user by verification token: %w", err)
	}
	if err := s.userRepo.MarkEmailVerified(ctx, user.ID); err != nil {
		return fmt.Errorf("failed to verify email of %s: %w", user.ID, err)
	}
	return nil
}

// ForgotPassword never reveals whether the email is registered.
func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !validator.IsEmail(email) {
		return newValidationError(map[string]string{"email": "must be a valid email address"})
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil
		}
		return fmt.Errorf("failed to find user by email: %w", err)
	}

	resetToken, err := utils.GenerateRandomToken(tokenBytes)
	if err != nil {
		return err
	}
	if err := s.userRepo.SetResetToken(ctx, user.ID, resetToken, s.now().Add(resetTokenTTL).UTC()); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	if err := s.mailer.SendPasswordResetEmail(ctx, user.Email, user.Username, resetToken); err != nil {
		s.logger.ErrorContext(ctx, "failed to send password reset email",
			slog.String("user_id", user.ID),
			slog.Any("error", err))
	}
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, token, password string) error {
	v := validator.New()
	v.Check(validator.NotBlank(token), "token", "must be provided")
	validatePassword(v, password)
	if !v.Valid() {
		return newValidationError(v.Errors)
	}

	user, err := s.userRepo.GetByResetToken(ctx, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrInvalidToken
		}
		return fmt.Errorf("failed to find user by reset token: %w", err)
	}
	if user.PasswordResetExpiresAt == nil || !s.now().Before(*user.PasswordResetExpiresAt) {
		return ErrInvalidToken
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("failed to update password of %s: %w", user.ID, err)
	}
	s.logger.InfoContext(ctx, "password reset", slog.String("user_id", user.ID))
	return nil
}
