package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/orbisplace/orbis-api/models"
	"github.com/orbisplace/orbis-api/repositories"
	"github.com/orbisplace/orbis-api/storage"
	"github.com/orbisplace/orbis-api/validator"
)

type UserService interface {
	GetMe(ctx context.Context, userID string) (*models.User, error)
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*models.User, error)
	UploadProfileImage(ctx context.Context, userID string, file *FileUpload) (*models.User, error)
	DeleteProfileImage(ctx context.Context, userID string) (*models.User, error)

	Follow(ctx context.Context, userID, targetID string) error
	Unfollow(ctx context.Context, userID, targetID string) error
	Followers(ctx context.Context, userID string) ([]models.UserSummary, error)
	Following(ctx context.Context, userID string) ([]models.UserSummary, error)
}

// UpdateProfileInput: nil leaves a field unchanged, an empty string clears it.
type UpdateProfileInput struct {
	DisplayName *string
	Bio         *string
	Location    *string
	Website     *string
}

type userService struct {
	userRepo repositories.UserRepository
	uploader storage.FileUploader
	janitor  *blobJanitor
	logger   *slog.Logger
}

func NewUserService(
	userRepo repositories.UserRepository,
	uploader storage.FileUploader,
	cleanup CleanupRecorder,
	logger *slog.Logger,
) UserService {
	if logger == nil {
		logger = slog.Default()
	}
	return &userService{
		userRepo: userRepo,
		uploader: uploader,
		janitor:  newBlobJanitor(uploader, cleanup, logger),
		logger:   logger,
	}
}

func (s *userService) getUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	return user, nil
}

func (s *userService) GetMe(ctx context.Context, userID string) (*models.User, error) {
	return s.getUser(ctx, userID)
}

func (s *userService) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile, err := s.userRepo.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get profile %s: %w", userID, err)
	}
	return profile, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*models.User, error) {
	v := validator.New()
	if input.DisplayName != nil {
		v.Check(validator.MaxChars(*input.DisplayName, 50), "display_name", "must not be more than 50 characters")
	}
	if input.Bio != nil {
		v.Check(validator.MaxChars(*input.Bio, 500), "bio", "must not be more than 500 characters")
	}
	if input.Location != nil {
		v.Check(validator.MaxChars(*input.Location, 100), "location", "must not be more than 100 characters")
	}
	if input.Website != nil && *input.Website != "" {
		v.Check(validator.IsURL(*input.Website), "website", "must be a valid http(s) URL")
	}
	if !v.Valid() {
		return nil, newValidationError(v.Errors)
	}

	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if input.DisplayName != nil {
		user.DisplayName = optionalString(*input.DisplayName)
	}
	if input.Bio != nil {
		user.Bio = optionalString(*input.Bio)
	}
	if input.Location != nil {
		user.Location = optionalString(*input.Location)
	}
	if input.Website != nil {
		user.Website = optionalString(*input.Website)
	}

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update user %s: %w", userID, err)
	}
	return user, nil
}

func (s *userService) UploadProfileImage(ctx context.Context, userID string, file *FileUpload) (*models.User, error) {
	if err := userProfileRule.validate(file); err != nil {
		return nil, err
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	key, err := objectKey("users", userID, "profile", file.ContentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFileType, err)
	}
	result, err := s.uploader.Upload(ctx, key, normalizeContentType(file.ContentType), file.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to upload profile image: %w", err)
	}

	newURL := result.Location
	if err := s.userRepo.UpdateImage(ctx, userID, &newURL); err != nil {
		s.janitor.remove(ctx, "user", &newURL)
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to store profile image: %w", err)
	}

	previous := user.Image
	user.Image = &newURL
	s.janitor.remove(ctx, "user", previous)
	return user, nil
}

func (s *userService) DeleteProfileImage(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Image == nil {
		return user, nil
	}
	if err := s.userRepo.UpdateImage(ctx, userID, nil); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to clear profile image: %w", err)
	}
	previous := user.Image
	user.Image = nil
	s.janitor.remove(ctx, "user", previous)
	return user, nil
}

func (s *userService) Follow(ctx context.Context, userID, targetID string) error {
	if userID == targetID {
		return ErrCannotFollowSelf
	}
	if _, err := s.getUser(ctx, targetID); err != nil {
		return err
	}
	if err := s.userRepo.Follow(ctx, userID, targetID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrFollowConflict):
			return ErrAlreadyFollowing
		case errors.Is(err, repositories.ErrUserNotFound):
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to follow user %s: %w", targetID, err)
	}
	return nil
}

func (s *userService) Unfollow(ctx context.Context, userID, targetID string) error {
	if _, err := s.getUser(ctx, targetID); err != nil {
		return err
	}
	if err := s.userRepo.Unfollow(ctx, userID, targetID); err != nil {
		if errors.Is(err, repositories.ErrFollowNotFound) {
			return ErrNotFollowing
		}
		return fmt.Errorf("failed to unfollow user %s: %w", targetID, err)
	}
	return nil
}

func (s *userService) Followers(ctx context.Context, userID string) ([]models.UserSummary, error) {
	if _, err := s.getUser(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.userRepo.ListFollowers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list followers of %s: %w", userID, err)
	}
	return users, nil
}

func (s *userService) Following(ctx context.Context, userID string) ([]models.UserSummary, error) {
	if _, err := s.getUser(ctx, userID); err != nil {
		return nil, err
	}
	users, err := s.userRepo.ListFollowing(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list following of %s: %w", userID, err)
	}
	return users, nil
}
