package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/orbisplace/orbis-api/db"
	"github.com/orbisplace/orbis-api/models"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserEmailConflict    = errors.New("user email conflict")
	ErrUserUsernameConflict = errors.New("user username conflict")
	ErrFollowNotFound       = errors.New("follow not found")
	ErrFollowConflict       = errors.New("already following")
)

const userColumns = `id, username, email, email_verified, password_hash, display_name, image, banner,
	bio, location, website, role, email_verification_token, password_reset_token,
	password_reset_expires_at, created_at, updated_at`

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*models.User, error)
	GetByResetToken(ctx context.Context, token string) (*models.User, error)
	GetProfile(ctx context.Context, id string) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdateImage(ctx context.Context, id string, image *string) error
	MarkEmailVerified(ctx context.Context, id string) error
	SetResetToken(ctx context.Context, id string, token string, expiresAt time.Time) error
	UpdatePassword(ctx context.Context, id string, passwordHash string) error

	Follow(ctx context.Context, followerID, followingID string) error
	Unfollow(ctx context.Context, followerID, followingID string) error
	ListFollowers(ctx context.Context, userID string) ([]models.UserSummary, error)
	ListFollowing(ctx context.Context, userID string) ([]models.UserSummary, error)
}

type postgresUserRepository struct {
	db *sqlx.DB
}

func NewPostgresUserRepository(db *sqlx.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, username, email, password_hash, display_name, role, email_verification_token)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := db.Conn(ctx, r.db).QueryRowxContext(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.DisplayName,
		user.Role,
		user.EmailVerificationToken,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err, "users_email_key"):
			return ErrUserEmailConflict
		case isUniqueViolation(err, "users_username_key"):
			return ErrUserUsernameConflict
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (r *postgresUserRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where
	if err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *postgresUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *postgresUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, "LOWER(email) = LOWER($1)", email)
}

func (r *postgresUserRepository) GetByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	return r.getOne(ctx, "email_verification_token = $1", token)
}

func (r *postgresUserRepository) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	return r.getOne(ctx, "password_reset_token = $1", token)
}

func (r *postgresUserRepository) GetProfile(ctx context.Context, id string) (*models.UserProfile, error) {
	query := `
		SELECT u.id, u.username, u.display_name, u.image, u.banner, u.bio, u.location, u.website, u.created_at,
			(SELECT COUNT(*) FROM user_follows f WHERE f.following_id = u.id) AS follower_count,
			(SELECT COUNT(*) FROM user_follows f WHERE f.follower_id = u.id) AS following_count
		FROM users u
		WHERE u.id = $1`

	var profile models.UserProfile
	if err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &profile, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user profile: %w", err)
	}
	return &profile, nil
}

func (r *postgresUserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET
			display_name = $1,
			bio = $2,
			location = $3,
			website = $4,
			updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at`

	err := db.Conn(ctx, r.db).QueryRowxContext(ctx, query,
		user.DisplayName, user.Bio, user.Location, user.Website, user.ID,
	).Scan(&user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (r *postgresUserRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := db.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrUserNotFound)
}

func (r *postgresUserRepository) UpdateImage(ctx context.Context, id string, image *string) error {
	return r.exec(ctx, `UPDATE users SET image = $1, updated_at = NOW() WHERE id = $2`, image, id)
}

func (r *postgresUserRepository) MarkEmailVerified(ctx context.Context, id string) error {
	return r.exec(ctx, `
		UPDATE users SET email_verified = TRUE, email_verification_token = NULL, updated_at = NOW()
		WHERE id = $1`, id)
}

func (r *postgresUserRepository) SetResetToken(ctx context.Context, id string, token string, expiresAt time.Time) error {
	return r.exec(ctx, `
		UPDATE users SET password_reset_token = $1, password_reset_expires_at = $2, updated_at = NOW()
		WHERE id = $3`, token, expiresAt, id)
}

func (r *postgresUserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	return r.exec(ctx, `
		UPDATE users SET password_hash = $1, password_reset_token = NULL, password_reset_expires_at = NULL,
			updated_at = NOW()
		WHERE id = $2`, passwordHash, id)
}

func (r *postgresUserRepository) Follow(ctx context.Context, followerID, followingID string) error {
	_, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO user_follows (follower_id, following_id) VALUES ($1, $2)`, followerID, followingID)
	if err != nil {
		switch {
		case isUniqueViolation(err, "user_follows_pkey"):
			return ErrFollowConflict
		case isForeignKeyViolation(err):
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to insert follow: %w", err)
	}
	return nil
}

func (r *postgresUserRepository) Unfollow(ctx context.Context, followerID, followingID string) error {
	result, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM user_follows WHERE follower_id = $1 AND following_id = $2`, followerID, followingID)
	if err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}
	return checkAffectedRows(result, ErrFollowNotFound)
}

func (r *postgresUserRepository) ListFollowers(ctx context.Context, userID string) ([]models.UserSummary, error) {
	return r.listSummaries(ctx, `
		SELECT u.id, u.username, u.display_name, u.image
		FROM user_follows f
		JOIN users u ON u.id = f.follower_id
		WHERE f.following_id = $1
		ORDER BY f.created_at DESC, u.id`, userID)
}

func (r *postgresUserRepository) ListFollowing(ctx context.Context, userID string) ([]models.UserSummary, error) {
	return r.listSummaries(ctx, `
		SELECT u.id, u.username, u.display_name, u.image
		FROM user_follows f
		JOIN users u ON u.id = f.following_id
		WHERE f.follower_id = $1
		ORDER BY f.created_at DESC, u.id`, userID)
}

func (r *postgresUserRepository) listSummaries(ctx context.Context, query string, args ...interface{}) ([]models.UserSummary, error) {
	users := []models.UserSummary{}
	if err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &users, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}
