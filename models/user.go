package models

import "time"

type UserRole string

const (
	RoleUser      UserRole = "USER"
	RoleModerator UserRole = "MODERATOR"
	RoleAdmin     UserRole = "ADMIN"
)

func (r UserRole) IsValid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// CanModerate reports whether the role may act on reports and server submissions.
func (r UserRole) CanModerate() bool {
	return r == RoleModerator || r == RoleAdmin
}

type User struct {
	ID            string    `json:"id" db:"id"`
	Username      string    `json:"username" db:"username"`
	Email         string    `json:"email" db:"email"`
	EmailVerified bool      `json:"email_verified" db:"email_verified"`
	PasswordHash  string    `json:"-" db:"password_hash"`
	DisplayName   *string   `json:"display_name,omitempty" db:"display_name"`
	Image         *string   `json:"image,omitempty" db:"image"`
	Banner        *string   `json:"banner,omitempty" db:"banner"`
	Bio           *string   `json:"bio,omitempty" db:"bio"`
	Location      *string   `json:"location,omitempty" db:"location"`
	Website       *string   `json:"website,omitempty" db:"website"`
	Role          UserRole  `json:"role" db:"role"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`

	EmailVerificationToken *string    `json:"-" db:"email_verification_token"`
	PasswordResetToken     *string    `json:"-" db:"password_reset_token"`
	PasswordResetExpiresAt *time.Time `json:"-" db:"password_reset_expires_at"`
}

// Summary returns the public subset embedded in other resources.
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Image:       u.Image,
	}
}

type UserSummary struct {
	ID          string  `json:"id" db:"id"`
	Username    string  `json:"username" db:"username"`
	DisplayName *string `json:"display_name,omitempty" db:"display_name"`
	Image       *string `json:"image,omitempty" db:"image"`
}

// UserProfile is the public profile view.
type UserProfile struct {
	ID             string    `json:"id" db:"id"`
	Username       string    `json:"username" db:"username"`
	DisplayName    *string   `json:"display_name,omitempty" db:"display_name"`
	Image          *string   `json:"image,omitempty" db:"image"`
	Banner         *string   `json:"banner,omitempty" db:"banner"`
	Bio            *string   `json:"bio,omitempty" db:"bio"`
	Location       *string   `json:"location,omitempty" db:"location"`
	Website        *string   `json:"website,omitempty" db:"website"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	FollowerCount  int       `json:"follower_count" db:"follower_count"`
	FollowingCount int       `json:"following_count" db:"following_count"`
}
