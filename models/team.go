package models

import "time"

type TeamMemberRole string

const (
	TeamRoleOwner  TeamMemberRole = "OWNER"
	TeamRoleAdmin  TeamMemberRole = "ADMIN"
	TeamRoleMember TeamMemberRole = "MEMBER"
)

func (r TeamMemberRole) IsValid() bool {
	switch r {
	case TeamRoleOwner, TeamRoleAdmin, TeamRoleMember:
		return true
	}
	return false
}

// CanManage reports whether the role may edit the team and manage its members.
func (r TeamMemberRole) CanManage() bool {
	return r == TeamRoleOwner || r == TeamRoleAdmin
}

// Rank orders roles from most to least privileged.
func (r TeamMemberRole) Rank() int {
	switch r {
	case TeamRoleOwner:
		return 0
	case TeamRoleAdmin:
		return 1
	default:
		return 2
	}
}

type Team struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Description *string   `json:"description,omitempty" db:"description"`
	Website     *string   `json:"website,omitempty" db:"website"`
	DiscordURL  *string   `json:"discord_url,omitempty" db:"discord_url"`
	Logo        *string   `json:"logo,omitempty" db:"logo"`
	Banner      *string   `json:"banner,omitempty" db:"banner"`
	OwnerID     string    `json:"owner_id" db:"owner_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`

	Owner   *UserSummary `json:"owner,omitempty" db:"-"`
	Members []TeamMember `json:"members,omitempty" db:"-"`
}

// TeamSummary is a list row with aggregate counts.
type TeamSummary struct {
	Team
	MemberCount int `json:"member_count" db:"member_count"`
	ServerCount int `json:"server_count" db:"server_count"`
}

type TeamMember struct {
	ID       string         `json:"id" db:"id"`
	TeamID   string         `json:"team_id" db:"team_id"`
	UserID   string         `json:"user_id" db:"user_id"`
	Role     TeamMemberRole `json:"role" db:"role"`
	JoinedAt time.Time      `json:"joined_at" db:"joined_at"`

	User *UserSummary `json:"user,omitempty" db:"-"`
}

// UserTeam is a team seen from one of its members.
type UserTeam struct {
	TeamSummary
	MemberRole TeamMemberRole `json:"member_role" db:"member_role"`
	JoinedAt   time.Time      `json:"joined_at" db:"joined_at"`
}

// TeamImage names one of the team's stored images.
type TeamImage string

const (
	TeamImageLogo   TeamImage = "logo"
	TeamImageBanner TeamImage = "banner"
)
