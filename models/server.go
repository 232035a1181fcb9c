package models

import (
	"time"

	"github.com/lib/pq"
)

type ServerStatus string

const (
	ServerStatusPending  ServerStatus = "PENDING"
	ServerStatusApproved ServerStatus = "APPROVED"
	ServerStatusRejected ServerStatus = "REJECTED"
)

type ServerSortOption string

const (
	SortVotes    ServerSortOption = "votes"
	SortPlayers  ServerSortOption = "players"
	SortNewest   ServerSortOption = "newest"
	SortOldest   ServerSortOption = "oldest"
	SortNameAsc  ServerSortOption = "name-asc"
	SortNameDesc ServerSortOption = "name-desc"
)

func (s ServerSortOption) IsValid() bool {
	switch s {
	case SortVotes, SortPlayers, SortNewest, SortOldest, SortNameAsc, SortNameDesc:
		return true
	}
	return false
}

type Server struct {
	ID                string         `json:"id" db:"id"`
	Name              string         `json:"name" db:"name"`
	Slug              string         `json:"slug" db:"slug"`
	Description       string         `json:"description" db:"description"`
	ShortDesc         *string        `json:"short_desc,omitempty" db:"short_desc"`
	ServerIP          string         `json:"server_ip" db:"server_ip"`
	Port              int            `json:"port" db:"port"`
	GameVersion       string         `json:"game_version" db:"game_version"`
	SupportedVersions pq.StringArray `json:"supported_versions" db:"supported_versions"`
	WebsiteURL        *string        `json:"website_url,omitempty" db:"website_url"`
	DiscordURL        *string        `json:"discord_url,omitempty" db:"discord_url"`
	YoutubeURL        *string        `json:"youtube_url,omitempty" db:"youtube_url"`
	TwitterURL        *string        `json:"twitter_url,omitempty" db:"twitter_url"`
	Logo              *string        `json:"logo,omitempty" db:"logo"`
	Banner            *string        `json:"banner,omitempty" db:"banner"`
	OwnerID           string         `json:"owner_id" db:"owner_id"`
	TeamID            *string        `json:"team_id,omitempty" db:"team_id"`
	PrimaryCategoryID string         `json:"primary_category_id" db:"primary_category_id"`
	Status            ServerStatus   `json:"status" db:"status"`
	ModerationReason  *string        `json:"moderation_reason,omitempty" db:"moderation_reason"`
	IsOnline          bool           `json:"is_online" db:"is_online"`
	IsFeatured        bool           `json:"is_featured" db:"is_featured"`
	IsVerified        bool           `json:"is_verified" db:"is_verified"`
	CurrentPlayers    int            `json:"current_players" db:"current_players"`
	MaxPlayers        int            `json:"max_players" db:"max_players"`
	VoteCount         int            `json:"vote_count" db:"vote_count"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at" db:"updated_at"`

	Categories []ServerCategory `json:"categories,omitempty" db:"-"`
	Tags       []ServerTag      `json:"tags,omitempty" db:"-"`
}

type ServerCategory struct {
	ID          string  `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Slug        string  `json:"slug" db:"slug"`
	Description *string `json:"description,omitempty" db:"description"`
	Icon        *string `json:"icon,omitempty" db:"icon"`
	SortOrder   int     `json:"sort_order" db:"sort_order"`
	ServerCount int     `json:"server_count" db:"server_count"`
}

type ServerTag struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Slug        string `json:"slug" db:"slug"`
	ServerCount int    `json:"server_count" db:"server_count"`
}
