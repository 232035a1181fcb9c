package models

import "time"

type TeamEventType string

const (
	TeamEventUpdated       TeamEventType = "team.updated"
	TeamEventDeleted       TeamEventType = "team.deleted"
	TeamEventImageChanged  TeamEventType = "team.image_changed"
	TeamEventMemberAdded   TeamEventType = "member.added"
	TeamEventMemberUpdated TeamEventType = "member.updated"
	TeamEventMemberRemoved TeamEventType = "member.removed"
	TeamEventMemberLeft    TeamEventType = "member.left"
	TeamEventOwnerChanged  TeamEventType = "team.ownership_transferred"
)

// TeamEvent is pushed to clients watching a team.
type TeamEvent struct {
	Type       TeamEventType `json:"type"`
	TeamID     string        `json:"team_id"`
	ActorID    string        `json:"actor_id"`
	Payload    interface{}   `json:"payload,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}
