package models

import "time"

type ReportTargetType string

const (
	ReportTargetServer ReportTargetType = "SERVER"
	ReportTargetUser   ReportTargetType = "USER"
	ReportTargetTeam   ReportTargetType = "TEAM"
)

func (t ReportTargetType) IsValid() bool {
	switch t {
	case ReportTargetServer, ReportTargetUser, ReportTargetTeam:
		return true
	}
	return false
}

type ReportReason string

const (
	ReasonSpam            ReportReason = "SPAM"
	ReasonReuploadedWork  ReportReason = "REUPLOADED_WORK"
	ReasonInappropriate   ReportReason = "INAPPROPRIATE"
	ReasonMalicious       ReportReason = "MALICIOUS"
	ReasonNameSquatting   ReportReason = "NAME_SQUATTING"
	ReasonPoorDescription ReportReason = "POOR_DESCRIPTION"
	ReasonInvalidMetadata ReportReason = "INVALID_METADATA"
	ReasonOther           ReportReason = "OTHER"
)

func (r ReportReason) IsValid() bool {
	switch r {
	case ReasonSpam, ReasonReuploadedWork, ReasonInappropriate, ReasonMalicious,
		ReasonNameSquatting, ReasonPoorDescription, ReasonInvalidMetadata, ReasonOther:
		return true
	}
	return false
}

type ReportStatus string

const (
	ReportStatusPending     ReportStatus = "PENDING"
	ReportStatusUnderReview ReportStatus = "UNDER_REVIEW"
	ReportStatusResolved    ReportStatus = "RESOLVED"
	ReportStatusDismissed   ReportStatus = "DISMISSED"
)

func (s ReportStatus) IsValid() bool {
	switch s {
	case ReportStatusPending, ReportStatusUnderReview, ReportStatusResolved, ReportStatusDismissed:
		return true
	}
	return false
}

// IsOpen reports whether a moderator still has to act on the report.
func (s ReportStatus) IsOpen() bool {
	return s == ReportStatusPending || s == ReportStatusUnderReview
}

type ReportAction string

const (
	ReportActionDismiss     ReportAction = "DISMISS"
	ReportActionResolve     ReportAction = "RESOLVE"
	ReportActionUnderReview ReportAction = "UNDER_REVIEW"
)

// ResultingStatus maps a moderation action to the status it produces.
func (a ReportAction) ResultingStatus() (ReportStatus, bool) {
	switch a {
	case ReportActionDismiss:
		return ReportStatusDismissed, true
	case ReportActionResolve:
		return ReportStatusResolved, true
	case ReportActionUnderReview:
		return ReportStatusUnderReview, true
	}
	return "", false
}

type Report struct {
	ID          string           `json:"id" db:"id"`
	ReporterID  string           `json:"reporter_id" db:"reporter_id"`
	TargetType  ReportTargetType `json:"target_type" db:"target_type"`
	TargetID    string           `json:"target_id" db:"target_id"`
	Reason      ReportReason     `json:"reason" db:"reason"`
	Description *string          `json:"description,omitempty" db:"description"`
	Status      ReportStatus     `json:"status" db:"status"`
	ModeratorID *string          `json:"moderator_id,omitempty" db:"moderator_id"`
	Response    *string          `json:"response,omitempty" db:"response"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
	ResolvedAt  *time.Time       `json:"resolved_at,omitempty" db:"resolved_at"`
}
