package services

import (
	"errors"
	"sort"
	"strings"
)

// Error categories. Every concrete error below wraps one of them and
// handlers check the category with errors.Is.
var (
	ErrNotFound             = errors.New("requested resource not found")
	ErrConflict             = errors.New("resource conflict")
	ErrForbiddenOperation   = errors.New("operation not allowed for the current user")
	ErrBadRequest           = errors.New("bad request")
	ErrValidationFailed     = errors.New("validation failed")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// serviceError extracts a categorized error from inside a wrapped chain.
func serviceError(err error) (error, bool) {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke, true
	}
	return nil, false
}

var (
	// NotFound
	ErrUserNotFound         = newError(ErrNotFound, "user not found")
	ErrTeamNotFound         = newError(ErrNotFound, "team not found")
	ErrTeamMemberNotFound   = newError(ErrNotFound, "team member not found")
	ErrNotTeamMember        = newError(ErrNotFound, "you are not a member of this team")
	ErrServerNotFound       = newError(ErrNotFound, "server not found")
	ErrCategoryNotFound     = newError(ErrNotFound, "server category not found")
	ErrTagNotFound          = newError(ErrNotFound, "server tag not found")
	ErrReportNotFound       = newError(ErrNotFound, "report not found")
	ErrReportTargetNotFound = newError(ErrNotFound, "reported entity not found")
	ErrNotFollowing         = newError(ErrNotFound, "you are not following this user")

	// Conflict
	ErrTeamNameConflict     = newError(ErrConflict, "team name is already in use")
	ErrAlreadyTeamMember    = newError(ErrConflict, "user is already a member of this team")
	ErrUserEmailConflict    = newError(ErrConflict, "email address is already in use")
	ErrUserUsernameConflict = newError(ErrConflict, "username is already in use")
	ErrAlreadyFollowing     = newError(ErrConflict, "you are already following this user")
	ErrDuplicateReport      = newError(ErrConflict, "you already have an open report for this entity")
	ErrServerSlugConflict   = newError(ErrConflict, "could not allocate a unique server slug")
	ErrMemberChanged        = newError(ErrConflict, "team membership changed, reload and try again")

	// Forbidden
	ErrTeamPermissionDenied = newError(ErrForbiddenOperation, "only team owners and admins can perform this action")
	ErrTeamOwnerOnly        = newError(ErrForbiddenOperation, "only the team owner can perform this action")
	ErrCannotRemoveOwner    = newError(ErrForbiddenOperation, "the team owner cannot be removed")
	ErrOwnerCannotLeave     = newError(ErrForbiddenOperation, "the team owner cannot leave the team, transfer ownership first")
	ErrOwnerRoleChange      = newError(ErrForbiddenOperation, "the owner role can only change through an ownership transfer")
	ErrServerOwnerOnly      = newError(ErrForbiddenOperation, "only the server owner can perform this action")
	ErrModeratorOnly        = newError(ErrForbiddenOperation, "moderator role required")

	// BadRequest
	ErrFileRequired        = newError(ErrBadRequest, "file is required")
	ErrUnsupportedFileType = newError(ErrBadRequest, "unsupported file type")
	ErrFileTooLarge        = newError(ErrBadRequest, "file is too large")
	ErrCannotFollowSelf    = newError(ErrBadRequest, "you cannot follow yourself")
	ErrCannotReportSelf    = newError(ErrBadRequest, "you cannot report yourself")
	ErrTransferToSelf      = newError(ErrBadRequest, "you already own this team")
	ErrInvalidToken        = newError(ErrBadRequest, "token is invalid or has expired")
	ErrReportClosed        = newError(ErrBadRequest, "report has already been closed")

	// Authentication
	ErrInvalidCredentials = newError(ErrAuthenticationFailed, "invalid email or password")
)

// ValidationError carries per-field messages for a rejected input.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

func newValidationError(fields map[string]string) error {
	return &ValidationError{Fields: fields}
}
