package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/orbisplace/orbis-api/db"
	"github.com/orbisplace/orbis-api/models"
)

var (
	ErrTeamMemberNotFound = errors.New("team member not found")
	ErrTeamMemberConflict = errors.New("user is already a team member")
	ErrTeamOwnerConflict  = errors.New("team already has an owner")
)

type TeamMemberRepository interface {
	Create(ctx context.Context, member *models.TeamMember) error
	GetByID(ctx context.Context, id string) (*models.TeamMember, error)
	GetByTeamAndUser(ctx context.Context, teamID, userID string) (*models.TeamMember, error)
	ListByTeam(ctx context.Context, teamID string) ([]models.TeamMember, error)
	ChangeRole(ctx context.Context, id string, from, to models.TeamMemberRole) error
	Delete(ctx context.Context, id string) error
}

type postgresTeamMemberRepository struct {
	db *sqlx.DB
}

func NewPostgresTeamMemberRepository(db *sqlx.DB) TeamMemberRepository {
	return &postgresTeamMemberRepository{db: db}
}

func (r *postgresTeamMemberRepository) Create(ctx context.Context, member *models.TeamMember) error {
	query := `
		INSERT INTO team_members (id, team_id, user_id, role)
		VALUES ($1, $2, $3, $4)
		RETURNING joined_at`

	err := db.Conn(ctx, r.db).QueryRowxContext(ctx, query,
		member.ID, member.TeamID, member.UserID, member.Role,
	).Scan(&member.JoinedAt)
	if err != nil {
		if isUniqueViolation(err, "team_members_team_id_user_id_key") {
			return ErrTeamMemberConflict
		}
		if c, ok := pqConstraint(err, pqForeignKeyViolation); ok {
			if c == "team_members_team_id_fkey" {
				return ErrTeamNotFound
			}
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to insert team member: %w", err)
	}
	return nil
}

func (r *postgresTeamMemberRepository) getOne(ctx context.Context, where string, args ...interface{}) (*models.TeamMember, error) {
	var member models.TeamMember
	query := `SELECT id, team_id, user_id, role, joined_at FROM team_members WHERE ` + where
	if err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &member, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamMemberNotFound
		}
		return nil, fmt.Errorf("failed to get team member: %w", err)
	}
	return &member, nil
}

func (r *postgresTeamMemberRepository) GetByID(ctx context.Context, id string) (*models.TeamMember, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *postgresTeamMemberRepository) GetByTeamAndUser(ctx context.Context, teamID, userID string) (*models.TeamMember, error) {
	return r.getOne(ctx, "team_id = $1 AND user_id = $2", teamID, userID)
}

type teamMemberRow struct {
	models.TeamMember
	Username    string  `db:"username"`
	DisplayName *string `db:"display_name"`
	Image       *string `db:"image"`
}

// ListByTeam returns members ordered OWNER, ADMIN, MEMBER, then by join time.
func (r *postgresTeamMemberRepository) ListByTeam(ctx context.Context, teamID string) ([]models.TeamMember, error) {
	query := `
		SELECT m.id, m.team_id, m.user_id, m.role, m.joined_at,
			u.username, u.display_name, u.image
		FROM team_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.team_id = $1
		ORDER BY CASE m.role WHEN 'OWNER' THEN 0 WHEN 'ADMIN' THEN 1 ELSE 2 END, m.joined_at, m.id`

	var rows []teamMemberRow
	if err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &rows, query, teamID); err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}

	members := make([]models.TeamMember, 0, len(rows))
	for _, row := range rows {
		m := row.TeamMember
		m.User = &models.UserSummary{
			ID:          row.UserID,
			Username:    row.Username,
			DisplayName: row.DisplayName,
			Image:       row.Image,
		}
		members = append(members, m)
	}
	return members, nil
}

// ChangeRole moves a member from one role to another. It returns ErrTeamMemberNotFound
// when the member no longer holds the from role.
func (r *postgresTeamMemberRepository) ChangeRole(ctx context.Context, id string, from, to models.TeamMemberRole) error {
	query := `UPDATE team_members SET role = $1 WHERE id = $2 AND role = $3`
	result, err := db.Conn(ctx, r.db).ExecContext(ctx, query, to, id, from)
	if err != nil {
		if isUniqueViolation(err, "team_members_one_owner_idx") {
			return ErrTeamOwnerConflict
		}
		return fmt.Errorf("failed to update team member role: %w", err)
	}
	return checkAffectedRows(result, ErrTeamMemberNotFound)
}

func (r *postgresTeamMemberRepository) Delete(ctx context.Context, id string) error {
	result, err := db.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM team_members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team member: %w", err)
	}
	return checkAffectedRows(result, ErrTeamMemberNotFound)
}
