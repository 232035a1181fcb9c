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
	ErrTeamNotFound     = errors.New("team not found")
	ErrTeamNameConflict = errors.New("team name conflict")
	ErrInvalidTeamImage = errors.New("invalid team image column")
)

const teamColumns = `t.id, t.name, t.display_name, t.description, t.website, t.discord_url,
	t.logo, t.banner, t.owner_id, t.created_at, t.updated_at`

// TeamListFilter holds an already normalized page request.
type TeamListFilter struct {
	Search string
	Limit  int
	Offset int
}

type TeamRepository interface {
	Create(ctx context.Context, team *models.Team) error
	GetByID(ctx context.Context, id string) (*models.Team, error)
	GetByName(ctx context.Context, name string) (*models.Team, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	List(ctx context.Context, filter TeamListFilter) ([]models.TeamSummary, error)
	Count(ctx context.Context, search string) (int, error)
	Update(ctx context.Context, team *models.Team) error
	UpdateImage(ctx context.Context, id string, image models.TeamImage, url *string) error
	UpdateOwner(ctx context.Context, id string, ownerID string) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string) ([]models.UserTeam, error)
}

type postgresTeamRepository struct {
	db *sqlx.DB
}

func NewPostgresTeamRepository(db *sqlx.DB) TeamRepository {
	return &postgresTeamRepository{db: db}
}

func (r *postgresTeamRepository) Create(ctx context.Context, team *models.Team) error {
	query := `
		INSERT INTO teams (id, name, display_name, description, website, discord_url, owner_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := db.Conn(ctx, r.db).QueryRowxContext(ctx, query,
		team.ID,
		team.Name,
		team.DisplayName,
		team.Description,
		team.Website,
		team.DiscordURL,
		team.OwnerID,
	).Scan(&team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "teams_name_key") {
			return ErrTeamNameConflict
		}
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to insert team: %w", err)
	}
	return nil
}

func (r *postgresTeamRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.Team, error) {
	var team models.Team
	query := `SELECT ` + teamColumns + ` FROM teams t WHERE ` + where
	if err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &team, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return &team, nil
}

func (r *postgresTeamRepository) GetByID(ctx context.Context, id string) (*models.Team, error) {
	return r.getOne(ctx, "t.id = $1", id)
}

func (r *postgresTeamRepository) GetByName(ctx context.Context, name string) (*models.Team, error) {
	return r.getOne(ctx, "t.name = LOWER($1)", name)
}

func (r *postgresTeamRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &exists,
		`SELECT EXISTS(SELECT 1 FROM teams WHERE name = LOWER($1))`, name)
	if err != nil {
		return false, fmt.Errorf("failed to check team name: %w", err)
	}
	return exists, nil
}

const teamSearchClause = `($1 = '' OR t.name ILIKE $2 OR t.display_name ILIKE $2 OR t.description ILIKE $2)`

func (r *postgresTeamRepository) List(ctx context.Context, filter TeamListFilter) ([]models.TeamSummary, error) {
	query := `
		SELECT ` + teamColumns + `,
			(SELECT COUNT(*) FROM team_members m WHERE m.team_id = t.id) AS member_count,
			(SELECT COUNT(*) FROM servers s WHERE s.team_id = t.id) AS server_count
		FROM teams t
		WHERE ` + teamSearchClause + `
		ORDER BY t.created_at DESC, t.id
		LIMIT $3 OFFSET $4`

	teams := []models.TeamSummary{}
	err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &teams, query,
		filter.Search, containsPattern(filter.Search), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return teams, nil
}

func (r *postgresTeamRepository) Count(ctx context.Context, search string) (int, error) {
	var total int
	query := `SELECT COUNT(*) FROM teams t WHERE ` + teamSearchClause
	if err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &total, query, search, containsPattern(search)); err != nil {
		return 0, fmt.Errorf("failed to count teams: %w", err)
	}
	return total, nil
}

func (r *postgresTeamRepository) Update(ctx context.Context, team *models.Team) error {
	query := `
		UPDATE teams SET
			display_name = $1,
			description = $2,
			website = $3,
			discord_url = $4,
			updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at`

	err := db.Conn(ctx, r.db).QueryRowxContext(ctx, query,
		team.DisplayName, team.Description, team.Website, team.DiscordURL, team.ID,
	).Scan(&team.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTeamNotFound
		}
		return fmt.Errorf("failed to update team: %w", err)
	}
	return nil
}

func (r *postgresTeamRepository) UpdateImage(ctx context.Context, id string, image models.TeamImage, url *string) error {
	var column string
	switch image {
	case models.TeamImageLogo:
		column = "logo"
	case models.TeamImageBanner:
		column = "banner"
	default:
		return ErrInvalidTeamImage
	}

	query := fmt.Sprintf(`UPDATE teams SET %s = $1, updated_at = NOW() WHERE id = $2`, column)
	result, err := db.Conn(ctx, r.db).ExecContext(ctx, query, url, id)
	if err != nil {
		return fmt.Errorf("failed to update team %s: %w", column, err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) UpdateOwner(ctx context.Context, id string, ownerID string) error {
	result, err := db.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE teams SET owner_id = $1, updated_at = NOW() WHERE id = $2`, ownerID, id)
	if err != nil {
		return fmt.Errorf("failed to update team owner: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) Delete(ctx context.Context, id string) error {
	result, err := db.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	return checkAffectedRows(result, ErrTeamNotFound)
}

func (r *postgresTeamRepository) ListByUser(ctx context.Context, userID string) ([]models.UserTeam, error) {
	query := `
		SELECT ` + teamColumns + `,
			(SELECT COUNT(*) FROM team_members m2 WHERE m2.team_id = t.id) AS member_count,
			(SELECT COUNT(*) FROM servers s WHERE s.team_id = t.id) AS server_count,
			m.role AS member_role,
			m.joined_at
		FROM team_members m
		JOIN teams t ON t.id = m.team_id
		WHERE m.user_id = $1
		ORDER BY m.joined_at DESC, t.id`

	teams := []models.UserTeam{}
	if err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &teams, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list user teams: %w", err)
	}
	return teams, nil
}
