package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/orbisplace/orbis-api/db"
	"github.com/orbisplace/orbis-api/models"
)

var (
	ErrServerNotFound     = errors.New("server not found")
	ErrServerSlugConflict = errors.New("server slug conflict")
)

const serverColumns = `s.id, s.name, s.slug, s.description, s.short_desc, s.server_ip, s.port,
	s.game_version, s.supported_versions, s.website_url, s.discord_url, s.youtube_url, s.twitter_url,
	s.logo, s.banner, s.owner_id, s.team_id, s.primary_category_id, s.status, s.moderation_reason,
	s.is_online, s.is_featured, s.is_verified, s.current_players, s.max_players, s.vote_count,
	s.created_at, s.updated_at`

// ServerFilter is a normalized listing query. Zero values do not narrow the result.
type ServerFilter struct {
	Status      models.ServerStatus
	Search      string
	Category    string
	Tags        []string
	GameVersion string
	Online      bool
	Featured    bool
	Verified    bool
	MinPlayers  *int
	MaxPlayers  *int
	SortBy      models.ServerSortOption
	Limit       int
	Offset      int
}

type ServerRepository interface {
	Create(ctx context.Context, server *models.Server) error
	AddCategories(ctx context.Context, serverID string, categoryIDs []string) error
	AddTags(ctx context.Context, serverID string, tagIDs []string) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Server, error)
	GetBySlug(ctx context.Context, slug string) (*models.Server, error)
	List(ctx context.Context, filter ServerFilter) ([]models.Server, error)
	Count(ctx context.Context, filter ServerFilter) (int, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Server, error)
	AttachTaxonomy(ctx context.Context, servers []models.Server) error
	UpdateStatus(ctx context.Context, id string, status models.ServerStatus, reason *string) error
	Delete(ctx context.Context, id string) error
}

type postgresServerRepository struct {
	db *sqlx.DB
}

func NewPostgresServerRepository(db *sqlx.DB) ServerRepository {
	return &postgresServerRepository{db: db}
}

func (r *postgresServerRepository) Create(ctx context.Context, server *models.Server) error {
	query := `
		INSERT INTO servers (id, name, slug, description, short_desc, server_ip, port, game_version,
			supported_versions, website_url, discord_url, youtube_url, twitter_url, owner_id, team_id,
			primary_category_id, status, max_players)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		RETURNING created_at, updated_at`

	err := db.Conn(ctx, r.db).QueryRowxContext(ctx, query,
		server.ID,
		server.Name,
		server.Slug,
		server.Description,
		server.ShortDesc,
		server.ServerIP,
		server.Port,
		server.GameVersion,
		server.SupportedVersions,
		server.WebsiteURL,
		server.DiscordURL,
		server.YoutubeURL,
		server.TwitterURL,
		server.OwnerID,
		server.TeamID,
		server.PrimaryCategoryID,
		server.Status,
		server.MaxPlayers,
	).Scan(&server.CreatedAt, &server.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "servers_slug_key") {
			return ErrServerSlugConflict
		}
		if c, ok := pqConstraint(err, pqForeignKeyViolation); ok {
			switch c {
			case "servers_primary_category_id_fkey":
				return ErrCategoryNotFound
			case "servers_team_id_fkey":
				return ErrTeamNotFound
			}
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to insert server: %w", err)
	}
	return nil
}

func (r *postgresServerRepository) AddCategories(ctx context.Context, serverID string, categoryIDs []string) error {
	if len(categoryIDs) == 0 {
		return nil
	}
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO server_category_links (server_id, category_id)
		SELECT $1, UNNEST($2::text[])
		ON CONFLICT DO NOTHING`, serverID, pq.Array(categoryIDs))
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrCategoryNotFound
		}
		return fmt.Errorf("failed to link server categories: %w", err)
	}
	return nil
}

func (r *postgresServerRepository) AddTags(ctx context.Context, serverID string, tagIDs []string) error {
	if len(tagIDs) == 0 {
		return nil
	}
	_, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO server_tag_links (server_id, tag_id)
		SELECT $1, UNNEST($2::text[])
		ON CONFLICT DO NOTHING`, serverID, pq.Array(tagIDs))
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrTagNotFound
		}
		return fmt.Errorf("failed to link server tags: %w", err)
	}
	return nil
}

func (r *postgresServerRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	if err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &exists,
		`SELECT EXISTS(SELECT 1 FROM servers WHERE slug = $1)`, slug); err != nil {
		return false, fmt.Errorf("failed to check server slug: %w", err)
	}
	return exists, nil
}

func (r *postgresServerRepository) getOne(ctx context.Context, where string, arg interface{}) (*models.Server, error) {
	var server models.Server
	query := `SELECT ` + serverColumns + ` FROM servers s WHERE ` + where
	if err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &server, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrServerNotFound
		}
		return nil, fmt.Errorf("failed to get server: %w", err)
	}

	one := []models.Server{server}
	if err := r.AttachTaxonomy(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

func (r *postgresServerRepository) GetByID(ctx context.Context, id string) (*models.Server, error) {
	return r.getOne(ctx, "s.id = $1", id)
}

func (r *postgresServerRepository) GetBySlug(ctx context.Context, slug string) (*models.Server, error) {
	return r.getOne(ctx, "s.slug = $1", slug)
}

func (r *postgresServerRepository) List(ctx context.Context, filter ServerFilter) ([]models.Server, error) {
	where, args := buildServerWhere(filter)
	query := `SELECT ` + serverColumns + ` FROM servers s` + where +
		` ORDER BY ` + serverOrderBy(filter.SortBy) +
		` LIMIT ` + placeholder(len(args)+1) + ` OFFSET ` + placeholder(len(args)+2)
	args = append(args, filter.Limit, filter.Offset)

	servers := []models.Server{}
	if err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &servers, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	if err := r.AttachTaxonomy(ctx, servers); err != nil {
		return nil, err
	}
	return servers, nil
}

func (r *postgresServerRepository) Count(ctx context.Context, filter ServerFilter) (int, error) {
	where, args := buildServerWhere(filter)
	var total int
	if err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &total, `SELECT COUNT(*) FROM servers s`+where, args...); err != nil {
		return 0, fmt.Errorf("failed to count servers: %w", err)
	}
	return total, nil
}

func (r *postgresServerRepository) ListByOwner(ctx context.Context, ownerID string) ([]models.Server, error) {
	query := `SELECT ` + serverColumns + ` FROM servers s WHERE s.owner_id = $1 ORDER BY s.created_at DESC, s.id`
	servers := []models.Server{}
	if err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &servers, query, ownerID); err != nil {
		return nil, fmt.Errorf("failed to list owner servers: %w", err)
	}
	if err := r.AttachTaxonomy(ctx, servers); err != nil {
		return nil, err
	}
	return servers, nil
}

type serverCategoryRow struct {
	ServerID string `db:"server_id"`
	models.ServerCategory
}

type serverTagRow struct {
	ServerID string `db:"server_id"`
	models.ServerTag
}

// AttachTaxonomy loads categories (primary first) and tags for every server in place.
func (r *postgresServerRepository) AttachTaxonomy(ctx context.Context, servers []models.Server) error {
	if len(servers) == 0 {
		return nil
	}
	ids := make([]string, len(servers))
	index := make(map[string]int, len(servers))
	for i := range servers {
		ids[i] = servers[i].ID
		index[servers[i].ID] = i
	}
	conn := db.Conn(ctx, r.db)

	var categories []serverCategoryRow
	err := sqlx.SelectContext(ctx, conn, &categories, `
		SELECT x.server_id, c.id, c.name, c.slug, c.description, c.icon, c.sort_order
		FROM (
			SELECT id AS server_id, primary_category_id AS category_id, 0 AS pos FROM servers WHERE id = ANY($1)
			UNION
			SELECT server_id, category_id, 1 AS pos FROM server_category_links WHERE server_id = ANY($1)
		) x
		JOIN server_categories c ON c.id = x.category_id
		ORDER BY x.pos, c.sort_order, c.id`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load server categories: %w", err)
	}

	var tags []serverTagRow
	err = sqlx.SelectContext(ctx, conn, &tags, `
		SELECT l.server_id, t.id, t.name, t.slug
		FROM server_tag_links l
		JOIN server_tags t ON t.id = l.tag_id
		WHERE l.server_id = ANY($1)
		ORDER BY t.name, t.id`, pq.Array(ids))
	if err != nil {
		return fmt.Errorf("failed to load server tags: %w", err)
	}

	for i := range servers {
		servers[i].Categories = []models.ServerCategory{}
		servers[i].Tags = []models.ServerTag{}
	}
	seen := make(map[string]bool)
	for _, c := range categories {
		// the primary category can also appear among the links
		k := c.ServerID + "/" + c.ID
		if seen[k] {
			continue
		}
		seen[k] = true
		s := &servers[index[c.ServerID]]
		s.Categories = append(s.Categories, c.ServerCategory)
	}
	for _, t := range tags {
		s := &servers[index[t.ServerID]]
		s.Tags = append(s.Tags, t.ServerTag)
	}
	return nil
}

func (r *postgresServerRepository) UpdateStatus(ctx context.Context, id string, status models.ServerStatus, reason *string) error {
	result, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE servers SET status = $1, moderation_reason = $2, updated_at = NOW()
		WHERE id = $3`, status, reason, id)
	if err != nil {
		return fmt.Errorf("failed to update server status: %w", err)
	}
	return checkAffectedRows(result, ErrServerNotFound)
}

func (r *postgresServerRepository) Delete(ctx context.Context, id string) error {
	result, err := db.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM servers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete server: %w", err)
	}
	return checkAffectedRows(result, ErrServerNotFound)
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// buildServerWhere renders the filter as a WHERE clause. All conditions are ANDed.
func buildServerWhere(f ServerFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	bind := func(v interface{}) string {
		args = append(args, v)
		return placeholder(len(args))
	}

	if f.Status != "" {
		conds = append(conds, "s.status = "+bind(f.Status))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		p := bind(containsPattern(search))
		conds = append(conds, fmt.Sprintf("(s.name ILIKE %[1]s OR s.short_desc ILIKE %[1]s OR s.description ILIKE %[1]s)", p))
	}
	if f.Category != "" {
		p := bind(f.Category)
		conds = append(conds, `EXISTS (SELECT 1 FROM server_categories c WHERE c.slug = `+p+
			` AND (c.id = s.primary_category_id OR EXISTS (SELECT 1 FROM server_category_links cl`+
			` WHERE cl.server_id = s.id AND cl.category_id = c.id)))`)
	}
	if tags := uniqueNonEmpty(f.Tags); len(tags) > 0 {
		p := bind(pq.Array(tags))
		n := bind(len(tags))
		conds = append(conds, `(SELECT COUNT(DISTINCT t.slug) FROM server_tag_links tl JOIN server_tags t ON t.id = tl.tag_id`+
			` WHERE tl.server_id = s.id AND t.slug = ANY(`+p+`)) = `+n)
	}
	if f.GameVersion != "" {
		p := bind(f.GameVersion)
		conds = append(conds, fmt.Sprintf("(s.game_version = %[1]s OR %[1]s = ANY(s.supported_versions))", p))
	}
	if f.Online {
		conds = append(conds, "s.is_online = TRUE")
	}
	if f.Featured {
		conds = append(conds, "s.is_featured = TRUE")
	}
	if f.Verified {
		conds = append(conds, "s.is_verified = TRUE")
	}
	if f.MinPlayers != nil {
		conds = append(conds, "s.current_players >= "+bind(*f.MinPlayers))
	}
	if f.MaxPlayers != nil {
		conds = append(conds, "s.current_players <= "+bind(*f.MaxPlayers))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// serverOrderBy always ends with s.id so equal sort keys page deterministically.
func serverOrderBy(sort models.ServerSortOption) string {
	var key string
	switch sort {
	case models.SortPlayers:
		key = "s.current_players DESC"
	case models.SortNewest:
		key = "s.created_at DESC"
	case models.SortOldest:
		key = "s.created_at ASC"
	case models.SortNameAsc:
		key = "s.name ASC"
	case models.SortNameDesc:
		key = "s.name DESC"
	default:
		key = "s.vote_count DESC"
	}
	return key + ", s.id ASC"
}

func uniqueNonEmpty(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
