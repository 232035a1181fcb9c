package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/orbisplace/orbis-api/db"
	"github.com/orbisplace/orbis-api/models"
)

var (
	ErrCategoryNotFound = errors.New("server category not found")
	ErrTagNotFound      = errors.New("server tag not found")
)

// Counts include approved servers only.
const (
	categoryServerCount = `(SELECT COUNT(*) FROM servers s WHERE s.status = 'APPROVED' AND (s.primary_category_id = c.id
		OR EXISTS (SELECT 1 FROM server_category_links cl WHERE cl.server_id = s.id AND cl.category_id = c.id)))`
	tagServerCount = `(SELECT COUNT(*) FROM server_tag_links tl JOIN servers s ON s.id = tl.server_id
		WHERE tl.tag_id = t.id AND s.status = 'APPROVED')`
)

type TaxonomyRepository interface {
	ListCategories(ctx context.Context) ([]models.ServerCategory, error)
	GetCategoryBySlug(ctx context.Context, slug string) (*models.ServerCategory, error)
	CountCategoriesByIDs(ctx context.Context, ids []string) (int, error)
	ListTags(ctx context.Context) ([]models.ServerTag, error)
	PopularTags(ctx context.Context, limit int) ([]models.ServerTag, error)
	GetTagBySlug(ctx context.Context, slug string) (*models.ServerTag, error)
	CountTagsByIDs(ctx context.Context, ids []string) (int, error)
}

type postgresTaxonomyRepository struct {
	db *sqlx.DB
}

func NewPostgresTaxonomyRepository(db *sqlx.DB) TaxonomyRepository {
	return &postgresTaxonomyRepository{db: db}
}

func (r *postgresTaxonomyRepository) ListCategories(ctx context.Context) ([]models.ServerCategory, error) {
	query := `
		SELECT c.id, c.name, c.slug, c.description, c.icon, c.sort_order, ` + categoryServerCount + ` AS server_count
		FROM server_categories c
		ORDER BY c.sort_order, c.id`

	categories := []models.ServerCategory{}
	if err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &categories, query); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (r *postgresTaxonomyRepository) GetCategoryBySlug(ctx context.Context, slug string) (*models.ServerCategory, error) {
	query := `
		SELECT c.id, c.name, c.slug, c.description, c.icon, c.sort_order, ` + categoryServerCount + ` AS server_count
		FROM server_categories c
		WHERE c.slug = $1`

	var category models.ServerCategory
	if err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &category, query, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &category, nil
}

func (r *postgresTaxonomyRepository) CountCategoriesByIDs(ctx context.Context, ids []string) (int, error) {
	return r.countIDs(ctx, "server_categories", ids)
}

func (r *postgresTaxonomyRepository) ListTags(ctx context.Context) ([]models.ServerTag, error) {
	query := `
		SELECT t.id, t.name, t.slug, ` + tagServerCount + ` AS server_count
		FROM server_tags t
		ORDER BY t.name, t.id`

	tags := []models.ServerTag{}
	if err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &tags, query); err != nil {
		return nil, fmt.Errorf("failed to list tags: %w", err)
	}
	return tags, nil
}

func (r *postgresTaxonomyRepository) PopularTags(ctx context.Context, limit int) ([]models.ServerTag, error) {
	query := `
		SELECT * FROM (
			SELECT t.id, t.name, t.slug, ` + tagServerCount + ` AS server_count
			FROM server_tags t
		) x
		ORDER BY x.server_count DESC, x.name, x.id
		LIMIT $1`

	tags := []models.ServerTag{}
	if err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &tags, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list popular tags: %w", err)
	}
	return tags, nil
}

func (r *postgresTaxonomyRepository) GetTagBySlug(ctx context.Context, slug string) (*models.ServerTag, error) {
	query := `
		SELECT t.id, t.name, t.slug, ` + tagServerCount + ` AS server_count
		FROM server_tags t
		WHERE t.slug = $1`

	var tag models.ServerTag
	if err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &tag, query, slug); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}
	return &tag, nil
}

func (r *postgresTaxonomyRepository) CountTagsByIDs(ctx context.Context, ids []string) (int, error) {
	return r.countIDs(ctx, "server_tags", ids)
}

// countIDs reports how many of ids exist in table. table is never user input.
func (r *postgresTaxonomyRepository) countIDs(ctx context.Context, table string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var n int
	query := `SELECT COUNT(*) FROM ` + table + ` WHERE id = ANY($1)`
	if err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &n, query, pq.Array(ids)); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}
