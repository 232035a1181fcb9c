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

var ErrReportNotFound = errors.New("report not found")

const reportColumns = `id, reporter_id, target_type, target_id, reason, description, status,
	moderator_id, response, created_at, resolved_at`

type ReportListFilter struct {
	Status models.ReportStatus
	Limit  int
	Offset int
}

type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id string) (*models.Report, error)
	HasOpenReport(ctx context.Context, reporterID string, targetType models.ReportTargetType, targetID string) (bool, error)
	List(ctx context.Context, filter ReportListFilter) ([]models.Report, error)
	Count(ctx context.Context, status models.ReportStatus) (int, error)
	UpdateStatus(ctx context.Context, report *models.Report) error
	TargetExists(ctx context.Context, targetType models.ReportTargetType, targetID string) (bool, error)
}

type postgresReportRepository struct {
	db *sqlx.DB
}

func NewPostgresReportRepository(db *sqlx.DB) ReportRepository {
	return &postgresReportRepository{db: db}
}

func (r *postgresReportRepository) Create(ctx context.Context, report *models.Report) error {
	query := `
		INSERT INTO reports (id, reporter_id, target_type, target_id, reason, description, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := db.Conn(ctx, r.db).QueryRowxContext(ctx, query,
		report.ID,
		report.ReporterID,
		report.TargetType,
		report.TargetID,
		report.Reason,
		report.Description,
		report.Status,
	).Scan(&report.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to insert report: %w", err)
	}
	return nil
}

func (r *postgresReportRepository) GetByID(ctx context.Context, id string) (*models.Report, error) {
	var report models.Report
	query := `SELECT ` + reportColumns + ` FROM reports WHERE id = $1`
	if err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &report, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &report, nil
}

func (r *postgresReportRepository) HasOpenReport(ctx context.Context, reporterID string, targetType models.ReportTargetType, targetID string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &exists, `
		SELECT EXISTS(
			SELECT 1 FROM reports
			WHERE reporter_id = $1 AND target_type = $2 AND target_id = $3
				AND status IN ('PENDING', 'UNDER_REVIEW')
		)`, reporterID, targetType, targetID)
	if err != nil {
		return false, fmt.Errorf("failed to check open reports: %w", err)
	}
	return exists, nil
}

func (r *postgresReportRepository) List(ctx context.Context, filter ReportListFilter) ([]models.Report, error) {
	query := `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at ASC, id
		LIMIT $2 OFFSET $3`

	reports := []models.Report{}
	err := sqlx.SelectContext(ctx, db.Conn(ctx, r.db), &reports, query, string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return reports, nil
}

func (r *postgresReportRepository) Count(ctx context.Context, status models.ReportStatus) (int, error) {
	var total int
	err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &total,
		`SELECT COUNT(*) FROM reports WHERE ($1 = '' OR status = $1)`, string(status))
	if err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return total, nil
}

func (r *postgresReportRepository) UpdateStatus(ctx context.Context, report *models.Report) error {
	result, err := db.Conn(ctx, r.db).ExecContext(ctx, `
		UPDATE reports SET status = $1, moderator_id = $2, response = $3, resolved_at = $4
		WHERE id = $5`,
		report.Status, report.ModeratorID, report.Response, report.ResolvedAt, report.ID)
	if err != nil {
		return fmt.Errorf("failed to update report: %w", err)
	}
	return checkAffectedRows(result, ErrReportNotFound)
}

func (r *postgresReportRepository) TargetExists(ctx context.Context, targetType models.ReportTargetType, targetID string) (bool, error) {
	var table string
	switch targetType {
	case models.ReportTargetServer:
		table = "servers"
	case models.ReportTargetUser:
		table = "users"
	case models.ReportTargetTeam:
		table = "teams"
	default:
		return false, nil
	}

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM ` + table + ` WHERE id = $1)`
	if err := sqlx.GetContext(ctx, db.Conn(ctx, r.db), &exists, query, targetID); err != nil {
		return false, fmt.Errorf("failed to check report target: %w", err)
	}
	return exists, nil
}
