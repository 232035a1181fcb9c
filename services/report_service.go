package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/orbisplace/orbis-api/models"
	"github.com/orbisplace/orbis-api/repositories"
	"github.com/orbisplace/orbis-api/validator"
	"golang.org/x/sync/errgroup"
)

type ReportService interface {
	Create(ctx context.Context, reporterID string, input CreateReportInput) (*models.Report, error)
	List(ctx context.Context, moderatorID string, input ListReportsInput) (*models.Page[models.Report], error)
	Moderate(ctx context.Context, moderatorID, reportID string, input ModerateReportInput) (*models.Report, error)
}

type CreateReportInput struct {
	TargetType  models.ReportTargetType
	TargetID    string
	Reason      models.ReportReason
	Description string
}

type ListReportsInput struct {
	Status models.ReportStatus
	Page   int
	Limit  int
}

type ModerateReportInput struct {
	Action   models.ReportAction
	Response string
}

type reportService struct {
	reportRepo repositories.ReportRepository
	userRepo   repositories.UserRepository
	logger     *slog.Logger
	now        func() time.Time
}

func NewReportService(reportRepo repositories.ReportRepository, userRepo repositories.UserRepository, logger *slog.Logger) ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &reportService{
		reportRepo: reportRepo,
		userRepo:   userRepo,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *reportService) Create(ctx context.Context, reporterID string, input CreateReportInput) (*models.Report, error) {
	input.TargetID = strings.TrimSpace(input.TargetID)
	input.Description = strings.TrimSpace(input.Description)

	v := validator.New()
	v.Check(input.TargetType.IsValid(), "target_type", "must be one of SERVER, USER, TEAM")
	v.Check(validator.NotBlank(input.TargetID), "target_id", "must be provided")
	v.Check(input.Reason.IsValid(), "reason", "is not a valid report reason")
	if input.Reason == models.ReasonOther {
		v.Check(validator.NotBlank(input.Description), "description", "must be provided when reason is OTHER")
	}
	v.Check(validator.MaxChars(input.Description, 1000), "description", "must not be more than 1000 characters")
	if !v.Valid() {
		return nil, newValidationError(v.Errors)
	}

	if input.TargetType == models.ReportTargetUser && input.TargetID == reporterID {
		return nil, ErrCannotReportSelf
	}

	exists, err := s.reportRepo.TargetExists(ctx, input.TargetType, input.TargetID)
	if err != nil {
		return nil, fmt.Errorf("failed to check report target: %w", err)
	}
	if !exists {
		return nil, ErrReportTargetNotFound
	}

	open, err := s.reportRepo.HasOpenReport(ctx, reporterID, input.TargetType, input.TargetID)
	if err != nil {
		return nil, fmt.Errorf("failed to check open reports: %w", err)
	}
	if open {
		return nil, ErrDuplicateReport
	}

	report := &models.Report{
		ID:          uuid.NewString(),
		ReporterID:  reporterID,
		TargetType:  input.TargetType,
		TargetID:    input.TargetID,
		Reason:      input.Reason,
		Description: optionalString(input.Description),
		Status:      models.ReportStatusPending,
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	s.logger.InfoContext(ctx, "report submitted",
		slog.String("report_id", report.ID),
		slog.String("target_type", string(report.TargetType)),
		slog.String("target_id", report.TargetID))
	return report, nil
}

func (s *reportService) List(ctx context.Context, moderatorID string, input ListReportsInput) (*models.Page[models.Report], error) {
	if err := requireModerator(ctx, s.userRepo, moderatorID); err != nil {
		return nil, err
	}

	v := validator.New()
	if input.Status != "" {
		v.Check(input.Status.IsValid(), "status", "must be one of PENDING, UNDER_REVIEW, RESOLVED, DISMISSED")
	}
	checkPaging(v, input.Page, input.Limit)
	if !v.Valid() {
		return nil, newValidationError(v.Errors)
	}
	page, limit := normalizePage(input.Page, input.Limit)

	var (
		reports []models.Report
		total   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		reports, err = s.reportRepo.List(gctx, repositories.ReportListFilter{
			Status: input.Status,
			Limit:  limit,
			Offset: models.Offset(page, limit),
		})
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.reportRepo.Count(gctx, input.Status)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return &models.Page[models.Report]{Data: reports, Meta: models.NewPageMeta(total, page, limit)}, nil
}

func (s *reportService) Moderate(ctx context.Context, moderatorID, reportID string, input ModerateReportInput) (*models.Report, error) {
	if err := requireModerator(ctx, s.userRepo, moderatorID); err != nil {
		return nil, err
	}

	status, ok := input.Action.ResultingStatus()
	v := validator.New()
	v.Check(ok, "action", "must be one of DISMISS, RESOLVE, UNDER_REVIEW")
	v.Check(validator.MaxChars(input.Response, 1000), "response", "must not be more than 1000 characters")
	if !v.Valid() {
		return nil, newValidationError(v.Errors)
	}

	report, err := s.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, repositories.ErrReportNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to get report %s: %w", reportID, err)
	}
	if !report.Status.IsOpen() {
		return nil, ErrReportClosed
	}

	report.Status = status
	report.ModeratorID = &moderatorID
	if response := optionalString(input.Response); response != nil {
		report.Response = response
	}
	if status.IsOpen() {
		report.ResolvedAt = nil
	} else {
		resolvedAt := s.now().UTC()
		report.ResolvedAt = &resolvedAt
	}

	if err := s.reportRepo.UpdateStatus(ctx, report); err != nil {
		if errors.Is(err, repositories.ErrReportNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to update report %s: %w", reportID, err)
	}

	s.logger.InfoContext(ctx, "report moderated",
		slog.String("report_id", report.ID),
		slog.String("status", string(report.Status)),
		slog.String("moderator_id", moderatorID))
	return report, nil
}
