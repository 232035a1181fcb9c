package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/orbisplace/orbis-api/models"
	"github.com/orbisplace/orbis-api/repositories"
)

type reportRepoStub struct {
	mu      sync.Mutex
	reports map[string]*models.Report
	targets map[models.ReportTargetType]map[string]bool
}

func newReportRepoStub() *reportRepoStub {
	return &reportRepoStub{
		reports: make(map[string]*models.Report),
		targets: map[models.ReportTargetType]map[string]bool{
			models.ReportTargetServer: {"server-1": true},
			models.ReportTargetUser:   {"alice": true, "bob": true},
			models.ReportTargetTeam:   {},
		},
	}
}

func (r *reportRepoStub) Create(_ context.Context, report *models.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	report.CreatedAt = time.Now()
	cp := *report
	r.reports[report.ID] = &cp
	return nil
}

func (r *reportRepoStub) GetByID(_ context.Context, id string) (*models.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rep, ok := r.reports[id]; ok {
		cp := *rep
		return &cp, nil
	}
	return nil, repositories.ErrReportNotFound
}

func (r *reportRepoStub) HasOpenReport(_ context.Context, reporterID string, targetType models.ReportTargetType, targetID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rep := range r.reports {
		if rep.ReporterID == reporterID && rep.TargetType == targetType && rep.TargetID == targetID && rep.Status.IsOpen() {
			return true, nil
		}
	}
	return false, nil
}

func (r *reportRepoStub) filtered(status models.ReportStatus) []models.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Report{}
	for _, rep := range r.reports {
		if status == "" || rep.Status == status {
			out = append(out, *rep)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *reportRepoStub) List(_ context.Context, f repositories.ReportListFilter) ([]models.Report, error) {
	all := r.filtered(f.Status)
	if f.Offset >= len(all) {
		return []models.Report{}, nil
	}
	end := f.Offset + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[f.Offset:end], nil
}

func (r *reportRepoStub) Count(_ context.Context, status models.ReportStatus) (int, error) {
	return len(r.filtered(status)), nil
}

func (r *reportRepoStub) UpdateStatus(_ context.Context, report *models.Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.reports[report.ID]; !ok {
		return repositories.ErrReportNotFound
	}
	cp := *report
	r.reports[report.ID] = &cp
	return nil
}

func (r *reportRepoStub) TargetExists(_ context.Context, targetType models.ReportTargetType, targetID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.targets[targetType][targetID], nil
}

func newReportFixture(t *testing.T) (*reportRepoStub, ReportService) {
	t.Helper()
	store := newMemStore()
	store.addUser("alice", "alice")
	store.addUser("bob", "bob")
	store.addUser("mod", "mod").Role = models.RoleModerator
	repo := newReportRepoStub()
	return repo, NewReportService(repo, userRepoStub{store}, nil)
}

func TestCreateReport(t *testing.T) {
	_, svc := newReportFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", CreateReportInput{TargetType: models.ReportTargetServer, TargetID: "server-1", Reason: models.ReasonOther})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Fields["description"] == "" {
		t.Errorf("OTHER without description: err = %v", err)
	}
	if _, err := svc.Create(ctx, "alice", CreateReportInput{TargetType: "PLUGIN", TargetID: "x", Reason: "BORING"}); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("bad enums: err = %v", err)
	}
	if _, err := svc.Create(ctx, "alice", CreateReportInput{TargetType: models.ReportTargetUser, TargetID: "alice", Reason: models.ReasonSpam}); !errors.Is(err, ErrCannotReportSelf) {
		t.Errorf("self report: err = %v", err)
	}
	if _, err := svc.Create(ctx, "alice", CreateReportInput{TargetType: models.ReportTargetTeam, TargetID: "ghost", Reason: models.ReasonSpam}); !errors.Is(err, ErrReportTargetNotFound) {
		t.Errorf("unknown target: err = %v", err)
	}

	report, err := svc.Create(ctx, "alice", CreateReportInput{TargetType: models.ReportTargetServer, TargetID: "server-1", Reason: models.ReasonSpam})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if report.Status != models.ReportStatusPending {
		t.Errorf("status = %s", report.Status)
	}
	if _, err := svc.Create(ctx, "alice", CreateReportInput{TargetType: models.ReportTargetServer, TargetID: "server-1", Reason: models.ReasonMalicious}); !errors.Is(err, ErrDuplicateReport) {
		t.Errorf("duplicate open report: err = %v", err)
	}
	if _, err := svc.Create(ctx, "bob", CreateReportInput{TargetType: models.ReportTargetServer, TargetID: "server-1", Reason: models.ReasonSpam}); err != nil {
		t.Errorf("another reporter: %v", err)
	}
}

func TestModerateReport(t *testing.T) {
	_, svc := newReportFixture(t)
	ctx := context.Background()
	report, err := svc.Create(ctx, "alice", CreateReportInput{TargetType: models.ReportTargetUser, TargetID: "bob", Reason: models.ReasonInappropriate})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.Moderate(ctx, "bob", report.ID, ModerateReportInput{Action: models.ReportActionResolve}); !errors.Is(err, ErrModeratorOnly) {
		t.Errorf("non-moderator: err = %v", err)
	}
	if _, err := svc.List(ctx, "alice", ListReportsInput{}); !errors.Is(err, ErrModeratorOnly) {
		t.Errorf("non-moderator list: err = %v", err)
	}
	if _, err := svc.Moderate(ctx, "mod", report.ID, ModerateReportInput{Action: "BAN"}); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("bad action: err = %v", err)
	}

	reviewing, err := svc.Moderate(ctx, "mod", report.ID, ModerateReportInput{Action: models.ReportActionUnderReview})
	if err != nil {
		t.Fatal(err)
	}
	if reviewing.Status != models.ReportStatusUnderReview || reviewing.ResolvedAt != nil {
		t.Errorf("under review = %+v", reviewing)
	}

	resolved, err := svc.Moderate(ctx, "mod", report.ID, ModerateReportInput{Action: models.ReportActionResolve, Response: "user warned"})
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Status != models.ReportStatusResolved || resolved.ResolvedAt == nil || derefString(resolved.Response) != "user warned" {
		t.Errorf("resolved = %+v", resolved)
	}
	if derefString(resolved.ModeratorID) != "mod" {
		t.Errorf("moderator = %v", resolved.ModeratorID)
	}

	if _, err := svc.Moderate(ctx, "mod", report.ID, ModerateReportInput{Action: models.ReportActionDismiss}); !errors.Is(err, ErrReportClosed) {
		t.Errorf("closed report: err = %v", err)
	}
	if _, err := svc.Moderate(ctx, "mod", "missing", ModerateReportInput{Action: models.ReportActionDismiss}); !errors.Is(err, ErrReportNotFound) {
		t.Errorf("missing report: err = %v", err)
	}

	page, err := svc.List(ctx, "mod", ListReportsInput{Status: models.ReportStatusResolved})
	if err != nil {
		t.Fatal(err)
	}
	if page.Meta.Total != 1 || page.Data[0].ID != report.ID {
		t.Errorf("resolved list = %+v", page)
	}
	if _, err := svc.List(ctx, "mod", ListReportsInput{Status: "OPEN"}); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("bad status filter: err = %v", err)
	}
}
