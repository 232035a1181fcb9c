package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/orbisplace/orbis-api/db"
	"github.com/orbisplace/orbis-api/models"
	"github.com/orbisplace/orbis-api/repositories"
	"github.com/orbisplace/orbis-api/storage"
	"github.com/orbisplace/orbis-api/validator"
	"golang.org/x/sync/errgroup"
)

type TeamService interface {
	Create(ctx context.Context, userID string, input CreateTeamInput) (*models.Team, error)
	List(ctx context.Context, input ListTeamsInput) (*models.Page[models.TeamSummary], error)
	GetByName(ctx context.Context, name string) (*models.Team, error)
	GetByID(ctx context.Context, teamID string) (*models.Team, error)
	Update(ctx context.Context, userID, teamID string, input UpdateTeamInput) (*models.Team, error)
	Delete(ctx context.Context, userID, teamID string) error

	UploadLogo(ctx context.Context, userID, teamID string, file *FileUpload) (*models.Team, error)
	UploadBanner(ctx context.Context, userID, teamID string, file *FileUpload) (*models.Team, error)
	DeleteLogo(ctx context.Context, userID, teamID string) (*models.Team, error)
	DeleteBanner(ctx context.Context, userID, teamID string) (*models.Team, error)

	AddMember(ctx context.Context, actorID, teamID string, input AddMemberInput) (*models.TeamMember, error)
	UpdateMember(ctx context.Context, actorID, teamID, memberID string, role models.TeamMemberRole) (*models.TeamMember, error)
	RemoveMember(ctx context.Context, actorID, teamID, memberID string) error
	LeaveTeam(ctx context.Context, userID, teamID string) error
	TransferOwnership(ctx context.Context, actorID, teamID, newOwnerUserID string) (*models.Team, error)
	ListUserTeams(ctx context.Context, userID string) ([]models.UserTeam, error)
}

type CreateTeamInput struct {
	Name        string
	DisplayName string
	Description string
	Website     string
	DiscordURL  string
}

// UpdateTeamInput: nil fields are left untouched, an empty string clears an optional field.
type UpdateTeamInput struct {
	DisplayName *string
	Description *string
	Website     *string
	DiscordURL  *string
}

type ListTeamsInput struct {
	Search string
	Page   int
	Limit  int
}

type AddMemberInput struct {
	UserID string
	Role   models.TeamMemberRole
}

// TeamEventPublisher delivers team activity to realtime subscribers.
type TeamEventPublisher interface {
	PublishTeamEvent(event models.TeamEvent)
}

type nopTeamEventPublisher struct{}

func (nopTeamEventPublisher) PublishTeamEvent(models.TeamEvent) {}

type teamService struct {
	teamRepo   repositories.TeamRepository
	memberRepo repositories.TeamMemberRepository
	userRepo   repositories.UserRepository
	txManager  db.TxManager
	uploader   storage.FileUploader
	janitor    *blobJanitor
	events     TeamEventPublisher
	logger     *slog.Logger
}

func NewTeamService(
	teamRepo repositories.TeamRepository,
	memberRepo repositories.TeamMemberRepository,
	userRepo repositories.UserRepository,
	txManager db.TxManager,
	uploader storage.FileUploader,
	events TeamEventPublisher,
	cleanup CleanupRecorder,
	logger *slog.Logger,
) TeamService {
	if events == nil {
		events = nopTeamEventPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &teamService{
		teamRepo:   teamRepo,
		memberRepo: memberRepo,
		userRepo:   userRepo,
		txManager:  txManager,
		uploader:   uploader,
		janitor:    newBlobJanitor(uploader, cleanup, logger),
		events:     events,
		logger:     logger,
	}
}

func validateTeamLinks(v *validator.Validator, description, website, discordURL string) {
	v.Check(validator.MaxChars(description, 1000), "description", "must not be more than 1000 characters")
	if website != "" {
		v.Check(validator.IsURL(website), "website", "must be a valid http(s) URL")
	}
	if discordURL != "" {
		v.Check(validator.IsURL(discordURL), "discord_url", "must be a valid http(s) URL")
	}
}

func (s *teamService) Create(ctx context.Context, userID string, input CreateTeamInput) (*models.Team, error) {
	name := strings.ToLower(strings.TrimSpace(input.Name))
	displayName := strings.TrimSpace(input.DisplayName)
	if displayName == "" {
		displayName = strings.TrimSpace(input.Name)
	}

	v := validator.New()
	v.Check(name != "", "name", "must be provided")
	v.Check(name == "" || validator.Matches(name, validator.TeamNameRX), "name",
		"must be 3-32 characters of letters, digits, '-' or '_' and start and end with a letter or digit")
	v.Check(validator.MaxChars(displayName, 50), "display_name", "must not be more than 50 characters")
	validateTeamLinks(v, strings.TrimSpace(input.Description), strings.TrimSpace(input.Website), strings.TrimSpace(input.DiscordURL))
	if !v.Valid() {
		return nil, newValidationError(v.Errors)
	}

	exists, err := s.teamRepo.ExistsByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check team name %q: %w", name, err)
	}
	if exists {
		return nil, ErrTeamNameConflict
	}

	team := &models.Team{
		ID:          uuid.NewString(),
		Name:        name,
		DisplayName: displayName,
		Description: optionalString(input.Description),
		Website:     optionalString(input.Website),
		DiscordURL:  optionalString(input.DiscordURL),
		OwnerID:     userID,
	}
	owner := &models.TeamMember{
		ID:     uuid.NewString(),
		TeamID: team.ID,
		UserID: userID,
		Role:   models.TeamRoleOwner,
	}

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		if err := s.teamRepo.Create(ctx, team); err != nil {
			return err
		}
		return s.memberRepo.Create(ctx, owner)
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrTeamNameConflict):
			return nil, ErrTeamNameConflict
		case errors.Is(err, repositories.ErrUserNotFound):
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create team %q: %w", name, err)
	}

	s.logger.InfoContext(ctx, "team created", slog.String("team_id", team.ID), slog.String("owner_id", userID))
	team.Members = []models.TeamMember{*owner}
	return team, nil
}

func (s *teamService) List(ctx context.Context, input ListTeamsInput) (*models.Page[models.TeamSummary], error) {
	v := validator.New()
	checkPaging(v, input.Page, input.Limit)
	if !v.Valid() {
		return nil, newValidationError(v.Errors)
	}
	page, limit := normalizePage(input.Page, input.Limit)
	search := strings.TrimSpace(input.Search)

	var (
		teams []models.TeamSummary
		total int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		teams, err = s.teamRepo.List(gctx, repositories.TeamListFilter{
			Search: search,
			Limit:  limit,
			Offset: models.Offset(page, limit),
		})
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.teamRepo.Count(gctx, search)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}

	return &models.Page[models.TeamSummary]{Data: teams, Meta: models.NewPageMeta(total, page, limit)}, nil
}

func (s *teamService) GetByName(ctx context.Context, name string) (*models.Team, error) {
	team, err := s.teamRepo.GetByName(ctx, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %q: %w", name, err)
	}
	return s.withDetails(ctx, team)
}

func (s *teamService) GetByID(ctx context.Context, teamID string) (*models.Team, error) {
	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return s.withDetails(ctx, team)
}

func (s *teamService) withDetails(ctx context.Context, team *models.Team) (*models.Team, error) {
	owner, err := s.userRepo.GetByID(ctx, team.OwnerID)
	if err != nil && !errors.Is(err, repositories.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to get owner of team %s: %w", team.ID, err)
	}
	team.Owner = owner.Summary()

	members, err := s.memberRepo.ListByTeam(ctx, team.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get members of team %s: %w", team.ID, err)
	}
	team.Members = members
	return team, nil
}

func (s *teamService) Update(ctx context.Context, userID, teamID string, input UpdateTeamInput) (*models.Team, error) {
	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireManager(ctx, teamID, userID); err != nil {
		return nil, err
	}

	v := validator.New()
	if input.DisplayName != nil {
		dn := strings.TrimSpace(*input.DisplayName)
		v.Check(dn != "", "display_name", "must not be empty")
		v.Check(validator.MaxChars(dn, 50), "display_name", "must not be more than 50 characters")
	}
	validateTeamLinks(v,
		strings.TrimSpace(derefString(input.Description)),
		strings.TrimSpace(derefString(input.Website)),
		strings.TrimSpace(derefString(input.DiscordURL)))
	if !v.Valid() {
		return nil, newValidationError(v.Errors)
	}

	if input.DisplayName != nil {
		team.DisplayName = strings.TrimSpace(*input.DisplayName)
	}
	if input.Description != nil {
		team.Description = optionalString(*input.Description)
	}
	if input.Website != nil {
		team.Website = optionalString(*input.Website)
	}
	if input.DiscordURL != nil {
		team.DiscordURL = optionalString(*input.DiscordURL)
	}

	if err := s.teamRepo.Update(ctx, team); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to update team %s: %w", teamID, err)
	}

	s.publish(models.TeamEventUpdated, teamID, userID, team)
	return team, nil
}

func (s *teamService) Delete(ctx context.Context, userID, teamID string) error {
	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if _, err := s.requireOwner(ctx, teamID, userID); err != nil {
		return err
	}

	if err := s.teamRepo.Delete(ctx, teamID); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return ErrTeamNotFound
		}
		return fmt.Errorf("failed to delete team %s: %w", teamID, err)
	}

	s.janitor.remove(ctx, "team", team.Logo)
	s.janitor.remove(ctx, "team", team.Banner)

	s.logger.InfoContext(ctx, "team deleted", slog.String("team_id", teamID), slog.String("user_id", userID))
	s.publish(models.TeamEventDeleted, teamID, userID, nil)
	return nil
}

func (s *teamService) UploadLogo(ctx context.Context, userID, teamID string, file *FileUpload) (*models.Team, error) {
	return s.uploadImage(ctx, userID, teamID, models.TeamImageLogo, teamLogoRule, file)
}

func (s *teamService) UploadBanner(ctx context.Context, userID, teamID string, file *FileUpload) (*models.Team, error) {
	return s.uploadImage(ctx, userID, teamID, models.TeamImageBanner, teamBannerRule, file)
}

func (s *teamService) uploadImage(ctx context.Context, userID, teamID string, image models.TeamImage, rule imageRule, file *FileUpload) (*models.Team, error) {
	if err := rule.validate(file); err != nil {
		return nil, err
	}

	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireManager(ctx, teamID, userID); err != nil {
		return nil, err
	}

	key, err := objectKey("teams", teamID, string(image), file.ContentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFileType, err)
	}
	result, err := s.uploader.Upload(ctx, key, normalizeContentType(file.ContentType), file.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to upload team %s: %w", image, err)
	}

	newURL := result.Location
	if err := s.teamRepo.UpdateImage(ctx, teamID, image, &newURL); err != nil {
		// the reference was not stored, so the new object is orphaned
		s.janitor.remove(ctx, "team", &newURL)
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to store team %s: %w", image, err)
	}

	var previous *string
	if image == models.TeamImageLogo {
		previous, team.Logo = team.Logo, &newURL
	} else {
		previous, team.Banner = team.Banner, &newURL
	}
	s.janitor.remove(ctx, "team", previous)

	s.publish(models.TeamEventImageChanged, teamID, userID, map[string]interface{}{"image": image, "url": newURL})
	return team, nil
}

func (s *teamService) DeleteLogo(ctx context.Context, userID, teamID string) (*models.Team, error) {
	return s.deleteImage(ctx, userID, teamID, models.TeamImageLogo)
}

func (s *teamService) DeleteBanner(ctx context.Context, userID, teamID string) (*models.Team, error) {
	return s.deleteImage(ctx, userID, teamID, models.TeamImageBanner)
}

func (s *teamService) deleteImage(ctx context.Context, userID, teamID string, image models.TeamImage) (*models.Team, error) {
	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireManager(ctx, teamID, userID); err != nil {
		return nil, err
	}

	current := team.Logo
	if image == models.TeamImageBanner {
		current = team.Banner
	}
	if current == nil {
		return team, nil
	}

	if err := s.teamRepo.UpdateImage(ctx, teamID, image, nil); err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to clear team %s: %w", image, err)
	}
	if image == models.TeamImageLogo {
		team.Logo = nil
	} else {
		team.Banner = nil
	}
	s.janitor.remove(ctx, "team", current)

	s.publish(models.TeamEventImageChanged, teamID, userID, map[string]interface{}{"image": image, "url": nil})
	return team, nil
}

func (s *teamService) AddMember(ctx context.Context, actorID, teamID string, input AddMemberInput) (*models.TeamMember, error) {
	role := input.Role
	if role == "" {
		role = models.TeamRoleMember
	}
	v := validator.New()
	v.Check(strings.TrimSpace(input.UserID) != "", "user_id", "must be provided")
	v.Check(role.IsValid(), "role", "must be one of OWNER, ADMIN, MEMBER")
	if !v.Valid() {
		return nil, newValidationError(v.Errors)
	}

	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	actor, err := s.requireManager(ctx, teamID, actorID)
	if err != nil {
		return nil, err
	}
	if role == models.TeamRoleOwner && actor.Role != models.TeamRoleOwner {
		return nil, ErrTeamOwnerOnly
	}

	user, err := s.userRepo.GetByID(ctx, input.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", input.UserID, err)
	}

	_, err = s.memberRepo.GetByTeamAndUser(ctx, teamID, user.ID)
	if err == nil {
		return nil, ErrAlreadyTeamMember
	}
	if !errors.Is(err, repositories.ErrTeamMemberNotFound) {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	member := &models.TeamMember{
		ID:     uuid.NewString(),
		TeamID: teamID,
		UserID: user.ID,
		Role:   role,
	}

	// A new OWNER takes over from the current one.
	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		if role != models.TeamRoleOwner {
			return s.memberRepo.Create(ctx, member)
		}
		member.Role = models.TeamRoleMember
		if err := s.memberRepo.Create(ctx, member); err != nil {
			return err
		}
		return s.handOver(ctx, team, actor, member)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrTeamMemberConflict) {
			return nil, ErrAlreadyTeamMember
		}
		if serr, ok := serviceError(err); ok {
			return nil, serr
		}
		return nil, fmt.Errorf("failed to add member to team %s: %w", teamID, err)
	}

	member.User = user.Summary()
	s.publish(models.TeamEventMemberAdded, teamID, actorID, member)
	if member.Role == models.TeamRoleOwner {
		s.publish(models.TeamEventOwnerChanged, teamID, actorID, map[string]string{"owner_id": member.UserID})
	}
	return member, nil
}

func (s *teamService) UpdateMember(ctx context.Context, actorID, teamID, memberID string, role models.TeamMemberRole) (*models.TeamMember, error) {
	if !role.IsValid() {
		return nil, newValidationError(map[string]string{"role": "must be one of OWNER, ADMIN, MEMBER"})
	}

	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	actor, err := s.requireManager(ctx, teamID, actorID)
	if err != nil {
		return nil, err
	}
	target, err := s.getTeamMember(ctx, teamID, memberID)
	if err != nil {
		return nil, err
	}

	if target.Role == models.TeamRoleOwner || role == models.TeamRoleOwner {
		if actor.Role != models.TeamRoleOwner {
			return nil, ErrTeamOwnerOnly
		}
		if target.Role == models.TeamRoleOwner {
			if role == models.TeamRoleOwner {
				return target, nil
			}
			return nil, ErrOwnerRoleChange
		}

		err = s.txManager.Do(ctx, func(ctx context.Context) error {
			return s.handOver(ctx, team, actor, target)
		})
		if err != nil {
			if serr, ok := serviceError(err); ok {
				return nil, serr
			}
			return nil, fmt.Errorf("failed to transfer ownership of team %s: %w", teamID, err)
		}
		s.publish(models.TeamEventMemberUpdated, teamID, actorID, target)
		s.publish(models.TeamEventOwnerChanged, teamID, actorID, map[string]string{"owner_id": target.UserID})
		return target, nil
	}

	if target.Role == role {
		return target, nil
	}
	// The target may have been promoted to OWNER since it was read.
	if err := s.memberRepo.ChangeRole(ctx, target.ID, target.Role, role); err != nil {
		if errors.Is(err, repositories.ErrTeamMemberNotFound) {
			return nil, ErrMemberChanged
		}
		return nil, fmt.Errorf("failed to update member %s: %w", memberID, err)
	}
	target.Role = role

	s.publish(models.TeamEventMemberUpdated, teamID, actorID, target)
	return target, nil
}

func (s *teamService) RemoveMember(ctx context.Context, actorID, teamID, memberID string) error {
	if _, err := s.getTeam(ctx, teamID); err != nil {
		return err
	}
	if _, err := s.requireManager(ctx, teamID, actorID); err != nil {
		return err
	}
	target, err := s.getTeamMember(ctx, teamID, memberID)
	if err != nil {
		return err
	}
	if target.Role == models.TeamRoleOwner {
		return ErrCannotRemoveOwner
	}

	if err := s.memberRepo.Delete(ctx, target.ID); err != nil {
		if errors.Is(err, repositories.ErrTeamMemberNotFound) {
			return ErrTeamMemberNotFound
		}
		return fmt.Errorf("failed to remove member %s: %w", memberID, err)
	}

	s.publish(models.TeamEventMemberRemoved, teamID, actorID, map[string]string{"member_id": target.ID, "user_id": target.UserID})
	return nil
}

func (s *teamService) LeaveTeam(ctx context.Context, userID, teamID string) error {
	member, err := s.memberRepo.GetByTeamAndUser(ctx, teamID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamMemberNotFound) {
			return ErrNotTeamMember
		}
		return fmt.Errorf("failed to get membership: %w", err)
	}
	if member.Role == models.TeamRoleOwner {
		return ErrOwnerCannotLeave
	}

	if err := s.memberRepo.Delete(ctx, member.ID); err != nil {
		if errors.Is(err, repositories.ErrTeamMemberNotFound) {
			return ErrNotTeamMember
		}
		return fmt.Errorf("failed to leave team %s: %w", teamID, err)
	}

	s.publish(models.TeamEventMemberLeft, teamID, userID, map[string]string{"member_id": member.ID, "user_id": userID})
	return nil
}

func (s *teamService) TransferOwnership(ctx context.Context, actorID, teamID, newOwnerUserID string) (*models.Team, error) {
	if strings.TrimSpace(newOwnerUserID) == "" {
		return nil, newValidationError(map[string]string{"user_id": "must be provided"})
	}

	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return nil, err
	}
	actor, err := s.requireOwner(ctx, teamID, actorID)
	if err != nil {
		return nil, err
	}
	if newOwnerUserID == actorID {
		return nil, ErrTransferToSelf
	}

	target, err := s.memberRepo.GetByTeamAndUser(ctx, teamID, newOwnerUserID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamMemberNotFound) {
			return nil, ErrTeamMemberNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		return s.handOver(ctx, team, actor, target)
	})
	if err != nil {
		if serr, ok := serviceError(err); ok {
			return nil, serr
		}
		return nil, fmt.Errorf("failed to transfer ownership of team %s: %w", teamID, err)
	}

	s.logger.InfoContext(ctx, "team ownership transferred",
		slog.String("team_id", teamID),
		slog.String("from_user_id", actorID),
		slog.String("to_user_id", newOwnerUserID))
	s.publish(models.TeamEventOwnerChanged, teamID, actorID, map[string]string{"owner_id": newOwnerUserID})
	return s.withDetails(ctx, team)
}

// handOver makes to the OWNER and demotes from to ADMIN. Must run inside a transaction.
// Role changes are conditional on the roles read earlier; a concurrent transfer
// that committed first makes this one fail.
func (s *teamService) handOver(ctx context.Context, team *models.Team, from, to *models.TeamMember) error {
	if err := s.memberRepo.ChangeRole(ctx, from.ID, models.TeamRoleOwner, models.TeamRoleAdmin); err != nil {
		if errors.Is(err, repositories.ErrTeamMemberNotFound) {
			return ErrTeamOwnerOnly
		}
		return err
	}
	if err := s.memberRepo.ChangeRole(ctx, to.ID, to.Role, models.TeamRoleOwner); err != nil {
		switch {
		case errors.Is(err, repositories.ErrTeamMemberNotFound):
			return ErrMemberChanged
		case errors.Is(err, repositories.ErrTeamOwnerConflict):
			return ErrTeamOwnerOnly
		}
		return err
	}
	if err := s.teamRepo.UpdateOwner(ctx, team.ID, to.UserID); err != nil {
		return err
	}
	from.Role = models.TeamRoleAdmin
	to.Role = models.TeamRoleOwner
	team.OwnerID = to.UserID
	return nil
}

func (s *teamService) ListUserTeams(ctx context.Context, userID string) ([]models.UserTeam, error) {
	teams, err := s.teamRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams of user %s: %w", userID, err)
	}
	return teams, nil
}

func (s *teamService) getTeam(ctx context.Context, teamID string) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team %s: %w", teamID, err)
	}
	return team, nil
}

// getTeamMember returns the membership only when it belongs to teamID.
func (s *teamService) getTeamMember(ctx context.Context, teamID, memberID string) (*models.TeamMember, error) {
	member, err := s.memberRepo.GetByID(ctx, memberID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamMemberNotFound) {
			return nil, ErrTeamMemberNotFound
		}
		return nil, fmt.Errorf("failed to get team member %s: %w", memberID, err)
	}
	if member.TeamID != teamID {
		return nil, ErrTeamMemberNotFound
	}
	return member, nil
}

// requireManager looks up the caller's current membership; roles are never taken from the request.
func (s *teamService) requireManager(ctx context.Context, teamID, userID string) (*models.TeamMember, error) {
	member, err := s.memberRepo.GetByTeamAndUser(ctx, teamID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamMemberNotFound) {
			return nil, ErrTeamPermissionDenied
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if !member.Role.CanManage() {
		return nil, ErrTeamPermissionDenied
	}
	return member, nil
}

func (s *teamService) requireOwner(ctx context.Context, teamID, userID string) (*models.TeamMember, error) {
	member, err := s.memberRepo.GetByTeamAndUser(ctx, teamID, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamMemberNotFound) {
			return nil, ErrTeamOwnerOnly
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	if member.Role != models.TeamRoleOwner {
		return nil, ErrTeamOwnerOnly
	}
	return member, nil
}

func (s *teamService) publish(eventType models.TeamEventType, teamID, actorID string, payload interface{}) {
	s.events.PublishTeamEvent(models.TeamEvent{
		Type:       eventType,
		TeamID:     teamID,
		ActorID:    actorID,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	})
}
