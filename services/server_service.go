package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/orbisplace/orbis-api/db"
	"github.com/orbisplace/orbis-api/models"
	"github.com/orbisplace/orbis-api/repositories"
	"github.com/orbisplace/orbis-api/storage"
	"github.com/orbisplace/orbis-api/validator"
	"golang.org/x/sync/errgroup"
)

const (
	defaultServerPort   = 25565
	maxServerTags       = 10
	maxServerCategories = 3
	slugAttempts        = 20
)

type ServerService interface {
	List(ctx context.Context, input ListServersInput) (*models.Page[models.Server], error)
	GetBySlug(ctx context.Context, slug string, viewerID string) (*models.Server, error)
	ListByOwner(ctx context.Context, ownerID string) ([]models.Server, error)
	Create(ctx context.Context, ownerID string, input CreateServerInput) (*models.Server, error)
	Delete(ctx context.Context, userID, serverID string) error

	ListPending(ctx context.Context, moderatorID string, page, limit int) (*models.Page[models.Server], error)
	Approve(ctx context.Context, moderatorID, serverID string, reason *string) (*models.Server, error)
	Reject(ctx context.Context, moderatorID, serverID, reason string) (*models.Server, error)
}

type ListServersInput struct {
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
	Page        int
	Limit       int
}

type CreateServerInput struct {
	Name              string
	Description       string
	ShortDesc         string
	ServerIP          string
	Port              int
	GameVersion       string
	SupportedVersions []string
	WebsiteURL        string
	DiscordURL        string
	YoutubeURL        string
	TwitterURL        string
	PrimaryCategoryID string
	CategoryIDs       []string
	TagIDs            []string
	TeamID            string
	MaxPlayers        int
}

type serverService struct {
	serverRepo   repositories.ServerRepository
	taxonomyRepo repositories.TaxonomyRepository
	teamRepo     repositories.TeamRepository
	memberRepo   repositories.TeamMemberRepository
	userRepo     repositories.UserRepository
	txManager    db.TxManager
	janitor      *blobJanitor
	logger       *slog.Logger
}

func NewServerService(
	serverRepo repositories.ServerRepository,
	taxonomyRepo repositories.TaxonomyRepository,
	teamRepo repositories.TeamRepository,
	memberRepo repositories.TeamMemberRepository,
	userRepo repositories.UserRepository,
	txManager db.TxManager,
	uploader storage.FileUploader,
	cleanup CleanupRecorder,
	logger *slog.Logger,
) ServerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &serverService{
		serverRepo:   serverRepo,
		taxonomyRepo: taxonomyRepo,
		teamRepo:     teamRepo,
		memberRepo:   memberRepo,
		userRepo:     userRepo,
		txManager:    txManager,
		janitor:      newBlobJanitor(uploader, cleanup, logger),
		logger:       logger,
	}
}

func (s *serverService) List(ctx context.Context, input ListServersInput) (*models.Page[models.Server], error) {
	v := validator.New()
	checkPaging(v, input.Page, input.Limit)
	if input.SortBy != "" {
		v.Check(input.SortBy.IsValid(), "sort_by", "must be one of votes, players, newest, oldest, name-asc, name-desc")
	}
	if input.MinPlayers != nil {
		v.Check(*input.MinPlayers >= 0, "min_players", "must not be negative")
	}
	if input.MaxPlayers != nil {
		v.Check(*input.MaxPlayers >= 0, "max_players", "must not be negative")
	}
	if input.MinPlayers != nil && input.MaxPlayers != nil {
		v.Check(*input.MinPlayers <= *input.MaxPlayers, "min_players", "must not be greater than max_players")
	}
	if !v.Valid() {
		return nil, newValidationError(v.Errors)
	}

	page, limit := normalizePage(input.Page, input.Limit)
	sortBy := input.SortBy
	if sortBy == "" {
		sortBy = models.SortVotes
	}

	filter := repositories.ServerFilter{
		Status:      models.ServerStatusApproved,
		Search:      strings.TrimSpace(input.Search),
		Category:    strings.TrimSpace(input.Category),
		Tags:        input.Tags,
		GameVersion: strings.TrimSpace(input.GameVersion),
		Online:      input.Online,
		Featured:    input.Featured,
		Verified:    input.Verified,
		MinPlayers:  input.MinPlayers,
		MaxPlayers:  input.MaxPlayers,
		SortBy:      sortBy,
		Limit:       limit,
		Offset:      models.Offset(page, limit),
	}
	return s.page(ctx, filter, page, limit)
}

// page runs the count and the page query concurrently.
func (s *serverService) page(ctx context.Context, filter repositories.ServerFilter, page, limit int) (*models.Page[models.Server], error) {
	var (
		servers []models.Server
		total   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		servers, err = s.serverRepo.List(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		total, err = s.serverRepo.Count(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to list servers: %w", err)
	}
	return &models.Page[models.Server]{Data: servers, Meta: models.NewPageMeta(total, page, limit)}, nil
}

// GetBySlug hides servers that are not approved from everyone except their owner and moderators.
func (s *serverService) GetBySlug(ctx context.Context, slug string, viewerID string) (*models.Server, error) {
	server, err := s.serverRepo.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		if errors.Is(err, repositories.ErrServerNotFound) {
			return nil, ErrServerNotFound
		}
		return nil, fmt.Errorf("failed to get server %q: %w", slug, err)
	}
	if server.Status == models.ServerStatusApproved || (viewerID != "" && viewerID == server.OwnerID) {
		return server, nil
	}
	if viewerID != "" {
		if err := s.requireModerator(ctx, viewerID); err == nil {
			return server, nil
		}
	}
	return nil, ErrServerNotFound
}

func (s *serverService) ListByOwner(ctx context.Context, ownerID string) ([]models.Server, error) {
	servers, err := s.serverRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list servers of user %s: %w", ownerID, err)
	}
	return servers, nil
}

func validateCreateServer(input *CreateServerInput) map[string]string {
	v := validator.New()

	v.Check(validator.NotBlank(input.Name), "name", "must be provided")
	v.Check(validator.MinChars(input.Name, 3), "name", "must be at least 3 characters")
	v.Check(validator.MaxChars(input.Name, 50), "name", "must not be more than 50 characters")

	v.Check(validator.NotBlank(input.Description), "description", "must be provided")
	v.Check(validator.MinChars(input.Description, 50), "description", "must be at least 50 characters")
	v.Check(validator.MaxChars(input.Description, 5000), "description", "must not be more than 5000 characters")
	v.Check(validator.MaxChars(input.ShortDesc, 200), "short_desc", "must not be more than 200 characters")

	v.Check(validator.IsHost(input.ServerIP), "server_ip", "must be a valid IPv4 address or domain")
	v.Check(validator.Between(input.Port, 1, 65535), "port", "must be between 1 and 65535")
	v.Check(validator.NotBlank(input.GameVersion), "game_version", "must be provided")
	v.Check(input.MaxPlayers >= 0, "max_players", "must not be negative")

	for field, value := range map[string]string{
		"website_url": input.WebsiteURL,
		"discord_url": input.DiscordURL,
		"youtube_url": input.YoutubeURL,
		"twitter_url": input.TwitterURL,
	} {
		if value != "" {
			v.Check(validator.IsURL(value), field, "must be a valid http(s) URL")
		}
	}

	v.Check(validator.NotBlank(input.PrimaryCategoryID), "primary_category_id", "must be provided")
	v.Check(len(allCategoryIDs(input)) <= maxServerCategories, "category_ids", fmt.Sprintf("at most %d categories in total", maxServerCategories))

	v.Check(len(input.TagIDs) >= 1, "tag_ids", "at least one tag is required")
	v.Check(len(input.TagIDs) <= maxServerTags, "tag_ids", fmt.Sprintf("at most %d tags", maxServerTags))
	v.Check(validator.Unique(input.TagIDs), "tag_ids", "must not contain duplicates")

	return v.Errors
}

// allCategoryIDs returns the primary category followed by the distinct additional ones.
func allCategoryIDs(input *CreateServerInput) []string {
	ids := []string{input.PrimaryCategoryID}
	seen := map[string]bool{input.PrimaryCategoryID: true}
	for _, id := range input.CategoryIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func (s *serverService) Create(ctx context.Context, ownerID string, input CreateServerInput) (*models.Server, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	input.ShortDesc = strings.TrimSpace(input.ShortDesc)
	input.ServerIP = strings.TrimSpace(input.ServerIP)
	input.GameVersion = strings.TrimSpace(input.GameVersion)
	input.PrimaryCategoryID = strings.TrimSpace(input.PrimaryCategoryID)
	if input.Port == 0 {
		input.Port = defaultServerPort
	}
	if errs := validateCreateServer(&input); len(errs) > 0 {
		return nil, newValidationError(errs)
	}

	categoryIDs := allCategoryIDs(&input)
	n, err := s.taxonomyRepo.CountCategoriesByIDs(ctx, categoryIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to check categories: %w", err)
	}
	if n != len(categoryIDs) {
		return nil, ErrCategoryNotFound
	}
	n, err = s.taxonomyRepo.CountTagsByIDs(ctx, input.TagIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to check tags: %w", err)
	}
	if n != len(input.TagIDs) {
		return nil, ErrTagNotFound
	}

	var teamID *string
	if id := strings.TrimSpace(input.TeamID); id != "" {
		if _, err := s.teamRepo.GetByID(ctx, id); err != nil {
			if errors.Is(err, repositories.ErrTeamNotFound) {
				return nil, ErrTeamNotFound
			}
			return nil, fmt.Errorf("failed to get team %s: %w", id, err)
		}
		member, err := s.memberRepo.GetByTeamAndUser(ctx, id, ownerID)
		if err != nil {
			if errors.Is(err, repositories.ErrTeamMemberNotFound) {
				return nil, ErrTeamPermissionDenied
			}
			return nil, fmt.Errorf("failed to get membership: %w", err)
		}
		if !member.Role.CanManage() {
			return nil, ErrTeamPermissionDenied
		}
		teamID = &id
	}

	slug, err := s.uniqueSlug(ctx, input.Name)
	if err != nil {
		return nil, err
	}

	server := &models.Server{
		ID:                uuid.NewString(),
		Name:              input.Name,
		Slug:              slug,
		Description:       input.Description,
		ShortDesc:         optionalString(input.ShortDesc),
		ServerIP:          input.ServerIP,
		Port:              input.Port,
		GameVersion:       input.GameVersion,
		SupportedVersions: uniqueTrimmed(input.SupportedVersions),
		WebsiteURL:        optionalString(input.WebsiteURL),
		DiscordURL:        optionalString(input.DiscordURL),
		YoutubeURL:        optionalString(input.YoutubeURL),
		TwitterURL:        optionalString(input.TwitterURL),
		OwnerID:           ownerID,
		TeamID:            teamID,
		PrimaryCategoryID: input.PrimaryCategoryID,
		Status:            models.ServerStatusPending,
		MaxPlayers:        input.MaxPlayers,
	}

	err = s.txManager.Do(ctx, func(ctx context.Context) error {
		if err := s.serverRepo.Create(ctx, server); err != nil {
			return err
		}
		if err := s.serverRepo.AddCategories(ctx, server.ID, categoryIDs[1:]); err != nil {
			return err
		}
		return s.serverRepo.AddTags(ctx, server.ID, input.TagIDs)
	})
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrServerSlugConflict):
			return nil, ErrServerSlugConflict
		case errors.Is(err, repositories.ErrCategoryNotFound):
			return nil, ErrCategoryNotFound
		case errors.Is(err, repositories.ErrTagNotFound):
			return nil, ErrTagNotFound
		case errors.Is(err, repositories.ErrTeamNotFound):
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to create server %q: %w", input.Name, err)
	}

	s.logger.InfoContext(ctx, "server submitted for moderation",
		slog.String("server_id", server.ID),
		slog.String("slug", server.Slug),
		slog.String("owner_id", ownerID))

	created, err := s.serverRepo.GetByID(ctx, server.ID)
	if err != nil {
		return server, nil
	}
	return created, nil
}

func (s *serverService) uniqueSlug(ctx context.Context, name string) (string, error) {
	base := Slugify(name)
	candidate := base
	for i := 2; i <= slugAttempts+1; i++ {
		exists, err := s.serverRepo.SlugExists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check slug %q: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = base + "-" + strconv.Itoa(i)
	}
	return base + "-" + uuid.NewString()[:8], nil
}

// Slugify lowercases s and joins runs of letters and digits with single dashes.
func Slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "server"
	}
	return slug
}

func uniqueTrimmed(values []string) []string {
	out := []string{}
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func (s *serverService) Delete(ctx context.Context, userID, serverID string) error {
	server, err := s.serverRepo.GetByID(ctx, serverID)
	if err != nil {
		if errors.Is(err, repositories.ErrServerNotFound) {
			return ErrServerNotFound
		}
		return fmt.Errorf("failed to get server %s: %w", serverID, err)
	}
	if server.OwnerID != userID {
		return ErrServerOwnerOnly
	}

	if err := s.serverRepo.Delete(ctx, serverID); err != nil {
		if errors.Is(err, repositories.ErrServerNotFound) {
			return ErrServerNotFound
		}
		return fmt.Errorf("failed to delete server %s: %w", serverID, err)
	}
	s.janitor.remove(ctx, "server", server.Logo)
	s.janitor.remove(ctx, "server", server.Banner)
	return nil
}

func (s *serverService) ListPending(ctx context.Context, moderatorID string, page, limit int) (*models.Page[models.Server], error) {
	if err := s.requireModerator(ctx, moderatorID); err != nil {
		return nil, err
	}
	v := validator.New()
	checkPaging(v, page, limit)
	if !v.Valid() {
		return nil, newValidationError(v.Errors)
	}
	page, limit = normalizePage(page, limit)
	filter := repositories.ServerFilter{
		Status: models.ServerStatusPending,
		SortBy: models.SortOldest,
		Limit:  limit,
		Offset: models.Offset(page, limit),
	}
	return s.page(ctx, filter, page, limit)
}

func (s *serverService) Approve(ctx context.Context, moderatorID, serverID string, reason *string) (*models.Server, error) {
	if reason != nil {
		reason = optionalString(*reason)
	}
	return s.moderate(ctx, moderatorID, serverID, models.ServerStatusApproved, reason)
}

func (s *serverService) Reject(ctx context.Context, moderatorID, serverID, reason string) (*models.Server, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, newValidationError(map[string]string{"reason": "must be provided"})
	}
	return s.moderate(ctx, moderatorID, serverID, models.ServerStatusRejected, &reason)
}

func (s *serverService) moderate(ctx context.Context, moderatorID, serverID string, status models.ServerStatus, reason *string) (*models.Server, error) {
	if err := s.requireModerator(ctx, moderatorID); err != nil {
		return nil, err
	}
	if err := s.serverRepo.UpdateStatus(ctx, serverID, status, reason); err != nil {
		if errors.Is(err, repositories.ErrServerNotFound) {
			return nil, ErrServerNotFound
		}
		return nil, fmt.Errorf("failed to moderate server %s: %w", serverID, err)
	}

	s.logger.InfoContext(ctx, "server moderated",
		slog.String("server_id", serverID),
		slog.String("status", string(status)),
		slog.String("moderator_id", moderatorID))

	server, err := s.serverRepo.GetByID(ctx, serverID)
	if err != nil {
		if errors.Is(err, repositories.ErrServerNotFound) {
			return nil, ErrServerNotFound
		}
		return nil, fmt.Errorf("failed to get server %s: %w", serverID, err)
	}
	return server, nil
}

// requireModerator re-reads the role from the user row.
func (s *serverService) requireModerator(ctx context.Context, userID string) error {
	return requireModerator(ctx, s.userRepo, userID)
}

func requireModerator(ctx context.Context, users repositories.UserRepository, userID string) error {
	user, err := users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return ErrModeratorOnly
		}
		return fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	if !user.Role.CanModerate() {
		return ErrModeratorOnly
	}
	return nil
}
