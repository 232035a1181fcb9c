package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/orbisplace/orbis-api/models"
	"github.com/orbisplace/orbis-api/repositories"
)

type serverRepoStub struct {
	mu         sync.Mutex
	servers    map[string]*models.Server
	categories map[string][]string
	tags       map[string][]string
	lastFilter repositories.ServerFilter
}

func newServerRepoStub() *serverRepoStub {
	return &serverRepoStub{
		servers:    make(map[string]*models.Server),
		categories: make(map[string][]string),
		tags:       make(map[string][]string),
	}
}

func (r *serverRepoStub) Create(_ context.Context, server *models.Server) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.servers {
		if s.Slug == server.Slug {
			return repositories.ErrServerSlugConflict
		}
	}
	cp := *server
	r.servers[server.ID] = &cp
	return nil
}

func (r *serverRepoStub) AddCategories(_ context.Context, serverID string, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.categories[serverID] = append(r.categories[serverID], ids...)
	return nil
}

func (r *serverRepoStub) AddTags(_ context.Context, serverID string, ids []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags[serverID] = append(r.tags[serverID], ids...)
	return nil
}

func (r *serverRepoStub) SlugExists(_ context.Context, slug string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.servers {
		if s.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (r *serverRepoStub) find(match func(*models.Server) bool) (*models.Server, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.servers {
		if match(s) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repositories.ErrServerNotFound
}

func (r *serverRepoStub) GetByID(_ context.Context, id string) (*models.Server, error) {
	return r.find(func(s *models.Server) bool { return s.ID == id })
}

func (r *serverRepoStub) GetBySlug(_ context.Context, slug string) (*models.Server, error) {
	return r.find(func(s *models.Server) bool { return s.Slug == slug })
}

func (r *serverRepoStub) matching(f repositories.ServerFilter) []models.Server {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Server{}
	for _, s := range r.servers {
		if f.Status == "" || s.Status == f.Status {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *serverRepoStub) List(_ context.Context, f repositories.ServerFilter) ([]models.Server, error) {
	r.mu.Lock()
	r.lastFilter = f
	r.mu.Unlock()
	all := r.matching(f)
	if f.Offset >= len(all) {
		return []models.Server{}, nil
	}
	end := f.Offset + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[f.Offset:end], nil
}

func (r *serverRepoStub) Count(_ context.Context, f repositories.ServerFilter) (int, error) {
	return len(r.matching(f)), nil
}

func (r *serverRepoStub) ListByOwner(_ context.Context, ownerID string) ([]models.Server, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Server{}
	for _, s := range r.servers {
		if s.OwnerID == ownerID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *serverRepoStub) AttachTaxonomy(context.Context, []models.Server) error { return nil }

func (r *serverRepoStub) UpdateStatus(_ context.Context, id string, status models.ServerStatus, reason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.servers[id]
	if !ok {
		return repositories.ErrServerNotFound
	}
	s.Status, s.ModerationReason = status, reason
	return nil
}

func (r *serverRepoStub) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.servers[id]; !ok {
		return repositories.ErrServerNotFound
	}
	delete(r.servers, id)
	return nil
}

type taxonomyRepoStub struct {
	categories []models.ServerCategory
	tags       []models.ServerTag
}

func newTaxonomyRepoStub() *taxonomyRepoStub {
	return &taxonomyRepoStub{
		categories: []models.ServerCategory{
			{ID: "cat-survival", Name: "Survival", Slug: "survival"},
			{ID: "cat-pvp", Name: "PvP", Slug: "pvp"},
			{ID: "cat-skyblock", Name: "Skyblock", Slug: "skyblock"},
			{ID: "cat-minigames", Name: "Minigames", Slug: "minigames"},
		},
		tags: []models.ServerTag{
			{ID: "tag-economy", Name: "Economy", Slug: "economy", ServerCount: 3},
			{ID: "tag-cracked", Name: "Cracked", Slug: "cracked", ServerCount: 1},
		},
	}
}

func (r *taxonomyRepoStub) ListCategories(context.Context) ([]models.ServerCategory, error) {
	return r.categories, nil
}

func (r *taxonomyRepoStub) GetCategoryBySlug(_ context.Context, slug string) (*models.ServerCategory, error) {
	for _, c := range r.categories {
		if c.Slug == slug {
			return &c, nil
		}
	}
	return nil, repositories.ErrCategoryNotFound
}

func (r *taxonomyRepoStub) CountCategoriesByIDs(_ context.Context, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		for _, c := range r.categories {
			if c.ID == id {
				n++
			}
		}
	}
	return n, nil
}

func (r *taxonomyRepoStub) ListTags(context.Context) ([]models.ServerTag, error) {
	return r.tags, nil
}

func (r *taxonomyRepoStub) PopularTags(_ context.Context, limit int) ([]models.ServerTag, error) {
	if limit < len(r.tags) {
		return r.tags[:limit], nil
	}
	return r.tags, nil
}

func (r *taxonomyRepoStub) GetTagBySlug(_ context.Context, slug string) (*models.ServerTag, error) {
	for _, t := range r.tags {
		if t.Slug == slug {
			return &t, nil
		}
	}
	return nil, repositories.ErrTagNotFound
}

func (r *taxonomyRepoStub) CountTagsByIDs(_ context.Context, ids []string) (int, error) {
	n := 0
	for _, id := range ids {
		for _, t := range r.tags {
			if t.ID == id {
				n++
			}
		}
	}
	return n, nil
}

type serverFixture struct {
	store    *memStore
	servers  *serverRepoStub
	teams    *teamRepoStub
	uploader *uploaderStub
	tx       *txStub
	svc      ServerService
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	f := &serverFixture{
		store:    newMemStore(),
		servers:  newServerRepoStub(),
		uploader: newUploaderStub(),
	}
	f.teams = &teamRepoStub{s: f.store}
	f.tx = newTxStub(f.store)
	for _, name := range []string{"alice", "bob", "mod"} {
		f.store.addUser(name, name)
	}
	f.store.users["mod"].Role = models.RoleModerator

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewServerService(f.servers, newTaxonomyRepoStub(), f.teams, memberRepoStub{f.store},
		userRepoStub{f.store}, f.tx, f.uploader, nil, logger)
	return f
}

const testDescription = "A long running survival network with custom plugins, weekly events and a friendly community."

func validServerInput() CreateServerInput {
	return CreateServerInput{
		Name:              "Hypixel Network",
		Description:       testDescription,
		ServerIP:          "mc.hypixel.net",
		GameVersion:       "1.20.4",
		SupportedVersions: []string{"1.8", " 1.20.4 ", "1.8"},
		WebsiteURL:        "https://hypixel.net",
		PrimaryCategoryID: "cat-survival",
		CategoryIDs:       []string{"cat-pvp", "cat-survival"},
		TagIDs:            []string{"tag-economy"},
	}
}

func TestCreateServerStartsPending(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()

	server, err := f.svc.Create(ctx, "alice", validServerInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if server.Status != models.ServerStatusPending {
		t.Errorf("status = %s, want PENDING", server.Status)
	}
	if server.Slug != "hypixel-network" {
		t.Errorf("slug = %q", server.Slug)
	}
	if server.Port != defaultServerPort {
		t.Errorf("port = %d, want default", server.Port)
	}
	if got := strings.Join(server.SupportedVersions, ","); got != "1.8,1.20.4" {
		t.Errorf("supported versions = %q", got)
	}
	if got := f.servers.categories[server.ID]; len(got) != 1 || got[0] != "cat-pvp" {
		t.Errorf("additional categories = %v, want [cat-pvp]", got)
	}
	if got := f.servers.tags[server.ID]; len(got) != 1 {
		t.Errorf("tags = %v", got)
	}
	if f.tx.calls != 1 {
		t.Errorf("tx calls = %d, want 1", f.tx.calls)
	}

	second, err := f.svc.Create(ctx, "bob", validServerInput())
	if err != nil {
		t.Fatalf("second Create: %v", err)
	}
	if second.Slug != "hypixel-network-2" {
		t.Errorf("colliding slug = %q, want hypixel-network-2", second.Slug)
	}
}

func TestCreateServerValidation(t *testing.T) {
	tests := []struct {
		name  string
		field string
		edit  func(in *CreateServerInput)
	}{
		{"short name", "name", func(in *CreateServerInput) { in.Name = "ab" }},
		{"short description", "description", func(in *CreateServerInput) { in.Description = "too short" }},
		{"long short_desc", "short_desc", func(in *CreateServerInput) { in.ShortDesc = strings.Repeat("x", 201) }},
		{"bad ip", "server_ip", func(in *CreateServerInput) { in.ServerIP = "not a host!" }},
		{"bad port", "port", func(in *CreateServerInput) { in.Port = 70000 }},
		{"no version", "game_version", func(in *CreateServerInput) { in.GameVersion = " " }},
		{"bad website", "website_url", func(in *CreateServerInput) { in.WebsiteURL = "hypixel.net" }},
		{"no primary category", "primary_category_id", func(in *CreateServerInput) { in.PrimaryCategoryID = "" }},
		{"too many categories", "category_ids", func(in *CreateServerInput) {
			in.CategoryIDs = []string{"cat-pvp", "cat-skyblock", "cat-minigames"}
		}},
		{"no tags", "tag_ids", func(in *CreateServerInput) { in.TagIDs = nil }},
		{"too many tags", "tag_ids", func(in *CreateServerInput) {
			in.TagIDs = []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11"}
		}},
		{"duplicate tags", "tag_ids", func(in *CreateServerInput) { in.TagIDs = []string{"tag-economy", "tag-economy"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServerFixture(t)
			in := validServerInput()
			tt.edit(&in)
			_, err := f.svc.Create(context.Background(), "alice", in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want validation error", err)
			}
			if _, ok := verr.Fields[tt.field]; !ok {
				t.Errorf("fields = %v, want %s", verr.Fields, tt.field)
			}
			if len(f.servers.servers) != 0 {
				t.Error("server stored despite validation failure")
			}
		})
	}
}

func TestCreateServerUnknownTaxonomy(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()

	in := validServerInput()
	in.CategoryIDs = []string{"cat-unknown"}
	if _, err := f.svc.Create(ctx, "alice", in); !errors.Is(err, ErrCategoryNotFound) {
		t.Errorf("unknown category: err = %v", err)
	}

	in = validServerInput()
	in.TagIDs = []string{"tag-economy", "tag-unknown"}
	if _, err := f.svc.Create(ctx, "alice", in); !errors.Is(err, ErrTagNotFound) {
		t.Errorf("unknown tag: err = %v", err)
	}
	if !errors.Is(ErrTagNotFound, ErrNotFound) {
		t.Error("tag errors must map to not found")
	}
}

func TestCreateServerForTeamRequiresManager(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()
	teamSvc := NewTeamService(f.teams, memberRepoStub{f.store}, userRepoStub{f.store}, f.tx, f.uploader, nil, nil, nil)
	team, err := teamSvc.Create(ctx, "alice", CreateTeamInput{Name: "builders"})
	if err != nil {
		t.Fatalf("create team: %v", err)
	}

	in := validServerInput()
	in.TeamID = team.ID
	if _, err := f.svc.Create(ctx, "bob", in); !errors.Is(err, ErrTeamPermissionDenied) {
		t.Errorf("non-member: err = %v", err)
	}

	if _, err := teamSvc.AddMember(ctx, "alice", team.ID, AddMemberInput{UserID: "bob", Role: models.TeamRoleMember}); err != nil {
		t.Fatalf("add bob: %v", err)
	}
	if _, err := f.svc.Create(ctx, "bob", in); !errors.Is(err, ErrTeamPermissionDenied) {
		t.Errorf("plain member: err = %v", err)
	}

	server, err := f.svc.Create(ctx, "alice", in)
	if err != nil {
		t.Fatalf("owner create: %v", err)
	}
	if server.TeamID == nil || *server.TeamID != team.ID {
		t.Errorf("team id = %v", server.TeamID)
	}

	in.TeamID = "missing"
	if _, err := f.svc.Create(ctx, "alice", in); !errors.Is(err, ErrTeamNotFound) {
		t.Errorf("missing team: err = %v", err)
	}
}

func intPtr(n int) *int { return &n }

func TestListServersValidation(t *testing.T) {
	tests := map[string]ListServersInput{
		"bad sort":      {SortBy: "random"},
		"negative min":  {MinPlayers: intPtr(-1)},
		"min over max":  {MinPlayers: intPtr(10), MaxPlayers: intPtr(5)},
		"limit too big": {Limit: 101},
		"negative page": {Page: -1},
		"page too big":  {Page: models.MaxPage + 1},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			f := newServerFixture(t)
			if _, err := f.svc.List(context.Background(), in); !errors.Is(err, ErrValidationFailed) {
				t.Fatalf("err = %v, want validation error", err)
			}
		})
	}
}

func TestListServersOnlyApprovedWithDefaults(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		in := validServerInput()
		server, err := f.svc.Create(ctx, "alice", in)
		if err != nil {
			t.Fatal(err)
		}
		if i < 2 {
			if _, err := f.svc.Approve(ctx, "mod", server.ID, nil); err != nil {
				t.Fatal(err)
			}
		}
	}

	page, err := f.svc.List(ctx, ListServersInput{Search: "  hypixel "})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if page.Meta.Total != 2 || len(page.Data) != 2 {
		t.Errorf("total = %d, len = %d, want 2 approved", page.Meta.Total, len(page.Data))
	}
	got := f.servers.lastFilter
	if got.Status != models.ServerStatusApproved || got.SortBy != models.SortVotes {
		t.Errorf("filter = %+v", got)
	}
	if got.Limit != DefaultLimit || got.Offset != 0 || got.Search != "hypixel" {
		t.Errorf("filter = %+v", got)
	}

	page, err = f.svc.List(ctx, ListServersInput{Page: 2, Limit: 1, SortBy: models.SortNameAsc})
	if err != nil {
		t.Fatal(err)
	}
	if f.servers.lastFilter.Offset != 1 || !page.Meta.HasPrevious || page.Meta.HasNext {
		t.Errorf("offset = %d, meta = %+v", f.servers.lastFilter.Offset, page.Meta)
	}
}

func TestGetServerBySlugVisibility(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()
	server, err := f.svc.Create(ctx, "alice", validServerInput())
	if err != nil {
		t.Fatal(err)
	}

	for _, viewer := range []string{"", "bob"} {
		if _, err := f.svc.GetBySlug(ctx, server.Slug, viewer); !errors.Is(err, ErrServerNotFound) {
			t.Errorf("viewer %q: err = %v, want not found", viewer, err)
		}
	}
	for _, viewer := range []string{"alice", "mod"} {
		if _, err := f.svc.GetBySlug(ctx, server.Slug, viewer); err != nil {
			t.Errorf("viewer %q: %v", viewer, err)
		}
	}

	if _, err := f.svc.Approve(ctx, "mod", server.ID, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.GetBySlug(ctx, "HYPIXEL-NETWORK", ""); err != nil {
		t.Errorf("approved server hidden: %v", err)
	}
}

func TestServerModeration(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()
	server, err := f.svc.Create(ctx, "alice", validServerInput())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.ListPending(ctx, "alice", 0, 0); !errors.Is(err, ErrModeratorOnly) {
		t.Errorf("non-moderator list: err = %v", err)
	}
	if _, err := f.svc.Approve(ctx, "bob", server.ID, nil); !errors.Is(err, ErrForbiddenOperation) {
		t.Errorf("non-moderator approve: err = %v", err)
	}

	pending, err := f.svc.ListPending(ctx, "mod", 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if pending.Meta.Total != 1 || f.servers.lastFilter.SortBy != models.SortOldest {
		t.Errorf("pending = %+v, filter = %+v", pending.Meta, f.servers.lastFilter)
	}

	if _, err := f.svc.Reject(ctx, "mod", server.ID, "  "); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("reject without reason: err = %v", err)
	}
	rejected, err := f.svc.Reject(ctx, "mod", server.ID, "copied description")
	if err != nil {
		t.Fatal(err)
	}
	if rejected.Status != models.ServerStatusRejected || derefString(rejected.ModerationReason) != "copied description" {
		t.Errorf("rejected = %+v", rejected)
	}

	if _, err := f.svc.Approve(ctx, "mod", "missing", nil); !errors.Is(err, ErrServerNotFound) {
		t.Errorf("missing server: err = %v", err)
	}
}

func TestDeleteServer(t *testing.T) {
	f := newServerFixture(t)
	ctx := context.Background()
	server, err := f.svc.Create(ctx, "alice", validServerInput())
	if err != nil {
		t.Fatal(err)
	}
	logo := f.uploader.seed("servers/" + server.ID + "/logo/old.png")
	f.servers.servers[server.ID].Logo = &logo

	if err := f.svc.Delete(ctx, "bob", server.ID); !errors.Is(err, ErrServerOwnerOnly) {
		t.Errorf("non-owner: err = %v", err)
	}
	if err := f.svc.Delete(ctx, "alice", server.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if f.uploader.has("servers/" + server.ID + "/logo/old.png") {
		t.Error("logo blob not removed")
	}
	if err := f.svc.Delete(ctx, "alice", server.ID); !errors.Is(err, ErrServerNotFound) {
		t.Errorf("second delete: err = %v", err)
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Hypixel Network":     "hypixel-network",
		"  Mine--Craft!! 2 ":  "mine-craft-2",
		"Ünïcode Ω Realm":     "n-code-realm",
		"!!!":                 "server",
		"already-a-slug":      "already-a-slug",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTaxonomyService(t *testing.T) {
	svc := NewTaxonomyService(newTaxonomyRepoStub())
	ctx := context.Background()

	if c, err := svc.GetCategory(ctx, " PvP "); err != nil || c.ID != "cat-pvp" {
		t.Errorf("GetCategory = %v, %v", c, err)
	}
	if _, err := svc.GetCategory(ctx, "nope"); !errors.Is(err, ErrCategoryNotFound) {
		t.Errorf("unknown category: err = %v", err)
	}
	if _, err := svc.GetTag(ctx, "nope"); !errors.Is(err, ErrTagNotFound) {
		t.Errorf("unknown tag: err = %v", err)
	}
	tags, err := svc.PopularTags(ctx, 1)
	if err != nil || len(tags) != 1 || tags[0].Slug != "economy" {
		t.Errorf("PopularTags = %v, %v", tags, err)
	}
	if _, err := svc.PopularTags(ctx, 101); !errors.Is(err, ErrValidationFailed) {
		t.Errorf("limit 101: err = %v", err)
	}
}
