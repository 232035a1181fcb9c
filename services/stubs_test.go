package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/orbisplace/orbis-api/models"
	"github.com/orbisplace/orbis-api/repositories"
	"github.com/orbisplace/orbis-api/storage"
)

// memStore backs the repository stubs so that cascades behave like the database.
type memStore struct {
	mu      sync.Mutex
	users   map[string]*models.User
	teams   map[string]*models.Team
	members map[string]*models.TeamMember
	follows map[[2]string]time.Time
	seq     int
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[string]*models.User),
		teams:   make(map[string]*models.Team),
		members: make(map[string]*models.TeamMember),
		follows: make(map[[2]string]time.Time),
	}
}

func (s *memStore) addUser(id, username string) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := &models.User{
		ID:        id,
		Username:  username,
		Email:     username + "@orbis.place",
		Role:      models.RoleUser,
		CreatedAt: time.Now(),
	}
	s.users[id] = u
	return u
}

func (s *memStore) tick() time.Time {
	s.seq++
	return time.Date(2025, 1, 1, 0, 0, s.seq, 0, time.UTC)
}

func (s *memStore) membersOf(teamID string) []models.TeamMember {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TeamMember
	for _, m := range s.members {
		if m.TeamID == teamID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Role.Rank() != out[j].Role.Rank() {
			return out[i].Role.Rank() < out[j].Role.Rank()
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}

type memSnapshot struct {
	teams   map[string]models.Team
	members map[string]models.TeamMember
}

func (s *memStore) snapshot() memSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := memSnapshot{
		teams:   make(map[string]models.Team, len(s.teams)),
		members: make(map[string]models.TeamMember, len(s.members)),
	}
	for id, t := range s.teams {
		snap.teams[id] = *t
	}
	for id, m := range s.members {
		snap.members[id] = *m
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams = make(map[string]*models.Team, len(snap.teams))
	for id, t := range snap.teams {
		t := t
		s.teams[id] = &t
	}
	s.members = make(map[string]*models.TeamMember, len(snap.members))
	for id, m := range snap.members {
		m := m
		s.members[id] = &m
	}
}

func (s *memStore) team(id string) *models.Team {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[id]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

// --- users ---

type userRepoStub struct{ s *memStore }

func (r userRepoStub) Create(_ context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repositories.ErrUserEmailConflict
		}
		if u.Username == user.Username {
			return repositories.ErrUserUsernameConflict
		}
	}
	user.CreatedAt = r.s.tick()
	user.UpdatedAt = user.CreatedAt
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r userRepoStub) find(match func(*models.User) bool) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r userRepoStub) GetByID(_ context.Context, id string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id })
}

func (r userRepoStub) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (r userRepoStub) GetByVerificationToken(_ context.Context, token string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return derefString(u.EmailVerificationToken) == token })
}

func (r userRepoStub) GetByResetToken(_ context.Context, token string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return derefString(u.PasswordResetToken) == token })
}

func (r userRepoStub) GetProfile(_ context.Context, id string) (*models.UserProfile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	p := &models.UserProfile{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, Image: u.Image, Bio: u.Bio}
	for k := range r.s.follows {
		if k[1] == id {
			p.FollowerCount++
		}
		if k[0] == id {
			p.FollowingCount++
		}
	}
	return p, nil
}

func (r userRepoStub) update(id string, fn func(u *models.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	fn(u)
	return nil
}

func (r userRepoStub) UpdateProfile(_ context.Context, user *models.User) error {
	return r.update(user.ID, func(u *models.User) {
		u.DisplayName, u.Bio, u.Location, u.Website = user.DisplayName, user.Bio, user.Location, user.Website
	})
}

func (r userRepoStub) UpdateImage(_ context.Context, id string, image *string) error {
	return r.update(id, func(u *models.User) { u.Image = image })
}

func (r userRepoStub) MarkEmailVerified(_ context.Context, id string) error {
	return r.update(id, func(u *models.User) {
		u.EmailVerified = true
		u.EmailVerificationToken = nil
	})
}

func (r userRepoStub) SetResetToken(_ context.Context, id string, token string, expiresAt time.Time) error {
	return r.update(id, func(u *models.User) {
		u.PasswordResetToken = &token
		u.PasswordResetExpiresAt = &expiresAt
	})
}

func (r userRepoStub) UpdatePassword(_ context.Context, id string, passwordHash string) error {
	return r.update(id, func(u *models.User) {
		u.PasswordHash = passwordHash
		u.PasswordResetToken = nil
		u.PasswordResetExpiresAt = nil
	})
}

func (r userRepoStub) Follow(_ context.Context, followerID, followingID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[followingID]; !ok {
		return repositories.ErrUserNotFound
	}
	k := [2]string{followerID, followingID}
	if _, ok := r.s.follows[k]; ok {
		return repositories.ErrFollowConflict
	}
	r.s.follows[k] = r.s.tick()
	return nil
}

func (r userRepoStub) Unfollow(_ context.Context, followerID, followingID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := [2]string{followerID, followingID}
	if _, ok := r.s.follows[k]; !ok {
		return repositories.ErrFollowNotFound
	}
	delete(r.s.follows, k)
	return nil
}

func (r userRepoStub) ListFollowers(_ context.Context, userID string) ([]models.UserSummary, error) {
	return r.listFollows(func(k [2]string) (string, bool) { return k[0], k[1] == userID })
}

func (r userRepoStub) ListFollowing(_ context.Context, userID string) ([]models.UserSummary, error) {
	return r.listFollows(func(k [2]string) (string, bool) { return k[1], k[0] == userID })
}

func (r userRepoStub) listFollows(pick func([2]string) (string, bool)) ([]models.UserSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.UserSummary{}
	for k := range r.s.follows {
		if id, ok := pick(k); ok {
			out = append(out, *r.s.users[id].Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- teams ---

type teamRepoStub struct {
	s               *memStore
	failUpdateOn    models.TeamImage
	failUpdateOwner bool
}

func (r *teamRepoStub) Create(_ context.Context, team *models.Team) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.teams {
		if t.Name == team.Name {
			return repositories.ErrTeamNameConflict
		}
	}
	team.CreatedAt = r.s.tick()
	team.UpdatedAt = team.CreatedAt
	cp := *team
	r.s.teams[team.ID] = &cp
	return nil
}

func (r *teamRepoStub) GetByID(_ context.Context, id string) (*models.Team, error) {
	if t := r.s.team(id); t != nil {
		return t, nil
	}
	return nil, repositories.ErrTeamNotFound
}

func (r *teamRepoStub) GetByName(_ context.Context, name string) (*models.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.teams {
		if t.Name == strings.ToLower(name) {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repositories.ErrTeamNotFound
}

func (r *teamRepoStub) ExistsByName(ctx context.Context, name string) (bool, error) {
	_, err := r.GetByName(ctx, name)
	if errors.Is(err, repositories.ErrTeamNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *teamRepoStub) matching(search string) []models.TeamSummary {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	search = strings.ToLower(search)
	out := []models.TeamSummary{}
	for _, t := range r.s.teams {
		text := strings.ToLower(t.Name + " " + t.DisplayName + " " + derefString(t.Description))
		if search != "" && !strings.Contains(text, search) {
			continue
		}
		sum := models.TeamSummary{Team: *t}
		for _, m := range r.s.members {
			if m.TeamID == t.ID {
				sum.MemberCount++
			}
		}
		out = append(out, sum)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *teamRepoStub) List(_ context.Context, f repositories.TeamListFilter) ([]models.TeamSummary, error) {
	all := r.matching(f.Search)
	if f.Offset >= len(all) {
		return []models.TeamSummary{}, nil
	}
	end := f.Offset + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[f.Offset:end], nil
}

func (r *teamRepoStub) Count(_ context.Context, search string) (int, error) {
	return len(r.matching(search)), nil
}

func (r *teamRepoStub) Update(_ context.Context, team *models.Team) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.teams[team.ID]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.DisplayName, t.Description, t.Website, t.DiscordURL = team.DisplayName, team.Description, team.Website, team.DiscordURL
	return nil
}

func (r *teamRepoStub) UpdateImage(_ context.Context, id string, image models.TeamImage, url *string) error {
	if r.failUpdateOn == image {
		return errors.New("db is down")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.teams[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	switch image {
	case models.TeamImageLogo:
		t.Logo = url
	case models.TeamImageBanner:
		t.Banner = url
	default:
		return repositories.ErrInvalidTeamImage
	}
	return nil
}

func (r *teamRepoStub) UpdateOwner(_ context.Context, id string, ownerID string) error {
	if r.failUpdateOwner {
		return errors.New("db is down")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.teams[id]
	if !ok {
		return repositories.ErrTeamNotFound
	}
	t.OwnerID = ownerID
	return nil
}

func (r *teamRepoStub) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.teams[id]; !ok {
		return repositories.ErrTeamNotFound
	}
	delete(r.s.teams, id)
	for mid, m := range r.s.members {
		if m.TeamID == id {
			delete(r.s.members, mid)
		}
	}
	return nil
}

func (r *teamRepoStub) ListByUser(_ context.Context, userID string) ([]models.UserTeam, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.UserTeam{}
	for _, m := range r.s.members {
		if m.UserID != userID {
			continue
		}
		t := r.s.teams[m.TeamID]
		out = append(out, models.UserTeam{TeamSummary: models.TeamSummary{Team: *t}, MemberRole: m.Role, JoinedAt: m.JoinedAt})
	}
	return out, nil
}

// --- members ---

type memberRepoStub struct{ s *memStore }

func (r memberRepoStub) Create(_ context.Context, member *models.TeamMember) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.teams[member.TeamID]; !ok {
		return repositories.ErrTeamNotFound
	}
	for _, m := range r.s.members {
		if m.TeamID == member.TeamID && m.UserID == member.UserID {
			return repositories.ErrTeamMemberConflict
		}
	}
	member.JoinedAt = r.s.tick()
	cp := *member
	r.s.members[member.ID] = &cp
	return nil
}

func (r memberRepoStub) GetByID(_ context.Context, id string) (*models.TeamMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m, ok := r.s.members[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, repositories.ErrTeamMemberNotFound
}

func (r memberRepoStub) GetByTeamAndUser(_ context.Context, teamID, userID string) (*models.TeamMember, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.members {
		if m.TeamID == teamID && m.UserID == userID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, repositories.ErrTeamMemberNotFound
}

func (r memberRepoStub) ListByTeam(_ context.Context, teamID string) ([]models.TeamMember, error) {
	return r.s.membersOf(teamID), nil
}

// ChangeRole mirrors the conditional UPDATE and the one-owner-per-team index.
func (r memberRepoStub) ChangeRole(_ context.Context, id string, from, to models.TeamMemberRole) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.members[id]
	if !ok || m.Role != from {
		return repositories.ErrTeamMemberNotFound
	}
	if to == models.TeamRoleOwner {
		for _, other := range r.s.members {
			if other.TeamID == m.TeamID && other.ID != id && other.Role == models.TeamRoleOwner {
				return repositories.ErrTeamOwnerConflict
			}
		}
	}
	m.Role = to
	return nil
}

func (r memberRepoStub) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.members[id]; !ok {
		return repositories.ErrTeamMemberNotFound
	}
	delete(r.s.members, id)
	return nil
}

// --- infrastructure ---

// txStub runs one transaction at a time and rolls the store back when fn fails.
type txStub struct {
	mu    sync.Mutex
	store *memStore
	calls int
}

func newTxStub(store *memStore) *txStub {
	return &txStub{store: store}
}

func (t *txStub) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++

	var snap memSnapshot
	if t.store != nil {
		snap = t.store.snapshot()
	}
	err := fn(ctx)
	if err != nil && t.store != nil {
		t.store.restore(snap)
	}
	return err
}

func (t *txStub) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

const testBaseURL = "https://media.orbis.place"

type uploaderStub struct {
	mu         sync.Mutex
	objects    map[string][]byte
	deleted    []string
	failDelete bool
	failUpload bool
}

func newUploaderStub() *uploaderStub {
	return &uploaderStub{objects: make(map[string][]byte)}
}

func (u *uploaderStub) Upload(_ context.Context, key string, _ string, reader io.Reader) (*storage.UploadResult, error) {
	if u.failUpload {
		return nil, errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects[key] = data
	return &storage.UploadResult{Key: key, Location: u.GetPublicURL(key)}, nil
}

func (u *uploaderStub) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deleted = append(u.deleted, key)
	if u.failDelete {
		return errors.New("delete failed")
	}
	delete(u.objects, key)
	return nil
}

func (u *uploaderStub) GetPublicURL(key string) string {
	return testBaseURL + "/" + key
}

func (u *uploaderStub) KeyFromURL(publicURL string) (string, error) {
	if !strings.HasPrefix(publicURL, testBaseURL+"/") {
		return "", storage.ErrForeignURL
	}
	return strings.TrimPrefix(publicURL, testBaseURL+"/"), nil
}

func (u *uploaderStub) has(key string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.objects[key]
	return ok
}

func (u *uploaderStub) seed(key string) string {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.objects[key] = []byte("old")
	return testBaseURL + "/" + key
}

type cleanupCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *cleanupCounter) CleanupFailed(entity string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[entity]++
}

func (c *cleanupCounter) get(entity string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[entity]
}

type eventRecorder struct {
	mu     sync.Mutex
	events []models.TeamEvent
}

func (r *eventRecorder) PublishTeamEvent(event models.TeamEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *eventRecorder) types() []models.TeamEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.TeamEventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func imageFile(contentType string, size int64) *FileUpload {
	return &FileUpload{
		Reader:      strings.NewReader(fmt.Sprintf("image-%d", size)),
		ContentType: contentType,
		Size:        size,
		Filename:    "upload",
	}
}
