package handlers

import (
	"log/slog"
	"net/http"

	"github.com/orbisplace/orbis-api/models"
	"github.com/orbisplace/orbis-api/services"
)

type ServerHandler struct {
	responder
	serverService services.ServerService
}

func NewServerHandler(serverService services.ServerService, logger *slog.Logger) *ServerHandler {
	return &ServerHandler{
		responder:     newResponder(logger),
		serverService: serverService,
	}
}

type createServerRequest struct {
	Name              string   `json:"name"`
	Description       string   `json:"description"`
	ShortDesc         string   `json:"short_desc"`
	ServerIP          string   `json:"server_ip"`
	Port              int      `json:"port"`
	GameVersion       string   `json:"game_version"`
	SupportedVersions []string `json:"supported_versions"`
	WebsiteURL        string   `json:"website_url"`
	DiscordURL        string   `json:"discord_url"`
	YoutubeURL        string   `json:"youtube_url"`
	TwitterURL        string   `json:"twitter_url"`
	PrimaryCategoryID string   `json:"primary_category_id"`
	CategoryIDs       []string `json:"category_ids"`
	TagIDs            []string `json:"tag_ids"`
	TeamID            string   `json:"team_id"`
	MaxPlayers        int      `json:"max_players"`
}

type moderationRequest struct {
	Reason *string `json:"reason"`
}

// ListServers godoc
// @Summary List approved servers
// @Tags servers
// @Param search query string false "name, description or address"
// @Param category query string false "category slug"
// @Param tags query []string false "tag slugs, all must match"
// @Param version query string false "supported game version"
// @Param online query bool false "only online servers"
// @Param featured query bool false "only featured servers"
// @Param verified query bool false "only verified servers"
// @Param min_players query int false "minimum current players"
// @Param max_players query int false "maximum current players"
// @Param sort query string false "votes, players, newest, oldest, name-asc, name-desc"
// @Success 200 {object} models.Page[models.Server]
// @Failure 422 {object} map[string]map[string]string
// @Router /servers [get]
func (h *ServerHandler) ListServers(w http.ResponseWriter, r *http.Request) {
	q := newQueryReader(r)
	input := services.ListServersInput{
		Search:      q.String("search"),
		Category:    q.String("category"),
		Tags:        q.List("tags"),
		GameVersion: q.String("version"),
		Online:      q.Bool("online"),
		Featured:    q.Bool("featured"),
		Verified:    q.Bool("verified"),
		MinPlayers:  q.IntPtr("min_players"),
		MaxPlayers:  q.IntPtr("max_players"),
		SortBy:      models.ServerSortOption(q.String("sort")),
		Page:        q.Int("page", 0),
		Limit:       q.Int("limit", 0),
	}
	if !q.Valid() {
		h.failedValidationResponse(w, r, q.errors)
		return
	}

	page, err := h.serverService.List(r.Context(), input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, page)
}

func (h *ServerHandler) GetServerBySlug(w http.ResponseWriter, r *http.Request) {
	slug, ok := h.urlParam(w, r, "server")
	if !ok {
		return
	}

	server, err := h.serverService.GetBySlug(r.Context(), slug, viewerID(r))
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"server": server})
}

func (h *ServerHandler) ListMyServers(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	servers, err := h.serverService.ListByOwner(r.Context(), userID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"servers": servers})
}

// CreateServer godoc
// @Summary Submit a server listing for moderation
// @Tags servers
// @Security BearerAuth
// @Success 201 {object} models.Server
// @Failure 422 {object} map[string]map[string]string
// @Router /servers [post]
func (h *ServerHandler) CreateServer(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	var req createServerRequest
	if err := readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	server, err := h.serverService.Create(r.Context(), userID, services.CreateServerInput{
		Name:              req.Name,
		Description:       req.Description,
		ShortDesc:         req.ShortDesc,
		ServerIP:          req.ServerIP,
		Port:              req.Port,
		GameVersion:       req.GameVersion,
		SupportedVersions: req.SupportedVersions,
		WebsiteURL:        req.WebsiteURL,
		DiscordURL:        req.DiscordURL,
		YoutubeURL:        req.YoutubeURL,
		TwitterURL:        req.TwitterURL,
		PrimaryCategoryID: req.PrimaryCategoryID,
		CategoryIDs:       req.CategoryIDs,
		TagIDs:            req.TagIDs,
		TeamID:            req.TeamID,
		MaxPlayers:        req.MaxPlayers,
	})
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusCreated, jsonResponse{"server": server})
}

func (h *ServerHandler) DeleteServer(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}
	serverID, ok := h.urlParam(w, r, "server")
	if !ok {
		return
	}

	if err := h.serverService.Delete(r.Context(), userID, serverID); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ServerHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	q := newQueryReader(r)
	page, limit := q.Int("page", 0), q.Int("limit", 0)
	if !q.Valid() {
		h.failedValidationResponse(w, r, q.errors)
		return
	}

	result, err := h.serverService.ListPending(r.Context(), userID, page, limit)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, result)
}

func (h *ServerHandler) Approve(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}
	serverID, ok := h.urlParam(w, r, "serverID")
	if !ok {
		return
	}

	// The body is optional when no reason is given.
	var req moderationRequest
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &req); err != nil {
			h.badRequestResponse(w, r, err)
			return
		}
	}

	server, err := h.serverService.Approve(r.Context(), userID, serverID, req.Reason)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"server": server})
}

func (h *ServerHandler) Reject(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}
	serverID, ok := h.urlParam(w, r, "serverID")
	if !ok {
		return
	}

	var req moderationRequest
	if err := readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}
	reason := ""
	if req.Reason != nil {
		reason = *req.Reason
	}

	server, err := h.serverService.Reject(r.Context(), userID, serverID, reason)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"server": server})
}
