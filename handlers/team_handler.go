package handlers

import (
	"log/slog"
	"net/http"

	"github.com/orbisplace/orbis-api/models"
	"github.com/orbisplace/orbis-api/services"
)

type TeamHandler struct {
	responder
	teamService services.TeamService
}

func NewTeamHandler(teamService services.TeamService, logger *slog.Logger) *TeamHandler {
	return &TeamHandler{
		responder:   newResponder(logger),
		teamService: teamService,
	}
}

type createTeamRequest struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Website     string `json:"website"`
	DiscordURL  string `json:"discord_url"`
}

type updateTeamRequest struct {
	DisplayName *string `json:"display_name"`
	Description *string `json:"description"`
	Website     *string `json:"website"`
	DiscordURL  *string `json:"discord_url"`
}

type addMemberRequest struct {
	UserID string                `json:"user_id"`
	Role   models.TeamMemberRole `json:"role"`
}

type updateMemberRequest struct {
	Role models.TeamMemberRole `json:"role"`
}

type transferOwnershipRequest struct {
	UserID string `json:"user_id"`
}

// ListTeams godoc
// @Summary List teams
// @Tags teams
// @Param search query string false "name filter"
// @Param page query int false "page, starts at 1"
// @Param limit query int false "page size, max 100"
// @Success 200 {object} models.Page[models.TeamSummary]
// @Router /teams [get]
func (h *TeamHandler) ListTeams(w http.ResponseWriter, r *http.Request) {
	q := newQueryReader(r)
	input := services.ListTeamsInput{
		Search: q.String("search"),
		Page:   q.Int("page", 0),
		Limit:  q.Int("limit", 0),
	}
	if !q.Valid() {
		h.failedValidationResponse(w, r, q.errors)
		return
	}

	page, err := h.teamService.List(r.Context(), input)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, page)
}

func (h *TeamHandler) GetTeamByName(w http.ResponseWriter, r *http.Request) {
	name, ok := h.urlParam(w, r, "team")
	if !ok {
		return
	}

	team, err := h.teamService.GetByName(r.Context(), name)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"team": team})
}

// CreateTeam godoc
// @Summary Create a team owned by the caller
// @Tags teams
// @Security BearerAuth
// @Success 201 {object} models.Team
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]map[string]string
// @Router /teams [post]
func (h *TeamHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	var req createTeamRequest
	if err := readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	team, err := h.teamService.Create(r.Context(), userID, services.CreateTeamInput{
		Name:        req.Name,
		DisplayName: req.DisplayName,
		Description: req.Description,
		Website:     req.Website,
		DiscordURL:  req.DiscordURL,
	})
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusCreated, jsonResponse{"team": team})
}

func (h *TeamHandler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}
	teamID, ok := h.urlParam(w, r, "team")
	if !ok {
		return
	}

	var req updateTeamRequest
	if err := readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	team, err := h.teamService.Update(r.Context(), userID, teamID, services.UpdateTeamInput{
		DisplayName: req.DisplayName,
		Description: req.Description,
		Website:     req.Website,
		DiscordURL:  req.DiscordURL,
	})
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"team": team})
}

func (h *TeamHandler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}
	teamID, ok := h.urlParam(w, r, "team")
	if !ok {
		return
	}

	if err := h.teamService.Delete(r.Context(), userID, teamID); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TeamHandler) UploadLogo(w http.ResponseWriter, r *http.Request) {
	h.uploadImage(w, r, models.TeamImageLogo)
}

func (h *TeamHandler) UploadBanner(w http.ResponseWriter, r *http.Request) {
	h.uploadImage(w, r, models.TeamImageBanner)
}

func (h *TeamHandler) uploadImage(w http.ResponseWriter, r *http.Request, kind models.TeamImage) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}
	teamID, ok := h.urlParam(w, r, "team")
	if !ok {
		return
	}

	file, closeFile, err := readImageUpload(w, r, string(kind))
	if err != nil {
		h.uploadError(w, r, err)
		return
	}
	defer closeFile()

	var team *models.Team
	if kind == models.TeamImageLogo {
		team, err = h.teamService.UploadLogo(r.Context(), userID, teamID, file)
	} else {
		team, err = h.teamService.UploadBanner(r.Context(), userID, teamID, file)
	}
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"team": team})
}

func (h *TeamHandler) DeleteLogo(w http.ResponseWriter, r *http.Request) {
	h.deleteImage(w, r, models.TeamImageLogo)
}

func (h *TeamHandler) DeleteBanner(w http.ResponseWriter, r *http.Request) {
	h.deleteImage(w, r, models.TeamImageBanner)
}

func (h *TeamHandler) deleteImage(w http.ResponseWriter, r *http.Request, kind models.TeamImage) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}
	teamID, ok := h.urlParam(w, r, "team")
	if !ok {
		return
	}

	var (
		team *models.Team
		err  error
	)
	if kind == models.TeamImageLogo {
		team, err = h.teamService.DeleteLogo(r.Context(), userID, teamID)
	} else {
		team, err = h.teamService.DeleteBanner(r.Context(), userID, teamID)
	}
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"team": team})
}

func (h *TeamHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}
	teamID, ok := h.urlParam(w, r, "team")
	if !ok {
		return
	}

	var req addMemberRequest
	if err := readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	member, err := h.teamService.AddMember(r.Context(), userID, teamID, services.AddMemberInput{
		UserID: req.UserID,
		Role:   req.Role,
	})
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusCreated, jsonResponse{"member": member})
}

func (h *TeamHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}
	teamID, ok := h.urlParam(w, r, "team")
	if !ok {
		return
	}
	memberID, ok := h.urlParam(w, r, "memberID")
	if !ok {
		return
	}

	var req updateMemberRequest
	if err := readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	member, err := h.teamService.UpdateMember(r.Context(), userID, teamID, memberID, req.Role)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"member": member})
}

func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}
	teamID, ok := h.urlParam(w, r, "team")
	if !ok {
		return
	}
	memberID, ok := h.urlParam(w, r, "memberID")
	if !ok {
		return
	}

	if err := h.teamService.RemoveMember(r.Context(), userID, teamID, memberID); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TeamHandler) LeaveTeam(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}
	teamID, ok := h.urlParam(w, r, "team")
	if !ok {
		return
	}

	if err := h.teamService.LeaveTeam(r.Context(), userID, teamID); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *TeamHandler) TransferOwnership(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}
	teamID, ok := h.urlParam(w, r, "team")
	if !ok {
		return
	}

	var req transferOwnershipRequest
	if err := readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	team, err := h.teamService.TransferOwnership(r.Context(), userID, teamID, req.UserID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"team": team})
}

func (h *TeamHandler) ListMyTeams(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	teams, err := h.teamService.ListUserTeams(r.Context(), userID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"teams": teams})
}
