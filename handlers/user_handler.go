package handlers

import (
	"log/slog"
	"net/http"

	"github.com/orbisplace/orbis-api/services"
)

type UserHandler struct {
	responder
	userService services.UserService
}

func NewUserHandler(userService services.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		responder:   newResponder(logger),
		userService: userService,
	}
}

type updateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	Location    *string `json:"location"`
	Website     *string `json:"website"`
}

func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	user, err := h.userService.GetMe(r.Context(), userID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"user": user})
}

func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := readJSON(w, r, &req); err != nil {
		h.badRequestResponse(w, r, err)
		return
	}

	user, err := h.userService.UpdateProfile(r.Context(), userID, services.UpdateProfileInput{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		Location:    req.Location,
		Website:     req.Website,
	})
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"user": user})
}

func (h *UserHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	file, closeFile, err := readImageUpload(w, r, "image")
	if err != nil {
		h.uploadError(w, r, err)
		return
	}
	defer closeFile()

	user, err := h.userService.UploadProfileImage(r.Context(), userID, file)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"user": user})
}

func (h *UserHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}

	user, err := h.userService.DeleteProfileImage(r.Context(), userID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"user": user})
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	targetID, ok := h.urlParam(w, r, "userID")
	if !ok {
		return
	}

	profile, err := h.userService.GetProfile(r.Context(), targetID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"user": profile})
}

func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}
	targetID, ok := h.urlParam(w, r, "userID")
	if !ok {
		return
	}

	if err := h.userService.Follow(r.Context(), userID, targetID); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.currentUserID(w, r)
	if !ok {
		return
	}
	targetID, ok := h.urlParam(w, r, "userID")
	if !ok {
		return
	}

	if err := h.userService.Unfollow(r.Context(), userID, targetID); err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) Followers(w http.ResponseWriter, r *http.Request) {
	targetID, ok := h.urlParam(w, r, "userID")
	if !ok {
		return
	}

	users, err := h.userService.Followers(r.Context(), targetID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"users": users})
}

func (h *UserHandler) Following(w http.ResponseWriter, r *http.Request) {
	targetID, ok := h.urlParam(w, r, "userID")
	if !ok {
		return
	}

	users, err := h.userService.Following(r.Context(), targetID)
	if err != nil {
		h.mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.writeOK(w, r, http.StatusOK, jsonResponse{"users": users})
}
