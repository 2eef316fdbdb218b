package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/guildstats/activity-service/internal/domain"
)

func (h *Handler) users(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createUser(w, r)
	case http.MethodGet:
		h.listUsers(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) userByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/users/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing user id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getUser(w, r, id)
	case http.MethodPatch:
		h.updateUser(w, r, id)
	case http.MethodDelete:
		h.deleteUser(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

// createUserRequest is the payload for POST /v1/users.
type createUserRequest struct {
	DiscordID string   `json:"discordId" validate:"required"`
	Username  string   `json:"username" validate:"required"`
	Aliases   []string `json:"aliases" validate:"omitempty,dive,min=1"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	user, err := h.service.CreateUser(r.Context(), req.DiscordID, req.Username, req.Aliases)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserView(*user))
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request, id string) {
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(*user))
}

// updateUserRequest is the payload for PATCH /v1/users/{id}.
type updateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,min=1"`
	Alias    *string `json:"alias" validate:"omitempty,min=1"`
}

func (r updateUserRequest) empty() bool {
	return r.Username == nil && r.Alias == nil
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request, id string) {
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}
	if req.empty() {
		writeError(w, http.StatusBadRequest, "validation_failed", "at least one field is required")
		return
	}

	user, err := h.service.UpdateUser(r.Context(), id, domain.UserPatch{
		Username: req.Username,
		AddAlias: req.Alias,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserView(*user))
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, err := h.service.QueryUsers(r.Context(), domain.UserFilter{DiscordIDs: query["discordIds"]}, pageOptions(query))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageView(page, toUserView))
}

// userView exposes full details about a user.
type userView struct {
	ID        string    `json:"id"`
	DiscordID string    `json:"discordId"`
	Username  string    `json:"username"`
	Aliases   []string  `json:"aliases"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toUserView(user domain.User) userView {
	aliases := user.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	return userView{
		ID:        user.ID,
		DiscordID: user.DiscordID,
		Username:  user.Username,
		Aliases:   aliases,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
