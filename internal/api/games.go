package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/guildstats/activity-service/internal/domain"
)

func (h *Handler) games(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createGame(w, r)
	case http.MethodGet:
		h.listGames(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) gameByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/games/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing game id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getGame(w, r, id)
	case http.MethodPatch:
		h.updateGame(w, r, id)
	case http.MethodDelete:
		h.deleteGame(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

// createGameRequest is the payload for POST /v1/games.
type createGameRequest struct {
	DiscordID string `json:"discordId" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Icon      string `json:"icon"`
}

func (h *Handler) createGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	game, err := h.service.CreateGame(r.Context(), req.DiscordID, req.Name, req.Icon)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGameView(*game))
}

func (h *Handler) getGame(w http.ResponseWriter, r *http.Request, id string) {
	game, err := h.service.GetGame(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGameView(*game))
}

// updateGameRequest is the payload for PATCH /v1/games/{id}. An alias is
// appended to the alias list, not substituted.
type updateGameRequest struct {
	DiscordID *string `json:"discordId" validate:"omitempty,min=1"`
	Icon      *string `json:"icon"`
	Alias     *string `json:"alias" validate:"omitempty,min=1"`
}

func (r updateGameRequest) empty() bool {
	return r.DiscordID == nil && r.Icon == nil && r.Alias == nil
}

func (h *Handler) updateGame(w http.ResponseWriter, r *http.Request, id string) {
	var req updateGameRequest
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

	game, err := h.service.UpdateGame(r.Context(), id, domain.GamePatch{
		DiscordID: req.DiscordID,
		Icon:      req.Icon,
		AddAlias:  req.Alias,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGameView(*game))
}

func (h *Handler) deleteGame(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.DeleteGame(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listGames(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, err := h.service.QueryGames(r.Context(), domain.GameFilter{DiscordIDs: query["discordIds"]}, pageOptions(query))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageView(page, toGameView))
}

// gameView exposes full details about a game.
type gameView struct {
	ID        string    `json:"id"`
	DiscordID string    `json:"discordId,omitempty"`
	Icon      string    `json:"icon,omitempty"`
	Aliases   []string  `json:"aliases"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toGameView(game domain.Game) gameView {
	aliases := game.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	return gameView{
		ID:        game.ID,
		DiscordID: game.DiscordID,
		Icon:      game.Icon,
		Aliases:   aliases,
		CreatedAt: game.CreatedAt,
		UpdatedAt: game.UpdatedAt,
	}
}
