// Package api exposes HTTP handlers for the activity service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/guildstats/activity-service/internal/domain"
	"github.com/guildstats/activity-service/internal/persistence"
)

// validate checks request payloads; field names in violation details follow
// the json tags.
var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/activities", h.activities)
	mux.HandleFunc("/v1/activities/", h.activityByID)
	mux.HandleFunc("/v1/games", h.games)
	mux.HandleFunc("/v1/games/", h.gameByID)
	mux.HandleFunc("/v1/users", h.users)
	mux.HandleFunc("/v1/users/", h.userByID)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createActivity(w, r)
	case http.MethodGet:
		h.listActivities(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) activityByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/activities/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing activity id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getActivity(w, r, id)
	case http.MethodPatch:
		h.updateActivity(w, r, id)
	case http.MethodDelete:
		h.deleteActivity(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

// createActivityRequest is the payload for POST /v1/activities. The start
// timestamp is a Unix epoch in milliseconds, as reported by Discord.
type createActivityRequest struct {
	DiscordUserID  string `json:"discordUserId" validate:"required"`
	DiscordGuildID string `json:"discordGuildId" validate:"required"`
	StartTimestamp int64  `json:"startTimestamp" validate:"required,gt=0"`
	DiscordGameID  string `json:"discordGameId"`
	GameName       string `json:"gameName"`
	GameIcon       string `json:"gameIcon"`
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	var req createActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeValidationError(w, err)
		return
	}

	activity, err := h.service.RecordActivityStart(r.Context(), domain.StartActivityInput{
		DiscordUserID:  req.DiscordUserID,
		DiscordGuildID: req.DiscordGuildID,
		Start:          time.UnixMilli(req.StartTimestamp).UTC(),
		DiscordGameID:  req.DiscordGameID,
		GameName:       req.GameName,
		GameIcon:       req.GameIcon,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toActivityView(*activity))
}

func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request, id string) {
	activity, err := h.service.GetActivity(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

// updateActivityRequest is the payload for PATCH /v1/activities/{id}.
// A discordGuildId merges into the guild set; it never replaces it.
type updateActivityRequest struct {
	DiscordUserID  *string `json:"discordUserId" validate:"omitempty,min=1"`
	DiscordGuildID *string `json:"discordGuildId" validate:"omitempty,min=1"`
	GameID         *string `json:"gameId" validate:"omitempty,uuid4"`
	Verified       *bool   `json:"verified"`
	StopTimestamp  *int64  `json:"stopTimestamp" validate:"omitempty,gt=0"`
}

func (r updateActivityRequest) empty() bool {
	return r.DiscordUserID == nil && r.DiscordGuildID == nil && r.GameID == nil && r.Verified == nil && r.StopTimestamp == nil
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request, id string) {
	var req updateActivityRequest
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

	patch := domain.ActivityPatch{
		DiscordUserID: req.DiscordUserID,
		AddGuild:      req.DiscordGuildID,
		GameID:        req.GameID,
		Verified:      req.Verified,
	}
	if req.StopTimestamp != nil {
		stop := time.UnixMilli(*req.StopTimestamp).UTC()
		patch.Stop = &stop
	}

	activity, err := h.service.UpdateActivity(r.Context(), id, patch)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*activity))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.service.DeleteActivity(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := domain.ActivityFilter{
		UserIDs: query["users"],
		GameIDs: query["games"],
		Guilds:  query["guilds"],
	}
	if ts, ok, err := parseMillis(query.Get("start")); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid start parameter")
		return
	} else if ok {
		filter.Start = &ts
	}
	if ts, ok, err := parseMillis(query.Get("stop")); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid stop parameter")
		return
	} else if ok {
		filter.Stop = &ts
	}

	page, err := h.service.QueryActivities(r.Context(), filter, pageOptions(query))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageView(page, toActivityView))
}

// pageOptions extracts sortBy/limit/page query parameters; the service
// normalizes out-of-range values.
func pageOptions(query map[string][]string) domain.PageOptions {
	get := func(key string) string {
		if values := query[key]; len(values) > 0 {
			return values[0]
		}
		return ""
	}

	opts := domain.PageOptions{SortBy: get("sortBy")}
	if raw := get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			opts.Limit = parsed
		}
	}
	if raw := get("page"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			opts.Page = parsed
		}
	}
	return opts
}

func parseMillis(raw string) (time.Time, bool, error) {
	if raw == "" {
		return time.Time{}, false, nil
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false, err
	}
	return time.UnixMilli(millis).UTC(), true, nil
}

// activityView exposes full details about an activity.
type activityView struct {
	ID            string     `json:"id"`
	DiscordUserID string     `json:"discordUserId"`
	Guilds        []string   `json:"guilds"`
	Start         time.Time  `json:"start"`
	Stop          *time.Time `json:"stop,omitempty"`
	GameID        string     `json:"gameId,omitempty"`
	Verified      bool       `json:"verified"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

func toActivityView(activity domain.Activity) activityView {
	guilds := activity.Guilds
	if guilds == nil {
		guilds = []string{}
	}
	return activityView{
		ID:            activity.ID,
		DiscordUserID: activity.DiscordUserID,
		Guilds:        guilds,
		Start:         activity.Start,
		Stop:          activity.Stop,
		GameID:        activity.GameID,
		Verified:      activity.Verified,
		CreatedAt:     activity.CreatedAt,
		UpdatedAt:     activity.UpdatedAt,
	}
}

// pageView is the JSON pagination envelope shared by all list endpoints.
type pageView[T any] struct {
	Results      []T `json:"results"`
	Page         int `json:"page"`
	Limit        int `json:"limit"`
	TotalPages   int `json:"totalPages"`
	TotalResults int `json:"totalResults"`
}

func toPageView[D, V any](page domain.Page[D], view func(D) V) pageView[V] {
	results := make([]V, 0, len(page.Results))
	for _, item := range page.Results {
		results = append(results, view(item))
	}
	return pageView[V]{
		Results:      results,
		Page:         page.Page,
		Limit:        page.Limit,
		TotalPages:   page.TotalPages,
		TotalResults: page.TotalResults,
	}
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "activity not found")
	case errors.Is(err, domain.ErrGameNotFound):
		writeError(w, http.StatusNotFound, "not_found", "game not found")
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "not_found", "user not found")
	case errors.Is(err, persistence.ErrInvalidSort):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

func writeValidationError(w http.ResponseWriter, err error) {
	var violations validator.ValidationErrors
	if !errors.As(err, &violations) {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	fields := make(map[string]string, len(violations))
	for _, violation := range violations {
		fields[violation.Field()] = "failed on " + violation.Tag()
	}
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"type":   "validation_failed",
		"detail": "request body failed validation",
		"fields": fields,
	})
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
