// Package api exposes HTTP handlers for the health analysis service.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/healthanalysis/internal/auth"
	"example.com/healthanalysis/internal/domain"
	"example.com/healthanalysis/internal/logger"
)

const (
	basePath        = "/health-analysis"
	maxBodyBytes    = 1 << 20
	dateOnlyLayout  = "2006-01-02"
	feedbackSuffix  = "/feedback"
	completeSuffix  = "/complete"
	recommendations = basePath + "/recommendations"
	schedule        = basePath + "/schedule"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	log     *logger.Logger
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{service: service, log: log}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(basePath+"/conditions", h.conditions)
	mux.HandleFunc(basePath+"/profile", h.profile)
	mux.HandleFunc(recommendations, h.recommendations)
	mux.HandleFunc(recommendations+"/", h.recommendationFeedback)
	mux.HandleFunc(schedule, h.schedules)
	mux.HandleFunc(schedule+"/", h.scheduleCompletion)
	mux.HandleFunc(basePath+"/analytics", h.analytics)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) conditions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	if _, ok := authorize(w, r, false); !ok {
		return
	}

	conditions, err := h.service.ListConditions(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	items := make([]ConditionView, 0, len(conditions))
	for _, c := range conditions {
		items = append(items, toConditionView(c))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getProfile(w, r)
	case http.MethodPost:
		h.upsertProfile(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, false)
	if !ok {
		return
	}
	profile, err := h.service.GetProfile(r.Context(), claims.Owner())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileView(*profile))
}

func (h *Handler) upsertProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, true)
	if !ok {
		return
	}
	var req ProfileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	update, err := req.toDomain()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	profile, err := h.service.UpsertProfile(r.Context(), claims.Owner(), update)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProfileView(profile))
}

func (h *Handler) recommendations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.generate(w, r)
	case http.MethodGet:
		h.listRecommendations(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) generate(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, true)
	if !ok {
		return
	}
	var req GenerateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	prefs, err := req.UserPreferences.toDomain()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	details, err := h.service.Generate(r.Context(), claims.Owner(), req.ConditionIDs, prefs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if len(details) == 0 {
		writeError(w, http.StatusNotFound, "not_found", "no suitable exercises found for the specified conditions")
		return
	}
	writeJSON(w, http.StatusOK, toRecommendationViews(details))
}

func (h *Handler) listRecommendations(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, false)
	if !ok {
		return
	}
	var status *domain.RecommendationStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := domain.ParseRecommendationStatus(raw)
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		status = &parsed
	}

	details, err := h.service.ListRecommendations(r.Context(), claims.Owner(), status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecommendationViews(details))
}

func (h *Handler) recommendationFeedback(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r.URL.Path, recommendations+"/", feedbackSuffix)
	if !ok {
		return
	}
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := authorize(w, r, true)
	if !ok {
		return
	}
	var req FeedbackRequest
	if !decodeBody(w, r, &req) {
		return
	}
	input, err := req.toDomain()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	rec, err := h.service.UpdateFeedback(r.Context(), claims.Owner(), id, input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FeedbackResponse{
		ID:                 rec.ID,
		Status:             string(rec.Status),
		UserRating:         rec.UserRating,
		UserFeedback:       rec.UserFeedback,
		DifficultyFeedback: string(rec.DifficultyFeedback),
		UpdatedAt:          rec.UpdatedAt,
	})
}

func (h *Handler) schedules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createSchedule(w, r)
	case http.MethodGet:
		h.listSchedules(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) createSchedule(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, true)
	if !ok {
		return
	}
	var req ScheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	input, err := req.toDomain()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	created, err := h.service.Schedule(r.Context(), claims.Owner(), input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toScheduleView(created))
}

func (h *Handler) listSchedules(w http.ResponseWriter, r *http.Request) {
	claims, ok := authorize(w, r, false)
	if !ok {
		return
	}
	query := r.URL.Query()
	from, err := parseDateParam(query.Get("start_date"), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid start_date")
		return
	}
	to, err := parseDateParam(query.Get("end_date"), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid end_date")
		return
	}

	items, err := h.service.ListSchedules(r.Context(), claims.Owner(), from, to)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	views := make([]ScheduleView, 0, len(items))
	for _, s := range items {
		views = append(views, toScheduleView(s))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) scheduleCompletion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r.URL.Path, schedule+"/", completeSuffix)
	if !ok {
		return
	}
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := authorize(w, r, true)
	if !ok {
		return
	}
	var req CompletionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	input, err := req.toDomain()
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	completion, err := h.service.Complete(r.Context(), claims.Owner(), id, input)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CompletionResponse{
		Schedule: toScheduleView(completion.Schedule),
		Progress: toProgressView(completion.Recommendation),
	})
}

func (h *Handler) analytics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}
	claims, ok := authorize(w, r, false)
	if !ok {
		return
	}
	result, err := h.service.Analytics(r.Context(), claims.Owner())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if result.RecentSessions == nil {
		result.RecentSessions = []domain.SessionSummary{}
	}
	if result.UpcomingSessions == nil {
		result.UpcomingSessions = []domain.SessionSummary{}
	}
	writeJSON(w, http.StatusOK, result)
}

func authorize(w http.ResponseWriter, r *http.Request, write bool) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if write && !claims.CanWrite() {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+auth.ScopeHealthWrite+" required")
		return nil, false
	}
	if !write && !claims.CanRead() {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+auth.ScopeHealthRead+" required")
		return nil, false
	}
	return claims, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return false
	}
	return true
}

// pathID extracts the numeric id between prefix and suffix, writing 404 for any other shape.
func pathID(w http.ResponseWriter, path, prefix, suffix string) (int64, bool) {
	rest := strings.TrimPrefix(path, prefix)
	raw, found := strings.CutSuffix(rest, suffix)
	if !found || raw == "" || strings.Contains(raw, "/") {
		writeError(w, http.StatusNotFound, "not_found", "route not found")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid id")
		return 0, false
	}
	return id, true
}

// parseDateParam accepts RFC3339 or a bare date. A bare end date covers the whole day.
func parseDateParam(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(dateOnlyLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", raw, err)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, domain.ErrConditionNotFound),
		errors.Is(err, domain.ErrRecommendationNotFound),
		errors.Is(err, domain.ErrScheduleNotFound),
		errors.Is(err, domain.ErrProfileNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrAlreadyCompleted),
		errors.Is(err, domain.ErrActiveRecommendationExists):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "server_error", "internal server error")
	}
}

func toRecommendationViews(details []domain.RecommendationDetail) []RecommendationView {
	items := make([]RecommendationView, 0, len(details))
	for _, d := range details {
		items = append(items, toRecommendationView(d))
	}
	return items
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, map[string]string{
		"type":   code,
		"detail": detail,
	})
}
