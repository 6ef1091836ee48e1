// Package api exposes HTTP handlers for the journal service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"example.com/futureself/internal/auth"
	"example.com/futureself/internal/domain"
)

// Coach produces generated guidance from recent journal activity.
type Coach interface {
	WeeklySummary(ctx context.Context) (string, error)
	Coaching(ctx context.Context) (string, error)
	Playbook(ctx context.Context) (string, error)
	ContentIdeas(ctx context.Context, platform string) (string, error)
}

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service     *domain.Service
	coach       Coach
	storeDriver string
	logger      *zap.Logger
}

// HandlerOption configures optional collaborators of the Handler.
type HandlerOption func(*Handler)

// WithCoach enables the /api/ai endpoints.
func WithCoach(coach Coach) HandlerOption {
	return func(h *Handler) {
		h.coach = coach
	}
}

// WithStoreDriver labels the health payload with the active store.
func WithStoreDriver(driver string) HandlerOption {
	return func(h *Handler) {
		h.storeDriver = driver
	}
}

// WithLogger sets the logger used for server-side failures.
func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, opts ...HandlerOption) *Handler {
	h := &Handler{service: service, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", h.health)
	mux.HandleFunc("GET /healthz", healthz)

	mux.HandleFunc("GET /api/logs", h.listLogs)
	mux.HandleFunc("POST /api/logs", h.createLog)

	mux.HandleFunc("GET /api/goals", h.listGoals)
	mux.HandleFunc("POST /api/goals", h.createGoal)
	mux.HandleFunc("PATCH /api/goals/{id}", h.updateGoal)

	mux.HandleFunc("GET /api/non-negotiables", h.listNonNegotiables)
	mux.HandleFunc("POST /api/non-negotiables/toggle", h.toggleNonNegotiable)

	mux.HandleFunc("GET /api/identity-score", h.getIdentityScore)
	mux.HandleFunc("POST /api/identity-score", h.recordIdentityScore)

	mux.HandleFunc("GET /api/ideas", h.listIdeas)
	mux.HandleFunc("POST /api/ideas", h.createIdea)

	mux.HandleFunc("GET /api/diary", h.listDiary)
	mux.HandleFunc("POST /api/diary", h.createDiary)

	mux.HandleFunc("GET /api/stop-doing", h.listStopDoing)
	mux.HandleFunc("POST /api/stop-doing", h.createStopDoing)

	mux.HandleFunc("GET /api/reviews", h.listReviews)
	mux.HandleFunc("POST /api/reviews", h.createReview)

	mux.HandleFunc("GET /api/stats", h.stats)

	mux.HandleFunc("POST /api/ai/summary", h.aiSummary)
	mux.HandleFunc("POST /api/ai/coaching", h.aiCoaching)
	mux.HandleFunc("POST /api/ai/playbook", h.aiPlaybook)
	mux.HandleFunc("POST /api/ai/content-ideas", h.aiContentIdeas)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:       "ok",
		Store:        h.storeDriver,
		AIConfigured: h.coach != nil,
	})
}

func (h *Handler) listLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.service.ListLogs(r.Context())
	if err != nil {
		h.fail(w, r, "list logs", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(logs, toLogView))
}

func (h *Handler) createLog(w http.ResponseWriter, r *http.Request) {
	var req CreateLogRequest
	if !decode(w, r, &req) {
		return
	}
	entry, err := h.service.CreateLog(r.Context(), domain.CreateLogInput{
		Date:       req.Date,
		Title:      req.Title,
		Category:   req.Category,
		TimeSpent:  req.TimeSpent,
		Impact:     req.ImpactLevel,
		Notes:      req.Notes,
		NextAction: req.NextAction,
	})
	if err != nil {
		h.fail(w, r, "create log", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLogView(*entry))
}

func (h *Handler) listGoals(w http.ResponseWriter, r *http.Request) {
	goals, err := h.service.ListGoals(r.Context())
	if err != nil {
		h.fail(w, r, "list goals", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(goals, toGoalView))
}

func (h *Handler) createGoal(w http.ResponseWriter, r *http.Request) {
	var req CreateGoalRequest
	if !decode(w, r, &req) {
		return
	}
	goal, err := h.service.CreateGoal(r.Context(), domain.CreateGoalInput{
		Type:        req.Type,
		Title:       req.Title,
		TargetValue: req.TargetValue,
	})
	if err != nil {
		h.fail(w, r, "create goal", err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalView(*goal))
}

func (h *Handler) updateGoal(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing goal id")
		return
	}
	var req UpdateGoalRequest
	if !decode(w, r, &req) {
		return
	}
	goal, err := h.service.UpdateGoal(r.Context(), id, domain.UpdateGoalInput{
		CurrentValue: req.CurrentValue,
		Status:       req.Status,
	})
	if err != nil {
		h.fail(w, r, "update goal", err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalView(*goal))
}

func (h *Handler) listNonNegotiables(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.NonNegotiables(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		h.fail(w, r, "list non-negotiables", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(items, toNonNegotiableView))
}

func (h *Handler) toggleNonNegotiable(w http.ResponseWriter, r *http.Request) {
	var req NonNegotiableView
	if !decode(w, r, &req) {
		return
	}
	err := h.service.ToggleNonNegotiable(r.Context(), domain.NonNegotiable{
		Date:      req.Date,
		Task:      req.Task,
		Completed: req.Completed,
	})
	if err != nil {
		h.fail(w, r, "toggle non-negotiable", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *Handler) getIdentityScore(w http.ResponseWriter, r *http.Request) {
	score, err := h.service.IdentityScore(r.Context(), r.URL.Query().Get("date"))
	if err != nil {
		h.fail(w, r, "get identity score", err)
		return
	}
	if score == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, toIdentityScoreView(*score))
}

func (h *Handler) recordIdentityScore(w http.ResponseWriter, r *http.Request) {
	var req IdentityScoreRequest
	if !decode(w, r, &req) {
		return
	}
	_, err := h.service.RecordIdentityScore(r.Context(), domain.IdentityScore{
		Date:   req.Date,
		Score:  req.Score,
		Energy: req.Energy,
		Stress: req.Stress,
	})
	if err != nil {
		h.fail(w, r, "record identity score", err)
		return
	}
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

func (h *Handler) listIdeas(w http.ResponseWriter, r *http.Request) {
	ideas, err := h.service.ListIdeas(r.Context())
	if err != nil {
		h.fail(w, r, "list ideas", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(ideas, toIdeaView))
}

func (h *Handler) createIdea(w http.ResponseWriter, r *http.Request) {
	var req IdeaView
	if !decode(w, r, &req) {
		return
	}
	idea, err := h.service.CreateIdea(r.Context(), domain.Idea{
		Title:   req.Title,
		Content: req.Content,
		Tags:    req.Tags,
	})
	if err != nil {
		h.fail(w, r, "create idea", err)
		return
	}
	writeJSON(w, http.StatusCreated, toIdeaView(*idea))
}

func (h *Handler) listDiary(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	month, ok := optionalInt(w, query.Get("month"), "month")
	if !ok {
		return
	}
	year, ok := optionalInt(w, query.Get("year"), "year")
	if !ok {
		return
	}

	entries, err := h.service.ListDiary(r.Context(), domain.DiaryFilter{
		Search: query.Get("search"),
		Month:  month,
		Year:   year,
	})
	if err != nil {
		h.fail(w, r, "list diary", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(entries, toDiaryView))
}

func (h *Handler) createDiary(w http.ResponseWriter, r *http.Request) {
	var req DiaryView
	if !decode(w, r, &req) {
		return
	}
	entry, err := h.service.CreateDiary(r.Context(), domain.DiaryEntry{
		Title:   req.Title,
		Content: req.Content,
		Mood:    req.Mood,
		Date:    req.Date,
	})
	if err != nil {
		h.fail(w, r, "create diary entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDiaryView(*entry))
}

func (h *Handler) listStopDoing(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListStopDoing(r.Context())
	if err != nil {
		h.fail(w, r, "list stop-doing", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(items, toStopDoingView))
}

func (h *Handler) createStopDoing(w http.ResponseWriter, r *http.Request) {
	var req StopDoingView
	if !decode(w, r, &req) {
		return
	}
	item, err := h.service.CreateStopDoing(r.Context(), req.Item)
	if err != nil {
		h.fail(w, r, "create stop-doing", err)
		return
	}
	writeJSON(w, http.StatusCreated, toStopDoingView(*item))
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.service.ListReviews(r.Context())
	if err != nil {
		h.fail(w, r, "list reviews", err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(reviews, toReviewView))
}

func (h *Handler) createReview(w http.ResponseWriter, r *http.Request) {
	var req ReviewView
	if !decode(w, r, &req) {
		return
	}
	review, err := h.service.CreateReview(r.Context(), domain.Review{
		Type:         domain.ReviewType(req.Type),
		Date:         req.Date,
		Win:          req.Win,
		Mistake:      req.Mistake,
		Priority:     req.Priority,
		Summary:      req.Summary,
		Losses:       req.Losses,
		GoalMovement: req.GoalMovement,
		TimeWaste:    req.TimeWaste,
		NextTheme:    req.NextTheme,
	})
	if err != nil {
		h.fail(w, r, "create review", err)
		return
	}
	writeJSON(w, http.StatusCreated, toReviewView(*review))
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.fail(w, r, "compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, NewStatsView(stats))
}

// fail maps domain errors to HTTP statuses. Unexpected errors are logged
// and reported as 500 with their message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		h.logger.Error(op+" failed", zap.Error(err), zap.String("subject", auth.Subject(r.Context())))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "unable to parse body")
		return false
	}
	return true
}

func optionalInt(w http.ResponseWriter, raw, name string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be a number")
		return 0, false
	}
	return value, true
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func mapSlice[T, V any](items []T, fn func(T) V) []V {
	out := make([]V, 0, len(items))
	for _, item := range items {
		out = append(out, fn(item))
	}
	return out
}
