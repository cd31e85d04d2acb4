package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"quizmaster/internal/app"
	"quizmaster/internal/domain"
	"quizmaster/internal/i18n"
)

// UserKeyHeader carries the caller's identity; absent means guest.
const UserKeyHeader = "X-User-Key"

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	service *app.QuizService
	ws      *WSHandler
}

// New creates a new Handler.
func New(service *app.QuizService) *Handler {
	return &Handler{service: service, ws: NewWSHandler(service)}
}

// Router builds the chi router with logging, panic recovery and language
// negotiation.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(i18n.Middleware())

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/ws", h.ws.ServeWS)
	r.Route("/api", h.Routes)
	return r
}

// Routes registers all API routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/quizzes", h.handleGenerate)
	r.Get("/quizzes/{quizID}", h.handleGetQuiz)

	r.Post("/sessions", h.handleStartSession)
	r.Get("/sessions/{sessionID}", h.handleGetSession)
	r.Delete("/sessions/{sessionID}", h.handleAbandon)
	r.Put("/sessions/{sessionID}/answers/{index}", h.handleAnswer)
	r.Post("/sessions/{sessionID}/cursor/{index}", h.handleGoTo)
	r.Post("/sessions/{sessionID}/submit", h.handleSubmit)
	r.Post("/sessions/{sessionID}/hints/{index}", h.handleHint)

	r.Get("/profile", h.handleProfile)
	r.Get("/badges", h.handleBadges)
	r.Post("/identity/login", h.handleLogin)
}

func identityFrom(r *http.Request) domain.Identity {
	return domain.IdentityFrom(r.Header.Get(UserKeyHeader))
}

type generateRequest struct {
	Snippets     []string `json:"snippets"`
	NumQuestions int      `json:"numQuestions"`
	Types        []string `json:"types"`
	Lang         string   `json:"lang"`
	Difficulty   string   `json:"difficulty"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Lang == "" {
		req.Lang = i18n.Lang(r.Context())
	}
	types := make([]domain.QuestionType, 0, len(req.Types))
	for _, t := range req.Types {
		switch qt := domain.QuestionType(strings.ToLower(t)); qt {
		case domain.QuestionMC, domain.QuestionTF, domain.QuestionShort:
			types = append(types, qt)
		default:
			writeError(w, http.StatusBadRequest, "unsupported question type "+strconv.Quote(t))
			return
		}
	}

	set, err := h.service.Generate(r.Context(), identityFrom(r), domain.GenerationRequest{
		Snippets:     req.Snippets,
		NumQuestions: req.NumQuestions,
		Types:        types,
		Language:     req.Lang,
		Difficulty:   strings.ToLower(strings.TrimSpace(req.Difficulty)),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, set)
}

func (h *Handler) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	set, err := h.service.Quiz(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

type startSessionRequest struct {
	QuizID       string  `json:"quizId"`
	Mode         string  `json:"mode"`
	TimerMinutes float64 `json:"timerMinutes"`
	Difficulty   string  `json:"difficulty"`
	Lang         string  `json:"lang"`
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuizID == "" {
		writeError(w, http.StatusBadRequest, "quizId is required")
		return
	}
	session, err := h.service.StartSession(r.Context(), identityFrom(r), req.QuizID, app.SessionConfig{
		Mode:         domain.ParseMode(req.Mode),
		TimerMinutes: req.TimerMinutes,
		Difficulty:   strings.ToLower(strings.TrimSpace(req.Difficulty)),
		Language:     req.Lang,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session.View())
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Session(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session.View())
}

func (h *Handler) handleAbandon(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Abandon(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fb, err := h.service.SetAnswer(r.Context(), chi.URLParam(r, "sessionID"), index, req.Answer)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, fb)
}

func (h *Handler) handleGoTo(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	cursor, err := h.service.GoTo(r.Context(), chi.URLParam(r, "sessionID"), index)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"cursor": cursor})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Submit(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleHint(w http.ResponseWriter, r *http.Request) {
	index, ok := indexParam(w, r)
	if !ok {
		return
	}
	hint, err := h.service.Hint(r.Context(), chi.URLParam(r, "sessionID"), index)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"index": index, "hint": hint})
}

type profileResponse struct {
	domain.Profile
	Summary       string `json:"summary"`
	BadgesSummary string `json:"badgesSummary"`
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	profile := h.service.Progress().Profile(ctx, identityFrom(r))
	profile.Badges = i18n.LocalizeBadges(ctx, profile.Badges)
	badgesSummary := i18n.Td(ctx, "BadgesSummary", map[string]any{
		"Unlocked": profile.Stats.BadgesUnlocked,
		"Total":    profile.Stats.BadgesTotal,
	})
	writeJSON(w, http.StatusOK, profileResponse{
		Profile:       profile,
		Summary:       i18n.Tp(ctx, "AttemptsSummary", profile.Stats.Attempts),
		BadgesSummary: badgesSummary,
	})
}

func (h *Handler) handleBadges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	badges := h.service.Progress().Badges(ctx, identityFrom(r))
	writeJSON(w, http.StatusOK, i18n.LocalizeBadges(ctx, badges))
}

type loginRequest struct {
	UserKey string `json:"userKey"`
}

// handleLogin reports an identity change from the caller's current identity
// (the X-User-Key header, guest when absent) to the given user key.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	next := domain.IdentityFrom(req.UserKey)
	if next.IsGuest() {
		writeError(w, http.StatusBadRequest, "userKey is required")
		return
	}
	merged, err := h.service.Progress().MergeIdentity(r.Context(), identityFrom(r), next)
	if err != nil {
		slog.Error("identity merge failed", "identity", next, "error", err)
		writeError(w, http.StatusInternalServerError, "could not merge badges")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"identity": next, "merged": merged})
}

func indexParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid question index")
		return 0, false
	}
	return index, true
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNoSnippets):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoPlayableContent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAlreadySubmitted),
		errors.Is(err, domain.ErrSessionClosed):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeError(w, status, err.Error())
}
