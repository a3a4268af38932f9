package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"trivia-game-service/internal/domain"
	"trivia-game-service/internal/game"
)

// LeaderboardProvider is satisfied by both the game service and the redis
// read-through cache; the CLI wires whichever is configured.
type LeaderboardProvider interface {
	GetLeaderboard(ctx context.Context, gameID int64) (*domain.Leaderboard, error)
}

// Handler exposes the polling JSON surface. It is deliberately thin: every
// decision lives in the game service.
type Handler struct {
	service      *game.Service
	leaderboards LeaderboardProvider
	log          *logrus.Logger
}

func NewHandler(service *game.Service, leaderboards LeaderboardProvider, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{service: service, leaderboards: leaderboards, log: log}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/games", h.createGame)
	mux.HandleFunc("GET /api/games/{gameID}/question", h.currentQuestion)
	mux.HandleFunc("POST /api/games/{gameID}/answers", h.submitAnswer)
	mux.HandleFunc("POST /api/games/{gameID}/rounds", h.createRound)
	mux.HandleFunc("POST /api/games/{gameID}/rounds/{roundID}/start", h.startRound)
	mux.HandleFunc("POST /api/games/{gameID}/rounds/{roundID}/finish", h.finishRound)
	mux.HandleFunc("POST /api/games/{gameID}/leave", h.leaveGame)
	mux.HandleFunc("POST /api/round-questions/{id}/displayed", h.markDisplayed)
	mux.HandleFunc("GET /api/games/{gameID}/leaderboard", h.leaderboard)
}

func (h *Handler) createGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type          domain.GameType       `json:"type"`
		ThemeID       *int64                `json:"themeId"`
		TotalRounds   int                   `json:"totalRounds"`
		BotDifficulty *domain.BotDifficulty `json:"botDifficulty"`
		Players       []struct {
			UserID        int64                 `json:"userId"`
			IsBot         bool                  `json:"isBot"`
			BotDifficulty *domain.BotDifficulty `json:"botDifficulty"`
		} `json:"players"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	params := game.CreateGameParams{
		Type:          req.Type,
		ThemeID:       req.ThemeID,
		TotalRounds:   req.TotalRounds,
		BotDifficulty: req.BotDifficulty,
	}
	for _, p := range req.Players {
		params.Players = append(params.Players, game.PlayerSeed{
			UserID:        p.UserID,
			IsBot:         p.IsBot,
			BotDifficulty: p.BotDifficulty,
		})
	}
	created, err := h.service.CreateGame(r.Context(), params)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) currentQuestion(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathID(w, r, "gameID")
	if !ok {
		return
	}
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "userId query parameter required")
		return
	}
	current, err := h.service.GetCurrentQuestion(r.Context(), gameID, userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathID(w, r, "gameID")
	if !ok {
		return
	}
	var req struct {
		UserID          int64   `json:"userId"`
		RoundQuestionID int64   `json:"roundQuestionId"`
		SelectedOption  *string `json:"selectedOption"`
		AnswerTime      float64 `json:"answerTime"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	var selected *domain.Option
	if req.SelectedOption != nil {
		opt, err := domain.ParseOption(*req.SelectedOption)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_option", err.Error())
			return
		}
		selected = &opt
	}
	result, err := h.service.SubmitAnswer(r.Context(), gameID, req.UserID, req.RoundQuestionID, selected, req.AnswerTime)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) createRound(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathID(w, r, "gameID")
	if !ok {
		return
	}
	var req struct {
		RoundNumber    int    `json:"roundNumber"`
		ThemeID        *int64 `json:"themeId"`
		QuestionsCount int    `json:"questionsCount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	round, err := h.service.CreateRound(r.Context(), gameID, req.RoundNumber, req.ThemeID, req.QuestionsCount)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, round)
}

func (h *Handler) startRound(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathID(w, r, "gameID")
	if !ok {
		return
	}
	roundID, ok := pathID(w, r, "roundID")
	if !ok {
		return
	}
	if err := h.service.StartRound(r.Context(), gameID, roundID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) finishRound(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathID(w, r, "gameID")
	if !ok {
		return
	}
	roundID, ok := pathID(w, r, "roundID")
	if !ok {
		return
	}
	result, err := h.service.FinishRound(r.Context(), gameID, roundID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) leaveGame(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathID(w, r, "gameID")
	if !ok {
		return
	}
	var req struct {
		UserID int64 `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if err := h.service.LeaveGame(r.Context(), gameID, req.UserID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) markDisplayed(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.MarkQuestionDisplayed(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	gameID, ok := pathID(w, r, "gameID")
	if !ok {
		return
	}
	lb, err := h.leaderboards.GetLeaderboard(r.Context(), gameID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid "+name)
		return 0, false
	}
	return id, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrGameNotFound),
		errors.Is(err, domain.ErrRoundNotFound),
		errors.Is(err, domain.ErrRoundQuestionNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrPlayerNotFound),
		errors.Is(err, domain.ErrThemeNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrRoundCompleted):
		writeError(w, http.StatusBadRequest, "round_completed", err.Error())
	case errors.Is(err, domain.ErrGameNotActive),
		errors.Is(err, domain.ErrGameFinished),
		errors.Is(err, domain.ErrRoundNotActive),
		errors.Is(err, domain.ErrRoundMismatch),
		errors.Is(err, domain.ErrPlayerInactive):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, domain.ErrDuplicateRound),
		errors.Is(err, domain.ErrDuplicatePlayer):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, domain.ErrInsufficientQuestions):
		writeError(w, http.StatusUnprocessableEntity, "insufficient_questions", err.Error())
	case errors.Is(err, domain.ErrInvalidOption):
		writeError(w, http.StatusBadRequest, "invalid_option", err.Error())
	default:
		h.log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

// CORS wraps the mux with the permissive policy the web client expects;
// origins come from config, "*" by default.
func CORS(origins []string, next http.Handler) http.Handler {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowAll {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
