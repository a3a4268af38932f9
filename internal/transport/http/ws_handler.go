package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// leaderboardTick matches the timer cadence the web client renders at.
const leaderboardTick = 2 * time.Second

// WSHandler streams leaderboard snapshots over a websocket so the web client
// can skip polling between questions. Push happens only when the snapshot
// actually changed.
type WSHandler struct {
	leaderboards LeaderboardProvider
	log          *logrus.Logger
	upgrader     websocket.Upgrader
}

func NewWSHandler(leaderboards LeaderboardProvider, log *logrus.Logger) *WSHandler {
	if log == nil {
		log = logrus.New()
	}
	return &WSHandler{
		leaderboards: leaderboards,
		log:          log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	gameID, err := strconv.ParseInt(r.URL.Query().Get("gameId"), 10, 64)
	if err != nil {
		http.Error(w, "gameId query parameter required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Drain client frames so pings and close messages are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(leaderboardTick)
	defer ticker.Stop()

	var last []byte
	for {
		lb, err := h.leaderboards.GetLeaderboard(r.Context(), gameID)
		if err != nil {
			h.log.WithError(err).WithField("game_id", gameID).Warn("leaderboard stream stopped")
			return
		}
		// Compare entries only: UpdatedAt changes on every recomputation.
		entries, err := json.Marshal(lb.Entries)
		if err != nil {
			return
		}
		if string(entries) != string(last) {
			payload, err := json.Marshal(map[string]interface{}{"type": "leaderboard", "payload": lb})
			if err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
			last = entries
		}

		select {
		case <-ticker.C:
		case <-r.Context().Done():
			return
		}
	}
}
