package http

import (
	"fmt"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketLeaderboardStream(t *testing.T) {
	server, _, users := newTestServer(t)

	var created struct {
		ID int64 `json:"id"`
	}
	postJSON(t, server.URL+"/api/games", map[string]any{
		"type": "private",
		"players": []map[string]any{
			{"userId": users[0]},
			{"userId": users[1]},
		},
	}, &created)

	u := "ws" + server.URL[len("http"):] + fmt.Sprintf("/ws/leaderboard?gameId=%d", created.ID)
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The first snapshot arrives immediately, before any tick.
	var msg struct {
		Type    string `json:"type"`
		Payload struct {
			GameID  int64 `json:"gameId"`
			Entries []struct {
				UserID int64 `json:"userId"`
			} `json:"entries"`
		} `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if msg.Type != "leaderboard" {
		t.Fatalf("expected leaderboard message, got %s", msg.Type)
	}
	if msg.Payload.GameID != created.ID {
		t.Fatalf("payload for game %d, want %d", msg.Payload.GameID, created.ID)
	}
	if len(msg.Payload.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(msg.Payload.Entries))
	}
}

func TestWebSocketRequiresGameID(t *testing.T) {
	server, _, _ := newTestServer(t)

	u := "ws" + server.URL[len("http"):] + "/ws/leaderboard"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected handshake failure without gameId")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Fatalf("expected 400 response, got %+v", resp)
	}
}
