package game_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trivia-game-service/internal/domain"
	"trivia-game-service/internal/game"
)

func TestCurrentQuestionStableBeforeDisplay(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, 1, 0, 5, game.DefaultRules())
	fx.startRound(t, 1, 3)

	first, err := fx.svc.GetCurrentQuestion(ctx, fx.gameID, fx.humans[0])
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if first.QuestionNumber != 1 {
		t.Fatalf("expected question 1, got %d", first.QuestionNumber)
	}
	if first.DisplayedAt != nil {
		t.Fatalf("polling must not stamp displayed_at")
	}

	// Without a display stamp every poll keeps resolving the same question.
	second, err := fx.svc.GetCurrentQuestion(ctx, fx.gameID, fx.humans[0])
	if err != nil {
		t.Fatalf("second poll: %v", err)
	}
	if second.RoundQuestionID != first.RoundQuestionID {
		t.Fatalf("polls diverged: %d vs %d", first.RoundQuestionID, second.RoundQuestionID)
	}
}

func TestCurrentQuestionAdvancesWhenWindowLapses(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, 1, 0, 5, game.DefaultRules())
	fx.startRound(t, 1, 3)

	first, err := fx.svc.GetCurrentQuestion(ctx, fx.gameID, fx.humans[0])
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if err := fx.svc.MarkQuestionDisplayed(ctx, first.RoundQuestionID); err != nil {
		t.Fatalf("mark displayed: %v", err)
	}

	// Inside the limit+pause window the displayed question stays current.
	fx.clock.Advance(14 * time.Second)
	cur, err := fx.svc.GetCurrentQuestion(ctx, fx.gameID, fx.humans[0])
	if err != nil {
		t.Fatalf("poll inside window: %v", err)
	}
	if cur.RoundQuestionID != first.RoundQuestionID {
		t.Fatalf("question advanced inside window")
	}
	if cur.DisplayedAt == nil {
		t.Fatalf("expected displayed_at on current question")
	}

	fx.clock.Advance(2 * time.Second)
	next, err := fx.svc.GetCurrentQuestion(ctx, fx.gameID, fx.humans[0])
	if err != nil {
		t.Fatalf("poll after window: %v", err)
	}
	if next.QuestionNumber != 2 {
		t.Fatalf("expected question 2 after window, got %d", next.QuestionNumber)
	}
}

func TestConcurrentPollersConverge(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, 3, 0, 5, game.DefaultRules())
	fx.startRound(t, 1, 3)

	seed, err := fx.svc.GetCurrentQuestion(ctx, fx.gameID, fx.humans[0])
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if err := fx.svc.MarkQuestionDisplayed(ctx, seed.RoundQuestionID); err != nil {
		t.Fatalf("mark displayed: %v", err)
	}

	var wg sync.WaitGroup
	ids := make([]int64, len(fx.humans))
	for i, userID := range fx.humans {
		wg.Add(1)
		go func(i int, userID int64) {
			defer wg.Done()
			cur, err := fx.svc.GetCurrentQuestion(ctx, fx.gameID, userID)
			if err != nil {
				t.Errorf("poll user %d: %v", userID, err)
				return
			}
			ids[i] = cur.RoundQuestionID
		}(i, userID)
	}
	wg.Wait()

	for i, id := range ids {
		if id != seed.RoundQuestionID {
			t.Fatalf("poller %d resolved %d, want %d", i, id, seed.RoundQuestionID)
		}
	}
}

func TestRoundCompletedAfterAllWindowsLapse(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, 1, 0, 5, game.DefaultRules())
	fx.startRound(t, 1, 2)

	for i := 0; i < 2; i++ {
		cur, err := fx.svc.GetCurrentQuestion(ctx, fx.gameID, fx.humans[0])
		if err != nil {
			t.Fatalf("poll question %d: %v", i+1, err)
		}
		if err := fx.svc.MarkQuestionDisplayed(ctx, cur.RoundQuestionID); err != nil {
			t.Fatalf("mark displayed: %v", err)
		}
		fx.clock.Advance(16 * time.Second)
	}

	if _, err := fx.svc.GetCurrentQuestion(ctx, fx.gameID, fx.humans[0]); !errors.Is(err, domain.ErrRoundCompleted) {
		t.Fatalf("expected ErrRoundCompleted, got %v", err)
	}
}

func TestMarkQuestionDisplayedFirstCallerWins(t *testing.T) {
	ctx := context.Background()
	fx := newFixture(t, 1, 0, 5, game.DefaultRules())
	fx.startRound(t, 1, 2)

	cur, err := fx.svc.GetCurrentQuestion(ctx, fx.gameID, fx.humans[0])
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if err := fx.svc.MarkQuestionDisplayed(ctx, cur.RoundQuestionID); err != nil {
		t.Fatalf("mark displayed: %v", err)
	}
	stamped, err := fx.store.GetRoundQuestion(ctx, cur.RoundQuestionID)
	if err != nil {
		t.Fatalf("get round question: %v", err)
	}
	firstStamp := *stamped.DisplayedAt

	fx.clock.Advance(3 * time.Second)
	if err := fx.svc.MarkQuestionDisplayed(ctx, cur.RoundQuestionID); err != nil {
		t.Fatalf("second mark: %v", err)
	}
	again, err := fx.store.GetRoundQuestion(ctx, cur.RoundQuestionID)
	if err != nil {
		t.Fatalf("get round question: %v", err)
	}
	if !again.DisplayedAt.Equal(firstStamp) {
		t.Fatalf("displayed_at overwritten: %v -> %v", firstStamp, again.DisplayedAt)
	}
}

func TestMarkQuestionDisplayedUnknownID(t *testing.T) {
	fx := newFixture(t, 1, 0, 5, game.DefaultRules())
	if err := fx.svc.MarkQuestionDisplayed(context.Background(), 424242); !errors.Is(err, domain.ErrRoundQuestionNotFound) {
		t.Fatalf("expected ErrRoundQuestionNotFound, got %v", err)
	}
}
