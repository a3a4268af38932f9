package memory

import (
	"context"
	"errors"
	"testing"

	"trivia-game-service/internal/domain"
	"trivia-game-service/internal/game"
)

func seedGameWithRound(t *testing.T, s *Store) (gameID, roundID, rqID int64) {
	t.Helper()
	ctx := context.Background()

	g := &domain.Game{GameType: domain.GameTypeQuick, Status: domain.GameInProgress, TotalRounds: 1}
	players := []*domain.GamePlayer{
		{UserID: 1, JoinOrder: 0},
		{UserID: 2, IsBot: true, JoinOrder: 1},
	}
	if err := s.CreateGame(ctx, g, players); err != nil {
		t.Fatalf("create game: %v", err)
	}
	round := &domain.Round{GameID: g.ID, RoundNumber: 1, Status: domain.RoundInProgress}
	questions := []*domain.RoundQuestion{
		{QuestionID: 101, QuestionNumber: 1, TimeLimitSec: 10},
	}
	used := []*domain.GameUsedQuestion{{GameID: g.ID, QuestionID: 101}}
	if err := s.CreateRound(ctx, round, questions, used); err != nil {
		t.Fatalf("create round: %v", err)
	}
	return g.ID, round.ID, questions[0].ID
}

// A failed transaction must unwind only its own writes. Answers committed
// directly on the store while the transaction is open, the way the bot
// responder records them, have to survive the rollback.
func TestRunInTxRollbackKeepsConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	gameID, roundID, rqID := seedGameWithRound(t, s)

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx game.Store) error {
		g, err := tx.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		g.Status = domain.GameFinished
		if err := tx.UpdateGame(ctx, g); err != nil {
			return err
		}
		if err := tx.UpsertAnswer(ctx, &domain.Answer{
			GameID: gameID, RoundID: roundID, RoundQuestionID: rqID, UserID: 1, IsCorrect: true,
		}); err != nil {
			return err
		}
		// Direct store write while the transaction is still open.
		if err := s.UpsertAnswer(ctx, &domain.Answer{
			GameID: gameID, RoundID: roundID, RoundQuestionID: rqID, UserID: 2, IsCorrect: false,
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	g, err := s.GetGame(ctx, gameID)
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if g.Status != domain.GameInProgress {
		t.Fatalf("game status = %s, want rollback to in_progress", g.Status)
	}
	answers, err := s.QuestionAnswers(ctx, rqID)
	if err != nil {
		t.Fatalf("question answers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("expected 1 surviving answer, got %d", len(answers))
	}
	if answers[0].UserID != 2 {
		t.Fatalf("surviving answer belongs to user %d, want 2", answers[0].UserID)
	}
}

func TestRunInTxRollbackRestoresTouchedRows(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	gameID, roundID, rqID := seedGameWithRound(t, s)

	wrong := domain.OptionA
	if err := s.UpsertAnswer(ctx, &domain.Answer{
		GameID: gameID, RoundID: roundID, RoundQuestionID: rqID, UserID: 1,
		SelectedOption: &wrong, IsCorrect: false,
	}); err != nil {
		t.Fatalf("seed answer: %v", err)
	}

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(ctx context.Context, tx game.Store) error {
		right := domain.OptionB
		if err := tx.UpsertAnswer(ctx, &domain.Answer{
			GameID: gameID, RoundID: roundID, RoundQuestionID: rqID, UserID: 1,
			SelectedOption: &right, IsCorrect: true,
		}); err != nil {
			return err
		}
		round := &domain.Round{ID: roundID, GameID: gameID, RoundNumber: 1, Status: domain.RoundFinished}
		if err := tx.UpdateRound(ctx, round); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}

	answers, err := s.QuestionAnswers(ctx, rqID)
	if err != nil {
		t.Fatalf("question answers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("expected 1 answer, got %d", len(answers))
	}
	if answers[0].IsCorrect || *answers[0].SelectedOption != domain.OptionA {
		t.Fatalf("overwritten answer not restored: %+v", answers[0])
	}
	round, err := s.GetRound(ctx, roundID)
	if err != nil {
		t.Fatalf("get round: %v", err)
	}
	if round.Status != domain.RoundInProgress {
		t.Fatalf("round status = %s, want rollback to in_progress", round.Status)
	}
}

func TestRunInTxCommitKeepsWrites(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	gameID, _, _ := seedGameWithRound(t, s)

	err := s.RunInTx(ctx, func(ctx context.Context, tx game.Store) error {
		g, err := tx.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		g.Status = domain.GameFinished
		return tx.UpdateGame(ctx, g)
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	g, err := s.GetGame(ctx, gameID)
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if g.Status != domain.GameFinished {
		t.Fatalf("game status = %s, want finished", g.Status)
	}
}
