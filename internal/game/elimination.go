package game

import (
	"context"
	"sort"

	"trivia-game-service/internal/domain"
)

// FinishRoundResult reports the round-end outcome.
type FinishRoundResult struct {
	EliminatedUserID    *int64            `json:"eliminatedPlayerId,omitempty"`
	GameStatus          domain.GameStatus `json:"gameStatus"`
	AllHumansEliminated bool              `json:"allHumansEliminated"`
}

// FinishRound closes the round and eliminates exactly one player when two or
// more are still active: lowest correct-answer count loses, slowest total
// time breaks ties, smallest player id settles residual ties. The whole
// transition is transactional; a replay on an already-finished round returns
// the stored outcome without re-eliminating.
//
// Game termination: running out of active humans finishes the game
// immediately, independent of (and possibly earlier than) total_rounds
// exhaustion.
func (s *Service) FinishRound(ctx context.Context, gameID, roundID int64) (FinishRoundResult, error) {
	var result FinishRoundResult
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		round, err := tx.GetRound(ctx, roundID)
		if err != nil {
			return err
		}
		if round.GameID != gameID {
			return domain.ErrRoundMismatch
		}
		game, err := tx.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		players, err := tx.ListPlayers(ctx, gameID)
		if err != nil {
			return err
		}

		if round.Status == domain.RoundFinished {
			result = replayOutcome(game, round, players)
			return nil
		}
		// Cancelled and error_pause are absorbing: a live round inside a
		// terminal game must not eliminate anyone or revive the game.
		if game.Status.Terminal() {
			return domain.ErrGameFinished
		}
		if round.Status != domain.RoundInProgress {
			return domain.ErrRoundMismatch
		}

		now := s.now()
		round.Status = domain.RoundFinished
		round.FinishedAt = &now
		if err := tx.UpdateRound(ctx, round); err != nil {
			return err
		}

		active := activePlayers(players)
		if len(active) >= 2 {
			loser, err := s.selectLoser(ctx, tx, round, active)
			if err != nil {
				return err
			}
			loser.IsEliminated = true
			loser.EliminatedRound = &round.RoundNumber
			place := len(active)
			loser.FinalPlace = &place
			if err := tx.UpdatePlayer(ctx, loser); err != nil {
				return err
			}
			result.EliminatedUserID = &loser.UserID
		}

		result.AllHumansEliminated = !humansRemain(players)
		if result.AllHumansEliminated || round.RoundNumber >= game.TotalRounds {
			if err := s.assignFinalPlaces(ctx, tx, gameID, players); err != nil {
				return err
			}
			if err := s.finishGame(ctx, tx, game); err != nil {
				return err
			}
		}
		game.CurrentRound = &round.RoundNumber
		if err := tx.UpdateGame(ctx, game); err != nil {
			return err
		}
		result.GameStatus = game.Status
		return nil
	})
	if err != nil {
		return FinishRoundResult{}, err
	}
	return result, nil
}

// selectLoser ranks the round's active players ascending by correct answers,
// breaking ties by the greatest time spent, then by smallest player id so
// identical inputs always pick the same player.
func (s *Service) selectLoser(ctx context.Context, tx Store, round *domain.Round, active []*domain.GamePlayer) (*domain.GamePlayer, error) {
	answers, err := tx.RoundAnswers(ctx, round.ID)
	if err != nil {
		return nil, err
	}

	type tally struct {
		correct int
		total   float64
	}
	byUser := make(map[int64]*tally, len(active))
	for _, p := range active {
		byUser[p.UserID] = &tally{}
	}
	for _, a := range answers {
		t, ok := byUser[a.UserID]
		if !ok {
			continue
		}
		if a.IsCorrect {
			t.correct++
		}
		if a.AnswerTime != nil {
			t.total += *a.AnswerTime
		}
	}

	ranked := make([]*domain.GamePlayer, len(active))
	copy(ranked, active)
	sort.Slice(ranked, func(i, j int) bool {
		ti, tj := byUser[ranked[i].UserID], byUser[ranked[j].UserID]
		if ti.correct != tj.correct {
			return ti.correct < tj.correct
		}
		if ti.total != tj.total {
			return ti.total > tj.total
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked[0], nil
}

// assignFinalPlaces ranks the survivors by game-wide performance and fills
// their final placement once the game ends.
func (s *Service) assignFinalPlaces(ctx context.Context, tx Store, gameID int64, players []*domain.GamePlayer) error {
	remaining := activePlayers(players)
	if len(remaining) == 0 {
		return nil
	}
	answers, err := tx.GameAnswers(ctx, gameID)
	if err != nil {
		return err
	}

	type tally struct {
		correct int
		total   float64
	}
	byUser := make(map[int64]*tally, len(remaining))
	for _, p := range remaining {
		byUser[p.UserID] = &tally{}
	}
	for _, a := range answers {
		t, ok := byUser[a.UserID]
		if !ok {
			continue
		}
		if a.IsCorrect {
			t.correct++
		}
		if a.AnswerTime != nil {
			t.total += *a.AnswerTime
		}
	}

	sort.Slice(remaining, func(i, j int) bool {
		ti, tj := byUser[remaining[i].UserID], byUser[remaining[j].UserID]
		if ti.correct != tj.correct {
			return ti.correct > tj.correct
		}
		if ti.total != tj.total {
			return ti.total < tj.total
		}
		return remaining[i].ID < remaining[j].ID
	})
	for i, p := range remaining {
		place := i + 1
		p.FinalPlace = &place
		if err := tx.UpdatePlayer(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// replayOutcome reconstructs a finished round's result from persisted state.
func replayOutcome(game *domain.Game, round *domain.Round, players []*domain.GamePlayer) FinishRoundResult {
	result := FinishRoundResult{
		GameStatus:          game.Status,
		AllHumansEliminated: !humansRemain(players),
	}
	for _, p := range players {
		if p.IsEliminated && p.EliminatedRound != nil && *p.EliminatedRound == round.RoundNumber {
			userID := p.UserID
			result.EliminatedUserID = &userID
			break
		}
	}
	return result
}

func activePlayers(players []*domain.GamePlayer) []*domain.GamePlayer {
	active := make([]*domain.GamePlayer, 0, len(players))
	for _, p := range players {
		if p.Active() {
			active = append(active, p)
		}
	}
	return active
}
