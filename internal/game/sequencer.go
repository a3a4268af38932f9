package game

import (
	"context"

	"trivia-game-service/internal/domain"
)

// currentQuestion derives the round's current question from persisted state
// only, so any number of independent pollers converge on the same answer:
//
//  1. the most recently displayed question is current while its time window
//     (limit + pause) has not lapsed;
//  2. otherwise the lowest-numbered undisplayed question becomes current —
//     without stamping displayed_at, which is the separate first-caller-wins
//     MarkQuestionDisplayed operation;
//  3. otherwise the round is complete.
func (s *Service) currentQuestion(ctx context.Context, store Store, round *domain.Round) (*domain.RoundQuestion, error) {
	latest, err := store.LatestDisplayedQuestion(ctx, round.ID)
	if err != nil {
		return nil, err
	}
	if latest != nil && !s.now().After(latest.WindowEnd(s.rules.QuestionPause)) {
		return latest, nil
	}

	next, err := store.NextUndisplayedQuestion(ctx, round.ID)
	if err != nil {
		return nil, err
	}
	if next != nil {
		return next, nil
	}
	return nil, domain.ErrRoundCompleted
}
