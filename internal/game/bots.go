package game

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"trivia-game-service/internal/domain"
)

// spawnBotAnswers runs the bot responder detached from the caller, so that
// bot simulation failures can never fail the human player's request.
func (s *Service) spawnBotAnswers(game *domain.Game, round *domain.Round, rq *domain.RoundQuestion, q *domain.Question) {
	s.bots.Add(1)
	go func() {
		defer s.bots.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.answerForBots(ctx, game, round, rq, q); err != nil {
			s.log.WithFields(logrus.Fields{
				"game_id":           game.ID,
				"round_question_id": rq.ID,
			}).WithError(err).Warn("bot answering failed")
		}
	}()
}

// answerForBots synthesizes one answer per active bot player that has not
// answered this round question yet. Idempotent per (roundQuestion, bot).
func (s *Service) answerForBots(ctx context.Context, game *domain.Game, round *domain.Round, rq *domain.RoundQuestion, q *domain.Question) error {
	players, err := s.store.ListPlayers(ctx, game.ID)
	if err != nil {
		return err
	}
	existing, err := s.store.QuestionAnswers(ctx, rq.ID)
	if err != nil {
		return err
	}
	answered := make(map[int64]bool, len(existing))
	for _, a := range existing {
		answered[a.UserID] = true
	}

	correct := rq.CorrectOption(q)
	optionCount := len(q.Options())

	for _, p := range players {
		if !p.IsBot || !p.Active() || answered[p.UserID] {
			continue
		}
		selected := s.drawBotOption(game, p, correct, optionCount)
		latency := s.drawBotLatency()
		now := s.now()

		answer := &domain.Answer{
			GameID:          game.ID,
			RoundID:         round.ID,
			RoundQuestionID: rq.ID,
			UserID:          p.UserID,
			GamePlayerID:    &p.ID,
			SelectedOption:  &selected,
			IsCorrect:       domain.Score(&selected, correct),
			AnswerTime:      &latency,
			AnsweredAt:      &now,
		}
		// Best-effort per bot: one failed write must not starve the rest.
		if err := s.store.UpsertAnswer(ctx, answer); err != nil {
			s.log.WithFields(logrus.Fields{
				"game_id":           game.ID,
				"round_question_id": rq.ID,
				"user_id":           p.UserID,
			}).WithError(err).Warn("bot answer not persisted")
		}
	}
	return nil
}

// drawBotOption rolls against the bot's accuracy tier: a success selects the
// correct letter, a miss draws uniformly among the remaining options the
// question actually offers.
func (s *Service) drawBotOption(game *domain.Game, p *domain.GamePlayer, correct domain.Option, optionCount int) domain.Option {
	tier := domain.BotNovice
	if p.BotDifficulty != nil {
		tier = *p.BotDifficulty
	}
	if game.BotDifficulty != nil {
		tier = *game.BotDifficulty
	}

	if s.randFloat() < s.rules.Accuracy(tier) {
		return correct
	}

	wrong := make([]domain.Option, 0, optionCount-1)
	for _, letter := range domain.OptionLetters[:optionCount] {
		if letter != correct {
			wrong = append(wrong, letter)
		}
	}
	if len(wrong) == 0 {
		return correct
	}
	return wrong[s.randIntn(len(wrong))]
}

func (s *Service) drawBotLatency() float64 {
	min := s.rules.BotMinDelay.Seconds()
	max := s.rules.BotMaxDelay.Seconds()
	if max <= min {
		return min
	}
	return min + s.randFloat()*(max-min)
}
