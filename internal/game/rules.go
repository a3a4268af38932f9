package game

import (
	"time"

	"trivia-game-service/internal/config"
	"trivia-game-service/internal/domain"
)

// Rules carries the session tuning shared with the bot collaborator. The
// defaults mirror the constants both sides were built against.
type Rules struct {
	RoundsPerGame     int
	QuestionsPerRound int
	QuestionTimeLimit time.Duration
	TieBreakTimeLimit time.Duration
	// QuestionPause is the grace window appended to each question's time
	// limit before the sequencer advances past it.
	QuestionPause time.Duration
	BotMinDelay   time.Duration
	BotMaxDelay   time.Duration
	BotAccuracy   map[domain.BotDifficulty]float64
}

// DefaultRules returns the stock game tuning.
func DefaultRules() Rules {
	return Rules{
		RoundsPerGame:     9,
		QuestionsPerRound: 10,
		QuestionTimeLimit: 10 * time.Second,
		TieBreakTimeLimit: 20 * time.Second,
		QuestionPause:     5 * time.Second,
		BotMinDelay:       3 * time.Second,
		BotMaxDelay:       15 * time.Second,
		BotAccuracy: map[domain.BotDifficulty]float64{
			domain.BotNovice:  0.55,
			domain.BotAmateur: 0.68,
			domain.BotExpert:  0.80,
		},
	}
}

// RulesFromConfig overlays configured values onto the defaults.
func RulesFromConfig(cfg config.Game) Rules {
	r := DefaultRules()
	r.RoundsPerGame = config.IntOr(cfg.RoundsPerGame, r.RoundsPerGame)
	r.QuestionsPerRound = config.IntOr(cfg.QuestionsPerRound, r.QuestionsPerRound)
	r.QuestionTimeLimit = config.Duration(cfg.QuestionTimeLimit, r.QuestionTimeLimit)
	r.TieBreakTimeLimit = config.Duration(cfg.TieBreakTimeLimit, r.TieBreakTimeLimit)
	r.QuestionPause = config.Duration(cfg.QuestionPause, r.QuestionPause)
	r.BotMinDelay = config.Duration(cfg.BotMinDelay, r.BotMinDelay)
	r.BotMaxDelay = config.Duration(cfg.BotMaxDelay, r.BotMaxDelay)
	r.BotAccuracy = map[domain.BotDifficulty]float64{
		domain.BotNovice:  config.FloatOr(cfg.BotAccuracy.Novice, r.BotAccuracy[domain.BotNovice]),
		domain.BotAmateur: config.FloatOr(cfg.BotAccuracy.Amateur, r.BotAccuracy[domain.BotAmateur]),
		domain.BotExpert:  config.FloatOr(cfg.BotAccuracy.Expert, r.BotAccuracy[domain.BotExpert]),
	}
	return r
}

// Accuracy maps a difficulty tier to its correct-answer probability,
// defaulting unknown tiers to novice.
func (r Rules) Accuracy(d domain.BotDifficulty) float64 {
	if acc, ok := r.BotAccuracy[d]; ok {
		return acc
	}
	return r.BotAccuracy[domain.BotNovice]
}
