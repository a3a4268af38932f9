package game

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"trivia-game-service/internal/domain"
)

// Service contains the core game-session use cases: question sequencing,
// answer scoring, bot simulation, elimination and lifecycle transitions.
// It is safe for concurrent use by independent request handlers.
type Service struct {
	store Store
	bank  QuestionBank
	rules Rules
	log   *logrus.Logger
	now   func() time.Time

	rndMu sync.Mutex
	rnd   *rand.Rand

	bots sync.WaitGroup
}

func NewService(store Store, bank QuestionBank, rules Rules, log *logrus.Logger) *Service {
	return newService(store, bank, rules, log, time.Now, time.Now().UnixNano())
}

// NewServiceWithClock is test-only for deterministic timestamps and dice.
func NewServiceWithClock(store Store, bank QuestionBank, rules Rules, log *logrus.Logger, now func() time.Time, seed int64) *Service {
	return newService(store, bank, rules, log, now, seed)
}

func newService(store Store, bank QuestionBank, rules Rules, log *logrus.Logger, now func() time.Time, seed int64) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{
		store: store,
		bank:  bank,
		rules: rules,
		log:   log,
		now:   now,
		rnd:   rand.New(rand.NewSource(seed)),
	}
}

// Wait blocks until all in-flight bot answering goroutines have finished.
// Used by tests and graceful shutdown.
func (s *Service) Wait() {
	s.bots.Wait()
}

func (s *Service) randFloat() float64 {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return s.rnd.Float64()
}

func (s *Service) randIntn(n int) int {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return s.rnd.Intn(n)
}

// OptionView is one selectable answer in display order.
type OptionView struct {
	Letter domain.Option `json:"letter"`
	Text   string        `json:"text"`
}

// QuestionView is the client-facing question shape; the correct letter is
// deliberately absent.
type QuestionView struct {
	ID      int64        `json:"id"`
	Text    string       `json:"text"`
	Options []OptionView `json:"options"`
}

// CurrentQuestion is the sequencer's answer to a poll.
type CurrentQuestion struct {
	RoundQuestionID int64        `json:"roundQuestionId"`
	RoundID         int64        `json:"roundId"`
	QuestionNumber  int          `json:"questionNumber"`
	TimeLimitSec    int          `json:"timeLimitSec"`
	DisplayedAt     *time.Time   `json:"displayedAt,omitempty"`
	Question        QuestionView `json:"question"`
}

// GetCurrentQuestion resolves the question a polling client should show for
// the game's active round. Concurrent pollers converge on the same round
// question because the decision derives purely from persisted displayed_at
// state. As a side effect, bot players are answered (best-effort, detached
// from this call's success).
func (s *Service) GetCurrentQuestion(ctx context.Context, gameID, userID int64) (*CurrentQuestion, error) {
	game, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.Status != domain.GameInProgress {
		return nil, domain.ErrGameNotActive
	}
	if _, err := s.store.GetPlayer(ctx, gameID, userID); err != nil {
		return nil, err
	}

	round, err := s.store.RoundInProgress(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if round == nil {
		return nil, domain.ErrRoundNotActive
	}

	rq, err := s.currentQuestion(ctx, s.store, round)
	if err != nil {
		return nil, err
	}
	question, err := s.bank.GetQuestion(ctx, rq.QuestionID)
	if err != nil {
		return nil, err
	}

	s.spawnBotAnswers(game, round, rq, question)

	return &CurrentQuestion{
		RoundQuestionID: rq.ID,
		RoundID:         round.ID,
		QuestionNumber:  rq.QuestionNumber,
		TimeLimitSec:    rq.TimeLimitSec,
		DisplayedAt:     rq.DisplayedAt,
		Question:        questionView(rq, question),
	}, nil
}

// questionView renders the question with the round's display shuffle applied.
func questionView(rq *domain.RoundQuestion, q *domain.Question) QuestionView {
	letters := q.Options()

	// Invert original->display into display->original to list options in
	// the order clients render them.
	displayToOriginal := make(map[domain.Option]domain.Option, len(letters))
	for _, orig := range letters {
		display := orig
		if mapped, ok := rq.ShuffledOptions[orig]; ok {
			display = mapped
		}
		displayToOriginal[display] = orig
	}

	options := make([]OptionView, 0, len(letters))
	for _, display := range domain.OptionLetters[:len(letters)] {
		orig, ok := displayToOriginal[display]
		if !ok {
			orig = display
		}
		options = append(options, OptionView{Letter: display, Text: q.OptionText(orig)})
	}
	return QuestionView{ID: q.ID, Text: q.QuestionText, Options: options}
}

// MarkQuestionDisplayed stamps the shared question timer. First caller wins;
// replays and races are absorbed by the set-once semantics.
func (s *Service) MarkQuestionDisplayed(ctx context.Context, roundQuestionID int64) error {
	return s.store.MarkQuestionDisplayed(ctx, roundQuestionID, s.now())
}

// SubmitResult reports the outcome of an answer submission.
type SubmitResult struct {
	Accepted  bool `json:"accepted"`
	IsCorrect bool `json:"isCorrect"`
}

// SubmitAnswer validates and records one player's answer. Correctness is
// always recomputed server-side against the canonical question record; a
// resubmission for the same question overwrites the earlier row.
func (s *Service) SubmitAnswer(ctx context.Context, gameID, userID, roundQuestionID int64, selected *domain.Option, answerTime float64) (SubmitResult, error) {
	rq, err := s.store.GetRoundQuestion(ctx, roundQuestionID)
	if err != nil {
		return SubmitResult{}, err
	}
	question, err := s.bank.GetQuestion(ctx, rq.QuestionID)
	if err != nil {
		return SubmitResult{}, err
	}
	correct := rq.CorrectOption(question)

	var result SubmitResult
	err = s.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		game, err := tx.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		if game.Status != domain.GameInProgress {
			return domain.ErrGameNotActive
		}
		player, err := tx.GetPlayer(ctx, gameID, userID)
		if err != nil {
			return err
		}
		if !player.Active() {
			return domain.ErrPlayerInactive
		}
		round, err := tx.GetRound(ctx, rq.RoundID)
		if err != nil {
			return err
		}
		if round.GameID != gameID || round.Status != domain.RoundInProgress {
			return domain.ErrRoundNotActive
		}

		now := s.now()
		answer := &domain.Answer{
			GameID:          gameID,
			RoundID:         round.ID,
			RoundQuestionID: rq.ID,
			UserID:          userID,
			GamePlayerID:    &player.ID,
			SelectedOption:  selected,
			IsCorrect:       domain.Score(selected, correct),
			AnswerTime:      &answerTime,
			AnsweredAt:      &now,
		}
		if err := tx.UpsertAnswer(ctx, answer); err != nil {
			return fmt.Errorf("record answer: %w", err)
		}
		result = SubmitResult{Accepted: true, IsCorrect: answer.IsCorrect}
		return nil
	})
	if err != nil {
		return SubmitResult{}, err
	}
	return result, nil
}

// GetLeaderboard aggregates per-player correct counts and time spent across
// the whole game, ordered best-first (correct desc, time asc, user id asc).
func (s *Service) GetLeaderboard(ctx context.Context, gameID int64) (*domain.Leaderboard, error) {
	if _, err := s.store.GetGame(ctx, gameID); err != nil {
		return nil, err
	}
	players, err := s.store.ListPlayers(ctx, gameID)
	if err != nil {
		return nil, err
	}
	answers, err := s.store.GameAnswers(ctx, gameID)
	if err != nil {
		return nil, err
	}

	type agg struct {
		correct int
		total   float64
	}
	byUser := make(map[int64]*agg, len(players))
	for _, p := range players {
		byUser[p.UserID] = &agg{}
	}
	for _, a := range answers {
		acc, ok := byUser[a.UserID]
		if !ok {
			continue
		}
		if a.IsCorrect {
			acc.correct++
		}
		if a.AnswerTime != nil {
			acc.total += *a.AnswerTime
		}
	}

	entries := make([]domain.LeaderboardEntry, 0, len(players))
	for _, p := range players {
		acc := byUser[p.UserID]
		entry := domain.LeaderboardEntry{
			UserID:       p.UserID,
			CorrectCount: acc.correct,
			TotalTime:    acc.total,
			IsEliminated: p.IsEliminated,
			IsBot:        p.IsBot,
		}
		if user, err := s.store.GetUser(ctx, p.UserID); err == nil {
			entry.Username = user.Username
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CorrectCount != entries[j].CorrectCount {
			return entries[i].CorrectCount > entries[j].CorrectCount
		}
		if entries[i].TotalTime != entries[j].TotalTime {
			return entries[i].TotalTime < entries[j].TotalTime
		}
		return entries[i].UserID < entries[j].UserID
	})

	return &domain.Leaderboard{GameID: gameID, Entries: entries, UpdatedAt: s.now()}, nil
}

// LeaveGame marks the player as voluntarily departed. A game left by its
// last human finishes immediately even with bots still standing.
func (s *Service) LeaveGame(ctx context.Context, gameID, userID int64) error {
	return s.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		player, err := tx.GetPlayer(ctx, gameID, userID)
		if err != nil {
			return err
		}
		if player.LeftGame {
			return nil
		}
		player.LeftGame = true
		if err := tx.UpdatePlayer(ctx, player); err != nil {
			return err
		}

		game, err := tx.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		if game.Status != domain.GameInProgress {
			return nil
		}
		players, err := tx.ListPlayers(ctx, gameID)
		if err != nil {
			return err
		}
		if humansRemain(players) {
			return nil
		}
		return s.finishGame(ctx, tx, game)
	})
}

func humansRemain(players []*domain.GamePlayer) bool {
	for _, p := range players {
		if !p.IsBot && p.Active() {
			return true
		}
	}
	return false
}

func (s *Service) finishGame(ctx context.Context, tx Store, game *domain.Game) error {
	now := s.now()
	game.Status = domain.GameFinished
	game.FinishedAt = &now
	return tx.UpdateGame(ctx, game)
}
