package game

import (
	"context"

	"trivia-game-service/internal/domain"
)

// PlayerSeed describes one participant at game creation time.
type PlayerSeed struct {
	UserID        int64
	IsBot         bool
	BotDifficulty *domain.BotDifficulty
}

// CreateGameParams carries the lobby's output; pool/vote mechanics that
// produce it stay outside this service.
type CreateGameParams struct {
	Type          domain.GameType
	ThemeID       *int64
	TotalRounds   int
	BotDifficulty *domain.BotDifficulty
	Players       []PlayerSeed
}

// CreateGame persists a new waiting game with its player roster.
func (s *Service) CreateGame(ctx context.Context, params CreateGameParams) (*domain.Game, error) {
	totalRounds := params.TotalRounds
	if totalRounds <= 0 {
		totalRounds = s.rules.RoundsPerGame
	}
	game := &domain.Game{
		GameType:      params.Type,
		ThemeID:       params.ThemeID,
		Status:        domain.GameWaiting,
		TotalRounds:   totalRounds,
		BotDifficulty: params.BotDifficulty,
		CreatedAt:     s.now(),
	}
	players := make([]*domain.GamePlayer, 0, len(params.Players))
	seen := make(map[int64]bool, len(params.Players))
	for i, seed := range params.Players {
		if seen[seed.UserID] {
			return nil, domain.ErrDuplicatePlayer
		}
		seen[seed.UserID] = true
		players = append(players, &domain.GamePlayer{
			UserID:        seed.UserID,
			IsBot:         seed.IsBot,
			BotDifficulty: seed.BotDifficulty,
			JoinOrder:     i + 1,
		})
	}
	if err := s.store.CreateGame(ctx, game, players); err != nil {
		return nil, err
	}
	return game, nil
}

// CreateRound builds a full round atomically: it selects questionsCount
// questions the game has not used yet (theme-filtered when requested),
// assigns each one a display shuffle, and records the questions as used.
// Insufficient bank inventory is a declared failure, never a partial round.
func (s *Service) CreateRound(ctx context.Context, gameID int64, roundNumber int, themeID *int64, questionsCount int) (*domain.Round, error) {
	if questionsCount <= 0 {
		questionsCount = s.rules.QuestionsPerRound
	}
	game, err := s.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.Status.Terminal() {
		return nil, domain.ErrGameFinished
	}
	if existing, err := s.store.RoundByNumber(ctx, gameID, roundNumber); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, domain.ErrDuplicateRound
	}

	if themeID == nil {
		themeID = game.ThemeID
	}
	questions, err := s.bank.UnusedQuestions(ctx, gameID, themeID, questionsCount)
	if err != nil {
		return nil, err
	}
	if len(questions) < questionsCount {
		return nil, domain.ErrInsufficientQuestions
	}

	round := &domain.Round{
		GameID:      gameID,
		RoundNumber: roundNumber,
		ThemeID:     themeID,
		Status:      domain.RoundNotStarted,
	}
	timeLimit := int(s.rules.QuestionTimeLimit.Seconds())
	if err := s.createRoundTx(ctx, round, questions[:questionsCount], timeLimit); err != nil {
		return nil, err
	}
	return round, nil
}

// CreateTieBreakRound creates a child round linked to the parent whose
// elimination tied. When and whether to trigger one is the caller's policy.
func (s *Service) CreateTieBreakRound(ctx context.Context, parentRoundID int64, questionsCount int) (*domain.Round, error) {
	parent, err := s.store.GetRound(ctx, parentRoundID)
	if err != nil {
		return nil, err
	}
	game, err := s.store.GetGame(ctx, parent.GameID)
	if err != nil {
		return nil, err
	}
	if game.Status.Terminal() {
		return nil, domain.ErrGameFinished
	}
	if questionsCount <= 0 {
		questionsCount = s.rules.QuestionsPerRound
	}

	maxNumber, err := s.store.MaxRoundNumber(ctx, game.ID)
	if err != nil {
		return nil, err
	}
	questions, err := s.bank.UnusedQuestions(ctx, game.ID, parent.ThemeID, questionsCount)
	if err != nil {
		return nil, err
	}
	if len(questions) < questionsCount {
		return nil, domain.ErrInsufficientQuestions
	}

	round := &domain.Round{
		GameID:        game.ID,
		RoundNumber:   maxNumber + 1,
		ThemeID:       parent.ThemeID,
		Status:        domain.RoundNotStarted,
		IsTieBreak:    true,
		ParentRoundID: &parent.ID,
	}
	timeLimit := int(s.rules.TieBreakTimeLimit.Seconds())
	if err := s.createRoundTx(ctx, round, questions[:questionsCount], timeLimit); err != nil {
		return nil, err
	}
	return round, nil
}

func (s *Service) createRoundTx(ctx context.Context, round *domain.Round, questions []*domain.Question, timeLimitSec int) error {
	roundQuestions := make([]*domain.RoundQuestion, 0, len(questions))
	used := make([]*domain.GameUsedQuestion, 0, len(questions))
	for i, q := range questions {
		shuffle, correct := s.shuffleOptions(q)
		roundQuestions = append(roundQuestions, &domain.RoundQuestion{
			QuestionID:            q.ID,
			QuestionNumber:        i + 1,
			TimeLimitSec:          timeLimitSec,
			ShuffledOptions:       shuffle,
			CorrectOptionShuffled: &correct,
		})
		used = append(used, &domain.GameUsedQuestion{GameID: round.GameID, QuestionID: q.ID})
	}
	return s.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		return tx.CreateRound(ctx, round, roundQuestions, used)
	})
}

// shuffleOptions assigns the question's display order once, at round
// creation. Everyone else (sequencer, oracle, bot collaborator) consumes the
// stored mapping read-only, so no component ever recomputes it.
func (s *Service) shuffleOptions(q *domain.Question) (map[domain.Option]domain.Option, domain.Option) {
	letters := q.Options()
	displayed := make([]domain.Option, len(letters))
	copy(displayed, letters)
	s.rndMu.Lock()
	s.rnd.Shuffle(len(displayed), func(i, j int) {
		displayed[i], displayed[j] = displayed[j], displayed[i]
	})
	s.rndMu.Unlock()

	mapping := make(map[domain.Option]domain.Option, len(letters))
	for i, orig := range letters {
		mapping[orig] = displayed[i]
	}
	return mapping, mapping[q.CorrectOption]
}

// StartRound moves a round into play. The first round started also moves the
// game from waiting/pre_start to in_progress. Only one round per game may be
// in progress; the previous round must already be finished.
func (s *Service) StartRound(ctx context.Context, gameID, roundID int64) error {
	return s.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
		game, err := tx.GetGame(ctx, gameID)
		if err != nil {
			return err
		}
		if game.Status.Terminal() {
			return domain.ErrGameFinished
		}
		round, err := tx.GetRound(ctx, roundID)
		if err != nil {
			return err
		}
		if round.GameID != gameID || round.Status != domain.RoundNotStarted {
			return domain.ErrRoundMismatch
		}
		if active, err := tx.RoundInProgress(ctx, gameID); err != nil {
			return err
		} else if active != nil {
			return domain.ErrRoundMismatch
		}

		now := s.now()
		round.Status = domain.RoundInProgress
		round.StartedAt = &now
		if err := tx.UpdateRound(ctx, round); err != nil {
			return err
		}

		if game.Status == domain.GameWaiting || game.Status == domain.GamePreStart {
			game.Status = domain.GameInProgress
			game.StartedAt = &now
		}
		game.CurrentRound = &round.RoundNumber
		return tx.UpdateGame(ctx, game)
	})
}
