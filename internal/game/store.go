package game

import (
	"context"
	"time"

	"trivia-game-service/internal/domain"
)

// Store abstracts persistence of mutable session state (games, rounds,
// players, answers). Implementations: postgres (bun) and the in-memory
// fixture backend. Lookup methods that may legitimately find nothing
// (RoundInProgress, LatestDisplayedQuestion, NextUndisplayedQuestion,
// RoundByNumber) return (nil, nil) rather than an error.
type Store interface {
	// RunInTx executes fn against a transactional view of the store. All
	// writes inside fn become visible atomically on commit; any error rolls
	// the whole operation back.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	CreateGame(ctx context.Context, game *domain.Game, players []*domain.GamePlayer) error
	GetGame(ctx context.Context, id int64) (*domain.Game, error)
	UpdateGame(ctx context.Context, game *domain.Game) error

	CreateRound(ctx context.Context, round *domain.Round, questions []*domain.RoundQuestion, used []*domain.GameUsedQuestion) error
	GetRound(ctx context.Context, id int64) (*domain.Round, error)
	RoundByNumber(ctx context.Context, gameID int64, number int) (*domain.Round, error)
	RoundInProgress(ctx context.Context, gameID int64) (*domain.Round, error)
	MaxRoundNumber(ctx context.Context, gameID int64) (int, error)
	UpdateRound(ctx context.Context, round *domain.Round) error

	GetRoundQuestion(ctx context.Context, id int64) (*domain.RoundQuestion, error)
	LatestDisplayedQuestion(ctx context.Context, roundID int64) (*domain.RoundQuestion, error)
	NextUndisplayedQuestion(ctx context.Context, roundID int64) (*domain.RoundQuestion, error)
	// MarkQuestionDisplayed stamps displayed_at once; later calls are no-ops
	// so racing pollers converge on the first caller's timestamp.
	MarkQuestionDisplayed(ctx context.Context, roundQuestionID int64, at time.Time) error

	ListPlayers(ctx context.Context, gameID int64) ([]*domain.GamePlayer, error)
	GetPlayer(ctx context.Context, gameID, userID int64) (*domain.GamePlayer, error)
	UpdatePlayer(ctx context.Context, player *domain.GamePlayer) error

	// UpsertAnswer inserts or overwrites the single answer row keyed by
	// (round_question_id, user_id).
	UpsertAnswer(ctx context.Context, answer *domain.Answer) error
	QuestionAnswers(ctx context.Context, roundQuestionID int64) ([]*domain.Answer, error)
	RoundAnswers(ctx context.Context, roundID int64) ([]*domain.Answer, error)
	GameAnswers(ctx context.Context, gameID int64) ([]*domain.Answer, error)

	GetUser(ctx context.Context, id int64) (*domain.User, error)
}

// QuestionBank serves immutable question content. The postgres
// implementation reads through a pgx pool separate from the bun store; the
// memory implementation is a static fixture table.
type QuestionBank interface {
	GetQuestion(ctx context.Context, id int64) (*domain.Question, error)
	// UnusedQuestions returns up to limit approved questions not yet used by
	// the game, optionally restricted to a theme.
	UnusedQuestions(ctx context.Context, gameID int64, themeID *int64, limit int) ([]*domain.Question, error)
}
