package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"trivia-game-service/internal/domain"
	"trivia-game-service/internal/game"
)

// Store is the bun-backed implementation of game.Store. All session state
// lives in Postgres; cross-row transitions run through RunInTx.
type Store struct {
	db bun.IDB
}

var _ game.Store = (*Store)(nil)

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

// RunInTx opens a database transaction and hands fn a Store bound to it.
// Calls on an already transactional Store reuse the open transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx game.Store) error) error {
	db, ok := s.db.(*bun.DB)
	if !ok {
		return fn(ctx, s)
	}
	return db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &Store{db: tx})
	})
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == "23505"
	}
	return false
}

func (s *Store) CreateGame(ctx context.Context, g *domain.Game, players []*domain.GamePlayer) error {
	if _, err := s.db.NewInsert().Model(g).Exec(ctx); err != nil {
		return fmt.Errorf("insert game: %w", err)
	}
	for _, p := range players {
		p.GameID = g.ID
	}
	if len(players) > 0 {
		if _, err := s.db.NewInsert().Model(&players).Exec(ctx); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrDuplicatePlayer
			}
			return fmt.Errorf("insert players: %w", err)
		}
	}
	return nil
}

func (s *Store) GetGame(ctx context.Context, id int64) (*domain.Game, error) {
	g := new(domain.Game)
	err := s.db.NewSelect().Model(g).Where("g.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load game: %w", err)
	}
	return g, nil
}

func (s *Store) UpdateGame(ctx context.Context, g *domain.Game) error {
	if _, err := s.db.NewUpdate().Model(g).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("update game: %w", err)
	}
	return nil
}

func (s *Store) CreateRound(ctx context.Context, round *domain.Round, questions []*domain.RoundQuestion, used []*domain.GameUsedQuestion) error {
	if _, err := s.db.NewInsert().Model(round).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateRound
		}
		return fmt.Errorf("insert round: %w", err)
	}
	for _, rq := range questions {
		rq.RoundID = round.ID
	}
	if len(questions) > 0 {
		if _, err := s.db.NewInsert().Model(&questions).Exec(ctx); err != nil {
			return fmt.Errorf("insert round questions: %w", err)
		}
	}
	if len(used) > 0 {
		if _, err := s.db.NewInsert().Model(&used).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
			return fmt.Errorf("mark questions used: %w", err)
		}
	}
	return nil
}

func (s *Store) GetRound(ctx context.Context, id int64) (*domain.Round, error) {
	r := new(domain.Round)
	err := s.db.NewSelect().Model(r).Where("r.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRoundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load round: %w", err)
	}
	return r, nil
}

func (s *Store) RoundByNumber(ctx context.Context, gameID int64, number int) (*domain.Round, error) {
	r := new(domain.Round)
	err := s.db.NewSelect().Model(r).
		Where("r.game_id = ?", gameID).
		Where("r.round_number = ?", number).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load round by number: %w", err)
	}
	return r, nil
}

func (s *Store) RoundInProgress(ctx context.Context, gameID int64) (*domain.Round, error) {
	r := new(domain.Round)
	err := s.db.NewSelect().Model(r).
		Where("r.game_id = ?", gameID).
		Where("r.status = ?", domain.RoundInProgress).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load active round: %w", err)
	}
	return r, nil
}

func (s *Store) MaxRoundNumber(ctx context.Context, gameID int64) (int, error) {
	var max int
	err := s.db.NewSelect().Model((*domain.Round)(nil)).
		ColumnExpr("coalesce(max(r.round_number), 0)").
		Where("r.game_id = ?", gameID).
		Scan(ctx, &max)
	if err != nil {
		return 0, fmt.Errorf("max round number: %w", err)
	}
	return max, nil
}

func (s *Store) UpdateRound(ctx context.Context, round *domain.Round) error {
	if _, err := s.db.NewUpdate().Model(round).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("update round: %w", err)
	}
	return nil
}

func (s *Store) GetRoundQuestion(ctx context.Context, id int64) (*domain.RoundQuestion, error) {
	rq := new(domain.RoundQuestion)
	err := s.db.NewSelect().Model(rq).Where("rq.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRoundQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load round question: %w", err)
	}
	return rq, nil
}

func (s *Store) LatestDisplayedQuestion(ctx context.Context, roundID int64) (*domain.RoundQuestion, error) {
	rq := new(domain.RoundQuestion)
	err := s.db.NewSelect().Model(rq).
		Where("rq.round_id = ?", roundID).
		Where("rq.displayed_at IS NOT NULL").
		OrderExpr("rq.displayed_at DESC, rq.question_number DESC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load displayed question: %w", err)
	}
	return rq, nil
}

func (s *Store) NextUndisplayedQuestion(ctx context.Context, roundID int64) (*domain.RoundQuestion, error) {
	rq := new(domain.RoundQuestion)
	err := s.db.NewSelect().Model(rq).
		Where("rq.round_id = ?", roundID).
		Where("rq.displayed_at IS NULL").
		OrderExpr("rq.question_number ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load undisplayed question: %w", err)
	}
	return rq, nil
}

// MarkQuestionDisplayed is a set-once compare-and-set: the WHERE clause on
// displayed_at IS NULL makes racing pollers converge on the first timestamp.
func (s *Store) MarkQuestionDisplayed(ctx context.Context, roundQuestionID int64, at time.Time) error {
	res, err := s.db.NewUpdate().Model((*domain.RoundQuestion)(nil)).
		Set("displayed_at = ?", at).
		Where("rq.id = ?", roundQuestionID).
		Where("rq.displayed_at IS NULL").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("mark displayed: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		exists, err := s.db.NewSelect().Model((*domain.RoundQuestion)(nil)).
			Where("rq.id = ?", roundQuestionID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("mark displayed: %w", err)
		}
		if !exists {
			return domain.ErrRoundQuestionNotFound
		}
	}
	return nil
}

func (s *Store) ListPlayers(ctx context.Context, gameID int64) ([]*domain.GamePlayer, error) {
	var players []*domain.GamePlayer
	err := s.db.NewSelect().Model(&players).
		Where("gp.game_id = ?", gameID).
		OrderExpr("gp.join_order ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	return players, nil
}

func (s *Store) GetPlayer(ctx context.Context, gameID, userID int64) (*domain.GamePlayer, error) {
	p := new(domain.GamePlayer)
	err := s.db.NewSelect().Model(p).
		Where("gp.game_id = ?", gameID).
		Where("gp.user_id = ?", userID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load player: %w", err)
	}
	return p, nil
}

func (s *Store) UpdatePlayer(ctx context.Context, player *domain.GamePlayer) error {
	if _, err := s.db.NewUpdate().Model(player).WherePK().Exec(ctx); err != nil {
		return fmt.Errorf("update player: %w", err)
	}
	return nil
}

// UpsertAnswer leans on the (round_question_id, user_id) unique index so a
// resubmission overwrites instead of conflicting.
func (s *Store) UpsertAnswer(ctx context.Context, answer *domain.Answer) error {
	_, err := s.db.NewInsert().Model(answer).
		On("CONFLICT (round_question_id, user_id) DO UPDATE").
		Set("selected_option = EXCLUDED.selected_option").
		Set("is_correct = EXCLUDED.is_correct").
		Set("answer_time = EXCLUDED.answer_time").
		Set("answered_at = EXCLUDED.answered_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

func (s *Store) QuestionAnswers(ctx context.Context, roundQuestionID int64) ([]*domain.Answer, error) {
	return s.selectAnswers(ctx, "a.round_question_id = ?", roundQuestionID)
}

func (s *Store) RoundAnswers(ctx context.Context, roundID int64) ([]*domain.Answer, error) {
	return s.selectAnswers(ctx, "a.round_id = ?", roundID)
}

func (s *Store) GameAnswers(ctx context.Context, gameID int64) ([]*domain.Answer, error) {
	return s.selectAnswers(ctx, "a.game_id = ?", gameID)
}

func (s *Store) selectAnswers(ctx context.Context, where string, arg int64) ([]*domain.Answer, error) {
	var answers []*domain.Answer
	err := s.db.NewSelect().Model(&answers).
		Where(where, arg).
		OrderExpr("a.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return answers, nil
}

func (s *Store) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	u := new(domain.User)
	err := s.db.NewSelect().Model(u).Where("u.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}
