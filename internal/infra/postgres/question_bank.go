package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"trivia-game-service/internal/domain"
	"trivia-game-service/internal/game"
)

// QuestionBank reads immutable question content through its own pgx pool,
// kept apart from the bun store that owns the mutable session state.
type QuestionBank struct {
	pool *pgxpool.Pool
}

var _ game.QuestionBank = (*QuestionBank)(nil)

func NewQuestionBank(pool *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{pool: pool}
}

const questionColumns = `id, theme_id, question_text, option_a, option_b, option_c, option_d, correct_option, coalesce(difficulty, ''), is_approved`

func (b *QuestionBank) GetQuestion(ctx context.Context, id int64) (*domain.Question, error) {
	row := b.pool.QueryRow(ctx, `SELECT `+questionColumns+` FROM questions WHERE id = $1`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load question: %w", err)
	}
	return q, nil
}

// UnusedQuestions draws a random sample of approved questions the game has
// not consumed yet.
func (b *QuestionBank) UnusedQuestions(ctx context.Context, gameID int64, themeID *int64, limit int) ([]*domain.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions q
		WHERE q.is_approved
		  AND NOT EXISTS (
			SELECT 1 FROM game_used_questions guq
			WHERE guq.game_id = $1 AND guq.question_id = q.id
		  )`
	args := []interface{}{gameID}
	if themeID != nil {
		query += ` AND q.theme_id = $2`
		args = append(args, *themeID)
	}
	query += fmt.Sprintf(` ORDER BY random() LIMIT %d`, limit)

	rows, err := b.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select unused questions: %w", err)
	}
	defer rows.Close()

	var questions []*domain.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return questions, nil
}

func scanQuestion(row pgx.Row) (*domain.Question, error) {
	q := new(domain.Question)
	var correct string
	if err := row.Scan(&q.ID, &q.ThemeID, &q.QuestionText, &q.OptionA, &q.OptionB,
		&q.OptionC, &q.OptionD, &correct, &q.Difficulty, &q.IsApproved); err != nil {
		return nil, err
	}
	q.CorrectOption = domain.Option(correct)
	return q, nil
}
