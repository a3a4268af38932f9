package domain

import (
	"time"

	"github.com/uptrace/bun"
)

// GameType classifies how a game was assembled.
type GameType string

const (
	GameTypeQuick    GameType = "quick"
	GameTypeTraining GameType = "training"
	GameTypePrivate  GameType = "private"
)

// GameStatus values are monotonic: waiting/pre_start -> in_progress ->
// finished. Cancelled and error_pause are absorbing side exits.
type GameStatus string

const (
	GameWaiting    GameStatus = "waiting"
	GamePreStart   GameStatus = "pre_start"
	GameInProgress GameStatus = "in_progress"
	GameFinished   GameStatus = "finished"
	GameCancelled  GameStatus = "cancelled"
	GameErrorPause GameStatus = "error_pause"
)

// Terminal reports whether no further transitions are legal.
func (s GameStatus) Terminal() bool {
	return s == GameFinished || s == GameCancelled || s == GameErrorPause
}

type RoundStatus string

const (
	RoundNotStarted RoundStatus = "not_started"
	RoundInProgress RoundStatus = "in_progress"
	RoundFinished   RoundStatus = "finished"
)

// BotDifficulty selects the accuracy tier of a simulated player.
type BotDifficulty string

const (
	BotNovice  BotDifficulty = "novice"
	BotAmateur BotDifficulty = "amateur"
	BotExpert  BotDifficulty = "expert"
)

// User holds both real players and the bot identities they play against.
// telegram_id stays NULL for bots.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID            int64          `bun:"id,pk,autoincrement" json:"id"`
	TelegramID    *int64         `bun:"telegram_id" json:"telegramId,omitempty"`
	Username      string         `bun:"username" json:"username"`
	FullName      string         `bun:"full_name" json:"fullName"`
	IsBot         bool           `bun:"is_bot" json:"isBot"`
	BotDifficulty *BotDifficulty `bun:"bot_difficulty" json:"botDifficulty,omitempty"`
	Rating        int            `bun:"rating" json:"rating"`
	GamesPlayed   int            `bun:"games_played" json:"gamesPlayed"`
	GamesWon      int            `bun:"games_won" json:"gamesWon"`
}

// Theme groups questions into categories.
type Theme struct {
	bun.BaseModel `bun:"table:themes,alias:t"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id"`
	Code        string `bun:"code" json:"code"`
	Name        string `bun:"name" json:"name"`
	Description string `bun:"description" json:"description,omitempty"`
}

// Question is immutable reference data; the core never mutates it.
type Question struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID            int64   `bun:"id,pk,autoincrement" json:"id"`
	ThemeID       int64   `bun:"theme_id" json:"themeId"`
	QuestionText  string  `bun:"question_text" json:"text"`
	OptionA       string  `bun:"option_a" json:"optionA"`
	OptionB       string  `bun:"option_b" json:"optionB"`
	OptionC       *string `bun:"option_c" json:"optionC,omitempty"`
	OptionD       *string `bun:"option_d" json:"optionD,omitempty"`
	CorrectOption Option  `bun:"correct_option" json:"-"`
	Difficulty    string  `bun:"difficulty" json:"difficulty,omitempty"`
	IsApproved    bool    `bun:"is_approved" json:"-"`
}

// Options returns the letters this question actually offers (2 to 4).
func (q *Question) Options() []Option {
	opts := []Option{OptionA, OptionB}
	if q.OptionC != nil {
		opts = append(opts, OptionC)
	}
	if q.OptionD != nil {
		opts = append(opts, OptionD)
	}
	return opts
}

// OptionText resolves a letter to its text, empty if the slot is unused.
func (q *Question) OptionText(o Option) string {
	switch o {
	case OptionA:
		return q.OptionA
	case OptionB:
		return q.OptionB
	case OptionC:
		if q.OptionC != nil {
			return *q.OptionC
		}
	case OptionD:
		if q.OptionD != nil {
			return *q.OptionD
		}
	}
	return ""
}

// Game is one trivia session. It is never deleted, only marked finished.
type Game struct {
	bun.BaseModel `bun:"table:games,alias:g"`

	ID            int64          `bun:"id,pk,autoincrement" json:"id"`
	GameType      GameType       `bun:"game_type" json:"gameType"`
	ThemeID       *int64         `bun:"theme_id" json:"themeId,omitempty"`
	Status        GameStatus     `bun:"status" json:"status"`
	TotalRounds   int            `bun:"total_rounds" json:"totalRounds"`
	CurrentRound  *int           `bun:"current_round" json:"currentRound,omitempty"`
	BotDifficulty *BotDifficulty `bun:"bot_difficulty" json:"botDifficulty,omitempty"`
	StartedAt     *time.Time     `bun:"started_at" json:"startedAt,omitempty"`
	FinishedAt    *time.Time     `bun:"finished_at" json:"finishedAt,omitempty"`
	CreatedAt     time.Time      `bun:"created_at,nullzero,default:now()" json:"createdAt"`
}

// GamePlayer is a participant slot inside one game. A player eliminated or
// left never re-enters active rotation.
type GamePlayer struct {
	bun.BaseModel `bun:"table:game_players,alias:gp"`

	ID              int64          `bun:"id,pk,autoincrement" json:"id"`
	GameID          int64          `bun:"game_id" json:"gameId"`
	UserID          int64          `bun:"user_id" json:"userId"`
	IsBot           bool           `bun:"is_bot" json:"isBot"`
	BotDifficulty   *BotDifficulty `bun:"bot_difficulty" json:"botDifficulty,omitempty"`
	JoinOrder       int            `bun:"join_order" json:"joinOrder"`
	IsEliminated    bool           `bun:"is_eliminated" json:"isEliminated"`
	EliminatedRound *int           `bun:"eliminated_round" json:"eliminatedRound,omitempty"`
	FinalPlace      *int           `bun:"final_place" json:"finalPlace,omitempty"`
	LeftGame        bool           `bun:"left_game" json:"leftGame"`
}

// Active reports whether the player still competes.
func (p *GamePlayer) Active() bool {
	return !p.IsEliminated && !p.LeftGame
}

// Round is one timed batch of questions; at most one round per game is
// in_progress at a time.
type Round struct {
	bun.BaseModel `bun:"table:rounds,alias:r"`

	ID            int64       `bun:"id,pk,autoincrement" json:"id"`
	GameID        int64       `bun:"game_id" json:"gameId"`
	RoundNumber   int         `bun:"round_number" json:"roundNumber"`
	ThemeID       *int64      `bun:"theme_id" json:"themeId,omitempty"`
	Status        RoundStatus `bun:"status" json:"status"`
	IsTieBreak    bool        `bun:"is_tie_break" json:"isTieBreak"`
	ParentRoundID *int64      `bun:"parent_round_id" json:"parentRoundId,omitempty"`
	StartedAt     *time.Time  `bun:"started_at" json:"startedAt,omitempty"`
	FinishedAt    *time.Time  `bun:"finished_at" json:"finishedAt,omitempty"`
}

// RoundQuestion is a question occurrence within a round, carrying the shared
// display/timing state every poller converges on. The shuffle mapping is
// assigned once at round creation and consumed read-only afterwards.
type RoundQuestion struct {
	bun.BaseModel `bun:"table:round_questions,alias:rq"`

	ID                    int64             `bun:"id,pk,autoincrement" json:"id"`
	RoundID               int64             `bun:"round_id" json:"roundId"`
	QuestionID            int64             `bun:"question_id" json:"questionId"`
	QuestionNumber        int               `bun:"question_number" json:"questionNumber"`
	DisplayedAt           *time.Time        `bun:"displayed_at" json:"displayedAt,omitempty"`
	TimeLimitSec          int               `bun:"time_limit_sec" json:"timeLimitSec"`
	ShuffledOptions       map[Option]Option `bun:"shuffled_options,type:jsonb" json:"shuffledOptions,omitempty"`
	CorrectOptionShuffled *Option           `bun:"correct_option_shuffled" json:"-"`
}

// CorrectOption returns the letter a submission must match: the shuffled
// correct letter when a display shuffle was assigned, else the question's own.
func (rq *RoundQuestion) CorrectOption(q *Question) Option {
	if rq.CorrectOptionShuffled != nil {
		return *rq.CorrectOptionShuffled
	}
	return q.CorrectOption
}

// WindowEnd is the instant after which this question no longer counts as
// current. The pause absorbs clock skew between pollers.
func (rq *RoundQuestion) WindowEnd(pause time.Duration) time.Time {
	if rq.DisplayedAt == nil {
		return time.Time{}
	}
	return rq.DisplayedAt.Add(time.Duration(rq.TimeLimitSec)*time.Second + pause)
}

// Answer records one player's submission for one round question. The
// (round_question_id, user_id) pair is unique; resubmission overwrites.
type Answer struct {
	bun.BaseModel `bun:"table:answers,alias:a"`

	ID              int64      `bun:"id,pk,autoincrement" json:"id"`
	GameID          int64      `bun:"game_id" json:"gameId"`
	RoundID         int64      `bun:"round_id" json:"roundId"`
	RoundQuestionID int64      `bun:"round_question_id" json:"roundQuestionId"`
	UserID          int64      `bun:"user_id" json:"userId"`
	GamePlayerID    *int64     `bun:"game_player_id" json:"gamePlayerId,omitempty"`
	SelectedOption  *Option    `bun:"selected_option" json:"selectedOption,omitempty"`
	IsCorrect       bool       `bun:"is_correct" json:"isCorrect"`
	AnswerTime      *float64   `bun:"answer_time" json:"answerTime,omitempty"`
	AnsweredAt      *time.Time `bun:"answered_at" json:"answeredAt,omitempty"`
}

// GameUsedQuestion pins a question to a game so later rounds never reuse it.
type GameUsedQuestion struct {
	bun.BaseModel `bun:"table:game_used_questions,alias:guq"`

	GameID     int64 `bun:"game_id,pk" json:"gameId"`
	QuestionID int64 `bun:"question_id,pk" json:"questionId"`
}

// LeaderboardEntry is the per-player aggregate for one game.
type LeaderboardEntry struct {
	UserID       int64   `json:"userId"`
	Username     string  `json:"username"`
	CorrectCount int     `json:"correctCount"`
	TotalTime    float64 `json:"totalTime"`
	IsEliminated bool    `json:"isEliminated"`
	IsBot        bool    `json:"isBot"`
}

// Leaderboard is the ordered scoreboard snapshot for a game.
type Leaderboard struct {
	GameID    int64              `json:"gameId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
