package domain

import "errors"

var (
	// ErrGameNotFound is returned when the referenced game does not exist.
	ErrGameNotFound = errors.New("game not found")
	// ErrRoundNotFound is returned when the referenced round does not exist.
	ErrRoundNotFound = errors.New("round not found")
	// ErrRoundQuestionNotFound indicates a submitted round question ID is invalid.
	ErrRoundQuestionNotFound = errors.New("round question not found")
	// ErrQuestionNotFound indicates the backing question record is missing.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrPlayerNotFound is returned when the user is not a player of the game.
	ErrPlayerNotFound = errors.New("player not found in game")
	// ErrThemeNotFound is returned for an unknown theme filter.
	ErrThemeNotFound = errors.New("theme not found")

	// ErrGameNotActive rejects play against a game that is not in progress.
	ErrGameNotActive = errors.New("game is not in progress")
	// ErrGameFinished rejects transitions on a terminal game.
	ErrGameFinished = errors.New("game already finished")
	// ErrRoundNotActive is returned when no round is currently in progress.
	ErrRoundNotActive = errors.New("no round in progress")
	// ErrRoundCompleted signals that every question of the active round has
	// been displayed and its window has lapsed.
	ErrRoundCompleted = errors.New("round completed")
	// ErrRoundMismatch rejects operations against a round that does not
	// belong to the game or is in the wrong state for the transition.
	ErrRoundMismatch = errors.New("round does not match expected state")
	// ErrPlayerInactive rejects submissions from eliminated or departed players.
	ErrPlayerInactive = errors.New("player is no longer active")

	// ErrDuplicateRound is returned on a round_number collision within a game.
	ErrDuplicateRound = errors.New("round number already exists for game")
	// ErrDuplicatePlayer is returned when a user joins the same game twice.
	ErrDuplicatePlayer = errors.New("player already joined game")

	// ErrInsufficientQuestions is returned when the question bank cannot fill
	// a round; round creation never produces a partial round.
	ErrInsufficientQuestions = errors.New("not enough unused questions")

	// ErrInvalidOption rejects option letters outside A-D.
	ErrInvalidOption = errors.New("invalid option letter")
)
