package game_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"trivia-game-service/internal/domain"
	"trivia-game-service/internal/game"
	"trivia-game-service/internal/infra/memory"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fxStoreWithQuestions seeds a bare store with a theme and questionCount
// four-option questions keyed to option A.
func fxStoreWithQuestions(t *testing.T, questionCount int) *memory.Store {
	t.Helper()
	store := memory.NewStore()
	themeID := store.AddTheme(domain.Theme{Code: "general", Name: "General"})
	for i := 0; i < questionCount; i++ {
		c, d := fmt.Sprintf("wrong c%d", i), fmt.Sprintf("wrong d%d", i)
		store.AddQuestion(domain.Question{
			ThemeID:       themeID,
			QuestionText:  fmt.Sprintf("question %d", i),
			OptionA:       "right",
			OptionB:       "wrong b",
			OptionC:       &c,
			OptionD:       &d,
			CorrectOption: domain.OptionA,
			IsApproved:    true,
		})
	}
	return store
}

// fxService wires a deterministic service around the store.
func fxService(store *memory.Store, rules game.Rules) (*game.Service, *fakeClock) {
	clock := newFakeClock()
	log := logrus.New()
	log.SetOutput(io.Discard)
	return game.NewServiceWithClock(store, store, rules, log, clock.Now, 1), clock
}

type fixture struct {
	store  *memory.Store
	svc    *game.Service
	clock  *fakeClock
	gameID int64
	humans []int64
	bots   []int64
}

// newFixture builds a store with questionCount four-option questions (all
// keyed to option A pre-shuffle) and a game with the requested roster.
func newFixture(t *testing.T, humanCount, botCount, questionCount int, rules game.Rules) *fixture {
	t.Helper()
	ctx := context.Background()

	store := fxStoreWithQuestions(t, questionCount)
	svc, clock := fxService(store, rules)

	novice := domain.BotNovice
	var seeds []game.PlayerSeed
	var humans, bots []int64
	for i := 0; i < humanCount; i++ {
		id := store.AddUser(domain.User{Username: fmt.Sprintf("human%d", i)})
		humans = append(humans, id)
		seeds = append(seeds, game.PlayerSeed{UserID: id})
	}
	for i := 0; i < botCount; i++ {
		id := store.AddUser(domain.User{Username: fmt.Sprintf("bot%d", i), IsBot: true, BotDifficulty: &novice})
		bots = append(bots, id)
		seeds = append(seeds, game.PlayerSeed{UserID: id, IsBot: true, BotDifficulty: &novice})
	}

	g, err := svc.CreateGame(ctx, game.CreateGameParams{
		Type:    domain.GameTypePrivate,
		Players: seeds,
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	return &fixture{store: store, svc: svc, clock: clock, gameID: g.ID, humans: humans, bots: bots}
}

// startRound creates and starts a round with questionsCount questions.
func (f *fixture) startRound(t *testing.T, roundNumber, questionsCount int) *domain.Round {
	t.Helper()
	ctx := context.Background()
	round, err := f.svc.CreateRound(ctx, f.gameID, roundNumber, nil, questionsCount)
	if err != nil {
		t.Fatalf("create round %d: %v", roundNumber, err)
	}
	if err := f.svc.StartRound(ctx, f.gameID, round.ID); err != nil {
		t.Fatalf("start round %d: %v", roundNumber, err)
	}
	return round
}

// recordAnswer writes a round answer directly, bypassing the submission
// path, to set up elimination scenarios.
func (f *fixture) recordAnswer(t *testing.T, roundID, roundQuestionID, userID int64, correct bool, answerTime float64) {
	t.Helper()
	a := &domain.Answer{
		GameID:          f.gameID,
		RoundID:         roundID,
		RoundQuestionID: roundQuestionID,
		UserID:          userID,
		IsCorrect:       correct,
		AnswerTime:      &answerTime,
	}
	if err := f.store.UpsertAnswer(context.Background(), a); err != nil {
		t.Fatalf("record answer: %v", err)
	}
}

func (f *fixture) player(t *testing.T, userID int64) *domain.GamePlayer {
	t.Helper()
	p, err := f.store.GetPlayer(context.Background(), f.gameID, userID)
	if err != nil {
		t.Fatalf("get player %d: %v", userID, err)
	}
	return p
}

func (f *fixture) game(t *testing.T) *domain.Game {
	t.Helper()
	g, err := f.store.GetGame(context.Background(), f.gameID)
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	return g
}
