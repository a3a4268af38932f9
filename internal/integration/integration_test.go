package integration

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"trivia-game-service/internal/domain"
	"trivia-game-service/internal/game"
	"trivia-game-service/internal/infra/postgres"
	pgmigrations "trivia-game-service/internal/infra/postgres/migrations"
	infraredis "trivia-game-service/internal/infra/redis"
)

func TestRoundLifecycleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	db := openBun(t, ctx, pgURL)
	defer db.Close()
	humanID, botID := seedFixtures(t, ctx, db)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	store := postgres.NewStore(db)
	bank := postgres.NewQuestionBank(pool)

	log := logrus.New()
	log.SetOutput(io.Discard)
	rules := game.DefaultRules()
	rules.BotAccuracy[domain.BotExpert] = 1.0
	service := game.NewService(store, bank, rules, log)

	expert := domain.BotExpert
	g, err := service.CreateGame(ctx, game.CreateGameParams{
		Type:        domain.GameTypePrivate,
		TotalRounds: 2,
		Players: []game.PlayerSeed{
			{UserID: humanID},
			{UserID: botID, IsBot: true, BotDifficulty: &expert},
		},
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}

	round, err := service.CreateRound(ctx, g.ID, 1, nil, 3)
	if err != nil {
		t.Fatalf("create round: %v", err)
	}
	if err := service.StartRound(ctx, g.ID, round.ID); err != nil {
		t.Fatalf("start round: %v", err)
	}

	cur, err := service.GetCurrentQuestion(ctx, g.ID, humanID)
	if err != nil {
		t.Fatalf("get current question: %v", err)
	}
	if err := service.MarkQuestionDisplayed(ctx, cur.RoundQuestionID); err != nil {
		t.Fatalf("mark displayed: %v", err)
	}

	// Same poll again converges on the stamped question.
	again, err := service.GetCurrentQuestion(ctx, g.ID, humanID)
	if err != nil {
		t.Fatalf("repoll: %v", err)
	}
	if again.RoundQuestionID != cur.RoundQuestionID {
		t.Fatalf("poll diverged: %d vs %d", again.RoundQuestionID, cur.RoundQuestionID)
	}

	rq, err := store.GetRoundQuestion(ctx, cur.RoundQuestionID)
	if err != nil {
		t.Fatalf("get round question: %v", err)
	}
	q, err := bank.GetQuestion(ctx, rq.QuestionID)
	if err != nil {
		t.Fatalf("get question: %v", err)
	}
	correct := rq.CorrectOption(q)

	res, err := service.SubmitAnswer(ctx, g.ID, humanID, rq.ID, &correct, 2.5)
	if err != nil {
		t.Fatalf("submit answer: %v", err)
	}
	if !res.Accepted || !res.IsCorrect {
		t.Fatalf("correct submission scored %+v", res)
	}
	service.Wait()

	answers, err := store.QuestionAnswers(ctx, rq.ID)
	if err != nil {
		t.Fatalf("question answers: %v", err)
	}
	if len(answers) != 2 {
		t.Fatalf("expected human and bot answers, got %d", len(answers))
	}

	outcome, err := service.FinishRound(ctx, g.ID, round.ID)
	if err != nil {
		t.Fatalf("finish round: %v", err)
	}
	if outcome.EliminatedUserID == nil {
		t.Fatalf("two-player round finished without elimination")
	}

	// Leaderboard through the redis read-through cache.
	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	cache := infraredis.NewLeaderboardCache(redisClient, service, time.Minute)
	lb, err := cache.GetLeaderboard(ctx, g.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(lb.Entries) != 2 {
		t.Fatalf("expected 2 leaderboard entries, got %d", len(lb.Entries))
	}
	cached, err := cache.GetLeaderboard(ctx, g.ID)
	if err != nil {
		t.Fatalf("cached leaderboard: %v", err)
	}
	if len(cached.Entries) != len(lb.Entries) {
		t.Fatalf("cached snapshot diverged: %d vs %d entries", len(cached.Entries), len(lb.Entries))
	}
}

func TestDuplicateRoundRejectedByDatabase(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()

	db := openBun(t, ctx, pgURL)
	defer db.Close()
	humanID, _ := seedFixtures(t, ctx, db)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	log := logrus.New()
	log.SetOutput(io.Discard)
	service := game.NewService(postgres.NewStore(db), postgres.NewQuestionBank(pool), game.DefaultRules(), log)

	g, err := service.CreateGame(ctx, game.CreateGameParams{
		Type:    domain.GameTypePrivate,
		Players: []game.PlayerSeed{{UserID: humanID}},
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	if _, err := service.CreateRound(ctx, g.ID, 1, nil, 2); err != nil {
		t.Fatalf("create round: %v", err)
	}
	if _, err := service.CreateRound(ctx, g.ID, 1, nil, 2); err == nil {
		t.Fatalf("duplicate round accepted")
	}
}

func openBun(t *testing.T, ctx context.Context, dsn string) *bun.DB {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedFixtures(t *testing.T, ctx context.Context, db *bun.DB) (humanID, botID int64) {
	t.Helper()

	theme := domain.Theme{Code: "general", Name: "General"}
	if _, err := db.NewInsert().Model(&theme).Returning("id").Exec(ctx); err != nil {
		t.Fatalf("seed theme: %v", err)
	}

	expert := domain.BotExpert
	human := domain.User{Username: "alice"}
	bot := domain.User{Username: "bot-magnus", IsBot: true, BotDifficulty: &expert}
	for _, u := range []*domain.User{&human, &bot} {
		if _, err := db.NewInsert().Model(u).Returning("id").Exec(ctx); err != nil {
			t.Fatalf("seed user %s: %v", u.Username, err)
		}
	}

	for i := 0; i < 12; i++ {
		c, d := fmt.Sprintf("wrong c%d", i), fmt.Sprintf("wrong d%d", i)
		q := domain.Question{
			ThemeID:       theme.ID,
			QuestionText:  fmt.Sprintf("question %d", i),
			OptionA:       "right",
			OptionB:       "wrong b",
			OptionC:       &c,
			OptionD:       &d,
			CorrectOption: domain.OptionA,
			IsApproved:    true,
		}
		if _, err := db.NewInsert().Model(&q).Exec(ctx); err != nil {
			t.Fatalf("seed question: %v", err)
		}
	}
	return human.ID, bot.ID
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "trivia", "POSTGRES_PASSWORD": "triviapass", "POSTGRES_DB": "triviadb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://trivia:triviapass@%s:%s/triviadb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
