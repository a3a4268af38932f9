package cli

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"trivia-game-service/internal/config"
	"trivia-game-service/internal/game"
	"trivia-game-service/internal/infra/memory"
	"trivia-game-service/internal/infra/postgres"
	infraredis "trivia-game-service/internal/infra/redis"
	transport "trivia-game-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	// The storage backend is chosen once here: Postgres when configured,
	// otherwise the in-memory fixture backend. Nothing downstream branches
	// on database availability again.
	var (
		store game.Store
		bank  game.QuestionBank
	)
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		db := bun.NewDB(sqldb, pgdialect.New())
		defer db.Close()

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()

		store = postgres.NewStore(db)
		bank = postgres.NewQuestionBank(pool)
		log.Info("using postgres backend")
	} else {
		fixture := memory.NewFixtureStore()
		store = fixture
		bank = fixture
		log.Info("postgres url not set, using in-memory fixture backend")
	}

	service := game.NewService(store, bank, game.RulesFromConfig(cfg.Game), log)

	var leaderboards transport.LeaderboardProvider = service
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ttl := config.Duration(cfg.Redis.TTL, 5*time.Second)
		leaderboards = infraredis.NewLeaderboardCache(redisClient, service, ttl)
		log.Info("leaderboard cache enabled")
	}

	handler := transport.NewHandler(service, leaderboards, log)
	wsHandler := transport.NewWSHandler(leaderboards, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)
	mux.HandleFunc("/ws/leaderboard", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.CORS(cfg.Server.CORSOrigins, mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Infof("starting trivia game service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	// Let in-flight bot answers settle before closing the store.
	service.Wait()
	return nil
}
