package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"trivia-game-service/internal/config"
	"trivia-game-service/internal/infra/memory"
)

// NewSeedCmd loads the demo theme, users and question bank into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the database with demo users and questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runSeed(cmd.Context(), cfg)
		},
	}
}

func runSeed(ctx context.Context, cfg config.Config) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	fx := memory.Fixtures()

	theme := fx.Theme
	if _, err := db.NewInsert().Model(&theme).
		On("CONFLICT (code) DO UPDATE").
		Set("name = EXCLUDED.name").
		Returning("id").
		Exec(ctx); err != nil {
		return fmt.Errorf("seed theme: %w", err)
	}

	for i := range fx.Users {
		u := fx.Users[i]
		if _, err := db.NewInsert().Model(&u).Exec(ctx); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Username, err)
		}
	}

	for i := range fx.Questions {
		q := fx.Questions[i]
		q.ThemeID = theme.ID
		if _, err := db.NewInsert().Model(&q).Exec(ctx); err != nil {
			return fmt.Errorf("seed question: %w", err)
		}
	}

	logrus.Infof("seeded %d users and %d questions", len(fx.Users), len(fx.Questions))
	return nil
}
