// Command scoringctl runs administrative scoring tasks against the database.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"challenge-scoring-api/config"
	"challenge-scoring-api/services"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	configPath string
	actorID    int
}

// runtime holds what every subcommand needs once settings are loaded.
type runtime struct {
	settings *config.Settings
	engine   *services.Engine
	actor    services.Actor
	logger   *zap.Logger
	cleanup  func()
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "scoringctl",
		Short:         "Administer scoring configurations and evaluations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Optional config file (yaml)")
	rootCmd.PersistentFlags().IntVar(&opts.actorID, "actor", 0, "User id of the administrator running the command")

	rootCmd.AddCommand(
		newMigrateCmd(opts),
		newRubricCmd(opts),
		newReEvaluateCmd(opts),
		newExportCmd(opts),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads settings and connects to the database. withActor resolves the
// --actor user and requires it to exist.
func setup(ctx context.Context, opts *rootOptions, withActor bool) (*runtime, error) {
	settings, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	logFile, logger := config.InitLogging(settings.Logging)

	db, err := config.InitDB(settings)
	if err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return nil, err
	}

	engineOpts := services.EngineOptions{
		ReEvaluationWorkers: settings.Scoring.ReEvaluationWorkers,
		BatchLockName:       settings.Scoring.BatchLockName,
		ItemTimeout:         settings.Scoring.ItemTimeout,
		TimelineMonths:      settings.Scoring.TimelineMonths,
	}
	closers := []func(){}
	if settings.Redis.Enabled {
		rdb, err := config.NewRedis(ctx, settings.Redis)
		if err != nil {
			logger.Warn("redis unavailable, analytics cache will not be invalidated", zap.Error(err))
		} else {
			closers = append(closers, func() { _ = rdb.Close() })
			engineOpts.Cache = services.NewRedisAnalyticsCache(rdb, settings.Redis.CacheTTL)
		}
	}

	rt := &runtime{
		settings: settings,
		engine:   services.NewEngine(db, engineOpts),
		logger:   logger,
		cleanup: func() {
			for _, fn := range closers {
				fn()
			}
			_ = logger.Sync()
			if logFile != nil {
				logFile.Close()
			}
		},
	}

	if withActor {
		if opts.actorID <= 0 {
			rt.cleanup()
			return nil, fmt.Errorf("--actor is required")
		}
		user, err := rt.engine.Store.GetUser(ctx, opts.actorID)
		if err != nil {
			rt.cleanup()
			return nil, fmt.Errorf("resolve actor: %w", err)
		}
		rt.actor = services.Actor{UserID: user.UserID, RoleID: user.RoleID}
	}
	return rt, nil
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer rt.cleanup()

			sqlDB, err := config.DB.DB()
			if err != nil {
				return err
			}
			if err := config.RunMigrations(sqlDB); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
