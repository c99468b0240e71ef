package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/checklanehq/checklane/internal/billing"
	"github.com/checklanehq/checklane/internal/bootstrap"
	"github.com/checklanehq/checklane/internal/clock"
	"github.com/checklanehq/checklane/internal/config"
	"github.com/checklanehq/checklane/internal/license"
	"github.com/checklanehq/checklane/internal/mailer"
	"github.com/checklanehq/checklane/internal/migration"
	"github.com/checklanehq/checklane/internal/observability"
	"github.com/checklanehq/checklane/internal/providers/payment"
	"github.com/checklanehq/checklane/internal/ratelimit"
	"github.com/checklanehq/checklane/internal/redis"
	"github.com/checklanehq/checklane/internal/referral"
	"github.com/checklanehq/checklane/internal/scheduler"
	"github.com/checklanehq/checklane/internal/server"
	"github.com/checklanehq/checklane/internal/tenant"
	"github.com/checklanehq/checklane/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "checklane",
		Short:   "Checklane subscription and license reconciliation engine",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(newMigrateCmd(), newServeCmd(), newSchedulerCmd(), newAllCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and activate schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

func newSchedulerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scheduler",
		Short: "Run background maintenance jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			runScheduler()
			return nil
		},
	}
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run migrations, then start the server and scheduler together",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrate(); err != nil {
				return err
			}
			runMonolith()
			return nil
		},
	}
}

func runMigrate() error {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		migration.Module,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}
	_ = app.Stop(context.Background())
	return nil
}

func runServe() {
	app := fx.New(
		coreModules(),
		serveModules(),
	)
	app.Run()
}

func runScheduler() {
	app := fx.New(
		coreModules(),
		payment.Module,
		mailer.Module,
		tenant.Module,
		billing.Module,
		referral.Module,
		scheduler.Module,
		fx.Invoke(scheduler.Run),
	)
	app.Run()
}

func runMonolith() {
	app := fx.New(
		coreModules(),
		serveModules(),
		scheduler.Module,
		fx.Invoke(scheduler.Run),
	)
	app.Run()
}

// coreModules is the shared infrastructure every entrypoint needs.
func coreModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		bootstrap.Module,
		fx.Invoke(bootstrap.EnforceSchemaGate),
	)
}

func serveModules() fx.Option {
	return fx.Options(
		redis.Module,
		ratelimit.Module,
		payment.Module,
		mailer.Module,
		tenant.Module,
		license.Module,
		billing.Module,
		referral.Module,
		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Invoke(func(s *server.Server) { s.RegisterRoutes() }),
		fx.Invoke(server.RunHTTP),
	)
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
