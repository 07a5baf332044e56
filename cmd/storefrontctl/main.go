// Command storefrontctl runs operator tasks against the storefront database.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prepvault/storefront/internal/config"
	"github.com/prepvault/storefront/internal/db"
	"github.com/prepvault/storefront/internal/logging"
	"github.com/prepvault/storefront/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var Version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "storefrontctl",
		Short:         "Operator tooling for the storefront API",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(hashPasswordCmd())
	rootCmd.AddCommand(cleanupCmd())
	rootCmd.AddCommand(promoteAdminCmd())
	return rootCmd
}

func migrateCmd() *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply the embedded goose migrations to the configured database.

Examples:
  storefrontctl migrate
  storefrontctl migrate --status`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			dsn, err := db.BuildPostgresURL(cfg.Postgres)
			if err != nil {
				return err
			}
			if status {
				return db.MigrationStatus(cmd.Context(), dsn)
			}
			if err := db.Migrate(cmd.Context(), dsn); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "print migration status instead of applying")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Long: `Print a bcrypt hash suitable for ADMIN_PASSWORD_HASH.

The password is read from the first argument, or from stdin when omitted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := passwordInput(cmd, args)
			if err != nil {
				return err
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(hash))
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}

func passwordInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", errors.New("password is required")
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is required")
	}
	return password, nil
}

func cleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired refresh tokens and admin sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, cfg config.Config, database *db.Postgres, logger *zap.Logger) error {
				result, err := service.NewCleanupService(database, cfg.Server.CleanupInterval, logger).RunOnce(ctx)
				fmt.Fprintf(cmd.OutOrStdout(), "removed %d refresh tokens, %d admin sessions\n", result.RefreshTokens, result.AdminSessions)
				return err
			})
		},
	}
}

func promoteAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "promote-admin [email]",
		Short: "Grant the admin role to an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd.Context(), func(ctx context.Context, cfg config.Config, database *db.Postgres, _ *zap.Logger) error {
				tokens, err := service.NewTokenService(database, cfg.Auth)
				if err != nil {
					return err
				}
				if err := service.NewAuthService(database, tokens).PromoteAdmin(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s is now an admin\n", args[0])
				return nil
			})
		},
	}
}

func withDatabase(ctx context.Context, fn func(context.Context, config.Config, *db.Postgres, *zap.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Server, cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	pool, err := db.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	database := db.New(pool)
	defer database.Close()

	return fn(ctx, cfg, database, logger)
}
