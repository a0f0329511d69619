package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"campus_nav/internal/assistant"
	"campus_nav/internal/config"
	"campus_nav/internal/controllers"
	"campus_nav/internal/logger"
	"campus_nav/internal/middleware"
	"campus_nav/internal/routes"
	"campus_nav/internal/seed"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Minute
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "campusnav",
		Short:         "Campus navigation assistant backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newSeedCmd(),
		newVerifyLoginCmd(),
	)
	return root
}

// bootstrap loads config, sets up logging and connects to the database.
func bootstrap() (config.Config, error) {
	cfg := config.Load()
	logger.Setup(cfg.LogFile, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Error("Invalid configuration")
		return cfg, err
	}
	if err := config.InitDB(cfg); err != nil {
		logrus.WithError(err).Error("Database setup failed")
		return cfg, err
	}
	return cfg, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap()
			if err != nil {
				return err
			}
			middleware.Configure(cfg.JWTSecret, cfg.TokenTTL)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store := assistant.NewStore(
				assistant.NewExtractor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel),
				assistant.DefaultSessionTTL,
			)
			controllers.SetAssistantStore(store)

			srv := &http.Server{
				Addr:              "0.0.0.0:" + cfg.Port,
				Handler:           middleware.EnableCORS(routes.SetupRouter(), cfg.CORSOrigins...),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				logrus.Infof("Server running at %s", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				return controllers.Visitors.Run(gctx)
			})
			g.Go(func() error {
				return store.Run(gctx, sweepInterval)
			})
			g.Go(func() error {
				<-gctx.Done()
				logrus.Info("Shutting down server")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				return srv.Shutdown(shutdownCtx)
			})

			if err := g.Wait(); err != nil {
				logrus.WithError(err).Error("Server stopped with error")
				return err
			}
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := bootstrap(); err != nil {
				return err
			}
			logrus.Info("Migrations applied")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load demo maps, pins, routes and admins",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := bootstrap()
			if err != nil {
				return err
			}
			data, err := seed.Load(file)
			if err != nil {
				return err
			}
			res, err := seed.Apply(cmd.Context(), config.DB, data, cfg.SeedAdminPassword)
			if err != nil {
				logrus.WithError(err).Error("Seeding failed")
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d maps, %d pins, %d routes, %d admins\n",
				res.Maps, res.Pins, res.Routes, res.Admins)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "seed YAML file (defaults to the embedded demo campus)")
	return cmd
}

func newVerifyLoginCmd() *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "verify-login",
		Short: "Check an admin's credentials against the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := bootstrap(); err != nil {
				return err
			}
			admin, err := controllers.Authenticate(config.DB, username, password)
			if err != nil {
				return fmt.Errorf("login failed for %q: %w", username, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %s (%s)\n", admin.Username, admin.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "admin username")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}
