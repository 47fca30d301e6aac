package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"
	"twipost/auth"
	"twipost/handlers"
	"twipost/storage/persistent"
	"twipost/storage/relational"
	"twipost/utils"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func loadConfig() (*utils.Config, error) {
	utils.LoadDotEnv()
	cfg, err := utils.LoadConfig()
	if err != nil {
		return nil, err
	}
	if err := utils.ConfigureLogging(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the web site and the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := CreateServer(ctx, cfg)
			if err != nil {
				return err
			}
			errs := make(chan error, 1)
			go func() {
				log.Printf("Start serving on %s", srv.Addr)
				errs <- srv.ListenAndServe()
			}()

			select {
			case err := <-errs:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			log.Printf("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables or indexes for the configured storage",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			switch cfg.StorageMode {
			case utils.Relational:
				db, err := relational.Open(cfg.DatabaseURL)
				if err != nil {
					return err
				}
				if sqlDB, err := db.DB(); err == nil {
					defer sqlDB.Close()
				}
				if err := relational.Migrate(ctx, db); err != nil {
					return err
				}
			case utils.Mongo:
				// connecting creates the indexes
				s, err := persistent.CreateMongoStorage(ctx, cfg.MongoURL, cfg.MongoDBName)
				if err != nil {
					return err
				}
				defer s.Close(ctx)
			default:
				log.Printf("Nothing to migrate for '%s' STORAGE_MODE", cfg.StorageMode)
				return nil
			}
			log.Printf("Migrated '%s' storage", cfg.StorageMode)
			return nil
		},
	}
}

// validateNewUser applies the registration form rules to createuser flags.
func validateNewUser(username, email, password string) error {
	form := &handlers.RegistrationForm{
		Username:  username,
		Email:     email,
		Password1: password,
		Password2: password,
	}
	errs := form.Validate()
	if errs == nil {
		return nil
	}
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	problems := make([]string, 0, len(fields))
	for _, field := range fields {
		problems = append(problems, field+": "+strings.Join(errs[field], " "))
	}
	return fmt.Errorf("invalid user: %s", strings.Join(problems, "; "))
}

func createUserCmd() *cobra.Command {
	var username, email, password string
	cmd := &cobra.Command{
		Use:   "createuser",
		Short: "Create a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.StorageMode == utils.InMemory {
				return fmt.Errorf("users of '%s' STORAGE_MODE do not outlive the process", cfg.StorageMode)
			}
			if err := validateNewUser(username, email, password); err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := OpenStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer s.Close(ctx)

			user, err := auth.CreateUser(ctx, s, username, email, password)
			if err != nil {
				return err
			}
			log.WithField("user", user.Username).Info("user created")
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "login name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "twipost",
		Short:        "Short text posts with accounts",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(serveCmd(), migrateCmd(), createUserCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
