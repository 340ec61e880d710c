package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medvault/medvault/internal/config"
	"github.com/medvault/medvault/internal/domain/appointment"
	"github.com/medvault/medvault/internal/domain/dashboard"
	"github.com/medvault/medvault/internal/domain/patient"
	"github.com/medvault/medvault/internal/domain/record"
	"github.com/medvault/medvault/internal/domain/snapshot"
	"github.com/medvault/medvault/internal/platform/db"
	"github.com/medvault/medvault/internal/platform/docstore"
	"github.com/medvault/medvault/internal/platform/middleware"
	"github.com/medvault/medvault/internal/platform/telemetry"
	"github.com/medvault/medvault/internal/platform/validation"
	"github.com/medvault/medvault/migrations"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "medvault",
		Short:        "MedVault patient records server",
		SilenceUsage: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(importCmd())
	root.AddCommand(clearCmd())
	root.AddCommand(migrateCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MedVault API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every collection as one JSON snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, _ := cmd.Flags().GetString("output")
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				snap, err := a.snapshots.Export(ctx)
				if err != nil {
					return err
				}
				data, err := json.Marshal(snap)
				if err != nil {
					return fmt.Errorf("encode snapshot: %w", err)
				}
				if out == "" || out == "-" {
					_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
					return err
				}
				return os.WriteFile(out, data, 0o600)
			})
		},
	}
	cmd.Flags().StringP("output", "o", "", "File to write (default stdout)")
	return cmd
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace collections from a JSON snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				res, err := a.snapshots.Import(ctx, payload)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied: %v\nSkipped: %v\n", res.Applied, res.Skipped)
				return nil
			})
		},
	}
}

func clearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all patients, medical records and appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return errors.New("refusing to delete all data without --yes")
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app) error {
				if err := a.snapshots.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All data cleared.")
				return nil
			})
		},
	}
	cmd.Flags().Bool("yes", false, "Confirm deletion of all data")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations for the postgres store driver",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
				fmt.Fprintf(cmd.OutOrStdout(), "Running migrations on schema: %s\n", schema)
				count, err := m.Up(ctx, schema)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("schema", db.DefaultSchema, "Target schema for migrations")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			return withMigrator(cmd.Context(), func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx, schema)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				printStatuses(cmd.OutOrStdout(), schema, statuses)
				return nil
			})
		},
	}
	statusCmd.Flags().String("schema", db.DefaultSchema, "Target schema for migrations")
	cmd.AddCommand(statusCmd)

	return cmd
}

func printStatuses(w io.Writer, schema string, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "Migration status for schema: %s\n", schema)
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func withMigrator(ctx context.Context, fn func(context.Context, *db.Migrator) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.StoreDriver != "postgres" {
		return fmt.Errorf("migrations apply to the postgres store driver, STORE_DRIVER is %q", cfg.StoreDriver)
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(ctx, db.NewMigrator(pool, migrations.FS))
}

// withApp loads the configuration, opens the store and runs fn against the
// wired services. The store is closed afterwards.
func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	a, err := newApp(ctx, cfg, logger, telemetry.Config{ServiceName: "medvault-cli", Environment: cfg.Env})
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

// app holds the opened store and every service built on it.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	store     docstore.Store
	docs      *docstore.Documents
	telemetry *telemetry.Provider

	patients     *patient.Service
	records      *record.Service
	appointments *appointment.Service
	snapshots    *snapshot.Service
	dashboard    *dashboard.Service
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, tcfg telemetry.Config) (*app, error) {
	policy, err := patient.ParseDeletePolicy(cfg.DeletePolicy)
	if err != nil {
		return nil, err
	}

	store, err := docstore.Open(ctx, docstore.Options{
		Driver:      cfg.StoreDriver,
		DataDir:     cfg.DataDir,
		RedisURL:    cfg.RedisURL,
		DatabaseURL: cfg.DatabaseURL,
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
		KeyPrefix:   cfg.StoreKeyPrefix,
		AutoMigrate: true,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	tcfg.MetricsEnabled = telemetry.BoolPtr(cfg.MetricsEnabled)
	tp := telemetry.NewProvider(tcfg)
	docs := docstore.NewDocuments(store, logger, docstore.WithObserver(tp))

	now := time.Now
	patientRepo := patient.NewDocRepo(docs, now)
	recordRepo := record.NewDocRepo(docs, now)
	appointmentRepo := appointment.NewDocRepo(docs, now)
	v := validation.New()

	patientSvc := patient.NewService(patientRepo, v, patient.Settings{
		DeletePolicy:  policy,
		AgreementText: cfg.ConsentAgreementText,
		Dependents:    []patient.Dependents{recordRepo, appointmentRepo},
		Visits:        recordRepo,
		Now:           now,
	})
	recordSvc := record.NewService(recordRepo, patientSvc, v, record.Settings{
		EnforcePatientReference: cfg.EnforcePatientReference,
		Now:                     now,
	})
	appointmentSvc := appointment.NewService(appointmentRepo, patientSvc, v, appointment.Settings{
		EnforcePatientReference: cfg.EnforcePatientReference,
		Now:                     now,
	})

	return &app{
		cfg:          cfg,
		logger:       logger,
		store:        store,
		docs:         docs,
		telemetry:    tp,
		patients:     patientSvc,
		records:      recordSvc,
		appointments: appointmentSvc,
		snapshots:    snapshot.NewService(docs, logger),
		dashboard:    dashboard.NewService(patientRepo, appointmentRepo),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// storeStats exposes connection pool statistics when the store is postgres.
func (a *app) storeStats() func() interface{} {
	pg, ok := docstore.Unwrap(a.store).(*docstore.Postgres)
	if !ok {
		return nil
	}
	return func() interface{} { return pg.Stats() }
}

func newServer(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(a.telemetry.MetricsMiddleware())
	e.Use(middleware.SecurityHeaders(a.cfg.CORSOrigins))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  a.cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{echo.HeaderContentType, echo.HeaderAccept, middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader, echo.HeaderContentDisposition},
	}))
	e.Use(middleware.BodyLimit(a.cfg.BodyLimit, a.cfg.ImportBodyLimit))
	e.Use(middleware.RequestTimeout(a.cfg.RequestTimeout))

	e.GET("/health", db.HealthHandler(a.docs, a.cfg.StoreDriver, a.storeStats()))
	if a.cfg.MetricsEnabled {
		e.GET("/metrics", a.telemetry.PrometheusHandler())
	}

	apiV1 := e.Group("/api/v1")
	patient.NewHandler(a.patients).RegisterRoutes(apiV1)
	record.NewHandler(a.records).RegisterRoutes(apiV1)
	appointment.NewHandler(a.appointments).RegisterRoutes(apiV1)
	snapshot.NewHandler(a.snapshots, time.Now).RegisterRoutes(apiV1)
	dashboard.NewHandler(a.dashboard, time.Now).RegisterRoutes(apiV1)

	return e
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger, telemetry.Config{
		ServiceName:    "medvault",
		Environment:    cfg.Env,
		RuntimeMetrics: true,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open document store")
	}
	defer a.Close()

	e := newServer(a)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("driver", cfg.StoreDriver).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
