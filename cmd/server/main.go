// Command server runs the appointment booking HTTP service.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/dgi-platform/rendezvous-service/internal/app"
	"github.com/dgi-platform/rendezvous-service/internal/config"
	"github.com/dgi-platform/rendezvous-service/internal/httpapi"
	"github.com/dgi-platform/rendezvous-service/internal/logging"
	"github.com/dgi-platform/rendezvous-service/internal/metrics"
	"github.com/dgi-platform/rendezvous-service/internal/middleware"
	"github.com/dgi-platform/rendezvous-service/internal/notify"
	"github.com/dgi-platform/rendezvous-service/internal/seed"
	"github.com/dgi-platform/rendezvous-service/internal/storage/postgres"
)

func main() {
	migrateOnly := flag.Bool("migrate-only", false, "apply pending migrations and exit")
	seedOnly := flag.Bool("seed-only", false, "apply the seed file and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logging.New("server", cfg.Logging.Level, cfg.Logging.Format)
	if cfg.UsesDefaultSecret() {
		log.Warn("JWT_SECRET is not set; using the insecure development default")
	}

	if err := run(cfg, log, *migrateOnly, *seedOnly); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}

func run(cfg *config.Config, log *logging.Logger, migrateOnly, seedOnly bool) error {
	stores := app.Stores{}

	if cfg.Database.DSN != "" {
		db, err := openDatabase(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		if cfg.Database.Migrate || migrateOnly {
			if err := applyMigrations(cfg.Database, log); err != nil {
				return err
			}
		}
		if migrateOnly {
			return nil
		}

		store := postgres.New(db)
		stores = app.Stores{Users: store, Motifs: store, RendezVous: store}
	} else {
		log.Warn("DATABASE_URL is not set; using the in-memory store")
		if migrateOnly {
			return errors.New("cannot migrate without DATABASE_URL")
		}
	}

	var notifier notify.Notifier
	if cfg.MailEnabled() {
		smtp, err := notify.NewSMTPNotifier(cfg.Mail)
		if err != nil {
			return fmt.Errorf("configure mail transport: %w", err)
		}
		notifier = smtp
		log.WithField("host", cfg.Mail.Host).Info("mail transport configured")
	} else {
		log.Info("mail transport not configured; notifications are logged only")
	}

	application := app.New(app.Options{
		Stores:    stores,
		Notifier:  notifier,
		JWTSecret: cfg.Auth.JWTSecret,
		TokenTTL:  cfg.Auth.TokenTTL,
		Logger:    log,
	})

	if err := seed.Apply(context.Background(), cfg.Seed.Path, application.Stores.Users, application.Stores.Motifs, log.WithField("component", "seed")); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	if seedOnly {
		return nil
	}

	loginLimiter := middleware.NewLoginLimiter(cfg.Login.MaxAttempts, cfg.Login.Window, log)
	loginLimiter.StartCleanup(time.Hour)

	handler := httpapi.NewHandler(application, httpapi.Options{LoginLimiter: loginLimiter})

	tracing := middleware.NewTracingMiddleware(log.WithField("component", "http"))
	cors := middleware.NewCORSMiddleware(cfg.CORS.AllowedOrigin)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      tracing.Handler(cors.Handler(metrics.InstrumentHandler(handler))),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func applyMigrations(cfg config.DatabaseConfig, log *logging.Logger) error {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return fmt.Errorf("open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+cfg.MigrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("open migrations at %s: %w", cfg.MigrationsPath, err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("database schema up to date")
			return nil
		}
		return fmt.Errorf("apply migrations: %w", err)
	}

	log.Info("migrations applied")
	return nil
}
