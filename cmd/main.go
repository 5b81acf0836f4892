package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"northwind/internal/api"
	"northwind/internal/config"
	"northwind/internal/domain/customer"
	"northwind/internal/event"
	"northwind/internal/infrastructure/database/postgres"
	"northwind/internal/infrastructure/database/sqlite"
	"northwind/internal/infrastructure/logging"
	"northwind/internal/infrastructure/monitoring"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/metric"
)

const shutdownTimeout = 20 * time.Second

func main() {
	cfg, logger := initializeApp()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	meterProvider, err := monitoring.NewMeterProvider(prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error("Failed to initialize OpenTelemetry metrics", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shut down meter provider", "error", err)
		}
	}()

	repo, closeStore, err := initializeStore(ctx, cfg.Database, meterProvider, logger)
	if err != nil {
		logger.Error("Failed to initialize customer store", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	manager, closeMessaging, err := initializeMessaging(cfg.Messaging, customer.NewCustomerManager(repo, logger), logger)
	if err != nil {
		logger.Error("Failed to initialize customer events", "error", err)
		closeStore()
		os.Exit(1)
	}
	defer closeMessaging()

	router := api.SetupRouter(ctx, manager, cfg, logger)

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	if err := handleShutdown(srv, shutdownChan, serverErrors, logger); err != nil {
		cancel()
		closeMessaging()
		closeStore()
		os.Exit(1)
	}
}

func initializeApp() (*config.Config, *slog.Logger) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logger)
	logger.Info("Application starting...", "config_source", viper.ConfigFileUsed(), "driver", cfg.Database.Driver)

	return cfg, logger
}

// initializeStore opens the configured database and returns the repository over it together with
// a func that releases the connection.
func initializeStore(ctx context.Context, cfg config.DatabaseConfig, meterProvider metric.MeterProvider, logger *slog.Logger) (customer.Repository, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		logger.Info("Initializing database connection pool...")
		dbPool, err := postgres.NewConnectionPool(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			logger.Info("Closing database connection pool...")
			dbPool.Close()
		}
		return postgres.NewCustomerRepository(dbPool, logger), closeFn, nil

	case config.DriverSQLite:
		logger.Info("Initializing SQLite database...")
		db, err := sqlite.Open(ctx, cfg, meterProvider, logger)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			logger.Info("Closing SQLite database...")
			if err := db.Close(); err != nil {
				logger.Error("Failed to close SQLite database", "error", err)
			}
		}
		return sqlite.NewCustomerRepository(db, logger), closeFn, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// initializeMessaging decorates the manager with a RabbitMQ publisher when messaging is enabled.
func initializeMessaging(cfg config.MessagingConfig, manager customer.CustomerManager, logger *slog.Logger) (customer.CustomerManager, func(), error) {
	if !cfg.Enabled {
		logger.Info("Customer events disabled")
		return manager, func() {}, nil
	}

	logger.Info("Connecting to RabbitMQ...", "exchange", cfg.Exchange)
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	publisher, err := event.NewRabbitMQEventPublisher(conn, cfg.Exchange, logger)
	if err != nil {
		_ = conn.Close()
		return nil, nil, err
	}

	closeFn := func() {
		logger.Info("Closing RabbitMQ connection...")
		if err := conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			logger.Error("Failed to close RabbitMQ connection", "error", err)
		}
	}
	return event.NewPublishingCustomerManager(manager, publisher, logger), closeFn, nil
}

func startServer(cfg *config.Config, router http.Handler, logger *slog.Logger) (*http.Server, <-chan error, <-chan os.Signal) {
	logger.Info("Setting up HTTP server...", "port", cfg.Server.Port)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("Server listening", "addr", srv.Addr)
		err := srv.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			serverErrors <- err
		} else {
			logger.Info("Server closed gracefully.")
			serverErrors <- nil
		}
	}()
	return srv, serverErrors, shutdownChan
}

// handleShutdown blocks until a signal or a server failure and then drains the server. It returns
// an error only when the server died before any signal arrived.
func handleShutdown(srv *http.Server, shutdownChan <-chan os.Signal, serverErrors <-chan error, logger *slog.Logger) error {
	logger.Info("Shutdown handler started. Waiting for signal or server error...")

	var triggerReason string
	select {
	case sig := <-shutdownChan:
		triggerReason = "signal: " + sig.String()
		logger.Info("Shutdown signal received.", "signal", sig.String())
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server exited unexpectedly before signal", "error", err)
			return err
		}
		logger.Info("Server goroutine finished before signal.")
		return nil
	}

	logger.Info("Starting graceful shutdown...", "trigger", triggerReason)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", "error", err)
		if err := srv.Close(); err != nil {
			logger.Error("HTTP server forced close failed", "error", err)
		}
	} else {
		logger.Info("HTTP server gracefully stopped.")
	}

	select {
	case err := <-serverErrors:
		if err != nil {
			logger.Warn("Server goroutine exited with unexpected error after shutdown", "error", err)
		} else {
			logger.Info("Server goroutine confirmed exit.")
		}
	case <-time.After(5 * time.Second):
		logger.Warn("Timed out waiting for server goroutine confirmation.")
	}

	logger.Info("Application shutdown process complete.")
	return nil
}
