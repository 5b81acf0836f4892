package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"northwind/internal/config"
	"northwind/internal/domain/customer"
	"northwind/internal/infrastructure/database/sqlite"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestInitializeApp(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, log := initializeApp()

	require.NotNil(t, cfg, "Config should not be nil")
	assert.NotNil(t, log, "Logger should not be nil")
	assert.Equal(t, config.DriverSQLite, cfg.Database.Driver)
}

func TestInitializeStore(t *testing.T) {
	ctx := context.Background()

	t.Run("sqlite", func(t *testing.T) {
		cfg := config.DatabaseConfig{Driver: config.DriverSQLite, URL: filepath.Join(t.TempDir(), "northwind.db")}

		repo, closeStore, err := initializeStore(ctx, cfg, nil, testLogger)
		require.NoError(t, err)
		defer closeStore()

		assert.IsType(t, &sqlite.CustomerRepository{}, repo)
		customers, err := repo.GetCustomerList(ctx)
		require.NoError(t, err)
		assert.Empty(t, customers)
	})

	t.Run("postgres with invalid url", func(t *testing.T) {
		cfg := config.DatabaseConfig{Driver: config.DriverPostgres, URL: "invalid-url"}

		repo, closeStore, err := initializeStore(ctx, cfg, nil, testLogger)
		assert.Error(t, err)
		assert.Nil(t, repo)
		assert.Nil(t, closeStore)
	})

	t.Run("unsupported driver", func(t *testing.T) {
		repo, _, err := initializeStore(ctx, config.DatabaseConfig{Driver: "mysql", URL: "x"}, nil, testLogger)
		assert.EqualError(t, err, `unsupported database driver "mysql"`)
		assert.Nil(t, repo)
	})
}

func TestInitializeMessaging(t *testing.T) {
	ctx := context.Background()
	repo, closeStore, err := initializeStore(ctx, config.DatabaseConfig{Driver: config.DriverSQLite, URL: ":memory:"}, nil, testLogger)
	require.NoError(t, err)
	defer closeStore()
	manager := customer.NewCustomerManager(repo, testLogger)

	t.Run("disabled", func(t *testing.T) {
		got, closeMessaging, err := initializeMessaging(config.MessagingConfig{}, manager, testLogger)
		require.NoError(t, err)
		closeMessaging()
		assert.Same(t, manager, got)
	})

	t.Run("bad url", func(t *testing.T) {
		got, closeMessaging, err := initializeMessaging(config.MessagingConfig{Enabled: true, URL: "http://localhost", Exchange: "northwind.customers"}, manager, testLogger)
		assert.ErrorContains(t, err, "failed to connect to RabbitMQ")
		assert.Nil(t, got)
		assert.Nil(t, closeMessaging)
	})
}

func TestStartServer(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:         0,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  5 * time.Second,
		},
	}
	router := http.NewServeMux()

	srv, serverErrors, shutdownChan := startServer(cfg, router, testLogger)
	defer srv.Close()

	assert.NotNil(t, srv, "Server should not be nil")
	assert.NotNil(t, serverErrors, "Server errors channel should not be nil")
	assert.NotNil(t, shutdownChan, "Shutdown channel should not be nil")
	assert.Equal(t, ":0", srv.Addr)
}

func TestHandleShutdown(t *testing.T) {
	t.Run("signal triggers graceful shutdown", func(t *testing.T) {
		srv := &http.Server{}
		shutdownChan := make(chan os.Signal, 1)
		serverErrors := make(chan error, 1)

		shutdownChan <- syscall.SIGINT
		serverErrors <- nil

		assert.NoError(t, handleShutdown(srv, shutdownChan, serverErrors, testLogger))
	})

	t.Run("server failure before signal", func(t *testing.T) {
		srv := &http.Server{}
		shutdownChan := make(chan os.Signal, 1)
		serverErrors := make(chan error, 1)
		serverErrors <- errors.New("address already in use")

		err := handleShutdown(srv, shutdownChan, serverErrors, testLogger)
		assert.EqualError(t, err, "address already in use")
	})
}
