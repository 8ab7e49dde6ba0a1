package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parrishdev/pitwall/internal/config"
	"github.com/parrishdev/pitwall/internal/database"
	"github.com/parrishdev/pitwall/internal/drivers"
	"github.com/parrishdev/pitwall/internal/jolpica"
	"github.com/parrishdev/pitwall/internal/logging"
	"github.com/parrishdev/pitwall/internal/openf1"
	"github.com/parrishdev/pitwall/internal/races"
	"github.com/parrishdev/pitwall/internal/server"
	"github.com/parrishdev/pitwall/internal/settings"
	"github.com/parrishdev/pitwall/internal/stream"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pitwall",
		Short: "Formula 1 cache and API service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	refreshCmd := &cobra.Command{
		Use:   "refresh",
		Short: "Fetch the season schedule and driver standings once, then exit",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefresh(cmd.Context())
		},
	}
	rootCmd.AddCommand(refreshCmd)

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().Int("season", defaults.GetInt("season"), "Championship season to cache")
	cmd.PersistentFlags().Duration("staleness-threshold", defaults.GetDuration("staleness.threshold"), "Cache staleness threshold")
	cmd.PersistentFlags().String("jolpica-url", defaults.GetString("api.jolpica_url"), "Historical API base URL")
	cmd.PersistentFlags().String("openf1-url", defaults.GetString("api.openf1_url"), "Telemetry API base URL")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "season", "season")
	bindFlag(cmd, "staleness.threshold", "staleness-threshold")
	bindFlag(cmd, "api.jolpica_url", "jolpica-url")
	bindFlag(cmd, "api.openf1_url", "openf1-url")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

type application struct {
	config      config.AppConfig
	logger      *zap.Logger
	raceStore   *races.Store
	driverStore *drivers.Store
	settings    *settings.Store
}

func buildApplication() (*application, func(), error) {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		sqlDB.Close()
		logger.Sync() //nolint:errcheck
	}

	dispatcher := stream.NewDispatcher()

	historical := jolpica.NewClient(jolpica.ClientConfig{
		BaseURL: appConfig.JolpicaBaseURL,
		Logger:  logger,
	})
	telemetry := openf1.NewClient(openf1.ClientConfig{
		BaseURL: appConfig.OpenF1BaseURL,
		Logger:  logger,
	})

	raceStore, err := races.NewStore(races.StoreConfig{
		Database:   db,
		API:        historical,
		Dispatcher: dispatcher,
		StaleAfter: appConfig.StalenessThreshold,
		Logger:     logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	driverStore, err := drivers.NewStore(drivers.StoreConfig{
		Database:   db,
		Roster:     telemetry,
		Standings:  historical,
		Dispatcher: dispatcher,
		StaleAfter: appConfig.StalenessThreshold,
		Season:     appConfig.Season,
		Logger:     logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	settingsStore, err := settings.NewStore(settings.StoreConfig{
		Database:   db,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return &application{
		config:      appConfig,
		logger:      logger,
		raceStore:   raceStore,
		driverStore: driverStore,
		settings:    settingsStore,
	}, cleanup, nil
}

func runServer(ctx context.Context) error {
	app, cleanup, err := buildApplication()
	if err != nil {
		return err
	}
	defer cleanup()

	handler, err := server.NewHTTPHandler(server.Dependencies{
		RaceStore:     app.raceStore,
		DriverStore:   app.driverStore,
		SettingsStore: app.settings,
		Logger:        app.logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    app.config.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("server starting",
			zap.String("address", app.config.HTTPAddress),
			zap.Int("season", app.config.Season))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// runRefresh warms the cache in one shot: schedule first, then the merged
// driver roster. Useful for cron or for seeding a fresh database.
func runRefresh(ctx context.Context) error {
	app, cleanup, err := buildApplication()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := app.raceStore.RefreshRaces(ctx, app.config.Season, true); err != nil {
		return err
	}
	if err := app.driverStore.RefreshLatestDrivers(ctx, true); err != nil {
		return err
	}
	app.logger.Info("cache refreshed", zap.Int("season", app.config.Season))
	return nil
}
