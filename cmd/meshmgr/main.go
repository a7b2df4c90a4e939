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

	v1 "mesh_manager/api/v1"
	"mesh_manager/internal/cache"
	"mesh_manager/internal/config"
	"mesh_manager/internal/db"
	"mesh_manager/internal/nodehealth"
	"mesh_manager/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := rootCmd().Execute(); err != nil {
		logrus.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "meshmgr",
		Short:         "Mesh fleet manager: telemetry, liveness and OTA rollouts",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "INI config file (environment variables take precedence)")
	cmd.AddCommand(serveCmd(&configPath), migrateCmd(&configPath))
	return cmd
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and liveness sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			gdb, err := db.OpenMySQL(cfg.MySQL.DSN, log)
			if err != nil {
				return err
			}
			defer db.Close(gdb)
			return db.Migrate(gdb, log)
		},
	}
}

// bootstrap loads configuration and configures the process-wide logger
func bootstrap(configPath string) (*config.Config, *logrus.Entry, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromINI(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	logrus.SetLevel(level)
	if cfg.Log.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	log := logrus.WithField("service", "meshmgr")
	log.Info("✓ Configuration loaded")
	return cfg, log, nil
}

func runServe(parent context.Context, configPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, log, err := bootstrap(configPath)
	if err != nil {
		return err
	}

	gdb, err := db.OpenMySQL(cfg.MySQL.DSN, log)
	if err != nil {
		return err
	}
	defer db.Close(gdb)

	if cfg.Migrate {
		if err := db.Migrate(gdb, log); err != nil {
			return err
		}
	}

	offlineThreshold := time.Duration(cfg.Liveness.OfflineThresholdSec) * time.Second

	// Redis is optional: without it node listings read peer counts from MySQL
	var snapshots *cache.SnapshotStore
	if cfg.Redis.Enabled {
		rdb, err := cache.OpenRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.WithError(err).Warn("Redis unavailable, continuing without snapshot cache")
		} else {
			defer rdb.Close()
			snapshots = cache.NewSnapshotStore(rdb, offlineThreshold)
		}
	}

	var events *ws.Hub
	if cfg.Events.Enabled {
		events = ws.NewHub(log)
		defer events.Close()
	}

	var sweeper *nodehealth.Sweeper
	if cfg.Liveness.Enabled {
		sweepCfg := &nodehealth.Config{
			DB:               gdb,
			Logger:           log,
			Interval:         time.Duration(cfg.Liveness.IntervalSec) * time.Second,
			OfflineThreshold: offlineThreshold,
		}
		if events != nil {
			sweepCfg.Notifier = events
		}
		sweeper = nodehealth.NewSweeper(sweepCfg)
		if err := sweeper.Start(); err != nil {
			return err
		}
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	v1.SetupRouter(r, v1.NewServices(gdb, snapshots, events, log), log)
	if events != nil {
		events.Start()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("✓ Server starting on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down...")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown incomplete")
	}
	if sweeper != nil {
		sweeper.Stop(shutdownCtx)
	}

	if serveErr != nil {
		return fmt.Errorf("server failed: %w", serveErr)
	}
	return nil
}
