package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rvestal/habitat/internal/backup"
	"github.com/rvestal/habitat/internal/database"
	"github.com/rvestal/habitat/internal/logging"
	"github.com/rvestal/habitat/internal/server"
)

func main() {
	logger := logging.Setup(os.Getenv("HABITAT_LOG_LEVEL"), os.Getenv("HABITAT_LOG_FORMAT"))

	port := os.Getenv("HABITAT_PORT")
	if port == "" {
		port = "8080"
	}

	dbPath := os.Getenv("HABITAT_DB_PATH")
	if dbPath == "" {
		dbPath = "habitat.db"
	}

	jwtSecret := os.Getenv("HABITAT_JWT_SECRET")
	if jwtSecret == "" {
		logger.Error("HABITAT_JWT_SECRET is required")
		os.Exit(1)
	}

	db, err := database.Open(dbPath)
	if err != nil {
		logger.Error("open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	backupCfg := backup.Config{
		DBPath: dbPath,
		S3: backup.S3Config{
			Endpoint:  os.Getenv("HABITAT_S3_ENDPOINT"),
			Bucket:    os.Getenv("HABITAT_S3_BUCKET"),
			Region:    os.Getenv("HABITAT_S3_REGION"),
			AccessKey: os.Getenv("HABITAT_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("HABITAT_S3_SECRET_KEY"),
		},
	}

	srv := server.New(db, jwtSecret, backupCfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv.BackupManager().Start(ctx)
	if sched := srv.PushScheduler(); sched != nil {
		sched.Start(ctx)
	}

	// Hourly cleanup of expired sessions and stale rate-limit buckets
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := srv.SessionStore().DeleteExpired(); err != nil {
					logger.Error("session cleanup", "error", err)
				} else if n > 0 {
					logger.Info("expired sessions removed", "count", n)
				}
				srv.RateLimiter().Cleanup()
			}
		}
	}()

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      srv.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("habitat listening", "port", port, "db", dbPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
	srv.BackupManager().Stop()
	if sched := srv.PushScheduler(); sched != nil {
		sched.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
