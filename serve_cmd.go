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

	"github.com/spf13/cobra"

	"pixbatch/codec"
	"pixbatch/config"
	"pixbatch/credentials"
	"pixbatch/failures"
	"pixbatch/job"
	"pixbatch/logger"
	"pixbatch/routes"
	"pixbatch/success"
)

const (
	recordCleanupInterval = 24 * time.Hour
	stateCleanupInterval  = 10 * time.Minute
	stateRetention        = time.Hour
	shutdownTimeout       = 30 * time.Second
)

func newServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP conversion server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = config.GetListenAddr()
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default $PIXBATCH_ADDR or :8080)")
	return cmd
}

func serve(ctx context.Context, addr string) error {
	logger.Info("Starting pixbatch server initialization")
	defer logger.Close()

	if err := os.MkdirAll(config.GetDataDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger.Debug("Initializing credentials database")
	if err := credentials.OpenDB(config.GetCredentialsDBPath()); err != nil {
		return fmt.Errorf("failed to initialize credentials store: %w", err)
	}
	defer credentials.CloseDB()

	logger.Debug("Initializing failures database")
	if err := failures.Init(config.GetFailuresDBPath()); err != nil {
		return fmt.Errorf("failed to initialize failure store: %w", err)
	}
	defer failures.Close()

	logger.Debug("Initializing success database")
	if err := success.Init(config.GetSuccessDBPath()); err != nil {
		return fmt.Errorf("failed to initialize success store: %w", err)
	}
	defer success.Close()
	logger.Info("Record stores initialized")

	serveDir := config.GetDirectServeBaseDir()
	if err := os.MkdirAll(serveDir, 0o755); err != nil {
		return fmt.Errorf("failed to create serve dir: %w", err)
	}

	lib := codec.Default()
	logger.Infof("Encoders available: %v", lib.Formats())

	coordinator := newCoordinator(lib)
	coordinator.Recorder = job.StoreRecorder{}
	coordinator.Archives = &job.ArchivePublisher{Lookup: credentials.GetCredentials, ServeDir: serveDir}
	coordinator.Callbacks = job.NewCallbackSender()
	server := routes.NewServer(coordinator, serveDir)

	go cleanupRoutine(ctx, server.States)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("pixbatch server listening on %s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down, waiting for running conversions")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

// cleanupRoutine drops old success and failure records once a day and
// forgets finished job states after an hour.
func cleanupRoutine(ctx context.Context, states *job.States) {
	logger.Info("Cleanup routine started")
	records := time.NewTicker(recordCleanupInterval)
	defer records.Stop()
	jobs := time.NewTicker(stateCleanupInterval)
	defer jobs.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Cleanup routine stopped due to context cancellation")
			return
		case <-jobs.C:
			if n := states.Prune(time.Now().Add(-stateRetention)); n > 0 {
				logger.Debugf("Forgot %d finished jobs", n)
			}
		case <-records.C:
			cleanupRecords(time.Duration(config.GetRecordMaxAgeHours()) * time.Hour)
		}
	}
}

func cleanupRecords(maxAge time.Duration) {
	logger.Infof("Cleaning up records older than %v", maxAge)
	if n, err := success.CleanupOldRecords(maxAge); err != nil {
		logger.Errorf("Failed to cleanup old success records: %v", err)
	} else {
		logger.Infof("Removed %d old success records", n)
	}
	if n, err := failures.CleanupOldRecords(maxAge); err != nil {
		logger.Errorf("Failed to cleanup old failure records: %v", err)
	} else {
		logger.Infof("Removed %d old failure records", n)
	}
}
