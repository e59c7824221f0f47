package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/example/bug-intake/internal/api"
	"github.com/example/bug-intake/internal/blobstore"
	"github.com/example/bug-intake/internal/classifier"
	"github.com/example/bug-intake/internal/config"
	"github.com/example/bug-intake/internal/httpclient"
	"github.com/example/bug-intake/internal/linter"
	"github.com/example/bug-intake/internal/logger"
	"github.com/example/bug-intake/internal/orchestrator"
	"github.com/example/bug-intake/internal/patterns"
	"github.com/example/bug-intake/internal/scanner"
	"github.com/example/bug-intake/internal/storage"
)

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:          "bug-intake",
		Short:        "Upload source files, scan them for bug patterns and record findings.",
		SilenceUsage: true,
		RunE:         runServe,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")

	root.AddCommand(&cobra.Command{
		Use:          "serve",
		Short:        "Run the HTTP server",
		SilenceUsage: true,
		RunE:         runServe,
	})
	root.AddCommand(newScanCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	log := logger.New(cfg, "bug-intake")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	service, store, err := buildService(ctx, cfg, log)
	cancel()
	if err != nil {
		return err
	}
	defer closeStore(store, log)

	mux := http.NewServeMux()
	api.NewHandlers(service, log, cfg.MaxUploadBytes).Routes(mux)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownErr := make(chan error, 1)
	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownErr <- server.Shutdown(ctx)
	}()

	log.Info("server listening", "addr", cfg.Addr())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	if err := <-shutdownErr; err != nil {
		log.Error("shutdown error", "error", err)
	}
	return nil
}

// buildService also returns the findings store so the caller can release
// its connections on shutdown.
func buildService(ctx context.Context, cfg *config.Config, log hclog.Logger) (*orchestrator.Service, storage.Store, error) {
	blobs, err := newBlobStore(cfg, log)
	if err != nil {
		return nil, nil, err
	}

	store, err := storage.NewStore(ctx, cfg.Database.DSN, cfg.Database.Table)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open findings store: %w", err)
	}
	if cfg.Database.DSN == "" {
		log.Warn("DATABASE_URL not set, findings are kept in memory")
	}

	lines := scanner.New(patterns.Default())
	httpc := httpclient.New(log.Named("http"), cfg.Classifier.Debug)

	return orchestrator.NewService(orchestrator.Dependencies{
		Blobs:      blobs,
		Findings:   store,
		Scanner:    lines,
		Classifier: classifier.New(httpc, cfg.Classifier.URL, cfg.Classifier.APIKey, log),
		Linter:     linter.New(lines),
		Logger:     log,
	}), store, nil
}

func closeStore(store storage.Store, log hclog.Logger) {
	closer, ok := store.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		log.Error("failed to close findings store", "error", err)
	}
}

func newBlobStore(cfg *config.Config, log hclog.Logger) (blobstore.Store, error) {
	if cfg.Storage.Bucket == "" {
		log.Warn("STORAGE_BUCKET not set, uploads are kept in memory")
		return blobstore.NewMemoryStore(cfg.Storage.PublicBaseURL), nil
	}
	return blobstore.NewS3Store(blobstore.S3Options{
		Bucket:        cfg.Storage.Bucket,
		Region:        cfg.Storage.Region,
		Endpoint:      cfg.Storage.Endpoint,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	}, log)
}
