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

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/smartfilter/internal/logging"
	"github.com/ironsheep/smartfilter/internal/protocol"
	"github.com/ironsheep/smartfilter/internal/web"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const shutdownTimeout = 10 * time.Second

type options struct {
	listen        string
	backend       string
	uploadDir     string
	outputDir     string
	publicDir     string
	maxUploadSize string
	timeout       time.Duration
	logLevel      string
}

func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smartfilter-web",
		Short: "HTTP front end for a SmartFilter server",
		Long: `smartfilter-web accepts photo uploads over HTTP and forwards them to a
SmartFilter server for processing.

  POST /send_photo   multipart "photo" and form field "type" (variant id)
  GET  /photo/NAME   the processed image named in the upload reply

Examples:
  smartfilter-web
  smartfilter-web --listen :8080 --backend 127.0.0.1:9000 --public-dir ./public`,
		Version: Version,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			logging.Init(opts.logLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, opts); err != nil {
				log.Error().Err(err).Msg("Front end failed")
				return err
			}
			return nil
		},
	}

	cmd.SetVersionTemplate(fmt.Sprintf("smartfilter-web %s\n  Build time: %s\n  Git commit: %s\n", Version, BuildTime, GitCommit))

	f := cmd.Flags()
	f.StringVar(&opts.listen, "listen", ":8080", "HTTP listen address")
	f.StringVar(&opts.backend, "backend", "127.0.0.1:9000", "SmartFilter server host:port")
	f.StringVar(&opts.uploadDir, "upload-dir", "uploads", "Directory for uploaded photos")
	f.StringVar(&opts.outputDir, "output-dir", "uploads_output", "Directory for processed photos")
	f.StringVar(&opts.publicDir, "public-dir", "", "Serve static files from this directory at /")
	f.StringVar(&opts.maxUploadSize, "max-upload-size", web.DefaultMaxUploadSize, "Largest accepted request body")
	f.DurationVar(&opts.timeout, "timeout", 60*time.Second, "Deadline for one backend request (0 disables)")
	f.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	return cmd
}

// run serves HTTP until ctx is cancelled.
func run(ctx context.Context, opts *options) error {
	client := &protocol.Client{Addr: opts.backend, Timeout: opts.timeout}

	svc, err := web.NewPhotoService(web.Config{
		UploadDir:     opts.uploadDir,
		OutputDir:     opts.outputDir,
		PublicDir:     opts.publicDir,
		MaxUploadSize: opts.maxUploadSize,
	}, client, log.Logger)
	if err != nil {
		return err
	}

	e := web.NewServer(log.Logger)
	svc.SetRoutes(e)

	log.Info().
		Str("version", Version).
		Str("listen", opts.listen).
		Str("backend", opts.backend).
		Msg("Starting SmartFilter front end")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := e.Start(opts.listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info().Msg("Shut down")
	return err
}

func main() {
	if err := newRootCmd(&options{}).Execute(); err != nil {
		os.Exit(1)
	}
}
