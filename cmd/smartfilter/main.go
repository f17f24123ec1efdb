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
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/smartfilter/internal/config"
	"github.com/ironsheep/smartfilter/internal/filter"
	"github.com/ironsheep/smartfilter/internal/imaging"
	"github.com/ironsheep/smartfilter/internal/logging"
	"github.com/ironsheep/smartfilter/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const metricsShutdownTimeout = 5 * time.Second

// options holds the command line flags.
type options struct {
	configPath   string
	bind         string
	logLevel     string
	metricsAddr  string
	readTimeout  time.Duration
	writeTimeout time.Duration
	maxWorkers   int
}

func newRootCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smartfilter <PORT>",
		Short: "TCP image transformation server",
		Long: `SmartFilter listens on a TCP port and applies image filters on request.

Each connection carries one request of the form

  inputPath,outputPath,variantId

and receives a single byte back: 0x01 on success, 0x00 on failure.

Variants:
  0  grayscale (also used for any unknown id)
  1  edge detection
  2  cartoon
  3  retro

Examples:
  smartfilter 5000
  smartfilter 5000 --bind 127.0.0.1 --max-workers 8
  smartfilter 5000 --metrics-addr :9090 --log-level debug`,
		Version: Version,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.ExactArgs(1)(cmd, args); err != nil {
				return err
			}
			_, err := config.ParsePort(args[0])
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			port, err := config.ParsePort(args[0])
			if err != nil {
				return err
			}

			cfg, err := loadConfig(cmd.Flags(), opts, port)
			if err != nil {
				return err
			}
			// Past argument handling, failures are not usage errors.
			cmd.SilenceUsage = true

			logging.Init(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := run(ctx, cfg); err != nil {
				log.Error().Err(err).Msg("Server failed")
				return err
			}
			return nil
		},
	}

	cmd.SetVersionTemplate(fmt.Sprintf("smartfilter %s\n  Build time: %s\n  Git commit: %s\n", Version, BuildTime, GitCommit))

	f := cmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "YAML config file (default $"+config.EnvConfigPath+")")
	f.StringVar(&opts.bind, "bind", "", "IPv4 address to listen on (default 0.0.0.0)")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (default info)")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this host:port at /metrics")
	f.DurationVar(&opts.readTimeout, "read-timeout", 0, "Deadline for receiving a request (0 disables)")
	f.DurationVar(&opts.writeTimeout, "write-timeout", 0, "Deadline for sending the reply (0 disables)")
	f.IntVar(&opts.maxWorkers, "max-workers", 0, "Maximum concurrent image jobs (0 is unbounded)")

	return cmd
}

// loadConfig layers the config file and any flags that were set over the
// defaults, then validates the result.
func loadConfig(flags *pflag.FlagSet, opts *options, port int) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		path = config.PathFromEnv()
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	cfg.Port = port
	if flags.Changed("bind") {
		cfg.Bind = opts.bind
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if flags.Changed("read-timeout") {
		cfg.ReadTimeout = opts.readTimeout
	}
	if flags.Changed("write-timeout") {
		cfg.WriteTimeout = opts.writeTimeout
	}
	if flags.Changed("max-workers") {
		cfg.MaxWorkers = opts.maxWorkers
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// run serves until ctx is cancelled or either server fails.
func run(ctx context.Context, cfg *config.Config) error {
	metrics := server.NewMetrics()
	srv := server.New(server.Config{
		Network:        "tcp4",
		Addr:           cfg.Addr(),
		MaxRequestSize: cfg.MaxRequestSize,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		MaxWorkers:     cfg.MaxWorkers,
	},
		server.WithStore(imaging.NewStore(
			imaging.WithJPEGQuality(cfg.JPEGQuality),
			imaging.WithAutoOrientation(cfg.AutoOrient),
		)),
		server.WithTransformer(filter.NewRegistry(filter.Options{RetroSeed: cfg.RetroSeed})),
		server.WithMetrics(metrics),
		server.WithLogger(log.Logger),
	)

	log.Info().
		Str("version", Version).
		Str("addr", cfg.Addr()).
		Int("max_workers", cfg.MaxWorkers).
		Dur("read_timeout", cfg.ReadTimeout).
		Dur("write_timeout", cfg.WriteTimeout).
		Msg("Starting SmartFilter")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		hs := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			log.Info().Str("addr", cfg.MetricsAddr).Msg("Serving metrics")
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			return hs.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	log.Info().Msg("Shut down")
	return err
}

func main() {
	if err := newRootCmd(&options{}).Execute(); err != nil {
		os.Exit(1)
	}
}
