package server

import (
	"context"
	"errors"
	"fmt"
	"image"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ironsheep/smartfilter/internal/filter"
	"github.com/ironsheep/smartfilter/internal/imaging"
	"github.com/ironsheep/smartfilter/internal/protocol"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// ImageStore loads input images and saves results.
type ImageStore interface {
	Load(path string) (image.Image, error)
	Save(img image.Image, path string) error
}

// Transformer applies a variant to an image.
type Transformer interface {
	Apply(v filter.Variant, img image.Image) (image.Image, error)
}

// Config controls how the server listens and handles sessions.
type Config struct {
	// Network is passed to net.Listen. Defaults to "tcp4".
	Network string
	Addr    string

	// MaxRequestSize bounds the single read of a request.
	MaxRequestSize int

	// Zero disables the deadline.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// MaxWorkers bounds concurrent image work. Zero means unbounded.
	MaxWorkers int
}

// DefaultConfig returns a Config listening on all IPv4 interfaces with no
// timeouts and no worker bound.
func DefaultConfig() Config {
	return Config{
		Network:        "tcp4",
		Addr:           "0.0.0.0:0",
		MaxRequestSize: protocol.MaxRequestSize,
	}
}

// Server accepts connections and handles one request per connection.
type Server struct {
	cfg         Config
	store       ImageStore
	transformer Transformer
	log         zerolog.Logger
	metrics     *Metrics
	pool        *pool

	mu       sync.Mutex
	listener net.Listener
	sessions sync.WaitGroup
}

// Option customizes a Server.
type Option func(*Server)

// WithStore sets the image store. Defaults to imaging.NewStore().
func WithStore(store ImageStore) Option {
	return func(s *Server) { s.store = store }
}

// WithTransformer sets the transformer. Defaults to a filter registry with
// the default retro seed.
func WithTransformer(t Transformer) Option {
	return func(s *Server) { s.transformer = t }
}

// WithLogger sets the logger. Defaults to the global zerolog logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMetrics sets the metrics collectors. Defaults to a fresh NewMetrics().
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a server. Zero fields in cfg fall back to DefaultConfig.
func New(cfg Config, opts ...Option) *Server {
	def := DefaultConfig()
	if cfg.Network == "" {
		cfg.Network = def.Network
	}
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.MaxRequestSize <= 0 {
		cfg.MaxRequestSize = def.MaxRequestSize
	}

	s := &Server{
		cfg: cfg,
		log: log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = imaging.NewStore()
	}
	if s.transformer == nil {
		s.transformer = filter.NewRegistry(filter.Options{RetroSeed: filter.DefaultRetroSeed})
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	s.pool = newPool(cfg.MaxWorkers)

	return s
}

// Addr returns the listening address, or nil before the server is serving.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ListenAndServe listens on cfg.Addr and serves until ctx is cancelled.
// A listen failure is returned as a *StartupError.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen(s.cfg.Network, s.cfg.Addr)
	if err != nil {
		return &StartupError{Addr: s.cfg.Addr, Err: err}
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled, then closes ln and
// waits for in-flight sessions. It returns nil on a clean shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer s.sessions.Wait()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("Listening")

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.log.Info().Msg("Listener closed, waiting for sessions")
				return nil
			}

			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay = min(delay*2, maxAcceptDelay)
			}
			s.metrics.recordError("accept")
			s.log.Warn().Err(&ConnectionError{Op: "accept", Err: err}).
				Dur("retry_in", delay).
				Msg("Accept failed")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
			}
			continue
		}
		delay = 0

		s.metrics.connections.Inc()
		s.sessions.Add(1)
		go func() {
			defer s.sessions.Done()
			newSession(s, conn).run(ctx)
		}()
	}
}

// execute loads, transforms and saves the image named by req.
func (s *Server) execute(req protocol.Request, logger zerolog.Logger) error {
	img, err := s.store.Load(req.InputPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrImageLoad, err)
	}

	out, err := s.transformer.Apply(req.Variant(), img)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransform, err)
	}

	if err := s.store.Save(out, req.OutputPath); err != nil {
		return fmt.Errorf("%w: %w", ErrImageSave, err)
	}

	info := imaging.Describe(out)
	logger.Debug().
		Int("width", info.Width).
		Int("height", info.Height).
		Int("channels", info.Channels).
		Msg("Output written")
	return nil
}
