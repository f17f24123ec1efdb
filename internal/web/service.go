package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ironsheep/smartfilter/internal/protocol"
)

const (
	RouteSendPhoto = "/send_photo"
	RoutePhoto     = "/photo/:name"

	// DefaultMaxUploadSize uses echo's BodyLimit notation.
	DefaultMaxUploadSize = "32M"

	formPhoto   = "photo"
	formVariant = "type"
	outputExt   = ".png"
)

// Sender delivers a request to the transformation server.
type Sender interface {
	Send(ctx context.Context, req protocol.Request) (protocol.Status, error)
}

// Config locates the front end's files.
type Config struct {
	// UploadDir receives the raw uploads.
	UploadDir string
	// OutputDir receives the transformed images and is served under /photo.
	OutputDir string
	// PublicDir, if set, is served as static files from /.
	PublicDir string
	// MaxUploadSize caps a request body, e.g. "32M".
	MaxUploadSize string
}

// SendPhotoResponse is the body of a POST /send_photo reply.
type SendPhotoResponse struct {
	Response int    `json:"response"`
	Output   string `json:"output"`
}

// PhotoService serves the upload and download routes.
type PhotoService struct {
	cfg    Config
	sender Sender
	log    zerolog.Logger
}

// NewPhotoService resolves the upload and output directories to absolute
// paths, creating them if needed. The server runs in its own working
// directory, so the paths it receives must be absolute.
func NewPhotoService(cfg Config, sender Sender, logger zerolog.Logger) (*PhotoService, error) {
	if cfg.MaxUploadSize == "" {
		cfg.MaxUploadSize = DefaultMaxUploadSize
	}

	for _, dir := range []*string{&cfg.UploadDir, &cfg.OutputDir} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", *dir, err)
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", abs, err)
		}
		*dir = abs
	}

	return &PhotoService{cfg: cfg, sender: sender, log: logger}, nil
}

// SetRoutes registers the service's routes and CORS policy on e.
func (s *PhotoService) SetRoutes(e *echo.Echo) {
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderXRequestedWith,
			echo.HeaderContentType,
			echo.HeaderAccept,
		},
	}))

	if s.cfg.PublicDir != "" {
		e.Static("/", s.cfg.PublicDir)
	}

	e.POST(RouteSendPhoto, s.sendPhotoHandler, middleware.BodyLimit(s.cfg.MaxUploadSize))
	e.GET(RoutePhoto, s.photoHandler)
}

func (s *PhotoService) sendPhotoHandler(c echo.Context) error {
	fh, err := c.FormFile(formPhoto)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing photo upload")
	}

	input, err := s.storeUpload(fh)
	if err != nil {
		s.log.Error().Err(err).Str("filename", fh.Filename).Msg("Failed to store upload")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store upload")
	}

	output := uuid.NewString() + outputExt
	req := protocol.Request{
		InputPath:  input,
		OutputPath: filepath.Join(s.cfg.OutputDir, output),
		VariantID:  protocol.Atoi(c.FormValue(formVariant)),
	}

	logger := s.log.With().
		Str("input", req.InputPath).
		Str("output", output).
		Str("variant", req.Variant().String()).
		Logger()

	status, err := s.sender.Send(c.Request().Context(), req)
	if err != nil {
		logger.Error().Err(err).Msg("Backend request failed")
		return c.JSON(http.StatusBadGateway, SendPhotoResponse{Response: int(protocol.StatusFailure), Output: output})
	}

	logger.Info().Stringer("status", status).Msg("Photo processed")
	return c.JSON(http.StatusOK, SendPhotoResponse{Response: int(status), Output: output})
}

// storeUpload copies an upload into UploadDir under a fresh name and returns
// its path. The name carries no extension; the server sniffs the format.
func (s *PhotoService) storeUpload(fh *multipart.FileHeader) (string, error) {
	src, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	path := filepath.Join(s.cfg.UploadDir, uuid.NewString())
	dst, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (s *PhotoService) photoHandler(c echo.Context) error {
	name := c.Param("name")
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return echo.ErrNotFound
	}

	path := filepath.Join(s.cfg.OutputDir, name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return echo.ErrNotFound
		}
		return err
	}
	return c.File(path)
}
