// internal/server/server.go
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"cravemate/internal/catalog"
	"cravemate/internal/models"
	"cravemate/internal/storage"
	"cravemate/internal/suggest"
)

// Store is the persistence the server records results into. It never
// influences suggestions.
type Store interface {
	SaveHistory(ctx context.Context, entry *models.HistoryEntry) error
	GetHistory(ctx context.Context, limit int) ([]*models.HistoryEntry, error)
	DeleteHistory(ctx context.Context, id string) error
	ClearHistory(ctx context.Context) (int64, error)
	SaveFavorite(ctx context.Context, fav *models.Favorite) (bool, error)
	GetFavorites(ctx context.Context) ([]*models.Favorite, error)
	DeleteFavorite(ctx context.Context, id string) error
	DeleteFavoriteByName(ctx context.Context, name, mood string) error
}

const (
	defaultWriteTimeout = 60 * time.Second
	// Time left to write the response after the model call has returned.
	writeMargin = 15 * time.Second
)

type Config struct {
	Addr string
	// ModelTimeout is the longest a suggestion may wait on the model.
	// The write timeout is stretched to cover it.
	ModelTimeout time.Duration
}

func (c Config) writeTimeout() time.Duration {
	if t := c.ModelTimeout + writeMargin; t > defaultWriteTimeout {
		return t
	}
	return defaultWriteTimeout
}

type Server struct {
	echo       *echo.Echo
	httpServer *http.Server
	suggester  *suggest.Service
	catalog    *catalog.Index
	store      Store
	tools      map[string]toolHandler
	validate   *validator.Validate
	logger     zerolog.Logger
}

// NewServer builds the HTTP server. store may be nil, in which case the
// history and favorites routes answer 503 and no history is recorded.
func NewServer(cfg Config, svc *suggest.Service, idx *catalog.Index, store Store, logger zerolog.Logger) *Server {
	s := &Server{
		suggester: svc,
		catalog:   idx,
		store:     store,
		validate:  validator.New(),
		logger:    logger.With().Str("component", "server").Logger(),
	}

	s.registerTools()
	s.echo = s.registerRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.echo,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.writeTimeout(),
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(ctx context.Context) error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Starting cravemate server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// errorStatus maps pipeline and storage errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, suggest.ErrInvalidRequest), errors.Is(err, errBadParams):
		return http.StatusBadRequest
	case errors.Is(err, suggest.ErrConfiguration):
		return http.StatusInternalServerError
	case errors.Is(err, suggest.ErrModelUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errStoreDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var (
	errBadParams     = errors.New("invalid parameters")
	errStoreDisabled = errors.New("storage is not configured")
)

func badParams(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadParams, fmt.Sprintf(format, args...))
}
