// Package suggest resolves a free-text mood description into dessert
// suggestions drawn from the catalog.
package suggest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"cravemate/internal/models"
)

const (
	DefaultLimit    = 5
	DefaultMaxLimit = 20
	DefaultTimeout  = 30 * time.Second
)

// Completer sends one prompt to the generative model and returns its raw text.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Catalog is what the service needs from the catalog index.
type Catalog interface {
	CatalogLookup
	Items() []models.CatalogItem
}

type Config struct {
	DefaultLimit int
	MaxLimit     int
	Timeout      time.Duration
}

type Service struct {
	catalog   Catalog
	completer Completer
	validate  *validator.Validate
	cfg       Config
	logger    zerolog.Logger
}

// NewService wires the pipeline. completer may be nil when no model
// credential is configured; Suggest then fails with ErrConfiguration.
func NewService(catalog Catalog, completer Completer, cfg Config, logger zerolog.Logger) *Service {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = DefaultMaxLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Service{
		catalog:   catalog,
		completer: completer,
		validate:  validator.New(),
		cfg:       cfg,
		logger:    logger.With().Str("component", "suggest").Logger(),
	}
}

// Configured reports whether a completion client is available.
func (s *Service) Configured() bool {
	return s.completer != nil
}

// Suggest runs the full pipeline for one request.
func (s *Service) Suggest(ctx context.Context, req models.MoodSuggestionRequest) (*models.MoodSuggestionResult, error) {
	req.Text = strings.TrimSpace(req.Text)
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := s.validate.Var(req.Limit, fmt.Sprintf("lte=%d", s.cfg.MaxLimit)); err != nil {
		return nil, fmt.Errorf("%w: limit must not exceed %d", ErrInvalidRequest, s.cfg.MaxLimit)
	}

	limit := req.Limit
	if limit == 0 {
		limit = s.cfg.DefaultLimit
	}

	if s.completer == nil {
		return nil, ErrConfiguration
	}

	prompt := BuildPrompt(s.catalog.Items(), req.Text, limit)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	raw, err := s.completer.Complete(callCtx, prompt.System, prompt.User)
	if err != nil {
		s.logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("Completion request failed")
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	s.logger.Debug().Dur("elapsed", time.Since(start)).Int("raw_length", len(raw)).Msg("Completion received")

	resolved := Resolve(raw)
	if len(resolved.Moods) == 0 && len(resolved.Suggestions) == 0 {
		s.logger.Warn().Int("raw_length", len(raw)).Msg("Model output yielded no moods or suggestions")
	}

	suggestions := resolved.Suggestions
	if len(suggestions) > limit {
		s.logger.Debug().Int("returned", len(suggestions)).Int("limit", limit).Msg("Truncating suggestions to limit")
		suggestions = suggestions[:limit]
	}

	return &models.MoodSuggestionResult{
		Moods:       resolved.Moods,
		Suggestions: Enrich(suggestions, s.catalog),
	}, nil
}
