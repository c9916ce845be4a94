package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"cravemate/internal/models"
	"cravemate/internal/suggest"
)

const defaultHistoryLimit = 20

type apiResponse struct {
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func success(c echo.Context, status int, result any) error {
	return c.JSON(status, apiResponse{OK: true, Result: result})
}

func failure(c echo.Context, err error) error {
	status := errorStatus(err)
	resp := apiResponse{OK: false, Error: err.Error()}

	switch {
	case errors.Is(err, suggest.ErrConfiguration):
		resp.Error = "Server missing OPENAI_API_KEY"
	case errors.Is(err, suggest.ErrModelUnavailable):
		resp.Error = "Model request failed"
		resp.Detail = err.Error()
	case status == http.StatusInternalServerError:
		requestLogger(c).Error().Err(err).Msg("Request failed")
		resp.Error = "internal error"
	}

	return c.JSON(status, resp)
}

/* ---------------------------------------------------------------------------
   Operations shared by the REST routes and the MCP tools
--------------------------------------------------------------------------- */

// suggestAndRecord runs the pipeline and records a history entry. The entry
// is skipped when the caller has already gone away.
func (s *Server) suggestAndRecord(ctx context.Context, req models.MoodSuggestionRequest, logger *zerolog.Logger) (*models.MoodSuggestionResult, error) {
	result, err := s.suggester.Suggest(ctx, req)
	if err != nil {
		return nil, err
	}

	if s.store == nil {
		return result, nil
	}
	if ctx.Err() != nil {
		logger.Debug().Msg("Request abandoned, not recording history")
		return result, nil
	}

	entry := &models.HistoryEntry{
		ID:          uuid.NewString(),
		Text:        strings.TrimSpace(req.Text),
		Moods:       result.Moods,
		Suggestions: result.Suggestions,
		CreatedAt:   time.Now(),
	}
	if err := s.store.SaveHistory(ctx, entry); err != nil {
		// The user still gets their suggestions.
		logger.Warn().Err(err).Msg("Failed to record history entry")
	}

	return result, nil
}

func (s *Server) history(ctx context.Context, limit int) ([]*models.HistoryEntry, error) {
	if s.store == nil {
		return nil, errStoreDisabled
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return s.store.GetHistory(ctx, limit)
}

func (s *Server) deleteHistory(ctx context.Context, id string) error {
	if s.store == nil {
		return errStoreDisabled
	}
	return s.store.DeleteHistory(ctx, id)
}

func (s *Server) clearHistory(ctx context.Context) (int64, error) {
	if s.store == nil {
		return 0, errStoreDisabled
	}
	return s.store.ClearHistory(ctx)
}

// addFavorite saves fav, or returns the favorite already stored for the same
// name and mood. created reports which one happened.
func (s *Server) addFavorite(ctx context.Context, fav models.Favorite) (*models.Favorite, bool, error) {
	if s.store == nil {
		return nil, false, errStoreDisabled
	}

	fav.Name = strings.TrimSpace(fav.Name)
	if err := s.validate.Struct(fav); err != nil {
		return nil, false, badParams("favorite name is required")
	}

	// Fill display fields from the catalog when the caller left them out.
	if found, ok := s.catalog.FindByName(fav.Name); ok {
		if fav.Reason == "" {
			fav.Reason = found.Reason
		}
		if fav.Image == "" {
			fav.Image = found.Image
		}
	}

	fav.ID = uuid.NewString()
	fav.CreatedAt = time.Now()
	created, err := s.store.SaveFavorite(ctx, &fav)
	if err != nil {
		return nil, false, err
	}
	return &fav, created, nil
}

func (s *Server) favorites(ctx context.Context) ([]*models.Favorite, error) {
	if s.store == nil {
		return nil, errStoreDisabled
	}
	return s.store.GetFavorites(ctx)
}

// removeFavorite deletes by id when one is given, otherwise by name and mood.
func (s *Server) removeFavorite(ctx context.Context, id, name, mood string) error {
	if s.store == nil {
		return errStoreDisabled
	}
	if id != "" {
		return s.store.DeleteFavorite(ctx, id)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return badParams("favorite id or name is required")
	}
	return s.store.DeleteFavoriteByName(ctx, name, mood)
}

// browseCatalog lists catalog items, optionally narrowed by mood tag and
// category. It never returns nil.
func (s *Server) browseCatalog(category, mood string) []models.CatalogItem {
	var items []models.CatalogItem
	switch {
	case mood != "":
		items = s.catalog.ByMood(mood)
		if category != "" {
			kept := items[:0]
			for _, item := range items {
				if strings.EqualFold(strings.TrimSpace(item.Category), strings.TrimSpace(category)) {
					kept = append(kept, item)
				}
			}
			items = kept
		}
	case category != "":
		items = s.catalog.ByCategory(category)
	default:
		items = s.catalog.Items()
	}

	if items == nil {
		items = []models.CatalogItem{}
	}
	return items
}

/* ---------------------------------------------------------------------------
   REST handlers
--------------------------------------------------------------------------- */

func (s *Server) healthHandler(c echo.Context) error {
	storageStatus := "up"
	if s.store == nil {
		storageStatus = "disabled"
	}

	return c.JSON(http.StatusOK, map[string]any{
		"status":           "ok",
		"catalog_items":    s.catalog.Len(),
		"model_configured": s.suggester.Configured(),
		"storage":          storageStatus,
	})
}

func (s *Server) moodSuggestHandler(c echo.Context) error {
	var req models.MoodSuggestionRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, badParams("invalid JSON body"))
	}

	logger := requestLogger(c)
	result, err := s.suggestAndRecord(c.Request().Context(), req, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Mood suggestion failed")
		return failure(c, err)
	}

	logger.Info().
		Strs("moods", result.Moods).
		Int("suggestions", len(result.Suggestions)).
		Msg("Mood suggestion served")
	return success(c, http.StatusOK, result)
}

func (s *Server) catalogHandler(c echo.Context) error {
	return success(c, http.StatusOK, s.browseCatalog(c.QueryParam("category"), c.QueryParam("mood")))
}

func (s *Server) historyHandler(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return failure(c, badParams("limit must be a non-negative integer"))
		}
		limit = n
	}

	entries, err := s.history(c.Request().Context(), limit)
	if err != nil {
		return failure(c, err)
	}
	return success(c, http.StatusOK, entries)
}

func (s *Server) getFavoritesHandler(c echo.Context) error {
	favs, err := s.favorites(c.Request().Context())
	if err != nil {
		return failure(c, err)
	}
	return success(c, http.StatusOK, favs)
}

func (s *Server) deleteHistoryHandler(c echo.Context) error {
	if err := s.deleteHistory(c.Request().Context(), c.Param("id")); err != nil {
		return failure(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) clearHistoryHandler(c echo.Context) error {
	n, err := s.clearHistory(c.Request().Context())
	if err != nil {
		return failure(c, err)
	}

	requestLogger(c).Info().Int64("deleted", n).Msg("History cleared")
	return success(c, http.StatusOK, map[string]int64{"deleted": n})
}

func (s *Server) saveFavoriteHandler(c echo.Context) error {
	var fav models.Favorite
	if err := c.Bind(&fav); err != nil {
		return failure(c, badParams("invalid JSON body"))
	}

	saved, created, err := s.addFavorite(c.Request().Context(), fav)
	if err != nil {
		return failure(c, err)
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return success(c, status, saved)
}

func (s *Server) deleteFavoriteHandler(c echo.Context) error {
	if err := s.removeFavorite(c.Request().Context(), c.Param("id"), "", ""); err != nil {
		return failure(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// deleteFavoriteByNameHandler serves DELETE /api/favorites?name=&mood=.
func (s *Server) deleteFavoriteByNameHandler(c echo.Context) error {
	err := s.removeFavorite(c.Request().Context(), "", c.QueryParam("name"), c.QueryParam("mood"))
	if err != nil {
		return failure(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
