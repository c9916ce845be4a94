package server

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

func (s *Server) registerRoutes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization, "X-Request-ID"},
		MaxAge:       300,
	}))
	e.Use(s.loggerMiddleware)

	e.GET("/health", s.healthHandler)

	api := e.Group("/api")
	api.POST("/mood-suggest", s.moodSuggestHandler)
	api.GET("/catalog", s.catalogHandler)
	api.GET("/history", s.historyHandler)
	api.DELETE("/history", s.clearHistoryHandler)
	api.DELETE("/history/:id", s.deleteHistoryHandler)
	api.GET("/favorites", s.getFavoritesHandler)
	api.POST("/favorites", s.saveFavoriteHandler)
	api.DELETE("/favorites", s.deleteFavoriteByNameHandler)
	api.DELETE("/favorites/:id", s.deleteFavoriteHandler)

	e.POST("/mcp", s.mcpHandler)

	return e
}

// loggerMiddleware tags each request with an id and stores a request-scoped
// logger in the context.
func (s *Server) loggerMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Response().Header().Set("X-Request-ID", requestID)

		logger := s.logger.With().Str("request_id", requestID).Logger()
		c.Set("logger", &logger)

		err := next(c)

		logger.Info().
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Int("status", c.Response().Status).
			Msg("Handled request")

		return err
	}
}

func requestLogger(c echo.Context) *zerolog.Logger {
	if l, ok := c.Get("logger").(*zerolog.Logger); ok {
		return l
	}
	nop := zerolog.Nop()
	return &nop
}
