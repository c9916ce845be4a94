// internal/server/tools.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/ThinkInAIXYZ/go-mcp/protocol"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"cravemate/internal/models"
)

type toolHandler func(ctx context.Context, req *protocol.CallToolRequest, logger *zerolog.Logger) (*protocol.CallToolResult, error)

type SuggestDessertsParams struct {
	Text  string `json:"text" description:"Free-text description of how the user feels"`
	Limit int    `json:"limit,omitempty" description:"Maximum number of suggestions (defaults to 5)"`
}

type GetHistoryParams struct {
	Limit int `json:"limit,omitempty" description:"Maximum number of history entries to return"`
}

type SaveFavoriteParams struct {
	Name   string `json:"name" description:"Name of the dessert to remember"`
	Mood   string `json:"mood,omitempty" description:"Mood the dessert was suggested for"`
	Reason string `json:"reason,omitempty" description:"Why it was suggested (defaults to the catalog reason)"`
	Image  string `json:"image,omitempty" description:"Image reference (defaults to the catalog image)"`
}

type DeleteHistoryParams struct {
	ID string `json:"id" description:"ID of the history entry to delete"`
}

type RemoveFavoriteParams struct {
	ID   string `json:"id,omitempty" description:"ID of the favorite; takes precedence over name and mood"`
	Name string `json:"name,omitempty" description:"Dessert name of the favorite to remove"`
	Mood string `json:"mood,omitempty" description:"Mood the favorite was saved under"`
}

type BrowseCatalogParams struct {
	Mood     string `json:"mood,omitempty" description:"Only items tagged with this mood"`
	Category string `json:"category,omitempty" description:"Only items in this category, e.g. dessert"`
}

// extractParams safely extracts parameters from the request arguments
func extractParams(req *protocol.CallToolRequest, target interface{}) error {
	// Convert the Arguments map to JSON bytes, then unmarshal to target
	jsonBytes, err := json.Marshal(req.Arguments)
	if err != nil {
		return badParams("failed to marshal arguments: %v", err)
	}

	if err := json.Unmarshal(jsonBytes, target); err != nil {
		return badParams("failed to unmarshal parameters: %v", err)
	}

	return nil
}

func (s *Server) registerTools() {
	s.tools = map[string]toolHandler{
		"suggest_desserts": s.handleSuggestDesserts,
		"browse_catalog":   s.handleBrowseCatalog,
		"get_history":      s.handleGetHistory,
		"delete_history":   s.handleDeleteHistory,
		"clear_history":    s.handleClearHistory,
		"save_favorite":    s.handleSaveFavorite,
		"get_favorites":    s.handleGetFavorites,
		"remove_favorite":  s.handleRemoveFavorite,
	}

	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	s.logger.Debug().Strs("tools", names).Msg("Registered MCP tools")
}

// mcpHandler serves MCP tools/call requests over plain HTTP POST.
func (s *Server) mcpHandler(c echo.Context) error {
	var request protocol.CallToolRequest
	if err := json.NewDecoder(c.Request().Body).Decode(&request); err != nil {
		return failure(c, badParams("invalid JSON: %v", err))
	}

	handler, found := s.tools[request.Name]
	if !found {
		return c.JSON(http.StatusNotFound, apiResponse{OK: false, Error: fmt.Sprintf("unknown tool: %s", request.Name)})
	}

	logger := requestLogger(c).With().Str("tool", request.Name).Logger()
	result, err := handler(c.Request().Context(), &request, &logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Tool call failed")
		return failure(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleSuggestDesserts(ctx context.Context, req *protocol.CallToolRequest, logger *zerolog.Logger) (*protocol.CallToolResult, error) {
	var params SuggestDessertsParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	result, err := s.suggestAndRecord(ctx, models.MoodSuggestionRequest{
		Text:  params.Text,
		Limit: params.Limit,
	}, logger)
	if err != nil {
		return nil, err
	}

	return s.createJSONResponse(result)
}

func (s *Server) handleGetHistory(ctx context.Context, req *protocol.CallToolRequest, logger *zerolog.Logger) (*protocol.CallToolResult, error) {
	var params GetHistoryParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	entries, err := s.history(ctx, params.Limit)
	if err != nil {
		return nil, err
	}

	return s.createJSONResponse(entries)
}

func (s *Server) handleSaveFavorite(ctx context.Context, req *protocol.CallToolRequest, logger *zerolog.Logger) (*protocol.CallToolResult, error) {
	var params SaveFavoriteParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	fav, _, err := s.addFavorite(ctx, models.Favorite{
		Name:   params.Name,
		Mood:   params.Mood,
		Reason: params.Reason,
		Image:  params.Image,
	})
	if err != nil {
		return nil, err
	}

	return s.createJSONResponse(fav)
}

func (s *Server) handleGetFavorites(ctx context.Context, req *protocol.CallToolRequest, logger *zerolog.Logger) (*protocol.CallToolResult, error) {
	favs, err := s.favorites(ctx)
	if err != nil {
		return nil, err
	}

	return s.createJSONResponse(favs)
}

func (s *Server) handleBrowseCatalog(ctx context.Context, req *protocol.CallToolRequest, logger *zerolog.Logger) (*protocol.CallToolResult, error) {
	var params BrowseCatalogParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	return s.createJSONResponse(s.browseCatalog(params.Category, params.Mood))
}

func (s *Server) handleDeleteHistory(ctx context.Context, req *protocol.CallToolRequest, logger *zerolog.Logger) (*protocol.CallToolResult, error) {
	var params DeleteHistoryParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}
	if params.ID == "" {
		return nil, badParams("id is required")
	}

	if err := s.deleteHistory(ctx, params.ID); err != nil {
		return nil, err
	}

	return s.createJSONResponse(map[string]string{"deleted": params.ID})
}

func (s *Server) handleClearHistory(ctx context.Context, req *protocol.CallToolRequest, logger *zerolog.Logger) (*protocol.CallToolResult, error) {
	n, err := s.clearHistory(ctx)
	if err != nil {
		return nil, err
	}

	logger.Info().Int64("deleted", n).Msg("History cleared")
	return s.createJSONResponse(map[string]int64{"deleted": n})
}

func (s *Server) handleRemoveFavorite(ctx context.Context, req *protocol.CallToolRequest, logger *zerolog.Logger) (*protocol.CallToolResult, error) {
	var params RemoveFavoriteParams
	if err := extractParams(req, &params); err != nil {
		return nil, err
	}

	if err := s.removeFavorite(ctx, params.ID, params.Name, params.Mood); err != nil {
		return nil, err
	}

	return s.createJSONResponse(map[string]bool{"removed": true})
}

func (s *Server) createJSONResponse(data interface{}) (*protocol.CallToolResult, error) {
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}

	return &protocol.CallToolResult{
		Content: []protocol.Content{
			protocol.TextContent{
				Type: "text",
				Text: string(jsonBytes),
			},
		},
	}, nil
}
