package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cravemate/internal/catalog"
	"cravemate/internal/models"
	"cravemate/internal/storage"
	"cravemate/internal/suggest"
)

type stubCompleter struct {
	mu    sync.Mutex
	calls int
	reply string
	err   error
}

func (f *stubCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.reply, f.err
}

func (f *stubCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type envelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
	Detail string          `json:"detail"`
}

func testCatalog() *catalog.Index {
	return catalog.New([]models.CatalogItem{
		{Name: "Cake", Category: "dessert", Moods: []string{"happy"}, Reason: "classic comfort", Image: "/cake.png"},
		{Name: "Brownie", Category: "dessert", Moods: []string{"sad"}, Reason: "rich and fudgy", Image: "/brownie.png"},
		{Name: "Chamomile Tea", Category: "drink", Moods: []string{"stressed"}, Reason: "calming"},
	})
}

func newTestServer(t *testing.T, completer suggest.Completer, withStore bool) (*Server, *storage.SQLiteStorage) {
	t.Helper()

	idx := testCatalog()
	svc := suggest.NewService(idx, completer, suggest.Config{}, zerolog.Nop())

	if !withStore {
		return NewServer(Config{Addr: ":0"}, svc, idx, nil, zerolog.Nop()), nil
	}

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return NewServer(Config{Addr: ":0"}, svc, idx, store, zerolog.Nop()), store
}

func doRequest(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	}
	return rec, env
}

func TestMoodSuggestSuccessRecordsHistory(t *testing.T) {
	fake := &stubCompleter{reply: "Here you go:\n```json\n" +
		`{"moods":["sad"],"suggestions":[{"name":"brownie","reason":""},{"name":"Unknown Thing","reason":"why not"}]}` +
		"\n```"}
	s, store := newTestServer(t, fake, true)

	rec, env := doRequest(t, s, http.MethodPost, "/api/mood-suggest", `{"text":"feeling blue"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.OK)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var result models.MoodSuggestionResult
	require.NoError(t, json.Unmarshal(env.Result, &result))
	assert.Equal(t, []string{"sad"}, result.Moods)
	assert.Equal(t, []models.EnrichedSuggestion{
		{Name: "brownie", Reason: "rich and fudgy", Image: "/brownie.png"},
		{Name: "Unknown Thing", Reason: "why not", Image: ""},
	}, result.Suggestions)

	history, err := store.GetHistory(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "feeling blue", history[0].Text)
	assert.Equal(t, result.Suggestions, history[0].Suggestions)
}

func TestMoodSuggestEmptyResultIsStillOK(t *testing.T) {
	fake := &stubCompleter{reply: "I cannot help with that."}
	s, _ := newTestServer(t, fake, false)

	rec, env := doRequest(t, s, http.MethodPost, "/api/mood-suggest", `{"text":"meh","limit":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"moods":[],"suggestions":[]}`, string(env.Result))
}

func TestMoodSuggestRejectsEmptyText(t *testing.T) {
	fake := &stubCompleter{reply: `{}`}
	s, store := newTestServer(t, fake, true)

	for _, body := range []string{`{"text":""}`, `{"text":"   "}`, `{}`} {
		rec, env := doRequest(t, s, http.MethodPost, "/api/mood-suggest", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.False(t, env.OK)
	}
	assert.Equal(t, 0, fake.callCount())

	history, err := store.GetHistory(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestMoodSuggestInvalidBody(t *testing.T) {
	s, _ := newTestServer(t, &stubCompleter{}, false)

	rec, env := doRequest(t, s, http.MethodPost, "/api/mood-suggest", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.OK)

	rec, _ = doRequest(t, s, http.MethodPost, "/api/mood-suggest", `{"text":"ok","limit":-2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMoodSuggestWithoutCredential(t *testing.T) {
	s, _ := newTestServer(t, nil, false)

	rec, env := doRequest(t, s, http.MethodPost, "/api/mood-suggest", `{"text":"happy"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Server missing OPENAI_API_KEY", env.Error)
}

func TestMoodSuggestModelUnavailable(t *testing.T) {
	fake := &stubCompleter{err: errors.New("connection refused")}
	s, store := newTestServer(t, fake, true)

	rec, env := doRequest(t, s, http.MethodPost, "/api/mood-suggest", `{"text":"tired"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Model request failed", env.Error)
	assert.Contains(t, env.Detail, "connection refused")

	history, err := store.GetHistory(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestFavoritesLifecycle(t *testing.T) {
	s, _ := newTestServer(t, &stubCompleter{}, true)

	rec, env := doRequest(t, s, http.MethodPost, "/api/favorites", `{"name":"cake","mood":"happy"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var saved models.Favorite
	require.NoError(t, json.Unmarshal(env.Result, &saved))
	assert.NotEmpty(t, saved.ID)
	assert.Equal(t, "classic comfort", saved.Reason)
	assert.Equal(t, "/cake.png", saved.Image)

	rec, env = doRequest(t, s, http.MethodPost, "/api/favorites", `{"name":"CAKE","mood":"Happy"}`)
	require.Equal(t, http.StatusOK, rec.Code, "same name and mood is not saved twice")
	var again models.Favorite
	require.NoError(t, json.Unmarshal(env.Result, &again))
	assert.Equal(t, saved.ID, again.ID)

	rec, _ = doRequest(t, s, http.MethodPost, "/api/favorites", `{"name":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = doRequest(t, s, http.MethodGet, "/api/favorites", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var favs []models.Favorite
	require.NoError(t, json.Unmarshal(env.Result, &favs))
	require.Len(t, favs, 1)
	assert.Equal(t, saved.ID, favs[0].ID)

	rec, _ = doRequest(t, s, http.MethodDelete, "/api/favorites/"+saved.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = doRequest(t, s, http.MethodDelete, "/api/favorites/"+saved.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteFavoriteByNameAndMood(t *testing.T) {
	s, _ := newTestServer(t, &stubCompleter{}, true)

	rec, _ := doRequest(t, s, http.MethodPost, "/api/favorites", `{"name":"Brownie","mood":"sad"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, _ = doRequest(t, s, http.MethodPost, "/api/favorites", `{"name":"Brownie","mood":"stressed"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, _ = doRequest(t, s, http.MethodDelete, "/api/favorites?name=brownie&mood=sad", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = doRequest(t, s, http.MethodDelete, "/api/favorites?name=brownie&mood=sad", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = doRequest(t, s, http.MethodDelete, "/api/favorites", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env := doRequest(t, s, http.MethodGet, "/api/favorites", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var favs []models.Favorite
	require.NoError(t, json.Unmarshal(env.Result, &favs))
	require.Len(t, favs, 1)
	assert.Equal(t, "stressed", favs[0].Mood)
}

func TestDeleteAndClearHistoryRoutes(t *testing.T) {
	fake := &stubCompleter{reply: `{"moods":["happy"],"suggestions":[{"name":"Cake","reason":"party"}]}`}
	s, store := newTestServer(t, fake, true)

	for _, text := range []string{"one", "two", "three"} {
		rec, _ := doRequest(t, s, http.MethodPost, "/api/mood-suggest", `{"text":"`+text+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	entries, err := store.GetHistory(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	rec, _ := doRequest(t, s, http.MethodDelete, "/api/history/"+entries[0].ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = doRequest(t, s, http.MethodDelete, "/api/history/"+entries[0].ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env := doRequest(t, s, http.MethodDelete, "/api/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":2}`, string(env.Result))

	remaining, err := store.GetHistory(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestHistoryRoute(t *testing.T) {
	fake := &stubCompleter{reply: `{"moods":["happy"],"suggestions":[{"name":"Cake","reason":"party"}]}`}
	s, _ := newTestServer(t, fake, true)

	for _, text := range []string{"great day", "promotion!", "sunny"} {
		rec, _ := doRequest(t, s, http.MethodPost, "/api/mood-suggest", `{"text":"`+text+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, env := doRequest(t, s, http.MethodGet, "/api/history?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []models.HistoryEntry
	require.NoError(t, json.Unmarshal(env.Result, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "sunny", entries[0].Text)

	rec, _ = doRequest(t, s, http.MethodGet, "/api/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPersistenceRoutesWithoutStore(t *testing.T) {
	s, _ := newTestServer(t, &stubCompleter{reply: `{"moods":["happy"]}`}, false)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/history", ""},
		{http.MethodGet, "/api/favorites", ""},
		{http.MethodPost, "/api/favorites", `{"name":"Cake"}`},
		{http.MethodDelete, "/api/favorites/abc", ""},
		{http.MethodDelete, "/api/favorites?name=Cake", ""},
		{http.MethodDelete, "/api/history", ""},
		{http.MethodDelete, "/api/history/abc", ""},
	} {
		rec, _ := doRequest(t, s, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, tc.path)
	}

	rec, _ := doRequest(t, s, http.MethodPost, "/api/mood-suggest", `{"text":"fine"}`)
	assert.Equal(t, http.StatusOK, rec.Code, "suggestions work without storage")
}

func TestCatalogAndHealth(t *testing.T) {
	s, _ := newTestServer(t, nil, false)

	rec, env := doRequest(t, s, http.MethodGet, "/api/catalog?category=dessert", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []models.CatalogItem
	require.NoError(t, json.Unmarshal(env.Result, &items))
	assert.Len(t, items, 2)

	rec, env = doRequest(t, s, http.MethodGet, "/api/catalog?category=savory", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Result))

	rec, env = doRequest(t, s, http.MethodGet, "/api/catalog?mood=SAD", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Result, &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Brownie", items[0].Name)

	rec, env = doRequest(t, s, http.MethodGet, "/api/catalog?mood=stressed&category=dessert", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(env.Result))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	hrec := httptest.NewRecorder()
	s.Handler().ServeHTTP(hrec, req)
	require.Equal(t, http.StatusOK, hrec.Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(hrec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 3, health["catalog_items"])
	assert.Equal(t, false, health["model_configured"])
	assert.Equal(t, "disabled", health["storage"])
}

func TestWriteTimeoutCoversModelTimeout(t *testing.T) {
	assert.Equal(t, 60*time.Second, Config{}.writeTimeout())
	assert.Equal(t, 60*time.Second, Config{ModelTimeout: 30 * time.Second}.writeTimeout())
	assert.Equal(t, 2*time.Minute+writeMargin, Config{ModelTimeout: 2 * time.Minute}.writeTimeout())

	idx := testCatalog()
	svc := suggest.NewService(idx, nil, suggest.Config{}, zerolog.Nop())
	s := NewServer(Config{Addr: ":0", ModelTimeout: 90 * time.Second}, svc, idx, nil, zerolog.Nop())
	assert.Greater(t, s.httpServer.WriteTimeout, 90*time.Second)
}
