// Shelfwise - Book Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/shelfwise

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/shelfwise/internal/cache"
	"github.com/tomtom215/shelfwise/internal/database"
	"github.com/tomtom215/shelfwise/internal/models"
	"github.com/tomtom215/shelfwise/internal/recommend"
)

type fakeStore struct {
	mu sync.Mutex

	pingErr  error
	books    []models.Book
	ratings  map[int64]map[int64]int
	users    map[string]*models.User
	trending []models.TrendingBook
	err      error

	trendingCalls atomic.Int32
	statsCalls    atomic.Int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		books: []models.Book{
			{ID: 1, Title: "Robots in Space", Author: "Ada", Genres: []string{"Sci-Fi"}},
			{ID: 2, Title: "Space Robots Return", Author: "Ada", Genres: []string{"Sci-Fi"}},
			{ID: 3, Title: "Gardening Basics", Author: "Bo", Genres: []string{"General"}},
		},
		ratings: map[int64]map[int64]int{
			7: {1: 5, 3: 2},
		},
		users: map[string]*models.User{
			"reader": {ID: 7, Username: "reader"},
		},
		trending: []models.TrendingBook{
			{Book: models.Book{ID: 1, Title: "Robots in Space"}, RatingCount: 1, AverageRating: 5},
		},
	}
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) ListBooks(_ context.Context, limit, offset int) ([]models.Book, error) {
	if f.err != nil {
		return nil, f.err
	}
	if offset >= len(f.books) {
		return []models.Book{}, nil
	}
	end := offset + limit
	if end > len(f.books) {
		end = len(f.books)
	}
	return f.books[offset:end], nil
}

func (f *fakeStore) SearchBooks(_ context.Context, q string) ([]models.Book, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []models.Book{}
	for _, b := range f.books {
		if strings.Contains(strings.ToLower(b.Title), strings.ToLower(q)) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) GetBook(_ context.Context, bookID int64) (models.Book, error) {
	if f.err != nil {
		return models.Book{}, f.err
	}
	for _, b := range f.books {
		if b.ID == bookID {
			return b, nil
		}
	}
	return models.Book{}, database.ErrNotFound
}

func (f *fakeStore) BookAverageRating(_ context.Context, bookID int64) (float64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum, n int
	for _, byBook := range f.ratings {
		if s, ok := byBook[bookID]; ok {
			sum += s
			n++
		}
	}
	if n == 0 {
		return 0, false, nil
	}
	return float64(sum) / float64(n), true, nil
}

func (f *fakeStore) TrendingBooks(context.Context) ([]models.TrendingBook, error) {
	f.trendingCalls.Add(1)
	return f.trending, f.err
}

func (f *fakeStore) UpsertRating(_ context.Context, userID, bookID int64, score int) error {
	if score < models.MinScore || score > models.MaxScore {
		return database.ErrInvalidScore
	}
	if _, err := f.GetBook(context.Background(), bookID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ratings[userID] == nil {
		f.ratings[userID] = map[int64]int{}
	}
	f.ratings[userID][bookID] = score
	return nil
}

func (f *fakeStore) UserRatingsMap(_ context.Context, userID int64) (map[int64]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[int64]int{}
	for k, v := range f.ratings[userID] {
		out[k] = v
	}
	return out, f.err
}

func (f *fakeStore) CreateUser(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[username]; ok {
		return nil, database.ErrDuplicateUsername
	}
	u := &models.User{ID: int64(100 + len(f.users)), Username: username, CreatedAt: time.Now()}
	f.users[username] = u
	return u, nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[username]; ok {
		return u, nil
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) Stats(context.Context) (*models.SystemStats, error) {
	f.statsCalls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var ratings int64
	for _, byBook := range f.ratings {
		ratings += int64(len(byBook))
	}
	return &models.SystemStats{
		NumBooks:   int64(len(f.books)),
		NumUsers:   int64(len(f.users)),
		NumRatings: ratings,
	}, nil
}

type fakeEngine struct {
	status      recommend.TrainingStatus
	recs        *recommend.UserRecommendations
	recsErr     error
	explanation string
	similar     []recommend.TitleScore
	matches     *recommend.ContentMatches
	refreshErr  error

	// refreshGate blocks Refresh until closed when set.
	refreshGate chan struct{}

	invalidations atomic.Int32
	refreshes     atomic.Int32
	lastForce     atomic.Bool
	lastK         atomic.Int32
	lastExclude   atomic.Bool
}

func (f *fakeEngine) Status() recommend.TrainingStatus { return f.status }

func (f *fakeEngine) Invalidate() { f.invalidations.Add(1) }

func (f *fakeEngine) Refresh(ctx context.Context, force bool) (*recommend.Model, error) {
	f.refreshes.Add(1)
	f.lastForce.Store(force)
	if f.refreshGate != nil {
		select {
		case <-f.refreshGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &recommend.Model{Source: "trained", TrainedRatingsCount: 42, TrainedAt: time.Now()}, nil
}

func (f *fakeEngine) RecommendForUser(_ context.Context, userID int64, k int, excludeRated bool) (*recommend.UserRecommendations, error) {
	f.lastK.Store(int32(k))
	f.lastExclude.Store(excludeRated)
	if f.recsErr != nil {
		return nil, f.recsErr
	}
	if f.recs != nil {
		return f.recs, nil
	}
	return &recommend.UserRecommendations{UserID: userID}, nil
}

func (f *fakeEngine) Explain(context.Context, int64) (string, error) {
	return f.explanation, nil
}

func (f *fakeEngine) ContentMatchesForUser(_ context.Context, userID int64, _ int) (*recommend.ContentMatches, error) {
	if f.matches != nil {
		return f.matches, nil
	}
	return &recommend.ContentMatches{UserID: userID, Items: []recommend.TitleScore{}}, nil
}

func (f *fakeEngine) SimilarToBookID(context.Context, int64, int) ([]recommend.TitleScore, error) {
	if f.similar == nil {
		return []recommend.TitleScore{}, nil
	}
	return f.similar, nil
}

func (f *fakeEngine) SimilarToText(context.Context, string, int) ([]recommend.TitleScore, error) {
	if f.similar == nil {
		return []recommend.TitleScore{}, nil
	}
	return f.similar, nil
}

type fakeRetrainer struct {
	requests atomic.Int32
}

func (f *fakeRetrainer) RequestRetrain() { f.requests.Add(1) }

type testServer struct {
	handler   *Handler
	store     *fakeStore
	engine    *fakeEngine
	retrainer *fakeRetrainer
	cache     *cache.Cache
	mux       http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, newFakeStore(), &fakeEngine{}, &ChiMiddlewareConfig{RateLimitDisabled: true})
}

func newTestServerWith(t *testing.T, store *fakeStore, engine *fakeEngine, mwCfg *ChiMiddlewareConfig) *testServer {
	t.Helper()

	c := cache.New("api-test", time.Minute)
	t.Cleanup(c.Stop)

	retrainer := &fakeRetrainer{}
	h := NewHandler(HandlerOptions{
		Store:        store,
		Engine:       engine,
		Retrainer:    retrainer,
		Cache:        c,
		TrainTimeout: 5 * time.Second,
	})
	t.Cleanup(h.Wait)

	return &testServer{
		handler:   h,
		store:     store,
		engine:    engine,
		retrainer: retrainer,
		cache:     c,
		mux:       NewRouter(h, NewChiMiddleware(mwCfg)).SetupChi(),
	}
}

func (s *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	return w
}

// envelope decodes an APIResponse whose data is unmarshalled into data.
func envelope(t *testing.T, w *httptest.ResponseRecorder, data interface{}) APIResponse {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   *APIError       `json:"error"`
		Meta    *APIMeta        `json:"meta"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	if data != nil && len(raw.Data) > 0 {
		if err := json.Unmarshal(raw.Data, data); err != nil {
			t.Fatalf("decode data %s: %v", raw.Data, err)
		}
	}
	return APIResponse{Success: raw.Success, Error: raw.Error, Meta: raw.Meta}
}

var errStoreDown = errors.New("connection refused")
