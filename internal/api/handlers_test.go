package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/futureself/internal/domain"
	"example.com/futureself/internal/persistence/sqlite"
)

var handlerNow = time.Date(2026, time.October, 18, 15, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, store domain.Store, opts ...HandlerOption) http.Handler {
	t.Helper()
	if store == nil {
		sq, err := sqlite.Open(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = sq.Close() })
		store = sq
	}
	service := domain.NewService(store, domain.WithClock(func() time.Time { return handlerNow }))
	mux := http.NewServeMux()
	NewHandler(service, opts...).RegisterRoutes(mux)
	return mux
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatsEmptyUsesNumericZero(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{
		"totalLogs": 0,
		"streak": 0,
		"categorySplit": {"job": 0, "company": 0, "family": 0},
		"impactSplit": {"high": 0, "med": 0, "low": 0},
		"growthRatio": 0,
		"goalProgress": 0,
		"avgIdentityScore": 0
	}`, rec.Body.String())
}

func TestStatsScenarioThroughAPI(t *testing.T) {
	srv := newTestServer(t, nil)

	logs := []CreateLogRequest{
		{Date: "2026-10-18", Title: "Ship invoice export", Category: "job", ImpactLevel: "High"},
		{Date: "2026-10-18", Title: "Landing page copy", Category: "company", ImpactLevel: "Med"},
		{Date: "2026-10-17", Title: "Dinner with parents", Category: "family", ImpactLevel: "Low"},
	}
	for _, l := range logs {
		rec := do(t, srv, http.MethodPost, "/api/logs", l)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	for _, g := range []CreateGoalRequest{{Type: "outcome", Title: "Launch"}, {Type: "weekly", Title: "Gym x3"}} {
		require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/goals", g).Code)
	}
	var goals []GoalView
	require.NoError(t, json.Unmarshal(do(t, srv, http.MethodGet, "/api/goals", nil).Body.Bytes(), &goals))
	require.Len(t, goals, 2)
	completed := "completed"
	rec := do(t, srv, http.MethodPatch, "/api/goals/"+goals[0].ID, UpdateGoalRequest{Status: &completed})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, s := range []IdentityScoreRequest{{Date: "2026-10-18", Score: 8}, {Date: "2026-10-17", Score: 6}, {Date: "2026-10-16", Score: 7}} {
		require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/api/identity-score", s).Code)
	}

	rec = do(t, srv, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"totalLogs": 3,
		"streak": 2,
		"categorySplit": {"job": 1, "company": 1, "family": 1},
		"impactSplit": {"high": 1, "med": 1, "low": 1},
		"growthRatio": "66.7",
		"goalProgress": "50.0",
		"avgIdentityScore": "7.0"
	}`, rec.Body.String())
}

func TestStatsSourceFailureIsServerError(t *testing.T) {
	srv := newTestServer(t, failingStore{})

	rec := do(t, srv, http.MethodGet, "/api/stats", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Error, "store offline")
}

func TestCreateLogValidation(t *testing.T) {
	srv := newTestServer(t, nil)

	cases := map[string]CreateLogRequest{
		"missing title": {Category: "job", ImpactLevel: "High"},
		"bad category":  {Title: "x", Category: "hobby", ImpactLevel: "High"},
		"bad impact":    {Title: "x", Category: "job", ImpactLevel: "Huge"},
		"bad date":      {Title: "x", Category: "job", ImpactLevel: "Low", Date: "18/10/2026"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/api/logs", req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Error)
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/logs", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateLogDefaultsDateToToday(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodPost, "/api/logs", CreateLogRequest{Title: "Deep work", Category: "job", ImpactLevel: "Med"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var view LogView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "2026-10-18", view.Date)
	assert.NotEmpty(t, view.ID)
}

func TestUpdateMissingGoalIsNotFound(t *testing.T) {
	srv := newTestServer(t, nil)
	value := 3.0

	rec := do(t, srv, http.MethodPatch, "/api/goals/nope", UpdateGoalRequest{CurrentValue: &value})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIdentityScoreNullUntilRecorded(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/api/identity-score", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "null", rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/identity-score", IdentityScoreRequest{Score: 11})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/identity-score", IdentityScoreRequest{Score: 9, Energy: 7, Stress: 2})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = do(t, srv, http.MethodGet, "/api/identity-score?date=2026-10-18", nil)
	var view IdentityScoreView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 9, view.Score)
	assert.Equal(t, 7, view.Energy)
}

func TestNonNegotiablesToggle(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := do(t, srv, http.MethodPost, "/api/non-negotiables/toggle", NonNegotiableView{Task: "Workout", Completed: true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var items []NonNegotiableView
	require.NoError(t, json.Unmarshal(do(t, srv, http.MethodGet, "/api/non-negotiables", nil).Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, NonNegotiableView{Date: "2026-10-18", Task: "Workout", Completed: true}, items[0])
}

func TestDiaryFilters(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, d := range []DiaryView{
		{Title: "Quiet Sunday", Content: "Long walk", Date: "2026-09-06"},
		{Title: "Launch day", Content: "Nervous but ready", Date: "2026-10-02"},
	} {
		require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/diary", d).Code)
	}

	var entries []DiaryView
	require.NoError(t, json.Unmarshal(do(t, srv, http.MethodGet, "/api/diary?month=10&year=2026", nil).Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Launch day", entries[0].Title)

	require.NoError(t, json.Unmarshal(do(t, srv, http.MethodGet, "/api/diary?search=WALK", nil).Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Quiet Sunday", entries[0].Title)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/diary?month=13", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodGet, "/api/diary?month=oct", nil).Code)
}

func TestListsStartEmpty(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, path := range []string{"/api/logs", "/api/goals", "/api/ideas", "/api/diary", "/api/stop-doing", "/api/reviews"} {
		rec := do(t, srv, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.JSONEq(t, "[]", rec.Body.String(), path)
	}
}

func TestIdeasStopDoingAndReviews(t *testing.T) {
	srv := newTestServer(t, nil)

	assert.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/ideas", IdeaView{Title: "Thread on pricing", Tags: "saas"}).Code)
	assert.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/stop-doing", StopDoingView{Item: "Doomscrolling"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/stop-doing", StopDoingView{Item: " "}).Code)
	assert.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/api/reviews", ReviewView{Type: "daily", Win: "Shipped"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/reviews", ReviewView{Type: "monthly"}).Code)

	var reviews []ReviewView
	require.NoError(t, json.Unmarshal(do(t, srv, http.MethodGet, "/api/reviews", nil).Body.Bytes(), &reviews))
	require.Len(t, reviews, 1)
	assert.Equal(t, "2026-10-18", reviews[0].Date)
	assert.Equal(t, "Shipped", reviews[0].Win)
}

func TestHealthReportsConfiguration(t *testing.T) {
	srv := newTestServer(t, nil, WithStoreDriver("sqlite"), WithCoach(&fakeCoach{}))

	rec := do(t, srv, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","store":"sqlite","ai_configured":true}`, rec.Body.String())
}

func TestAIEndpointsUnavailableWithoutCoach(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, path := range []string{"/api/ai/summary", "/api/ai/coaching", "/api/ai/playbook"} {
		assert.Equal(t, http.StatusServiceUnavailable, do(t, srv, http.MethodPost, path, nil).Code, path)
	}
	rec := do(t, srv, http.MethodPost, "/api/ai/content-ideas", GenerationRequest{Platform: "LinkedIn"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAIEndpointsWithCoach(t *testing.T) {
	coach := &fakeCoach{}
	srv := newTestServer(t, nil, WithCoach(coach))

	rec := do(t, srv, http.MethodPost, "/api/ai/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"text":"summary"}`, rec.Body.String())

	rec = do(t, srv, http.MethodPost, "/api/ai/content-ideas", GenerationRequest{Platform: "LinkedIn"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"text":"ideas for LinkedIn"}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/ai/content-ideas", nil).Code)

	coach.err = errors.New("quota exceeded")
	rec = do(t, srv, http.MethodPost, "/api/ai/playbook", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPercentMarshal(t *testing.T) {
	raw, err := json.Marshal(Percent(domain.Ratio{}))
	require.NoError(t, err)
	assert.Equal(t, "0", string(raw))

	raw, err = json.Marshal(Percent(domain.Ratio{Value: 100, Valid: true}))
	require.NoError(t, err)
	assert.Equal(t, `"100.0"`, string(raw))

	raw, err = json.Marshal(Percent(domain.Ratio{Value: 0, Valid: true}))
	require.NoError(t, err)
	assert.Equal(t, `"0.0"`, string(raw))
}

type fakeCoach struct {
	err error
}

func (f *fakeCoach) WeeklySummary(ctx context.Context) (string, error) { return f.reply("summary") }
func (f *fakeCoach) Coaching(ctx context.Context) (string, error) { return f.reply("coaching") }
func (f *fakeCoach) Playbook(ctx context.Context) (string, error) { return f.reply("playbook") }
func (f *fakeCoach) ContentIdeas(ctx context.Context, platform string) (string, error) {
	return f.reply("ideas for " + platform)
}

func (f *fakeCoach) reply(text string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return text, nil
}

var errStoreOffline = errors.New("store offline")

// failingStore fails every read used by the stats summary.
type failingStore struct {
	domain.Store
}

func (failingStore) ListLogs(context.Context) ([]domain.LogEntry, error) { return nil, errStoreOffline }
func (failingStore) ListGoals(context.Context) ([]domain.Goal, error) { return nil, errStoreOffline }
func (failingStore) ListReviews(context.Context) ([]domain.Review, error) {
	return nil, errStoreOffline
}
func (failingStore) RecentIdentityScores(context.Context, int) ([]domain.IdentityScore, error) {
	return nil, errStoreOffline
}
