package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"timetable/internal/clock"
	"timetable/internal/config"
	"timetable/internal/diag"
	"timetable/internal/fetch"
	"timetable/internal/model"
	"timetable/internal/schedule"
	"timetable/internal/store"
)

var d0 = time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	st      *store.Store
	err     error
	current int

	mu    sync.Mutex
	calls []int
}

func (f *fakeFetcher) FetchWeek(_ context.Context, week int) (fetch.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, week)
	f.mu.Unlock()

	if f.err != nil {
		return fetch.Result{}, f.err
	}
	f.st.MergeTeachers([]model.Teacher{
		{Key: "t2", Short: "ZUP", FullName: "Cvetka Zupan"},
		{Key: "t1", Short: "NOV", FullName: "Ana Novak"},
	})
	f.st.SetCurrentWeek(f.current)

	if week == 0 {
		week = f.current
	}
	w := model.Week{
		Week:        week,
		Dates:       []time.Time{d0},
		HourOffsets: []model.HourOffset{{StartOffset: 8 * 3600000, EndOffset: 9 * 3600000}},
	}
	return fetch.Result{
		Week: w,
		Grid: schedule.BuildGrid([]model.Event{{DayIndex: 0, PeriodIndex: 0, ClassKey: "c1", Title: model.Title{Long: "Matematika"}, TeacherKey: "t1"}}),
	}, nil
}

func (f *fakeFetcher) Calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.calls...)
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, *fakeFetcher) {
	t.Helper()
	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	st := store.New()
	ff := &fakeFetcher{st: st, current: 42}
	clk := clock.New(func() time.Time { return d0.Add(8*time.Hour + 10*time.Minute) })
	return NewServer(cfg, st, ff, clk, nil), ff
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := get(t, s.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "OK", rec.Body.String())
}

func TestWeekEndpoint(t *testing.T) {
	s, ff := newTestServer(t, nil)

	rec := get(t, s.Handler(), "/api/week?week=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Week        model.Week                          `json:"week"`
		Grid        map[string]map[string][]model.Event `json:"grid"`
		Active      model.Coord                         `json:"active"`
		CurrentWeek int                                 `json:"currentWeek"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 5, body.Week.Week)
	require.Equal(t, "Matematika", body.Grid["0"]["0"][0].Title.Long)
	require.Equal(t, model.Coord{DayIndex: 0, PeriodIndex: 0}, body.Active)
	require.Equal(t, 42, body.CurrentWeek)
	require.Equal(t, []int{5}, ff.Calls())
}

func TestWeekEndpointInvalidWeekFallsBack(t *testing.T) {
	s, ff := newTestServer(t, nil)

	rec := get(t, s.Handler(), "/api/week?week=99")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []int{0}, ff.Calls())
}

func TestWeekIsSharedWhileCached(t *testing.T) {
	s, ff := newTestServer(t, nil)

	p1 := s.Week(7)
	p2 := s.Week(7)
	require.Same(t, p1, p2)

	_, err := p1.Wait(context.Background())
	require.NoError(t, err)
	require.Same(t, p1, s.Week(7))
	require.Equal(t, []int{7}, ff.Calls())
}

func TestFetchErrorsAreNotCached(t *testing.T) {
	s, ff := newTestServer(t, nil)
	ff.err = &fetch.NetworkError{URL: "http://backend/all", StatusCode: http.StatusServiceUnavailable}

	rec := get(t, s.Handler(), "/api/week")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), `"kind":"network"`)

	ff.err = nil
	rec = get(t, s.Handler(), "/api/week")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []int{0, 0}, ff.Calls())
}

func TestParseErrorKind(t *testing.T) {
	s, ff := newTestServer(t, nil)
	ff.err = &fetch.ParseError{URL: "http://backend/all"}

	rec := get(t, s.Handler(), "/api/active")
	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), `"kind":"parse"`)
}

func TestSortedEntityEndpoints(t *testing.T) {
	s, _ := newTestServer(t, nil)
	_, err := s.Week(0).Wait(context.Background())
	require.NoError(t, err)

	rec := get(t, s.Handler(), "/api/teachers")
	require.Equal(t, http.StatusOK, rec.Code)

	var teachers []model.Teacher
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &teachers))
	require.Len(t, teachers, 2)
	require.Equal(t, "NOV", teachers[0].Short)

	rec = get(t, s.Handler(), "/api/rooms")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestActiveEndpoint(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := get(t, s.Handler(), "/api/active")
	require.Equal(t, http.StatusOK, rec.Code)

	var body activeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 42, body.Week)
	require.Equal(t, model.Coord{DayIndex: 0, PeriodIndex: 0}, body.Active)
}

func TestResolveFetchesWhenStoreEmpty(t *testing.T) {
	s, ff := newTestServer(t, nil)

	rec := get(t, s.Handler(), "/api/resolve/teacher/Ana%20Novak")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"kind":"teacher","key":"t1"}`, rec.Body.String())
	require.Equal(t, []int{0}, ff.Calls())

	rec = get(t, s.Handler(), "/api/resolve/teacher/Nobody%20At%20All")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, s.Handler(), "/api/resolve/pupil/x")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWeekICS(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := get(t, s.Handler(), "/api/week.ics?week=42")
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/calendar"))
	require.Contains(t, rec.Body.String(), "BEGIN:VEVENT")
	require.Contains(t, rec.Body.String(), "SUMMARY:Matematika")
}

func TestDevDisabledWithoutClient(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := get(t, s.Handler(), "/api/dev")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBasicAuth(t *testing.T) {
	s, _ := newTestServer(t, func(c *config.Config) {
		c.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	})
	h := s.Handler()

	require.Equal(t, http.StatusOK, get(t, h, "/health").Code)
	require.Equal(t, http.StatusUnauthorized, get(t, h, "/api/teachers").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/teachers", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRefreshPrefetches(t *testing.T) {
	s, ff := newTestServer(t, func(c *config.Config) { c.PrefetchWeeks = 2 })
	// The clock sits in ISO week 42; the backend counts school weeks.
	ff.current = 7

	s.Refresh(context.Background())

	require.Equal(t, []int{0, 8, 9}, ff.Calls())
}

func TestRefreshPrefetchWrapsAtYearEnd(t *testing.T) {
	s, ff := newTestServer(t, func(c *config.Config) { c.PrefetchWeeks = 3 })
	ff.current = 51

	s.Refresh(context.Background())

	require.Equal(t, []int{0, 52, 1, 2}, ff.Calls())
}

func TestActiveFollowsLastServedWeek(t *testing.T) {
	s, ff := newTestServer(t, nil)

	require.Equal(t, http.StatusOK, get(t, s.Handler(), "/api/week?week=5").Code)

	rec := get(t, s.Handler(), "/api/active")
	require.Equal(t, http.StatusOK, rec.Code)

	var body activeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 5, body.Week)
	require.Equal(t, model.Coord{DayIndex: 0, PeriodIndex: 0}, body.Active)
	require.Equal(t, []int{5}, ff.Calls())
}

func TestNilConfigUsesDefaults(t *testing.T) {
	st := store.New()
	ff := &fakeFetcher{st: st, current: 42}
	clk := clock.New(func() time.Time { return d0.Add(8*time.Hour + 10*time.Minute) })
	backend := httptest.NewServer(http.NotFoundHandler())
	defer backend.Close()
	api, err := fetch.NewFetcher(backend.URL+"/", st)
	require.NoError(t, err)
	s := NewServer(nil, st, ff, clk, diag.NewClient(backend.Client(), api))

	rec := get(t, s.Handler(), "/api/week.ics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "BEGIN:VCALENDAR")

	rec = get(t, s.Handler(), "/api/dev")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"api_path":"`+config.DefaultConfig().APIPath+`"`)
}
