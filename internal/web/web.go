package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"timetable/internal/async"
	"timetable/internal/clock"
	"timetable/internal/config"
	"timetable/internal/diag"
	"timetable/internal/export"
	"timetable/internal/fetch"
	appLog "timetable/internal/log"
	"timetable/internal/model"
	"timetable/internal/query"
	"timetable/internal/schedule"
	"timetable/internal/store"
)

// weekCacheTTL keeps settled fetches around so that a page load hitting
// several endpoints does not refetch the same week.
const weekCacheTTL = 30 * time.Second

// WeekFetcher is the part of *fetch.Fetcher the server needs.
type WeekFetcher interface {
	FetchWeek(ctx context.Context, week int) (fetch.Result, error)
}

// Server exposes the timetable state over HTTP.
type Server struct {
	cfg     *config.Config
	store   *store.Store
	fetcher WeekFetcher
	clock   *clock.Clock
	diag    *diag.Client
	mux     *http.ServeMux

	// Key 0 is "whatever the server says is current".
	weeksMu sync.Mutex
	weeks   map[int]*weekEntry
	// lastWeek is the week most recently served by /api/week or
	// /api/week.ics; /api/active follows it.
	lastWeek int
}

type weekEntry struct {
	promise   *async.Promise[fetch.Result]
	startedAt time.Time
}

// NewServer constructs a new Server. A nil cfg means DefaultConfig; d may be
// nil, which disables /api/dev.
func NewServer(cfg *config.Config, st *store.Store, f WeekFetcher, c *clock.Clock, d *diag.Client) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	s := &Server{
		cfg:     cfg,
		store:   st,
		fetcher: f,
		clock:   c,
		diag:    d,
		mux:     http.NewServeMux(),
		weeks:   make(map[int]*weekEntry),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Timetable", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/week", s.handleWeek)
	s.mux.HandleFunc("GET /api/week.ics", s.handleWeekICS)
	s.mux.HandleFunc("GET /api/active", s.handleActive)
	s.mux.HandleFunc("GET /api/teachers", s.handleTeachers)
	s.mux.HandleFunc("GET /api/rooms", s.handleRooms)
	s.mux.HandleFunc("GET /api/classes", s.handleClasses)
	s.mux.HandleFunc("GET /api/resolve/{kind}/{arg}", s.handleResolve)
	s.mux.HandleFunc("GET /api/dev", s.handleDev)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Week starts (or joins) the fetch of the given week; 0 means current.
func (s *Server) Week(week int) *async.Promise[fetch.Result] {
	now := time.Now()

	s.weeksMu.Lock()
	defer s.weeksMu.Unlock()

	if e, ok := s.weeks[week]; ok {
		switch e.promise.Status() {
		case async.Pending:
			return e.promise
		case async.Ready:
			if now.Sub(e.startedAt) < weekCacheTTL {
				return e.promise
			}
		}
	}

	// Detached from any request context so one cancelled caller does not
	// fail the fetch for everyone sharing it.
	p := async.Wrap(context.Background(), func(ctx context.Context) (fetch.Result, error) {
		return s.fetcher.FetchWeek(ctx, week)
	})
	s.weeks[week] = &weekEntry{promise: p, startedAt: now}
	return p
}

// Refresh drops cached weeks and warms the current week plus the configured
// number of weeks after it, numbered the way the backend numbers them.
// Errors are logged.
func (s *Server) Refresh(ctx context.Context) {
	s.weeksMu.Lock()
	clear(s.weeks)
	s.weeksMu.Unlock()

	res, err := s.Week(0).Wait(ctx)
	if err != nil {
		appLog.Error("refresh: current week failed", err)
		return
	}

	current := s.store.CurrentWeek()
	if current == 0 {
		current = res.Week.Week
	}
	upcoming := schedule.NextWeeks(current, s.cfg.PrefetchWeeks)
	for _, wk := range upcoming {
		if _, err := s.Week(wk).Wait(ctx); err != nil {
			appLog.Error("refresh: prefetch failed", err, "week", wk)
		}
	}
	appLog.Info("refresh done", "prefetched", len(upcoming), "current_week", current)
}

// weekResponse is the JSON shape of /api/week.
type weekResponse struct {
	Week        model.Week    `json:"week"`
	Grid        schedule.Grid `json:"grid"`
	Active      model.Coord   `json:"active"`
	CurrentWeek int           `json:"currentWeek"`
	Stale       bool          `json:"stale"`
}

// handleWeek returns one week and its grid.
//
// GET /api/week?week=12
//   - week: 1..52; anything else falls back to the current week
func (s *Server) handleWeek(w http.ResponseWriter, r *http.Request) {
	res, ok := s.loadWeek(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, weekResponse{
		Week:        res.Week,
		Grid:        res.Grid,
		Active:      schedule.LocateActive(res.Week, s.clock.Now()),
		CurrentWeek: s.store.CurrentWeek(),
		Stale:       res.Stale,
	})
}

func (s *Server) handleWeekICS(w http.ResponseWriter, r *http.Request) {
	res, ok := s.loadWeek(w, r)
	if !ok {
		return
	}
	cal := export.WeekCalendar(res.Week, res.Grid, s.store, export.Options{Name: s.cfg.BannerTitle})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="timetable.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(cal.Serialize()))
}

// activeResponse is the JSON shape of /api/active.
type activeResponse struct {
	Week   int         `json:"week"`
	Active model.Coord `json:"active"`
	Now    time.Time   `json:"now"`
}

// handleActive locates "now" in the last week served to a client, or in the
// current week before any was.
func (s *Server) handleActive(w http.ResponseWriter, r *http.Request) {
	s.weeksMu.Lock()
	week := s.lastWeek
	s.weeksMu.Unlock()

	res, err := s.Week(week).Wait(r.Context())
	if err != nil {
		writeFetchError(w, err)
		return
	}
	now := s.clock.Now()
	writeJSON(w, http.StatusOK, activeResponse{
		Week:   res.Week.Week,
		Active: schedule.LocateActive(res.Week, now),
		Now:    now,
	})
}

func (s *Server) handleTeachers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.SortedTeachers())
}

func (s *Server) handleRooms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.SortedRooms())
}

func (s *Server) handleClasses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.SortedClasses())
}

type resolveResponse struct {
	Kind store.Kind `json:"kind"`
	Key  string     `json:"key"`
}

// handleResolve turns a share link argument into an entity key. The store
// is filled from the current week first if it is still empty.
func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	kind, err := store.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if t, rm, c := s.store.Len(); t+rm+c == 0 {
		if _, err := s.Week(0).Wait(r.Context()); err != nil {
			writeFetchError(w, err)
			return
		}
	}

	key, err := s.store.Resolve(kind, r.PathValue("arg"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resolveResponse{Kind: kind, Key: key})
}

type devResponse struct {
	Backend  map[string]any `json:"backend"`
	Errors   []diag.Error   `json:"errors"`
	Frontend map[string]any `json:"frontend"`
}

func (s *Server) handleDev(w http.ResponseWriter, r *http.Request) {
	if s.diag == nil {
		writeError(w, http.StatusNotFound, "diagnostics disabled")
		return
	}
	writeJSON(w, http.StatusOK, devResponse{
		Backend: s.diag.Info(r.Context()),
		Errors:  s.diag.Errors(r.Context()),
		Frontend: map[string]any{
			"api_path":     s.cfg.APIPath,
			"banner_title": s.cfg.BannerTitle,
		},
	})
}

func (s *Server) loadWeek(w http.ResponseWriter, r *http.Request) (fetch.Result, bool) {
	week, _ := query.Param(r.URL.Query()["week"], query.ParseWeek)

	res, err := s.Week(week).Wait(r.Context())
	if err != nil {
		writeFetchError(w, err)
		return fetch.Result{}, false
	}

	s.weeksMu.Lock()
	s.lastWeek = week
	s.weeksMu.Unlock()
	return res, true
}

func writeFetchError(w http.ResponseWriter, err error) {
	type errResp struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	switch {
	case errors.Is(err, fetch.ErrParse):
		writeJSON(w, http.StatusBadGateway, errResp{Error: err.Error(), Kind: "parse"})
	case errors.Is(err, fetch.ErrNetwork):
		writeJSON(w, http.StatusBadGateway, errResp{Error: err.Error(), Kind: "network"})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
