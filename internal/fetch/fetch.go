// Package fetch loads one week of the timetable from the backend's /all
// endpoint, merges its entities into the store and returns the week with
// its grid.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	appLog "timetable/internal/log"
	"timetable/internal/model"
	"timetable/internal/query"
	"timetable/internal/schedule"
	"timetable/internal/store"
)

const maxBodyBytes = 16 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// weekPayload is the "week" object of the /all response.
type weekPayload struct {
	Week        int                `json:"week" validate:"min=1,max=52"`
	Dates       []time.Time        `json:"dates" validate:"required"`
	Events      []model.Event      `json:"events" validate:"required,dive"`
	HourOffsets []model.HourOffset `json:"hourOffsets" validate:"required,dive"`
}

// allResponse is the body of GET <api>/all.
type allResponse struct {
	Teachers    []model.Teacher `json:"teachers" validate:"required,dive"`
	Rooms       []model.Room    `json:"rooms" validate:"required,dive"`
	Classes     []model.Class   `json:"classes" validate:"required,dive"`
	CurrentWeek int             `json:"currentWeek" validate:"gte=0,lte=52"`
	Week        *weekPayload    `json:"week" validate:"required"`
}

// Result is one fetched week. Week and Grid belong together.
type Result struct {
	Week        model.Week    `json:"week"`
	Grid        schedule.Grid `json:"grid"`
	CurrentWeek int           `json:"currentWeek"`

	// Seq is the issue order of the request. Stale is set when a request
	// issued later had already been applied; the current-week marker was
	// left alone in that case.
	Seq       uint64 `json:"seq"`
	Stale     bool   `json:"stale"`
	RequestID string `json:"requestId"`
}

// Fetcher talks to the backend. It is safe for concurrent use.
type Fetcher struct {
	client *http.Client
	base   *url.URL
	store  *store.Store

	issued atomic.Uint64

	mu      sync.Mutex
	applied uint64
}

type Option func(*Fetcher)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// WithTimeout sets the request timeout. It works on a copy of the client, so
// a client passed to WithHTTPClient is never modified.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		c := *f.client
		c.Timeout = d
		f.client = &c
	}
}

// NewFetcher creates a Fetcher for the API rooted at baseURL.
func NewFetcher(baseURL string, st *store.Store, opts ...Option) (*Fetcher, error) {
	if st == nil {
		return nil, errors.New("fetch: store is nil")
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("fetch: parse base url: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("fetch: base url %q is not absolute", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	f := &Fetcher{
		client: &http.Client{Timeout: 15 * time.Second},
		base:   u,
		store:  st,
	}
	for _, o := range opts {
		o(f)
	}
	return f, nil
}

// Endpoint resolves a path relative to the API root.
func (f *Fetcher) Endpoint(name string) *url.URL {
	u := *f.base
	u.Path += name
	return &u
}

// Client returns the underlying HTTP client.
func (f *Fetcher) Client() *http.Client { return f.client }

// FetchWeek loads the given week; 0 lets the server pick the current one.
// A week outside 1..52 is ignored with a warning and treated like 0.
//
// Entities are merged into the store before the grid is built, so a
// returned grid never references entities the store has not seen.
func (f *Fetcher) FetchWeek(ctx context.Context, week int) (Result, error) {
	seq := f.issued.Add(1)
	reqID := uuid.NewString()

	u := f.Endpoint("all")
	if week != 0 {
		if _, err := query.ParseWeek(strconv.Itoa(week)); err != nil {
			appLog.Warn("ignoring week number", "week", week, "err", err, "request_id", reqID)
		} else {
			q := u.Query()
			q.Set("week", strconv.Itoa(week))
			u.RawQuery = q.Encode()
		}
	}
	target := u.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{}, &NetworkError{URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	appLog.Debug("week fetch start", "url", target, "seq", seq, "request_id", reqID)

	resp, err := f.client.Do(req)
	if err != nil {
		appLog.Error("week fetch failed", err, "url", target, "request_id", reqID)
		return Result{}, &NetworkError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		nerr := &NetworkError{URL: target, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
		appLog.Error("week fetch non-OK", nerr, "url", target, "status", resp.StatusCode, "request_id", reqID)
		return Result{}, nerr
	}

	payload, err := decode(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		perr := &ParseError{URL: target, Err: err}
		appLog.Error("week fetch parse failed", perr, "request_id", reqID)
		return Result{}, perr
	}

	// A stale response may only add entities the store has never seen; it
	// must not overwrite records from a newer response.
	stale := false
	f.mu.Lock()
	if seq > f.applied {
		f.applied = seq
		f.store.MergeTeachers(payload.Teachers)
		f.store.MergeRooms(payload.Rooms)
		f.store.MergeClasses(payload.Classes)
		f.store.SetCurrentWeek(payload.CurrentWeek)
	} else {
		stale = true
		f.store.FillTeachers(payload.Teachers)
		f.store.FillRooms(payload.Rooms)
		f.store.FillClasses(payload.Classes)
	}
	f.mu.Unlock()

	res := Result{
		Week: model.Week{
			Week:        payload.Week.Week,
			Dates:       payload.Week.Dates,
			HourOffsets: payload.Week.HourOffsets,
		},
		Grid:        schedule.BuildGrid(payload.Week.Events),
		CurrentWeek: payload.CurrentWeek,
		Seq:         seq,
		Stale:       stale,
		RequestID:   reqID,
	}

	appLog.Info("week fetch success",
		"week", res.Week.Week,
		"current_week", res.CurrentWeek,
		"events", len(payload.Week.Events),
		"teachers", len(payload.Teachers),
		"stale", stale,
		"request_id", reqID,
	)
	return res, nil
}

func decode(r io.Reader) (*allResponse, error) {
	var payload allResponse
	dec := json.NewDecoder(r)
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if err := validate.Struct(&payload); err != nil {
		return nil, fmt.Errorf("validate body: %w", err)
	}
	return &payload, nil
}
