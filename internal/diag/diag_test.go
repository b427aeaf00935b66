package diag

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	appLog "timetable/internal/log"
)

type base string

func (b base) Endpoint(name string) *url.URL {
	u, _ := url.Parse(string(b) + name)
	return u
}

func TestInfoAndErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/dev", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"version":"1.4.0","commit":"abc123"}`))
	})
	mux.HandleFunc("/api/errors", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"where":"scraper","what":"timeout","when":"2026-10-12T08:00:00Z"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.Client(), base(srv.URL+"/api/"))

	info := c.Info(context.Background())
	require.Equal(t, "1.4.0", info["version"])

	errs := c.Errors(context.Background())
	require.Equal(t, []Error{{Where: "scraper", What: "timeout", When: "2026-10-12T08:00:00Z"}}, errs)
}

func TestFailuresAreSwallowed(t *testing.T) {
	var buf bytes.Buffer
	appLog.SetOutput(&buf)
	t.Cleanup(func() { appLog.SetOutput(os.Stderr) })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(nil, base(srv.URL+"/"))

	require.Empty(t, c.Info(context.Background()))
	require.Empty(t, c.Errors(context.Background()))
	require.Contains(t, buf.String(), "failed to get /dev")
	require.Contains(t, buf.String(), "failed to get /errors")
}
