package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tdh8316/rbxsniper/internal/checker"
)

type statusCounter struct {
	mu    sync.Mutex
	codes map[string]int
}

func (c *statusCounter) ObserveProxyResponse(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.codes == nil {
		c.codes = map[string]int{}
	}
	c.codes[code]++
}

func quiet() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newUpstream(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func newProxy(t *testing.T, upstream string, opts ...Option) *httptest.Server {
	t.Helper()
	p, err := New(http.DefaultClient, Config{UpstreamURL: upstream, UsernamePolicy: DefaultUsernamePolicy}, quiet(), opts...)
	require.NoError(t, err)
	srv := httptest.NewServer(p.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, base string, q url.Values) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(base + "/api/validate?" + q.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestValidateRelaysVerbatim(t *testing.T) {
	var gotQuery url.Values
	var gotUA string
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotUA = r.UserAgent()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"code":1,"message":"Username is already in use"}`))
	})
	counter := &statusCounter{}
	px := newProxy(t, up.URL, WithObserver(counter))

	status, body := get(t, px.URL, url.Values{"username": {"builder_man"}, "birthday": {"1999-04-20"}})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, body["code"])
	assert.Equal(t, "Username is already in use", body["message"])
	assert.Equal(t, "builder_man", gotQuery.Get("request.username"))
	assert.Equal(t, "1999-04-20", gotQuery.Get("request.birthday"))
	assert.Equal(t, "Mozilla/5.0 (rbx-name-sniper)", gotUA)
	assert.Equal(t, 1, counter.codes["200"])
}

func TestValidateRelaysUpstreamStatus(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"errors":[{"code":0,"message":"Too many requests"}]}`))
	})
	px := newProxy(t, up.URL)

	status, body := get(t, px.URL, url.Values{"username": {"abc"}, "birthday": {"1999-04-20"}})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, body, "errors")
}

func TestValidateMissingParams(t *testing.T) {
	px := newProxy(t, "http://127.0.0.1:1")
	for _, q := range []url.Values{
		{"username": {"abc"}},
		{"birthday": {"1999-04-20"}},
		{},
	} {
		status, body := get(t, px.URL, q)
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Equal(t, "Missing username or birthday", body["error"])
	}
}

func TestValidateInvalidParams(t *testing.T) {
	px := newProxy(t, "http://127.0.0.1:1")
	for _, q := range []url.Values{
		{"username": {"abc"}, "birthday": {"04/20/1999"}},
		{"username": {"_abc"}, "birthday": {"1999-04-20"}},
		{"username": {"a_b_c"}, "birthday": {"1999-04-20"}},
		{"username": {"ab"}, "birthday": {"1999-04-20"}},
		{"username": {"abcdefghijklmnopqrstu"}, "birthday": {"1999-04-20"}},
	} {
		status, body := get(t, px.URL, q)
		assert.Equal(t, http.StatusBadRequest, status, q.Encode())
		assert.NotEmpty(t, body["error"])
	}
}

func TestValidateTransportError(t *testing.T) {
	up := httptest.NewServer(http.NotFoundHandler())
	upURL := up.URL
	up.Close()
	px := newProxy(t, upURL)

	status, body := get(t, px.URL, url.Values{"username": {"abc"}, "birthday": {"1999-04-20"}})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotEmpty(t, body["error"])
}

func TestValidateNonJSONUpstream(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>maintenance</html>"))
	})
	px := newProxy(t, up.URL)

	status, body := get(t, px.URL, url.Values{"username": {"abc"}, "birthday": {"1999-04-20"}})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, body["error"], "non-JSON")
}

func TestHealthzAndMetrics(t *testing.T) {
	px := newProxy(t, "http://127.0.0.1:1", WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("metrics"))
	})))

	resp, err := http.Get(px.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(px.URL + "/metrics")
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "metrics", string(b))
}

func TestNewRejectsBadPolicy(t *testing.T) {
	_, err := New(http.DefaultClient, Config{UsernamePolicy: "(("}, quiet())
	assert.Error(t, err)
}

func TestCheckerThroughProxy(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("request.username") == "free1" {
			_, _ = w.Write([]byte(`{"code":0,"message":"Username is valid"}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":1,"message":"Username is already in use"}`))
	})
	px := newProxy(t, up.URL)
	c := checker.NewHTTPChecker(http.DefaultClient, px.URL+"/api/validate", "1999-04-20")

	out, err := c.Check(context.Background(), "free1")
	require.NoError(t, err)
	assert.Equal(t, checker.StatusValid, out.Status())

	out, err = c.Check(context.Background(), "roblox")
	require.NoError(t, err)
	assert.Equal(t, checker.StatusTaken, out.Status())

	// Rejected by the policy: the proxy answers 400, the checker sees an indeterminate outcome.
	out, err = c.Check(context.Background(), "_bad_")
	require.NoError(t, err)
	assert.Equal(t, checker.StatusError, out.Status())
}
