// Package proxy forwards username checks to the upstream validation
// service and relays its JSON body and status unchanged.
package proxy

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/tdh8316/rbxsniper/internal/config"
	"github.com/tdh8316/rbxsniper/internal/httpx"
)

const (
	DefaultUpstreamURL = "https://auth.roblox.com/v1/usernames/validate"

	// DefaultUsernamePolicy: 3-20 alphanumerics with at most one inner underscore.
	DefaultUsernamePolicy = `^(?=.{3,20}$)[A-Za-z0-9]+(?:_[A-Za-z0-9]+)?$`

	maxUpstreamBody = 1 << 20
)

// ResponseObserver counts written responses by status code.
type ResponseObserver interface {
	ObserveProxyResponse(code string)
}

type Config struct {
	UpstreamURL string
	UserAgent   string
	// UsernamePolicy is a regexp2 (.NET flavour) pattern. Empty disables it.
	UsernamePolicy string
	Timeout        time.Duration
}

type Server struct {
	client   httpx.Doer
	cfg      Config
	policy   *regexp2.Regexp
	log      logrus.FieldLogger
	observer ResponseObserver
	metrics  http.Handler
}

type Option func(*Server)

// WithObserver records every response status.
func WithObserver(o ResponseObserver) Option {
	return func(s *Server) { s.observer = o }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

func New(client httpx.Doer, cfg Config, log logrus.FieldLogger, opts ...Option) (*Server, error) {
	if cfg.UpstreamURL == "" {
		cfg.UpstreamURL = DefaultUpstreamURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = httpx.DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if _, err := url.Parse(cfg.UpstreamURL); err != nil {
		return nil, errors.Wrap(err, "parse upstream url")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	s := &Server{
		client: client,
		cfg:    cfg,
		log:    log.WithField("component", "proxy"),
	}
	if cfg.UsernamePolicy != "" {
		re, err := regexp2.Compile(cfg.UsernamePolicy, 0)
		if err != nil {
			return nil, errors.Wrap(err, "compile username policy")
		}
		s.policy = re
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Routes returns the proxy's HTTP surface.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/validate", s.handleValidate)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	birthday := r.URL.Query().Get("birthday")

	if username == "" || birthday == "" {
		s.writeError(w, http.StatusBadRequest, "Missing username or birthday")
		return
	}
	if err := config.ValidateBirthday(birthday); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.checkPolicy(username); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	status, body, err := s.forward(r, username, birthday)
	if err != nil {
		s.log.WithError(err).WithField("username", username).Warn("upstream request failed")
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = w.Write(body)
	s.observe(status)
}

func (s *Server) checkPolicy(username string) error {
	if s.policy == nil {
		return nil
	}
	ok, err := s.policy.MatchString(username)
	if err != nil {
		return errors.Wrap(err, "username policy")
	}
	if !ok {
		return &config.ConfigurationError{Field: "username", Reason: "does not satisfy the username policy"}
	}
	return nil
}

// TransportError is a failure to reach the upstream or read its answer.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string { return e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

func (s *Server) forward(r *http.Request, username, birthday string) (int, []byte, error) {
	u, err := url.Parse(s.cfg.UpstreamURL)
	if err != nil {
		return 0, nil, &TransportError{Err: errors.Wrap(err, "parse upstream url")}
	}
	q := u.Query()
	q.Set("request.username", username)
	q.Set("request.birthday", birthday)
	u.RawQuery = q.Encode()

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	req, err := httpx.NewRequest(ctx, http.MethodGet, u.String(), nil, s.cfg.UserAgent)
	if err != nil {
		return 0, nil, &TransportError{Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return 0, nil, &TransportError{Err: errors.Wrap(err, "read upstream body")}
	}
	if !gjson.ValidBytes(body) {
		return 0, nil, &TransportError{Err: errors.Errorf("upstream returned a non-JSON body (HTTP %d)", resp.StatusCode)}
	}
	return resp.StatusCode, body, nil
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
	s.observe(status)
}

func (s *Server) observe(status int) {
	if s.observer != nil {
		s.observer.ObserveProxyResponse(strconv.Itoa(status))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
