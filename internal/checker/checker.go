// Package checker asks the validation endpoint whether a username is free.
package checker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"

	"github.com/tdh8316/rbxsniper/internal/httpx"
)

// ErrCanceled is returned by Check when the run was aborted mid-request.
// It matches context.Canceled with errors.Is.
var ErrCanceled = fmt.Errorf("check canceled: %w", context.Canceled)

// Status is the classification of one check.
type Status string

const (
	StatusValid Status = "valid"
	StatusTaken Status = "taken"
	StatusError Status = "error"
)

// Outcome is the tri-state result of a check. Known=false is the
// indeterminate outcome; Err then explains why.
type Outcome struct {
	Code  int
	Known bool
	Err   error
}

func (o Outcome) Status() Status {
	switch {
	case !o.Known:
		return StatusError
	case o.Code == 0:
		return StatusValid
	default:
		return StatusTaken
	}
}

// Coded builds a well-formed outcome.
func Coded(code int) Outcome { return Outcome{Code: code, Known: true} }

// Indeterminate builds an outcome for a failed check.
func Indeterminate(err error) Outcome { return Outcome{Err: err} }

// Checker performs exactly one availability request per call. The only
// error it returns is ErrCanceled.
type Checker interface {
	Check(ctx context.Context, username string) (Outcome, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, username string) (Outcome, error)

func (f CheckerFunc) Check(ctx context.Context, username string) (Outcome, error) {
	return f(ctx, username)
}

// UpstreamError is a non-2xx status, transport failure or malformed body.
type UpstreamError struct {
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("HTTP %d: %v", e.StatusCode, e.Err)
	}
	return e.Err.Error()
}

func (e *UpstreamError) Unwrap() error { return e.Err }

const maxBodyBytes = 64 << 10

type HTTPChecker struct {
	client    httpx.Doer
	endpoint  string
	birthday  string
	userAgent string
}

// NewHTTPChecker queries endpoint?username=..&birthday=.. for every candidate.
func NewHTTPChecker(client httpx.Doer, endpoint, birthday string) *HTTPChecker {
	return &HTTPChecker{
		client:    client,
		endpoint:  endpoint,
		birthday:  birthday,
		userAgent: httpx.DefaultUserAgent,
	}
}

func (c *HTTPChecker) Check(ctx context.Context, username string) (Outcome, error) {
	target, err := c.buildURL(username)
	if err != nil {
		return Indeterminate(&UpstreamError{Err: err}), nil
	}

	req, err := httpx.NewRequest(ctx, http.MethodGet, target, nil, c.userAgent)
	if err != nil {
		return Indeterminate(&UpstreamError{Err: err}), nil
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ErrCanceled
		}
		return Indeterminate(&UpstreamError{Err: errors.Wrap(err, "request failed")}), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return Indeterminate(&UpstreamError{StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ErrCanceled
		}
		return Indeterminate(&UpstreamError{StatusCode: resp.StatusCode, Err: errors.Wrap(err, "read body")}), nil
	}

	code, err := ParseCode(body)
	if err != nil {
		return Indeterminate(&UpstreamError{StatusCode: resp.StatusCode, Err: err}), nil
	}
	return Coded(code), nil
}

func (c *HTTPChecker) buildURL(username string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", errors.Wrap(err, "parse endpoint")
	}
	q := u.Query()
	q.Set("username", username)
	q.Set("birthday", c.birthday)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseCode extracts the numeric top-level "code" field of a validation body.
func ParseCode(body []byte) (int, error) {
	if !gjson.ValidBytes(body) {
		return 0, errors.New("malformed JSON body")
	}
	res := gjson.GetBytes(body, "code")
	if res.Type != gjson.Number {
		return 0, errors.New("missing numeric code")
	}
	return int(res.Int()), nil
}
