package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// DefaultUserAgent is a desktop browser string; several shops refuse
// obvious bot agents.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/78.0.3904.108 Safari/537.36"

const (
	defaultTimeout      = 30 * time.Second
	defaultMaxRedirects = 30
)

var (
	// ErrInvalidScheme is returned by New for schemes other than http and https.
	ErrInvalidScheme = errors.New("scheme must be http or https")
	// ErrTooManyRedirects stops a redirect chain longer than Config.MaxRedirects.
	ErrTooManyRedirects = errors.New("too many redirects")
)

// Config binds a session to one shop.
type Config struct {
	Scheme   string
	Netloc   string
	Username string
	Password string

	UserAgent    string
	Timeout      time.Duration
	MaxRedirects int

	// Preprocess rewrites a body before it is parsed as HTML.
	Preprocess func([]byte) []byte
	// MaxRetries is how many times an idempotent request is re-sent after a
	// connection error or a 429/502/503/504. Zero disables retries.
	MaxRetries int
	// Limiter, when set, is consulted before every attempt.
	Limiter Limiter
	Logger  *zap.Logger
}

// Limiter throttles requests per host.
type Limiter interface {
	Wait(ctx context.Context, host string) error
}

// Session is safe for concurrent use; all requests share one cookie jar.
type Session struct {
	cfg       Config
	base      *url.URL
	collector *colly.Collector
	logger    *zap.Logger
}

// Request describes one call. URL may be relative to the session domain.
type Request struct {
	Method string
	URL    string
	Params url.Values
	// Form is sent url-encoded; JSON, when set, takes precedence.
	Form   url.Values
	JSON   any
	Header http.Header
}

// New validates cfg and builds the session's collector.
func New(cfg Config) (*Session, error) {
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	if cfg.Scheme != "http" && cfg.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidScheme, cfg.Scheme)
	}
	if strings.TrimSpace(cfg.Netloc) == "" {
		return nil, errors.New("netloc is required")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := url.Parse(cfg.Scheme + "://" + cfg.Netloc)
	if err != nil {
		return nil, fmt.Errorf("parse domain: %w", err)
	}

	c := colly.NewCollector(colly.Async(false))
	c.UserAgent = cfg.UserAgent
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)
	maxRedirects := cfg.MaxRedirects
	c.SetRedirectHandler(func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return ErrTooManyRedirects
		}
		return nil
	})

	return &Session{cfg: cfg, base: base, collector: c, logger: logger}, nil
}

// Domain is scheme://netloc.
func (s *Session) Domain() string {
	return s.base.String()
}

// BaseURL returns a copy of the domain URL.
func (s *Session) BaseURL() *url.URL {
	u := *s.base
	return &u
}

// Credentials returns the configured login.
func (s *Session) Credentials() (username, password string) {
	return s.cfg.Username, s.cfg.Password
}

// Get is Do with GET.
func (s *Session) Get(ctx context.Context, rawURL string, params url.Values) (*Response, error) {
	return s.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Params: params})
}

// Post is Do with a url-encoded form.
func (s *Session) Post(ctx context.Context, rawURL string, form url.Values) (*Response, error) {
	return s.Do(ctx, Request{Method: http.MethodPost, URL: rawURL, Form: form})
}

// Do performs req and sniffs the body of a 200 response. GET and HEAD
// requests that fail with a connection error or a retryable status are sent
// again up to Config.MaxRetries times.
func (s *Session) Do(ctx context.Context, req Request) (*Response, error) {
	target, err := s.resolve(req.URL, req.Params)
	if err != nil {
		return nil, err
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	body, header, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	retries := 0
	if method == http.MethodGet || method == http.MethodHead {
		retries = s.cfg.MaxRetries
	}
	for attempt := 0; ; attempt++ {
		if s.cfg.Limiter != nil {
			if err := s.cfg.Limiter.Wait(ctx, target.Hostname()); err != nil {
				return nil, err
			}
		}
		res, err := s.once(ctx, method, target, body, header)
		if err != nil || attempt >= retries || !retryable(res.StatusCode) {
			return res, err
		}
		delay := backoff(attempt)
		s.logger.Debug("retrying request",
			zap.String("url", target.Redacted()),
			zap.Int("status", res.StatusCode),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
		)
		if err := sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("request %s %s canceled: %w", method, target.Redacted(), err)
		}
	}
}

func (s *Session) once(ctx context.Context, method string, target *url.URL, body []byte, header http.Header) (*Response, error) {
	var (
		status      int
		contentType string
		payload     []byte
		final       *url.URL
	)
	collector := s.collector.Clone()
	collector.Context = ctx
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		payload = r.Body
		if r.Headers != nil {
			contentType = decodedContentType(r.Headers.Get("Content-Type"))
		}
		if r.Request != nil && r.Request.URL != nil {
			final = r.Request.URL
		}
	})

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	done := make(chan error, 1)
	go func() {
		done <- collector.Request(method, target.String(), reader, nil, header)
	}()

	var visitErr error
	select {
	case <-ctx.Done():
	case visitErr = <-done:
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("request %s %s canceled: %w", method, target.Redacted(), ctx.Err())
	}

	if visitErr != nil {
		return s.failed(method, target, visitErr), nil
	}
	if final == nil {
		final = target
	}
	res := &Response{StatusCode: status, URL: final, Query: final.Query()}
	if status != http.StatusOK {
		res.Content, res.Kind = http.StatusText(status), KindStatus
		return res, nil
	}
	res.Content, res.Kind = sniff(payload, contentType, s.cfg.Preprocess)
	return res, nil
}

// decodedContentType reports the body encoding sniff will see. colly has
// already converted the body to UTF-8 when the header names a charset, so
// only a header without one leaves detection to <meta> or chardet.
func decodedContentType(header string) string {
	if !strings.Contains(strings.ToLower(header), "charset") {
		return header
	}
	mediaType, _, _ := strings.Cut(header, ";")
	return strings.TrimSpace(mediaType) + "; charset=utf-8"
}

func (s *Session) failed(method string, target *url.URL, err error) *Response {
	res := &Response{StatusCode: StatusConnectionError, URL: target, Query: target.Query()}
	if errors.Is(err, ErrTooManyRedirects) {
		res.StatusCode = StatusTooManyRedirects
	}
	s.logger.Debug("request failed",
		zap.String("method", method),
		zap.String("url", target.Redacted()),
		zap.Int("status", res.StatusCode),
		zap.Error(err),
	)
	return res
}

func (s *Session) resolve(rawURL string, params url.Values) (*url.URL, error) {
	ref, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}
	target := s.base.ResolveReference(ref)
	if len(params) > 0 {
		q := target.Query()
		for key, values := range params {
			for _, v := range values {
				q.Add(key, v)
			}
		}
		target.RawQuery = q.Encode()
	}
	return target, nil
}

func encodeBody(req Request) ([]byte, http.Header, error) {
	header := http.Header{}
	for key, values := range req.Header {
		for _, v := range values {
			header.Add(key, v)
		}
	}
	switch {
	case req.JSON != nil:
		raw, err := sonic.Marshal(req.JSON)
		if err != nil {
			return nil, nil, fmt.Errorf("encode json body: %w", err)
		}
		header.Set("Content-Type", "application/json")
		return raw, header, nil
	case req.Form != nil:
		header.Set("Content-Type", "application/x-www-form-urlencoded")
		return []byte(req.Form.Encode()), header, nil
	default:
		return nil, header, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
