package catalog

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/pricefetch/internal/clock/system"
	"github.com/JakeFAU/pricefetch/pkg/crawler"
	"github.com/JakeFAU/pricefetch/pkg/normalize"
	"github.com/JakeFAU/pricefetch/pkg/session"
)

// ErrUnexpectedStatus is returned when a shop answers anything but 200.
var ErrUnexpectedStatus = errors.New("unexpected status")

var commentMarkers = regexp.MustCompile(`<!--|-->`)

// Options carries the collaborators shared by every catalog source.
type Options struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	Clock      normalize.Clock
	// Limiter is shared by every source built with these options.
	Limiter session.Limiter
	Logger  *zap.Logger
}

// Source is a crawler.Crawler and crawler.Authenticator driven by Config.
type Source struct {
	*session.Session

	cfg    Config
	clock  normalize.Clock
	logger *zap.Logger
}

var (
	_ crawler.Crawler       = (*Source)(nil)
	_ crawler.Authenticator = (*Source)(nil)
)

// New validates cfg and opens the shop session.
func New(cfg Config, opts Options) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("source", cfg.Name))
	clk := opts.Clock
	if clk == nil {
		clk = system.New(nil)
	}

	scfg := session.Config{
		Scheme:     cfg.Scheme,
		Netloc:     cfg.Netloc,
		Username:   cfg.Username,
		Password:   cfg.Password,
		UserAgent:  opts.UserAgent,
		Timeout:    opts.Timeout,
		MaxRetries: opts.MaxRetries,
		Limiter:    opts.Limiter,
		Logger:     logger,
	}
	if cfg.StripComments {
		scfg.Preprocess = func(b []byte) []byte { return commentMarkers.ReplaceAll(b, nil) }
	}
	sess, err := session.New(scfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Name, err)
	}
	return &Source{Session: sess, cfg: cfg, clock: clk, logger: logger}, nil
}

// Name returns the configured shop name.
func (s *Source) Name() string { return s.cfg.Name }

// Config returns the validated configuration.
func (s *Source) Config() Config { return s.cfg }

// Login signs in when the shop has a login section; otherwise it is a no-op.
func (s *Source) Login(ctx context.Context) error {
	if s.cfg.Login == nil {
		return nil
	}
	user, pass := s.Credentials()
	form := url.Values{}

	if len(s.cfg.Login.Hidden) > 0 {
		page, err := s.Get(ctx, s.cfg.Login.Path, nil)
		if err != nil {
			return fmt.Errorf("load login page: %w", err)
		}
		if !page.OK() {
			return fmt.Errorf("load login page: %w: %d", ErrUnexpectedStatus, page.StatusCode)
		}
		doc, err := page.HTML()
		if err != nil {
			return fmt.Errorf("load login page: %w", err)
		}
		required := make(map[string]*string, len(s.cfg.Login.Hidden))
		for _, name := range s.cfg.Login.Hidden {
			required[name] = nil
		}
		hidden, err := session.Fill(doc, required)
		if err != nil {
			return fmt.Errorf("login form: %w", err)
		}
		for k, v := range hidden {
			form.Set(k, v)
		}
	}
	form.Set(s.cfg.Login.UserField, user)
	form.Set(s.cfg.Login.PasswordField, pass)

	res, err := s.Post(ctx, s.cfg.Login.Path, form)
	if err != nil {
		return fmt.Errorf("submit login: %w", err)
	}
	if !res.OK() {
		return fmt.Errorf("submit login: %w: %d", ErrUnexpectedStatus, res.StatusCode)
	}
	s.logger.Info("logged in", zap.String("url", res.URL.Redacted()))
	return nil
}

// Fetch searches the shop for q.Term and yields at most q.Quantity records.
func (s *Source) Fetch(ctx context.Context, q crawler.Query) iter.Seq2[crawler.Record, error] {
	return func(yield func(crawler.Record, error) bool) {
		res, err := s.search(ctx, q)
		if err != nil {
			yield(nil, err)
			return
		}
		if !res.OK() {
			yield(nil, fmt.Errorf("search %q: %w: %d", q.Term, ErrUnexpectedStatus, res.StatusCode))
			return
		}

		items, err := s.items(res)
		if err != nil {
			yield(nil, fmt.Errorf("search %q: %w", q.Term, err))
			return
		}
		n := 0
		for item := range items {
			if q.Quantity > 0 && n >= q.Quantity {
				return
			}
			rec := s.record(item, q)
			n++
			if !yield(rec, nil) {
				return
			}
		}
		s.logger.Debug("search done", zap.String("term", q.Term), zap.Int("records", n))
	}
}

func (s *Source) search(ctx context.Context, q crawler.Query) (*session.Response, error) {
	target := strings.NewReplacer(
		"{term}", url.QueryEscape(q.Term),
		"{quantity}", strconv.Itoa(q.Quantity),
	).Replace(s.cfg.SearchPath)

	req := session.Request{Method: s.cfg.Method, URL: target}
	if s.cfg.Method == http.MethodPost {
		// POST searches send the query string as the form body.
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("search path: %w", err)
		}
		req.Form = u.Query()
		u.RawQuery = ""
		req.URL = u.String()
	}
	return s.Do(ctx, req)
}

// items yields one extractor per listed product.
func (s *Source) items(res *session.Response) (iter.Seq[extractor], error) {
	switch s.cfg.Format {
	case FormatJSON:
		value, ok := res.JSON()
		if !ok {
			return nil, fmt.Errorf("expected json, got %s", res.Kind)
		}
		list, ok := lookup(value, s.cfg.Items)
		if !ok {
			return nil, fmt.Errorf("items path %q not found", s.cfg.Items)
		}
		arr, ok := list.([]any)
		if !ok {
			return nil, fmt.Errorf("items path %q is not an array", s.cfg.Items)
		}
		return func(yield func(extractor) bool) {
			for _, v := range arr {
				if !yield(jsonItem{value: v}) {
					return
				}
			}
		}, nil
	default:
		doc, err := res.HTML()
		if err != nil {
			return nil, err
		}
		return func(yield func(extractor) bool) {
			doc.Find(s.cfg.Items).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
				return yield(htmlItem{sel: sel})
			})
		}, nil
	}
}

func (s *Source) record(item extractor, q crawler.Query) crawler.Record {
	rec := crawler.Record{"source": s.cfg.Name, "term": q.Term}
	for _, f := range s.cfg.Fields {
		raw, ok := item.extract(f)
		if !ok {
			rec[f.Name] = nil
			continue
		}
		rec[f.Name] = s.convert(f.Kind, raw)
	}
	return rec
}
