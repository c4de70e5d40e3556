// Package scraper contains services for fetching and enriching articles.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/alanindra/news-enricher/app/store"
	"github.com/alanindra/news-enricher/pkg/logx"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

// Annotator returns person names mentioned in the article content.
type Annotator interface {
	People(ctx context.Context, article store.Article) ([]string, error)
}

// FetchError reports a failed page download.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

// Error returns the error message.
func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: bad status code: %d", e.URL, e.StatusCode)
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error { return e.Err }

// AnnotationError reports a failed NLP-service call.
type AnnotationError struct {
	URL string
	Err error
}

// Error returns the error message.
func (e *AnnotationError) Error() string { return fmt.Sprintf("annotate %s: %v", e.URL, e.Err) }

// Unwrap returns the underlying error.
func (e *AnnotationError) Unwrap() error { return e.Err }

// Stats summarizes degraded records of a single run.
type Stats struct {
	Total              int
	FetchFailures      int
	EmptyExtracts      int
	AnnotationFailures int
}

// Options defines options for Service.
type Options struct {
	Workers int
	Logger  *slog.Logger
}

// Option defines a function that configures Service.
type Option func(*Options)

// WithWorkers sets the number of workers to run.
func WithWorkers(workers int) Option {
	return func(o *Options) { o.Workers = workers }
}

// WithLogger sets the logger to use.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) { o.Logger = logger }
}

// Service enriches article URLs: fetch, extract, annotate.
type Service struct {
	cl        *http.Client
	annotator Annotator
	extractor Extractor
	cache     store.Interface
	Options
}

// NewService creates new service.
func NewService(cl *http.Client, annotator Annotator, extractor Extractor, cache store.Interface, opts ...Option) *Service {
	options := Options{
		Workers: 1,
		Logger:  slog.New(logx.NoOp()),
	}

	for _, opt := range opts {
		opt(&options)
	}

	// a pool below one worker would never drain the jobs channel
	if options.Workers < 1 {
		options.Workers = 1
	}

	return &Service{
		cl:        cl,
		annotator: annotator,
		extractor: extractor,
		cache:     cache,
		Options:   options,
	}
}

// Run enriches all URLs over a pool of workers and returns records in
// input order. Per-record failures degrade that record's fields and are
// counted in stats; Run fails only when the context is canceled.
func (s *Service) Run(ctx context.Context, urls []string) ([]store.Article, Stats, error) {
	type job struct {
		idx int
		url string
	}

	articles := make([]store.Article, len(urls))
	errs := make([]error, len(urls))
	for i, u := range urls {
		articles[i] = store.Article{URL: u}
	}

	jobs := make(chan job)
	wg := &sync.WaitGroup{}
	wg.Add(s.Workers)

	for i := 0; i < s.Workers; i++ {
		go func(idx int) {
			s.Logger.DebugCtx(ctx, "starting worker", slog.Int("worker", idx))

			defer func() {
				s.Logger.DebugCtx(ctx, "stopping worker", slog.Int("worker", idx))
				wg.Done()
			}()

			for j := range jobs {
				rctx := logx.ContextWithRequestID(ctx, uuid.New().String())
				articles[j.idx], errs[j.idx] = s.Enrich(rctx, j.url)

				s.Logger.InfoCtx(rctx, "processed article",
					slog.Int("n", j.idx+1),
					slog.Int("total", len(urls)),
					slog.String("url", j.url),
				)
			}
		}(i)
	}

feed:
	for i, u := range urls {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- job{idx: i, url: u}:
		}
	}
	close(jobs)
	wg.Wait()

	stats := Stats{Total: len(urls)}
	for i, err := range errs {
		var fetchErr *FetchError
		var annErr *AnnotationError

		switch {
		case err == nil:
			if articles[i].Empty() {
				stats.EmptyExtracts++
			}
		case errors.As(err, &fetchErr):
			stats.FetchFailures++
			s.Logger.WarnCtx(ctx, "fetch failed", slog.String("url", urls[i]), slog.Any("err", err))
		case errors.As(err, &annErr):
			stats.AnnotationFailures++
			s.Logger.WarnCtx(ctx, "annotation failed", slog.String("url", urls[i]), slog.Any("err", err))
		default:
			stats.EmptyExtracts++
			s.Logger.WarnCtx(ctx, "extraction failed", slog.String("url", urls[i]), slog.Any("err", err))
		}
	}

	if err := ctx.Err(); err != nil {
		return articles, stats, fmt.Errorf("run interrupted: %w", err)
	}

	return articles, stats, nil
}

// Enrich processes a single URL. It always returns a usable record with
// at least the URL set; a non-nil error reports which stage degraded it.
func (s *Service) Enrich(ctx context.Context, u string) (store.Article, error) {
	if cached, err := s.cache.Get(ctx, u); err == nil {
		s.Logger.DebugCtx(ctx, "cache hit", slog.String("url", u))
		return cached, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		s.Logger.WarnCtx(ctx, "cache lookup failed", slog.Any("err", err))
	}

	article := store.Article{URL: u}

	body, err := s.fetch(ctx, u)
	if err != nil {
		return article, err
	}

	extracted, err := s.extractor.Extract(bytes.NewReader(body))
	if err != nil {
		return article, fmt.Errorf("extract article: %w", err)
	}
	extracted.URL = u
	article = extracted

	if article.Content == "" {
		return article, nil
	}

	if article.People, err = s.annotator.People(ctx, article); err != nil {
		article.People = nil
		return article, &AnnotationError{URL: u, Err: err}
	}

	if err := s.cache.Put(ctx, article); err != nil {
		s.Logger.WarnCtx(ctx, "cache put failed", slog.Any("err", err))
	}

	return article, nil
}

func (s *Service) fetch(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}

	resp, err := s.cl.Do(req)
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.Logger.WarnCtx(ctx, "failed to close response body", slog.Any("err", err))
		}
	}()

	ok := resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
	if !ok {
		return nil, &FetchError{URL: u, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: u, Err: err}
	}

	return body, nil
}
