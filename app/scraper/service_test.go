package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/alanindra/news-enricher/app/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type annotatorFunc func(ctx context.Context, article store.Article) ([]string, error)

func (f annotatorFunc) People(ctx context.Context, article store.Article) ([]string, error) {
	return f(ctx, article)
}

func TestService_Enrich(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, err := w.Write(articleHTML)
		require.NoError(t, err)
	}))
	defer ts.Close()

	svc := NewService(ts.Client(),
		annotatorFunc(func(_ context.Context, article store.Article) ([]string, error) {
			assert.NotEmpty(t, article.Content)
			return []string{"Richard Hale", "Maria Keane"}, nil
		}),
		NewExtractor(), store.NoOp{})

	article, err := svc.Enrich(context.Background(), ts.URL)
	require.NoError(t, err)

	assert.Equal(t, ts.URL, article.URL)
	assert.Equal(t, "PM Announces New Climate Deal", article.Title)
	assert.Equal(t, "Jane Doe", article.Journalist)
	assert.Equal(t, []string{"Richard Hale", "Maria Keane"}, article.People)
}

func TestService_Enrich_fetchFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	svc := NewService(ts.Client(),
		annotatorFunc(func(context.Context, store.Article) ([]string, error) {
			t.Fatal("annotator must not be called")
			return nil, nil
		}),
		NewExtractor(), store.NoOp{})

	article, err := svc.Enrich(context.Background(), ts.URL)

	fetchErr := &FetchError{}
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)

	// record survives with its URL, fields stay empty
	assert.Equal(t, store.Article{URL: ts.URL}, article)
}

func TestService_Enrich_annotationFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write(articleHTML)
		require.NoError(t, err)
	}))
	defer ts.Close()

	svc := NewService(ts.Client(),
		annotatorFunc(func(context.Context, store.Article) ([]string, error) {
			return nil, errors.New("quota exhausted")
		}),
		NewExtractor(), store.NoOp{})

	article, err := svc.Enrich(context.Background(), ts.URL)

	annErr := &AnnotationError{}
	require.ErrorAs(t, err, &annErr)

	assert.Equal(t, "PM Announces New Climate Deal", article.Title)
	assert.Equal(t, "Jane Doe", article.Journalist)
	assert.Empty(t, article.People)
}

func TestService_Enrich_cached(t *testing.T) {
	cache, err := store.NewBolt(t.TempDir())
	require.NoError(t, err)
	defer func() { require.NoError(t, cache.Close()) }()

	cached := store.Article{URL: "http://example.com/article", Title: "cached", Content: "body"}
	require.NoError(t, cache.Put(context.Background(), cached))

	// no server behind the client, a cache miss would fail loudly
	svc := NewService(&http.Client{},
		annotatorFunc(func(context.Context, store.Article) ([]string, error) {
			t.Fatal("annotator must not be called")
			return nil, nil
		}),
		NewExtractor(), cache)

	article, err := svc.Enrich(context.Background(), cached.URL)
	require.NoError(t, err)
	assert.Equal(t, cached, article)
}

func TestService_Run(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, err := w.Write(articleHTML)
		require.NoError(t, err)
	}))
	defer ts.Close()

	svc := NewService(ts.Client(),
		annotatorFunc(func(context.Context, store.Article) ([]string, error) {
			return []string{"Richard Hale"}, nil
		}),
		NewExtractor(), store.NoOp{}, WithWorkers(4))

	urls := []string{ts.URL + "/a", ts.URL + "/missing", ts.URL + "/b", ts.URL + "/c"}

	articles, stats, err := svc.Run(context.Background(), urls)
	require.NoError(t, err)
	require.Len(t, articles, len(urls))

	// output order follows input order regardless of worker count
	for i, u := range urls {
		assert.Equal(t, u, articles[i].URL)
	}

	assert.Equal(t, Stats{Total: 4, FetchFailures: 1}, stats)
	assert.Empty(t, articles[1].Title)
	assert.Equal(t, "PM Announces New Climate Deal", articles[2].Title)
	assert.EqualValues(t, 4, atomic.LoadInt32(&hits))
}

func TestService_Run_zeroWorkers(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := w.Write(articleHTML)
		require.NoError(t, err)
	}))
	defer ts.Close()

	svc := NewService(ts.Client(),
		annotatorFunc(func(context.Context, store.Article) ([]string, error) { return nil, nil }),
		NewExtractor(), store.NoOp{}, WithWorkers(0))

	assert.Equal(t, 1, svc.Workers)

	articles, stats, err := svc.Run(context.Background(), []string{ts.URL})
	require.NoError(t, err)

	require.Len(t, articles, 1)
	assert.Equal(t, "PM Announces New Climate Deal", articles[0].Title)
	assert.Equal(t, Stats{Total: 1}, stats)
}

func TestService_Run_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService(&http.Client{},
		annotatorFunc(func(context.Context, store.Article) ([]string, error) { return nil, nil }),
		NewExtractor(), store.NoOp{})

	articles, _, err := svc.Run(ctx, []string{"http://example.com/a", "http://example.com/b"})
	require.ErrorIs(t, err, context.Canceled)

	// unprocessed records still carry their URLs
	require.Len(t, articles, 2)
	assert.Equal(t, "http://example.com/a", articles[0].URL)
	assert.Equal(t, "http://example.com/b", articles[1].URL)
}
