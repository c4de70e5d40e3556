// Package cmd contains commands for the application.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alanindra/news-enricher/app/annotate"
	"github.com/alanindra/news-enricher/app/csvio"
	"github.com/alanindra/news-enricher/app/scraper"
	"github.com/alanindra/news-enricher/app/store"
	"github.com/alanindra/news-enricher/pkg/logx"
	"github.com/go-pkgz/requester"
	"github.com/go-pkgz/requester/middleware"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/exp/slog"
	"golang.org/x/sync/errgroup"
)

// Run is a command to enrich article URLs from CSV.
type Run struct {
	Input  []string `short:"i" long:"input" env:"INPUT" env-delim:"," required:"true" description:"path(s) to input CSVs with article URLs"`
	Output string   `short:"o" long:"output" env:"OUTPUT" required:"true" description:"path to the enriched output CSV"`

	Fetcher struct {
		Timeout   time.Duration `long:"timeout" env:"TIMEOUT" default:"30s" description:"timeout for a single page download"`
		UserAgent string        `long:"user-agent" env:"USER_AGENT" default:"news-enricher/1.0" description:"User-Agent header for page downloads"`
		Workers   int           `long:"workers" env:"WORKERS" default:"1" description:"number of concurrent workers"`
	} `group:"fetcher" namespace:"fetcher" env-namespace:"FETCHER"`

	Annotator struct {
		OpenAI struct {
			Token     string        `long:"token" env:"TOKEN" description:"OpenAI token"`
			MaxTokens int           `long:"max-tokens" env:"MAX_TOKENS" default:"1000" description:"max response tokens for OpenAI"`
			Timeout   time.Duration `long:"timeout" env:"TIMEOUT" default:"5m" description:"timeout for OpenAI calls"`
		} `group:"openai" namespace:"openai" env-namespace:"OPENAI"`
	} `group:"annotator" namespace:"annotator" env-namespace:"ANNOTATOR"`

	StorePath string `long:"store-path" env:"STORE_PATH" description:"parent dir for the bolt cache of enriched articles, empty disables it"`
}

// Execute runs the command.
func (r Run) Execute(_ []string) error {
	started := time.Now()
	lg := slog.Default()

	urls, skipped, err := r.readInputs(lg)
	if err != nil {
		return err
	}

	cache, err := r.makeCache()
	if err != nil {
		return fmt.Errorf("make cache: %w", err)
	}

	defer func() {
		if err := cache.Close(); err != nil {
			lg.Error("close article cache", slog.Any("err", err))
		}
	}()

	rq := requester.New(
		http.Client{Timeout: r.Fetcher.Timeout},
		middleware.Header("User-Agent", r.Fetcher.UserAgent),
		logx.LoggingRoundTripper(
			lg.With(slog.String("prefix", "http")),
			logx.RoundTripperOpts{Level: slog.LevelDebug, SecretHeaders: []string{"Authorization"}},
		),
	)

	svc := scraper.NewService(
		rq.Client(),
		annotate.NewChatGPT(
			lg.With(slog.String("prefix", "chatgpt")),
			&http.Client{Timeout: r.Annotator.OpenAI.Timeout},
			r.Annotator.OpenAI.Token,
			r.Annotator.OpenAI.MaxTokens,
		),
		scraper.NewExtractor(),
		cache,
		scraper.WithWorkers(r.Fetcher.Workers),
		scraper.WithLogger(lg.With(slog.String("prefix", "scraper"))),
	)

	ctx, stop := context.WithCancel(context.Background())

	var (
		articles []store.Article
		stats    scraper.Stats
	)

	ewg, ctx := errgroup.WithContext(ctx)
	ewg.Go(func() error {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
		select {
		case sig := <-sig:
			slog.Warn("caught signal, stopping", slog.String("signal", sig.String()))
			stop()
			return ctx.Err()
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	ewg.Go(func() error {
		defer stop()

		lg.Info("enriching articles",
			slog.Int("urls", len(urls)),
			slog.Int("workers", r.Fetcher.Workers),
		)

		articles, stats, err = svc.Run(ctx, urls)
		return err
	})

	if err := ewg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("enrich articles: %w", err)
	}

	// records for the URLs a canceled run never reached still carry
	// their URL, so a partial output remains valid
	if err := csvio.WriteFile(r.Output, articles); err != nil {
		return fmt.Errorf("write output: %w", err)
	}

	lg.Info("output written", slog.String("path", r.Output), slog.Int("records", len(articles)))

	r.printReport(stats, skipped, time.Since(started))
	return nil
}

func (r Run) readInputs(lg *slog.Logger) (urls []string, skipped int, err error) {
	for _, path := range r.Input {
		rows, invalid, err := csvio.ReadFile(path)
		if err != nil {
			return nil, 0, fmt.Errorf("read input: %w", err)
		}

		for _, row := range invalid {
			lg.Warn("skipping row with invalid url",
				slog.String("path", path),
				slog.Int("line", row.Line),
				slog.String("url", row.URL),
			)
		}
		skipped += len(invalid)

		for _, row := range rows {
			urls = append(urls, row.URL)
		}
	}

	// invalid rows never abort the run, an all-invalid input
	// yields a header-only output
	if len(urls) == 0 {
		lg.Warn("no valid urls in input", slog.Int("skipped", skipped))
	}

	return urls, skipped, nil
}

func (r Run) makeCache() (store.Interface, error) {
	if r.StorePath == "" {
		return store.NoOp{}, nil
	}
	return store.NewBolt(r.StorePath)
}

func (r Run) printReport(stats scraper.Stats, skipped int, elapsed time.Duration) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)

	tw.AppendHeader(table.Row{"metric", "value"})
	tw.AppendRows([]table.Row{
		{"rows read", stats.Total + skipped},
		{"invalid rows skipped", skipped},
		{"fetch failures", stats.FetchFailures},
		{"empty extractions", stats.EmptyExtracts},
		{"annotation failures", stats.AnnotationFailures},
		{"records written", stats.Total},
		{"elapsed", elapsed.Round(time.Second)},
	})

	tw.Render()
}
