package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alanindra/news-enricher/app/store"
	"github.com/samber/lo"
)

// Header is the fixed column order of the output CSV.
var Header = []string{"url", "title", "content", "publish_date", "journalist", "person_names"}

// peopleSep joins person names into a single CSV cell.
const peopleSep = "; "

// Write serializes articles into CSV, one row per article, in the
// order given.
func Write(w io.Writer, articles []store.Article) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, a := range articles {
		rec := []string{a.URL, a.Title, a.Content, a.PublishedAt, a.Journalist, JoinPeople(a.People)}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row for %s: %w", a.URL, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	return nil
}

// WriteFile writes articles to the CSV file at the given path.
func WriteFile(path string, articles []store.Article) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	if err := Write(f, articles); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}

	return nil
}

// JoinPeople joins person names into the person_names cell value.
func JoinPeople(people []string) string { return strings.Join(people, peopleSep) }

// SplitPeople reverses JoinPeople.
func SplitPeople(cell string) []string {
	if cell == "" {
		return nil
	}
	return lo.Map(strings.Split(cell, peopleSep), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
}
