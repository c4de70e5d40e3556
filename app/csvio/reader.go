// Package csvio reads URL rosters and writes enriched articles in CSV.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/samber/lo"
)

// ErrEmptyInput is returned when the input contains no data rows.
var ErrEmptyInput = errors.New("input contains no rows")

// urlColumns are recognized header names for the URL column.
var urlColumns = []string{"url", "page_link", "link"}

// Row is a single input row.
type Row struct {
	URL  string
	Line int
}

// Read parses the input CSV into valid and invalid rows. The first
// row is treated as a header if any of its cells names the URL column,
// otherwise the URL is taken from the first column. A row is invalid
// when its URL lacks an explicit http(s) scheme or does not parse.
func Read(r io.Reader) (rows, invalid []Row, err error) {
	rd := csv.NewReader(r)
	rd.FieldsPerRecord = -1
	rd.TrimLeadingSpace = true

	col, first := 0, true

	for {
		rec, err := rd.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("parse csv: %w", err)
		}

		// FieldPos keeps line numbers exact even when the reader
		// silently skips blank lines
		line, _ := rd.FieldPos(0)

		if first {
			first = false
			if idx := urlColumnIdx(rec); idx >= 0 {
				col = idx
				continue
			}
		}

		row := Row{Line: line}
		if col < len(rec) {
			row.URL = strings.TrimSpace(rec[col])
		}

		if !validURL(row.URL) {
			invalid = append(invalid, row)
			continue
		}

		rows = append(rows, row)
	}

	if len(rows)+len(invalid) == 0 {
		return nil, nil, ErrEmptyInput
	}

	return rows, invalid, nil
}

// ReadFile reads rows from the CSV file at the given path.
func ReadFile(path string) (rows, invalid []Row, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if rows, invalid, err = Read(f); err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	return rows, invalid, nil
}

func urlColumnIdx(header []string) int {
	_, idx, ok := lo.FindIndexOf(header, func(cell string) bool {
		return lo.Contains(urlColumns, strings.ToLower(strings.TrimSpace(cell)))
	})
	if !ok {
		return -1
	}
	return idx
}

func validURL(s string) bool {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}

	u, err := url.Parse(s)
	return err == nil && u.Host != ""
}
