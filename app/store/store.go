// Package store contains entities and services to process and contain them.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is an error that is returned when the requested entity is not found.
var ErrNotFound = errors.New("not found")

// Interface defines methods for a cache of enriched articles.
type Interface interface {
	Put(ctx context.Context, a Article) error
	Get(ctx context.Context, url string) (Article, error)
	Close() error
}

// Article is a struct that contains the enriched article.
type Article struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Content     string   `json:"content"`
	PublishedAt string   `json:"published_at"`
	Journalist  string   `json:"journalist"`
	People      []string `json:"people"`
}

// Empty reports whether nothing was extracted for the article.
func (a Article) Empty() bool {
	return a.Title == "" && a.Content == "" &&
		a.PublishedAt == "" && a.Journalist == "" && len(a.People) == 0
}

// NoOp is a storage that stores nothing.
type NoOp struct{}

// Put does nothing.
func (NoOp) Put(context.Context, Article) error { return nil }

// Get always misses.
func (NoOp) Get(context.Context, string) (Article, error) { return Article{}, ErrNotFound }

// Close does nothing.
func (NoOp) Close() error { return nil }
