package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBolt(t *testing.T) {
	b, err := NewBolt(t.TempDir())
	require.NoError(t, err)
	defer func() { require.NoError(t, b.Close()) }()

	ctx := context.Background()

	article := Article{
		URL:         "https://example.com/a",
		Title:       "title",
		Content:     "content",
		PublishedAt: "2023-03-14",
		Journalist:  "Jane Doe",
		People:      []string{"Richard Hale"},
	}

	require.NoError(t, b.Put(ctx, article))

	got, err := b.Get(ctx, article.URL)
	require.NoError(t, err)
	assert.Equal(t, article, got)

	// overwrite with a newer version
	article.Title = "updated"
	require.NoError(t, b.Put(ctx, article))

	got, err = b.Get(ctx, article.URL)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Title)
}

func TestBolt_GetMissing(t *testing.T) {
	b, err := NewBolt(t.TempDir())
	require.NoError(t, err)
	defer func() { require.NoError(t, b.Close()) }()

	_, err = b.Get(context.Background(), "https://example.com/absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBolt_badDir(t *testing.T) {
	_, err := NewBolt("/definitely/no/such/dir")
	assert.Error(t, err)
}

func TestArticle_Empty(t *testing.T) {
	assert.True(t, Article{URL: "https://example.com/a"}.Empty())
	assert.False(t, Article{Title: "t"}.Empty())
	assert.False(t, Article{People: []string{"Jane Doe"}}.Empty())
}
