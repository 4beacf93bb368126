package summary

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/paperdigest/internal/store"
	"github.com/elonfeng/paperdigest/pkg/source"
)

// stubBackend counts Generate calls and can be scripted to fail.
type stubBackend struct {
	tag   string
	calls int
	err   error
}

func (b *stubBackend) Tag() string { return b.tag }

func (b *stubBackend) Generate(ctx context.Context, title, authors, abstract, venue string) (string, error) {
	b.calls++
	if b.err != nil {
		return "", b.err
	}
	return "briefing for " + title, nil
}

func newPipeline(t *testing.T, backend Backend) (*Pipeline, *store.SQLiteStore) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	p := NewPipeline(s, backend, 2, nil)
	p.backoff = time.Millisecond
	return p, s
}

func seedItem(t *testing.T, s *store.SQLiteStore, externalID, title string) *store.Item {
	t.Helper()
	item := &store.Item{
		Source:      source.SourceArXiv,
		ExternalID:  externalID,
		Title:       title,
		Abstract:    "An abstract about neural networks.",
		Keywords:    []string{"cs.LG"},
		PublishedAt: time.Now().UTC(),
	}
	_, err := s.InsertItem(context.Background(), item)
	require.NoError(t, err)
	return item
}

func TestSummarizeIdempotent(t *testing.T) {
	backend := &stubBackend{tag: "openai:gpt-4o-mini"}
	p, s := newPipeline(t, backend)
	ctx := context.Background()

	item := seedItem(t, s, "a", "Paper A")

	first, err := p.Summarize(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, "briefing for Paper A", first.Content)
	assert.Equal(t, "openai:gpt-4o-mini", first.GeneratorTag)

	second, err := p.Summarize(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, backend.calls, "re-invocation must not call the backend again")
}

func TestSummarizeFallsBackUnderActiveTag(t *testing.T) {
	backend := &stubBackend{tag: "openai:gpt-4o-mini", err: ErrBackendUnavailable}
	p, s := newPipeline(t, backend)
	ctx := context.Background()

	item := seedItem(t, s, "b", "Paper B")

	sum, err := p.Summarize(ctx, item)
	require.NoError(t, err, "backend failure must not surface as an error")
	assert.Equal(t, 3, backend.calls, "one attempt plus two retries")
	assert.True(t, strings.HasPrefix(sum.Content, "📄 Paper B"))
	// Stored under the active tag so delivery sees one summary per item.
	assert.Equal(t, "openai:gpt-4o-mini", sum.GeneratorTag)
}

func TestSummarizeNilBackend(t *testing.T) {
	p, s := newPipeline(t, nil)
	ctx := context.Background()

	item := seedItem(t, s, "c", "Paper C")

	sum, err := p.Summarize(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, FallbackTag, sum.GeneratorTag)
	assert.True(t, strings.HasPrefix(sum.Content, "📄 Paper C"))
}

func TestRunFiltersAndContinues(t *testing.T) {
	backend := &stubBackend{tag: "t"}
	p, s := newPipeline(t, backend)
	ctx := context.Background()

	matched := seedItem(t, s, "m", "Diffusion Models at Scale")
	seedItem(t, s, "u", "Unrelated Paper")

	profiles := []store.Profile{{Name: "gen", Keywords: []string{"diffusion"}, Active: true}}

	res, err := p.Run(ctx, profiles, time.Now().UTC().Add(-time.Hour), 50)
	require.NoError(t, err)
	assert.Equal(t, Result{Generated: 1}, res)

	got, err := s.GetSummaryByItem(ctx, matched.ID, "t")
	require.NoError(t, err)
	assert.Equal(t, "briefing for Diffusion Models at Scale", got.Content)

	// Second run has nothing left to do.
	res, err = p.Run(ctx, profiles, time.Now().UTC().Add(-time.Hour), 50)
	require.NoError(t, err)
	assert.Equal(t, Result{}, res)
	assert.Equal(t, 1, backend.calls)
}

func TestRunCountsFallbacks(t *testing.T) {
	backend := &stubBackend{tag: "t", err: ErrBackendRateLimited}
	p, s := newPipeline(t, backend)
	ctx := context.Background()

	seedItem(t, s, "f1", "Diffusion One")
	seedItem(t, s, "f2", "Diffusion Two")

	profiles := []store.Profile{{Name: "gen", Keywords: []string{"diffusion"}, Active: true}}

	res, err := p.Run(ctx, profiles, time.Now().UTC().Add(-time.Hour), 50)
	require.NoError(t, err, "backend failures must not abort the batch")
	assert.Equal(t, Result{Generated: 2, FellBack: 2}, res)
}

func TestFallbackTruncates(t *testing.T) {
	long := strings.Repeat("a", 600)
	got := Fallback("Title", long)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.True(t, strings.Contains(got, strings.Repeat("a", 500)))
	assert.False(t, strings.Contains(got, strings.Repeat("a", 501)))
}

func TestFallbackTruncatesOnRuneBoundary(t *testing.T) {
	// 300 two-byte runes (600 bytes); a naive byte cut at 500 would split
	// the 251st rune.
	long := strings.Repeat("é", 300)
	got := Fallback("Title", long)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "é..."))
}
