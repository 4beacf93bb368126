// Package summary produces exactly one briefing per item per generator tag.
// Generation degrades to a deterministic template when the backend is
// unavailable, so a batch run never fails on backend errors.
package summary

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/elonfeng/paperdigest/internal/match"
	"github.com/elonfeng/paperdigest/internal/store"
)

// Pipeline generates summaries for matched, unsummarized items.
type Pipeline struct {
	store      store.Store
	backend    Backend // nil means fallback only
	maxRetries int
	backoff    time.Duration
	log        *slog.Logger
}

// Result aggregates outcomes of one pipeline run.
type Result struct {
	Generated int
	FellBack  int
}

// NewPipeline creates a pipeline. backend may be nil, in which case every
// summary is the template fallback.
func NewPipeline(s store.Store, backend Backend, maxRetries int, log *slog.Logger) *Pipeline {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		store:      s,
		backend:    backend,
		maxRetries: maxRetries,
		backoff:    time.Second,
		log:        log,
	}
}

// Tag is the active generator tag summaries are stored under.
func (p *Pipeline) Tag() string {
	if p.backend == nil {
		return FallbackTag
	}
	return p.backend.Tag()
}

// Summarize returns the summary for item under the active tag, generating
// it if absent. Re-invocation returns the stored record without calling the
// backend again. Backend failure after retries falls back to the template;
// only a persistence error is returned.
func (p *Pipeline) Summarize(ctx context.Context, item *store.Item) (*store.Summary, error) {
	existing, err := p.store.GetSummaryByItem(ctx, item.ID, p.Tag())
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	content, fellBack := p.generate(ctx, item)

	sum := &store.Summary{
		ItemID:       item.ID,
		Content:      content,
		GeneratorTag: p.Tag(),
	}
	if err := p.store.InsertSummary(ctx, sum); err != nil {
		return nil, err
	}
	if fellBack {
		p.log.Warn("summary fell back to template", "item", item.ID, "title", item.Title)
	}
	return sum, nil
}

// Run summarizes every item in the window that matches at least one of the
// profiles and has no summary under the active tag yet. A single item's
// backend failure never aborts the rest of the batch; only a persistence
// error does.
func (p *Pipeline) Run(ctx context.Context, profiles []store.Profile, since time.Time, limit int) (Result, error) {
	var res Result

	items, err := p.store.ListItemsNeedingSummary(ctx, p.Tag(), since, limit)
	if err != nil {
		return res, err
	}

	for i := range items {
		item := &items[i]
		if !match.AnyProfile(item, profiles) {
			continue
		}

		content, fellBack := p.generate(ctx, item)
		sum := &store.Summary{
			ItemID:       item.ID,
			Content:      content,
			GeneratorTag: p.Tag(),
		}
		if err := p.store.InsertSummary(ctx, sum); err != nil {
			return res, err
		}
		res.Generated++
		if fellBack {
			res.FellBack++
		}
	}
	return res, nil
}

// generate calls the backend with bounded retries and exponential backoff.
// The returned bool reports whether the template fallback was used. This
// path never fails.
func (p *Pipeline) generate(ctx context.Context, item *store.Item) (string, bool) {
	if p.backend == nil {
		return Fallback(item.Title, item.Abstract), false
	}

	authors := strings.Join(item.Authors, ", ")
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				p.log.Warn("summary generation cancelled, using fallback", "item", item.ID)
				return Fallback(item.Title, item.Abstract), true
			case <-time.After(p.backoff << (attempt - 1)):
			}
		}

		content, err := p.backend.Generate(ctx, item.Title, authors, item.Abstract, item.Venue)
		if err == nil && content != "" {
			return content, false
		}
		lastErr = err
	}

	p.log.Warn("backend exhausted, using fallback", "item", item.ID, "err", lastErr)
	return Fallback(item.Title, item.Abstract), true
}
