// Package scheduler sequences the digest stages: ingest, summarize, then
// allocate+send per subscriber. Stages run strictly sequentially within a
// cycle and every stage is idempotent, so a cycle can be re-run after a
// crash without a durable checkpoint.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/elonfeng/paperdigest/internal/catalog"
	"github.com/elonfeng/paperdigest/internal/deliver"
	"github.com/elonfeng/paperdigest/internal/store"
	"github.com/elonfeng/paperdigest/internal/summary"
	"github.com/elonfeng/paperdigest/pkg/source"
)

// Scheduler runs the periodic digest cycle.
type Scheduler struct {
	store        store.Store
	fetchers     []source.Fetcher
	categories   map[source.SourceType][]string
	ingestor     *catalog.Ingestor
	pipeline     *summary.Pipeline
	allocator    *deliver.Allocator
	sender       *deliver.Sender
	interval     time.Duration
	summaryLimit int
	log          *slog.Logger
}

// New creates a scheduler. categories maps each fetcher to its provider
// specific category vocabulary (arxiv categories, openreview venues).
func New(
	s store.Store,
	fetchers []source.Fetcher,
	categories map[source.SourceType][]string,
	ingestor *catalog.Ingestor,
	pipeline *summary.Pipeline,
	allocator *deliver.Allocator,
	sender *deliver.Sender,
	interval time.Duration,
	summaryLimit int,
	log *slog.Logger,
) *Scheduler {
	if interval == 0 {
		interval = 6 * time.Hour
	}
	if summaryLimit <= 0 {
		summaryLimit = 200
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		store:        s,
		fetchers:     fetchers,
		categories:   categories,
		ingestor:     ingestor,
		pipeline:     pipeline,
		allocator:    allocator,
		sender:       sender,
		interval:     interval,
		summaryLimit: summaryLimit,
		log:          log,
	}
}

// Run starts the cycle loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	fmt.Fprintln(os.Stderr, "scheduler: initial cycle...")
	s.Cycle(ctx)

	fmt.Fprintf(os.Stderr, "scheduler: running (cycle every %s)\n", s.interval)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "scheduler: stopped")
			return ctx.Err()
		case <-ticker.C:
			fmt.Fprintln(os.Stderr, "scheduler: cycle...")
			s.Cycle(ctx)
		}
	}
}

// Cycle runs ingest, summarize, and deliver in order. A stage error is
// logged and the remaining stages still run; each is independently
// re-runnable.
func (s *Scheduler) Cycle(ctx context.Context) {
	if err := s.Ingest(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "  ingest error: %v\n", err)
	}
	if err := s.Summarize(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "  summarize error: %v\n", err)
	}
	if err := s.Deliver(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "  deliver error: %v\n", err)
	}
}

// Ingest fetches candidates from every enabled source and writes them into
// the catalog. One fetcher failing is logged and the rest still run.
func (s *Scheduler) Ingest(ctx context.Context) error {
	since, err := s.lookback(ctx)
	if err != nil {
		return err
	}

	total := catalog.BatchResult{}
	for _, f := range s.fetchers {
		candidates, err := f.Fetch(ctx, s.categories[f.Name()], since)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  %s fetch error: %v\n", f.Name(), err)
			continue
		}

		res, err := s.ingestor.IngestBatch(ctx, candidates)
		if err != nil {
			return fmt.Errorf("ingest %s batch: %w", f.Name(), err)
		}
		fmt.Fprintf(os.Stderr, "  %s: %d created, %d duplicates, %d skipped\n",
			f.Name(), res.Created, res.Duplicates, res.Skipped)
		total.Created += res.Created
		total.Duplicates += res.Duplicates
		total.Skipped += res.Skipped
	}

	fmt.Fprintf(os.Stderr, "  ingest total: %d new items\n", total.Created)
	return nil
}

// Summarize generates briefings for matched items lacking one.
func (s *Scheduler) Summarize(ctx context.Context) error {
	profiles, err := s.store.ListActiveProfiles(ctx)
	if err != nil {
		return err
	}
	since, err := s.lookback(ctx)
	if err != nil {
		return err
	}

	res, err := s.pipeline.Run(ctx, profiles, since, s.summaryLimit)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "  summaries: %d generated (%d fallback)\n", res.Generated, res.FellBack)
	return nil
}

// Deliver allocates and sends pending deliveries for every active
// subscriber, one subscriber at a time.
func (s *Scheduler) Deliver(ctx context.Context) error {
	subs, err := s.store.ListActiveSubscribers(ctx)
	if err != nil {
		return err
	}

	for i := range subs {
		sub := &subs[i]
		if _, err := s.allocator.Allocate(ctx, sub); err != nil {
			return fmt.Errorf("allocate for %s: %w", sub.Identity, err)
		}
		res, err := s.sender.SendPending(ctx, sub)
		if err != nil {
			return fmt.Errorf("send for %s: %w", sub.Identity, err)
		}
		fmt.Fprintf(os.Stderr, "  %s: %d sent, %d failed\n", sub.Identity, res.Sent, res.Failed)
	}
	return nil
}

// lookback is the fetch/summarize window: the widest history window of any
// active subscriber, at least one day.
func (s *Scheduler) lookback(ctx context.Context) (time.Time, error) {
	subs, err := s.store.ListActiveSubscribers(ctx)
	if err != nil {
		return time.Time{}, err
	}
	days := 1
	for _, sub := range subs {
		if sub.HistoryDays > days {
			days = sub.HistoryDays
		}
	}
	return time.Now().UTC().AddDate(0, 0, -days), nil
}
