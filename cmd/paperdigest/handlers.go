package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/elonfeng/paperdigest/internal/catalog"
	"github.com/elonfeng/paperdigest/internal/config"
	"github.com/elonfeng/paperdigest/internal/deliver"
	"github.com/elonfeng/paperdigest/internal/logging"
	"github.com/elonfeng/paperdigest/internal/scheduler"
	"github.com/elonfeng/paperdigest/internal/store"
	"github.com/elonfeng/paperdigest/internal/summary"
	"github.com/elonfeng/paperdigest/pkg/server"
	"github.com/elonfeng/paperdigest/pkg/source"
	"github.com/elonfeng/paperdigest/pkg/transport"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

// app bundles the wired components every command needs.
type app struct {
	cfg   *config.Config
	store *store.SQLiteStore
	log   *slog.Logger
	sched *scheduler.Scheduler
}

func buildApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	log := logging.New(cfg.Logging.Level)

	if err := seed(cfg, db); err != nil {
		db.Close()
		return nil, err
	}

	fetchers, categories := buildFetchers(cfg)
	ingestor := catalog.NewIngestor(db, log)
	pipeline := summary.NewPipeline(db, buildBackend(cfg), cfg.Summarizer.MaxRetries, log)
	states := deliver.NewStates(db)
	allocator := deliver.NewAllocator(db, log)
	sender := deliver.NewSender(db, states, buildTransport(cfg), log)

	sched := scheduler.New(db, fetchers, categories, ingestor, pipeline, allocator, sender,
		cfg.Schedule.ParseCycleInterval(), cfg.Schedule.SummaryLimit, log)

	return &app{cfg: cfg, store: db, log: log, sched: sched}, nil
}

// seed upserts configured profiles and subscribers into the store, so every
// cycle reads them back from persistence rather than from process state.
func seed(cfg *config.Config, db store.Store) error {
	ctx := context.Background()

	for _, p := range cfg.Profiles {
		profile := &store.Profile{
			Name:       p.Name,
			Categories: p.Categories,
			Keywords:   p.Keywords,
			Active:     p.IsActive(),
		}
		if err := db.UpsertProfile(ctx, profile); err != nil {
			return err
		}
	}

	for _, s := range cfg.Subscribers {
		sub := &store.Subscriber{
			Identity:    s.Identity,
			Profiles:    s.Profiles,
			DailyLimit:  s.DailyLimit,
			HistoryDays: s.HistoryDays,
			Active:      s.IsActive(),
		}
		if err := db.UpsertSubscriber(ctx, sub); err != nil {
			return err
		}
	}
	return nil
}

func buildFetchers(cfg *config.Config) ([]source.Fetcher, map[source.SourceType][]string) {
	var fetchers []source.Fetcher
	categories := make(map[source.SourceType][]string)

	if cfg.Sources.ArXiv.Enabled {
		fetchers = append(fetchers, source.NewArXiv(cfg.Sources.ArXiv.MaxResults))
		categories[source.SourceArXiv] = cfg.Sources.ArXiv.Categories
	}
	if cfg.Sources.OpenReview.Enabled {
		fetchers = append(fetchers, source.NewOpenReview(cfg.Sources.OpenReview.MaxResults))
		categories[source.SourceOpenReview] = cfg.Sources.OpenReview.Venues
	}
	if cfg.Sources.RSS.Enabled {
		feeds := make([]source.Feed, len(cfg.Sources.RSS.Feeds))
		for i, f := range cfg.Sources.RSS.Feeds {
			feeds[i] = source.Feed{Name: f.Name, URL: f.URL}
		}
		fetchers = append(fetchers, source.NewRSS(feeds))
	}

	return fetchers, categories
}

func buildBackend(cfg *config.Config) summary.Backend {
	if cfg.Summarizer.APIKey == "" {
		return nil // fallback-only pipeline
	}
	return summary.NewLLMBackend(
		cfg.Summarizer.Provider,
		cfg.Summarizer.Model,
		cfg.Summarizer.APIKey,
		cfg.Summarizer.BaseURL,
		cfg.Summarizer.ParseTimeout(),
	)
}

func buildTransport(cfg *config.Config) transport.Transport {
	if cfg.Transport.Telegram.Enabled && cfg.Transport.Telegram.BotToken != "" {
		return transport.NewTelegram(cfg.Transport.Telegram.BotToken)
	}
	if cfg.Transport.Webhook.Enabled && cfg.Transport.Webhook.URL != "" {
		return transport.NewWebhook(cfg.Transport.Webhook.URL, cfg.Transport.Webhook.Secret)
	}
	return discardTransport{}
}

// discardTransport drops messages; used when no transport is configured so
// dry runs still exercise allocation and budgeting.
type discardTransport struct{}

func (discardTransport) Name() string { return "discard" }

func (discardTransport) Send(_ context.Context, identity string, msg *transport.Message) error {
	fmt.Fprintf(os.Stderr, "  [discard] to %s: %.60s...\n", identity, msg.Text)
	return nil
}

func runIngest(filterSources []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	if len(filterSources) > 0 {
		if err := restrictFetchers(a, filterSources); err != nil {
			return err
		}
	}

	return a.sched.Ingest(context.Background())
}

// restrictFetchers rebuilds the scheduler with only the requested sources.
func restrictFetchers(a *app, filterSources []string) error {
	wanted := make(map[string]bool)
	for _, s := range filterSources {
		wanted[strings.ToLower(strings.TrimSpace(s))] = true
	}

	all, categories := buildFetchers(a.cfg)
	var fetchers []source.Fetcher
	for _, f := range all {
		if wanted[string(f.Name())] {
			fetchers = append(fetchers, f)
		}
	}
	if len(fetchers) == 0 {
		var known []string
		for _, st := range source.AllSourceTypes() {
			known = append(known, string(st))
		}
		return fmt.Errorf("no matching sources for %s (known: %s)",
			strings.Join(filterSources, ", "), strings.Join(known, ", "))
	}

	ingestor := catalog.NewIngestor(a.store, a.log)
	pipeline := summary.NewPipeline(a.store, buildBackend(a.cfg), a.cfg.Summarizer.MaxRetries, a.log)
	states := deliver.NewStates(a.store)
	allocator := deliver.NewAllocator(a.store, a.log)
	sender := deliver.NewSender(a.store, states, buildTransport(a.cfg), a.log)
	a.sched = scheduler.New(a.store, fetchers, categories, ingestor, pipeline, allocator, sender,
		a.cfg.Schedule.ParseCycleInterval(), a.cfg.Schedule.SummaryLimit, a.log)
	return nil
}

func runSummarize() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	return a.sched.Summarize(context.Background())
}

func runDeliver() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	return a.sched.Deliver(context.Background())
}

func runServe(port int) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	srv := server.New(a.store, a.sched, deliver.NewStates(a.store), port)
	return srv.ListenAndServe()
}

func runDaemon(port int) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	if port == 0 {
		port = a.cfg.Server.Port
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		if err := a.sched.Run(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "scheduler error: %v\n", err)
		}
	}()

	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nshutting down...")
	}()

	srv := server.New(a.store, a.sched, deliver.NewStates(a.store), port)
	return srv.ListenAndServe()
}

func runStatus() error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.store.Close()

	ctx := context.Background()

	itemCounts, err := a.store.CountItemsBySource(ctx)
	if err != nil {
		return err
	}
	summaryCounts, err := a.store.CountSummariesByTag(ctx)
	if err != nil {
		return err
	}
	stats, err := a.store.ListDeliveryStats(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "SOURCE\tITEMS")
	for _, src := range sortedKeys(itemCounts) {
		fmt.Fprintf(w, "%s\t%d\n", src, itemCounts[source.SourceType(src)])
	}

	fmt.Fprintln(w, "\nGENERATOR\tSUMMARIES")
	tags := make([]string, 0, len(summaryCounts))
	for tag := range summaryCounts {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		fmt.Fprintf(w, "%s\t%d\n", tag, summaryCounts[tag])
	}

	fmt.Fprintln(w, "\nSUBSCRIBER\tPENDING\tSENT")
	for _, st := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\n", st.Identity, st.Pending, st.Sent)
	}

	return w.Flush()
}

func sortedKeys(m map[source.SourceType]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)
	return keys
}
