// Package catalog owns the lifecycle of canonical paper records. Ingestion
// is keyed by (source, external_id) and safe to re-run over overlapping
// time windows.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/elonfeng/paperdigest/internal/store"
	"github.com/elonfeng/paperdigest/pkg/source"
)

// ErrInvalidCandidate marks a candidate missing a required field.
var ErrInvalidCandidate = errors.New("invalid candidate")

// IngestStatus is the outcome for a single candidate.
type IngestStatus string

const (
	StatusCreated   IngestStatus = "created"
	StatusDuplicate IngestStatus = "duplicate"
)

// BatchResult aggregates outcomes of one ingest batch.
type BatchResult struct {
	Created    int
	Duplicates int
	Skipped    int
}

// Ingestor writes fetched candidates into the catalog.
type Ingestor struct {
	store store.Store
	log   *slog.Logger
}

// NewIngestor creates a new Ingestor.
func NewIngestor(s store.Store, log *slog.Logger) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{store: s, log: log}
}

// Ingest validates and stores one candidate. A dedup collision is reported
// as StatusDuplicate, not an error; the existing item may have its mutable
// metadata refreshed.
func (in *Ingestor) Ingest(ctx context.Context, cand source.Candidate) (IngestStatus, *store.Item, error) {
	if err := validate(cand); err != nil {
		return "", nil, err
	}

	item := &store.Item{
		Source:      cand.Source,
		ExternalID:  cand.ExternalID,
		Title:       cand.Title,
		Authors:     cand.Authors,
		Abstract:    cand.Abstract,
		Keywords:    cand.Keywords,
		PublishedAt: cand.PublishedAt,
		Venue:       cand.Venue,
		AbsURL:      cand.AbsURL,
		PDFURL:      cand.PDFURL,
	}
	if item.PublishedAt.IsZero() {
		item.PublishedAt = time.Now().UTC()
	}

	created, err := in.store.InsertItem(ctx, item)
	if err != nil {
		return "", nil, err
	}
	if !created {
		return StatusDuplicate, item, nil
	}
	return StatusCreated, item, nil
}

// IngestBatch stores a slice of candidates. Invalid candidates are logged
// and skipped; a persistence error aborts the batch.
func (in *Ingestor) IngestBatch(ctx context.Context, candidates []source.Candidate) (BatchResult, error) {
	var res BatchResult
	for _, cand := range candidates {
		status, _, err := in.Ingest(ctx, cand)
		switch {
		case errors.Is(err, ErrInvalidCandidate):
			in.log.Warn("skipping invalid candidate",
				"source", cand.Source, "external_id", cand.ExternalID, "err", err)
			res.Skipped++
		case err != nil:
			return res, err
		case status == StatusCreated:
			res.Created++
		default:
			res.Duplicates++
		}
	}
	return res, nil
}

func validate(cand source.Candidate) error {
	if cand.ExternalID == "" {
		return fmt.Errorf("%w: missing external_id", ErrInvalidCandidate)
	}
	if cand.Source == "" {
		return fmt.Errorf("%w: missing source", ErrInvalidCandidate)
	}
	if cand.Title == "" {
		return fmt.Errorf("%w: missing title (%s/%s)", ErrInvalidCandidate, cand.Source, cand.ExternalID)
	}
	return nil
}
