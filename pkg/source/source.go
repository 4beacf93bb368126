package source

import (
	"context"
	"time"
)

// SourceType identifies which paper provider a candidate came from.
type SourceType string

const (
	SourceArXiv      SourceType = "arxiv"
	SourceOpenReview SourceType = "openreview"
	SourceRSS        SourceType = "rss"
)

// Candidate is the normalized paper description every fetcher produces.
// It carries no database identity; the catalog decides whether it becomes
// a new item or collapses onto an existing one.
type Candidate struct {
	ExternalID  string     `json:"external_id"`
	Source      SourceType `json:"source"`
	Title       string     `json:"title"`
	Authors     []string   `json:"authors"`
	Abstract    string     `json:"abstract"`
	Keywords    []string   `json:"keywords"`
	PublishedAt time.Time  `json:"published_at"`
	Venue       string     `json:"venue"`
	AbsURL      string     `json:"abs_url"`
	PDFURL      string     `json:"pdf_url"`
}

// Fetcher is the interface every paper provider must implement.
// Implementations filter by the provider's own category vocabulary and
// return only candidates published at or after since.
type Fetcher interface {
	Name() SourceType
	Fetch(ctx context.Context, categories []string, since time.Time) ([]Candidate, error)
}

// AllSourceTypes returns all known source types.
func AllSourceTypes() []SourceType {
	return []SourceType{SourceArXiv, SourceOpenReview, SourceRSS}
}
