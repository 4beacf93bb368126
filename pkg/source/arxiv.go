package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ArXiv fetches recent papers from the arXiv export API.
type ArXiv struct {
	client     *http.Client
	baseURL    string
	maxResults int
}

// NewArXiv creates a new arXiv fetcher.
func NewArXiv(maxResults int) *ArXiv {
	if maxResults <= 0 {
		maxResults = 100
	}
	return &ArXiv{
		client:     &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://export.arxiv.org",
		maxResults: maxResults,
	}
}

func (a *ArXiv) Name() SourceType { return SourceArXiv }

// Fetch queries the given arXiv categories for submissions at or after since.
// ArXiv announces papers with up to a day of delay, so the requested window is
// widened to at least 48 hours.
func (a *ArXiv) Fetch(ctx context.Context, categories []string, since time.Time) ([]Candidate, error) {
	if len(categories) == 0 {
		categories = []string{"cs.AI", "cs.CL", "cs.CV", "cs.LG"}
	}

	var parts []string
	for _, cat := range categories {
		parts = append(parts, "cat:"+cat)
	}
	query := strings.Join(parts, "+OR+")

	// ArXiv API expects unencoded +OR+ in the search query, so build URL manually.
	reqURL := fmt.Sprintf("%s/api/query?search_query=%s&sortBy=submittedDate&sortOrder=descending&max_results=%d",
		a.baseURL, query, a.maxResults)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create arxiv request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch arxiv: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arxiv status %d", resp.StatusCode)
	}

	var feed arxivFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode arxiv: %w", err)
	}

	cutoff := since
	if widened := time.Now().UTC().Add(-48 * time.Hour); cutoff.After(widened) {
		cutoff = widened
	}

	var candidates []Candidate
	for _, entry := range feed.Entries {
		published := entry.Published
		if published.IsZero() {
			published = entry.Updated
		}
		if published.Before(cutoff) {
			continue
		}

		var keywords []string
		for _, cat := range entry.Categories {
			keywords = append(keywords, cat.Term)
		}

		var authors []string
		for _, au := range entry.Authors {
			authors = append(authors, au.Name)
		}

		paperID := extractArXivID(entry.ID)
		pdfURL := ""
		for _, l := range entry.Links {
			if l.Title == "pdf" || l.Type == "application/pdf" {
				pdfURL = l.Href
			}
		}

		candidates = append(candidates, Candidate{
			ExternalID:  paperID,
			Source:      SourceArXiv,
			Title:       collapseWhitespace(entry.Title),
			Authors:     authors,
			Abstract:    collapseWhitespace(entry.Summary),
			Keywords:    keywords,
			PublishedAt: published.UTC(),
			Venue:       "arXiv",
			AbsURL:      entry.ID,
			PDFURL:      pdfURL,
		})
	}

	return candidates, nil
}

func extractArXivID(uri string) string {
	// "http://arxiv.org/abs/2402.12345v1" -> "2402.12345"
	parts := strings.Split(uri, "/abs/")
	if len(parts) == 2 {
		id := parts[1]
		// Remove version suffix.
		if idx := strings.LastIndex(id, "v"); idx > 0 {
			id = id[:idx]
		}
		return id
	}
	return uri
}

// collapseWhitespace flattens the newline-wrapped text arXiv returns in
// titles and abstracts.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ArXiv Atom feed structures.
type arxivFeed struct {
	XMLName xml.Name     `xml:"feed"`
	Entries []arxivEntry `xml:"entry"`
}

type arxivEntry struct {
	ID         string          `xml:"id"`
	Title      string          `xml:"title"`
	Summary    string          `xml:"summary"`
	Published  time.Time       `xml:"published"`
	Updated    time.Time       `xml:"updated"`
	Authors    []arxivAuthor   `xml:"author"`
	Categories []arxivCategory `xml:"category"`
	Links      []arxivLink     `xml:"link"`
}

type arxivAuthor struct {
	Name string `xml:"name"`
}

type arxivCategory struct {
	Term string `xml:"term,attr"`
}

type arxivLink struct {
	Href  string `xml:"href,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}
