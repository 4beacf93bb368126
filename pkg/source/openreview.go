package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// OpenReview fetches conference submissions from the OpenReview notes API.
// The categories argument of Fetch is interpreted as venue names
// (e.g. "ICLR", "NeurIPS"); the current and previous year are queried.
type OpenReview struct {
	client     *http.Client
	baseURL    string
	maxResults int
}

// NewOpenReview creates a new OpenReview fetcher.
func NewOpenReview(maxResults int) *OpenReview {
	if maxResults <= 0 {
		maxResults = 50
	}
	return &OpenReview{
		client:     &http.Client{Timeout: 30 * time.Second},
		baseURL:    "https://api2.openreview.net",
		maxResults: maxResults,
	}
}

func (o *OpenReview) Name() SourceType { return SourceOpenReview }

func (o *OpenReview) Fetch(ctx context.Context, venues []string, since time.Time) ([]Candidate, error) {
	if len(venues) == 0 {
		venues = []string{"ICLR", "NeurIPS", "ICML"}
	}

	var candidates []Candidate
	var errs []string

	for _, venueID := range venueIDs(venues) {
		notes, err := o.fetchVenue(ctx, venueID)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", venueID, err))
			continue
		}

		for _, note := range notes {
			published := time.UnixMilli(note.CDate).UTC()
			if !since.IsZero() && published.Before(since) {
				continue
			}

			candidates = append(candidates, Candidate{
				ExternalID:  note.ID,
				Source:      SourceOpenReview,
				Title:       note.Content.Title.Value,
				Authors:     note.Content.Authors.Value,
				Abstract:    note.Content.Abstract.Value,
				Keywords:    note.Content.Keywords.Value,
				PublishedAt: published,
				Venue:       venueID,
				AbsURL:      "https://openreview.net/forum?id=" + note.Forum,
				PDFURL:      pdfLink(note),
			})
			if len(candidates) >= o.maxResults {
				return candidates, nil
			}
		}
	}

	if len(candidates) == 0 && len(errs) == len(venueIDs(venues)) && len(errs) > 0 {
		return nil, fmt.Errorf("all openreview venues failed: %s", strings.Join(errs, "; "))
	}
	return candidates, nil
}

func (o *OpenReview) fetchVenue(ctx context.Context, venueID string) ([]orNote, error) {
	q := url.Values{}
	q.Set("content.venueid", venueID)
	q.Set("limit", fmt.Sprint(o.maxResults))
	q.Set("sort", "cdate:desc")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/notes?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create openreview request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch openreview: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openreview status %d", resp.StatusCode)
	}

	var body struct {
		Notes []orNote `json:"notes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode openreview: %w", err)
	}
	return body.Notes, nil
}

// venueIDs expands venue names into OpenReview venue identifiers for the
// current and previous year.
func venueIDs(venues []string) []string {
	year := time.Now().UTC().Year()
	var ids []string
	for _, v := range venues {
		ids = append(ids,
			fmt.Sprintf("%s.cc/%d/Conference", v, year),
			fmt.Sprintf("%s.cc/%d/Conference", v, year-1),
		)
	}
	return ids
}

func pdfLink(note orNote) string {
	if note.Content.PDF.Value == "" {
		return ""
	}
	return "https://openreview.net" + note.Content.PDF.Value
}

// OpenReview API v2 note structures. Every content field is wrapped in
// a {"value": ...} envelope.
type orNote struct {
	ID      string    `json:"id"`
	Forum   string    `json:"forum"`
	CDate   int64     `json:"cdate"`
	Content orContent `json:"content"`
}

type orContent struct {
	Title    orString     `json:"title"`
	Abstract orString     `json:"abstract"`
	Authors  orStringList `json:"authors"`
	Keywords orStringList `json:"keywords"`
	PDF      orString     `json:"pdf"`
}

type orString struct {
	Value string `json:"value"`
}

type orStringList struct {
	Value []string `json:"value"`
}
