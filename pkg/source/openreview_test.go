package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenReviewFetch(t *testing.T) {
	recent := time.Now().UTC().Add(-time.Hour).UnixMilli()

	var venuesQueried []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		venueID := r.URL.Query().Get("content.venueid")
		venuesQueried = append(venuesQueried, venueID)

		notes := []map[string]any{}
		if venueID == fmt.Sprintf("ICLR.cc/%d/Conference", time.Now().UTC().Year()) {
			notes = append(notes, map[string]any{
				"id":    "abc123",
				"forum": "abc123",
				"cdate": recent,
				"content": map[string]any{
					"title":    map[string]any{"value": "Emergent Abilities Revisited"},
					"abstract": map[string]any{"value": "We revisit emergence."},
					"authors":  map[string]any{"value": []string{"Grace Hopper"}},
					"keywords": map[string]any{"value": []string{"scaling", "evaluation"}},
					"pdf":      map[string]any{"value": "/pdf/abc123.pdf"},
				},
			})
		}
		json.NewEncoder(w).Encode(map[string]any{"notes": notes})
	}))
	defer srv.Close()

	o := NewOpenReview(50)
	o.baseURL = srv.URL

	candidates, err := o.Fetch(context.Background(), []string{"ICLR"}, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, "abc123", c.ExternalID)
	assert.Equal(t, SourceOpenReview, c.Source)
	assert.Equal(t, "Emergent Abilities Revisited", c.Title)
	assert.Equal(t, []string{"Grace Hopper"}, c.Authors)
	assert.Equal(t, []string{"scaling", "evaluation"}, c.Keywords)
	assert.Equal(t, "https://openreview.net/forum?id=abc123", c.AbsURL)
	assert.Equal(t, "https://openreview.net/pdf/abc123.pdf", c.PDFURL)

	// Current and previous year are both queried.
	assert.Len(t, venuesQueried, 2)
}

func TestOpenReviewFetchSinceCutoff(t *testing.T) {
	old := time.Now().UTC().AddDate(0, -6, 0).UnixMilli()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"notes": []map[string]any{{
			"id": "old1", "forum": "old1", "cdate": old,
			"content": map[string]any{"title": map[string]any{"value": "Old Submission"}},
		}}})
	}))
	defer srv.Close()

	o := NewOpenReview(50)
	o.baseURL = srv.URL

	candidates, err := o.Fetch(context.Background(), []string{"ICLR"}, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestOpenReviewFetchAllVenuesFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	o := NewOpenReview(10)
	o.baseURL = srv.URL

	_, err := o.Fetch(context.Background(), []string{"ICLR"}, time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all openreview venues failed")
}

func TestVenueIDs(t *testing.T) {
	year := time.Now().UTC().Year()
	ids := venueIDs([]string{"NeurIPS"})
	assert.Equal(t, []string{
		fmt.Sprintf("NeurIPS.cc/%d/Conference", year),
		fmt.Sprintf("NeurIPS.cc/%d/Conference", year-1),
	}, ids)
}
