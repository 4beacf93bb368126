package source

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Lab Feed</title>
    <item>
      <title>A New Benchmark</title>
      <link>https://lab.example.org/posts/benchmark</link>
      <guid>lab-benchmark-2026</guid>
      <description>  We release a benchmark.  </description>
      <pubDate>%s</pubDate>
      <category>benchmarks</category>
    </item>
    <item>
      <title>Ancient Post</title>
      <link>https://lab.example.org/posts/ancient</link>
      <guid>lab-ancient</guid>
      <description>Old news.</description>
      <pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
    </item>
  </channel>
</rss>`

func TestRSSFetch(t *testing.T) {
	recent := time.Now().UTC().Add(-time.Hour).Format(time.RFC1123)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "paperdigest/1.0", r.Header.Get("User-Agent"))
		fmt.Fprintf(w, rssTemplate, recent)
	}))
	defer srv.Close()

	r := NewRSS([]Feed{{Name: "lab", URL: srv.URL}})

	candidates, err := r.Fetch(context.Background(), nil, time.Now().UTC().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, "lab-benchmark-2026", c.ExternalID, "guid preferred as external id")
	assert.Equal(t, SourceRSS, c.Source)
	assert.Equal(t, "A New Benchmark", c.Title)
	assert.Equal(t, "We release a benchmark.", c.Abstract)
	assert.Equal(t, []string{"benchmarks"}, c.Keywords)
	assert.Equal(t, "lab", c.Venue)
	assert.Equal(t, "https://lab.example.org/posts/benchmark", c.AbsURL)
}

func TestRSSFetchPartialFailure(t *testing.T) {
	recent := time.Now().UTC().Add(-time.Hour).Format(time.RFC1123)

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, rssTemplate, recent)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	r := NewRSS([]Feed{
		{Name: "good", URL: good.URL},
		{Name: "bad", URL: bad.URL},
	})

	candidates, err := r.Fetch(context.Background(), nil, time.Time{})
	require.NoError(t, err, "one healthy feed is enough")
	assert.Len(t, candidates, 2)
}

func TestRSSFetchAllFailed(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	r := NewRSS([]Feed{{Name: "bad", URL: bad.URL}})

	_, err := r.Fetch(context.Background(), nil, time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all feeds failed")
}
