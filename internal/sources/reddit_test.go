package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const redditListingFixture = `{
	"data": {
		"children": [
			{"data": {"id": "abc1", "title": "Woman Yelling At A Cat", "url": "https://i.redd.it/abc1.jpg", "ups": 5000, "num_comments": 120}},
			{"data": {"id": "abc2", "title": "Text post, no image", "url": "https://www.reddit.com/r/memes/comments/abc2", "ups": 900, "num_comments": 40}},
			{"data": {"id": "abc3", "title": "[Template] Confused Dog", "url": "https://i.imgur.com/abc3.png", "ups": 300, "num_comments": 10}}
		]
	}
}`

func TestRedditFetch_ValidListing(t *testing.T) {
	var gotUserAgent string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserAgent = r.Header.Get("User-Agent")
		if r.URL.Path != "/r/memes/top.json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("t") != "day" {
			t.Errorf("unexpected window: %s", r.URL.Query().Get("t"))
		}
		w.Write([]byte(redditListingFixture))
	}))
	defer ts.Close()

	client := NewRedditClient(ts.URL, "memenem/test", 5*time.Second)
	candidates, err := client.Fetch(context.Background(), 10)
	require.NoError(t, err)

	assert.Equal(t, "memenem/test", gotUserAgent)

	// The text post is skipped.
	require.Len(t, candidates, 2)
	assert.Equal(t, "reddit_abc1", candidates[0].ID)
	assert.Equal(t, "reddit", candidates[0].Source)
	assert.Equal(t, 2, candidates[0].PanelCount)

	// Template boilerplate is stripped from titles.
	assert.Equal(t, "Confused Dog", candidates[1].Name)
}

func TestRedditFetch_PopularityFromEngagement(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(redditListingFixture))
	}))
	defer ts.Close()

	client := NewRedditClient(ts.URL, "memenem/test", 5*time.Second)
	candidates, err := client.Fetch(context.Background(), 10)
	require.NoError(t, err)

	require.Len(t, candidates, 2)
	assert.Greater(t, candidates[0].Popularity, candidates[1].Popularity)
	for _, c := range candidates {
		assert.GreaterOrEqual(t, c.Popularity, 0.0)
		assert.LessOrEqual(t, c.Popularity, 100.0)
	}
}

func TestRedditFetch_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	client := NewRedditClient(ts.URL, "memenem/test", 5*time.Second)
	_, err := client.Fetch(context.Background(), 10)
	assert.ErrorIs(t, err, ErrSourceError)
}

func TestRedditFetch_Unreachable(t *testing.T) {
	client := NewRedditClient("http://127.0.0.1:1", "memenem/test", time.Second)
	_, err := client.Fetch(context.Background(), 10)
	assert.ErrorIs(t, err, ErrSourceUnreachable)
}

func TestCleanTitle(t *testing.T) {
	cases := map[string]string{
		"[Template] Confused Dog":     "Confused Dog",
		"Meme Template: Epic Fail":    "Epic Fail",
		"  lots   of   whitespace  ":  "lots of whitespace",
		"Plain Title":                 "Plain Title",
	}
	for in, want := range cases {
		assert.Equal(t, want, cleanTitle(in), "input %q", in)
	}
}
