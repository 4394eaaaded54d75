package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/memenem/memenem/pkg/models"
)

const redditSubreddit = "memes"

// RedditClient fetches candidate templates from a subreddit's top listing.
// Reddit requires a descriptive User-Agent or it throttles aggressively.
type RedditClient struct {
	baseURL   string
	userAgent string
	client    *http.Client
}

func NewRedditClient(baseURL, userAgent string, timeout time.Duration) *RedditClient {
	return &RedditClient{
		baseURL:   baseURL,
		userAgent: userAgent,
		client:    &http.Client{Timeout: timeout},
	}
}

func (c *RedditClient) Name() string { return "reddit" }

func (c *RedditClient) Fetch(ctx context.Context, limit int) ([]models.Candidate, error) {
	if limit <= 0 {
		limit = 25
	}
	u := fmt.Sprintf("%s/r/%s/top.json?t=day&limit=%s", c.baseURL, redditSubreddit, strconv.Itoa(limit))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrSourceError, resp.StatusCode)
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decoding reddit listing: %w", err)
	}

	var candidates []models.Candidate
	for _, child := range listing.Data.Children {
		post := child.Data
		imageURL := imagePostURL(post)
		if imageURL == "" {
			continue
		}
		name := cleanTitle(post.Title)
		if name == "" {
			continue
		}

		traits := applyTraits(name)
		candidates = append(candidates, models.Candidate{
			ID:         "reddit_" + post.ID,
			Name:       name,
			ImageURL:   imageURL,
			Tags:       deriveTags(name, "reddit", redditSubreddit),
			Popularity: redditPopularity(post),
			Source:     "reddit",
			PanelCount: traits.PanelCount,
			Characters: traits.Characters,
		})
		if len(candidates) >= limit {
			break
		}
	}

	return candidates, nil
}

// imagePostURL returns the direct image URL for a post, or "" for text posts
// and unsupported hosts.
func imagePostURL(post redditPost) string {
	lower := strings.ToLower(post.URL)
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".gif", ".webp"} {
		if strings.HasSuffix(lower, ext) {
			return post.URL
		}
	}
	if strings.Contains(lower, "i.redd.it/") {
		return post.URL
	}
	return ""
}

// cleanTitle strips template-post boilerplate from a title.
func cleanTitle(title string) string {
	for _, prefix := range []string{"[OC]", "[Template]", "[Meme Template]", "Meme Template:", "Template:"} {
		title = strings.TrimSpace(strings.TrimPrefix(title, prefix))
	}
	title = strings.Join(strings.Fields(title), " ")
	if len(title) > 100 {
		title = title[:97] + "..."
	}
	return title
}

// redditPopularity scores a post on a 0-100 scale from upvotes and comment
// engagement. Upvotes use a sub-linear curve so megathreads do not drown
// everything else.
func redditPopularity(post redditPost) float64 {
	upvotes := math.Max(float64(post.Ups), 1)
	upvoteScore := math.Min(50, 10*math.Pow(upvotes, 0.3))
	commentScore := math.Min(25, float64(post.NumComments)*0.5)
	return math.Min(100, upvoteScore+commentScore+25)
}

// --- Reddit response types ---

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Ups         int    `json:"ups"`
	NumComments int    `json:"num_comments"`
}

// Compile-time check that RedditClient implements Source.
var _ Source = (*RedditClient)(nil)
