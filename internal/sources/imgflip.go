package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/memenem/memenem/pkg/models"
)

// ImgflipClient fetches trending templates from the Imgflip catalog API.
type ImgflipClient struct {
	baseURL string
	client  *http.Client
}

func NewImgflipClient(baseURL string, timeout time.Duration) *ImgflipClient {
	return &ImgflipClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *ImgflipClient) Name() string { return "imgflip" }

func (c *ImgflipClient) Fetch(ctx context.Context, limit int) ([]models.Candidate, error) {
	u := fmt.Sprintf("%s/get_memes", c.baseURL)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrSourceError, resp.StatusCode)
	}

	var imgflipResp imgflipMemesResponse
	if err := json.NewDecoder(resp.Body).Decode(&imgflipResp); err != nil {
		return nil, fmt.Errorf("decoding imgflip response: %w", err)
	}
	if !imgflipResp.Success {
		return nil, fmt.Errorf("%w: imgflip reported failure", ErrSourceError)
	}

	memes := imgflipResp.Data.Memes
	if limit > 0 && len(memes) > limit {
		memes = memes[:limit]
	}

	candidates := make([]models.Candidate, 0, len(memes))
	for i, meme := range memes {
		if meme.ID == "" || meme.Name == "" || meme.URL == "" {
			continue
		}

		// The catalog lists templates in trending order, so position is the
		// popularity signal.
		popularity := 100.0 - float64(i)*2
		if popularity < 10 {
			popularity = 10
		}

		traits := applyTraits(meme.Name)
		candidates = append(candidates, models.Candidate{
			ID:         "imgflip_" + meme.ID,
			Name:       meme.Name,
			ImageURL:   meme.URL,
			Tags:       deriveTags(meme.Name, "imgflip"),
			Popularity: popularity,
			Source:     "imgflip",
			PanelCount: traits.PanelCount,
			Characters: traits.Characters,
			BoxCount:   meme.BoxCount,
		})
	}

	return candidates, nil
}

// --- Imgflip response types ---

type imgflipMemesResponse struct {
	Success bool        `json:"success"`
	Data    imgflipData `json:"data"`
}

type imgflipData struct {
	Memes []imgflipMeme `json:"memes"`
}

type imgflipMeme struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	BoxCount int    `json:"box_count"`
}

// Compile-time check that ImgflipClient implements Source.
var _ Source = (*ImgflipClient)(nil)
