package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// Ranked is one reranked document: the index into the input docs slice and
// the cross-encoder relevance score.
type Ranked struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

type Client struct {
	apiKey   string
	provider string
	client   *http.Client
	baseURL  string
}

func NewClient(provider, apiKey string) *Client {
	return &Client{
		provider: provider,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// Rerank scores docs against the query with a cross-encoder and returns the
// topK most relevant, best first. An unknown provider returns the identity
// ordering so reranking degrades to a no-op rather than an error.
func (c *Client) Rerank(ctx context.Context, query string, docs []string, topK int) ([]Ranked, error) {
	if topK <= 0 || topK > len(docs) {
		topK = len(docs)
	}

	var (
		ranked []Ranked
		err    error
	)
	switch c.provider {
	case "jina":
		ranked, err = c.call(ctx, "https://api.jina.ai/v1/rerank", map[string]interface{}{
			"model":     "jina-reranker-v1-base-en",
			"query":     query,
			"documents": docs,
		})
	case "cohere":
		ranked, err = c.call(ctx, "https://api.cohere.ai/v1/rerank", map[string]interface{}{
			"model":            "rerank-english-v3.0",
			"query":            query,
			"documents":        docs,
			"top_n":            len(docs),
			"return_documents": false,
		})
	default:
		ranked = make([]Ranked, len(docs))
		for i := range ranked {
			ranked[i] = Ranked{Index: i}
		}
	}
	if err != nil {
		return nil, err
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked, nil
}

func (c *Client) call(ctx context.Context, url string, body map[string]interface{}) ([]Ranked, error) {
	if c.baseURL != "" {
		url = c.baseURL
	}

	jsonBody, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("%s api error: %d", c.provider, resp.StatusCode)
	}

	var result struct {
		Results []struct {
			Index int     `json:"index"`
			Score float64 `json:"relevance_score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	docCount := len(body["documents"].([]string))
	ranked := make([]Ranked, 0, len(result.Results))
	for _, r := range result.Results {
		if r.Index >= 0 && r.Index < docCount {
			ranked = append(ranked, Ranked{Index: r.Index, Score: r.Score})
		}
	}
	return ranked, nil
}
