// Package feed lists the latest entries of an RSS feed through an
// rss-to-json bridge.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"
)

const DefaultBridgeURL = "https://api.rss2json.com/v1/api.json"

type Item struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	GUID        string `json:"guid"`
	PubDate     string `json:"pubDate"`
	Author      string `json:"author"`
	Thumbnail   string `json:"thumbnail"`
	Description string `json:"description"`
}

type Config struct {
	BridgeURL  string
	HTTPClient *http.Client
	Logger     logr.Logger
}

type Client struct {
	bridgeURL string
	http      *http.Client
	log       logr.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.BridgeURL == "" {
		cfg.BridgeURL = DefaultBridgeURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		bridgeURL: cfg.BridgeURL,
		http:      cfg.HTTPClient,
		log:       cfg.Logger.WithName("feed"),
	}
}

// Latest returns at most limit items of rssURL. It never fails: any
// problem is logged and yields an empty list.
func (c *Client) Latest(ctx context.Context, rssURL string, limit int) []Item {
	items, err := c.fetch(ctx, rssURL)
	if err != nil {
		c.log.Error(err, "failed to fetch feed", "rss_url", rssURL)
		return []Item{}
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (c *Client) fetch(ctx context.Context, rssURL string) ([]Item, error) {
	u, err := url.Parse(c.bridgeURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse bridge url")
	}
	q := u.Query()
	q.Set("rss_url", rssURL)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch feed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bridge returned status %d", resp.StatusCode)
	}

	var body struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Items   []Item `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, "decode feed")
	}
	if body.Status != "ok" {
		return nil, fmt.Errorf("bridge status %q: %s", body.Status, body.Message)
	}
	if body.Items == nil {
		body.Items = []Item{}
	}
	return body.Items, nil
}
