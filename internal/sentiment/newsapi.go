// Package sentiment scores recent news about a symbol on [-1, 1].
package sentiment

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/sawpanic/rltrader/internal/domain"
)

const defaultNewsURL = "https://newsapi.org"

// NewsConfig configures the NewsAPI client.
type NewsConfig struct {
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Days     int           `yaml:"days"`
	PageSize int           `yaml:"page_size"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

func DefaultNewsConfig() NewsConfig {
	return NewsConfig{
		BaseURL:  defaultNewsURL,
		Days:     5,
		PageSize: 20,
		Timeout:  10 * time.Second,
		CacheTTL: 15 * time.Minute,
	}
}

// Fetcher returns headline texts for a query.
type Fetcher interface {
	Headlines(ctx context.Context, query string) ([]string, error)
}

// NewsClient queries the NewsAPI /v2/everything endpoint.
type NewsClient struct {
	client *resty.Client
	cfg    NewsConfig
	now    func() time.Time
}

type newsArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type newsResponse struct {
	Status   string        `json:"status"`
	Code     string        `json:"code"`
	Message  string        `json:"message"`
	Articles []newsArticle `json:"articles"`
}

func NewNewsClient(cfg NewsConfig) *NewsClient {
	d := DefaultNewsConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = d.BaseURL
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("NEWS_API_KEY")
	}
	if cfg.Days <= 0 {
		cfg.Days = d.Days
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = d.PageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = d.Timeout
	}

	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(cfg.Timeout)

	return &NewsClient{client: client, cfg: cfg, now: time.Now}
}

// Headlines returns "title. description" for each article.
func (n *NewsClient) Headlines(ctx context.Context, query string) ([]string, error) {
	if n.cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: NEWS_API_KEY is not set", domain.ErrConstruction)
	}

	from := n.now().UTC().AddDate(0, 0, -n.cfg.Days).Format("2006-01-02")
	var body newsResponse
	resp, err := n.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":        query,
			"from":     from,
			"sortBy":   "relevancy",
			"language": "en",
			"pageSize": fmt.Sprint(n.cfg.PageSize),
			"apiKey":   n.cfg.APIKey,
		}).
		SetResult(&body).
		SetError(&body).
		Get("/v2/everything")
	if err != nil {
		return nil, fmt.Errorf("fetch news for %s: %w", query, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("news API error %d: %s %s", resp.StatusCode(), body.Code, body.Message)
	}

	texts := make([]string, 0, len(body.Articles))
	for _, a := range body.Articles {
		texts = append(texts, a.Title+". "+a.Description)
	}
	return texts, nil
}
