package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"knowledge-engine/models"
)

const (
	wikipediaSummaryURL = "https://en.wikipedia.org/api/rest_v1/page/summary/"
	wikipediaAPIURL     = "https://en.wikipedia.org/w/api.php"
	defaultUserAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// WikipediaClient fetches article text through the Wikipedia REST and
// action APIs. The summary endpoint confirms the article exists and gives
// the canonical title; the extracts endpoint returns the full plain text.
type WikipediaClient struct {
	httpClient *http.Client
}

func NewWikipediaClient(timeout time.Duration) *WikipediaClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WikipediaClient{
		httpClient: &http.Client{Timeout: timeout},
	}
}

type wikiSummary struct {
	Title       string `json:"title"`
	Extract     string `json:"extract"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

type wikiExtractResponse struct {
	Query struct {
		Pages map[string]struct {
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

// FetchArticle retrieves one Wikipedia article by title. Returns
// ErrExternalFetchFailed when the article cannot be fetched or has no text.
func (wc *WikipediaClient) FetchArticle(ctx context.Context, title string) (*models.Document, error) {
	summary, err := wc.fetchSummary(ctx, title)
	if err != nil {
		return nil, err
	}

	content, err := wc.fetchFullText(ctx, title)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		content = summary.Extract
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: wikipedia article %q has no text", models.ErrExternalFetchFailed, title)
	}

	slug := strings.ToLower(strings.ReplaceAll(title, " ", "_"))
	doc := &models.Document{
		ID:        "wiki_" + slug,
		Type:      models.TypeWikipediaArticle,
		Title:     summary.Title,
		Author:    "Wikipedia Contributors",
		Date:      time.Now().Format("2006-01-02"),
		Topic:     ExtractTopic(content),
		Content:   content,
		SourceURL: summary.ContentURLs.Desktop.Page,
	}
	if doc.Title == "" {
		doc.Title = title
	}
	return doc, nil
}

func (wc *WikipediaClient) fetchSummary(ctx context.Context, title string) (*wikiSummary, error) {
	endpoint := wikipediaSummaryURL + url.PathEscape(strings.ReplaceAll(title, " ", "_"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrExternalFetchFailed, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := wc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: wikipedia summary: %v", models.ErrExternalFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: wikipedia summary for %q: status %d", models.ErrExternalFetchFailed, title, resp.StatusCode)
	}

	var summary wikiSummary
	if err := json.NewDecoder(resp.Body).Decode(&summary); err != nil {
		return nil, fmt.Errorf("%w: decode wikipedia summary: %v", models.ErrExternalFetchFailed, err)
	}
	if summary.Extract == "" {
		return nil, fmt.Errorf("%w: no extract for wikipedia article %q", models.ErrExternalFetchFailed, title)
	}
	return &summary, nil
}

func (wc *WikipediaClient) fetchFullText(ctx context.Context, title string) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("titles", title)
	params.Set("prop", "extracts")
	params.Set("explaintext", "1")
	params.Set("exsectionformat", "plain")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wikipediaAPIURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrExternalFetchFailed, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)

	resp, err := wc.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: wikipedia extract: %v", models.ErrExternalFetchFailed, err)
	}
	defer resp.Body.Close()

	var extract wikiExtractResponse
	if err := json.NewDecoder(resp.Body).Decode(&extract); err != nil {
		return "", fmt.Errorf("%w: decode wikipedia extract: %v", models.ErrExternalFetchFailed, err)
	}

	for _, page := range extract.Query.Pages {
		if page.Extract != "" {
			return page.Extract, nil
		}
	}
	return "", nil
}

// RelatedTerms expands a topic into companion Wikipedia lookups so one
// query lands more than one external document.
func RelatedTerms(topic string) []string {
	lower := strings.ToLower(topic)
	switch {
	case strings.Contains(lower, "artificial intelligence") || strings.Contains(lower, "ai"):
		return []string{"machine learning", "deep learning", "neural networks"}
	case strings.Contains(lower, "climate"):
		return []string{"global warming", "renewable energy", "sustainability"}
	case strings.Contains(lower, "space"):
		return []string{"astronomy", "astrophysics", "space exploration"}
	case strings.Contains(lower, "quantum"):
		return []string{"quantum physics", "quantum mechanics", "quantum computing"}
	default:
		return []string{topic + " research", topic + " technology", topic + " applications"}
	}
}
