package aggregator

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/brotli"
	colly "github.com/gocolly/colly/v2"
	"golang.org/x/net/html/charset"

	"knowledge-engine/models"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// contentSelectors are tried in order; the first match is taken as the
// page's main content region.
var contentSelectors = []string{
	"main", "article", "[role=main]", ".content", "#content",
	".post-content", ".entry-content", ".article-content",
}

// WebPageFetcher pulls a single page and extracts its readable text.
type WebPageFetcher struct {
	timeout time.Duration
}

func NewWebPageFetcher(timeout time.Duration) *WebPageFetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &WebPageFetcher{timeout: timeout}
}

// Fetch retrieves pageURL and returns it as a web_page document. Failures
// are wrapped as ErrExternalFetchFailed.
func (wf *WebPageFetcher) Fetch(ctx context.Context, pageURL string) (*models.Document, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("%w: invalid url %q", models.ErrExternalFetchFailed, pageURL)
	}

	c := colly.NewCollector()
	c.UserAgent = defaultUserAgent
	c.SetRequestTimeout(wf.timeout)

	var doc *models.Document
	var fetchErr error

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", "en-US,en;q=0.9")
		r.Headers.Set("Accept-Encoding", "gzip, deflate, br")
	})

	c.OnResponse(func(r *colly.Response) {
		contentType := r.Headers.Get("Content-Type")
		if contentType != "" && !strings.Contains(contentType, "text/html") &&
			!strings.Contains(contentType, "application/xhtml+xml") {
			fetchErr = fmt.Errorf("%w: %s is not an HTML page", models.ErrExternalFetchFailed, pageURL)
			return
		}

		body := r.Body

		// gzip is decoded by the transport; brotli needs a manual pass
		if strings.Contains(r.Headers.Get("Content-Encoding"), "br") {
			decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
			if err == nil {
				body = decompressed
			}
		}

		utf8Reader, err := charset.NewReader(bytes.NewReader(body), contentType)
		if err == nil {
			if decoded, readErr := io.ReadAll(utf8Reader); readErr == nil && len(decoded) > 0 {
				body = decoded
			}
		}

		doc, fetchErr = wf.extract(pageURL, parsed.Host, body)
	})

	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = fmt.Errorf("%w: fetch %s: %v", models.ErrExternalFetchFailed, pageURL, err)
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", models.ErrExternalFetchFailed, pageURL, err)
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrExternalFetchFailed, err)
	}
	if fetchErr != nil {
		return nil, fetchErr
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: no content extracted from %s", models.ErrExternalFetchFailed, pageURL)
	}
	return doc, nil
}

func (wf *WebPageFetcher) extract(pageURL, host string, body []byte) (*models.Document, error) {
	gq, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", models.ErrExternalFetchFailed, pageURL, err)
	}

	gq.Find("script, style, nav, footer, aside, header").Remove()

	title := strings.TrimSpace(gq.Find("title").First().Text())
	if title == "" {
		title = host
	}

	var region *goquery.Selection
	for _, sel := range contentSelectors {
		if s := gq.Find(sel).First(); s.Length() > 0 {
			region = s
			break
		}
	}
	if region == nil {
		region = gq.Find("body").First()
	}

	text := whitespaceRe.ReplaceAllString(strings.TrimSpace(region.Text()), " ")
	if text == "" {
		return nil, fmt.Errorf("%w: no readable text on %s", models.ErrExternalFetchFailed, pageURL)
	}

	return &models.Document{
		ID:        fmt.Sprintf("web_%x", hashURL(pageURL)),
		Type:      models.TypeWebPage,
		Title:     title,
		Author:    host,
		Date:      time.Now().Format("2006-01-02"),
		Topic:     ExtractTopic(text),
		Content:   text,
		SourceURL: pageURL,
	}, nil
}

func hashURL(s string) uint32 {
	h := fnv.New32a()
	h.Write([]byte(s))
	return h.Sum32()
}
