// Package urlfetch fetches job posting pages and reduces them to readable
// text for scoring.
package urlfetch

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/html"

	"github.com/skillmatch/assessment-recommender/internal/domain"
	"github.com/skillmatch/assessment-recommender/pkg/textx"
)

const maxBodyBytes = 2 << 20 // 2 MiB of HTML is plenty for a job posting

// Fetcher implements domain.PageFetcher over plain HTTP GET.
type Fetcher struct {
	hc *http.Client
}

// New constructs a page fetcher with a traced transport.
func New() *Fetcher {
	return &Fetcher{hc: &http.Client{
		Timeout:   20 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}}
}

// FetchText downloads rawURL and returns the page's visible text. Script,
// style and navigation chrome are stripped.
func (f *Fetcher) FetchText(ctx domain.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("%w: invalid url %q", domain.ErrInvalidArgument, rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("op=urlfetch.get: %w", err)
	}
	req.Header.Set("Accept", "text/html")
	resp, err := f.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("op=urlfetch.get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("op=urlfetch.get: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("op=urlfetch.read: %w", err)
	}
	text, err := ExtractText(string(body))
	if err != nil {
		return "", fmt.Errorf("op=urlfetch.parse: %w", err)
	}
	if text == "" {
		return "", fmt.Errorf("%w: no readable text at %q", domain.ErrInvalidArgument, rawURL)
	}
	return text, nil
}

// skipElements are subtrees that never carry posting content.
var skipElements = map[string]struct{}{
	"script": {}, "style": {}, "noscript": {},
	"nav": {}, "header": {}, "footer": {}, "aside": {},
}

// ExtractText parses doc as HTML and returns its visible text with
// whitespace collapsed.
func ExtractText(doc string) (string, error) {
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, skip := skipElements[n.Data]; skip {
				return
			}
		}
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return textx.CollapseWhitespace(textx.SanitizeText(sb.String())), nil
}
