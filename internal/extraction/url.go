package extraction

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/rodneygagnon/qckstrt/pkg/textextract"
)

const maxPageBytes = 16 << 20

// URLExtractor fetches web pages and converts their main content to markdown.
type URLExtractor struct {
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewURLExtractor throttles fetches to rps requests per second; rps <= 0 disables throttling.
func NewURLExtractor(rps float64) *URLExtractor {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &URLExtractor{
		httpClient: &http.Client{Timeout: time.Minute},
		limiter:    limiter,
	}
}

func (e *URLExtractor) Name() string { return "url" }

func (e *URLExtractor) Supports(in Input) bool {
	return in.Kind == KindURL && in.URL != nil && in.URL.Host != ""
}

func (e *URLExtractor) ExtractText(ctx context.Context, in Input) (*Result, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html, text/plain, application/pdf;q=0.9, */*;q=0.5")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", in.URL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", in.URL.Host, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	meta := map[string]string{
		"extractor":    e.Name(),
		"url":          in.URL.String(),
		"content_type": mediaType,
	}

	switch {
	case mediaType == "" || mediaType == "text/html" || mediaType == "application/xhtml+xml":
		text, title, err := htmlToMarkdown(in.URL.String(), body)
		if err != nil {
			return nil, err
		}
		meta["type"] = "html"
		if title != "" {
			meta["title"] = title
		}
		return &Result{Text: text, Metadata: meta}, nil
	case textextract.Supported(mediaType):
		extracted, err := textextract.Extract(bytes.NewReader(body), int64(len(body)), mediaType)
		if err != nil {
			return nil, err
		}
		for k, v := range extracted.Metadata {
			meta[k] = v
		}
		return &Result{Text: extracted.Content, Metadata: meta}, nil
	default:
		return nil, fmt.Errorf("unsupported content type %q", mediaType)
	}
}

func htmlToMarkdown(baseURL string, body []byte) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", "", fmt.Errorf("parse html: %w", err)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	doc.Find("script, style, noscript, nav, footer, header, iframe, form").Remove()

	main := doc.Find("main, article").First()
	if main.Length() == 0 {
		main = doc.Find("body")
	}
	html, err := main.Html()
	if err != nil {
		return "", "", fmt.Errorf("render html: %w", err)
	}

	converter := md.NewConverter(baseURL, true, nil)
	text, err := converter.ConvertString(html)
	if err != nil {
		return "", "", fmt.Errorf("convert html: %w", err)
	}
	return strings.TrimSpace(text), title, nil
}
