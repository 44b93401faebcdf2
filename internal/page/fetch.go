package page

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const (
	defaultUserAgent = "spigell/autofill (+https://github.com/spigell/autofill)"
	acceptEncoding   = "gzip"
	defaultTimeout   = 30 * time.Second
)

// FetchOptions configures plain HTTP loading of a form.
type FetchOptions struct {
	UserAgent  string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Fetch loads the form at rawURL over HTTP and returns it as a single-step Static page.
// Client-rendered forms need the Chrome page instead.
func Fetch(ctx context.Context, rawURL string, opts FetchOptions) (*Static, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, &Error{URL: rawURL, Message: "invalid URL", Cause: err}
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &Error{URL: rawURL, Message: "create request", Cause: err}
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Encoding", acceptEncoding)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	logger.Debug("make request", zap.String("url", rawURL))
	resp, err := client.Do(req)
	if err != nil {
		return nil, &Error{URL: rawURL, Message: "HTTP request failed", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{URL: rawURL, Message: "bad status: " + resp.Status}
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, &Error{URL: rawURL, Message: "decode gzip body", Cause: err}
		}
		defer gz.Close()
		reader = gz
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &Error{URL: rawURL, Message: "read body", Cause: err}
	}

	logger.Debug("got page", zap.String("url", rawURL), zap.Int("bytes", len(body)))

	return NewStatic(rawURL, string(body))
}
