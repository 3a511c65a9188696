package chessapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/japaniel/chessarchive/pkg/logging"
)

const (
	DefaultBaseURL   = "https://api.chess.com"
	DefaultUserAgent = "chessarchive/0.1"

	// Monthly archives of very active players run to a few MB.
	maxBodySize = 32 * 1024 * 1024
)

// Options configures a Client. Zero values select defaults.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
	UserAgent  string
	// MaxRetries is the number of extra attempts after a 429 or 5xx response
	// or a transport error. 0 means a single attempt.
	MaxRetries int
	Logger     *zap.Logger
}

// Client reads a player's game archives.
type Client struct {
	baseURL    string
	http       *http.Client
	userAgent  string
	maxRetries int
	logger     *zap.Logger
	newBackOff func() backoff.BackOff
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		http:       opts.HTTPClient,
		userAgent:  opts.UserAgent,
		maxRetries: opts.MaxRetries,
		logger:     logging.OrNop(opts.Logger),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	c.newBackOff = func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 1 * time.Second
		b.MaxInterval = 15 * time.Second
		b.MaxElapsedTime = 1 * time.Minute
		return b
	}
	return c
}

// ArchivesURL returns the archive listing endpoint for username.
func (c *Client) ArchivesURL(username string) string {
	return fmt.Sprintf("%s/pub/player/%s/games/archives", c.baseURL, url.PathEscape(strings.ToLower(username)))
}

// ListArchives returns the monthly archive URLs of username, oldest first.
// The response must be an object with the single key "archives" holding a
// list of URLs; anything else is a *DataSourceError.
func (c *Client) ListArchives(ctx context.Context, username string) ([]string, error) {
	u := c.ArchivesURL(username)
	body, err := c.getJSON(ctx, u)
	if err != nil {
		var netErr *NetworkError
		if errors.As(err, &netErr) && netErr.StatusCode == http.StatusNotFound {
			netErr.Err = ErrUserNotFound
		}
		return nil, err
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &DataSourceError{URL: u, Reason: "response is not a JSON object"}
	}
	raw, ok := payload["archives"]
	if len(payload) != 1 || !ok {
		keys := make([]string, 0, len(payload))
		for k := range payload {
			keys = append(keys, k)
		}
		return nil, &DataSourceError{URL: u, Reason: fmt.Sprintf(`expected the single key "archives", got %q`, keys)}
	}
	var archives []string
	if err := json.Unmarshal(raw, &archives); err != nil || archives == nil {
		return nil, &DataSourceError{URL: u, Reason: `"archives" is not a list of URLs`}
	}
	return archives, nil
}

// FetchGames returns the games stored in one monthly archive.
func (c *Client) FetchGames(ctx context.Context, archiveURL string) ([]Game, error) {
	c.logger.Info("Fetching archive", zap.String("url", archiveURL))

	body, err := c.getJSON(ctx, archiveURL)
	if err != nil {
		return nil, err
	}
	var mg monthlyGames
	if err := json.Unmarshal(body, &mg); err != nil {
		return nil, &DataSourceError{URL: archiveURL, Reason: fmt.Sprintf("decode games: %v", err)}
	}
	return mg.Games, nil
}

// getJSON performs a GET and returns the body of a 200 response. Rate
// limiting and server errors are retried up to maxRetries times.
func (c *Client) getJSON(ctx context.Context, u string) ([]byte, error) {
	var body []byte

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(&NetworkError{URL: u, Err: err})
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(&NetworkError{URL: u, Err: err})
			}
			return &NetworkError{URL: u, Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			var msg struct {
				Message string `json:"message"`
			}
			_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&msg)
			netErr := &NetworkError{URL: u, StatusCode: resp.StatusCode, Err: errors.New(http.StatusText(resp.StatusCode))}
			if msg.Message != "" {
				netErr.Err = errors.New(msg.Message)
			}
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				c.logger.Warn("Request failed, may retry", zap.String("url", u), zap.Int("status", resp.StatusCode))
				return netErr
			}
			return backoff.Permanent(netErr)
		}

		if resp.ContentLength > maxBodySize {
			return backoff.Permanent(&NetworkError{URL: u, StatusCode: resp.StatusCode, Err: fmt.Errorf("content-length %d exceeds limit of %d bytes", resp.ContentLength, maxBodySize)})
		}
		b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
		if err != nil {
			return &NetworkError{URL: u, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
		}
		if len(b) > maxBodySize {
			return backoff.Permanent(&NetworkError{URL: u, StatusCode: resp.StatusCode, Err: fmt.Errorf("body exceeds limit of %d bytes", maxBodySize)})
		}
		body = b
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.maxRetries)), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return nil, err
	}
	return body, nil
}
