package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/tcadamson/recap.agdg.app/src/config"
	"github.com/tcadamson/recap.agdg.app/src/logging"
	"github.com/tcadamson/recap.agdg.app/src/oops"
	"github.com/tcadamson/recap.agdg.app/src/utils"
)

var ErrNotFound = errors.New("not found on board")

// StatusError is a non-2xx response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.URL, e.Status)
}

// Client talks to the read-only board API. JSON endpoints never return
// errors: anything that goes wrong is logged and the result is absent.
type Client struct {
	http      *http.Client
	apiBase   string
	mediaBase string
	board     string
	userAgent string
	attempts  uint
	delay     time.Duration
}

func NewClient(cfg config.BoardConfig) *Client {
	defaults := config.Defaults().Board
	return &Client{
		http: &http.Client{
			Timeout: utils.OrDefault(cfg.RequestTimeout, defaults.RequestTimeout),
		},
		apiBase:   strings.TrimSuffix(utils.OrDefault(cfg.APIBaseUrl, defaults.APIBaseUrl), "/"),
		mediaBase: strings.TrimSuffix(utils.OrDefault(cfg.MediaBaseUrl, defaults.MediaBaseUrl), "/"),
		board:     utils.OrDefault(cfg.Name, defaults.Name),
		userAgent: utils.OrDefault(cfg.UserAgent, defaults.UserAgent),
		attempts:  utils.OrDefault(cfg.RetryAttempts, 1),
		delay:     cfg.RetryDelay,
	}
}

func (c *Client) CatalogURL() string {
	return fmt.Sprintf("%s/%s/catalog.json", c.apiBase, c.board)
}

func (c *Client) ArchiveURL() string {
	return fmt.Sprintf("%s/%s/archive.json", c.apiBase, c.board)
}

func (c *Client) ThreadURL(id int) string {
	return fmt.Sprintf("%s/%s/thread/%d.json", c.apiBase, c.board, id)
}

func (c *Client) MediaURL(filename string) string {
	return fmt.Sprintf("%s/%s/%s", c.mediaBase, c.board, filename)
}

// Catalog returns the pages of currently open threads.
func (c *Client) Catalog(ctx context.Context) ([]CatalogPage, bool) {
	var pages []CatalogPage
	if !c.fetchJSON(ctx, c.CatalogURL(), &pages, func() error { return validateCatalog(pages) }) {
		return nil, false
	}
	return pages, true
}

// Archive returns the ids of closed threads still held by the board.
func (c *Client) Archive(ctx context.Context) ([]int, bool) {
	var ids []int
	if !c.fetchJSON(ctx, c.ArchiveURL(), &ids, func() error { return validateArchive(ids) }) {
		return nil, false
	}
	return ids, true
}

// Thread returns every post of a single thread, open or archived.
func (c *Client) Thread(ctx context.Context, id int) (*Thread, bool) {
	var thread Thread
	if !c.fetchJSON(ctx, c.ThreadURL(id), &thread, func() error { return validateThread(&thread) }) {
		return nil, false
	}
	return &thread, true
}

// Media downloads an attachment from the media host. Unlike the JSON
// endpoints, failures are returned.
func (c *Client) Media(ctx context.Context, filename string) (body []byte, contentType string, err error) {
	err = c.get(ctx, c.MediaURL(filename), func(res *http.Response) error {
		body, err = io.ReadAll(res.Body)
		if err != nil {
			return oops.New(err, "failed to read media body")
		}
		contentType = res.Header.Get("Content-Type")
		return nil
	})
	return body, contentType, err
}

func (c *Client) fetchJSON(ctx context.Context, url string, dest any, validate func() error) bool {
	logger := logging.ExtractLogger(ctx).With().Str("url", url).Logger()

	err := c.get(ctx, url, func(res *http.Response) error {
		if err := json.NewDecoder(res.Body).Decode(dest); err != nil {
			return retry.Unrecoverable(oops.New(err, "malformed JSON"))
		}
		if err := validate(); err != nil {
			return retry.Unrecoverable(oops.New(err, "unexpected document shape"))
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.Debug().Msg("board returned 404")
		} else {
			logger.Warn().Err(err).Msg("board request failed")
		}
		return false
	}
	return true
}

// get performs a GET with retries and hands a 2xx response to handle. 404s
// and errors from handle are not retried.
func (c *Client) get(ctx context.Context, url string, handle func(res *http.Response) error) error {
	logger := logging.ExtractLogger(ctx)

	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(oops.New(err, "failed to create request"))
			}
			req.Header.Set("User-Agent", c.userAgent)

			res, err := c.http.Do(req)
			if err != nil {
				return err
			}
			defer res.Body.Close()

			if res.StatusCode == http.StatusNotFound {
				return retry.Unrecoverable(ErrNotFound)
			}
			if res.StatusCode < 200 || res.StatusCode > 299 {
				_, _ = io.Copy(io.Discard, res.Body)
				return &StatusError{URL: url, Status: res.StatusCode}
			}

			return handle(res)
		},
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(c.delay/2+time.Millisecond),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug().Uint("attempt", n+1).Str("url", url).Err(err).Msg("retrying board request")
		}),
	)
	return err
}
