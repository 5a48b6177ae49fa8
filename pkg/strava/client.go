// Package strava fetches segment results pages with a captured browser
// request and extracts effort rows from them.
package strava

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/grancakongen/segment-export-go/log"
	"github.com/grancakongen/segment-export-go/pkg/capture"
	"github.com/grancakongen/segment-export-go/pkg/model"
)

// DefaultUserAgent is sent when neither the capture nor the configuration
// provides one.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/142.0.0.0 Safari/537.36"

const DefaultBaseURL = "https://www.strava.com"

var (
	ErrAuthExpired = errors.New(
		"authentication rejected, save a fresh browser request to the capture file")
	ErrHTTPStatus = errors.New("unexpected http status")
)

func NewClient(template *capture.CapturedRequest, opts ...Option) *Client {
	ret := &Client{
		template: template,
		baseURL:  DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log.Default().Named("strava"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

type Option func(*Client)

func WithBaseURL(arg string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(arg, "/")
	}
}

func WithHTTPClient(arg *http.Client) Option {
	return func(c *Client) {
		c.httpClient = arg
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func WithLogger(arg *log.Logger) Option {
	return func(c *Client) {
		c.log = arg
	}
}

type Client struct {
	template   *capture.CapturedRequest
	baseURL    string
	httpClient *http.Client
	log        *log.Logger
}

// FetchResults issues the GET for one (segment, year) pair and returns the
// raw response body. Requests are sequential, there are no retries.
func (c *Client) FetchResults(ctx context.Context, segmentID string, year int) ([]byte, error) {
	reqURL := fmt.Sprintf("%s/segments/%s/results?year=%d", c.baseURL, segmentID, year)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	c.applyHeaders(req, segmentID)

	c.log.Debug("fetching segment results",
		log.String("segmentId", segmentID),
		log.Int("year", year),
		log.String("url", reqURL))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("segment %s year %d: %w", segmentID, year, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("segment %s year %d: %w", segmentID, year, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized ||
		resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("segment %s year %d: %w", segmentID, year, ErrAuthExpired)
	case resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices:
		return nil, fmt.Errorf("segment %s year %d: %w (%s)",
			segmentID, year, ErrHTTPStatus, resp.Status)
	}
	return body, nil
}

// SegmentEfforts fetches and extracts the effort rows for one segment/year.
func (c *Client) SegmentEfforts(
	ctx context.Context,
	seg model.Segment,
	year int,
) ([]model.EffortRow, error) {
	body, err := c.FetchResults(ctx, seg.ID, year)
	if err != nil {
		return nil, err
	}
	name := seg.Name
	if name == "" {
		name = seg.ID
	}
	return ExtractRows(c.baseURL, body, name, year)
}

// applyHeaders sets the headers the browser sent for the same XHR call.
func (c *Client) applyHeaders(req *http.Request, segmentID string) {
	userAgent := c.template.UserAgent()
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	req.Header.Set("Accept", "application/javascript")
	req.Header.Set("Cookie", c.template.Cookie())
	req.Header.Set("Referer", fmt.Sprintf("%s/segments/%s", c.baseURL, segmentID))
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("X-CSRF-Token", c.template.CSRFToken())
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
}
