// Package upstream wraps the third-party scraping APIs behind a thin
// request/response mapping. Bodies are passed through verbatim; any
// reshaping happens client-side.
package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"tagdown/pkg/config"
	"tagdown/pkg/errors"
	"tagdown/pkg/logger"
)

// Result is one upstream reply: the raw JSON body and the status it
// arrived with. Non-2xx replies are returned as results, not errors, so
// handlers can surface the upstream status unchanged.
type Result struct {
	Body   []byte
	Status int
}

// OK reports whether the upstream answered with a 2xx status.
func (r Result) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Client talks to the RapidAPI scraping providers
type Client struct {
	httpClient *http.Client
	apiKey     string
	hosts      hosts
	logger     logger.Logger
}

type hosts struct {
	instagram     string
	instagramPost string
	tiktok        string
}

// NewClient creates a new upstream API client
func NewClient(cfg config.UpstreamConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		apiKey: cfg.APIKey,
		hosts: hosts{
			instagram:     cfg.InstagramHost,
			instagramPost: cfg.InstagramPostHost,
			tiktok:        cfg.TikTokHost,
		},
		logger: log,
	}
}

// get performs a GET against a RapidAPI host and reads the full reply.
// The caller's context bounds the request alongside the client timeout.
func (c *Client) get(ctx context.Context, rawURL string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, errors.New(errors.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}
	req.Header.Set("x-rapidapi-key", c.apiKey)
	req.Header.Set("x-rapidapi-host", req.URL.Host)

	host := req.URL.Host
	start := time.Now()
	c.logger.DebugWithFields("sending upstream request", map[string]interface{}{
		"host": host,
		"url":  rawURL,
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("upstream request failed", map[string]interface{}{
			"host":     host,
			"error":    err.Error(),
			"duration": duration,
		})
		return Result{}, errors.New(errors.ErrorTypeNetwork, 0, "network error: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, errors.New(errors.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}

	c.logger.DebugWithFields("upstream request completed", map[string]interface{}{
		"host":     host,
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return Result{Body: body, Status: resp.StatusCode}, nil
}

func (c *Client) instagramURL(path string) string {
	return baseURL(c.hosts.instagram) + path
}

func (c *Client) instagramPostURL(path string) string {
	return baseURL(c.hosts.instagramPost) + path
}

func (c *Client) tiktokURL(path string) string {
	return baseURL(c.hosts.tiktok) + path
}

// baseURL accepts either a bare RapidAPI host or a full URL. The latter
// lets tests point the client at a local server.
func baseURL(host string) string {
	if strings.Contains(host, "://") {
		return strings.TrimSuffix(host, "/")
	}
	return fmt.Sprintf("https://%s", host)
}
