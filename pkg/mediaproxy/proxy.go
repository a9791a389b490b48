// Package mediaproxy streams remote media through the service so the
// browser never fetches CDN URLs directly (which trips CORS and hotlink
// protection). Bodies are piped, never buffered whole.
package mediaproxy

import (
	"io"
	"net/http"
	"time"

	"tagdown/pkg/logger"
)

// Proxy relays a remote resource to the caller as a pass-through pipe.
type Proxy struct {
	client *http.Client
	logger logger.Logger
}

// New creates a media proxy. The client has no overall timeout because
// large downloads legitimately run long; instead the wait for upstream
// headers is bounded, and the request context covers the rest.
func New(log logger.Logger) *Proxy {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Proxy{
		client: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: 30 * time.Second,
			},
		},
		logger: log,
	}
}

// ServeStream fetches rawURL and forwards its bytes to the response. The
// upstream content type is mirrored before the first byte. Failures
// before any byte was forwarded surface the upstream status (or 500);
// a failure mid-stream simply terminates the connection, since chunked
// transfer cannot retroactively change the status.
func (p *Proxy) ServeStream(w http.ResponseWriter, r *http.Request, rawURL string) {
	// A malformed URL is a fetch failure like any other; 400 is reserved
	// for the missing-parameter case handled before this point
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, rawURL, nil)
	if err != nil {
		p.logger.ErrorWithFields("proxy fetch failed", map[string]interface{}{
			"url":   rawURL,
			"error": err.Error(),
		})
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.ErrorWithFields("proxy fetch failed", map[string]interface{}{
			"url":   rawURL,
			"error": err.Error(),
		})
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Surface the upstream status with a bounded slice of its body
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		p.logger.WarnWithFields("proxy upstream returned error status", map[string]interface{}{
			"url":    rawURL,
			"status": resp.StatusCode,
		})
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(body)
		return
	}

	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	if contentLength := resp.Header.Get("Content-Length"); contentLength != "" {
		w.Header().Set("Content-Length", contentLength)
	}
	w.WriteHeader(http.StatusOK)

	written, err := io.Copy(newFlushWriter(w), resp.Body)
	if err != nil {
		// Headers are already sent; the stream just ends short
		p.logger.WarnWithFields("proxy stream terminated early", map[string]interface{}{
			"url":     rawURL,
			"written": written,
			"error":   err.Error(),
		})
		return
	}

	p.logger.DebugWithFields("proxy stream completed", map[string]interface{}{
		"url":     rawURL,
		"written": written,
	})
}

// flushWriter flushes after every write so bytes reach the client as
// they arrive instead of sitting in the response buffer.
type flushWriter struct {
	w       io.Writer
	flusher http.Flusher
}

func newFlushWriter(w http.ResponseWriter) *flushWriter {
	fw := &flushWriter{w: w}
	if flusher, ok := w.(http.Flusher); ok {
		fw.flusher = flusher
	}
	return fw
}

func (fw *flushWriter) Write(p []byte) (int, error) {
	n, err := fw.w.Write(p)
	if fw.flusher != nil {
		fw.flusher.Flush()
	}
	return n, err
}
