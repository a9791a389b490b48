// Package transcode extracts the audio track of a remote video and
// streams it as mp3 while ffmpeg is still encoding.
package transcode

import (
	"bytes"
	"io"
	"net/http"
	"os/exec"
	"strings"

	"tagdown/pkg/logger"
)

// Transcoder runs ffmpeg as a child process per request.
type Transcoder struct {
	ffmpegPath string
	bitrate    string
	logger     logger.Logger
}

// New creates a transcoder using the given ffmpeg binary and target
// audio bitrate (e.g. "192k").
func New(ffmpegPath, bitrate string, log logger.Logger) *Transcoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if bitrate == "" {
		bitrate = "192k"
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Transcoder{
		ffmpegPath: ffmpegPath,
		bitrate:    bitrate,
		logger:     log,
	}
}

// ServeStream announces an mp3 attachment and pipes ffmpeg's output to
// the response as it is produced. If encoding fails before any byte was
// flushed the caller gets a 500; after that the stream just ends short.
// The process is bound to the request context, so a client disconnect
// kills it rather than leaving an orphan accruing cost.
func (t *Transcoder) ServeStream(w http.ResponseWriter, r *http.Request, rawURL string) {
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", `attachment; filename="audio.mp3"`)

	out := &countingWriter{w: w}
	if flusher, ok := w.(http.Flusher); ok {
		out.flusher = flusher
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(r.Context(), t.ffmpegPath,
		"-i", rawURL,
		"-vn",
		"-acodec", "libmp3lame",
		"-b:a", t.bitrate,
		"-f", "mp3",
		"pipe:1",
	)
	cmd.Stdout = out
	cmd.Stderr = io.Writer(&limitWriter{w: &stderr, limit: 8192})

	t.logger.InfoWithFields("starting transcode", map[string]interface{}{
		"url":     rawURL,
		"bitrate": t.bitrate,
	})

	err := cmd.Run()
	if err != nil {
		if out.written == 0 {
			t.logger.ErrorWithFields("transcode failed before first byte", map[string]interface{}{
				"url":    rawURL,
				"error":  err.Error(),
				"ffmpeg": lastLine(stderr.String()),
			})
			// Headers were set but not written; a status can still go out
			w.Header().Del("Content-Disposition")
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte("Error during conversion"))
			return
		}

		// Bytes already reached the client: the file arrives truncated
		t.logger.WarnWithFields("transcode terminated mid-stream", map[string]interface{}{
			"url":     rawURL,
			"written": out.written,
			"error":   err.Error(),
		})
		return
	}

	t.logger.InfoWithFields("transcode completed", map[string]interface{}{
		"url":     rawURL,
		"written": out.written,
	})
}

// countingWriter tracks how many bytes reached the response and flushes
// each chunk so playback can start before encoding finishes.
type countingWriter struct {
	w       io.Writer
	flusher http.Flusher
	written int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.written += int64(n)
	if cw.flusher != nil && n > 0 {
		cw.flusher.Flush()
	}
	return n, err
}

// limitWriter keeps only the first limit bytes, enough for diagnostics
// without holding ffmpeg's full chatter.
type limitWriter struct {
	w     io.Writer
	limit int
	seen  int
}

func (lw *limitWriter) Write(p []byte) (int, error) {
	n := len(p)
	if lw.seen < lw.limit {
		keep := p
		if lw.seen+n > lw.limit {
			keep = p[:lw.limit-lw.seen]
		}
		_, _ = lw.w.Write(keep)
	}
	lw.seen += n
	return n, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[idx+1:])
	}
	return s
}
