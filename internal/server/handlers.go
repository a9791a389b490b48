package server

import (
	"context"
	"encoding/json"
	"net/http"

	"tagdown/pkg/limiter"
	"tagdown/pkg/upstream"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleProxy streams a remote media resource through the service.
func (s *Server) handleProxy(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		http.Error(w, "URL is required", http.StatusBadRequest)
		return
	}
	s.proxy.ServeStream(w, r, rawURL)
}

// handleConvertToAudio streams the mp3 extraction of a remote video.
func (s *Server) handleConvertToAudio(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		http.Error(w, "URL is required", http.StatusBadRequest)
		return
	}
	s.transcoder.ServeStream(w, r, rawURL)
}

// handleRequestStatus reports quota state without consuming a request.
func (s *Server) handleRequestStatus(w http.ResponseWriter, r *http.Request) {
	id := limiter.ResolveIdentity(r, s.cfg.Server.TrustProxyHeaders)

	status, err := s.limiter.Status(r.Context(), id)
	if err != nil {
		s.log.ErrorWithFields("quota status read failed", map[string]interface{}{
			"identity": id.Key,
			"error":    err.Error(),
		})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "Internal Server Error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{
		"limit":     status.Limit,
		"remaining": status.Remaining,
		"used":      status.Used,
	})
}

func (s *Server) handleInstagramProfile(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		http.Error(w, "Username is required", http.StatusBadRequest)
		return
	}
	s.relay(w, r, func(ctx context.Context) (upstream.Result, error) {
		return s.upstream.InstagramProfile(ctx, username)
	})
}

func (s *Server) handleInstagramPosts(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		http.Error(w, "Username is required", http.StatusBadRequest)
		return
	}
	s.relay(w, r, func(ctx context.Context) (upstream.Result, error) {
		return s.upstream.InstagramPosts(ctx, username)
	})
}

func (s *Server) handleInstagramPostDownload(w http.ResponseWriter, r *http.Request) {
	postURL := r.URL.Query().Get("url")
	if postURL == "" {
		http.Error(w, "URL is required", http.StatusBadRequest)
		return
	}
	s.relay(w, r, func(ctx context.Context) (upstream.Result, error) {
		return s.upstream.InstagramPostDownload(ctx, postURL)
	})
}

func (s *Server) handleInstagramPostInfo(w http.ResponseWriter, r *http.Request) {
	postURL := r.URL.Query().Get("url")
	if postURL == "" {
		http.Error(w, "URL is required", http.StatusBadRequest)
		return
	}
	s.relay(w, r, func(ctx context.Context) (upstream.Result, error) {
		return s.upstream.InstagramPostInfo(ctx, postURL)
	})
}

func (s *Server) handleTikTokVideo(w http.ResponseWriter, r *http.Request) {
	videoURL := r.URL.Query().Get("url")
	if videoURL == "" {
		http.Error(w, "URL is required", http.StatusBadRequest)
		return
	}
	s.relay(w, r, func(ctx context.Context) (upstream.Result, error) {
		return s.upstream.TikTokVideo(ctx, videoURL)
	})
}

// relay forwards one upstream reply verbatim: the JSON body on success,
// the upstream's own status and body on upstream failure, 500 with the
// error text when the provider was unreachable.
func (s *Server) relay(w http.ResponseWriter, r *http.Request, call func(context.Context) (upstream.Result, error)) {
	result, err := call(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.Status)
	_, _ = w.Write(result.Body)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
