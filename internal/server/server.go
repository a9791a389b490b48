// Package server wires the HTTP surface of the tagdown backend: scrape
// routes behind the quota gate, the streaming proxy and transcode
// routes, and the read-only quota status endpoint.
package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"tagdown/pkg/config"
	"tagdown/pkg/limiter"
	"tagdown/pkg/logger"
	"tagdown/pkg/mediaproxy"
	"tagdown/pkg/transcode"
	"tagdown/pkg/upstream"
)

// Server hosts the tagdown HTTP API.
type Server struct {
	cfg        *config.Config
	log        logger.Logger
	limiter    *limiter.Limiter
	upstream   *upstream.Client
	proxy      *mediaproxy.Proxy
	transcoder *transcode.Transcoder
	httpServer *http.Server
}

// New assembles a server from its collaborators.
func New(
	cfg *config.Config,
	log logger.Logger,
	lim *limiter.Limiter,
	client *upstream.Client,
	proxy *mediaproxy.Proxy,
	transcoder *transcode.Transcoder,
) *Server {
	if log == nil {
		log = logger.GetLogger()
	}

	s := &Server{
		cfg:        cfg,
		log:        log,
		limiter:    lim,
		upstream:   client,
		proxy:      proxy,
		transcoder: transcoder,
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	return s
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		// The front end reads quota state off these without a billable call
		ExposedHeaders: []string{"X-RateLimit-Limit", "X-RateLimit-Remaining"},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/proxy", s.handleProxy)
	r.Get("/request-status", s.handleRequestStatus)

	// Quota-gated routes. Audio conversion spawns an ffmpeg process per
	// request, so it counts against the quota like the scrape routes.
	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware(s.limiter, s.cfg.Server.TrustProxyHeaders, s.log))

		r.Get("/instagram-profile", s.handleInstagramProfile)
		r.Get("/instagram-posts", s.handleInstagramPosts)
		r.Get("/instagram-post-dl", s.handleInstagramPostDownload)
		r.Get("/instagram-post-info", s.handleInstagramPostInfo)
		r.Get("/tiktok-video", s.handleTikTokVideo)
		r.Get("/convert-to-audio", s.handleConvertToAudio)
	})

	return r
}

// Start begins serving and blocks until the listener closes.
func (s *Server) Start() error {
	s.log.InfoWithFields("server listening", map[string]interface{}{
		"addr": s.cfg.Server.Addr,
	})
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
