package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/indieinfra/mediadrop/config"
	"github.com/indieinfra/mediadrop/media"
	"github.com/indieinfra/mediadrop/server/auth"
	"github.com/indieinfra/mediadrop/server/handler/asset"
	"github.com/indieinfra/mediadrop/server/handler/credentials"
	"github.com/indieinfra/mediadrop/server/handler/get"
	"github.com/indieinfra/mediadrop/server/handler/upload"
	"github.com/indieinfra/mediadrop/server/metrics"
	"github.com/indieinfra/mediadrop/server/middleware"
	"github.com/indieinfra/mediadrop/server/session"
	"github.com/indieinfra/mediadrop/server/state"
	"github.com/indieinfra/mediadrop/storage/content"
	contentfactory "github.com/indieinfra/mediadrop/storage/content/factory"
	vendor "github.com/indieinfra/mediadrop/storage/objectstore"
	vendorfactory "github.com/indieinfra/mediadrop/storage/objectstore/factory"
	"github.com/indieinfra/mediadrop/workflow"
)

const shutdownTimeout = 10 * time.Second

func initializeVendor(cfg *config.Vendor) (vendor.Adapter, error) {
	return vendorfactory.Create(cfg)
}

func initializeRegistrar(cfg *config.Content) (content.Registrar, error) {
	return contentfactory.Create(cfg)
}

func newState(cfg *config.Config, reg prometheus.Registerer) (*state.MediadropState, error) {
	v, err := initializeVendor(&cfg.Vendor)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage vendor: %w", err)
	}

	registrar, err := initializeRegistrar(&cfg.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize content store: %w", err)
	}

	m, err := metrics.New(reg)
	if err != nil {
		return nil, err
	}

	if cfg.Upload.TempDir != "" {
		if err := os.MkdirAll(cfg.Upload.TempDir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create upload temp dir: %w", err)
		}
	}

	st := &state.MediadropState{
		Cfg:       cfg,
		Vendor:    v,
		Registrar: registrar,
		Extractor: media.NewFFmpegExtractor(&cfg.Extraction, media.ExecRunner{}),
		Metrics:   m,
	}

	caps := v.Describe()
	policy := workflow.Policy{
		MaxRetries: cfg.Upload.MaxRetries,
		Accept:     func(mimeType string) bool { return vendor.Accepts(caps, mimeType) },
	}

	size := cfg.Upload.SessionCacheSize
	if size <= 0 {
		size = config.DefaultSessionCacheSize
	}

	sessions, err := session.NewRegistry(size, func(id string) *workflow.Machine {
		return workflow.New(policy, workflow.Dependencies{
			Extractor:   st.Extractor,
			Vendor:      st.Vendor,
			Credentials: st.Credentials(),
			Registrar:   st.Registrar,
			Logger:      log.New(log.Writer(), fmt.Sprintf("session=%v ", id), log.Flags()|log.Lmsgprefix),
			Observer:    m.ObserveChange,
		})
	})
	if err != nil {
		cleanup(st)
		return nil, err
	}
	sessions.OnOpen = func(*session.Session) { m.SessionOpened() }
	sessions.OnClose = func(*session.Session) { m.SessionClosed() }
	st.Sessions = sessions

	return st, nil
}

func routes(st *state.MediadropState, gatherer prometheus.Gatherer, creds http.Handler) *http.ServeMux {
	cfg := st.Cfg
	uploads := func(h http.Handler) http.Handler {
		return middleware.ValidateTokenMiddleware(cfg, auth.ScopeUpload, h)
	}
	assets := func(h http.Handler) http.Handler {
		return middleware.ValidateTokenMiddleware(cfg, auth.ScopeAssets, h)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", assets(get.DispatchGet(st)))

	mux.Handle("POST /uploads", uploads(upload.HandleCreate(st)))
	mux.Handle("GET /uploads/{id}", uploads(upload.HandleGet(st)))
	mux.Handle("PUT /uploads/{id}/file", uploads(upload.HandleReplaceFile(st)))
	mux.Handle("POST /uploads/{id}/cancel", uploads(upload.HandleCancel(st)))
	mux.Handle("POST /uploads/{id}/retry", uploads(upload.HandleRetry(st)))
	mux.Handle("POST /uploads/{id}/reset", uploads(upload.HandleReset(st)))
	mux.Handle("DELETE /uploads/{id}", uploads(upload.HandleDelete(st)))

	mux.Handle("GET /assets/{id}", assets(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		get.HandleSource(st, w, r)
	})))
	mux.Handle("DELETE /assets/{id}", assets(asset.HandleDelete(st)))

	if creds != nil {
		mux.Handle("/credentials", middleware.CORS(cfg.Credentials.AllowedOrigin, creds))
	}

	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

func credentialsHandler(ctx context.Context, st *state.MediadropState) (http.Handler, error) {
	cfg := &st.Cfg.Credentials
	if !cfg.Enabled {
		return nil, nil
	}

	presigner, err := credentials.NewPresigner(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize credential endpoint: %w", err)
	}

	return credentials.New(cfg, presigner, st.Metrics), nil
}

// StartServer serves the API until SIGINT or SIGTERM and then shuts down gracefully.
func StartServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	st, err := newState(cfg, reg)
	if err != nil {
		return err
	}
	defer cleanup(st)

	creds, err := credentialsHandler(ctx, st)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.BindAddress())
	if err != nil {
		return fmt.Errorf("failed to listen on %v: %w", cfg.BindAddress(), err)
	}
	if cfg.Server.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.Server.MaxConnections)
	}

	srv := &http.Server{
		Handler:           routes(st, reg, creds),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("serving http requests on %q", listener.Addr().String())
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Printf("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// cleanup closes every session and releases content store resources.
func cleanup(st *state.MediadropState) {
	if st.Sessions != nil {
		st.Sessions.Close()
	}

	switch r := st.Registrar.(type) {
	case interface{ Close() error }:
		if err := r.Close(); err != nil {
			log.Printf("failed to close content store: %v", err)
		}
	case interface{ Cleanup() error }:
		if err := r.Cleanup(); err != nil {
			log.Printf("failed to clean up content store: %v", err)
		}
	}
}
