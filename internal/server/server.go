// Package server exposes the classifier over HTTP with gin.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crimson-sun/quip/internal/store"
)

// Options configures the HTTP surface.
type Options struct {
	Addr           string
	MetricsAddr    string // empty mounts /metrics on Addr
	MaxBatchRows   int
	MaxUploadBytes int64
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	DownloadTTL    time.Duration
	CORSOrigins    []string // empty disables CORS; "*" allows any origin
}

func (o Options) withDefaults() Options {
	if o.Addr == "" {
		o.Addr = ":8080"
	}
	if o.MaxBatchRows <= 0 {
		o.MaxBatchRows = 10000
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = 32 << 20
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 15 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 60 * time.Second
	}
	if o.DownloadTTL <= 0 {
		o.DownloadTTL = time.Hour
	}
	return o
}

// shutdownTimeout bounds graceful shutdown of each listener.
const shutdownTimeout = 10 * time.Second

// Server runs the API listener and, when configured, a metrics listener.
type Server struct {
	opts    Options
	logger  *zap.Logger
	router  *gin.Engine
	metrics http.Handler
}

// New wires the router.
func New(p Predictor, s store.Store, logger *zap.Logger, opts Options) *Server {
	opts = opts.withDefaults()
	return &Server{
		opts:    opts,
		logger:  logger,
		router:  NewRouter(NewHandler(p, s, logger, opts), logger),
		metrics: promhttp.Handler(),
	}
}

// NewRouter builds the gin engine with middleware and routes. /metrics is
// mounted here when the handler's options name no separate metrics address.
func NewRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	router.Use(RequestID())
	router.Use(Logger(logger))
	router.Use(Recovery(logger))
	if len(h.opts.CORSOrigins) > 0 {
		router.Use(cors.New(corsConfig(h.opts.CORSOrigins)))
	}

	router.GET("/healthz", h.Health)
	if h.opts.MetricsAddr == "" {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	v1 := router.Group("/v1")
	{
		v1.GET("/labels", h.Labels)
		v1.GET("/downloads/:id", h.Download)

		predict := v1.Group("/predict")
		{
			predict.POST("", h.Predict)
			predict.POST("/batch", h.PredictBatch)
			predict.POST("/table", h.PredictTable)
			predict.POST("/csv", h.PredictCSV)
		}
	}

	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	return cfg
}

// Handler returns the API router.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled or a listener fails, then shuts both
// listeners down.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	servers := []*http.Server{{
		Addr:         s.opts.Addr,
		Handler:      s.router,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}}
	if s.opts.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", s.metrics)
		servers = append(servers, &http.Server{
			Addr:              s.opts.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			s.logger.Info("listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}
