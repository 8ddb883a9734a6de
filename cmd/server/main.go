package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/3tharva/split-the-tab-ai/internal/auth"
	"github.com/3tharva/split-the-tab-ai/internal/config"
	"github.com/3tharva/split-the-tab-ai/internal/metrics"
	"github.com/3tharva/split-the-tab-ai/internal/middleware"
	"github.com/3tharva/split-the-tab-ai/internal/receipt"
	"github.com/3tharva/split-the-tab-ai/internal/service"
	"github.com/3tharva/split-the-tab-ai/internal/storage"
	"github.com/3tharva/split-the-tab-ai/internal/storage/sqlite"
	"github.com/3tharva/split-the-tab-ai/pkg/billrpc"
	"github.com/3tharva/split-the-tab-ai/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.LogLevel)
	if cfg.EphemeralSecret {
		slog.Warn("SESSION_SECRET not set, using a random secret; tokens will not survive a restart")
	}
	if cfg.TrustedProxy {
		slog.Info("Taking client addresses from X-Forwarded-For and X-Real-IP")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(cfg.MetricsNamespace, nil)

	store, err := sqlite.New(cfg.SessionDSN)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "dsn", cfg.SessionDSN, "session_ttl", cfg.SessionTTL)

	go storage.RunJanitor(ctx, store, cfg.SessionTTL, storage.DefaultJanitorInterval, m)

	tokens := auth.NewSessionTokens(cfg.SessionSecret, cfg.TokenTTL)
	ingestor := receipt.NewIngestor(
		receipt.Preprocessor{MaxBytes: cfg.MaxUploadBytes},
		receipt.SimulatedExtractor{Delay: cfg.IngestDelay},
		cfg.IngestTimeout,
		m,
	)
	svc := service.NewBillService(store, tokens, ingestor, m)
	svc.MaxUploadBytes = cfg.MaxUploadBytes

	uploadLimit, err := middleware.RateLimit(cfg.UploadRate)
	if err != nil {
		slog.Error("Invalid upload rate", "rate", cfg.UploadRate, "error", err)
		os.Exit(1)
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.ClientIP(cfg.TrustedProxy))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics(m))
	r.Use(middleware.RequestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "Connect-Protocol-Version", "Connect-Timeout-Ms"},
		ExposedHeaders:   []string{"Connect-Protocol-Version", "Connect-Timeout-Ms", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	rpcPath, rpcHandler := billrpc.NewBillServiceHandler(svc,
		connect.WithReadMaxBytes(svc.ReadMaxBytes()),
		connect.WithInterceptors(
			middleware.LoggingInterceptor(),
			middleware.RequireSession(tokens, service.PublicProcedures()...),
		),
	)
	r.Handle(rpcPath+"*", rpcHandler)

	r.Mount("/api", svc.HTTPRoutes(uploadLimit))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	if cfg.StaticPath != "" {
		staticDir, err := filepath.Abs(cfg.StaticPath)
		if err != nil {
			slog.Error("Failed to resolve static path", "error", err)
			os.Exit(1)
		}
		slog.Info("Serving static files", "path", staticDir)
		r.NotFound(staticHandler(staticDir))
	}

	// h2c serves HTTP/2 without TLS, which Connect's gRPC protocols need.
	server := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           h2c.NewHandler(r, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}()

	slog.Info("Server starting", "address", server.Addr, "rpc_path", rpcPath)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}

// staticHandler serves the single-page frontend, falling back to index.html
// for unknown paths.
func staticHandler(dir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/splittab.v1.") {
			http.NotFound(w, r)
			return
		}

		urlPath := r.URL.Path
		if urlPath == "/" {
			urlPath = "/index.html"
		}

		filePath := filepath.Join(dir, filepath.Clean(urlPath))
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		http.ServeFile(w, r, filePath)
	}
}
