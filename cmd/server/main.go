// Command server exposes the resume ingestion engine over HTTP: upload,
// indexing, candidate search, and health.
//
// Exit codes: 0 clean shutdown, 1 configuration error, 2 model server
// unreachable at startup, 3 engine failure.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talentops/resumeflow"
)

const (
	exitConfig      = 1
	exitModelServer = 2
	exitEngine      = 3
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON)")
	addr := flag.String("addr", ":8080", "Listen address")
	flag.Parse()

	// Structured JSON logging.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	cfg := resumeflow.DefaultConfig()
	if *configPath != "" {
		f, err := os.Open(*configPath)
		if err != nil {
			slog.Error("opening config", "error", err)
			os.Exit(exitConfig)
		}
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			f.Close()
			slog.Error("parsing config", "error", err)
			os.Exit(exitConfig)
		}
		f.Close()
	}

	// Override from environment variables.
	if v := os.Getenv("RESUMEFLOW_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("RESUMEFLOW_MODEL_SERVER_URL"); v != "" {
		cfg.ModelServerURL = v
	}
	if v := os.Getenv("RESUMEFLOW_MODEL"); v != "" {
		cfg.PreferredModel = v
	}
	if v := os.Getenv("RESUMEFLOW_EMBED_MODEL"); v != "" {
		cfg.EmbedModel = v
	}
	if v := os.Getenv("RESUMEFLOW_VECTOR_BACKEND"); v != "" {
		cfg.VectorBackend = v
	}
	if v := os.Getenv("RESUMEFLOW_VECTOR_URL"); v != "" {
		cfg.RemoteVectorURL = v
	}
	if v := os.Getenv("RESUMEFLOW_VECTOR_KEY"); v != "" {
		cfg.RemoteVectorKey = v
	}

	apiKey := os.Getenv("RESUMEFLOW_API_KEY")
	corsOrigins := os.Getenv("RESUMEFLOW_CORS_ORIGINS")

	engine, err := resumeflow.New(cfg)
	if err != nil {
		slog.Error("creating engine", "error", err)
		os.Exit(exitEngine)
	}
	defer engine.Close()

	// Startup probe: the pipeline is useless without the model server, so
	// fail fast with a distinct exit code the process supervisor can act on.
	probeCtx, probeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	h, err := engine.Health(probeCtx)
	probeCancel()
	if err != nil {
		slog.Error("health probe failed", "error", err)
		os.Exit(exitEngine)
	}
	if !h.ITPromptOK || !h.NonITPromptOK {
		slog.Error("fallback prompt rows missing", "it", h.ITPromptOK, "non_it", h.NonITPromptOK)
		os.Exit(exitEngine)
	}
	if err := probeModelServer(cfg.ModelServerURL); err != nil {
		slog.Error("model server unreachable", "url", cfg.ModelServerURL, "error", err)
		os.Exit(exitModelServer)
	}

	hd := newHandler(engine)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /upload-resume", hd.handleUploadResume)
	mux.HandleFunc("POST /index-pinecone", hd.handleIndex)
	mux.HandleFunc("POST /reindex-resumes", hd.handleReindex)
	mux.HandleFunc("POST /ai-search", hd.handleSearch)
	mux.HandleFunc("GET /resumes/{id}", hd.handleGetResume)
	mux.HandleFunc("GET /health", hd.handleHealth)

	// Recovery outermost, then cors, auth, request logging.
	handler := chain(mux,
		withRecovery(),
		withCORS(corsOrigins),
		withAuth(apiKey),
		withRequestLog(),
	)

	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 0, // uploads hold the connection for the whole pipeline
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT. In-flight uploads see their
	// request context cancelled and mark their rows failed:shutdown.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(exitEngine)
		}
	}()

	<-done
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("server stopped")
}

// probeModelServer checks that the model server answers its tags route.
func probeModelServer(baseURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(baseURL + "/api/tags")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
