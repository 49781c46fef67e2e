package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms/googleai"

	"github.com/rayhanfay/sistem-rangkuman-data/config"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/analysis"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/auth"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/llm"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/mcp"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/runtime"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/sheets"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/storage"
	"github.com/rayhanfay/sistem-rangkuman-data/internal/tools"
	"github.com/rayhanfay/sistem-rangkuman-data/pkg/version"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var (
		addr            string
		dbPath          string
		maxConcurrent   int
		shutdownTimeout time.Duration
	)
	flag.StringVar(&addr, "addr", envOr("ASSETMCP_ADDR", ":8000"), "HTTP listen address")
	flag.StringVar(&dbPath, "db", envOr("ASSETMCP_DB_PATH", "assets.db"), "SQLite database path")
	flag.IntVar(&maxConcurrent, "max-concurrent", config.DefaultMaxConcurrentRequests, "Max concurrent tool calls per server")
	flag.DurationVar(&shutdownTimeout, "shutdown-timeout", config.DefaultShutdownTimeout, "Graceful shutdown timeout")
	flag.Parse()

	logger := zlog.With().Str("service", "asset-mcp-server").Logger()
	ctx := logger.WithContext(context.Background())

	jwtSecret := os.Getenv("ASSETMCP_JWT_SECRET")
	if jwtSecret == "" {
		logger.Error().Msg("missing token secret; set ASSETMCP_JWT_SECRET")
		os.Exit(1)
	}

	db, err := storage.Open(dbPath)
	if err != nil {
		logger.Error().Err(err).Str("path", dbPath).Msg("opening database failed")
		os.Exit(1)
	}
	defer db.Close()

	source := sheets.NewWorkbookSource(map[string]string{
		sheets.SourceMaster: envOr("ASSETMCP_MASTER_WORKBOOK", "data/master.xlsx"),
		sheets.SourceSiklus: envOr("ASSETMCP_CYCLE_WORKBOOK", "data/siklus.xlsx"),
	})

	completer := buildCompleter(ctx, &logger)

	cache := analysis.NewCache()
	runner := &analysis.Runner{Source: source, Completer: completer, Cache: cache}
	supervisor := analysis.NewSupervisor(runner)

	service := &tools.Service{
		Source:   source,
		History:  db.History,
		Files:    db.Files,
		Users:    db.Users,
		Auth:     auth.NewJWTVerifier([]byte(jwtSecret)),
		Cache:    cache,
		Analyses: supervisor,
	}

	limits := runtime.NewLimits(maxConcurrent)
	dispatcher := &mcp.Dispatcher{
		Tools: service,
		Files: db.Files,
		Ctrl:  runtime.NewController(limits),
		Info:  mcp.ServerInfo{Name: "PHR Asset Management Server", Version: version.Version()},
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		// The LLM client connects from a trusted desktop app, not a browser.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}
		defer conn.Close()
		mcp.NewSession(conn, dispatcher).Run(ctx)
	})

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info().
			Str("addr", addr).
			Str("version", version.Version()).
			Int("max_concurrent_requests", limits.MaxConcurrentRequests).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("shutdown incomplete")
	}
}

// buildCompleter wires the completion backend when an API key is
// configured, and a stub that fails fast otherwise so non-summary tools
// keep working.
func buildCompleter(ctx context.Context, logger *zerolog.Logger) llm.Completer {
	key := os.Getenv("ASSETMCP_GOOGLE_API_KEY")
	if key == "" {
		logger.Warn().Msg("no completion API key set; executive summaries disabled")
		return unavailableCompleter{}
	}
	model, err := googleai.New(ctx,
		googleai.WithAPIKey(key),
		googleai.WithDefaultModel(envOr("ASSETMCP_MODEL", "gemini-1.5-flash")),
	)
	if err != nil {
		logger.Warn().Err(err).Msg("completion backend init failed; executive summaries disabled")
		return unavailableCompleter{}
	}
	return llm.NewClient(model)
}

type unavailableCompleter struct{}

func (unavailableCompleter) Complete(context.Context, string) (string, error) {
	return "", errors.New("layanan ringkasan tidak dikonfigurasi")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
