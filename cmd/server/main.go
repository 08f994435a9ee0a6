package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"rentvoice/agent/internal/api"
	"rentvoice/agent/internal/clientws"
	"rentvoice/agent/internal/config"
	"rentvoice/agent/internal/escalate"
	"rentvoice/agent/internal/health"
	"rentvoice/agent/internal/intent"
	"rentvoice/agent/internal/logging"
	"rentvoice/agent/internal/offers"
	"rentvoice/agent/internal/session"
	"rentvoice/agent/internal/transcribe"
)

func main() {
	// Load .env file if present (ignored if missing)
	_ = godotenv.Load()

	cfg := config.Load()

	logger, err := logging.New(cfg.Server.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	st := session.New()
	source := offers.NewHTTPSource(cfg.Offers.BaseURL, time.Duration(cfg.Offers.TimeoutSec)*time.Second)
	assembler := offers.NewAssembler(source, logger)
	classifier := intent.NewLLMClassifier(cfg.LLM.BaseURL, cfg.LLM.APIKey, cfg.LLM.Model, logger)
	stt := transcribe.NewWhisperClient(cfg.Transcribe.BaseURL, cfg.Transcribe.APIKey, cfg.Transcribe.Model, logger)
	dialer := escalate.NewTwilioDialer(cfg.Dialer.BaseURL, cfg.Dialer.AccountSID, cfg.Dialer.AuthToken, cfg.Dialer.FromNumber, cfg.Dialer.ToNumber)

	reg := clientws.NewRegistry()
	speaker := clientws.NewNotifier(reg)
	orch := session.NewOrchestrator(cfg, st, assembler, classifier, dialer, speaker, logger)

	h := api.NewHandlers(cfg, st, orch, stt, logger)
	mux := http.NewServeMux()
	mux.Handle("/", api.NewRouter(h))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()
		status := health.CheckAll(ctx, cfg)
		if !status.OK {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		w.Write([]byte(status.String()))
	})

	// WS client route
	wss := clientws.NewServer(cfg, st, reg, logger)
	wss.OnMessage = orch.HandleClientEvent
	mux.HandleFunc("/ws/client", wss.HandleClientWS)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           logMiddleware(logger, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		logger.Info("shutdown signal received; stopping server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	logger.Info("server starting", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}

func logMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(start)))
	})
}
