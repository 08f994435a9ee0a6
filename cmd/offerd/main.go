package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"rentvoice/agent/internal/logging"
	"rentvoice/agent/internal/types"
)

var (
	addr     = flag.String("addr", "", "listen address (default :8090, or OFFERD_ADDR)")
	logLevel = flag.String("log-level", "info", "log level")
)

func main() {
	flag.Parse()
	_ = godotenv.Load()

	listen := *addr
	if listen == "" {
		listen = os.Getenv("OFFERD_ADDR")
		if listen == "" {
			listen = ":8090"
		}
	}

	logger, err := logging.New(*logLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	inv := DefaultInventory()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/booking/offer", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var booking types.BookingRequest
		if err := json.NewDecoder(r.Body).Decode(&booking); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		resp := inv.SelectOffers(booking)
		logger.Info("offer served",
			zap.String("client", booking.Client.Name),
			zap.String("upsell", resp.UpsellCar.Name),
			zap.String("normal", resp.NormalCar.Name))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		logger.Info("shutdown signal received; stopping offerd")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	logger.Info("offerd starting", zap.String("addr", listen))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", zap.Error(err))
		os.Exit(1)
	}
}
