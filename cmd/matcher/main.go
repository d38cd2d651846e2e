package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whisper/voicematch/internal/matchcore"
	"github.com/whisper/voicematch/internal/matching"
	"github.com/whisper/voicematch/internal/presence"
)

func main() {
	log.Println("starting voicematch cleanup service...")

	redisAddr := "localhost:6379"
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		redisAddr = v
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	cancel()

	presenceCfg := presence.DefaultConfig()
	store := presence.NewStore(rdb, presenceCfg)

	ctx, stop := context.WithCancel(context.Background())
	go matching.StartCleanup(ctx, store)

	adminAddr := ":8081"
	if v := os.Getenv("ADMIN_ADDR"); v != "" {
		adminAddr = v
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/queue/status", func(w http.ResponseWriter, r *http.Request) {
		status, err := matchcore.GetQueueStatus(r.Context(), store)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	})
	mux.HandleFunc("/api/users/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			http.Error(w, "invalid user id", http.StatusBadRequest)
			return
		}
		status, err := matchcore.GetUserStatus(r.Context(), store, userID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Status string `json:"status"`
		}{Status: "ok"})
	})

	adminServer := &http.Server{Addr: adminAddr, Handler: mux}
	go func() {
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("admin server error: %v", err)
		}
	}()

	log.Printf("voicematch cleanup service running")
	log.Printf("  redis_addr: %s", redisAddr)
	log.Printf("  admin_addr: %s", adminAddr)
	log.Printf("  online_ttl: %s", presenceCfg.OnlineTTL)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	adminServer.Shutdown(shutdownCtx)
	rdb.Close()
}
