package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"clonesome-server/modules/chat"
	"clonesome-server/modules/common/config"
	"clonesome-server/modules/common/database"
	"clonesome-server/modules/common/logger"
	redisutil "clonesome-server/modules/common/redis"
	generateimage "clonesome-server/modules/generate-image"
	"clonesome-server/modules/worker"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider := generateimage.NewReplicateClient(cfg.Replicate, log)
	service := generateimage.NewService(provider, generateimage.PollConfigFrom(cfg.Generation), log)

	r := mux.NewRouter()
	r.Use(enableCORS)
	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	generateimage.NewHandler(service, log).RegisterRoutes(r)
	chat.NewHandler(log).RegisterRoutes(r)

	var wg sync.WaitGroup
	rdb, err := redisutil.Connect(ctx, cfg.Redis, log)
	if err != nil {
		// 큐 없이도 동기 생성 API 는 동작한다
		log.Warn("Redis unavailable, job queue disabled", zap.Error(err))
	} else {
		defer rdb.Close()
		store := worker.NewStore(rdb)
		worker.NewJobHandler(store, log).RegisterRoutes(r)
		worker.NewProgressHandler(store, log).RegisterRoutes(r)

		var recorder worker.HistoryRecorder
		if cfg.SupabaseEnabled() {
			db, err := database.NewClient(cfg.Supabase, log)
			if err != nil {
				log.Warn("Supabase unavailable, generation history disabled", zap.Error(err))
			} else {
				recorder = db
			}
		}

		w := worker.NewWorker(store, service, recorder, cfg.Worker, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.Run(ctx)
		}()
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("CloneSome server starting",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.AppEnv),
			zap.Bool("queue", rdb != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			stop()
			wg.Wait()
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", zap.Error(err))
	}
	wg.Wait()
	return nil
}

// CORS 헤더 추가
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// 헬스 체크 엔드포인트
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "clonesome-image-generation",
	})
}
