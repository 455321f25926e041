package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"buttonstats/internal/cache"
	"buttonstats/internal/config"
	"buttonstats/internal/db"
	"buttonstats/internal/feed"
	"buttonstats/internal/metrics"
	"buttonstats/internal/reporting"
)

func Run() error {
	cfg := config.Load()

	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	// Optional cache: a bad Redis setup downgrades to uncached operation.
	resultCache, err := cache.New(cfg.RedisURL, time.Duration(cfg.CacheTTL)*time.Second)
	if err != nil {
		log.Printf("[Cache] %v (running without cache)\n", err)
		resultCache, _ = cache.New("", 0)
	}

	metrics.MustRegister(prometheus.DefaultRegisterer)

	queries := reporting.NewQueries(database)

	hub := feed.NewHub()
	poller := &feed.Poller{
		Source:   queries,
		Hub:      hub,
		Interval: time.Duration(cfg.FeedPollInterval) * time.Second,
	}
	go poller.Run(context.Background())

	srv := &Server{
		Reporter: queries,
		Cache:    resultCache,
		DB:       database,
		Feed:     hub,
	}

	addr := "0.0.0.0:" + cfg.Port
	fmt.Printf("Server listening on http://localhost:%s\n", cfg.Port)
	return http.ListenAndServe(addr, srv.Routes())
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api", s.handleAPI)
	mux.HandleFunc("/api/live", s.handleLive)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
