package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"buttonstats/internal/feed"
	"buttonstats/internal/metrics"
	"buttonstats/internal/reporting"
)

// handleAPI serves GET /api?action=...&gameId=...&limit=... Every failure,
// validation included, becomes a failure envelope with status 500 to stay
// compatible with the website's existing client code.
func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	setAPIHeaders(w)

	action := r.URL.Query().Get("action")
	data, err := s.dispatch(r, action)

	outcome := "ok"
	status := http.StatusOK
	var errMsg string
	if err != nil {
		outcome = "error"
		status = http.StatusInternalServerError
		errMsg = err.Error()
		data = nil
		log.Printf("[API] action=%q: %v\n", action, err)
	}

	metrics.RequestsTotal.WithLabelValues(action, outcome).Inc()
	metrics.RequestDurationSeconds.Observe(time.Since(start).Seconds())

	writeEnvelope(w, status, data, errMsg)
}

func (s *Server) dispatch(r *http.Request, action string) (json.RawMessage, error) {
	ctx := r.Context()

	switch action {
	case "getActiveGames":
		return s.fetch(ctx, "api:active_games", func() (any, error) {
			return s.Reporter.ActiveGames()
		})
	case "getGameLeaderboard":
		id := parseGameID(r)
		return s.fetch(ctx, fmt.Sprintf("api:leaderboard:%d", id), func() (any, error) {
			return s.Reporter.GameLeaderboard(id)
		})
	case "getGameStats":
		id := parseGameID(r)
		return s.fetch(ctx, fmt.Sprintf("api:game_stats:%d", id), func() (any, error) {
			return s.Reporter.GameStats(id)
		})
	case "getRecentClicks":
		limit := parseLimit(r)
		return s.fetch(ctx, fmt.Sprintf("api:recent_clicks:%d", limit), func() (any, error) {
			return s.Reporter.RecentClicks(limit)
		})
	case "getLowestClicks":
		limit := parseLimit(r)
		return s.fetch(ctx, fmt.Sprintf("api:lowest_clicks:%d", limit), func() (any, error) {
			return s.Reporter.LowestClicks(limit)
		})
	case "getActivityStats":
		id := parseGameID(r)
		return s.fetch(ctx, fmt.Sprintf("api:activity:%d", id), func() (any, error) {
			return s.Reporter.ActivityStats(id)
		})
	case "getRecentColorPattern":
		id := parseGameID(r)
		return s.fetch(ctx, fmt.Sprintf("api:color_pattern:%d", id), func() (any, error) {
			return s.Reporter.RecentColorPattern(id)
		})
	default:
		return nil, errInvalidAction
	}
}

// fetch serves from the cache when possible and otherwise loads, marshals,
// and caches the result. Failed loads are never cached.
func (s *Server) fetch(ctx context.Context, key string, load func() (any, error)) (json.RawMessage, error) {
	if s.Cache != nil && s.Cache.Enabled() {
		if b, ok := s.Cache.Get(ctx, key); ok {
			metrics.CacheHitsTotal.Inc()
			return b, nil
		}
		metrics.CacheMissesTotal.Inc()
	}

	v, err := load()
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", key, err)
	}
	s.cacheSet(ctx, key, b)
	return b, nil
}

// parseGameID returns 0 for an absent or non-integer gameId; the reporting
// layer rejects anything not strictly positive.
func parseGameID(r *http.Request) int64 {
	id, err := strconv.ParseInt(r.URL.Query().Get("gameId"), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// parseLimit clamps before any query runs: absent means 25, non-numeric
// parses as 0 and clamps up to 1, everything lands in [1,100].
func parseLimit(r *http.Request) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return 25
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		n = 0
	}
	return reporting.ClampLimit(n)
}

type healthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	hs := healthStatus{Status: "ok", Database: "healthy", Cache: "healthy"}

	if s.DB == nil {
		hs.Database = "unconfigured"
		hs.Status = "degraded"
	} else if err := s.DB.Ping(); err != nil {
		hs.Database = "unhealthy"
		hs.Status = "degraded"
	}

	if err := s.cachePing(r.Context()); err != nil {
		hs.Cache = "disabled"
	}

	w.Header().Set("Content-Type", "application/json")
	if hs.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(hs); err != nil {
		log.Printf("[Health] writing response: %v\n", err)
	}
}

// handleLive upgrades to WebSocket and streams new clicks until the client
// disconnects.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if s.Feed == nil {
		http.Error(w, "Live feed unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("[Feed] accept: %v\n", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	client := &feed.Client{
		ID:   uuid.New().String(),
		Conn: conn,
		Send: make(chan []byte, 32),
	}
	s.Feed.Register(client)
	metrics.FeedClients.Inc()
	defer func() {
		s.Feed.Unregister(client.ID)
		metrics.FeedClients.Dec()
	}()

	// The feed is one-way; CloseRead keeps control frames flowing and
	// cancels the context when the peer goes away.
	ctx := conn.CloseRead(r.Context())
	client.WritePump(ctx)
}
