package server

import (
	"context"
	"errors"
	"time"

	"buttonstats/internal/db"
	"buttonstats/internal/feed"
	"buttonstats/internal/reporting"
)

// Reporter is the query surface the handlers dispatch to. reporting.Queries
// is the real implementation; tests substitute a fake.
type Reporter interface {
	ActiveGames() ([]reporting.ActiveGame, error)
	GameStats(gameID int64) (*reporting.GameStats, error)
	GameLeaderboard(gameID int64) ([]reporting.LeaderboardEntry, error)
	RecentClicks(limit int) ([]reporting.Click, error)
	LowestClicks(limit int) ([]reporting.Click, error)
	ActivityStats(gameID int64) ([]reporting.ActivityBucket, error)
	RecentColorPattern(gameID int64) ([]reporting.ColorSample, error)
}

// ResultCache caches marshaled action results. cache.Cache implements it.
type ResultCache interface {
	Enabled() bool
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, val []byte)
	Ping(ctx context.Context) error
}

type Server struct {
	Reporter Reporter
	Cache    ResultCache // nil or disabled when no Redis is configured
	DB       *db.DB      // for /health; nil in handler tests
	Feed     *feed.Hub   // nil disables /api/live
}

var errInvalidAction = errors.New("Invalid action")

func (s *Server) cacheSet(ctx context.Context, key string, val []byte) {
	if s.Cache == nil || !s.Cache.Enabled() {
		return
	}
	s.Cache.Set(ctx, key, val)
}

func (s *Server) cachePing(ctx context.Context) error {
	if s.Cache == nil {
		return errors.New("cache disabled")
	}
	return s.Cache.Ping(ctx)
}

const timestampLayout = "2006-01-02T15:04:05Z"

func nowTimestamp() string {
	return time.Now().UTC().Format(timestampLayout)
}
