package reporting

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"buttonstats/internal/db"
)

// Queries runs the fixed set of read-only aggregation queries behind the
// reporting API. It holds no state of its own; every method is one
// independent round-trip (plus per-game stats fan-out for ActiveGames).
type Queries struct {
	DB *db.DB
}

func NewQueries(database *db.DB) *Queries {
	return &Queries{DB: database}
}

// ClampLimit bounds a requested row limit to [1,100]. It runs before any
// query so an unbounded limit never reaches the store.
func ClampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// ActiveGames returns every session without an end_time, newest first. A
// session whose guild has no guild_names row is still listed, with a nil
// GuildName.
func (q *Queries) ActiveGames() ([]ActiveGame, error) {
	rows, err := q.DB.Query(`
		SELECT
			gs.id,
			gs.guild_id,
			gs.timer_duration,
			gs.cooldown_duration,
			gs.start_time,
			gn.guild_name,
			(SELECT click_time
			 FROM button_clicks
			 WHERE game_id = gs.id
			 ORDER BY click_time DESC
			 LIMIT 1) AS last_click
		FROM game_sessions gs
		LEFT JOIN guild_names gn ON gs.guild_id = gn.guild_id
		WHERE gs.end_time IS NULL
		ORDER BY gs.id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("getting active games: %w", err)
	}
	defer rows.Close()

	games := []ActiveGame{}
	for rows.Next() {
		var g ActiveGame
		var guildName sql.NullString
		var lastClick sql.NullTime
		if err := rows.Scan(&g.ID, &g.GuildID, &g.TimerDuration, &g.CooldownDuration,
			&g.StartTime, &guildName, &lastClick); err != nil {
			return nil, err
		}
		if guildName.Valid {
			g.GuildName = &guildName.String
		}
		if lastClick.Valid {
			g.LastClick = &lastClick.Time
		}
		games = append(games, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("getting active games: %w", err)
	}

	for i := range games {
		stats, err := q.GameStats(games[i].ID)
		if err != nil {
			return nil, err
		}
		games[i].Stats = stats
	}

	return games, nil
}

// GameStats computes the derived stats block for one game. A game with zero
// clicks yields nil TimeToBeat/ButtonAliveTime, zero counts, and the
// "No record yet" / "No claims yet" sentinels.
func (q *Queries) GameStats(gameID int64) (*GameStats, error) {
	if gameID <= 0 {
		return nil, errGameIDRequired()
	}

	stats := &GameStats{}

	var timeToBeat, aliveTime sql.NullInt64
	err := q.DB.QueryRow(`
		SELECT
			MIN(timer_value) AS time_to_beat,
			COUNT(DISTINCT user_id) AS total_players,
			COUNT(*) AS total_clicks,
			EXTRACT(EPOCH FROM (MAX(click_time) - MIN(click_time)))::int AS button_alive_time
		FROM button_clicks
		WHERE game_id = $1
	`, gameID).Scan(&timeToBeat, &stats.TotalPlayers, &stats.TotalClicks, &aliveTime)
	if err != nil {
		return nil, fmt.Errorf("getting game stats: %w", err)
	}
	if timeToBeat.Valid {
		v := int(timeToBeat.Int64)
		stats.TimeToBeat = &v
	}
	if aliveTime.Valid {
		v := int(aliveTime.Int64)
		stats.ButtonAliveTime = &v
	}

	// Record holder: lowest timer_value wins, earliest click breaks ties.
	err = q.DB.QueryRow(`
		SELECT u.user_name
		FROM button_clicks bc
		JOIN users u ON bc.user_id = u.user_id
		WHERE bc.game_id = $1
		ORDER BY bc.timer_value ASC, bc.click_time ASC
		LIMIT 1
	`, gameID).Scan(&stats.RecordHolder)
	if errors.Is(err, sql.ErrNoRows) {
		stats.RecordHolder = NoRecordYet
	} else if err != nil {
		return nil, fmt.Errorf("getting record holder: %w", err)
	}

	var claimed int
	err = q.DB.QueryRow(`
		SELECT u.user_name, SUM(gs.timer_duration - bc.timer_value) AS time_claimed
		FROM button_clicks bc
		JOIN game_sessions gs ON bc.game_id = gs.id
		JOIN users u ON bc.user_id = u.user_id
		WHERE bc.game_id = $1
		GROUP BY bc.user_id, u.user_name
		ORDER BY time_claimed DESC
		LIMIT 1
	`, gameID).Scan(&stats.TopTimeClaimer, &claimed)
	if errors.Is(err, sql.ErrNoRows) {
		stats.TopTimeClaimer = NoClaimsYet
		stats.TopClaimedTime = 0
	} else if err != nil {
		return nil, fmt.Errorf("getting top time claimer: %w", err)
	} else {
		stats.TopClaimedTime = claimed
	}

	return stats, nil
}

// GameLeaderboard ranks a game's clickers by total click count, at most 10
// rows. Ordering among users with equal counts is whatever the store
// returns.
func (q *Queries) GameLeaderboard(gameID int64) ([]LeaderboardEntry, error) {
	if gameID <= 0 {
		return nil, errGameIDRequired()
	}

	rows, err := q.DB.Query(`
		SELECT
			u.user_name,
			COUNT(*) AS total_clicks,
			MIN(bc.timer_value) AS lowest_time,
			MAX(bc.click_time) AS last_click,
			SUM(gs.timer_duration - bc.timer_value) AS time_saved
		FROM button_clicks bc
		JOIN users u ON bc.user_id = u.user_id
		JOIN game_sessions gs ON bc.game_id = gs.id
		WHERE bc.game_id = $1
		GROUP BY u.user_id, u.user_name
		ORDER BY total_clicks DESC
		LIMIT 10
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("getting leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []LeaderboardEntry{}
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.UserName, &e.TotalClicks, &e.LowestTime, &e.LastClick, &e.TimeSaved); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("getting leaderboard: %w", err)
	}
	return entries, nil
}

// RecentClicks returns the newest clicks across all games, joined with user,
// session, and guild info.
func (q *Queries) RecentClicks(limit int) ([]Click, error) {
	return q.clicks("bc.click_time DESC", limit)
}

// LowestClicks returns the closest calls across all games, smallest
// remaining time first.
func (q *Queries) LowestClicks(limit int) ([]Click, error) {
	return q.clicks("bc.timer_value ASC", limit)
}

func (q *Queries) clicks(order string, limit int) ([]Click, error) {
	limit = ClampLimit(limit)

	// order is one of two fixed strings chosen above, never user input.
	rows, err := q.DB.Query(`
		SELECT
			bc.timer_value,
			bc.click_time,
			u.user_name,
			gs.guild_id,
			gs.id AS game_id,
			gs.timer_duration,
			gn.guild_name
		FROM button_clicks bc
		JOIN users u ON bc.user_id = u.user_id
		JOIN game_sessions gs ON bc.game_id = gs.id
		LEFT JOIN guild_names gn ON gs.guild_id = gn.guild_id
		ORDER BY `+order+`
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("getting clicks: %w", err)
	}
	defer rows.Close()

	return scanClicks(rows)
}

// ClicksSince returns clicks strictly newer than since, oldest first, capped
// at limit. The live feed poller uses it to pick up only what it has not
// broadcast yet.
func (q *Queries) ClicksSince(since time.Time, limit int) ([]Click, error) {
	limit = ClampLimit(limit)

	rows, err := q.DB.Query(`
		SELECT
			bc.timer_value,
			bc.click_time,
			u.user_name,
			gs.guild_id,
			gs.id AS game_id,
			gs.timer_duration,
			gn.guild_name
		FROM button_clicks bc
		JOIN users u ON bc.user_id = u.user_id
		JOIN game_sessions gs ON bc.game_id = gs.id
		LEFT JOIN guild_names gn ON gs.guild_id = gn.guild_id
		WHERE bc.click_time > $1
		ORDER BY bc.click_time ASC
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("getting clicks since %s: %w", since.Format(time.RFC3339), err)
	}
	defer rows.Close()

	return scanClicks(rows)
}

func scanClicks(rows *sql.Rows) ([]Click, error) {
	clicks := []Click{}
	for rows.Next() {
		var c Click
		var guildName sql.NullString
		if err := rows.Scan(&c.TimerValue, &c.ClickTime, &c.UserName, &c.GuildID,
			&c.GameID, &c.TimerDuration, &guildName); err != nil {
			return nil, err
		}
		if guildName.Valid {
			c.GuildName = &guildName.String
		}
		clicks = append(clicks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scanning clicks: %w", err)
	}
	return clicks, nil
}

// ActivityStats buckets a game's clicks by hour of day. Hours without clicks
// are absent rather than zero.
func (q *Queries) ActivityStats(gameID int64) ([]ActivityBucket, error) {
	if gameID <= 0 {
		return nil, errGameIDRequired()
	}

	rows, err := q.DB.Query(`
		SELECT
			EXTRACT(HOUR FROM click_time)::int AS hour,
			COUNT(*) AS click_count
		FROM button_clicks
		WHERE game_id = $1
		GROUP BY hour
		ORDER BY hour
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("getting activity stats: %w", err)
	}
	defer rows.Close()

	buckets := []ActivityBucket{}
	for rows.Next() {
		var b ActivityBucket
		if err := rows.Scan(&b.Hour, &b.ClickCount); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("getting activity stats: %w", err)
	}
	return buckets, nil
}

// RecentColorPattern returns the last 10 clicks' timer readings for a game,
// newest first, for the website's button color history.
func (q *Queries) RecentColorPattern(gameID int64) ([]ColorSample, error) {
	if gameID <= 0 {
		return nil, errGameIDRequired()
	}

	rows, err := q.DB.Query(`
		SELECT bc.timer_value, gs.timer_duration
		FROM button_clicks bc
		JOIN game_sessions gs ON bc.game_id = gs.id
		WHERE bc.game_id = $1
		ORDER BY bc.click_time DESC
		LIMIT 10
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("getting color pattern: %w", err)
	}
	defer rows.Close()

	samples := []ColorSample{}
	for rows.Next() {
		var s ColorSample
		if err := rows.Scan(&s.TimerValue, &s.TimerDuration); err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("getting color pattern: %w", err)
	}
	return samples, nil
}
