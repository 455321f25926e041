package reporting

import "time"

// GameStats is the derived per-game stats block. TimeToBeat and
// ButtonAliveTime are nil for a game without clicks; the sentinel strings
// below fill the holder fields in that case.
type GameStats struct {
	TimeToBeat      *int   `json:"time_to_beat"`
	TotalPlayers    int    `json:"total_players"`
	TotalClicks     int    `json:"total_clicks"`
	ButtonAliveTime *int   `json:"button_alive_time"`
	RecordHolder    string `json:"record_holder"`
	TopTimeClaimer  string `json:"top_time_claimer"`
	TopClaimedTime  int    `json:"top_claimed_time"`
}

const (
	NoRecordYet = "No record yet"
	NoClaimsYet = "No claims yet"
)

// ActiveGame is a session without an end_time, enriched with guild and
// stats info. GuildName is nil when no guild_names row exists; LastClick is
// nil when the button has not been clicked yet.
type ActiveGame struct {
	ID               int64      `json:"id"`
	GuildID          string     `json:"guild_id"`
	TimerDuration    int        `json:"timer_duration"`
	CooldownDuration int        `json:"cooldown_duration"`
	StartTime        time.Time  `json:"start_time"`
	GuildName        *string    `json:"guild_name"`
	LastClick        *time.Time `json:"last_click"`
	Stats            *GameStats `json:"stats"`
}

type LeaderboardEntry struct {
	UserName    string    `json:"user_name"`
	TotalClicks int       `json:"total_clicks"`
	LowestTime  int       `json:"lowest_time"`
	LastClick   time.Time `json:"last_click"`
	TimeSaved   int       `json:"time_saved"`
}

type Click struct {
	TimerValue    int       `json:"timer_value"`
	ClickTime     time.Time `json:"click_time"`
	UserName      string    `json:"user_name"`
	GuildID       string    `json:"guild_id"`
	GameID        int64     `json:"game_id"`
	TimerDuration int       `json:"timer_duration"`
	GuildName     *string   `json:"guild_name"`
}

// ActivityBucket counts clicks in one hour-of-day slot. Only hours with at
// least one click are reported.
type ActivityBucket struct {
	Hour       int `json:"hour"`
	ClickCount int `json:"click_count"`
}

// ColorSample carries the data the website needs to recolor the button
// history: how far the timer had run down relative to its full duration.
type ColorSample struct {
	TimerValue    int `json:"timer_value"`
	TimerDuration int `json:"timer_duration"`
}
