package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/coder/websocket"

	"buttonstats/internal/feed"
	"buttonstats/internal/reporting"
)

type fakeReporter struct {
	activeGamesCalls int
	leaderboardIDs   []int64
	recentLimits     []int
	lowestLimits     []int
	activityIDs      []int64
	statsIDs         []int64
	colorIDs         []int64
}

func validated(id int64) error {
	if id <= 0 {
		return &reporting.ValidationError{Msg: "Game ID required"}
	}
	return nil
}

func (f *fakeReporter) ActiveGames() ([]reporting.ActiveGame, error) {
	f.activeGamesCalls++
	return []reporting.ActiveGame{{ID: 1, GuildID: "g1", TimerDuration: 100}}, nil
}

func (f *fakeReporter) GameStats(id int64) (*reporting.GameStats, error) {
	f.statsIDs = append(f.statsIDs, id)
	if err := validated(id); err != nil {
		return nil, err
	}
	return &reporting.GameStats{RecordHolder: reporting.NoRecordYet, TopTimeClaimer: reporting.NoClaimsYet}, nil
}

func (f *fakeReporter) GameLeaderboard(id int64) ([]reporting.LeaderboardEntry, error) {
	f.leaderboardIDs = append(f.leaderboardIDs, id)
	if err := validated(id); err != nil {
		return nil, err
	}
	return []reporting.LeaderboardEntry{{UserName: "Alice", TotalClicks: 2}}, nil
}

func (f *fakeReporter) RecentClicks(limit int) ([]reporting.Click, error) {
	f.recentLimits = append(f.recentLimits, limit)
	return []reporting.Click{}, nil
}

func (f *fakeReporter) LowestClicks(limit int) ([]reporting.Click, error) {
	f.lowestLimits = append(f.lowestLimits, limit)
	return []reporting.Click{}, nil
}

func (f *fakeReporter) ActivityStats(id int64) ([]reporting.ActivityBucket, error) {
	f.activityIDs = append(f.activityIDs, id)
	if err := validated(id); err != nil {
		return nil, err
	}
	return []reporting.ActivityBucket{{Hour: 3, ClickCount: 1}}, nil
}

func (f *fakeReporter) RecentColorPattern(id int64) ([]reporting.ColorSample, error) {
	f.colorIDs = append(f.colorIDs, id)
	if err := validated(id); err != nil {
		return nil, err
	}
	return []reporting.ColorSample{{TimerValue: 10, TimerDuration: 100}}, nil
}

type fakeCache struct {
	store map[string][]byte
	sets  int
}

func newFakeCache() *fakeCache { return &fakeCache{store: make(map[string][]byte)} }

func (f *fakeCache) Enabled() bool { return true }
func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, bool) {
	b, ok := f.store[key]
	return b, ok
}
func (f *fakeCache) Set(ctx context.Context, key string, val []byte) {
	f.sets++
	f.store[key] = val
}
func (f *fakeCache) Ping(ctx context.Context) error { return nil }

func newTestServer(t *testing.T) (*fakeReporter, *httptest.Server) {
	t.Helper()
	rep := &fakeReporter{}
	srv := &Server{Reporter: rep}
	ts := httptest.NewServer(srv.Routes())
	t.Cleanup(ts.Close)
	return rep, ts
}

func getEnvelope(t *testing.T, url string) (*http.Response, envelope) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	return resp, env
}

func TestGetActiveGames(t *testing.T) {
	rep, ts := newTestServer(t)

	resp, env := getEnvelope(t, ts.URL+"/api?action=getActiveGames")

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if !env.Success {
		t.Errorf("success = false, want true (error: %v)", env.Error)
	}
	if env.Error != nil {
		t.Errorf("error = %q, want null", *env.Error)
	}
	if rep.activeGamesCalls != 1 {
		t.Errorf("ActiveGames calls = %d, want 1", rep.activeGamesCalls)
	}

	var games []reporting.ActiveGame
	if err := json.Unmarshal(env.Data, &games); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if len(games) != 1 || games[0].ID != 1 {
		t.Errorf("data = %+v, want one game with id 1", games)
	}
}

func TestEnvelopeTimestampFormat(t *testing.T) {
	_, ts := newTestServer(t)
	pattern := regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z$`)

	for _, url := range []string{
		ts.URL + "/api?action=getActiveGames",
		ts.URL + "/api?action=bogus",
	} {
		_, env := getEnvelope(t, url)
		if !pattern.MatchString(env.Timestamp) {
			t.Errorf("timestamp %q does not match YYYY-MM-DDTHH:MM:SSZ", env.Timestamp)
		}
	}
}

func TestEnvelopeKeysAlwaysPresent(t *testing.T) {
	_, ts := newTestServer(t)

	for _, url := range []string{
		ts.URL + "/api?action=getActiveGames",
		ts.URL + "/api?action=getGameLeaderboard", // fails: no gameId
	} {
		resp, err := http.Get(url)
		if err != nil {
			t.Fatal(err)
		}
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
			t.Fatalf("decoding raw envelope: %v", err)
		}
		resp.Body.Close()

		for _, key := range []string{"success", "data", "error", "timestamp"} {
			if _, ok := raw[key]; !ok {
				t.Errorf("%s: envelope missing key %q", url, key)
			}
		}
	}
}

func TestGameIDValidationFailures(t *testing.T) {
	_, ts := newTestServer(t)

	urls := []string{
		ts.URL + "/api?action=getGameLeaderboard",
		ts.URL + "/api?action=getGameLeaderboard&gameId=abc",
		ts.URL + "/api?action=getGameLeaderboard&gameId=-1",
		ts.URL + "/api?action=getActivityStats",
		ts.URL + "/api?action=getActivityStats&gameId=abc",
		ts.URL + "/api?action=getGameStats&gameId=0",
		ts.URL + "/api?action=getRecentColorPattern",
	}

	for _, url := range urls {
		resp, env := getEnvelope(t, url)
		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("%s: status = %d, want 500", url, resp.StatusCode)
		}
		if env.Success {
			t.Errorf("%s: success = true, want false", url)
		}
		if string(env.Data) != "null" {
			t.Errorf("%s: data = %s, want null", url, env.Data)
		}
		if env.Error == nil || *env.Error != "Game ID required" {
			t.Errorf("%s: error = %v, want %q", url, env.Error, "Game ID required")
		}
	}
}

func TestInvalidAction(t *testing.T) {
	_, ts := newTestServer(t)

	for _, action := range []string{"", "nonsense", "dropTables"} {
		resp, env := getEnvelope(t, ts.URL+"/api?action="+action)
		if resp.StatusCode != http.StatusInternalServerError {
			t.Errorf("action %q: status = %d, want 500", action, resp.StatusCode)
		}
		if env.Error == nil || *env.Error != "Invalid action" {
			t.Errorf("action %q: error = %v, want %q", action, env.Error, "Invalid action")
		}
	}
}

func TestLimitClamping(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 25},
		{"&limit=0", 1},
		{"&limit=-3", 1},
		{"&limit=abc", 1},
		{"&limit=1", 1},
		{"&limit=37", 37},
		{"&limit=100", 100},
		{"&limit=9999", 100},
	}

	rep, ts := newTestServer(t)

	for i, tt := range tests {
		resp, err := http.Get(ts.URL + "/api?action=getRecentClicks" + tt.query)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if got := rep.recentLimits[i]; got != tt.want {
			t.Errorf("limit query %q: store saw %d, want %d", tt.query, got, tt.want)
		}
	}

	resp, err := http.Get(ts.URL + "/api?action=getLowestClicks&limit=9999")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := rep.lowestLimits[0]; got != 100 {
		t.Errorf("getLowestClicks limit = %d, want 100", got)
	}
}

func TestAPIHeaders(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api?action=getActiveGames")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	want := map[string]string{
		"Access-Control-Allow-Origin":  "*",
		"Access-Control-Allow-Methods": "GET",
		"Content-Type":                 "application/json",
		"X-Content-Type-Options":       "nosniff",
		"X-Frame-Options":              "DENY",
		"Referrer-Policy":              "no-referrer",
		"Content-Security-Policy":      "default-src 'none'",
	}
	for k, v := range want {
		if got := resp.Header.Get(k); got != v {
			t.Errorf("header %s = %q, want %q", k, got, v)
		}
	}
	if cc := resp.Header.Get("Cache-Control"); cc == "" {
		t.Error("Cache-Control header missing")
	}
}

func TestCacheReadThrough(t *testing.T) {
	rep := &fakeReporter{}
	fc := newFakeCache()
	srv := &Server{Reporter: rep, Cache: fc}
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	for i := 0; i < 3; i++ {
		resp, env := getEnvelope(t, ts.URL+"/api?action=getActiveGames")
		if resp.StatusCode != http.StatusOK || !env.Success {
			t.Fatalf("request %d failed: %+v", i, env)
		}
	}

	if rep.activeGamesCalls != 1 {
		t.Errorf("store queried %d times, want 1 (cache should serve repeats)", rep.activeGamesCalls)
	}
	if fc.sets != 1 {
		t.Errorf("cache Set called %d times, want 1", fc.sets)
	}
}

func TestValidationErrorNotCached(t *testing.T) {
	rep := &fakeReporter{}
	fc := newFakeCache()
	srv := &Server{Reporter: rep, Cache: fc}
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	for i := 0; i < 2; i++ {
		resp, err := http.Get(ts.URL + "/api?action=getGameLeaderboard")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
	}

	if fc.sets != 0 {
		t.Errorf("cache Set called %d times for failing action, want 0", fc.sets)
	}
	if len(rep.leaderboardIDs) != 2 {
		t.Errorf("store queried %d times, want 2 (failures are not cached)", len(rep.leaderboardIDs))
	}
}

func TestHealth_NoDatabase(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}

	var hs healthStatus
	if err := json.NewDecoder(resp.Body).Decode(&hs); err != nil {
		t.Fatalf("decoding health: %v", err)
	}
	if hs.Status != "degraded" || hs.Database != "unconfigured" {
		t.Errorf("health = %+v, want degraded/unconfigured", hs)
	}
}

func TestLiveFeed(t *testing.T) {
	rep := &fakeReporter{}
	hub := feed.NewHub()
	srv := &Server{Reporter: rep, Feed: hub}
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + ts.URL[len("http"):] + "/api/live"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dialing live feed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Wait for the handler goroutine to register the client.
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered with the hub")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Broadcast(reporting.Click{TimerValue: 4, UserName: "Carol", GameID: 7})

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("reading feed message: %v", err)
	}
	var msg feed.ClickMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != "click" || msg.Click.UserName != "Carol" {
		t.Errorf("message = %+v, want Carol's click", msg)
	}
}

func TestLiveFeed_Unavailable(t *testing.T) {
	_, ts := newTestServer(t) // no Feed configured

	resp, err := http.Get(ts.URL + "/api/live")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}
