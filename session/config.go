package session

import (
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rohanthewiz/serr"

	"dayplan/feed"
)

// ============================================================================
// Session Configuration
//
// Loads session settings from environment variables so deployment stays
// external to the binary. A missing client id gets an ephemeral UUID: the
// feed uses the id only to scope topics and task actions, so a fresh one
// costs nothing beyond re-subscribing.
// ============================================================================

// Config holds everything the sync session needs to start.
type Config struct {
	FeedURL        string        // Websocket endpoint of the plan feed (DAYPLAN_FEED_URL)
	FeedSecret     string        // HS256 signing secret for feed tickets (DAYPLAN_FEED_SECRET)
	ClientID       string        // Stable client identity (DAYPLAN_CLIENT_ID)
	ReconnectDelay time.Duration // Fixed wait between redials (DAYPLAN_RECONNECT_DELAY)
	CachePath      string        // Snapshot cache file, empty disables caching (DAYPLAN_CACHE_PATH)
	HTTPAddr       string        // Listen address of the local HTTP surface (DAYPLAN_HTTP_ADDR)
	PlanDate       string        // Day being tracked, YYYY-MM-DD (DAYPLAN_PLAN_DATE)
}

// defaultHTTPAddr serves the local status page and API.
const defaultHTTPAddr = ":8000"

// planDateLayout is the wire and env format for plan dates.
const planDateLayout = "2006-01-02"

// LoadConfig reads session configuration from environment variables,
// filling defaults for everything optional. The plan date defaults to
// today in the local timezone, which is what a daily planner wants.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		FeedURL:        os.Getenv("DAYPLAN_FEED_URL"),
		FeedSecret:     os.Getenv("DAYPLAN_FEED_SECRET"),
		ClientID:       os.Getenv("DAYPLAN_CLIENT_ID"),
		ReconnectDelay: feed.DefaultReconnectDelay,
		CachePath:      os.Getenv("DAYPLAN_CACHE_PATH"),
		HTTPAddr:       defaultHTTPAddr,
		PlanDate:       time.Now().Format(planDateLayout),
	}

	if delayStr := os.Getenv("DAYPLAN_RECONNECT_DELAY"); delayStr != "" {
		delay, err := time.ParseDuration(delayStr)
		if err != nil {
			return nil, serr.Wrap(err, "invalid DAYPLAN_RECONNECT_DELAY value, expected duration like '3s' or '500ms'")
		}
		cfg.ReconnectDelay = delay
	}

	if addr := os.Getenv("DAYPLAN_HTTP_ADDR"); addr != "" {
		cfg.HTTPAddr = addr
	}

	if date := os.Getenv("DAYPLAN_PLAN_DATE"); date != "" {
		cfg.PlanDate = date
	}

	if cfg.ClientID == "" {
		cfg.ClientID = uuid.New().String()
	}

	return cfg, nil
}

// Validate checks the config before the session starts, failing fast on
// misconfiguration rather than discovering it mid-reconnect.
func (c *Config) Validate() error {
	if c.FeedURL == "" {
		return serr.New("DAYPLAN_FEED_URL is required")
	}
	u, err := url.Parse(c.FeedURL)
	if err != nil {
		return serr.Wrap(err, "DAYPLAN_FEED_URL is not a valid URL")
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return serr.New("DAYPLAN_FEED_URL must use the ws or wss scheme")
	}
	if c.ClientID == "" {
		return serr.New("client id must not be empty")
	}
	if c.ReconnectDelay <= 0 {
		return serr.New("reconnect delay must be positive")
	}
	if _, err := time.Parse(planDateLayout, c.PlanDate); err != nil {
		return serr.Wrap(err, "DAYPLAN_PLAN_DATE must be a date like 2026-08-25")
	}
	return nil
}
