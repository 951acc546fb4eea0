// Package feed infers the liveness of the broker tick feed from elapsed time
// since the last observed tick.
package feed

import "time"

// State is the classified feed state
type State string

const (
	StateConnected    State = "CONNECTED"
	StateStale        State = "STALE"
	StateDisconnected State = "DISCONNECTED"
)

// HealthMetrics is a point-in-time view of the feed
type HealthMetrics struct {
	State              State      `json:"state"`
	IsHealthy          bool       `json:"is_healthy"`
	IsStale            bool       `json:"is_stale"`
	RequiresReconnect  bool       `json:"requires_reconnect"`
	MarketIdle         bool       `json:"market_idle"`
	LastTickSecondsAgo float64    `json:"last_tick_seconds_ago"`
	LastTickAt         *time.Time `json:"last_tick_at"`
	UptimeMinutes      float64    `json:"uptime_minutes"`
	TotalTicks         int64      `json:"total_ticks"`
	TotalReconnects    int64      `json:"total_reconnects"`
	ConnectionQuality  float64    `json:"connection_quality"`
}
