// Package events provides event management functionality.
package events

import (
	"time"
)

// EventType represents different event types
type EventType string

const (
	MarketDataUpdated   EventType = "MARKET_DATA_UPDATED"
	HealthStatusChanged EventType = "HEALTH_STATUS_CHANGED"
	AuthStateChanged    EventType = "AUTH_STATE_CHANGED"
	FeedStateChanged    EventType = "FEED_STATE_CHANGED"
	SettingsChanged     EventType = "SETTINGS_CHANGED"
	ErrorOccurred       EventType = "ERROR_OCCURRED"
)

// StreamedTypes are the event types forwarded to browser clients
var StreamedTypes = []EventType{
	MarketDataUpdated,
	HealthStatusChanged,
	AuthStateChanged,
	FeedStateChanged,
}

// Event represents a system event
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
