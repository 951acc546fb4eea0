// Package di provides dependency injection type definitions.
//
// Container holds every long-lived component. It is the single source of
// truth for service instances and is handed to the server for route wiring.
package di

import (
	"github.com/aristath/marketpulse/internal/cache"
	"github.com/aristath/marketpulse/internal/clients/broker"
	"github.com/aristath/marketpulse/internal/database"
	"github.com/aristath/marketpulse/internal/events"
	"github.com/aristath/marketpulse/internal/modules/auth"
	"github.com/aristath/marketpulse/internal/modules/feed"
	"github.com/aristath/marketpulse/internal/modules/health"
	"github.com/aristath/marketpulse/internal/modules/market_data"
	"github.com/aristath/marketpulse/internal/modules/market_hours"
	"github.com/aristath/marketpulse/internal/modules/settings"
	"github.com/aristath/marketpulse/internal/reliability"
	"github.com/aristath/marketpulse/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	CacheDB  *database.DB // market_backup: persisted backup slots
	ConfigDB *database.DB // settings: persisted access token

	// Repositories
	SettingsRepo *settings.Repository
	BackupRepo   *cache.BackupRepository

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Clients
	TokenSource  *auth.SettingsTokenSource
	BrokerClient *broker.Client
	TickStream   *broker.TickStream // nil unless BROKER_STREAM_URL and BROKER_API_KEY are set

	// Services
	CacheStore        *cache.Store
	SessionService    *market_hours.SessionService
	AuthTracker       *auth.Tracker
	FeedWatchdog      *feed.Watchdog
	HealthReporter    *health.Reporter
	StatusMonitor     *health.StatusMonitor
	MarketDataService *market_data.Service
	SnapshotExporter  *reliability.SnapshotExporter // nil unless SNAPSHOT_BUCKET is set

	// Jobs
	Scheduler *scheduler.Scheduler
	Jobs      map[string]scheduler.Job
}

// Close releases database connections
func (c *Container) Close() {
	if c.CacheDB != nil {
		_ = c.CacheDB.Close()
	}
	if c.ConfigDB != nil {
		_ = c.ConfigDB.Close()
	}
}
