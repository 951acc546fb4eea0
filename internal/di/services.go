package di

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpulse/internal/cache"
	"github.com/aristath/marketpulse/internal/clients/broker"
	"github.com/aristath/marketpulse/internal/config"
	"github.com/aristath/marketpulse/internal/events"
	"github.com/aristath/marketpulse/internal/modules/auth"
	"github.com/aristath/marketpulse/internal/modules/feed"
	"github.com/aristath/marketpulse/internal/modules/health"
	"github.com/aristath/marketpulse/internal/modules/market_data"
	"github.com/aristath/marketpulse/internal/modules/market_hours"
	"github.com/aristath/marketpulse/internal/reliability"
)

// InitializeServices creates all services and stores them in the container.
// cfg must already reflect the settings database (UpdateFromSettings).
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// Events
	container.EventBus = events.NewBus(log)
	container.EventManager = events.NewManager(container.EventBus, log)

	// Cache, restored from the last persisted backup slots
	container.CacheStore = cache.NewStore(cfg.Cache.LiveTTL, cfg.Cache.BackupTTL, log)
	restored, err := container.BackupRepo.RestoreBackups(container.CacheStore)
	if err != nil {
		// Starting with an empty cache is better than not starting
		log.Warn().Err(err).Msg("Failed to restore cache backups")
	} else {
		log.Info().Int("symbols", restored).Msg("Restored cache backups")
	}

	// Broker
	container.TokenSource = auth.NewSettingsTokenSource(
		auth.TokenInfo{Token: cfg.Broker.AccessToken, IssuedAt: cfg.Broker.TokenIssuedAt},
		container.SettingsRepo,
		log,
	)
	container.TokenSource.SetEventEmitter(container.EventManager)
	container.BrokerClient = broker.NewClient(cfg.Broker, container.TokenSource, log)

	// Trackers
	container.SessionService = market_hours.NewSessionService(cfg.Market, log)

	container.AuthTracker = auth.NewTracker(
		container.BrokerClient,
		container.TokenSource,
		cfg.Auth.CheckInterval,
		cfg.Auth.VerifyTimeout,
		log,
	)
	container.AuthTracker.SetTokenStore(container.TokenSource)
	container.AuthTracker.SetEventEmitter(container.EventManager)

	container.FeedWatchdog = feed.NewWatchdog(container.SessionService, cfg.Feed, log)

	container.HealthReporter = health.NewReporter(
		container.SessionService,
		container.AuthTracker,
		container.FeedWatchdog,
		log,
	)
	container.StatusMonitor = health.NewStatusMonitor(
		container.HealthReporter,
		container.EventManager,
		cfg.Jobs.StatusMonitor,
		log,
	)

	// Market data
	container.MarketDataService = market_data.NewService(
		container.CacheStore,
		container.BrokerClient,
		container.SessionService,
		container.AuthTracker,
		container.EventManager,
		cfg.Symbols,
		cfg.OptionUnderlyings,
		cfg.Cache.CandleHistory,
		log,
	)

	if cfg.Broker.StreamURL != "" && cfg.Broker.APIKey != "" {
		container.TickStream = broker.NewTickStream(
			cfg.Broker.StreamURL,
			cfg.Broker.APIKey,
			cfg.Symbols,
			container.TokenSource,
			container.FeedWatchdog,
			container.MarketDataService,
			log,
		)
	} else {
		container.MarketDataService.SetFeedObserver(container.FeedWatchdog)
		log.Warn().Msg("Tick stream not configured, feed health relies on polling only")
	}

	// Snapshot export
	if cfg.Snapshot.Enabled() {
		s3Client, err := reliability.NewS3Client(context.Background(), cfg.Snapshot, log)
		if err != nil {
			return fmt.Errorf("failed to create snapshot storage client: %w", err)
		}
		container.SnapshotExporter = reliability.NewSnapshotExporter(
			container.CacheStore,
			s3Client,
			cfg.Snapshot.Prefix,
			cfg.Snapshot.RetentionDays,
			log,
		)
	}

	log.Debug().Msg("Services initialized")
	return nil
}
