package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpulse/internal/cache"
	"github.com/aristath/marketpulse/internal/modules/settings"
)

// InitializeRepositories creates all repositories and stores them in the container
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	container.SettingsRepo = settings.NewRepository(container.ConfigDB.Conn(), log)
	container.BackupRepo = cache.NewBackupRepository(container.CacheDB.Conn(), log)

	log.Debug().Msg("Repositories initialized")
	return nil
}
