package di

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpulse/internal/config"
	"github.com/aristath/marketpulse/internal/database"
)

// InitializeDatabases opens both databases and applies their schemas
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// cache.db - persisted backup slots, safe to lose
	cacheDB, err := openDatabase(filepath.Join(cfg.DataDir, "cache.db"), database.ProfileCache, "cache")
	if err != nil {
		return nil, err
	}
	container.CacheDB = cacheDB

	// config.db - settings (access token)
	configDB, err := openDatabase(filepath.Join(cfg.DataDir, "config.db"), database.ProfileStandard, "config")
	if err != nil {
		cacheDB.Close()
		return nil, err
	}
	container.ConfigDB = configDB

	log.Info().Str("data_dir", cfg.DataDir).Msg("Databases initialized")
	return container, nil
}

func openDatabase(path string, profile database.DatabaseProfile, name string) (*database.DB, error) {
	db, err := database.New(database.Config{
		Path:    path,
		Profile: profile,
		Name:    name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s database: %w", name, err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate %s database: %w", name, err)
	}
	return db, nil
}
