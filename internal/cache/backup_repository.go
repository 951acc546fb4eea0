package cache

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// BackupRepository persists backup slots to the market_backup table in cache.db,
// so last session data survives restarts.
type BackupRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewBackupRepository creates a new backup repository.
func NewBackupRepository(db *sql.DB, log zerolog.Logger) *BackupRepository {
	return &BackupRepository{
		db:  db,
		log: log.With().Str("repo", "market_backup").Logger(),
	}
}

// SaveBackups upserts every unexpired backup slot of the store.
// Returns the number of rows written.
func (r *BackupRepository) SaveBackups(store *Store) (int, error) {
	backups := store.Backups()
	if len(backups) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO market_backup (cache_key, symbol, data, ttl_seconds, written_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare backup upsert: %w", err)
	}
	defer stmt.Close()

	for _, b := range backups {
		_, err := stmt.Exec(BackupKey(b.Symbol), b.Symbol, b.Value, int64(b.TTL/time.Second), b.WrittenAt.Unix())
		if err != nil {
			return 0, fmt.Errorf("failed to save backup for %s: %w", b.Symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit backups: %w", err)
	}
	return len(backups), nil
}

// RestoreBackups loads persisted backup slots into the store.
// Rows already past their TTL are skipped. Returns the number of slots restored.
func (r *BackupRepository) RestoreBackups(store *Store) (int, error) {
	rows, err := r.db.Query(`SELECT symbol, data, ttl_seconds, written_at FROM market_backup`)
	if err != nil {
		return 0, fmt.Errorf("failed to query backups: %w", err)
	}
	defer rows.Close()

	now := store.now()
	restored := 0
	for rows.Next() {
		var (
			symbol     string
			data       []byte
			ttlSeconds int64
			writtenAt  int64
		)
		if err := rows.Scan(&symbol, &data, &ttlSeconds, &writtenAt); err != nil {
			return restored, fmt.Errorf("failed to scan backup row: %w", err)
		}

		b := BackupEntry{
			Symbol:    symbol,
			Value:     data,
			TTL:       time.Duration(ttlSeconds) * time.Second,
			WrittenAt: time.Unix(writtenAt, 0),
		}
		if expired(b.WrittenAt, b.TTL, now) {
			continue
		}
		if store.RestoreBackup(b) {
			restored++
		}
	}
	if err := rows.Err(); err != nil {
		return restored, fmt.Errorf("failed to iterate backups: %w", err)
	}

	r.log.Debug().Int("restored", restored).Msg("Restored market data backups")
	return restored, nil
}

// DeleteExpired removes persisted rows past their TTL.
func (r *BackupRepository) DeleteExpired(now time.Time) (int64, error) {
	result, err := r.db.Exec(`DELETE FROM market_backup WHERE written_at + ttl_seconds < ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired backups: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}
