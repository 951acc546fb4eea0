package cache

import "time"

// Default TTLs for market data slots.
// TTLs are enforced lazily on read; nothing sweeps the store.
const (
	TTLLive   = 60 * time.Second // last poll result, short-lived
	TTLBackup = 24 * time.Hour   // last session data, shown when live data is missing
)

// Key namespaces
const (
	liveKeyPrefix   = "market:"
	backupKeyPrefix = "market_backup:"
	candleKeyPrefix = "candles:"
)

// LiveKey returns the live slot key for a symbol.
func LiveKey(symbol string) string { return liveKeyPrefix + symbol }

// BackupKey returns the backup slot key for a symbol.
func BackupKey(symbol string) string { return backupKeyPrefix + symbol }

// CandleKey returns the candle list key for a symbol.
func CandleKey(symbol string) string { return candleKeyPrefix + symbol }

// expired reports whether an entry written at writtenAt with ttl is past its TTL at now.
// A non-positive ttl never expires.
func expired(writtenAt time.Time, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(writtenAt) > ttl
}
