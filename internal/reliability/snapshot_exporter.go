package reliability

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/marketpulse/internal/cache"
)

const (
	snapshotExt         = ".msgpack"
	snapshotContentType = "application/x-msgpack"
	snapshotDateLayout  = "2006-01-02"

	// minSnapshotsToKeep survive rotation regardless of age
	minSnapshotsToKeep = 3
)

// ObjectStore is implemented by S3Client
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) error
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
	Delete(ctx context.Context, key string) error
}

// MarketDataSource is implemented by cache.Store
type MarketDataSource interface {
	GetAllMarketData() map[string]cache.Payload
}

// Snapshot is the uploaded document
type Snapshot struct {
	TakenAt time.Time                `msgpack:"taken_at"`
	Symbols map[string]cache.Payload `msgpack:"symbols"`
}

// SnapshotExporter uploads the market data cache as msgpack and rotates old snapshots
type SnapshotExporter struct {
	source        MarketDataSource
	store         ObjectStore
	prefix        string
	retentionDays int
	now           func() time.Time
	log           zerolog.Logger
}

// NewSnapshotExporter creates a new snapshot exporter
func NewSnapshotExporter(
	source MarketDataSource,
	store ObjectStore,
	prefix string,
	retentionDays int,
	log zerolog.Logger,
) *SnapshotExporter {
	return &SnapshotExporter{
		source:        source,
		store:         store,
		prefix:        strings.Trim(prefix, "/"),
		retentionDays: retentionDays,
		now:           time.Now,
		log:           log.With().Str("service", "snapshot_exporter").Logger(),
	}
}

// Export uploads one snapshot and returns its key.
// An empty cache uploads nothing and returns "".
func (e *SnapshotExporter) Export(ctx context.Context) (string, error) {
	data := e.source.GetAllMarketData()
	if len(data) == 0 {
		return "", nil
	}

	now := e.now().UTC()
	encoded, err := msgpack.Marshal(&Snapshot{TakenAt: now, Symbols: data})
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := e.key(now)
	if err := e.store.Upload(ctx, key, bytes.NewReader(encoded), snapshotContentType); err != nil {
		return "", err
	}

	e.log.Info().
		Str("key", key).
		Int("symbols", len(data)).
		Int("size_bytes", len(encoded)).
		Msg("Snapshot exported")

	if err := e.Rotate(ctx); err != nil {
		e.log.Warn().Err(err).Msg("Snapshot rotation failed")
	}
	return key, nil
}

// Rotate deletes snapshots older than the retention period, always keeping the newest few
func (e *SnapshotExporter) Rotate(ctx context.Context) error {
	if e.retentionDays <= 0 {
		return nil
	}

	objects, err := e.store.List(ctx, e.prefix+"/")
	if err != nil {
		return err
	}

	type snapshotObject struct {
		key     string
		takenAt time.Time
	}
	snapshots := make([]snapshotObject, 0, len(objects))
	for _, obj := range objects {
		takenAt, ok := parseSnapshotKey(obj.Key)
		if !ok {
			continue
		}
		snapshots = append(snapshots, snapshotObject{key: obj.Key, takenAt: takenAt})
	}
	if len(snapshots) <= minSnapshotsToKeep {
		return nil
	}

	// Newest first
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].takenAt.After(snapshots[j].takenAt)
	})

	cutoff := e.now().AddDate(0, 0, -e.retentionDays)
	deleted := 0
	for _, s := range snapshots[minSnapshotsToKeep:] {
		if !s.takenAt.Before(cutoff) {
			continue
		}
		if err := e.store.Delete(ctx, s.key); err != nil {
			e.log.Error().Err(err).Str("key", s.key).Msg("Failed to delete old snapshot")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		e.log.Info().
			Int("deleted", deleted).
			Int("remaining", len(snapshots)-deleted).
			Msg("Snapshot rotation completed")
	}
	return nil
}

// key is <prefix>/<YYYY-MM-DD>/<unix seconds>.msgpack
func (e *SnapshotExporter) key(at time.Time) string {
	return path.Join(e.prefix, at.Format(snapshotDateLayout), strconv.FormatInt(at.Unix(), 10)+snapshotExt)
}

func parseSnapshotKey(key string) (time.Time, bool) {
	base := path.Base(key)
	if !strings.HasSuffix(base, snapshotExt) {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(strings.TrimSuffix(base, snapshotExt), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(secs, 0).UTC(), true
}

// DecodeSnapshot parses an uploaded snapshot
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &s, nil
}
