package mhdmem

import (
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/mhdmem/codec"
	"github.com/hupe1980/mhdmem/internal/resource"
	"github.com/hupe1980/mhdmem/snapshot"
)

type options struct {
	codec            codec.Codec
	compression      snapshot.Compression
	workers          int
	minChunkSize     int
	metricsCollector MetricsCollector
	logger           *Logger
	cacheEntries     int64
	dedup            bool
	resource         resource.Config
}

// Option configures New, Load and LoadFromStore.
type Option func(*options)

// WithWorkers sets the size of the scoring worker pool.
// If n <= 0, runtime.GOMAXPROCS(0) is used.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithMinChunkSize sets the minimum number of entries one scoring task
// handles. Stores smaller than twice this value are scored on the calling
// goroutine.
func WithMinChunkSize(n int) Option {
	return func(o *options) {
		o.minChunkSize = n
	}
}

// WithCodec configures the codec used for payloads in snapshots written by
// Save. Loading always uses the codec named in the snapshot header.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithSnapshotCompression sets the block compression for snapshots written
// by Save. Default: snapshot.CompressionLZ4.
func WithSnapshotCompression(c snapshot.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithSnapshotIOLimit throttles snapshot reads and writes to bytesPerSec.
func WithSnapshotIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.resource.IOLimitBytesPerSec = bytesPerSec
	}
}

// WithQueryCache enables a result cache holding up to maxEntries query
// results. Any mutation of the memory invalidates all cached results.
//
// Pays off when the same (pattern, mask, k) is asked repeatedly between
// inserts, as in search procedures that revisit states.
func WithQueryCache(maxEntries int64) Option {
	return func(o *options) {
		o.cacheEntries = maxEntries
	}
}

// WithDeduplicate makes Insert return the ID of an existing entry with an
// identical record and mask instead of storing a duplicate. The payload of
// the existing entry is kept.
func WithDeduplicate() Option {
	return func(o *options) {
		o.dedup = true
	}
}

// WithQueryRateLimit limits QueryContext and QueryBatch to perSecond queries
// with the given burst. Query (without a context) is not limited.
func WithQueryRateLimit(perSecond float64, burst int) Option {
	return func(o *options) {
		o.resource.QueriesPerSecond = perSecond
		o.resource.QueryBurst = burst
	}
}

// WithMaxConcurrentQueries caps how many QueryContext calls score at once.
func WithMaxConcurrentQueries(n int64) Option {
	return func(o *options) {
		o.resource.MaxConcurrentQueries = n
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// If nil is passed, metrics collection is disabled (NoopMetricsCollector is used).
//
// Example:
//
//	metrics := &mhdmem.BasicMetricsCollector{}
//	mem, _ := mhdmem.New[string](256, 1000, mhdmem.WithMetricsCollector(metrics))
//	// ... use mem ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.QueryCount, stats.QueryAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := mhdmem.NewJSONLogger(slog.LevelInfo)
//	mem, _ := mhdmem.New[string](256, 1000, mhdmem.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		codec:            codec.Default,
		compression:      snapshot.CompressionLZ4,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

type queryOptions struct {
	maxDistance int
	minOverlap  int
	filter      *roaring64.Bitmap
	noCache     bool
}

// QueryOption configures a single query.
type QueryOption func(*queryOptions)

// WithMaxDistance drops entries whose distance exceeds d, so a query may
// return fewer than k matches. A negative d disables the threshold.
func WithMaxDistance(d int) QueryOption {
	return func(o *queryOptions) {
		o.maxDistance = d
	}
}

// WithMinOverlap drops entries that share fewer than n significant
// positions with the query. Such matches have a small distance only because
// little was compared.
func WithMinOverlap(n int) QueryOption {
	return func(o *queryOptions) {
		o.minOverlap = n
	}
}

// WithFilter restricts the query to entries whose ID is in ids.
// Filtered queries bypass the result cache.
func WithFilter(ids *roaring64.Bitmap) QueryOption {
	return func(o *queryOptions) {
		o.filter = ids
	}
}

// WithoutCache skips the result cache for this query.
func WithoutCache() QueryOption {
	return func(o *queryOptions) {
		o.noCache = true
	}
}

func applyQueryOptions(optFns []QueryOption) queryOptions {
	o := queryOptions{maxDistance: -1}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func (o queryOptions) allow() func(uint64) bool {
	if o.filter == nil {
		return nil
	}
	return o.filter.Contains
}
