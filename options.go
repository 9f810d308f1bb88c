package ftcatalog

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the Provider.
type Option interface {
	apply(*providerConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*providerConfig)

func (f optionFunc) apply(c *providerConfig) { f(c) }

type providerConfig struct {
	addrs    []string
	username string
	password string
	db       int
	timeout  time.Duration

	schemas    []schemaSpec
	keyPrefix  string
	sourceID   string
	maxParts   int
	commitMode CommitMode

	structural      *bool
	nearestDistance float64

	pageSize     int
	fetchChunk   int
	queryTimeout time.Duration

	commitBatch int
	batchLimit  int
	ratePerSec  float64
	rateBurst   int

	logger *zap.Logger
}

type schemaSpec struct {
	name  string
	attrs []Descriptor
}

// WithRedis connects to a Redis 8 instance with the Query Engine.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *providerConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithAddrs sets every seed address, for clusters.
func WithAddrs(addrs ...string) Option {
	return optionFunc(func(c *providerConfig) {
		c.addrs = append([]string(nil), addrs...)
	})
}

// WithCredentials sets the ACL user and password.
func WithCredentials(username, password string) Option {
	return optionFunc(func(c *providerConfig) {
		c.username = username
		c.password = password
	})
}

// WithDB selects the logical database.
func WithDB(n int) Option {
	return optionFunc(func(c *providerConfig) { c.db = n })
}

// WithCommandTimeout bounds every backend command.
func WithCommandTimeout(d time.Duration) Option {
	return optionFunc(func(c *providerConfig) { c.timeout = d })
}

// WithSchema registers a schema beyond the core one.
func WithSchema(name string, attrs ...Descriptor) Option {
	return optionFunc(func(c *providerConfig) {
		c.schemas = append(c.schemas, schemaSpec{name: name, attrs: attrs})
	})
}

// WithKeyPrefix namespaces every key and the index name.
func WithKeyPrefix(prefix string) Option {
	return optionFunc(func(c *providerConfig) { c.keyPrefix = prefix })
}

// WithSourceID names the source stamped on created records.
// Defaults to "ftcatalog".
func WithSourceID(id string) Option {
	return optionFunc(func(c *providerConfig) { c.sourceID = id })
}

// WithGeometryMaxParts bounds how many shapes one geometry attribute can
// split into at the antimeridian. Defaults to 4.
func WithGeometryMaxParts(n int) Option {
	return optionFunc(func(c *providerConfig) { c.maxParts = n })
}

// WithCommitMode sets the initial commit mode.
func WithCommitMode(m CommitMode) Option {
	return optionFunc(func(c *providerConfig) { c.commitMode = m })
}

// WithStructuralIndex enables or disables the xpath side index.
func WithStructuralIndex(enabled bool) Option {
	return optionFunc(func(c *providerConfig) { c.structural = &enabled })
}

// WithNearestDistance sets the "nearest" search radius in meters.
func WithNearestDistance(meters float64) Option {
	return optionFunc(func(c *providerConfig) { c.nearestDistance = meters })
}

// WithDefaultPageSize sets the page size of queries that leave it unset.
func WithDefaultPageSize(n int) Option {
	return optionFunc(func(c *providerConfig) { c.pageSize = n })
}

// WithFetchChunk sets the window used to drain unbounded queries.
func WithFetchChunk(n int) Option {
	return optionFunc(func(c *providerConfig) { c.fetchChunk = n })
}

// WithQueryTimeout bounds queries whose context has no deadline.
// Defaults to 30s.
func WithQueryTimeout(d time.Duration) Option {
	return optionFunc(func(c *providerConfig) { c.queryTimeout = d })
}

// WithCommitBatch sets how many pending writes one commit step flips.
func WithCommitBatch(n int) Option {
	return optionFunc(func(c *providerConfig) { c.commitBatch = n })
}

// WithBatchLimit caps records per write round-trip.
func WithBatchLimit(n int) Option {
	return optionFunc(func(c *providerConfig) { c.batchLimit = n })
}

// WithWriteRateLimit throttles write round-trips.
func WithWriteRateLimit(perSecond float64, burst int) Option {
	return optionFunc(func(c *providerConfig) {
		c.ratePerSec = perSecond
		c.rateBurst = burst
	})
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *providerConfig) { c.logger = l })
}
